// Package async is the context-driven adapter of the protocol.
//
// Its operations mirror frame and message one for one and run the same frame
// algorithm, so the bytes on the wire and the error kinds are identical. The
// difference is the stream: every underlying read and write takes a context,
// and ending that context aborts the parked call with a transport error.
//
// Callers own serialization: at most one reader and one writer per stream.
package async
