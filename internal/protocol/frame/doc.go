// Package frame owns the length-prefixed frame codec.
//
// Read and Write hold the framing invariants once: a frame is complete only
// when exactly the declared number of payload bytes has been read, no read
// asks for bytes past the declared length, and end of stream inside a frame
// is ErrTruncated. ReadFrame/WriteFrame drive them over io.Reader/io.Writer;
// the async package drives them over context-aware streams.
package frame
