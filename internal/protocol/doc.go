// Package protocol owns the wire contract shared by every adapter.
//
// Ownership boundary:
// - error taxonomy (transport, framing, encoding, schema)
// - frame primitives (frame)
// - status vocabulary (status)
// - typed message codec and blocking adapter (message)
// - context-driven stream adapter (async)
//
// Wire format:
//
//	byte 0..3   : payload length N, uint32 big-endian
//	byte 4..4+N : payload, one UTF-8 JSON document
package protocol
