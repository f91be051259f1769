// Package message is the typed layer over frame: one JSON document per frame,
// decoded into a type the receiver names from context.
//
// Request and Response are compile-time markers. They restrict which types
// the directional helpers accept and never change the bytes on the wire.
package message
