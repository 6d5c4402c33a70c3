// Package chat defines the boundary contract between the session core and
// the remote conversation gateway.
//
// The types here are transport-agnostic: a [Service] opens one [Stream] per
// submitted turn, the stream yields ordered [Chunk] values and terminates
// with a [Result] or an error. Concrete transports live in the localserver
// (HTTP NDJSON) and socketserver (websocket) subpackages.
package chat
