package chat

import "context"

// Service is the remote conversation gateway consumed by the session core.
type Service interface {
	// OpenStream dispatches a request and returns a handle to its
	// streamed answer. Opening must not block on the full response.
	OpenStream(ctx context.Context, req Request) (Stream, error)
}

// Stream is one in-flight answer. Chunks is a single-use iterator yielding
// chunks in production order; after it is exhausted Result reports the
// terminal outcome. Close cancels the underlying transport mid-stream and
// is safe to call concurrently with Chunks.
type Stream interface {
	Chunks(ctx context.Context) func(func(Chunk, error) bool)
	Result() (*Result, error)
	Close() error
}
