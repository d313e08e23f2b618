package llm

import "context"

// LLM is the interface a model provider adapter implements. Generate
// and Stream both accept the same Option set (options.go); Stream
// additionally returns a pull-based Stream the caller drains for
// incremental events (stream_reader.go).
type LLM interface {
	// Generate a response from the LLM by passing messages.
	Generate(ctx context.Context, messages []*Message, opts ...Option) (*Response, error)

	// Stream a response from the LLM by passing messages.
	Stream(ctx context.Context, messages []*Message, opts ...Option) (Stream, error)

	// SupportsStreaming returns true if the LLM supports streaming.
	SupportsStreaming() bool
}
