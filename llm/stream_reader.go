package llm

import "context"

// Stream is what LLM.Stream returns: a pull-based iterator over
// streaming Events, mirroring the channel-based ResponseStream pattern
// used for the agent loop's own response stream.
type Stream interface {
	// Next advances the stream to the next event, returning false when
	// the stream is exhausted or ctx is done.
	Next(ctx context.Context) bool

	// Event returns the current event. Valid only after Next returns true.
	Event() *Event

	// Err returns any error encountered while streaming.
	Err() error

	// Close releases resources associated with the stream.
	Close() error
}

// channelStream is a minimal Stream implementation backed by a channel,
// for use by test doubles and any in-process LLM implementation.
type channelStream struct {
	ch      <-chan *Event
	current *Event
	err     error
	errFn   func() error
}

// NewChannelStream wraps a channel of Events as a Stream. errFn, if
// non-nil, is consulted after the channel closes to report a terminal
// error (e.g. a context deadline).
func NewChannelStream(ch <-chan *Event, errFn func() error) Stream {
	return &channelStream{ch: ch, errFn: errFn}
}

func (s *channelStream) Next(ctx context.Context) bool {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			if s.errFn != nil {
				s.err = s.errFn()
			}
			return false
		}
		s.current = ev
		return true
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	}
}

func (s *channelStream) Event() *Event { return s.current }
func (s *channelStream) Err() error    { return s.err }
func (s *channelStream) Close() error  { return nil }
