package agentcore

import (
	"context"
	"encoding/json"

	"github.com/localllm/agentcore/llm"
)

// TurnEventType tags one event in the Agent Loop's per-turn event
// union (§4.8 step 4: "text", "thinking", "tool_call", "error",
// "finish"). This is a simplified view the loop consumes; it is
// derived from the provider's lower-level llm.Event wire stream by
// turnEventReader, the same way each provider's own Stream type
// accumulates content_block_start/delta/stop into a final Response.
type TurnEventType string

const (
	TurnEventText     TurnEventType = "text"
	TurnEventThinking TurnEventType = "thinking"
	TurnEventToolCall TurnEventType = "tool_call"
	TurnEventError    TurnEventType = "error"
	TurnEventFinish   TurnEventType = "finish"
)

// TurnEvent is one item of the translated per-turn stream.
type TurnEvent struct {
	Type TurnEventType

	// Text carries an incremental delta for TurnEventText and
	// TurnEventThinking.
	Text string

	// ToolCall is set on TurnEventToolCall, once its arguments have
	// fully accumulated (content_block_stop).
	ToolCall *llm.ToolUseContent

	// Err is set on TurnEventError.
	Err error

	// Usage and StopReason are set on TurnEventFinish.
	Usage      *llm.Usage
	StopReason string
}

type blockAccumulator struct {
	blockType   string
	text        string
	partialJSON string
	toolID      string
	toolName    string
}

// turnEventReader translates a provider's llm.Stream into the Agent
// Loop's TurnEvent union (§4.8). It owns no goroutine: callers drive it
// with Next/Event/Err exactly like the stream it wraps, so cancellation
// and backpressure come for free from the underlying provider stream.
type turnEventReader struct {
	stream     llm.Stream
	blocks     map[int]*blockAccumulator
	curr       *TurnEvent
	err        error
	done       bool
	stopReason string
	usage      *llm.Usage
}

// newTurnEventReader wraps a provider stream for per-turn consumption.
func newTurnEventReader(stream llm.Stream) *turnEventReader {
	return &turnEventReader{stream: stream, blocks: make(map[int]*blockAccumulator)}
}

// Next advances to the next translated TurnEvent. It may consume more
// than one underlying llm.Event (e.g. content_block_start carries no
// user-visible content by itself) before producing one, and returns
// false once the stream is exhausted, erred, or has yielded finish.
func (r *turnEventReader) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	for r.stream.Next(ctx) {
		event := r.stream.Event()
		if event == nil {
			continue
		}
		if te := r.translate(event); te != nil {
			r.curr = te
			if te.Type == TurnEventFinish || te.Type == TurnEventError {
				r.done = true
			}
			return true
		}
	}
	if err := r.stream.Err(); err != nil {
		r.err = err
		r.curr = &TurnEvent{Type: TurnEventError, Err: err}
		r.done = true
		return true
	}
	return false
}

// Event returns the event produced by the last successful Next call.
func (r *turnEventReader) Event() *TurnEvent { return r.curr }

// Err returns any error encountered while translating the stream.
func (r *turnEventReader) Err() error { return r.err }

// Close releases the underlying provider stream.
func (r *turnEventReader) Close() error { return r.stream.Close() }

func (r *turnEventReader) translate(event *llm.Event) *TurnEvent {
	switch event.Type {
	case llm.EventContentBlockStart:
		block := &blockAccumulator{}
		if event.ContentBlock != nil {
			block.blockType = event.ContentBlock.Type
			block.text = event.ContentBlock.Text
			block.toolID = event.ContentBlock.ID
			block.toolName = event.ContentBlock.Name
		}
		r.blocks[event.Index] = block
		return nil

	case llm.EventContentBlockDelta:
		block, ok := r.blocks[event.Index]
		if !ok {
			block = &blockAccumulator{}
			r.blocks[event.Index] = block
		}
		if event.Delta == nil {
			return nil
		}
		switch event.Delta.Type {
		case "text_delta":
			block.text += event.Delta.Text
			if event.Delta.Text == "" {
				return nil
			}
			return &TurnEvent{Type: TurnEventText, Text: event.Delta.Text}
		case "thinking_delta":
			block.text += event.Delta.Thinking
			if event.Delta.Thinking == "" {
				return nil
			}
			return &TurnEvent{Type: TurnEventThinking, Text: event.Delta.Thinking}
		case "input_json_delta":
			block.partialJSON += event.Delta.PartialJSON
			return nil
		}
		return nil

	case llm.EventContentBlockStop:
		block, ok := r.blocks[event.Index]
		if !ok || block.blockType != "tool_use" {
			return nil
		}
		input := block.partialJSON
		if input == "" {
			input = "{}"
		}
		if !json.Valid([]byte(input)) {
			input = "{}"
		}
		return &TurnEvent{
			Type: TurnEventToolCall,
			ToolCall: &llm.ToolUseContent{
				ID:    block.toolID,
				Name:  block.toolName,
				Input: input,
			},
		}

	case llm.EventMessageDelta:
		if event.Delta == nil {
			return nil
		}
		// message_delta reports the stop reason ahead of message_stop;
		// stash it and wait for message_stop/Response to finalize usage.
		r.stopReason = event.Delta.StopReason
		if event.Usage != nil {
			r.usage = event.Usage
		}
		return nil

	case llm.EventMessageStop:
		return &TurnEvent{Type: TurnEventFinish, Usage: r.usage, StopReason: r.stopReason}

	default:
		return nil
	}
}
