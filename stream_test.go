package agentcore

import (
	"context"
	"fmt"
	"testing"

	"github.com/deepnoodle-ai/wonton/assert"
	"github.com/localllm/agentcore/llm"
)

// fakeTurnStream replays a fixed slice of llm.Events synchronously, the
// same pattern fakeSummaryStream uses in compression_pipeline_test.go.
type fakeTurnStream struct {
	events []*llm.Event
	idx    int
	err    error
}

func (s *fakeTurnStream) Next(ctx context.Context) bool {
	if s.idx >= len(s.events) {
		return false
	}
	s.idx++
	return true
}

func (s *fakeTurnStream) Event() *llm.Event { return s.events[s.idx-1] }
func (s *fakeTurnStream) Err() error        { return s.err }
func (s *fakeTurnStream) Close() error      { return nil }

func TestTurnEventReaderText(t *testing.T) {
	stream := &fakeTurnStream{events: []*llm.Event{
		{Type: llm.EventContentBlockStart, Index: 0, ContentBlock: &llm.EventContentBlock{Type: "text"}},
		{Type: llm.EventContentBlockDelta, Index: 0, Delta: &llm.Delta{Type: "text_delta", Text: "hel"}},
		{Type: llm.EventContentBlockDelta, Index: 0, Delta: &llm.Delta{Type: "text_delta", Text: "lo"}},
		{Type: llm.EventContentBlockStop, Index: 0},
		{Type: llm.EventMessageDelta, Delta: &llm.Delta{StopReason: "end_turn"}, Usage: &llm.Usage{InputTokens: 5, OutputTokens: 2}},
		{Type: llm.EventMessageStop},
	}}

	reader := newTurnEventReader(stream)
	defer reader.Close()

	var got []TurnEvent
	for reader.Next(context.Background()) {
		got = append(got, *reader.Event())
	}
	assert.NoError(t, reader.Err())

	assert.Equal(t, 3, len(got))
	assert.Equal(t, TurnEventText, got[0].Type)
	assert.Equal(t, "hel", got[0].Text)
	assert.Equal(t, TurnEventText, got[1].Type)
	assert.Equal(t, "lo", got[1].Text)
	assert.Equal(t, TurnEventFinish, got[2].Type)
	assert.Equal(t, "end_turn", got[2].StopReason)
	assert.Equal(t, 5, got[2].Usage.InputTokens)
	assert.Equal(t, 2, got[2].Usage.OutputTokens)
}

func TestTurnEventReaderThinkingAndToolCall(t *testing.T) {
	stream := &fakeTurnStream{events: []*llm.Event{
		{Type: llm.EventContentBlockStart, Index: 0, ContentBlock: &llm.EventContentBlock{Type: "thinking"}},
		{Type: llm.EventContentBlockDelta, Index: 0, Delta: &llm.Delta{Type: "thinking_delta", Thinking: "considering..."}},
		{Type: llm.EventContentBlockStop, Index: 0},
		{Type: llm.EventContentBlockStart, Index: 1, ContentBlock: &llm.EventContentBlock{Type: "tool_use", ID: "call-1", Name: "search"}},
		{Type: llm.EventContentBlockDelta, Index: 1, Delta: &llm.Delta{Type: "input_json_delta", PartialJSON: `{"query":`}},
		{Type: llm.EventContentBlockDelta, Index: 1, Delta: &llm.Delta{Type: "input_json_delta", PartialJSON: `"go"}`}},
		{Type: llm.EventContentBlockStop, Index: 1},
		{Type: llm.EventMessageStop},
	}}

	reader := newTurnEventReader(stream)
	defer reader.Close()

	var got []TurnEvent
	for reader.Next(context.Background()) {
		got = append(got, *reader.Event())
	}
	assert.NoError(t, reader.Err())

	assert.Equal(t, 3, len(got))
	assert.Equal(t, TurnEventThinking, got[0].Type)
	assert.Equal(t, "considering...", got[0].Text)
	assert.Equal(t, TurnEventToolCall, got[1].Type)
	assert.Equal(t, "call-1", got[1].ToolCall.ID)
	assert.Equal(t, "search", got[1].ToolCall.Name)
	assert.Equal(t, `{"query":"go"}`, got[1].ToolCall.Input)
	assert.Equal(t, TurnEventFinish, got[2].Type)
}

// TestTurnEventReaderInvalidToolJSON confirms a tool_use block whose
// accumulated partial JSON never parses falls back to "{}" rather than
// propagating malformed input to a tool call.
func TestTurnEventReaderInvalidToolJSON(t *testing.T) {
	stream := &fakeTurnStream{events: []*llm.Event{
		{Type: llm.EventContentBlockStart, Index: 0, ContentBlock: &llm.EventContentBlock{Type: "tool_use", ID: "call-1", Name: "broken"}},
		{Type: llm.EventContentBlockDelta, Index: 0, Delta: &llm.Delta{Type: "input_json_delta", PartialJSON: `{not json`}},
		{Type: llm.EventContentBlockStop, Index: 0},
	}}

	reader := newTurnEventReader(stream)
	defer reader.Close()

	assert.True(t, reader.Next(context.Background()))
	event := reader.Event()
	assert.Equal(t, TurnEventToolCall, event.Type)
	assert.Equal(t, "{}", event.ToolCall.Input)
}

func TestTurnEventReaderStreamError(t *testing.T) {
	stream := &fakeTurnStream{err: fmt.Errorf("connection reset")}

	reader := newTurnEventReader(stream)
	defer reader.Close()

	assert.True(t, reader.Next(context.Background()))
	event := reader.Event()
	assert.Equal(t, TurnEventError, event.Type)
	assert.Error(t, reader.Err())
}

// TestTurnEventReaderEmptyDeltaSkipped confirms a zero-length text delta
// produces no TurnEvent, since translate treats it as a no-op rather
// than an empty text chunk worth surfacing to a caller.
func TestTurnEventReaderEmptyDeltaSkipped(t *testing.T) {
	stream := &fakeTurnStream{events: []*llm.Event{
		{Type: llm.EventContentBlockStart, Index: 0, ContentBlock: &llm.EventContentBlock{Type: "text"}},
		{Type: llm.EventContentBlockDelta, Index: 0, Delta: &llm.Delta{Type: "text_delta", Text: ""}},
		{Type: llm.EventMessageStop},
	}}

	reader := newTurnEventReader(stream)
	defer reader.Close()

	var got []TurnEvent
	for reader.Next(context.Background()) {
		got = append(got, *reader.Event())
	}
	assert.Equal(t, 1, len(got))
	assert.Equal(t, TurnEventFinish, got[0].Type)
}
