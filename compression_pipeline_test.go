package agentcore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/wonton/assert"
	"github.com/localllm/agentcore/llm"
)

// fakeSummaryStream replays a fixed set of events synchronously, no
// channel or goroutine required since the pipeline tests don't need to
// exercise concurrent delivery.
type fakeSummaryStream struct {
	events []*llm.Event
	idx    int
}

func (s *fakeSummaryStream) Next(ctx context.Context) bool {
	if s.idx >= len(s.events) {
		return false
	}
	s.idx++
	return true
}

func (s *fakeSummaryStream) Event() *llm.Event { return s.events[s.idx-1] }
func (s *fakeSummaryStream) Err() error        { return nil }
func (s *fakeSummaryStream) Close() error      { return nil }

// fakeSummaryModel is an llm.LLM whose Stream method returns a
// preconfigured summary, so the Summarization Service's prompt
// building and validation can be exercised without a live provider.
type fakeSummaryModel struct {
	text      string
	streamErr error
}

func (m *fakeSummaryModel) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (*llm.Response, error) {
	return nil, fmt.Errorf("fakeSummaryModel: generate not supported")
}

func (m *fakeSummaryModel) Stream(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (llm.Stream, error) {
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return &fakeSummaryStream{events: []*llm.Event{{Delta: &llm.Delta{Text: m.text}}}}, nil
}

func (m *fakeSummaryModel) SupportsStreaming() bool { return true }

// newTestPipeline builds a pipeline over a fresh ActiveContextManager
// seeded with 10 alternating user/assistant messages; with the standard
// strategy's KeepRecent of 5, the two early assistant messages (indices
// 1 and 3) are the only compression targets.
func newTestPipeline(t *testing.T, model llm.LLM) (*CompressionPipeline, *ActiveContextManager) {
	t.Helper()
	counter := NewTokenCounter()
	activeContext := NewActiveContextManager("system prompt", counter, 1_000_000)

	longTurn := strings.Repeat("repeatable assistant content for compaction testing. ", 20)
	for i := 0; i < 10; i++ {
		role := RoleUser
		content := fmt.Sprintf("user turn %d", i)
		if i%2 == 1 {
			role = RoleAssistant
			content = fmt.Sprintf("assistant turn %d: %s", i, longTurn)
		}
		assert.NoError(t, activeContext.AddMessage(&Message{Role: role, Content: content}))
	}

	summarizer := NewSummarizationService(SummarizationServiceOptions{Model: model, Counter: counter})
	validator := NewValidationService(counter)
	pipeline := NewCompressionPipeline(activeContext, summarizer, validator, counter, 1_000_000)
	return pipeline, activeContext
}

func TestCompressionPipeline_Compress(t *testing.T) {
	t.Run("succeeds and replaces targets with a checkpoint", func(t *testing.T) {
		model := &fakeSummaryModel{text: "Summary: two early assistant turns covered repeated compaction test content."}
		pipeline, activeContext := newTestPipeline(t, model)

		beforeRecent := activeContext.Recent()
		trace := NewMemoryTraceSink()
		var stages []string

		outcome, err := pipeline.Compress(context.Background(), CompressionOptions{
			Strategy:  StrategyStandard,
			SessionID: "session-1",
			Trace:     trace,
			Progress: func(stage string, percent int, message string) {
				stages = append(stages, stage)
			},
		})
		assert.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Greater(t, outcome.FreedTokens, 0)
		assert.NotNil(t, outcome.Checkpoint)
		assert.Equal(t, model.text, outcome.Checkpoint.Summary)

		checkpoints := activeContext.Checkpoints()
		assert.Len(t, checkpoints, 1)
		assert.Equal(t, []string{beforeRecent[1].ID, beforeRecent[3].ID}, checkpoints[0].OriginalMessageIDs)

		afterRecent := activeContext.Recent()
		assert.Equal(t, len(beforeRecent)-2, len(afterRecent))
		for _, m := range afterRecent {
			assert.NotEqual(t, beforeRecent[1].ID, m.ID)
			assert.NotEqual(t, beforeRecent[3].ID, m.ID)
		}

		stageLog := strings.Join(stages, ",")
		assert.Contains(t, stageLog, "identification")
		assert.Contains(t, stageLog, "validation")

		records := trace.Records()
		assert.Len(t, records, 2)
		assert.Equal(t, TraceRecordContextSnapshot, records[0].Type)
		assert.Equal(t, TraceRecordCompressionDiff, records[1].Type)
		assert.Equal(t, "session-1", records[0].SessionID)
	})

	t.Run("reports no messages to compress on a near-empty context", func(t *testing.T) {
		model := &fakeSummaryModel{text: "irrelevant"}
		counter := NewTokenCounter()
		activeContext := NewActiveContextManager("system", counter, 0)
		assert.NoError(t, activeContext.AddMessage(&Message{Role: RoleUser, Content: "hi"}))

		summarizer := NewSummarizationService(SummarizationServiceOptions{Model: model, Counter: counter})
		validator := NewValidationService(counter)
		pipeline := NewCompressionPipeline(activeContext, summarizer, validator, counter, 1_000_000)

		outcome, err := pipeline.Compress(context.Background(), CompressionOptions{Strategy: StrategyStandard})
		assert.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "No messages to compress", outcome.Reason)
		assert.ErrorIs(t, outcome.Err, ErrNoMessagesToCompress)
	})

	t.Run("reports summarization failure without mutating the active context", func(t *testing.T) {
		model := &fakeSummaryModel{text: ""}
		pipeline, activeContext := newTestPipeline(t, model)
		before := activeContext.Recent()

		outcome, err := pipeline.Compress(context.Background(), CompressionOptions{Strategy: StrategyStandard})
		assert.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "Summarization failed", outcome.Reason)

		after := activeContext.Recent()
		assert.Equal(t, len(before), len(after))
	})

	t.Run("rolls back the active context when stage 6 validation fails", func(t *testing.T) {
		model := &fakeSummaryModel{text: "Summary: two early assistant turns covered repeated compaction test content."}
		counter := NewTokenCounter()
		activeContext := NewActiveContextManager("system prompt", counter, 1_000_000)

		longTurn := strings.Repeat("repeatable assistant content for compaction testing. ", 20)
		for i := 0; i < 10; i++ {
			role := RoleUser
			content := fmt.Sprintf("user turn %d", i)
			if i%2 == 1 {
				role = RoleAssistant
				content = fmt.Sprintf("assistant turn %d: %s", i, longTurn)
			}
			assert.NoError(t, activeContext.AddMessage(&Message{Role: role, Content: content}))
		}

		summarizer := NewSummarizationService(SummarizationServiceOptions{Model: model, Counter: counter})
		validator := NewValidationService(counter)
		// An effectiveLimit of 1 guarantees stage 6 rejects the
		// post-compression token total however small it ends up.
		pipeline := NewCompressionPipeline(activeContext, summarizer, validator, counter, 1)

		before := activeContext.Snapshot()

		outcome, err := pipeline.Compress(context.Background(), CompressionOptions{Strategy: StrategyStandard})
		assert.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "Compression failed validation", outcome.Reason)
		assert.ErrorIs(t, outcome.Err, ErrCompressionValidationFailed)

		after := activeContext.Snapshot()
		assert.Equal(t, before.SystemPrompt, after.SystemPrompt)
		assert.Len(t, after.Checkpoints, len(before.Checkpoints))
		assert.Equal(t, len(before.Recent), len(after.Recent))
		for i, m := range before.Recent {
			assert.Equal(t, m.ID, after.Recent[i].ID)
			assert.Equal(t, m.Content, after.Recent[i].Content)
		}
	})

	t.Run("requires a configured active context", func(t *testing.T) {
		pipeline := NewCompressionPipeline(nil, nil, nil, nil, 1000)
		_, err := pipeline.Compress(context.Background(), CompressionOptions{})
		assert.Error(t, err)
	})
}
