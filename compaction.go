package agentcore

import (
	"regexp"
	"strings"
	"time"

	"github.com/localllm/agentcore/llm"
)

// DefaultContextTokenThreshold is the default token count that triggers compaction.
const DefaultContextTokenThreshold = 100000

// minCompactionMessages is the floor below which compaction never
// triggers, regardless of token usage: summarizing a two-line exchange
// would lose more than it saves.
const minCompactionMessages = 4

// CalculateContextTokens sums the usage components that persist into
// the next turn's context: input tokens plus tokens served from cache.
// Output tokens and freshly written cache-creation tokens don't count,
// since neither survives into the following request's input.
func CalculateContextTokens(usage *llm.Usage) int {
	if usage == nil {
		return 0
	}
	return usage.InputTokens + usage.CacheReadInputTokens
}

// ShouldCompact reports whether compaction should run given the last
// known usage, the current message count, and a token threshold
// (DefaultContextTokenThreshold when threshold <= 0).
func ShouldCompact(usage *llm.Usage, messageCount, threshold int) bool {
	if messageCount < minCompactionMessages {
		return false
	}
	if threshold <= 0 {
		threshold = DefaultContextTokenThreshold
	}
	return CalculateContextTokens(usage) >= threshold
}

var summaryTagPattern = regexp.MustCompile(`(?is)<summary>(.*?)</summary>`)

// extractSummary pulls the content of a <summary>...</summary> block
// out of model output, case-insensitively, trimming surrounding
// whitespace. Returns "" if the tags are missing or empty.
func extractSummary(text string) string {
	match := summaryTagPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// filterPendingToolUse drops a trailing, unresolved tool_use content
// block from the last message before sending history to a summarizer:
// a summarization request is not going to supply the matching
// tool_result, so sending a dangling tool_use would leave the prompt
// referencing a call that's never answered. A message left with no
// content after filtering is dropped entirely.
func filterPendingToolUse(messages []*llm.Message) []*llm.Message {
	if len(messages) == 0 {
		return messages
	}
	last := messages[len(messages)-1]
	if last.Role != llm.Assistant {
		return messages
	}

	filtered := make([]llm.Content, 0, len(last.Content))
	hasToolUse := false
	for _, c := range last.Content {
		if _, ok := c.(*llm.ToolUseContent); ok {
			hasToolUse = true
			continue
		}
		filtered = append(filtered, c)
	}
	if !hasToolUse {
		return messages
	}
	if len(filtered) == 0 {
		return messages[:len(messages)-1]
	}

	out := make([]*llm.Message, len(messages))
	copy(out, messages)
	out[len(out)-1] = &llm.Message{ID: last.ID, Role: last.Role, Content: filtered}
	return out
}

// DefaultCompactionSummaryPrompt is the default prompt used to generate summaries.
// Based on Anthropic's SDK compaction spec.
const DefaultCompactionSummaryPrompt = `You have been working on the task described above but have not yet completed it. Write a continuation summary that will allow you (or another instance of yourself) to resume work efficiently in a future context window where the conversation history will be replaced with this summary. Your summary should be structured, concise, and actionable. Include:

1. Task Overview
The user's core request and success criteria
Any clarifications or constraints they specified

2. Current State
What has been completed so far
Files created, modified, or analyzed (with paths if relevant)
Key outputs or artifacts produced

3. Important Discoveries
Technical constraints or requirements uncovered
Decisions made and their rationale
Errors encountered and how they were resolved
What approaches were tried that didn't work (and why)

4. Next Steps
Specific actions needed to complete the task
Any blockers or open questions to resolve
Priority order if multiple steps remain

5. Context to Preserve
User preferences or style requirements
Domain-specific details that aren't obvious
Any promises made to the user

Be concise but complete—err on the side of including information that would prevent duplicate work or repeated mistakes. Write in a way that enables immediate resumption of the task.

Wrap your summary in <summary></summary> tags.`

// CompactionConfig configures client-side context compaction.
// When enabled, the agent will monitor token usage and automatically
// summarize the conversation when thresholds are exceeded.
type CompactionConfig struct {
	// Enabled must be true to activate compaction.
	Enabled bool `json:"enabled"`

	// ContextTokenThreshold is the token count that triggers compaction.
	// Default: 100000 (100k tokens).
	// Total tokens are calculated by CalculateContextTokens as:
	// InputTokens + CacheReadInputTokens (OutputTokens and
	// CacheCreationInputTokens are not counted).
	ContextTokenThreshold int `json:"context_token_threshold,omitempty"`

	// Model is an optional LLM to use for summary generation.
	// If nil, uses the agent's primary model.
	Model llm.LLM `json:"-"`

	// SummaryPrompt is the prompt used to generate summaries.
	// If empty, uses DefaultCompactionSummaryPrompt.
	SummaryPrompt string `json:"summary_prompt,omitempty"`
}

// CompactionEvent is emitted when context compaction occurs.
type CompactionEvent struct {
	// TokensBefore is the total token count before compaction.
	TokensBefore int `json:"tokens_before"`

	// TokensAfter is the token count after compaction.
	TokensAfter int `json:"tokens_after"`

	// Summary is the generated summary text.
	Summary string `json:"summary"`

	// MessagesCompacted is the number of messages that were replaced.
	MessagesCompacted int `json:"messages_compacted"`
}

// CompactionRecord tracks a compaction event in thread history.
type CompactionRecord struct {
	// Timestamp is when the compaction occurred.
	Timestamp time.Time `json:"timestamp"`

	// TokensBefore is the total token count before compaction.
	TokensBefore int `json:"tokens_before"`

	// TokensAfter is the token count after compaction.
	TokensAfter int `json:"tokens_after"`

	// MessagesCompacted is the number of messages that were replaced.
	MessagesCompacted int `json:"messages_compacted"`
}

// CheckpointRecord is the Session History's entry for one Compression
// Pipeline run. It's built during stage 4 ("Checkpoint creation",
// §4.4) but only handed to CompressionOptions.OnCheckpoint once stage 6
// validates the committed checkpoint, so the record always carries the
// checkpoint's final ID and never describes a run that was rolled back.
type CheckpointRecord struct {
	CheckpointID     string    `json:"checkpoint_id"`
	Timestamp        time.Time `json:"timestamp"`
	OriginalTokens   int       `json:"original_tokens"`
	CompressedTokens int       `json:"compressed_tokens"`
	Ratio            float64   `json:"ratio"`
	Level            CompressionLevel `json:"level"`
	Strategy         CompressionStrategy `json:"strategy"`
}
