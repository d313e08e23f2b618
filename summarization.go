package agentcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/localllm/agentcore/llm"
	"github.com/localllm/agentcore/retry"
)

// SummarizationRequest bundles what the Summarization Service needs to
// build a prompt and run a single streaming request (§4.3).
type SummarizationRequest struct {
	Messages []*Message
	Level    CompressionLevel
	Mode     Mode
	Goal     *Goal
}

// SummarizationResult is returned on both success and failure; Success
// is false without mutating any Active Context state (§4.3).
type SummarizationResult struct {
	Summary    string
	TokenCount int
	Level      CompressionLevel
	Model      string
	Success    bool
	Error      string
}

// levelBudget describes the target length for a compression level's
// summary prompt (§4.3).
type levelBudget struct {
	minWords, maxWords int
}

var levelBudgets = map[CompressionLevel]levelBudget{
	CompressionLevelUltraCompact: {minWords: 50, maxWords: 100},
	CompressionLevelModerate:     {minWords: 150, maxWords: 300},
	CompressionLevelDetailed:     {minWords: 300, maxWords: 500},
}

// SummarizationService turns a run of messages into a compact summary
// using a streaming LLM call (§4.3).
type SummarizationService struct {
	model   llm.LLM
	counter TokenCounter
	timeout time.Duration
}

// SummarizationServiceOptions configures a SummarizationService.
type SummarizationServiceOptions struct {
	Model   llm.LLM
	Counter TokenCounter
	Timeout time.Duration // default 30s per §4.3/§5
}

func NewSummarizationService(opts SummarizationServiceOptions) *SummarizationService {
	counter := opts.Counter
	if counter == nil {
		counter = NewTokenCounter()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SummarizationService{model: opts.Model, counter: counter, timeout: timeout}
}

// Summarize builds the three-section prompt (base + mode preservation +
// optional goal block), runs a single streaming request with a hard
// timeout, and validates the produced summary before returning success
// (§4.3). A validation failure or timeout leaves state untouched and
// is reported as {success:false, error:...}.
func (s *SummarizationService) Summarize(ctx context.Context, req SummarizationRequest) *SummarizationResult {
	if s.model == nil {
		return &SummarizationResult{Success: false, Error: "no summarization model configured"}
	}

	prompt := buildSummarizationPrompt(req)
	budget := levelBudgets[req.Level]
	if budget.maxWords == 0 {
		budget = levelBudgets[CompressionLevelModerate]
	}
	maxSummaryTokens := budget.maxWords * 2 // rough words->tokens headroom

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var summaryText string
	err := retry.WithRetry(ctx, func() error {
		stream, err := s.model.Stream(ctx, MessagesToLLM(req.Messages),
			llm.WithSystemPrompt(prompt),
			llm.WithTemperature(0.3),
		)
		if err != nil {
			return err
		}
		text, err := consumeSummaryStream(ctx, stream)
		if err != nil {
			return err
		}
		summaryText = text
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return &SummarizationResult{Success: false, Error: "Timeout: summarization exceeded its deadline"}
		}
		return &SummarizationResult{Success: false, Error: fmt.Sprintf("summarization request failed: %v", err)}
	}

	if strings.TrimSpace(summaryText) == "" {
		return &SummarizationResult{Success: false, Error: "Summary validation failed: empty summary"}
	}

	originalLen := messagesCharLen(req.Messages)
	if reason := validateSummary(summaryText, originalLen, maxSummaryTokens); reason != "" {
		return &SummarizationResult{Success: false, Error: "Summary validation failed: " + reason}
	}

	tokenCount := s.counter.Count("", summaryText)
	modelName := ""
	if named, ok := s.model.(interface{ Name() string }); ok {
		modelName = named.Name()
	}

	return &SummarizationResult{
		Summary:    summaryText,
		TokenCount: tokenCount,
		Level:      req.Level,
		Model:      modelName,
		Success:    true,
	}
}

// validateSummary enforces §4.3's bounds: non-empty, at least 20 chars
// (15 for a very short original), no more than 1.5x the original length
// (2x for a tiny original), and no more than 1.2x the max summary token
// budget. Returns a non-empty reason string on failure.
func validateSummary(summary string, originalLen, maxSummaryTokens int) string {
	minLen := 20
	if originalLen < 100 {
		minLen = 15
	}
	if len(summary) < minLen {
		return fmt.Sprintf("summary too short (%d chars, need >= %d)", len(summary), minLen)
	}

	maxRatio := 1.5
	if originalLen < 200 {
		maxRatio = 2.0
	}
	if originalLen > 0 && float64(len(summary)) > float64(originalLen)*maxRatio {
		return fmt.Sprintf("summary too long relative to original (%d chars vs %.0fx of %d)", len(summary), maxRatio, originalLen)
	}

	estimatedTokens := estimateTokens(summary)
	if maxSummaryTokens > 0 && estimatedTokens > int(float64(maxSummaryTokens)*1.2) {
		return fmt.Sprintf("summary exceeds token budget (%d tokens vs max %d)", estimatedTokens, maxSummaryTokens)
	}
	return ""
}

// buildSummarizationPrompt assembles the base level-dependent prompt,
// the mode-specific preservation instructions, and an optional goal
// block with its marker schema (§4.3).
func buildSummarizationPrompt(req SummarizationRequest) string {
	var b strings.Builder
	b.WriteString(basePromptForLevel(req.Level))
	b.WriteString("\n\n")
	b.WriteString(modePreservationInstructions(req.Mode))
	if req.Goal != nil {
		b.WriteString("\n\n")
		b.WriteString(goalBlock(req.Goal))
	}
	return b.String()
}

func basePromptForLevel(level CompressionLevel) string {
	budget := levelBudgets[level]
	if budget.maxWords == 0 {
		budget = levelBudgets[CompressionLevelModerate]
	}
	switch level {
	case CompressionLevelUltraCompact:
		return fmt.Sprintf("Summarize the conversation below in %d-%d words. Be ultra-compact: list only the decisions and outcomes that matter for resuming work.", budget.minWords, budget.maxWords)
	case CompressionLevelDetailed:
		return fmt.Sprintf("Summarize the conversation below in %d-%d words. Preserve enough technical detail (file paths, function names, exact values) to resume work without re-reading the original messages.", budget.minWords, budget.maxWords)
	default:
		return fmt.Sprintf("Summarize the conversation below in %d-%d words. Preserve the key decisions, open questions, and any concrete results.", budget.minWords, budget.maxWords)
	}
}

func modePreservationInstructions(mode Mode) string {
	switch mode {
	case ModeDeveloper:
		return "Preserve: file paths touched, function/type names introduced, and any commands that were run."
	case ModePlanning:
		return "Preserve: the agreed plan structure, open decisions, and any constraints the user stated."
	case ModeDebugger:
		return "Preserve: the reported symptom, root cause findings, and fixes already attempted."
	default:
		return "Preserve: the user's stated goal and any commitments already made to them."
	}
}

// goalBlock renders the goal description, subtask progress, locked
// decisions, and the last three artifacts using the marker schema the
// compression pipeline's checkpoint extraction recognizes (§4.3).
func goalBlock(goal *Goal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[CHECKPOINT] Goal: %s (status: %s, priority: %d)\n", goal.Description, goal.Status, goal.Priority)

	var completed, inProgress []string
	for _, st := range goal.Subtasks {
		if st.Done {
			completed = append(completed, st.Description)
		} else {
			inProgress = append(inProgress, st.Description)
		}
	}
	if len(completed) > 0 {
		fmt.Fprintf(&b, "Completed subtasks: %s\n", strings.Join(completed, "; "))
	}
	if len(inProgress) > 0 {
		fmt.Fprintf(&b, "In-progress subtasks: %s\n", strings.Join(inProgress, "; "))
	}
	for _, d := range goal.LockedDecisions {
		fmt.Fprintf(&b, "[DECISION] %s\n", d)
	}

	artifacts := goal.ArtifactRefs
	if len(artifacts) > 3 {
		artifacts = artifacts[len(artifacts)-3:]
	}
	for _, a := range artifacts {
		fmt.Fprintf(&b, "[ARTIFACT] %s\n", a)
	}
	return b.String()
}

func messagesCharLen(messages []*Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}

// consumeSummaryStream drains a provider stream for its accumulated
// text, stopping at the first error or finish event. It intentionally
// ignores thinking/tool_call events: the summarizer never calls tools.
func consumeSummaryStream(ctx context.Context, stream llm.Stream) (string, error) {
	defer stream.Close()
	var text strings.Builder
	for stream.Next(ctx) {
		event := stream.Event()
		if event == nil {
			continue
		}
		if event.Delta != nil && event.Delta.Text != "" {
			text.WriteString(event.Delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return text.String(), nil
}
