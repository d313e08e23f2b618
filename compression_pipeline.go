package agentcore

import (
	"context"
	"fmt"
	"strings"
)

// ProgressFunc reports the Compression Pipeline's progress. percent is
// monotonically non-decreasing across a single Compress call and
// terminates at 100 (§4.4).
type ProgressFunc func(stage string, percent int, message string)

// CompressionOptions configures one Compress call.
type CompressionOptions struct {
	Strategy  CompressionStrategy
	Goal      *Goal
	Progress  ProgressFunc
	SessionID string

	// OnCheckpoint, if set, is called with the compression's
	// CheckpointRecord once stage 6 validation has passed; a compression
	// that aborts or is rolled back records nothing. The Context Manager
	// wires this to its Session History append.
	OnCheckpoint func(*CheckpointRecord)

	// Trace, if set, receives a context snapshot and a unified diff of
	// the Active Context text around the stage 5 mutation, so a caller
	// can inspect exactly what compaction changed.
	Trace TraceSink
}

// CompressionOutcome is Compress's result on every path, success or
// failure (§4.4's failure model: `{ success, reason, error? }`).
type CompressionOutcome struct {
	Success          bool
	Reason           string
	Err              error
	Checkpoint       *Checkpoint
	OriginalTokens   int
	CompressedTokens int
	FreedTokens      int
}

// CompressionPipeline runs the six-stage compaction described in §4.4,
// driving an ActiveContextManager through the Summarization Service and
// back through the Validation Service before committing.
type CompressionPipeline struct {
	activeContext *ActiveContextManager
	summarizer    *SummarizationService
	validator     *ValidationService
	counter       TokenCounter
	effectiveLimit int
}

// NewCompressionPipeline wires the pipeline's collaborators. counter
// defaults to the default token counter when nil.
func NewCompressionPipeline(activeContext *ActiveContextManager, summarizer *SummarizationService, validator *ValidationService, counter TokenCounter, effectiveLimit int) *CompressionPipeline {
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &CompressionPipeline{
		activeContext:  activeContext,
		summarizer:     summarizer,
		validator:      validator,
		counter:        counter,
		effectiveLimit: effectiveLimit,
	}
}

func (p *CompressionPipeline) report(fn ProgressFunc, stage string, percent int, message string) {
	if fn != nil {
		fn(stage, percent, message)
	}
}

// joinMessageText renders a slice of Active Context messages as plain
// text, one message per line, for TraceSink snapshots and diffs.
func joinMessageText(messages []*Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("[%s] %s", m.Role, m.Content)
	}
	return strings.Join(lines, "\n")
}

// Compress runs all six stages against the pipeline's Active Context.
// Every return is non-nil; callers distinguish success/failure via
// outcome.Success rather than a returned error, matching §4.4's
// `{success, reason, error?}` failure model — the error return is only
// non-nil for a caller-facing configuration mistake (no Active Context
// wired).
func (p *CompressionPipeline) Compress(ctx context.Context, opts CompressionOptions) (*CompressionOutcome, error) {
	if p.activeContext == nil {
		return nil, fmt.Errorf("compression pipeline: no active context configured")
	}
	progress := opts.Progress
	params := StrategyParams(opts.Strategy)

	// Stage 1: Identification (0->15%).
	p.report(progress, "identification", 0, "selecting compression targets")
	recent := p.activeContext.Recent()
	targets := compressionTargets(recent, params)
	if len(targets) < 2 {
		p.report(progress, "identification", 15, "no messages to compress")
		return &CompressionOutcome{Success: false, Reason: "No messages to compress", Err: ErrNoMessagesToCompress}, nil
	}
	p.report(progress, "identification", 15, fmt.Sprintf("%d messages selected", len(targets)))

	// Stage 2: Preparation (15->25%).
	originalTokens := 0
	targetIDs := make([]string, 0, len(targets))
	for _, m := range targets {
		originalTokens += m.TokenCount
		targetIDs = append(targetIDs, m.ID)
	}
	level := params.Level
	switch {
	case originalTokens > 3000:
		level = CompressionLevelDetailed
	case originalTokens > 2000:
		level = CompressionLevelModerate
	default:
		level = CompressionLevelUltraCompact
	}
	p.report(progress, "preparation", 25, fmt.Sprintf("original tokens %d, level %d", originalTokens, level))

	// Stage 3: Summarization (25->70%).
	result := p.summarizer.Summarize(ctx, SummarizationRequest{
		Messages: targets,
		Level:    level,
		Goal:     opts.Goal,
	})
	if !result.Success {
		p.report(progress, "summarization", 70, "summarization failed")
		return &CompressionOutcome{Success: false, Reason: "Summarization failed", Err: newCompressionError("summarization failed", fmt.Errorf("%s", result.Error))}, nil
	}
	p.report(progress, "summarization", 70, "summary generated")

	// Stage 4: Checkpoint creation (70->80%).
	checkpoint := &Checkpoint{
		Summary:        result.Summary,
		Level:          level,
		TokenCount:     result.TokenCount,
		ProducingModel: result.Model,
	}
	ratio := 0.0
	if originalTokens > 0 {
		ratio = float64(result.TokenCount) / float64(originalTokens)
	}
	p.report(progress, "checkpoint_creation", 80, fmt.Sprintf("checkpoint holds %d tokens (ratio %.2f)", result.TokenCount, ratio))

	// Stage 5: Context update (80->90%), atomic. A snapshot is kept so a
	// stage-6 validation failure can be rolled back, since Active
	// Context must read as unchanged on every failure path (§8).
	freedTokens := originalTokens - result.TokenCount
	if freedTokens <= 0 {
		p.report(progress, "context_update", 90, "compression did not reduce token count")
		return &CompressionOutcome{Success: false, Reason: "Compression did not reduce token count", Err: ErrNoReduction}, nil
	}
	preUpdate := p.activeContext.Snapshot()
	if opts.Trace != nil {
		opts.Trace.Record(ContextSnapshotRecord(opts.SessionID, joinMessageText(preUpdate.Recent)))
	}
	if err := p.activeContext.ReplaceWithCheckpoint(targetIDs, checkpoint); err != nil {
		p.report(progress, "context_update", 90, "context update failed")
		return &CompressionOutcome{Success: false, Reason: "Context update failed", Err: newCompressionError("context update failed", err)}, nil
	}
	p.report(progress, "context_update", 90, fmt.Sprintf("freed %d tokens", freedTokens))

	// Stage 6: Validation (90->100%). The effective limit bounds the
	// whole Active Context, not just the recent run, so checkpoint and
	// system-prompt tokens are folded into the validated total as
	// synthetic entries alongside postRecent (§4.4 stage 6; mirrors the
	// three-part sum ActiveContext.TokenCount already performs).
	postSnapshot := p.activeContext.Snapshot()
	postRecent := postSnapshot.Recent
	validationSet := make([]*Message, 0, len(postRecent)+len(postSnapshot.Checkpoints)+1)
	validationSet = append(validationSet, postRecent...)
	for _, cp := range postSnapshot.Checkpoints {
		validationSet = append(validationSet, &Message{TokenCount: cp.TokenCount})
	}
	if postSnapshot.SystemPrompt != "" {
		validationSet = append(validationSet, &Message{TokenCount: p.counter.Count("", postSnapshot.SystemPrompt)})
	}
	if valid := p.validator.Validate(validationSet, p.effectiveLimit); !valid.Valid {
		p.activeContext.restore(preUpdate)
		p.report(progress, "validation", 100, "post-compression validation failed")
		return &CompressionOutcome{
			Success: false,
			Reason:  "Compression failed validation",
			Err:     ErrCompressionValidationFailed,
		}, nil
	}
	if opts.Trace != nil {
		opts.Trace.Record(CompressionDiffRecord(opts.SessionID, joinMessageText(preUpdate.Recent), joinMessageText(postRecent)))
	}
	p.report(progress, "validation", 100, "compression complete")

	if opts.OnCheckpoint != nil {
		opts.OnCheckpoint(&CheckpointRecord{
			CheckpointID:     checkpoint.ID,
			Timestamp:        checkpoint.Timestamp,
			OriginalTokens:   originalTokens,
			CompressedTokens: result.TokenCount,
			Ratio:            ratio,
			Level:            level,
			Strategy:         opts.Strategy,
		})
	}

	return &CompressionOutcome{
		Success:          true,
		Checkpoint:       checkpoint,
		OriginalTokens:   originalTokens,
		CompressedTokens: result.TokenCount,
		FreedTokens:      freedTokens,
	}, nil
}
