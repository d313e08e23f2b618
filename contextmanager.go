package agentcore

import (
	"context"
	"sync"
)

// ContextManagerEvent names one of the Context Manager's emitted events
// (§6 "Event bus"). Handlers for a given name run synchronously, in
// registration order (§5).
type ContextManagerEvent string

const (
	EventMemoryWarning      ContextManagerEvent = "memory-warning"
	EventContextWarningLow  ContextManagerEvent = "context-warning-low"
	EventSummarizing        ContextManagerEvent = "summarizing"
	EventCompressed         ContextManagerEvent = "compressed"
	EventAutoSummaryCreated ContextManagerEvent = "auto-summary-created"
	EventAutoSummaryFailed  ContextManagerEvent = "auto-summary-failed"
	EventSessionSaved       ContextManagerEvent = "session_saved"
	EventActiveToolsUpdated ContextManagerEvent = "active-tools-updated"
)

// ContextManagerEventHandler receives a Context Manager event's
// payload: the usage fraction (a float64) for the context-warning-low
// and memory-warning events, a *CompressionOutcome for the
// auto-summary-*/compressed events (nil on auto-summary-failed when the
// pipeline returned an error), nil otherwise.
type ContextManagerEventHandler func(payload any)

// ContextManagerOptions configures a ContextManager.
type ContextManagerOptions struct {
	SystemPrompt string
	Counter      TokenCounter
	Validator    *ValidationService
	Pipeline     *CompressionPipeline
	OllamaLimit  int // the model's advertised context window
	SafetyMargin int // §4.2 effectiveLimit = ollamaLimit - safetyMargin

	// WarnLowThreshold and CompressionThreshold are usage fractions of
	// effectiveLimit (§4.6). Zero values fall back to the spec defaults
	// of 0.70 and 0.85.
	WarnLowThreshold     float64
	CompressionThreshold float64
}

// ContextManager is the facade the Agent Loop drives: it owns the
// Active Context, applies the threshold policy on every mutation, and
// triggers the Compression Engine/Pipeline when usage crosses the
// compression threshold (§4.6).
type ContextManager struct {
	mu sync.Mutex

	active    *ActiveContextManager
	counter   TokenCounter
	validator *ValidationService
	pipeline  *CompressionPipeline

	effectiveLimit       int
	warnLowThreshold     float64
	compressionThreshold float64

	modeManager *ModeManager
	goal        *Goal

	inflightTokens int
	compressing    bool
	warnedLow      bool // edge-triggered: fires once per crossing

	handlers map[ContextManagerEvent][]ContextManagerEventHandler

	snapshots   map[string]ActiveContext
	snapshotSeq int

	// history accumulates one CheckpointRecord per successful
	// compression, the Session History's audit trail for this context
	// (§6 "Persisted state"). AgentLoop copies it into the persisted
	// Session on save.
	history []*CheckpointRecord
}

// NewContextManager builds a ContextManager from the given options.
func NewContextManager(opts ContextManagerOptions) *ContextManager {
	counter := opts.Counter
	if counter == nil {
		counter = NewTokenCounter()
	}
	validator := opts.Validator
	if validator == nil {
		validator = NewValidationService(counter)
	}
	effectiveLimit := EffectiveLimit(opts.OllamaLimit, opts.SafetyMargin)

	warnLow := opts.WarnLowThreshold
	if warnLow <= 0 {
		warnLow = 0.70
	}
	compressionThreshold := opts.CompressionThreshold
	if compressionThreshold <= 0 {
		compressionThreshold = 0.85
	}

	return &ContextManager{
		active:               NewActiveContextManager(opts.SystemPrompt, counter, effectiveLimit),
		counter:              counter,
		validator:            validator,
		pipeline:             opts.Pipeline,
		effectiveLimit:       effectiveLimit,
		warnLowThreshold:     warnLow,
		compressionThreshold: compressionThreshold,
		modeManager:          NewModeManager(),
		handlers:             make(map[ContextManagerEvent][]ContextManagerEventHandler),
		snapshots:            make(map[string]ActiveContext),
	}
}

// On registers a handler for the named event, invoked synchronously in
// registration order (§5, §6).
func (c *ContextManager) On(event ContextManagerEvent, handler ContextManagerEventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Off removes every handler registered for the named event.
func (c *ContextManager) Off(event ContextManagerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

func (c *ContextManager) emit(event ContextManagerEvent, payload any) {
	// emit is always called with c.mu released; the handler list is
	// copied under the lock so handlers run without holding it.
	c.mu.Lock()
	handlers := append([]ContextManagerEventHandler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
}

// AddMessage appends a message to the Active Context, then applies the
// threshold policy (§4.6). Compression runs synchronously from the
// caller's goroutine; the Agent Loop calls this from its single
// executor per §5's scheduling model.
func (c *ContextManager) AddMessage(ctx context.Context, msg *Message) error {
	c.mu.Lock()
	if err := c.active.AddMessage(msg); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.applyThresholdPolicy(ctx)
	return nil
}

// usage returns (tokens+inflight)/effectiveLimit, or 0 if no limit is set.
func (c *ContextManager) usage() float64 {
	if c.effectiveLimit <= 0 {
		return 0
	}
	tokens := c.active.TokenCount() + c.inflightTokens
	return float64(tokens) / float64(c.effectiveLimit)
}

func (c *ContextManager) applyThresholdPolicy(ctx context.Context) {
	c.mu.Lock()
	usage := c.usage()

	if usage >= c.warnLowThreshold {
		if !c.warnedLow {
			c.warnedLow = true
			c.mu.Unlock()
			c.emit(EventContextWarningLow, usage)
			c.mu.Lock()
		}
	} else {
		c.warnedLow = false
	}

	if usage < c.compressionThreshold || c.compressing || c.pipeline == nil {
		c.mu.Unlock()
		return
	}
	c.compressing = true
	currentTokens := c.active.TokenCount()
	goal := c.goal
	c.mu.Unlock()

	c.emit(EventMemoryWarning, usage)
	c.emit(EventSummarizing, nil)

	strategy := RecommendStrategy(currentTokens, c.effectiveLimit)
	outcome, err := c.pipeline.Compress(ctx, CompressionOptions{
		Strategy:     strategy,
		Goal:         goal,
		OnCheckpoint: c.recordCheckpoint,
	})

	c.mu.Lock()
	c.compressing = false
	c.mu.Unlock()

	if err != nil || !outcome.Success {
		c.emit(EventAutoSummaryFailed, outcome)
		return
	}
	c.emit(EventCompressed, outcome)
	c.emit(EventAutoSummaryCreated, outcome)
}

// recordCheckpoint appends a completed compression's CheckpointRecord to
// the in-memory Session History mirror. Wired as CompressionOptions.OnCheckpoint
// so every compression this manager drives is auditable (§6).
func (c *ContextManager) recordCheckpoint(record *CheckpointRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, record)
}

// History returns every CheckpointRecord produced by a compression this
// manager has driven, oldest first.
func (c *ContextManager) History() []*CheckpointRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*CheckpointRecord(nil), c.history...)
}

// IsSummarizationInProgress reports whether a compression is currently
// running; re-entry is rejected while this is true (§4.6, §5).
func (c *ContextManager) IsSummarizationInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compressing
}

// ReportInflightTokens adds n to the in-flight token accumulator
// (§4.6, §5). Values are additive until ClearInflightTokens.
func (c *ContextManager) ReportInflightTokens(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflightTokens += n
}

// ClearInflightTokens resets the in-flight accumulator to zero.
func (c *ContextManager) ClearInflightTokens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflightTokens = 0
}

// GetContext returns the current Active Context.
func (c *ContextManager) GetContext() ActiveContext {
	return c.active.Snapshot()
}

// GetUsage returns the current usage fraction (tokens+inflight)/effectiveLimit.
func (c *ContextManager) GetUsage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage()
}

// GetSystemPrompt returns the Active Context's current system prompt.
func (c *ContextManager) GetSystemPrompt() string {
	return c.active.Snapshot().SystemPrompt
}

// SetMode switches the mode manager and updates the system prompt to
// the new mode's tier-prompt (§3.6, §4.8 step 2). The caller supplies
// the model's context window so the right tier is selected.
func (c *ContextManager) SetMode(mode Mode, contextWindow int) error {
	if err := c.modeManager.SetMode(mode); err != nil {
		return err
	}
	tier := TierForContextWindow(contextWindow)
	c.active.SetSystemPrompt(tierPrompt(mode, tier))
	return nil
}

// Mode returns the current mode.
func (c *ContextManager) Mode() Mode { return c.modeManager.Mode() }

// SetGoal attaches (or clears, with nil) the goal used in summarization
// prompts.
func (c *ContextManager) SetGoal(goal *Goal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goal = goal
}

// Clear resets the Active Context to an empty window with the given
// system prompt, discarding all checkpoints and recent messages.
func (c *ContextManager) Clear(systemPrompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = NewActiveContextManager(systemPrompt, c.counter, c.effectiveLimit)
	c.inflightTokens = 0
	c.warnedLow = false
}

// CreateSnapshot captures the current Active Context as an immutable
// record and returns its id (§4.6), for rollback on mode transitions.
func (c *ContextManager) CreateSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotSeq++
	id := newSnapshotID()
	c.snapshots[id] = c.active.Snapshot()
	return id
}

// RestoreSnapshot rolls the Active Context back to a previously
// captured snapshot.
func (c *ContextManager) RestoreSnapshot(id string) bool {
	c.mu.Lock()
	snapshot, ok := c.snapshots[id]
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.active.restore(snapshot)
	return true
}
