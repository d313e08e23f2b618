package agentcore

import (
	"fmt"
	"sync"
	"time"
)

// ActiveContext is the window the Agent Loop actually sends to a model:
// a system prompt, an ordered run of checkpoints standing in for
// compressed history, and an ordered run of recent messages still kept
// verbatim (§3 "Active Context").
type ActiveContext struct {
	SystemPrompt string
	Checkpoints  []*Checkpoint
	Recent       []*Message
}

// TokenCount sums the checkpoint and recent-message token counts plus
// the system prompt's own estimate — what the Context Manager compares
// against its thresholds (§4.1, §4.4).
func (c *ActiveContext) TokenCount(counter TokenCounter) int {
	total := counter.Count("", c.SystemPrompt)
	for _, cp := range c.Checkpoints {
		total += cp.TokenCount
	}
	for _, m := range c.Recent {
		total += m.TokenCount
	}
	return total
}

// invariantViolationError reports a broken ActiveContextManager
// invariant (§3): these indicate a caller bug, not a runtime condition
// to recover from, so they're returned rather than panicking, leaving
// the decision to the caller.
type invariantViolationError struct {
	msg string
}

func (e *invariantViolationError) Error() string { return "active context invariant violated: " + e.msg }

// ActiveContextManager owns a single ActiveContext and enforces its
// four invariants on every mutation (§3):
//
//  1. recent message ids are unique
//  2. no checkpoint's OriginalMessageIDs overlaps the current recent set
//  3. TokenCount never exceeds hardLimit once counted; capacity errors
//     are reported rather than silently admitted
//  4. checkpoint SequenceNumber is strictly increasing
type ActiveContextManager struct {
	mu        sync.Mutex
	ctx       ActiveContext
	counter   TokenCounter
	hardLimit int
	recentIDs map[string]struct{}
}

// NewActiveContextManager builds a manager with an empty context. A
// zero hardLimit disables the capacity check (callers that only need
// bookkeeping, e.g. tests).
func NewActiveContextManager(systemPrompt string, counter TokenCounter, hardLimit int) *ActiveContextManager {
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &ActiveContextManager{
		ctx:       ActiveContext{SystemPrompt: systemPrompt},
		counter:   counter,
		hardLimit: hardLimit,
		recentIDs: make(map[string]struct{}),
	}
}

// Snapshot returns a copy of the current ActiveContext safe for the
// caller to read without holding the manager's lock.
func (m *ActiveContextManager) Snapshot() ActiveContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := ActiveContext{
		SystemPrompt: m.ctx.SystemPrompt,
		Checkpoints:  append([]*Checkpoint(nil), m.ctx.Checkpoints...),
		Recent:       append([]*Message(nil), m.ctx.Recent...),
	}
	return out
}

// TokenCount reports the current window's total token usage.
func (m *ActiveContextManager) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx.TokenCount(m.counter)
}

// SetSystemPrompt replaces the system prompt (e.g. on a mode switch).
func (m *ActiveContextManager) SetSystemPrompt(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx.SystemPrompt = prompt
}

// AddMessage appends a message to the recent run, assigning it an id
// if it doesn't already have one, and enforces invariants 1 and 3.
func (m *ActiveContextManager) AddMessage(msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = newMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.TokenCount == 0 && msg.Content != "" {
		msg.TokenCount = m.counter.Count(msg.ID, msg.Content)
	}

	if _, exists := m.recentIDs[msg.ID]; exists {
		return &invariantViolationError{msg: fmt.Sprintf("duplicate recent message id %q", msg.ID)}
	}

	candidate := append(append([]*Message(nil), m.ctx.Recent...), msg)
	if m.hardLimit > 0 {
		tentative := ActiveContext{SystemPrompt: m.ctx.SystemPrompt, Checkpoints: m.ctx.Checkpoints, Recent: candidate}
		tokens := tentative.TokenCount(m.counter)
		if tokens > m.hardLimit {
			return &CapacityExceededError{Tokens: tokens, Limit: m.hardLimit, Overage: tokens - m.hardLimit}
		}
	}

	m.ctx.Recent = candidate
	m.recentIDs[msg.ID] = struct{}{}
	return nil
}

// ReplaceWithCheckpoint atomically removes the messages named by
// originalIDs from the recent run and appends a new checkpoint in
// their place, enforcing invariants 2 and 4. It's the only mutation
// the Compression Pipeline's Context Update stage performs (§5.3): the
// recent-message removal and checkpoint insertion happen together so
// no observer ever sees a context missing messages but not yet holding
// their replacement summary.
func (m *ActiveContextManager) ReplaceWithCheckpoint(originalIDs []string, checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	removeSet := make(map[string]struct{}, len(originalIDs))
	for _, id := range originalIDs {
		removeSet[id] = struct{}{}
	}

	if checkpoint.ID == "" {
		checkpoint.ID = newCheckpointID()
	}
	if checkpoint.Timestamp.IsZero() {
		checkpoint.Timestamp = time.Now()
	}
	checkpoint.OriginalMessageIDs = append([]string(nil), originalIDs...)

	if len(m.ctx.Checkpoints) > 0 {
		last := m.ctx.Checkpoints[len(m.ctx.Checkpoints)-1]
		if checkpoint.SequenceNumber <= last.SequenceNumber {
			checkpoint.SequenceNumber = last.SequenceNumber + 1
		}
	} else if checkpoint.SequenceNumber <= 0 {
		checkpoint.SequenceNumber = 1
	}

	remaining := make([]*Message, 0, len(m.ctx.Recent))
	for _, msg := range m.ctx.Recent {
		if _, drop := removeSet[msg.ID]; drop {
			delete(m.recentIDs, msg.ID)
			continue
		}
		remaining = append(remaining, msg)
	}

	for id := range removeSet {
		if _, stillPresent := m.recentIDs[id]; stillPresent {
			return &invariantViolationError{msg: fmt.Sprintf("checkpoint references id %q still present after removal", id)}
		}
	}

	m.ctx.Recent = remaining
	m.ctx.Checkpoints = append(m.ctx.Checkpoints, checkpoint)
	return nil
}

// restore replaces the manager's state wholesale with a prior snapshot,
// used by the Compression Pipeline to roll back stage 5's mutation when
// stage 6 (Validation) rejects the result (§4.4).
func (m *ActiveContextManager) restore(snapshot ActiveContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ActiveContext{
		SystemPrompt: snapshot.SystemPrompt,
		Checkpoints:  append([]*Checkpoint(nil), snapshot.Checkpoints...),
		Recent:       append([]*Message(nil), snapshot.Recent...),
	}
	m.recentIDs = make(map[string]struct{}, len(m.ctx.Recent))
	for _, msg := range m.ctx.Recent {
		m.recentIDs[msg.ID] = struct{}{}
	}
}

// Checkpoints returns the current checkpoint run.
func (m *ActiveContextManager) Checkpoints() []*Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Checkpoint(nil), m.ctx.Checkpoints...)
}

// Recent returns the current recent-message run.
func (m *ActiveContextManager) Recent() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Message(nil), m.ctx.Recent...)
}
