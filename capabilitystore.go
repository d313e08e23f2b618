package agentcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCapabilityNotFound is returned when accessing a model capability
// record that does not exist.
var ErrCapabilityNotFound = fmt.Errorf("model capability not found")

// ToolSupportSource records how a model's ToolSupport value was
// determined: a user explicitly confirmed it, or the runtime learning
// flow inferred it from a TOOL_UNSUPPORTED provider error (§6
// "Persisted state").
type ToolSupportSource string

const (
	ToolSupportUserConfirmed ToolSupportSource = "user_confirmed"
	ToolSupportAutoDetected  ToolSupportSource = "auto_detected"
)

// ModelCapability is one model's persisted capability record (§6
// "Persisted state": `{ id, name, tool_support, tool_support_source,
// tool_support_confirmed_at, context_profiles, default_context, … }`).
type ModelCapability struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// ToolSupport is nil until either a user confirms it or the
	// learning flow observes a TOOL_UNSUPPORTED error, matching the
	// three-state "unknown / supported / unsupported" lifecycle tools
	// go through before their first successful or failed call.
	ToolSupport            *bool             `json:"tool_support,omitempty"`
	ToolSupportSource      ToolSupportSource `json:"tool_support_source,omitempty"`
	ToolSupportConfirmedAt time.Time         `json:"tool_support_confirmed_at,omitempty"`

	// ContextProfiles maps a profile name (e.g. "default", "large") to
	// a context window size in tokens, and DefaultContext selects which
	// profile a new session for this model starts with.
	ContextProfiles map[string]int `json:"context_profiles,omitempty"`
	DefaultContext  string         `json:"default_context,omitempty"`
}

// CapabilityStore persists per-model tool-support and context-profile
// records. The Agent Loop's TOOL_UNSUPPORTED learning flow (§6) writes
// through this interface (the loop never reads it back) rather than holding capability
// state itself, so the decision of whether a disablement is
// session-scoped or permanent is entirely the caller's to make: a
// caller that wants "session only" simply never persists the auto
// update past the process lifetime (e.g. by using MemoryCapabilityStore
// with no backing store behind it).
type CapabilityStore interface {
	// Get retrieves a model's capability record. Returns
	// ErrCapabilityNotFound if no record exists yet.
	Get(ctx context.Context, modelID string) (*ModelCapability, error)

	// Put creates or replaces a model's capability record.
	Put(ctx context.Context, capability *ModelCapability) error

	// List returns every known capability record, order unspecified.
	List(ctx context.Context) ([]*ModelCapability, error)

	// RecordToolSupport updates a model's tool_support field and stamps
	// tool_support_confirmed_at to now, creating the record if it
	// doesn't exist yet. source distinguishes a user's explicit choice
	// from the auto-detection the learning flow performs on
	// TOOL_UNSUPPORTED.
	RecordToolSupport(ctx context.Context, modelID string, supported bool, source ToolSupportSource) (*ModelCapability, error)
}

// MemoryCapabilityStore is an in-memory CapabilityStore. Suitable for
// development, testing, and single-instance deployments; state does
// not survive a process restart. All operations are thread-safe.
type MemoryCapabilityStore struct {
	mu           sync.RWMutex
	capabilities map[string]*ModelCapability
	now          func() time.Time
}

// NewMemoryCapabilityStore creates an empty MemoryCapabilityStore.
func NewMemoryCapabilityStore() *MemoryCapabilityStore {
	return &MemoryCapabilityStore{
		capabilities: make(map[string]*ModelCapability),
		now:          time.Now,
	}
}

func (s *MemoryCapabilityStore) Get(ctx context.Context, modelID string) (*ModelCapability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	capability, ok := s.capabilities[modelID]
	if !ok {
		return nil, ErrCapabilityNotFound
	}
	return capability, nil
}

func (s *MemoryCapabilityStore) Put(ctx context.Context, capability *ModelCapability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capabilities[capability.ID] = capability
	return nil
}

func (s *MemoryCapabilityStore) List(ctx context.Context) ([]*ModelCapability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ModelCapability, 0, len(s.capabilities))
	for _, capability := range s.capabilities {
		out = append(out, capability)
	}
	return out, nil
}

func (s *MemoryCapabilityStore) RecordToolSupport(ctx context.Context, modelID string, supported bool, source ToolSupportSource) (*ModelCapability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capability, ok := s.capabilities[modelID]
	if !ok {
		capability = &ModelCapability{ID: modelID, Name: modelID}
		s.capabilities[modelID] = capability
	}
	capability.ToolSupport = &supported
	capability.ToolSupportSource = source
	capability.ToolSupportConfirmedAt = s.now()
	return capability, nil
}

// ToolUnsupportedHook returns a PostToolUseFailure hook that recognizes
// a TOOL_UNSUPPORTED provider error and records the affected model as
// auto-detected tool_support=false in store. Nothing in the Agent Loop
// reads that record back, so later CreateResponse calls still offer
// tools to this model. modelID is resolved lazily since the hook itself has no model
// reference.
func ToolUnsupportedHook(store CapabilityStore, modelID func() string) PostToolUseFailureHook {
	return func(ctx context.Context, hctx *HookContext) error {
		if store == nil || modelID == nil || hctx.Result == nil {
			return nil
		}
		if !isToolUnsupportedError(hctx.Result.Error) {
			return nil
		}
		_, err := store.RecordToolSupport(ctx, modelID(), false, ToolSupportAutoDetected)
		return err
	}
}

func isToolUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	var unsupported *ToolUnsupportedError
	return errors.As(err, &unsupported)
}

// ToolUnsupportedError wraps the provider's TOOL_UNSUPPORTED error code
// so ToolUnsupportedHook can recognize it via errors.As regardless of
// what other context the provider wrapped it in.
type ToolUnsupportedError struct {
	Model string
}

func (e *ToolUnsupportedError) Error() string {
	return fmt.Sprintf("model %q does not support tool calls", e.Model)
}
