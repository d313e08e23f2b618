package agentcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/localllm/agentcore/llm"
)

// ToolRisk classifies how much scrutiny a tool call deserves when the
// permission flow decides to ask (§4.7).
type ToolRisk string

const (
	RiskLow    ToolRisk = "low"
	RiskMedium ToolRisk = "medium"
	RiskHigh   ToolRisk = "high"
)

// ConfirmationDetails is returned by Invocation.ShouldConfirmExecute
// when the policy engine decided to ask the user (§4.7).
type ConfirmationDetails struct {
	ToolName    string
	Description string
	Risk        ToolRisk
	Locations   []string
}

// InvocationError is the error shape Invocation.Execute returns inline
// on the result rather than as a Go error, so a failed tool call can
// still be forwarded to the model as content (§4.7, §7). Type matches
// `[A-Za-z0-9_-]+`; cancellation/timeout errors use a type matching
// `/Cancel|Abort|Timeout/i`.
type InvocationError struct {
	Message string
	Type    string
}

var invocationErrorTypePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExecutionResult is what Invocation.Execute produces.
type ExecutionResult struct {
	LLMContent    string
	ReturnDisplay string
	Error         *InvocationError
}

// Invocation is a single, already-validated tool call bound to its
// arguments; everything it exposes is pure given those arguments
// (§4.7 "Idempotence").
type Invocation interface {
	GetDescription() string
	ToolLocations() []string
	ShouldConfirmExecute(ctx context.Context) (*ConfirmationDetails, error)
	Execute(ctx context.Context) (*ExecutionResult, error)
}

// registeredTool pairs a Tool with the modes it's available in. A nil
// Modes slice means "all modes".
type registeredTool struct {
	tool  Tool
	modes map[Mode]struct{}
}

func (r *registeredTool) availableIn(mode Mode) bool {
	if len(r.modes) == 0 {
		return true
	}
	_, ok := r.modes[mode]
	return ok
}

// ToolRegistry holds the set of tools an Agent Loop may call, filtered
// by mode and user permission before being offered to the model
// (§4.7).
type ToolRegistry struct {
	mu         sync.RWMutex
	tools      map[string]*registeredTool
	permission *PermissionManager
	agent      Agent
}

// NewToolRegistry constructs an empty registry. permission may be nil,
// in which case every tool is allowed without confirmation.
func NewToolRegistry(permission *PermissionManager) *ToolRegistry {
	return &ToolRegistry{
		tools:      make(map[string]*registeredTool),
		permission: permission,
	}
}

// SetAgent attaches the Agent the registry reports to hooks as the
// calling agent (§permission.go PreToolUseContext.Agent).
func (r *ToolRegistry) SetAgent(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent = agent
}

// Register adds a tool to the registry. If modes is non-empty, the
// tool is only offered while the Agent Loop is in one of those modes;
// an empty modes list means the tool is available in every mode.
func (r *ToolRegistry) Register(tool Tool, modes ...Mode) error {
	if tool.Name() == "" {
		return fmt.Errorf("tool registration requires a non-empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", tool.Name())
	}
	var modeSet map[Mode]struct{}
	if len(modes) > 0 {
		modeSet = make(map[Mode]struct{}, len(modes))
		for _, m := range modes {
			modeSet[m] = struct{}{}
		}
	}
	r.tools[tool.Name()] = &registeredTool{tool: tool, modes: modeSet}
	return nil
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// AvailableTools returns every registered Tool whose mode filter
// includes the given mode, sorted by name for deterministic schema
// ordering sent to the model.
func (r *ToolRegistry) AvailableTools(mode Mode) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, rt := range r.tools {
		if rt.availableIn(mode) {
			out = append(out, rt.tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Schemas converts the tools available in the given mode into the
// llm.ToolDefinition list the Agent Loop passes to the provider
// stream (§4.8 step 4: "tools: schemas|undefined").
func (r *ToolRegistry) Schemas(mode Mode) ([]*llm.ToolDefinition, error) {
	tools := r.AvailableTools(mode)
	defs := make([]*llm.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		llmSchema, err := schemaToLLM(tool.Schema())
		if err != nil {
			return nil, fmt.Errorf("convert schema for tool %q: %w", tool.Name(), err)
		}
		defs = append(defs, &llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  *llmSchema,
		})
	}
	return defs, nil
}

// schemaToLLM converts the registry's wonton-backed Schema into the
// llm package's wire Schema via a JSON round-trip; the two types share
// the same JSON Schema shape but are declared independently by
// different packages, so this is the cheapest faithful bridge between
// them.
func schemaToLLM(s *Schema) (*llm.Schema, error) {
	if s == nil {
		return &llm.Schema{Type: "object"}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out llm.Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LLMTools wraps the tools available in mode as llm.Tool values for
// llm.WithTools (§4.8 step 4). The wrapped Call function is never
// reached by the Agent Loop's own turn handling — it drains tool_use
// blocks off the stream itself and dispatches them through
// CreateInvocation so permission checks and confirmation run first —
// but is still required to satisfy the llm.Tool interface for
// providers or callers that invoke llm.LLM.Generate directly.
func (r *ToolRegistry) LLMTools(mode Mode) ([]llm.Tool, error) {
	tools := r.AvailableTools(mode)
	out := make([]llm.Tool, 0, len(tools))
	for _, tool := range tools {
		llmSchema, err := schemaToLLM(tool.Schema())
		if err != nil {
			return nil, fmt.Errorf("convert schema for tool %q: %w", tool.Name(), err)
		}
		def := &llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  *llmSchema,
		}
		name := tool.Name()
		out = append(out, llm.NewTool(def, func(ctx context.Context, input json.RawMessage) (string, error) {
			return "", fmt.Errorf("tool %q must be dispatched through the agent loop, not called directly", name)
		}))
	}
	return out, nil
}

// Tool returns the registered tool by name, regardless of mode
// filtering. The Agent Loop uses this to attach the concrete Tool to a
// HookContext once HasTool has confirmed it's callable in the current
// mode.
func (r *ToolRegistry) Tool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// HasTool reports whether name is registered and available in mode.
// The Agent Loop uses this as the hallucination guard (§4.8 step 4:
// "verify the called tool name is present in the schemas sent to the
// model").
func (r *ToolRegistry) HasTool(name string, mode Mode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	return ok && rt.availableIn(mode)
}

// CreateInvocation validates the call against the registry and
// permission engine and returns a bound Invocation (§4.7). An error is
// returned immediately when the tool is unknown, not available in the
// current mode, or the policy engine denies the call outright.
func (r *ToolRegistry) CreateInvocation(ctx context.Context, toolName string, mode Mode, call *llm.ToolUseContent) (Invocation, error) {
	r.mu.RLock()
	rt, ok := r.tools[toolName]
	agent := r.agent
	permission := r.permission
	r.mu.RUnlock()

	if !ok || !rt.availableIn(mode) {
		return nil, fmt.Errorf("tool %q is not available", toolName)
	}

	if permission != nil {
		result, err := permission.EvaluateToolUse(ctx, rt.tool, call, agent)
		if err != nil {
			return nil, err
		}
		if result.Action == ToolHookDeny {
			msg := result.Message
			if msg == "" {
				msg = fmt.Sprintf("tool %q was denied", toolName)
			}
			return nil, fmt.Errorf("%s", msg)
		}
	}

	return &toolInvocation{
		tool:       rt.tool,
		call:       call,
		permission: permission,
		agent:      agent,
	}, nil
}

// toolInvocation is the registry's Invocation implementation.
type toolInvocation struct {
	tool       Tool
	call       *llm.ToolUseContent
	permission *PermissionManager
	agent      Agent
}

func (i *toolInvocation) GetDescription() string {
	annotations := i.tool.Annotations()
	if annotations != nil && annotations.Title != "" {
		return fmt.Sprintf("%s: %s", annotations.Title, string(i.call.Input))
	}
	return fmt.Sprintf("%s: %s", i.tool.Name(), string(i.call.Input))
}

// ToolLocations extracts any "path"-like fields from the call's
// arguments, in the manner of the teacher's file-oriented tools that
// surface a path to the UI. Unknown shapes return nil, never an error.
func (i *toolInvocation) ToolLocations() []string {
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(i.call.Input), &args); err != nil {
		return nil
	}
	var locations []string
	for _, key := range []string{"path", "file_path", "filePath", "pattern"} {
		raw, ok := args[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil && value != "" {
			locations = append(locations, value)
		}
	}
	return locations
}

func (i *toolInvocation) ShouldConfirmExecute(ctx context.Context) (*ConfirmationDetails, error) {
	annotations := i.tool.Annotations()
	if annotations != nil && annotations.ReadOnlyHint {
		return nil, nil
	}
	if i.permission == nil {
		return nil, nil
	}
	result, err := i.permission.EvaluateToolUse(ctx, i.tool, i.call, i.agent)
	if err != nil {
		return nil, err
	}
	switch result.Action {
	case ToolHookDeny:
		return nil, fmt.Errorf("tool %q was denied", i.tool.Name())
	case ToolHookAllow:
		return nil, nil
	default: // ask, or continue defaulting to ask
		return &ConfirmationDetails{
			ToolName:    i.tool.Name(),
			Description: i.GetDescription(),
			Risk:        riskForAnnotations(annotations),
			Locations:   i.ToolLocations(),
		}, nil
	}
}

func riskForAnnotations(a *ToolAnnotations) ToolRisk {
	if a == nil {
		return RiskMedium
	}
	if a.DestructiveHint {
		return RiskHigh
	}
	if a.ReadOnlyHint {
		return RiskLow
	}
	return RiskMedium
}

func (i *toolInvocation) Execute(ctx context.Context) (result *ExecutionResult, execErr error) {
	if err := ctx.Err(); err != nil {
		return &ExecutionResult{Error: invocationErrorFromContext(err)}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("tool %q panicked: %v", i.tool.Name(), r)
			result = &ExecutionResult{
				LLMContent:    msg,
				ReturnDisplay: msg,
				Error:         &InvocationError{Message: msg, Type: "ExecutionError"},
			}
			execErr = nil
		}
	}()

	toolResult, err := i.tool.Call(ctx, json.RawMessage(i.call.Input))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ExecutionResult{Error: invocationErrorFromContext(ctxErr)}, nil
		}
		return &ExecutionResult{Error: &InvocationError{Message: err.Error(), Type: "ExecutionError"}}, nil
	}

	if toolResult.IsError {
		return &ExecutionResult{
			LLMContent:    toolResult.Content,
			ReturnDisplay: toolResult.Content,
			Error:         &InvocationError{Message: toolResult.Content, Type: "ToolError"},
		}, nil
	}

	return &ExecutionResult{LLMContent: toolResult.Content, ReturnDisplay: toolResult.Content}, nil
}

func invocationErrorFromContext(err error) *InvocationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &InvocationError{Message: "tool execution timed out", Type: "Timeout"}
	}
	return &InvocationError{Message: "tool execution aborted", Type: "AbortError"}
}

// ValidType reports whether e.Type matches the `[A-Za-z0-9_-]+`
// pattern every Invocation error must satisfy (§4.7).
func (e *InvocationError) ValidType() bool {
	return e.Type != "" && invocationErrorTypePattern.MatchString(e.Type)
}
