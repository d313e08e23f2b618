package agentcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/localllm/agentcore/llm"
	"github.com/localllm/agentcore/slogger"
)

// Hooks bundles every hook slice the Agent Loop runs during a
// CreateResponse call, grouped by phase (hooks.go). Each slice runs in
// registration order.
type Hooks struct {
	PreGeneration      []PreGenerationHook
	PostGeneration     []PostGenerationHook
	PreToolUse         []PreToolUseHook
	PostToolUse        []PostToolUseHook
	PostToolUseFailure []PostToolUseFailureHook
	Stop               []StopHook
	PreIteration       []PreIterationHook
}

// AgentOptions configures a new Agent Loop.
type AgentOptions struct {
	// Name identifies the agent; reported by Agent.Name().
	Name string

	// SystemPrompt seeds HookContext.SystemPrompt before PreGeneration
	// hooks run. Mode rules (mode.go) are not mixed in automatically;
	// callers composing a mode-aware prompt should do so before
	// constructing AgentOptions or via a PreGeneration hook.
	SystemPrompt string

	// Model is the LLM the generation loop calls. Required.
	Model llm.LLM

	// Tools are registered into an internal ToolRegistry, available in
	// every Mode unless the caller registers additional tools directly
	// against Registry() with mode restrictions.
	Tools []Tool

	// Hooks customizes the generation loop (hooks.go).
	Hooks Hooks

	// Mode selects the tool-availability and hallucination-guard
	// profile (mode.go). Defaults to ModeAssistant.
	Mode Mode

	// MaxIterations caps the number of LLM calls a single CreateResponse
	// invocation may make before the loop aborts with a
	// LoopDetectedError. Defaults to 10.
	MaxIterations int

	// PermissionManager gates tool execution (permission_config.go). Nil
	// means every tool call is allowed without confirmation.
	PermissionManager *PermissionManager

	// SessionRepository persists conversation history across
	// CreateResponse calls keyed by WithThreadID. Nil means each call is
	// stateless beyond the messages it's given directly.
	SessionRepository SessionRepository

	// Logger receives generation and hook diagnostics. Defaults to
	// slogger.DefaultLogger (a no-op logger).
	Logger slogger.Logger

	// ModelID identifies Model in CapabilityStore records. Required for
	// CapabilityStore's learning flow to have anywhere to write; left
	// empty, tool-support learning is simply not wired in.
	ModelID string

	// CapabilityStore, if set, is updated by the TOOL_UNSUPPORTED
	// learning flow (capabilitystore.go): a ToolUnsupportedHook is
	// appended to Hooks.PostToolUseFailure automatically, recording
	// ModelID as auto-detected tool_support=false whenever a tool call
	// fails with a *ToolUnsupportedError. The loop does not read the
	// store back: tools are offered to the model on every call whatever
	// tool_support it records.
	CapabilityStore CapabilityStore

	// ContextManager, if set, mirrors every message this loop sends or
	// receives (contextconvert.go's MessageFromLLM) so its threshold
	// policy and Compression Pipeline run against the real
	// conversation (§4.6, §4.8). Nil means the loop carries its own
	// message slice only, with no compaction.
	ContextManager *ContextManager

	// Compaction, if set and Enabled, appends a PreGeneration hook
	// (hooks.go's CompactionHook) that summarizes the loaded history
	// when ShouldCompact reports the token/message thresholds are
	// crossed (compaction.go). This is a second, independent
	// compaction path from ContextManager/CompressionPipeline: it runs
	// once per CreateResponse call against whatever history
	// SessionRepository handed back, rather than tracking a live
	// Active Context window.
	Compaction *CompactionConfig

	// ModelProvider, if set, is polled once per loop iteration in place
	// of Model, supporting a mid-conversation model swap (the
	// HOT-SWAP/MAX-TURNS behavior): the in-flight turn always finishes
	// on the model it started with, the next iteration picks up
	// whatever ModelProvider now returns, and MaxIterations is never
	// reset or extended by the swap.
	ModelProvider func() (llm.LLM, string)

	// Confirmer is consulted (confirmer.go) whenever the permission
	// engine's policy evaluates a tool call to "ask" — i.e. whenever
	// Invocation.ShouldConfirmExecute returns non-nil ConfirmationDetails.
	// Nil means every "ask" decision is treated as denied, since there's
	// no one to ask.
	Confirmer Confirmer
}

// AgentLoop is the synchronous Agent implementation: each CreateResponse
// call runs the full generate/dispatch-tools/generate loop (§4.8) to
// completion before returning, rather than the mailbox/actor shape some
// agent runtimes use for long-running background tasks.
type AgentLoop struct {
	name          string
	systemPrompt  string
	model         llm.LLM
	registry      *ToolRegistry
	hooks         Hooks
	mode          Mode
	maxIterations int
	sessionRepo   SessionRepository
	logger        slogger.Logger

	contextManager *ContextManager
	compaction     *CompactionConfig
	modelProvider  func() (llm.LLM, string)
	confirmer      Confirmer

	mu                sync.Mutex
	compactionRecords []CompactionRecord
}

// NewAgent constructs an AgentLoop from AgentOptions.
func NewAgent(opts AgentOptions) (*AgentLoop, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("agentcore: AgentOptions.Model is required")
	}

	name := opts.Name
	if name == "" {
		name = "agent"
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeAssistant
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = slogger.DefaultLogger
	}

	registry := NewToolRegistry(opts.PermissionManager)
	for _, tool := range opts.Tools {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("agentcore: %w", err)
		}
	}

	hooks := opts.Hooks
	if opts.CapabilityStore != nil {
		modelID := opts.ModelID
		hooks.PostToolUseFailure = append(hooks.PostToolUseFailure,
			ToolUnsupportedHook(opts.CapabilityStore, func() string { return modelID }))
	}

	a := &AgentLoop{
		name:           name,
		systemPrompt:   opts.SystemPrompt,
		model:          opts.Model,
		registry:       registry,
		hooks:          hooks,
		mode:           mode,
		maxIterations:  maxIterations,
		sessionRepo:    opts.SessionRepository,
		logger:         logger,
		contextManager: opts.ContextManager,
		compaction:     opts.Compaction,
		modelProvider:  opts.ModelProvider,
		confirmer:      opts.Confirmer,
	}
	if opts.Compaction != nil && opts.Compaction.Enabled {
		a.hooks.PreGeneration = append(a.hooks.PreGeneration, a.compactionPreGenerationHook(opts.Compaction))
	}
	registry.SetAgent(a)
	return a, nil
}

// compactionPreGenerationHook wires hooks.go's CompactionHook to the
// real token-based decision (compaction.go's ShouldCompact) instead of
// CompactionHook's own message-count-only gate: minCompactionMessages
// is passed as CompactionHook's threshold purely as a cheap floor, and
// the summarizer closure below makes the actual call.
func (a *AgentLoop) compactionPreGenerationHook(cfg *CompactionConfig) PreGenerationHook {
	return CompactionHook(minCompactionMessages, func(ctx context.Context, msgs []*llm.Message) ([]*llm.Message, error) {
		usage := estimateMessageUsage(msgs)
		if !ShouldCompact(usage, len(msgs), cfg.ContextTokenThreshold) {
			return msgs, nil
		}

		model := cfg.Model
		if model == nil {
			model = a.model
		}
		prompt := cfg.SummaryPrompt
		if prompt == "" {
			prompt = DefaultCompactionSummaryPrompt
		}

		resp, err := model.Generate(ctx, filterPendingToolUse(msgs), llm.WithSystemPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("compaction: summarize: %w", err)
		}
		summary := extractSummary(resp.Message().Text())
		if summary == "" {
			a.logger.Error("compaction: summary missing <summary> tags, skipping compaction")
			return msgs, nil
		}

		a.recordCompaction(CompactionRecord{
			Timestamp:         time.Now(),
			TokensBefore:      CalculateContextTokens(usage),
			TokensAfter:       estimateTokens(summary),
			MessagesCompacted: len(msgs),
		})
		return []*llm.Message{llm.NewUserTextMessage(summary)}, nil
	})
}

// estimateMessageUsage approximates a provider Usage from message text
// length. The compaction hook runs in PreGeneration, before this call
// has made any provider request of its own, so there's no live Usage
// yet for the loaded history — this stands in for one using the same
// character-based fallback ratio as TokenCounter (tokencounter.go).
func estimateMessageUsage(messages []*llm.Message) *llm.Usage {
	total := 0
	for _, m := range messages {
		total += estimateTokens(m.Text())
	}
	return &llm.Usage{InputTokens: total}
}

// recordCompaction appends a completed compaction's record to this
// loop's accumulator. Records are shared across every thread this
// AgentLoop serves, mirroring how a single ContextManager instance is
// also shared rather than kept per-thread; compactionRecordsSince lets
// a single CreateResponse call isolate just the records it produced.
func (a *AgentLoop) recordCompaction(r CompactionRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compactionRecords = append(a.compactionRecords, r)
}

func (a *AgentLoop) compactionRecordCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.compactionRecords)
}

func (a *AgentLoop) compactionRecordsSince(n int) []CompactionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n >= len(a.compactionRecords) {
		return nil
	}
	return append([]CompactionRecord(nil), a.compactionRecords[n:]...)
}

// Name returns the agent's configured name.
func (a *AgentLoop) Name() string { return a.name }

// Registry exposes the internal ToolRegistry so callers can register
// additional tools with mode restrictions after construction.
func (a *AgentLoop) Registry() *ToolRegistry { return a.registry }

// CreateResponse runs the generation loop: PreGeneration hooks, then
// alternating LLM calls and tool dispatch until the model stops
// requesting tools (or a Stop hook asks to continue), then
// PostGeneration hooks.
func (a *AgentLoop) CreateResponse(ctx context.Context, opts ...CreateResponseOption) (*Response, error) {
	var copts CreateResponseOptions
	copts.Apply(opts)

	ctx = slogger.WithLogger(ctx, a.logger)

	hctx := NewHookContext()
	var agentIface Agent = a
	hctx.Agent = &agentIface
	hctx.SystemPrompt = a.systemPrompt
	hctx.Messages = append(a.loadHistory(ctx, copts.ThreadID), copts.Messages...)

	compactionStart := a.compactionRecordCount()
	for _, hook := range a.hooks.PreGeneration {
		if err := hook(ctx, hctx); err != nil {
			if abortErr := asHookAbort(err, "PreGeneration"); abortErr != nil {
				return nil, abortErr
			}
			return nil, err
		}
	}

	messages := hctx.Messages
	systemPrompt := hctx.SystemPrompt

	if a.contextManager != nil {
		for _, m := range copts.Messages {
			if err := a.contextManager.AddMessage(ctx, MessageFromLLM(m)); err != nil {
				a.logger.Error("context manager: failed to add input message", "error", err)
			}
		}
	}

	response := &Response{ID: newID(), CreatedAt: time.Now()}
	var lastUsage *llm.Usage
	stopHookActive := false

	for iteration := 0; ; iteration++ {
		if iteration >= a.maxIterations {
			return nil, &LoopDetectedError{Reason: fmt.Sprintf("exceeded %d generation iterations", a.maxIterations)}
		}

		iterHctx := &HookContext{
			Agent:        hctx.Agent,
			Values:       hctx.Values,
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Iteration:    iteration,
		}
		for _, hook := range a.hooks.PreIteration {
			if err := hook(ctx, iterHctx); err != nil {
				if abortErr := asHookAbort(err, "PreIteration"); abortErr != nil {
					return nil, fmt.Errorf("pre-iteration hook error: %w", abortErr)
				}
				return nil, fmt.Errorf("pre-iteration hook error: %w", err)
			}
		}
		systemPrompt = iterHctx.SystemPrompt
		messages = iterHctx.Messages

		// HOT-SWAP: a model change is only ever picked up at an
		// iteration boundary, so the in-flight turn always finishes on
		// the model it started with; the next iteration simply uses
		// whatever ModelProvider now returns. iteration is never reset
		// by a swap, so MAX-TURNS stays a single ceiling across it.
		model := a.model
		if a.modelProvider != nil {
			if m, _ := a.modelProvider(); m != nil {
				model = m
			}
		}

		genOpts := []llm.Option{llm.WithSystemPrompt(systemPrompt), llm.WithLogger(a.logger)}
		if llmTools, err := a.registry.LLMTools(a.mode); err == nil && len(llmTools) > 0 {
			genOpts = append(genOpts, llm.WithTools(llmTools...))
		}

		var turn *turnResult
		var err error
		if model.SupportsStreaming() {
			turn, err = a.generateStreaming(ctx, copts, model, messages, genOpts)
		} else {
			turn, err = a.generateBlocking(ctx, model, messages, genOpts)
		}
		if err != nil {
			return nil, err
		}
		usage := turn.usage
		lastUsage = &usage
		if turn.modelName != "" {
			response.Model = turn.modelName
		}

		assistantMsg := turn.message
		response.Items = append(response.Items, &ResponseItem{
			Type:    ResponseItemTypeMessage,
			Message: assistantMsg,
			Usage:   &usage,
		})
		messages = append(messages, assistantMsg)
		a.emit(ctx, copts, response.Items[len(response.Items)-1])

		if a.contextManager != nil {
			if err := a.contextManager.AddMessage(ctx, MessageFromLLM(assistantMsg)); err != nil {
				a.logger.Error("context manager: failed to add assistant message", "error", err)
			}
		}

		toolCalls := turn.toolCalls

		if len(toolCalls) == 0 {
			decision, stopErr := a.runStopHooks(ctx, hctx, response, lastUsage, stopHookActive)
			if stopErr != nil {
				return nil, stopErr
			}
			if decision != nil && decision.Continue {
				messages = append(messages, llm.NewUserTextMessage(decision.Reason))
				stopHookActive = true
				continue
			}
			break
		}

		var toolResults []*ToolCallResult
		for _, tc := range toolCalls {
			item := &ResponseItem{Type: ResponseItemTypeToolCall, ToolCall: tc}
			response.Items = append(response.Items, item)
			a.emit(ctx, copts, item)

			result, err := a.dispatchToolCall(ctx, hctx, tc)
			if err != nil {
				return nil, err
			}
			toolResults = append(toolResults, result)

			resultItem := &ResponseItem{Type: ResponseItemTypeToolCallResult, ToolCallResult: result}
			response.Items = append(response.Items, resultItem)
			a.emit(ctx, copts, resultItem)
		}

		messages = append(messages, llm.NewToolResultMessage(getToolResultContent(toolResults)))

		if a.contextManager != nil {
			for i, tc := range toolCalls {
				result := toolResults[i]
				content := ""
				switch {
				case result.Result != nil:
					content = result.Result.Content
				case result.Error != nil:
					content = result.Error.Error()
				}
				if err := a.contextManager.AddMessage(ctx, &Message{Role: RoleTool, Content: content, ToolCallID: tc.ID}); err != nil {
					a.logger.Error("context manager: failed to add tool result message", "error", err)
				}
			}
		}
	}

	finishedAt := time.Now()
	response.FinishedAt = &finishedAt
	response.Usage = lastUsage

	hctx.Response = response
	hctx.OutputMessages = collectOutputMessages(response)
	hctx.Usage = lastUsage

	for _, hook := range a.hooks.PostGeneration {
		if err := hook(ctx, hctx); err != nil {
			if abortErr := asHookAbort(err, "PostGeneration"); abortErr != nil {
				return nil, abortErr
			}
			a.logger.Error("post-generation hook failed", "error", err)
		}
	}

	a.saveHistory(ctx, copts.ThreadID, messages, a.compactionRecordsSince(compactionStart))

	return response, nil
}

// turnResult is one loop iteration's generation outcome, produced by
// either generateBlocking or generateStreaming so the rest of the
// iteration doesn't need to know which one ran.
type turnResult struct {
	message   *llm.Message
	usage     llm.Usage
	modelName string
	toolCalls []*llm.ToolUseContent
}

// generateBlocking runs one non-streaming Generate call, the loop's
// original code path — preserved unchanged for models that don't
// support streaming (llm.LLM.SupportsStreaming() == false).
func (a *AgentLoop) generateBlocking(ctx context.Context, model llm.LLM, messages []*llm.Message, genOpts []llm.Option) (*turnResult, error) {
	resp, err := model.Generate(ctx, messages, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	var toolCalls []*llm.ToolUseContent
	for _, content := range resp.Content {
		if tc, ok := content.(*llm.ToolUseContent); ok {
			toolCalls = append(toolCalls, tc)
		}
	}
	return &turnResult{message: resp.Message(), usage: resp.Usage, modelName: resp.Model, toolCalls: toolCalls}, nil
}

// generateStreaming runs one turn through model.Stream, draining a
// turnEventReader and reassembling its TurnEvents into the same shape
// generateBlocking returns. Text and thinking deltas are forwarded to
// the caller's EventCallback as they arrive via a.emit, carried in a
// synthesized content_block_delta llm.Event so a caller watching
// ResponseItemTypeModelEvent sees the same shape regardless of
// provider. Only the stream's first tool_call is kept (§6): a
// provider that emits more than one past the first is ignored, same
// as the wire contract a real provider stream honors.
func (a *AgentLoop) generateStreaming(ctx context.Context, copts CreateResponseOptions, model llm.LLM, messages []*llm.Message, genOpts []llm.Option) (*turnResult, error) {
	stream, err := model.Stream(ctx, messages, genOpts...)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	reader := newTurnEventReader(stream)
	defer reader.Close()

	var text, thinking strings.Builder
	var toolCall *llm.ToolUseContent
	var usage llm.Usage

	for reader.Next(ctx) {
		te := reader.Event()
		switch te.Type {
		case TurnEventText:
			text.WriteString(te.Text)
			a.emit(ctx, copts, &ResponseItem{
				Type:  ResponseItemTypeModelEvent,
				Event: &llm.Event{Type: llm.EventContentBlockDelta, Delta: &llm.Delta{Type: "text_delta", Text: te.Text}},
			})
		case TurnEventThinking:
			thinking.WriteString(te.Text)
			a.emit(ctx, copts, &ResponseItem{
				Type:  ResponseItemTypeModelEvent,
				Event: &llm.Event{Type: llm.EventContentBlockDelta, Delta: &llm.Delta{Type: "thinking_delta", Thinking: te.Text}},
			})
		case TurnEventToolCall:
			if toolCall == nil {
				toolCall = te.ToolCall
			}
		case TurnEventError:
			return nil, fmt.Errorf("stream: %w", te.Err)
		case TurnEventFinish:
			if te.Usage != nil {
				usage = *te.Usage
			}
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}

	var content []llm.Content
	if thinking.Len() > 0 {
		content = append(content, &llm.ThinkingContent{Thinking: thinking.String()})
	}
	if text.Len() > 0 {
		content = append(content, llm.NewTextContent(text.String()))
	}
	var toolCalls []*llm.ToolUseContent
	if toolCall != nil {
		content = append(content, toolCall)
		toolCalls = append(toolCalls, toolCall)
	}

	return &turnResult{message: llm.NewMessage(llm.Assistant, content), usage: usage, toolCalls: toolCalls}, nil
}

// emit forwards a response item to the caller's EventCallback, if set.
// Errors from the callback are logged and otherwise ignored; the
// generation loop isn't aborted by an observer failing to keep up.
func (a *AgentLoop) emit(ctx context.Context, copts CreateResponseOptions, item *ResponseItem) {
	if copts.EventCallback == nil {
		return
	}
	if err := copts.EventCallback(ctx, item); err != nil {
		a.logger.Error("event callback failed", "error", err)
	}
}

// runStopHooks evaluates the Stop hooks once the model has produced a
// turn with no further tool calls. A hook may veto stopping by
// returning StopDecision{Continue: true}; its Reason is injected as a
// user message and the loop runs another generation.
func (a *AgentLoop) runStopHooks(ctx context.Context, hctx *HookContext, response *Response, usage *llm.Usage, active bool) (*StopDecision, error) {
	if len(a.hooks.Stop) == 0 {
		return nil, nil
	}
	stopHctx := &HookContext{
		Agent:          hctx.Agent,
		Values:         hctx.Values,
		Response:       response,
		OutputMessages: collectOutputMessages(response),
		Usage:          usage,
		StopHookActive: active,
	}
	for _, hook := range a.hooks.Stop {
		decision, err := hook(ctx, stopHctx)
		if err != nil {
			if abortErr := asHookAbort(err, "Stop"); abortErr != nil {
				return nil, abortErr
			}
			a.logger.Error("stop hook failed", "error", err)
			continue
		}
		if decision != nil && decision.Continue {
			return decision, nil
		}
	}
	return nil, nil
}

// dispatchToolCall runs PreToolUse hooks, executes the tool through the
// registry (unless denied), then runs PostToolUse or
// PostToolUseFailure hooks depending on the outcome.
func (a *AgentLoop) dispatchToolCall(ctx context.Context, hctx *HookContext, tc *llm.ToolUseContent) (*ToolCallResult, error) {
	toolHctx := &HookContext{
		Agent:  hctx.Agent,
		Values: hctx.Values,
		Call:   tc,
	}

	if !a.registry.HasTool(tc.Name, a.mode) {
		return &ToolCallResult{
			ID:     tc.ID,
			Name:   tc.Name,
			Result: NewToolResultError(fmt.Sprintf("%s: %q is not an available tool", ErrToolNotFound, tc.Name)),
		}, nil
	}
	tool, _ := a.registry.Tool(tc.Name)
	toolHctx.Tool = tool

	for _, hook := range a.hooks.PreToolUse {
		if err := hook(ctx, toolHctx); err != nil {
			if abortErr := asHookAbort(err, "PreToolUse"); abortErr != nil {
				return nil, abortErr
			}
			return &ToolCallResult{
				ID:                tc.ID,
				Name:              tc.Name,
				Result:            NewToolResultError(err.Error()),
				AdditionalContext: toolHctx.AdditionalContext,
			}, nil
		}
	}
	preContext := toolHctx.AdditionalContext
	toolHctx.AdditionalContext = ""

	if toolHctx.UpdatedInput != nil {
		tc.Input = string(toolHctx.UpdatedInput)
	}

	invocation, err := a.registry.CreateInvocation(ctx, tc.Name, a.mode, tc)
	var callResult *ToolCallResult
	switch {
	case err != nil:
		callResult = &ToolCallResult{
			ID:     tc.ID,
			Name:   tc.Name,
			Error:  fmt.Errorf("%w: %v", ErrToolDenied, err),
			Result: NewToolResultError(err.Error()),
		}
	default:
		if confirmErr := a.confirmInvocation(ctx, hctx, tool, tc, invocation); confirmErr != nil {
			callResult = &ToolCallResult{
				ID:     tc.ID,
				Name:   tc.Name,
				Error:  fmt.Errorf("%w: %v", ErrToolDenied, confirmErr),
				Result: NewToolResultError(confirmErr.Error()),
			}
			break
		}
		execResult, execErr := invocation.Execute(ctx)
		switch {
		case execErr != nil:
			callResult = &ToolCallResult{
				ID:     tc.ID,
				Name:   tc.Name,
				Error:  execErr,
				Result: NewToolResultError(execErr.Error()),
			}
		case execResult.Error != nil:
			callResult = &ToolCallResult{
				ID:     tc.ID,
				Name:   tc.Name,
				Error:  errors.New(execResult.Error.Message),
				Result: &ToolResult{Content: execResult.LLMContent, IsError: true},
			}
		default:
			callResult = &ToolCallResult{
				ID:     tc.ID,
				Name:   tc.Name,
				Result: &ToolResult{Content: execResult.LLMContent},
			}
		}
	}

	toolHctx.Result = callResult
	isFailure := callResult.Error != nil || (callResult.Result != nil && callResult.Result.IsError)

	if isFailure {
		for _, hook := range a.hooks.PostToolUseFailure {
			if err := hook(ctx, toolHctx); err != nil {
				if abortErr := asHookAbort(err, "PostToolUseFailure"); abortErr != nil {
					return nil, abortErr
				}
				a.logger.Error("post-tool-use-failure hook failed", "error", err)
			}
		}
	} else {
		for _, hook := range a.hooks.PostToolUse {
			if err := hook(ctx, toolHctx); err != nil {
				if abortErr := asHookAbort(err, "PostToolUse"); abortErr != nil {
					return nil, abortErr
				}
				a.logger.Error("post-tool-use hook failed", "error", err)
			}
		}
	}

	callResult.AdditionalContext = mergeAdditionalContext(preContext, toolHctx.AdditionalContext)
	return callResult, nil
}

// confirmInvocation consults invocation.ShouldConfirmExecute and, if it
// reports the policy engine decided to ask (confirmer.go, permission_config.go
// step 8), routes the decision to a.confirmer. Returns nil to proceed,
// or an error describing why the call was denied.
func (a *AgentLoop) confirmInvocation(ctx context.Context, hctx *HookContext, tool Tool, tc *llm.ToolUseContent, invocation Invocation) error {
	details, err := invocation.ShouldConfirmExecute(ctx)
	if err != nil {
		return err
	}
	if details == nil {
		return nil
	}
	if a.confirmer == nil {
		return fmt.Errorf("tool %q requires confirmation but no confirmer is configured", tc.Name)
	}
	var agent Agent
	if hctx.Agent != nil {
		agent = *hctx.Agent
	}
	ok, err := a.confirmer.Confirm(ctx, agent, tool, tc)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("tool %q denied by confirmer", tc.Name)
	}
	return nil
}

// mergeAdditionalContext joins PreToolUse and PostToolUse guidance with
// a newline, so neither phase clobbers the other's contribution to the
// tool result message.
func mergeAdditionalContext(pre, post string) string {
	switch {
	case pre == "":
		return post
	case post == "":
		return pre
	default:
		return pre + "\n" + post
	}
}

// asHookAbort reports whether err wraps a *HookAbortError, filling in
// HookType when the hook constructed it via the bare AbortGeneration
// helper (which leaves HookType empty).
func asHookAbort(err error, hookType string) *HookAbortError {
	var abortErr *HookAbortError
	if !errors.As(err, &abortErr) {
		return nil
	}
	if abortErr.HookType == "" {
		abortErr.HookType = hookType
	}
	return abortErr
}

// getToolResultContent converts tool call results into the
// tool_result content blocks sent back to the LLM, folding any
// AdditionalContext hooks contributed into the visible content.
func getToolResultContent(results []*ToolCallResult) []*llm.ToolResultContent {
	out := make([]*llm.ToolResultContent, 0, len(results))
	for _, r := range results {
		content := ""
		if r.Result != nil {
			content = r.Result.Content
		} else if r.Error != nil {
			content = r.Error.Error()
		}
		if r.AdditionalContext != "" {
			content = mergeAdditionalContext(content, r.AdditionalContext)
		}
		isError := r.Error != nil || (r.Result != nil && r.Result.IsError)
		out = append(out, &llm.ToolResultContent{
			ToolUseID: r.ID,
			Content:   content,
			IsError:   isError,
		})
	}
	return out
}

// collectOutputMessages returns the assistant messages generated during
// this CreateResponse call, in order.
func collectOutputMessages(response *Response) []*llm.Message {
	var messages []*llm.Message
	for _, item := range response.Items {
		if item.Type == ResponseItemTypeMessage && item.Message != nil {
			messages = append(messages, item.Message)
		}
	}
	return messages
}

// loadHistory returns the persisted message history for threadID, or
// nil if there's no repository, no thread ID, or no matching session.
func (a *AgentLoop) loadHistory(ctx context.Context, threadID string) []*llm.Message {
	if a.sessionRepo == nil || threadID == "" {
		return nil
	}
	session, err := a.sessionRepo.GetSession(ctx, threadID)
	if err != nil {
		return nil
	}
	return session.Messages
}

// saveHistory persists the full message history for threadID, creating
// the session if it doesn't exist yet, along with any compaction
// records this call produced and the Context Manager's full checkpoint
// history, if one is configured. A no-op without a repository or
// thread ID.
func (a *AgentLoop) saveHistory(ctx context.Context, threadID string, messages []*llm.Message, compactionRecords []CompactionRecord) {
	if a.sessionRepo == nil || threadID == "" {
		return
	}
	session, err := a.sessionRepo.GetSession(ctx, threadID)
	if err != nil {
		session = &Session{ID: threadID, AgentName: a.name, CreatedAt: time.Now()}
	}
	session.Messages = messages
	session.UpdatedAt = time.Now()
	session.CompactionHistory = append(session.CompactionHistory, compactionRecords...)
	if a.contextManager != nil {
		session.CheckpointHistory = a.contextManager.History()
	}
	if err := a.sessionRepo.PutSession(ctx, session); err != nil {
		a.logger.Error("failed to persist session", "thread_id", threadID, "error", err)
	}
}
