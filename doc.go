// Package agentcore implements the runtime loop for a local-model chat
// client: the agent loop, its active context window, and the
// compression pipeline that keeps that window under a model's context
// limit.
//
// The core types are:
//
//   - [Agent] orchestrates LLM interactions with tool execution and conversation management.
//   - [Tool] and [TypedTool] define callable tools that an LLM can invoke.
//   - [Response] captures the output from an agent's response generation.
//   - [ContextManager] owns the active context window, token accounting, and
//     triggers compression when usage crosses configured thresholds.
//   - Hook types ([PreGenerationHook], [PostGenerationHook], [PreToolUseHook],
//     [PostToolUseHook]) customize agent behavior at key points.
//
// Example tools live in the [github.com/localllm/agentcore/toolkit]
// package; provider adapters are left to the caller — this module only
// implements the streaming event contract in the [github.com/localllm/agentcore/llm]
// package.
package agentcore
