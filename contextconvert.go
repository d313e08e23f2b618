package agentcore

import (
	"fmt"
	"strings"

	"github.com/localllm/agentcore/llm"
)

// MessagesToLLM renders Active Context messages into provider wire
// messages. A message with ExcludeFromContext set is dropped entirely:
// system-status messages are recorded in the Active Context for
// bookkeeping but never flow back to the provider (§7).
func MessagesToLLM(messages []*Message) []*llm.Message {
	out := make([]*llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.ExcludeFromContext {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, llm.NewUserTextMessage(m.Content))
		case RoleAssistant:
			out = append(out, llm.NewAssistantTextMessage(m.Content))
		default:
			// Tool-role messages are folded into a readable user-turn
			// placeholder; the Active Context only tracks their text, not
			// the original tool_result wire shape.
			out = append(out, llm.NewUserTextMessage(fmt.Sprintf("[%s] %s", m.Role, m.Content)))
		}
	}
	return out
}

// MessageFromLLM converts one provider wire message into an Active
// Context message, the inverse of MessagesToLLM for the common case.
// Tool call/result content blocks are rendered to readable text rather
// than preserved structurally, since the Active Context only keeps
// plain-text turns; a caller that needs the structured ToolCallRecord
// attaches it separately.
func MessageFromLLM(msg *llm.Message) *Message {
	role := RoleUser
	switch msg.Role {
	case llm.Assistant:
		role = RoleAssistant
	case llm.System:
		role = RoleSystem
	}
	return &Message{Role: role, Content: llmContentText(msg)}
}

// llmContentText renders every content block of an llm.Message as
// plain text, since Text() alone ignores tool_use/tool_result/thinking
// blocks.
func llmContentText(msg *llm.Message) string {
	var b strings.Builder
	for i, content := range msg.Content {
		if i > 0 {
			b.WriteString("\n")
		}
		switch c := content.(type) {
		case *llm.TextContent:
			b.WriteString(c.Text)
		case *llm.AssistantTextContent:
			b.WriteString(c.Text)
		case *llm.ThinkingContent:
			fmt.Fprintf(&b, "[thinking] %s", c.Thinking)
		case *llm.ToolUseContent:
			fmt.Fprintf(&b, "[tool_call %s(%s)]", c.Name, c.Input)
		case *llm.ToolResultContent:
			fmt.Fprintf(&b, "[tool_result %v]", c.Content)
		}
	}
	return b.String()
}
