package agentcore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// reActStep is one parsed turn of the Thought/Action/Action Input/
// Final Answer text protocol (§8), used as a fallback tool-calling
// mechanism for models whose tool-support is disabled.
type reActStep struct {
	Thought        string
	Action         string
	ActionInput    json.RawMessage
	RawActionInput string
	FinalAnswer    string
	HasInvalidJSON bool
}

const (
	reActThoughtPrefix     = "Thought:"
	reActActionPrefix      = "Action:"
	reActActionInputPrefix = "Action Input:"
	reActObservationPrefix = "Observation:"
	reActFinalAnswerPrefix = "Final Answer:"
)

// formatReActStep renders a step back into the text protocol. Given a
// step produced by parseReActStep, formatReActStep(parseReActStep(s))
// reproduces s exactly whenever the Action Input was valid JSON, which
// is the round-trip property §8 requires.
func formatReActStep(step *reActStep) string {
	var b strings.Builder
	if step.Thought != "" {
		fmt.Fprintf(&b, "%s %s\n", reActThoughtPrefix, step.Thought)
	}
	if step.Action != "" {
		fmt.Fprintf(&b, "%s %s\n", reActActionPrefix, step.Action)
		fmt.Fprintf(&b, "%s %s\n", reActActionInputPrefix, step.actionInputText())
	}
	if step.FinalAnswer != "" {
		fmt.Fprintf(&b, "%s %s\n", reActFinalAnswerPrefix, step.FinalAnswer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// actionInputText returns the text that should appear after "Action
// Input:", preferring the original raw text (so re-formatting a parsed
// step doesn't reflow whitespace) and falling back to a compact JSON
// encoding of ActionInput.
func (s *reActStep) actionInputText() string {
	if s.RawActionInput != "" {
		return s.RawActionInput
	}
	if len(s.ActionInput) == 0 {
		return "{}"
	}
	return string(s.ActionInput)
}

// parseReActStep extracts Thought/Action/Action Input/Final Answer
// sections from raw model output. Observation sections, if present
// (echoed back from a previous turn), are ignored: they're the loop's
// own input, not something the model needs to repeat.
//
// A malformed Action Input (present but not valid JSON) sets
// HasInvalidJSON rather than returning an error, so the caller can
// feed reActCorrectionPrompt back to the model instead of aborting the
// turn.
func parseReActStep(text string) *reActStep {
	step := &reActStep{}

	thought, rest := splitSection(text, reActThoughtPrefix, []string{reActActionPrefix, reActFinalAnswerPrefix})
	step.Thought = strings.TrimSpace(thought)

	if action, afterAction := splitSection(rest, reActActionPrefix, []string{reActActionInputPrefix, reActObservationPrefix, reActFinalAnswerPrefix}); action != "" || afterAction != rest {
		step.Action = strings.TrimSpace(action)
		rest = afterAction

		if rawInput, afterInput := splitSection(rest, reActActionInputPrefix, []string{reActObservationPrefix, reActFinalAnswerPrefix}); rawInput != "" || afterInput != rest {
			raw := strings.TrimSpace(rawInput)
			step.RawActionInput = raw
			if raw != "" {
				var decoded json.RawMessage
				if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
					step.HasInvalidJSON = true
				} else {
					step.ActionInput = decoded
				}
			}
			rest = afterInput
		}
	}

	if final, _ := splitSection(rest, reActFinalAnswerPrefix, nil); final != "" {
		step.FinalAnswer = strings.TrimSpace(final)
	}

	return step
}

// splitSection finds prefix in text, and returns the text between it
// and the earliest of the following section prefixes (or the end of
// the string), plus the remainder of text starting at that boundary.
// If prefix isn't found, it returns ("", text) unchanged.
func splitSection(text, prefix string, following []string) (section string, rest string) {
	idx := strings.Index(text, prefix)
	if idx == -1 {
		return "", text
	}
	body := text[idx+len(prefix):]

	end := len(body)
	for _, next := range following {
		if nidx := strings.Index(body, next); nidx != -1 && nidx < end {
			end = nidx
		}
	}

	return body[:end], body[end:]
}

// reActCorrectionPrompt builds the user-message text sent back to the
// model when parseReActStep sets HasInvalidJSON, asking it to retry
// with well-formed JSON for Action Input.
func reActCorrectionPrompt(step *reActStep) string {
	return fmt.Sprintf(
		"Your Action Input was not valid JSON:\n\n%s\n\nRespond again with a single well-formed JSON object for Action Input.",
		step.RawActionInput,
	)
}

// isReActFinal reports whether a parsed step represents a completed
// turn with no further tool call to dispatch.
func (s *reActStep) isReActFinal() bool {
	return s.Action == "" && s.FinalAnswer != ""
}
