package agentcore

import "strings"

// StructuredResponse is the result of stripping a model's inline
// <think>...</think> and <status>...</status> tags out of its raw
// text output, leaving the remaining text as the user-facing response.
// Not every model emits these tags; ParseStructuredResponse is a no-op
// on plain text.
type StructuredResponse struct {
	Thinking          string
	Text              string
	StatusDescription string
}

// ParseStructuredResponse extracts <status> and <think> tag content
// from text, returning what's left as Text.
func ParseStructuredResponse(text string) StructuredResponse {
	var thinking, reportedStatus string
	workingText := text

	statusStart := strings.Index(workingText, "<status>")
	statusEnd := strings.Index(workingText, "</status>")
	if statusStart != -1 && statusEnd != -1 && statusEnd > statusStart {
		reportedStatus = strings.TrimSpace(workingText[statusStart+len("<status>") : statusEnd])
		workingText = workingText[:statusStart] + workingText[statusEnd+len("</status>"):]
	}

	thinkStart := strings.Index(workingText, "<think>")
	thinkEnd := strings.Index(workingText, "</think>")
	if thinkStart != -1 && thinkEnd != -1 && thinkEnd > thinkStart {
		thinking = strings.TrimSpace(workingText[thinkStart+len("<think>") : thinkEnd])
		workingText = workingText[:thinkStart] + workingText[thinkEnd+len("</think>"):]
	}

	return StructuredResponse{
		Thinking:          thinking,
		Text:              strings.TrimSpace(workingText),
		StatusDescription: reportedStatus,
	}
}
