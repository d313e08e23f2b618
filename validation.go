package agentcore

// SuggestionType enumerates the recovery actions the Validation
// Service can recommend when a prompt exceeds its effective limit
// (§4.2).
type SuggestionType string

const (
	SuggestionCompress          SuggestionType = "compress"
	SuggestionMergeCheckpoints  SuggestionType = "merge_checkpoints"
	SuggestionEmergencyRollover SuggestionType = "emergency_rollover"
	SuggestionRemoveMessages    SuggestionType = "remove_messages"
)

// suggestionPriority orders suggestion types when multiple apply at
// once: compress is tried first, then removing messages, then merging
// checkpoints, then the last-resort emergency rollover (§4.2).
var suggestionPriority = map[SuggestionType]int{
	SuggestionCompress:          1,
	SuggestionRemoveMessages:    2,
	SuggestionMergeCheckpoints:  3,
	SuggestionEmergencyRollover: 4,
}

// Suggestion is one recommended recovery action.
type Suggestion struct {
	Type                SuggestionType
	Priority            int
	EstimatedTokensFreed int
	Description         string
}

// ValidationResult is the Validation Service's output (§4.2).
type ValidationResult struct {
	Valid       bool
	Tokens      int
	Limit       int
	Overage     int
	Errors      []string
	Suggestions []Suggestion
}

// ValidationService checks whether a set of messages fits within an
// effective token limit and, if not, proposes recovery actions.
type ValidationService struct {
	counter TokenCounter
}

// NewValidationService builds a Validation Service backed by the given
// token counter (the default fallback counter if nil).
func NewValidationService(counter TokenCounter) *ValidationService {
	if counter == nil {
		counter = NewTokenCounter()
	}
	return &ValidationService{counter: counter}
}

// EffectiveLimit computes effectiveLimit = ollamaLimit - safetyMargin (§4.2).
func EffectiveLimit(ollamaLimit, safetyMargin int) int {
	limit := ollamaLimit - safetyMargin
	if limit < 0 {
		return 0
	}
	return limit
}

// Validate sums each message's token count and checks it against
// effectiveLimit. When invalid, it returns a non-empty, priority-ordered
// suggestion list where at least one suggestion frees at least half the
// overage, and an emergency_rollover suggestion appears whenever the
// overage exceeds half of the total token count (§4.2).
func (v *ValidationService) Validate(messages []*Message, effectiveLimit int) *ValidationResult {
	tokens := 0
	for _, m := range messages {
		tokens += m.TokenCount
	}

	result := &ValidationResult{
		Tokens: tokens,
		Limit:  effectiveLimit,
	}

	if tokens <= effectiveLimit {
		result.Valid = true
		return result
	}

	overage := tokens - effectiveLimit
	result.Valid = false
	result.Overage = overage
	result.Errors = []string{
		"prompt exceeds the effective context limit",
	}
	result.Suggestions = v.buildSuggestions(messages, tokens, overage)
	return result
}

func (v *ValidationService) buildSuggestions(messages []*Message, tokens, overage int) []Suggestion {
	var suggestions []Suggestion

	compressible := tokensInOlderAssistantMessages(messages)
	if compressible > 0 {
		freed := compressible / 2 // compaction typically halves the compressed span
		if freed <= 0 {
			freed = compressible
		}
		suggestions = append(suggestions, Suggestion{
			Type:                SuggestionCompress,
			Priority:            suggestionPriority[SuggestionCompress],
			EstimatedTokensFreed: freed,
			Description:         "Summarize older assistant messages into a checkpoint to free context.",
		})
	}

	if removable := tokensInOldestMessages(messages, overage); removable > 0 {
		suggestions = append(suggestions, Suggestion{
			Type:                SuggestionRemoveMessages,
			Priority:            suggestionPriority[SuggestionRemoveMessages],
			EstimatedTokensFreed: removable,
			Description:         "Remove the oldest non-essential messages from the active context.",
		})
	}

	if overage > tokens/2 {
		suggestions = append(suggestions, Suggestion{
			Type:                SuggestionEmergencyRollover,
			Priority:            suggestionPriority[SuggestionEmergencyRollover],
			EstimatedTokensFreed: tokens - tokens/4, // emergency strategy keeps only a small recent tail
			Description:         "Overage exceeds half the context; perform an emergency rollover to a fresh session.",
		})
	}

	// Guarantee at least one suggestion frees >= 50% of the overage. If
	// none of the above qualifies (e.g. a tiny, mostly-user-message
	// prompt), fall back to a remove_messages suggestion sized to the
	// overage itself.
	meetsFloor := false
	for _, s := range suggestions {
		if float64(s.EstimatedTokensFreed) >= float64(overage)*0.5 {
			meetsFloor = true
			break
		}
	}
	if !meetsFloor {
		suggestions = append(suggestions, Suggestion{
			Type:                SuggestionRemoveMessages,
			Priority:            suggestionPriority[SuggestionRemoveMessages],
			EstimatedTokensFreed: overage,
			Description:         "Remove enough recent non-essential messages to clear the overage.",
		})
	}

	return suggestions
}

func tokensInOlderAssistantMessages(messages []*Message) int {
	total := 0
	// All but the final exchange counts as "older" for suggestion sizing.
	cutoff := len(messages) - 2
	for i, m := range messages {
		if i >= cutoff {
			break
		}
		if m.Role == RoleAssistant {
			total += m.TokenCount
		}
	}
	return total
}

func tokensInOldestMessages(messages []*Message, target int) int {
	total := 0
	for _, m := range messages {
		if total >= target {
			break
		}
		if m.Role == RoleSystem {
			continue
		}
		total += m.TokenCount
	}
	return total
}
