package agentcore

// Mode selects which system-prompt template and tool permission profile
// the Agent Loop uses for a turn (§3.6).
type Mode string

const (
	ModeDeveloper Mode = "developer"
	ModePlanning  Mode = "planning"
	ModeDebugger  Mode = "debugger"
	ModeAssistant Mode = "assistant"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeDeveloper, ModePlanning, ModeDebugger, ModeAssistant:
		return true
	}
	return false
}

// Tier is a discrete bucket derived from a model's context window size.
// Mode and Tier together select a system-prompt template.
type Tier int

const (
	TierMinimal Tier = iota
	TierSmall
	TierMedium
	TierLarge
	TierHuge
)

// TierForContextWindow buckets a context-window size (in tokens) into
// one of the five tiers. Boundaries follow the spec's "5 buckets"
// requirement without prescribing exact cutoffs beyond ordering, so
// this uses round numbers that scale with common local-model context
// sizes (4k/8k/32k/128k+).
func TierForContextWindow(contextWindow int) Tier {
	switch {
	case contextWindow <= 4096:
		return TierMinimal
	case contextWindow <= 8192:
		return TierSmall
	case contextWindow <= 32768:
		return TierMedium
	case contextWindow <= 131072:
		return TierLarge
	default:
		return TierHuge
	}
}

// ModeManager tracks the current Mode and exposes the system-prompt
// fragment selection the Agent Loop composes into its system prompt
// (§4.8 step 2).
type ModeManager struct {
	mode Mode
}

// NewModeManager returns a ModeManager defaulting to developer mode.
func NewModeManager() *ModeManager {
	return &ModeManager{mode: ModeDeveloper}
}

func (m *ModeManager) Mode() Mode { return m.mode }

func (m *ModeManager) SetMode(mode Mode) error {
	if !mode.IsValid() {
		return &invalidModeError{mode: mode}
	}
	m.mode = mode
	return nil
}

type invalidModeError struct{ mode Mode }

func (e *invalidModeError) Error() string { return "invalid mode: " + string(e.mode) }

// modeRules is the short rule fragment each mode contributes to the
// assembled system prompt (§4.8 step 2: "mode rules").
var modeRules = map[Mode]string{
	ModeDeveloper: "You are in developer mode: prioritize correct, runnable code and concrete file edits.",
	ModePlanning:  "You are in planning mode: produce plans and task breakdowns; avoid making file edits.",
	ModeDebugger:  "You are in debugger mode: focus on root-causing the reported failure before proposing fixes.",
	ModeAssistant: "You are in assistant mode: prioritize clear, concise conversational answers.",
}

// tierPrompt selects the system-prompt template for a (mode, tier)
// pair (§3.6). Smaller tiers get a terser preamble to leave more room
// for conversation.
func tierPrompt(mode Mode, tier Tier) string {
	base := modeRules[mode]
	if base == "" {
		base = modeRules[ModeAssistant]
	}
	if tier <= TierSmall {
		return base
	}
	return base + " You have a large context window available; prefer including relevant surrounding context over asking clarifying questions."
}
