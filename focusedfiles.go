package agentcore

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FocusedFileMatcher resolves a set of user-declared "focused file"
// glob patterns against candidate path strings, producing the ordered
// list the Agent Loop's system prompt builder surfaces as the
// conversation's focused-file section (§4.8 step 2). It never touches
// the filesystem: callers supply the candidate paths (from whatever
// editor/workspace state they track), and this type is pure
// pattern matching over those strings.
type FocusedFileMatcher struct {
	patterns []string
}

// NewFocusedFileMatcher builds a matcher from a set of glob patterns.
// Patterns use doublestar syntax ("**" matches across path separators).
func NewFocusedFileMatcher(patterns ...string) *FocusedFileMatcher {
	return &FocusedFileMatcher{patterns: append([]string(nil), patterns...)}
}

// Match reports whether path matches any configured pattern. An
// invalid pattern never matches (rather than erroring out every
// candidate path), since a single malformed focus pattern shouldn't
// blank out an otherwise-valid focused-file section.
func (m *FocusedFileMatcher) Match(path string) bool {
	for _, pattern := range m.patterns {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

// Filter returns the subset of candidates that match any configured
// pattern, sorted lexically for deterministic prompt rendering.
func (m *FocusedFileMatcher) Filter(candidates []string) []string {
	var out []string
	for _, candidate := range candidates {
		if m.Match(candidate) {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	return out
}

// ValidatePatterns reports the first invalid glob pattern found, if
// any, so a caller can surface a configuration error instead of
// silently matching nothing.
func (m *FocusedFileMatcher) ValidatePatterns() error {
	for _, pattern := range m.patterns {
		if !doublestar.ValidatePattern(pattern) {
			return &invalidFocusPatternError{pattern: pattern}
		}
	}
	return nil
}

type invalidFocusPatternError struct{ pattern string }

func (e *invalidFocusPatternError) Error() string {
	return "focused-file matcher: invalid glob pattern: " + e.pattern
}

// FocusedFileHook returns a PreGenerationHook that appends a focused-file
// section to the system prompt listing the subset of candidates that
// match the matcher's patterns (§4.8 step 2). A nil or empty candidate
// list, or no matches, leaves the system prompt untouched.
func FocusedFileHook(matcher *FocusedFileMatcher, candidates func() []string) PreGenerationHook {
	return func(ctx context.Context, hctx *HookContext) error {
		if matcher == nil || candidates == nil {
			return nil
		}
		matched := matcher.Filter(candidates())
		if len(matched) == 0 {
			return nil
		}
		var b strings.Builder
		b.WriteString("\n\nFocused files:\n")
		for _, path := range matched {
			b.WriteString("- ")
			b.WriteString(path)
			b.WriteString("\n")
		}
		hctx.SystemPrompt += strings.TrimRight(b.String(), "\n")
		return nil
	}
}
