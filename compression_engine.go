package agentcore

// CompressionStrategy names one of the four fixed parameter sets the
// Compression Engine chooses between (§4.5).
type CompressionStrategy string

const (
	StrategyStandard   CompressionStrategy = "standard"
	StrategyAggressive CompressionStrategy = "aggressive"
	StrategySelective  CompressionStrategy = "selective"
	StrategyEmergency  CompressionStrategy = "emergency"
)

// strategyParams is a strategy's fixed tuning: how many recent
// messages to always keep verbatim, the minimum number of compressible
// messages needed to bother, whether user messages may be compressed,
// the summary detail level, and the summary's token budget (§4.5).
type strategyParams struct {
	KeepRecent       int
	MinToCompress    int
	CompressUser     bool
	Level            CompressionLevel
	MaxSummaryTokens int
	ratio            float64 // estimateCompression's per-strategy savings ratio
}

var strategyTable = map[CompressionStrategy]strategyParams{
	StrategyStandard:   {KeepRecent: 5, MinToCompress: 2, CompressUser: false, Level: CompressionLevelDetailed, MaxSummaryTokens: 500, ratio: 0.20},
	StrategyAggressive: {KeepRecent: 3, MinToCompress: 1, CompressUser: false, Level: CompressionLevelModerate, MaxSummaryTokens: 300, ratio: 0.15},
	StrategySelective:  {KeepRecent: 7, MinToCompress: 3, CompressUser: false, Level: CompressionLevelDetailed, MaxSummaryTokens: 500, ratio: 0.25},
	StrategyEmergency:  {KeepRecent: 2, MinToCompress: 1, CompressUser: true, Level: CompressionLevelUltraCompact, MaxSummaryTokens: 200, ratio: 0.10},
}

// StrategyParams returns the fixed tuning for a strategy, defaulting to
// standard for an unrecognized value.
func StrategyParams(strategy CompressionStrategy) strategyParams {
	if p, ok := strategyTable[strategy]; ok {
		return p
	}
	return strategyTable[StrategyStandard]
}

// RecommendStrategy picks a strategy from how full the context window
// is: the closer to the hard limit, the more aggressively it compresses
// (§4.5).
func RecommendStrategy(currentTokens, limit int) CompressionStrategy {
	if limit <= 0 {
		return StrategyStandard
	}
	usage := float64(currentTokens) / float64(limit)
	switch {
	case usage >= 0.95:
		return StrategyEmergency
	case usage >= 0.85:
		return StrategyAggressive
	case usage >= 0.70:
		return StrategyStandard
	default:
		return StrategySelective
	}
}

// CompressionEstimate is estimateCompression's result (§4.5): a
// prediction of how much a strategy would save without actually
// running the Summarization Service.
type CompressionEstimate struct {
	TokensSaved      int
	Ratio            float64
	WorthCompressing bool
}

// EstimateCompression predicts a strategy's savings from the tokens
// held by its compressible targets (older assistant messages, or all
// older messages when the strategy allows compressing user turns),
// using the strategy's fixed ratio constant. A compression is only
// worth running if it would free at least 500 tokens.
func EstimateCompression(messages []*Message, strategy CompressionStrategy) CompressionEstimate {
	params := StrategyParams(strategy)
	targets := compressionTargets(messages, params)

	compressibleTokens := 0
	for _, m := range targets {
		compressibleTokens += m.TokenCount
	}

	saved := int(float64(compressibleTokens) * params.ratio)
	return CompressionEstimate{
		TokensSaved:      saved,
		Ratio:            params.ratio,
		WorthCompressing: saved >= 500,
	}
}

// compressionTargets selects the messages a strategy would compress:
// everything but the last KeepRecent messages, restricted to assistant
// messages unless the strategy allows compressing user turns too
// (§4.4 stage 1, §4.5).
func compressionTargets(messages []*Message, params strategyParams) []*Message {
	cutoff := len(messages) - params.KeepRecent
	if cutoff <= 0 {
		return nil
	}
	var targets []*Message
	for _, m := range messages[:cutoff] {
		if m.Role == RoleAssistant || (params.CompressUser && m.Role == RoleUser) {
			targets = append(targets, m)
		}
	}
	return targets
}
