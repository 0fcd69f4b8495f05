package pressure

import (
	"context"
	"strings"

	"github.com/quantfold/papertrade/internal/advisor"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/types"
	"go.uber.org/zap"
)

// Curated keyword lists matched against aggregated headlines and social
// topics. Matching is case-insensitive substring.
var (
	positiveKeywords = []string{
		"surge", "rally", "breakout", "upgrade", "beat", "record",
		"strong", "growth", "buyback", "bullish", "accumulate", "momentum",
		"outperform", "expansion", "approval",
	}

	negativeKeywords = []string{
		"plunge", "crash", "downgrade", "miss", "lawsuit", "recall",
		"weak", "decline", "selloff", "bearish", "dilution", "default",
		"underperform", "investigation", "bankruptcy",
	}
)

// SentimentScorer scores aggregated text with keyword lists, optionally
// merged with an advisor judgment.
type SentimentScorer struct {
	advisor advisor.Advisor
	logger  *logger.Logger
}

// NewSentimentScorer builds a SentimentScorer. advisor may be nil, in which
// case only keyword scoring applies.
func NewSentimentScorer(log *logger.Logger, a advisor.Advisor) *SentimentScorer {
	return &SentimentScorer{advisor: a, logger: log}
}

// ScoreText matches the keyword lists against text and returns the score
// (positive−negative)/(positive+negative), 0 when nothing matched, together
// with the matched keywords.
func ScoreText(text string) (float64, []string) {
	lower := strings.ToLower(text)

	var (
		positive, negative float64
		matched            []string
	)

	for _, kw := range positiveKeywords {
		if strings.Contains(lower, kw) {
			positive++

			matched = append(matched, kw)
		}
	}

	for _, kw := range negativeKeywords {
		if strings.Contains(lower, kw) {
			negative++

			matched = append(matched, kw)
		}
	}

	if positive+negative == 0 {
		return 0, nil
	}

	return (positive - negative) / (positive + negative), matched
}

// Judge produces the sentiment judgment for symbol over aggregated text.
// The keyword score always contributes; when the advisor is reachable its
// judgment replaces the score and enriches the keyword set, otherwise the
// keyword-only result stands. Never returns an error.
func (s *SentimentScorer) Judge(ctx context.Context, symbol, text string) types.AdvisorJudgment {
	score, keywords := ScoreText(text)

	judgment := types.NeutralJudgment()
	judgment.SentimentScore = score
	judgment.Sentiment = ClassifySentiment(score)
	judgment.Keywords = keywords

	if s.advisor == nil || text == "" {
		return judgment
	}

	advised, err := advisor.JudgeSentiment(ctx, s.advisor, symbol, text)
	if err != nil {
		s.logger.Warn("Advisor sentiment failed, keeping keyword score",
			zap.String("symbol", symbol),
			zap.Error(err),
		)

		return judgment
	}

	advised.Keywords = mergeKeywords(keywords, advised.Keywords)
	advised.Sentiment = ClassifySentiment(advised.SentimentScore)

	return advised
}

// ClassifySentiment maps a score in [-1,1] to a sentiment label. The neutral
// band is |score| ≤ 0.1.
func ClassifySentiment(score float64) types.Sentiment {
	switch {
	case score > 0.1:
		return types.SentimentPositive
	case score < -0.1:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

func mergeKeywords(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))

	var out []string

	for _, kw := range append(a, b...) {
		if kw == "" || seen[kw] {
			continue
		}

		seen[kw] = true

		out = append(out, kw)
	}

	return out
}
