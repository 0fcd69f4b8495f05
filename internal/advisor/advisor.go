// Package advisor abstracts the LLM-based reasoning service. The advisor is
// untrusted, best-effort input: every caller supplies a default that is used
// on any failure, timeout or rate limit, so order and trade processing never
// blocks on it.
package advisor

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/quantfold/papertrade/internal/types"
)

// Advisor produces a structured judgment for a prompt. Implementations must
// unmarshal the model output into out, which also defines the JSON schema
// the model is instructed to follow.
type Advisor interface {
	Judge(ctx context.Context, prompt string, out any) error
}

// SchemaFor converts a struct to the JSON schema embedded in the system
// prompt so the model returns parseable output.
func SchemaFor[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// JudgeSentiment asks for a sentiment judgment over aggregated text,
// degrading to NeutralJudgment on any failure. The returned error is
// informational only; the judgment is always usable.
func JudgeSentiment(ctx context.Context, a Advisor, symbol string, text string) (types.AdvisorJudgment, error) {
	judgment := types.NeutralJudgment()

	if a == nil || text == "" {
		return judgment, nil
	}

	prompt := "Assess money-flow sentiment for " + symbol +
		" from the following headlines and social topics. Judge only from the given text.\n\n" + text

	if err := a.Judge(ctx, prompt, &judgment); err != nil {
		return types.NeutralJudgment(), err
	}

	judgment.SentimentScore = clamp(judgment.SentimentScore, -1, 1)
	judgment.Confidence = clamp(judgment.Confidence, 0, 100)

	return judgment, nil
}

// JudgeOrder asks for a confidence/timing/risk annotation on a new order,
// degrading to NeutralAdvice on any failure.
func JudgeOrder(ctx context.Context, a Advisor, order types.Order, quote types.Quote) (types.OrderAdvice, error) {
	advice := types.NeutralAdvice()

	if a == nil {
		return advice, nil
	}

	summary, err := json.Marshal(map[string]any{
		"symbol":     order.Symbol,
		"side":       order.Side,
		"order_type": order.Type,
		"quantity":   order.Quantity,
		"entry":      order.EntryPrice,
		"last_price": quote.LastPrice,
		"change_pct": quote.ChangePct,
		"volume":     quote.Volume,
	})
	if err != nil {
		return advice, err
	}

	prompt := "Rate this simulated order for confidence, execution timing and risk.\n" + string(summary)

	if err := a.Judge(ctx, prompt, &advice); err != nil {
		return types.NeutralAdvice(), err
	}

	advice.Confidence = clamp(advice.Confidence, 0, 100)

	return advice, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
