// Package report aggregates closed round trips and open positions into a
// performance summary, computed in SQL so the store stays the single source
// of truth.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfold/papertrade/internal/advisor"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// Performance is the aggregated result of a reporting pass.
type Performance struct {
	AccountID string    `json:"account_id"`
	Since     time.Time `json:"since"`

	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`

	RealizedPL   float64 `json:"realized_pl"`
	UnrealizedPL float64 `json:"unrealized_pl"`
	// MaxDrawdown is the largest peak-to-trough drop of cumulative realized
	// P/L over the period, as a positive amount.
	MaxDrawdown float64 `json:"max_drawdown"`

	AvgHoldingSeconds float64 `json:"avg_holding_seconds"`
	MaxHoldingSeconds float64 `json:"max_holding_seconds"`

	// Commentary is optional advisor-written color on the day. Empty when
	// the advisor is unavailable.
	Commentary string `json:"commentary,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Reporter generates performance summaries.
type Reporter struct {
	store   *repository.Store
	advisor advisor.Advisor
	logger  *logger.Logger
}

// NewReporter builds a Reporter. advisor may be nil; commentary is then
// skipped.
func NewReporter(log *logger.Logger, store *repository.Store, a advisor.Advisor) *Reporter {
	return &Reporter{store: store, advisor: a, logger: log}
}

// aggregateQuery walks closed trades in exit order, tracking cumulative
// realized P/L and its running peak to derive the max drawdown inside the
// store.
const aggregateQuery = `
	WITH closed AS (
		SELECT
			pl_amount,
			exit_time,
			EPOCH(exit_time - entry_time) AS holding_seconds,
			SUM(pl_amount) OVER (ORDER BY exit_time) AS cumulative_pl
		FROM auto_trades
		WHERE account_id = ? AND status = 'CLOSED' AND exit_time >= ?
	),
	drawdown AS (
		SELECT cumulative_pl,
			MAX(cumulative_pl) OVER (ORDER BY exit_time ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) AS peak
		FROM closed
	)
	SELECT
		(SELECT COUNT(*) FROM closed),
		(SELECT COUNT(*) FROM closed WHERE pl_amount >= 0),
		(SELECT COALESCE(SUM(pl_amount), 0) FROM closed),
		(SELECT COALESCE(AVG(holding_seconds), 0) FROM closed),
		(SELECT COALESCE(MAX(holding_seconds), 0) FROM closed),
		(SELECT COALESCE(MAX(peak - cumulative_pl), 0) FROM drawdown)
`

// Generate aggregates the account's trades closed since the given time.
func (r *Reporter) Generate(ctx context.Context, accountID string, since time.Time) (Performance, error) {
	perf := Performance{
		AccountID:   accountID,
		Since:       since,
		GeneratedAt: time.Now(),
	}

	row := r.store.DB().QueryRow(aggregateQuery, accountID, since)

	var realized, avgHold, maxHold, drawdown sql.NullFloat64

	err := row.Scan(&perf.TotalTrades, &perf.Wins, &realized, &avgHold, &maxHold, &drawdown)
	if err != nil {
		return Performance{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to aggregate performance", err)
	}

	perf.Losses = perf.TotalTrades - perf.Wins
	perf.RealizedPL = realized.Float64
	perf.AvgHoldingSeconds = avgHold.Float64
	perf.MaxHoldingSeconds = maxHold.Float64
	perf.MaxDrawdown = drawdown.Float64

	if perf.TotalTrades > 0 {
		perf.WinRate = float64(perf.Wins) / float64(perf.TotalTrades)
	}

	positions, err := r.store.ListPositions(accountID)
	if err != nil {
		return Performance{}, err
	}

	for _, pos := range positions {
		perf.UnrealizedPL += pos.UnrealizedPnL
	}

	perf.Commentary = r.commentary(ctx, perf)

	r.logger.Info("Performance report generated",
		zap.String("account_id", accountID),
		zap.Int("total_trades", perf.TotalTrades),
		zap.Float64("win_rate", perf.WinRate),
		zap.Float64("realized_pl", perf.RealizedPL),
	)

	return perf, nil
}

// commentary asks the advisor for end-of-day color. Best effort: any failure
// yields an empty string.
func (r *Reporter) commentary(ctx context.Context, perf Performance) string {
	if r.advisor == nil || perf.TotalTrades == 0 {
		return ""
	}

	prompt := fmt.Sprintf(
		"Write two sentences of end-of-day commentary for a simulated trading account: %d trades, %.0f%% win rate, realized P/L %.2f, max drawdown %.2f.",
		perf.TotalTrades, perf.WinRate*100, perf.RealizedPL, perf.MaxDrawdown,
	)

	var out struct {
		Commentary string `json:"commentary"`
	}

	if err := r.advisor.Judge(ctx, prompt, &out); err != nil {
		r.logger.Warn("Advisor commentary unavailable", zap.Error(err))

		return ""
	}

	return out.Commentary
}
