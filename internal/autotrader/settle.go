package autotrader

import (
	"context"
	"time"

	"github.com/quantfold/papertrade/internal/report"
	"github.com/quantfold/papertrade/internal/types"
	"go.uber.org/zap"
)

// sentimentShift is how much weight one adaptation step moves toward
// sentiment signals.
const sentimentShift = 0.05

// SetReporter wires the end-of-session reporting aggregator.
func (t *Trader) SetReporter(r *report.Reporter) {
	t.reporter = r
}

// Settle force-closes every OPEN round trip at the last known price, then
// runs the reporting aggregator and the win-rate weight adaptation. Returns
// the number of positions closed.
func (t *Trader) Settle(ctx context.Context) (int, error) {
	open, err := t.store.ListOpenTrades(t.accountID)
	if err != nil {
		return 0, err
	}

	closed := 0

	for _, trade := range open {
		price := trade.BuyPrice

		if quoteOpt, quoteErr := t.store.LatestQuote(trade.Symbol); quoteErr == nil && quoteOpt.IsSome() {
			price = quoteOpt.Unwrap().LastPrice
		}

		if _, err := t.guard.SettleSell(t.accountID, trade.Symbol, trade.Shares, price, t.costs); err != nil {
			t.logger.Warn("Settlement sell failed",
				zap.String("symbol", trade.Symbol),
				zap.Error(err),
			)

			continue
		}

		pl := trade.RealizedPL(price)

		plPct := 0.0
		if trade.BuyPrice > 0 {
			plPct = (price - trade.BuyPrice) / trade.BuyPrice * 100
		}

		if err := t.store.CloseAutoTrade(trade.ID, price, pl, plPct, t.clock.Now(), "session_close"); err != nil {
			t.logger.Warn("Failed to close settled trade",
				zap.String("trade_id", trade.ID),
				zap.Error(err),
			)

			continue
		}

		closed++
	}

	t.logger.Info("Session settled",
		zap.Int("positions_closed", closed),
	)

	sessionStart := t.window.CloseTime(t.clock.Now()).Add(-24 * time.Hour)

	if t.reporter != nil {
		if _, err := t.reporter.Generate(ctx, t.accountID, sessionStart); err != nil {
			t.logger.Warn("End-of-session report failed", zap.Error(err))
		}
	}

	if err := t.adaptWeights(sessionStart); err != nil {
		t.logger.Warn("Weight adaptation failed", zap.Error(err))
	}

	return closed, nil
}

// adaptWeights applies the rule-based adaptation: a win rate below the floor
// shifts weight from volume toward sentiment signals; a win rate above the
// ceiling freezes the configuration as optimized. The versioned write loses
// to any concurrent cycle and is retried next session.
func (t *Trader) adaptWeights(since time.Time) error {
	trades, err := t.store.ListClosedTrades(t.accountID, since)
	if err != nil {
		return err
	}

	if len(trades) == 0 {
		return nil
	}

	wins := 0

	for _, trade := range trades {
		if outcome, outcomeErr := trade.Outcome.Take(); outcomeErr == nil && outcome == types.TradeOutcomeWin {
			wins++
		}
	}

	winRate := float64(wins) / float64(len(trades))

	cfg, err := t.store.GetTraderConfig("default")
	if err != nil {
		return err
	}

	if cfg.Optimized {
		return nil
	}

	switch {
	case winRate < t.cfg.WinRateFloor:
		shift := sentimentShift
		if cfg.Weights.VolumeRatio < shift {
			shift = cfg.Weights.VolumeRatio
		}

		cfg.Weights.VolumeRatio -= shift
		cfg.Weights.Sentiment += shift

		t.logger.Info("Win rate below floor, shifting weight toward sentiment",
			zap.Float64("win_rate", winRate),
			zap.Float64("sentiment_weight", cfg.Weights.Sentiment),
		)
	case winRate > t.cfg.WinRateCeiling:
		cfg.Optimized = true

		t.logger.Info("Win rate above ceiling, freezing configuration as optimized",
			zap.Float64("win_rate", winRate),
		)
	default:
		return nil
	}

	_, err = t.store.SaveTraderConfig(cfg)

	return err
}
