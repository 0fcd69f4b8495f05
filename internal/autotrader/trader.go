// Package autotrader runs the scheduled trading cycle: exit evaluation over
// open round trips, ranked entry scanning over the watchlist, end-of-session
// settlement and rule-based weight adaptation.
package autotrader

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/quantfold/papertrade/internal/config"
	"github.com/quantfold/papertrade/internal/ledger"
	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/market"
	"github.com/quantfold/papertrade/internal/report"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/session"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// institutionalPlaceholder is the fixed institutional-flow score used in the
// candidate blend until a real flow feed exists.
const institutionalPlaceholder = 50.0

// Trader is the auto-trading loop for one account.
type Trader struct {
	store     *repository.Store
	guard     *ledger.Guard
	quotes    market.QuoteSource
	analyzer  *market.Analyzer
	window    *session.Window
	logger    *logger.Logger
	clock     session.Clock
	costs     ledger.CostModel
	cfg       config.TraderConfig
	watchlist []string
	accountID string
	reporter  *report.Reporter
}

// NewTrader builds the auto-trader.
func NewTrader(
	log *logger.Logger,
	store *repository.Store,
	guard *ledger.Guard,
	quotes market.QuoteSource,
	analyzer *market.Analyzer,
	window *session.Window,
	cfg config.Config,
) *Trader {
	return &Trader{
		store:     store,
		guard:     guard,
		quotes:    quotes,
		analyzer:  analyzer,
		window:    window,
		logger:    log,
		clock:     session.SystemClock{},
		costs:     ledger.NewCostModel(cfg.Fees),
		cfg:       cfg.Trader,
		watchlist: cfg.Watchlist,
		accountID: cfg.AccountID,
	}
}

// SetClock replaces the time source. Test hook.
func (t *Trader) SetClock(clock session.Clock) {
	t.clock = clock
}

// CycleResult summarizes one auto-trader pass.
type CycleResult struct {
	Closed int
	Opened int
	// Settled reports that the session ended and end-of-day settlement ran.
	Settled bool
}

// Cycle runs one scheduled pass. Outside the session window it settles any
// remaining open positions once and otherwise does nothing. The tunable
// configuration is re-read each cycle; stale writes lose.
func (t *Trader) Cycle(ctx context.Context) (CycleResult, error) {
	now := t.clock.Now()

	if ok, _ := t.window.Allowed(now); !ok {
		open, err := t.store.ListOpenTrades(t.accountID)
		if err != nil {
			return CycleResult{}, err
		}

		if len(open) == 0 {
			return CycleResult{}, nil
		}

		closed, err := t.Settle(ctx)

		return CycleResult{Closed: closed, Settled: true}, err
	}

	traderCfg, err := t.store.GetTraderConfig("default")
	if err != nil {
		return CycleResult{}, err
	}

	var result CycleResult

	result.Closed = t.evaluateExits(ctx, now)

	open, err := t.store.ListOpenTrades(t.accountID)
	if err != nil {
		return result, err
	}

	if len(open) >= t.cfg.MaxOpenPositions {
		return result, nil
	}

	if t.openBestCandidate(ctx, traderCfg, open) {
		result.Opened = 1
	}

	return result, nil
}

// evaluateExits checks every open round trip against the exit rules and
// closes those that match. Lookup failures leave the trade open for the
// next cycle.
func (t *Trader) evaluateExits(ctx context.Context, now time.Time) int {
	open, err := t.store.ListOpenTrades(t.accountID)
	if err != nil {
		t.logger.Warn("Failed to list open trades", zap.Error(err))

		return 0
	}

	closed := 0

	for _, trade := range open {
		quote, err := t.quotes.GetQuote(ctx, trade.Symbol)
		if err != nil {
			t.logger.Warn("Quote lookup failed, exit check skipped",
				zap.String("symbol", trade.Symbol),
				zap.Error(err),
			)

			continue
		}

		reason, exit := t.exitReason(trade, quote, now)
		if !exit {
			continue
		}

		if err := t.closeTrade(trade, quote.LastPrice, reason); err != nil {
			t.logger.Warn("Failed to close position",
				zap.String("symbol", trade.Symbol),
				zap.String("reason", reason),
				zap.Error(err),
			)

			continue
		}

		closed++
	}

	return closed
}

// exitReason applies the exit rules in priority order: profit target, stop
// loss, extreme volatility, session close buffer, then momentum fade after
// the minimum holding time.
func (t *Trader) exitReason(trade types.AutoTrade, quote types.Quote, now time.Time) (string, bool) {
	if trade.BuyPrice <= 0 {
		return "", false
	}

	plPct := (quote.LastPrice - trade.BuyPrice) / trade.BuyPrice * 100

	switch {
	case plPct >= t.cfg.ProfitTargetPct:
		return "profit_target", true
	case plPct <= -t.cfg.StopLossPct:
		return "stop_loss", true
	case quote.ChangePct >= t.cfg.VolatilityExitPct || quote.ChangePct <= -t.cfg.VolatilityExitPct:
		return "volatility", true
	case t.window.ApproachingClose(now, t.cfg.CloseBuffer):
		return "session_close", true
	}

	if now.Sub(trade.EntryTime) >= t.cfg.MinHoldingTime {
		if analysis, err := t.analyzer.Analyze(trade.Symbol); err == nil {
			faded := analysis.PriceChangePct <= 0 && !analysis.AggressorBuying
			if faded && plPct < t.cfg.ProfitTargetPct {
				return "momentum_fade", true
			}
		}
	}

	return "", false
}

// closeTrade sells the full position and closes the round trip with its
// realized P/L and WIN/LOSS outcome.
func (t *Trader) closeTrade(trade types.AutoTrade, price float64, reason string) error {
	if _, err := t.guard.ExecuteSell(t.accountID, trade.Symbol, trade.Shares, price, t.costs); err != nil {
		return err
	}

	pl := trade.RealizedPL(price)

	plPct := 0.0
	if trade.BuyPrice > 0 {
		plPct = (price - trade.BuyPrice) / trade.BuyPrice * 100
	}

	if err := t.store.CloseAutoTrade(trade.ID, price, pl, plPct, t.clock.Now(), reason); err != nil {
		return err
	}

	t.logger.Info("Position closed",
		zap.String("symbol", trade.Symbol),
		zap.String("reason", reason),
		zap.Float64("pl_amount", pl),
		zap.String("outcome", string(types.OutcomeFor(pl))),
	)

	return nil
}

// candidate is one ranked watchlist entry.
type candidate struct {
	symbol      string
	score       float64
	volumeRatio float64
	price       float64
}

// openBestCandidate ranks the watchlist and opens at most one new position.
// A symbol with an OPEN round trip is never double-entered.
func (t *Trader) openBestCandidate(ctx context.Context, traderCfg types.TraderConfig, open []types.AutoTrade) bool {
	held := make(map[string]bool, len(open))
	for _, trade := range open {
		held[trade.Symbol] = true
	}

	candidates := t.rankCandidates(ctx, traderCfg, held)

	for _, c := range candidates {
		if c.score < traderCfg.MinConfidence || c.volumeRatio < traderCfg.MinVolumeRatio {
			continue
		}

		if t.openPosition(c) {
			return true
		}
	}

	return false
}

// rankCandidates scores each unheld watchlist symbol by the weighted blend
// of volume ratio, momentum, sentiment and the institutional placeholder,
// highest first.
func (t *Trader) rankCandidates(ctx context.Context, traderCfg types.TraderConfig, held map[string]bool) []candidate {
	var candidates []candidate

	for _, symbol := range t.watchlist {
		if held[symbol] {
			continue
		}

		analysis, err := t.analyzer.Analyze(symbol)
		if err != nil {
			if !errors.HasCode(err, errors.ErrCodeDataNotFound) {
				t.logger.Warn("Candidate analysis failed",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
			}

			continue
		}

		quote, err := t.quotes.GetQuote(ctx, symbol)
		if err != nil {
			continue
		}

		sentiment := 0.0
		if spOpt, spErr := t.store.LatestSemanticPressure(symbol); spErr == nil && spOpt.IsSome() {
			sentiment = spOpt.Unwrap().SentimentScore
		}

		candidates = append(candidates, candidate{
			symbol:      symbol,
			score:       blendScore(traderCfg.Weights, analysis, sentiment),
			volumeRatio: analysis.VolumeRatio(),
			price:       quote.LastPrice,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	return candidates
}

// blendScore maps each input onto a 0-100 scale and applies the weights.
func blendScore(w types.TraderWeights, analysis types.MarketAnalysis, sentiment float64) float64 {
	// Volume ratio saturates at 4x baseline.
	volumeScore := analysis.VolumeRatio() / 4 * 100
	if volumeScore > 100 {
		volumeScore = 100
	}

	// Momentum saturates at a 2% move either way; negative moves score 0.
	momentumScore := analysis.PriceChangePct / 2 * 100
	if momentumScore > 100 {
		momentumScore = 100
	}

	if momentumScore < 0 {
		momentumScore = 0
	}

	sentimentScore := (sentiment + 1) / 2 * 100

	return w.VolumeRatio*volumeScore +
		w.Momentum*momentumScore +
		w.Sentiment*sentimentScore +
		w.Institutional*institutionalPlaceholder
}

// openPosition sizes the entry to the configured capital fraction and buys.
func (t *Trader) openPosition(c candidate) bool {
	if c.price <= 0 {
		return false
	}

	openOpt, err := t.store.GetOpenTrade(t.accountID, c.symbol)
	if err != nil || openOpt.IsSome() {
		return false
	}

	account, err := t.guard.Repair(t.accountID)
	if err != nil {
		t.logger.Warn("Account repair failed before entry",
			zap.String("symbol", c.symbol),
			zap.Error(err),
		)

		return false
	}

	shares := float64(int(account.TotalValue * t.cfg.CapitalFraction / c.price))
	if shares <= 0 {
		return false
	}

	result, err := t.guard.ExecuteBuy(t.accountID, c.symbol, shares, c.price, t.costs)
	if err != nil {
		if !errors.IsRejection(err) {
			t.logger.Warn("Entry buy failed",
				zap.String("symbol", c.symbol),
				zap.Error(err),
			)
		}

		return false
	}

	trade := types.AutoTrade{
		ID:        uuid.New().String(),
		AccountID: t.accountID,
		Symbol:    c.symbol,
		Shares:    shares,
		BuyPrice:  c.price,
		TotalCost: result.Total,
		EntryTime: t.clock.Now(),
		Status:    types.TradeStatusOpen,
	}

	if err := t.store.InsertAutoTrade(trade); err != nil {
		t.logger.Warn("Failed to record opened trade",
			zap.String("symbol", c.symbol),
			zap.Error(err),
		)

		return true
	}

	t.logger.Info("Position opened",
		zap.String("symbol", c.symbol),
		zap.Float64("score", c.score),
		zap.Float64("shares", shares),
		zap.Float64("price", c.price),
	)

	return true
}
