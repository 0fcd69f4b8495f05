// Package scan runs the scoring pass: poll a quote, score pressure, fold in
// sentiment, and feed the signal detector. Each pass is a short-lived
// invocation driven by an external timer; all state lives in the store.
package scan

import (
	"context"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/market"
	"github.com/quantfold/papertrade/internal/pressure"
	"github.com/quantfold/papertrade/internal/repository"
	"github.com/quantfold/papertrade/internal/signal"
	"github.com/quantfold/papertrade/internal/types"
	"go.uber.org/zap"
)

// TextSource supplies aggregated headline/social text for a symbol. May be
// absent; sentiment then degrades to neutral.
type TextSource interface {
	Headlines(ctx context.Context, symbol string) (string, error)
}

// Publisher receives scoring events for fan-out. The websocket hub
// implements this through an adapter.
type Publisher interface {
	Publish(eventType, symbol string, payload any)
}

// Scanner orchestrates one scoring pass per symbol.
type Scanner struct {
	store     *repository.Store
	quotes    market.QuoteSource
	analyzer  *market.Analyzer
	scorer    *pressure.Scorer
	sentiment *pressure.SentimentScorer
	detector  *signal.Detector
	text      TextSource
	publisher Publisher
	logger    *logger.Logger
}

// NewScanner wires the scoring pipeline. text and publisher may be nil.
func NewScanner(
	log *logger.Logger,
	store *repository.Store,
	quotes market.QuoteSource,
	analyzer *market.Analyzer,
	scorer *pressure.Scorer,
	sentiment *pressure.SentimentScorer,
	detector *signal.Detector,
	text TextSource,
	publisher Publisher,
) *Scanner {
	return &Scanner{
		store:     store,
		quotes:    quotes,
		analyzer:  analyzer,
		scorer:    scorer,
		sentiment: sentiment,
		detector:  detector,
		text:      text,
		publisher: publisher,
		logger:    log,
	}
}

// ScanAll runs one pass over every symbol. Per-symbol failures are logged
// and do not stop the pass.
func (s *Scanner) ScanAll(ctx context.Context, symbols []string) {
	for _, symbol := range symbols {
		if err := s.Scan(ctx, symbol); err != nil {
			s.logger.Warn("Scan pass failed for symbol",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
		}
	}
}

// Scan scores one symbol: quote, pressure record, SPI sample, and - when
// enough history has accumulated - a detector pass.
func (s *Scanner) Scan(ctx context.Context, symbol string) error {
	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return err
	}

	if err := s.store.InsertQuote(quote); err != nil {
		return err
	}

	record := s.scorer.Score(quote)
	if err := s.store.InsertPressureRecord(record); err != nil {
		return err
	}

	s.publish("pressure", symbol, record)

	judgment := s.judgeSentiment(ctx, symbol)

	previousSPI := -1.0
	if spOpt, spErr := s.store.LatestSemanticPressure(symbol); spErr == nil && spOpt.IsSome() {
		previousSPI = spOpt.Unwrap().SPI
	}

	sp := pressure.SemanticIndex(symbol, record.FinalPressure, judgment, previousSPI, quote.Timestamp)
	if err := s.store.InsertSemanticPressure(sp); err != nil {
		return err
	}

	if sp.AlertTriggered {
		s.publish("spi_alert", symbol, sp)

		s.logger.Info("SPI alert",
			zap.String("symbol", symbol),
			zap.Float64("spi", sp.SPI),
			zap.Float64("spi_change", sp.SPIChange),
		)
	}

	analysis, err := s.analyzer.Analyze(symbol)
	if err != nil {
		// Early in the session there is not enough history yet; the
		// detector simply waits for more polls.
		return nil
	}

	sig := s.detector.Detect(analysis, judgment)
	if sig.Type == types.SignalTypeNone {
		return nil
	}

	if err := s.store.InsertSignal(sig); err != nil {
		return err
	}

	s.publish("signal", symbol, sig)

	return nil
}

func (s *Scanner) judgeSentiment(ctx context.Context, symbol string) types.AdvisorJudgment {
	if s.text == nil {
		return types.NeutralJudgment()
	}

	text, err := s.text.Headlines(ctx, symbol)
	if err != nil {
		s.logger.Warn("Headline lookup failed, sentiment degraded to neutral",
			zap.String("symbol", symbol),
			zap.Error(err),
		)

		return types.NeutralJudgment()
	}

	return s.sentiment.Judge(ctx, symbol, text)
}

func (s *Scanner) publish(eventType, symbol string, payload any) {
	if s.publisher == nil {
		return
	}

	s.publisher.Publish(eventType, symbol, payload)
}
