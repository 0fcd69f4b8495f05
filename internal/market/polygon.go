package market

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/quantfold/papertrade/internal/logger"
	"github.com/quantfold/papertrade/internal/session"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
	"go.uber.org/zap"
)

// PolygonSource reads daily aggregates from Polygon and derives a quote from
// the two most recent bars.
type PolygonSource struct {
	client *polygon.Client
	window *session.Window
	logger *logger.Logger
	clock  session.Clock
}

// NewPolygonSource builds a polygon-backed quote source.
func NewPolygonSource(log *logger.Logger, apiKey string, window *session.Window) (*PolygonSource, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return &PolygonSource{
		client: polygon.New(apiKey),
		window: window,
		logger: log,
		clock:  session.SystemClock{},
	}, nil
}

// GetQuote implements QuoteSource. It fetches the last week of daily bars so
// weekends and holidays still leave at least two bars to derive prev close
// from.
func (p *PolygonSource) GetQuote(ctx context.Context, symbol string) (types.Quote, error) {
	now := p.clock.Now()

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(now.AddDate(0, 0, -7)),
		To:         models.Millis(now),
	}.WithLimit(10)

	iter := p.client.ListAggs(ctx, params)

	var bars []models.Agg

	for iter.Next() {
		bars = append(bars, iter.Item())
	}

	if iter.Err() != nil {
		return types.Quote{}, errors.Wrapf(errors.ErrCodeQuoteUnavailable, iter.Err(),
			"polygon aggregates failed for %s", symbol)
	}

	if len(bars) == 0 {
		return types.Quote{}, errors.Newf(errors.ErrCodeQuoteUnavailable,
			"polygon returned no bars for %s", symbol)
	}

	last := bars[len(bars)-1]

	prevClose := last.Open
	if len(bars) >= 2 {
		prevClose = bars[len(bars)-2].Close
	}

	quote := types.Quote{
		Symbol:    symbol,
		LastPrice: last.Close,
		PrevClose: prevClose,
		Volume:    last.Volume,
		High:      last.High,
		Low:       last.Low,
		Open:      last.Open,
		Session:   p.sessionFor(now),
		Source:    "polygon",
		ErrorFlag: false,
		Timestamp: now,
	}

	if prevClose > 0 {
		quote.ChangePct = (quote.LastPrice - prevClose) / prevClose * 100
	}

	if quote.LastPrice <= 0 {
		return types.Quote{}, errors.Newf(errors.ErrCodeQuoteMalformed,
			"polygon bar for %s has non-positive close %f", symbol, last.Close)
	}

	p.logger.Debug("Fetched polygon quote",
		zap.String("symbol", symbol),
		zap.Float64("last_price", quote.LastPrice),
		zap.Float64("change_pct", quote.ChangePct),
	)

	return quote, nil
}

func (p *PolygonSource) sessionFor(t time.Time) types.QuoteSession {
	if p.window == nil {
		return types.QuoteSessionRegular
	}

	if ok, _ := p.window.Allowed(t); ok {
		return types.QuoteSessionRegular
	}

	return types.QuoteSessionClosed
}
