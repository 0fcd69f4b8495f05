package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/quantfold/papertrade/internal/types"
)

// Quotes, pressure records, semantic pressure and signals are append-only
// time series: insert only, never update.

// InsertQuote appends a quote sample.
func (s *Store) InsertQuote(quote types.Quote) error {
	insert := s.sq.
		Insert("quotes").
		Columns("symbol", "last_price", "prev_close", "change_pct", "volume",
			"high", "low", "open", "session", "source", "error_flag", "timestamp").
		Values(quote.Symbol, quote.LastPrice, quote.PrevClose, quote.ChangePct,
			quote.Volume, quote.High, quote.Low, quote.Open, quote.Session,
			quote.Source, quote.ErrorFlag, quote.Timestamp).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}

	return nil
}

// LatestQuote returns the most recent quote for a symbol, or None.
func (s *Store) LatestQuote(symbol string) (optional.Option[types.Quote], error) {
	query := s.sq.
		Select("symbol", "last_price", "prev_close", "change_pct", "volume",
			"high", "low", "open", "session", "source", "error_flag", "timestamp").
		From("quotes").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("timestamp DESC").
		Limit(1).
		RunWith(s.db)

	var quote types.Quote

	err := query.QueryRow().Scan(
		&quote.Symbol, &quote.LastPrice, &quote.PrevClose, &quote.ChangePct,
		&quote.Volume, &quote.High, &quote.Low, &quote.Open, &quote.Session,
		&quote.Source, &quote.ErrorFlag, &quote.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.Quote](), nil
		}

		return optional.None[types.Quote](), fmt.Errorf("failed to get latest quote: %w", err)
	}

	return optional.Some(quote), nil
}

// ListRecentQuotes returns quotes for a symbol since the given time, oldest
// first. The analyzer derives volume baselines and breakout levels from it.
func (s *Store) ListRecentQuotes(symbol string, since time.Time) ([]types.Quote, error) {
	query := s.sq.
		Select("symbol", "last_price", "prev_close", "change_pct", "volume",
			"high", "low", "open", "session", "source", "error_flag", "timestamp").
		From("quotes").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(squirrel.GtOrEq{"timestamp": since}).
		OrderBy("timestamp ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []types.Quote

	for rows.Next() {
		var quote types.Quote

		err := rows.Scan(
			&quote.Symbol, &quote.LastPrice, &quote.PrevClose, &quote.ChangePct,
			&quote.Volume, &quote.High, &quote.Low, &quote.Open, &quote.Session,
			&quote.Source, &quote.ErrorFlag, &quote.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}

		quotes = append(quotes, quote)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}

	return quotes, nil
}

// InsertPressureRecord appends a pressure scoring pass.
func (s *Store) InsertPressureRecord(record types.PressureRecord) error {
	insert := s.sq.
		Insert("pressure_records").
		Columns("symbol", "price", "day_high", "day_low", "volume",
			"pressure_index", "volatility_adjustment", "final_pressure",
			"action", "timestamp").
		Values(record.Symbol, record.Price, record.DayHigh, record.DayLow,
			record.Volume, record.PressureIndex, record.VolatilityAdjustment,
			record.FinalPressure, record.Action, record.Timestamp).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return fmt.Errorf("failed to insert pressure record: %w", err)
	}

	return nil
}

// LatestPressure returns the most recent pressure record for a symbol.
func (s *Store) LatestPressure(symbol string) (optional.Option[types.PressureRecord], error) {
	query := s.sq.
		Select("symbol", "price", "day_high", "day_low", "volume",
			"pressure_index", "volatility_adjustment", "final_pressure",
			"action", "timestamp").
		From("pressure_records").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("timestamp DESC").
		Limit(1).
		RunWith(s.db)

	var record types.PressureRecord

	err := query.QueryRow().Scan(
		&record.Symbol, &record.Price, &record.DayHigh, &record.DayLow,
		&record.Volume, &record.PressureIndex, &record.VolatilityAdjustment,
		&record.FinalPressure, &record.Action, &record.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.PressureRecord](), nil
		}

		return optional.None[types.PressureRecord](), fmt.Errorf("failed to get latest pressure: %w", err)
	}

	return optional.Some(record), nil
}

// InsertSemanticPressure appends an SPI sample.
func (s *Store) InsertSemanticPressure(sp types.SemanticPressure) error {
	insert := s.sq.
		Insert("semantic_pressure").
		Columns("symbol", "spi", "sentiment_score", "sentiment", "keywords",
			"spi_change", "alert_triggered", "timestamp").
		Values(sp.Symbol, sp.SPI, sp.SentimentScore, sp.Sentiment,
			strings.Join(sp.Keywords, ","), sp.SPIChange, sp.AlertTriggered,
			sp.Timestamp).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return fmt.Errorf("failed to insert semantic pressure: %w", err)
	}

	return nil
}

// LatestSemanticPressure returns the most recent SPI sample for a symbol.
func (s *Store) LatestSemanticPressure(symbol string) (optional.Option[types.SemanticPressure], error) {
	query := s.sq.
		Select("symbol", "spi", "sentiment_score", "sentiment", "keywords",
			"spi_change", "alert_triggered", "timestamp").
		From("semantic_pressure").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("timestamp DESC").
		Limit(1).
		RunWith(s.db)

	var (
		sp       types.SemanticPressure
		keywords string
	)

	err := query.QueryRow().Scan(
		&sp.Symbol, &sp.SPI, &sp.SentimentScore, &sp.Sentiment, &keywords,
		&sp.SPIChange, &sp.AlertTriggered, &sp.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.SemanticPressure](), nil
		}

		return optional.None[types.SemanticPressure](), fmt.Errorf("failed to get latest SPI: %w", err)
	}

	if keywords != "" {
		sp.Keywords = strings.Split(keywords, ",")
	}

	return optional.Some(sp), nil
}

// InsertSignal appends a detected signal. NONE signals are never persisted;
// the detector simply does not emit them.
func (s *Store) InsertSignal(signal types.Signal) error {
	insert := s.sq.
		Insert("signals").
		Columns("id", "symbol", "signal_type", "intensity", "panic",
			"continuation_prob", "conditions", "recommendation", "timestamp").
		Values(signal.ID, signal.Symbol, signal.Type, signal.Intensity,
			signal.Panic, signal.ContinuationProb,
			strings.Join(signal.Conditions, ","), signal.Recommendation,
			signal.Timestamp).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}

	return nil
}

// CountRecentSignals counts signals of one direction for a symbol since the
// given time. The detector uses this for repeat-signal scoring.
func (s *Store) CountRecentSignals(symbol string, signalType types.SignalType, since time.Time) (int, error) {
	query := s.sq.
		Select("COUNT(*)").
		From("signals").
		Where(squirrel.Eq{"symbol": symbol, "signal_type": signalType}).
		Where(squirrel.GtOrEq{"timestamp": since}).
		RunWith(s.db)

	var count int
	if err := query.QueryRow().Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent signals: %w", err)
	}

	return count, nil
}

// ListRecentSignals returns signals since the given time, newest first.
func (s *Store) ListRecentSignals(since time.Time, limit uint64) ([]types.Signal, error) {
	query := s.sq.
		Select("id", "symbol", "signal_type", "intensity", "panic",
			"continuation_prob", "conditions", "recommendation", "timestamp").
		From("signals").
		Where(squirrel.GtOrEq{"timestamp": since}).
		OrderBy("timestamp DESC").
		Limit(limit).
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []types.Signal

	for rows.Next() {
		var (
			signal     types.Signal
			conditions string
		)

		err := rows.Scan(
			&signal.ID, &signal.Symbol, &signal.Type, &signal.Intensity,
			&signal.Panic, &signal.ContinuationProb, &conditions,
			&signal.Recommendation, &signal.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}

		if conditions != "" {
			signal.Conditions = strings.Split(conditions, ",")
		}

		signals = append(signals, signal)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}
