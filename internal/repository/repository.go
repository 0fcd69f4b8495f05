// Package repository is the durable entity store for the engine. It keeps
// every record type — quotes, pressure series, signals, orders, auto-trades,
// accounts, positions and the audit log — in DuckDB, with each mutation
// running in its own transaction.
package repository

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantfold/papertrade/internal/logger"
	"go.uber.org/zap"
)

// Store is the DuckDB-backed repository.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewStore opens the database at path. Use ":memory:" for an ephemeral store.
func NewStore(log *logger.Logger, path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))

		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// DB exposes the underlying handle for read-only aggregation queries that
// outgrow the builder.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Initialize creates the tables for every record type.
func (s *Store) Initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			symbol TEXT,
			last_price DOUBLE,
			prev_close DOUBLE,
			change_pct DOUBLE,
			volume DOUBLE,
			high DOUBLE,
			low DOUBLE,
			open DOUBLE,
			session TEXT,
			source TEXT,
			error_flag BOOLEAN,
			timestamp TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS pressure_records (
			symbol TEXT,
			price DOUBLE,
			day_high DOUBLE,
			day_low DOUBLE,
			volume DOUBLE,
			pressure_index DOUBLE,
			volatility_adjustment DOUBLE,
			final_pressure DOUBLE,
			action TEXT,
			timestamp TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS semantic_pressure (
			symbol TEXT,
			spi DOUBLE,
			sentiment_score DOUBLE,
			sentiment TEXT,
			keywords TEXT,
			spi_change DOUBLE,
			alert_triggered BOOLEAN,
			timestamp TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			symbol TEXT,
			signal_type TEXT,
			intensity INTEGER,
			panic INTEGER,
			continuation_prob INTEGER,
			conditions TEXT,
			recommendation TEXT,
			timestamp TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT,
			order_type TEXT,
			side TEXT,
			quantity DOUBLE,
			entry_price DOUBLE,
			stop_loss_price DOUBLE,
			take_profit_price DOUBLE,
			pressure_trigger DOUBLE,
			pressure_condition TEXT,
			sentiment_trigger TEXT,
			status TEXT,
			parent_order_id TEXT,
			child_order_ids TEXT,
			oco_pair_id TEXT,
			ai_confidence DOUBLE,
			created_at TIMESTAMP,
			last_checked TIMESTAMP,
			filled_price DOUBLE,
			filled_time TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS auto_trades (
			id TEXT PRIMARY KEY,
			account_id TEXT,
			symbol TEXT,
			shares DOUBLE,
			buy_price DOUBLE,
			sell_price DOUBLE,
			total_cost DOUBLE,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			pl_amount DOUBLE,
			pl_percent DOUBLE,
			status TEXT,
			outcome TEXT,
			exit_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			cash_balance DOUBLE,
			equity_value DOUBLE,
			total_value DOUBLE,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			account_id TEXT,
			symbol TEXT,
			quantity DOUBLE,
			avg_cost DOUBLE,
			current_price DOUBLE,
			unrealized_pnl DOUBLE,
			updated_at TIMESTAMP,
			PRIMARY KEY (account_id, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP,
			source TEXT,
			message TEXT,
			severity TEXT,
			details TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS trader_configs (
			id TEXT PRIMARY KEY,
			version BIGINT,
			weight_volume_ratio DOUBLE,
			weight_momentum DOUBLE,
			weight_sentiment DOUBLE,
			weight_institutional DOUBLE,
			min_confidence DOUBLE,
			min_volume_ratio DOUBLE,
			optimized BOOLEAN,
			updated_at TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Cleanup drops every table and recreates the schema. Intended for tests.
func (s *Store) Cleanup() error {
	_, err := s.db.Exec(`
		DROP TABLE IF EXISTS quotes;
		DROP TABLE IF EXISTS pressure_records;
		DROP TABLE IF EXISTS semantic_pressure;
		DROP TABLE IF EXISTS signals;
		DROP TABLE IF EXISTS orders;
		DROP TABLE IF EXISTS auto_trades;
		DROP TABLE IF EXISTS accounts;
		DROP TABLE IF EXISTS positions;
		DROP TABLE IF EXISTS audit_log;
		DROP TABLE IF EXISTS trader_configs;
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	return s.Initialize()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
