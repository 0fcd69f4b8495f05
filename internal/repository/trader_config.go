package repository

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/quantfold/papertrade/internal/types"
	"github.com/quantfold/papertrade/pkg/errors"
)

// GetTraderConfig returns the stored trader configuration, seeding the
// default when none exists yet.
func (s *Store) GetTraderConfig(id string) (types.TraderConfig, error) {
	query := s.sq.
		Select("id", "version", "weight_volume_ratio", "weight_momentum",
			"weight_sentiment", "weight_institutional", "min_confidence",
			"min_volume_ratio", "optimized", "updated_at").
		From("trader_configs").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	var cfg types.TraderConfig

	err := query.QueryRow().Scan(
		&cfg.ID, &cfg.Version, &cfg.Weights.VolumeRatio, &cfg.Weights.Momentum,
		&cfg.Weights.Sentiment, &cfg.Weights.Institutional, &cfg.MinConfidence,
		&cfg.MinVolumeRatio, &cfg.Optimized, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			seed := types.DefaultTraderConfig()
			seed.ID = id

			if err := s.insertTraderConfig(seed); err != nil {
				return types.TraderConfig{}, err
			}

			return seed, nil
		}

		return types.TraderConfig{}, fmt.Errorf("failed to get trader config: %w", err)
	}

	return cfg, nil
}

// SaveTraderConfig writes the configuration back with Version+1. The write
// only succeeds against the version it was read at, so concurrent cycles
// cannot clobber each other's adaptation.
func (s *Store) SaveTraderConfig(cfg types.TraderConfig) (types.TraderConfig, error) {
	readVersion := cfg.Version
	cfg.Version++

	update := s.sq.
		Update("trader_configs").
		Set("version", cfg.Version).
		Set("weight_volume_ratio", cfg.Weights.VolumeRatio).
		Set("weight_momentum", cfg.Weights.Momentum).
		Set("weight_sentiment", cfg.Weights.Sentiment).
		Set("weight_institutional", cfg.Weights.Institutional).
		Set("min_confidence", cfg.MinConfidence).
		Set("min_volume_ratio", cfg.MinVolumeRatio).
		Set("optimized", cfg.Optimized).
		Set("updated_at", cfg.UpdatedAt).
		Where(squirrel.Eq{"id": cfg.ID, "version": readVersion}).
		RunWith(s.db)

	result, err := update.Exec()
	if err != nil {
		return types.TraderConfig{}, fmt.Errorf("failed to save trader config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.TraderConfig{}, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return types.TraderConfig{}, errors.Newf(errors.ErrCodeConflict,
			"trader config %s changed since version %d was read", cfg.ID, readVersion)
	}

	return cfg, nil
}

func (s *Store) insertTraderConfig(cfg types.TraderConfig) error {
	insert := s.sq.
		Insert("trader_configs").
		Columns("id", "version", "weight_volume_ratio", "weight_momentum",
			"weight_sentiment", "weight_institutional", "min_confidence",
			"min_volume_ratio", "optimized", "updated_at").
		Values(cfg.ID, cfg.Version, cfg.Weights.VolumeRatio,
			cfg.Weights.Momentum, cfg.Weights.Sentiment,
			cfg.Weights.Institutional, cfg.MinConfidence, cfg.MinVolumeRatio,
			cfg.Optimized, cfg.UpdatedAt).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return fmt.Errorf("failed to insert trader config: %w", err)
	}

	return nil
}
