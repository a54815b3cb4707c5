package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rainman456/Dllm-Demo-Saros/internal/types"
)

// SaveStopLossConfig upserts the config for one position.
func (s *Store) SaveStopLossConfig(ctx context.Context, positionID string, cfg types.StopLossConfig) (err error) {
	if s.db == nil {
		return ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	stmt := `
		INSERT INTO stop_loss_configs (position_id, enabled, percentage, target_token, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (position_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			percentage = EXCLUDED.percentage,
			target_token = EXCLUDED.target_token,
			updated_at = EXCLUDED.updated_at;`
	if _, err = tx.ExecContext(ctx, stmt, positionID, cfg.Enabled, cfg.Percentage, string(cfg.TargetToken), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert stop-loss config for %s: %w", positionID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("position_id", positionID).
		Bool("enabled", cfg.Enabled).
		Float64("percentage", cfg.Percentage).
		Str("target_token", string(cfg.TargetToken)).
		Msg("Saved stop-loss config")
	return nil
}

// DeleteStopLossConfig removes the config for one position. Deleting a missing row is not an error.
func (s *Store) DeleteStopLossConfig(ctx context.Context, positionID string) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stop_loss_configs WHERE position_id = $1;`, positionID); err != nil {
		return fmt.Errorf("failed to delete stop-loss config for %s: %w", positionID, err)
	}
	return nil
}

// LoadStopLossConfigs returns every stored config keyed by position id.
func (s *Store) LoadStopLossConfigs(ctx context.Context) (map[string]types.StopLossConfig, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `SELECT position_id, enabled, percentage, target_token FROM stop_loss_configs;`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]types.StopLossConfig{}, nil
		}
		return nil, fmt.Errorf("failed to query stop-loss configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]types.StopLossConfig)
	for rows.Next() {
		var (
			id     string
			cfg    types.StopLossConfig
			target string
		)
		if err := rows.Scan(&id, &cfg.Enabled, &cfg.Percentage, &target); err != nil {
			return nil, fmt.Errorf("failed to scan stop-loss config: %w", err)
		}
		token, err := types.ParseTargetToken(target)
		if err != nil {
			s.logger.Warn().Err(err).Str("position_id", id).Msg("Skipping stored stop-loss config with unknown target token")
			continue
		}
		cfg.TargetToken = token
		configs[id] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop-loss configs: %w", err)
	}

	s.logger.Info().Int("count", len(configs)).Msg("Loaded stop-loss configs")
	return configs, nil
}
