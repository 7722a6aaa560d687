package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openscore/engine/internal/types"
)

// SaveScoringWeights saves a new version of scoring weights, optionally
// marking it active (deactivating any previous active version of the same
// config name).
func (s *Store) SaveScoringWeights(weights types.ScoringWeights, configName string, version int, makeActive bool) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if err := weights.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to save invalid weights: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE scoring_weights SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, configName)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active weights for %s: %w", configName, err)
		}
	}

	stmtInsert := `
		INSERT INTO scoring_weights (
			config_name, version, is_active,
			repay_weight, diversity_weight, age_weight,
			activity_weight, risk_weight, social_weight
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING weights_id;
	`

	var weightsID int64
	err = tx.QueryRow(
		stmtInsert,
		configName, version, makeActive,
		weights.Repay, weights.Diversity, weights.Age,
		weights.Activity, weights.Risk, weights.Social,
	).Scan(&weightsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scoring weights: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit scoring weights: %w", err)
	}

	log.Info().
		Int64("weightsID", weightsID).
		Str("configName", configName).
		Int("version", version).
		Bool("active", makeActive).
		Msg("Scoring weights saved")

	return weightsID, nil
}

// LoadActiveScoringWeights loads the active weight set for a config name.
func (s *Store) LoadActiveScoringWeights(configName string) (*types.ScoringWeights, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT repay_weight, diversity_weight, age_weight,
		       activity_weight, risk_weight, social_weight
		FROM scoring_weights
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY version DESC
		LIMIT 1;
	`

	var weights types.ScoringWeights
	err := s.db.QueryRow(query, configName).Scan(
		&weights.Repay, &weights.Diversity, &weights.Age,
		&weights.Activity, &weights.Risk, &weights.Social,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active scoring weights found for config %s", configName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring weights: %w", err)
	}

	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("stored scoring weights are invalid: %w", err)
	}

	return &weights, nil
}
