package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openscore/engine/internal/types"
)

// ScoreSnapshot is one persisted score computation, recorded after a
// successful publication. Snapshots are history for the dashboard; the
// on-chain contract remains the system of record and scoring never reads
// them back as a cache.
type ScoreSnapshot struct {
	SnapshotID  int64                  `json:"snapshot_id"`
	Address     string                 `json:"address"`
	Score       int                    `json:"score"`
	Tier        types.Tier             `json:"tier"`
	BasisPoints types.BasisPointVector `json:"basis_points"`
	TxHash      string                 `json:"tx_hash"`
	BlockNumber uint64                 `json:"block_number"`
	CreatedAt   time.Time              `json:"created_at"`
}

// SaveScoreSnapshot persists one score computation outcome.
func (s *Store) SaveScoreSnapshot(snapshot ScoreSnapshot) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO score_snapshots (
			address, score, tier,
			repay_bp, diversity_bp, age_bp, activity_bp, risk_bp, social_bp,
			tx_hash, block_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err := s.db.QueryRow(
		query,
		snapshot.Address, snapshot.Score, string(snapshot.Tier),
		snapshot.BasisPoints.Repay, snapshot.BasisPoints.Diversity,
		snapshot.BasisPoints.Age, snapshot.BasisPoints.Activity,
		snapshot.BasisPoints.Risk, snapshot.BasisPoints.Social,
		snapshot.TxHash, snapshot.BlockNumber,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert score snapshot: %w", err)
	}

	log.Debug().
		Int64("snapshotID", snapshotID).
		Str("address", snapshot.Address).
		Int("score", snapshot.Score).
		Msg("Score snapshot saved")

	return snapshotID, nil
}

// GetSnapshotsForAddress returns the most recent snapshots for one address,
// newest first.
func (s *Store) GetSnapshotsForAddress(address string, limit int) ([]ScoreSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT snapshot_id, address, score, tier,
		       repay_bp, diversity_bp, age_bp, activity_bp, risk_bp, social_bp,
		       COALESCE(tx_hash, ''), COALESCE(block_number, 0), created_at
		FROM score_snapshots
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`

	rows, err := s.db.Query(query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []ScoreSnapshot
	for rows.Next() {
		var snap ScoreSnapshot
		var tier string
		err := rows.Scan(
			&snap.SnapshotID, &snap.Address, &snap.Score, &tier,
			&snap.BasisPoints.Repay, &snap.BasisPoints.Diversity,
			&snap.BasisPoints.Age, &snap.BasisPoints.Activity,
			&snap.BasisPoints.Risk, &snap.BasisPoints.Social,
			&snap.TxHash, &snap.BlockNumber, &snap.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score snapshot: %w", err)
		}
		snap.Tier = types.Tier(tier)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot row iteration failed: %w", err)
	}

	return snapshots, nil
}
