/*

This file contains the scoring engine orchestrator. It wires the factor
extractor, the aggregator, the on-chain consumer and the snapshot store into
the two top-level operations the service exposes: computing a score for an
address, and refreshing it (compute plus on-chain publication).

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openscore/engine/internal/chain"
	"github.com/openscore/engine/internal/extractor"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/scoring"
	"github.com/openscore/engine/internal/state"
	"github.com/openscore/engine/internal/types"
)

const (
	// Exported for use in main.go when seeding the weights table.
	DefaultWeightsConfigName    = "default_scoring_weights"
	DefaultWeightsConfigVersion = 1
)

// ErrPublishingDisabled is returned by RefreshScore when the engine was built
// without a publisher (no updater key configured).
var ErrPublishingDisabled = errors.New("on-chain publishing is not configured")

// ErrReaderDisabled is returned by read-back operations when the engine was
// built without a consumer reader.
var ErrReaderDisabled = errors.New("on-chain consumer reader is not configured")

// Engine coordinates one full scoring pipeline run per request.
type Engine struct {
	logger    zerolog.Logger
	extractor *extractor.Extractor
	weights   types.ScoringWeights
	reader    *chain.Reader
	publisher *chain.Publisher
	store     *state.Store
}

// Config holds the dependencies for creating a new Engine instance. Reader,
// Publisher and Store are optional; operations that need a missing dependency
// fail with a sentinel error instead of panicking.
type Config struct {
	Extractor *extractor.Extractor
	Weights   types.ScoringWeights
	Reader    *chain.Reader
	Publisher *chain.Publisher
	Store     *state.Store
}

// New creates a new Engine instance with dependency injection.
func New(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	eng := &Engine{
		logger:    logger.GetForComponent("engine_core"),
		extractor: cfg.Extractor,
		weights:   cfg.Weights,
		reader:    cfg.Reader,
		publisher: cfg.Publisher,
		store:     cfg.Store,
	}

	eng.logger.Info().
		Bool("publisherConfigured", eng.publisher != nil).
		Bool("readerConfigured", eng.reader != nil).
		Bool("storeConfigured", eng.store != nil).
		Msg("Scoring engine instance created")

	return eng, nil
}

func validateEngineConfig(cfg Config) error {
	if cfg.Extractor == nil {
		return fmt.Errorf("factor extractor cannot be nil")
	}
	if err := cfg.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring weights are invalid: %w", err)
	}
	return nil
}

// ComputeScore runs the full off-chain pipeline for one address: concurrent
// factor extraction, validation, weighted aggregation and basis-point
// serialization. Nothing is written on-chain.
func (e *Engine) ComputeScore(ctx context.Context, address string) (*types.ScoreResult, error) {
	normalized, err := types.NormalizeAddress(address)
	if err != nil {
		scoreComputationFailures.WithLabelValues("address").Inc()
		return nil, err
	}

	reqLogger := e.logger.With().Str("address", normalized).Logger()
	reqLogger.Info().Msg("Starting score computation")

	extractStart := time.Now()
	factors, err := e.extractor.ExtractAll(ctx, normalized)
	extractionDuration.Observe(time.Since(extractStart).Seconds())
	if err != nil {
		scoreComputationFailures.WithLabelValues("extraction").Inc()
		reqLogger.Error().Err(err).Msg("Factor extraction failed")
		return nil, err
	}

	score, err := scoring.AggregateScore(factors, e.weights)
	if err != nil {
		scoreComputationFailures.WithLabelValues("aggregation").Inc()
		reqLogger.Error().Err(err).Msg("Score aggregation failed")
		return nil, err
	}

	basisPoints, err := scoring.ToBasisPoints(factors)
	if err != nil {
		scoreComputationFailures.WithLabelValues("aggregation").Inc()
		reqLogger.Error().Err(err).Msg("Basis-point serialization failed")
		return nil, err
	}

	result := &types.ScoreResult{
		Address:     normalized,
		Score:       score,
		Tier:        scoring.TierFor(score),
		Factors:     factors,
		BasisPoints: basisPoints,
		ComputedAt:  time.Now().UTC(),
	}

	scoreComputationsTotal.Inc()
	reqLogger.Info().
		Int("score", result.Score).
		Str("tier", string(result.Tier)).
		Float64("repay", factors.Repay).
		Float64("diversity", factors.Diversity).
		Float64("age", factors.Age).
		Float64("activity", factors.Activity).
		Float64("risk", factors.Risk).
		Float64("social", factors.Social).
		Msg("Score computation complete")

	return result, nil
}

// RefreshScore computes a fresh score for the address and publishes the
// resulting basis-point vector on-chain. The snapshot write after a confirmed
// publication is best effort: a database failure is logged, never surfaced,
// because the contract already holds the new state.
func (e *Engine) RefreshScore(ctx context.Context, address string) (*types.ScoreResult, *types.PublicationReceipt, error) {
	if e.publisher == nil {
		return nil, nil, ErrPublishingDisabled
	}

	result, err := e.ComputeScore(ctx, address)
	if err != nil {
		return nil, nil, err
	}

	reqLogger := e.logger.With().Str("address", result.Address).Logger()
	reqLogger.Info().Int("score", result.Score).Msg("Publishing factor vector on-chain")

	receipt, err := e.publisher.UpdateFactors(ctx, result.Address, result.BasisPoints)
	if err != nil {
		scorePublicationFailures.Inc()
		reqLogger.Error().Err(err).Msg("On-chain publication failed")
		return result, nil, err
	}
	scorePublicationsTotal.Inc()

	reqLogger.Info().
		Str("txHash", receipt.TxHash).
		Uint64("blockNumber", receipt.BlockNumber).
		Msg("Factor vector published on-chain")

	e.saveSnapshot(result, receipt, reqLogger)

	return result, receipt, nil
}

// ReadPublishedScore reads the current on-chain score state for an address
// from the consumer contract.
func (e *Engine) ReadPublishedScore(ctx context.Context, address string) (*types.PublishedScore, error) {
	if e.reader == nil {
		return nil, ErrReaderDisabled
	}
	return e.reader.PublishedScore(ctx, address)
}

// AuthorizedUpdater reads the updater address the consumer contract currently
// accepts publications from.
func (e *Engine) AuthorizedUpdater(ctx context.Context) (string, error) {
	if e.reader == nil {
		return "", ErrReaderDisabled
	}
	updater, err := e.reader.Updater(ctx)
	if err != nil {
		return "", err
	}
	return updater.Hex(), nil
}

// ContractOwner reads the owner address of the consumer contract.
func (e *Engine) ContractOwner(ctx context.Context) (string, error) {
	if e.reader == nil {
		return "", ErrReaderDisabled
	}
	owner, err := e.reader.Owner(ctx)
	if err != nil {
		return "", err
	}
	return owner.Hex(), nil
}

// ScoreHistory returns persisted snapshots for an address, newest first.
func (e *Engine) ScoreHistory(address string, limit int) ([]state.ScoreSnapshot, error) {
	if e.store == nil {
		return []state.ScoreSnapshot{}, nil
	}
	normalized, err := types.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return e.store.GetSnapshotsForAddress(normalized, limit)
}

func (e *Engine) saveSnapshot(result *types.ScoreResult, receipt *types.PublicationReceipt, reqLogger zerolog.Logger) {
	if e.store == nil {
		return
	}

	snapshotID, err := e.store.SaveScoreSnapshot(state.ScoreSnapshot{
		Address:     result.Address,
		Score:       result.Score,
		Tier:        result.Tier,
		BasisPoints: result.BasisPoints,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
	})
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to save score snapshot to database")
		return
	}
	reqLogger.Debug().Int64("snapshotID", snapshotID).Msg("Score snapshot saved")
}
