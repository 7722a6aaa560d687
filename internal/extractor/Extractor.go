/*

This file contains the factor extraction orchestrator. The six factor
extractors are mutually independent and dominated by network latency, so one
score computation fans all of them out concurrently under a single timeout
budget and waits for the full set.

*/

package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openscore/engine/internal/gateway"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
	"golang.org/x/sync/errgroup"
)

// Error definitions for zero-tolerance error handling
var (
	ErrExtractionFailed  = errors.New("factor extraction failed")
	ErrFactorOutOfRange  = errors.New("extracted factor is outside [0,1]")
	ErrFactorNotFinite   = errors.New("extracted factor is not finite")
	ErrGatewayClientNil  = errors.New("gateway client cannot be nil")
	ErrInvalidTimeBudget = errors.New("extraction timeout must be positive")
)

var extractorLogger = logger.GetForComponent("factor_extractor")

// NFTLister lists the NFTs owned by an address. Social proof only uses the
// distinct-contract count derived from the result.
type NFTLister interface {
	ListOwnedNfts(ctx context.Context, address string) ([]types.OwnedNft, error)
}

// PoapLister lists the POAPs held by an address.
type PoapLister interface {
	ListPoaps(ctx context.Context, address string) ([]types.PoapToken, error)
}

// NameResolver reverse-resolves an address to its primary name. An empty
// string with a nil error means no name is set; that is valid input, not a
// failure.
type NameResolver interface {
	ResolveName(ctx context.Context, address string) (string, error)
}

// Extractor computes the six normalized credit factors for an address. All
// dependencies are injected; the zero value is not usable.
type Extractor struct {
	gateway *gateway.Client
	nft     NFTLister
	poap    PoapLister
	ens     NameResolver
	timeout time.Duration
	now     func() time.Time
}

// Config holds the dependencies for creating a new Extractor.
type Config struct {
	Gateway *gateway.Client
	NFT     NFTLister
	Poap    PoapLister
	ENS     NameResolver
	Timeout time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// New creates an Extractor with dependency validation. The NFT, POAP and ENS
// clients may be nil; the social proof sub-signals they back then contribute
// zero.
func New(cfg Config) (*Extractor, error) {
	if cfg.Gateway == nil {
		return nil, ErrGatewayClientNil
	}
	if cfg.Timeout <= 0 {
		return nil, ErrInvalidTimeBudget
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Extractor{
		gateway: cfg.Gateway,
		nft:     cfg.NFT,
		poap:    cfg.Poap,
		ens:     cfg.ENS,
		timeout: cfg.Timeout,
		now:     now,
	}, nil
}

// ExtractAll computes all six factors for one address concurrently and waits
// for the full set. Extractors with a documented neutral default or fallback
// degrade internally; any remaining failure aborts the whole computation so
// a partial, misleading score is never produced.
func (e *Extractor) ExtractAll(ctx context.Context, address string) (types.FactorVector, error) {
	user, err := types.NormalizeAddress(address)
	if err != nil {
		return types.FactorVector{}, errors.Join(ErrExtractionFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	extractorLogger.Debug().
		Str("address", user).
		Dur("timeout", e.timeout).
		Msg("Starting factor fan-out")

	var factors types.FactorVector
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		value, err := e.RepaymentHistory(groupCtx, user)
		if err != nil {
			return wrapFactorError(types.FactorRepay, err)
		}
		factors.Repay = value
		return nil
	})
	group.Go(func() error {
		value, err := e.CollateralDiversity(groupCtx, user)
		if err != nil {
			return wrapFactorError(types.FactorDiversity, err)
		}
		factors.Diversity = value
		return nil
	})
	group.Go(func() error {
		value, err := e.AccountAge(groupCtx, user)
		if err != nil {
			return wrapFactorError(types.FactorAge, err)
		}
		factors.Age = value
		return nil
	})
	group.Go(func() error {
		value, err := e.WalletActivity(groupCtx, user)
		if err != nil {
			return wrapFactorError(types.FactorActivity, err)
		}
		factors.Activity = value
		return nil
	})
	group.Go(func() error {
		value, err := e.RiskSafety(groupCtx, user)
		if err != nil {
			return wrapFactorError(types.FactorRisk, err)
		}
		factors.Risk = value
		return nil
	})
	group.Go(func() error {
		value, err := e.SocialProof(groupCtx, user)
		if err != nil {
			return wrapFactorError(types.FactorSocial, err)
		}
		factors.Social = value
		return nil
	})

	if err := group.Wait(); err != nil {
		extractorLogger.Error().
			Err(err).
			Str("address", user).
			Msg("Factor fan-out failed")
		return types.FactorVector{}, err
	}

	extractorLogger.Debug().
		Str("address", user).
		Float64("repay", factors.Repay).
		Float64("diversity", factors.Diversity).
		Float64("age", factors.Age).
		Float64("activity", factors.Activity).
		Float64("risk", factors.Risk).
		Float64("social", factors.Social).
		Msg("Factor fan-out completed")

	return factors, nil
}

func wrapFactorError(kind types.FactorKind, err error) error {
	return fmt.Errorf("factor %s: %w", kind, errors.Join(ErrExtractionFailed, err))
}

// checkFactor rejects non-finite or out-of-range extractor output. Corrupted
// upstream data must not contaminate the score; clamping only happens at the
// basis-point serialization boundary, never here.
func checkFactor(kind types.FactorKind, value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: factor %s is %f", ErrFactorNotFinite, kind, value)
	}
	if value < 0 || value > 1 {
		return 0, fmt.Errorf("%w: factor %s is %f", ErrFactorOutOfRange, kind, value)
	}
	return value, nil
}
