/*

This file contains the score aggregator: the deterministic reduction of six
normalized factors into one bounded integer score and its fixed-point
basis-point representation for on-chain storage.

*/

package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var ErrAggregationInputInvalid = errors.New("aggregation input invalid")
var ErrInvalidScoringWeights = errors.New("invalid scoring weights")

var scoreLogger = logger.GetForComponent("score_aggregator")

const (
	// ScoreScale is the upper bound of the aggregate score range.
	ScoreScale = 1000
	// BasisPointScale is the fixed-point scale of the on-chain representation.
	BasisPointScale = 10000
)

// ValidateFactors is the data-quality gate in front of aggregation: every
// factor must be finite and in [0,1]. Out-of-range values are rejected, not
// clamped, so corrupted upstream data never contaminates the score.
func ValidateFactors(factors types.FactorVector) error {
	inputs := []struct {
		value float64
		kind  types.FactorKind
	}{
		{factors.Repay, types.FactorRepay},
		{factors.Diversity, types.FactorDiversity},
		{factors.Age, types.FactorAge},
		{factors.Activity, types.FactorActivity},
		{factors.Risk, types.FactorRisk},
		{factors.Social, types.FactorSocial},
	}

	for _, input := range inputs {
		if math.IsNaN(input.value) || math.IsInf(input.value, 0) {
			return fmt.Errorf("%w: factor %s is not finite (%f)", ErrAggregationInputInvalid, input.kind, input.value)
		}
		if input.value < 0 || input.value > 1 {
			return fmt.Errorf("%w: factor %s is outside [0,1] (%f)", ErrAggregationInputInvalid, input.kind, input.value)
		}
	}

	return nil
}

// AggregateScore combines six validated factors with the fixed weight table
// into a single integer score in [0,1000]. The same input factors always
// produce the same score; all time dependency lives in the extractors.
func AggregateScore(factors types.FactorVector, weights types.ScoringWeights) (int, error) {
	if err := ValidateFactors(factors); err != nil {
		scoreLogger.Error().
			Err(err).
			Msg("Factor validation failed")
		return 0, err
	}

	if err := weights.Validate(); err != nil {
		scoreLogger.Error().
			Err(err).
			Msg("Scoring weights validation failed")
		return 0, errors.Join(ErrInvalidScoringWeights, err)
	}

	weighted := weights.Repay*factors.Repay +
		weights.Diversity*factors.Diversity +
		weights.Age*factors.Age +
		weights.Activity*factors.Activity +
		weights.Risk*factors.Risk +
		weights.Social*factors.Social

	if math.IsNaN(weighted) || math.IsInf(weighted, 0) {
		return 0, errors.New("weighted sum calculation resulted in NaN or Inf")
	}

	score := int(math.Round(weighted * ScoreScale))
	if score < 0 {
		score = 0
	}
	if score > ScoreScale {
		score = ScoreScale
	}

	scoreLogger.Debug().
		Float64("repay", factors.Repay).
		Float64("diversity", factors.Diversity).
		Float64("age", factors.Age).
		Float64("activity", factors.Activity).
		Float64("risk", factors.Risk).
		Float64("social", factors.Social).
		Float64("weightedSum", weighted).
		Int("score", score).
		Msg("Aggregate score calculated")

	return score, nil
}

// ToBasisPoints converts validated factors to the fixed-point vector passed
// to the on-chain contract. This is the final serialization boundary, so the
// defensive clamp to [0,10000] is appropriate here and only here.
func ToBasisPoints(factors types.FactorVector) (types.BasisPointVector, error) {
	if err := ValidateFactors(factors); err != nil {
		return types.BasisPointVector{}, err
	}

	return types.BasisPointVector{
		Repay:     toBP(factors.Repay),
		Diversity: toBP(factors.Diversity),
		Age:       toBP(factors.Age),
		Activity:  toBP(factors.Activity),
		Risk:      toBP(factors.Risk),
		Social:    toBP(factors.Social),
	}, nil
}

func toBP(value float64) uint16 {
	bp := math.Round(value * BasisPointScale)
	if bp < 0 {
		return 0
	}
	if bp > BasisPointScale {
		return BasisPointScale
	}
	return uint16(bp)
}

// TierFor classifies an aggregate score for presentation only: Bronze below
// 300, Silver below 700, Gold at 700 and above.
func TierFor(score int) types.Tier {
	switch {
	case score < 300:
		return types.TierBronze
	case score < 700:
		return types.TierSilver
	default:
		return types.TierGold
	}
}
