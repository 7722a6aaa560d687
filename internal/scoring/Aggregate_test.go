package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscore/engine/internal/types"
)

func allFactors(value float64) types.FactorVector {
	return types.FactorVector{
		Repay:     value,
		Diversity: value,
		Age:       value,
		Activity:  value,
		Risk:      value,
		Social:    value,
	}
}

func TestAggregateScoreBounds(t *testing.T) {
	weights := types.DefaultScoringWeights

	score, err := AggregateScore(allFactors(1.0), weights)
	require.NoError(t, err)
	assert.Equal(t, 1000, score, "all-ones factors must score exactly 1000")

	score, err = AggregateScore(allFactors(0.0), weights)
	require.NoError(t, err)
	assert.Equal(t, 0, score, "all-zeros factors must score exactly 0")
}

func TestAggregateScoreWeighting(t *testing.T) {
	weights := types.DefaultScoringWeights

	// Only repayment at 1.0: score must be exactly the repay weight share.
	factors := types.FactorVector{Repay: 1.0}
	score, err := AggregateScore(factors, weights)
	require.NoError(t, err)
	assert.Equal(t, 300, score)

	// Only diversity at 1.0.
	factors = types.FactorVector{Diversity: 1.0}
	score, err = AggregateScore(factors, weights)
	require.NoError(t, err)
	assert.Equal(t, 200, score)
}

func TestAggregateScoreFactorIndependence(t *testing.T) {
	weights := types.DefaultScoringWeights

	base := types.FactorVector{
		Repay:     0.5,
		Diversity: 0.2,
		Age:       0.5,
		Activity:  0.5,
		Risk:      0.85,
		Social:    0.3,
	}
	baseScore, err := AggregateScore(base, weights)
	require.NoError(t, err)

	// Changing one factor moves the score by exactly that factor's weighted
	// delta, leaving every other contribution untouched.
	changed := base
	changed.Diversity = 0.7
	changedScore, err := AggregateScore(changed, weights)
	require.NoError(t, err)

	expectedDelta := int(math.Round(0.5 * weights.Diversity * 1000))
	assert.Equal(t, baseScore+expectedDelta, changedScore)
}

func TestAggregateScoreDeterministic(t *testing.T) {
	factors := types.FactorVector{
		Repay:     0.368,
		Diversity: 0.8,
		Age:       0.44,
		Activity:  0.15,
		Risk:      0.85,
		Social:    0.3,
	}

	first, err := AggregateScore(factors, types.DefaultScoringWeights)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := AggregateScore(factors, types.DefaultScoringWeights)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAggregateScoreRejectsOutOfRange(t *testing.T) {
	weights := types.DefaultScoringWeights

	cases := []struct {
		name    string
		factors types.FactorVector
	}{
		{"above one", types.FactorVector{Repay: 1.5}},
		{"negative", types.FactorVector{Age: -0.1}},
		{"NaN", types.FactorVector{Risk: math.NaN()}},
		{"positive Inf", types.FactorVector{Social: math.Inf(1)}},
		{"negative Inf", types.FactorVector{Activity: math.Inf(-1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AggregateScore(tc.factors, weights)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAggregationInputInvalid)
		})
	}
}

func TestAggregateScoreRejectsBadWeights(t *testing.T) {
	badWeights := types.ScoringWeights{Repay: 0.5, Diversity: 0.2}
	_, err := AggregateScore(allFactors(0.5), badWeights)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidScoringWeights)
}

func TestToBasisPoints(t *testing.T) {
	bp, err := ToBasisPoints(allFactors(1.0))
	require.NoError(t, err)
	assert.Equal(t, uint16(10000), bp.Repay)
	assert.Equal(t, uint16(10000), bp.Social)

	bp, err = ToBasisPoints(allFactors(0.0))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), bp.Repay)

	bp, err = ToBasisPoints(types.FactorVector{Repay: 0.03678, Risk: 0.85})
	require.NoError(t, err)
	assert.Equal(t, uint16(368), bp.Repay)
	assert.Equal(t, uint16(8500), bp.Risk)
}

func TestToBasisPointsRejectsInvalidInput(t *testing.T) {
	_, err := ToBasisPoints(types.FactorVector{Diversity: 1.2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAggregationInputInvalid)
}

func TestBasisPointRoundTrip(t *testing.T) {
	values := []float64{0, 0.0001, 0.03678, 0.2, 0.3333, 0.5, 0.85, 0.9999, 1.0}

	for _, value := range values {
		bp, err := ToBasisPoints(allFactors(value))
		require.NoError(t, err)

		recovered := bp.Factors()
		assert.InDelta(t, value, recovered.Repay, 1.0/10000,
			"round trip must preserve factor %f within one basis point", value)
	}
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, types.TierBronze, TierFor(0))
	assert.Equal(t, types.TierBronze, TierFor(299))
	assert.Equal(t, types.TierSilver, TierFor(300))
	assert.Equal(t, types.TierSilver, TierFor(699))
	assert.Equal(t, types.TierGold, TierFor(700))
	assert.Equal(t, types.TierGold, TierFor(1000))
}
