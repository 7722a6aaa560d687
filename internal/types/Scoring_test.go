package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScoringWeightsValid(t *testing.T) {
	require.NoError(t, DefaultScoringWeights.Validate())

	total := DefaultScoringWeights.Repay +
		DefaultScoringWeights.Diversity +
		DefaultScoringWeights.Age +
		DefaultScoringWeights.Activity +
		DefaultScoringWeights.Risk +
		DefaultScoringWeights.Social
	assert.InDelta(t, 1.0, total, 0.0001)
}

func TestScoringWeightsValidate(t *testing.T) {
	valid := ScoringWeights{Repay: 0.4, Diversity: 0.1, Age: 0.1, Activity: 0.1, Risk: 0.2, Social: 0.1}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name    string
		weights ScoringWeights
	}{
		{"sum below one", ScoringWeights{Repay: 0.5}},
		{"sum above one", ScoringWeights{Repay: 0.6, Diversity: 0.6}},
		{"negative weight", ScoringWeights{Repay: 1.1, Diversity: -0.1}},
		{"NaN weight", ScoringWeights{Repay: math.NaN(), Diversity: 1.0}},
		{"Inf weight", ScoringWeights{Repay: math.Inf(1)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.weights.Validate())
		})
	}
}

func TestBasisPointVectorFactors(t *testing.T) {
	bp := BasisPointVector{Repay: 10000, Diversity: 5000, Age: 2000, Activity: 0, Risk: 8500, Social: 3000}
	factors := bp.Factors()

	assert.Equal(t, 1.0, factors.Repay)
	assert.Equal(t, 0.5, factors.Diversity)
	assert.Equal(t, 0.2, factors.Age)
	assert.Equal(t, 0.0, factors.Activity)
	assert.Equal(t, 0.85, factors.Risk)
	assert.Equal(t, 0.3, factors.Social)
}
