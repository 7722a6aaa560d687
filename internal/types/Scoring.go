/*

This file contains the tunable scoring weights for the credit-score engine.

*/

package types

import (
	"errors"
	"math"
)

// ScoringWeights holds the fixed weights used to combine the six normalized
// factors into the 0-1000 aggregate score. The six weights must be
// non-negative, finite, and sum to 1.0 (within a small tolerance).
// Different versions of these weights can exist; the active set is loaded at
// startup and applied uniformly to every computation.
type ScoringWeights struct {
	Repay     float64 `json:"repay_weight"`     // Weight for repayment history.
	Diversity float64 `json:"diversity_weight"` // Weight for collateral diversity.
	Age       float64 `json:"age_weight"`       // Weight for account age.
	Activity  float64 `json:"activity_weight"`  // Weight for wallet activity.
	Risk      float64 `json:"risk_weight"`      // Weight for risk safety.
	Social    float64 `json:"social_weight"`    // Weight for social proof.
}

// DefaultScoringWeights is the canonical weight table: repay 30%,
// diversity 20%, age 15%, activity 10%, risk 15%, social 10%.
var DefaultScoringWeights = ScoringWeights{
	Repay:     0.30,
	Diversity: 0.20,
	Age:       0.15,
	Activity:  0.10,
	Risk:      0.15,
	Social:    0.10,
}

// Validate checks that the weight set is usable for aggregation.
func (w ScoringWeights) Validate() error {
	weights := []struct {
		value float64
		name  string
	}{
		{w.Repay, "repay weight"},
		{w.Diversity, "diversity weight"},
		{w.Age, "age weight"},
		{w.Activity, "activity weight"},
		{w.Risk, "risk weight"},
		{w.Social, "social weight"},
	}

	total := 0.0
	for _, weight := range weights {
		if math.IsNaN(weight.value) || math.IsInf(weight.value, 0) {
			return errors.New(weight.name + " must be finite")
		}
		if weight.value < 0 {
			return errors.New(weight.name + " cannot be negative")
		}
		total += weight.value
	}

	if math.Abs(total-1.0) > 0.0001 {
		return errors.New("scoring weights must sum to 1.0")
	}

	return nil
}
