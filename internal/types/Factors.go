/*

This file contains the factor and score types shared across the scoring engine.

*/

package types

import "time"

// FactorKind identifies one of the six scored credit factors.
type FactorKind string

const (
	FactorRepay     FactorKind = "repay"
	FactorDiversity FactorKind = "diversity"
	FactorAge       FactorKind = "age"
	FactorActivity  FactorKind = "activity"
	FactorRisk      FactorKind = "risk"
	FactorSocial    FactorKind = "social"
)

// FactorVector holds the six normalized credit factors. Every field is expected
// to lie in the closed interval [0,1]; values outside that range are treated as
// corrupted extraction output and rejected by the aggregator, never clamped.
type FactorVector struct {
	Repay     float64 `json:"repay"`     // Repayment history (time-decayed repay activity).
	Diversity float64 `json:"diversity"` // Collateral diversity (distinct collateral reserves).
	Age       float64 `json:"age"`       // Account age (earliest observed transaction).
	Activity  float64 `json:"activity"`  // Wallet activity (protocol interactions, trailing 90d).
	Risk      float64 `json:"risk"`      // Risk safety (token-unit collateralization proxy).
	Social    float64 `json:"social"`    // Social proof (ENS + POAP + NFT diversity).
}

// BasisPointVector is the fixed-point on-chain representation of a FactorVector,
// each factor scaled to [0,10000].
type BasisPointVector struct {
	Repay     uint16 `json:"repay"`
	Diversity uint16 `json:"diversity"`
	Age       uint16 `json:"age"`
	Activity  uint16 `json:"activity"`
	Risk      uint16 `json:"risk"`
	Social    uint16 `json:"social"`
}

// Factors converts the basis-point vector back to normalized factors.
func (bp BasisPointVector) Factors() FactorVector {
	return FactorVector{
		Repay:     float64(bp.Repay) / 10000,
		Diversity: float64(bp.Diversity) / 10000,
		Age:       float64(bp.Age) / 10000,
		Activity:  float64(bp.Activity) / 10000,
		Risk:      float64(bp.Risk) / 10000,
		Social:    float64(bp.Social) / 10000,
	}
}

// Tier is the presentation-only classification of an aggregate score.
type Tier string

const (
	TierBronze Tier = "Bronze" // [0,300)
	TierSilver Tier = "Silver" // [300,700)
	TierGold   Tier = "Gold"   // [700,1000]
)

// ScoreResult is the outcome of one score computation for an address.
type ScoreResult struct {
	Address     string           `json:"address"`
	Score       int              `json:"score"`
	Tier        Tier             `json:"tier"`
	Factors     FactorVector     `json:"factors"`
	BasisPoints BasisPointVector `json:"basis_points"`
	ComputedAt  time.Time        `json:"computed_at"`
}

// PublishedScore is the score state read back from the on-chain contract.
type PublishedScore struct {
	Address     string           `json:"address"`
	Score       int              `json:"score"`
	BasisPoints BasisPointVector `json:"basis_points"`
	LastUpdated uint64           `json:"last_updated"` // Unix seconds of the last on-chain update.
}

// PublicationReceipt describes a confirmed factor-update transaction.
type PublicationReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}
