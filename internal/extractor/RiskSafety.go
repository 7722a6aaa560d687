/*

This file contains the risk safety extractor: a debt-weighted average
collateralization ratio computed in token units. This is a price-free proxy
by design, trading precision for resilience against missing price fields in
the upstream schema.

*/

package extractor

import (
	"context"
	"math"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
	"github.com/openscore/engine/internal/utils"
)

var riskLogger = logger.GetForComponent("risk_extractor")

const (
	// Zero-debt defaults. A zero-debt user carries no risk signal: not
	// penalized, but not assumed maximally safe either.
	zeroDebtWithCollateral = 0.85
	zeroDebtNoCollateral   = 0.70

	// debtEpsilon avoids division by zero in per-position ratios.
	debtEpsilon = 1e-9
)

const riskQuery = `
    query($u:String!){
      userReserves(where:{ user:$u }){
        reserve { decimals }
        scaledATokenBalance
        scaledVariableDebt
        principalStableDebt
        usageAsCollateralEnabledOnUser
      }
    }`

type riskReserveRow struct {
	Reserve struct {
		Decimals int `json:"decimals"`
	} `json:"reserve"`
	ScaledATokenBalance            string `json:"scaledATokenBalance"`
	ScaledVariableDebt             string `json:"scaledVariableDebt"`
	PrincipalStableDebt            string `json:"principalStableDebt"`
	UsageAsCollateralEnabledOnUser bool   `json:"usageAsCollateralEnabledOnUser"`
}

// RiskSafety converts scaled balances to token units per reserve, accumulates
// collateral (collateral-enabled positions with positive balance only) and
// debt (variable plus stable), and maps the debt-weighted average
// collateralization ratio linearly: 1.0x -> 0, 2.0x or higher -> 1.
func (e *Extractor) RiskSafety(ctx context.Context, user string) (float64, error) {
	var result struct {
		UserReserves []riskReserveRow `json:"userReserves"`
	}
	if err := e.gateway.Query(ctx, riskQuery, map[string]any{"u": user}, &result); err != nil {
		return 0, err
	}

	var totalDebt float64
	var weightedSafety float64
	hasCollateral := false

	for _, row := range result.UserReserves {
		decimals := row.Reserve.Decimals
		if decimals == 0 {
			decimals = 18
		}

		aTokens, err := utils.ScaledToTokenUnits(orZero(row.ScaledATokenBalance), decimals)
		if err != nil {
			riskLogger.Warn().
				Err(err).
				Str("user", user).
				Msg("Skipping position with unparseable aToken balance")
			continue
		}
		variableDebt, err := utils.ScaledToTokenUnits(orZero(row.ScaledVariableDebt), decimals)
		if err != nil {
			riskLogger.Warn().
				Err(err).
				Str("user", user).
				Msg("Skipping position with unparseable variable debt")
			continue
		}
		stableDebt, err := utils.ScaledToTokenUnits(orZero(row.PrincipalStableDebt), decimals)
		if err != nil {
			riskLogger.Warn().
				Err(err).
				Str("user", user).
				Msg("Skipping position with unparseable stable debt")
			continue
		}

		debt := variableDebt + stableDebt

		var collateral float64
		if row.UsageAsCollateralEnabledOnUser && aTokens > 0 {
			collateral = aTokens
			hasCollateral = true
		}

		safetyRatio := collateral / (debt + debtEpsilon)

		totalDebt += debt
		weightedSafety += debt * safetyRatio
	}

	if totalDebt <= 0 {
		value := zeroDebtNoCollateral
		if hasCollateral {
			value = zeroDebtWithCollateral
		}
		riskLogger.Debug().
			Str("user", user).
			Bool("hasCollateral", hasCollateral).
			Float64("factor", value).
			Msg("Risk safety calculated with zero debt")
		return checkFactor(types.FactorRisk, value)
	}

	avgSafety := weightedSafety / totalDebt
	if math.IsNaN(avgSafety) || math.IsInf(avgSafety, 0) {
		return 0, wrapFactorError(types.FactorRisk, ErrFactorNotFinite)
	}

	// Linear map: ratio 1.0 -> 0, ratio 2.0+ -> 1.
	value := math.Max(0, math.Min(avgSafety-1.0, 1.0))

	riskLogger.Debug().
		Str("user", user).
		Int("positionCount", len(result.UserReserves)).
		Float64("totalDebtTokenUnits", totalDebt).
		Float64("avgSafetyRatio", avgSafety).
		Float64("factor", value).
		Msg("Risk safety calculated")

	return checkFactor(types.FactorRisk, value)
}

func orZero(scaled string) string {
	if scaled == "" {
		return "0"
	}
	return scaled
}
