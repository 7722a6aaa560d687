/*

This file contains the collateral diversity extractor: the number of distinct
reserves the user has enabled as collateral with a positive balance, capped
at five. Diversity beyond five reserves yields no further signal.

*/

package extractor

import (
	"context"
	"math"

	"github.com/openscore/engine/internal/gateway"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
	"github.com/shopspring/decimal"
)

var diversityLogger = logger.GetForComponent("diversity_extractor")

// diversityCap is the distinct-reserve count at which the signal saturates.
const diversityCap = 5.0

const diversityQuery = `
    query($u:String!){
      userReserves(where:{ user:$u }){
        usageAsCollateralEnabledOnUser
        scaledATokenBalance
        reserve { id }
      }
    }`

// Older schema deployments only expose reserves nested under the account
// entity.
const diversityFallbackQuery = `
    query($u:ID!){
      user(id:$u){
        reserves{
          usageAsCollateralEnabledOnUser
          scaledATokenBalance
          reserve { id }
        }
      }
    }`

type userReserveRow struct {
	UsageAsCollateralEnabledOnUser bool   `json:"usageAsCollateralEnabledOnUser"`
	ScaledATokenBalance            string `json:"scaledATokenBalance"`
	Reserve                        struct {
		ID string `json:"id"`
	} `json:"reserve"`
}

// CollateralDiversity fetches the user's lending positions and scores the
// count of distinct collateral-enabled reserves with positive balance,
// divided by five and capped at one. An address with no positions scores
// exactly zero; that is valid in-domain input, not a failure.
func (e *Extractor) CollateralDiversity(ctx context.Context, user string) (float64, error) {
	var primary struct {
		UserReserves []userReserveRow `json:"userReserves"`
	}
	var fallback struct {
		User *struct {
			Reserves []userReserveRow `json:"reserves"`
		} `json:"user"`
	}

	strategy := gateway.Strategy{
		Name: "collateral_diversity",
		Primary: gateway.Attempt{
			Spec: gateway.QuerySpec{Document: diversityQuery, Variables: map[string]any{"u": user}},
			Out:  &primary,
		},
		Fallback: &gateway.Attempt{
			Spec: gateway.QuerySpec{Document: diversityFallbackQuery, Variables: map[string]any{"u": user}},
			Out:  &fallback,
		},
	}

	usedFallback, err := strategy.Run(ctx, e.gateway)
	if err != nil {
		return 0, err
	}

	rows := primary.UserReserves
	if usedFallback {
		if fallback.User != nil {
			rows = fallback.User.Reserves
		} else {
			rows = nil
		}
	}

	distinct := make(map[string]struct{})
	for _, row := range rows {
		if !row.UsageAsCollateralEnabledOnUser {
			continue
		}
		if !scaledBalancePositive(row.ScaledATokenBalance) {
			continue
		}
		if row.Reserve.ID == "" {
			continue
		}
		distinct[row.Reserve.ID] = struct{}{}
	}

	value := math.Min(float64(len(distinct))/diversityCap, 1.0)

	diversityLogger.Debug().
		Str("user", user).
		Int("totalPositions", len(rows)).
		Int("distinctCollateralReserves", len(distinct)).
		Bool("usedFallback", usedFallback).
		Float64("factor", value).
		Msg("Collateral diversity calculated")

	return checkFactor(types.FactorDiversity, value)
}

// scaledBalancePositive reports whether a scaled balance string is strictly
// positive. Unparseable balances count as zero rather than failing the whole
// factor; the row is simply not a qualifying position.
func scaledBalancePositive(scaled string) bool {
	if scaled == "" {
		return false
	}
	amount, err := decimal.NewFromString(scaled)
	if err != nil {
		return false
	}
	return amount.IsPositive()
}
