/*

This file contains the wallet activity extractor: distinct protocol
interactions within the trailing 90 days, divided by 60 and capped at one.
Sixty interactions per quarter is roughly daily use and saturates the
signal.

*/

package extractor

import (
	"context"
	"math"

	"github.com/openscore/engine/internal/gateway"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var activityLogger = logger.GetForComponent("activity_extractor")

const (
	// activityWindowDays is the trailing window for counting interactions.
	activityWindowDays = 90
	// activityDivisor is the interaction count at which the signal saturates.
	activityDivisor = 60.0
)

const activityQuery = `
    query($u:String!,$s:Int!){
      userTransactions(where:{ user:$u, timestamp_gte:$s }, first: 1000){ id }
    }`

// Schema deployments without a unified activity feed expose the five
// individual event types instead. The fallback must be functionally
// equivalent to the primary: same trailing window, same divisor.
const activityFallbackQuery = `
    query($u:String!,$s:Int!){
      supplies(where:{ user:$u, timestamp_gte:$s }, first: 1000){ id }
      redeemUnderlyings(where:{ user:$u, timestamp_gte:$s }, first: 1000){ id }
      borrows(where:{ user:$u, timestamp_gte:$s }, first: 1000){ id }
      repays(where:{ user:$u, timestamp_gte:$s }, first: 1000){ id }
      liquidationCalls(where:{ user:$u, timestamp_gte:$s }, first: 1000){ id }
    }`

type idRow struct {
	ID string `json:"id"`
}

// WalletActivity counts protocol interactions (supply, withdraw, borrow,
// repay, liquidation call) in the trailing 90 days. Zero interactions is
// valid input and scores exactly zero.
func (e *Extractor) WalletActivity(ctx context.Context, user string) (float64, error) {
	since := e.now().Unix() - activityWindowDays*86400

	var primary struct {
		UserTransactions []idRow `json:"userTransactions"`
	}
	var fallback struct {
		Supplies          []idRow `json:"supplies"`
		RedeemUnderlyings []idRow `json:"redeemUnderlyings"`
		Borrows           []idRow `json:"borrows"`
		Repays            []idRow `json:"repays"`
		LiquidationCalls  []idRow `json:"liquidationCalls"`
	}

	variables := map[string]any{"u": user, "s": since}
	strategy := gateway.Strategy{
		Name: "wallet_activity",
		Primary: gateway.Attempt{
			Spec: gateway.QuerySpec{Document: activityQuery, Variables: variables},
			Out:  &primary,
		},
		Fallback: &gateway.Attempt{
			Spec: gateway.QuerySpec{Document: activityFallbackQuery, Variables: variables},
			Out:  &fallback,
		},
	}

	usedFallback, err := strategy.Run(ctx, e.gateway)
	if err != nil {
		return 0, err
	}

	var count int
	if usedFallback {
		count = len(fallback.Supplies) +
			len(fallback.RedeemUnderlyings) +
			len(fallback.Borrows) +
			len(fallback.Repays) +
			len(fallback.LiquidationCalls)
	} else {
		count = len(primary.UserTransactions)
	}

	value := math.Min(float64(count)/activityDivisor, 1.0)

	activityLogger.Debug().
		Str("user", user).
		Int64("since", since).
		Int("interactionCount", count).
		Bool("usedFallback", usedFallback).
		Float64("factor", value).
		Msg("Wallet activity calculated")

	return checkFactor(types.FactorActivity, value)
}
