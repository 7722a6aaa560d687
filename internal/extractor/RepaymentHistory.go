/*

This file contains the repayment history extractor: a time-decayed sum over
the most recent repay events. Recent, frequent repayment dominates;
repayments from over a year ago contribute negligibly.

*/

package extractor

import (
	"context"
	"math"

	"github.com/openscore/engine/internal/gateway"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var repayLogger = logger.GetForComponent("repay_extractor")

const (
	// repayFetchLimit is the maximum number of repay events considered.
	repayFetchLimit = 200
	// repayDecayDays is the exponential decay constant (half-life ~21 days).
	repayDecayDays = 30.0
	// repayDivisor is the decayed sum at which the signal saturates.
	repayDivisor = 10.0
)

const repayQueryByUser = `
    query($u:String!,$first:Int!){
      repays(where:{ user:$u }, orderBy: timestamp, orderDirection: desc, first: $first){ timestamp }
    }`

// Some schema versions key repay events on account rather than user.
const repayQueryByAccount = `
    query($u:String!,$first:Int!){
      repays(where:{ account:$u }, orderBy: timestamp, orderDirection: desc, first: $first){ timestamp }
    }`

type repayRow struct {
	Timestamp int64 `json:"timestamp"`
}

// RepaymentHistory fetches up to the 200 most recent repay events
// newest-first and scores sum(exp(-ageDays/30)) / 10, capped at one. Zero
// repayments is valid input and scores exactly zero. The account-keyed
// variant covers both schema drift and deployments where the user filter
// exists but matches nothing.
func (e *Extractor) RepaymentHistory(ctx context.Context, user string) (float64, error) {
	var primary struct {
		Repays []repayRow `json:"repays"`
	}
	var fallback struct {
		Repays []repayRow `json:"repays"`
	}

	variables := map[string]any{"u": user, "first": repayFetchLimit}
	strategy := gateway.Strategy{
		Name: "repayment_history",
		Primary: gateway.Attempt{
			Spec: gateway.QuerySpec{Document: repayQueryByUser, Variables: variables},
			Out:  &primary,
		},
		Fallback: &gateway.Attempt{
			Spec: gateway.QuerySpec{Document: repayQueryByAccount, Variables: variables},
			Out:  &fallback,
		},
	}

	usedFallback, err := strategy.Run(ctx, e.gateway)
	if err != nil {
		return 0, err
	}

	rows := primary.Repays
	if usedFallback {
		rows = fallback.Repays
	}

	// Empty result under the user key may just mean this deployment keys
	// repays on account. One extra attempt, then zero rows is the answer.
	if len(rows) == 0 && !usedFallback {
		if err := e.gateway.Query(ctx, repayQueryByAccount, variables, &fallback); err == nil {
			rows = fallback.Repays
		}
	}

	if len(rows) == 0 {
		repayLogger.Debug().
			Str("user", user).
			Msg("No repay events found, repayment factor is zero")
		return 0, nil
	}

	now := e.now().Unix()
	var decayedSum float64
	for _, row := range rows {
		if row.Timestamp <= 0 {
			continue
		}
		ageDays := float64(now-row.Timestamp) / 86400.0
		decayedSum += math.Exp(-ageDays / repayDecayDays)
	}

	value := math.Min(decayedSum/repayDivisor, 1.0)

	repayLogger.Debug().
		Str("user", user).
		Int("repayCount", len(rows)).
		Bool("usedFallback", usedFallback).
		Float64("decayedSum", decayedSum).
		Float64("factor", value).
		Msg("Repayment history calculated")

	return checkFactor(types.FactorRepay, value)
}
