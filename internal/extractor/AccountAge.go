/*

This file contains the account age extractor: a linear map over the age of
the earliest observed protocol transaction. A brand-new wallet is never
scored below 0.2; existing at all has nonzero value.

*/

package extractor

import (
	"context"
	"math"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var ageLogger = logger.GetForComponent("age_extractor")

const (
	// ageFloor is the minimum score for a wallet with any observed history.
	ageFloor = 0.2
	// ageUnknown is the neutral value when no transaction is found:
	// explicitly "unknown", not "new" or "old".
	ageUnknown = 0.5
	// ageMaturityDays is the age at which the signal saturates at 1.0.
	ageMaturityDays = 365.0
)

const accountAgeQuery = `
    query($u:String!){
      userTransactions(where:{ user:$u }, orderBy: timestamp, orderDirection: asc, first: 1) {
        timestamp
      }
    }`

type timestampRow struct {
	Timestamp int64 `json:"timestamp"`
}

// AccountAge fetches the single earliest transaction timestamp for the
// address and maps age linearly: 0 days -> 0.2, 365+ days -> 1.0. No rows is
// valid input and yields the neutral 0.5. If the query itself fails, the
// factor degrades to a proxy derived from wallet activity rather than
// aborting the whole computation.
func (e *Extractor) AccountAge(ctx context.Context, user string) (float64, error) {
	var result struct {
		UserTransactions []timestampRow `json:"userTransactions"`
	}

	if err := e.gateway.Query(ctx, accountAgeQuery, map[string]any{"u": user}, &result); err != nil {
		ageLogger.Warn().
			Err(err).
			Str("user", user).
			Msg("Account age query failed, deriving proxy from wallet activity")

		activity, actErr := e.WalletActivity(ctx, user)
		if actErr != nil {
			return 0, actErr
		}
		value := math.Min(ageFloor+0.8*activity, 1.0)
		return checkFactor(types.FactorAge, value)
	}

	if len(result.UserTransactions) == 0 || result.UserTransactions[0].Timestamp <= 0 {
		ageLogger.Debug().
			Str("user", user).
			Float64("factor", ageUnknown).
			Msg("No transactions found, account age unknown")
		return ageUnknown, nil
	}

	earliest := result.UserTransactions[0].Timestamp
	ageDays := float64(e.now().Unix()-earliest) / 86400.0

	value := math.Max(ageFloor, math.Min(ageFloor+ageDays/ageMaturityDays, 1.0))

	ageLogger.Debug().
		Str("user", user).
		Int64("earliestTimestamp", earliest).
		Float64("ageDays", ageDays).
		Float64("factor", value).
		Msg("Account age calculated")

	return checkFactor(types.FactorAge, value)
}
