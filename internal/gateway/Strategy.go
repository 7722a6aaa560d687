package gateway

import (
	"context"
	"errors"
	"fmt"
)

var ErrAllAttemptsFailed = errors.New("all query attempts failed")

// QuerySpec binds a query document to its variables.
type QuerySpec struct {
	Document  string
	Variables map[string]any
}

// Attempt pairs a query with the destination its data payload decodes into.
// Primary and fallback attempts may decode into different shapes; the caller
// inspects whichever destination was filled.
type Attempt struct {
	Spec QuerySpec
	Out  any
}

// Strategy is an explicit two-attempt query plan used to tolerate schema
// drift in the deployed subgraph: the primary query is tried first, and the
// fallback only runs when the gateway rejects the primary at the GraphQL
// level (a missing field, not a transport failure). First success wins.
type Strategy struct {
	Name     string
	Primary  Attempt
	Fallback *Attempt
}

// Run evaluates the strategy against the client. It reports whether the
// fallback attempt produced the result. Transport and malformed-response
// failures are not retried against the fallback; they indicate the service
// itself is unhealthy, not that the schema drifted.
func (s Strategy) Run(ctx context.Context, client *Client) (usedFallback bool, err error) {
	primaryErr := client.Query(ctx, s.Primary.Spec.Document, s.Primary.Spec.Variables, s.Primary.Out)
	if primaryErr == nil {
		return false, nil
	}

	if s.Fallback == nil || !errors.Is(primaryErr, ErrGatewayQueryRejected) {
		return false, primaryErr
	}

	gatewayLogger.Warn().
		Str("strategy", s.Name).
		Err(primaryErr).
		Msg("Primary query rejected by schema, trying fallback")

	fallbackErr := client.Query(ctx, s.Fallback.Spec.Document, s.Fallback.Spec.Variables, s.Fallback.Out)
	if fallbackErr == nil {
		return true, nil
	}

	return false, fmt.Errorf("%w: primary: %w; fallback: %w", ErrAllAttemptsFailed, primaryErr, fallbackErr)
}
