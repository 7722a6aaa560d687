/*

This file contains the upstream data gateway client. It executes structured
GraphQL queries against the lending-protocol subgraph and normalizes
transport and schema errors into typed failures. It never returns
partially-parsed data: either the full data payload decodes, or the caller
gets a classified error.

*/

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/openscore/engine/internal/logger"
)

// Error definitions for the gateway failure taxonomy.
var (
	// ErrGatewayUnavailable covers transport failures: connection errors and
	// non-2xx responses.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrGatewayResponseInvalid covers non-JSON or malformed response bodies.
	ErrGatewayResponseInvalid = errors.New("gateway response invalid")
	// ErrGatewayQueryRejected covers GraphQL-level errors. This commonly means
	// the query referenced a field the deployed schema version does not expose.
	ErrGatewayQueryRejected = errors.New("gateway query rejected")
)

var gatewayLogger = logger.GetForComponent("gateway_client")

const defaultRequestTimeout = 30 * time.Second

// Client issues structured queries against a remote indexed-data endpoint.
// It is constructed explicitly and passed to consumers; there is no
// module-level singleton.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a gateway client for the given endpoint. The apiKey is
// optional; when set and not already embedded in the endpoint URL it is sent
// as a bearer token. A nil httpClient gets a default with a request timeout.
func NewClient(endpoint string, apiKey string, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("gateway endpoint cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "subgraph_gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures trip the breaker. Schema rejections are
			// expected during drift and must stay visible to the fallback logic.
			return err == nil || !errors.Is(err, ErrGatewayUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			gatewayLogger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Gateway circuit breaker state changed")
		},
	})

	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
		breaker:    breaker,
	}, nil
}

// graphQLRequest is the wire shape of a gateway query.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLResponse is the wire shape of a gateway response.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// Query executes one structured query with bound variables and decodes the
// data payload into out. Exactly one network round trip; no retries.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any, out any) error {
	if document == "" {
		return fmt.Errorf("%w: empty query document", ErrGatewayQueryRejected)
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.doQuery(ctx, document, variables, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrGatewayUnavailable, err)
	}
	return err
}

func (c *Client) doQuery(ctx context.Context, document string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: document, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal query payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" && !strings.Contains(c.endpoint, c.apiKey) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gatewayLogger.Error().
			Err(err).
			Str("endpoint", c.endpoint).
			Msg("Gateway HTTP request failed")
		return errors.Join(ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	// Read the raw body first so failures can be surfaced with context.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Join(ErrGatewayUnavailable, fmt.Errorf("failed to read gateway response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gatewayLogger.Error().
			Int("statusCode", resp.StatusCode).
			Str("endpoint", c.endpoint).
			Str("bodyPrefix", truncate(string(body), 500)).
			Msg("Gateway returned non-2xx status")
		return fmt.Errorf("%w: HTTP %d: %s", ErrGatewayUnavailable, resp.StatusCode, truncate(string(body), 500))
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		gatewayLogger.Error().
			Err(err).
			Int("bodyLength", len(body)).
			Msg("Gateway response is not valid JSON")
		return fmt.Errorf("%w: JSON parse failed: %s", ErrGatewayResponseInvalid, truncate(string(body), 500))
	}

	if len(parsed.Errors) > 0 {
		messages := make([]string, 0, len(parsed.Errors))
		for _, gqlErr := range parsed.Errors {
			messages = append(messages, gqlErr.Message)
		}
		gatewayLogger.Warn().
			Strs("errors", messages).
			Msg("Gateway rejected query")
		return fmt.Errorf("%w: %s", ErrGatewayQueryRejected, strings.Join(messages, "; "))
	}

	if len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return fmt.Errorf("%w: response has no data payload", ErrGatewayResponseInvalid)
	}

	if out != nil {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			gatewayLogger.Error().
				Err(err).
				Msg("Gateway data payload failed to decode into expected shape")
			return fmt.Errorf("%w: data decode failed: %w", ErrGatewayResponseInvalid, err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
