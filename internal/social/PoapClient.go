/*

This file contains the POAP ownership client.

*/

package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

var poapLogger = logger.GetForComponent("poap_client")

var (
	ErrPoapAPIUnavailable     = errors.New("POAP API request failed")
	ErrPoapAPIResponseInvalid = errors.New("POAP API response validation failed")
)

const (
	poapRequestTimeout = 30 * time.Second
	poapScanRoute      = "/actions/scan/"
)

// PoapClient fetches POAP ownership for an address.
type PoapClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPoapClient creates a POAP client. The apiKey is optional. A nil
// httpClient gets a default with a request timeout.
func NewPoapClient(baseURL string, apiKey string, httpClient *http.Client) (*PoapClient, error) {
	if baseURL == "" {
		return nil, errors.New("POAP API base URL cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: poapRequestTimeout}
	}
	return &PoapClient{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}, nil
}

type poapScanRow struct {
	TokenID string `json:"tokenId"`
	Owner   string `json:"owner"`
	Created string `json:"created"`
	Event   struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"event"`
}

// ListPoaps returns the POAPs held by the address. An empty list is valid
// input, not a failure.
func (c *PoapClient) ListPoaps(ctx context.Context, address string) ([]types.PoapToken, error) {
	endpoint := c.baseURL + poapScanRoute + url.PathEscape(address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build POAP API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		poapLogger.Error().
			Err(err).
			Str("address", address).
			Msg("POAP API HTTP request failed")
		return nil, errors.Join(ErrPoapAPIUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrPoapAPIUnavailable, fmt.Errorf("failed to read POAP API response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrPoapAPIUnavailable, resp.StatusCode)
	}

	var rows []poapScanRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoapAPIResponseInvalid, err)
	}

	poaps := make([]types.PoapToken, 0, len(rows))
	for _, row := range rows {
		poaps = append(poaps, types.PoapToken{
			TokenID: row.TokenID,
			Owner:   row.Owner,
			Created: row.Created,
			Event: types.PoapEvent{
				ID:   row.Event.ID,
				Name: row.Event.Name,
			},
		})
	}

	poapLogger.Debug().
		Str("address", address).
		Int("poapCount", len(poaps)).
		Msg("POAP ownership fetched")

	return poaps, nil
}
