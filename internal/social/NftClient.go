/*

This file contains the NFT-ownership client. It speaks the Alchemy NFT API
shape and pages through an owner's NFTs; social proof only consumes the
distinct-contract count derived from the result.

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

var nftLogger = logger.GetForComponent("nft_client")

var (
	ErrNFTAPIUnavailable     = errors.New("NFT API request failed")
	ErrNFTAPIResponseInvalid = errors.New("NFT API response validation failed")
)

const (
	nftRequestTimeout = 30 * time.Second
	// nftMaxPages bounds pagination; contract diversity saturates long before
	// this many NFTs anyway.
	nftMaxPages   = 5
	nftPageSize   = 100
	nftOwnerRoute = "/getNFTsForOwner"
	nftAPIVersion = "/nft/v3/"
)

// NFTClient fetches NFT ownership from an Alchemy-style NFT API.
type NFTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewNFTClient creates an NFT-ownership client. A nil httpClient gets a
// default with a request timeout.
func NewNFTClient(baseURL string, apiKey string, httpClient *http.Client) (*NFTClient, error) {
	if baseURL == "" {
		return nil, errors.New("NFT API base URL cannot be empty")
	}
	if apiKey == "" {
		return nil, errors.New("NFT API key cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: nftRequestTimeout}
	}
	return &NFTClient{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}, nil
}

type nftAPIResponse struct {
	OwnedNfts []struct {
		TokenID  string `json:"tokenId"`
		Contract struct {
			Address string `json:"address"`
		} `json:"contract"`
	} `json:"ownedNfts"`
	PageKey string `json:"pageKey"`
}

// ListOwnedNfts returns the NFTs owned by the address, following page keys
// up to a fixed page budget.
func (c *NFTClient) ListOwnedNfts(ctx context.Context, address string) ([]types.OwnedNft, error) {
	var all []types.OwnedNft
	pageKey := ""

	for page := 0; page < nftMaxPages; page++ {
		result, err := c.fetchPage(ctx, address, pageKey)
		if err != nil {
			return nil, err
		}

		for _, nft := range result.OwnedNfts {
			all = append(all, types.OwnedNft{
				ContractAddress: nft.Contract.Address,
				TokenID:         nft.TokenID,
			})
		}

		if result.PageKey == "" {
			break
		}
		pageKey = result.PageKey
	}

	nftLogger.Debug().
		Str("address", address).
		Int("nftCount", len(all)).
		Msg("NFT ownership fetched")

	return all, nil
}

func (c *NFTClient) fetchPage(ctx context.Context, address string, pageKey string) (*nftAPIResponse, error) {
	query := url.Values{}
	query.Set("owner", address)
	query.Set("pageSize", fmt.Sprintf("%d", nftPageSize))
	query.Set("withMetadata", "false")
	if pageKey != "" {
		query.Set("pageKey", pageKey)
	}

	endpoint := c.baseURL + nftAPIVersion + c.apiKey + nftOwnerRoute + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build NFT API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		nftLogger.Error().
			Err(err).
			Str("address", address).
			Msg("NFT API HTTP request failed")
		return nil, errors.Join(ErrNFTAPIUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrNFTAPIUnavailable, fmt.Errorf("failed to read NFT API response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrNFTAPIUnavailable, resp.StatusCode)
	}

	var parsed nftAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNFTAPIResponseInvalid, err)
	}

	return &parsed, nil
}
