package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// SubgraphURL is the lending-protocol subgraph gateway endpoint.
	SubgraphURL string
	// GraphAPIKey authenticates against the subgraph gateway. Optional when the
	// key is already embedded in the gateway URL path.
	GraphAPIKey string

	// EthereumRPC is the JSON-RPC endpoint for the target network.
	EthereumRPC string

	// NFTAPIBaseURL is the NFT-ownership API endpoint (Alchemy NFT API shape).
	NFTAPIBaseURL string
	// NFTAPIKey is the API key for the NFT-ownership API.
	NFTAPIKey string

	// PoapAPIBaseURL is the POAP API endpoint.
	PoapAPIBaseURL string
	// PoapAPIKey is the API key for the POAP API. Optional.
	PoapAPIKey string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	SubgraphURL, err = getEnv("SUBGRAPH_URL")
	if err != nil {
		return err
	}
	GraphAPIKey = getEnvOptional("GRAPH_API_KEY", "")

	EthereumRPC, err = getEnv("ETHEREUM_RPC")
	if err != nil {
		return err
	}

	NFTAPIBaseURL, err = getEnv("NFT_API_BASE_URL")
	if err != nil {
		return err
	}
	NFTAPIKey, err = getEnv("NFT_API_KEY")
	if err != nil {
		return err
	}

	PoapAPIBaseURL = getEnvOptional("POAP_API_BASE_URL", "https://api.poap.tech")
	PoapAPIKey = getEnvOptional("POAP_API_KEY", "")

	log.Debug().
		Str("SubgraphURL", SubgraphURL).
		Str("EthereumRPC", EthereumRPC).
		Str("NFTAPIBaseURL", NFTAPIBaseURL).
		Str("PoapAPIBaseURL", PoapAPIBaseURL).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
