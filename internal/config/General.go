package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ChainID is the chain ID of the target network (e.g., 11155111 for Sepolia).
	ChainID uint64

	// ScoreConsumer is the address of the deployed ScoreConsumer contract.
	ScoreConsumer string
	// UpdaterPrivateKey is the hex-encoded private key of the authorized updater.
	UpdaterPrivateKey string

	// ExtractionTimeoutSeconds bounds the whole factor fan-out for one address.
	ExtractionTimeoutSeconds uint64
	// ConfirmationTimeoutSeconds bounds the wait for a transaction receipt.
	ConfirmationTimeoutSeconds uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set unless noted otherwise.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ChainID, err = getEnvAsUint64("CHAIN_ID")
	if err != nil {
		return err
	}

	ScoreConsumer, err = getEnv("SCORE_CONSUMER")
	if err != nil {
		return err
	}

	// Optional: a deployment without the updater key runs read-only (no
	// on-chain publication).
	UpdaterPrivateKey = getEnvOptional("UPDATER_PRIVATE_KEY", "")

	ExtractionTimeoutSeconds, err = getEnvAsUint64("EXTRACTION_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}

	ConfirmationTimeoutSeconds, err = getEnvAsUint64("CONFIRMATION_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Uint64("ChainID", ChainID).
		Str("ScoreConsumer", ScoreConsumer).
		Uint64("ExtractionTimeoutSeconds", ExtractionTimeoutSeconds).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOptional retrieves a string environment variable, or the fallback if not set.
func getEnvOptional(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
