package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openscore/engine/internal/chain"
	"github.com/openscore/engine/internal/config"
	"github.com/openscore/engine/internal/engine"
	"github.com/openscore/engine/internal/extractor"
	"github.com/openscore/engine/internal/gateway"
	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/social"
	"github.com/openscore/engine/internal/state"
	"github.com/openscore/engine/internal/types"
	"github.com/openscore/engine/internal/web"
)

// main is the entry point for the OpenScore scoring engine service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("OpenScore Scoring Engine Starting...")

	// Initialize Database Connection (optional: snapshots and weights history)
	var store *state.Store
	if os.Getenv("DB_HOST") != "" {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		var err error
		store, err = state.NewStore(dbCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer store.Close()
		if err := store.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Warn().Msg("DB_HOST not set. Running without snapshot persistence.")
	}

	// Load Scoring Weights
	weights := types.DefaultScoringWeights
	if store != nil {
		loaded, err := store.LoadActiveScoringWeights(engine.DefaultWeightsConfigName)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load active scoring weights, using defaults and saving.")
			if _, err := store.SaveScoringWeights(weights, engine.DefaultWeightsConfigName, engine.DefaultWeightsConfigVersion, true); err != nil {
				log.Fatal().Err(err).Msg("Failed to save initial default scoring weights.")
			}
		} else {
			weights = *loaded
		}
	}
	log.Info().Msg("Scoring weights loaded successfully.")

	// --- 2. Upstream Clients ---
	gatewayClient, err := gateway.NewClient(config.SubgraphURL, config.GraphAPIKey, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create subgraph gateway client")
	}

	ethClient, err := ethclient.Dial(config.EthereumRPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Ethereum RPC connection error")
	}
	defer ethClient.Close()
	log.Info().Str("endpoint", config.EthereumRPC).Msg("Ethereum RPC connected")

	// Social proof clients are optional; each missing client degrades its
	// sub-signal to zero contribution.
	var nftClient extractor.NFTLister
	if config.NFTAPIBaseURL != "" && config.NFTAPIKey != "" {
		client, err := social.NewNFTClient(config.NFTAPIBaseURL, config.NFTAPIKey, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create NFT API client")
		}
		nftClient = client
	} else {
		log.Warn().Msg("NFT API not configured. NFT diversity sub-signal disabled.")
	}

	var poapClient extractor.PoapLister
	if config.PoapAPIBaseURL != "" {
		client, err := social.NewPoapClient(config.PoapAPIBaseURL, config.PoapAPIKey, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create POAP API client")
		}
		poapClient = client
	}

	ensResolver, err := social.NewEnsResolver(ethClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ENS resolver")
	}

	// --- 3. Scoring Pipeline Construction ---
	factorExtractor, err := extractor.New(extractor.Config{
		Gateway: gatewayClient,
		NFT:     nftClient,
		Poap:    poapClient,
		ENS:     ensResolver,
		Timeout: time.Duration(config.ExtractionTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create factor extractor")
	}

	reader, err := chain.NewReader(ethClient, config.ScoreConsumer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create consumer contract reader")
	}

	var publisher *chain.Publisher
	if config.UpdaterPrivateKey != "" {
		publisher, err = chain.NewPublisher(chain.PublisherConfig{
			Backend:         ethClient,
			ContractAddress: config.ScoreConsumer,
			UpdaterKeyHex:   config.UpdaterPrivateKey,
			ChainID:         config.ChainID,
			ConfirmTimeout:  time.Duration(config.ConfirmationTimeoutSeconds) * time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create score publisher")
		}
	} else {
		log.Warn().Msg("UPDATER_PRIVATE_KEY not set. Running read-only: score refresh is disabled.")
	}

	scoringEngine, err := engine.New(engine.Config{
		Extractor: factorExtractor,
		Weights:   weights,
		Reader:    reader,
		Publisher: publisher,
		Store:     store,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scoring engine")
	}
	log.Info().Msg("Scoring engine created successfully")

	// --- 4. Web Server & Graceful Shutdown ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, scoringEngine, config.ScoreConsumer)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting scoring API server")
		if err := webServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("Web server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown error")
	}
	log.Info().Msg("Scoring engine stopped")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
