/*

This file contains the score publication adapter: the only write path in the
system. It checks the authorization precondition before anything else,
simulates the call against current chain state, submits only if the
simulation succeeds, and waits for confirmation. None of its failures are
retried here; the caller decides whether to re-attempt.

*/

package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

// Error definitions for the publication failure taxonomy.
var (
	// ErrAuthorizationMismatch means the configured signer is not the address
	// the contract recognizes as updater. The write is never attempted.
	ErrAuthorizationMismatch = errors.New("signer does not match on-chain updater")
	// ErrSimulationReverted means the contract would reject the call.
	ErrSimulationReverted = errors.New("update simulation reverted")
	// ErrSubmissionFailed means broadcasting the signed transaction failed.
	ErrSubmissionFailed = errors.New("transaction submission failed")
	// ErrConfirmationTimeout means no receipt was observed within the wait window.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	ErrSignerKeyInvalid = errors.New("updater private key is invalid")
)

var publisherLogger = logger.GetForComponent("score_publisher")

const receiptPollInterval = 2 * time.Second

// Publisher pushes basis-point factors on-chain for a user, subject to the
// updater authorization.
type Publisher struct {
	backend         Backend
	reader          *Reader
	contract        common.Address
	signerKey       *ecdsa.PrivateKey
	signerAddress   common.Address
	chainID         *big.Int
	confirmTimeout  time.Duration
	defaultGasLimit uint64
}

// PublisherConfig holds the dependencies for creating a new Publisher.
type PublisherConfig struct {
	Backend         Backend
	ContractAddress string
	// UpdaterKeyHex is the hex-encoded private key of the updater signer.
	UpdaterKeyHex  string
	ChainID        uint64
	ConfirmTimeout time.Duration
	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64
}

// NewPublisher creates a publication adapter with comprehensive validation.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Backend == nil {
		return nil, ErrBackendNil
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, ErrContractInvalid
	}
	if cfg.ChainID == 0 {
		return nil, errors.New("chain ID cannot be zero")
	}
	if cfg.ConfirmTimeout <= 0 {
		return nil, errors.New("confirmation timeout must be positive")
	}

	key, err := crypto.HexToECDSA(stripHexPrefix(cfg.UpdaterKeyHex))
	if err != nil {
		return nil, errors.Join(ErrSignerKeyInvalid, err)
	}

	reader, err := NewReader(cfg.Backend, cfg.ContractAddress)
	if err != nil {
		return nil, err
	}

	gasLimit := cfg.DefaultGasLimit
	if gasLimit == 0 {
		gasLimit = 300000
	}

	signerAddress := crypto.PubkeyToAddress(key.PublicKey)

	publisherLogger.Info().
		Str("signer", signerAddress.Hex()).
		Str("contract", cfg.ContractAddress).
		Uint64("chainID", cfg.ChainID).
		Msg("Score publisher initialized")

	return &Publisher{
		backend:         cfg.Backend,
		reader:          reader,
		contract:        common.HexToAddress(cfg.ContractAddress),
		signerKey:       key,
		signerAddress:   signerAddress,
		chainID:         new(big.Int).SetUint64(cfg.ChainID),
		confirmTimeout:  cfg.ConfirmTimeout,
		defaultGasLimit: gasLimit,
	}, nil
}

// SignerAddress returns the address derived from the configured signer key.
func (p *Publisher) SignerAddress() common.Address {
	return p.signerAddress
}

// UpdateFactors publishes the basis-point factors for a user and waits for
// the transaction to be mined. The authorization precondition is checked
// before any simulation or write so a misconfigured signer fails fast
// instead of burning gas on a revert.
func (p *Publisher) UpdateFactors(ctx context.Context, user string, bp types.BasisPointVector) (*types.PublicationReceipt, error) {
	checksummed, err := types.ChecksumAddress(user)
	if err != nil {
		return nil, err
	}

	updater, err := p.reader.Updater(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read on-chain updater: %w", err)
	}
	if updater != p.signerAddress {
		publisherLogger.Error().
			Str("signer", p.signerAddress.Hex()).
			Str("updater", updater.Hex()).
			Msg("Signer is not the recognized updater, refusing to publish")
		return nil, fmt.Errorf("%w: signer %s, on-chain updater %s",
			ErrAuthorizationMismatch, p.signerAddress.Hex(), updater.Hex())
	}

	data, err := consumerABI.Pack("updateFactors",
		common.HexToAddress(checksummed),
		bp.Repay, bp.Diversity, bp.Age, bp.Activity, bp.Risk, bp.Social,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack updateFactors call: %w", err)
	}

	// Dry-run against current chain state to surface would-be reverts
	// without spending gas.
	callMsg := ethereum.CallMsg{From: p.signerAddress, To: &p.contract, Data: data}
	if _, err := p.backend.CallContract(ctx, callMsg, nil); err != nil {
		publisherLogger.Error().
			Err(err).
			Str("user", checksummed).
			Msg("Update simulation reverted, not submitting")
		return nil, errors.Join(ErrSimulationReverted, err)
	}

	tx, err := p.buildAndSignTx(ctx, callMsg)
	if err != nil {
		return nil, err
	}

	if err := p.backend.SendTransaction(ctx, tx); err != nil {
		publisherLogger.Error().
			Err(err).
			Str("txHash", tx.Hash().Hex()).
			Msg("Transaction broadcast failed")
		return nil, errors.Join(ErrSubmissionFailed, err)
	}

	publisherLogger.Info().
		Str("txHash", tx.Hash().Hex()).
		Str("user", checksummed).
		Msg("Factor update submitted, waiting for confirmation")

	receipt, err := p.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction reverted on-chain in block %d",
			ErrSubmissionFailed, receipt.BlockNumber.Uint64())
	}

	publisherLogger.Info().
		Str("txHash", tx.Hash().Hex()).
		Uint64("blockNumber", receipt.BlockNumber.Uint64()).
		Str("user", checksummed).
		Msg("Factor update confirmed")

	return &types.PublicationReceipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// buildAndSignTx assembles a signed legacy transaction for the packed call.
func (p *Publisher) buildAndSignTx(ctx context.Context, callMsg ethereum.CallMsg) (*ethtypes.Transaction, error) {
	nonce, err := p.backend.PendingNonceAt(ctx, p.signerAddress)
	if err != nil {
		return nil, errors.Join(ErrSubmissionFailed, fmt.Errorf("failed to fetch nonce: %w", err))
	}

	gasPrice, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Join(ErrSubmissionFailed, fmt.Errorf("failed to fetch gas price: %w", err))
	}

	gasLimit, err := p.backend.EstimateGas(ctx, callMsg)
	if err != nil {
		publisherLogger.Warn().
			Err(err).
			Uint64("defaultGasLimit", p.defaultGasLimit).
			Msg("Gas estimation failed, using default gas limit")
		gasLimit = p.defaultGasLimit
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &p.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     callMsg.Data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(p.chainID), p.signerKey)
	if err != nil {
		return nil, errors.Join(ErrSubmissionFailed, fmt.Errorf("failed to sign transaction: %w", err))
	}
	return signed, nil
}

// waitMined polls for the transaction receipt until the confirmation window
// elapses.
func (p *Publisher) waitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	deadline := time.NewTimer(p.confirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConfirmationTimeout, ctx.Err())
		case <-deadline.C:
			return nil, fmt.Errorf("%w: no receipt for %s after %s",
				ErrConfirmationTimeout, txHash.Hex(), p.confirmTimeout)
		case <-ticker.C:
		}
	}
}

func stripHexPrefix(key string) string {
	if len(key) >= 2 && key[0] == '0' && (key[1] == 'x' || key[1] == 'X') {
		return key[2:]
	}
	return key
}
