/*

This file contains the read-side binding for the ScoreConsumer contract: the
published score, the per-user basis-point factors, and the authorized
updater. Reads bypass extraction entirely; the contract is the system of
record once a score is published.

*/

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/openscore/engine/internal/logger"
	"github.com/openscore/engine/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrBackendNil      = errors.New("chain backend cannot be nil")
	ErrContractInvalid = errors.New("contract address is invalid")
	ErrCallFailed      = errors.New("contract call failed")
	ErrUnpackFailed    = errors.New("contract response unpack failed")
)

var readerLogger = logger.GetForComponent("consumer_reader")

// Backend is the subset of the Ethereum client surface the score consumer
// binding needs. *ethclient.Client satisfies it; tests use a stub.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

const consumerABIJSON = `[
  {"type":"function","name":"updater","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"scoreOf","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"userFactors","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[
    {"name":"repayBp","type":"uint16"},
    {"name":"diversityBp","type":"uint16"},
    {"name":"ageBp","type":"uint16"},
    {"name":"activityBp","type":"uint16"},
    {"name":"riskBp","type":"uint16"},
    {"name":"socialBp","type":"uint16"},
    {"name":"lastUpdated","type":"uint64"}
  ]},
  {"type":"function","name":"updateFactors","stateMutability":"nonpayable","inputs":[
    {"name":"user","type":"address"},
    {"name":"repayBp","type":"uint16"},
    {"name":"diversityBp","type":"uint16"},
    {"name":"ageBp","type":"uint16"},
    {"name":"activityBp","type":"uint16"},
    {"name":"riskBp","type":"uint16"},
    {"name":"socialBp","type":"uint16"}
  ],"outputs":[]}
]`

var consumerABI = mustParseABI(consumerABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("consumer ABI is malformed: " + err.Error())
	}
	return parsed
}

// Reader reads published score state from the ScoreConsumer contract.
type Reader struct {
	backend  Backend
	contract common.Address
}

// NewReader creates a contract reader with dependency validation.
func NewReader(backend Backend, contractAddress string) (*Reader, error) {
	if backend == nil {
		return nil, ErrBackendNil
	}
	if !common.IsHexAddress(contractAddress) {
		return nil, ErrContractInvalid
	}
	return &Reader{
		backend:  backend,
		contract: common.HexToAddress(contractAddress),
	}, nil
}

// call packs, executes and unpacks one view call against the contract.
func (r *Reader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := consumerABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	output, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		readerLogger.Error().
			Err(err).
			Str("method", method).
			Str("contract", r.contract.Hex()).
			Msg("Contract call failed")
		return nil, errors.Join(ErrCallFailed, err)
	}

	values, err := consumerABI.Unpack(method, output)
	if err != nil {
		return nil, errors.Join(ErrUnpackFailed, err)
	}
	return values, nil
}

// Updater returns the address the contract currently recognizes as
// authorized to call updateFactors.
func (r *Reader) Updater(ctx context.Context) (common.Address, error) {
	values, err := r.call(ctx, "updater")
	if err != nil {
		return common.Address{}, err
	}
	updater, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: updater is not an address", ErrUnpackFailed)
	}
	return updater, nil
}

// Owner returns the contract owner.
func (r *Reader) Owner(ctx context.Context) (common.Address, error) {
	values, err := r.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: owner is not an address", ErrUnpackFailed)
	}
	return owner, nil
}

// ScoreOf returns the published aggregate score for a user.
func (r *Reader) ScoreOf(ctx context.Context, user string) (int, error) {
	checksummed, err := types.ChecksumAddress(user)
	if err != nil {
		return 0, err
	}

	values, err := r.call(ctx, "scoreOf", common.HexToAddress(checksummed))
	if err != nil {
		return 0, err
	}
	score, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: score is not an integer", ErrUnpackFailed)
	}
	return int(score.Int64()), nil
}

// UserFactors returns the published basis-point factors and the Unix time of
// the last update.
func (r *Reader) UserFactors(ctx context.Context, user string) (types.BasisPointVector, uint64, error) {
	checksummed, err := types.ChecksumAddress(user)
	if err != nil {
		return types.BasisPointVector{}, 0, err
	}

	values, err := r.call(ctx, "userFactors", common.HexToAddress(checksummed))
	if err != nil {
		return types.BasisPointVector{}, 0, err
	}
	if len(values) != 7 {
		return types.BasisPointVector{}, 0, fmt.Errorf("%w: expected 7 values, got %d", ErrUnpackFailed, len(values))
	}

	bps := make([]uint16, 6)
	for i := 0; i < 6; i++ {
		bp, ok := values[i].(uint16)
		if !ok {
			return types.BasisPointVector{}, 0, fmt.Errorf("%w: factor %d is not a uint16", ErrUnpackFailed, i)
		}
		bps[i] = bp
	}
	lastUpdated, ok := values[6].(uint64)
	if !ok {
		return types.BasisPointVector{}, 0, fmt.Errorf("%w: lastUpdated is not a uint64", ErrUnpackFailed)
	}

	return types.BasisPointVector{
		Repay:     bps[0],
		Diversity: bps[1],
		Age:       bps[2],
		Activity:  bps[3],
		Risk:      bps[4],
		Social:    bps[5],
	}, lastUpdated, nil
}

// PublishedScore reads the full published state for a user in one shot.
func (r *Reader) PublishedScore(ctx context.Context, user string) (*types.PublishedScore, error) {
	checksummed, err := types.ChecksumAddress(user)
	if err != nil {
		return nil, err
	}

	score, err := r.ScoreOf(ctx, checksummed)
	if err != nil {
		return nil, err
	}
	factors, lastUpdated, err := r.UserFactors(ctx, checksummed)
	if err != nil {
		return nil, err
	}

	return &types.PublishedScore{
		Address:     checksummed,
		Score:       score,
		BasisPoints: factors,
		LastUpdated: lastUpdated,
	}, nil
}
