package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscore/engine/internal/types"
)

const testUserAddr = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"

// readStub answers view calls with ABI-packed outputs scripted per method.
type readStub struct {
	outputs map[string][]any
	err     error
}

func (s *readStub) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	method, err := consumerABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	outputs, ok := s.outputs[method.Name]
	if !ok {
		return nil, errors.New("unexpected method: " + method.Name)
	}
	return method.Outputs.Pack(outputs...)
}

func (s *readStub) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, errors.New("not a write backend")
}

func (s *readStub) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return nil, errors.New("not a write backend")
}

func (s *readStub) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("not a write backend")
}

func (s *readStub) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return errors.New("not a write backend")
}

func (s *readStub) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return nil, errors.New("not a write backend")
}

func TestNewReaderValidation(t *testing.T) {
	_, err := NewReader(nil, testContract)
	assert.ErrorIs(t, err, ErrBackendNil)

	_, err = NewReader(&readStub{}, "not-a-contract")
	assert.ErrorIs(t, err, ErrContractInvalid)
}

func TestReaderUpdaterAndOwner(t *testing.T) {
	updater := common.HexToAddress("0x3333333333333333333333333333333333333333")
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")

	reader, err := NewReader(&readStub{outputs: map[string][]any{
		"updater": {updater},
		"owner":   {owner},
	}}, testContract)
	require.NoError(t, err)

	gotUpdater, err := reader.Updater(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updater, gotUpdater)

	gotOwner, err := reader.Owner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)
}

func TestReaderPublishedScore(t *testing.T) {
	reader, err := NewReader(&readStub{outputs: map[string][]any{
		"scoreOf": {big.NewInt(736)},
		"userFactors": {
			uint16(3679), uint16(8000), uint16(5000),
			uint16(1500), uint16(8500), uint16(3000),
			uint64(1700000000),
		},
	}}, testContract)
	require.NoError(t, err)

	published, err := reader.PublishedScore(context.Background(), testUserAddr)
	require.NoError(t, err)

	assert.Equal(t, 736, published.Score)
	assert.Equal(t, uint64(1700000000), published.LastUpdated)
	assert.Equal(t, types.BasisPointVector{
		Repay: 3679, Diversity: 8000, Age: 5000,
		Activity: 1500, Risk: 8500, Social: 3000,
	}, published.BasisPoints)

	// The address comes back checksummed for display.
	assert.Equal(t, "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", published.Address)
}

func TestReaderCallFailure(t *testing.T) {
	reader, err := NewReader(&readStub{err: errors.New("rpc down")}, testContract)
	require.NoError(t, err)

	_, err = reader.Updater(context.Background())
	assert.ErrorIs(t, err, ErrCallFailed)

	_, err = reader.ScoreOf(context.Background(), testUserAddr)
	assert.ErrorIs(t, err, ErrCallFailed)
}

func TestReaderRejectsInvalidUser(t *testing.T) {
	reader, err := NewReader(&readStub{}, testContract)
	require.NoError(t, err)

	_, err = reader.ScoreOf(context.Background(), "bogus")
	assert.ErrorIs(t, err, types.ErrInvalidAddress)

	_, _, err = reader.UserFactors(context.Background(), "bogus")
	assert.ErrorIs(t, err, types.ErrInvalidAddress)
}
