package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscore/engine/internal/types"
)

// Throwaway key used only in tests.
const testSignerKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

const testContract = "0x1111111111111111111111111111111111111111"

var testBP = types.BasisPointVector{
	Repay: 3679, Diversity: 8000, Age: 5000, Activity: 1500, Risk: 8500, Social: 3000,
}

func testSignerAddress(t *testing.T) common.Address {
	t.Helper()
	key, err := crypto.HexToECDSA(testSignerKeyHex)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey)
}

// stubBackend is a scripted chain backend that counts simulation and
// submission calls so tests can assert the publication preconditions.
type stubBackend struct {
	updater common.Address

	simulateErr error
	sendErr     error
	receipt     *ethtypes.Receipt
	receiptErr  error

	updaterCalls  int
	simulateCalls int
	sendCalls     int
	sentTx        *ethtypes.Transaction
}

func (b *stubBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	updaterSelector := consumerABI.Methods["updater"].ID
	if len(call.Data) >= 4 && bytes.Equal(call.Data[:4], updaterSelector) {
		b.updaterCalls++
		return consumerABI.Methods["updater"].Outputs.Pack(b.updater)
	}
	b.simulateCalls++
	if b.simulateErr != nil {
		return nil, b.simulateErr
	}
	return nil, nil
}

func (b *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (b *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *stubBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (b *stubBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	b.sendCalls++
	b.sentTx = tx
	return b.sendErr
}

func (b *stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	return b.receipt, nil
}

func newTestPublisher(t *testing.T, backend *stubBackend) *Publisher {
	t.Helper()
	publisher, err := NewPublisher(PublisherConfig{
		Backend:         backend,
		ContractAddress: testContract,
		UpdaterKeyHex:   testSignerKeyHex,
		ChainID:         11155111,
		ConfirmTimeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	return publisher
}

func TestUpdateFactorsHappyPath(t *testing.T) {
	backend := &stubBackend{
		updater: testSignerAddress(t),
		receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(123),
		},
	}
	publisher := newTestPublisher(t, backend)

	receipt, err := publisher.UpdateFactors(context.Background(), testUserAddr, testBP)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.updaterCalls)
	assert.Equal(t, 1, backend.simulateCalls, "exactly one dry-run before submission")
	assert.Equal(t, 1, backend.sendCalls)
	assert.Equal(t, uint64(123), receipt.BlockNumber)
	assert.Equal(t, backend.sentTx.Hash().Hex(), receipt.TxHash)

	// The submitted calldata targets updateFactors with the exact vector.
	method, err := consumerABI.MethodById(backend.sentTx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "updateFactors", method.Name)

	args, err := method.Inputs.Unpack(backend.sentTx.Data()[4:])
	require.NoError(t, err)
	require.Len(t, args, 7)
	assert.Equal(t, common.HexToAddress(testUserAddr), args[0])
	assert.Equal(t, testBP.Repay, args[1])
	assert.Equal(t, testBP.Social, args[6])
}

func TestUpdateFactorsAuthorizationMismatch(t *testing.T) {
	backend := &stubBackend{
		updater: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	publisher := newTestPublisher(t, backend)

	_, err := publisher.UpdateFactors(context.Background(), testUserAddr, testBP)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthorizationMismatch)

	// The precondition must fail fast: zero simulations, zero writes.
	assert.Equal(t, 0, backend.simulateCalls)
	assert.Equal(t, 0, backend.sendCalls)
}

func TestUpdateFactorsSimulationRevertBlocksSubmission(t *testing.T) {
	backend := &stubBackend{
		updater:     testSignerAddress(t),
		simulateErr: errors.New("execution reverted: not updater"),
	}
	publisher := newTestPublisher(t, backend)

	_, err := publisher.UpdateFactors(context.Background(), testUserAddr, testBP)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSimulationReverted)
	assert.Equal(t, 1, backend.simulateCalls)
	assert.Equal(t, 0, backend.sendCalls, "a reverted simulation must never reach broadcast")
}

func TestUpdateFactorsBroadcastFailure(t *testing.T) {
	backend := &stubBackend{
		updater: testSignerAddress(t),
		sendErr: errors.New("nonce too low"),
	}
	publisher := newTestPublisher(t, backend)

	_, err := publisher.UpdateFactors(context.Background(), testUserAddr, testBP)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestUpdateFactorsConfirmationTimeout(t *testing.T) {
	backend := &stubBackend{
		updater:    testSignerAddress(t),
		receiptErr: errors.New("not found"),
	}
	publisher := newTestPublisher(t, backend)

	_, err := publisher.UpdateFactors(context.Background(), testUserAddr, testBP)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, 1, backend.sendCalls, "the transaction was submitted, only confirmation timed out")
}

func TestUpdateFactorsOnChainRevertAfterMining(t *testing.T) {
	backend := &stubBackend{
		updater: testSignerAddress(t),
		receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusFailed,
			BlockNumber: big.NewInt(99),
		},
	}
	publisher := newTestPublisher(t, backend)

	_, err := publisher.UpdateFactors(context.Background(), testUserAddr, testBP)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestUpdateFactorsRejectsInvalidUser(t *testing.T) {
	backend := &stubBackend{updater: testSignerAddress(t)}
	publisher := newTestPublisher(t, backend)

	_, err := publisher.UpdateFactors(context.Background(), "not-an-address", testBP)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidAddress)
	assert.Equal(t, 0, backend.updaterCalls)
}

func TestNewPublisherValidation(t *testing.T) {
	backend := &stubBackend{}

	_, err := NewPublisher(PublisherConfig{
		ContractAddress: testContract, UpdaterKeyHex: testSignerKeyHex,
		ChainID: 1, ConfirmTimeout: time.Second,
	})
	assert.ErrorIs(t, err, ErrBackendNil)

	_, err = NewPublisher(PublisherConfig{
		Backend: backend, ContractAddress: "nope", UpdaterKeyHex: testSignerKeyHex,
		ChainID: 1, ConfirmTimeout: time.Second,
	})
	assert.ErrorIs(t, err, ErrContractInvalid)

	_, err = NewPublisher(PublisherConfig{
		Backend: backend, ContractAddress: testContract, UpdaterKeyHex: "zz",
		ChainID: 1, ConfirmTimeout: time.Second,
	})
	assert.ErrorIs(t, err, ErrSignerKeyInvalid)

	// 0x-prefixed keys are accepted.
	publisher, err := NewPublisher(PublisherConfig{
		Backend: backend, ContractAddress: testContract,
		UpdaterKeyHex: "0x" + testSignerKeyHex,
		ChainID:       1, ConfirmTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, testSignerAddress(t), publisher.SignerAddress())
}
