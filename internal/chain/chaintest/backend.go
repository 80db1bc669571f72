// Package chaintest provides an in-memory chain for tests that mines every
// transaction as soon as it is sent.
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// StopBytecode is creation code whose runtime is a single STOP. Every call
// to it succeeds and any appended constructor arguments are ignored.
const StopBytecode = "0x6001600c60003960016000f300"

// ChainID is the id reported by the simulated backend.
var ChainID = big.NewInt(1337)

type Backend struct {
	simulated.Client
	sim *simulated.Backend

	mu   sync.Mutex
	sent []common.Hash
}

// New starts a simulated chain with alloc and closes it when the test ends.
func New(t testing.TB, alloc types.GenesisAlloc) *Backend {
	t.Helper()

	sim := simulated.NewBackend(alloc)
	t.Cleanup(func() { _ = sim.Close() })

	return &Backend{Client: sim.Client(), sim: sim}
}

// NewFunded starts a simulated chain with one funded account and returns its key.
func NewFunded(t testing.TB) (*Backend, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	balance := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
	backend := New(t, types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: balance},
	})

	return backend, key
}

// SendTransaction submits tx and mines a block containing it.
func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	b.sim.Commit()

	b.mu.Lock()
	b.sent = append(b.sent, tx.Hash())
	b.mu.Unlock()

	return nil
}

// SentCount is the number of transactions accepted so far.
func (b *Backend) SentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.sent)
}

// Artifact builds a deployable artifact around StopBytecode with the given ABI.
func Artifact(t testing.TB, name contracts.Name, abiJSON string) contracts.Artifact {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		t.Fatalf("invalid ABI for %s: %v", name, err)
	}

	return contracts.Artifact{
		Name:     name,
		ABI:      parsed,
		RawABI:   abiJSON,
		Bytecode: common.FromHex(StopBytecode),
	}
}
