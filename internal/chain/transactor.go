package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/crossrealm/deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	// TxOptions tune every transaction the Transactor sends. A nil GasPrice
	// asks the node, a zero GasLimit estimates, a zero Timeout waits forever.
	TxOptions struct {
		GasPrice *big.Int
		GasLimit uint64
		Timeout  time.Duration
	}

	// Transactor sends transactions from one key and waits for each to be mined.
	Transactor struct {
		backend Backend
		key     *ecdsa.PrivateKey
		from    common.Address
		chainID *big.Int
		opts    TxOptions
		logger  *slog.Logger
	}

	// Deployed describes a mined contract creation.
	Deployed struct {
		Address         common.Address
		TxHash          common.Hash
		ConstructorArgs []byte
		GasUsed         uint64
	}

	// Sent describes a mined contract call.
	Sent struct {
		TxHash  common.Hash
		GasUsed uint64
	}
)

// NewTransactor binds key to backend. The chain id is queried once here.
func NewTransactor(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, opts TxOptions) (*Transactor, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Transactor{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		opts:    opts,
		logger:  logger.Named("transactor"),
	}, nil
}

func (t *Transactor) From() common.Address {
	return t.from
}

func (t *Transactor) ChainID() *big.Int {
	return new(big.Int).Set(t.chainID)
}

// Deploy sends a creation transaction for artifact and waits until it is mined.
func (t *Transactor) Deploy(ctx context.Context, artifact contracts.Artifact, args ...any) (Deployed, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	constructorArgs, err := artifact.ABI.Pack("", args...)
	if err != nil {
		return Deployed{}, fmt.Errorf("failed to encode %s constructor arguments: %w", artifact.Name, err)
	}

	auth, err := t.auth(ctx)
	if err != nil {
		return Deployed{}, err
	}

	address, tx, _, err := bind.DeployContract(auth, artifact.ABI, artifact.Bytecode, t.backend, args...)
	if err != nil {
		return Deployed{}, fmt.Errorf("failed to deploy %s: %w", artifact.Name, err)
	}

	t.logger.
		With("contract", artifact.Name).
		With("address", address).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	receipt, err := t.wait(ctx, tx)
	if err != nil {
		return Deployed{}, fmt.Errorf("deployment of %s: %w", artifact.Name, err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return Deployed{}, fmt.Errorf("deployment of %s returned no contract address (tx %s)", artifact.Name, tx.Hash().Hex())
	}

	return Deployed{
		Address:         receipt.ContractAddress,
		TxHash:          tx.Hash(),
		ConstructorArgs: constructorArgs,
		GasUsed:         receipt.GasUsed,
	}, nil
}

// Transact calls method on the contract at address and waits until it is mined.
func (t *Transactor) Transact(ctx context.Context, address common.Address, artifact contracts.Artifact, method string, args ...any) (Sent, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if _, ok := artifact.ABI.Methods[method]; !ok {
		return Sent{}, fmt.Errorf("%s has no method %s", artifact.Name, method)
	}

	auth, err := t.auth(ctx)
	if err != nil {
		return Sent{}, err
	}

	contract := bind.NewBoundContract(address, artifact.ABI, t.backend, t.backend, t.backend)
	tx, err := contract.Transact(auth, method, args...)
	if err != nil {
		return Sent{}, fmt.Errorf("failed to call %s.%s: %w", artifact.Name, method, err)
	}

	t.logger.
		With("contract", artifact.Name).
		With("method", method).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract call transaction sent")

	receipt, err := t.wait(ctx, tx)
	if err != nil {
		return Sent{}, fmt.Errorf("call %s.%s: %w", artifact.Name, method, err)
	}

	return Sent{TxHash: tx.Hash(), GasUsed: receipt.GasUsed}, nil
}

func (t *Transactor) auth(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(t.key, t.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	gasPrice := t.opts.GasPrice
	if gasPrice == nil {
		gasPrice, err = t.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	auth.Context = ctx
	auth.GasPrice = gasPrice
	auth.GasLimit = t.opts.GasLimit

	return auth, nil
}

func (t *Transactor) wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("reverted (tx %s, status %d)", tx.Hash().Hex(), receipt.Status)
	}

	return receipt, nil
}

func (t *Transactor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.opts.Timeout)
}
