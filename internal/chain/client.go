// Package chain talks to the target EVM chain: dialing, sending deployment
// and wiring transactions, and reading state the deployment depends on.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/crossrealm/deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of an RPC client the deployer needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to the RPC endpoint at url.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	return client, nil
}

// WaitForRPC polls url until it answers eth_blockNumber or attempts run out.
func WaitForRPC(ctx context.Context, url string, attempts int, interval time.Duration) error {
	log := logger.Named("rpc_waiter").With("url", url)

	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := ethclient.DialContext(ctx, url)
		if err == nil {
			_, err = client.BlockNumber(ctx)
			client.Close()
			if err == nil {
				log.With("attempt", attempt).Debug("rpc is reachable")
				return nil
			}
		}
		log.With("attempt", attempt).With("err", err).Debug("rpc not reachable yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return fmt.Errorf("timed out waiting for RPC at %s", url)
}

// FormatEther converts wei to a human-readable ether amount with four decimals.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))

	return eth.Text('f', 4)
}
