// Package preflight reports on the configured deployer account before any
// transaction is sent.
package preflight

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultTimeout bounds the RPC calls made by the checks.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	CheckSignerLoaded    CheckName = "signer_loaded"
	CheckChainIDMatch    CheckName = "chain_id_match"
	CheckDeployerBalance CheckName = "deployer_balance"
)

// NoSignerHint is printed when the credential resolves to no signers.
const NoSignerHint = "No signers loaded - check PRIVATE_KEY format in .env (64 hex chars, 0x prefix optional)."

// Chain is what the checks need from an RPC client.
type Chain interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName `json:"name"`
	Passed  bool      `json:"passed"`
	Message string    `json:"message"`
}

// Report is the account summary and the checks run against it.
type Report struct {
	KeyLoaded       bool
	KeyLength       int
	Signers         int
	Address         common.Address
	Balance         *big.Int
	ChainID         uint64
	ExpectedChainID uint64
	Checks          []CheckResult
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// Checker performs pre-flight validation checks.
type Checker struct {
	timeout time.Duration
}

func NewChecker() *Checker {
	return &Checker{timeout: DefaultTimeout}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// Run resolves credential and checks the resulting account against client.
// A missing credential is reported, not returned as an error; the chain is
// not queried in that case.
func (c *Checker) Run(ctx context.Context, client Chain, credential string, expectedChainID uint64) (*Report, error) {
	signers, err := signer.Resolve(credential)
	if err != nil {
		return nil, err
	}

	report := &Report{
		KeyLoaded:       signer.KeyLength(credential) > 0,
		KeyLength:       signer.KeyLength(credential),
		Signers:         len(signers),
		ExpectedChainID: expectedChainID,
		Checks:          make([]CheckResult, 0, 3),
	}

	deployer, err := signer.First(signers)
	if err != nil {
		report.Checks = append(report.Checks, CheckResult{
			Name:    CheckSignerLoaded,
			Message: err.Error(),
		})
		return report, nil
	}
	report.Address = deployer.Address()
	report.Checks = append(report.Checks, CheckResult{
		Name:    CheckSignerLoaded,
		Passed:  true,
		Message: fmt.Sprintf("Deployer %s", report.Address.Hex()),
	})

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report.Checks = append(report.Checks, c.checkChainID(rpcCtx, client, report))
	report.Checks = append(report.Checks, c.checkBalance(rpcCtx, client, report))

	return report, nil
}

func (c *Checker) checkChainID(ctx context.Context, client Chain, report *Report) CheckResult {
	result := CheckResult{Name: CheckChainIDMatch}

	actual, err := client.ChainID(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get chain ID: %v", err)
		return result
	}
	report.ChainID = actual.Uint64()

	if report.ExpectedChainID != 0 && report.ChainID != report.ExpectedChainID {
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %d", report.ExpectedChainID, report.ChainID)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", report.ChainID)
	return result
}

func (c *Checker) checkBalance(ctx context.Context, client Chain, report *Report) CheckResult {
	result := CheckResult{Name: CheckDeployerBalance}

	balance, err := client.BalanceAt(ctx, report.Address, nil)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get deployer balance: %v", err)
		return result
	}
	report.Balance = balance

	if balance.Sign() == 0 {
		result.Message = "Deployer has no funds"
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Balance %s", chain.FormatEther(balance))
	return result
}

// Print writes the human-readable account summary.
func (r *Report) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Key loaded: %t\n", r.KeyLoaded)
	_, _ = fmt.Fprintf(w, "Key length (redacted): %d\n", r.KeyLength)
	_, _ = fmt.Fprintf(w, "Signers: %d\n", r.Signers)

	if r.Signers == 0 {
		_, _ = fmt.Fprintln(w, NoSignerHint)
		return
	}

	_, _ = fmt.Fprintf(w, "Deployer address: %s\n", r.Address.Hex())
	if r.Balance != nil {
		_, _ = fmt.Fprintf(w, "Balance: %s\n", chain.FormatEther(r.Balance))
	}

	for _, check := range r.Checks {
		mark := "ok"
		if !check.Passed {
			mark = "FAIL"
		}
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", mark, check.Name, check.Message)
	}
}
