// Package orchestrator runs a deployment plan against a chain: contracts are
// created in order, wired together, then submitted for verification.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/crossrealm/deployer/internal/logger"
	"github.com/crossrealm/deployer/internal/metrics"
	"github.com/crossrealm/deployer/internal/plan"
	"github.com/crossrealm/deployer/internal/signer"
	"github.com/crossrealm/deployer/internal/verify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ErrChainIDMismatch is returned when the RPC endpoint serves a different
// chain than the one configured.
var ErrChainIDMismatch = errors.New("chain id mismatch")

type (
	// Verifier submits one contract for source verification.
	Verifier interface {
		Verify(ctx context.Context, target verify.Target) error
	}

	// Reporter receives progress meant for the operator.
	Reporter interface {
		Started(result *Result, balance *big.Int)
		Deployed(d Deployment)
		Wired(c Call)
		VerificationStarted()
		VerificationSkipped(label string, err error)
		Finished(p plan.Plan, result *Result)
	}

	Config struct {
		Signers []*signer.Signer
		Backend chain.Backend
		// ExpectedChainID is compared with the backend's chain id before
		// anything is sent. Zero disables the check.
		ExpectedChainID uint64
		TxOptions       chain.TxOptions
		Artifacts       contracts.Set
		// Verifier is nil when verification is disabled or no API key is configured.
		Verifier Verifier
		Reporter Reporter
		Metrics  *metrics.Recorder
	}

	Orchestrator struct {
		cfg    Config
		logger *slog.Logger
	}
)

func New(cfg Config) *Orchestrator {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}

	return &Orchestrator{cfg: cfg, logger: logger.Named("orchestrator")}
}

// Run executes p once. Every call deploys fresh contracts; nothing is reused
// from earlier runs. The returned result is non-nil even on error and holds
// whatever was deployed before the failure.
func (o *Orchestrator) Run(ctx context.Context, p plan.Plan) (*Result, error) {
	result := &Result{
		RunID:     uuid.New(),
		Plan:      p.Name,
		Stage:     StageNotStarted,
		StartedAt: time.Now().UTC(),
	}
	log := o.logger.With("run_id", result.RunID.String()).With("plan", p.Name)
	o.cfg.Metrics.SetStage(string(StageNotStarted))

	abort := func(err error) (*Result, error) {
		o.setStage(log, result, StageAborted)
		result.FinishedAt = time.Now().UTC()
		log.With("err", err.Error()).Error("deployment aborted")
		return result, err
	}

	deployer, err := signer.First(o.cfg.Signers)
	if err != nil {
		return abort(err)
	}
	if err := p.Validate(); err != nil {
		return abort(err)
	}
	for _, name := range p.Contracts() {
		if _, err := o.cfg.Artifacts.Get(name); err != nil {
			return abort(err)
		}
	}

	transactor, err := chain.NewTransactor(ctx, o.cfg.Backend, deployer.PrivateKey(), o.cfg.TxOptions)
	if err != nil {
		return abort(err)
	}
	result.ChainID = transactor.ChainID()
	result.Deployer = transactor.From()

	if expected := o.cfg.ExpectedChainID; expected != 0 {
		if !result.ChainID.IsUint64() || result.ChainID.Uint64() != expected {
			return abort(fmt.Errorf("%w: expected %d, RPC reports %s", ErrChainIDMismatch, expected, result.ChainID))
		}
	}

	balance, err := o.cfg.Backend.BalanceAt(ctx, result.Deployer, nil)
	if err != nil {
		log.With("err", err.Error()).Warn("could not read deployer balance")
	}
	log.
		With("deployer", result.Deployer.Hex()).
		With("chain_id", result.ChainID.String()).
		With("balance", chain.FormatEther(balance)).
		Info("starting deployment")
	o.cfg.Reporter.Started(result, balance)

	o.setStage(log, result, StageDeploying)
	addresses := make(map[string]common.Address)
	for _, step := range p.Deployments() {
		deployment, err := o.deploy(ctx, transactor, step, addresses)
		if err != nil {
			return abort(fmt.Errorf("step %s: %w", step.ID, err))
		}

		addresses[step.ID] = deployment.Address
		result.Deployments = append(result.Deployments, deployment)
		log.With("contract", deployment.Contract).With("address", deployment.Address.Hex()).Info("contract deployed")
		o.cfg.Reporter.Deployed(deployment)
	}

	o.setStage(log, result, StageWiring)
	for _, step := range p.Calls() {
		call, err := o.call(ctx, transactor, step, addresses)
		if err != nil {
			return abort(fmt.Errorf("step %s: %w", step.ID, err))
		}

		result.Calls = append(result.Calls, call)
		log.With("contract", call.Contract).With("method", call.Method).Info("wiring call mined")
		o.cfg.Reporter.Wired(call)
	}

	if o.cfg.Verifier != nil {
		o.setStage(log, result, StageVerifying)
		o.cfg.Reporter.VerificationStarted()
		o.verifyAll(ctx, log, result)
	} else {
		log.Info("verification disabled or no explorer API key, skipping")
	}

	o.setStage(log, result, StageDone)
	result.FinishedAt = time.Now().UTC()
	o.cfg.Reporter.Finished(p, result)

	return result, nil
}

func (o *Orchestrator) deploy(ctx context.Context, transactor *chain.Transactor, step plan.Step, addresses map[string]common.Address) (Deployment, error) {
	artifact, err := o.cfg.Artifacts.Get(step.Contract)
	if err != nil {
		return Deployment{}, err
	}

	args, err := plan.ResolveAll(step.Args, transactor.From(), addresses)
	if err != nil {
		return Deployment{}, err
	}

	deployment := Deployment{
		StepID:   step.ID,
		Contract: step.Contract,
		Label:    step.Label,
		Verify:   step.Verify,
	}

	if step.Kind == plan.KindDeploy {
		deployed, err := o.deployOne(ctx, transactor, artifact, args...)
		if err != nil {
			return Deployment{}, err
		}
		deployment.Address = deployed.Address
		deployment.TxHash = deployed.TxHash
		deployment.ConstructorArgs = deployed.ConstructorArgs
		return deployment, nil
	}

	implementation, err := o.deployOne(ctx, transactor, artifact)
	if err != nil {
		return Deployment{}, fmt.Errorf("implementation: %w", err)
	}

	initData, err := artifact.ABI.Pack(step.Initializer, args...)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to encode %s.%s: %w", step.Contract, step.Initializer, err)
	}

	proxyArtifact, err := o.cfg.Artifacts.Get(contracts.NameERC1967Proxy)
	if err != nil {
		return Deployment{}, err
	}

	proxy, err := o.deployOne(ctx, transactor, proxyArtifact, implementation.Address, initData)
	if err != nil {
		return Deployment{}, fmt.Errorf("proxy: %w", err)
	}

	slot, err := chain.ImplementationAddress(ctx, o.cfg.Backend, proxy.Address)
	switch {
	case err != nil:
		o.logger.With("err", err.Error()).Warn("could not read proxy implementation slot")
	case slot == (common.Address{}):
		o.logger.With("proxy", proxy.Address.Hex()).Warn("proxy implementation slot is empty")
	case slot != implementation.Address:
		return Deployment{}, fmt.Errorf("proxy %s points at %s, expected implementation %s", proxy.Address.Hex(), slot.Hex(), implementation.Address.Hex())
	}

	deployment.Address = proxy.Address
	deployment.Implementation = implementation.Address
	deployment.TxHash = proxy.TxHash
	deployment.ConstructorArgs = implementation.ConstructorArgs

	return deployment, nil
}

func (o *Orchestrator) deployOne(ctx context.Context, transactor *chain.Transactor, artifact contracts.Artifact, args ...any) (chain.Deployed, error) {
	started := time.Now()
	deployed, err := transactor.Deploy(ctx, artifact, args...)
	if err != nil {
		return chain.Deployed{}, err
	}
	o.cfg.Metrics.RecordTransaction(string(plan.KindDeploy), string(artifact.Name), deployed.GasUsed, time.Since(started))

	return deployed, nil
}

func (o *Orchestrator) call(ctx context.Context, transactor *chain.Transactor, step plan.Step, addresses map[string]common.Address) (Call, error) {
	artifact, err := o.cfg.Artifacts.Get(step.Contract)
	if err != nil {
		return Call{}, err
	}

	target, ok := addresses[step.Target]
	if !ok {
		return Call{}, fmt.Errorf("target %q: %w", step.Target, plan.ErrForwardReference)
	}

	args, err := plan.ResolveAll(step.Args, transactor.From(), addresses)
	if err != nil {
		return Call{}, err
	}

	started := time.Now()
	sent, err := transactor.Transact(ctx, target, artifact, step.Method, args...)
	if err != nil {
		return Call{}, err
	}
	o.cfg.Metrics.RecordTransaction(string(plan.KindCall), string(step.Contract), sent.GasUsed, time.Since(started))

	printable := make([]string, 0, len(args))
	for _, arg := range args {
		if address, ok := arg.(common.Address); ok {
			printable = append(printable, address.Hex())
			continue
		}
		printable = append(printable, fmt.Sprint(arg))
	}

	return Call{
		StepID:   step.ID,
		Contract: step.Contract,
		Target:   target,
		Method:   step.Method,
		Args:     printable,
		TxHash:   sent.TxHash,
	}, nil
}

// verifyAll submits every flagged deployment. Failures are recorded and
// reported, never returned.
func (o *Orchestrator) verifyAll(ctx context.Context, log *slog.Logger, result *Result) {
	for _, d := range result.Deployments {
		if !d.Verify {
			continue
		}

		label := d.Label
		if d.IsProxy() {
			label += " impl"
		}

		err := o.cfg.Verifier.Verify(ctx, verify.Target{
			Name:            d.Contract,
			Address:         d.VerifyAddress(),
			ConstructorArgs: d.ConstructorArgs,
		})
		o.cfg.Metrics.RecordVerification(string(d.Contract), err)

		verification := Verification{
			StepID:   d.StepID,
			Label:    label,
			Contract: d.Contract,
			Address:  d.VerifyAddress(),
			Verified: err == nil,
		}
		if err != nil {
			verification.Reason = err.Error()
			log.With("contract", d.Contract).With("err", err.Error()).Warn("verification failed, continuing")
			o.cfg.Reporter.VerificationSkipped(label, err)
		}
		result.Verifications = append(result.Verifications, verification)
	}
}

func (o *Orchestrator) setStage(log *slog.Logger, result *Result, stage Stage) {
	log.With("from", result.Stage).With("to", stage).Debug("stage transition")
	result.Stage = stage
	o.cfg.Metrics.SetStage(string(stage))
}

type nopReporter struct{}

func (nopReporter) Started(*Result, *big.Int) {}
func (nopReporter) Deployed(Deployment) {}
func (nopReporter) Wired(Call) {}
func (nopReporter) VerificationStarted() {}
func (nopReporter) VerificationSkipped(string, error) {}
func (nopReporter) Finished(plan.Plan, *Result) {}
