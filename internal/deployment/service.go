// Package deployment wires configuration, the chain client, artifacts and
// the verifier into the deploy, compile and verify commands.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/crossrealm/deployer/internal/logger"
	"github.com/crossrealm/deployer/internal/metrics"
	"github.com/crossrealm/deployer/internal/orchestrator"
	"github.com/crossrealm/deployer/internal/output"
	"github.com/crossrealm/deployer/internal/plan"
	"github.com/crossrealm/deployer/internal/signer"
	"github.com/crossrealm/deployer/internal/verify"
)

const rpcWaitInterval = time.Second

// Dialer opens the chain backend. The returned function releases it.
type Dialer func(ctx context.Context, url string) (chain.Backend, func(), error)

type Service struct {
	rootDir string
	cfg     configs.Config
	out     io.Writer
	dial    Dialer
	logger  *slog.Logger
}

func NewService(rootDir string, cfg configs.Config, out io.Writer) *Service {
	s := &Service{
		rootDir: rootDir,
		cfg:     cfg,
		out:     out,
		logger:  logger.Named("deployment"),
	}
	s.dial = s.dialRPC

	return s
}

// WithDialer replaces the RPC dialer.
func (s *Service) WithDialer(dial Dialer) *Service {
	s.dial = dial
	return s
}

// Deploy runs the configured plan once. The record file and the metrics
// push are attempted even when the run aborts part way.
func (s *Service) Deploy(ctx context.Context) (*orchestrator.Result, error) {
	if err := s.cfg.ValidateDeploy(); err != nil {
		return nil, err
	}

	signers, err := signer.Resolve(s.cfg.Network.PrivateKey)
	if err != nil {
		return nil, err
	}
	if _, err := signer.First(signers); err != nil {
		return nil, err
	}

	p, err := plan.Build(s.cfg.Deployment.Plan, plan.OptionsFromConfig(s.cfg.Deployment))
	if err != nil {
		return nil, err
	}

	artifacts, err := contracts.Load(s.path(s.cfg.Compiler.ContractsFile), s.path(s.cfg.Compiler.ArtifactsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load contract artifacts: %w", err)
	}

	gasPrice, err := s.cfg.Network.GasPriceWei()
	if err != nil {
		return nil, err
	}

	verifier, err := s.verifier()
	if err != nil {
		return nil, err
	}

	backend, closeBackend, err := s.dial(ctx, s.cfg.Network.RPCURL)
	if err != nil {
		return nil, err
	}
	defer closeBackend()

	recorder := metrics.New()
	cfg := orchestrator.Config{
		Signers:         signers,
		Backend:         backend,
		ExpectedChainID: uint64(s.cfg.Network.ChainID),
		TxOptions: chain.TxOptions{
			GasPrice: gasPrice,
			GasLimit: s.cfg.Network.GasLimit,
			Timeout:  s.cfg.Network.TxTimeout,
		},
		Artifacts: artifacts,
		Reporter:  output.NewConsole(s.out),
		Metrics:   recorder,
	}
	// A nil *verify.Service must not become a non-nil interface.
	if verifier != nil {
		cfg.Verifier = verifier
	}

	result, runErr := orchestrator.New(cfg).Run(ctx, p)

	s.pushMetrics(ctx, recorder, result)
	if err := s.writeRecord(result, artifacts); err != nil {
		runErr = errors.Join(runErr, err)
	}

	return result, runErr
}

// Compile runs solc over the sources directory.
func (s *Service) Compile(ctx context.Context, runner contracts.ContainerRunner) (contracts.Set, error) {
	if err := s.cfg.Compiler.Validate(); err != nil {
		return nil, err
	}

	return contracts.NewCompiler(s.rootDir, s.cfg.Compiler, runner).Compile(ctx)
}

// Reverify resubmits every flagged contract of a saved record. Failures are
// reported per contract; the returned error only covers setup problems.
func (s *Service) Reverify(ctx context.Context, recordPath string) ([]orchestrator.Verification, error) {
	record, err := output.ReadRecord(s.path(recordPath))
	if err != nil {
		return nil, err
	}

	verifier, err := s.verifier()
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, verify.ErrNoAPIKey
	}

	console := output.NewConsole(s.out)
	console.VerificationStarted()

	var verifications []orchestrator.Verification
	for _, d := range record.Deployments() {
		if !d.Verify {
			continue
		}

		label := d.Label
		if d.IsProxy() {
			label += " impl"
		}

		err := verifier.Verify(ctx, verify.Target{
			Name:            d.Contract,
			Address:         d.VerifyAddress(),
			ConstructorArgs: d.ConstructorArgs,
		})

		v := orchestrator.Verification{
			StepID:   d.StepID,
			Label:    label,
			Contract: d.Contract,
			Address:  d.VerifyAddress(),
			Verified: err == nil,
		}
		if err != nil {
			v.Reason = err.Error()
			console.VerificationSkipped(label, err)
		} else {
			console.Verified(label, v.Address)
		}
		verifications = append(verifications, v)
	}

	return verifications, nil
}

// verifier returns nil when verification is disabled or no API key is set.
func (s *Service) verifier() (*verify.Service, error) {
	if !s.cfg.Deployment.Verify {
		s.logger.Info("verification disabled")
		return nil, nil
	}
	if s.cfg.Explorer.APIKey == "" {
		s.logger.Info("no explorer API key configured, verification will be skipped")
		return nil, nil
	}
	if err := s.cfg.Explorer.Validate(); err != nil {
		return nil, err
	}

	compiler := contracts.NewCompiler(s.rootDir, s.cfg.Compiler, nil)
	sources, err := verify.LoadSources(s.path(s.cfg.Explorer.BuildInfoDir), compiler.StandardInputPath(), s.cfg.Compiler.LongVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification sources: %w", err)
	}

	return verify.NewService(s.cfg.Explorer, sources)
}

func (s *Service) pushMetrics(ctx context.Context, recorder *metrics.Recorder, result *orchestrator.Result) {
	if s.cfg.Metrics.PushgatewayURL == "" || result == nil {
		return
	}

	err := recorder.Push(ctx, s.cfg.Metrics.PushgatewayURL, s.cfg.Metrics.Job, result.RunID.String())
	if err != nil {
		s.logger.With("err", err.Error()).Warn("failed to push metrics")
	}
}

func (s *Service) writeRecord(result *orchestrator.Result, artifacts contracts.Set) error {
	if s.cfg.Deployment.Output == "" || result == nil || len(result.Deployments) == 0 {
		return nil
	}

	path := s.path(s.cfg.Deployment.Output)
	if err := output.WriteRecord(path, output.NewRecord(s.cfg.Network.Name, result, artifacts)); err != nil {
		return err
	}

	s.logger.With("path", path).Info("deployment record written")
	return nil
}

func (s *Service) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.rootDir, p)
}

// dialRPC waits for the node when rpc-wait-attempts is set, then connects.
func (s *Service) dialRPC(ctx context.Context, url string) (chain.Backend, func(), error) {
	if attempts := s.cfg.Network.RPCWaitAttempts; attempts > 0 {
		if err := chain.WaitForRPC(ctx, url, attempts, rpcWaitInterval); err != nil {
			return nil, nil, err
		}
	}

	client, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}
