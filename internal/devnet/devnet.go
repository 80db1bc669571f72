// Package devnet runs a disposable anvil chain in docker for rehearsal
// deployments.
package devnet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/infra/docker"
	"github.com/crossrealm/deployer/internal/logger"
)

const (
	containerPort = 8545

	// DevKey is the first prefunded anvil account.
	DevKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	DevAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	waitInterval        = time.Second
	defaultWaitAttempts = 30
)

// Runtime is the container API the devnet needs.
type Runtime interface {
	EnsureImage(ctx context.Context, imageName string) error
	StartService(ctx context.Context, opts docker.ServiceOptions) (string, error)
	ServiceRunning(ctx context.Context, name string) (bool, error)
	RemoveService(ctx context.Context, name string) error
}

// Info describes a running devnet.
type Info struct {
	ContainerID string
	RPCURL      string
	ChainID     int
	Key         string
	Address     string
}

type Devnet struct {
	cfg     configs.Devnet
	runtime Runtime
	wait    func(ctx context.Context, url string, attempts int, interval time.Duration) error
	logger  *slog.Logger
}

func New(cfg configs.Devnet, runtime Runtime) *Devnet {
	return &Devnet{
		cfg:     cfg,
		runtime: runtime,
		wait:    chain.WaitForRPC,
		logger:  logger.Named("devnet"),
	}
}

// RPCURL is the host-side endpoint of the devnet.
func (d *Devnet) RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", d.cfg.Port)
}

// ServiceOptions builds the anvil container description.
func (d *Devnet) ServiceOptions() docker.ServiceOptions {
	return docker.ServiceOptions{
		Name:       d.cfg.ContainerName,
		Image:      d.cfg.Image,
		Entrypoint: []string{"anvil"},
		Cmd: []string{
			"--host", "0.0.0.0",
			"--port", strconv.Itoa(containerPort),
			"--chain-id", strconv.Itoa(d.cfg.ChainID),
		},
		ContainerPort: containerPort,
		HostPort:      d.cfg.Port,
	}
}

// Up starts the devnet and waits until its RPC answers. An already running
// devnet is reused.
func (d *Devnet) Up(ctx context.Context, attempts int) (Info, error) {
	if err := d.cfg.Validate(); err != nil {
		return Info{}, err
	}
	if attempts <= 0 {
		attempts = defaultWaitAttempts
	}

	info := Info{
		RPCURL:  d.RPCURL(),
		ChainID: d.cfg.ChainID,
		Key:     DevKey,
		Address: DevAddress,
	}
	log := d.logger.With("name", d.cfg.ContainerName).With("rpc_url", info.RPCURL)

	running, err := d.runtime.ServiceRunning(ctx, d.cfg.ContainerName)
	if err != nil {
		return Info{}, err
	}

	if running {
		log.Info("devnet already running")
	} else {
		if err := d.runtime.EnsureImage(ctx, d.cfg.Image); err != nil {
			return Info{}, err
		}
		// Clear a stopped container left from an earlier run.
		if err := d.runtime.RemoveService(ctx, d.cfg.ContainerName); err != nil {
			return Info{}, err
		}

		id, err := d.runtime.StartService(ctx, d.ServiceOptions())
		if err != nil {
			return Info{}, err
		}
		info.ContainerID = id
	}

	if err := d.wait(ctx, info.RPCURL, attempts, waitInterval); err != nil {
		return Info{}, fmt.Errorf("devnet did not become ready: %w", err)
	}

	log.Info("devnet is ready")

	return info, nil
}

// Down removes the devnet container.
func (d *Devnet) Down(ctx context.Context) error {
	return d.runtime.RemoveService(ctx, d.cfg.ContainerName)
}
