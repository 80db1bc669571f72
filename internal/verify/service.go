package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/contracts"
	"github.com/crossrealm/deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Target is one deployed contract to verify.
type Target struct {
	Name            contracts.Name
	Address         common.Address
	ConstructorArgs []byte
}

// Service matches targets with their sources and submits them.
type Service struct {
	client  *Client
	sources SourceFinder
	logger  *slog.Logger
}

// NewService builds a verification service from explorer settings.
// ErrNoAPIKey is returned when no key is configured.
func NewService(cfg configs.Explorer, sources SourceFinder) (*Service, error) {
	opts := []Option{WithPolling(cfg.PollInterval, cfg.PollAttempts)}
	if cfg.APIURL != "" {
		opts = append(opts, WithBaseURL(cfg.APIURL))
	}

	client, err := NewClient(cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}

	return &Service{client: client, sources: sources, logger: logger.Named("verifier")}, nil
}

// Verify submits one target and waits for the explorer's verdict.
func (s *Service) Verify(ctx context.Context, target Target) error {
	source, err := s.sources.Find(target.Name)
	if err != nil {
		return err
	}

	sourceJSON, err := source.SourceJSON()
	if err != nil {
		return err
	}

	log := s.logger.With("contract", target.Name).With("address", target.Address.Hex())
	log.With("source", source.ContractName(target.Name)).Info("submitting verification")

	err = s.client.Verify(ctx, Submission{
		Address:         target.Address,
		ContractName:    source.ContractName(target.Name),
		CompilerVersion: source.CompilerVersion,
		SourceJSON:      sourceJSON,
		ConstructorArgs: target.ConstructorArgs,
	})
	if err != nil {
		return fmt.Errorf("failed to verify %s at %s: %w", target.Name, target.Address.Hex(), err)
	}

	log.Info("contract verified")

	return nil
}
