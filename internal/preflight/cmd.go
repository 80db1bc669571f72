package preflight

import (
	"fmt"
	"log/slog"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/chain"
	"github.com/crossrealm/deployer/internal/signer"
	"github.com/spf13/cobra"
)

// CMD prints the deployer account the current configuration resolves to.
// A missing key is reported, not treated as a failure.
var CMD = &cobra.Command{
	Use:   "account",
	Short: "Show the deployer account, its balance and the chain it targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		network := configs.Values.Network
		slog.Info("starting account command", slog.Any("network", network))

		var client Chain
		if signer.KeyLength(network.PrivateKey) > 0 {
			ethClient, err := chain.Dial(cmd.Context(), network.RPCURL)
			if err != nil {
				return err
			}
			defer ethClient.Close()
			client = ethClient
		}

		report, err := NewChecker().Run(cmd.Context(), client, network.PrivateKey, uint64(network.ChainID))
		if err != nil {
			return fmt.Errorf("account check failed: %w", err)
		}

		report.Print(cmd.OutOrStdout())

		if !report.OK() {
			slog.With("signers", report.Signers).Warn("account is not ready to deploy")
		}

		return nil
	},
}
