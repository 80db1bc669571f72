package devnet

import (
	"fmt"
	"log/slog"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/infra/docker"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "devnet",
	Short: "Run a local anvil chain for rehearsal deployments",
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the devnet and print its RPC URL and funded key",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting devnet", slog.Any("config", configs.Values.Devnet))

		dockerClient, err := docker.New()
		if err != nil {
			return err
		}
		defer dockerClient.Close()

		info, err := New(configs.Values.Devnet, dockerClient).Up(cmd.Context(), configs.Values.Network.RPCWaitAttempts)
		if err != nil {
			return fmt.Errorf("failed to start devnet: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "RPC URL: %s\n", info.RPCURL)
		_, _ = fmt.Fprintf(out, "Chain ID: %d\n", info.ChainID)
		_, _ = fmt.Fprintf(out, "Funded account: %s\n", info.Address)
		_, _ = fmt.Fprintf(out, "\nDeploy against it with:\n")
		_, _ = fmt.Fprintf(out, "  PRIVATE_KEY=%s deployer deploy --rpc-url %s --chain-id %d\n", info.Key, info.RPCURL, info.ChainID)

		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Remove the devnet container",
	RunE: func(cmd *cobra.Command, args []string) error {
		dockerClient, err := docker.New()
		if err != nil {
			return err
		}
		defer dockerClient.Close()

		if err := New(configs.Values.Devnet, dockerClient).Down(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop devnet: %w", err)
		}

		slog.Info("devnet removed")
		return nil
	},
}

var (
	devnetStringFlags = []configs.FlagDef[string]{
		{"image", "devnet.image", "", "Image providing the anvil binary"},
		{"container-name", "devnet.container-name", "", "Devnet container name"},
	}

	devnetIntFlags = []configs.FlagDef[int]{
		{"port", "devnet.port", 0, "Host port for the devnet RPC"},
		{"devnet-chain-id", "devnet.chain-id", 0, "Chain ID of the devnet"},
	}
)

func init() {
	configs.MustDeclareFlags(CMD.PersistentFlags(), devnetStringFlags)
	configs.MustDeclareFlags(CMD.PersistentFlags(), devnetIntFlags)

	CMD.AddCommand(upCmd)
	CMD.AddCommand(downCmd)
}
