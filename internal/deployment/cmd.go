package deployment

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/infra/docker"
	"github.com/spf13/cobra"
)

var DeployCMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy, wire and verify the CrossRealm contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting deploy command", slog.Any("network", configs.Values.Network), slog.Any("deployment", configs.Values.Deployment))

		rootDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		result, err := NewService(rootDir, configs.Values, cmd.OutOrStdout()).Deploy(cmd.Context())
		if err != nil {
			return fmt.Errorf("deployment failed: %w", err)
		}

		slog.With("run_id", result.RunID.String()).With("contracts", len(result.Deployments)).Info("deployment completed successfully")

		return nil
	},
}

var CompileCMD = &cobra.Command{
	Use:   "compile",
	Short: "Compile the Solidity sources with solc in docker",
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		dockerClient, err := docker.New()
		if err != nil {
			return err
		}
		defer dockerClient.Close()

		compiled, err := NewService(rootDir, configs.Values, cmd.OutOrStdout()).Compile(cmd.Context(), dockerClient)
		if err != nil {
			return fmt.Errorf("compilation failed: %w", err)
		}

		slog.With("contracts", len(compiled)).Info("compilation completed successfully")

		return nil
	},
}

var VerifyCMD = &cobra.Command{
	Use:   "verify <record-file>",
	Short: "Resubmit the contracts of a saved deployment record for verification",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configs.Values.Deployment.Output
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no record file given and deployment.output is not set")
		}

		rootDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		cfg := configs.Values
		cfg.Deployment.Verify = true

		verifications, err := NewService(rootDir, cfg, cmd.OutOrStdout()).Reverify(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}

		failed := 0
		for _, v := range verifications {
			if !v.Verified {
				failed++
			}
		}
		slog.With("submitted", len(verifications)).With("failed", failed).Info("verification finished")

		return nil
	},
}
