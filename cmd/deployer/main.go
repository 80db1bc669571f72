package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/crossrealm/deployer/configs"
	"github.com/crossrealm/deployer/internal/deployment"
	"github.com/crossrealm/deployer/internal/devnet"
	"github.com/crossrealm/deployer/internal/logger"
	"github.com/crossrealm/deployer/internal/preflight"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dotEnvFile = ".env"

var configFile string

var rootCmd = &cobra.Command{
	Use:           configs.AppName,
	Version:       configs.Version,
	Short:         "Deploy and verify the CrossRealm contracts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo)

		if exported, err := configs.LoadDotEnv(dotEnvFile); err != nil {
			return err
		} else if exported > 0 {
			slog.With("file", dotEnvFile).With("variables", exported).Debug("environment loaded")
		}

		if err := configs.LoadDefaults(viper.GetViper()); err != nil {
			return err
		}

		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.SetConfigName("config")
			if execPath, err := os.Executable(); err == nil {
				viper.AddConfigPath(filepath.Dir(execPath))
			}
			viper.AddConfigPath(".")
			viper.AddConfigPath("./configs")
		}

		// A missing config file is fine: defaults, env and flags cover everything.
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
			slog.Debug("no config file found, relying on defaults, env and flags")
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := configs.BindEnv(viper.GetViper()); err != nil {
			return err
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		level, err := logger.ParseLevel(configs.Values.Log.Level)
		if err != nil {
			return err
		}
		logger.InitializeWith(os.Stderr, level, configs.Values.Log.Format)

		slog.With("network", configs.Values.Network).With("explorer", configs.Values.Explorer).Debug("configuration loaded")

		return nil
	},
}

var (
	rootStringFlags = []configs.FlagDef[string]{
		{"rpc-url", "network.rpc-url", "", "RPC URL of the target chain (env CORE_MAINNET_RPC)"},
		{"log-level", "log.level", "", "Log level: debug, info, warn or error"},
		{"log-format", "log.format", "", "Log format: json or text"},
	}

	rootIntFlags = []configs.FlagDef[int]{
		{"chain-id", "network.chain-id", 0, "Expected chain ID"},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: config.yaml next to the binary, in . or ./configs)")
	configs.MustDeclareFlags(rootCmd.PersistentFlags(), rootStringFlags)
	configs.MustDeclareFlags(rootCmd.PersistentFlags(), rootIntFlags)

	rootCmd.AddCommand(deployment.DeployCMD)
	rootCmd.AddCommand(deployment.CompileCMD)
	rootCmd.AddCommand(deployment.VerifyCMD)
	rootCmd.AddCommand(preflight.CMD)
	rootCmd.AddCommand(devnet.CMD)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
