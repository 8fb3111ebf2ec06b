package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/token-bridge/configs"
	"github.com/compose-network/token-bridge/internal/infra"
	"github.com/compose-network/token-bridge/internal/inspect"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/relayer"
	"github.com/compose-network/token-bridge/internal/simulate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "bridgectl"

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "CLI for running and exercising an L1 <-> L2 token bridge",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo)

		configs.SetDefaults(viper.GetViper())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			viper.AddConfigPath(execDir)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")

		// A missing file is fine; the embedded defaults cover every key.
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				slog.Debug("no config file found, will rely on flags and defaults")
			} else {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		level, err := logger.ParseLevel(configs.Values.LogLevel)
		if err != nil {
			return err
		}
		logger.Initialize(level)

		slog.With("config", configs.Values).Debug("configuration loaded")

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(err)
	}
}

func main() {
	rootCmd.AddCommand(simulate.CMD)
	rootCmd.AddCommand(relayer.CMD)
	rootCmd.AddCommand(inspect.CMD)
	rootCmd.AddCommand(infra.CMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
