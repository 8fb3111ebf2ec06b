package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/token-bridge/configs"
	"github.com/compose-network/token-bridge/internal/infra/docker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	CMD = &cobra.Command{
		Use:   "infra",
		Short: "Commands for the local relay infrastructure",
	}

	natsCmd = &cobra.Command{
		Use:   "nats",
		Short: "Manage the NATS broker the relay publishes to",
	}

	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Start the NATS broker in docker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := withClient(cmd.Context(), func(ctx context.Context, c *docker.Client) error {
				return c.StartNATS(ctx, NATSOptions(cfg))
			}); err != nil {
				return fmt.Errorf("error occurred starting nats: %w", err)
			}
			slog.With("url", fmt.Sprintf("nats://127.0.0.1:%d", cfg.NATSPort)).Info("nats is up")
			return nil
		},
	}

	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the NATS broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withClient(cmd.Context(), func(ctx context.Context, c *docker.Client) error {
				return c.StopNATS(ctx)
			}); err != nil {
				return fmt.Errorf("error occurred stopping nats: %w", err)
			}
			return nil
		},
	}
)

func init() {
	upCmd.Flags().String("nats-image", "", "NATS image")
	upCmd.Flags().Int("nats-port", 0, "Host port for NATS clients")
	for flag, key := range map[string]string{"nats-image": "infra.nats-image", "nats-port": "infra.nats-port"} {
		if err := viper.BindPFlag(key, upCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	natsCmd.AddCommand(upCmd)
	natsCmd.AddCommand(downCmd)
	CMD.AddCommand(natsCmd)
}

func loadConfig() (configs.Infra, error) {
	cfg, err := configs.Load()
	if err != nil {
		return configs.Infra{}, err
	}
	return cfg.Infra, nil
}

func NATSOptions(cfg configs.Infra) docker.NATSOptions {
	return docker.NATSOptions{Image: cfg.NATSImage, Port: cfg.NATSPort, MonitorPort: cfg.NATSMonitorPort}
}

func withClient(ctx context.Context, fn func(context.Context, *docker.Client) error) error {
	c, err := docker.New()
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer c.Close()
	return fn(ctx, c)
}
