package relayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/compose-network/token-bridge/configs"
	"github.com/compose-network/token-bridge/internal/deploy"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/metrics"
	"github.com/compose-network/token-bridge/internal/relay"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	CMD = &cobra.Command{
		Use:   "relay",
		Short: "Commands for the message relay",
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Deploy a bridge stack and relay its messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				return fmt.Errorf("error occurred running relay: %w", err)
			}
			return nil
		},
	}
)

func init() {
	declareStringFlag("transport", "relay.transport", "", "Relay transport (memory or nats)")
	declareStringFlag("nats-url", "relay.nats-url", "", "NATS server URL")
	declareStringFlag("metrics-addr", "metrics.listen-addr", "", "Serve /metrics on this address")
	CMD.AddCommand(runCmd)
}

func declareStringFlag(name, key, defaultValue, description string) {
	runCmd.Flags().String(name, defaultValue, description)
	if err := viper.BindPFlag(key, runCmd.Flags().Lookup(name)); err != nil {
		panic(err)
	}
}

// Stack builds a bridge stack whose relay uses the configured transport.
func Stack(cfg configs.Config) (*deploy.Stack, error) {
	sCfg, err := deploy.StackConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Relay.Transport == configs.TransportNATS {
		toL2Cfg, toL1Cfg := deploy.NATSConfigs(cfg.Relay)
		toL2, err := relay.NewNATSTransport(toL2Cfg)
		if err != nil {
			return nil, err
		}
		toL1, err := relay.NewNATSTransport(toL1Cfg)
		if err != nil {
			return nil, errors.Join(err, toL2.Close())
		}
		sCfg.Relay.ToL2, sCfg.Relay.ToL1 = toL2, toL1
	}
	return deploy.NewStack(sCfg)
}

func run(ctx context.Context, cfg configs.Config) error {
	log := logger.Named("relayer")

	stack, err := Stack(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.With("err", err).Warn("failed to close transports")
		}
	}()

	log.With("transport", cfg.Relay.Transport).With("mode", cfg.Bridge.Mode).
		With("l1_bridge", stack.L1.Address().Hex()).Info("relay started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stack.Relay.Run(ctx) })
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		g.Go(func() error { return metrics.Serve(ctx, addr, stack.Gatherer) })
		log.With("addr", addr).Info("serving metrics")
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("relay stopped")
	return err
}
