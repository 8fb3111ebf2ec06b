package infra

import (
	"testing"

	"github.com/compose-network/token-bridge/configs"
	"github.com/stretchr/testify/require"
)

func TestNATSOptions(t *testing.T) {
	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)

	opts := NATSOptions(cfg.Infra)
	require.Equal(t, "nats:2.10-alpine", opts.Image)
	require.Equal(t, 4222, opts.Port)
	require.Equal(t, 8222, opts.MonitorPort)
}
