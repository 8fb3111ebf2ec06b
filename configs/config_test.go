package configs

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	require.Equal(t, BridgeModeLegacy, cfg.Bridge.Mode)
	require.Equal(t, uint64(3600), cfg.Messaging.CancellationDelay)
	require.Equal(t, 500*time.Millisecond, cfg.Relay.PollInterval)
	require.Equal(t, "TKN", cfg.Bridge.Token.Symbol)
}

func TestPartialOverride(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("bridge:\n  mode: multi-token\nrelay:\n  transport: nats\n")))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Validate())
	require.Equal(t, BridgeModeMulti, cfg.Bridge.Mode)
	require.Equal(t, TransportNATS, cfg.Relay.Transport)
	require.Equal(t, "nats://127.0.0.1:4222", cfg.Relay.NATSURL)
}

func TestValidate(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	cfg.Bridge.Mode = "sideways"
	cfg.Bridge.Governor = "nope"
	cfg.Bridge.L2Address = "12b"
	cfg.Bridge.LimitPercent = 101
	cfg.Relay.Transport = TransportNATS
	cfg.Relay.SubjectToL1 = cfg.Relay.SubjectToL2
	cfg.Infra.NATSPort = 0

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"bridge.mode", "bridge.governor", "bridge.l2-address", "bridge.limit-percent",
		"relay subjects must differ", "infra.nats-port",
	} {
		require.ErrorContains(t, err, want)
	}
}
