package deploy

import (
	"fmt"

	"github.com/compose-network/token-bridge/configs"
	"github.com/compose-network/token-bridge/internal/l1bridge"
	"github.com/compose-network/token-bridge/internal/relay"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StackConfigFrom maps the application config onto a stack. cfg must be valid.
func StackConfigFrom(cfg configs.Config) (StackConfig, error) {
	out := DefaultStackConfig()
	b := cfg.Bridge

	out.Mode = l1bridge.Legacy
	if b.Mode == configs.BridgeModeMulti {
		out.Mode = l1bridge.MultiToken
	}
	out.Asset = Asset(b.Asset)
	out.Governor = common.HexToAddress(b.Governor)
	out.Addresses.L1Bridge = common.HexToAddress(b.L1Address)
	out.Addresses.Token = common.HexToAddress(b.Token.Address)
	out.Token = token.Metadata{Name: b.Token.Name, Symbol: b.Token.Symbol, Decimals: b.Token.Decimals}

	var err error
	if out.L2Governor, err = uint256.FromHex(b.L2Governor); err != nil {
		return out, fmt.Errorf("failed to parse l2 governor: %w", err)
	}
	if out.Addresses.L2Bridge, err = uint256.FromHex(b.L2Address); err != nil {
		return out, fmt.Errorf("failed to parse l2 bridge address: %w", err)
	}
	if b.MaxTotalBalance != "" {
		if out.MaxTotalBalance, err = uint256.FromDecimal(b.MaxTotalBalance); err != nil {
			return out, fmt.Errorf("failed to parse max total balance: %w", err)
		}
	}
	if b.MaxFee != "" {
		if out.MaxFee, err = uint256.FromDecimal(b.MaxFee); err != nil {
			return out, fmt.Errorf("failed to parse max fee: %w", err)
		}
	}

	if b.EnrollmentWindow != 0 {
		out.EnrollmentWindow = b.EnrollmentWindow
	}
	out.LimitPercent = b.LimitPercent
	out.UpgradeDelay = b.UpgradeDelay
	out.CancellationDelay = cfg.Messaging.CancellationDelay
	out.MetricsNamespace = cfg.Metrics.Namespace
	out.Relay = &RelayConfig{Config: RelayConfigFrom(cfg.Relay)}
	return out, nil
}

func RelayConfigFrom(cfg configs.Relay) relay.Config {
	return relay.Config{PollInterval: cfg.PollInterval, DedupSize: cfg.DedupSize}
}

func NATSConfigs(cfg configs.Relay) (toL2, toL1 relay.NATSConfig) {
	toL2 = relay.NATSConfig{URL: cfg.NATSURL, Subject: cfg.SubjectToL2, ReconnectWait: cfg.ReconnectWait}
	toL1 = relay.NATSConfig{URL: cfg.NATSURL, Subject: cfg.SubjectToL1, ReconnectWait: cfg.ReconnectWait}
	return toL2, toL1
}
