package configs

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var Values Config

type (
	BridgeMode string
	Transport  string

	Config struct {
		LogLevel  string    `mapstructure:"log-level"`
		Bridge    Bridge    `mapstructure:"bridge"`
		Messaging Messaging `mapstructure:"messaging"`
		Relay     Relay     `mapstructure:"relay"`
		Metrics   Metrics   `mapstructure:"metrics"`
		Infra     Infra     `mapstructure:"infra"`
	}

	Bridge struct {
		Mode             BridgeMode `mapstructure:"mode"`
		Asset            string     `mapstructure:"asset"`
		Governor         string     `mapstructure:"governor"`
		L2Governor       string     `mapstructure:"l2-governor"`
		L1Address        string     `mapstructure:"l1-address"`
		L2Address        string     `mapstructure:"l2-address"`
		Token            Token      `mapstructure:"token"`
		MaxTotalBalance  string     `mapstructure:"max-total-balance"`
		MaxFee           string     `mapstructure:"max-fee"`
		EnrollmentWindow uint64     `mapstructure:"enrollment-window"`
		LimitPercent     uint64     `mapstructure:"limit-percent"`
		UpgradeDelay     uint64     `mapstructure:"upgrade-delay"`
	}

	Token struct {
		Address  string `mapstructure:"address"`
		Name     string `mapstructure:"name"`
		Symbol   string `mapstructure:"symbol"`
		Decimals uint8  `mapstructure:"decimals"`
	}

	Messaging struct {
		CancellationDelay uint64 `mapstructure:"cancellation-delay"`
	}

	Relay struct {
		Transport     Transport     `mapstructure:"transport"`
		NATSURL       string        `mapstructure:"nats-url"`
		SubjectToL2   string        `mapstructure:"subject-to-l2"`
		SubjectToL1   string        `mapstructure:"subject-to-l1"`
		DedupSize     int           `mapstructure:"dedup-size"`
		PollInterval  time.Duration `mapstructure:"poll-interval"`
		ReconnectWait time.Duration `mapstructure:"reconnect-wait"`
	}

	Metrics struct {
		Namespace  string `mapstructure:"namespace"`
		// ListenAddr serves /metrics while the relay runs. Empty disables it.
		ListenAddr string `mapstructure:"listen-addr"`
	}

	Infra struct {
		NATSImage       string `mapstructure:"nats-image"`
		NATSPort        int    `mapstructure:"nats-port"`
		NATSMonitorPort int    `mapstructure:"nats-monitor-port"`
	}
)

const (
	BridgeModeLegacy BridgeMode = "legacy"
	BridgeModeMulti  BridgeMode = "multi-token"

	TransportMemory Transport = "memory"
	TransportNATS   Transport = "nats"
)

func (c *Config) Validate() error {
	errs := []error{c.Bridge.Validate(), c.Relay.Validate(), c.Infra.Validate()}
	return errors.Join(errs...)
}

func (c *Bridge) Validate() error {
	var errs []error

	switch c.Mode {
	case BridgeModeLegacy:
		if c.Asset != "erc20" && c.Asset != "ether" {
			errs = append(errs, errors.New("bridge.asset must be either 'erc20' or 'ether'"))
		}
	case BridgeModeMulti:
	default:
		errs = append(errs, fmt.Errorf("bridge.mode must be either '%s' or '%s'", BridgeModeLegacy, BridgeModeMulti))
	}
	for name, v := range map[string]string{
		"bridge.governor":      c.Governor,
		"bridge.l1-address":    c.L1Address,
		"bridge.token.address": c.Token.Address,
	} {
		if !common.IsHexAddress(v) {
			errs = append(errs, fmt.Errorf("%s must be a hex address", name))
		}
	}
	for name, v := range map[string]string{
		"bridge.l2-governor": c.L2Governor,
		"bridge.l2-address":  c.L2Address,
	} {
		if _, err := uint256.FromHex(v); err != nil {
			errs = append(errs, fmt.Errorf("%s must be a hex felt: %w", name, err))
		}
	}
	for name, v := range map[string]string{
		"bridge.max-total-balance": c.MaxTotalBalance,
		"bridge.max-fee":           c.MaxFee,
	} {
		if v == "" {
			continue
		}
		if _, err := uint256.FromDecimal(v); err != nil {
			errs = append(errs, fmt.Errorf("%s must be a decimal amount: %w", name, err))
		}
	}
	if c.LimitPercent > 100 {
		errs = append(errs, errors.New("bridge.limit-percent must be at most 100"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("bridge configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Relay) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportMemory:
	case TransportNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("relay.nats-url is required for the nats transport"))
		}
		if c.SubjectToL2 == "" || c.SubjectToL1 == "" {
			errs = append(errs, errors.New("relay.subject-to-l2 and relay.subject-to-l1 are required"))
		} else if c.SubjectToL2 == c.SubjectToL1 {
			errs = append(errs, errors.New("relay subjects must differ"))
		}
	default:
		errs = append(errs, fmt.Errorf("relay.transport must be either '%s' or '%s'", TransportMemory, TransportNATS))
	}
	if c.DedupSize < 0 {
		errs = append(errs, errors.New("relay.dedup-size must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("relay configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Infra) Validate() error {
	var errs []error
	if c.NATSImage == "" {
		errs = append(errs, errors.New("infra.nats-image is required"))
	}
	if c.NATSPort <= 0 || c.NATSPort > 65535 {
		errs = append(errs, errors.New("infra.nats-port must be a valid port"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("infra configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}
