package deploy

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/token-bridge/internal/access"
	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/l1bridge"
	"github.com/compose-network/token-bridge/internal/l2bridge"
	"github.com/compose-network/token-bridge/internal/limiter"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/metrics"
	"github.com/compose-network/token-bridge/internal/proxy"
	"github.com/compose-network/token-bridge/internal/registry"
	"github.com/compose-network/token-bridge/internal/relay"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type Asset string

const (
	AssetERC20 Asset = "erc20"
	AssetEther Asset = "ether"
)

/*
Stack is one freshly deployed pair of chains:
  - L1: messaging core, ERC20 and ether ledgers, roles, limiter, registry and
    manager (multi-token only), the bridge behind its upgrade proxy
  - L2: the bridge and the outbox its withdrawals go through
  - a postman, or a relay when one is configured, to move messages across
*/
type (
	Addresses struct {
		Core         common.Address
		L1Bridge     common.Address
		L1BridgeImpl common.Address
		Registry     common.Address
		Manager      common.Address
		Token        common.Address
		L2Bridge     *uint256.Int
		L2Token      *uint256.Int
	}

	RelayConfig struct {
		relay.Config
		// Nil transports are replaced with in-memory ones.
		ToL2 relay.Transport
		ToL1 relay.Transport
	}

	StackConfig struct {
		Mode  l1bridge.Mode
		Asset Asset
		// Governor holds every L1 administrative role and governs the proxy.
		Governor   common.Address
		L2Governor *uint256.Int
		Addresses  Addresses
		Token      token.Metadata

		StartTime         uint64
		CancellationDelay uint64
		UpgradeDelay      uint64
		EnrollmentWindow  uint64
		LimitPercent      uint64
		MaxTotalBalance   *uint256.Int
		MaxFee            *uint256.Int

		// Nil means a private registry.
		Registry         *prometheus.Registry
		MetricsNamespace string
		// Nil delivers through a synchronous postman.
		Relay *RelayConfig
	}

	Stack struct {
		Config StackConfig

		Clock    *chain.ManualClock
		Log      *events.Log
		Ether    *token.Ether
		Token    *token.ERC20
		Core     *messaging.Core
		Outbox   *messaging.Outbox
		Roles    *access.Roles
		Limiter  *limiter.Limiter
		Registry *registry.Registry
		Manager  *registry.Manager
		Custody  *l1bridge.MultiCustody
		Proxy    *proxy.Proxy[*l1bridge.TokenBridge]
		L1       *l1bridge.TokenBridge
		L2       *l2bridge.Bridge
		Metrics  *metrics.Metrics
		Gatherer prometheus.Gatherer
		Relay    *relay.Relay

		postman *messaging.Postman
		logger  *slog.Logger
	}
)

func DefaultAddresses() Addresses {
	return Addresses{
		Core:         common.HexToAddress("0xc0de"),
		L1Bridge:     common.HexToAddress("0xb1d6e"),
		L1BridgeImpl: common.HexToAddress("0xb1d6e1"),
		Registry:     common.HexToAddress("0x7e6"),
		Manager:      common.HexToAddress("0x3a7"),
		Token:        common.HexToAddress("0x70c"),
		L2Bridge:     uint256.NewInt(0x12b),
		L2Token:      uint256.NewInt(0x12c),
	}
}

// DefaultStackConfig is a legacy ERC20 bridge with a one hour cancellation delay.
func DefaultStackConfig() StackConfig {
	return StackConfig{
		Mode:              l1bridge.Legacy,
		Asset:             AssetERC20,
		Governor:          common.HexToAddress("0x90"),
		L2Governor:        uint256.NewInt(0x91),
		Addresses:         DefaultAddresses(),
		Token:             token.Metadata{Name: "Token", Symbol: "TKN", Decimals: 18},
		StartTime:         100 * chain.SecondsPerDay,
		CancellationDelay: 3600,
		UpgradeDelay:      0,
		EnrollmentWindow:  l1bridge.DefaultEnrollmentWindow,
		LimitPercent:      5,
	}
}

func (c StackConfig) Validate() error {
	var errs []error
	if c.Mode != l1bridge.Legacy && c.Mode != l1bridge.MultiToken {
		errs = append(errs, fmt.Errorf("unknown bridge mode %d", c.Mode))
	}
	if c.Mode == l1bridge.Legacy && c.Asset != AssetERC20 && c.Asset != AssetEther {
		errs = append(errs, fmt.Errorf("unknown asset %q", c.Asset))
	}
	if c.Governor == (common.Address{}) {
		errs = append(errs, errors.New("governor is required"))
	}
	if c.L2Governor == nil || c.L2Governor.IsZero() {
		errs = append(errs, errors.New("l2 governor is required"))
	}
	if c.Addresses.L2Bridge == nil || c.Addresses.L2Token == nil {
		errs = append(errs, errors.New("l2 addresses are required"))
	}
	if c.LimitPercent > 100 {
		errs = append(errs, fmt.Errorf("limit percent %d out of range", c.LimitPercent))
	}
	return errors.Join(errs...)
}

// NewStack deploys and wires every contract of cfg on fresh state.
func NewStack(cfg StackConfig) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stack config: %w", err)
	}
	addr := cfg.Addresses
	s := &Stack{
		Config: cfg,
		Clock:  chain.NewManualClock(cfg.StartTime),
		Log:    events.NewLog(),
		Ether:  token.NewEther(),
		Token:  token.NewERC20(addr.Token, cfg.Token),
		Outbox: messaging.NewOutbox(),
		Roles:  access.NewRoles(cfg.Governor),
		logger: logger.Named("deploy"),
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s.Gatherer = reg
	s.Metrics = metrics.New(reg, cfg.MetricsNamespace)

	for _, role := range []access.Role{access.AppGovernor, access.TokenAdmin, access.SecurityAgent} {
		if err := s.Roles.Grant(cfg.Governor, role, cfg.Governor); err != nil {
			return nil, fmt.Errorf("failed to grant %s: %w", role, err)
		}
	}

	s.Core = messaging.NewCore(messaging.CoreConfig{
		Address:           addr.Core,
		CancellationDelay: cfg.CancellationDelay,
		MaxFee:            cfg.MaxFee,
	}, s.Clock, s.Ether, s.Log)

	lim, err := limiter.New(cfg.LimitPercent, s.Clock, s.Roles, s.Log, addr.L1Bridge)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal limiter: %w", err)
	}
	s.Limiter = lim

	s.logger.With("mode", modeName(cfg.Mode)).With("asset", cfg.Asset).Info("deploying l1 bridge")
	impl, err := s.newL1Bridge()
	if err != nil {
		return nil, err
	}
	if err := s.installL1Bridge(impl); err != nil {
		return nil, err
	}
	if err := s.L1.SetL2TokenBridge(cfg.Governor, addr.L2Bridge); err != nil {
		return nil, fmt.Errorf("failed to set l2 token bridge: %w", err)
	}
	if cfg.Mode == l1bridge.MultiToken {
		s.Manager = registry.NewManager(addr.Manager, s.Registry, s.L1, s.Roles, s.Log)
	}

	s.logger.With("address", addr.L2Bridge.Hex()).Info("deploying l2 bridge")
	if err := s.deployL2Bridge(); err != nil {
		return nil, err
	}

	s.postman = messaging.NewPostman(s.Core, s.Outbox, s.L2)
	if cfg.Relay != nil {
		if err := s.newRelay(*cfg.Relay); err != nil {
			return nil, err
		}
	}

	s.logger.With("l1_bridge", addr.L1Bridge.Hex()).With("l2_bridge", addr.L2Bridge.Hex()).Info("stack deployed")
	return s, nil
}

func (s *Stack) newL1Bridge() (*l1bridge.TokenBridge, error) {
	cfg, addr := s.Config, s.Config.Addresses
	bcfg := l1bridge.Config{
		Address:                addr.L1Bridge,
		DefaultMaxTotalBalance: cfg.MaxTotalBalance,
		EnrollmentWindow:       cfg.EnrollmentWindow,
	}
	deps := l1bridge.Deps{
		Channel: s.Core,
		Ether:   s.Ether,
		Roles:   s.Roles,
		Clock:   s.Clock,
		Limiter: s.Limiter,
		Log:     s.Log,
		Metrics: s.Metrics,
	}

	var (
		b   *l1bridge.TokenBridge
		err error
	)
	switch {
	case cfg.Mode == l1bridge.MultiToken:
		s.Registry = registry.NewRegistry(addr.Registry, addr.Manager, s.Log)
		s.Custody = l1bridge.NewMultiCustody(addr.L1Bridge, s.Ether)
		s.Custody.Register(s.Token)
		deps.Registry = s.Registry
		bcfg.Manager = addr.Manager
		bcfg.LegacyToken = addr.Token
		b, err = l1bridge.NewMultiBridge(bcfg, s.Custody, deps)
	case cfg.Asset == AssetEther:
		b, err = l1bridge.NewEthBridge(bcfg, deps)
	default:
		b, err = l1bridge.NewERC20Bridge(bcfg, s.Token, deps)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create l1 bridge: %w", err)
	}
	return b, nil
}

// installL1Bridge puts impl behind the upgrade proxy; the first upgrade takes
// effect immediately.
func (s *Stack) installL1Bridge(impl *l1bridge.TokenBridge) error {
	cfg, addr := s.Config, s.Config.Addresses
	gov, err := proxy.NewGovernance(cfg.Governor, s.Log, addr.L1Bridge)
	if err != nil {
		return fmt.Errorf("failed to create proxy governance: %w", err)
	}
	s.Proxy = proxy.New[*l1bridge.TokenBridge](addr.L1Bridge, gov, s.Clock, cfg.UpgradeDelay, s.Log)
	s.Proxy.Deploy(addr.L1BridgeImpl, impl)

	implSpec := proxy.Spec{Implementation: addr.L1BridgeImpl}
	if err := s.Proxy.AddImplementation(cfg.Governor, implSpec); err != nil {
		return fmt.Errorf("failed to add l1 bridge implementation: %w", err)
	}
	if err := s.Proxy.UpgradeTo(cfg.Governor, implSpec); err != nil {
		return fmt.Errorf("failed to upgrade proxy: %w", err)
	}
	cur, err := s.Proxy.Current()
	if err != nil {
		return err
	}
	s.L1 = cur
	return nil
}

func (s *Stack) deployL2Bridge() error {
	cfg, addr := s.Config, s.Config.Addresses
	legacy := cfg.Mode == l1bridge.Legacy
	l2, err := l2bridge.New(l2bridge.Config{Address: addr.L2Bridge, Governor: cfg.L2Governor, Legacy: legacy}, s.Outbox, s.Log)
	if err != nil {
		return fmt.Errorf("failed to create l2 bridge: %w", err)
	}
	if err := l2.SetL1Bridge(cfg.L2Governor, addr.L1Bridge); err != nil {
		return fmt.Errorf("failed to set l1 bridge: %w", err)
	}
	if legacy {
		l1Token, meta := addr.Token, cfg.Token
		if cfg.Asset == AssetEther {
			l1Token = l1bridge.L1TokenAddressOfETH
			meta = token.Metadata{Name: "Ether", Symbol: "ETH", Decimals: 18}
		}
		if err := l2.SetL2Token(cfg.L2Governor, l1Token, token.NewL2Token(addr.L2Token, addr.L2Bridge, meta)); err != nil {
			return fmt.Errorf("failed to set l2 token: %w", err)
		}
	}
	s.L2 = l2
	return nil
}

func (s *Stack) newRelay(rc RelayConfig) error {
	toL2, toL1 := rc.ToL2, rc.ToL1
	if toL2 == nil {
		toL2 = relay.NewMemoryTransport(256)
	}
	if toL1 == nil {
		toL1 = relay.NewMemoryTransport(256)
	}
	r, err := relay.New(rc.Config, s.Core, s.Outbox, s.L2, toL2, toL1, s.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}
	s.Relay = r
	return nil
}

// L1Asset is the L1 address of the asset a legacy stack bridges.
func (s *Stack) L1Asset() common.Address {
	if s.Config.Mode == l1bridge.Legacy && s.Config.Asset == AssetEther {
		return l1bridge.L1TokenAddressOfETH
	}
	return s.Token.Address()
}

// L2Token returns the L2 token wrapping l1Token, once deployed.
func (s *Stack) L2Token(l1Token common.Address) (*token.L2Token, error) {
	return s.L2.Token(l1Token)
}

// Fund gives account amount of ether and of the stack token, approving the
// bridge for the token.
func (s *Stack) Fund(account common.Address, amount *uint256.Int) error {
	s.Ether.SetBalance(account, new(uint256.Int).Add(s.Ether.BalanceOf(account), amount))
	s.Token.SetBalance(account, new(uint256.Int).Add(s.Token.BalanceOf(account), amount))
	if err := s.Token.Approve(account, s.L1.Address(), s.Token.BalanceOf(account)); err != nil {
		return fmt.Errorf("failed to approve bridge: %w", err)
	}
	return nil
}

// Flush moves every queued message to the other chain. Undeliverable messages
// are dropped and reported in the returned error.
func (s *Stack) Flush() error {
	if s.Relay != nil {
		return s.Relay.Flush()
	}
	var errs []error
	for _, f := range s.postman.Flush() {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (s *Stack) Close() error {
	if s.Relay != nil {
		return s.Relay.Close()
	}
	return nil
}

func modeName(m l1bridge.Mode) string {
	if m == l1bridge.MultiToken {
		return "multi_token"
	}
	return "legacy"
}
