package l1bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compose-network/token-bridge/internal/access"
	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/limiter"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/metrics"
	"github.com/compose-network/token-bridge/internal/registry"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultEnrollmentWindow is how long a token may stay PENDING before it is removed.
const DefaultEnrollmentWindow = 5 * chain.SecondsPerDay

var (
	ErrNotActiveYet         = errors.New("NOT_ACTIVE_YET")
	ErrL2AddressOutOfRange  = errors.New("L2_ADDRESS_OUT_OF_RANGE")
	ErrAlreadySet           = errors.New("ALREADY_SET")
	ErrZeroDeposit          = errors.New("ZERO_DEPOSIT")
	ErrTokenNotServiced     = errors.New("TOKEN_NOT_SERVICED")
	ErrMaxBalanceExceeded   = errors.New("MAX_BALANCE_EXCEEDED")
	ErrMaxDepositExceeded   = errors.New("TRANSFER_TO_STARKNET_AMOUNT_EXCEEDED")
	ErrOnlyDepositor        = errors.New("ONLY_DEPOSITOR")
	ErrNoDepositToCancel    = errors.New("NO_DEPOSIT_TO_CANCEL")
	ErrInvalidRecipient     = errors.New("INVALID_RECIPIENT")
	ErrNotInLegacyMode      = errors.New("NOT_SUPPORTED_IN_LEGACY_MODE")
	ErrOnlyMultiTokenBridge = errors.New("ONLY_IN_MULTI_TOKEN_MODE")
)

// Bridge is the L1 side of the protocol, whatever asset it holds.
type Bridge interface {
	Address() common.Address
	Deposit(sender, token common.Address, amount, l2Recipient, fee *uint256.Int) (Receipt, error)
	DepositWithMessage(sender, token common.Address, amount, l2Recipient *uint256.Int, message []*uint256.Int, fee *uint256.Int) (Receipt, error)
	DepositCancelRequest(sender, token common.Address, amount, l2Recipient *uint256.Int, nonce uint64) error
	DepositWithMessageCancelRequest(sender, token common.Address, amount, l2Recipient *uint256.Int, message []*uint256.Int, nonce uint64) error
	DepositReclaim(sender, token common.Address, amount, l2Recipient *uint256.Int, nonce uint64) error
	DepositWithMessageReclaim(sender, token common.Address, amount, l2Recipient *uint256.Int, message []*uint256.Int, nonce uint64) error
	Withdraw(caller, token common.Address, amount *uint256.Int, recipient common.Address) error
	BridgeBalance(token common.Address) *uint256.Int
}

// Receipt identifies a deposit message.
type Receipt struct {
	Nonce   uint64
	MsgHash common.Hash
}

type Mode uint8

const (
	// MultiToken bridges service any enrolled token and use token-aware payloads.
	MultiToken Mode = iota
	// Legacy bridges service one token and use the payloads without a token word.
	Legacy
)

type Config struct {
	Address common.Address
	Mode    Mode
	// LegacyToken is the token a Legacy bridge services. On a MultiToken bridge
	// withdrawals of this token also accept the legacy payload shape.
	LegacyToken common.Address
	// Manager may enroll tokens on a MultiToken bridge.
	Manager common.Address
	// DefaultMaxTotalBalance applies to newly enrolled tokens. Nil means unlimited.
	DefaultMaxTotalBalance *uint256.Int
	EnrollmentWindow       uint64
}

type tokenSettings struct {
	status            registry.Status
	deploymentMsgHash common.Hash
	expiration        uint64
	maxTotalBalance   *uint256.Int
	maxDeposit        *uint256.Int
}

// Deps are the collaborators of a bridge. Registry, Limiter and Metrics are optional.
type Deps struct {
	Channel  messaging.L1Channel
	Custody  Custody
	Ether    *token.Ether
	Roles    *access.Roles
	Clock    chain.Clock
	Registry *registry.Registry
	Limiter  *limiter.Limiter
	Log      *events.Log
	Metrics  *metrics.Metrics
}

// TokenBridge implements Bridge for every asset kind; the Custody decides
// which asset moves.
type TokenBridge struct {
	mu     sync.Mutex
	cfg    Config
	deps   Deps
	logger *slog.Logger

	l2Bridge   *uint256.Int
	settings   map[common.Address]*tokenSettings
	depositors map[uint64]common.Address
}

var _ Bridge = (*TokenBridge)(nil)

func New(cfg Config, deps Deps) (*TokenBridge, error) {
	if deps.Channel == nil || deps.Custody == nil || deps.Ether == nil || deps.Roles == nil || deps.Clock == nil {
		return nil, errors.New("bridge needs a channel, custody, ether ledger, roles and clock")
	}
	if cfg.Mode == MultiToken && deps.Registry == nil {
		return nil, errors.New("multi-token bridge needs a registry")
	}
	if cfg.Mode == Legacy && cfg.LegacyToken == (common.Address{}) {
		return nil, errors.New("legacy bridge needs its token")
	}
	if cfg.EnrollmentWindow == 0 {
		cfg.EnrollmentWindow = DefaultEnrollmentWindow
	}

	b := &TokenBridge{
		cfg:        cfg,
		deps:       deps,
		logger:     logger.Named("l1_bridge").With("bridge", cfg.Address.Hex()),
		settings:   make(map[common.Address]*tokenSettings),
		depositors: make(map[uint64]common.Address),
	}
	if cfg.Mode == Legacy {
		b.settings[cfg.LegacyToken] = &tokenSettings{status: registry.Active, maxTotalBalance: cloneOrNil(cfg.DefaultMaxTotalBalance)}
	}
	return b, nil
}

// NewERC20Bridge builds a legacy bridge over a single ERC20 token.
func NewERC20Bridge(cfg Config, tok *token.ERC20, deps Deps) (*TokenBridge, error) {
	cfg.Mode = Legacy
	cfg.LegacyToken = tok.Address()
	deps.Custody = NewERC20Custody(cfg.Address, tok)
	return New(cfg, deps)
}

// NewEthBridge builds a legacy bridge over the native asset.
func NewEthBridge(cfg Config, deps Deps) (*TokenBridge, error) {
	cfg.Mode = Legacy
	cfg.LegacyToken = L1TokenAddressOfETH
	deps.Custody = NewNativeCustody(cfg.Address, deps.Ether)
	return New(cfg, deps)
}

// NewMultiBridge builds a multi-token bridge on the given custody.
func NewMultiBridge(cfg Config, custody *MultiCustody, deps Deps) (*TokenBridge, error) {
	cfg.Mode = MultiToken
	deps.Custody = custody
	return New(cfg, deps)
}

func cloneOrNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	return new(uint256.Int).Set(v)
}

func (b *TokenBridge) Address() common.Address { return b.cfg.Address }
func (b *TokenBridge) Mode() Mode               { return b.cfg.Mode }

func (b *TokenBridge) emit(ev events.Event) {
	if b.deps.Log != nil {
		b.deps.Log.Emit(b.cfg.Address.Hex(), ev)
	}
}

// tokenRef is the token field of events and payloads; legacy bridges omit it.
func (b *TokenBridge) tokenRef(t common.Address) *common.Address {
	if b.cfg.Mode == Legacy {
		return nil
	}
	return &t
}

func (b *TokenBridge) L2TokenBridge() *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneOrNil(b.l2Bridge)
}

// DepositNonce is the nonce the next deposit message will carry.
func (b *TokenBridge) DepositNonce() uint64 {
	return b.deps.Channel.NextNonce()
}

// Depositor returns who made the deposit with nonce.
func (b *TokenBridge) Depositor(nonce uint64) (common.Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.depositors[nonce]
	return d, ok
}

func (b *TokenBridge) BridgeBalance(t common.Address) *uint256.Int {
	return b.deps.Custody.Balance(t)
}

// SetL2TokenBridge sets the L2 counterpart once.
func (b *TokenBridge) SetL2TokenBridge(caller common.Address, l2 *uint256.Int) error {
	if err := b.deps.Roles.Require(access.GovernanceAdmin, caller); err != nil {
		return err
	}
	if !felt.IsValidL2Address(l2) {
		return ErrL2AddressOutOfRange
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.l2Bridge != nil {
		return ErrAlreadySet
	}
	b.l2Bridge = new(uint256.Int).Set(l2)
	b.emit(events.SetL2TokenBridge{Legacy: b.cfg.Mode == Legacy, Value: new(uint256.Int).Set(l2)})
	b.logger.With("l2_bridge", l2.Hex()).Info("l2 token bridge set")
	return nil
}

func (b *TokenBridge) adminRole() access.Role {
	if b.cfg.Mode == Legacy {
		return access.GovernanceAdmin
	}
	return access.AppGovernor
}

// SetMaxTotalBalance caps how much of token the bridge may hold. Nil removes the cap.
func (b *TokenBridge) SetMaxTotalBalance(caller, t common.Address, value *uint256.Int) error {
	if err := b.deps.Roles.Require(b.adminRole(), caller); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.settings[t]
	if !ok {
		return ErrTokenNotServiced
	}
	s.maxTotalBalance = cloneOrNil(value)
	b.emit(events.SetMaxTotalBalance{Token: b.tokenRef(t), Value: orMax(value)})
	b.logger.With("token", t.Hex()).With("value", orMax(value).Dec()).Info("max total balance set")
	return nil
}

// SetMaxDeposit caps a single deposit. Legacy bridges only.
func (b *TokenBridge) SetMaxDeposit(caller common.Address, value *uint256.Int) error {
	if b.cfg.Mode != Legacy {
		return ErrNotInLegacyMode
	}
	if err := b.deps.Roles.Require(access.GovernanceAdmin, caller); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings[b.cfg.LegacyToken].maxDeposit = cloneOrNil(value)
	b.emit(events.SetMaxDeposit{Value: orMax(value)})
	return nil
}

func (b *TokenBridge) MaxTotalBalance(t common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.settings[t]; ok && s.maxTotalBalance != nil {
		return new(uint256.Int).Set(s.maxTotalBalance)
	}
	return new(uint256.Int).Set(limiter.Unlimited)
}

func orMax(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int).Set(limiter.Unlimited)
	}
	return new(uint256.Int).Set(v)
}

// EnrollToken starts enrollment of t: it sends the deployment message to L2
// and marks the token PENDING until the message is consumed.
func (b *TokenBridge) EnrollToken(caller, payer, t common.Address, fee *uint256.Int) (common.Hash, error) {
	if b.cfg.Mode != MultiToken {
		return common.Hash{}, ErrOnlyMultiTokenBridge
	}
	if caller != b.cfg.Manager {
		return common.Hash{}, access.ErrOnlyManager
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.l2Bridge == nil {
		return common.Hash{}, ErrNotActiveYet
	}
	if s, ok := b.settings[t]; ok && s.status != registry.Unknown {
		return common.Hash{}, registry.ErrTokenAlreadyEnrolled
	}
	meta, err := b.deps.Custody.Metadata(t)
	if err != nil {
		return common.Hash{}, err
	}
	payload, err := messaging.DeploymentPayload{Token: t, Metadata: meta}.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	if err := b.checkFee(fee); err != nil {
		return common.Hash{}, err
	}

	if err := b.deps.Ether.Transfer(payer, b.cfg.Address, fee); err != nil {
		return common.Hash{}, fmt.Errorf("failed to collect enrollment fee: %w", err)
	}
	hash, _, err := b.deps.Channel.SendMessageToL2(b.cfg.Address, b.l2Bridge, messaging.SelectorHandleTokenDeployment, payload, fee)
	if err != nil {
		b.refundEther(payer, fee)
		return common.Hash{}, fmt.Errorf("failed to send deployment message: %w", err)
	}

	b.settings[t] = &tokenSettings{
		status:            registry.Pending,
		deploymentMsgHash: hash,
		expiration:        b.deps.Clock.Now() + b.cfg.EnrollmentWindow,
		maxTotalBalance:   cloneOrNil(b.cfg.DefaultMaxTotalBalance),
	}
	b.emit(events.TokenEnrollmentInitiated{Token: t, DeploymentMsgHash: hash})
	b.logger.With("token", t.Hex()).With("deployment_msg", hash.Hex()).Info("token enrollment initiated")
	return hash, nil
}

// CheckDeploymentStatus promotes a PENDING token whose deployment message was
// consumed and removes one whose enrollment window passed.
func (b *TokenBridge) CheckDeploymentStatus(t common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkDeploymentStatus(t)
}

// deploymentOutcome reports what checkDeploymentStatus would do to t without
// doing it.
func (b *TokenBridge) deploymentOutcome(t common.Address) (activate, expire bool) {
	s, ok := b.settings[t]
	if !ok || s.status != registry.Pending {
		return false, false
	}
	if b.deps.Channel.L1ToL2Messages(s.deploymentMsgHash).IsZero() {
		return true, false
	}
	return false, b.deps.Clock.Now() > s.expiration
}

func (b *TokenBridge) checkDeploymentStatus(t common.Address) {
	activate, expire := b.deploymentOutcome(t)
	if activate {
		b.settings[t].status = registry.Active
		b.emit(events.TokenActivated{Token: t})
		b.logger.With("token", t.Hex()).Info("token activated")
		return
	}
	if !expire {
		return
	}

	delete(b.settings, t)
	if b.deps.Registry != nil && b.deps.Registry.GetBridge(t) == b.cfg.Address {
		if err := b.deps.Registry.SelfRemove(lockedView{b}, t); err != nil {
			b.logger.With("token", t.Hex()).With("err", err).Error("failed to remove token from registry")
		}
	}
	b.logger.With("token", t.Hex()).Warn("token enrollment expired")
}

// lockedView answers registry callbacks while b.mu is held.
type lockedView struct{ b *TokenBridge }

func (v lockedView) Address() common.Address { return v.b.cfg.Address }

func (v lockedView) IsServicingToken(t common.Address) bool {
	s, ok := v.b.settings[t]
	return ok && s.status.Servicing()
}

// GetStatus reports the lifecycle state of t on this bridge.
func (b *TokenBridge) GetStatus(t common.Address) registry.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status(t)
}

func (b *TokenBridge) status(t common.Address) registry.Status {
	s, ok := b.settings[t]
	if b.cfg.Mode == Legacy {
		if !ok {
			return registry.Unknown
		}
		if b.l2Bridge == nil {
			return registry.Pending
		}
		return s.status
	}
	if !ok || s.status == registry.Unknown {
		if b.deps.Registry.Status(t) == registry.Blocked {
			return registry.Blocked
		}
		return registry.Unknown
	}
	if b.deps.Registry.GetBridge(t) != b.cfg.Address {
		return registry.Deactivated
	}
	return s.status
}

func (b *TokenBridge) IsServicingToken(t common.Address) bool {
	return b.GetStatus(t).Servicing()
}

func (b *TokenBridge) checkFee(fee *uint256.Int) error {
	if fee == nil || fee.IsZero() {
		return messaging.ErrFeeMustBePositive
	}
	if fee.Gt(b.deps.Channel.MaxFee()) {
		return messaging.ErrMaxFeeExceeded
	}
	return nil
}

func (b *TokenBridge) refundEther(to common.Address, amount *uint256.Int) {
	if err := b.deps.Ether.Transfer(b.cfg.Address, to, amount); err != nil {
		b.logger.With("to", to.Hex()).With("amount", amount.Dec()).With("err", err).Error("failed to refund ether")
	}
}

func (b *TokenBridge) refundToken(t, to common.Address, amount *uint256.Int) {
	if err := b.deps.Custody.Push(t, to, amount); err != nil {
		b.logger.With("token", t.Hex()).With("to", to.Hex()).With("amount", amount.Dec()).With("err", err).Error("failed to refund token")
	}
}
