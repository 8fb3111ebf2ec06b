package l1bridge

import (
	"testing"

	"github.com/compose-network/token-bridge/internal/access"
	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/limiter"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/registry"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	governor   = common.HexToAddress("0x90")
	tokenAdmin = common.HexToAddress("0x7a")
	agent      = common.HexToAddress("0x5a")
	alice      = common.HexToAddress("0xa11ce")
	bob        = common.HexToAddress("0xb0b")
	coreAt     = common.HexToAddress("0xc0de")
	bridgeAt   = common.HexToAddress("0xb1")
	managerAt  = common.HexToAddress("0x3a")
	registryAt = common.HexToAddress("0x3b")
	tokenAt    = common.HexToAddress("0x70")
	otherAt    = common.HexToAddress("0x71")

	l2BridgeAddr = uint256.NewInt(0xb2)
	recipient    = uint256.NewInt(341)
	fee          = uint256.NewInt(1)
)

const cancelDelay = 1000

type fixture struct {
	clock    *chain.ManualClock
	ether    *token.Ether
	erc20    *token.ERC20
	other    *token.ERC20
	log      *events.Log
	core     *messaging.Core
	roles    *access.Roles
	registry *registry.Registry
	manager  *registry.Manager
	limiter  *limiter.Limiter
	bridge   *TokenBridge
}

func baseFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: chain.NewManualClock(100 * chain.SecondsPerDay),
		ether: token.NewEther(),
		erc20: token.NewERC20(tokenAt, token.Metadata{Name: "Token", Symbol: "TKN", Decimals: 18}),
		other: token.NewERC20(otherAt, token.Metadata{Name: "Other", Symbol: "OTH", Decimals: 6}),
		log:   events.NewLog(),
		roles: access.NewRoles(governor),
	}
	require.NoError(t, f.roles.Grant(governor, access.AppGovernor, governor))
	require.NoError(t, f.roles.Grant(governor, access.TokenAdmin, tokenAdmin))
	require.NoError(t, f.roles.Grant(governor, access.SecurityAgent, agent))

	f.core = messaging.NewCore(messaging.CoreConfig{Address: coreAt, CancellationDelay: cancelDelay}, f.clock, f.ether, f.log)
	lim, err := limiter.New(5, f.clock, f.roles, f.log, bridgeAt)
	require.NoError(t, err)
	f.limiter = lim

	for _, a := range []common.Address{alice, bob, governor} {
		f.ether.SetBalance(a, uint256.NewInt(1000))
		f.erc20.SetBalance(a, uint256.NewInt(1000))
		f.other.SetBalance(a, uint256.NewInt(1000))
		require.NoError(t, f.erc20.Approve(a, bridgeAt, uint256.NewInt(1000)))
		require.NoError(t, f.other.Approve(a, bridgeAt, uint256.NewInt(1000)))
	}
	return f
}

func (f *fixture) deps() Deps {
	return Deps{Channel: f.core, Ether: f.ether, Roles: f.roles, Clock: f.clock,
		Registry: f.registry, Limiter: f.limiter, Log: f.log}
}

func newLegacyFixture(t *testing.T) *fixture {
	t.Helper()
	f := baseFixture(t)
	b, err := NewERC20Bridge(Config{Address: bridgeAt}, f.erc20, f.deps())
	require.NoError(t, err)
	require.NoError(t, b.SetL2TokenBridge(governor, l2BridgeAddr))
	f.bridge = b
	return f
}

func newMultiFixture(t *testing.T) *fixture {
	t.Helper()
	f := baseFixture(t)
	f.registry = registry.NewRegistry(registryAt, managerAt, f.log)

	custody := NewMultiCustody(bridgeAt, f.ether)
	custody.Register(f.erc20)
	custody.Register(f.other)
	b, err := NewMultiBridge(Config{Address: bridgeAt, Manager: managerAt, LegacyToken: tokenAt}, custody, f.deps())
	require.NoError(t, err)
	require.NoError(t, b.SetL2TokenBridge(governor, l2BridgeAddr))
	f.bridge = b
	f.manager = registry.NewManager(managerAt, f.registry, b, f.roles, f.log)
	return f
}

// activate enrolls tok and delivers its deployment message.
func (f *fixture) activate(t *testing.T, tok common.Address) {
	t.Helper()
	_, err := f.manager.EnrollTokenBridge(governor, tok, fee)
	require.NoError(t, err)
	f.deliverAll(t)
	f.bridge.CheckDeploymentStatus(tok)
	require.Equal(t, registry.Active, f.bridge.GetStatus(tok))
}

func (f *fixture) deliverAll(t *testing.T) {
	t.Helper()
	for _, m := range f.core.TakePending() {
		require.NoError(t, f.core.ConsumeMessageToL2(m))
	}
}

// sendWithdrawal registers an L2 -> L1 withdrawal message on the core.
func (f *fixture) sendWithdrawal(tok *common.Address, to common.Address, amount uint64) {
	p := messaging.WithdrawalPayload{Recipient: to, Token: tok, Amount: uint256.NewInt(amount)}
	f.core.SendMessageFromL2(messaging.MessageToL1{FromAddress: l2BridgeAddr, ToAddress: bridgeAt, Payload: p.Encode()})
}

func TestSetL2TokenBridge(t *testing.T) {
	f := baseFixture(t)
	b, err := NewERC20Bridge(Config{Address: bridgeAt}, f.erc20, f.deps())
	require.NoError(t, err)

	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(1), recipient, fee)
	require.ErrorIs(t, err, ErrNotActiveYet)

	require.ErrorIs(t, b.SetL2TokenBridge(alice, l2BridgeAddr), access.ErrOnlyGovernance)
	require.ErrorIs(t, b.SetL2TokenBridge(governor, new(uint256.Int)), ErrL2AddressOutOfRange)
	require.NoError(t, b.SetL2TokenBridge(governor, l2BridgeAddr))
	require.ErrorIs(t, b.SetL2TokenBridge(governor, l2BridgeAddr), ErrAlreadySet)

	ev, ok := f.log.Last("LogSetL2TokenBridge")
	require.True(t, ok)
	require.True(t, ev.(events.SetL2TokenBridge).Value.Eq(l2BridgeAddr))
}

func TestDepositValidation(t *testing.T) {
	f := newLegacyFixture(t)
	b := f.bridge

	_, err := b.Deposit(alice, otherAt, uint256.NewInt(1), recipient, fee)
	require.ErrorIs(t, err, ErrTokenNotServiced)
	_, err = b.Deposit(alice, tokenAt, new(uint256.Int), recipient, fee)
	require.ErrorIs(t, err, ErrZeroDeposit)
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(1), new(uint256.Int), fee)
	require.ErrorIs(t, err, ErrL2AddressOutOfRange)
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(1), recipient, new(uint256.Int))
	require.ErrorIs(t, err, messaging.ErrFeeMustBePositive)
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(1), recipient, new(uint256.Int).AddUint64(messaging.DefaultMaxFee, 1))
	require.ErrorIs(t, err, messaging.ErrMaxFeeExceeded)

	require.NoError(t, b.SetMaxDeposit(governor, uint256.NewInt(10)))
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(11), recipient, fee)
	require.ErrorIs(t, err, ErrMaxDepositExceeded)
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.NoError(t, err)

	require.NoError(t, b.SetMaxTotalBalance(governor, tokenAt, uint256.NewInt(15)))
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(6), recipient, fee)
	require.ErrorIs(t, err, ErrMaxBalanceExceeded)
	_, err = b.Deposit(alice, tokenAt, uint256.NewInt(5), recipient, fee)
	require.NoError(t, err)

	require.Equal(t, uint64(15), b.BridgeBalance(tokenAt).Uint64())
	require.Equal(t, uint64(985), f.erc20.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(998), f.ether.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(2), f.core.NextNonce())
}

func TestDepositFailureLeavesNoTrace(t *testing.T) {
	f := newLegacyFixture(t)
	f.ether.SetBalance(alice, new(uint256.Int))

	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	require.Equal(t, uint64(1000), f.erc20.BalanceOf(alice).Uint64())
	require.True(t, f.bridge.BridgeBalance(tokenAt).IsZero())
	require.Zero(t, f.core.NextNonce())
	require.Empty(t, f.log.ByName("LogDeposit"))
}

func TestLegacyDepositEvent(t *testing.T) {
	f := newLegacyFixture(t)

	receipt, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.NoError(t, err)

	ev, ok := f.log.Last("LogDeposit")
	require.True(t, ok)
	dep := ev.(events.Deposit)
	require.Nil(t, dep.Token)
	require.Equal(t, alice, dep.Sender)
	require.Equal(t, receipt.Nonce, dep.Nonce)
	require.Equal(t, uint64(10), dep.Amount.Uint64())

	pending := f.core.Pending()
	require.Len(t, pending, 1)
	require.True(t, pending[0].Selector.Eq(messaging.SelectorHandleDeposit))
	require.Len(t, pending[0].Payload, 3)
	require.Equal(t, receipt.MsgHash, pending[0].Hash())
}

func TestCancelAndReclaim(t *testing.T) {
	f := newLegacyFixture(t)
	b := f.bridge
	amount := uint256.NewInt(6)

	receipt, err := b.Deposit(alice, tokenAt, amount, recipient, fee)
	require.NoError(t, err)
	n := receipt.Nonce

	require.ErrorIs(t, b.DepositCancelRequest(bob, tokenAt, amount, recipient, n), ErrOnlyDepositor)
	require.ErrorIs(t, b.DepositCancelRequest(alice, tokenAt, amount, recipient, n+1), ErrNoDepositToCancel)
	require.ErrorIs(t, b.DepositCancelRequest(alice, tokenAt, uint256.NewInt(7), recipient, n), ErrNoDepositToCancel)

	err = b.DepositReclaim(alice, tokenAt, amount, recipient, n)
	require.ErrorIs(t, err, messaging.ErrNoMessageToCancel)

	require.NoError(t, b.DepositCancelRequest(alice, tokenAt, amount, recipient, n))
	require.ErrorIs(t, b.DepositReclaim(alice, tokenAt, amount, recipient, n), messaging.ErrCancellationNotAllowedYet)

	f.clock.Advance(cancelDelay + 1)
	require.ErrorIs(t, b.DepositReclaim(bob, tokenAt, amount, recipient, n), ErrOnlyDepositor)
	require.NoError(t, b.DepositReclaim(alice, tokenAt, amount, recipient, n))

	require.Equal(t, uint64(1000), f.erc20.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(1000), f.ether.BalanceOf(alice).Uint64())
	require.True(t, b.BridgeBalance(tokenAt).IsZero())

	require.ErrorIs(t, b.DepositReclaim(alice, tokenAt, amount, recipient, n), messaging.ErrNoMessageToCancel)
	require.Len(t, f.log.ByName("LogDepositCancelRequest"), 1)
	require.Len(t, f.log.ByName("LogDepositReclaimed"), 1)
}

func TestCancelAfterConsumption(t *testing.T) {
	f := newLegacyFixture(t)
	amount := uint256.NewInt(6)
	receipt, err := f.bridge.Deposit(alice, tokenAt, amount, recipient, fee)
	require.NoError(t, err)
	require.NoError(t, f.bridge.DepositCancelRequest(alice, tokenAt, amount, recipient, receipt.Nonce))

	// The message is consumed on L2 before the timelock ends.
	f.deliverAll(t)
	f.clock.Advance(cancelDelay + 1)
	require.ErrorIs(t, f.bridge.DepositReclaim(alice, tokenAt, amount, recipient, receipt.Nonce), messaging.ErrNoMessageToCancel)
	require.Equal(t, uint64(6), f.bridge.BridgeBalance(tokenAt).Uint64())
}

func TestDepositWithMessageCancel(t *testing.T) {
	f := newLegacyFixture(t)
	amount := uint256.NewInt(4)
	msg := []*uint256.Int{uint256.NewInt(7), uint256.NewInt(9)}

	receipt, err := f.bridge.DepositWithMessage(alice, tokenAt, amount, recipient, msg, fee)
	require.NoError(t, err)
	require.True(t, f.core.Pending()[0].Selector.Eq(messaging.SelectorHandleDepositWithMessage))

	// The plain cancel does not match a deposit with message.
	require.ErrorIs(t, f.bridge.DepositCancelRequest(alice, tokenAt, amount, recipient, receipt.Nonce), ErrNoDepositToCancel)
	require.NoError(t, f.bridge.DepositWithMessageCancelRequest(alice, tokenAt, amount, recipient, msg, receipt.Nonce))
	f.clock.Advance(cancelDelay)
	require.NoError(t, f.bridge.DepositWithMessageReclaim(alice, tokenAt, amount, recipient, msg, receipt.Nonce))
	require.Len(t, f.log.ByName("LogDepositWithMessageReclaimed"), 1)
}

func TestWithdraw(t *testing.T) {
	f := newLegacyFixture(t)
	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.NoError(t, err)

	require.ErrorIs(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(10), bob), messaging.ErrInvalidMessageToConsume)

	f.sendWithdrawal(nil, bob, 10)
	// Anyone may submit the withdrawal, funds go to the recipient of the message.
	require.NoError(t, f.bridge.Withdraw(alice, tokenAt, uint256.NewInt(10), bob))
	require.Equal(t, uint64(1010), f.erc20.BalanceOf(bob).Uint64())
	require.True(t, f.bridge.BridgeBalance(tokenAt).IsZero())

	require.ErrorIs(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(10), bob), messaging.ErrInvalidMessageToConsume)
	ev, ok := f.log.Last("LogWithdrawal")
	require.True(t, ok)
	require.Equal(t, bob, ev.(events.Withdrawal).Recipient)
}

func TestWithdrawUnderflow(t *testing.T) {
	f := newLegacyFixture(t)
	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(5), recipient, fee)
	require.NoError(t, err)

	f.sendWithdrawal(nil, bob, 6)
	require.ErrorIs(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(6), bob), token.ErrInsufficientBalance)
	// The message stays consumable.
	require.Equal(t, uint64(1), f.core.L2ToL1Messages(messaging.MessageToL1{FromAddress: l2BridgeAddr, ToAddress: bridgeAt,
		Payload: messaging.WithdrawalPayload{Recipient: bob, Amount: uint256.NewInt(6)}.Encode()}.Hash()))
}

func TestWithdrawalLimit(t *testing.T) {
	f := newLegacyFixture(t)
	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(1000), recipient, fee)
	require.NoError(t, err)
	require.NoError(t, f.limiter.Enable(agent, tokenAt))

	f.sendWithdrawal(nil, bob, 51)
	require.ErrorIs(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(51), bob), limiter.ErrExceedsWithdrawLimit)

	f.sendWithdrawal(nil, bob, 50)
	require.NoError(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(50), bob))

	// The next day's allowance is 5% of 950.
	f.clock.Advance(chain.SecondsPerDay)
	require.ErrorIs(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(51), bob), limiter.ErrExceedsWithdrawLimit)
	f.sendWithdrawal(nil, bob, 47)
	require.NoError(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(47), bob))
	require.Equal(t, uint64(903), f.bridge.BridgeBalance(tokenAt).Uint64())
}

func TestEthBridge(t *testing.T) {
	f := baseFixture(t)
	b, err := NewEthBridge(Config{Address: bridgeAt}, f.deps())
	require.NoError(t, err)
	require.NoError(t, b.SetL2TokenBridge(governor, l2BridgeAddr))

	_, err = b.Deposit(alice, L1TokenAddressOfETH, uint256.NewInt(100), recipient, fee)
	require.NoError(t, err)
	require.Equal(t, uint64(899), f.ether.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(100), b.BridgeBalance(L1TokenAddressOfETH).Uint64())

	f.sendWithdrawal(nil, bob, 40)
	require.NoError(t, b.Withdraw(bob, L1TokenAddressOfETH, uint256.NewInt(40), common.Address{}))
	require.Equal(t, uint64(1040), f.ether.BalanceOf(bob).Uint64())
}

func TestEnrollmentActivation(t *testing.T) {
	f := newMultiFixture(t)

	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(1), recipient, fee)
	require.ErrorIs(t, err, ErrTokenNotServiced)

	hash, err := f.manager.EnrollTokenBridge(governor, tokenAt, fee)
	require.NoError(t, err)
	require.Equal(t, registry.Pending, f.bridge.GetStatus(tokenAt))
	require.Equal(t, bridgeAt, f.registry.GetBridge(tokenAt))

	pending := f.core.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, hash, pending[0].Hash())
	require.True(t, pending[0].Selector.Eq(messaging.SelectorHandleTokenDeployment))

	// Deposits are accepted while PENDING.
	_, err = f.bridge.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.NoError(t, err)

	f.deliverAll(t)
	_, err = f.bridge.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.NoError(t, err)
	require.Equal(t, registry.Active, f.bridge.GetStatus(tokenAt))
	require.Len(t, f.log.ByName("TokenActivated"), 1)

	ev, ok := f.log.Last("Deposit")
	require.True(t, ok)
	require.Equal(t, tokenAt, *ev.(events.Deposit).Token)

	_, err = f.manager.EnrollTokenBridge(governor, tokenAt, fee)
	require.Error(t, err)
}

func TestEnrollmentExpiry(t *testing.T) {
	f := newMultiFixture(t)
	_, err := f.manager.EnrollTokenBridge(governor, tokenAt, fee)
	require.NoError(t, err)

	f.clock.Advance(DefaultEnrollmentWindow - 1)
	f.bridge.CheckDeploymentStatus(tokenAt)
	require.Equal(t, registry.Pending, f.bridge.GetStatus(tokenAt))

	// A refused deposit leaves the expired enrollment untouched.
	f.clock.Advance(2)
	_, err = f.bridge.Deposit(alice, tokenAt, uint256.NewInt(10), recipient, fee)
	require.ErrorIs(t, err, ErrTokenNotServiced)
	require.Equal(t, registry.Pending, f.bridge.GetStatus(tokenAt))
	require.Equal(t, bridgeAt, f.registry.GetBridge(tokenAt))
	require.Empty(t, f.log.ByName("TokenSelfRemoved"))
	require.Equal(t, uint64(1000), f.erc20.BalanceOf(alice).Uint64())

	f.bridge.CheckDeploymentStatus(tokenAt)
	require.Equal(t, registry.Unknown, f.bridge.GetStatus(tokenAt))
	require.Equal(t, common.Address{}, f.registry.GetBridge(tokenAt))
	require.Len(t, f.log.ByName("TokenSelfRemoved"), 1)

	// A removed token can be enrolled again.
	_, err = f.manager.EnrollTokenBridge(governor, tokenAt, fee)
	require.NoError(t, err)
	require.Equal(t, registry.Pending, f.bridge.GetStatus(tokenAt))
}

func TestExpiredEnrollmentWithdrawals(t *testing.T) {
	f := newMultiFixture(t)
	_, err := f.manager.EnrollTokenBridge(governor, tokenAt, fee)
	require.NoError(t, err)
	_, err = f.bridge.Deposit(alice, tokenAt, uint256.NewInt(100), recipient, fee)
	require.NoError(t, err)
	f.clock.Advance(DefaultEnrollmentWindow + 1)

	// Without a message the withdrawal fails and the enrollment stays.
	require.ErrorIs(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(10), bob), messaging.ErrInvalidMessageToConsume)
	require.Equal(t, registry.Pending, f.bridge.GetStatus(tokenAt))
	require.Equal(t, bridgeAt, f.registry.GetBridge(tokenAt))
	require.Empty(t, f.log.ByName("TokenSelfRemoved"))

	// A withdrawal that goes through also retires the expired enrollment.
	tok := tokenAt
	f.sendWithdrawal(&tok, bob, 10)
	require.NoError(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(10), bob))
	require.Equal(t, uint64(1010), f.erc20.BalanceOf(bob).Uint64())
	require.Equal(t, registry.Unknown, f.bridge.GetStatus(tokenAt))
	require.Equal(t, common.Address{}, f.registry.GetBridge(tokenAt))
	require.Len(t, f.log.ByName("TokenSelfRemoved"), 1)
}

func TestEnrollTokenOnlyManager(t *testing.T) {
	f := newMultiFixture(t)
	_, err := f.bridge.EnrollToken(alice, alice, tokenAt, fee)
	require.ErrorIs(t, err, access.ErrOnlyManager)

	legacy := newLegacyFixture(t)
	_, err = legacy.bridge.EnrollToken(managerAt, alice, tokenAt, fee)
	require.ErrorIs(t, err, ErrOnlyMultiTokenBridge)
}

func TestMultiTokenWithdrawals(t *testing.T) {
	f := newMultiFixture(t)
	f.activate(t, tokenAt)
	f.activate(t, otherAt)

	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(100), recipient, fee)
	require.NoError(t, err)
	_, err = f.bridge.Deposit(alice, otherAt, uint256.NewInt(100), recipient, fee)
	require.NoError(t, err)

	// tokenAt is the legacy token, so both payload shapes release it.
	f.sendWithdrawal(nil, bob, 10)
	require.NoError(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(10), bob))
	tok := tokenAt
	f.sendWithdrawal(&tok, bob, 10)
	require.NoError(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(10), bob))
	require.Equal(t, uint64(1020), f.erc20.BalanceOf(bob).Uint64())

	// Other tokens require the token-aware shape.
	f.sendWithdrawal(nil, bob, 10)
	require.ErrorIs(t, f.bridge.Withdraw(bob, otherAt, uint256.NewInt(10), bob), messaging.ErrInvalidMessageToConsume)
	other := otherAt
	f.sendWithdrawal(&other, bob, 10)
	require.NoError(t, f.bridge.Withdraw(bob, otherAt, uint256.NewInt(10), bob))
	require.Equal(t, uint64(1010), f.other.BalanceOf(bob).Uint64())
}

func TestDeactivatedToken(t *testing.T) {
	f := newMultiFixture(t)
	f.activate(t, tokenAt)
	_, err := f.bridge.Deposit(alice, tokenAt, uint256.NewInt(100), recipient, fee)
	require.NoError(t, err)

	require.NoError(t, f.manager.DeactivateToken(tokenAdmin, tokenAt))
	require.Equal(t, registry.Deactivated, f.bridge.GetStatus(tokenAt))
	require.False(t, f.bridge.IsServicingToken(tokenAt))

	_, err = f.bridge.Deposit(alice, tokenAt, uint256.NewInt(1), recipient, fee)
	require.ErrorIs(t, err, ErrTokenNotServiced)

	tok := tokenAt
	f.sendWithdrawal(&tok, bob, 100)
	require.NoError(t, f.bridge.Withdraw(bob, tokenAt, uint256.NewInt(100), bob))
	require.Equal(t, []common.Address{bridgeAt}, f.registry.GetWithdrawalBridges(tokenAt))
}

func TestBlockedToken(t *testing.T) {
	f := newMultiFixture(t)
	require.NoError(t, f.manager.BlockToken(tokenAdmin, tokenAt))
	require.Equal(t, registry.Blocked, f.bridge.GetStatus(tokenAt))

	_, err := f.manager.EnrollTokenBridge(governor, tokenAt, fee)
	require.Error(t, err)
	_, err = f.bridge.Deposit(alice, tokenAt, uint256.NewInt(1), recipient, fee)
	require.ErrorIs(t, err, ErrTokenNotServiced)
}

func TestEnrollNativeAsset(t *testing.T) {
	f := newMultiFixture(t)
	f.activate(t, L1TokenAddressOfETH)

	_, err := f.bridge.Deposit(alice, L1TokenAddressOfETH, uint256.NewInt(100), recipient, fee)
	require.NoError(t, err)
	require.Equal(t, uint64(100), f.bridge.BridgeBalance(L1TokenAddressOfETH).Uint64())

	meta, err := messaging.DecodeDeployment(f.log.ByName("LogMessageToL2")[0].(events.LogMessageToL2).Payload)
	require.NoError(t, err)
	require.Equal(t, EthMetadata, meta.Metadata)
}
