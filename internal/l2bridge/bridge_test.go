package l2bridge

import (
	"errors"
	"testing"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	bridgeAddr = uint256.NewInt(0xb2)
	governor   = felt.MustStrToFelt("GOVERNOR")
	l1Bridge   = common.HexToAddress("0x2a")
	l1Token    = common.HexToAddress("0x70")
	l1Account  = uint256.NewInt(1)
	account    = uint256.NewInt(341)
	meta       = token.Metadata{Name: "Token", Symbol: "TKN", Decimals: 18}
)

type failingChannel struct{}

func (failingChannel) SendMessageToL1(*uint256.Int, common.Address, []*uint256.Int) (messaging.MessageToL1, error) {
	return messaging.MessageToL1{}, errors.New("channel closed")
}

func newLegacyBridge(t *testing.T, ch messaging.L2Channel) (*Bridge, *token.L2Token, *events.Log) {
	t.Helper()
	log := events.NewLog()
	b, err := New(Config{Address: bridgeAddr, Governor: governor, Legacy: true}, ch, log)
	require.NoError(t, err)
	require.NoError(t, b.SetL1Bridge(governor, l1Bridge))
	l2 := token.NewL2Token(uint256.NewInt(0x1234), bridgeAddr, meta)
	require.NoError(t, b.SetL2Token(governor, l1Token, l2))
	return b, l2, log
}

func newMultiBridge(t *testing.T, ch messaging.L2Channel) (*Bridge, *events.Log) {
	t.Helper()
	log := events.NewLog()
	b, err := New(Config{Address: bridgeAddr, Governor: governor}, ch, log)
	require.NoError(t, err)
	require.NoError(t, b.SetL1Bridge(governor, l1Bridge))
	return b, log
}

func depositMsg(p messaging.DepositPayload, nonce uint64) messaging.MessageToL2 {
	return messaging.MessageToL2{FromAddress: l1Bridge, ToAddress: bridgeAddr, Selector: p.Selector(), Payload: p.Encode(), Nonce: nonce}
}

func TestAdmin(t *testing.T) {
	log := events.NewLog()
	b, err := New(Config{Address: bridgeAddr, Governor: governor, Legacy: true}, messaging.NewOutbox(), log)
	require.NoError(t, err)

	require.ErrorIs(t, b.SetL1Bridge(account, l1Bridge), ErrOnlyGovernor)
	require.ErrorIs(t, b.HandleDeposit(l1Bridge, account, uint256.NewInt(1), new(uint256.Int)), ErrL1BridgeNotSet)
	require.NoError(t, b.SetL1Bridge(governor, l1Bridge))
	require.ErrorIs(t, b.SetL1Bridge(governor, l1Bridge), ErrAlreadySet)
	require.Equal(t, l1Bridge, b.L1Bridge())

	ev, ok := log.Last("l1_bridge_set")
	require.True(t, ok)
	require.Equal(t, []events.Field{{Name: "l1_bridge_address", Value: l1Bridge}}, ev.Fields())

	l2 := token.NewL2Token(uint256.NewInt(0x1234), bridgeAddr, meta)
	require.NoError(t, b.SetL2Token(governor, l1Token, l2))
	require.ErrorIs(t, b.SetL2Token(governor, l1Token, l2), ErrAlreadySet)
	got, err := b.LegacyToken()
	require.NoError(t, err)
	require.Same(t, l2, got)
}

func TestHandleDeposit(t *testing.T) {
	b, l2, log := newLegacyBridge(t, messaging.NewOutbox())

	err := b.HandleDeposit(common.HexToAddress("0x2b"), account, uint256.NewInt(15), new(uint256.Int))
	require.ErrorIs(t, err, ErrExpectedFromBridgeOnly)
	require.ErrorIs(t, b.HandleDeposit(l1Bridge, new(uint256.Int), uint256.NewInt(15), new(uint256.Int)), ErrZeroRecipient)

	require.NoError(t, b.HandleDeposit(l1Bridge, account, uint256.NewInt(15), new(uint256.Int)))
	require.Equal(t, uint64(15), l2.BalanceOf(account).Uint64())
	require.Equal(t, uint64(15), l2.TotalSupply().Uint64())

	ev, ok := log.Last("deposit_handled")
	require.True(t, ok)
	require.Equal(t, []events.Field{{Name: "account", Value: account}, {Name: "amount", Value: uint256.NewInt(15)}}, ev.Fields())
}

func TestHandleDepositTotalSupplyOverflow(t *testing.T) {
	b, l2, _ := newLegacyBridge(t, messaging.NewOutbox())
	low, high := felt.SplitUint256(new(uint256.Int).SetAllOne())
	require.NoError(t, b.HandleDeposit(l1Bridge, account, low, high))

	err := b.HandleDeposit(l1Bridge, uint256.NewInt(2), uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(t, err, token.ErrTotalSupplyOverflow)
	require.True(t, l2.BalanceOf(uint256.NewInt(2)).IsZero())
}

func TestHandleDispatch(t *testing.T) {
	b, l2, _ := newLegacyBridge(t, messaging.NewOutbox())

	msg := depositMsg(messaging.DepositPayload{Recipient: account, Amount: uint256.NewInt(10)}, 0)
	require.NoError(t, b.Handle(msg))
	require.Equal(t, uint64(10), l2.BalanceOf(account).Uint64())

	msg.Selector = felt.Selector("handle_unknown")
	require.ErrorIs(t, b.Handle(msg), ErrUnknownSelector)

	tok := l1Token
	tokenMsg := depositMsg(messaging.DepositPayload{Token: &tok, Recipient: account, Amount: uint256.NewInt(10)}, 1)
	require.ErrorIs(t, b.Handle(tokenMsg), ErrUnknownSelector)

	msg = depositMsg(messaging.DepositPayload{Recipient: account, Amount: uint256.NewInt(10)}, 2)
	msg.ToAddress = uint256.NewInt(0xdead)
	require.ErrorIs(t, b.Handle(msg), ErrWrongDestination)
}

func TestDepositWithMessage(t *testing.T) {
	b, l2, _ := newLegacyBridge(t, messaging.NewOutbox())
	depositor := common.HexToAddress("0xa11ce")
	payload := felt.FromUint64s(7, 9)

	err := b.HandleDepositWithMessage(l1Bridge, account, uint256.NewInt(5), new(uint256.Int), depositor, payload)
	require.ErrorIs(t, err, ErrDepositRejected)
	require.True(t, l2.BalanceOf(account).IsZero())

	accept := true
	var seen []*uint256.Int
	b.RegisterReceiver(account, ReceiverFunc(func(l2Token, amount *uint256.Int, from common.Address, message []*uint256.Int) bool {
		require.True(t, l2Token.Eq(l2.Address()))
		require.Equal(t, depositor, from)
		seen = message
		return accept
	}))

	require.NoError(t, b.HandleDepositWithMessage(l1Bridge, account, uint256.NewInt(5), new(uint256.Int), depositor, payload))
	require.Equal(t, uint64(5), l2.BalanceOf(account).Uint64())
	require.True(t, felt.Equal(payload, seen))

	accept = false
	require.ErrorIs(t, b.HandleDepositWithMessage(l1Bridge, account, uint256.NewInt(5), new(uint256.Int), depositor, payload), ErrDepositRejected)
	require.Equal(t, uint64(5), l2.BalanceOf(account).Uint64())
	require.Equal(t, uint64(5), l2.TotalSupply().Uint64())
}

func TestTokenDeployment(t *testing.T) {
	b, log := newMultiBridge(t, messaging.NewOutbox())

	err := b.HandleTokenDeposit(l1Bridge, l1Token, account, uint256.NewInt(3), new(uint256.Int))
	require.ErrorIs(t, err, ErrTokenNotDeployed)

	payload, err := messaging.DeploymentPayload{Token: l1Token, Metadata: meta}.Encode()
	require.NoError(t, err)
	msg := messaging.MessageToL2{FromAddress: l1Bridge, ToAddress: bridgeAddr, Selector: messaging.SelectorHandleTokenDeployment, Payload: payload}
	require.NoError(t, b.Handle(msg))
	require.ErrorIs(t, b.Handle(msg), ErrTokenAlreadyDeployed)

	l2, err := b.Token(l1Token)
	require.NoError(t, err)
	require.Equal(t, meta, l2.Metadata())
	back, ok := b.L1TokenOf(l2.Address())
	require.True(t, ok)
	require.Equal(t, l1Token, back)

	ev, ok := log.Last("token_deployed")
	require.True(t, ok)
	require.Equal(t, l1Token, ev.(events.TokenDeployed).L1Token)

	require.NoError(t, b.HandleTokenDeposit(l1Bridge, l1Token, account, uint256.NewInt(3), new(uint256.Int)))
	require.Equal(t, uint64(3), l2.BalanceOf(account).Uint64())
}

func TestInitiateWithdraw(t *testing.T) {
	outbox := messaging.NewOutbox()
	b, l2, log := newLegacyBridge(t, outbox)
	require.NoError(t, b.HandleDeposit(l1Bridge, account, uint256.NewInt(15), new(uint256.Int)))

	_, err := b.InitiateWithdraw(account, felt.EthAddressBound, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidL1Recipient)
	_, err = b.InitiateWithdraw(new(uint256.Int), l1Account, uint256.NewInt(1))
	require.ErrorIs(t, err, token.ErrZeroAccount)
	_, err = b.InitiateWithdraw(account, l1Account, uint256.NewInt(16))
	require.ErrorIs(t, err, token.ErrInsufficientBalance)

	msg, err := b.InitiateWithdraw(account, l1Account, uint256.NewInt(14))
	require.NoError(t, err)
	require.Equal(t, uint64(1), l2.BalanceOf(account).Uint64())
	require.Equal(t, uint64(1), l2.TotalSupply().Uint64())

	require.Equal(t, l1Bridge, msg.ToAddress)
	require.True(t, felt.Equal(felt.FromUint64s(0, 1, 14, 0), msg.Payload))
	require.Len(t, outbox.Pending(), 1)

	ev, ok := log.Last("withdraw_initiated")
	require.True(t, ok)
	require.Equal(t, []events.Field{
		{Name: "l1_recipient", Value: felt.FeltToAddress(l1Account)},
		{Name: "amount", Value: uint256.NewInt(14)},
		{Name: "caller_address", Value: account},
	}, ev.Fields())
}

func TestInitiateTokenWithdraw(t *testing.T) {
	outbox := messaging.NewOutbox()
	b, _ := newMultiBridge(t, outbox)
	require.NoError(t, b.HandleTokenDeployment(l1Bridge, l1Token, meta.Name, meta.Symbol, meta.Decimals))
	require.NoError(t, b.HandleTokenDeposit(l1Bridge, l1Token, account, uint256.NewInt(8), new(uint256.Int)))

	_, err := b.InitiateTokenWithdraw(account, common.HexToAddress("0x71"), l1Account, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrTokenNotDeployed)

	msg, err := b.InitiateTokenWithdraw(account, l1Token, l1Account, uint256.NewInt(8))
	require.NoError(t, err)
	w, err := messaging.DecodeWithdrawal(msg.Payload)
	require.NoError(t, err)
	require.NotNil(t, w.Token)
	require.Equal(t, l1Token, *w.Token)
	require.Equal(t, uint64(8), w.Amount.Uint64())
}

func TestZeroWithdrawal(t *testing.T) {
	outbox := messaging.NewOutbox()
	b, l2, log := newLegacyBridge(t, outbox)
	require.NoError(t, b.HandleDeposit(l1Bridge, account, uint256.NewInt(15), new(uint256.Int)))

	// Zero amounts and the zero L1 address are valid withdrawals.
	msg, err := b.InitiateWithdraw(account, new(uint256.Int), new(uint256.Int))
	require.NoError(t, err)
	require.True(t, felt.Equal(felt.FromUint64s(0, 0, 0, 0), msg.Payload))
	require.Equal(t, uint64(15), l2.BalanceOf(account).Uint64())
	require.Len(t, outbox.Pending(), 1)
	require.Len(t, log.ByName("withdraw_initiated"), 1)
}

func TestWithdrawRestoredWhenChannelFails(t *testing.T) {
	b, l2, log := newLegacyBridge(t, failingChannel{})
	require.NoError(t, b.HandleDeposit(l1Bridge, account, uint256.NewInt(15), new(uint256.Int)))

	_, err := b.InitiateWithdraw(account, l1Account, uint256.NewInt(15))
	require.Error(t, err)
	require.Equal(t, uint64(15), l2.BalanceOf(account).Uint64())
	require.Empty(t, log.ByName("withdraw_initiated"))
}
