package inspect

import (
	"bytes"
	"strings"
	"testing"

	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/messaging"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestHashL1ToL2(t *testing.T) {
	want := messaging.MessageToL2{
		FromAddress: common.HexToAddress("0xb1d6e"),
		ToAddress:   uint256.NewInt(0x12b),
		Selector:    messaging.SelectorHandleDeposit,
		Payload:     felt.FromUint64s(341, 10, 0),
		Nonce:       3,
	}.Hash()

	args := L1ToL2Args{
		From:     "0x00000000000000000000000000000000000b1d6e",
		To:       "0x12b",
		Selector: "handle_deposit",
		Nonce:    3,
		Payload:  []string{"341", "10", "0"},
	}
	got, err := HashL1ToL2(args)
	require.NoError(t, err)
	require.Equal(t, want, got)

	args.Selector = messaging.SelectorHandleDeposit.Hex()
	got, err = HashL1ToL2(args)
	require.NoError(t, err)
	require.Equal(t, want, got)

	args.Selector = "handle_nothing"
	_, err = HashL1ToL2(args)
	require.ErrorContains(t, err, "unknown selector")

	args.Selector, args.From = "handle_deposit", "0xb1"
	_, err = HashL1ToL2(args)
	require.ErrorContains(t, err, "invalid l1 address")
}

func TestHashL2ToL1(t *testing.T) {
	want := messaging.MessageToL1{
		FromAddress: uint256.NewInt(0x12b),
		ToAddress:   common.HexToAddress("0xb1d6e"),
		Payload:     felt.FromUint64s(0, 0xa11ce, 10, 0),
	}.Hash()

	got, err := HashL2ToL1(L2ToL1Args{
		From:    "299",
		To:      "0x00000000000000000000000000000000000b1d6e",
		Payload: []string{"0", "0xa11ce", "10", "0"},
	})
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = HashL2ToL1(L2ToL1Args{From: "x", To: "0x00000000000000000000000000000000000b1d6e"})
	require.ErrorContains(t, err, "invalid felt")
}

func TestSelectors(t *testing.T) {
	s := Selectors()
	require.Len(t, s, len(messaging.Selectors()))
	require.Equal(t, "handle_deposit", s[0].Name)
	require.True(t, s[0].Value.Eq(messaging.SelectorHandleDeposit))
}

func TestSplitCommand(t *testing.T) {
	var out bytes.Buffer
	CMD.SetOut(&out)
	CMD.SetArgs([]string{"split", "0x100000000000000000000000000000005"})
	require.NoError(t, CMD.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{"low  0x5", "high 0x1"}, lines)
}

func TestWithdrawalCommand(t *testing.T) {
	var out bytes.Buffer
	CMD.SetOut(&out)
	CMD.SetArgs([]string{"withdrawal", "0", "0xa11ce", "0x70", "10", "1"})
	require.NoError(t, CMD.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, []string{
		"recipient " + common.HexToAddress("0xa11ce").Hex(),
		"token     " + common.HexToAddress("0x70").Hex(),
		"amount    340282366920938463463374607431768211466",
	}, lines)
}

func TestWithdrawal(t *testing.T) {
	w, err := Withdrawal([]string{"0", "0xa11ce", "10", "0"})
	require.NoError(t, err)
	require.Nil(t, w.Token)
	require.Equal(t, uint64(10), w.Amount.Uint64())

	_, err = Withdrawal([]string{"0", "0xa11ce", "10"})
	require.ErrorIs(t, err, messaging.ErrMalformedPayload)
	_, err = Withdrawal([]string{"1", "0xa11ce", "10", "0"})
	require.ErrorIs(t, err, messaging.ErrInvalidWithdrawTag)
}
