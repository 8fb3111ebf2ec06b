package token

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func TestERC20TransferFrom(t *testing.T) {
	tok := NewERC20(common.HexToAddress("0x70"), Metadata{Name: "Token", Symbol: "TKN", Decimals: 18})
	tok.SetBalance(alice, uint256.NewInt(100))

	err := tok.TransferFrom(bob, alice, bob, uint256.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, tok.Approve(alice, bob, uint256.NewInt(30)))
	require.NoError(t, tok.TransferFrom(bob, alice, bob, uint256.NewInt(10)))

	require.Equal(t, uint64(90), tok.BalanceOf(alice).Uint64())
	require.Equal(t, uint64(10), tok.BalanceOf(bob).Uint64())
	require.Equal(t, uint64(20), tok.Allowance(alice, bob).Uint64())
	require.Equal(t, uint64(100), tok.TotalSupply().Uint64())

	err = tok.TransferFrom(bob, alice, bob, uint256.NewInt(25))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestERC20InsufficientBalanceLeavesAllowance(t *testing.T) {
	tok := NewERC20(common.HexToAddress("0x70"), Metadata{})
	tok.SetBalance(alice, uint256.NewInt(5))
	require.NoError(t, tok.Approve(alice, bob, uint256.NewInt(50)))

	err := tok.TransferFrom(bob, alice, bob, uint256.NewInt(6))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(50), tok.Allowance(alice, bob).Uint64())
	require.Equal(t, uint64(5), tok.BalanceOf(alice).Uint64())
}

func TestEtherTransfer(t *testing.T) {
	eth := NewEther()
	eth.SetBalance(alice, uint256.NewInt(3))
	require.ErrorIs(t, eth.Transfer(alice, bob, uint256.NewInt(4)), ErrInsufficientBalance)
	require.NoError(t, eth.Transfer(alice, bob, uint256.NewInt(3)))
	require.True(t, eth.BalanceOf(alice).IsZero())
	require.Equal(t, uint64(3), eth.BalanceOf(bob).Uint64())
}

func TestL2TokenMintBurn(t *testing.T) {
	minter := uint256.NewInt(0xb41d6e)
	tok := NewL2Token(uint256.NewInt(0x12), minter, Metadata{Symbol: "TKN"})
	user := uint256.NewInt(341)

	require.ErrorIs(t, tok.Mint(user, user, uint256.NewInt(1)), ErrOnlyMinter)
	require.ErrorIs(t, tok.Mint(minter, new(uint256.Int), uint256.NewInt(1)), ErrZeroAccount)

	require.NoError(t, tok.Mint(minter, user, uint256.NewInt(10)))
	require.Equal(t, uint64(10), tok.TotalSupply().Uint64())

	require.NoError(t, tok.Transfer(user, uint256.NewInt(737), uint256.NewInt(10)))
	require.True(t, tok.BalanceOf(user).IsZero())

	require.ErrorIs(t, tok.Burn(minter, user, uint256.NewInt(1)), ErrInsufficientBalance)
	require.NoError(t, tok.Burn(minter, uint256.NewInt(737), uint256.NewInt(10)))
	require.True(t, tok.TotalSupply().IsZero())
}

func TestL2TokenSupplyOverflow(t *testing.T) {
	minter := uint256.NewInt(1)
	tok := NewL2Token(uint256.NewInt(2), minter, Metadata{})
	max := new(uint256.Int).SetAllOne()

	require.NoError(t, tok.Mint(minter, uint256.NewInt(5), max))
	err := tok.Mint(minter, uint256.NewInt(6), uint256.NewInt(1))
	require.ErrorIs(t, err, ErrTotalSupplyOverflow)
	require.True(t, tok.BalanceOf(uint256.NewInt(6)).IsZero())
	require.True(t, tok.TotalSupply().Eq(max))
}
