package l1bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// L1TokenAddressOfETH stands in for the native asset wherever a token address is expected.
var L1TokenAddressOfETH = common.HexToAddress("0x0000000000000000000000000000000000455448")

var ErrUnsupportedToken = errors.New("UNSUPPORTED_TOKEN")

// EthMetadata describes the native asset when it is enrolled.
var EthMetadata = token.Metadata{Name: "Ether", Symbol: "ETH", Decimals: 18}

// Custody holds the bridged asset on behalf of one bridge.
type Custody interface {
	// Pull moves amount of token from sender into the bridge.
	Pull(token, sender common.Address, amount *uint256.Int) error
	// Push moves amount of token from the bridge to recipient.
	Push(token, recipient common.Address, amount *uint256.Int) error
	Balance(token common.Address) *uint256.Int
	Metadata(token common.Address) (token.Metadata, error)
}

// ERC20Custody escrows a single ERC20 token. Deposits pull via allowance.
type ERC20Custody struct {
	bridge common.Address
	token  *token.ERC20
}

func NewERC20Custody(bridge common.Address, tok *token.ERC20) *ERC20Custody {
	return &ERC20Custody{bridge: bridge, token: tok}
}

func (c *ERC20Custody) check(t common.Address) error {
	if t != c.token.Address() {
		return fmt.Errorf("%w: %s", ErrUnsupportedToken, t.Hex())
	}
	return nil
}

func (c *ERC20Custody) Pull(t, sender common.Address, amount *uint256.Int) error {
	if err := c.check(t); err != nil {
		return err
	}
	return c.token.TransferFrom(c.bridge, sender, c.bridge, amount)
}

func (c *ERC20Custody) Push(t, recipient common.Address, amount *uint256.Int) error {
	if err := c.check(t); err != nil {
		return err
	}
	return c.token.Transfer(c.bridge, recipient, amount)
}

func (c *ERC20Custody) Balance(t common.Address) *uint256.Int {
	if c.check(t) != nil {
		return new(uint256.Int)
	}
	return c.token.BalanceOf(c.bridge)
}

func (c *ERC20Custody) Metadata(t common.Address) (token.Metadata, error) {
	if err := c.check(t); err != nil {
		return token.Metadata{}, err
	}
	return c.token.Metadata(), nil
}

// NativeCustody escrows the native asset.
type NativeCustody struct {
	bridge common.Address
	ether  *token.Ether
}

func NewNativeCustody(bridge common.Address, ether *token.Ether) *NativeCustody {
	return &NativeCustody{bridge: bridge, ether: ether}
}

func (c *NativeCustody) check(t common.Address) error {
	if t != L1TokenAddressOfETH {
		return fmt.Errorf("%w: %s", ErrUnsupportedToken, t.Hex())
	}
	return nil
}

func (c *NativeCustody) Pull(t, sender common.Address, amount *uint256.Int) error {
	if err := c.check(t); err != nil {
		return err
	}
	return c.ether.Transfer(sender, c.bridge, amount)
}

func (c *NativeCustody) Push(t, recipient common.Address, amount *uint256.Int) error {
	if err := c.check(t); err != nil {
		return err
	}
	return c.ether.Transfer(c.bridge, recipient, amount)
}

func (c *NativeCustody) Balance(t common.Address) *uint256.Int {
	if c.check(t) != nil {
		return new(uint256.Int)
	}
	return c.ether.BalanceOf(c.bridge)
}

func (c *NativeCustody) Metadata(t common.Address) (token.Metadata, error) {
	if err := c.check(t); err != nil {
		return token.Metadata{}, err
	}
	return EthMetadata, nil
}

// MultiCustody escrows any number of ERC20 tokens plus the native asset.
type MultiCustody struct {
	mu     sync.RWMutex
	bridge common.Address
	native *NativeCustody
	tokens map[common.Address]*ERC20Custody
}

func NewMultiCustody(bridge common.Address, ether *token.Ether) *MultiCustody {
	return &MultiCustody{
		bridge: bridge,
		native: NewNativeCustody(bridge, ether),
		tokens: make(map[common.Address]*ERC20Custody),
	}
}

// Register makes tok reachable through the custody.
func (c *MultiCustody) Register(tok *token.ERC20) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[tok.Address()] = NewERC20Custody(c.bridge, tok)
}

func (c *MultiCustody) route(t common.Address) (Custody, error) {
	if t == L1TokenAddressOfETH {
		return c.native, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.tokens[t]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, t.Hex())
}

func (c *MultiCustody) Pull(t, sender common.Address, amount *uint256.Int) error {
	r, err := c.route(t)
	if err != nil {
		return err
	}
	return r.Pull(t, sender, amount)
}

func (c *MultiCustody) Push(t, recipient common.Address, amount *uint256.Int) error {
	r, err := c.route(t)
	if err != nil {
		return err
	}
	return r.Push(t, recipient, amount)
}

func (c *MultiCustody) Balance(t common.Address) *uint256.Int {
	r, err := c.route(t)
	if err != nil {
		return new(uint256.Int)
	}
	return r.Balance(t)
}

func (c *MultiCustody) Metadata(t common.Address) (token.Metadata, error) {
	r, err := c.route(t)
	if err != nil {
		return token.Metadata{}, err
	}
	return r.Metadata(t)
}
