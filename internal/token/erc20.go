package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("INSUFFICIENT_BALANCE")
	ErrInsufficientAllowance = errors.New("INSUFFICIENT_ALLOWANCE")
	ErrOverflow              = errors.New("ARITHMETIC_OVERFLOW")
	ErrZeroAddress           = errors.New("ZERO_ADDRESS")
)

// Metadata is what the bridge forwards to L2 when a token is enrolled.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// ERC20 is an in-memory L1 fungible token.
type ERC20 struct {
	mu         sync.RWMutex
	address    common.Address
	meta       Metadata
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
	supply     *uint256.Int
}

// NewERC20 deploys a token at address.
func NewERC20(address common.Address, meta Metadata) *ERC20 {
	return &ERC20{
		address:    address,
		meta:       meta,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:     new(uint256.Int),
	}
}

func (t *ERC20) Address() common.Address { return t.address }
func (t *ERC20) Metadata() Metadata       { return t.meta }

func (t *ERC20) balance(a common.Address) *uint256.Int {
	if b, ok := t.balances[a]; ok {
		return b
	}
	return new(uint256.Int)
}

// BalanceOf returns a copy of account's balance.
func (t *ERC20) BalanceOf(account common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.balance(account))
}

// TotalSupply returns a copy of the total supply.
func (t *ERC20) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.supply)
}

// SetBalance overwrites a balance, adjusting supply. Test and simulation helper.
func (t *ERC20) SetBalance(account common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.balance(account)
	t.supply = new(uint256.Int).Sub(t.supply, old)
	t.supply.Add(t.supply, amount)
	t.balances[account] = new(uint256.Int).Set(amount)
}

// Allowance returns what spender may still pull from owner.
func (t *ERC20) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.allowances[owner][spender]; ok {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int)
}

// Approve sets spender's allowance over owner's balance.
func (t *ERC20) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(uint256.Int).Set(amount)
	return nil
}

// Transfer moves amount from sender to recipient.
func (t *ERC20) Transfer(sender, recipient common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(sender, recipient, amount)
}

// TransferFrom moves amount from owner to recipient using spender's allowance.
func (t *ERC20) TransferFrom(spender, owner, recipient common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := new(uint256.Int)
	if a, ok := t.allowances[owner][spender]; ok {
		allowed = a
	}
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: allowance %s, need %s", ErrInsufficientAllowance, allowed.Dec(), amount.Dec())
	}
	if err := t.move(owner, recipient, amount); err != nil {
		return err
	}
	t.allowances[owner][spender] = new(uint256.Int).Sub(allowed, amount)
	return nil
}

func (t *ERC20) move(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBal := t.balance(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientBalance, fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal, overflow := new(uint256.Int).AddOverflow(t.balance(to), amount)
	if overflow {
		return ErrOverflow
	}
	t.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	t.balances[to] = toBal
	return nil
}
