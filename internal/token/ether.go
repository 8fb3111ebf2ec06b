package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ether is the native-asset ledger of L1. Fees and ETH deposits move through it.
type Ether struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
}

func NewEther() *Ether {
	return &Ether{balances: make(map[common.Address]*uint256.Int)}
}

func (e *Ether) BalanceOf(account common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if b, ok := e.balances[account]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

func (e *Ether) SetBalance(account common.Address, amount *uint256.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances[account] = new(uint256.Int).Set(amount)
}

// Transfer sends value from one account to another.
func (e *Ether) Transfer(from, to common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fromBal := new(uint256.Int)
	if b, ok := e.balances[from]; ok {
		fromBal = b
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: eth balance %s, need %s", ErrInsufficientBalance, fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal := new(uint256.Int)
	if b, ok := e.balances[to]; ok {
		toBal = b
	}
	sum, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return ErrOverflow
	}
	e.balances[from] = new(uint256.Int).Sub(fromBal, amount)
	e.balances[to] = sum
	return nil
}
