package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

var (
	ErrOnlyMinter          = errors.New("ONLY_MINTER")
	ErrZeroAccount         = errors.New("ZERO_ACCOUNT")
	ErrTotalSupplyOverflow = errors.New("TOTAL_SUPPLY_OVERFLOW")
)

// L2Token is the wrapped representation of an L1 asset on L2. Accounts are felts.
// Only the minter (the L2 bridge) may mint or burn.
type L2Token struct {
	mu       sync.RWMutex
	address  uint256.Int
	meta     Metadata
	minter   uint256.Int
	balances map[uint256.Int]*uint256.Int
	supply   uint256.Int
}

func NewL2Token(address, minter *uint256.Int, meta Metadata) *L2Token {
	return &L2Token{
		address:  *address,
		minter:   *minter,
		meta:     meta,
		balances: make(map[uint256.Int]*uint256.Int),
	}
}

func (t *L2Token) Address() *uint256.Int { return new(uint256.Int).Set(&t.address) }
func (t *L2Token) Metadata() Metadata    { return t.meta }

func (t *L2Token) balance(a *uint256.Int) *uint256.Int {
	if b, ok := t.balances[*a]; ok {
		return b
	}
	return new(uint256.Int)
}

func (t *L2Token) BalanceOf(account *uint256.Int) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(t.balance(account))
}

func (t *L2Token) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(uint256.Int).Set(&t.supply)
}

// Transfer moves amount between two L2 accounts.
func (t *L2Token) Transfer(sender, recipient, amount *uint256.Int) error {
	if sender.IsZero() || recipient.IsZero() {
		return ErrZeroAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.balance(sender)
	if from.Lt(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientBalance, from.Dec(), amount.Dec())
	}
	if sender.Eq(recipient) {
		return nil
	}
	to, overflow := new(uint256.Int).AddOverflow(t.balance(recipient), amount)
	if overflow {
		return ErrOverflow
	}
	t.balances[*sender] = new(uint256.Int).Sub(from, amount)
	t.balances[*recipient] = to
	return nil
}

// Mint credits account. The new total supply must still fit in 256 bits.
func (t *L2Token) Mint(caller, account, amount *uint256.Int) error {
	if !caller.Eq(&t.minter) {
		return ErrOnlyMinter
	}
	if account.IsZero() {
		return ErrZeroAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(&t.supply, amount)
	if overflow {
		return ErrTotalSupplyOverflow
	}
	t.supply = *supply
	t.balances[*account] = new(uint256.Int).Add(t.balance(account), amount)
	return nil
}

// Burn debits account.
func (t *L2Token) Burn(caller, account, amount *uint256.Int) error {
	if !caller.Eq(&t.minter) {
		return ErrOnlyMinter
	}
	if account.IsZero() {
		return ErrZeroAccount
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	bal := t.balance(account)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientBalance, bal.Dec(), amount.Dec())
	}
	t.balances[*account] = new(uint256.Int).Sub(bal, amount)
	t.supply.Sub(&t.supply, amount)
	return nil
}
