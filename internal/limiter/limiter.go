package limiter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compose-network/token-bridge/internal/access"
	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrExceedsWithdrawLimit = errors.New("EXCEEDS_GLOBAL_WITHDRAW_LIMIT")
	ErrInvalidPercent       = errors.New("limit percent must be in [0, 100]")
)

// Unlimited is the allowance reported while the limiter is off.
var Unlimited = new(uint256.Int).SetAllOne()

type window struct {
	day       uint64
	remaining *uint256.Int
}

// Limiter caps the share of a token's bridge balance that may leave L1 per day.
type Limiter struct {
	mu      sync.Mutex
	percent uint64
	clock   chain.Clock
	roles   *access.Roles
	log     *events.Log
	emitter string
	logger  *slog.Logger

	enabled map[common.Address]bool
	windows map[common.Address]window
}

func New(percent uint64, clock chain.Clock, roles *access.Roles, log *events.Log, emitter common.Address) (*Limiter, error) {
	if percent > 100 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPercent, percent)
	}
	return &Limiter{
		percent: percent,
		clock:   clock,
		roles:   roles,
		log:     log,
		emitter: emitter.Hex(),
		logger:  logger.Named("withdrawal_limiter"),
		enabled: make(map[common.Address]bool),
		windows: make(map[common.Address]window),
	}, nil
}

func (l *Limiter) Percent() uint64 { return l.percent }

// Enable turns the daily cap on for token. Security agents only.
func (l *Limiter) Enable(caller, token common.Address) error {
	if err := l.roles.Require(access.SecurityAgent, caller); err != nil {
		return err
	}
	l.mu.Lock()
	l.enabled[token] = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Emit(l.emitter, events.WithdrawalLimitEnabled{Sender: caller, Token: token})
	}
	l.logger.With("token", token.Hex()).With("caller", caller.Hex()).Info("withdrawal limit enabled")
	return nil
}

// Disable lifts the cap immediately. Security admins only.
func (l *Limiter) Disable(caller, token common.Address) error {
	if err := l.roles.Require(access.SecurityAdmin, caller); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.enabled, token)
	l.mu.Unlock()

	if l.log != nil {
		l.log.Emit(l.emitter, events.WithdrawalLimitDisabled{Sender: caller, Token: token})
	}
	l.logger.With("token", token.Hex()).With("caller", caller.Hex()).Info("withdrawal limit disabled")
	return nil
}

func (l *Limiter) IsEnabled(token common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled[token]
}

// RemainingIntradayAllowance is what token may still withdraw today given the
// current bridge balance. The balance only matters on the first withdrawal of a day.
func (l *Limiter) RemainingIntradayAllowance(token common.Address, balance *uint256.Int) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled[token] {
		return new(uint256.Int).Set(Unlimited)
	}
	return new(uint256.Int).Set(l.remaining(token, balance))
}

func (l *Limiter) remaining(token common.Address, balance *uint256.Int) *uint256.Int {
	today := chain.DayIndex(l.clock.Now())
	if w, ok := l.windows[token]; ok && w.day == today {
		return w.remaining
	}
	allowance, _ := new(uint256.Int).MulDivOverflow(balance, uint256.NewInt(l.percent), uint256.NewInt(100))
	return allowance
}

// Consume charges amount against today's allowance.
func (l *Limiter) Consume(token common.Address, amount, balance *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled[token] {
		return nil
	}

	rem := l.remaining(token, balance)
	if amount.Gt(rem) {
		l.logger.With("token", token.Hex()).With("amount", amount.Dec()).With("remaining", rem.Dec()).
			Warn("withdrawal exceeds daily limit")
		return fmt.Errorf("%w: remaining %s, requested %s", ErrExceedsWithdrawLimit, rem.Dec(), amount.Dec())
	}
	l.windows[token] = window{
		day:       chain.DayIndex(l.clock.Now()),
		remaining: new(uint256.Int).Sub(rem, amount),
	}
	return nil
}

// Refund gives back allowance charged by a withdrawal that failed afterwards.
func (l *Limiter) Refund(token common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[token]
	if !ok || w.day != chain.DayIndex(l.clock.Now()) {
		return
	}
	w.remaining = new(uint256.Int).Add(w.remaining, amount)
	l.windows[token] = w
}
