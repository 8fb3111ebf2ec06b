package messaging

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/felt"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/compose-network/token-bridge/internal/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultMaxFee is the fee ceiling of the core contract (1 ether).
var DefaultMaxFee = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

type CoreConfig struct {
	Address           common.Address
	CancellationDelay uint64
	MaxFee            *uint256.Int
}

// Core is the in-process messaging contract of L1. It is deterministic and
// synchronous: messages sit in its records until a postman or relay delivers them.
type Core struct {
	mu     sync.Mutex
	cfg    CoreConfig
	clock  chain.Clock
	ether  *token.Ether
	log    *events.Log
	logger *slog.Logger

	nonce         uint64
	l1ToL2        map[common.Hash]*uint256.Int
	cancellations map[common.Hash]uint64
	l2ToL1        map[common.Hash]uint64
	outbound      []MessageToL2
}

func NewCore(cfg CoreConfig, clock chain.Clock, ether *token.Ether, log *events.Log) *Core {
	if cfg.MaxFee == nil {
		cfg.MaxFee = DefaultMaxFee
	}
	return &Core{
		cfg:           cfg,
		clock:         clock,
		ether:         ether,
		log:           log,
		logger:        logger.Named("messaging_core"),
		l1ToL2:        make(map[common.Hash]*uint256.Int),
		cancellations: make(map[common.Hash]uint64),
		l2ToL1:        make(map[common.Hash]uint64),
	}
}

func (c *Core) Address() common.Address  { return c.cfg.Address }
func (c *Core) CancellationDelay() uint64 { return c.cfg.CancellationDelay }
func (c *Core) MaxFee() *uint256.Int      { return new(uint256.Int).Set(c.cfg.MaxFee) }

func (c *Core) NextNonce() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce
}

func (c *Core) emit(ev events.Event) {
	if c.log != nil {
		c.log.Emit(c.cfg.Address.Hex(), ev)
	}
}

func (c *Core) SendMessageToL2(caller common.Address, to, selector *uint256.Int, payload []*uint256.Int, fee *uint256.Int) (common.Hash, uint64, error) {
	if fee == nil || fee.IsZero() {
		return common.Hash{}, 0, ErrFeeMustBePositive
	}
	if fee.Gt(c.cfg.MaxFee) {
		return common.Hash{}, 0, ErrMaxFeeExceeded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := MessageToL2{
		FromAddress: caller,
		ToAddress:   new(uint256.Int).Set(to),
		Selector:    new(uint256.Int).Set(selector),
		Payload:     felt.Clone(payload),
		Nonce:       c.nonce,
	}
	if err := c.ether.Transfer(caller, c.cfg.Address, fee); err != nil {
		return common.Hash{}, 0, fmt.Errorf("failed to escrow message fee: %w", err)
	}

	hash := msg.Hash()
	c.nonce++
	c.l1ToL2[hash] = new(uint256.Int).AddUint64(fee, 1)
	c.outbound = append(c.outbound, msg)

	c.emit(events.LogMessageToL2{FromAddress: caller, ToAddress: msg.ToAddress, Selector: msg.Selector,
		Payload: msg.Payload, Nonce: msg.Nonce, Fee: new(uint256.Int).Set(fee)})
	c.logger.With("hash", hash.Hex()).With("nonce", msg.Nonce).Debug("message to l2 registered")
	return hash, msg.Nonce, nil
}

func (c *Core) ConsumeMessageFromL2(caller common.Address, from *uint256.Int, payload []*uint256.Int) (common.Hash, error) {
	msg := MessageToL1{FromAddress: from, ToAddress: caller, Payload: payload}
	hash := msg.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.l2ToL1[hash] == 0 {
		return common.Hash{}, ErrInvalidMessageToConsume
	}
	c.l2ToL1[hash]--
	c.emit(events.ConsumedMessageToL1{FromAddress: new(uint256.Int).Set(from), ToAddress: caller, Payload: felt.Clone(payload)})
	c.logger.With("hash", hash.Hex()).Debug("message from l2 consumed")
	return hash, nil
}

func (c *Core) StartL1ToL2MessageCancellation(caller common.Address, to, selector *uint256.Int, payload []*uint256.Int, nonce uint64) (common.Hash, error) {
	msg := MessageToL2{FromAddress: caller, ToAddress: to, Selector: selector, Payload: payload, Nonce: nonce}
	hash := msg.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.l1ToL2[hash]; !ok || v.IsZero() {
		return common.Hash{}, ErrNoMessageToCancel
	}
	c.cancellations[hash] = c.clock.Now()
	c.emit(events.MessageToL2CancellationStarted{FromAddress: caller, ToAddress: new(uint256.Int).Set(to),
		Selector: new(uint256.Int).Set(selector), Payload: felt.Clone(payload), Nonce: nonce})
	c.logger.With("hash", hash.Hex()).Debug("message cancellation started")
	return hash, nil
}

func (c *Core) CancelL1ToL2Message(caller common.Address, to, selector *uint256.Int, payload []*uint256.Int, nonce uint64) (common.Hash, *uint256.Int, error) {
	msg := MessageToL2{FromAddress: caller, ToAddress: to, Selector: selector, Payload: payload, Nonce: nonce}
	hash := msg.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	feePlusOne, ok := c.l1ToL2[hash]
	if !ok || feePlusOne.IsZero() {
		return common.Hash{}, nil, ErrNoMessageToCancel
	}
	requested, ok := c.cancellations[hash]
	if !ok {
		return common.Hash{}, nil, ErrCancellationNotRequested
	}
	if c.clock.Now() < requested+c.cfg.CancellationDelay {
		return common.Hash{}, nil, ErrCancellationNotAllowedYet
	}

	fee := new(uint256.Int).SubUint64(feePlusOne, 1)
	if err := c.ether.Transfer(c.cfg.Address, caller, fee); err != nil {
		return common.Hash{}, nil, fmt.Errorf("failed to refund message fee: %w", err)
	}
	c.l1ToL2[hash] = new(uint256.Int)
	delete(c.cancellations, hash)

	c.emit(events.MessageToL2Canceled{FromAddress: caller, ToAddress: new(uint256.Int).Set(to),
		Selector: new(uint256.Int).Set(selector), Payload: felt.Clone(payload), Nonce: nonce})
	c.logger.With("hash", hash.Hex()).Debug("message cancelled")
	return hash, fee, nil
}

func (c *Core) L1ToL2Messages(hash common.Hash) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.l1ToL2[hash]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (c *Core) L2ToL1Messages(hash common.Hash) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l2ToL1[hash]
}

// CancellationRequestedAt returns when a cancellation of hash was requested.
func (c *Core) CancellationRequestedAt(hash common.Hash) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.cancellations[hash]
	return ts, ok
}

// Sequencer side.

// ConsumeMessageToL2 marks an L1 -> L2 message as delivered.
func (c *Core) ConsumeMessageToL2(msg MessageToL2) error {
	_, err := c.consumeToL2(msg)
	return err
}

func (c *Core) consumeToL2(msg MessageToL2) (*uint256.Int, error) {
	hash := msg.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.l1ToL2[hash]
	if !ok || v.IsZero() {
		return nil, ErrInvalidMessageToConsume
	}
	c.l1ToL2[hash] = new(uint256.Int)
	return v, nil
}

// DeliverMessageToL2 consumes msg and runs handler. If the handler fails the
// message is restored so it stays consumable or cancellable.
func (c *Core) DeliverMessageToL2(msg MessageToL2, handler L2Handler) error {
	prev, err := c.consumeToL2(msg)
	if err != nil {
		return err
	}
	if err := handler.Handle(msg); err != nil {
		c.mu.Lock()
		c.l1ToL2[msg.Hash()] = prev
		c.mu.Unlock()
		return err
	}
	c.logger.With("hash", msg.Hash().Hex()).With("nonce", msg.Nonce).Debug("message to l2 delivered")
	return nil
}

// SendMessageFromL2 registers an L2 -> L1 message once its L2 block is proven.
func (c *Core) SendMessageFromL2(msg MessageToL1) common.Hash {
	hash := msg.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.l2ToL1[hash]++
	c.logger.With("hash", hash.Hex()).Debug("message from l2 registered")
	return hash
}

// Pending returns the registered L1 -> L2 messages not yet handed to a relay.
func (c *Core) Pending() []MessageToL2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MessageToL2, len(c.outbound))
	for i, m := range c.outbound {
		out[i] = m.Clone()
	}
	return out
}

// TakePending hands the queued L1 -> L2 messages to the caller.
func (c *Core) TakePending() []MessageToL2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outbound
	c.outbound = nil
	return out
}
