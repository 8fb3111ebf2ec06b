package proxy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compose-network/token-bridge/internal/chain"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnknownImplementation = errors.New("UNKNOWN_IMPLEMENTATION")
	ErrNotEnabledYet         = errors.New("NOT_ENABLED_YET")
	ErrFinalized             = errors.New("FINALIZED")
	ErrNoImplementation      = errors.New("NO_IMPLEMENTATION")
)

// Initializer receives the init data of an upgrade. An implementation
// initializes itself unless an external initializer (EIC) is named.
type Initializer interface {
	Initialize(initData []byte) error
}

// Spec identifies an upgrade. Every field is part of the key, so the same
// implementation added with different init data or finality is a different upgrade.
type Spec struct {
	Implementation common.Address
	EIC            common.Address
	InitData       []byte
	Final          bool
}

// Key hashes every field of s.
func (s Spec) Key() common.Hash {
	var final [1]byte
	if s.Final {
		final[0] = 1
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s.InitData)))
	return crypto.Keccak256Hash(s.Implementation.Bytes(), s.EIC.Bytes(), n[:], s.InitData, final[:])
}

// Proxy keeps a fixed address in front of a swappable implementation. Upgrades
// are announced with AddImplementation and become usable after the delay.
type Proxy[T any] struct {
	mu     sync.RWMutex
	gov    *Governance
	clock  chain.Clock
	delay  uint64
	log    *events.Log
	addr   common.Address
	logger *slog.Logger

	current     common.Address
	finalized   bool
	activations map[common.Hash]uint64
	contracts   map[common.Address]T
	eics        map[common.Address]Initializer
}

func New[T any](address common.Address, gov *Governance, clock chain.Clock, upgradeDelay uint64, log *events.Log) *Proxy[T] {
	return &Proxy[T]{
		gov:         gov,
		clock:       clock,
		delay:       upgradeDelay,
		log:         log,
		addr:        address,
		logger:      logger.Named("proxy").With("proxy", address.Hex()),
		activations: make(map[common.Hash]uint64),
		contracts:   make(map[common.Address]T),
		eics:        make(map[common.Address]Initializer),
	}
}

func (p *Proxy[T]) Address() common.Address { return p.addr }
func (p *Proxy[T]) Governance() *Governance  { return p.gov }
func (p *Proxy[T]) UpgradeDelay() uint64     { return p.delay }

func (p *Proxy[T]) emit(ev events.Event) {
	if p.log != nil {
		p.log.Emit(p.addr.Hex(), ev)
	}
}

// Deploy makes contract reachable at addr so upgrades can target it.
func (p *Proxy[T]) Deploy(addr common.Address, contract T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contracts[addr] = contract
}

// DeployEIC makes an external initializer reachable at addr.
func (p *Proxy[T]) DeployEIC(addr common.Address, eic Initializer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eics[addr] = eic
}

// AddImplementation announces s. It can be upgraded to once the delay passed.
func (p *Proxy[T]) AddImplementation(caller common.Address, s Spec) error {
	if !p.gov.IsGovernor(caller) {
		return ErrOnlyGovernor
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized {
		return ErrFinalized
	}
	p.activations[s.Key()] = p.clock.Now() + p.delay
	p.emit(events.ImplementationAdded{Implementation: s.Implementation, EIC: s.EIC, InitData: clone(s.InitData), Finalize: s.Final})
	p.logger.With("implementation", s.Implementation.Hex()).With("final", s.Final).Info("implementation added")
	return nil
}

func (p *Proxy[T]) RemoveImplementation(caller common.Address, s Spec) error {
	if !p.gov.IsGovernor(caller) {
		return ErrOnlyGovernor
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := s.Key()
	if _, ok := p.activations[key]; !ok {
		return nil
	}
	delete(p.activations, key)
	p.emit(events.ImplementationRemoved{Implementation: s.Implementation, EIC: s.EIC, InitData: clone(s.InitData), Finalize: s.Final})
	p.logger.With("implementation", s.Implementation.Hex()).Info("implementation removed")
	return nil
}

// ImplementationTime returns when s becomes usable.
func (p *Proxy[T]) ImplementationTime(s Spec) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.activations[s.Key()]
	return t, ok
}

// UpgradeTo switches to s. The first upgrade is immediate; later ones wait for
// the activation time. A final upgrade locks the proxy.
func (p *Proxy[T]) UpgradeTo(caller common.Address, s Spec) error {
	if !p.gov.IsGovernor(caller) {
		return ErrOnlyGovernor
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finalized {
		return ErrFinalized
	}
	activation, ok := p.activations[s.Key()]
	if !ok {
		return ErrUnknownImplementation
	}
	if p.current != (common.Address{}) && p.clock.Now() < activation {
		return ErrNotEnabledYet
	}

	init, err := p.initializer(s)
	if err != nil {
		return err
	}
	if init != nil {
		if err := init.Initialize(clone(s.InitData)); err != nil {
			return fmt.Errorf("failed to initialize implementation: %w", err)
		}
	}

	p.current = s.Implementation
	p.emit(events.Upgraded{Implementation: s.Implementation})
	if s.Final {
		p.finalized = true
		p.emit(events.FinalizedImplementation{Implementation: s.Implementation})
	}
	p.logger.With("implementation", s.Implementation.Hex()).With("final", s.Final).Info("proxy upgraded")
	return nil
}

func (p *Proxy[T]) initializer(s Spec) (Initializer, error) {
	if s.EIC != (common.Address{}) {
		eic, ok := p.eics[s.EIC]
		if !ok {
			return nil, fmt.Errorf("%w: no initializer at %s", ErrUnknownImplementation, s.EIC.Hex())
		}
		return eic, nil
	}
	c, ok := p.contracts[s.Implementation]
	if !ok {
		return nil, nil
	}
	if init, ok := any(c).(Initializer); ok {
		return init, nil
	}
	return nil, nil
}

// Implementation is the current implementation address, zero before the first upgrade.
func (p *Proxy[T]) Implementation() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

func (p *Proxy[T]) Finalized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.finalized
}

// Current returns the contract behind the proxy.
func (p *Proxy[T]) Current() (T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.contracts[p.current]
	if p.current == (common.Address{}) || !ok {
		var zero T
		return zero, ErrNoImplementation
	}
	return c, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
