package proxy

import (
	"errors"
	"sync"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrOnlyGovernor    = errors.New("ONLY_GOVERNOR")
	ErrZeroAddress     = errors.New("ZERO_ADDRESS")
	ErrAlreadyGovernor = errors.New("ALREADY_GOVERNOR")
	ErrNotCandidate    = errors.New("NOT_A_GOVERNANCE_CANDIDATE")
	ErrSelfRemove      = errors.New("SELF_REMOVE")
)

// Governance is a two-step governor set: a governor nominates, the nominee accepts.
type Governance struct {
	mu         sync.RWMutex
	governors  map[common.Address]struct{}
	candidates map[common.Address]struct{}
	log        *events.Log
	emitter    string
}

func NewGovernance(initial common.Address, log *events.Log, emitter common.Address) (*Governance, error) {
	if initial == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	return &Governance{
		governors:  map[common.Address]struct{}{initial: {}},
		candidates: make(map[common.Address]struct{}),
		log:        log,
		emitter:    emitter.Hex(),
	}, nil
}

func (g *Governance) emit(ev events.Event) {
	if g.log != nil {
		g.log.Emit(g.emitter, ev)
	}
}

func (g *Governance) IsGovernor(account common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.governors[account]
	return ok
}

func (g *Governance) require(caller common.Address) error {
	if _, ok := g.governors[caller]; !ok {
		return ErrOnlyGovernor
	}
	return nil
}

func (g *Governance) Nominate(caller, nominee common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.require(caller); err != nil {
		return err
	}
	if nominee == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, ok := g.governors[nominee]; ok {
		return ErrAlreadyGovernor
	}
	g.candidates[nominee] = struct{}{}
	g.emit(events.GovernorNominated{Nominee: nominee, NominatedBy: caller})
	return nil
}

// CancelNomination is a no-op for accounts that were never nominated.
func (g *Governance) CancelNomination(caller, nominee common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.require(caller); err != nil {
		return err
	}
	if _, ok := g.candidates[nominee]; !ok {
		return nil
	}
	delete(g.candidates, nominee)
	g.emit(events.NominationCancelled{Nominee: nominee, CancelledBy: caller})
	return nil
}

func (g *Governance) Accept(caller common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.candidates[caller]; !ok {
		return ErrNotCandidate
	}
	delete(g.candidates, caller)
	g.governors[caller] = struct{}{}
	g.emit(events.GovernanceAccepted{Governor: caller})
	return nil
}

func (g *Governance) Remove(caller, governor common.Address) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.require(caller); err != nil {
		return err
	}
	if caller == governor {
		return ErrSelfRemove
	}
	if _, ok := g.governors[governor]; !ok {
		return nil
	}
	delete(g.governors, governor)
	g.emit(events.GovernorRemoved{Governor: governor, RemovedBy: caller})
	return nil
}
