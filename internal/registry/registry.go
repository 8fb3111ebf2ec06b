package registry

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/compose-network/token-bridge/internal/access"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

// BlockedToken is the registry entry of tokens that were blocked or deactivated.
var BlockedToken = common.BigToAddress(common.Big1)

var (
	ErrTokenAlreadyEnrolled = errors.New("TOKEN_ALREADY_ENROLLED")
	ErrBridgeMismatch       = errors.New("BRIDGE_MISMATCH_CANNOT_REMOVE_TOKEN")
	ErrTokenStillServiced   = errors.New("TOKEN_IS_STILL_SERVICED")
)

// Servicer is a bridge as seen by the registry.
type Servicer interface {
	Address() common.Address
	IsServicingToken(token common.Address) bool
}

// Registry maps each token to the bridge servicing it and remembers every
// bridge that ever did.
type Registry struct {
	mu      sync.RWMutex
	address common.Address
	manager common.Address
	log     *events.Log
	logger  *slog.Logger

	bridges           map[common.Address]common.Address
	withdrawalBridges map[common.Address][]common.Address
}

func NewRegistry(address, manager common.Address, log *events.Log) *Registry {
	return &Registry{
		address:           address,
		manager:           manager,
		log:               log,
		logger:            logger.Named("registry"),
		bridges:           make(map[common.Address]common.Address),
		withdrawalBridges: make(map[common.Address][]common.Address),
	}
}

func (r *Registry) Address() common.Address { return r.address }

func (r *Registry) emit(ev events.Event) {
	if r.log != nil {
		r.log.Emit(r.address.Hex(), ev)
	}
}

// GetBridge returns the bridge servicing token, BlockedToken, or the zero address.
func (r *Registry) GetBridge(token common.Address) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bridges[token]
}

// GetWithdrawalBridges lists every bridge that ever serviced token, oldest first.
func (r *Registry) GetWithdrawalBridges(token common.Address) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.withdrawalBridges[token])
}

// Status derives the registry-level lifecycle state of token. A blocked entry
// with bridge history is a deactivated token.
func (r *Registry) Status(token common.Address) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status(token)
}

func (r *Registry) status(token common.Address) Status {
	switch b := r.bridges[token]; {
	case b == (common.Address{}):
		return Unknown
	case b == BlockedToken && len(r.withdrawalBridges[token]) > 0:
		return Deactivated
	case b == BlockedToken:
		return Blocked
	default:
		return Active
	}
}

// EnlistToken maps token to bridge. Only the manager may call it.
func (r *Registry) EnlistToken(caller, token, bridge common.Address) error {
	if caller != r.manager {
		return access.ErrOnlyManager
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.bridges[token]; cur != (common.Address{}) && cur != BlockedToken {
		return ErrTokenAlreadyEnrolled
	}
	r.bridges[token] = bridge
	if !slices.Contains(r.withdrawalBridges[token], bridge) {
		r.withdrawalBridges[token] = append(r.withdrawalBridges[token], bridge)
	}

	r.emit(events.TokenEnlisted{Token: token, Bridge: bridge})
	r.logger.With("token", token.Hex()).With("bridge", bridge.Hex()).Debug("token enlisted")
	return nil
}

// BlockToken marks token as never to be serviced. Only the manager may call it.
func (r *Registry) BlockToken(caller, token common.Address) error {
	if caller != r.manager {
		return access.ErrOnlyManager
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bridges[token] = BlockedToken
	r.emit(events.TokenBlocked{Token: token})
	r.logger.With("token", token.Hex()).Debug("token blocked")
	return nil
}

// DeactivateToken detaches the servicing bridge. Its withdrawal history stays.
func (r *Registry) DeactivateToken(caller, token common.Address) error {
	if caller != r.manager {
		return access.ErrOnlyManager
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bridges[token] = BlockedToken
	r.emit(events.TokenDeactivated{Token: token})
	r.logger.With("token", token.Hex()).Debug("token deactivated")
	return nil
}

// SelfRemove lets a bridge give up a token it no longer services.
func (r *Registry) SelfRemove(caller Servicer, token common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bridges[token] != caller.Address() {
		return ErrBridgeMismatch
	}
	if caller.IsServicingToken(token) {
		return ErrTokenStillServiced
	}
	delete(r.bridges, token)
	r.emit(events.TokenSelfRemoved{Token: token})
	r.logger.With("token", token.Hex()).With("bridge", caller.Address().Hex()).Info("token self removed")
	return nil
}
