package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/token-bridge/internal/access"
	"github.com/compose-network/token-bridge/internal/events"
	"github.com/compose-network/token-bridge/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrCannotDeployBridge       = errors.New("CANNOT_DEPLOY_BRIDGE")
	ErrTokenNotEnrolled         = errors.New("TOKEN_NOT_ENROLLED")
	ErrTokenAlreadyDeactivated  = errors.New("TOKEN_ALREADY_DEACTIVATED")
	ErrTokenAlreadyBlocked      = errors.New("TOKEN_ALREADY_BLOCKED")
	ErrCannotBlockTokenInUse    = errors.New("CANNOT_BLOCK_TOKEN_IN_SERVICE")
	ErrCannotBlockDeactivated   = errors.New("CANNOT_BLOCK_DEACTIVATED_TOKEN")
	ErrEnrollmentFeeNotProvided = errors.New("ENROLLMENT_FEE_NOT_PROVIDED")
)

// Enroller is the multi-token bridge new tokens are enrolled on.
type Enroller interface {
	Address() common.Address
	// EnrollToken starts the L2 deployment of token, paying fee from payer.
	EnrollToken(caller, payer, token common.Address, fee *uint256.Int) (common.Hash, error)
}

// Manager is the administrative gateway to the registry.
type Manager struct {
	address  common.Address
	registry *Registry
	bridge   Enroller
	roles    *access.Roles
	log      *events.Log
	logger   *slog.Logger
}

func NewManager(address common.Address, registry *Registry, bridge Enroller, roles *access.Roles, log *events.Log) *Manager {
	return &Manager{
		address:  address,
		registry: registry,
		bridge:   bridge,
		roles:    roles,
		log:      log,
		logger:   logger.Named("manager"),
	}
}

func (m *Manager) Address() common.Address { return m.address }

// EnrollTokenBridge enrolls token on the manager's bridge. Anyone may enroll
// an unknown token by paying the deployment message fee.
func (m *Manager) EnrollTokenBridge(caller, token common.Address, fee *uint256.Int) (common.Hash, error) {
	switch m.registry.GetBridge(token) {
	case common.Address{}:
	case BlockedToken:
		return common.Hash{}, ErrCannotDeployBridge
	default:
		return common.Hash{}, ErrTokenAlreadyEnrolled
	}
	if fee == nil || fee.IsZero() {
		return common.Hash{}, ErrEnrollmentFeeNotProvided
	}

	hash, err := m.bridge.EnrollToken(m.address, caller, token, fee)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to enroll token on bridge: %w", err)
	}
	if err := m.registry.EnlistToken(m.address, token, m.bridge.Address()); err != nil {
		return common.Hash{}, fmt.Errorf("failed to enlist token: %w", err)
	}

	m.logger.With("token", token.Hex()).With("deployment_msg", hash.Hex()).Info("token enrollment initiated")
	return hash, nil
}

// AddExistingBridge attaches an already deployed bridge to token.
func (m *Manager) AddExistingBridge(caller, token, bridge common.Address) error {
	if err := m.roles.Require(access.TokenAdmin, caller); err != nil {
		return err
	}
	if cur := m.registry.GetBridge(token); cur != (common.Address{}) && cur != BlockedToken {
		return ErrTokenAlreadyEnrolled
	}
	if err := m.registry.EnlistToken(m.address, token, bridge); err != nil {
		return err
	}
	if m.log != nil {
		m.log.Emit(m.address.Hex(), events.ExistingBridgeAdded{Token: token, Bridge: bridge})
	}
	m.logger.With("token", token.Hex()).With("bridge", bridge.Hex()).Info("existing bridge added")
	return nil
}

// DeactivateToken stops new deposits of token. Withdrawals through its
// historical bridges keep working.
func (m *Manager) DeactivateToken(caller, token common.Address) error {
	if err := m.roles.Require(access.TokenAdmin, caller); err != nil {
		return err
	}
	switch m.registry.Status(token) {
	case Unknown:
		return ErrTokenNotEnrolled
	case Deactivated:
		return ErrTokenAlreadyDeactivated
	case Blocked:
		return ErrTokenAlreadyBlocked
	}
	if err := m.registry.DeactivateToken(m.address, token); err != nil {
		return err
	}
	m.logger.With("token", token.Hex()).Info("token deactivated")
	return nil
}

// BlockToken prevents token from ever being enrolled.
func (m *Manager) BlockToken(caller, token common.Address) error {
	if err := m.roles.Require(access.TokenAdmin, caller); err != nil {
		return err
	}
	switch m.registry.Status(token) {
	case Blocked:
		return ErrTokenAlreadyBlocked
	case Deactivated:
		return ErrCannotBlockDeactivated
	case Active:
		return ErrCannotBlockTokenInUse
	}
	if err := m.registry.BlockToken(m.address, token); err != nil {
		return err
	}
	m.logger.With("token", token.Hex()).Info("token blocked")
	return nil
}
