package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type Role string

const (
	GovernanceAdmin Role = "GOVERNANCE_ADMIN"
	AppRoleAdmin    Role = "APP_ROLE_ADMIN"
	AppGovernor     Role = "APP_GOVERNOR"
	TokenAdmin      Role = "TOKEN_ADMIN"
	SecurityAgent   Role = "SECURITY_AGENT"
	SecurityAdmin   Role = "SECURITY_ADMIN"
	Manager         Role = "MANAGER"
)

var (
	ErrOnlyGovernance    = errors.New("ONLY_GOVERNANCE")
	ErrOnlyAppGovernor   = errors.New("ONLY_APP_GOVERNOR")
	ErrOnlyTokenAdmin    = errors.New("ONLY_TOKEN_ADMIN")
	ErrOnlySecurityAgent = errors.New("ONLY_SECURITY_AGENT")
	ErrOnlySecurityAdmin = errors.New("ONLY_SECURITY_ADMIN")
	ErrOnlyManager       = errors.New("ONLY_MANAGER")
	ErrOnlyRoleAdmin     = errors.New("ONLY_ROLE_ADMIN")
)

var roleErrors = map[Role]error{
	GovernanceAdmin: ErrOnlyGovernance,
	AppRoleAdmin:    ErrOnlyRoleAdmin,
	AppGovernor:     ErrOnlyAppGovernor,
	TokenAdmin:      ErrOnlyTokenAdmin,
	SecurityAgent:   ErrOnlySecurityAgent,
	SecurityAdmin:   ErrOnlySecurityAdmin,
	Manager:         ErrOnlyManager,
}

// adminOf is the role allowed to grant and revoke each role.
var adminOf = map[Role]Role{
	GovernanceAdmin: GovernanceAdmin,
	AppRoleAdmin:    GovernanceAdmin,
	SecurityAdmin:   SecurityAdmin,
	SecurityAgent:   SecurityAdmin,
	AppGovernor:     AppRoleAdmin,
	TokenAdmin:      AppRoleAdmin,
	Manager:         GovernanceAdmin,
}

// Roles is a role-based access table shared by the contracts of one chain.
type Roles struct {
	mu      sync.RWMutex
	members map[Role]map[common.Address]struct{}
}

// NewRoles creates a table where governor holds every administrative role.
func NewRoles(governor common.Address) *Roles {
	r := &Roles{members: make(map[Role]map[common.Address]struct{})}
	for _, role := range []Role{GovernanceAdmin, AppRoleAdmin, SecurityAdmin} {
		r.add(role, governor)
	}
	return r
}

func (r *Roles) add(role Role, account common.Address) {
	set, ok := r.members[role]
	if !ok {
		set = make(map[common.Address]struct{})
		r.members[role] = set
	}
	set[account] = struct{}{}
}

// Has reports whether account holds role.
func (r *Roles) Has(role Role, account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[role][account]
	return ok
}

// Require returns the role's ONLY_* error unless account holds role.
func (r *Roles) Require(role Role, account common.Address) error {
	if r.Has(role, account) {
		return nil
	}
	if err, ok := roleErrors[role]; ok {
		return err
	}
	return fmt.Errorf("missing role %s", role)
}

// Grant gives role to account. The caller must hold the role's admin role.
func (r *Roles) Grant(caller common.Address, role Role, account common.Address) error {
	if err := r.Require(adminOf[role], caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(role, account)
	return nil
}

// Revoke removes role from account. The caller must hold the role's admin role.
func (r *Roles) Revoke(caller common.Address, role Role, account common.Address) error {
	if err := r.Require(adminOf[role], caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[role], account)
	return nil
}
