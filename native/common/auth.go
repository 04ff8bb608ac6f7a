package common

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotAuthorized is the shared rejection for every capability-gated entry
// point across the economy modules.
var ErrNotAuthorized = errors.New("Not Authorize to call this function")

// Capabilities recognised by the economy modules. Modules consume these as
// opaque strings through the Authorizer predicate; no hierarchy is assumed.
const (
	CapAdmin            = "admin"
	CapSupplyController = "supplyController"
	CapAssetProtector   = "assetProtector"
	CapTreasurer        = "treasurer"
	CapPauser           = "pauser"
	CapWhitelisted      = "whitelisted"
	CapManager          = "manager"
)

// Authorizer answers whether a caller holds a capability. Engines accept any
// implementation; RoleSet below is the default.
type Authorizer interface {
	Allow(caller common.Address, capability string) bool
}

// RoleSet is a map-backed Authorizer. The default admin and anyone granted
// CapAdmin pass every capability check; other grants are exact.
type RoleSet struct {
	mu           sync.RWMutex
	defaultAdmin common.Address
	grants       map[string]map[common.Address]struct{}
}

// NewRoleSet builds a role set rooted at the supplied default admin.
func NewRoleSet(defaultAdmin common.Address) *RoleSet {
	return &RoleSet{
		defaultAdmin: defaultAdmin,
		grants:       make(map[string]map[common.Address]struct{}),
	}
}

// Grant adds a capability for the address. Granting twice is a no-op.
func (r *RoleSet) Grant(capability string, addr common.Address) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	holders, ok := r.grants[capability]
	if !ok {
		holders = make(map[common.Address]struct{})
		r.grants[capability] = holders
	}
	holders[addr] = struct{}{}
}

// Revoke removes a capability from the address if present.
func (r *RoleSet) Revoke(capability string, addr common.Address) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if holders, ok := r.grants[capability]; ok {
		delete(holders, addr)
	}
}

// Allow implements the Authorizer interface. CapWhitelisted is a membership
// marker, not an admin gate, so only an exact grant satisfies it; every other
// capability is also satisfied by the default admin or a CapAdmin grant.
func (r *RoleSet) Allow(caller common.Address, capability string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if capability == CapWhitelisted {
		_, ok := r.grants[capability][caller]
		return ok
	}
	if caller == r.defaultAdmin {
		return true
	}
	if _, ok := r.grants[CapAdmin][caller]; ok {
		return true
	}
	_, ok := r.grants[capability][caller]
	return ok
}
