package common

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	rootAdmin = common.HexToAddress("0x0000000000000000000000000000000000000001")
	operator  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	outsider  = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func TestRoleSetDefaultAdminPassesEveryGate(t *testing.T) {
	roles := NewRoleSet(rootAdmin)

	for _, capability := range []string{CapAdmin, CapSupplyController, CapAssetProtector, CapTreasurer, CapPauser, CapManager} {
		if !roles.Allow(rootAdmin, capability) {
			t.Fatalf("default admin denied %q", capability)
		}
		if roles.Allow(outsider, capability) {
			t.Fatalf("outsider allowed %q", capability)
		}
	}
}

func TestRoleSetExactGrant(t *testing.T) {
	roles := NewRoleSet(rootAdmin)
	roles.Grant(CapPauser, operator)

	if !roles.Allow(operator, CapPauser) {
		t.Fatalf("granted capability denied")
	}
	if roles.Allow(operator, CapTreasurer) {
		t.Fatalf("ungranted capability allowed")
	}

	roles.Revoke(CapPauser, operator)
	if roles.Allow(operator, CapPauser) {
		t.Fatalf("revoked capability still allowed")
	}
}

func TestRoleSetAdminGrantCoversOtherCapabilities(t *testing.T) {
	roles := NewRoleSet(rootAdmin)
	roles.Grant(CapAdmin, operator)

	if !roles.Allow(operator, CapSupplyController) {
		t.Fatalf("admin grant denied supply control")
	}
	if !roles.Allow(operator, CapPauser) {
		t.Fatalf("admin grant denied pause")
	}
}

func TestWhitelistRequiresExactGrant(t *testing.T) {
	roles := NewRoleSet(rootAdmin)

	// The whitelist marks fee exemption; holding admin does not imply it.
	if roles.Allow(rootAdmin, CapWhitelisted) {
		t.Fatalf("default admin implicitly whitelisted")
	}
	roles.Grant(CapWhitelisted, operator)
	if !roles.Allow(operator, CapWhitelisted) {
		t.Fatalf("whitelisted address denied")
	}
}
