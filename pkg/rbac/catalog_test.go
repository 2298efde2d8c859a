package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolesOrderedByPrecedence(t *testing.T) {
	roles := Roles()
	require.NotEmpty(t, roles)

	for i := 1; i < len(roles); i++ {
		assert.GreaterOrEqual(t, roles[i-1].Rank, roles[i].Rank,
			"%s must not outrank %s", roles[i].Name, roles[i-1].Name)
	}

	assert.Equal(t, RoleSuperAdmin, roles[0].Name)
	assert.Equal(t, RoleStudent, roles[len(roles)-1].Name)
}

func TestRoleRanksAreUnique(t *testing.T) {
	seen := make(map[int]string)
	for _, role := range Roles() {
		if other, dup := seen[role.Rank]; dup {
			t.Fatalf("roles %s and %s share rank %d", role.Name, other, role.Rank)
		}
		seen[role.Rank] = role.Name
	}
}

func TestSuperAdminHoldsEveryPermission(t *testing.T) {
	super, ok := LookupRole(RoleSuperAdmin)
	require.True(t, ok)

	set := PermissionsFor([]string{RoleSuperAdmin})
	for _, p := range allPermissions() {
		assert.True(t, set.Has(p), "super_admin missing %s", p)
	}
	assert.Len(t, super.Permissions, len(allPermissions()))
}

func TestEveryModuleHasGrantingPermissions(t *testing.T) {
	for _, m := range Modules() {
		assert.NotEmpty(t, ModuleGrants(m), "module %s has no granting permissions", m)
		assert.NotEmpty(t, ModuleDisplayName(m))
	}
}

func TestModuleDisplayNameFallsBackToIdentifier(t *testing.T) {
	assert.Equal(t, "bogus", ModuleDisplayName(Module("bogus")))
}

func TestLookupRoleUnknown(t *testing.T) {
	_, ok := LookupRole("chancellor")
	assert.False(t, ok)
	assert.False(t, IsKnownRole("chancellor"))
}
