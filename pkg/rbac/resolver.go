package rbac

import "sort"

// PermissionSet is the resolved union of permissions from a set of
// roles. The zero value is usable and grants nothing.
type PermissionSet map[Permission]struct{}

// Has reports whether the set contains p.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether the set contains at least one of perms.
// An empty perms list is vacuously false: no requirement means no grant.
func (s PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// List returns the permissions in the set in a stable order.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionsFor resolves role names to the union of their permissions.
// Unknown role names contribute nothing.
func PermissionsFor(roleNames []string) PermissionSet {
	set := make(PermissionSet)
	for _, name := range roleNames {
		role, ok := catalog[name]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			set[p] = struct{}{}
		}
	}
	return set
}

// HasPermission reports whether any of the named roles grants p.
func HasPermission(roleNames []string, p Permission) bool {
	for _, name := range roleNames {
		role, ok := catalog[name]
		if !ok {
			continue
		}
		for _, rp := range role.Permissions {
			if rp == p {
				return true
			}
		}
	}
	return false
}

// CanAccessModule reports whether the resolved permission set unlocks
// the module. Access is always derived from permissions, never from
// role names.
func CanAccessModule(set PermissionSet, m Module) bool {
	return set.HasAny(moduleGrants[m]...)
}

// HighestRole returns the highest-precedence known role among
// roleNames, or NoRole when the list holds no known role.
func HighestRole(roleNames []string) string {
	best := NoRole
	bestRank := -1
	for _, name := range roleNames {
		role, ok := catalog[name]
		if !ok {
			continue
		}
		if role.Rank > bestRank {
			best = role.Name
			bestRank = role.Rank
		}
	}
	return best
}

// DisplayName returns the catalog display name for a role. The NoRole
// sentinel maps to "No Role"; a name outside the catalog falls back to
// the raw identifier.
func DisplayName(roleName string) string {
	if role, ok := catalog[roleName]; ok {
		return role.DisplayName
	}
	if roleName == NoRole {
		return "No Role"
	}
	return roleName
}

// ManagementScope describes how far a user's user-management powers
// reach.
type ManagementScope int

const (
	// ScopeNone grants no user management at all.
	ScopeNone ManagementScope = iota
	// ScopeDepartment limits management to the user's own departments.
	ScopeDepartment
	// ScopeAll allows managing any user.
	ScopeAll
)

// ManagementScopeFor derives the widest management scope the roles
// grant.
func ManagementScopeFor(set PermissionSet) ManagementScope {
	switch {
	case set.Has(PermManageUsersAll):
		return ScopeAll
	case set.Has(PermManageUsersDepartment):
		return ScopeDepartment
	default:
		return ScopeNone
	}
}

// CanManageUsers reports whether the roles grant user management at
// least at the requested scope. All-scope covers department scope.
func CanManageUsers(roleNames []string, scope ManagementScope) bool {
	return ManagementScopeFor(PermissionsFor(roleNames)) >= scope
}

// Document types and review levels understood by CanApprove. The
// values match the approval workflow's document type identifiers.
const (
	DocTypeLessonPlanner = "lesson_planner"
	DocTypeWorkDiary     = "work_diary"
)

// CanApprove reports whether the roles can take the given review stage
// for a document type. Lesson planners have a single stage; work
// diaries have two, the head of department then the principal.
func CanApprove(roleNames []string, docType string, level int) bool {
	perms := PermissionsFor(roleNames)
	switch docType {
	case DocTypeLessonPlanner:
		return level == 1 && perms.Has(PermApproveLessonPlanner)
	case DocTypeWorkDiary:
		switch level {
		case 1:
			return perms.Has(PermApproveWorkDiaryHOD)
		case 2:
			return perms.Has(PermApproveWorkDiaryPrin)
		}
	}
	return false
}
