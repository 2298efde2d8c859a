package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func resolvedSnapshot(roles ...string) *Snapshot {
	return &Snapshot{
		UserID:      1,
		RoleNames:   roles,
		Permissions: PermissionsFor(roles),
		Resolved:    true,
	}
}

func TestEvaluateNilSnapshotIsPending(t *testing.T) {
	assert.Equal(t, OutcomePending, Evaluate(nil, Requirement{Module: ModuleEvents}))
}

func TestEvaluateUnresolvedSnapshotIsPending(t *testing.T) {
	snap := &Snapshot{UserID: 1, Resolved: false}
	// Pending even when the requirement would otherwise deny: unknown
	// state must never surface as a refusal.
	assert.Equal(t, OutcomePending, Evaluate(snap, Requirement{Module: ModuleFees}))
	assert.Equal(t, OutcomePending, Evaluate(snap, Requirement{}))
}

func TestEvaluateModule(t *testing.T) {
	principal := resolvedSnapshot(RolePrincipal)
	student := resolvedSnapshot(RoleStudent)

	assert.Equal(t, OutcomeGranted, Evaluate(principal, Requirement{Module: ModuleEvents}))
	assert.Equal(t, OutcomeDenied, Evaluate(student, Requirement{Module: ModuleEvents}))
}

func TestEvaluatePermission(t *testing.T) {
	hod := resolvedSnapshot(RoleHOD)

	assert.Equal(t, OutcomeGranted, Evaluate(hod, Requirement{
		AnyPermission: []Permission{PermApproveLessonPlanner},
	}))
	assert.Equal(t, OutcomeDenied, Evaluate(hod, Requirement{
		AnyPermission: []Permission{PermManageFees},
	}))
}

func TestEvaluateAnyOfSeveralPermissions(t *testing.T) {
	teacher := resolvedSnapshot(RoleTeacher)
	assert.Equal(t, OutcomeGranted, Evaluate(teacher, Requirement{
		AnyPermission: []Permission{PermManageFees, PermSubmitWorkDiary},
	}))
}

func TestEvaluateCategoriesCombineWithAnd(t *testing.T) {
	teacher := resolvedSnapshot(RoleTeacher)
	// Module passes but the role requirement does not.
	assert.Equal(t, OutcomeDenied, Evaluate(teacher, Requirement{
		Module:  ModulePlannerDiary,
		AnyRole: []string{RoleHOD},
	}))
}

func TestEvaluateEmptyRequirementGrantsResolved(t *testing.T) {
	assert.Equal(t, OutcomeGranted, Evaluate(resolvedSnapshot(RoleStudent), Requirement{}))
}

// Every evaluation lands in exactly one of the three outcomes, and
// pending and denied are never interchangeable.
func TestEvaluateOutcomeExclusive(t *testing.T) {
	requirements := []Requirement{
		{},
		{Module: ModuleEvents},
		{AnyPermission: []Permission{PermManageFees}},
		{AnyRole: []string{RolePrincipal}},
	}
	snapshots := []*Snapshot{
		nil,
		{UserID: 1, Resolved: false},
		resolvedSnapshot(),
		resolvedSnapshot(RoleStudent),
		resolvedSnapshot(RolePrincipal),
		resolvedSnapshot(RoleSuperAdmin),
	}
	for _, req := range requirements {
		for _, snap := range snapshots {
			outcome := Evaluate(snap, req)
			assert.Contains(t, []Outcome{OutcomePending, OutcomeDenied, OutcomeGranted}, outcome)
			if snap == nil || !snap.Resolved {
				assert.Equal(t, OutcomePending, outcome)
			} else {
				assert.NotEqual(t, OutcomePending, outcome)
			}
		}
	}
}

func TestDenialMessageUsesModuleDisplayName(t *testing.T) {
	assert.Equal(t, "You do not have permission to access Events.",
		Requirement{Module: ModuleEvents}.DenialMessage())
	assert.Equal(t, "You do not have permission to access User Management.",
		Requirement{Module: ModuleUserManagement}.DenialMessage())
	assert.Equal(t, "You do not have permission to perform this action.",
		Requirement{AnyPermission: []Permission{PermManageFees}}.DenialMessage())
	assert.Equal(t, "custom", Requirement{Module: ModuleEvents, DeniedMessage: "custom"}.DenialMessage())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", OutcomePending.String())
	assert.Equal(t, "denied", OutcomeDenied.String())
	assert.Equal(t, "granted", OutcomeGranted.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
