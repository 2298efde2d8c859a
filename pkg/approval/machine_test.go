package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campuskit/campus/pkg/rbac"
)

func TestPlannerTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusDraft, StatusApproved, false},
		{StatusDraft, StatusRejected, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusSubmitted, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusRejected, StatusApproved, false},
		// Diary-only statuses are illegal for planners.
		{StatusSubmitted, StatusHODApproved, false},
		{StatusHODApproved, StatusPrincipalApproved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(DocLessonPlanner, tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestDiaryTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusHODApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusHODApproved, StatusPrincipalApproved, true},
		{StatusHODApproved, StatusRejected, true},
		// Stages cannot be skipped or reversed.
		{StatusSubmitted, StatusPrincipalApproved, false},
		{StatusDraft, StatusHODApproved, false},
		{StatusHODApproved, StatusSubmitted, false},
		{StatusPrincipalApproved, StatusRejected, false},
		{StatusPrincipalApproved, StatusSubmitted, false},
		{StatusRejected, StatusSubmitted, false},
		// Planner-only status is illegal for diaries.
		{StatusSubmitted, StatusApproved, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(DocWorkDiary, tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, IsTerminal(DocLessonPlanner, StatusApproved))
	assert.True(t, IsTerminal(DocWorkDiary, StatusPrincipalApproved))
	assert.False(t, IsTerminal(DocWorkDiary, StatusHODApproved))
	assert.True(t, IsTerminal(DocLessonPlanner, StatusRejected))
	assert.True(t, IsTerminal(DocWorkDiary, StatusRejected))
}

func TestNextOnApprove(t *testing.T) {
	next, ok := NextOnApprove(DocLessonPlanner, StatusSubmitted)
	assert.True(t, ok)
	assert.Equal(t, StatusApproved, next)

	next, ok = NextOnApprove(DocWorkDiary, StatusSubmitted)
	assert.True(t, ok)
	assert.Equal(t, StatusHODApproved, next)

	next, ok = NextOnApprove(DocWorkDiary, StatusHODApproved)
	assert.True(t, ok)
	assert.Equal(t, StatusPrincipalApproved, next)

	_, ok = NextOnApprove(DocWorkDiary, StatusDraft)
	assert.False(t, ok)
	_, ok = NextOnApprove(DocLessonPlanner, StatusApproved)
	assert.False(t, ok)
	_, ok = NextOnApprove(DocWorkDiary, StatusPrincipalApproved)
	assert.False(t, ok)
}

// The review queue a user sees follows from the approval permissions
// they hold, stage by stage.
func TestPendingStatusesFor(t *testing.T) {
	hod := rbac.PermissionsFor([]string{rbac.RoleHOD})
	principal := rbac.PermissionsFor([]string{rbac.RolePrincipal})
	teacher := rbac.PermissionsFor([]string{rbac.RoleTeacher})
	super := rbac.PermissionsFor([]string{rbac.RoleSuperAdmin})

	assert.Equal(t, []Status{StatusSubmitted}, PendingStatusesFor(DocLessonPlanner, hod))
	assert.Equal(t, []Status{StatusSubmitted}, PendingStatusesFor(DocWorkDiary, hod))
	assert.Equal(t, []Status{StatusHODApproved}, PendingStatusesFor(DocWorkDiary, principal))
	assert.Empty(t, PendingStatusesFor(DocWorkDiary, teacher))
	assert.Empty(t, PendingStatusesFor(DocLessonPlanner, teacher))
	assert.Equal(t, []Status{StatusSubmitted, StatusHODApproved}, PendingStatusesFor(DocWorkDiary, super))
}

func TestDocTypeValid(t *testing.T) {
	assert.True(t, DocLessonPlanner.Valid())
	assert.True(t, DocWorkDiary.Valid())
	assert.False(t, DocType("memo").Valid())
}
