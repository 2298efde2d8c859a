package approval

import "github.com/campuskit/campus/pkg/rbac"

// transitions enumerates every legal state change per document type.
// Anything absent here is illegal, including decisions on terminal
// states.
var transitions = map[DocType]map[Status][]Status{
	DocLessonPlanner: {
		StatusDraft:     {StatusSubmitted},
		StatusSubmitted: {StatusApproved, StatusRejected},
	},
	DocWorkDiary: {
		StatusDraft:       {StatusSubmitted},
		StatusSubmitted:   {StatusHODApproved, StatusRejected},
		StatusHODApproved: {StatusPrincipalApproved, StatusRejected},
	},
}

// CanTransition reports whether from -> to is legal for the type.
func CanTransition(t DocType, from, to Status) bool {
	for _, next := range transitions[t][from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func IsTerminal(t DocType, s Status) bool {
	return len(transitions[t][s]) == 0
}

// NextOnApprove returns the status an approval moves the document to
// from its current status. ok is false when the status accepts no
// approval, such as a draft or a terminal state.
func NextOnApprove(t DocType, from Status) (Status, bool) {
	switch t {
	case DocLessonPlanner:
		if from == StatusSubmitted {
			return StatusApproved, true
		}
	case DocWorkDiary:
		switch from {
		case StatusSubmitted:
			return StatusHODApproved, true
		case StatusHODApproved:
			return StatusPrincipalApproved, true
		}
	}
	return "", false
}

// approvalPermission returns the permission required to approve or
// reject a document sitting in the given status.
func approvalPermission(t DocType, from Status) (rbac.Permission, bool) {
	switch t {
	case DocLessonPlanner:
		if from == StatusSubmitted {
			return rbac.PermApproveLessonPlanner, true
		}
	case DocWorkDiary:
		switch from {
		case StatusSubmitted:
			return rbac.PermApproveWorkDiaryHOD, true
		case StatusHODApproved:
			return rbac.PermApproveWorkDiaryPrin, true
		}
	}
	return "", false
}

// PendingStatusesFor returns the document statuses an approver with
// the given permissions is responsible for, in review order. A
// first-stage approver sees submitted documents; a final-stage diary
// approver sees hod_approved ones. Holding both sees both.
func PendingStatusesFor(t DocType, perms rbac.PermissionSet) []Status {
	var out []Status
	switch t {
	case DocLessonPlanner:
		if perms.Has(rbac.PermApproveLessonPlanner) {
			out = append(out, StatusSubmitted)
		}
	case DocWorkDiary:
		if perms.Has(rbac.PermApproveWorkDiaryHOD) {
			out = append(out, StatusSubmitted)
		}
		if perms.Has(rbac.PermApproveWorkDiaryPrin) {
			out = append(out, StatusHODApproved)
		}
	}
	return out
}
