package rbac

import "fmt"

// Outcome is the result of evaluating a gate against a snapshot.
// Evaluation yields exactly one outcome; Pending and Denied are never
// conflated so callers can distinguish "try again" from "no".
type Outcome int

const (
	// OutcomePending means the authorization state is not yet known.
	OutcomePending Outcome = iota
	// OutcomeDenied means the state is known and access is refused.
	OutcomeDenied
	// OutcomeGranted means the state is known and access is allowed.
	OutcomeGranted
)

// String implements fmt.Stringer for log and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeDenied:
		return "denied"
	case OutcomeGranted:
		return "granted"
	default:
		return "unknown"
	}
}

// Requirement declares what a gate demands. Set categories are
// combined with AND; within a category any single match suffices.
// An entirely empty requirement grants to any resolved snapshot.
type Requirement struct {
	// Module, when set, requires access to the module as derived from
	// the snapshot's permissions.
	Module Module
	// AnyPermission, when non-empty, requires at least one listed
	// permission.
	AnyPermission []Permission
	// AnyRole, when non-empty, requires at least one listed role.
	AnyRole []string
	// DeniedMessage overrides the default denial message.
	DeniedMessage string
}

// DenialMessage returns the message shown when the requirement denies.
func (r Requirement) DenialMessage() string {
	if r.DeniedMessage != "" {
		return r.DeniedMessage
	}
	if r.Module != "" {
		return fmt.Sprintf("You do not have permission to access %s.", ModuleDisplayName(r.Module))
	}
	return "You do not have permission to perform this action."
}

// Evaluate checks snap against req and returns exactly one outcome.
// A nil or unresolved snapshot is Pending regardless of the
// requirement: unknown state must never be reported as denied.
func Evaluate(snap *Snapshot, req Requirement) Outcome {
	if snap == nil || !snap.Resolved {
		return OutcomePending
	}
	if req.Module != "" && !snap.CanAccessModule(req.Module) {
		return OutcomeDenied
	}
	if len(req.AnyPermission) > 0 && !snap.HasAnyPermission(req.AnyPermission...) {
		return OutcomeDenied
	}
	if len(req.AnyRole) > 0 {
		ok := false
		for _, role := range req.AnyRole {
			if snap.HasRole(role) {
				ok = true
				break
			}
		}
		if !ok {
			return OutcomeDenied
		}
	}
	return OutcomeGranted
}
