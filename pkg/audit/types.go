package audit

import (
	"encoding/json"
	"time"
)

// Well-known action names. Free-form actions are allowed; these cover
// the built-in surfaces.
const (
	ActionRoleAssign      = "role.assign"
	ActionRoleRevoke      = "role.revoke"
	ActionUserCreate      = "user.create"
	ActionUserDeactivate  = "user.deactivate"
	ActionUserReactivate  = "user.reactivate"
	ActionApprovalSubmit  = "approval.submit"
	ActionApprovalApprove = "approval.approve"
	ActionApprovalReject  = "approval.reject"
	ActionLatePassIssue   = "reception.late_pass"
)

// Event is one recorded action.
type Event struct {
	ID         int64           `json:"id"`
	ActorID    int64           `json:"actor_id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   int64           `json:"target_id"`
	RequestID  string          `json:"request_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
