package approval

import (
	"encoding/json"
	"time"
)

// DocType identifies which workflow a document follows.
type DocType string

const (
	DocLessonPlanner DocType = "lesson_planner"
	DocWorkDiary     DocType = "work_diary"
)

// Valid reports whether t names a known document type.
func (t DocType) Valid() bool {
	return t == DocLessonPlanner || t == DocWorkDiary
}

// tableName returns the backing table for the document type.
func (t DocType) tableName() string {
	if t == DocWorkDiary {
		return "work_diaries"
	}
	return "lesson_planners"
}

// Status is a workflow state. Planners use draft, submitted, approved
// and rejected; diaries replace approved with the two-stage
// hod_approved and principal_approved.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSubmitted         Status = "submitted"
	StatusApproved          Status = "approved"
	StatusHODApproved       Status = "hod_approved"
	StatusPrincipalApproved Status = "principal_approved"
	StatusRejected          Status = "rejected"
)

// Decision is the action an approver takes on a pending document.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Document is a lesson planner or work diary row. Payload is the
// author's content, stored opaquely: the workflow never interprets it.
type Document struct {
	ID          int64           `json:"id"`
	Type        DocType         `json:"type"`
	AuthorID    int64           `json:"author_id"`
	Department  string          `json:"department"`
	Title       string          `json:"title"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      Status          `json:"status"`
	SubmittedAt *time.Time      `json:"submitted_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DecisionRecord is one entry in a document's decision history.
type DecisionRecord struct {
	ID         int64     `json:"id"`
	DocType    DocType   `json:"doc_type"`
	DocID      int64     `json:"doc_id"`
	DecidedBy  int64     `json:"decided_by"`
	Decision   Decision  `json:"decision"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DecisionResult is the procedure-style outcome of a decision attempt.
// Success=false is a logical refusal delivered over a 200 response; it
// never changes workflow state.
type DecisionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func refused(message string) DecisionResult {
	return DecisionResult{Success: false, Message: message}
}

func succeeded(message string) DecisionResult {
	return DecisionResult{Success: true, Message: message}
}
