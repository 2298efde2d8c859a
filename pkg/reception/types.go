package reception

import "time"

// Student is a directory entry keyed by admission number.
type Student struct {
	ID            int64     `json:"id"`
	AdmissionNo   string    `json:"admission_no"`
	FullName      string    `json:"full_name"`
	ClassName     string    `json:"class_name,omitempty"`
	Department    string    `json:"department,omitempty"`
	GuardianPhone string    `json:"guardian_phone,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// LatePass is an issued late arrival slip. Serial is an opaque unique
// identifier printed on the slip.
type LatePass struct {
	ID        int64     `json:"id"`
	Serial    string    `json:"serial"`
	StudentID int64     `json:"student_id"`
	IssuedBy  int64     `json:"issued_by"`
	Reason    string    `json:"reason,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// IssueResult is the procedure-style outcome of a late pass request.
type IssueResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Pass    *LatePass `json:"pass,omitempty"`
}

// LookupResult is the procedure-style outcome of a front-desk lookup.
type LookupResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Student *Student `json:"student,omitempty"`
}
