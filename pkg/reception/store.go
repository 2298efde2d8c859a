package reception

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/campuskit/campus/pkg/storage/postgres"
)

// Store persists the student directory and issued late passes.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const studentColumns = `id, admission_no, full_name, class_name, department, guardian_phone, is_active, created_at`

func scanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var s Student
	var className, department, guardianPhone sql.NullString
	err := row.Scan(&s.ID, &s.AdmissionNo, &s.FullName, &className,
		&department, &guardianPhone, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return Student{}, err
	}
	s.ClassName = className.String
	s.Department = department.String
	s.GuardianPhone = guardianPhone.String
	return s, nil
}

// StudentByAdmissionNo looks a student up by admission number.
func (s *Store) StudentByAdmissionNo(ctx context.Context, admissionNo string) (Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE admission_no = $1`, admissionNo)
	st, err := scanStudent(row)
	if err != nil {
		return Student{}, postgres.ClassifyError(err)
	}
	return st, nil
}

// CreateStudent adds a directory entry.
func (s *Store) CreateStudent(ctx context.Context, st Student) (Student, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO students (admission_no, full_name, class_name, department, guardian_phone, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING `+studentColumns,
		st.AdmissionNo, st.FullName, st.ClassName, st.Department, st.GuardianPhone)
	out, err := scanStudent(row)
	if err != nil {
		return Student{}, postgres.ClassifyError(fmt.Errorf("insert student: %w", err))
	}
	return out, nil
}

// InsertLatePass records an issued pass.
func (s *Store) InsertLatePass(ctx context.Context, serial string, studentID, issuedBy int64, reason string) (LatePass, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO late_passes (serial, student_id, issued_by, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, serial, student_id, issued_by, reason, issued_at`,
		serial, studentID, issuedBy, reason)

	var p LatePass
	if err := row.Scan(&p.ID, &p.Serial, &p.StudentID, &p.IssuedBy, &p.Reason, &p.IssuedAt); err != nil {
		return LatePass{}, postgres.ClassifyError(fmt.Errorf("insert late pass: %w", err))
	}
	return p, nil
}

// PassesForStudent returns a student's passes, newest first.
func (s *Store) PassesForStudent(ctx context.Context, studentID int64, limit int) ([]LatePass, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, serial, student_id, issued_by, reason, issued_at
		FROM late_passes
		WHERE student_id = $1
		ORDER BY id DESC
		LIMIT $2`, studentID, limit)
	if err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("list late passes: %w", err))
	}
	defer rows.Close()

	out := []LatePass{}
	for rows.Next() {
		var p LatePass
		if err := rows.Scan(&p.ID, &p.Serial, &p.StudentID, &p.IssuedBy, &p.Reason, &p.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan late pass: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
