package reception

import "github.com/campuskit/campus/pkg/storage/postgres"

// MigrationGroup identifies this package's migrations in
// schema_migrations.
const MigrationGroup = "reception"

// Migrations returns the student directory and late pass schema.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create students table",
			SQL: `
				CREATE TABLE IF NOT EXISTS students (
					id BIGSERIAL PRIMARY KEY,
					admission_no VARCHAR(64) NOT NULL UNIQUE,
					full_name VARCHAR(255) NOT NULL,
					class_name VARCHAR(64),
					department VARCHAR(128),
					guardian_phone VARCHAR(32),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_students_admission_no ON students(admission_no);
			`,
		},
		{
			Version:     2,
			Description: "Create late_passes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS late_passes (
					id BIGSERIAL PRIMARY KEY,
					serial VARCHAR(36) NOT NULL UNIQUE,
					student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
					issued_by BIGINT NOT NULL REFERENCES users(id),
					reason TEXT NOT NULL DEFAULT '',
					issued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_late_passes_student_id ON late_passes(student_id);
			`,
		},
	}
}
