package approval

import "github.com/campuskit/campus/pkg/storage/postgres"

// MigrationGroup identifies this package's migrations in
// schema_migrations.
const MigrationGroup = "approval"

// Migrations returns the workflow schema. Planners and diaries share
// a layout; payload stays JSONB because the workflow never reads it.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create lesson_planners table",
			SQL: `
				CREATE TABLE IF NOT EXISTS lesson_planners (
					id BIGSERIAL PRIMARY KEY,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					department VARCHAR(128) NOT NULL DEFAULT '',
					title VARCHAR(255) NOT NULL,
					payload JSONB NOT NULL DEFAULT '{}',
					status VARCHAR(32) NOT NULL DEFAULT 'draft',
					submitted_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_lesson_planners_author_id ON lesson_planners(author_id);
				CREATE INDEX idx_lesson_planners_status ON lesson_planners(status);
				CREATE INDEX idx_lesson_planners_department ON lesson_planners(department);
			`,
		},
		{
			Version:     2,
			Description: "Create work_diaries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS work_diaries (
					id BIGSERIAL PRIMARY KEY,
					author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					department VARCHAR(128) NOT NULL DEFAULT '',
					title VARCHAR(255) NOT NULL,
					payload JSONB NOT NULL DEFAULT '{}',
					status VARCHAR(32) NOT NULL DEFAULT 'draft',
					submitted_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_work_diaries_author_id ON work_diaries(author_id);
				CREATE INDEX idx_work_diaries_status ON work_diaries(status);
				CREATE INDEX idx_work_diaries_department ON work_diaries(department);
			`,
		},
		{
			Version:     3,
			Description: "Create approval_decisions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS approval_decisions (
					id BIGSERIAL PRIMARY KEY,
					doc_type VARCHAR(32) NOT NULL,
					doc_id BIGINT NOT NULL,
					decided_by BIGINT NOT NULL REFERENCES users(id),
					decision VARCHAR(16) NOT NULL,
					from_status VARCHAR(32) NOT NULL,
					to_status VARCHAR(32) NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_approval_decisions_doc ON approval_decisions(doc_type, doc_id);
				CREATE INDEX idx_approval_decisions_decided_by ON approval_decisions(decided_by);
			`,
		},
	}
}
