package audit

import "github.com/campuskit/campus/pkg/storage/postgres"

// MigrationGroup identifies this package's migrations in
// schema_migrations.
const MigrationGroup = "audit"

// Migrations returns the audit trail schema.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					actor_id BIGINT NOT NULL,
					action VARCHAR(64) NOT NULL,
					target_type VARCHAR(64) NOT NULL,
					target_id BIGINT NOT NULL,
					request_id VARCHAR(64) NOT NULL DEFAULT '',
					details JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_audit_events_actor_id ON audit_events(actor_id);
				CREATE INDEX idx_audit_events_action ON audit_events(action);
				CREATE INDEX idx_audit_events_target ON audit_events(target_type, target_id);
				CREATE INDEX idx_audit_events_created_at ON audit_events(created_at);
			`,
		},
	}
}
