package rbac

import "github.com/campuskit/campus/pkg/storage/postgres"

// MigrationGroup identifies this package's migrations in
// schema_migrations.
const MigrationGroup = "rbac"

// Migrations returns the schema for role assignments. The role catalog
// itself is compiled in, so only assignments need tables.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_assignments (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_name VARCHAR(64) NOT NULL,
					department VARCHAR(128),
					active BOOLEAN NOT NULL DEFAULT TRUE,
					assigned_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					expires_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					revoked_at TIMESTAMP
				);

				CREATE INDEX idx_role_assignments_user_id ON role_assignments(user_id);
				CREATE INDEX idx_role_assignments_role_name ON role_assignments(role_name);
				CREATE INDEX idx_role_assignments_active ON role_assignments(active);
				CREATE INDEX idx_role_assignments_expires_at ON role_assignments(expires_at);
			`,
		},
	}
}
