package events

import "github.com/campuskit/campus/pkg/storage/postgres"

// MigrationGroup identifies this package's migrations in
// schema_migrations.
const MigrationGroup = "events"

// Migrations returns the events and notices schema.
func Migrations() []postgres.Migration {
	return []postgres.Migration{
		{
			Version:     1,
			Description: "Create events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS events (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					description TEXT,
					location VARCHAR(255),
					starts_at TIMESTAMP NOT NULL,
					ends_at TIMESTAMP,
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_events_starts_at ON events(starts_at);
			`,
		},
		{
			Version:     2,
			Description: "Create notices table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notices (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					body TEXT NOT NULL,
					audience VARCHAR(32) NOT NULL DEFAULT 'all',
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_notices_audience ON notices(audience);
			`,
		},
	}
}
