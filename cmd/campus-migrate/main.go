// campus-migrate applies the campus database schema.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/campuskit/campus/pkg/approval"
	"github.com/campuskit/campus/pkg/audit"
	"github.com/campuskit/campus/pkg/events"
	"github.com/campuskit/campus/pkg/observability"
	"github.com/campuskit/campus/pkg/rbac"
	"github.com/campuskit/campus/pkg/reception"
	"github.com/campuskit/campus/pkg/storage/postgres"
	"github.com/campuskit/campus/pkg/users"
)

var (
	dbURL   = flag.String("db-url", os.Getenv("CAMPUS_POSTGRES_URL"), "PostgreSQL connection URL")
	timeout = flag.Duration("timeout", 5*time.Minute, "Overall migration timeout")
)

// group pairs a migration group name with its migrations. Order
// matters: users comes first because every other group references the
// users table.
type group struct {
	name       string
	migrations []postgres.Migration
}

func main() {
	flag.Parse()
	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "campus-migrate: -db-url or CAMPUS_POSTGRES_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	groups := []group{
		{users.MigrationGroup, users.Migrations()},
		{rbac.MigrationGroup, rbac.Migrations()},
		{approval.MigrationGroup, approval.Migrations()},
		{events.MigrationGroup, events.Migrations()},
		{reception.MigrationGroup, reception.Migrations()},
		{audit.MigrationGroup, audit.Migrations()},
	}
	for _, g := range groups {
		logger.WithField("group", g.name).Info("applying migrations")
		if err := postgres.RunMigrations(ctx, db, g.name, g.migrations); err != nil {
			logger.WithError(err).WithField("group", g.name).Error("migration failed")
			os.Exit(1)
		}
	}
	logger.Info("all migrations applied")
}
