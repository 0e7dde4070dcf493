package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the Postgres schema for items and results.
var Migrations = migrate.NewMigrations()
