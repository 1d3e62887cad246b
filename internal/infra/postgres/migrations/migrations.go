// Package migrations holds the schema migrations applied by `migrate` and on server start.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
