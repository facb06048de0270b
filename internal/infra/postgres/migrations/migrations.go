// Package migrations holds the schema, registered with bun's migrator.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is populated by the init functions of the numbered files.
var Migrations = migrate.NewMigrations()
