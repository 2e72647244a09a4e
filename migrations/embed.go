// Package migrations embeds the SQLite schema for the sqlite directory backend.
package migrations

import (
	"embed"

	"github.com/nerrad567/gridswitch/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
