package store

import (
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

var gooseRun = goose.Run // mockable

// Migrate runs a goose command (up, down, status, redo, version, up-to VERSION, ...)
// against the embedded migrations.
func Migrate(db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "store: goose dialect")
	}
	return errors.Wrapf(gooseRun(command, db, migrationsDir, args...), "store: migrate %s", command)
}
