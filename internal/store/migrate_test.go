package store

import (
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 4)

	for _, f := range files {
		b, err := fs.ReadFile(migrations, f)
		require.NoError(t, err)
		body := string(b)
		assert.True(t, strings.Contains(body, "-- +goose Up"), f)
		assert.True(t, strings.Contains(body, "-- +goose Down"), f)
	}
}

func TestDailyEventsKeyConstraint(t *testing.T) {
	b, err := fs.ReadFile(migrations, migrationsDir+"/00001_subjects.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "daily_events_subject_day_key")
	assert.Contains(t, string(b), "UNIQUE (subject_id, kind, sub_type, day)")
}

func TestMigrate(t *testing.T) {
	orig := gooseRun
	defer func() { gooseRun = orig }()

	var gotCmd, gotDir string
	var gotArgs []string
	gooseRun = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = command, dir, args
		if command == "down-to" && len(args) == 0 {
			return errors.New("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
		}
		return nil
	}

	require.NoError(t, Migrate(nil, "up-to", "2"))
	assert.Equal(t, "up-to", gotCmd)
	assert.Equal(t, "migrations", gotDir)
	assert.Equal(t, []string{"2"}, gotArgs)

	err := Migrate(nil, "down-to")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: migrate down-to")
}
