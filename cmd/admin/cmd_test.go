package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/internal/auth"
	"conference/internal/clock"
	"conference/internal/logger"
)

type migrateCall struct {
	command string
	args    []string
}

func setup(t *testing.T, password string) (*commandLine, *auth.MemoryAccounts, *[]migrateCall) {
	t.Helper()
	readPasswordFunc = func(int) ([]byte, error) { return []byte(password), nil }

	clk := clock.NewFixed(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	store := auth.NewMemoryAccounts()
	tokens := auth.NewTokens("secret", "conference", time.Hour, time.Hour, clk)
	var calls []migrateCall
	cli := &commandLine{
		accounts: auth.NewService(store, tokens, clk, logger.Discard()),
		migrate: func(command string, args ...string) error {
			if command == "sideways" {
				return errors.New(`"sideways": no such command`)
			}
			calls = append(calls, migrateCall{command, args})
			return nil
		},
		out: &bytes.Buffer{},
	}
	return cli, store, &calls
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	cli, _, calls := setup(t, "")

	assert.ErrorIs(t, cli.run(ctx, []string{"admin"}), errHelp)
	assert.ErrorIs(t, cli.run(ctx, []string{"admin", "migrate"}), errHelp)
	assert.ErrorIs(t, cli.run(ctx, []string{"admin", "dance"}), errHelp)
	assert.EqualError(t, cli.run(ctx, []string{"admin", "migrate", "sideways"}), `"sideways": no such command`)

	require.NoError(t, cli.run(ctx, []string{"admin", "migrate", "up"}))
	require.NoError(t, cli.run(ctx, []string{"admin", "migrate", "down-to", "1"}))
	assert.Equal(t, []migrateCall{{"up", []string{}}, {"down-to", []string{"1"}}}, *calls)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		args     []string
		password string
		wantErr  error
		wantRole auth.Role
	}{
		{name: "no email", args: []string{"createadmin"}, password: "password123", wantErr: errHelp},
		{name: "bad role", args: []string{"createadmin", "-email", "a@example.com", "-role", "owner"}, password: "password123", wantErr: errHelp},
		{name: "empty password", args: []string{"createadmin", "-email", "a@example.com"}, wantErr: errHelp},
		{name: "admin", args: []string{"createadmin", "-email", "a@example.com"}, password: "password123", wantRole: auth.RoleAdmin},
		{name: "volunteer", args: []string{"createadmin", "-email", "v@example.com", "-role", "volunteer"}, password: "password123", wantRole: auth.RoleVolunteer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, store, _ := setup(t, tt.password)
			err := cli.run(ctx, append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			acc, err := store.FindAccount(ctx, tt.args[2])
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, acc.Role)
			assert.True(t, auth.CheckPassword(acc.PasswordHash, tt.password))
			assert.Contains(t, cli.out.(*bytes.Buffer).String(), "created "+string(tt.wantRole))
		})
	}
}

func TestCreateAdminShortPassword(t *testing.T) {
	cli, _, _ := setup(t, "short")
	err := cli.run(context.Background(), []string{"admin", "createadmin", "-email", "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}
