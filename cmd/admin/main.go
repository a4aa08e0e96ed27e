package main

import (
	"context"
	"os"
	"time"

	"conference/internal/auth"
	"conference/internal/clock"
	"conference/internal/config"
	"conference/internal/logger"
	"conference/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(os.Stdout, "ADMIN : ")
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.Real{}
	tokens := auth.NewTokens(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL, clk)
	cli := commandLine{
		accounts: auth.NewService(auth.NewPostgresAccounts(db.Client), tokens, clk, log),
		migrate: func(command string, args ...string) error {
			return store.Migrate(db.Client, command, args...)
		},
		out: os.Stdout,
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	err = cli.run(runCtx, os.Args)
	cancel()
	if err != nil {
		if err != errHelp {
			log.Error("command failed", "err", err)
		}
		db.Close()
		os.Exit(1)
	}
}
