// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package database opens the PostgreSQL pool and applies the embedded
// goose migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations
var embedMigrations embed.FS

// Pool sizes the connection pool. Zero values take the defaults.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	// ConnectAttempts bounds the pings made before Connect gives up.
	ConnectAttempts uint64
}

func (p Pool) withDefaults() Pool {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 25
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = 5
	}
	if p.MaxLifetime <= 0 {
		p.MaxLifetime = 30 * time.Minute
	}
	if p.ConnectAttempts == 0 {
		p.ConnectAttempts = 5
	}
	return p
}

// Connect opens a pool for dsn and pings it with exponential backoff, so
// the server can start alongside a database that is still booting.
func Connect(ctx context.Context, dsn string, pool Pool) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	backoff := retry.WithMaxRetries(pool.ConnectAttempts-1, retry.NewExponential(500*time.Millisecond))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			slog.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	slog.Info("database connected", "attempts", attempt)
	return db, nil
}

// Migrate applies pending migrations and returns the resulting version.
func Migrate(db *sql.DB) (int64, error) {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return 0, fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	slog.Info("database migrations applied", "version", version)
	return version, nil
}
