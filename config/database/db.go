package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"aeriegateway/pkg/logger"

	"github.com/lib/pq"
)

const (
	pingAttempts = 5
	pingDelay    = 2 * time.Second
)

// Connect opens the Postgres pool and waits until it answers a ping.
// The caller owns the returned pool and must Close it on shutdown.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := Ping(ctx, db, pingAttempts, pingDelay); err != nil {
		db.Close()
		return nil, err
	}
	logger.Sugar.Info("Successfully connected to the database")
	return db, nil
}

// Ping retries a few times in case of temporary DNS/network blips.
func Ping(ctx context.Context, db *sql.DB, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("could not connect to database after %d attempts: %w", attempts, err)
}

// CreateSchemas creates the merlin and ui schemas owned by the given role.
// Safe to run on every startup.
func CreateSchemas(ctx context.Context, db *sql.DB, owner string) error {
	for _, schema := range []string{"merlin", "ui"} {
		// DDL cannot bind identifiers, so both names are quoted instead.
		stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s AUTHORIZATION %s",
			pq.QuoteIdentifier(schema), pq.QuoteIdentifier(owner))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Sugar.Errorf("Failed to create schema %s: %v", schema, err)
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return nil
}

// InitUI creates the table holding view documents.
func InitUI(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ui.view (
			id text NOT NULL PRIMARY KEY,
			view jsonb NOT NULL
		)`)
	if err != nil {
		logger.Sugar.Errorf("Failed to create ui.view table: %v", err)
		return fmt.Errorf("create ui.view: %w", err)
	}
	return nil
}
