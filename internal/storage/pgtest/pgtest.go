//go:build integration

// Package pgtest starts a throwaway Postgres for repository integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/database"
)

// Container wraps a running Postgres container and a pool connected to it.
type Container struct {
	Container *tcpostgres.PostgresContainer
	DB        *sqlx.DB
}

// Start runs postgres:16-alpine and connects to it. The container is removed
// when t finishes.
func Start(t *testing.T) *Container {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("audit"),
		tcpostgres.WithUsername("audit"),
		tcpostgres.WithPassword("audit"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	db, err := database.Open(database.Config{DSN: dsn, MaxConns: 10, Timeout: 10 * time.Second, TimeZone: "UTC"})
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Container{Container: ctr, DB: db}
}

// Truncate empties tables and restarts their id sequences.
func (c *Container) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := c.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
