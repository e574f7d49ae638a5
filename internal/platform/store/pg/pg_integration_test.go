//go:build integration_pg
// +build integration_pg

package pg

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func TestOpen_MatchRoundTrip_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	appName := "alertrecon-pg-integration"
	p, err := Open(ctx, Config{URL: dsn, MaxConns: 2}, nil, func(pc *pgxpool.Config) {
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = appName
		pc.MinConns = 1
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer p.Close()

	if _, err := p.Pool.Exec(ctx, `
		CREATE TABLE matches (
			id             uuid PRIMARY KEY,
			email_id       bigint NOT NULL UNIQUE,
			transaction_id bigint,
			confidence     double precision NOT NULL DEFAULT 0,
			status         text NOT NULL,
			created_at     timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	const insert = `
		INSERT INTO matches (id, email_id, transaction_id, confidence, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email_id) DO UPDATE SET
			id = EXCLUDED.id,
			transaction_id = EXCLUDED.transaction_id,
			confidence = EXCLUDED.confidence,
			status = EXCLUDED.status`

	if _, err := p.Pool.Exec(ctx, insert,
		"3c4c4b1e-0a65-4a86-9e0f-000000000001", int64(1), int64(7), 0.92, "matched"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// same email again: the row is replaced, not duplicated
	if _, err := p.Pool.Exec(ctx, insert,
		"3c4c4b1e-0a65-4a86-9e0f-000000000002", int64(1), int64(9), 0.88, "matched"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var count int
	if err := p.Pool.QueryRow(ctx, `SELECT count(*) FROM matches WHERE email_id = 1`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows for email 1 = %d, want 1", count)
	}

	var txID int64
	var conf float64
	if err := p.Pool.QueryRow(ctx,
		`SELECT transaction_id, confidence FROM matches WHERE email_id = 1`).Scan(&txID, &conf); err != nil {
		t.Fatalf("select: %v", err)
	}
	if txID != 9 || conf != 0.88 {
		t.Fatalf("row = (%d, %v), want the latest write", txID, conf)
	}

	var gotApp string
	if err := p.Pool.QueryRow(ctx, `SELECT current_setting('application_name')`).Scan(&gotApp); err != nil {
		t.Fatalf("check app name: %v", err)
	}
	if gotApp != appName {
		t.Fatalf("application_name mismatch: got %q want %q", gotApp, appName)
	}
}
