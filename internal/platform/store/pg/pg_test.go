package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"alertrecon/internal/platform/testkit"
)

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "://not-a-dsn"}, nil, nil)
	if err == nil {
		t.Fatal("bad dsn accepted")
	}
}

func TestOpenAppliesConfig(t *testing.T) {
	testkit.Serial(t)

	boom := errors.New("pool refused")
	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = cfg
		return nil, boom
	})

	_, err := Open(context.Background(),
		Config{URL: "postgres://u:p@localhost:5432/db", MaxConns: 4, SlowMs: 100},
		nil,
		func(pc *pgxpool.Config) { pc.MinConns = 2 },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the pool error surfaced", err)
	}
	if seen == nil {
		t.Fatal("pool constructor never saw the config")
	}
	if seen.MaxConns != 4 {
		t.Fatalf("MaxConns = %d, want 4", seen.MaxConns)
	}
	if seen.MinConns != 2 {
		t.Fatalf("MinConns = %d, want mutator applied", seen.MinConns)
	}
}

func TestCloseNilSafe(t *testing.T) {
	var p *PG
	p.Close() // must not panic
	(&PG{}).Close()
}
