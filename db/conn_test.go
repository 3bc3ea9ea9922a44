package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestNewPoolRequiresConnString(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty connection string")
	}
	if _, err := NewPool(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWithMaxConns(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/db?pool_max_conns=3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	WithMaxConns(0)(cfg)
	if cfg.MaxConns != 3 {
		t.Fatalf("zero must keep existing value, got %d", cfg.MaxConns)
	}
	WithMaxConns(12)(cfg)
	if cfg.MaxConns != 12 {
		t.Fatalf("expected 12, got %d", cfg.MaxConns)
	}
}
