package esign

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStoreFromAddr(mr.Addr(), "", "test:signflow")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exerciseStore(t, s)
}

func TestRedisStoreKeysUsePrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "tenant-a")
	defer s.Close()

	id := uuid.NewString()
	if err := s.Insert(context.Background(), Record{ID: id, Status: StatusPending, TokenDigest: "d", Revision: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !mr.Exists("tenant-a:document:" + id) {
		t.Fatalf("expected prefixed hash key, have %v", mr.Keys())
	}
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	s, err := NewRedisStoreFromAddr("  ", "", "")
	if err == nil || s != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}

func TestRedisStoreFailsWhenUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStoreFromAddr(mr.Addr(), "", "")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	mr.Close()
	if _, err := s.Get(context.Background(), uuid.NewString()); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
