package esign

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// exerciseStore checks the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := Record{
		ID:                uuid.NewString(),
		Title:             "Services Agreement",
		Status:            StatusPending,
		CounterpartyEmail: "client@gmail.com",
		TokenDigest:       digestToken("first"),
		Binary:            []byte("binary-v1"),
		CreatedAt:         created,
		Revision:          1,
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, rec); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != rec.Title || got.Status != StatusPending || string(got.Binary) != "binary-v1" ||
		got.TokenDigest != rec.TokenDigest || !got.CreatedAt.Equal(created) || got.SignedAt != nil || got.Revision != 1 {
		t.Fatalf("unexpected record %+v", got)
	}

	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.CompareAndSwap(ctx, uuid.NewString(), Expectation{Status: StatusPending, TokenDigest: "x"}, rec); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on CAS, got %v", err)
	}

	// Wrong digest.
	if err := s.CompareAndSwap(ctx, rec.ID, Expectation{Status: StatusPending, TokenDigest: digestToken("other")}, rec); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	reissued := got
	reissued.TokenDigest = digestToken("second")
	reissued.Revision = 2
	if err := s.CompareAndSwap(ctx, rec.ID, Expectation{Status: StatusPending, TokenDigest: rec.TokenDigest}, reissued); err != nil {
		t.Fatalf("reissue CAS: %v", err)
	}

	// Concurrent signers racing on the same expectation.
	signedAt := created.Add(time.Hour)
	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			next := reissued
			next.Status = StatusSigned
			next.SignedBinary = []byte("binary-v2")
			next.SignedAt = &signedAt
			next.SignerEmail = "client@gmail.com"
			next.Revision = 3
			err := s.CompareAndSwap(ctx, rec.ID, Expectation{Status: StatusPending, TokenDigest: reissued.TokenDigest}, next)
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, ErrConflict):
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent CAS: %v", err)
	}
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one CAS to win, got %d", wins.Load())
	}

	final, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if final.Status != StatusSigned || string(final.Current()) != "binary-v2" || string(final.Binary) != "binary-v1" {
		t.Fatalf("unexpected final record %+v", final)
	}
	if final.SignedAt == nil || !final.SignedAt.Equal(signedAt) || final.SignerEmail != "client@gmail.com" || final.Revision != 3 {
		t.Fatalf("signing metadata not persisted: %+v", final)
	}

	// Signed is terminal for pending expectations.
	if err := s.CompareAndSwap(ctx, rec.ID, Expectation{Status: StatusPending, TokenDigest: reissued.TokenDigest}, reissued); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on signed record, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "signed"} {
		if got, err := ParseStatus(s); err != nil || string(got) != s {
			t.Fatalf("parse %q: %v %q", s, err, got)
		}
	}
	if _, err := ParseStatus("void"); err == nil {
		t.Fatal("expected unknown status error")
	}
	if !StatusPending.CanTransition(StatusSigned) {
		t.Fatal("pending must transition to signed")
	}
	if StatusSigned.CanTransition(StatusPending) || StatusSigned.CanTransition(StatusSigned) || StatusPending.CanTransition(StatusPending) {
		t.Fatal("only pending to signed is allowed")
	}
}
