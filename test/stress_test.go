package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"signflow/esign"
	"signflow/signature"
	"signflow/test/actors"
	"signflow/test/chaos"
	"signflow/test/infra"
	"signflow/test/oracles"
)

const appName = "signflow-stress"

var (
	flDuration    = flag.Duration("duration", 20*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent signers")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestSigningConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in -short mode")
	}
	seed := *flSeed
	rand.Seed(seed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	var (
		pgC        = &infra.PGContainer{}
		dsn        string
		err        error
		usedShared bool
	)
	switch {
	case *flDSN != "":
		dsn, usedShared = *flDSN, true
	case os.Getenv(infra.DSNEnv) != "":
		dsn, usedShared = os.Getenv(infra.DSNEnv), true
	case dockerAvailable(ctx):
		pgC, dsn, err = infra.StartPostgres16(ctx, "")
		if err != nil {
			t.Fatalf("start postgres: %v", err)
		}
	default:
		dsn, err = infra.InitLocalDatabase(ctx)
		if errors.Is(err, infra.ErrNoLocalPostgres) {
			t.Skipf("no docker, no local postgres and %s unset", infra.DSNEnv)
		}
		if err != nil {
			t.Fatalf("init local database: %v", err)
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, appName, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	controller := esign.NewController(esign.NewPGStore(pool), esign.WithLogger(logger))
	reg := actors.NewRegistry()
	img := signatureImage(t)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	g.Go(func() error { return actors.Creator(ctx2, controller, reg, stop) })
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Signer(ctx2, controller, reg, img, stop) })
	}
	g.Go(func() error { return actors.Reissuer(ctx2, controller, reg, stop) })
	g.Go(func() error { return actors.Reader(ctx2, controller, reg, stop) })
	g.Go(func() error { return actors.Impostor(ctx2, controller, reg, img, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, appName, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if ctx2.Err() != nil {
					break loop
				}
				t.Logf("oracle %s skipped: %v", name, err)
				continue
			}
			if name != "" {
				close(stop)
				_ = g.Wait()
				dumpRecent(t, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		dumpRecent(t, pool)
		t.Fatalf("actors errored: %v (seed=%d)", err, seed)
	}

	// Every signed row must correspond to exactly one observed success.
	checkCtx, checkCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer checkCancel()
	signed, err := oracles.SignedCount(checkCtx, pool)
	if err != nil {
		t.Fatalf("count signed: %v", err)
	}
	wins := 0
	for id, n := range reg.Wins() {
		if n > 1 {
			t.Fatalf("document %s signed %d times (seed=%d)", id, n, seed)
		}
		wins += n
	}
	// A commit can land after its connection is killed, so the database may
	// hold more signed rows than signers saw succeed, never fewer.
	if signed < wins {
		t.Fatalf("signed rows = %d, observed wins = %d (seed=%d)", signed, wins, seed)
	}
	t.Logf("seed=%d documents=%d signed=%d observed_wins=%d", seed, len(reg.Wins()), signed, wins)
}

func signatureImage(t *testing.T) []byte {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	for x := 20; x < 280; x++ {
		src.Set(x, 50+(x%7)-3, color.Black)
	}
	data, err := signature.EncodePNG(signature.Normalize(src))
	if err != nil {
		t.Fatalf("encode signature: %v", err)
	}
	return data
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func dumpRecent(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := pool.Query(ctx, `
SELECT id::text, status::text, revision, created_at, signed_at, signer_email, octet_length(content), octet_length(signed_content)
FROM documents ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		t.Logf("dump documents error: %v", err)
		return
	}
	defer rows.Close()
	cols := rows.FieldDescriptions()
	t.Logf("-- documents --")
	for rows.Next() {
		vals, _ := rows.Values()
		buf := make([]any, 0, len(vals))
		for i := range vals {
			buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
		}
		t.Logf("%v", buf)
	}
}
