package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"signflow/agreement"
	"signflow/esign"
)

// Registry tracks the documents under test, their latest token and how many
// signers observed success.
type Registry struct {
	mu   sync.Mutex
	docs map[string]*entry
	ids  []string
}

type entry struct {
	token     string
	basePages int
	wins      int
}

func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]*entry)}
}

func (r *Registry) add(id, token string, pages int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id] = &entry{token: token, basePages: pages}
	r.ids = append(r.ids, id)
}

// pick returns a random document and its current token.
func (r *Registry) pick() (id, token string, basePages int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ids) == 0 {
		return "", "", 0, false
	}
	id = r.ids[rand.Intn(len(r.ids))]
	e := r.docs[id]
	return id, e.token, e.basePages, true
}

func (r *Registry) setToken(id, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id].token = token
}

func (r *Registry) win(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id].wins++
	return r.docs[id].wins
}

// Wins returns the success count per document.
func (r *Registry) Wins() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.docs))
	for id, e := range r.docs {
		out[id] = e.wins
	}
	return out
}

const counterparty = "client@gmail.com"

func sampleAgreement(n int) agreement.Agreement {
	return agreement.Agreement{
		Title:        fmt.Sprintf("Stress Agreement %d", n),
		Agency:       agreement.Agency{Name: "Stress Agency", Email: "ops@stress.example", PreparedBy: "Stress Agent"},
		Counterparty: agreement.Counterparty{Name: "Stress Client", Email: counterparty},
		Project: agreement.Project{
			Name:         "Load",
			StartDate:    agreement.Date{Year: 2026, Month: time.January, Day: 1},
			EndDate:      agreement.Date{Year: 2026, Month: time.March, Day: 1},
			Scope:        "Sign under contention.",
			PaymentTerms: "None.",
		},
	}
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

// Creator keeps adding fresh pending documents.
func Creator(ctx context.Context, c *esign.Controller, reg *Registry, stop <-chan struct{}) error {
	for n := 0; ; n++ {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		created, err := c.Create(ctx, sampleAgreement(n))
		if err != nil {
			if transient(err) {
				continue
			}
			return fmt.Errorf("creator: %w", err)
		}
		reg.add(created.ID, created.Token, created.Pages)
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Signer races other signers on random documents. More than one success on a
// document is a failure.
func Signer(ctx context.Context, c *esign.Controller, reg *Registry, image []byte, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		id, token, _, ok := reg.pick()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		_, err := c.Sign(ctx, esign.SignRequest{ID: id, Token: token, ClaimedEmail: counterparty, Image: image, SignerIP: "192.0.2.1"})
		switch {
		case err == nil:
			if wins := reg.win(id); wins > 1 {
				return fmt.Errorf("signer: document %s signed %d times", id, wins)
			}
		case errors.Is(err, esign.ErrAlreadySigned), errors.Is(err, esign.ErrInvalidToken), transient(err):
		default:
			return fmt.Errorf("signer: %w", err)
		}
		time.Sleep(time.Duration(5+rand.Intn(15)) * time.Millisecond)
	}
}

// Reissuer replaces tokens while signers are using them.
func Reissuer(ctx context.Context, c *esign.Controller, reg *Registry, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		id, _, _, ok := reg.pick()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		token, err := c.Issue(ctx, id)
		switch {
		case err == nil:
			reg.setToken(id, token)
		case errors.Is(err, esign.ErrAlreadySigned), errors.Is(err, esign.ErrConflict), transient(err):
		default:
			return fmt.Errorf("reissuer: %w", err)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// Reader checks that every view is either the original or the original plus
// exactly one certificate page.
func Reader(ctx context.Context, c *esign.Controller, reg *Registry, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		id, token, base, ok := reg.pick()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		view, err := c.AuthorizeRead(ctx, id, token)
		switch {
		case err == nil:
			want := base
			if view.Status == esign.StatusSigned {
				want = base + 1
			}
			if view.Pages != want {
				return fmt.Errorf("reader: document %s is %s with %d pages, want %d", id, view.Status, view.Pages, want)
			}
		case errors.Is(err, esign.ErrInvalidToken), transient(err):
		default:
			return fmt.Errorf("reader: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Impostor signs with the right token but the wrong identity; it must never
// succeed.
func Impostor(ctx context.Context, c *esign.Controller, reg *Registry, image []byte, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		id, token, _, ok := reg.pick()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		_, err := c.Sign(ctx, esign.SignRequest{ID: id, Token: token, ClaimedEmail: "client@yahoo.com", Image: image})
		switch {
		case err == nil:
			return fmt.Errorf("impostor: signed document %s", id)
		case errors.Is(err, esign.ErrIdentityMismatch), errors.Is(err, esign.ErrAlreadySigned), errors.Is(err, esign.ErrInvalidToken), transient(err):
		default:
			return fmt.Errorf("impostor: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// transient reports errors caused by the chaos actor killing backends or by
// shutdown. Domain errors are never transient.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08 connection exception, 57 operator intervention.
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57")
	}
	var netErr net.Error
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}
