// Package esign owns the document lifecycle: creation from an agreement,
// capability tokens for the counterparty, the identity gate and the one-time
// transition from pending to signed.
package esign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"signflow/agreement"
	"signflow/document"
	"signflow/signature"
)

// Assembler turns a validated agreement into a document binary.
type Assembler interface {
	Assemble(agr agreement.Agreement) ([]byte, error)
}

// Embedder appends a signature certificate to a document binary.
type Embedder interface {
	Embed(binary []byte, art signature.Artifact) ([]byte, error)
}

// Option customises a Controller.
type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEmailPolicy sets the policy applied to counterparty addresses on create.
func WithEmailPolicy(policy agreement.EmailPolicy) Option {
	return func(c *Controller) { c.policy = policy }
}

func WithAssembler(a Assembler) Option {
	return func(c *Controller) { c.assembler = a }
}

func WithEmbedder(e Embedder) Option {
	return func(c *Controller) { c.embedder = e }
}

// Controller coordinates the store, the assembler and the embedder. It keeps
// no per-request state; all shared state lives in the store.
type Controller struct {
	store     Store
	assembler Assembler
	embedder  Embedder
	policy    agreement.EmailPolicy
	now       func() time.Time
	logger    *slog.Logger
}

func NewController(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		policy: agreement.DefaultPolicy,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.assembler == nil {
		c.assembler = agreement.NewAssembler(agreement.WithClock(c.now))
	}
	if c.embedder == nil {
		c.embedder = signature.NewEmbedder()
	}
	return c
}

// Create validates and assembles the agreement, then stores a pending record
// with a freshly issued token.
func (c *Controller) Create(ctx context.Context, agr agreement.Agreement) (Created, error) {
	if err := agreement.Validate(agr, c.policy); err != nil {
		return Created{}, err
	}

	binary, err := c.assembler.Assemble(agr)
	if err != nil {
		return Created{}, fmt.Errorf("esign: create: %w", err)
	}
	pages, err := document.PageCount(binary)
	if err != nil {
		return Created{}, fmt.Errorf("esign: create: %w", err)
	}

	token, digest, err := newToken()
	if err != nil {
		return Created{}, err
	}
	if err := ctx.Err(); err != nil {
		return Created{}, err
	}

	rec := Record{
		ID:                uuid.NewString(),
		Title:             agr.Title,
		Status:            StatusPending,
		CounterpartyEmail: strings.TrimSpace(agr.Counterparty.Email),
		TokenDigest:       digest,
		Binary:            binary,
		CreatedAt:         c.now().UTC(),
		Revision:          1,
	}
	if err := c.store.Insert(ctx, rec); err != nil {
		return Created{}, fmt.Errorf("esign: create: %w", err)
	}

	c.logger.InfoContext(ctx, "document created",
		slog.String("document_id", rec.ID),
		slog.Int("pages", pages),
		slog.String("counterparty", maskEmail(rec.CounterpartyEmail)),
	)
	return Created{ID: rec.ID, Token: token, Binary: binary, Pages: pages}, nil
}

// Issue replaces the signing token of a pending document. The previous token
// stops working as soon as this returns.
func (c *Controller) Issue(ctx context.Context, id string) (string, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.Status == StatusSigned {
		return "", ErrAlreadySigned
	}

	token, digest, err := newToken()
	if err != nil {
		return "", err
	}
	next := rec
	next.TokenDigest = digest
	next.Revision = rec.Revision + 1

	err = c.store.CompareAndSwap(ctx, id, Expectation{Status: StatusPending, TokenDigest: rec.TokenDigest}, next)
	if errors.Is(err, ErrConflict) {
		latest, getErr := c.store.Get(ctx, id)
		if getErr == nil && latest.Status == StatusSigned {
			return "", ErrAlreadySigned
		}
		return "", ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("esign: issue: %w", err)
	}

	c.logger.InfoContext(ctx, "token issued", slog.String("document_id", id), slog.Int64("revision", next.Revision))
	return token, nil
}

// AuthorizeRead returns the current document when token is valid. Reads have
// no side effects and keep working after the document is signed.
func (c *Controller) AuthorizeRead(ctx context.Context, id, token string) (View, error) {
	rec, err := c.authorize(ctx, id, token)
	if err != nil {
		return View{}, err
	}
	return viewOf(rec)
}

// AuthorizeWrite is AuthorizeRead for callers about to mutate the document. A
// signed document no longer honors its token for writes.
func (c *Controller) AuthorizeWrite(ctx context.Context, id, token string) (View, error) {
	rec, err := c.authorize(ctx, id, token)
	if err != nil {
		return View{}, err
	}
	if rec.Status == StatusSigned {
		return View{}, ErrInvalidToken
	}
	return viewOf(rec)
}

// Verify runs the identity gate for a token holder without signing. There is
// no attempt limit.
func (c *Controller) Verify(ctx context.Context, id, token, claimed string) (View, error) {
	rec, err := c.authorize(ctx, id, token)
	if err != nil {
		return View{}, err
	}
	if rec.Status == StatusSigned {
		return View{}, ErrAlreadySigned
	}
	if err := ConfirmIdentity(rec.CounterpartyEmail, claimed); err != nil {
		return View{}, err
	}
	return viewOf(rec)
}

// Sign embeds the signature and moves the document to signed. Of any number of
// concurrent attempts on one document at most one succeeds.
func (c *Controller) Sign(ctx context.Context, req SignRequest) (Signed, error) {
	rec, err := c.authorize(ctx, req.ID, req.Token)
	if err != nil {
		return Signed{}, err
	}
	if !rec.Status.CanTransition(StatusSigned) {
		return Signed{}, ErrAlreadySigned
	}
	if err := ConfirmIdentity(rec.CounterpartyEmail, req.ClaimedEmail); err != nil {
		c.logger.InfoContext(ctx, "identity mismatch", slog.String("document_id", rec.ID))
		return Signed{}, err
	}
	if req.ImageErr != nil {
		return Signed{}, fmt.Errorf("%w: %w", ErrDecode, req.ImageErr)
	}

	signedAt := c.now().UTC()
	signed, err := c.embedder.Embed(rec.Binary, signature.Artifact{
		Image:      req.Image,
		CapturedAt: signedAt,
		Signer:     strings.TrimSpace(req.ClaimedEmail),
		DocumentID: rec.ID,
		SignerIP:   req.SignerIP,
	})
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	pages, err := document.PageCount(signed)
	if err != nil {
		return Signed{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return Signed{}, err
	}

	next := rec
	next.Status = StatusSigned
	next.SignedBinary = signed
	next.SignedAt = &signedAt
	next.SignerEmail = strings.TrimSpace(req.ClaimedEmail)
	next.SignerIP = req.SignerIP
	next.Revision = rec.Revision + 1

	err = c.store.CompareAndSwap(ctx, rec.ID, Expectation{Status: StatusPending, TokenDigest: rec.TokenDigest}, next)
	if errors.Is(err, ErrConflict) {
		return Signed{}, c.lostRace(ctx, rec.ID)
	}
	if err != nil {
		return Signed{}, fmt.Errorf("esign: sign: %w", err)
	}

	c.logger.InfoContext(ctx, "document signed",
		slog.String("document_id", rec.ID),
		slog.String("status", string(StatusSigned)),
		slog.Int("pages", pages),
	)
	return Signed{ID: rec.ID, Status: StatusSigned, SignedAt: signedAt, Binary: signed, Pages: pages}, nil
}

// lostRace explains why a compare-and-swap on a pending record failed: either
// another signer won or the token was re-issued.
func (c *Controller) lostRace(ctx context.Context, id string) error {
	latest, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("esign: sign: %w", err)
	}
	if latest.Status == StatusSigned {
		return ErrAlreadySigned
	}
	return ErrInvalidToken
}

func (c *Controller) authorize(ctx context.Context, id, token string) (Record, error) {
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !tokenMatches(token, rec.TokenDigest) {
		return Record{}, ErrInvalidToken
	}
	return rec, nil
}

func viewOf(rec Record) (View, error) {
	binary := rec.Current()
	pages, err := document.PageCount(binary)
	if err != nil {
		return View{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return View{
		ID:                rec.ID,
		Title:             rec.Title,
		Status:            rec.Status,
		CounterpartyEmail: rec.CounterpartyEmail,
		Binary:            binary,
		SignedAt:          rec.SignedAt,
		Pages:             pages,
	}, nil
}
