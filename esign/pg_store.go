package esign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts pgxpool.Pool for testability.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps records in the documents table.
type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, rec Record) error {
	const insertSQL = `
INSERT INTO documents (id, title, status, counterparty_email, token_digest, content, created_at, revision)
VALUES ($1, $2, $3::document_status, $4, $5, $6, $7, $8);
`
	_, err := s.db.Exec(ctx, insertSQL,
		rec.ID, rec.Title, string(rec.Status), rec.CounterpartyEmail, rec.TokenDigest, rec.Binary, rec.CreatedAt, rec.Revision)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("esign: insert document: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}

	const selectSQL = `
SELECT id::text, title, status::text, counterparty_email, token_digest, content, signed_content,
       created_at, signed_at, signer_email, signer_ip, revision
FROM documents
WHERE id = $1;
`
	var (
		rec         Record
		status      string
		signedAt    sql.NullTime
		signerEmail sql.NullString
		signerIP    sql.NullString
	)
	err := s.db.QueryRow(ctx, selectSQL, id).Scan(
		&rec.ID, &rec.Title, &status, &rec.CounterpartyEmail, &rec.TokenDigest, &rec.Binary, &rec.SignedBinary,
		&rec.CreatedAt, &signedAt, &signerEmail, &signerIP, &rec.Revision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("esign: get document: %w", err)
	}

	rec.Status, err = ParseStatus(status)
	if err != nil {
		return Record{}, err
	}
	if signedAt.Valid {
		t := signedAt.Time.UTC()
		rec.SignedAt = &t
	}
	rec.SignerEmail = signerEmail.String
	rec.SignerIP = signerIP.String
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// CompareAndSwap relies on the row-level atomicity of a single conditional
// UPDATE.
func (s *PGStore) CompareAndSwap(ctx context.Context, id string, expect Expectation, next Record) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	const updateSQL = `
UPDATE documents
SET status = $4::document_status,
    token_digest = $5,
    signed_content = $6,
    signed_at = $7,
    signer_email = $8,
    signer_ip = $9,
    revision = $10
WHERE id = $1 AND status = $2::document_status AND token_digest = $3;
`
	tag, err := s.db.Exec(ctx, updateSQL,
		id, string(expect.Status), expect.TokenDigest,
		string(next.Status), next.TokenDigest, next.SignedBinary, nullTime(next.SignedAt),
		nullString(next.SignerEmail), nullString(next.SignerIP), next.Revision,
	)
	if err != nil {
		return fmt.Errorf("esign: update document: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("esign: check document: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
