package esign

import (
	"context"
	"time"
)

// Record is the persisted state of one document. The raw signing token is
// never stored, only its digest.
type Record struct {
	ID                string
	Title             string
	Status            Status
	CounterpartyEmail string
	TokenDigest       string
	Binary            []byte
	SignedBinary      []byte
	CreatedAt         time.Time
	SignedAt          *time.Time
	SignerEmail       string
	SignerIP          string
	Revision          int64
}

// Current returns the signed binary once the record is signed.
func (r Record) Current() []byte {
	if r.Status == StatusSigned {
		return r.SignedBinary
	}
	return r.Binary
}

// Expectation is the state a compare-and-swap requires before writing.
type Expectation struct {
	Status      Status
	TokenDigest string
}

// Store persists records. CompareAndSwap must be atomic: next is written only
// when the stored status and token digest still equal expect.
type Store interface {
	// Insert fails with ErrDuplicate when the id exists.
	Insert(ctx context.Context, rec Record) error
	// Get fails with ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (Record, error)
	// CompareAndSwap fails with ErrNotFound for unknown ids and ErrConflict
	// when the expectation no longer holds.
	CompareAndSwap(ctx context.Context, id string, expect Expectation, next Record) error
}

// Created is returned to the agency after a document is assembled.
type Created struct {
	ID     string
	Token  string
	Binary []byte
	Pages  int
}

// View is what a token holder may see.
type View struct {
	ID                string
	Title             string
	Status            Status
	CounterpartyEmail string
	Binary            []byte
	SignedAt          *time.Time
	Pages             int
}

// ExpectedDomain is the only part of the counterparty address disclosed to an
// unverified visitor.
func (v View) ExpectedDomain() string { return domainOf(v.CounterpartyEmail) }

// SignRequest carries one signing attempt.
type SignRequest struct {
	ID           string
	Token        string
	ClaimedEmail string
	// Image is the raw raster upload.
	Image []byte
	// ImageErr records why the transport could not extract Image. It is
	// reported only after the token and identity checks pass.
	ImageErr error
	SignerIP string
}

// Signed describes the record after a successful signature.
type Signed struct {
	ID       string
	Status   Status
	SignedAt time.Time
	Binary   []byte
	Pages    int
}
