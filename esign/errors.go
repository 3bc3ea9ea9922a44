package esign

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("esign: document not found")
	ErrInvalidToken     = errors.New("esign: invalid signing token")
	ErrAlreadySigned    = errors.New("esign: document already signed")
	ErrIdentityMismatch = errors.New("esign: identity mismatch")
	// ErrDecode wraps failures to read the stored document or the signature
	// image.
	ErrDecode = errors.New("esign: decode failed")
	// ErrConflict is returned when a concurrent writer changed the record first.
	ErrConflict = errors.New("esign: concurrent update")
	// ErrDuplicate is returned by stores when the id is already taken.
	ErrDuplicate = errors.New("esign: duplicate document id")
)

// IdentityMismatchError names the domain the signer was expected to use and
// nothing more about the expected address.
type IdentityMismatchError struct {
	ExpectedDomain string
}

func (e *IdentityMismatchError) Error() string {
	if e.ExpectedDomain == "" {
		return "esign: identity mismatch"
	}
	return fmt.Sprintf("esign: identity mismatch: expected an address at %s", e.ExpectedDomain)
}

func (e *IdentityMismatchError) Is(target error) bool { return target == ErrIdentityMismatch }
