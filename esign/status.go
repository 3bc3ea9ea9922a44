package esign

import "fmt"

// Status is the lifecycle state of a document record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSigned  Status = "signed"
)

// ParseStatus maps a stored value onto a known status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSigned:
		return Status(s), nil
	default:
		return "", fmt.Errorf("esign: unknown status %q", s)
	}
}

// CanTransition reports whether a record may move from s to next. Signed is
// terminal; the only transition is pending to signed.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && next == StatusSigned
}

func (s Status) String() string { return string(s) }
