package agreement

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Agreement is the structured input rendered into an unsigned document. It
// carries no JSON-independent behaviour so transports can decode into it
// directly.
type Agreement struct {
	Title        string       `json:"title"`
	Agency       Agency       `json:"agency"`
	Counterparty Counterparty `json:"counterparty"`
	Project      Project      `json:"project"`
}

// Agency identifies the service provider preparing the agreement.
type Agency struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PreparedBy string `json:"preparedBy"`
}

// Counterparty is the client expected to sign.
type Counterparty struct {
	Name         string `json:"name"`
	Company      string `json:"company"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	CityStateZip string `json:"cityStateZip"`
	Country      string `json:"country"`
}

// Project holds the commercial terms.
type Project struct {
	Name         string `json:"name"`
	StartDate    Date   `json:"startDate"`
	EndDate      Date   `json:"endDate"`
	Scope        string `json:"scope"`
	PaymentTerms string `json:"paymentTerms"`
	SpecialNotes string `json:"specialNotes"`
}

const dateLayout = "2006-01-02"

// Date is a calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("agreement: parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == Date{} }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.time().Before(other.time())
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.time().Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var _ json.Unmarshaler = (*Date)(nil)

// UnmarshalJSON accepts a YYYY-MM-DD string or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("agreement: date must be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}
