package agreement

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("agreement: invalid")

// FieldError names one rejected field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every problem found in an agreement. Agreements that
// fail validation are never assembled.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "agreement: invalid: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// EmailPolicy decides whether a counterparty address may be invited to sign.
type EmailPolicy interface {
	Allow(email string) error
}

// DomainPolicy accepts addresses whose domain is in Domains, compared case
// insensitively. An empty list accepts any syntactically valid address.
type DomainPolicy struct {
	Domains []string
}

// DefaultPolicy only admits Gmail addresses.
var DefaultPolicy = DomainPolicy{Domains: []string{"gmail.com"}}

func (p DomainPolicy) Allow(email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return fmt.Errorf("not a valid email address")
	}
	if len(p.Domains) == 0 {
		return nil
	}
	domain := strings.ToLower(addr.Address[strings.LastIndexByte(addr.Address, '@')+1:])
	for _, d := range p.Domains {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(d), "@"), domain) {
			return nil
		}
	}
	return fmt.Errorf("must be an address at %s", strings.Join(p.Domains, ", "))
}

// Validate checks required fields, date order and the counterparty email
// policy. A nil policy means DefaultPolicy.
func Validate(a Agreement, policy EmailPolicy) error {
	if policy == nil {
		policy = DefaultPolicy
	}

	verr := &ValidationError{}
	required := []struct {
		field string
		value string
	}{
		{"title", a.Title},
		{"agency.name", a.Agency.Name},
		{"counterparty.name", a.Counterparty.Name},
		{"counterparty.email", a.Counterparty.Email},
		{"project.name", a.Project.Name},
		{"project.scope", a.Project.Scope},
		{"project.paymentTerms", a.Project.PaymentTerms},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.add(r.field, "required")
		}
	}
	if a.Project.StartDate.IsZero() {
		verr.add("project.startDate", "required")
	}
	if a.Project.EndDate.IsZero() {
		verr.add("project.endDate", "required")
	}
	if !a.Project.StartDate.IsZero() && !a.Project.EndDate.IsZero() && a.Project.EndDate.Before(a.Project.StartDate) {
		verr.add("project.endDate", "must not be before start date")
	}
	if strings.TrimSpace(a.Counterparty.Email) != "" {
		if err := policy.Allow(a.Counterparty.Email); err != nil {
			verr.add("counterparty.email", err.Error())
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
