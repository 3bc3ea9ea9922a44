package esign

import (
	"strings"
	"unicode/utf8"
)

// IdentityMatches compares addresses after trimming, ignoring case. It is a
// typo and wrong-account gate, not proof of identity.
func IdentityMatches(expected, claimed string) bool {
	e := strings.TrimSpace(expected)
	return e != "" && strings.EqualFold(e, strings.TrimSpace(claimed))
}

// ConfirmIdentity returns an *IdentityMismatchError unless claimed matches
// expected.
func ConfirmIdentity(expected, claimed string) error {
	if IdentityMatches(expected, claimed) {
		return nil
	}
	return &IdentityMismatchError{ExpectedDomain: domainOf(expected)}
}

func domainOf(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}

// maskEmail keeps the first character of the local part for log lines.
func maskEmail(email string) string {
	email = strings.TrimSpace(email)
	i := strings.LastIndexByte(email, '@')
	if i <= 0 {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[i:]
}
