package values

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Principal identifies an account that can act as seller, buyer or admin.
// Hex account addresses ("0x" + 40 hex digits) are normalized to lower case
// so that checksummed and plain forms compare equal.
type Principal string

// NewPrincipal validates and normalizes an account identifier.
func NewPrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("principal cannot be empty")
	}
	if len(s) > 128 {
		return "", fmt.Errorf("principal too long: %d characters", len(s))
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits) != 40 {
			return "", fmt.Errorf("address must have 40 hex digits: %q", s)
		}
		if _, err := hex.DecodeString(digits); err != nil {
			return "", fmt.Errorf("address is not hex: %q", s)
		}
		return Principal("0x" + strings.ToLower(digits)), nil
	}

	if strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("principal cannot contain whitespace: %q", s)
	}
	return Principal(s), nil
}

// MustNewPrincipal creates a Principal and panics on error (for constants/tests)
func MustNewPrincipal(s string) Principal {
	p, err := NewPrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) String() string {
	return string(p)
}

func (p Principal) IsZero() bool {
	return p == ""
}

// Short renders an abbreviated form for logs ("0x1234...abcd").
func (p Principal) Short() string {
	s := string(p)
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
