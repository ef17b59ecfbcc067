// Package types provides the value types shared across perk.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// UserID is the numeric identity of a chat user.
type UserID int64

// String returns the decimal form used in store keys.
func (u UserID) String() string {
	return strconv.FormatInt(int64(u), 10)
}

// Valid reports whether u can identify a user.
func (u UserID) Valid() bool {
	return u > 0
}

// ParseUserID parses a decimal user identifier. Surrounding whitespace is
// ignored; anything else that is not an ASCII digit is rejected, so deep-link
// codes like "abc" or "-5" never parse.
func ParseUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("types: parse user id: empty string")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("types: parse user id %q: not a decimal number", s)
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("types: parse user id %q: %w", s, err)
	}
	return UserID(v), nil
}
