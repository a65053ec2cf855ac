package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a 1-based (row, column) position in a labware layout. It renders as
// a row letter followed by the column number, e.g. A1 or C12.
type Address struct {
	Row    int
	Column int
}

// ParseAddress parses strings such as "A1", "b12" or "32,15" (row,column form
// for layouts with more than 26 rows).
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if row, col, ok := strings.Cut(s, ","); ok {
		r, err1 := strconv.Atoi(strings.TrimSpace(row))
		c, err2 := strconv.Atoi(strings.TrimSpace(col))
		if err1 != nil || err2 != nil || r < 1 || c < 1 {
			return Address{}, fmt.Errorf("invalid address %q", s)
		}
		return Address{Row: r, Column: c}, nil
	}
	letter := s[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	c, err := strconv.Atoi(s[1:])
	if err != nil || c < 1 {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return Address{Row: int(letter-'A') + 1, Column: c}, nil
}

// MustParseAddress is ParseAddress for literals; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	if a.Row >= 1 && a.Row <= 26 {
		return fmt.Sprintf("%c%d", 'A'+rune(a.Row-1), a.Column)
	}
	return fmt.Sprintf("%d,%d", a.Row, a.Column)
}

// Compare orders addresses row-major.
func (a Address) Compare(b Address) int {
	if a.Row != b.Row {
		return a.Row - b.Row
	}
	return a.Column - b.Column
}

// MarshalText renders the address in its display form.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText parses the display form.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
