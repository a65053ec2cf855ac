package domain

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationFailedMessage is the message carried by every aggregated validation failure.
const ValidationFailedMessage = "The request could not be validated."

// Problems accumulates human-readable validation problems for one request.
// Helpers receive a *Problems and only ever append to it; the caller owns its
// lifecycle and decides when to fail.
type Problems struct {
	items []string
}

// Add appends a problem.
func (p *Problems) Add(problem string) {
	p.items = append(p.items, problem)
}

// Addf appends a formatted problem.
func (p *Problems) Addf(format string, args ...any) {
	p.items = append(p.items, fmt.Sprintf(format, args...))
}

// AddUnique appends a problem unless an identical one is already present.
func (p *Problems) AddUnique(problem string) {
	if !slices.Contains(p.items, problem) {
		p.items = append(p.items, problem)
	}
}

// Merge appends every problem from other, preserving order.
func (p *Problems) Merge(other Problems) {
	p.items = append(p.items, other.items...)
}

// Len returns the number of problems recorded.
func (p *Problems) Len() int { return len(p.items) }

// Empty reports whether no problems were recorded.
func (p *Problems) Empty() bool { return len(p.items) == 0 }

// List returns a copy of the problems in insertion order.
func (p *Problems) List() []string {
	return slices.Clone(p.items)
}

// Err returns nil when empty, otherwise a *ValidationError carrying every problem.
func (p *Problems) Err() error {
	if p.Empty() {
		return nil
	}
	return &ValidationError{Message: ValidationFailedMessage, Problems: p.List()}
}

// Join renders the problems as one sentence list: each problem ends with a
// period and problems are separated by a single space.
func (p *Problems) Join() string {
	parts := make([]string, len(p.items))
	for i, item := range p.items {
		if !strings.HasSuffix(item, ".") {
			item += "."
		}
		parts[i] = item
	}
	return strings.Join(parts, " ")
}

// ValidationError is the single structured failure raised when a request has problems.
type ValidationError struct {
	Message  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return e.Message
	}
	return e.Message + " " + strings.Join(e.Problems, " ")
}

// Pluralise picks between singular and plural forms based on n.
func Pluralise(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// DescribeList renders values as "[a, b, c]" for problem messages.
func DescribeList[T any](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
