package domain

import (
	"context"
	"fmt"
	"strings"
)

// Severity grades a commit-time rule violation.
type Severity string

const (
	// SeverityBlock aborts the commit.
	SeverityBlock Severity = "block"
	// SeverityWarn is logged by the service and the commit proceeds.
	SeverityWarn Severity = "warn"
)

// Violation is one failed integrity check, attributed to the entity it concerns.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s %d)", v.Rule, v.Message, v.Entity, v.EntityID)
}

// Result collects the violations raised for one commit.
type Result struct {
	Violations []Violation
}

// Merge appends the violations of other.
func (r *Result) Merge(other Result) {
	r.Violations = append(r.Violations, other.Violations...)
}

// Blocking returns the violations that abort a commit.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// HasBlocking reports whether any violation aborts the commit.
func (r Result) HasBlocking() bool { return len(r.Blocking()) > 0 }

// RuleViolationError aborts a unit of work whose changes broke a store rule.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Blocking()
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, v.String())
	}
	return "commit rejected by rules: " + strings.Join(msgs, "; ")
}

// Rule checks the pending changes of a unit of work against the transaction
// view just before commit. Request problems are reported earlier through
// Problems; rules only guard store integrity.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error)
}

// RulesEngine runs registered rules in order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine with no rules.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register adds rule after the ones already registered.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns a copy of the registered rules.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule and merges the results. A rule error stops
// evaluation and names the rule.
func (e *RulesEngine) Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}
