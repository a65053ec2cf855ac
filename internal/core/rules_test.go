package core

import (
	"errors"
	"testing"

	"labcore/pkg/domain"
)

func blockingRules(t *testing.T, err error) []string {
	t.Helper()
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	names := make([]string, 0, len(rv.Result.Violations))
	for _, v := range rv.Result.Violations {
		names = append(names, v.Rule)
	}
	return names
}

func TestDefaultRulesEngineRegistersIntegrityRules(t *testing.T) {
	rules := NewDefaultRulesEngine().Rules()
	want := []string{RuleOperationHasActions, RuleBlockSectionMonotonic, RuleActionReferences}
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, r := range rules {
		if r.Name() != want[i] {
			t.Fatalf("rule %d: expected %s got %s", i, want[i], r.Name())
		}
	}
}
