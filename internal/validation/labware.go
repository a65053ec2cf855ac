// Package validation holds the reusable precondition checks shared by every
// labcore orchestrator. Checks append to a domain.Problems and never fail fast.
package validation

import (
	"strings"

	"labcore/pkg/domain"
)

// LabwareLoader resolves labware by barcode. domain.TransactionView satisfies it.
type LabwareLoader interface {
	FindLabwareByBarcodes(barcodes []string) []domain.Labware
}

// LabwareValidator accumulates problems about a candidate set of labware.
type LabwareValidator struct {
	// UniqueRequired makes ValidateSources reject repeated labware.
	UniqueRequired bool
	// SingleSample makes ValidateSources reject labware with more than one sample.
	SingleSample bool

	labware  []domain.Labware
	problems domain.Problems
}

// NewLabwareValidator returns a validator over the given labware.
func NewLabwareValidator(labware ...domain.Labware) *LabwareValidator {
	return &LabwareValidator{labware: append([]domain.Labware(nil), labware...)}
}

// Labware returns the candidate labware in load order.
func (v *LabwareValidator) Labware() []domain.Labware {
	return append([]domain.Labware(nil), v.labware...)
}

// SetLabware replaces the candidate labware.
func (v *LabwareValidator) SetLabware(labware []domain.Labware) {
	v.labware = append([]domain.Labware(nil), labware...)
}

// Load resolves barcodes and makes the result the candidate set. Every input
// that matched nothing, blanks included, is reported in a single problem.
// Repeated barcodes yield repeated labware so ValidateUnique can see them.
func (v *LabwareValidator) Load(loader LabwareLoader, barcodes []string) []domain.Labware {
	found := loader.FindLabwareByBarcodes(barcodes)
	index := make(map[string]domain.Labware, len(found))
	for _, lw := range found {
		index[strings.ToUpper(lw.Barcode)] = lw
	}
	var loaded []domain.Labware
	var unmatched []string
	for _, bc := range barcodes {
		key := strings.ToUpper(strings.TrimSpace(bc))
		if lw, ok := index[key]; ok && key != "" {
			loaded = append(loaded, lw)
			continue
		}
		if key == "" {
			unmatched = append(unmatched, "null")
		} else {
			unmatched = append(unmatched, bc)
		}
	}
	if len(unmatched) > 0 {
		v.problems.Addf("Invalid labware %s: %s.", domain.Pluralise(len(unmatched), "barcode", "barcodes"), domain.DescribeList(unmatched))
	}
	v.labware = loaded
	return v.Labware()
}

// ValidateUnique reports each labware that occurs more than once, once.
func (v *LabwareValidator) ValidateUnique() {
	counts := make(map[int]int, len(v.labware))
	for _, lw := range v.labware {
		counts[lw.ID]++
	}
	reported := make(map[int]bool)
	for _, lw := range v.labware {
		if counts[lw.ID] > 1 && !reported[lw.ID] {
			reported[lw.ID] = true
			v.problems.Addf("Labware is repeated: %s.", lw.Barcode)
		}
	}
}

// ValidateNonEmpty reports every labware whose slots are all empty.
func (v *LabwareValidator) ValidateNonEmpty() {
	v.ValidateState(domain.Labware.Empty, "empty")
}

// ValidateSingleSample reports labware holding samples in more than one slot
// and, separately, labware with more than one distinct sample in a slot.
func (v *LabwareValidator) ValidateSingleSample() {
	distinct := v.distinct()
	for _, lw := range distinct {
		if len(lw.OccupiedSlots()) > 1 {
			v.problems.Addf("Labware contains samples in multiple slots: %s.", lw.Barcode)
		}
	}
	for _, lw := range distinct {
		for _, slot := range lw.Slots {
			if len(slot.DistinctSampleIDs()) > 1 {
				v.problems.Addf("Labware contains multiple samples in a slot: %s.", lw.Barcode)
				break
			}
		}
	}
}

// ValidateState reports every labware matching predicate as "Labware is {label}",
// once per labware.
func (v *LabwareValidator) ValidateState(predicate func(domain.Labware) bool, label string) {
	for _, lw := range v.distinct() {
		if predicate(lw) {
			v.problems.Addf("Labware is %s: %s.", label, lw.Barcode)
		}
	}
}

// ValidateStates rejects discarded, destroyed and released labware.
func (v *LabwareValidator) ValidateStates() {
	if len(v.labware) == 0 {
		return
	}
	v.ValidateState(func(l domain.Labware) bool { return l.Discarded }, "discarded")
	v.ValidateState(func(l domain.Labware) bool { return l.Destroyed }, "destroyed")
	v.ValidateState(func(l domain.Labware) bool { return l.Released }, "released")
}

// ValidateSources runs the checks for labware used as an operation source.
func (v *LabwareValidator) ValidateSources() {
	if v.UniqueRequired {
		v.ValidateUnique()
	}
	v.ValidateNonEmpty()
	if v.SingleSample {
		v.ValidateSingleSample()
	}
	v.ValidateStates()
}

// distinct returns the candidate labware with repeats removed, in first-seen order.
func (v *LabwareValidator) distinct() []domain.Labware {
	out := make([]domain.Labware, 0, len(v.labware))
	seen := make(map[int]bool, len(v.labware))
	for _, lw := range v.labware {
		if !seen[lw.ID] {
			seen[lw.ID] = true
			out = append(out, lw)
		}
	}
	return out
}

// Problems returns the problems recorded so far.
func (v *LabwareValidator) Problems() []string {
	return v.problems.List()
}

// MergeInto appends the recorded problems to p.
func (v *LabwareValidator) MergeInto(p *domain.Problems) {
	p.Merge(v.problems)
}

// Err returns nil when nothing was recorded. Otherwise the problems are joined
// into one sentence list and passed to factory; a nil factory yields a
// *domain.ValidationError.
func (v *LabwareValidator) Err(factory func(message string) error) error {
	if v.problems.Empty() {
		return nil
	}
	if factory == nil {
		return v.problems.Err()
	}
	return factory(v.problems.Join())
}
