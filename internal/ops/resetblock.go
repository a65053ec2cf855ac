package ops

import (
	"context"
	"slices"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// ResetBlockRequest sets a block's highest section, possibly lowering it.
type ResetBlockRequest struct {
	Barcode string `json:"barcode"`
	// HighestSection clears the counter when nil.
	HighestSection *int   `json:"highestSection,omitempty"`
	WorkNumber     string `json:"workNumber,omitempty"`
}

type resetBlockInput struct {
	opType  domain.OperationType
	work    *domain.Work
	labware domain.Labware
	slot    domain.Slot
	highest *int
}

// ResetBlock is the administrative path for correcting a block counter.
func (r *Runner) ResetBlock(ctx context.Context, user *domain.User, req *ResetBlockRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelResetBlock, user, req, validateResetBlock, r.recordResetBlock)
}

func validateResetBlock(view domain.TransactionView, _ domain.User, req ResetBlockRequest) (resetBlockInput, domain.Problems) {
	var p domain.Problems
	var in resetBlockInput
	in.opType = requireOperationType(view, domain.OpTypeResetBlock, domain.FlagInPlace, &p)
	in.work = loadOptionalWork(view, req.WorkNumber, &p)
	if req.HighestSection != nil {
		if *req.HighestSection < 0 {
			p.Addf("Highest section cannot be negative: %d.", *req.HighestSection)
		}
		n := *req.HighestSection
		in.highest = &n
	}
	lw, ok := validation.LoadSingleLabware(view, req.Barcode, &p)
	if !ok {
		return in, p
	}
	in.labware = lw
	v := validation.NewLabwareValidator(lw)
	v.ValidateSources()
	v.MergeInto(&p)
	idx := slices.IndexFunc(lw.Slots, domain.Slot.IsBlock)
	if idx < 0 {
		p.Addf("Labware is not a block: [%s].", lw.Barcode)
		return in, p
	}
	in.slot = lw.Slots[idx]
	return in, p
}

func (r *Runner) recordResetBlock(tx domain.Transaction, user domain.User, in resetBlockInput) (core.OperationResult, error) {
	if _, err := tx.ResetBlockHighestSection(in.slot.ID, in.highest); err != nil {
		return core.OperationResult{}, err
	}
	partial := in.labware
	partial.Slots = []domain.Slot{in.slot}
	op, err := r.recorder.CreateOperationInPlace(tx, in.opType, user, partial, nil)
	if err != nil {
		return core.OperationResult{}, err
	}
	ops := []domain.Operation{op}
	if err := r.link(tx, in.work, ops); err != nil {
		return core.OperationResult{}, err
	}
	labware, err := reload(tx, in.labware.ID)
	if err != nil {
		return core.OperationResult{}, err
	}
	return core.OperationResult{Operations: ops, Labware: labware}, nil
}
