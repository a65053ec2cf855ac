package ops

import (
	"context"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// CleanOutRequest empties the given slots of one labware.
type CleanOutRequest struct {
	Barcode     string   `json:"barcode"`
	Addresses   []string `json:"addresses"`
	WorkNumber  string   `json:"workNumber"`
	EquipmentID *int     `json:"equipmentId,omitempty"`
}

type cleanOutInput struct {
	opType    domain.OperationType
	work      domain.Work
	labware   domain.Labware
	slots     []domain.Slot
	equipment *domain.Equipment
}

// CleanOut records a clean-out of the requested slots and leaves them empty.
func (r *Runner) CleanOut(ctx context.Context, user *domain.User, req *CleanOutRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelCleanOut, user, req, validateCleanOut, r.recordCleanOut)
}

func validateCleanOut(view domain.TransactionView, _ domain.User, req CleanOutRequest) (cleanOutInput, domain.Problems) {
	var p domain.Problems
	var in cleanOutInput
	in.opType = requireOperationType(view, domain.OpTypeCleanOut, domain.FlagInPlace, &p)
	if w, ok := validation.LoadWork(view, req.WorkNumber, &p); ok {
		in.work = w
	}
	in.equipment, _ = validation.LoadEquipment(view, req.EquipmentID, &p)

	lw, ok := validation.LoadSingleLabware(view, req.Barcode, &p)
	if !ok {
		return in, p
	}
	in.labware = lw
	v := validation.NewLabwareValidator(lw)
	v.ValidateStates()
	v.MergeInto(&p)
	in.slots = validation.CheckSlots(lw, req.Addresses, validation.SlotCheck{RequireOccupied: true}, &p)
	return in, p
}

func (r *Runner) recordCleanOut(tx domain.Transaction, user domain.User, in cleanOutInput) (core.OperationResult, error) {
	partial := in.labware
	partial.Slots = in.slots
	var equipmentID *int
	if in.equipment != nil {
		equipmentID = &in.equipment.ID
	}
	op, err := r.recorder.CreateOperationInPlace(tx, in.opType, user, partial, equipmentID)
	if err != nil {
		return core.OperationResult{}, err
	}
	cleared := make(map[int]bool, len(in.slots))
	for _, s := range in.slots {
		cleared[s.ID] = true
	}
	updated, err := tx.UpdateLabware(in.labware.ID, func(l *domain.Labware) error {
		for i := range l.Slots {
			if cleared[l.Slots[i].ID] {
				l.Slots[i].SampleIDs = nil
			}
		}
		return nil
	})
	if err != nil {
		return core.OperationResult{}, err
	}
	ops := []domain.Operation{op}
	if err := r.link(tx, &in.work, ops); err != nil {
		return core.OperationResult{}, err
	}
	return core.OperationResult{Operations: ops, Labware: []domain.Labware{updated}}, nil
}
