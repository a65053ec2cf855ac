package ops

import (
	"context"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// InPlaceRequest records an in-place operation such as a stain or an image on
// each listed labware.
type InPlaceRequest struct {
	OperationType string   `json:"operationType"`
	Barcodes      []string `json:"barcodes"`
	WorkNumber    string   `json:"workNumber"`
	EquipmentID   *int     `json:"equipmentId,omitempty"`
	CommentIDs    []int    `json:"commentIds,omitempty"`
}

type inPlaceInput struct {
	opType     domain.OperationType
	work       domain.Work
	labware    []domain.Labware
	equipment  *domain.Equipment
	commentIDs []int
}

// RecordInPlace records one in-place operation per labware.
func (r *Runner) RecordInPlace(ctx context.Context, user *domain.User, req *InPlaceRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelRecordInPlace, user, req, validateInPlace, r.recordInPlace)
}

func validateInPlace(view domain.TransactionView, _ domain.User, req InPlaceRequest) (inPlaceInput, domain.Problems) {
	var p domain.Problems
	var in inPlaceInput
	if req.OperationType == "" {
		p.Add("No operation type specified.")
	} else {
		in.opType = requireOperationType(view, req.OperationType, domain.FlagInPlace, &p)
	}
	if w, ok := validation.LoadWork(view, req.WorkNumber, &p); ok {
		in.work = w
	}
	if len(req.Barcodes) == 0 {
		p.Add("No barcodes specified.")
	} else {
		v := validation.NewLabwareValidator()
		v.UniqueRequired = true
		in.labware = v.Load(view, req.Barcodes)
		v.ValidateSources()
		v.MergeInto(&p)
	}
	in.equipment, _ = validation.LoadEquipment(view, req.EquipmentID, &p)
	if len(req.CommentIDs) > 0 {
		comments, _ := validation.LoadComments(view, req.CommentIDs, &p)
		for _, c := range comments {
			in.commentIDs = append(in.commentIDs, c.ID)
		}
	}
	return in, p
}

func (r *Runner) recordInPlace(tx domain.Transaction, user domain.User, in inPlaceInput) (core.OperationResult, error) {
	var equipmentID *int
	if in.equipment != nil {
		equipmentID = &in.equipment.ID
	}
	var result core.OperationResult
	for _, lw := range in.labware {
		op, err := r.recorder.CreateOperationInPlace(tx, in.opType, user, lw, equipmentID, in.commentIDs...)
		if err != nil {
			return core.OperationResult{}, err
		}
		result.Operations = append(result.Operations, op)
		result.Labware = append(result.Labware, lw)
	}
	if err := r.link(tx, &in.work, result.Operations); err != nil {
		return core.OperationResult{}, err
	}
	return result, nil
}
