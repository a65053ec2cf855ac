package ops

import (
	"context"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// ReactivateItem names a labware to reactivate and the reason for doing so.
type ReactivateItem struct {
	Barcode   string `json:"barcode"`
	CommentID int    `json:"commentId"`
}

// ReactivateRequest restores discarded or destroyed labware to active use.
type ReactivateRequest struct {
	Items      []ReactivateItem `json:"items"`
	WorkNumber string           `json:"workNumber"`
}

type reactivateInput struct {
	opType   domain.OperationType
	work     domain.Work
	labware  []domain.Labware
	comments map[int]int // labware id -> comment id
}

// Reactivate clears the discarded and destroyed flags and records why.
func (r *Runner) Reactivate(ctx context.Context, user *domain.User, req *ReactivateRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelReactivate, user, req, validateReactivate, r.recordReactivate)
}

func validateReactivate(view domain.TransactionView, _ domain.User, req ReactivateRequest) (reactivateInput, domain.Problems) {
	var p domain.Problems
	in := reactivateInput{comments: make(map[int]int)}
	in.opType = requireOperationType(view, domain.OpTypeReactivate, domain.FlagInPlace, &p)
	if w, ok := validation.LoadWork(view, req.WorkNumber, &p); ok {
		in.work = w
	}
	if len(req.Items) == 0 {
		p.Add("No labware specified.")
		return in, p
	}
	barcodes := make([]string, len(req.Items))
	commentIDs := make([]int, len(req.Items))
	for i, item := range req.Items {
		barcodes[i] = item.Barcode
		commentIDs[i] = item.CommentID
	}
	v := validation.NewLabwareValidator()
	in.labware = v.Load(view, barcodes)
	v.ValidateUnique()
	v.ValidateNonEmpty()
	v.ValidateState(func(l domain.Labware) bool { return !l.Discarded && !l.Destroyed }, "not discarded or destroyed")
	v.ValidateState(func(l domain.Labware) bool { return l.Released }, "released")
	v.MergeInto(&p)
	validation.LoadComments(view, commentIDs, &p)

	for _, lw := range in.labware {
		for _, item := range req.Items {
			if found, ok := view.FindLabwareByBarcode(item.Barcode); ok && found.ID == lw.ID {
				in.comments[lw.ID] = item.CommentID
				break
			}
		}
	}
	return in, p
}

func (r *Runner) recordReactivate(tx domain.Transaction, user domain.User, in reactivateInput) (core.OperationResult, error) {
	var result core.OperationResult
	for _, lw := range in.labware {
		updated, err := tx.UpdateLabware(lw.ID, func(l *domain.Labware) error {
			l.Discarded = false
			l.Destroyed = false
			return nil
		})
		if err != nil {
			return core.OperationResult{}, err
		}
		op, err := r.recorder.CreateOperationInPlace(tx, in.opType, user, updated, nil, in.comments[lw.ID])
		if err != nil {
			return core.OperationResult{}, err
		}
		result.Operations = append(result.Operations, op)
		result.Labware = append(result.Labware, updated)
	}
	if err := r.link(tx, &in.work, result.Operations); err != nil {
		return core.OperationResult{}, err
	}
	return result, nil
}
