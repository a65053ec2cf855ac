package ops

import (
	"context"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// DestroyRequest destroys labware for a recorded reason.
type DestroyRequest struct {
	Barcodes   []string `json:"barcodes"`
	ReasonID   int      `json:"reasonId"`
	WorkNumber string   `json:"workNumber,omitempty"`
}

type destroyInput struct {
	opType  domain.OperationType
	reason  domain.Comment
	work    *domain.Work
	labware []domain.Labware
}

// Destroy records a destroy operation per labware and marks it destroyed.
func (r *Runner) Destroy(ctx context.Context, user *domain.User, req *DestroyRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelDestroy, user, req, validateDestroy, r.recordDestroy)
}

func validateDestroy(view domain.TransactionView, _ domain.User, req DestroyRequest) (destroyInput, domain.Problems) {
	var p domain.Problems
	var in destroyInput
	in.opType = requireOperationType(view, domain.OpTypeDestroy, domain.FlagInPlace, &p)
	if len(req.Barcodes) == 0 {
		p.Add("No barcodes specified.")
	} else {
		v := validation.NewLabwareValidator()
		v.UniqueRequired = true
		in.labware = v.Load(view, req.Barcodes)
		v.ValidateSources()
		v.MergeInto(&p)
	}
	in.reason, _ = validation.LoadComment(view, req.ReasonID, &p)
	in.work = loadOptionalWork(view, req.WorkNumber, &p)
	return in, p
}

func (r *Runner) recordDestroy(tx domain.Transaction, user domain.User, in destroyInput) (core.OperationResult, error) {
	var result core.OperationResult
	for _, lw := range in.labware {
		op, err := r.recorder.CreateOperationInPlace(tx, in.opType, user, lw, nil, in.reason.ID)
		if err != nil {
			return core.OperationResult{}, err
		}
		updated, err := tx.UpdateLabware(lw.ID, func(l *domain.Labware) error {
			l.Destroyed = true
			return nil
		})
		if err != nil {
			return core.OperationResult{}, err
		}
		result.Operations = append(result.Operations, op)
		result.Labware = append(result.Labware, updated)
	}
	if err := r.link(tx, in.work, result.Operations); err != nil {
		return core.OperationResult{}, err
	}
	return result, nil
}
