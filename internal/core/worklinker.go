package core

import "labcore/pkg/domain"

// WorkLinker attaches recorded operations to a work.
type WorkLinker struct{}

// Link appends the operation ids to the work; linking nothing is a no-op.
func (WorkLinker) Link(tx domain.Transaction, work domain.Work, operations []domain.Operation) (domain.Work, error) {
	if len(operations) == 0 {
		return work, nil
	}
	ids := make([]int, len(operations))
	for i, op := range operations {
		ids[i] = op.ID
	}
	return tx.LinkWorkOperations(work.ID, ids)
}
