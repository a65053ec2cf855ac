package core

import (
	"context"
	"fmt"

	"labcore/pkg/domain"
)

// OperationHasActionsRule blocks commits that would leave an operation without actions.
func OperationHasActionsRule() domain.Rule { return operationHasActionsRule{} }

type operationHasActionsRule struct{}

func (operationHasActionsRule) Name() string { return RuleOperationHasActions }

func (operationHasActionsRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityOperation || change.Action != domain.ActionCreate {
			continue
		}
		op, ok := change.After.(domain.Operation)
		if !ok {
			continue
		}
		stored, found := view.FindOperation(op.ID)
		if found && len(stored.Actions) > 0 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleOperationHasActions,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("operation %d (%s) has no actions", op.ID, op.OperationType.Name),
			Entity:   domain.EntityOperation,
			EntityID: op.ID,
		})
	}
	return res, nil
}
