package core

import (
	"context"
	"fmt"

	"labcore/pkg/domain"
)

// ActionReferencesRule blocks actions whose slots or sample do not exist.
func ActionReferencesRule() domain.Rule { return actionReferencesRule{} }

type actionReferencesRule struct{}

func (actionReferencesRule) Name() string { return RuleActionReferences }

func (actionReferencesRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityAction || change.Action != domain.ActionCreate {
			continue
		}
		action, ok := change.After.(domain.Action)
		if !ok {
			continue
		}
		var missing []string
		if _, ok := view.FindSlot(action.SourceSlotID); !ok {
			missing = append(missing, fmt.Sprintf("source slot %d", action.SourceSlotID))
		}
		if _, ok := view.FindSlot(action.DestinationSlotID); !ok {
			missing = append(missing, fmt.Sprintf("destination slot %d", action.DestinationSlotID))
		}
		if _, ok := view.FindSample(action.SampleID); !ok {
			missing = append(missing, fmt.Sprintf("sample %d", action.SampleID))
		}
		if _, ok := view.FindSample(action.SourceSampleID); !ok && action.SourceSampleID != action.SampleID {
			missing = append(missing, fmt.Sprintf("source sample %d", action.SourceSampleID))
		}
		for _, m := range missing {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     RuleActionReferences,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("action %d of operation %d references missing %s", action.ID, action.OperationID, m),
				Entity:   domain.EntityAction,
				EntityID: action.ID,
			})
		}
	}
	return res, nil
}
