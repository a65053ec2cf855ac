package core

import (
	"context"
	"fmt"

	"labcore/pkg/domain"
)

// BlockSectionMonotonicRule blocks ordinary labware updates that lower a block's
// highest section. Administrative resets are exempt.
func BlockSectionMonotonicRule() domain.Rule { return blockSectionMonotonicRule{} }

type blockSectionMonotonicRule struct{}

func (blockSectionMonotonicRule) Name() string { return RuleBlockSectionMonotonic }

func (blockSectionMonotonicRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityLabware || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Labware)
		if !ok {
			continue
		}
		after, ok := change.After.(domain.Labware)
		if !ok {
			continue
		}
		for _, slot := range after.Slots {
			prior, found := before.SlotByID(slot.ID)
			if !found || !prior.IsBlock() {
				continue
			}
			if slot.HighestSection() < prior.HighestSection() {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     RuleBlockSectionMonotonic,
					Severity: domain.SeverityBlock,
					Message: fmt.Sprintf("labware %s slot %s highest section would decrease from %d to %d",
						after.Barcode, slot.Address, prior.HighestSection(), slot.HighestSection()),
					Entity:   domain.EntitySlot,
					EntityID: slot.ID,
				})
			}
		}
	}
	return res, nil
}
