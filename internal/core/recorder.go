package core

import (
	"fmt"

	"labcore/pkg/domain"
)

// OperationResult pairs the operations created by a request with the labware it affected.
type OperationResult struct {
	Operations []domain.Operation `json:"operations"`
	Labware    []domain.Labware   `json:"labware"`
}

// Recorder performs the single state-mutating step of a successful request:
// it creates an operation and its actions. It does no request validation.
type Recorder struct {
	clock Clock
}

// NewRecorder returns a recorder stamping operations with clock. A nil clock
// leaves the timestamp to the store.
func NewRecorder(clock Clock) *Recorder {
	return &Recorder{clock: clock}
}

// CreateOperation persists the operation header, then its actions in one batch,
// then reloads the operation so the returned actions are exactly what was stored.
func (r *Recorder) CreateOperation(tx domain.Transaction, opType domain.OperationType, user domain.User, actions []domain.Action) (domain.Operation, error) {
	if len(actions) == 0 {
		return domain.Operation{}, fmt.Errorf("%w: no actions specified for %s operation", domain.ErrIllegalArgument, opType.Name)
	}
	header := domain.Operation{OperationType: opType, User: user}
	if r.clock != nil {
		header.PerformedAt = r.clock.Now()
	}
	op, err := tx.CreateOperation(header)
	if err != nil {
		return domain.Operation{}, err
	}
	batch := make([]domain.Action, len(actions))
	for i, a := range actions {
		a.ID = 0
		a.OperationID = op.ID
		batch[i] = a
	}
	if _, err := tx.CreateActions(batch); err != nil {
		return domain.Operation{}, err
	}
	reloaded, ok := tx.FindOperation(op.ID)
	if !ok {
		return domain.Operation{}, domain.ErrNotFound{Entity: domain.EntityOperation, Key: op.ID}
	}
	return reloaded, nil
}

// CreateOperationSingle records an operation with one action moving sample
// from source to destination.
func (r *Recorder) CreateOperationSingle(tx domain.Transaction, opType domain.OperationType, user domain.User, source, destination domain.Slot, sample domain.Sample) (domain.Operation, error) {
	return r.CreateOperation(tx, opType, user, []domain.Action{{
		SourceSlotID:      source.ID,
		DestinationSlotID: destination.ID,
		SourceSampleID:    sample.ID,
		SampleID:          sample.ID,
	}})
}

// CreateOperationInPlace records an operation with one in-place action per
// (slot, sample) pair currently in the labware. Optional equipment is attached
// to the operation and each comment to every action.
func (r *Recorder) CreateOperationInPlace(tx domain.Transaction, opType domain.OperationType, user domain.User, labware domain.Labware, equipmentID *int, commentIDs ...int) (domain.Operation, error) {
	op, err := r.CreateOperation(tx, opType, user, InPlaceActions(labware.Slots))
	if err != nil {
		return domain.Operation{}, err
	}
	if equipmentID != nil {
		if _, err := tx.CreateOperationEquipment(domain.OperationEquipment{OperationID: op.ID, EquipmentID: *equipmentID}); err != nil {
			return domain.Operation{}, err
		}
	}
	if len(commentIDs) > 0 {
		comments := make([]domain.OperationComment, 0, len(op.Actions)*len(commentIDs))
		for _, commentID := range commentIDs {
			for _, a := range op.Actions {
				sampleID, slotID := a.SampleID, a.DestinationSlotID
				comments = append(comments, domain.OperationComment{
					OperationID: op.ID,
					CommentID:   commentID,
					SampleID:    &sampleID,
					SlotID:      &slotID,
				})
			}
		}
		if _, err := tx.CreateOperationComments(comments); err != nil {
			return domain.Operation{}, err
		}
	}
	return op, nil
}

// InPlaceActions builds one in-place action per distinct sample in each slot,
// in slot order then first-seen sample order.
func InPlaceActions(slots []domain.Slot) []domain.Action {
	var actions []domain.Action
	for _, slot := range slots {
		for _, sampleID := range slot.DistinctSampleIDs() {
			actions = append(actions, domain.Action{
				SourceSlotID:      slot.ID,
				DestinationSlotID: slot.ID,
				SourceSampleID:    sampleID,
				SampleID:          sampleID,
			})
		}
	}
	return actions
}
