package memory

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"labcore/pkg/domain"
)

// transaction represents a mutation set applied to a private copy of the store state.
type transaction struct {
	view
	store   *Store
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) nextID(entity domain.EntityType) int {
	tx.state.sequences[entity]++
	return tx.state.sequences[entity]
}

// CreateLabwareType stores a new labware layout.
func (tx *transaction) CreateLabwareType(lt domain.LabwareType) (domain.LabwareType, error) {
	if strings.TrimSpace(lt.Name) == "" || lt.Rows < 1 || lt.Columns < 1 {
		return domain.LabwareType{}, fmt.Errorf("%w: labware type needs a name and a positive layout", domain.ErrIllegalArgument)
	}
	if _, exists := tx.FindLabwareType(lt.Name); exists {
		return domain.LabwareType{}, domain.ErrConflict{Entity: domain.EntityLabwareType, Key: lt.Name}
	}
	lt.ID = tx.nextID(domain.EntityLabwareType)
	tx.state.labwareTypes[lt.ID] = lt
	tx.recordChange(domain.Change{Entity: domain.EntityLabwareType, Action: domain.ActionCreate, After: lt})
	return lt, nil
}

// CreateLabware stores a new labware with one slot per address of its type.
func (tx *transaction) CreateLabware(l domain.Labware) (domain.Labware, error) {
	lt, ok := tx.state.labwareTypes[l.Type.ID]
	if !ok {
		if lt, ok = tx.FindLabwareType(l.Type.Name); !ok {
			return domain.Labware{}, domain.ErrNotFound{Entity: domain.EntityLabwareType, Key: l.Type.Name}
		}
	}
	barcode := strings.TrimSpace(l.Barcode)
	if barcode == "" {
		return domain.Labware{}, fmt.Errorf("%w: labware barcode required", domain.ErrIllegalArgument)
	}
	if _, exists := tx.FindLabwareByBarcode(barcode); exists {
		return domain.Labware{}, domain.ErrConflict{Entity: domain.EntityLabware, Key: barcode}
	}
	seeds := make(map[domain.Address]domain.Slot, len(l.Slots))
	for _, slot := range l.Slots {
		if !lt.Contains(slot.Address) {
			return domain.Labware{}, fmt.Errorf("%w: address %s is not in labware type %s", domain.ErrIllegalArgument, slot.Address, lt.Name)
		}
		for _, sampleID := range slot.SampleIDs {
			if _, ok := tx.state.samples[sampleID]; !ok {
				return domain.Labware{}, domain.ErrNotFound{Entity: domain.EntitySample, Key: sampleID}
			}
		}
		seeds[slot.Address] = slot
	}

	created := domain.Labware{
		ID:        tx.nextID(domain.EntityLabware),
		Barcode:   barcode,
		Type:      lt,
		Discarded: l.Discarded,
		Destroyed: l.Destroyed,
		Released:  l.Released,
		Created:   tx.now,
	}
	for _, addr := range lt.Addresses() {
		slot := domain.Slot{Address: addr}
		if seed, ok := seeds[addr]; ok {
			slot = cloneSlot(seed)
		}
		slot.ID = tx.nextID(domain.EntitySlot)
		slot.LabwareID = created.ID
		created.Slots = append(created.Slots, slot)
	}
	tx.state.labware[created.ID] = cloneLabware(created)
	tx.recordChange(domain.Change{Entity: domain.EntityLabware, Action: domain.ActionCreate, After: cloneLabware(created)})
	return created, nil
}

// UpdateLabware mutates lifecycle flags and slot contents. Identity, barcode,
// type and the slot layout are fixed for life and cannot be changed.
func (tx *transaction) UpdateLabware(id int, mutator func(*domain.Labware) error) (domain.Labware, error) {
	current, ok := tx.state.labware[id]
	if !ok {
		return domain.Labware{}, domain.ErrNotFound{Entity: domain.EntityLabware, Key: id}
	}
	before := cloneLabware(current)
	working := cloneLabware(current)
	if err := mutator(&working); err != nil {
		return domain.Labware{}, err
	}
	if err := checkLabwareIdentity(before, working); err != nil {
		return domain.Labware{}, err
	}
	for _, slot := range working.Slots {
		for _, sampleID := range slot.SampleIDs {
			if _, ok := tx.state.samples[sampleID]; !ok {
				return domain.Labware{}, domain.ErrNotFound{Entity: domain.EntitySample, Key: sampleID}
			}
		}
	}
	tx.state.labware[id] = cloneLabware(working)
	tx.recordChange(domain.Change{Entity: domain.EntityLabware, Action: domain.ActionUpdate, Before: before, After: cloneLabware(working)})
	return working, nil
}

func checkLabwareIdentity(before, after domain.Labware) error {
	if after.ID != before.ID || after.Barcode != before.Barcode || after.Type != before.Type || !after.Created.Equal(before.Created) {
		return fmt.Errorf("%w: labware %s identity is immutable", domain.ErrIllegalArgument, before.Barcode)
	}
	if len(after.Slots) != len(before.Slots) {
		return fmt.Errorf("%w: labware %s slot layout is immutable", domain.ErrIllegalArgument, before.Barcode)
	}
	for i := range before.Slots {
		if after.Slots[i].ID != before.Slots[i].ID || after.Slots[i].Address != before.Slots[i].Address || after.Slots[i].LabwareID != before.Slots[i].LabwareID {
			return fmt.Errorf("%w: labware %s slot layout is immutable", domain.ErrIllegalArgument, before.Barcode)
		}
	}
	return nil
}

// ResetBlockHighestSection sets a block counter to any value, including a lower one.
func (tx *transaction) ResetBlockHighestSection(slotID int, highest *int) (domain.Slot, error) {
	labwareID, ok := tx.labwareIDForSlot(slotID)
	if !ok {
		return domain.Slot{}, domain.ErrNotFound{Entity: domain.EntitySlot, Key: slotID}
	}
	current := tx.state.labware[labwareID]
	before := cloneLabware(current)
	after := cloneLabware(current)
	var updated domain.Slot
	for i := range after.Slots {
		if after.Slots[i].ID != slotID {
			continue
		}
		if !after.Slots[i].IsBlock() {
			return domain.Slot{}, fmt.Errorf("%w: slot %s of %s is not a block", domain.ErrIllegalArgument, after.Slots[i].Address, after.Barcode)
		}
		after.Slots[i].BlockHighestSection = cloneIntPtr(highest)
		updated = cloneSlot(after.Slots[i])
	}
	tx.state.labware[labwareID] = after
	tx.recordChange(domain.Change{Entity: domain.EntityLabware, Action: domain.ActionReset, Before: before, After: cloneLabware(after)})
	return updated, nil
}

// CreateSample stores a new immutable sample.
func (tx *transaction) CreateSample(s domain.Sample) (domain.Sample, error) {
	if strings.TrimSpace(s.Tissue) == "" {
		return domain.Sample{}, fmt.Errorf("%w: sample tissue required", domain.ErrIllegalArgument)
	}
	s = cloneSample(s)
	s.ID = tx.nextID(domain.EntitySample)
	tx.state.samples[s.ID] = s
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionCreate, After: cloneSample(s)})
	return cloneSample(s), nil
}

// CreateOperation stores an operation header. Actions are saved separately.
func (tx *transaction) CreateOperation(op domain.Operation) (domain.Operation, error) {
	if _, ok := tx.state.operationTypes[op.OperationType.ID]; !ok {
		return domain.Operation{}, domain.ErrNotFound{Entity: domain.EntityOperationType, Key: op.OperationType.Name}
	}
	if _, ok := tx.state.users[op.User.ID]; !ok {
		return domain.Operation{}, domain.ErrNotFound{Entity: domain.EntityUser, Key: op.User.Username}
	}
	op.ID = tx.nextID(domain.EntityOperation)
	op.Actions = nil
	if op.PerformedAt.IsZero() {
		op.PerformedAt = tx.now
	}
	tx.state.operations[op.ID] = op
	tx.recordChange(domain.Change{Entity: domain.EntityOperation, Action: domain.ActionCreate, After: op})
	return op, nil
}

// CreateActions stores a batch of action edges.
func (tx *transaction) CreateActions(actions []domain.Action) ([]domain.Action, error) {
	out := make([]domain.Action, 0, len(actions))
	for _, a := range actions {
		if _, ok := tx.state.operations[a.OperationID]; !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityOperation, Key: a.OperationID}
		}
		a.ID = tx.nextID(domain.EntityAction)
		tx.state.actions[a.ID] = a
		tx.recordChange(domain.Change{Entity: domain.EntityAction, Action: domain.ActionCreate, After: a})
		out = append(out, a)
	}
	return out, nil
}

// CreateOperationComments stores comment associations for operations.
func (tx *transaction) CreateOperationComments(comments []domain.OperationComment) ([]domain.OperationComment, error) {
	out := make([]domain.OperationComment, 0, len(comments))
	for _, c := range comments {
		if _, ok := tx.state.operations[c.OperationID]; !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityOperation, Key: c.OperationID}
		}
		if _, ok := tx.state.comments[c.CommentID]; !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityComment, Key: c.CommentID}
		}
		c = cloneOperationComment(c)
		c.ID = tx.nextID(domain.EntityOperationComment)
		tx.state.opComments[c.ID] = c
		tx.recordChange(domain.Change{Entity: domain.EntityOperationComment, Action: domain.ActionCreate, After: c})
		out = append(out, cloneOperationComment(c))
	}
	return out, nil
}

// CreateOperationEquipment records the equipment used for an operation.
func (tx *transaction) CreateOperationEquipment(e domain.OperationEquipment) (domain.OperationEquipment, error) {
	if _, ok := tx.state.operations[e.OperationID]; !ok {
		return domain.OperationEquipment{}, domain.ErrNotFound{Entity: domain.EntityOperation, Key: e.OperationID}
	}
	if _, ok := tx.state.equipment[e.EquipmentID]; !ok {
		return domain.OperationEquipment{}, domain.ErrNotFound{Entity: domain.EntityEquipment, Key: e.EquipmentID}
	}
	e.ID = tx.nextID(domain.EntityOperationEquipment)
	tx.state.opEquipment[e.ID] = e
	tx.recordChange(domain.Change{Entity: domain.EntityOperationEquipment, Action: domain.ActionCreate, After: e})
	return e, nil
}

// CreatePlan stores a plan header and its planned actions.
func (tx *transaction) CreatePlan(p domain.Plan) (domain.Plan, error) {
	if len(p.Actions) == 0 {
		return domain.Plan{}, fmt.Errorf("%w: plan without actions", domain.ErrIllegalArgument)
	}
	planned := p.Actions
	p.ID = tx.nextID(domain.EntityPlan)
	p.Actions = nil
	if p.PlannedAt.IsZero() {
		p.PlannedAt = tx.now
	}
	tx.state.plans[p.ID] = p
	for _, a := range planned {
		a = clonePlannedAction(a)
		a.ID = tx.nextID(domain.EntityPlannedAction)
		a.PlanID = p.ID
		tx.state.plannedActions[a.ID] = a
		p.Actions = append(p.Actions, clonePlannedAction(a))
	}
	tx.recordChange(domain.Change{Entity: domain.EntityPlan, Action: domain.ActionCreate, After: p})
	return p, nil
}

// CreateOperationType stores a reference operation type.
func (tx *transaction) CreateOperationType(ot domain.OperationType) (domain.OperationType, error) {
	if strings.TrimSpace(ot.Name) == "" {
		return domain.OperationType{}, fmt.Errorf("%w: operation type name required", domain.ErrIllegalArgument)
	}
	if _, exists := tx.FindOperationType(ot.Name); exists {
		return domain.OperationType{}, domain.ErrConflict{Entity: domain.EntityOperationType, Key: ot.Name}
	}
	ot.ID = tx.nextID(domain.EntityOperationType)
	tx.state.operationTypes[ot.ID] = ot
	tx.recordChange(domain.Change{Entity: domain.EntityOperationType, Action: domain.ActionCreate, After: ot})
	return ot, nil
}

// CreateWork stores a work record.
func (tx *transaction) CreateWork(w domain.Work) (domain.Work, error) {
	if strings.TrimSpace(w.WorkNumber) == "" {
		return domain.Work{}, fmt.Errorf("%w: work number required", domain.ErrIllegalArgument)
	}
	if _, exists := tx.FindWork(w.WorkNumber); exists {
		return domain.Work{}, domain.ErrConflict{Entity: domain.EntityWork, Key: w.WorkNumber}
	}
	w = cloneWork(w)
	w.ID = tx.nextID(domain.EntityWork)
	if w.Status == "" {
		w.Status = domain.WorkStatusActive
	}
	tx.state.works[w.ID] = w
	tx.recordChange(domain.Change{Entity: domain.EntityWork, Action: domain.ActionCreate, After: cloneWork(w)})
	return cloneWork(w), nil
}

// LinkWorkOperations appends operation ids to the work, skipping ids already linked.
func (tx *transaction) LinkWorkOperations(workID int, operationIDs []int) (domain.Work, error) {
	w, ok := tx.state.works[workID]
	if !ok {
		return domain.Work{}, domain.ErrNotFound{Entity: domain.EntityWork, Key: workID}
	}
	before := cloneWork(w)
	w = cloneWork(w)
	for _, opID := range operationIDs {
		if _, ok := tx.state.operations[opID]; !ok {
			return domain.Work{}, domain.ErrNotFound{Entity: domain.EntityOperation, Key: opID}
		}
		if !slices.Contains(w.OperationIDs, opID) {
			w.OperationIDs = append(w.OperationIDs, opID)
		}
	}
	tx.state.works[workID] = w
	tx.recordChange(domain.Change{Entity: domain.EntityWork, Action: domain.ActionUpdate, Before: before, After: cloneWork(w)})
	return cloneWork(w), nil
}

// CreateComment stores a reference comment.
func (tx *transaction) CreateComment(c domain.Comment) (domain.Comment, error) {
	if strings.TrimSpace(c.Text) == "" {
		return domain.Comment{}, fmt.Errorf("%w: comment text required", domain.ErrIllegalArgument)
	}
	c.ID = tx.nextID(domain.EntityComment)
	tx.state.comments[c.ID] = c
	tx.recordChange(domain.Change{Entity: domain.EntityComment, Action: domain.ActionCreate, After: c})
	return c, nil
}

// CreateEquipment stores a reference equipment row.
func (tx *transaction) CreateEquipment(e domain.Equipment) (domain.Equipment, error) {
	if strings.TrimSpace(e.Name) == "" {
		return domain.Equipment{}, fmt.Errorf("%w: equipment name required", domain.ErrIllegalArgument)
	}
	e.ID = tx.nextID(domain.EntityEquipment)
	tx.state.equipment[e.ID] = e
	tx.recordChange(domain.Change{Entity: domain.EntityEquipment, Action: domain.ActionCreate, After: e})
	return e, nil
}

// CreateUser stores a user.
func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	if strings.TrimSpace(u.Username) == "" {
		return domain.User{}, fmt.Errorf("%w: username required", domain.ErrIllegalArgument)
	}
	if _, exists := tx.FindUser(u.Username); exists {
		return domain.User{}, domain.ErrConflict{Entity: domain.EntityUser, Key: u.Username}
	}
	u.ID = tx.nextID(domain.EntityUser)
	tx.state.users[u.ID] = u
	tx.recordChange(domain.Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}
