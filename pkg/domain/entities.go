// Package domain defines the provenance graph entities, the problem
// accumulator, and the rule evaluation and persistence contracts used by labcore.
package domain

import (
	"slices"
	"time"
)

// EntityType identifies the type of record stored in the provenance graph.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityLabware identifies a labware record.
	EntityLabware EntityType = "labware"
	// EntitySlot identifies a slot; slots are persisted with their labware.
	EntitySlot EntityType = "slot"
	// EntityLabwareType identifies a labware layout record.
	EntityLabwareType EntityType = "labware_type"
	// EntitySample identifies a sample record.
	EntitySample EntityType = "sample"
	// EntityOperation identifies a recorded operation.
	EntityOperation EntityType = "operation"
	// EntityAction identifies an action edge inside an operation.
	EntityAction EntityType = "action"
	// EntityOperationType identifies an operation type reference row.
	EntityOperationType EntityType = "operation_type"
	// EntityOperationComment identifies a comment attached to an operation.
	EntityOperationComment EntityType = "operation_comment"
	// EntityOperationEquipment identifies an equipment row attached to an operation.
	EntityOperationEquipment EntityType = "operation_equipment"
	// EntityPlan identifies a plan record holding planned actions.
	EntityPlan EntityType = "plan"
	// EntityPlannedAction identifies an action stored under a plan.
	EntityPlannedAction EntityType = "planned_action"
	EntityWork          EntityType = "work"
	EntityComment       EntityType = "comment"
	EntityEquipment     EntityType = "equipment"
	EntityUser          EntityType = "user"
)

// Sample is an immutable fact about a piece of tissue. Many slots may hold the same sample.
type Sample struct {
	ID       int    `json:"id"`
	Tissue   string `json:"tissue"`
	Section  *int   `json:"section,omitempty"`
	BioState string `json:"bio_state"`
}

// LabwareType fixes the row/column layout of a piece of labware.
type LabwareType struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Addresses lists every valid address of the layout in row-major order.
func (t LabwareType) Addresses() []Address {
	out := make([]Address, 0, t.Rows*t.Columns)
	for r := 1; r <= t.Rows; r++ {
		for c := 1; c <= t.Columns; c++ {
			out = append(out, Address{Row: r, Column: c})
		}
	}
	return out
}

// Contains reports whether the address is inside the layout.
func (t LabwareType) Contains(a Address) bool {
	return a.Row >= 1 && a.Row <= t.Rows && a.Column >= 1 && a.Column <= t.Columns
}

// Slot is a single position within a piece of labware.
type Slot struct {
	ID        int     `json:"id"`
	LabwareID int     `json:"labware_id"`
	Address   Address `json:"address"`
	// SampleIDs is ordered and may repeat an id (several pieces of one sample).
	SampleIDs []int `json:"sample_ids"`
	// BlockSampleID and BlockHighestSection are set when the slot holds a tissue block.
	BlockSampleID       *int `json:"block_sample_id,omitempty"`
	BlockHighestSection *int `json:"block_highest_section,omitempty"`
}

// Empty reports whether the slot holds no samples.
func (s Slot) Empty() bool { return len(s.SampleIDs) == 0 }

// IsBlock reports whether the slot carries block metadata.
func (s Slot) IsBlock() bool { return s.BlockSampleID != nil }

// HighestSection returns the block counter, zero when unset.
func (s Slot) HighestSection() int {
	if s.BlockHighestSection == nil {
		return 0
	}
	return *s.BlockHighestSection
}

// DistinctSampleIDs returns the sample ids in first-seen order without repeats.
func (s Slot) DistinctSampleIDs() []int {
	out := make([]int, 0, len(s.SampleIDs))
	for _, id := range s.SampleIDs {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Labware is a physical container. Barcode and type are fixed for life.
type Labware struct {
	ID        int         `json:"id"`
	Barcode   string      `json:"barcode"`
	Type      LabwareType `json:"labware_type"`
	Slots     []Slot      `json:"slots"`
	Discarded bool        `json:"discarded"`
	Destroyed bool        `json:"destroyed"`
	Released  bool        `json:"released"`
	Created   time.Time   `json:"created"`
}

// Empty reports whether every slot holds zero samples.
func (l Labware) Empty() bool {
	for _, slot := range l.Slots {
		if !slot.Empty() {
			return false
		}
	}
	return true
}

// Active reports whether none of the lifecycle flags is set.
func (l Labware) Active() bool {
	return !l.Discarded && !l.Destroyed && !l.Released
}

// Slot returns the slot at the given address.
func (l Labware) Slot(a Address) (Slot, bool) {
	for _, slot := range l.Slots {
		if slot.Address == a {
			return slot, true
		}
	}
	return Slot{}, false
}

// SlotByID returns the slot with the given id.
func (l Labware) SlotByID(id int) (Slot, bool) {
	for _, slot := range l.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return Slot{}, false
}

// OccupiedSlots returns the slots holding at least one sample, in slot order.
func (l Labware) OccupiedSlots() []Slot {
	var out []Slot
	for _, slot := range l.Slots {
		if !slot.Empty() {
			out = append(out, slot)
		}
	}
	return out
}

// OperationTypeFlag describes optional behaviour of an operation type.
type OperationTypeFlag uint32

// Operation type flags.
const (
	// FlagInPlace marks operations whose actions keep samples in their slots.
	FlagInPlace OperationTypeFlag = 1 << iota
	// FlagSourceIsBlock marks operations that cut from a block slot.
	FlagSourceIsBlock
	// FlagDiscardSource marks operations that discard their source labware.
	FlagDiscardSource
	// FlagResult marks operations that record a result rather than move material.
	FlagResult
)

// OperationType names a kind of recorded event.
type OperationType struct {
	ID    int               `json:"id"`
	Name  string            `json:"name"`
	Flags OperationTypeFlag `json:"flags"`
}

// Has reports whether every bit of flag is set.
func (t OperationType) Has(flag OperationTypeFlag) bool { return t.Flags&flag == flag }

// User is the actor performing an operation.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Action records that, within one operation, a sample moved (or was transformed
// in place) from a source slot to a destination slot.
type Action struct {
	ID                int `json:"id"`
	OperationID       int `json:"operation_id"`
	SourceSlotID      int `json:"source_slot_id"`
	DestinationSlotID int `json:"destination_slot_id"`
	SourceSampleID    int `json:"source_sample_id"`
	SampleID          int `json:"sample_id"`
}

// InPlace reports whether source and destination are the same slot.
func (a Action) InPlace() bool { return a.SourceSlotID == a.DestinationSlotID }

// Operation is a single recorded event with the actions it produced.
type Operation struct {
	ID            int           `json:"id"`
	OperationType OperationType `json:"operation_type"`
	User          User          `json:"user"`
	PerformedAt   time.Time     `json:"performed"`
	Actions       []Action      `json:"actions"`
}

// SampleIDs returns the destination sample ids of the operation's actions, in action order.
func (o Operation) SampleIDs() []int {
	out := make([]int, 0, len(o.Actions))
	for _, a := range o.Actions {
		out = append(out, a.SampleID)
	}
	return out
}

// WorkStatus enumerates work lifecycle states.
type WorkStatus string

// Canonical work statuses; only active work accepts new operations.
const (
	WorkStatusUnstarted WorkStatus = "unstarted"
	WorkStatusActive    WorkStatus = "active"
	WorkStatusPaused    WorkStatus = "paused"
	WorkStatusCompleted WorkStatus = "completed"
	WorkStatusFailed    WorkStatus = "failed"
	WorkStatusWithdrawn WorkStatus = "withdrawn"
)

// Work is a unit-of-work/billing record that operations are linked to.
type Work struct {
	ID           int        `json:"id"`
	WorkNumber   string     `json:"work_number"`
	Status       WorkStatus `json:"status"`
	OperationIDs []int      `json:"operation_ids"`
}

// Usable reports whether operations may be linked to the work.
func (w Work) Usable() bool { return w.Status == WorkStatusActive }

// Comment is a predefined reason or note that may be attached to operations.
type Comment struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Enabled  bool   `json:"enabled"`
}

// Equipment identifies an instrument used to perform an operation.
type Equipment struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Enabled  bool   `json:"enabled"`
}

// OperationComment attaches a comment to an operation, optionally scoped to a sample in a slot.
type OperationComment struct {
	ID          int  `json:"id"`
	OperationID int  `json:"operation_id"`
	CommentID   int  `json:"comment_id"`
	SampleID    *int `json:"sample_id,omitempty"`
	SlotID      *int `json:"slot_id,omitempty"`
}

// OperationEquipment records the equipment used for an operation.
type OperationEquipment struct {
	ID          int `json:"id"`
	OperationID int `json:"operation_id"`
	EquipmentID int `json:"equipment_id"`
}

// PlannedAction is a future action recorded ahead of an operation, e.g. a planned section.
type PlannedAction struct {
	ID                int  `json:"id"`
	PlanID            int  `json:"plan_id"`
	SourceSlotID      int  `json:"source_slot_id"`
	DestinationSlotID int  `json:"destination_slot_id"`
	SampleID          int  `json:"sample_id"`
	NewSection        *int `json:"new_section,omitempty"`
}

// Plan groups planned actions for a future operation.
type Plan struct {
	ID            int             `json:"id"`
	OperationType OperationType   `json:"operation_type"`
	User          User            `json:"user"`
	PlannedAt     time.Time       `json:"planned"`
	Actions       []PlannedAction `json:"actions"`
}

// ChangeAction enumerates change kinds captured in the transaction audit trail.
type ChangeAction string

// Change actions.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate ChangeAction = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate ChangeAction = "update"
	// ActionReset indicates an administrative reset that may lower a block counter.
	ActionReset ChangeAction = "reset"
)

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action ChangeAction
	Before any
	After  any
}
