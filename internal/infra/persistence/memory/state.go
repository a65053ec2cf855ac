package memory

import (
	"maps"
	"slices"

	"labcore/pkg/domain"
)

type memoryState struct {
	labwareTypes   map[int]domain.LabwareType
	labware        map[int]domain.Labware
	samples        map[int]domain.Sample
	operations     map[int]domain.Operation
	actions        map[int]domain.Action
	opComments     map[int]domain.OperationComment
	opEquipment    map[int]domain.OperationEquipment
	plans          map[int]domain.Plan
	plannedActions map[int]domain.PlannedAction
	operationTypes map[int]domain.OperationType
	works          map[int]domain.Work
	comments       map[int]domain.Comment
	equipment      map[int]domain.Equipment
	users          map[int]domain.User
	sequences      map[domain.EntityType]int
}

// Snapshot captures a point-in-time clone of the store state. It is the unit
// the sqlite and postgres backends serialise.
type Snapshot struct {
	LabwareTypes   map[int]domain.LabwareType        `json:"labware_types"`
	Labware        map[int]domain.Labware            `json:"labware"`
	Samples        map[int]domain.Sample             `json:"samples"`
	Operations     map[int]domain.Operation          `json:"operations"`
	Actions        map[int]domain.Action             `json:"actions"`
	OpComments     map[int]domain.OperationComment   `json:"operation_comments"`
	OpEquipment    map[int]domain.OperationEquipment `json:"operation_equipment"`
	Plans          map[int]domain.Plan               `json:"plans"`
	PlannedActions map[int]domain.PlannedAction      `json:"planned_actions"`
	OperationTypes map[int]domain.OperationType      `json:"operation_types"`
	Works          map[int]domain.Work               `json:"works"`
	Comments       map[int]domain.Comment            `json:"comments"`
	Equipment      map[int]domain.Equipment          `json:"equipment"`
	Users          map[int]domain.User               `json:"users"`
	Sequences      map[domain.EntityType]int         `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		labwareTypes:   make(map[int]domain.LabwareType),
		labware:        make(map[int]domain.Labware),
		samples:        make(map[int]domain.Sample),
		operations:     make(map[int]domain.Operation),
		actions:        make(map[int]domain.Action),
		opComments:     make(map[int]domain.OperationComment),
		opEquipment:    make(map[int]domain.OperationEquipment),
		plans:          make(map[int]domain.Plan),
		plannedActions: make(map[int]domain.PlannedAction),
		operationTypes: make(map[int]domain.OperationType),
		works:          make(map[int]domain.Work),
		comments:       make(map[int]domain.Comment),
		equipment:      make(map[int]domain.Equipment),
		users:          make(map[int]domain.User),
		sequences:      make(map[domain.EntityType]int),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		labwareTypes:   maps.Clone(s.labwareTypes),
		labware:        cloneMap(s.labware, cloneLabware),
		samples:        cloneMap(s.samples, cloneSample),
		operations:     maps.Clone(s.operations),
		actions:        maps.Clone(s.actions),
		opComments:     cloneMap(s.opComments, cloneOperationComment),
		opEquipment:    maps.Clone(s.opEquipment),
		plans:          maps.Clone(s.plans),
		plannedActions: cloneMap(s.plannedActions, clonePlannedAction),
		operationTypes: maps.Clone(s.operationTypes),
		works:          cloneMap(s.works, cloneWork),
		comments:       maps.Clone(s.comments),
		equipment:      maps.Clone(s.equipment),
		users:          maps.Clone(s.users),
		sequences:      maps.Clone(s.sequences),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		LabwareTypes:   c.labwareTypes,
		Labware:        c.labware,
		Samples:        c.samples,
		Operations:     c.operations,
		Actions:        c.actions,
		OpComments:     c.opComments,
		OpEquipment:    c.opEquipment,
		Plans:          c.plans,
		PlannedActions: c.plannedActions,
		OperationTypes: c.operationTypes,
		Works:          c.works,
		Comments:       c.comments,
		Equipment:      c.equipment,
		Users:          c.users,
		Sequences:      c.sequences,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		labwareTypes:   s.LabwareTypes,
		labware:        s.Labware,
		samples:        s.Samples,
		operations:     s.Operations,
		actions:        s.Actions,
		opComments:     s.OpComments,
		opEquipment:    s.OpEquipment,
		plans:          s.Plans,
		plannedActions: s.PlannedActions,
		operationTypes: s.OperationTypes,
		works:          s.Works,
		comments:       s.Comments,
		equipment:      s.Equipment,
		users:          s.Users,
		sequences:      s.Sequences,
	}.clone()
	fresh := newMemoryState()
	fillNil(&state.labwareTypes, fresh.labwareTypes)
	fillNil(&state.labware, fresh.labware)
	fillNil(&state.samples, fresh.samples)
	fillNil(&state.operations, fresh.operations)
	fillNil(&state.actions, fresh.actions)
	fillNil(&state.opComments, fresh.opComments)
	fillNil(&state.opEquipment, fresh.opEquipment)
	fillNil(&state.plans, fresh.plans)
	fillNil(&state.plannedActions, fresh.plannedActions)
	fillNil(&state.operationTypes, fresh.operationTypes)
	fillNil(&state.works, fresh.works)
	fillNil(&state.comments, fresh.comments)
	fillNil(&state.equipment, fresh.equipment)
	fillNil(&state.users, fresh.users)
	fillNil(&state.sequences, fresh.sequences)
	return state
}

func fillNil[K comparable, V any](m *map[K]V, fallback map[K]V) {
	if *m == nil {
		*m = fallback
	}
}

func cloneMap[V any](in map[int]V, cloneFn func(V) V) map[int]V {
	if in == nil {
		return nil
	}
	out := make(map[int]V, len(in))
	for k, v := range in {
		out[k] = cloneFn(v)
	}
	return out
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlot(s domain.Slot) domain.Slot {
	cp := s
	cp.SampleIDs = slices.Clone(s.SampleIDs)
	cp.BlockSampleID = cloneIntPtr(s.BlockSampleID)
	cp.BlockHighestSection = cloneIntPtr(s.BlockHighestSection)
	return cp
}

func cloneLabware(l domain.Labware) domain.Labware {
	cp := l
	if l.Slots != nil {
		cp.Slots = make([]domain.Slot, len(l.Slots))
		for i, slot := range l.Slots {
			cp.Slots[i] = cloneSlot(slot)
		}
	}
	return cp
}

func cloneSample(s domain.Sample) domain.Sample {
	cp := s
	cp.Section = cloneIntPtr(s.Section)
	return cp
}

func cloneOperationComment(c domain.OperationComment) domain.OperationComment {
	cp := c
	cp.SampleID = cloneIntPtr(c.SampleID)
	cp.SlotID = cloneIntPtr(c.SlotID)
	return cp
}

func clonePlannedAction(a domain.PlannedAction) domain.PlannedAction {
	cp := a
	cp.NewSection = cloneIntPtr(a.NewSection)
	return cp
}

func cloneWork(w domain.Work) domain.Work {
	cp := w
	cp.OperationIDs = slices.Clone(w.OperationIDs)
	return cp
}

// sortedValues returns map values ordered by key so listings are deterministic.
func sortedValues[V any](m map[int]V, keep func(V) bool) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		if keep == nil || keep(m[k]) {
			out = append(out, m[k])
		}
	}
	return out
}
