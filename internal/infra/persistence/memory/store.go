// Package memory provides an in-memory implementation of the provenance store
// used for tests, ephemeral environments, and as the transactional engine behind
// the snapshotting sqlite and postgres backends.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"labcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store provides an in-memory transactional store. Writers are serialised by a
// single lock held for the whole unit of work, so two transactions can never
// observe the same labware or block counter concurrently.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp new records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.nowFn = fn
	s.mu.Unlock()
}

// Durable lets a backing database wrap a unit of work in its own transaction.
// Load returns the committed state the work runs against. Save receives the
// state produced by the work and must make it durable before returning.
type Durable interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, next Snapshot) error
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds, the context is still
// live, and no rule reports a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	return s.run(ctx, nil, fn)
}

// RunDurable behaves like RunInTransaction but first reloads the live state
// from d and replaces it with the result only after d.Save succeeds.
func (s *Store) RunDurable(ctx context.Context, d Durable, fn func(tx domain.Transaction) error) (domain.Result, error) {
	return s.run(ctx, d, fn)
}

func (s *Store) run(ctx context.Context, d Durable, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	if d != nil {
		committed, err := d.Load(ctx)
		if err != nil {
			return domain.Result{}, err
		}
		s.state = memoryStateFromSnapshot(committed)
	}

	tx := &transaction{
		store: s,
		view:  view{state: s.state.clone()},
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if d != nil {
		if err := d.Save(ctx, snapshotFromMemoryState(tx.state)); err != nil {
			return result, err
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: snapshot})
}

// ViewSnapshot executes fn against a read-only view of snapshot.
func ViewSnapshot(snapshot Snapshot, fn func(domain.TransactionView) error) error {
	return fn(view{state: memoryStateFromSnapshot(snapshot)})
}

// view implements domain.TransactionView over a state value. Every result is a
// deep copy so callers cannot reach into the store.
type view struct {
	state memoryState
}

func (v view) FindLabware(id int) (domain.Labware, bool) {
	l, ok := v.state.labware[id]
	if !ok {
		return domain.Labware{}, false
	}
	return cloneLabware(l), true
}

func (v view) FindLabwareByBarcode(barcode string) (domain.Labware, bool) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Labware{}, false
	}
	for _, l := range v.state.labware {
		if strings.EqualFold(l.Barcode, barcode) {
			return cloneLabware(l), true
		}
	}
	return domain.Labware{}, false
}

func (v view) FindLabwareByBarcodes(barcodes []string) []domain.Labware {
	var out []domain.Labware
	seen := make(map[int]bool)
	for _, bc := range barcodes {
		l, ok := v.FindLabwareByBarcode(bc)
		if !ok || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, l)
	}
	return out
}

func (v view) FindLabwareType(name string) (domain.LabwareType, bool) {
	for _, lt := range v.state.labwareTypes {
		if strings.EqualFold(lt.Name, strings.TrimSpace(name)) {
			return lt, true
		}
	}
	return domain.LabwareType{}, false
}

func (v view) FindSlot(id int) (domain.Slot, bool) {
	for _, l := range v.state.labware {
		if slot, ok := l.SlotByID(id); ok {
			return cloneSlot(slot), true
		}
	}
	return domain.Slot{}, false
}

func (v view) FindSample(id int) (domain.Sample, bool) {
	s, ok := v.state.samples[id]
	if !ok {
		return domain.Sample{}, false
	}
	return cloneSample(s), true
}

func (v view) FindOperation(id int) (domain.Operation, bool) {
	op, ok := v.state.operations[id]
	if !ok {
		return domain.Operation{}, false
	}
	op.Actions = sortedValues(v.state.actions, func(a domain.Action) bool { return a.OperationID == id })
	return op, true
}

func (v view) FindOperationType(name string) (domain.OperationType, bool) {
	for _, ot := range v.state.operationTypes {
		if strings.EqualFold(ot.Name, strings.TrimSpace(name)) {
			return ot, true
		}
	}
	return domain.OperationType{}, false
}

func (v view) FindWork(workNumber string) (domain.Work, bool) {
	for _, w := range v.state.works {
		if strings.EqualFold(w.WorkNumber, strings.TrimSpace(workNumber)) {
			return cloneWork(w), true
		}
	}
	return domain.Work{}, false
}

func (v view) FindComment(id int) (domain.Comment, bool) {
	c, ok := v.state.comments[id]
	return c, ok
}

func (v view) FindEquipment(id int) (domain.Equipment, bool) {
	e, ok := v.state.equipment[id]
	return e, ok
}

func (v view) FindUser(username string) (domain.User, bool) {
	for _, u := range v.state.users {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (v view) ListLabware() []domain.Labware {
	out := sortedValues(v.state.labware, nil)
	for i := range out {
		out[i] = cloneLabware(out[i])
	}
	return out
}

func (v view) ListComments() []domain.Comment {
	return sortedValues(v.state.comments, nil)
}

func (v view) ListEquipment() []domain.Equipment {
	return sortedValues(v.state.equipment, nil)
}

func (v view) ListOperationsForLabware(labwareID int) []domain.Operation {
	l, ok := v.state.labware[labwareID]
	if !ok {
		return nil
	}
	slotIDs := make(map[int]bool, len(l.Slots))
	for _, slot := range l.Slots {
		slotIDs[slot.ID] = true
	}
	opIDs := make(map[int]bool)
	for _, a := range v.state.actions {
		if slotIDs[a.SourceSlotID] || slotIDs[a.DestinationSlotID] {
			opIDs[a.OperationID] = true
		}
	}
	ids := make([]int, 0, len(opIDs))
	for id := range opIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]domain.Operation, 0, len(ids))
	for _, id := range ids {
		if op, ok := v.FindOperation(id); ok {
			out = append(out, op)
		}
	}
	return out
}

func (v view) ListOperationComments(operationID int) []domain.OperationComment {
	out := sortedValues(v.state.opComments, func(c domain.OperationComment) bool { return c.OperationID == operationID })
	for i := range out {
		out[i] = cloneOperationComment(out[i])
	}
	return out
}

func (v view) ListOperationEquipment(operationID int) []domain.OperationEquipment {
	return sortedValues(v.state.opEquipment, func(e domain.OperationEquipment) bool { return e.OperationID == operationID })
}

func (v view) ListPlannedActionsFromSlot(slotID int) []domain.PlannedAction {
	out := sortedValues(v.state.plannedActions, func(a domain.PlannedAction) bool { return a.SourceSlotID == slotID })
	for i := range out {
		out[i] = clonePlannedAction(out[i])
	}
	return out
}

// labwareIDForSlot resolves the owning labware of a slot id.
func (v view) labwareIDForSlot(slotID int) (int, bool) {
	for id, l := range v.state.labware {
		if _, ok := l.SlotByID(slotID); ok {
			return id, true
		}
	}
	return 0, false
}
