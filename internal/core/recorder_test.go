package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"
	"labcore/testutil"
)

// spyTx counts the persistence calls made through it.
type spyTx struct {
	domain.Transaction
	operations int
	actions    int
}

func (s *spyTx) CreateOperation(op domain.Operation) (domain.Operation, error) {
	s.operations++
	return s.Transaction.CreateOperation(op)
}

func (s *spyTx) CreateActions(actions []domain.Action) ([]domain.Action, error) {
	s.actions++
	return s.Transaction.CreateActions(actions)
}

func TestCreateOperationRejectsEmptyActions(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	rec := NewRecorder(nil)
	var spy *spyTx
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		spy = &spyTx{Transaction: tx}
		_, err := rec.CreateOperation(spy, ref.OpTypes[domain.OpTypeStain], ref.User, nil)
		return err
	})
	if !errors.Is(err, domain.ErrIllegalArgument) {
		t.Fatalf("expected illegal argument, got %v", err)
	}
	if spy.operations != 0 || spy.actions != 0 {
		t.Fatalf("expected no save calls, got %d operations %d actions", spy.operations, spy.actions)
	}
}

func TestCreateOperationReloadsPersistedActions(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	samples := testutil.SeedSamples(t, store, "T1", 2)
	src := testutil.SeedLabware(t, store, "STAN-1", testutil.TypeSlide, map[string][]int{"A1": {samples[0].ID}, "B1": {samples[1].ID}})
	dst := testutil.SeedLabware(t, store, "STAN-2", testutil.TypeSlide, nil)
	performed := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	rec := NewRecorder(ClockFunc(func() time.Time { return performed }))

	actions := []domain.Action{
		{SourceSlotID: src.Slots[0].ID, DestinationSlotID: dst.Slots[0].ID, SourceSampleID: samples[0].ID, SampleID: samples[0].ID},
		{SourceSlotID: src.Slots[1].ID, DestinationSlotID: dst.Slots[1].ID, SourceSampleID: samples[1].ID, SampleID: samples[1].ID},
	}
	var op domain.Operation
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		op, err = rec.CreateOperation(tx, ref.OpTypes[domain.OpTypeStain], ref.User, actions)
		actions[0].SampleID = 999
		return err
	})
	if err != nil {
		t.Fatalf("create operation: %v", err)
	}
	if len(op.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(op.Actions))
	}
	for i, a := range op.Actions {
		if a.ID == 0 || a.OperationID != op.ID {
			t.Fatalf("action %d missing generated ids: %+v", i, a)
		}
		if a.SampleID != samples[i].ID || a.SourceSlotID != src.Slots[i].ID || a.DestinationSlotID != dst.Slots[i].ID {
			t.Fatalf("action %d does not match input: %+v", i, a)
		}
	}
	if !op.PerformedAt.Equal(performed) || op.User.ID != ref.User.ID {
		t.Fatalf("unexpected header %+v", op)
	}
}

func TestCreateOperationSingle(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	sample := testutil.SeedSamples(t, store, "T1", 1)[0]
	src := testutil.SeedLabware(t, store, "STAN-1", testutil.TypeTube, map[string][]int{"A1": {sample.ID}})
	dst := testutil.SeedLabware(t, store, "STAN-2", testutil.TypeTube, nil)
	var op domain.Operation
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		op, err = NewRecorder(nil).CreateOperationSingle(tx, ref.OpTypes[domain.OpTypeStain], ref.User, src.Slots[0], dst.Slots[0], sample)
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(op.Actions) != 1 || op.Actions[0].InPlace() || op.Actions[0].SampleID != sample.ID {
		t.Fatalf("unexpected actions %+v", op.Actions)
	}
}

func TestCreateOperationInPlaceAttachesEquipmentAndComments(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	samples := testutil.SeedSamples(t, store, "T1", 2)
	lw := testutil.SeedLabware(t, store, "STAN-1", testutil.TypePlate, map[string][]int{
		"A1": {samples[0].ID, samples[0].ID, samples[1].ID},
		"B2": {samples[1].ID},
	})
	equipmentID, commentID := ref.Equipment.ID, ref.Comment.ID
	var op domain.Operation
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		op, err = NewRecorder(nil).CreateOperationInPlace(tx, ref.OpTypes[domain.OpTypeImage], ref.User, lw, &equipmentID, commentID)
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(op.Actions) != 3 {
		t.Fatalf("expected one action per distinct (slot, sample) pair, got %+v", op.Actions)
	}
	for _, a := range op.Actions {
		if !a.InPlace() {
			t.Fatalf("expected in-place action %+v", a)
		}
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if eq := v.ListOperationEquipment(op.ID); len(eq) != 1 || eq[0].EquipmentID != equipmentID {
			t.Fatalf("unexpected equipment %+v", eq)
		}
		if cs := v.ListOperationComments(op.ID); len(cs) != 3 || *cs[0].SampleID != samples[0].ID {
			t.Fatalf("unexpected comments %+v", cs)
		}
		return nil
	})
}

func TestCreateOperationInPlaceOnEmptyLabwareFails(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	lw := testutil.SeedLabware(t, store, "STAN-1", testutil.TypeTube, nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := NewRecorder(nil).CreateOperationInPlace(tx, ref.OpTypes[domain.OpTypeStain], ref.User, lw, nil)
		return err
	})
	if !errors.Is(err, domain.ErrIllegalArgument) {
		t.Fatalf("expected illegal argument, got %v", err)
	}
}

func TestWorkLinkerLinksOperations(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	sample := testutil.SeedSamples(t, store, "T1", 1)[0]
	lw := testutil.SeedLabware(t, store, "STAN-1", testutil.TypeTube, map[string][]int{"A1": {sample.ID}})
	var work domain.Work
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		op, err := NewRecorder(nil).CreateOperationInPlace(tx, ref.OpTypes[domain.OpTypeStain], ref.User, lw, nil)
		if err != nil {
			return err
		}
		if unchanged, err := (WorkLinker{}).Link(tx, ref.Work, nil); err != nil || len(unchanged.OperationIDs) != 0 {
			t.Fatalf("linking nothing should be a no-op, got %+v %v", unchanged, err)
		}
		work, err = WorkLinker{}.Link(tx, ref.Work, []domain.Operation{op})
		return err
	})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if len(work.OperationIDs) != 1 {
		t.Fatalf("expected linked operation, got %+v", work)
	}
}
