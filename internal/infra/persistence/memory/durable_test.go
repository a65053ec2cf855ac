package memory

import (
	"context"
	"errors"
	"testing"

	"labcore/pkg/domain"
	"labcore/testutil"
)

type fakeDurable struct {
	committed Snapshot
	saveErr   error
	saves     int
}

func (f *fakeDurable) Load(context.Context) (Snapshot, error) { return f.committed, nil }

func (f *fakeDurable) Save(_ context.Context, next Snapshot) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.committed = next
	return nil
}

func TestRunDurableReloadsCommittedState(t *testing.T) {
	other := NewStore(nil)
	testutil.SeedReference(t, other)
	testutil.SeedLabware(t, other, "STAN-9", testutil.TypePlate, nil)

	store := NewStore(nil)
	d := &fakeDurable{committed: other.ExportState()}
	if _, err := store.RunDurable(context.Background(), d, func(tx domain.Transaction) error {
		if _, ok := tx.FindLabwareByBarcode("STAN-9"); !ok {
			t.Fatalf("expected committed labware to be visible inside the unit of work")
		}
		_, err := tx.CreateUser(domain.User{Username: "second"})
		return err
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.saves != 1 || len(d.committed.Users) != 2 {
		t.Fatalf("expected saved snapshot with both users, got %d saves %+v", d.saves, d.committed.Users)
	}
	if got := testutil.FindLabware(t, store, "STAN-9"); got.Barcode != "STAN-9" {
		t.Fatalf("expected live state to follow the committed snapshot, got %+v", got)
	}
}

func TestRunDurableSaveFailureKeepsLiveState(t *testing.T) {
	store := NewStore(nil)
	testutil.SeedReference(t, store)
	before := store.ExportState()
	boom := errors.New("disk gone")
	d := &fakeDurable{committed: before, saveErr: boom}
	if _, err := store.RunDurable(context.Background(), d, func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "lost"})
		return err
	}); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindUser("lost"); ok {
			t.Fatalf("unsaved user must not be visible")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(store.ExportState().Users) != len(before.Users) {
		t.Fatalf("expected users unchanged")
	}
}

func TestViewSnapshot(t *testing.T) {
	store := NewStore(nil)
	testutil.SeedReference(t, store)
	if err := ViewSnapshot(store.ExportState(), func(v domain.TransactionView) error {
		if _, ok := v.FindUser(testutil.Username); !ok {
			t.Fatalf("expected seeded user in snapshot view")
		}
		return nil
	}); err != nil {
		t.Fatalf("view snapshot: %v", err)
	}
	if err := ViewSnapshot(Snapshot{}, func(v domain.TransactionView) error {
		if len(v.ListLabware()) != 0 {
			t.Fatalf("expected empty view")
		}
		return nil
	}); err != nil {
		t.Fatalf("empty view: %v", err)
	}
}
