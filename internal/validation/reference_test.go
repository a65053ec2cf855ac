package validation

import (
	"context"
	"reflect"
	"testing"

	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"
	"labcore/testutil"
)

func seededView(t *testing.T) (domain.PersistentStore, testutil.Reference) {
	t.Helper()
	store := memory.NewStore(nil)
	return store, testutil.SeedReference(t, store)
}

func inView(t *testing.T, store domain.PersistentStore, fn func(domain.TransactionView)) {
	t.Helper()
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		fn(v)
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCheckRequest(t *testing.T) {
	var p domain.Problems
	if CheckRequest(false, false, &p) {
		t.Fatalf("expected stop")
	}
	want := []string{"No user supplied.", "No request supplied."}
	if !reflect.DeepEqual(p.List(), want) {
		t.Fatalf("problems = %q, want %q", p.List(), want)
	}
	var ok domain.Problems
	if !CheckRequest(true, true, &ok) || !ok.Empty() {
		t.Fatalf("expected continue without problems")
	}
}

func TestLoadWork(t *testing.T) {
	store, ref := seededView(t)
	inView(t, store, func(v domain.TransactionView) {
		var p domain.Problems
		if w, ok := LoadWork(v, testutil.WorkNumber, &p); !ok || w.ID != ref.Work.ID {
			t.Fatalf("expected active work")
		}
		LoadWork(v, "", &p)
		LoadWork(v, "SGP404", &p)
		LoadWork(v, testutil.PausedWork, &p)
		want := []string{
			"No work number given.",
			"Unknown work number: SGP404.",
			"Work SGP2 cannot be used because it is paused.",
		}
		if !reflect.DeepEqual(p.List(), want) {
			t.Fatalf("problems = %q, want %q", p.List(), want)
		}
	})
}

func TestLoadComments(t *testing.T) {
	store, ref := seededView(t)
	inView(t, store, func(v domain.TransactionView) {
		var p domain.Problems
		comments, ok := LoadComments(v, []int{ref.Comment.ID, 404, ref.Disabled.ID, 405, ref.Comment.ID}, &p)
		if ok {
			t.Fatalf("expected failure")
		}
		if len(comments) != 2 {
			t.Fatalf("expected the two known comments, got %+v", comments)
		}
		want := []string{"Unknown comment ids: [404, 405].", "Comment not enabled: [Obsolete]."}
		if !reflect.DeepEqual(p.List(), want) {
			t.Fatalf("problems = %q, want %q", p.List(), want)
		}

		var single domain.Problems
		if c, ok := LoadComment(v, ref.Comment.ID, &single); !ok || c.Text != "Damaged" || !single.Empty() {
			t.Fatalf("expected enabled comment, got %+v %q", c, single.List())
		}
	})
}

func TestLoadEquipment(t *testing.T) {
	store, ref := seededView(t)
	inView(t, store, func(v domain.TransactionView) {
		var p domain.Problems
		if e, ok := LoadEquipment(v, nil, &p); !ok || e != nil {
			t.Fatalf("nil equipment id is valid")
		}
		id := ref.Equipment.ID
		if e, ok := LoadEquipment(v, &id, &p); !ok || e.Name != "Scope 1" {
			t.Fatalf("expected enabled equipment")
		}
		retired, missing := ref.Retired.ID, 404
		LoadEquipment(v, &retired, &p)
		LoadEquipment(v, &missing, &p)
		want := []string{"Equipment is disabled: Scope 0.", "Unknown equipment id: 404."}
		if !reflect.DeepEqual(p.List(), want) {
			t.Fatalf("problems = %q, want %q", p.List(), want)
		}
	})
}

func TestLoadUserAndOperationType(t *testing.T) {
	store, ref := seededView(t)
	inView(t, store, func(v domain.TransactionView) {
		var p domain.Problems
		if u, ok := LoadUser(v, " USER1 ", &p); !ok || u.ID != ref.User.ID {
			t.Fatalf("expected user lookup to trim and ignore case")
		}
		if _, ok := LoadOperationType(v, "clean out", &p); !ok {
			t.Fatalf("expected operation type")
		}
		LoadUser(v, "nobody", &p)
		LoadOperationType(v, "Teleport", &p)
		want := []string{"Unknown user: nobody.", "Unknown operation type: Teleport."}
		if !reflect.DeepEqual(p.List(), want) {
			t.Fatalf("problems = %q, want %q", p.List(), want)
		}
	})
}

func TestLoadSingleLabware(t *testing.T) {
	store, _ := seededView(t)
	testutil.SeedLabware(t, store, "STAN-1", testutil.TypeTube, nil)
	inView(t, store, func(v domain.TransactionView) {
		var p domain.Problems
		if lw, ok := LoadSingleLabware(v, "stan-1", &p); !ok || lw.Barcode != "STAN-1" {
			t.Fatalf("expected labware")
		}
		LoadSingleLabware(v, "", &p)
		LoadSingleLabware(v, "STAN-2", &p)
		want := []string{"No barcode specified.", "Invalid labware barcode: [STAN-2]."}
		if !reflect.DeepEqual(p.List(), want) {
			t.Fatalf("problems = %q, want %q", p.List(), want)
		}
	})
}
