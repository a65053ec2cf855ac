package testutil

import (
	"context"
	"testing"

	"labcore/pkg/domain"
)

// Reference holds the reference rows created by SeedReference.
type Reference struct {
	User       domain.User
	Types      map[string]domain.LabwareType
	OpTypes    map[string]domain.OperationType
	Work       domain.Work
	PausedWork domain.Work
	Comment    domain.Comment
	Disabled   domain.Comment
	Equipment  domain.Equipment
	Retired    domain.Equipment
}

// Labware type names seeded by SeedReference.
const (
	TypeTube   = "Tube"
	TypeSlide  = "Slide"
	TypePlate  = "Plate 2x3"
	TypeBlock  = "Proviasette"
	WorkNumber = "SGP1"
	PausedWork = "SGP2"
	Username   = "user1"
)

// SeedReference creates a user, labware types, the default operation types,
// works, comments and equipment.
func SeedReference(t testing.TB, store domain.PersistentStore) Reference {
	t.Helper()
	ref := Reference{
		Types:   make(map[string]domain.LabwareType),
		OpTypes: make(map[string]domain.OperationType),
	}
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if ref.User, err = tx.CreateUser(domain.User{Username: Username}); err != nil {
			return err
		}
		for _, lt := range []domain.LabwareType{
			{Name: TypeTube, Rows: 1, Columns: 1},
			{Name: TypeSlide, Rows: 4, Columns: 1},
			{Name: TypePlate, Rows: 2, Columns: 3},
			{Name: TypeBlock, Rows: 1, Columns: 1},
		} {
			created, err := tx.CreateLabwareType(lt)
			if err != nil {
				return err
			}
			ref.Types[created.Name] = created
		}
		for _, ot := range domain.DefaultOperationTypes() {
			created, err := tx.CreateOperationType(ot)
			if err != nil {
				return err
			}
			ref.OpTypes[created.Name] = created
		}
		if ref.Work, err = tx.CreateWork(domain.Work{WorkNumber: WorkNumber, Status: domain.WorkStatusActive}); err != nil {
			return err
		}
		if ref.PausedWork, err = tx.CreateWork(domain.Work{WorkNumber: PausedWork, Status: domain.WorkStatusPaused}); err != nil {
			return err
		}
		if ref.Comment, err = tx.CreateComment(domain.Comment{Category: "reason", Text: "Damaged", Enabled: true}); err != nil {
			return err
		}
		if ref.Disabled, err = tx.CreateComment(domain.Comment{Category: "reason", Text: "Obsolete"}); err != nil {
			return err
		}
		if ref.Equipment, err = tx.CreateEquipment(domain.Equipment{Name: "Scope 1", Category: "scanner", Enabled: true}); err != nil {
			return err
		}
		ref.Retired, err = tx.CreateEquipment(domain.Equipment{Name: "Scope 0", Category: "scanner"})
		return err
	})
	if err != nil {
		t.Fatalf("seed reference data: %v", err)
	}
	return ref
}

// SeedSamples creates n samples of the given tissue and returns them in id order.
func SeedSamples(t testing.TB, store domain.PersistentStore, tissue string, n int) []domain.Sample {
	t.Helper()
	out := make([]domain.Sample, 0, n)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for range n {
			s, err := tx.CreateSample(domain.Sample{Tissue: tissue, BioState: "Tissue"})
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed samples: %v", err)
	}
	return out
}

// SeedLabware creates labware of the named type. contents maps addresses such
// as "A2" to the sample ids the slot holds.
func SeedLabware(t testing.TB, store domain.PersistentStore, barcode, typeName string, contents map[string][]int) domain.Labware {
	t.Helper()
	return seedLabware(t, store, domain.Labware{Barcode: barcode, Type: domain.LabwareType{Name: typeName}}, contents)
}

// SeedBlock creates a single-slot block labware holding one new sample with the
// given highest section counter (nil for a fresh block).
func SeedBlock(t testing.TB, store domain.PersistentStore, barcode string, highest *int) (domain.Labware, domain.Sample) {
	t.Helper()
	sample := SeedSamples(t, store, "TISSUE-"+barcode, 1)[0]
	id := sample.ID
	lw := domain.Labware{
		Barcode: barcode,
		Type:    domain.LabwareType{Name: TypeBlock},
		Slots: []domain.Slot{{
			Address:             domain.Address{Row: 1, Column: 1},
			SampleIDs:           []int{sample.ID},
			BlockSampleID:       &id,
			BlockHighestSection: highest,
		}},
	}
	return seedLabware(t, store, lw, nil), sample
}

func seedLabware(t testing.TB, store domain.PersistentStore, lw domain.Labware, contents map[string][]int) domain.Labware {
	t.Helper()
	for addr, ids := range contents {
		lw.Slots = append(lw.Slots, domain.Slot{Address: domain.MustParseAddress(addr), SampleIDs: ids})
	}
	var created domain.Labware
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateLabware(lw)
		return err
	})
	if err != nil {
		t.Fatalf("seed labware %s: %v", lw.Barcode, err)
	}
	return created
}

// MutateLabware applies fn to the stored labware with the given barcode.
func MutateLabware(t testing.TB, store domain.PersistentStore, barcode string, fn func(*domain.Labware)) domain.Labware {
	t.Helper()
	var updated domain.Labware
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		lw, ok := tx.FindLabwareByBarcode(barcode)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityLabware, Key: barcode}
		}
		var err error
		updated, err = tx.UpdateLabware(lw.ID, func(l *domain.Labware) error {
			fn(l)
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("mutate labware %s: %v", barcode, err)
	}
	return updated
}

// FindLabware reads the stored labware with the given barcode.
func FindLabware(t testing.TB, store domain.PersistentStore, barcode string) domain.Labware {
	t.Helper()
	var lw domain.Labware
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		var ok bool
		if lw, ok = v.FindLabwareByBarcode(barcode); !ok {
			return domain.ErrNotFound{Entity: domain.EntityLabware, Key: barcode}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("find labware %s: %v", barcode, err)
	}
	return lw
}

// CountingStore wraps a store and counts calls to RunInTransaction and View.
type CountingStore struct {
	domain.PersistentStore
	Transactions int
	Views        int
}

func (c *CountingStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	c.Transactions++
	return c.PersistentStore.RunInTransaction(ctx, fn)
}

func (c *CountingStore) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	c.Views++
	return c.PersistentStore.View(ctx, fn)
}
