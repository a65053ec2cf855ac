package ops

import (
	"context"
	"testing"

	"labcore/pkg/domain"
	"labcore/testutil"
)

func TestDestroyThenReactivate(t *testing.T) {
	f := newFixture(t)
	samples := testutil.SeedSamples(t, f.store, "T1", 2)
	testutil.SeedLabware(t, f.store, "STAN-1", testutil.TypeTube, map[string][]int{"A1": {samples[0].ID}})
	testutil.SeedLabware(t, f.store, "STAN-2", testutil.TypeSlide, map[string][]int{"A1": {samples[0].ID}, "B1": {samples[1].ID}})

	res, err := f.runner.Destroy(context.Background(), f.user, &DestroyRequest{
		Barcodes:   []string{"STAN-1", "stan-2"},
		ReasonID:   f.ref.Comment.ID,
		WorkNumber: testutil.WorkNumber,
	})
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if len(res.Operations) != 2 || len(res.Labware) != 2 {
		t.Fatalf("expected one operation per labware, got %+v", res)
	}
	for _, lw := range res.Labware {
		if !lw.Destroyed {
			t.Fatalf("expected %s destroyed", lw.Barcode)
		}
	}
	_ = f.store.View(context.Background(), func(v domain.TransactionView) error {
		if cs := v.ListOperationComments(res.Operations[1].ID); len(cs) != 2 || cs[0].CommentID != f.ref.Comment.ID {
			t.Fatalf("expected reason on every action, got %+v", cs)
		}
		return nil
	})

	_, err = f.runner.Destroy(context.Background(), f.user, &DestroyRequest{Barcodes: []string{"STAN-1", "STAN-1"}, ReasonID: f.ref.Disabled.ID})
	wantProblems(t, err,
		"Labware is repeated: STAN-1.",
		"Labware is destroyed: STAN-1.",
		"Comment not enabled: [Obsolete].",
	)

	res, err = f.runner.Reactivate(context.Background(), f.user, &ReactivateRequest{
		Items:      []ReactivateItem{{Barcode: "STAN-1", CommentID: f.ref.Comment.ID}},
		WorkNumber: testutil.WorkNumber,
	})
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if !res.Labware[0].Active() {
		t.Fatalf("expected active labware, got %+v", res.Labware[0])
	}
	if res.Operations[0].OperationType.Name != domain.OpTypeReactivate {
		t.Fatalf("unexpected operation %+v", res.Operations[0])
	}

	_, err = f.runner.Reactivate(context.Background(), f.user, &ReactivateRequest{
		Items:      []ReactivateItem{{Barcode: "STAN-1", CommentID: 404}},
		WorkNumber: testutil.WorkNumber,
	})
	wantProblems(t, err,
		"Labware is not discarded or destroyed: STAN-1.",
		"Unknown comment id: [404].",
	)
}

func TestDestroyNeedsBarcodes(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Destroy(context.Background(), f.user, &DestroyRequest{ReasonID: 404, WorkNumber: "SGP9"})
	wantProblems(t, err,
		"No barcodes specified.",
		"Unknown comment id: [404].",
		"Unknown work number: SGP9.",
	)
}

func TestRecordInPlace(t *testing.T) {
	f := newFixture(t)
	samples := testutil.SeedSamples(t, f.store, "T1", 2)
	testutil.SeedLabware(t, f.store, "STAN-1", testutil.TypeSlide, map[string][]int{"A1": {samples[0].ID}, "C1": {samples[1].ID, samples[1].ID}})
	equipmentID := f.ref.Equipment.ID

	res, err := f.runner.RecordInPlace(context.Background(), f.user, &InPlaceRequest{
		OperationType: "stain",
		Barcodes:      []string{"STAN-1"},
		WorkNumber:    testutil.WorkNumber,
		EquipmentID:   &equipmentID,
		CommentIDs:    []int{f.ref.Comment.ID},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	op := res.Operations[0]
	if op.OperationType.Name != domain.OpTypeStain || len(op.Actions) != 2 {
		t.Fatalf("unexpected operation %+v", op)
	}
	_ = f.store.View(context.Background(), func(v domain.TransactionView) error {
		if eq := v.ListOperationEquipment(op.ID); len(eq) != 1 {
			t.Fatalf("expected equipment row, got %+v", eq)
		}
		return nil
	})

	_, err = f.runner.RecordInPlace(context.Background(), f.user, &InPlaceRequest{
		OperationType: domain.OpTypeSection,
		Barcodes:      []string{"STAN-1"},
		WorkNumber:    testutil.WorkNumber,
	})
	wantProblems(t, err, "Operation type Section cannot be used in this request.")

	_, err = f.runner.RecordInPlace(context.Background(), f.user, &InPlaceRequest{WorkNumber: testutil.WorkNumber})
	wantProblems(t, err, "No operation type specified.", "No barcodes specified.")
}

func TestRegisterCreatesBlocks(t *testing.T) {
	f := newFixture(t)
	res, err := f.runner.Register(context.Background(), f.user, &RegisterRequest{Blocks: []RegisterItem{
		{Barcode: "BLOCK-1", LabwareType: testutil.TypeBlock, Tissue: "Liver"},
		{Barcode: "BLOCK-2", LabwareType: testutil.TypeBlock, Tissue: "Kidney", BioState: "Fixed"},
	}})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(res.Labware) != 2 || len(res.Operations) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	block := res.Labware[0]
	if !block.Slots[0].IsBlock() || block.Slots[0].HighestSection() != 0 {
		t.Fatalf("expected fresh block slot, got %+v", block.Slots[0])
	}
	_ = f.store.View(context.Background(), func(v domain.TransactionView) error {
		s, _ := v.FindSample(*res.Labware[1].Slots[0].BlockSampleID)
		if s.Tissue != "Kidney" || s.BioState != "Fixed" {
			t.Fatalf("unexpected sample %+v", s)
		}
		s, _ = v.FindSample(*block.Slots[0].BlockSampleID)
		if s.BioState != DefaultBioState {
			t.Fatalf("expected default bio state, got %q", s.BioState)
		}
		return nil
	})

	_, err = f.runner.Register(context.Background(), f.user, &RegisterRequest{Blocks: []RegisterItem{
		{Barcode: "BLOCK-1", LabwareType: testutil.TypeBlock, Tissue: "Liver"},
		{Barcode: "BLOCK-3", LabwareType: "Cassette", Tissue: ""},
		{Barcode: "block-3", LabwareType: testutil.TypeBlock, Tissue: "Liver"},
		{Barcode: " ", LabwareType: testutil.TypeBlock, Tissue: "Liver"},
	}})
	wantProblems(t, err,
		"Missing labware barcode.",
		"Repeated barcode: [block-3].",
		"Barcode already in use: [BLOCK-1].",
		"Unknown labware type: [Cassette].",
		"Missing tissue name.",
	)
}
