package core

import (
	"context"
	"testing"

	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"
	"labcore/testutil"
)

func TestActionReferencingMissingSlotIsBlocked(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	sample := testutil.SeedSamples(t, store, "T1", 1)[0]
	lw := testutil.SeedLabware(t, store, "STAN-1", testutil.TypeTube, map[string][]int{"A1": {sample.ID}})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := NewRecorder(nil).CreateOperation(tx, ref.OpTypes[domain.OpTypeStain], ref.User, []domain.Action{{
			SourceSlotID:      lw.Slots[0].ID,
			DestinationSlotID: 9999,
			SourceSampleID:    sample.ID,
			SampleID:          sample.ID,
		}})
		return err
	})
	names := blockingRules(t, err)
	if len(names) != 1 || names[0] != RuleActionReferences {
		t.Fatalf("unexpected violations %v", names)
	}
}
