package ops

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"labcore/internal/core"
	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"
	"labcore/testutil"
)

type fixture struct {
	runner *Runner
	store  *memory.Store
	ref    testutil.Reference
	user   *domain.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	ref := testutil.SeedReference(t, store)
	user := ref.User
	return fixture{
		runner: NewRunner(core.NewService(store), nil),
		store:  store,
		ref:    ref,
		user:   &user,
	}
}

func wantProblems(t *testing.T, err error, want ...string) {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !reflect.DeepEqual(verr.Problems, want) {
		t.Fatalf("problems = %q\nwant %q", verr.Problems, want)
	}
}

func validateIn[Req, In any](t *testing.T, store domain.PersistentStore, user domain.User, req Req,
	validate func(domain.TransactionView, domain.User, Req) (In, domain.Problems)) (In, []string) {
	t.Helper()
	var in In
	var problems domain.Problems
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		in, problems = validate(v, user, req)
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return in, problems.List()
}

func intPtr(n int) *int { return &n }
