// Package ops holds the feature orchestrators. Each one checks the request
// shape, then inside a single unit of work resolves its inputs, validates them
// while accumulating every problem, and only records when nothing was found.
package ops

import (
	"context"
	"slices"
	"strings"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// Labels used for the transaction boundary, metrics and audit.
const (
	LabelRegister      = "register"
	LabelCleanOut      = "clean_out"
	LabelDestroy       = "destroy"
	LabelReactivate    = "reactivate"
	LabelSection       = "section"
	LabelPlan          = "plan"
	LabelRecordInPlace = "record_in_place"
	LabelResetBlock    = "reset_block"
)

// Runner executes orchestrators against a core service.
type Runner struct {
	service  *core.Service
	recorder *core.Recorder
	linker   core.WorkLinker
}

// NewRunner returns a runner recording through recorder; nil uses a recorder
// that leaves timestamps to the store.
func NewRunner(service *core.Service, recorder *core.Recorder) *Runner {
	if recorder == nil {
		recorder = core.NewRecorder(nil)
	}
	return &Runner{service: service, recorder: recorder}
}

// User resolves the acting user, failing with a validation error when the
// username is blank or unknown.
func (r *Runner) User(ctx context.Context, username string) (*domain.User, error) {
	var p domain.Problems
	var user domain.User
	err := r.service.View(ctx, func(v domain.TransactionView) error {
		user, _ = validation.LoadUser(v, username, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return &user, nil
}

type usernameKey struct{}

// WithUsername names the acting user on ctx. An orchestrator called with a nil
// user resolves this name inside its unit of work, so an unknown user is
// reported together with the request's own problems.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, username)
}

func usernameFrom(ctx context.Context) string {
	name, _ := ctx.Value(usernameKey{}).(string)
	return strings.TrimSpace(name)
}

// run applies the orchestrator shape: request presence is checked before the
// store is touched, then validate and record share one transaction.
func run[Req, In, Out any](ctx context.Context, r *Runner, label string, user *domain.User, req *Req,
	validate func(domain.TransactionView, domain.User, Req) (In, domain.Problems),
	record func(domain.Transaction, domain.User, In) (Out, error),
) (Out, error) {
	var zero Out
	var p domain.Problems
	username := usernameFrom(ctx)
	if !validation.CheckRequest(user != nil || username != "", req != nil, &p) {
		return zero, p.Err()
	}
	var result Out
	_, err := r.service.Transact(ctx, label, func(tx domain.Transaction) error {
		var p domain.Problems
		var acting domain.User
		if user != nil {
			acting = *user
		} else {
			acting, _ = validation.LoadUser(tx, username, &p)
		}
		in, problems := validate(tx, acting, *req)
		p.Merge(problems)
		if err := p.Err(); err != nil {
			return err
		}
		var err error
		result, err = record(tx, acting, in)
		return err
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}

// loadOptionalWork resolves the work only when a number was given.
func loadOptionalWork(view domain.TransactionView, workNumber string, p *domain.Problems) *domain.Work {
	if workNumber == "" {
		return nil
	}
	w, ok := validation.LoadWork(view, workNumber, p)
	if !ok {
		return nil
	}
	return &w
}

// requireOperationType resolves an operation type and checks it carries flag.
func requireOperationType(view domain.TransactionView, name string, flag domain.OperationTypeFlag, p *domain.Problems) domain.OperationType {
	ot, ok := validation.LoadOperationType(view, name, p)
	if ok && flag != 0 && !ot.Has(flag) {
		p.Addf("Operation type %s cannot be used in this request.", ot.Name)
	}
	return ot
}

func (r *Runner) link(tx domain.Transaction, work *domain.Work, ops []domain.Operation) error {
	if work == nil {
		return nil
	}
	_, err := r.linker.Link(tx, *work, ops)
	return err
}

// reload returns the current stored state of the given labware, in order.
func reload(view domain.TransactionView, ids ...int) ([]domain.Labware, error) {
	out := make([]domain.Labware, 0, len(ids))
	var seen []int
	for _, id := range ids {
		if slices.Contains(seen, id) {
			continue
		}
		seen = append(seen, id)
		lw, ok := view.FindLabware(id)
		if !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityLabware, Key: id}
		}
		out = append(out, lw)
	}
	return out, nil
}
