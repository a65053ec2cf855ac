package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"labcore/internal/ops"
	"labcore/pkg/domain"
)

// applyHandler decodes a request body and runs it for the user named on ctx.
type applyHandler func(ctx context.Context, r *ops.Runner, body []byte) (any, error)

func handle[Req any](fn func(*ops.Runner, context.Context, *domain.User, *Req) (any, error)) applyHandler {
	return func(ctx context.Context, r *ops.Runner, body []byte) (any, error) {
		var req *Req
		if len(strings.TrimSpace(string(body))) > 0 && strings.TrimSpace(string(body)) != "null" {
			req = new(Req)
			if err := decodeStrict(body, req); err != nil {
				return nil, err
			}
		}
		return fn(r, ctx, nil, req)
	}
}

var applyHandlers = map[string]applyHandler{
	ops.LabelRegister: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.RegisterRequest) (any, error) {
		return r.Register(ctx, u, req)
	}),
	ops.LabelCleanOut: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.CleanOutRequest) (any, error) {
		return r.CleanOut(ctx, u, req)
	}),
	ops.LabelDestroy: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.DestroyRequest) (any, error) {
		return r.Destroy(ctx, u, req)
	}),
	ops.LabelReactivate: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.ReactivateRequest) (any, error) {
		return r.Reactivate(ctx, u, req)
	}),
	ops.LabelSection: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.SectionRequest) (any, error) {
		return r.Section(ctx, u, req)
	}),
	ops.LabelPlan: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.PlanRequest) (any, error) {
		return r.Plan(ctx, u, req)
	}),
	ops.LabelRecordInPlace: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.InPlaceRequest) (any, error) {
		return r.RecordInPlace(ctx, u, req)
	}),
	ops.LabelResetBlock: handle(func(r *ops.Runner, ctx context.Context, u *domain.User, req *ops.ResetBlockRequest) (any, error) {
		return r.ResetBlock(ctx, u, req)
	}),
}

func operationNames() string {
	names := make([]string, 0, len(applyHandlers))
	for name := range applyHandlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func runApply(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("apply", stderr)
	op := fs.String("op", "", "operation: "+operationNames())
	username := fs.String("user", "", "username performing the operation")
	requestPath := fs.String("request", "-", "request JSON file, - for stdin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	handler, ok := applyHandlers[strings.ToLower(strings.TrimSpace(*op))]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q (want one of %s)", errUsage, *op, operationNames())
	}
	body, err := readRequest(*requestPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	result, err := handler(ops.WithUsername(ctx, *username), a.runner, body)
	if err != nil {
		return err
	}
	return writeJSON(stdout, result)
}

func readRequest(path string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if path == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return body, nil
}

func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode request: %v", errUsage, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
