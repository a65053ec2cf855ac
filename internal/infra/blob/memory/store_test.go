package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"labcore/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"barcode": "STAN-1"}
	info, err := s.Put(ctx, "provenance/STAN-1/a.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["barcode"] = "mutated"
	if info.Size != 2 || info.ETag == "" || info.Metadata["barcode"] != "STAN-1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "provenance/STAN-1/a.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	_, rc, err := s.Get(ctx, "provenance/STAN-1/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "{}" {
		t.Fatalf("unexpected body %q", body)
	}
	_, _ = s.Put(ctx, "provenance/STAN-2/b.csv", strings.NewReader("a,b"), core.PutOptions{})
	list, _ := s.List(ctx, "provenance/STAN-1/")
	if len(list) != 1 || list[0].Key != "provenance/STAN-1/a.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, err := s.PresignURL(ctx, "x", time.Minute); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported presign")
	}
	if ok, _ := s.Delete(ctx, "provenance/STAN-1/a.json"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if _, err := s.Head(ctx, "provenance/STAN-1/a.json"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist on get, got %v", err)
	}
}
