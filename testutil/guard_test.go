package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureFatal struct{ msg string }

func (c *captureFatal) Fatalf(format string, _ ...any) { c.msg = format }

func TestPredicates(t *testing.T) {
	cases := []struct {
		path     string
		internal bool
		driver   bool
	}{
		{"labcore/internal/core", true, false},
		{"labcore/pkg/domain", false, false},
		{"modernc.org/sqlite", false, true},
		{"github.com/jackc/pgx/v5/stdlib", false, true},
	}
	for _, tc := range cases {
		if got := InternalImportForbidden(tc.path); got != tc.internal {
			t.Fatalf("InternalImportForbidden(%q)=%v", tc.path, got)
		}
		if got := StorageDriverForbidden(tc.path); got != tc.driver {
			t.Fatalf("StorageDriverForbidden(%q)=%v", tc.path, got)
		}
	}
}

func TestDirectImportViolationsSkipsTests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport \"labcore/internal/core\"\nvar _ = core.Service{}\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport \"modernc.org/sqlite\"\n")
	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "a.go") {
		t.Fatalf("unexpected violations %v", viols)
	}
	viols, err = directImportViolations(dir, StorageDriverForbidden)
	if err != nil || len(viols) != 0 {
		t.Fatalf("test files must be ignored: %v %v", viols, err)
	}
}

func TestDirectImportViolationsMissingDir(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), InternalImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestFailIfViolations(t *testing.T) {
	c := &captureFatal{}
	failIfViolations(c, "direct imports", "reason", nil)
	if c.msg != "" {
		t.Fatalf("unexpected failure for no violations")
	}
	failIfViolations(c, "direct imports", "reason", []string{"x"})
	if c.msg == "" {
		t.Fatalf("expected failure")
	}
}

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
