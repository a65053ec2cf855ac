// Package testutil provides fixtures and architecture guards shared by the
// labcore test suites.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// AssertNoTransitiveDependency loads the packages matched by pattern from dir and
// fails if any package in their import graph satisfies the forbidden predicate.
func AssertNoTransitiveDependency(t testing.TB, dir, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, err := transitiveDependencyViolations(dir, pattern, forbidden)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	failIfViolations(t, "transitive dependency", reason, viols)
}

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import path satisfies the forbidden predicate.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// StorageDriverForbidden matches the database drivers, which only the
// persistence backends may import.
func StorageDriverForbidden(path string) bool {
	return strings.HasPrefix(path, "modernc.org/sqlite") || strings.HasPrefix(path, "github.com/jackc/pgx")
}

func transitiveDependencyViolations(dir, pattern string, forbidden func(path string) bool) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps, Dir: dir}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	var loadErrs []string
	seen := make(map[string]bool)
	var viols []string
	packages.Visit(pkgs, func(p *packages.Package) bool {
		if seen[p.PkgPath] {
			return false
		}
		seen[p.PkgPath] = true
		for _, e := range p.Errors {
			loadErrs = append(loadErrs, e.Msg)
		}
		if forbidden(p.PkgPath) {
			viols = append(viols, p.PkgPath)
		}
		return true
	}, nil)
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(loadErrs, "; "))
	}
	slices.Sort(viols)
	return viols, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden %s detected (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
