// Package testutil holds test helpers that enforce the layering between the
// domain model, the planning engine and the infrastructure drivers.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// driverModules are the third-party modules that only infra packages and
// the command may import.
var driverModules = []string{
	"github.com/aws/aws-sdk-go-v2",
	"github.com/go-redis/redis",
	"github.com/go-resty/resty",
	"github.com/jackc/pgx",
	"github.com/xuri/excelize",
	"modernc.org/sqlite",
}

// AssertNoTransitiveDependency loads pattern with its dependency graph and
// fails when any reachable package path matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("load packages %s: %v", pattern, err)
	}
	failIfViolations(t, "transitive dependency", reason, viols)
}

// AssertNoDirectImports parses the non-test .go files directly inside dir and
// fails when an import path matches forbidden. Build tags are ignored.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// InternalImportForbidden matches any path under an internal/ directory.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// InfraImportForbidden matches the concrete driver packages under internal/infra.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/") || strings.HasSuffix(path, "/internal/infra")
}

// DriverImportForbidden matches database, cloud and transport client modules.
func DriverImportForbidden(path string) bool {
	for _, mod := range driverModules {
		if path == mod || strings.HasPrefix(path, mod+"/") {
			return true
		}
	}
	return false
}

// AnyOf combines predicates.
func AnyOf(preds ...func(string) bool) func(string) bool {
	return func(path string) bool {
		for _, p := range preds {
			if p(path) {
				return true
			}
		}
		return false
	}
}

var loadPackages = func(pattern string) ([]*packages.Package, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	return packages.Load(cfg, pattern)
}

func transitiveDependencyViolations(pattern string, forbidden func(path string) bool) ([]string, error) {
	roots, err := loadPackages(pattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var viols []string
	var visit func(p *packages.Package)
	visit = func(p *packages.Package) {
		if seen[p.PkgPath] {
			return
		}
		seen[p.PkgPath] = true
		if forbidden(p.PkgPath) {
			viols = append(viols, p.PkgPath)
		}
		for _, dep := range p.Imports {
			visit(dep)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	sort.Strings(viols)
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
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
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
