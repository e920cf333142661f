package driver

import (
	"context"
	"strings"
	"testing"

	"icarusc/internal/types"
)

// TestCompileAllIndependentFiles covers spec.md §5's scheduling model:
// each source file compiles on its own future, and every future's
// result is present once CompileAll's join barrier returns.
func TestCompileAllIndependentFiles(t *testing.T) {
	d := New(types.Target64, "")
	sources := []Source{
		{File: "a.ic", Text: `main ::= () -> int32 { return 2 + 3 * 4 }`},
		{File: "b.ic", Text: `double ::= (n: int32) -> int32 { return n * 2 }`},
	}
	results, err := d.CompileAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("CompileAll error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Log.HasErrors() {
			t.Fatalf("%s: unexpected errors: %s", r.File, r.Log.Render())
		}
		if r.Module == nil || len(r.Module.Funcs) != 1 {
			t.Fatalf("%s: want exactly one compiled function", r.File)
		}
		if r.Module.Funcs[0].ID == "" {
			t.Fatalf("%s: compiled function has no stamped ID", r.File)
		}
	}
	if results[0].TaskID == results[1].TaskID {
		t.Fatal("want distinct task IDs for distinct compile tasks")
	}
}

// TestCompileAllCollectsPerFileErrors covers spec.md §7: a file with a
// source-level error reports it through Result.Log rather than
// aborting the whole run or surfacing it as a CompileAll error.
func TestCompileAllCollectsPerFileErrors(t *testing.T) {
	d := New(types.Target64, "")
	sources := []Source{
		{File: "good.ic", Text: `main ::= () -> int32 { return 1 }`},
		{File: "bad.ic", Text: `broken ::= () -> int32 { return undefinedThing }`},
	}
	results, err := d.CompileAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("CompileAll error: %v", err)
	}
	if !AnyErrors(results) {
		t.Fatal("want AnyErrors to report the bad file's diagnostic")
	}
	var goodSeen, badSeen bool
	for _, r := range results {
		switch r.File {
		case "good.ic":
			goodSeen = true
			if r.Log.HasErrors() {
				t.Fatalf("good.ic: unexpected errors: %s", r.Log.Render())
			}
		case "bad.ic":
			badSeen = true
			if !r.Log.HasErrors() {
				t.Fatal("bad.ic: want a reported error for the undefined reference")
			}
		}
	}
	if !goodSeen || !badSeen {
		t.Fatal("want results for both files")
	}
}

// TestVersionPragmaRejectsOlderModule covers the `#version` pragma
// check: a file declaring a version older than the driver's minimum
// reports a diagnostic rather than proceeding to compile.
func TestVersionPragmaRejectsOlderModule(t *testing.T) {
	d := New(types.Target64, "v1.2.0")
	sources := []Source{
		{File: "old.ic", Text: "#version v1.0.0\nmain ::= () -> int32 { return 0 }"},
	}
	results, err := d.CompileAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("CompileAll error: %v", err)
	}
	if !results[0].Log.HasErrors() {
		t.Fatal("want an error for a module declaring an older minimum version")
	}
	if !strings.Contains(results[0].Log.Render(), "v1.0.0") {
		t.Fatalf("want the diagnostic to mention the declared version, got: %s", results[0].Log.Render())
	}
}

// TestVersionPragmaAcceptsNewerModule covers the pragma's accept path:
// a declared version at or above the minimum compiles clean, and
// absence of the pragma entirely is not an error.
func TestVersionPragmaAcceptsNewerModule(t *testing.T) {
	d := New(types.Target64, "v1.0.0")
	sources := []Source{
		{File: "new.ic", Text: "#version v1.2.0\nmain ::= () -> int32 { return 0 }"},
		{File: "unversioned.ic", Text: "main ::= () -> int32 { return 0 }"},
	}
	results, err := d.CompileAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("CompileAll error: %v", err)
	}
	for _, r := range results {
		if r.Log.HasErrors() {
			t.Fatalf("%s: unexpected errors: %s", r.File, r.Log.Render())
		}
	}
}

// TestSummaryReportsFailures covers the cmd/icarusc-facing summary
// rendering: one line per file, with the error count for a file that
// failed.
func TestSummaryReportsFailures(t *testing.T) {
	d := New(types.Target64, "")
	sources := []Source{
		{File: "bad.ic", Text: `broken ::= () -> int32 { return undefinedThing }`},
	}
	results, err := d.CompileAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("CompileAll error: %v", err)
	}
	summary := Summary(results)
	if !strings.Contains(summary, "bad.ic") {
		t.Fatalf("want summary to mention bad.ic, got: %s", summary)
	}
	if !strings.Contains(summary, "error") {
		t.Fatalf("want summary to report an error count, got: %s", summary)
	}
}
