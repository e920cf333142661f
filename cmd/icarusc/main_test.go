package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// TestRunCompilesCleanModule covers the 0-exit-code path: one valid
// source file, no flags beyond the positional path.
func TestRunCompilesCleanModule(t *testing.T) {
	dir := t.TempDir()
	p := writeSource(t, dir, "main.ic", `main ::= () -> int32 { return 1 }`)
	if code := run([]string{p}); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
}

// TestRunReportsCompileError covers spec.md §6's exit code -1 for a
// compile error.
func TestRunReportsCompileError(t *testing.T) {
	dir := t.TempDir()
	p := writeSource(t, dir, "bad.ic", `broken ::= () -> int32 { return undefinedThing }`)
	if code := run([]string{p}); code != -1 {
		t.Fatalf("run() = %d, want -1", code)
	}
}

// TestRunRejectsMissingSources covers spec.md §6's exit code -1 for an
// argument error: no positional source paths given.
func TestRunRejectsMissingSources(t *testing.T) {
	if code := run(nil); code != -1 {
		t.Fatalf("run() = %d, want -1", code)
	}
}

// TestRunRejectsUnknownFileType covers the --file-type validation.
func TestRunRejectsUnknownFileType(t *testing.T) {
	dir := t.TempDir()
	p := writeSource(t, dir, "main.ic", `main ::= () -> int32 { return 1 }`)
	if code := run([]string{"--file-type=objdump", p}); code != -1 {
		t.Fatalf("run() = %d, want -1", code)
	}
}

// TestRunRejectsRepl covers the REPL flag's explicit non-support: the
// REPL shell loop is an external collaborator, not part of this
// driver.
func TestRunRejectsRepl(t *testing.T) {
	if code := run([]string{"-r"}); code != -1 {
		t.Fatalf("run() = %d, want -1", code)
	}
}

// TestRunAcceptsVersionedSource covers --min-version wiring through to
// internal/driver's pragma check.
func TestRunAcceptsVersionedSource(t *testing.T) {
	dir := t.TempDir()
	p := writeSource(t, dir, "main.ic", "#version v1.2.0\nmain ::= () -> int32 { return 1 }")
	if code := run([]string{"--min-version=v1.0.0", p}); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if code := run([]string{"--min-version=v2.0.0", p}); code != -1 {
		t.Fatalf("run() = %d, want -1 (source declares an older version than required)", code)
	}
}
