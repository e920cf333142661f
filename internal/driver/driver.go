// Package driver schedules one compile task per source file and joins
// them at a shared-futures barrier (spec.md §5 "Scheduling": "the
// driver schedules a compile task per source file and waits for each
// future before proceeding"). Grounded on the teacher's
// internal/concurrency/concurrency.go WorkerPool (a hand-rolled
// sync.WaitGroup plus channel fan-in over a fixed goroutine pool) but
// built on golang.org/x/sync/errgroup instead, the direct idiomatic
// replacement for that pattern once the work is "run N independent
// tasks, collect all results or the first error" rather than a
// long-lived job queue.
package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"icarusc/internal/ast"
	"icarusc/internal/errs"
	"icarusc/internal/ir"
	"icarusc/internal/irbuilder"
	"icarusc/internal/lexer"
	"icarusc/internal/parser"
	"icarusc/internal/resolve"
	"icarusc/internal/scope"
	"icarusc/internal/typecheck"
	"icarusc/internal/types"
)

// Source is one file to compile: its path (used for diagnostics) and
// its contents.
type Source struct {
	File string
	Text string
}

// Result is one file's compile outcome: the finished module (nil if
// the log has errors) plus every diagnostic reported for it.
type Result struct {
	TaskID uuid.UUID
	File   string
	Module *ir.Module
	Log    *errs.Log
}

// Driver compiles a set of modules, each independently, per spec.md
// §5's "single-threaded within a module, one module per worker" rule.
type Driver struct {
	Arch types.Architecture

	// MinVersion is the minimum language-version pragma a source file
	// must declare to compile (spec.md §5's "small concession" to a
	// version check; see checkVersionPragma). Empty disables the check.
	MinVersion string
}

func New(arch types.Architecture, minVersion string) *Driver {
	return &Driver{Arch: arch, MinVersion: minVersion}
}

// CompileAll schedules one compile task per source and waits for all
// of them (spec.md §5's "shared-futures join barrier"); ctx cancels
// the remaining in-flight tasks as soon as any one returns a non-nil
// error — reserved for infrastructure failures, since a source file's
// own compile errors are reported through its Result.Log, never as an
// errgroup error (spec.md §7: logged errors do not abort the compile).
func (d *Driver) CompileAll(ctx context.Context, sources []Source) ([]*Result, error) {
	results := make([]*Result, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res := d.compileOne(src)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// compileOne runs the full lex->parse->scope->resolve->typecheck->
// irbuilder pipeline over one source file.
func (d *Driver) compileOne(src Source) *Result {
	taskID := uuid.New()
	log := errs.NewLog()

	if d.MinVersion != "" {
		checkVersionPragma(log, src.File, src.Text, d.MinVersion)
	}

	text := src.Text
	if line := firstNonBlankLine(text); strings.HasPrefix(line, "#version") {
		// The pragma is not language syntax: blank it out before lexing,
		// keeping its newline so later line numbers stay put.
		i := strings.Index(text, line)
		text = text[:i] + text[i+len(line):]
	}
	toks := lexer.New(src.File, []byte(text), log).Tokenize()
	stmts := parser.NewParser(src.File, toks, log).Parse()

	mod := scope.NewModule(src.File)
	scope.AssignScopes(stmts, mod.Global)

	var decls []*ast.Declaration
	for _, n := range stmts.List {
		if decl, ok := n.(*ast.Declaration); ok {
			decls = append(decls, decl)
		}
	}
	order := resolve.New(src.File, log).Order(decls)

	interner := types.NewInterner()
	typecheck.New(src.File, log, interner, d.Arch).CheckModule(order)

	if log.HasErrors() {
		return &Result{TaskID: taskID, File: src.File, Log: log}
	}

	ro := ir.NewReadOnlyData()
	b := irbuilder.New(src.File, log, interner, d.Arch, ro)
	im := ir.NewModule(src.File)
	im.ReadOnly = ro
	for _, decl := range order {
		fn, ok := decl.InitVal.(*ast.FunctionLiteral)
		if !ok {
			continue
		}
		f := b.BuildFunction(decl, fn)
		f.ID = uuid.New().String()
		im.Funcs = append(im.Funcs, f)
	}

	return &Result{TaskID: taskID, File: src.File, Module: im, Log: log}
}

// checkVersionPragma implements spec.md §5's per-run syntactic version
// check: a source file may open with a `#version vX.Y.Z` line (the
// same leading-`#` convention spec.md's hashtag annotations use, here
// at file scope rather than on a declaration); if present, it must
// parse as a valid semver and be >= minVersion. Absence of the pragma
// is not an error — only a present-but-too-old or malformed one is.
func checkVersionPragma(log *errs.Log, file, text, minVersion string) {
	line := firstNonBlankLine(text)
	if !strings.HasPrefix(line, "#version") {
		return
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		log.Add(errs.SpecialDecl, file, 1, 0, line, "malformed #version pragma %q, want `#version vX.Y.Z`", line)
		return
	}
	v := fields[1]
	if !semver.IsValid(v) {
		log.Add(errs.SpecialDecl, file, 1, 0, line, "invalid #version pragma %q: not a valid semantic version", v)
		return
	}
	if semver.Compare(v, minVersion) < 0 {
		log.Add(errs.SpecialDecl, file, 1, 0, line,
			"module declares minimum language version %s, this driver requires >= %s", v, minVersion)
	}
}

func firstNonBlankLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Summary renders a one-line-per-file report, the shape a cmd/icarusc
// driver invocation prints after CompileAll returns (spec.md §6 exit
// codes: 0 on every file compiling clean, -1 otherwise).
func Summary(results []*Result) string {
	var sb strings.Builder
	for _, r := range results {
		status := "ok"
		if r.Log.HasErrors() {
			status = fmt.Sprintf("%d error(s)", r.Log.Count())
		}
		fmt.Fprintf(&sb, "%s: %s\n", r.File, status)
		if r.Log.HasErrors() {
			sb.WriteString(r.Log.Render())
		}
	}
	return sb.String()
}

// AnyErrors reports whether any file failed to compile, the condition
// spec.md §6 maps to exit code -1.
func AnyErrors(results []*Result) bool {
	for _, r := range results {
		if r.Log.HasErrors() {
			return true
		}
	}
	return false
}
