// Package errs implements the compiler's error taxonomy and per-module
// diagnostic log (spec.md §7). Every other component reports through a
// *Log rather than returning a Go error on the happy-path walk, so that
// type-checking and lowering can keep going after a recoverable mistake
// and still produce "one message per root cause".
package errs

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Kind is the closed error taxonomy from spec.md §7.
type Kind string

const (
	Lex          Kind = "lex"
	Parse        Kind = "parse"
	Resolve      Kind = "resolve"
	Type         Kind = "type"
	SpecialDecl  Kind = "special-decl"
	InterpFatal  Kind = "interp-fatal"
)

// Span is the source location an error is anchored to.
type Span struct {
	File string
	Line int
	Col  int
}

// Diagnostic is one non-fatal, logged error.
type Diagnostic struct {
	Kind    Kind
	Message string
	Span    Span
	Snippet string // the offending source line, if available
}

func (d *Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", d.Kind, d.Message)
	if d.Span.File != "" {
		fmt.Fprintf(&sb, "  at %s:%d:%d\n", d.Span.File, d.Span.Line, d.Span.Col)
	}
	if d.Snippet != "" {
		fmt.Fprintf(&sb, "\n  %d | %s\n", d.Span.Line, d.Snippet)
		pad := len(fmt.Sprintf("%d | ", d.Span.Line))
		if d.Span.Col > 0 {
			pad += d.Span.Col - 1
		}
		sb.WriteString(strings.Repeat(" ", pad))
		sb.WriteString("^\n")
	}
	return sb.String()
}

// Log accumulates diagnostics for a single module compile, grouped by
// file in report order.
type Log struct {
	byFile map[string][]*Diagnostic
	order  []string
}

func NewLog() *Log {
	return &Log{byFile: make(map[string][]*Diagnostic)}
}

// Add records a diagnostic. It never returns an error: the caller keeps
// walking and the offending node's type becomes types.Error.
func (l *Log) Add(kind Kind, file string, line, col int, snippet, format string, args ...interface{}) {
	d := &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    Span{File: file, Line: line, Col: col},
		Snippet: snippet,
	}
	if _, ok := l.byFile[file]; !ok {
		l.order = append(l.order, file)
	}
	l.byFile[file] = append(l.byFile[file], d)
}

// HasErrors reports whether any diagnostic was logged for any file.
// A module with any error does not proceed to back-end lowering.
func (l *Log) HasErrors() bool {
	return len(l.order) > 0
}

// Count returns the total number of diagnostics logged across all files.
func (l *Log) Count() int {
	n := 0
	for _, f := range l.order {
		n += len(l.byFile[f])
	}
	return n
}

// Render produces the user-visible report: grouped by file, each with a
// source span and snippet, in the order files were first touched.
func (l *Log) Render() string {
	var sb strings.Builder
	for _, file := range l.order {
		fmt.Fprintf(&sb, "== %s ==\n", file)
		for _, d := range l.byFile[file] {
			sb.WriteString(d.String())
		}
	}
	return sb.String()
}

// Fatal is the class of interpreter error spec.md §4.I/§7 says aborts the
// whole compile with a stack dump rather than being logged and
// recovered from: use-before-init, an unsupported foreign-call shape, or
// a NOT_YET/UNREACHABLE opcode. These are bugs, not user errors.
type Fatal struct {
	Reason string
	cause  error
}

func (f *Fatal) Error() string {
	return fmt.Sprintf("fatal: %s", f.Reason)
}

func (f *Fatal) Unwrap() error { return f.cause }

// NewFatal wraps cause (if non-nil) with github.com/pkg/errors so the
// abort path keeps a frame trace for the stack dump, while Reason stays
// the short user-facing message.
func NewFatal(reason string, cause error) *Fatal {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Fatal{Reason: reason, cause: wrapped}
}

// FormatBytes renders a byte count for interpreter-fatal diagnostics,
// e.g. "8 B" rather than a bare integer, matching how a human-facing
// compiler diagnostic reports sizes. `S.bytes` itself folds to a plain
// int64 constant and does not go through it.
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}
