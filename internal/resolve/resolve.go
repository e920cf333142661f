// Package resolve performs the dependency-ordering pass spec.md §4.D
// describes: it walks identifier→decl and decl→type-expression→identifier
// edges and topologically sorts declarations so the type checker visits
// each one only after everything it depends on. Cycles are reported with
// the participating identifiers, and every participant's type is set to
// types.Error so the checker skips them without re-reporting (spec.md
// §4.C/§9). Grounded on the original Icarus compiler's
// src/ast/clear_id_decls.cc (identifier/decl edge walking) and the cycle
// policy spec.md §9 spells out explicitly: "detect by entering a node and
// pushing its identifier onto a path stack; a repeated entry with the
// stack-top identifier closes the cycle".
package resolve

import (
	"icarusc/internal/ast"
	"icarusc/internal/errs"
	"icarusc/internal/types"
)

type state int

const (
	unvisited state = iota
	visiting
	done
)

// Resolver topologically sorts a flat set of top-level declarations.
type Resolver struct {
	log   *errs.Log
	file  string
	state map[*ast.Declaration]state
	order []*ast.Declaration
	stack []*ast.Declaration
}

func New(file string, log *errs.Log) *Resolver {
	return &Resolver{file: file, log: log, state: make(map[*ast.Declaration]state)}
}

// Order returns decls in dependency order: every declaration appears
// after every declaration its type-expression or initializer references
// (spec.md §5: "Type assignment respects the dependency DAG"). Members
// of a cycle all get types.Error and are still included, in encounter
// order, at the end of the cycle's visit — the type checker's contract
// is that a node with type Error is safely skippable, not that it's
// excluded from Order.
func (r *Resolver) Order(decls []*ast.Declaration) []*ast.Declaration {
	for _, d := range decls {
		r.visit(d)
	}
	return r.order
}

func (r *Resolver) visit(d *ast.Declaration) {
	switch r.state[d] {
	case done:
		return
	case visiting:
		r.closeCycle(d)
		return
	}
	r.state[d] = visiting
	r.stack = append(r.stack, d)

	for _, dep := range r.dependencies(d) {
		r.visit(dep)
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[d] = done
	r.order = append(r.order, d)
}

// closeCycle marks every declaration from d (the repeated stack-top) to
// the end of the current path stack as Error and logs one diagnostic
// naming the participating identifiers (spec.md §4.D/§9).
func (r *Resolver) closeCycle(d *ast.Declaration) {
	start := -1
	for i, s := range r.stack {
		if s == d {
			start = i
			break
		}
	}
	if start < 0 {
		start = 0
	}
	names := make([]string, 0, len(r.stack)-start)
	for _, s := range r.stack[start:] {
		names = append(names, s.Name)
		s.SetType(types.Error)
		if r.state[s] != done {
			r.state[s] = done
			r.order = append(r.order, s)
		}
	}
	line := 0
	if len(r.stack) > start {
		line = r.stack[start].Span().Line
	}
	r.log.Add(errs.Resolve, r.file, line, 1, "", "cyclic dependency among %v", names)
}

// dependencies returns the declarations d's type-expression and
// initializer reference, via each identifier's resolved candidate set
// (conservatively: every candidate, since overload resolution needs
// candidate signatures typed first).
func (r *Resolver) dependencies(d *ast.Declaration) []*ast.Declaration {
	var deps []*ast.Declaration
	seen := map[*ast.Declaration]bool{}
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if n == nil {
			return
		}
		switch node := n.(type) {
		case *ast.Identifier:
			for _, c := range node.Candidates {
				if c != d && !seen[c] {
					seen[c] = true
					deps = append(deps, c)
				}
			}
		case *ast.Unop:
			walk(node.Operand)
		case *ast.Binop:
			walk(node.LHS)
			walk(node.RHS)
		case *ast.ChainOp:
			for _, e := range node.Exprs {
				walk(e)
			}
		case *ast.Access:
			walk(node.Operand)
		case *ast.Index:
			walk(node.Array)
			walk(node.Idx)
		case *ast.Call:
			walk(node.Callee)
			for _, p := range node.Positional {
				walk(p)
			}
			for _, v := range node.Named {
				walk(v)
			}
		case *ast.ArrayLiteral:
			for _, e := range node.Elems {
				walk(e)
			}
		case *ast.ArrayType:
			walk(node.Length)
			walk(node.DataType)
		case *ast.Declaration:
			walk(node.TypeExpr)
			walk(node.InitVal)
		}
	}
	walk(d.TypeExpr)
	walk(d.InitVal)
	return deps
}
