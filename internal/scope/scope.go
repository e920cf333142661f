// Package scope implements the lexical scope graph spec.md §4.C
// describes: every Declaration inserts itself into its enclosing scope,
// and lookup walks the parent chain collecting every declaration that
// matches an identifier so overload sets can be built later. Grounded on
// the original Icarus compiler's src/ast/scope_node.cc (scope
// construction) and src/ast/assign_scope.cc (the declaration-insertion
// walk), adapted from Icarus's node-owns-scope-pointer model to the
// back-reference-by-index design spec.md §9 recommends ("store the
// scope index, not a pointer back").
package scope

import (
	"icarusc/internal/ast"
)

// Kind is the closed set of scope flavors (spec.md §3 Scope).
type Kind int

const (
	KindDecl Kind = iota
	KindBlock
	KindFn
	KindFor
)

// Scope is one node of the scope DAG rooted at the module's global
// scope. A function scope additionally holds an entry/exit block index
// and a return-value slot once the IR builder has allocated them;
// those three fields start zero-valued and are filled in during
// lowering (spec.md §3: "A function scope also holds an entry block, an
// exit block, and a return-value slot").
type Scope struct {
	Parent *Scope
	Module *Module
	Kind   Kind
	decls  map[string][]*ast.Declaration

	// Function-scope bookkeeping, set by internal/irbuilder once it lays
	// out the function; left as plain ints/registers here (rather than
	// *ir.Block pointers) to avoid this package depending on internal/ir
	// at all.
	EntryBlock    int
	ExitBlock     int
	ReturnSlotSet bool
	ReturnSlot    int
}

// Module marks a compile unit's global scope boundary (spec.md §3: "the
// module's global scope").
type Module struct {
	Name   string
	Global *Scope
}

// NewModule creates a module with a fresh global scope.
func NewModule(name string) *Module {
	m := &Module{Name: name}
	m.Global = &Scope{Module: m, Kind: KindDecl}
	return m
}

// NewChild creates a child scope of kind k nested in parent.
func NewChild(parent *Scope, k Kind) *Scope {
	return &Scope{Parent: parent, Module: parent.Module, Kind: k}
}

// Declare inserts decl into s under its own name. A Declaration appears
// in exactly one scope (spec.md §3 invariant) — callers must not declare
// the same *ast.Declaration into two scopes.
func (s *Scope) Declare(decl *ast.Declaration) {
	if s.decls == nil {
		s.decls = make(map[string][]*ast.Declaration)
	}
	s.decls[decl.Name] = append(s.decls[decl.Name], decl)
}

// Lookup walks the parent chain starting at s, returning every
// declaration at the first scope level (innermost to outermost) where
// name has at least one match — matching declarations at one level
// shadow the same name in any enclosing scope, but multiple
// declarations with that name at the *same* level are all overload
// candidates (spec.md §4.C/§4.F: "more than one [decl] matches" makes
// the identifier's type a Quantum).
func (s *Scope) Lookup(name string) []*ast.Declaration {
	for cur := s; cur != nil; cur = cur.Parent {
		if decls, ok := cur.decls[name]; ok && len(decls) > 0 {
			out := make([]*ast.Declaration, len(decls))
			copy(out, decls)
			return out
		}
	}
	return nil
}

// AssignScopes walks stmts, inserting every Declaration into scope and
// recursing into nested block/fn/for scopes, then resolves every
// Identifier's Candidates/ResolvedDecl against the scope it appears in.
// This is the single pass that replaces Icarus's two-phase
// scope_node.cc + assign_scope.cc with one annotated walk.
func AssignScopes(stmts *ast.Statements, s *Scope) {
	w := &assigner{}
	w.walkStatements(stmts, s)
}

type assigner struct{}

func (a *assigner) walkStatements(n *ast.Statements, s *Scope) {
	for _, stmt := range n.List {
		a.walk(stmt, s)
	}
}

func (a *assigner) walk(n ast.Node, s *Scope) {
	if n == nil {
		return
	}
	switch node := n.(type) {
	case *ast.Declaration:
		s.Declare(node)
		a.walk(node.TypeExpr, s)
		a.walk(node.InitVal, s)
	case *ast.Identifier:
		node.Candidates = s.Lookup(node.Name)
		if len(node.Candidates) == 1 {
			node.ResolvedDecl = node.Candidates[0]
		}
	case *ast.Terminal:
		// no children
	case *ast.Unop:
		a.walk(node.Operand, s)
	case *ast.Binop:
		a.walk(node.LHS, s)
		a.walk(node.RHS, s)
	case *ast.ChainOp:
		for _, e := range node.Exprs {
			a.walk(e, s)
		}
	case *ast.Access:
		a.walk(node.Operand, s)
	case *ast.Index:
		a.walk(node.Array, s)
		a.walk(node.Idx, s)
	case *ast.Call:
		a.walk(node.Callee, s)
		for _, p := range node.Positional {
			a.walk(p, s)
		}
		for _, v := range node.Named {
			a.walk(v, s)
		}
	case *ast.ArrayLiteral:
		for _, e := range node.Elems {
			a.walk(e, s)
		}
	case *ast.ArrayType:
		a.walk(node.Length, s)
		a.walk(node.DataType, s)
	case *ast.StructLiteral:
		inner := NewChild(s, KindBlock)
		for _, p := range node.Params {
			a.walk(p, inner)
		}
		for _, f := range node.Fields {
			a.walk(f, inner)
		}
	case *ast.EnumLiteral:
		// members are plain names, not identifiers to resolve
	case *ast.FunctionLiteral:
		fn := NewChild(s, KindFn)
		for _, in := range node.Inputs {
			a.walk(in, fn)
		}
		a.walk(node.ReturnExpr, fn)
		if node.Body != nil {
			a.walkStatements(node.Body, fn)
		}
	case *ast.Case:
		for i := range node.Keys {
			a.walk(node.Keys[i], s)
			a.walk(node.Vals[i], s)
		}
	case *ast.If:
		for i := range node.Conditions {
			a.walk(node.Conditions[i], s)
			a.walkStatements(node.Bodies[i], NewChild(s, KindBlock))
		}
		if node.Else != nil {
			a.walkStatements(node.Else, NewChild(s, KindBlock))
		}
	case *ast.While:
		a.walk(node.Cond, s)
		a.walkStatements(node.Body, NewChild(s, KindBlock))
	case *ast.For:
		forScope := NewChild(s, KindFor)
		for _, it := range node.Iterators {
			a.walk(it.InitVal, s) // container expr resolves in the outer scope
			forScope.Declare(it) // loop variable is visible inside the body
		}
		a.walkStatements(node.Body, forScope)
	case *ast.Jump:
		a.walk(node.Value, s)
	case *ast.Statements:
		a.walkStatements(node, NewChild(s, KindBlock))
	}
}
