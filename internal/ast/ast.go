// Package ast defines the untyped syntax tree spec.md §3 describes as "a
// tagged sum with these variants". Go has no sum types, so each variant
// is its own struct implementing Node, following the teacher's
// Expr/Accept(visitor) dispatch pattern (internal/parser/ast.go) widened
// to cover statements and declarations in the same hierarchy, since
// spec.md treats them as one AST rather than splitting Expr/Stmt.
//
// Invariants (spec.md §3): every node has at most one parent — ownership
// flows strictly parent→child, nodes never hold a parent pointer, only a
// Span. A Declaration appears in exactly one Scope (tracked by the scope
// package, not here). After type-checking, every node's Type field is
// non-nil (possibly types.Error).
package ast

// Span is the source location a node was parsed from.
type Span struct {
	File string
	Line int
}

// DeclKind is the closed set of declaration forms (spec.md GLOSSARY).
type DeclKind int

const (
	Std   DeclKind = iota // x: T
	Infer                 // x := expr
	In                    // x in container
	Tick                  // generic constraint
)

// TypeSlot is satisfied by the type system so ast does not import types
// (which itself does not need to import ast: type objects are built
// from already-checked nodes). The typechecker fills this in.
type TypeSlot interface {
	IsError() bool
}

// node is embedded by every variant; it carries the span and the type
// slot assigned by the type checker.
type node struct {
	span Span
	typ  TypeSlot
}

func (n *node) Span() Span       { return n.span }
func (n *node) Type() TypeSlot   { return n.typ }
func (n *node) SetType(t TypeSlot) { n.typ = t }

// Node is implemented by every AST variant.
type Node interface {
	Accept(v Visitor) interface{}
	Span() Span
	Type() TypeSlot
	SetType(TypeSlot)
}

func mk(span Span) node { return node{span: span} }

// ---- Variants ----

// Terminal is a literal or reserved terminal (return, else, ...).
type Terminal struct {
	node
	Kind  string // "int", "real", "char", "string", "bool", "null", "return", "else", ...
	Value string
}

func NewTerminal(span Span, kind, value string) *Terminal {
	return &Terminal{node: mk(span), Kind: kind, Value: value}
}
func (t *Terminal) Accept(v Visitor) interface{} { return v.VisitTerminal(t) }

// Identifier is a name reference. ResolvedDecl is filled in by scope
// resolution once exactly one declaration matches; Candidates holds every
// matching declaration (more than one means the identifier's type becomes
// a Quantum type, spec.md §4.C/§4.F).
type Identifier struct {
	node
	Name         string
	Candidates   []*Declaration
	ResolvedDecl *Declaration
}

func NewIdentifier(span Span, name string) *Identifier {
	return &Identifier{node: mk(span), Name: name}
}
func (i *Identifier) Accept(v Visitor) interface{} { return v.VisitIdentifier(i) }

// Unop is a prefix operator: !x, -x, &x, @x, print x, return x, free x.
type Unop struct {
	node
	Op      string
	Operand Node
}

func NewUnop(span Span, op string, operand Node) *Unop {
	return &Unop{node: mk(span), Op: op, Operand: operand}
}
func (u *Unop) Accept(v Visitor) interface{} { return v.VisitUnop(u) }

// Binop is a single binary operator application, including `expr as
// Type` casts (Op "as"; spec.md §4.F's Cast node-type contract reuses
// this node rather than a dedicated one, see DESIGN.md).
type Binop struct {
	node
	Op  string
	LHS Node
	RHS Node
}

func NewBinop(span Span, op string, lhs, rhs Node) *Binop {
	return &Binop{node: mk(span), Op: op, LHS: lhs, RHS: rhs}
}
func (b *Binop) Accept(v Visitor) interface{} { return v.VisitBinop(b) }

// ChainOp folds a run of same-precedence comparison or logical operators
// into one node instead of nesting Binops (spec.md §4.B): len(Exprs) ==
// len(Ops)+1.
type ChainOp struct {
	node
	Ops   []string
	Exprs []Node
}

func NewChainOp(span Span, ops []string, exprs []Node) *ChainOp {
	return &ChainOp{node: mk(span), Ops: ops, Exprs: exprs}
}
func (c *ChainOp) Accept(v Visitor) interface{} { return v.VisitChainOp(c) }

// Access is a member access: operand.member.
type Access struct {
	node
	Operand Node
	Member  string
}

func NewAccess(span Span, operand Node, member string) *Access {
	return &Access{node: mk(span), Operand: operand, Member: member}
}
func (a *Access) Accept(v Visitor) interface{} { return v.VisitAccess(a) }

// Index is an array/pointer index: arr[idx].
type Index struct {
	node
	Array Node
	Idx   Node
}

func NewIndex(span Span, arr, idx Node) *Index {
	return &Index{node: mk(span), Array: arr, Idx: idx}
}
func (i *Index) Accept(v Visitor) interface{} { return v.VisitIndex(i) }

// Call is callee(positional..., name: value...).
type Call struct {
	node
	Callee     Node
	Positional []Node
	Named      map[string]Node
}

func NewCall(span Span, callee Node, positional []Node, named map[string]Node) *Call {
	return &Call{node: mk(span), Callee: callee, Positional: positional, Named: named}
}
func (c *Call) Accept(v Visitor) interface{} { return v.VisitCall(c) }

// Declaration binds Name, one of {Std,Infer,In,Tick}. TypeExpr and
// InitVal are each optional depending on Kind.
type Declaration struct {
	node
	Name     string
	Kind     DeclKind
	TypeExpr Node // Std, Tick
	InitVal  Node // Infer, In (the container), Std (optional default)
	Hashtags map[string]bool
}

func NewDeclaration(span Span, name string, kind DeclKind, typeExpr, initVal Node) *Declaration {
	return &Declaration{node: mk(span), Name: name, Kind: kind, TypeExpr: typeExpr, InitVal: initVal}
}
func (d *Declaration) Accept(v Visitor) interface{} { return v.VisitDeclaration(d) }

// ArrayLiteral is [e0, e1, ...]; its element type is the Join of every
// element's type (spec.md §4.F).
type ArrayLiteral struct {
	node
	Elems []Node
}

func NewArrayLiteral(span Span, elems []Node) *ArrayLiteral {
	return &ArrayLiteral{node: mk(span), Elems: elems}
}
func (a *ArrayLiteral) Accept(v Visitor) interface{} { return v.VisitArrayLiteral(a) }

// ArrayType is [length?; data_type]; Length == nil marks dynamic length.
type ArrayType struct {
	node
	Length   Node
	DataType Node
}

func NewArrayType(span Span, length, dataType Node) *ArrayType {
	return &ArrayType{node: mk(span), Length: length, DataType: dataType}
}
func (a *ArrayType) Accept(v Visitor) interface{} { return v.VisitArrayType(a) }

// StructLiteral is `struct(params...) { fields... }`; Params is the
// bound-constants list used to build a types.GenericStruct when non-empty
// (spec.md §9, SPEC_FULL.md supplemented feature).
type StructLiteral struct {
	node
	Params []*Declaration
	Fields []*Declaration
}

func NewStructLiteral(span Span, params, fields []*Declaration) *StructLiteral {
	return &StructLiteral{node: mk(span), Params: params, Fields: fields}
}
func (s *StructLiteral) Accept(v Visitor) interface{} { return v.VisitStructLiteral(s) }

// EnumLiteral is `enum { A, B, C }` (also used for flags; the checker
// distinguishes by declared usage context).
type EnumLiteral struct {
	node
	Members []string
	IsFlags bool
}

func NewEnumLiteral(span Span, members []string, isFlags bool) *EnumLiteral {
	return &EnumLiteral{node: mk(span), Members: members, IsFlags: isFlags}
}
func (e *EnumLiteral) Accept(v Visitor) interface{} { return v.VisitEnumLiteral(e) }

// FunctionLiteral is (inputs...) -> return_expr { body }.
type FunctionLiteral struct {
	node
	Inputs     []*Declaration
	ReturnExpr Node // optional; nil means return type is inferred
	Body       *Statements
}

func NewFunctionLiteral(span Span, inputs []*Declaration, returnExpr Node, body *Statements) *FunctionLiteral {
	return &FunctionLiteral{node: mk(span), Inputs: inputs, ReturnExpr: returnExpr, Body: body}
}
func (f *FunctionLiteral) Accept(v Visitor) interface{} { return v.VisitFunctionLiteral(f) }

// Case is `case { cond => val, ... }`; every Key must be bool, and every
// Val joins to one common type (spec.md §4.F).
type Case struct {
	node
	Keys []Node
	Vals []Node
}

func NewCase(span Span, keys, vals []Node) *Case {
	return &Case{node: mk(span), Keys: keys, Vals: vals}
}
func (c *Case) Accept(v Visitor) interface{} { return v.VisitCase(c) }

// If is `if c1 {b1} else if c2 {b2} ... else {else}`.
type If struct {
	node
	Conditions []Node
	Bodies     []*Statements
	Else       *Statements // nil if absent
}

func NewIf(span Span, conditions []Node, bodies []*Statements, els *Statements) *If {
	return &If{node: mk(span), Conditions: conditions, Bodies: bodies, Else: els}
}
func (i *If) Accept(v Visitor) interface{} { return v.VisitIf(i) }

// While is `while cond { body }`.
type While struct {
	node
	Cond Node
	Body *Statements
}

func NewWhile(span Span, cond Node, body *Statements) *While {
	return &While{node: mk(span), Cond: cond, Body: body}
}
func (w *While) Accept(v Visitor) interface{} { return v.VisitWhile(w) }

// For is `for it1, it2, ... { body }`. Each iterator is a Declaration of
// Kind In: `name in container` (spec.md GLOSSARY "In: iterator").
type For struct {
	node
	Iterators []*Declaration
	Body      *Statements
}

func NewFor(span Span, iterators []*Declaration, body *Statements) *For {
	return &For{node: mk(span), Iterators: iterators, Body: body}
}
func (f *For) Accept(v Visitor) interface{} { return v.VisitFor(f) }

// JumpKind is the closed set of non-local control transfers.
type JumpKind int

const (
	JumpReturn JumpKind = iota
	JumpBreak
	JumpContinue
	JumpRepeat
	JumpRestart
)

// Jump is `return [expr]`, `break`, `continue`, `repeat`, or `restart`.
type Jump struct {
	node
	Kind  JumpKind
	Value Node // only meaningful for JumpReturn
}

func NewJump(span Span, kind JumpKind, value Node) *Jump {
	return &Jump{node: mk(span), Kind: kind, Value: value}
}
func (j *Jump) Accept(v Visitor) interface{} { return v.VisitJump(j) }

// Statements is a straight-line sequence; the module owns the top-level
// Statements root (spec.md §3 lifecycle).
type Statements struct {
	node
	List []Node
}

func NewStatements(span Span, list []Node) *Statements {
	return &Statements{node: mk(span), List: list}
}
func (s *Statements) Accept(v Visitor) interface{} { return v.VisitStatements(s) }

// Visitor dispatches over every AST variant, following the teacher's
// ExprVisitor pattern (internal/parser/ast.go) extended to the full
// spec.md variant set.
type Visitor interface {
	VisitTerminal(*Terminal) interface{}
	VisitIdentifier(*Identifier) interface{}
	VisitUnop(*Unop) interface{}
	VisitBinop(*Binop) interface{}
	VisitChainOp(*ChainOp) interface{}
	VisitAccess(*Access) interface{}
	VisitIndex(*Index) interface{}
	VisitCall(*Call) interface{}
	VisitDeclaration(*Declaration) interface{}
	VisitArrayLiteral(*ArrayLiteral) interface{}
	VisitArrayType(*ArrayType) interface{}
	VisitStructLiteral(*StructLiteral) interface{}
	VisitEnumLiteral(*EnumLiteral) interface{}
	VisitFunctionLiteral(*FunctionLiteral) interface{}
	VisitCase(*Case) interface{}
	VisitIf(*If) interface{}
	VisitWhile(*While) interface{}
	VisitFor(*For) interface{}
	VisitJump(*Jump) interface{}
	VisitStatements(*Statements) interface{}
}
