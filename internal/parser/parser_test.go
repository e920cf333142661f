package parser

import (
	"testing"

	"icarusc/internal/ast"
	"icarusc/internal/errs"
	"icarusc/internal/lexer"
)

// parseString runs the lexer and parser together over a source string
// and returns the top-level statements plus the diagnostic log, the
// same two-stage pipeline the teacher's tests drive by hand
// (internal/parser/parser_test.go: NewScanner → ScanTokens → NewParser).
func parseString(t *testing.T, input string) (*ast.Statements, *errs.Log) {
	t.Helper()
	log := errs.NewLog()
	toks := lexer.New("t.ic", []byte(input), log).Tokenize()
	p := NewParser("t.ic", toks, log)
	return p.Parse(), log
}

func assertNoErrors(t *testing.T, log *errs.Log) {
	t.Helper()
	if log.HasErrors() {
		t.Fatalf("unexpected parse errors: %s", log.Render())
	}
}

// TestArithmeticConstantFold covers spec.md §8 scenario 1: `main ::= ()
// -> int32 { return 2 + 3 * 4 }`.
func TestArithmeticConstantFold(t *testing.T) {
	stmts, log := parseString(t, "main ::= () -> int32 { return 2 + 3 * 4 }")
	assertNoErrors(t, log)
	if len(stmts.List) != 1 {
		t.Fatalf("want 1 top-level statement, got %d", len(stmts.List))
	}
	decl, ok := stmts.List[0].(*ast.Declaration)
	if !ok || decl.Kind != ast.Infer || decl.Name != "main" {
		t.Fatalf("want Infer declaration named main, got %#v", stmts.List[0])
	}
	fn, ok := decl.InitVal.(*ast.FunctionLiteral)
	if !ok {
		t.Fatalf("want FunctionLiteral init, got %T", decl.InitVal)
	}
	if len(fn.Body.List) != 1 {
		t.Fatalf("want 1 body statement, got %d", len(fn.Body.List))
	}
	jump, ok := fn.Body.List[0].(*ast.Jump)
	if !ok || jump.Kind != ast.JumpReturn {
		t.Fatalf("want a return jump, got %#v", fn.Body.List[0])
	}
	add, ok := jump.Value.(*ast.Binop)
	if !ok || add.Op != "+" {
		t.Fatalf("want top-level '+', got %#v", jump.Value)
	}
	mul, ok := add.RHS.(*ast.Binop)
	if !ok || mul.Op != "*" {
		t.Fatalf("want '*' binds tighter than '+', got %#v", add.RHS)
	}
}

// TestComparisonChain covers spec.md §8 scenario 2: a < b < c parses to
// one ChainOp rather than nested Binops.
func TestComparisonChain(t *testing.T) {
	stmts, log := parseString(t, "f := (a: int32, b: int32, c: int32) -> bool { return a < b < c }")
	assertNoErrors(t, log)
	decl := stmts.List[0].(*ast.Declaration)
	fn := decl.InitVal.(*ast.FunctionLiteral)
	if len(fn.Inputs) != 3 {
		t.Fatalf("want 3 inputs, got %d", len(fn.Inputs))
	}
	jump := fn.Body.List[0].(*ast.Jump)
	chain, ok := jump.Value.(*ast.ChainOp)
	if !ok {
		t.Fatalf("want a ChainOp, got %T", jump.Value)
	}
	if len(chain.Exprs) != 3 || len(chain.Ops) != 2 {
		t.Fatalf("want 3 operands / 2 ops, got %d/%d", len(chain.Exprs), len(chain.Ops))
	}
	for _, op := range chain.Ops {
		if op != "<" {
			t.Errorf("want every op '<', got %q", op)
		}
	}
}

// TestShortCircuitSource covers spec.md §8 scenario 3: `() -> bool {
// return false and (1/0 == 0) }`.
func TestShortCircuitSource(t *testing.T) {
	stmts, log := parseString(t, "g := () -> bool { return false and (1/0 == 0) }")
	assertNoErrors(t, log)
	decl := stmts.List[0].(*ast.Declaration)
	fn := decl.InitVal.(*ast.FunctionLiteral)
	jump := fn.Body.List[0].(*ast.Jump)
	chain, ok := jump.Value.(*ast.ChainOp)
	if !ok || len(chain.Ops) != 1 || chain.Ops[0] != "and" {
		t.Fatalf("want a 1-op 'and' chain, got %#v", jump.Value)
	}
	lhs := chain.Exprs[0].(*ast.Terminal)
	if lhs.Kind != "bool" || lhs.Value != "false" {
		t.Fatalf("want false terminal, got %#v", lhs)
	}
	rhs, ok := chain.Exprs[1].(*ast.ChainOp)
	if !ok || rhs.Ops[0] != "==" {
		t.Fatalf("want parenthesized equality chain, got %#v", chain.Exprs[1])
	}
}

// TestArrayLiteralSyntax covers spec.md §8 scenario 4 source shapes.
func TestArrayLiteralSyntax(t *testing.T) {
	stmts, log := parseString(t, "a := [1, 2, 3]\nb := [1, true]")
	assertNoErrors(t, log)
	if len(stmts.List) != 2 {
		t.Fatalf("want 2 statements, got %d", len(stmts.List))
	}
	for _, s := range stmts.List {
		decl := s.(*ast.Declaration)
		lit, ok := decl.InitVal.(*ast.ArrayLiteral)
		if !ok {
			t.Fatalf("want ArrayLiteral, got %T", decl.InitVal)
		}
		if len(lit.Elems) != 2 && len(lit.Elems) != 3 {
			t.Fatalf("unexpected element count %d", len(lit.Elems))
		}
	}
}

// TestOverloadDeclarations covers spec.md §8 scenario 5: two `add`
// declarations in the same scope become overload candidates later (the
// parser just needs to produce two independent Declaration nodes).
func TestOverloadDeclarations(t *testing.T) {
	src := "add ::= (a:int32,b:int32)->int32{ return a + b }\n" +
		"add ::= (a:real,b:real)->real{ return a + b }"
	stmts, log := parseString(t, src)
	assertNoErrors(t, log)
	if len(stmts.List) != 2 {
		t.Fatalf("want 2 declarations, got %d", len(stmts.List))
	}
	for _, s := range stmts.List {
		decl, ok := s.(*ast.Declaration)
		if !ok || decl.Name != "add" {
			t.Fatalf("want declaration named add, got %#v", s)
		}
	}
}

// TestStructLiteralAndBytesAccess covers spec.md §8 scenario 6: `S ::=
// struct { x: int32; y: int32 }` plus a `S.bytes` property access.
func TestStructLiteralAndBytesAccess(t *testing.T) {
	stmts, log := parseString(t, "S ::= struct { x: int32; y: int32 }\nn := S.bytes")
	assertNoErrors(t, log)
	decl := stmts.List[0].(*ast.Declaration)
	lit, ok := decl.InitVal.(*ast.StructLiteral)
	if !ok {
		t.Fatalf("want StructLiteral, got %T", decl.InitVal)
	}
	if len(lit.Fields) != 2 || lit.Fields[0].Name != "x" || lit.Fields[1].Name != "y" {
		t.Fatalf("want fields x,y got %#v", lit.Fields)
	}
	n := stmts.List[1].(*ast.Declaration)
	access, ok := n.InitVal.(*ast.Access)
	if !ok || access.Member != "bytes" {
		t.Fatalf("want .bytes access, got %#v", n.InitVal)
	}
}

func TestIfElseIfElse(t *testing.T) {
	src := "f := () -> int32 {\nif a < b {\nreturn 1\n} else if a == b {\nreturn 0\n} else {\nreturn -1\n}\n}"
	stmts, log := parseString(t, src)
	assertNoErrors(t, log)
	decl := stmts.List[0].(*ast.Declaration)
	fn := decl.InitVal.(*ast.FunctionLiteral)
	ifNode, ok := fn.Body.List[0].(*ast.If)
	if !ok {
		t.Fatalf("want If, got %T", fn.Body.List[0])
	}
	if len(ifNode.Conditions) != 2 || ifNode.Else == nil {
		t.Fatalf("want 2 conditions + else, got %d conditions, else=%v", len(ifNode.Conditions), ifNode.Else)
	}
}

func TestForLoopOverArray(t *testing.T) {
	stmts, log := parseString(t, "f := () -> int32 {\nfor x in [1, 2, 3] {\nprint x\n}\nreturn 0\n}")
	assertNoErrors(t, log)
	decl := stmts.List[0].(*ast.Declaration)
	fn := decl.InitVal.(*ast.FunctionLiteral)
	forNode, ok := fn.Body.List[0].(*ast.For)
	if !ok {
		t.Fatalf("want For, got %T", fn.Body.List[0])
	}
	if len(forNode.Iterators) != 1 || forNode.Iterators[0].Name != "x" || forNode.Iterators[0].Kind != ast.In {
		t.Fatalf("want one In iterator named x, got %#v", forNode.Iterators)
	}
}

func TestEnumAndFlagsLiterals(t *testing.T) {
	stmts, log := parseString(t, "Color := enum { Red, Green, Blue }\nPerm := flags { Read, Write, Exec }")
	assertNoErrors(t, log)
	e := stmts.List[0].(*ast.Declaration).InitVal.(*ast.EnumLiteral)
	if e.IsFlags || len(e.Members) != 3 {
		t.Fatalf("want a 3-member non-flags enum, got %#v", e)
	}
	f := stmts.List[1].(*ast.Declaration).InitVal.(*ast.EnumLiteral)
	if !f.IsFlags || len(f.Members) != 3 {
		t.Fatalf("want a 3-member flags enum, got %#v", f)
	}
}

// TestCastSyntax covers spec.md §4.F's Cast node-type contract:
// `expr as Type`, parsed as a Binop (not a dedicated node, see
// DESIGN.md), binding tighter than '+' but looser than unary '-'.
func TestCastSyntax(t *testing.T) {
	stmts, log := parseString(t, "f := (i: int32) -> f64 {\nreturn -i as f64 + 1\n}")
	assertNoErrors(t, log)
	decl := stmts.List[0].(*ast.Declaration)
	fn := decl.InitVal.(*ast.FunctionLiteral)
	jump := fn.Body.List[0].(*ast.Jump)
	add, ok := jump.Value.(*ast.Binop)
	if !ok || add.Op != "+" {
		t.Fatalf("want top-level '+', got %#v", jump.Value)
	}
	cast, ok := add.LHS.(*ast.Binop)
	if !ok || cast.Op != "as" {
		t.Fatalf("want 'as' cast binds tighter than '+', got %#v", add.LHS)
	}
	if _, ok := cast.LHS.(*ast.Unop); !ok {
		t.Fatalf("want unary '-' binds tighter than 'as', got %#v", cast.LHS)
	}
}

func TestCaseExpression(t *testing.T) {
	stmts, log := parseString(t, "x := case {\na == 1 => 10\na == 2 => 20\ntrue => 0\n}")
	assertNoErrors(t, log)
	c, ok := stmts.List[0].(*ast.Declaration).InitVal.(*ast.Case)
	if !ok || len(c.Keys) != 3 || len(c.Vals) != 3 {
		t.Fatalf("want a 3-arm case, got %#v", stmts.List[0])
	}
}
