package typecheck

import (
	"testing"

	"icarusc/internal/ast"
	"icarusc/internal/errs"
	"icarusc/internal/lexer"
	"icarusc/internal/parser"
	"icarusc/internal/resolve"
	"icarusc/internal/scope"
	"icarusc/internal/types"
)

// checkSource runs the full lex->parse->scope->resolve->typecheck
// pipeline over src and returns the checked top-level declarations
// alongside the diagnostic log, mirroring how internal/driver will wire
// the pipeline per module.
func checkSource(t *testing.T, src string) ([]*ast.Declaration, *errs.Log) {
	t.Helper()
	log := errs.NewLog()
	toks := lexer.New("test.ic", []byte(src), log).Tokenize()
	stmts := parser.NewParser("test.ic", toks, log).Parse()

	mod := scope.NewModule("test")
	scope.AssignScopes(stmts, mod.Global)

	var decls []*ast.Declaration
	for _, n := range stmts.List {
		if d, ok := n.(*ast.Declaration); ok {
			decls = append(decls, d)
		}
	}
	order := resolve.New("test.ic", log).Order(decls)

	New("test.ic", log, types.NewInterner(), types.Target64).CheckModule(order)
	return order, log
}

func declByName(decls []*ast.Declaration, name string) *ast.Declaration {
	for _, d := range decls {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// TestArithmeticConstantFold covers spec.md §8 scenario 1: the function
// literal itself type-checks to a function returning int32, with every
// sub-expression in `2 + 3 * 4` typed int32 and no diagnostics.
func TestArithmeticConstantFold(t *testing.T) {
	decls, log := checkSource(t, `main ::= () -> int32 { return 2 + 3 * 4 }`)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	main := declByName(decls, "main")
	if main == nil {
		t.Fatal("no `main` declaration found")
	}
	fnT, ok := main.Type().(*types.Type)
	if !ok || fnT.Kind != types.KFunction {
		t.Fatalf("main's type = %v, want a function type", main.Type())
	}
	if len(fnT.Out) != 1 || fnT.Out[0] != types.Prim(types.I32) {
		t.Errorf("main's return type = %v, want int32", fnT.Out)
	}

	fn := main.InitVal.(*ast.FunctionLiteral)
	ret := fn.Body.List[0].(*ast.Jump)
	retT, ok := ret.Value.Type().(*types.Type)
	if !ok || retT != types.Prim(types.I32) {
		t.Errorf("return expression type = %v, want int32", ret.Value.Type())
	}
}

// TestComparisonChain covers spec.md §8 scenario 2: `a < b < c` types as
// a single bool-producing ChainOp with int32 operands.
func TestComparisonChain(t *testing.T) {
	decls, log := checkSource(t, `f ::= (a: int32, b: int32, c: int32) -> bool { return a < b < c }`)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	f := declByName(decls, "f")
	fn := f.InitVal.(*ast.FunctionLiteral)
	ret := fn.Body.List[0].(*ast.Jump)
	chain := ret.Value.(*ast.ChainOp)
	chainT, ok := chain.Type().(*types.Type)
	if !ok || chainT != types.Prim(types.Bool) {
		t.Errorf("chain type = %v, want bool", chain.Type())
	}
}

// TestShortCircuitSource covers spec.md §8 scenario 3: the checker types
// `false and (1/0 == 0)` as bool without erroring on the divide — type
// checking is static and never evaluates the right-hand operand.
func TestShortCircuitSource(t *testing.T) {
	_, log := checkSource(t, `f ::= () -> bool { return false and (1/0 == 0) }`)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
}

// TestArrayLiteralJoin covers spec.md §8 scenario 4: a homogeneous array
// literal types as a fixed-length array of the joined element type.
func TestArrayLiteralJoin(t *testing.T) {
	decls, log := checkSource(t, `a := [1, 2, 3]`)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	a := declByName(decls, "a")
	arrT, ok := a.Type().(*types.Type)
	if !ok || arrT.Kind != types.KArray {
		t.Fatalf("a's type = %v, want array", a.Type())
	}
	if arrT.Elem != types.Prim(types.I32) {
		t.Errorf("element type = %v, want int32", arrT.Elem)
	}
	if arrT.ArrLen == nil || *arrT.ArrLen != 3 {
		t.Errorf("array length = %v, want 3", arrT.ArrLen)
	}
}

// TestArrayLiteralInconsistentType covers the negative half of scenario
// 4: mixing an int32 and a bool element produces exactly one
// "inconsistent array type" diagnostic and types the literal Error.
func TestArrayLiteralInconsistentType(t *testing.T) {
	decls, log := checkSource(t, `a := [1, true]`)
	if !log.HasErrors() {
		t.Fatal("expected an inconsistent-array-type error")
	}
	if log.Count() != 1 {
		t.Errorf("got %d diagnostics, want exactly 1: %s", log.Count(), log.Render())
	}
	a := declByName(decls, "a")
	if a.Type() != types.Error {
		t.Errorf("a's type = %v, want Error", a.Type())
	}
}

// TestOverloadResolution covers spec.md §8 scenario 5: two `add`
// declarations differing only in parameter type form one Quantum
// identifier; calling with matching int/float argument types resolves
// to the right overload, and a mixed call is a "no matching overload"
// error.
func TestOverloadResolution(t *testing.T) {
	src := `
add ::= (a: int32, b: int32) -> int32 { return a + b }
add ::= (a: f64, b: f64) -> f64 { return a + b }
r1 := add(1, 2)
r2 := add(1.0, 2.0)
`
	decls, log := checkSource(t, src)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	r1 := declByName(decls, "r1")
	if r1.Type() != types.Prim(types.I32) {
		t.Errorf("r1's type = %v, want int32", r1.Type())
	}
	r2 := declByName(decls, "r2")
	if r2.Type() != types.Prim(types.F64) {
		t.Errorf("r2's type = %v, want f64", r2.Type())
	}
}

func TestOverloadResolutionNoMatch(t *testing.T) {
	src := `
add ::= (a: int32, b: int32) -> int32 { return a + b }
add ::= (a: f64, b: f64) -> f64 { return a + b }
bad := add(1, 2.0)
`
	_, log := checkSource(t, src)
	if !log.HasErrors() {
		t.Fatal("expected a no-matching-overload error")
	}
}

// TestStructBytes covers spec.md §8 scenario 6: a 2xint32 struct is 8
// bytes under Target64, an access expression the checker types as int64
// (the constant value itself is folded later, by internal/irbuilder).
func TestStructBytes(t *testing.T) {
	src := `
S ::= struct { x: int32; y: int32 }
n := S.bytes
`
	decls, log := checkSource(t, src)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	s := declByName(decls, "S")
	sT, ok := s.Type().(*types.Type)
	if !ok || sT.Kind != types.KStruct {
		t.Fatalf("S's type = %v, want struct", s.Type())
	}
	if got := sT.Struct.Bytes(types.Target64); got != 8 {
		t.Errorf("S.Bytes(Target64) = %d, want 8", got)
	}

	n := declByName(decls, "n")
	if n.Type() != types.Prim(types.I64) {
		t.Errorf("n's type = %v, want int64", n.Type())
	}
}

// TestCastAllowedPairs covers spec.md §4.F's enumerated cast pairs:
// bool->numeric, int<->uint, int/uint->real all succeed; a same-
// signedness width change does not.
func TestCastAllowedPairs(t *testing.T) {
	src := `
f ::= (b: bool, i: int32, u: uint32) -> f64 {
	x := b as int32
	y := i as uint32
	z := u as f64
	return z
}
`
	_, log := checkSource(t, src)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
}

func TestCastDisallowedPair(t *testing.T) {
	src := `f ::= (i: int32) -> int64 { return i as int64 }`
	_, log := checkSource(t, src)
	if !log.HasErrors() {
		t.Fatal("expected an invalid-cast error for a same-signedness width change")
	}
}

// TestStructFieldAccessType exercises field lookup through a
// function-parameter value of struct type, rather than construction
// syntax (the surface grammar has no struct-literal constructor call).
func TestStructFieldAccessType(t *testing.T) {
	src := `
S ::= struct { x: int32; y: int32 }
getX ::= (p: S) -> int32 { return p.x }
`
	decls, log := checkSource(t, src)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	getX := declByName(decls, "getX")
	fn := getX.InitVal.(*ast.FunctionLiteral)
	ret := fn.Body.List[0].(*ast.Jump)
	access := ret.Value.(*ast.Access)
	if access.Type() != types.Prim(types.I32) {
		t.Errorf("p.x's type = %v, want int32", access.Type())
	}
}
