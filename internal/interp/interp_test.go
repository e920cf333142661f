package interp

import (
	"testing"

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

// buildModule runs the full lex->parse->scope->resolve->typecheck->
// irbuilder pipeline over src and lowers every top-level function
// declaration into one ir.Module, mirroring the harness in
// internal/irbuilder/irbuilder_test.go one layer further down the
// pipeline (spec.md §8's scenarios are end-to-end: source in, a
// computed value out).
func buildModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	log := errs.NewLog()
	toks := lexer.New("t.ic", []byte(src), log).Tokenize()
	stmts := parser.NewParser("t.ic", toks, log).Parse()

	mod := scope.NewModule("t")
	scope.AssignScopes(stmts, mod.Global)

	var decls []*ast.Declaration
	for _, n := range stmts.List {
		if d, ok := n.(*ast.Declaration); ok {
			decls = append(decls, d)
		}
	}
	order := resolve.New("t.ic", log).Order(decls)
	interner := types.NewInterner()
	typecheck.New("t.ic", log, interner, types.Target64).CheckModule(order)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}

	ro := ir.NewReadOnlyData()
	b := irbuilder.New("t.ic", log, interner, types.Target64, ro)
	im := ir.NewModule("t")
	im.ReadOnly = ro
	for _, d := range order {
		fn, ok := d.InitVal.(*ast.FunctionLiteral)
		if !ok {
			continue
		}
		im.Funcs = append(im.Funcs, b.BuildFunction(d, fn))
	}
	return im
}

// TestArithmeticConstantFold covers spec.md §8 scenario 1 end to end:
// `main` returns 2 + 3 * 4 == 14.
func TestArithmeticConstantFold(t *testing.T) {
	mod := buildModule(t, `main ::= () -> int32 { return 2 + 3 * 4 }`)
	in := New(mod, types.Target64, nil)
	got, err := in.Call("main", nil)
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != int32(14) {
		t.Fatalf("main() = %v (%T), want int32(14)", got, got)
	}
}

// TestComparisonChain covers spec.md §8 scenario 2: a < b < c chains
// like Python, not like `(a<b)<c`.
func TestComparisonChain(t *testing.T) {
	mod := buildModule(t, `cmp ::= (a: int32, b: int32, c: int32) -> bool { return a < b < c }`)
	in := New(mod, types.Target64, nil)

	got, err := in.Call("cmp", []Value{int32(1), int32(2), int32(3)})
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != true {
		t.Fatalf("cmp(1,2,3) = %v, want true", got)
	}

	got, err = in.Call("cmp", []Value{int32(1), int32(5), int32(3)})
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != false {
		t.Fatalf("cmp(1,5,3) = %v, want false", got)
	}
}

// TestShortCircuitSource covers spec.md §8 scenario 3: `false and (1/0
// == 0)` must evaluate to false without the division by zero ever
// firing, proving the early-exit branch irbuilder lowered really does
// skip the right-hand operand at run time.
func TestShortCircuitSource(t *testing.T) {
	mod := buildModule(t, `g ::= () -> bool { return false and (1 / 0 == 0) }`)
	in := New(mod, types.Target64, nil)
	got, err := in.Call("g", nil)
	if err != nil {
		t.Fatalf("unexpected interpreter error (division should never run): %v", err)
	}
	if got != false {
		t.Fatalf("g() = %v, want false", got)
	}
}

// TestOverloadResolution covers spec.md §8 scenario 5: two `add`
// declarations distinguished only by parameter type; the int32 overload
// is the one a call with int32 arguments reaches at run time.
func TestOverloadResolution(t *testing.T) {
	src := `
add ::= (a: int32, b: int32) -> int32 { return a + b }
add ::= (a: f64, b: f64) -> f64 { return a + b }
callInt ::= () -> int32 { return add(1, 2) }
`
	mod := buildModule(t, src)
	in := New(mod, types.Target64, nil)
	got, err := in.Call("callInt", nil)
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != int32(3) {
		t.Fatalf("callInt() = %v, want int32(3)", got)
	}
}

// TestIfElse covers a conditional returning through the shared landing
// block irbuilder's lowerIf builds.
func TestIfElse(t *testing.T) {
	src := `pick ::= (a: int32, b: int32) -> int32 {
if a < b {
return a
} else {
return b
}
}`
	mod := buildModule(t, src)
	in := New(mod, types.Target64, nil)
	got, err := in.Call("pick", []Value{int32(7), int32(3)})
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != int32(3) {
		t.Fatalf("pick(7,3) = %v, want int32(3) (the smaller)", got)
	}
}

// TestForOverArraySum covers lowerFor's array-iteration protocol end
// to end: summing an array literal's elements via a phi-indexed loop.
func TestForOverArraySum(t *testing.T) {
	src := `sum ::= () -> int32 {
total := 0
for x in [1, 2, 3] {
total += x
}
return total
}`
	mod := buildModule(t, src)
	in := New(mod, types.Target64, nil)
	got, err := in.Call("sum", nil)
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != int32(6) {
		t.Fatalf("sum() = %v, want int32(6)", got)
	}
}

// TestWhileLoop covers lowerWhile's cond/body/land shape end to end.
func TestWhileLoop(t *testing.T) {
	src := `countTo ::= (n: int32) -> int32 {
i := 0
total := 0
while i < n {
total += i
i += 1
}
return total
}`
	mod := buildModule(t, src)
	in := New(mod, types.Target64, nil)
	got, err := in.Call("countTo", []Value{int32(4)})
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != int32(6) { // 0+1+2+3
		t.Fatalf("countTo(4) = %v, want int32(6)", got)
	}
}

// TestForeignCallDispatch covers spec.md §4.I's FFI dispatch: a name
// with no IR function definition resolves through the Foreign table.
func TestForeignCallDispatch(t *testing.T) {
	mod := buildModule(t, `callDouble ::= (n: int32) -> int32 { return double(n) }`)
	in := New(mod, types.Target64, map[string]Foreign{
		"double": func(args []Value) Value {
			n, _ := args[0].(int32)
			return n * 2
		},
	})
	got, err := in.Call("callDouble", []Value{int32(21)})
	if err != nil {
		t.Fatalf("unexpected interpreter error: %v", err)
	}
	if got != int32(42) {
		t.Fatalf("callDouble(21) = %v, want int32(42)", got)
	}
}

// TestUndefinedCallIsFatal covers spec.md §7's "foreign-call failure"
// abort path: a name with neither an IR definition nor a registered
// Foreign thunk is a Fatal, not a logged diagnostic (calling Interp
// directly, bypassing type-checking, since a real Icarus program can
// never reference an unresolved name by the time it reaches the
// interpreter).
func TestUndefinedCallIsFatal(t *testing.T) {
	mod := buildModule(t, `main ::= () -> int32 { return 0 }`)
	in := New(mod, types.Target64, nil)
	_, err := in.Call("missing", nil)
	if err == nil {
		t.Fatal("want a Fatal error calling an undefined function, got nil")
	}
	if _, ok := err.(*errs.Fatal); !ok {
		t.Fatalf("want *errs.Fatal, got %T", err)
	}
}
