package resolve

import (
	"testing"

	"icarusc/internal/ast"
	"icarusc/internal/errs"
)

func ident(name string) *ast.Identifier { return ast.NewIdentifier(ast.Span{}, name) }

func TestLinearOrder(t *testing.T) {
	// b := a + 1 ; a := 1
	a := ast.NewDeclaration(ast.Span{}, "a", ast.Infer, nil, ast.NewTerminal(ast.Span{}, "int", "1"))
	bInit := ast.NewBinop(ast.Span{}, "+", ident("a"), ast.NewTerminal(ast.Span{}, "int", "1"))
	b := ast.NewDeclaration(ast.Span{}, "b", ast.Infer, nil, bInit)
	bInit.LHS.(*ast.Identifier).Candidates = []*ast.Declaration{a}

	log := errs.NewLog()
	r := New("t.ic", log)
	order := r.Order([]*ast.Declaration{b, a})
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	if len(order) != 2 || order[0] != a || order[1] != b {
		t.Fatalf("got order %v, want [a b]", names(order))
	}
}

func TestCycleMarksErrorAndLogs(t *testing.T) {
	a := ast.NewDeclaration(ast.Span{}, "a", ast.Infer, nil, ident("b"))
	b := ast.NewDeclaration(ast.Span{}, "b", ast.Infer, nil, ident("a"))
	a.InitVal.(*ast.Identifier).Candidates = []*ast.Declaration{b}
	b.InitVal.(*ast.Identifier).Candidates = []*ast.Declaration{a}

	log := errs.NewLog()
	r := New("t.ic", log)
	order := r.Order([]*ast.Declaration{a, b})
	if !log.HasErrors() {
		t.Fatal("expected a cyclic-dependency diagnostic")
	}
	for _, d := range order {
		if !d.Type().IsError() {
			t.Errorf("declaration %s should be types.Error after cycle detection", d.Name)
		}
	}
}

func names(decls []*ast.Declaration) []string {
	out := make([]string, len(decls))
	for i, d := range decls {
		out[i] = d.Name
	}
	return out
}
