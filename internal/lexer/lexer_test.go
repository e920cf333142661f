package lexer

import (
	"testing"

	"icarusc/internal/errs"
	"icarusc/internal/token"
)

func scan(t *testing.T, src string) ([]token.Token, *errs.Log) {
	t.Helper()
	log := errs.NewLog()
	toks := New("test.ic", []byte(src), log).Tokenize()
	return toks, log
}

func TestIntegerAndRealLiterals(t *testing.T) {
	toks, log := scan(t, "2 + 3.5")
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	want := []token.Kind{token.Integer, token.Operator, token.Real, token.EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].Kind, k)
		}
	}
	if toks[2].Lexeme != "3.5" {
		t.Errorf("real lexeme = %q, want 3.5", toks[2].Lexeme)
	}
}

func TestIdentifierVsKeyword(t *testing.T) {
	toks, _ := scan(t, "if xyz")
	if toks[0].Kind != token.Keyword || toks[0].Lexeme != "if" {
		t.Errorf("expected keyword 'if', got %v", toks[0])
	}
	if toks[1].Kind != token.Identifier {
		t.Errorf("expected identifier, got %v", toks[1])
	}
}

func TestStringEscapes(t *testing.T) {
	toks, log := scan(t, `"a\nb\"c"`)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	if toks[0].Lexeme != "a\nb\"c" {
		t.Errorf("got %q", toks[0].Lexeme)
	}
}

func TestUnterminatedString(t *testing.T) {
	_, log := scan(t, `"abc`)
	if !log.HasErrors() {
		t.Fatal("expected an unterminated-string error")
	}
}

func TestNestedBlockComment(t *testing.T) {
	toks, log := scan(t, "/* outer /* inner */ still-comment */ 42")
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	if toks[0].Kind != token.Comment {
		t.Fatalf("got %v", toks[0])
	}
	if toks[1].Kind != token.Integer || toks[1].Lexeme != "42" {
		t.Errorf("got %v", toks[1])
	}
}

func TestCharLiteral(t *testing.T) {
	toks, log := scan(t, `'a' '\n'`)
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	if toks[0].Lexeme != "a" {
		t.Errorf("got %q", toks[0].Lexeme)
	}
	if toks[1].Lexeme != "\n" {
		t.Errorf("got %q", toks[1].Lexeme)
	}
}

func TestArrowAndDeclOperators(t *testing.T) {
	toks, log := scan(t, "main ::= () -> int32")
	if log.HasErrors() {
		t.Fatalf("unexpected errors: %s", log.Render())
	}
	want := []string{"main", "::=", "(", ")", "->", "int32"}
	for i, lx := range want {
		if toks[i].Lexeme != lx {
			t.Errorf("token %d: got %q want %q", i, toks[i].Lexeme, lx)
		}
	}
}

func TestChainComparisonOperatorsLex(t *testing.T) {
	toks, _ := scan(t, "a < b <= c")
	kinds := []token.Kind{token.Identifier, token.Operator, token.Identifier, token.Operator, token.Identifier, token.EOF}
	for i, k := range kinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %s want %s", i, toks[i].Kind, k)
		}
	}
	if toks[3].Lexeme != "<=" {
		t.Errorf("got %q", toks[3].Lexeme)
	}
}
