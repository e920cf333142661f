// Package parser builds an internal/ast tree from a token stream
// (spec.md §4.B). It is grounded on the teacher's internal/parser/parser.go
// (current-index cursor over a token slice, match/check/advance helpers,
// a precedence table read top-down from loosest to tightest binding)
// extended with the spec's chain-folding for comparison and logical
// operator runs and its declaration-kind syntax.
package parser

import (
	"icarusc/internal/ast"
	"icarusc/internal/errs"
	"icarusc/internal/token"
)

// Parser walks a flat token slice (comments already stripped) and
// recognizes statements top-down, recursive-descent with an explicit
// precedence chain for expressions rather than a generic Pratt loop,
// matching the teacher's style of one parse method per precedence tier.
type Parser struct {
	tokens  []token.Token
	current int
	file    string
	log     *errs.Log
}

// NewParser builds a parser over toks, which must end in an EOF token
// (as Lexer.Tokenize produces). Comment tokens are dropped; they carry
// no syntax.
func NewParser(file string, toks []token.Token, log *errs.Log) *Parser {
	filtered := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == token.Comment {
			continue
		}
		filtered = append(filtered, t)
	}
	return &Parser{tokens: filtered, file: file, log: log}
}

// Parse consumes the whole token stream as a sequence of top-level
// statements (spec.md §3: the module's global Statements root).
func (p *Parser) Parse() *ast.Statements {
	p.skipNewlines()
	var stmts []ast.Node
	for !p.atEnd() {
		stmts = append(stmts, p.statement())
		p.statementTerminator()
		p.skipNewlines()
	}
	return ast.NewStatements(p.span(), stmts)
}

// ---- statements ----

func (p *Parser) statement() ast.Node {
	switch {
	case p.check("if"):
		return p.ifStatement()
	case p.check("while"):
		return p.whileStatement()
	case p.check("for"):
		return p.forStatement()
	case p.check("return"), p.check("break"), p.check("continue"), p.check("repeat"), p.check("restart"):
		return p.jumpStatement()
	default:
		return p.declOrExprStatement()
	}
}

func (p *Parser) block() *ast.Statements {
	span := p.span()
	p.expect("{")
	p.skipSeparators()
	var stmts []ast.Node
	for !p.check("}") && !p.atEnd() {
		stmts = append(stmts, p.statement())
		p.statementTerminator()
		p.skipSeparators()
	}
	p.expect("}")
	return ast.NewStatements(span, stmts)
}

func (p *Parser) ifStatement() ast.Node {
	span := p.span()
	var conds []ast.Node
	var bodies []*ast.Statements
	p.expect("if")
	conds = append(conds, p.expression())
	bodies = append(bodies, p.block())
	var elseBody *ast.Statements
	for p.match("else") {
		if p.match("if") {
			conds = append(conds, p.expression())
			bodies = append(bodies, p.block())
			continue
		}
		elseBody = p.block()
		break
	}
	return ast.NewIf(span, conds, bodies, elseBody)
}

func (p *Parser) whileStatement() ast.Node {
	span := p.span()
	p.expect("while")
	cond := p.expression()
	body := p.block()
	return ast.NewWhile(span, cond, body)
}

func (p *Parser) forStatement() ast.Node {
	span := p.span()
	p.expect("for")
	var iters []*ast.Declaration
	for {
		itSpan := p.span()
		name := p.expectIdentifier()
		p.expect("in")
		container := p.expression()
		iters = append(iters, ast.NewDeclaration(itSpan, name, ast.In, nil, container))
		if !p.match(",") {
			break
		}
	}
	body := p.block()
	return ast.NewFor(span, iters, body)
}

func (p *Parser) jumpStatement() ast.Node {
	span := p.span()
	switch {
	case p.match("return"):
		var value ast.Node
		if !p.atStatementEnd() {
			value = p.expression()
		}
		return ast.NewJump(span, ast.JumpReturn, value)
	case p.match("break"):
		return ast.NewJump(span, ast.JumpBreak, nil)
	case p.match("continue"):
		return ast.NewJump(span, ast.JumpContinue, nil)
	case p.match("repeat"):
		return ast.NewJump(span, ast.JumpRepeat, nil)
	case p.match("restart"):
		return ast.NewJump(span, ast.JumpRestart, nil)
	}
	p.errorf("expected jump keyword")
	p.advance()
	return ast.NewJump(span, ast.JumpBreak, nil)
}

// declOrExprStatement disambiguates a leading `name :`, `name :=`,
// `name ::=`, or `name ~` from an ordinary expression statement (which
// may itself be an assignment, spec.md §4.F assignment operators).
func (p *Parser) declOrExprStatement() ast.Node {
	if p.cur().Kind == token.Identifier && p.isDeclStart(p.peekAt(1)) {
		return p.declaration()
	}
	return p.expression()
}

func (p *Parser) isDeclStart(t token.Token) bool {
	return t.Is(":") || t.Is(":=") || t.Is("::=") || t.Is("~")
}

func (p *Parser) declaration() *ast.Declaration {
	span := p.span()
	name := p.expectIdentifier()
	var decl *ast.Declaration
	switch {
	case p.match(":"):
		typeExpr := p.expression()
		var init ast.Node
		if p.match("=") {
			init = p.expression()
		}
		decl = ast.NewDeclaration(span, name, ast.Std, typeExpr, init)
	case p.match(":="), p.matchLexeme("::="):
		init := p.expression()
		decl = ast.NewDeclaration(span, name, ast.Infer, nil, init)
	case p.match("~"):
		constraint := p.expression()
		decl = ast.NewDeclaration(span, name, ast.Tick, constraint, nil)
	default:
		p.errorf("expected declaration operator after %q", name)
		decl = ast.NewDeclaration(span, name, ast.Std, nil, nil)
	}
	p.hashtags(decl)
	return decl
}

// hashtags consumes trailing `#name` annotations (spec.md GLOSSARY
// Hashtag: Export, Uncopyable).
func (p *Parser) hashtags(decl *ast.Declaration) {
	for p.match("#") {
		name := p.expectIdentifier()
		if decl.Hashtags == nil {
			decl.Hashtags = make(map[string]bool)
		}
		decl.Hashtags[name] = true
	}
}

// ---- expressions, loosest to tightest ----

func (p *Parser) expression() ast.Node { return p.assign() }

func (p *Parser) assign() ast.Node {
	lhs := p.orAnd()
	if op, ok := p.matchAny("=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^="); ok {
		span := p.span()
		rhs := p.assign() // right-associative
		return ast.NewBinop(span, op, lhs, rhs)
	}
	return lhs
}

// orAnd folds a run of `or`/`and` into one ChainOp (spec.md §4.B: same
// precedence tier, looser than xor).
func (p *Parser) orAnd() ast.Node {
	span := p.span()
	lhs := p.xor()
	var ops []string
	exprs := []ast.Node{lhs}
	for {
		op, ok := p.matchAny("or", "and")
		if !ok {
			break
		}
		ops = append(ops, op)
		exprs = append(exprs, p.xor())
	}
	if len(ops) == 0 {
		return lhs
	}
	return ast.NewChainOp(span, ops, exprs)
}

func (p *Parser) xor() ast.Node {
	span := p.span()
	lhs := p.equality()
	var ops []string
	exprs := []ast.Node{lhs}
	for p.match("xor") {
		ops = append(ops, "xor")
		exprs = append(exprs, p.equality())
	}
	if len(ops) == 0 {
		return lhs
	}
	return ast.NewChainOp(span, ops, exprs)
}

func (p *Parser) equality() ast.Node {
	span := p.span()
	lhs := p.relational()
	var ops []string
	exprs := []ast.Node{lhs}
	for {
		op, ok := p.matchAny("==", "!=")
		if !ok {
			break
		}
		ops = append(ops, op)
		exprs = append(exprs, p.relational())
	}
	if len(ops) == 0 {
		return lhs
	}
	return ast.NewChainOp(span, ops, exprs)
}

// relational folds chained comparisons (`a < b < c`) into one ChainOp
// (spec.md §8 scenario 2).
func (p *Parser) relational() ast.Node {
	span := p.span()
	lhs := p.rangeExpr()
	var ops []string
	exprs := []ast.Node{lhs}
	for {
		op, ok := p.matchAny("<", "<=", ">", ">=")
		if !ok {
			break
		}
		ops = append(ops, op)
		exprs = append(exprs, p.rangeExpr())
	}
	if len(ops) == 0 {
		return lhs
	}
	return ast.NewChainOp(span, ops, exprs)
}

func (p *Parser) rangeExpr() ast.Node {
	lhs := p.additive()
	if p.match("..") {
		span := p.span()
		rhs := p.additive()
		return ast.NewBinop(span, "..", lhs, rhs)
	}
	return lhs
}

func (p *Parser) additive() ast.Node {
	lhs := p.multiplicative()
	for {
		op, ok := p.matchAny("+", "-")
		if !ok {
			return lhs
		}
		span := p.span()
		rhs := p.multiplicative()
		lhs = ast.NewBinop(span, op, lhs, rhs)
	}
}

func (p *Parser) multiplicative() ast.Node {
	lhs := p.castExpr()
	for {
		op, ok := p.matchAny("*", "/", "%")
		if !ok {
			return lhs
		}
		span := p.span()
		rhs := p.castExpr()
		lhs = ast.NewBinop(span, op, lhs, rhs)
	}
}

// castExpr handles `expr as Type`, binding tighter than arithmetic and
// looser than unary (spec.md §4.F Cast). The original compiler
// represents a cast as a Binop carrying a dedicated operator
// (Operator::Cast in src/AST/verify_types.cpp) rather than a distinct
// AST node, so this reuses ast.Binop with Op "as" and a type-expression
// RHS instead of introducing a new node kind.
func (p *Parser) castExpr() ast.Node {
	expr := p.unary()
	for p.match("as") {
		span := p.span()
		typeExpr := p.unary()
		expr = ast.NewBinop(span, "as", expr, typeExpr)
	}
	return expr
}

// unary handles the prefix operators spec.md §4.B groups at one
// right-associative tier: -, !, &, @, print, free. return/break/etc are
// parsed as statement-level Jump nodes instead (see jumpStatement), since
// spec.md's AST gives control transfer its own node kind.
func (p *Parser) unary() ast.Node {
	if op, ok := p.matchAny("-", "!", "&", "@"); ok {
		span := p.span()
		operand := p.unary()
		return ast.NewUnop(span, op, operand)
	}
	if op, ok := p.matchAny("print", "free"); ok {
		span := p.span()
		operand := p.unary()
		return ast.NewUnop(span, op, operand)
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Node {
	expr := p.primary()
	for {
		switch {
		case p.match("."):
			member := p.expectIdentifier()
			expr = ast.NewAccess(p.span(), expr, member)
		case p.match("("):
			span := p.span()
			positional, named := p.callArgs()
			p.expect(")")
			expr = ast.NewCall(span, expr, positional, named)
		case p.match("["):
			span := p.span()
			idx := p.expression()
			p.expect("]")
			expr = ast.NewIndex(span, expr, idx)
		default:
			return expr
		}
	}
}

func (p *Parser) callArgs() ([]ast.Node, map[string]ast.Node) {
	var positional []ast.Node
	var named map[string]ast.Node
	p.skipNewlines()
	for !p.check(")") && !p.atEnd() {
		if p.cur().Kind == token.Identifier && p.peekAt(1).Is(":") {
			name := p.advance().Lexeme
			p.advance() // ':'
			val := p.expression()
			if named == nil {
				named = make(map[string]ast.Node)
			}
			named[name] = val
		} else {
			positional = append(positional, p.expression())
		}
		p.skipNewlines()
		if !p.match(",") {
			break
		}
		p.skipNewlines()
	}
	return positional, named
}

func (p *Parser) primary() ast.Node {
	span := p.span()
	tok := p.cur()
	switch {
	case tok.Kind == token.Integer:
		p.advance()
		return ast.NewTerminal(span, "int", tok.Lexeme)
	case tok.Kind == token.Real:
		p.advance()
		return ast.NewTerminal(span, "real", tok.Lexeme)
	case tok.Kind == token.String:
		p.advance()
		return ast.NewTerminal(span, "string", tok.Lexeme)
	case tok.Kind == token.Char:
		p.advance()
		return ast.NewTerminal(span, "char", tok.Lexeme)
	case tok.Is("true"):
		p.advance()
		return ast.NewTerminal(span, "bool", "true")
	case tok.Is("false"):
		p.advance()
		return ast.NewTerminal(span, "bool", "false")
	case tok.Is("null"):
		p.advance()
		return ast.NewTerminal(span, "null", "null")
	case tok.Kind == token.Identifier:
		p.advance()
		return ast.NewIdentifier(span, tok.Lexeme)
	case tok.Is("("):
		return p.parenOrFunctionLiteral()
	case tok.Is("["):
		return p.arrayLiteralOrType()
	case tok.Is("struct"):
		return p.structLiteral()
	case tok.Is("enum"):
		return p.enumOrFlagsLiteral(false)
	case tok.Is("flags"):
		return p.enumOrFlagsLiteral(true)
	case tok.Is("case"):
		return p.caseExpr()
	default:
		p.errorf("expected expression, found %q", tok.Lexeme)
		p.advance()
		return ast.NewTerminal(span, "error", tok.Lexeme)
	}
}

// parenOrFunctionLiteral disambiguates `(expr)` from `(inputs...) ->
// ret { body }` by looking for a leading `name:` parameter shape, the
// only case a grouped expression can never start with (spec.md §4.B:
// FunctionLiteral's Inputs are Std declarations).
func (p *Parser) parenOrFunctionLiteral() ast.Node {
	span := p.span()
	p.expect("(")
	p.skipNewlines()
	if p.check(")") {
		p.advance()
		return p.functionLiteralTail(span, nil)
	}
	if p.cur().Kind == token.Identifier && p.peekAt(1).Is(":") {
		inputs := p.paramList()
		p.skipNewlines()
		p.expect(")")
		return p.functionLiteralTail(span, inputs)
	}
	inner := p.expression()
	p.skipNewlines()
	p.expect(")")
	return inner
}

func (p *Parser) paramList() []*ast.Declaration {
	var inputs []*ast.Declaration
	for {
		p.skipNewlines()
		if p.check(")") {
			break
		}
		dspan := p.span()
		name := p.expectIdentifier()
		p.expect(":")
		typeExpr := p.expression()
		var init ast.Node
		if p.match("=") {
			init = p.expression()
		}
		inputs = append(inputs, ast.NewDeclaration(dspan, name, ast.Std, typeExpr, init))
		p.skipNewlines()
		if !p.match(",") {
			break
		}
	}
	return inputs
}

func (p *Parser) functionLiteralTail(span ast.Span, inputs []*ast.Declaration) ast.Node {
	p.expect("->")
	var returnExpr ast.Node
	if !p.check("{") {
		returnExpr = p.expression()
	}
	body := p.block()
	return ast.NewFunctionLiteral(span, inputs, returnExpr, body)
}

// arrayLiteralOrType disambiguates `[e0, e1, ...]` from `[length?;
// data_type]` (spec.md §4.B ArrayType, dynamic length when absent).
func (p *Parser) arrayLiteralOrType() ast.Node {
	span := p.span()
	p.expect("[")
	p.skipNewlines()
	if p.match(";") {
		dataType := p.expression()
		p.skipNewlines()
		p.expect("]")
		return ast.NewArrayType(span, nil, dataType)
	}
	first := p.expression()
	p.skipNewlines()
	if p.match(";") {
		dataType := p.expression()
		p.skipNewlines()
		p.expect("]")
		return ast.NewArrayType(span, first, dataType)
	}
	elems := []ast.Node{first}
	for p.match(",") {
		p.skipNewlines()
		if p.check("]") {
			break
		}
		elems = append(elems, p.expression())
		p.skipNewlines()
	}
	p.skipNewlines()
	p.expect("]")
	return ast.NewArrayLiteral(span, elems)
}

func (p *Parser) structLiteral() ast.Node {
	span := p.span()
	p.expect("struct")
	var params []*ast.Declaration
	if p.match("(") {
		params = p.paramList()
		p.expect(")")
	}
	p.expect("{")
	p.skipSeparators()
	var fields []*ast.Declaration
	for !p.check("}") && !p.atEnd() {
		fspan := p.span()
		name := p.expectIdentifier()
		p.expect(":")
		typeExpr := p.expression()
		var init ast.Node
		if p.match("=") {
			init = p.expression()
		}
		decl := ast.NewDeclaration(fspan, name, ast.Std, typeExpr, init)
		p.hashtags(decl)
		fields = append(fields, decl)
		p.fieldTerminator()
		p.skipSeparators()
	}
	p.expect("}")
	return ast.NewStructLiteral(span, params, fields)
}

func (p *Parser) enumOrFlagsLiteral(isFlags bool) ast.Node {
	span := p.span()
	p.advance() // 'enum' or 'flags'
	p.expect("{")
	p.skipSeparators()
	var members []string
	for !p.check("}") && !p.atEnd() {
		members = append(members, p.expectIdentifier())
		p.skipNewlines()
		if !p.match(",") {
			break
		}
		p.skipSeparators()
	}
	p.skipSeparators()
	p.expect("}")
	return ast.NewEnumLiteral(span, members, isFlags)
}

func (p *Parser) caseExpr() ast.Node {
	span := p.span()
	p.expect("case")
	p.expect("{")
	p.skipSeparators()
	var keys, vals []ast.Node
	for !p.check("}") && !p.atEnd() {
		k := p.expression()
		p.expect("=>")
		v := p.expression()
		keys = append(keys, k)
		vals = append(vals, v)
		p.skipNewlines()
		if !p.match(",") {
			p.skipSeparators()
			continue
		}
		p.skipSeparators()
	}
	p.expect("}")
	return ast.NewCase(span, keys, vals)
}

// ---- token-stream primitives ----

func (p *Parser) cur() token.Token {
	if p.current >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.current]
}

func (p *Parser) peekAt(off int) token.Token {
	i := p.current + off
	if i >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[i]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.current < len(p.tokens) {
		p.current++
	}
	return t
}

func (p *Parser) atEnd() bool { return p.cur().Kind == token.EOF }

func (p *Parser) check(lexeme string) bool { return p.cur().Is(lexeme) }

func (p *Parser) match(lexeme string) bool {
	if p.check(lexeme) {
		p.advance()
		return true
	}
	return false
}

// matchLexeme is an alias for match, used in switch-style call sites
// where a bare case p.match(...) reads oddly next to multiple cases.
func (p *Parser) matchLexeme(lexeme string) bool { return p.match(lexeme) }

func (p *Parser) matchAny(lexemes ...string) (string, bool) {
	for _, lx := range lexemes {
		if p.check(lx) {
			p.advance()
			return lx, true
		}
	}
	return "", false
}

func (p *Parser) expect(lexeme string) token.Token {
	if p.check(lexeme) {
		return p.advance()
	}
	p.errorf("expected %q, found %q", lexeme, p.cur().Lexeme)
	return p.cur()
}

func (p *Parser) expectIdentifier() string {
	if p.cur().Kind == token.Identifier {
		return p.advance().Lexeme
	}
	p.errorf("expected identifier, found %q", p.cur().Lexeme)
	return p.advance().Lexeme
}

func (p *Parser) atStatementEnd() bool {
	return p.atEnd() || p.cur().Kind == token.Newline || p.check(";") || p.check("}")
}

// statementTerminator enforces that a statement ends at a newline, a
// ';', or a block/file boundary (spec.md §4.A: newlines are significant
// between statements).
func (p *Parser) statementTerminator() {
	for p.check(";") {
		p.advance()
	}
	if p.cur().Kind == token.Newline {
		p.skipNewlines()
		return
	}
	if p.atEnd() || p.check("}") {
		return
	}
	p.errorf("expected newline or ';' after statement, found %q", p.cur().Lexeme)
}

// fieldTerminator is statementTerminator without the hard error, since a
// struct/case's last member may be followed directly by '}'.
func (p *Parser) fieldTerminator() {
	for p.check(";") {
		p.advance()
	}
	p.skipNewlines()
}

func (p *Parser) skipNewlines() {
	for p.cur().Kind == token.Newline {
		p.advance()
	}
}

func (p *Parser) skipSeparators() {
	for p.cur().Kind == token.Newline || p.check(";") {
		p.advance()
	}
}

func (p *Parser) span() ast.Span {
	return ast.Span{File: p.file, Line: p.cur().Line}
}

func (p *Parser) errorf(format string, args ...interface{}) {
	if p.log == nil {
		return
	}
	p.log.Add(errs.Parse, p.file, p.cur().Line, 0, "", format, args...)
}
