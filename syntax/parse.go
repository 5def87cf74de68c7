// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// This file defines a recursive-descent parser for Happy.
// The parser is driven one token at a time by the scanner,
// which switches between code and template text on its own.

import "fmt"

// Enable this flag to print the token stream and log.Fatal on the first error.
const debug = false

type parser struct {
	in     *scanner
	tok    Token
	tokval tokenValue
}

// Parse parses the input data and returns the corresponding parse tree.
//
// If src != nil, Parse parses the source from src and the filename
// is only used when recording position information.
// The type of the argument for the src parameter must be string,
// []byte, or io.Reader.
// If src == nil, Parse parses the file specified by filename.
//
// An input that ends before the module is complete yields an Error
// that wraps ErrEOF.
func Parse(filename string, src interface{}) (m *Module, err error) {
	in, err := newScanner(filename, src)
	if err != nil {
		return nil, err
	}
	p := parser{in: in}
	defer p.in.recover(&err)

	p.nextToken() // read first lookahead token
	m = p.parseModule()
	m.Path = filename
	return m, nil
}

// ParseExpr parses a Happy expression.
func ParseExpr(filename string, src interface{}) (expr Expr, err error) {
	in, err := newScanner(filename, src)
	if err != nil {
		return nil, err
	}
	p := parser{in: in}
	defer p.in.recover(&err)

	p.nextToken()
	expr = p.parseExpr()
	if p.tok == SEMI {
		p.nextToken()
	}
	if p.tok != EOF {
		p.in.errorf(p.tokval.pos, "got %#v after expression, want EOF", p.tok)
	}
	return expr, nil
}

// nextToken advances the scanner and returns the position of the
// previous token.
func (p *parser) nextToken() Position {
	oldpos := p.tokval.pos
	p.tok = p.in.nextToken(&p.tokval)
	if debug {
		fmt.Printf("nextToken: %-20s%+v\n", p.tok, p.tokval.pos)
	}
	return oldpos
}

// errorf reports a syntax error at the current token. Errors found at
// the end of input are marked so that callers can ask for more.
func (p *parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.tok == EOF {
		p.in.eofError(p.tokval.pos, msg)
	}
	p.in.error(p.tokval.pos, msg)
}

func (p *parser) consume(t Token) Position {
	if p.tok != t {
		p.errorf("got %#v, want %#v", p.tok, t)
	}
	return p.nextToken()
}

// semi consumes the semicolon that ends a simple statement.
// It may be omitted just before the '$' that closes a template island.
func (p *parser) semi() Position {
	if p.tok == DOLLAR {
		return p.tokval.pos
	}
	return p.consume(SEMI)
}

func (p *parser) parseIdent() (Position, string) {
	if p.tok != IDENT {
		p.errorf("got %#v, want identifier", p.tok)
	}
	name := p.tokval.raw
	return p.nextToken(), name
}

// module = {load | function | def | stmt} EOF
func (p *parser) parseModule() *Module {
	m := new(Module)
	for p.tok != EOF {
		switch p.tok {
		case LOAD:
			m.Loads = append(m.Loads, p.parseLoad())
		case FUNCTION:
			m.Functions = append(m.Functions, p.parseFunction())
		case DEF:
			m.GlobalDefs = append(m.GlobalDefs, p.parseDef())
		default:
			m.Stmts = append(m.Stmts, p.parseStmt())
		}
	}
	m.EndPos = p.tokval.pos
	return m
}

// load = 'load' STRING ';'
func (p *parser) parseLoad() *LoadDirective {
	x := &LoadDirective{Load: p.nextToken()}
	if p.tok != STRING {
		p.errorf("load directive needs a namespace name string, got %#v", p.tok)
	}
	x.Name = p.tokval.string
	x.NamePos = p.nextToken()
	x.Semicolon = p.consume(SEMI)
	return x
}

// function = 'function' IDENT '(' [IDENT {',' IDENT}] ')' block
func (p *parser) parseFunction() *Function {
	fn := &Function{FunctionPos: p.nextToken()}
	fn.NamePos, fn.Name = p.parseIdent()
	p.consume(LPAREN)
	for p.tok != RPAREN {
		if len(fn.Params) > 0 {
			p.consume(COMMA)
		}
		param := new(FunctionParameter)
		param.NamePos, param.Name = p.parseIdent()
		fn.Params = append(fn.Params, param)
	}
	p.nextToken()
	fn.Body = p.parseBlock()
	return fn
}

func (p *parser) parseStmt() Stmt {
	switch p.tok {
	case DEF:
		return p.parseDef()
	case OUT:
		return p.parseOut()
	case RETURN:
		return p.parseReturn()
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case FOR:
		return p.parseFor()
	case SWITCH:
		return p.parseSwitch()
	case BREAK:
		x := &BreakStatement{Break: p.nextToken()}
		p.semi()
		return x
	case CONTINUE:
		x := &ContinueStatement{Continue: p.nextToken()}
		p.semi()
		return x
	case LBRACE, TEMPLATE:
		return p.parseBlock()
	case FUNCTION:
		p.errorf("function declarations are only permitted at top level")
	case LOAD:
		p.errorf("load directives are only permitted at top level")
	}
	x := p.parseExpr()
	p.semi()
	return &ExpressionStatement{X: x}
}

// def = 'def' IDENT ['=' expr] {',' IDENT ['=' expr]} ';'
func (p *parser) parseDef() *DefStatement {
	def := &DefStatement{Def: p.nextToken()}
	for {
		v := new(VariableDef)
		v.NamePos, v.Name = p.parseIdent()
		if p.tok == EQ {
			p.nextToken()
			v.Init = p.parseExpr()
		}
		def.Vars = append(def.Vars, v)
		if p.tok != COMMA {
			break
		}
		p.nextToken()
	}
	p.semi()
	return def
}

// out = 'out' expr {',' expr} ';'
func (p *parser) parseOut() *OutputStatement {
	out := &OutputStatement{Out: p.nextToken()}
	out.Exprs = p.parseExprList()
	p.semi()
	return out
}

// return = 'return' [expr] ';'
func (p *parser) parseReturn() *ReturnStatement {
	ret := &ReturnStatement{Return: p.nextToken()}
	if p.tok != SEMI && p.tok != DOLLAR && p.tok != RBRACE {
		ret.Result = p.parseExpr()
	}
	p.semi()
	return ret
}

// if = 'if' '(' expr ')' block ['else' (if | block)]
func (p *parser) parseIf() *IfStatement {
	x := &IfStatement{If: p.nextToken()}
	x.Cond = p.parseParenExpr()
	x.True = p.parseBlock()
	if p.tok == ELSE {
		elsePos := p.nextToken()
		if p.tok == IF {
			elif := p.parseIf()
			_, end := elif.Span()
			x.False = &StatementBlock{Lbrace: elsePos, Stmts: []Stmt{elif}, Rbrace: end}
		} else {
			x.False = p.parseBlock()
		}
	}
	return x
}

// while = 'while' '(' expr ')' block
func (p *parser) parseWhile() *WhileStatement {
	x := &WhileStatement{While: p.nextToken()}
	x.Cond = p.parseParenExpr()
	x.Body = p.parseBlock()
	return x
}

// for = 'for' '(' IDENT 'in' expr ['where' expr] ')' block ['between' block]
func (p *parser) parseFor() *ForStatement {
	x := &ForStatement{For: p.nextToken()}
	p.consume(LPAREN)
	x.VarPos, x.Var = p.parseIdent()
	p.consume(IN)
	x.X = p.parseExpr()
	if p.tok == WHERE {
		where := &ForWhereClause{Where: p.nextToken()}
		where.Cond = p.parseExpr()
		x.Where = where
	}
	p.consume(RPAREN)
	x.Body = p.parseBlock()
	if p.tok == BETWEEN {
		p.nextToken()
		x.Between = p.parseBlock()
	}
	return x
}

// switch = 'switch' '(' expr ')' '{' {case} ['default' ':' {stmt}] '}'
// case   = 'case' expr {',' expr} ':' {stmt}
func (p *parser) parseSwitch() *SwitchStatement {
	x := &SwitchStatement{Switch: p.nextToken()}
	x.X = p.parseParenExpr()
	p.consume(LBRACE)
	for p.tok != RBRACE {
		switch p.tok {
		case CASE:
			if x.Default != nil {
				p.errorf("case follows default in switch")
			}
			c := &SwitchCase{Case: p.nextToken()}
			c.Values = p.parseExprList()
			c.Body = p.parseCaseBody()
			x.Cases = append(x.Cases, c)
		case DEFAULT:
			if x.Default != nil {
				p.errorf("multiple defaults in switch")
			}
			p.nextToken()
			x.Default = p.parseCaseBody()
		default:
			p.errorf("got %#v in switch, want case or default", p.tok)
		}
	}
	x.Rbrace = p.nextToken()
	return x
}

// parseCaseBody parses the statements after a case or default label
// as an implicit block ending at the next label or the closing brace.
func (p *parser) parseCaseBody() *StatementBlock {
	b := &StatementBlock{Lbrace: p.consume(COLON)}
	for p.tok != CASE && p.tok != DEFAULT && p.tok != RBRACE {
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	b.Rbrace = p.tokval.pos
	return b
}

// block = '{' {stmt} '}' | template
func (p *parser) parseBlock() *StatementBlock {
	switch p.tok {
	case LBRACE:
		b := &StatementBlock{Lbrace: p.nextToken()}
		for p.tok != RBRACE {
			if p.tok == EOF {
				p.errorf("got %#v, want '}'", p.tok)
			}
			b.Stmts = append(b.Stmts, p.parseStmt())
		}
		b.Rbrace = p.nextToken()
		return b
	case TEMPLATE:
		return p.parseTemplate()
	}
	p.errorf("got %#v, want block", p.tok)
	panic("unreachable")
}

// template = '<|' {TEXT | '$' island '$'} '|>'
func (p *parser) parseTemplate() *StatementBlock {
	b := &StatementBlock{Lbrace: p.nextToken(), Template: true}
	for {
		switch p.tok {
		case TEXT:
			b.Stmts = append(b.Stmts, &VerbatimSection{TextPos: p.tokval.pos, Text: p.tokval.string})
			p.nextToken()
		case DOLLAR:
			p.nextToken()
			for p.tok != DOLLAR {
				b.Stmts = append(b.Stmts, p.parseIslandStmt())
			}
			p.nextToken()
		case ENDTMPL:
			b.Rbrace = p.nextToken()
			return b
		default:
			p.errorf("got %#v in template, want '|>'", p.tok)
		}
	}
}

// parseIslandStmt parses one statement of a template island.
// A bare expression is written to the output; an expression
// followed by ';' is evaluated for its effects.
func (p *parser) parseIslandStmt() Stmt {
	switch p.tok {
	case DEF, OUT, RETURN, IF, WHILE, FOR, SWITCH, BREAK, CONTINUE, LBRACE:
		return p.parseStmt()
	case EOF:
		p.errorf("got %#v in template, want '$'", p.tok)
	}
	x := p.parseExpr()
	if p.tok == SEMI {
		p.nextToken()
		return &ExpressionStatement{X: x}
	}
	return &OutputStatement{Out: Start(x), Exprs: []Expr{x}}
}

func (p *parser) parseParenExpr() Expr {
	p.consume(LPAREN)
	x := p.parseExpr()
	p.consume(RPAREN)
	return x
}

// exprlist = expr {',' expr}
func (p *parser) parseExprList() []Expr {
	list := []Expr{p.parseExpr()}
	for p.tok == COMMA {
		p.nextToken()
		list = append(list, p.parseExpr())
	}
	return list
}

// args = [expr {',' expr}] closing
func (p *parser) parseArgs(closing Token) []Expr {
	var args []Expr
	for p.tok != closing {
		if len(args) > 0 {
			p.consume(COMMA)
		}
		args = append(args, p.parseExpr())
	}
	return args
}

// expr = binary ['=' expr]
func (p *parser) parseExpr() Expr {
	x := p.parseBinary(1)
	if p.tok == EQ {
		pos := p.nextToken()
		y := p.parseExpr()
		return &BinaryExpression{X: x, OpPos: pos, Op: Assign, Y: y}
	}
	return x
}

// precedence maps each binary operator token to its precedence (0-9).
// Higher numbers bind tighter.
var precedence [maxToken]int8

var preclevels = [...][]Token{
	{OROR},
	{ANDAND},
	{PIPE},
	{CIRCUMFLEX},
	{AMP},
	{EQL, NEQ},
	{LT, GT, LE, GE},
	{PLUS, MINUS},
	{STAR, SLASH, PERCENT},
}

func init() {
	for i, tokens := range preclevels {
		for _, tok := range tokens {
			precedence[tok] = int8(i + 1)
		}
	}
}

// binary = unary {op binary}, with precedence climbing.
func (p *parser) parseBinary(prec int) Expr {
	x := p.parseUnary()
	for {
		opprec := int(precedence[p.tok])
		if opprec == 0 || opprec < prec {
			return x
		}
		op := binaryOps[p.tok]
		pos := p.nextToken()
		y := p.parseBinary(opprec + 1)
		x = &BinaryExpression{X: x, OpPos: pos, Op: op, Y: y}
	}
}

// unary = ('!' | '-') unary | postfix
func (p *parser) parseUnary() Expr {
	switch p.tok {
	case BANG:
		pos := p.nextToken()
		return &UnaryExpression{OpPos: pos, Op: Not, X: p.parseUnary()}
	case MINUS:
		pos := p.nextToken()
		return &UnaryExpression{OpPos: pos, Op: Negate, X: p.parseUnary()}
	}
	return p.parsePostfix()
}

// postfix = primary {'.' IDENT ['(' args ')'] | '[' args ']'}
func (p *parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for {
		switch p.tok {
		case DOT:
			dot := p.nextToken()
			namePos, name := p.parseIdent()
			var y Node
			if p.tok == LPAREN {
				y = p.parseCall(namePos, name)
			} else {
				y = &IdentifierExpression{NamePos: namePos, Name: name}
			}
			x = &BinaryExpression{X: x, OpPos: dot, Op: MemberAccess, Y: y}
		case LBRACK:
			lbrack := p.nextToken()
			if p.tok == RBRACK {
				p.errorf("index expression needs at least one argument")
			}
			args := p.parseArgs(RBRACK)
			rbrack := p.nextToken()
			x = &BinaryExpression{X: x, OpPos: lbrack, Op: Index,
				Y: &ArgumentList{Lbrack: lbrack, Args: args, Rbrack: rbrack}}
		default:
			return x
		}
	}
}

// parseCall parses the argument list of a call whose name has been read.
func (p *parser) parseCall(namePos Position, name string) *FunctionCallExpression {
	call := &FunctionCallExpression{NamePos: namePos, Name: name}
	call.Lparen = p.consume(LPAREN)
	call.Args = p.parseArgs(RPAREN)
	call.Rparen = p.nextToken()
	return call
}

// primary = INT | FLOAT | STRING | 'true' | 'false' | 'null'
//
//	| IDENT ['(' args ')']
//	| 'new' IDENT {'.' IDENT} '(' args ')'
//	| '(' expr ')' | '[' args ']' | template
func (p *parser) parsePrimary() Expr {
	switch p.tok {
	case INT, FLOAT, STRING, TRUE, FALSE:
		var val interface{}
		tok := p.tok
		switch tok {
		case INT:
			val = p.tokval.int
		case FLOAT:
			val = p.tokval.float
		case STRING:
			val = p.tokval.string
		case TRUE:
			val = true
		case FALSE:
			val = false
		}
		raw := p.tokval.raw
		pos := p.nextToken()
		return &LiteralExpression{Token: tok, TokenPos: pos, Raw: raw, Value: val}

	case NULL:
		return &NullExpression{Null: p.nextToken()}

	case IDENT:
		namePos, name := p.parseIdent()
		if p.tok == LPAREN {
			return p.parseCall(namePos, name)
		}
		return &IdentifierExpression{NamePos: namePos, Name: name}

	case NEW:
		x := &NewObjectExpression{New: p.nextToken()}
		namePos, name := p.parseIdent()
		var typ Expr = &IdentifierExpression{NamePos: namePos, Name: name}
		for p.tok == DOT {
			dot := p.nextToken()
			namePos, name := p.parseIdent()
			typ = &BinaryExpression{X: typ, OpPos: dot, Op: MemberAccess,
				Y: &IdentifierExpression{NamePos: namePos, Name: name}}
		}
		x.Type = typ
		x.Lparen = p.consume(LPAREN)
		x.Args = p.parseArgs(RPAREN)
		x.Rparen = p.nextToken()
		return x

	case LPAREN:
		p.nextToken()
		x := p.parseExpr()
		p.consume(RPAREN)
		return x

	case LBRACK:
		x := &ListExpression{Lbrack: p.nextToken()}
		x.List = p.parseArgs(RBRACK)
		x.Rbrack = p.nextToken()
		return x

	case TEMPLATE:
		return &AnonymousTemplate{Body: p.parseTemplate()}
	}
	p.errorf("got %#v, want primary expression", p.tok)
	panic("unreachable")
}
