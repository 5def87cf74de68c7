// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package syntax provides a Happy parser and abstract syntax tree.
package syntax

// A Node is a node in a Happy syntax tree.
type Node interface {
	// Span returns the start and end position of the node.
	Span() (start, end Position)
}

// Start returns the start position of the node.
func Start(n Node) Position {
	start, _ := n.Span()
	return start
}

// End returns the end position of the node.
func End(n Node) Position {
	_, end := n.Span()
	return end
}

// A Module represents a Happy source file.
//
// The parser sorts top-level declarations by kind; statements
// that are neither load directives, functions nor definitions
// appear in Stmts in source order.
type Module struct {
	Path       string
	Loads      []*LoadDirective
	Functions  []*Function
	GlobalDefs []*DefStatement
	Stmts      []Stmt
	EndPos     Position

	// set by resolver:
	Scope *Scope
}

func (x *Module) Span() (start, end Position) {
	start = x.EndPos
	first := func(p Position) {
		if p.IsValid() && (!start.IsValid() || p.isBefore(start)) {
			start = p
		}
	}
	if len(x.Loads) > 0 {
		first(x.Loads[0].Load)
	}
	if len(x.Functions) > 0 {
		first(x.Functions[0].FunctionPos)
	}
	if len(x.GlobalDefs) > 0 {
		first(x.GlobalDefs[0].Def)
	}
	if len(x.Stmts) > 0 {
		first(Start(x.Stmts[0]))
	}
	return start, x.EndPos
}

// A LoadDirective makes the types of a catalog namespace visible:
//
//	load "google.protobuf";
type LoadDirective struct {
	Load      Position
	NamePos   Position
	Name      string
	Semicolon Position
}

func (x *LoadDirective) Span() (start, end Position) {
	return x.Load, x.Semicolon.add(";")
}

// A Function is a top-level named function declaration.
type Function struct {
	FunctionPos Position
	NamePos     Position
	Name        string
	Params      []*FunctionParameter
	Body        *StatementBlock

	// set by resolver:
	Scope *Scope // holds the parameters
}

func (x *Function) Span() (start, end Position) {
	_, end = x.Body.Span()
	return x.FunctionPos, end
}

// A FunctionParameter is one named parameter of a Function.
type FunctionParameter struct {
	NamePos Position
	Name    string

	// set by resolver:
	Symbol *Symbol
}

func (x *FunctionParameter) Span() (start, end Position) {
	return x.NamePos, x.NamePos.add(x.Name)
}

// A Stmt is a Happy statement.
type Stmt interface {
	Node
	stmt()
}

func (*BreakStatement) stmt()      {}
func (*ContinueStatement) stmt()   {}
func (*DefStatement) stmt()        {}
func (*ExpressionStatement) stmt() {}
func (*ForStatement) stmt()        {}
func (*IfStatement) stmt()         {}
func (*OutputStatement) stmt()     {}
func (*ReturnStatement) stmt()     {}
func (*StatementBlock) stmt()      {}
func (*SwitchStatement) stmt()     {}
func (*VerbatimSection) stmt()     {}
func (*WhileStatement) stmt()      {}

// A StatementBlock is a braced list of statements, or the
// body of a template written between <| and |>.
type StatementBlock struct {
	Lbrace   Position
	Stmts    []Stmt
	Rbrace   Position
	Template bool // written as <| ... |>

	// set by resolver:
	Scope    *Scope
	External bool // symbols are stored by the enclosing statement
}

func (x *StatementBlock) Span() (start, end Position) {
	if x.Template {
		return x.Lbrace, x.Rbrace.add("|>")
	}
	return x.Lbrace, x.Rbrace.add("}")
}

// A VerbatimSection is literal template text.
type VerbatimSection struct {
	TextPos Position
	Text    string
}

func (x *VerbatimSection) Span() (start, end Position) {
	return x.TextPos, x.TextPos.add(x.Text)
}

// A DefStatement declares one or more variables:
//
//	def a = 1, b;
type DefStatement struct {
	Def  Position
	Vars []*VariableDef
}

func (x *DefStatement) Span() (start, end Position) {
	_, end = x.Vars[len(x.Vars)-1].Span()
	return x.Def, end
}

// A VariableDef is a single name in a DefStatement with its optional initializer.
type VariableDef struct {
	NamePos Position
	Name    string
	Init    Expr // may be nil

	// set by resolver:
	Symbol *Symbol
}

func (x *VariableDef) Span() (start, end Position) {
	if x.Init != nil {
		_, end = x.Init.Span()
		return x.NamePos, end
	}
	return x.NamePos, x.NamePos.add(x.Name)
}

// An OutputStatement writes the values of its expressions to the
// current output writer. Within a template, $x$ is an OutputStatement.
type OutputStatement struct {
	Out   Position
	Exprs []Expr
}

func (x *OutputStatement) Span() (start, end Position) {
	_, end = x.Exprs[len(x.Exprs)-1].Span()
	return x.Out, end
}

// An ExpressionStatement is an expression evaluated for side effects.
type ExpressionStatement struct {
	X Expr
}

func (x *ExpressionStatement) Span() (start, end Position) {
	return x.X.Span()
}

// A ReturnStatement returns from a function.
type ReturnStatement struct {
	Return Position
	Result Expr // may be nil
}

func (x *ReturnStatement) Span() (start, end Position) {
	if x.Result != nil {
		_, end = x.Result.Span()
		return x.Return, end
	}
	return x.Return, x.Return.add("return")
}

// An IfStatement is a conditional. 'else if' is desugared into
// a False block holding a single nested IfStatement.
type IfStatement struct {
	If    Position
	Cond  Expr
	True  *StatementBlock
	False *StatementBlock // optional
}

func (x *IfStatement) Span() (start, end Position) {
	body := x.False
	if body == nil {
		body = x.True
	}
	_, end = body.Span()
	return x.If, end
}

// A WhileStatement repeats Body while Cond is true.
type WhileStatement struct {
	While Position
	Cond  Expr
	Body  *StatementBlock
}

func (x *WhileStatement) Span() (start, end Position) {
	_, end = x.Body.Span()
	return x.While, end
}

// A ForStatement iterates over a sequence:
//
//	for (v in X where Cond) Body between Between
type ForStatement struct {
	For     Position
	VarPos  Position
	Var     string
	X       Expr
	Where   *ForWhereClause // optional
	Body    *StatementBlock
	Between *StatementBlock // optional

	// set by resolver:
	VarSymbol *Symbol
}

func (x *ForStatement) Span() (start, end Position) {
	body := x.Between
	if body == nil {
		body = x.Body
	}
	_, end = body.Span()
	return x.For, end
}

// A ForWhereClause filters the elements visited by a ForStatement.
type ForWhereClause struct {
	Where Position
	Cond  Expr

	// set by resolver:
	Scope     *Scope // holds the predicate's copy of the loop variable
	VarSymbol *Symbol
}

func (x *ForWhereClause) Span() (start, end Position) {
	_, end = x.Cond.Span()
	return x.Where, end
}

// A BreakStatement exits the innermost loop.
type BreakStatement struct {
	Break Position
}

func (x *BreakStatement) Span() (start, end Position) {
	return x.Break, x.Break.add("break")
}

// A ContinueStatement skips to the next iteration of the innermost loop.
type ContinueStatement struct {
	Continue Position
}

func (x *ContinueStatement) Span() (start, end Position) {
	return x.Continue, x.Continue.add("continue")
}

// A SwitchStatement selects the first case holding a value equal to X.
type SwitchStatement struct {
	Switch  Position
	X       Expr
	Cases   []*SwitchCase
	Default *StatementBlock // optional
	Rbrace  Position
}

func (x *SwitchStatement) Span() (start, end Position) {
	return x.Switch, x.Rbrace.add("}")
}

// A SwitchCase is one 'case v1, v2: ...' arm of a SwitchStatement.
type SwitchCase struct {
	Case   Position
	Values []Expr
	Body   *StatementBlock
}

func (x *SwitchCase) Span() (start, end Position) {
	_, end = x.Body.Span()
	return x.Case, end
}

// An Expr is a Happy expression.
type Expr interface {
	Node
	expr()
}

func (*AnonymousTemplate) expr()      {}
func (*BinaryExpression) expr()       {}
func (*FunctionCallExpression) expr() {}
func (*IdentifierExpression) expr()   {}
func (*ListExpression) expr()         {}
func (*LiteralExpression) expr()      {}
func (*NewObjectExpression) expr()    {}
func (*NullExpression) expr()         {}
func (*UnaryExpression) expr()        {}

// AccessType records whether an expression is read or assigned.
type AccessType uint8

const (
	Read AccessType = iota
	Write
)

func (a AccessType) String() string {
	if a == Write {
		return "write"
	}
	return "read"
}

// A LiteralExpression represents a literal bool, number or string.
type LiteralExpression struct {
	Token    Token // = TRUE | FALSE | INT | FLOAT | STRING
	TokenPos Position
	Raw      string      // uninterpreted text
	Value    interface{} // = bool | int64 | float64 | string
}

func (x *LiteralExpression) Span() (start, end Position) {
	return x.TokenPos, x.TokenPos.add(x.Raw)
}

// A NullExpression is the 'null' literal.
type NullExpression struct {
	Null Position
}

func (x *NullExpression) Span() (start, end Position) {
	return x.Null, x.Null.add("null")
}

// An IdentifierExpression is a name. When it is the right operand of
// a member access it names a member rather than a variable.
type IdentifierExpression struct {
	NamePos Position
	Name    string

	// set by resolver:
	Access    AccessType
	MemberRef bool
	Symbol    *Symbol // nil for member references
}

func (x *IdentifierExpression) Span() (start, end Position) {
	return x.NamePos, x.NamePos.add(x.Name)
}

// A UnaryExpression represents a unary operation: Op X.
type UnaryExpression struct {
	OpPos Position
	Op    Operator // = Not | Negate
	X     Expr
}

func (x *UnaryExpression) Span() (start, end Position) {
	_, end = x.X.Span()
	return x.OpPos, end
}

// A BinaryExpression represents a binary operation: X Op Y.
//
// For Op == Index, Y is an *ArgumentList.
// For Op == MemberAccess, Y is an *IdentifierExpression or a
// *FunctionCallExpression naming a member of X.
type BinaryExpression struct {
	X     Expr
	OpPos Position
	Op    Operator
	Y     Node

	// set by resolver:
	Access AccessType
}

func (x *BinaryExpression) Span() (start, end Position) {
	start, _ = x.X.Span()
	_, end = x.Y.Span()
	return start, end
}

// An ArgumentList holds the subscripts of an index expression: [a, b].
type ArgumentList struct {
	Lbrack Position
	Args   []Expr
	Rbrack Position
}

func (x *ArgumentList) Span() (start, end Position) {
	return x.Lbrack, x.Rbrack.add("]")
}

// A FunctionCallExpression calls a function by name: Name(Args).
// As the right operand of a member access it calls a method.
type FunctionCallExpression struct {
	NamePos Position
	Name    string
	Lparen  Position
	Args    []Expr
	Rparen  Position

	// set by resolver:
	MemberRef bool
}

func (x *FunctionCallExpression) Span() (start, end Position) {
	return x.NamePos, x.Rparen.add(")")
}

// A NewObjectExpression constructs an instance of a catalog type:
//
//	new a.b.C(args)
//
// Type is an IdentifierExpression or a chain of member accesses.
type NewObjectExpression struct {
	New    Position
	Type   Expr
	Lparen Position
	Args   []Expr
	Rparen Position
}

func (x *NewObjectExpression) Span() (start, end Position) {
	return x.New, x.Rparen.add(")")
}

// A ListExpression represents a list literal: [ List ].
type ListExpression struct {
	Lbrack Position
	List   []Expr
	Rbrack Position
}

func (x *ListExpression) Span() (start, end Position) {
	return x.Lbrack, x.Rbrack.add("]")
}

// An AnonymousTemplate is a template used as an expression.
// Its value is the text written by its body.
type AnonymousTemplate struct {
	Body *StatementBlock
}

func (x *AnonymousTemplate) Span() (start, end Position) {
	return x.Body.Span()
}
