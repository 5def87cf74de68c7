// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// A Visitor is called for each node of a syntax tree, once before
// and once after its children. If Before returns false, the children
// and the matching After call are skipped.
type Visitor interface {
	Before(n Node) bool
	After(n Node)
}

// Visit traverses a syntax tree in depth-first order, visiting the
// children of each node in source order. The analyzer passes depend
// on this order.
func Visit(n Node, v Visitor) {
	if !v.Before(n) {
		return
	}
	switch n := n.(type) {
	case *Module:
		for _, load := range n.Loads {
			Visit(load, v)
		}
		for _, fn := range n.Functions {
			Visit(fn, v)
		}
		for _, def := range n.GlobalDefs {
			Visit(def, v)
		}
		visitStmts(n.Stmts, v)

	case *Function:
		for _, param := range n.Params {
			Visit(param, v)
		}
		Visit(n.Body, v)

	case *StatementBlock:
		visitStmts(n.Stmts, v)

	case *DefStatement:
		for _, vd := range n.Vars {
			Visit(vd, v)
		}

	case *VariableDef:
		if n.Init != nil {
			Visit(n.Init, v)
		}

	case *OutputStatement:
		visitExprs(n.Exprs, v)

	case *ExpressionStatement:
		Visit(n.X, v)

	case *ReturnStatement:
		if n.Result != nil {
			Visit(n.Result, v)
		}

	case *IfStatement:
		Visit(n.Cond, v)
		Visit(n.True, v)
		if n.False != nil {
			Visit(n.False, v)
		}

	case *WhileStatement:
		Visit(n.Cond, v)
		Visit(n.Body, v)

	case *ForStatement:
		Visit(n.X, v)
		if n.Where != nil {
			Visit(n.Where, v)
		}
		Visit(n.Body, v)
		if n.Between != nil {
			Visit(n.Between, v)
		}

	case *ForWhereClause:
		Visit(n.Cond, v)

	case *SwitchStatement:
		Visit(n.X, v)
		for _, c := range n.Cases {
			Visit(c, v)
		}
		if n.Default != nil {
			Visit(n.Default, v)
		}

	case *SwitchCase:
		visitExprs(n.Values, v)
		Visit(n.Body, v)

	case *UnaryExpression:
		Visit(n.X, v)

	case *BinaryExpression:
		Visit(n.X, v)
		Visit(n.Y, v)

	case *ArgumentList:
		visitExprs(n.Args, v)

	case *FunctionCallExpression:
		visitExprs(n.Args, v)

	case *NewObjectExpression:
		Visit(n.Type, v)
		visitExprs(n.Args, v)

	case *ListExpression:
		visitExprs(n.List, v)

	case *AnonymousTemplate:
		Visit(n.Body, v)

	case *LoadDirective, *FunctionParameter, *VerbatimSection,
		*BreakStatement, *ContinueStatement,
		*LiteralExpression, *NullExpression, *IdentifierExpression:
		// no children
	}
	v.After(n)
}

func visitStmts(stmts []Stmt, v Visitor) {
	for _, stmt := range stmts {
		Visit(stmt, v)
	}
}

func visitExprs(exprs []Expr, v Visitor) {
	for _, x := range exprs {
		Visit(x, v)
	}
}

// Walk traverses a syntax tree in depth-first order.
// It starts by calling f(n); n must not be nil.
// If f returns true, Walk calls itself
// recursively for each non-nil child of n.
// Walk then calls f(nil).
func Walk(n Node, f func(Node) bool) {
	Visit(n, walker(f))
}

type walker func(Node) bool

func (f walker) Before(n Node) bool { return f(n) }
func (f walker) After(Node)         { f(nil) }
