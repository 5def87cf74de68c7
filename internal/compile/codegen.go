// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"fmt"

	"go.happytemplate.net/ir"
	"go.happytemplate.net/syntax"
)

// A generator holds the state of code generation for one module.
type generator struct {
	stack     stack
	loops     loopStack
	fn        *ir.Lambda   // lambda being generated
	ret       *ir.Target   // return target of the current function, if any
	ctx       *ir.Variable // the module's runtime context parameter
	vars      map[*syntax.Symbol]*ir.Variable
	loopState map[*syntax.ForStatement]*ir.Variable // enumerator of each for loop
	outer     []lambdaState
}

type lambdaState struct {
	fn    *ir.Lambda
	ret   *ir.Target
	loops loopStack
}

func generate(m *syntax.Module, debugInfo bool) *ir.Lambda {
	g := &generator{
		stack:     stack{debug: debugInfo},
		vars:      make(map[*syntax.Symbol]*ir.Variable),
		loopState: make(map[*syntax.ForStatement]*ir.Variable),
	}
	syntax.Visit(m, g)

	if n := g.stack.len(); n != 1 {
		panic(internalErrorf("assembly stack holds %d items at end of module, want 1", n))
	}
	x := g.stack.popRaw()
	fn, ok := x.(*ir.Lambda)
	if !ok {
		panic(internalErrorf("module compiled to %T, want lambda", x))
	}
	if n := g.stack.len(); n != 0 {
		panic(internalErrorf("assembly stack not empty: %d items", n))
	}
	return fn
}

// enter begins the generation of a nested lambda.
func (g *generator) enter(fn *ir.Lambda, ret *ir.Target) {
	g.outer = append(g.outer, lambdaState{g.fn, g.ret, g.loops})
	g.fn, g.ret, g.loops = fn, ret, nil
}

func (g *generator) leave() {
	s := g.outer[len(g.outer)-1]
	g.outer = g.outer[:len(g.outer)-1]
	g.fn, g.ret, g.loops = s.fn, s.ret, s.loops
}

// declare allocates a frame slot of the current lambda for each symbol.
func (g *generator) declare(syms []*syntax.Symbol) []*ir.Variable {
	vars := make([]*ir.Variable, len(syms))
	for i, sym := range syms {
		vars[i] = g.fn.NewVar(sym.Name)
		g.vars[sym] = vars[i]
	}
	return vars
}

func (g *generator) variable(sym *syntax.Symbol) *ir.Variable {
	v, ok := g.vars[sym]
	if !ok {
		panic(internalErrorf("no variable for %s", sym))
	}
	return v
}

func (g *generator) context(method ir.ContextMethod, args ...ir.Node) *ir.ContextCall {
	return &ir.ContextCall{Ctx: &ir.Var{V: g.ctx}, Method: method, Args: args}
}

func (g *generator) globals() ir.Node { return g.context(ir.GetGlobals) }

func dynamic(site *ir.CallSite, args ...ir.Node) *ir.Dynamic {
	if want := site.Kind.NumOperands(site.Arity); len(args) != want {
		panic(internalErrorf("%s: %d operands, want %d", site, len(args), want))
	}
	return &ir.Dynamic{Site: site, Args: args}
}

func null() ir.Node { return &ir.Constant{} }

// seq combines the IR of several statements into one item.
func seq(list []ir.Node) ir.Node {
	switch len(list) {
	case 0:
		return &ir.Empty{}
	case 1:
		return list[0]
	}
	return &ir.Block{List: list}
}

func (g *generator) Before(n syntax.Node) bool {
	if debug {
		fmt.Printf("gen %T depth=%d\n", n, g.stack.len())
	}
	switch n := n.(type) {
	case *syntax.Module:
		g.fn = ir.NewLambda("<toplevel>")
		g.ctx = g.fn.AddParam("ctx")

	case *syntax.Function:
		fn := ir.NewLambda(n.Name)
		g.enter(fn, &ir.Target{Name: "return"})
		for _, param := range n.Params {
			g.vars[param.Symbol] = fn.AddParam(param.Name)
		}

	case *syntax.ForWhereClause:
		fn := ir.NewLambda("where")
		g.enter(fn, nil)
		g.vars[n.VarSymbol] = fn.AddParam(n.VarSymbol.Name)

	case *syntax.StatementBlock:
		if !n.External {
			g.declare(n.Scope.Symbols())
		}

	case *syntax.ForStatement:
		// The loop variable and the locals of the body live in the
		// block that wraps the whole loop.
		g.declare(n.Body.Scope.Symbols())
		g.loopState[n] = g.fn.NewVar("$enum")
		g.loops.push()

	case *syntax.WhileStatement:
		g.loops.push()
	}
	return true
}

func (g *generator) After(n syntax.Node) {
	switch n := n.(type) {
	case *syntax.Module:
		items := g.stack.popN(len(n.Functions) + len(n.GlobalDefs) + len(n.Stmts))
		g.fn.Body = &ir.Block{List: append(items, &ir.Empty{})}
		g.stack.push(n, g.fn)

	case *syntax.LoadDirective, *syntax.FunctionParameter, *syntax.ArgumentList:
		// nothing to execute

	case *syntax.Function:
		fn := g.fn
		fn.Body = &ir.Block{List: []ir.Node{
			g.stack.pop(),
			&ir.Label{Target: g.ret, Default: null()},
		}}
		g.leave()
		site := &ir.CallSite{Kind: ir.SetMember, Name: n.Name, Pos: n.NamePos}
		g.stack.push(n, dynamic(site, g.globals(), fn))

	case *syntax.StatementBlock:
		var vars []*ir.Variable
		if !n.External {
			for _, sym := range n.Scope.Symbols() {
				vars = append(vars, g.variable(sym))
			}
		}
		g.stack.push(n, &ir.Block{Vars: vars, List: g.stack.popN(len(n.Stmts))})

	case *syntax.VerbatimSection:
		g.stack.push(n, g.context(ir.WriteToTopWriter, &ir.Constant{Value: n.Text}))

	case *syntax.DefStatement:
		k := 0
		for _, v := range n.Vars {
			if v.Init != nil {
				k++
			}
		}
		g.stack.push(n, seq(g.stack.popN(k)))

	case *syntax.VariableDef:
		if n.Init != nil {
			g.stack.push(n, g.store(n.Symbol, g.stack.pop(), n.NamePos))
		}

	case *syntax.OutputStatement:
		xs := g.stack.popN(len(n.Exprs))
		for i, x := range xs {
			xs[i] = g.output(x)
		}
		g.stack.push(n, seq(xs))

	case *syntax.ExpressionStatement:
		// The expression's item stands for the statement.

	case *syntax.ReturnStatement:
		if g.ret == nil {
			panic(internalErrorf("%s: return outside a function", n.Return))
		}
		value := null()
		if n.Result != nil {
			value = g.stack.pop()
		}
		g.stack.push(n, &ir.Goto{Target: g.ret, Value: value})

	case *syntax.IfStatement:
		var els ir.Node
		if n.False != nil {
			els = g.stack.pop()
		}
		then := g.stack.pop()
		cond := g.stack.pop()
		g.stack.push(n, &ir.If{Cond: &ir.ToBool{X: cond}, Then: then, Else: els})

	case *syntax.WhileStatement:
		body := g.stack.pop()
		cond := g.stack.pop()
		lc := g.loops.top()
		g.loops.pop()
		g.stack.push(n, &ir.Loop{
			Body: &ir.Block{List: []ir.Node{
				&ir.If{Cond: &ir.Not{X: &ir.ToBool{X: cond}}, Then: &ir.Goto{Target: lc.brk}},
				body,
			}},
			Break:    lc.brk,
			Continue: lc.cont,
		})

	case *syntax.ForStatement:
		g.stack.push(n, g.forLoop(n))

	case *syntax.ForWhereClause:
		fn := g.fn
		fn.Body = g.stack.pop()
		g.leave()
		g.stack.push(n, fn)

	case *syntax.BreakStatement:
		g.stack.push(n, &ir.Goto{Target: g.loops.top().brk})

	case *syntax.ContinueStatement:
		g.stack.push(n, &ir.Goto{Target: g.loops.top().cont})

	case *syntax.SwitchStatement:
		g.stack.push(n, g.switchStmt(n))

	case *syntax.SwitchCase:
		body := g.stack.pop()
		values := g.stack.popN(len(n.Values))
		g.stack.push(n, &ir.Case{Values: values, Body: body})

	case *syntax.LiteralExpression:
		g.stack.push(n, &ir.Constant{Value: n.Value})

	case *syntax.NullExpression:
		g.stack.push(n, null())

	case *syntax.IdentifierExpression:
		if n.MemberRef || n.Access == syntax.Write {
			break // the parent uses the name
		}
		g.stack.push(n, g.load(n))

	case *syntax.UnaryExpression:
		x := g.stack.pop()
		switch n.Op {
		case syntax.Not:
			g.stack.push(n, &ir.Not{X: &ir.ToBool{X: x}})
		case syntax.Negate:
			site := &ir.CallSite{Kind: ir.UnaryOp, Op: n.Op, Pos: n.OpPos}
			g.stack.push(n, dynamic(site, x))
		default:
			panic(internalErrorf("%s: unexpected unary operator %s", n.OpPos, n.Op))
		}

	case *syntax.BinaryExpression:
		g.stack.push(n, g.binary(n))

	case *syntax.FunctionCallExpression:
		if n.MemberRef {
			break // the member access makes the call
		}
		args := g.stack.popN(len(n.Args))
		callee := dynamic(&ir.CallSite{Kind: ir.GetMember, Name: n.Name, Pos: n.NamePos}, g.globals())
		site := &ir.CallSite{Kind: ir.Invoke, Arity: len(args), Pos: n.Lparen}
		g.stack.push(n, dynamic(site, append([]ir.Node{callee}, args...)...))

	case *syntax.NewObjectExpression:
		operands := g.stack.popN(1 + len(n.Args))
		site := &ir.CallSite{Kind: ir.Create, Arity: len(n.Args), Pos: n.New}
		g.stack.push(n, dynamic(site, operands...))

	case *syntax.ListExpression:
		g.stack.push(n, &ir.List{Elems: g.stack.popN(len(n.List))})

	case *syntax.AnonymousTemplate:
		body := g.stack.pop()
		tmp := g.fn.NewVar("$template")
		// The writer is popped on every exit from the body.
		g.stack.push(n, &ir.Block{
			Vars: []*ir.Variable{tmp},
			List: []ir.Node{
				g.context(ir.PushWriter),
				&ir.TryFinally{
					Body:    body,
					Finally: &ir.Assign{V: tmp, X: g.context(ir.PopWriter)},
				},
				&ir.Var{V: tmp},
			},
		})

	default:
		start, _ := n.Span()
		panic(internalErrorf("%s: unexpected node %T", start, n))
	}
}

// load returns the IR that reads the variable named by id.
func (g *generator) load(id *syntax.IdentifierExpression) ir.Node {
	sym := id.Symbol
	if sym == nil {
		panic(internalErrorf("%s: unresolved identifier %s", id.NamePos, id.Name))
	}
	switch sym.Kind {
	case syntax.Local, syntax.Parameter:
		return &ir.Var{V: g.variable(sym)}
	case syntax.Global:
		return dynamic(&ir.CallSite{Kind: ir.GetMember, Name: sym.Name, Pos: id.NamePos}, g.globals())
	case syntax.Namespace:
		return &ir.Constant{Value: sym.Value}
	}
	panic(internalErrorf("%s: unexpected symbol kind %s", id.NamePos, sym.Kind))
}

// store returns the IR that assigns x to the variable of sym.
func (g *generator) store(sym *syntax.Symbol, x ir.Node, pos syntax.Position) ir.Node {
	if sym == nil {
		panic(internalErrorf("%s: assignment to unresolved name", pos))
	}
	switch sym.Kind {
	case syntax.Local, syntax.Parameter:
		return &ir.Assign{V: g.variable(sym), X: x}
	case syntax.Global:
		return dynamic(&ir.CallSite{Kind: ir.SetMember, Name: sym.Name, Pos: pos}, g.globals(), x)
	}
	panic(internalErrorf("%s: cannot assign to %s", pos, sym))
}

// output returns the IR that writes the value of x. A constant is
// formatted now and written as text.
func (g *generator) output(x ir.Node) ir.Node {
	if c, ok := ir.Unwrap(x).(*ir.Constant); ok {
		if s, ok := ir.FormatConstant(c.Value); ok {
			return g.context(ir.WriteToTopWriter, &ir.Constant{Value: s})
		}
	}
	return g.context(ir.SafeWriteToTopWriter, x)
}

func (g *generator) binary(n *syntax.BinaryExpression) ir.Node {
	switch n.Op {
	case syntax.Assign:
		return g.assign(n)

	case syntax.LogicalAnd, syntax.LogicalOr:
		y := &ir.ToBool{X: g.stack.pop()}
		x := &ir.ToBool{X: g.stack.pop()}
		if n.Op == syntax.LogicalAnd {
			return &ir.AndAlso{X: x, Y: y}
		}
		return &ir.OrElse{X: x, Y: y}

	case syntax.MemberAccess:
		switch y := n.Y.(type) {
		case *syntax.IdentifierExpression:
			site := &ir.CallSite{Kind: ir.GetMember, Name: y.Name, Pos: y.NamePos}
			return dynamic(site, g.stack.pop())
		case *syntax.FunctionCallExpression:
			operands := g.stack.popN(1 + len(y.Args))
			site := &ir.CallSite{Kind: ir.Call, Name: y.Name, Arity: len(y.Args), Pos: y.Lparen}
			return dynamic(site, operands...)
		}

	case syntax.Index:
		args := n.Y.(*syntax.ArgumentList)
		operands := g.stack.popN(1 + len(args.Args))
		site := &ir.CallSite{Kind: ir.GetIndex, Arity: len(args.Args), Pos: args.Lbrack}
		return dynamic(site, operands...)

	default:
		y := g.stack.pop()
		x := g.stack.pop()
		site := &ir.CallSite{Kind: ir.BinaryOp, Op: n.Op, Pos: n.OpPos}
		return dynamic(site, x, y)
	}
	panic(internalErrorf("%s: unexpected operand %T of %s", n.OpPos, n.Y, n.Op))
}

// assign lowers an assignment by the shape of its left operand.
// A member or index target was generated as a read; it becomes a write.
func (g *generator) assign(n *syntax.BinaryExpression) ir.Node {
	value := g.stack.pop()
	if id, ok := n.X.(*syntax.IdentifierExpression); ok {
		return g.store(id.Symbol, value, n.OpPos)
	}
	target, ok := ir.Unwrap(g.stack.popRaw()).(*ir.Dynamic)
	if ok {
		switch target.Site.Kind {
		case ir.GetMember:
			site := &ir.CallSite{Kind: ir.SetMember, Name: target.Site.Name, Pos: n.OpPos}
			return dynamic(site, target.Args[0], value)
		case ir.GetIndex:
			site := &ir.CallSite{Kind: ir.SetIndex, Arity: target.Site.Arity, Pos: n.OpPos}
			operands := append(append([]ir.Node(nil), target.Args...), value)
			return dynamic(site, operands...)
		}
	}
	panic(internalErrorf("%s: invalid assignment target", n.OpPos))
}

// forLoop lowers a for statement:
//
//	{
//		$enum = Iterate(X)          // or Iterate(Where(X, pred))
//		if MoveNext($enum) {
//			loop {
//				v = Current($enum)
//				Body
//			continue:
//				if MoveNext($enum) { Between } else { goto break }
//			}
//		}
//	break:
//	}
//
// Between thus runs only between two iterations, and a continue still
// runs it before the next one.
func (g *generator) forLoop(n *syntax.ForStatement) ir.Node {
	var between ir.Node = &ir.Empty{}
	if n.Between != nil {
		between = g.stack.pop()
	}
	body := g.stack.pop()
	var pred ir.Node
	if n.Where != nil {
		pred = g.stack.pop()
	}
	src := g.stack.pop()
	if pred != nil {
		src = &ir.Where{X: src, Pred: pred}
	}

	enum := g.loopState[n]
	delete(g.loopState, n)
	lc := g.loops.top()
	g.loops.pop()

	var vars []*ir.Variable
	var list []ir.Node
	for _, sym := range n.Body.Scope.Symbols() {
		v := g.variable(sym)
		vars = append(vars, v)
		if sym != n.VarSymbol {
			// Locals of the body start each iteration as null.
			list = append(list, &ir.Assign{V: v, X: null()})
		}
	}
	vars = append(vars, enum)

	iteration := &ir.Block{List: append(list,
		&ir.Assign{V: g.variable(n.VarSymbol), X: &ir.Current{Enum: &ir.Var{V: enum}}},
		body,
		&ir.Label{Target: lc.cont},
		&ir.If{
			Cond: &ir.MoveNext{Enum: &ir.Var{V: enum}},
			Then: between,
			Else: &ir.Goto{Target: lc.brk},
		},
	)}
	return &ir.Block{
		Vars: vars,
		List: []ir.Node{
			&ir.Assign{V: enum, X: &ir.Iterate{X: src}},
			&ir.If{
				Cond: &ir.MoveNext{Enum: &ir.Var{V: enum}},
				Then: &ir.Loop{Body: iteration, Break: lc.brk},
			},
		},
	}
}

func (g *generator) switchStmt(n *syntax.SwitchStatement) ir.Node {
	var dflt ir.Node
	if n.Default != nil {
		dflt = g.stack.pop()
	}
	cases := make([]*ir.Case, len(n.Cases))
	for i := len(cases) - 1; i >= 0; i-- {
		x := g.stack.popRaw()
		c, ok := x.(*ir.Case)
		if !ok {
			panic(internalErrorf("%s: switch case compiled to %T", n.Switch, x))
		}
		cases[i] = c
	}
	x := g.stack.pop()

	if len(cases) == 0 {
		// Evaluate X for its effects, then the default.
		list := []ir.Node{x}
		if dflt != nil {
			list = append(list, dflt)
		}
		return &ir.Block{List: list}
	}
	return &ir.Switch{
		X:       x,
		Cases:   cases,
		Default: dflt,
		Equal:   &ir.CallSite{Kind: ir.BinaryOp, Op: syntax.Equal, Pos: n.Switch},
	}
}
