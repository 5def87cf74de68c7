// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve defines the analysis passes that run over a Happy
// syntax tree before code generation.
//
// The passes run in a fixed order, each a full traversal of the tree:
//
//  1. PreAnalyze marks assignment targets, member references and
//     loop bodies whose symbols belong to their loop.
//  2. BuildSymbolTables creates a Scope for the module, every function,
//     statement block and where clause, and declares every name.
//  3. ResolveSymbols binds each identifier to the nearest declaration.
//  4. Check reports semantic errors: invalid assignment targets and
//     break, continue or return in the wrong place.
//
// Errors are reported to a Collector and do not stop the passes, so a
// single run reports as many problems as possible.
//
// Names are resolved by lexical scope, innermost first. The module scope
// holds the roots of loaded catalog namespaces, the functions and global
// variables of the module, and predeclared names supplied by the host.
package resolve // import "go.happytemplate.net/resolve"

import (
	"errors"
	"fmt"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/syntax"
)

const debug = false

// An Env describes the environment in which a module is resolved.
type Env struct {
	// IsPredeclared reports whether a name not declared by the
	// module is provided by the host as a member of the global scope.
	IsPredeclared func(name string) bool

	// Catalog provides the namespaces named by load directives.
	Catalog catalog.Source

	// Load lists namespaces loaded in addition to the module's
	// own load directives.
	Load []string
}

func (env *Env) isPredeclared(name string) bool {
	return env != nil && env.IsPredeclared != nil && env.IsPredeclared(name)
}

// Module runs the four analysis passes over m. It returns nil or
// an ErrorList sorted by position.
func Module(m *syntax.Module, env *Env) error {
	var errs ErrorList
	PreAnalyze(m)
	BuildSymbolTables(m, env, &errs)
	ResolveSymbols(m, env, &errs)
	Check(m, &errs)
	if len(errs) > 0 {
		errs.Sort()
		return errs
	}
	return nil
}

// ---- pass 1 ----

// PreAnalyze normalizes the decorations the later passes rely on:
// the direct target of an assignment has Write access, the right
// operand of a member access is a member reference, and the body of
// every for loop stores its symbols in the loop.
func PreAnalyze(m *syntax.Module) {
	syntax.Walk(m, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.BinaryExpression:
			switch n.Op {
			case syntax.Assign:
				switch lhs := n.X.(type) {
				case *syntax.IdentifierExpression:
					lhs.Access = syntax.Write
				case *syntax.BinaryExpression:
					lhs.Access = syntax.Write
				}
			case syntax.MemberAccess:
				switch y := n.Y.(type) {
				case *syntax.IdentifierExpression:
					y.MemberRef = true
				case *syntax.FunctionCallExpression:
					y.MemberRef = true
				}
			}
		case *syntax.ForStatement:
			n.Body.External = true
		}
		return true
	})
}

// ---- pass 2 ----

type builder struct {
	env   *Env
	errs  Collector
	sc    *syntax.Scope
	outer []*syntax.Scope

	// between maps the between block of a for loop to the scope
	// created for it by the loop.
	between map[*syntax.StatementBlock]*syntax.Scope
}

// BuildSymbolTables creates the scopes of m and declares its names.
func BuildSymbolTables(m *syntax.Module, env *Env, errs Collector) {
	b := &builder{env: env, errs: errs, between: make(map[*syntax.StatementBlock]*syntax.Scope)}
	syntax.Visit(m, b)
}

func (b *builder) declare(pos syntax.Position, name string, kind syntax.SymbolKind, decl syntax.Node) *syntax.Symbol {
	sym, err := b.sc.Declare(name, kind, decl)
	if errors.Is(err, syntax.ErrDuplicateDeclaration) {
		errorf(b.errs, pos, DuplicateDeclaration, "duplicate declaration of %s", name)
	}
	return sym
}

func (b *builder) push(sc *syntax.Scope) {
	b.outer = append(b.outer, b.sc)
	b.sc = sc
}

func (b *builder) pop() {
	b.sc = b.outer[len(b.outer)-1]
	b.outer = b.outer[:len(b.outer)-1]
}

func (b *builder) Before(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Module:
		n.Scope = syntax.NewScope(nil)
		b.push(n.Scope)
		b.loadNamespaces(n)
		// Module-level names are visible throughout the module,
		// so they are declared before any body is visited.
		for _, fn := range n.Functions {
			b.declare(fn.NamePos, fn.Name, syntax.Global, fn)
		}
		for _, def := range n.GlobalDefs {
			for _, v := range def.Vars {
				v.Symbol = b.declare(v.NamePos, v.Name, syntax.Global, v)
			}
		}

	case *syntax.Function:
		n.Scope = syntax.NewScope(b.sc)
		b.push(n.Scope)

	case *syntax.FunctionParameter:
		n.Symbol = b.declare(n.NamePos, n.Name, syntax.Parameter, n)

	case *syntax.StatementBlock:
		// The scope of a for body was created by its loop.
		if sc, ok := b.between[n]; ok {
			n.Scope = sc
			delete(b.between, n)
		} else if !n.External {
			n.Scope = syntax.NewScope(b.sc)
		}
		b.push(n.Scope)

	case *syntax.VariableDef:
		if b.sc.Parent != nil { // globals are already declared
			n.Symbol = b.declare(n.NamePos, n.Name, syntax.Local, n)
		}

	case *syntax.ForStatement:
		// The loop variable is a local of the loop body and,
		// separately, the parameter of the where predicate.
		body := syntax.NewScope(b.sc)
		body.External = true
		n.Body.Scope = body
		b.push(body)
		n.VarSymbol = b.declare(n.VarPos, n.Var, syntax.Local, n)
		b.pop()
		if n.Where != nil {
			n.Where.Scope = syntax.NewScope(b.sc)
			b.push(n.Where.Scope)
			n.Where.VarSymbol = b.declare(n.VarPos, n.Var, syntax.Parameter, n)
			b.pop()
		}
		// Between runs after an iteration and sees its variables.
		if n.Between != nil {
			b.between[n.Between] = syntax.NewScope(body)
		}

	case *syntax.ForWhereClause:
		b.push(n.Scope)
	}
	return true
}

func (b *builder) After(n syntax.Node) {
	switch n.(type) {
	case *syntax.Module, *syntax.Function, *syntax.StatementBlock, *syntax.ForWhereClause:
		b.pop()
	}
}

// loadNamespaces declares one Namespace symbol per root of the
// namespaces named by the module's load directives and the environment.
func (b *builder) loadNamespaces(m *syntax.Module) {
	var names []string
	if b.env != nil {
		names = append(names, b.env.Load...)
	}
	where := make(map[string]syntax.Position)
	for _, load := range m.Loads {
		names = append(names, load.Name)
		if _, ok := where[load.Name]; !ok {
			where[load.Name] = load.NamePos
		}
	}
	if len(names) == 0 {
		return
	}
	var src catalog.Source
	if b.env != nil {
		src = b.env.Catalog
	}
	roots, err := catalog.Load(src, names)
	var loadErrs catalog.LoadErrors
	if errors.As(err, &loadErrs) {
		for _, e := range loadErrs {
			pos, ok := where[e.Name]
			if !ok {
				pos, _ = m.Span()
			}
			errorf(b.errs, pos, UnknownNamespace, "cannot load %s: %v", e.Name, e.Err)
		}
	} else if err != nil {
		start, _ := m.Span()
		errorf(b.errs, start, UnknownNamespace, "%v", err)
	}
	for _, name := range catalog.RootNames(roots) {
		sym, err := b.sc.Declare(name, syntax.Namespace, nil)
		if err == nil {
			sym.Value = roots[name]
		}
	}
	if debug {
		fmt.Printf("loaded namespaces %v\n", catalog.RootNames(roots))
	}
}

// ---- pass 3 ----

type resolver struct {
	env    *Env
	errs   Collector
	module *syntax.Scope
	sc     *syntax.Scope
	outer  []*syntax.Scope
}

// ResolveSymbols binds every identifier that is not a member reference
// to its symbol. Undeclared names are reported.
func ResolveSymbols(m *syntax.Module, env *Env, errs Collector) {
	r := &resolver{env: env, errs: errs, module: m.Scope}
	syntax.Visit(m, r)
}

func (r *resolver) Before(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Module:
		r.sc = n.Scope
	case *syntax.Function:
		r.enter(n.Scope)
	case *syntax.StatementBlock:
		r.enter(n.Scope)
	case *syntax.ForWhereClause:
		r.enter(n.Scope)

	case *syntax.IdentifierExpression:
		if n.MemberRef {
			break
		}
		sym := r.sc.Lookup(n.Name)
		if sym == nil && r.env.isPredeclared(n.Name) {
			sym, _ = r.module.Declare(n.Name, syntax.Global, nil)
		}
		if sym == nil {
			errorf(r.errs, n.NamePos, UndeclaredIdentifier, "undeclared identifier %s", n.Name)
			break
		}
		n.Symbol = sym
		if debug {
			fmt.Printf("resolved %s at %s to %s\n", n.Name, n.NamePos, sym)
		}

	case *syntax.FunctionCallExpression:
		// Free calls look up the callee in the global scope at run
		// time, so only module-level names and predeclared names count.
		if n.MemberRef {
			break
		}
		if r.module.LookupLocal(n.Name) == nil && !r.env.isPredeclared(n.Name) {
			errorf(r.errs, n.NamePos, UndeclaredFunction, "undeclared function %s", n.Name)
		}
	}
	return true
}

func (r *resolver) After(n syntax.Node) {
	switch n.(type) {
	case *syntax.Function, *syntax.StatementBlock, *syntax.ForWhereClause:
		r.sc = r.outer[len(r.outer)-1]
		r.outer = r.outer[:len(r.outer)-1]
	}
}

func (r *resolver) enter(sc *syntax.Scope) {
	r.outer = append(r.outer, r.sc)
	r.sc = sc
}

// ---- pass 4 ----

type checker struct {
	errs       Collector
	loops      int  // depth of enclosing loops within the current body
	inFunction bool // whether return is permitted
	saved      []checkState
}

type checkState struct {
	loops      int
	inFunction bool
}

// Check reports semantic errors in a resolved module.
func Check(m *syntax.Module, errs Collector) {
	syntax.Visit(m, &checker{errs: errs})
}

func (c *checker) enter(loops int, inFunction bool) {
	c.saved = append(c.saved, checkState{c.loops, c.inFunction})
	c.loops, c.inFunction = loops, inFunction
}

func (c *checker) leave() {
	s := c.saved[len(c.saved)-1]
	c.saved = c.saved[:len(c.saved)-1]
	c.loops, c.inFunction = s.loops, s.inFunction
}

func (c *checker) Before(n syntax.Node) bool {
	switch n := n.(type) {
	case *syntax.Function:
		c.enter(0, true)
	case *syntax.ForWhereClause:
		// The predicate is a function of its own.
		c.enter(0, false)
	case *syntax.AnonymousTemplate:
		// Control may not leave a template expression for an
		// enclosing loop; return still unwinds through it.
		c.enter(0, c.inFunction)
	case *syntax.WhileStatement, *syntax.ForStatement:
		c.loops++

	case *syntax.BreakStatement:
		if c.loops == 0 {
			errorf(c.errs, n.Break, BreakOutsideLoop, "break not in a loop")
		}
	case *syntax.ContinueStatement:
		if c.loops == 0 {
			errorf(c.errs, n.Continue, ContinueOutsideLoop, "continue not in a loop")
		}
	case *syntax.ReturnStatement:
		if !c.inFunction {
			errorf(c.errs, n.Return, ReturnOutsideFunction, "return not in a function")
		}

	case *syntax.BinaryExpression:
		if n.Op == syntax.Assign {
			c.checkLValue(n.X)
		}
	}
	return true
}

func (c *checker) After(n syntax.Node) {
	switch n.(type) {
	case *syntax.Function, *syntax.ForWhereClause, *syntax.AnonymousTemplate:
		c.leave()
	case *syntax.WhileStatement, *syntax.ForStatement:
		c.loops--
	}
}

// checkLValue reports an assignment target other than a variable,
// an index expression or a member field.
func (c *checker) checkLValue(x syntax.Expr) {
	switch x := x.(type) {
	case *syntax.IdentifierExpression:
		if x.Symbol != nil && x.Symbol.Kind == syntax.Namespace {
			errorf(c.errs, x.NamePos, InvalidLValue, "cannot assign to namespace %s", x.Name)
		}
		return
	case *syntax.BinaryExpression:
		switch x.Op {
		case syntax.Index:
			return
		case syntax.MemberAccess:
			if _, isCall := x.Y.(*syntax.FunctionCallExpression); !isCall {
				return
			}
			errorf(c.errs, syntax.Start(x), InvalidLValue, "cannot assign to method call")
			return
		}
	}
	errorf(c.errs, syntax.Start(x), InvalidLValue, "cannot assign to %s", describe(x))
}

// describe names the kind of an expression for error messages.
func describe(x syntax.Expr) string {
	switch x := x.(type) {
	case *syntax.LiteralExpression:
		return "literal " + x.Raw
	case *syntax.NullExpression:
		return "null"
	case *syntax.FunctionCallExpression:
		return "function call"
	case *syntax.NewObjectExpression:
		return "new expression"
	case *syntax.ListExpression:
		return "list literal"
	case *syntax.AnonymousTemplate:
		return "template"
	case *syntax.UnaryExpression, *syntax.BinaryExpression:
		return "operator expression"
	}
	return fmt.Sprintf("%T", x)
}
