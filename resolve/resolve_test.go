// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve_test

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/internal/chunkedfile"
	"go.happytemplate.net/resolve"
	"go.happytemplate.net/syntax"
)

type point struct{ X, Y int }

func testEnv() *resolve.Env {
	reg := catalog.NewRegistry()
	reg.Register("acme.geo.Point", reflect.TypeOf(point{}))
	reg.RegisterFunc("acme.Pair", func(args []interface{}) (interface{}, error) { return args, nil })
	return &resolve.Env{IsPredeclared: isPredeclared, Catalog: reg}
}

func isPredeclared(name string) bool {
	return name == "len" || name == "str" || name == "host"
}

func TestResolve(t *testing.T) {
	filename := "testdata/resolve.happy"
	for _, chunk := range chunkedfile.Read(filename, t) {
		m, err := syntax.Parse(filename, chunk.Source)
		if err != nil {
			t.Error(err)
			continue
		}
		if err := resolve.Module(m, testEnv()); err != nil {
			for _, err := range err.(resolve.ErrorList) {
				chunk.GotError(int(err.Pos.Line), err.Msg)
			}
		}
		chunk.Done()
	}
}

func parse(t *testing.T, src string) *syntax.Module {
	t.Helper()
	m, err := syntax.Parse("test.happy", src)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPreAnalyze(t *testing.T) {
	m := parse(t, `a = b.c; x[1] = y.f(); for (v in a) {}`)
	resolve.PreAnalyze(m)

	assign := m.Stmts[0].(*syntax.ExpressionStatement).X.(*syntax.BinaryExpression)
	if a := assign.X.(*syntax.IdentifierExpression); a.Access != syntax.Write {
		t.Errorf("a.Access = %s, want write", a.Access)
	}
	dot := assign.Y.(*syntax.BinaryExpression)
	if b := dot.X.(*syntax.IdentifierExpression); b.Access != syntax.Read || b.MemberRef {
		t.Errorf("b: Access = %s, MemberRef = %t", b.Access, b.MemberRef)
	}
	if c := dot.Y.(*syntax.IdentifierExpression); !c.MemberRef {
		t.Errorf("c is not a member reference")
	}

	assign = m.Stmts[1].(*syntax.ExpressionStatement).X.(*syntax.BinaryExpression)
	if index := assign.X.(*syntax.BinaryExpression); index.Access != syntax.Write {
		t.Errorf("x[1].Access = %s, want write", index.Access)
	}
	call := assign.Y.(*syntax.BinaryExpression).Y.(*syntax.FunctionCallExpression)
	if !call.MemberRef {
		t.Errorf("f() is not a member reference")
	}

	if loop := m.Stmts[2].(*syntax.ForStatement); !loop.Body.External {
		t.Errorf("for body is not External")
	}
}

func TestSymbolTables(t *testing.T) {
	m := parse(t, `
load "acme";
function f(p, q) {
	def a = p;
	{ def b; }
}
def g = 1, h;
for (v in [1] where v) { def w; } between { def z; }
{ def u; }
`)
	var errs resolve.ErrorList
	env := testEnv()
	resolve.PreAnalyze(m)
	resolve.BuildSymbolTables(m, env, &errs)
	if len(errs) > 0 {
		t.Fatal(errs)
	}

	names := func(sc *syntax.Scope) (res []string) {
		for _, sym := range sc.Symbols() {
			res = append(res, sym.String())
		}
		return res
	}
	if diff := cmp.Diff([]string{"namespace acme", "global f", "global g", "global h"}, names(m.Scope)); diff != "" {
		t.Errorf("module scope mismatch (-want +got):\n%s", diff)
	}
	acme := m.Scope.LookupLocal("acme")
	if ns, ok := acme.Value.(*catalog.Namespace); !ok || ns.Name() != "acme" {
		t.Errorf("acme.Value = %v", acme.Value)
	}

	fn := m.Functions[0]
	if diff := cmp.Diff([]string{"parameter p", "parameter q"}, names(fn.Scope)); diff != "" {
		t.Errorf("function scope mismatch (-want +got):\n%s", diff)
	}
	if fn.Body.Scope.Parent != fn.Scope || fn.Scope.Parent != m.Scope {
		t.Errorf("function scopes are not nested")
	}
	if got := names(fn.Body.Scope); !cmp.Equal(got, []string{"local a"}) {
		t.Errorf("function body scope = %v", got)
	}
	inner := fn.Body.Stmts[1].(*syntax.StatementBlock)
	if got := names(inner.Scope); !cmp.Equal(got, []string{"local b"}) {
		t.Errorf("inner block scope = %v", got)
	}

	loop := m.Stmts[0].(*syntax.ForStatement)
	if got := names(loop.Body.Scope); !cmp.Equal(got, []string{"local v", "local w"}) {
		t.Errorf("loop body scope = %v", got)
	}
	if !loop.Body.Scope.External {
		t.Errorf("loop body scope is not External")
	}
	if got := names(loop.Where.Scope); !cmp.Equal(got, []string{"parameter v"}) {
		t.Errorf("where scope = %v", got)
	}
	if loop.VarSymbol == loop.Where.VarSymbol {
		t.Errorf("where clause shares the loop's variable")
	}
	if got := names(loop.Between.Scope); !cmp.Equal(got, []string{"local z"}) {
		t.Errorf("between scope = %v", got)
	}
	if loop.Between.Scope.Parent != loop.Body.Scope {
		t.Errorf("between scope is not nested in the loop body")
	}
	after := m.Stmts[1].(*syntax.StatementBlock)
	if after.Scope.Parent != m.Scope {
		t.Errorf("block after the loop is not nested in the module scope")
	}
}

func TestResolveBindings(t *testing.T) {
	m := parse(t, `
def g = 1;
function f(g) { out g; }
out g, len(g);
`)
	if err := resolve.Module(m, testEnv()); err != nil {
		t.Fatal(err)
	}
	param := m.Functions[0].Params[0].Symbol
	use := m.Functions[0].Body.Stmts[0].(*syntax.OutputStatement).Exprs[0].(*syntax.IdentifierExpression)
	if use.Symbol != param {
		t.Errorf("g in f resolved to %v, want the parameter", use.Symbol)
	}

	global := m.GlobalDefs[0].Vars[0].Symbol
	out := m.Stmts[0].(*syntax.OutputStatement)
	if sym := out.Exprs[0].(*syntax.IdentifierExpression).Symbol; sym != global {
		t.Errorf("top-level g resolved to %v, want the global", sym)
	}

	// Predeclared names are not added unless used as identifiers.
	if m.Scope.LookupLocal("len") != nil {
		t.Errorf("len declared but only called")
	}
	m = parse(t, `out str;`)
	if err := resolve.Module(m, testEnv()); err != nil {
		t.Fatal(err)
	}
	if sym := m.Scope.LookupLocal("str"); sym == nil || sym.Kind != syntax.Global || sym.Decl != nil {
		t.Errorf("str = %v, want a predeclared global", sym)
	}
}

func TestErrorCodes(t *testing.T) {
	for _, test := range []struct {
		src  string
		want resolve.Code
	}{
		{`out x;`, resolve.UndeclaredIdentifier},
		{`f();`, resolve.UndeclaredFunction},
		{`def a, a;`, resolve.DuplicateDeclaration},
		{`1 = 1;`, resolve.InvalidLValue},
		{`break;`, resolve.BreakOutsideLoop},
		{`continue;`, resolve.ContinueOutsideLoop},
		{`return;`, resolve.ReturnOutsideFunction},
		{`load "zzz";`, resolve.UnknownNamespace},
	} {
		err := resolve.Module(parse(t, test.src), testEnv())
		errs, ok := err.(resolve.ErrorList)
		if !ok {
			t.Errorf("%s: got %v, want ErrorList", test.src, err)
			continue
		}
		if !errs.Has(test.want) {
			t.Errorf("%s: got %v, want code %s", test.src, errs, test.want)
		}
	}
}

func TestErrorsSorted(t *testing.T) {
	m := parse(t, `
function f() { out b; }
out a;
break;
`)
	err := resolve.Module(m, testEnv())
	errs, ok := err.(resolve.ErrorList)
	if !ok || len(errs) != 3 {
		t.Fatalf("got %v, want 3 errors", err)
	}
	var lines []int32
	for _, e := range errs {
		lines = append(lines, e.Pos.Line)
	}
	if !cmp.Equal(lines, []int32{2, 3, 4}) {
		t.Errorf("error lines = %v", lines)
	}
}

func TestEnvLoad(t *testing.T) {
	env := testEnv()
	env.Load = []string{"acme.geo"}
	m := parse(t, `def p = new acme.geo.Point();`)
	if err := resolve.Module(m, env); err != nil {
		t.Fatal(err)
	}
	if sym := m.Scope.LookupLocal("acme"); sym == nil || sym.Kind != syntax.Namespace {
		t.Errorf("acme = %v, want namespace", sym)
	}
}
