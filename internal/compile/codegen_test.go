package compile

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/ir"
	"go.happytemplate.net/resolve"
	"go.happytemplate.net/syntax"
)

func testEnv() *resolve.Env {
	reg := catalog.NewRegistry()
	reg.Register("acme.Pair", reflect.TypeOf(struct{ A, B int }{}))
	return &resolve.Env{
		IsPredeclared: func(name string) bool { return name == "host" },
		Catalog:       reg,
	}
}

func analyze(t *testing.T, src string, debugInfo bool) *ir.Lambda {
	t.Helper()
	m, err := syntax.Parse("in.happy", src)
	if err != nil {
		t.Fatal(err)
	}
	fn, err := Analyze(m, &Options{Env: testEnv(), NoDebugInfo: !debugInfo})
	if err != nil {
		t.Fatalf("Analyze(%q): %v", src, err)
	}
	return fn
}

// TestLowering checks the IR of each kind of statement and expression.
// The module body is shown without its trailing (Empty).
func TestLowering(t *testing.T) {
	for _, test := range []struct {
		src  string // module source
		want string // IR of the module body
	}{
		{
			`def x = 1 + 2; out x;`,
			`(SetMember x (GetGlobals ctx) (BinaryOp + 1 2)) ` +
				`(SafeWriteToTopWriter ctx (GetMember x (GetGlobals ctx)))`,
		},
		{
			// constant output is formatted at compile time
			`out "a", 1, 2.0, true, null;`,
			`(Block (WriteToTopWriter ctx "a") (WriteToTopWriter ctx "1") (WriteToTopWriter ctx "2.0") ` +
				`(WriteToTopWriter ctx "true") (WriteToTopWriter ctx ""))`,
		},
		{
			// functions first, then global initializers, then statements
			`out 1; def a = f(); function f() {}`,
			`(SetMember f (GetGlobals ctx) (Lambda f [] (Block (Block) (Label return null)))) ` +
				`(SetMember a (GetGlobals ctx) (Invoke/0 (GetMember f (GetGlobals ctx)))) ` +
				`(WriteToTopWriter ctx "1")`,
		},
		{
			`def a, b = 2, c;`,
			`(SetMember b (GetGlobals ctx) 2)`,
		},
		{
			`def a, c;`,
			`(Empty)`,
		},
		{
			`function f(a) { return a; }`,
			`(SetMember f (GetGlobals ctx) (Lambda f [a] (Block (Block (Goto return a)) (Label return null))))`,
		},
		{
			`function f() { return; }`,
			`(SetMember f (GetGlobals ctx) (Lambda f [] (Block (Block (Goto return null)) (Label return null))))`,
		},
		{
			`{ def a = 1, b; a = b; }`,
			`(Block [a b] (Assign a 1) (Assign a b))`,
		},
		{
			`if (host) { out 1; } else { out 2; }`,
			`(If (ToBool (GetMember host (GetGlobals ctx))) (Block (WriteToTopWriter ctx "1")) (Block (WriteToTopWriter ctx "2")))`,
		},
		{
			`if (host) <|x|>`,
			`(If (ToBool (GetMember host (GetGlobals ctx))) (Block (WriteToTopWriter ctx "x")))`,
		},
		{
			`while (host) { break; continue; }`,
			`(Loop break continue (Block ` +
				`(If (Not (ToBool (GetMember host (GetGlobals ctx)))) (Goto break)) ` +
				`(Block (Goto break) (Goto continue))))`,
		},
		{
			`for (v in [1, 2] where v > 1) { out v; } between { out ","; }`,
			`(Block [v $enum] ` +
				`(Assign $enum (Iterate (Where (List 1 2) (Lambda where [v] (BinaryOp > v 1))))) ` +
				`(If (MoveNext $enum) (Loop break (Block ` +
				`(Assign v (Current $enum)) ` +
				`(Block (SafeWriteToTopWriter ctx v)) ` +
				`(Label continue) ` +
				`(If (MoveNext $enum) (Block (WriteToTopWriter ctx ",")) (Goto break))))))`,
		},
		{
			// locals of a for body live in the loop's block and are
			// reset on each iteration
			`for (v in host) { def w = v; continue; }`,
			`(Block [v w $enum] ` +
				`(Assign $enum (Iterate (GetMember host (GetGlobals ctx)))) ` +
				`(If (MoveNext $enum) (Loop break (Block ` +
				`(Assign w null) ` +
				`(Assign v (Current $enum)) ` +
				`(Block (Assign w v) (Goto continue)) ` +
				`(Label continue) ` +
				`(If (MoveNext $enum) (Empty) (Goto break))))))`,
		},
		{
			`switch (host) { case 1, 2: out "a"; case "b": default: out "c"; }`,
			`(Switch (GetMember host (GetGlobals ctx)) ` +
				`(Case (1 2) (Block (WriteToTopWriter ctx "a"))) ` +
				`(Case ("b") (Block)) ` +
				`(Default (Block (WriteToTopWriter ctx "c"))))`,
		},
		{
			// a switch without cases still evaluates its operand
			`switch (host) { default: out 2; }`,
			`(Block (GetMember host (GetGlobals ctx)) (Block (WriteToTopWriter ctx "2")))`,
		},
		{
			`switch (host) {}`,
			`(Block (GetMember host (GetGlobals ctx)))`,
		},
		{
			`def s = <|a$1$|>;`,
			`(SetMember s (GetGlobals ctx) (Block [$template] ` +
				`(PushWriter ctx) ` +
				`(TryFinally (Block (WriteToTopWriter ctx "a") (WriteToTopWriter ctx "1")) ` +
				`(Assign $template (PopWriter ctx))) ` +
				`$template))`,
		},
		{
			`host.f = 1;`,
			`(SetMember f (GetMember host (GetGlobals ctx)) 1)`,
		},
		{
			`host[0, "k"] = 2;`,
			`(SetIndex/2 (GetMember host (GetGlobals ctx)) 0 "k" 2)`,
		},
		{
			`out host[1];`,
			`(SafeWriteToTopWriter ctx (GetIndex/1 (GetMember host (GetGlobals ctx)) 1))`,
		},
		{
			`host.a.m(2, 3);`,
			`(Call m/2 (GetMember a (GetMember host (GetGlobals ctx))) 2 3)`,
		},
		{
			`-host; !host;`,
			`(UnaryOp - (GetMember host (GetGlobals ctx))) ` +
				`(Not (ToBool (GetMember host (GetGlobals ctx))))`,
		},
		{
			`host && 1 || 2;`,
			`(OrElse (ToBool (AndAlso (ToBool (GetMember host (GetGlobals ctx))) (ToBool 1))) (ToBool 2))`,
		},
		{
			`host == null;`,
			`(BinaryOp == (GetMember host (GetGlobals ctx)) null)`,
		},
		{
			`load "acme"; def p = new acme.Pair(1, 2);`,
			`(SetMember p (GetGlobals ctx) (Create/2 (GetMember Pair <namespace acme>) 1 2))`,
		},
		{
			`def a; a = host = [];`,
			`(Empty) (SetMember a (GetGlobals ctx) (SetMember host (GetGlobals ctx) (List)))`,
		},
	} {
		fn := analyze(t, test.src, false)
		body := fn.Body.(*ir.Block)
		list := body.List[:len(body.List)-1]
		var parts []string
		for _, x := range list {
			parts = append(parts, ir.String(x))
		}
		if got := strings.Join(parts, " "); got != test.want {
			t.Errorf("%s:\ngot  %s\nwant %s", test.src, got, test.want)
		}
		if _, ok := body.List[len(body.List)-1].(*ir.Empty); !ok {
			t.Errorf("%s: module body does not end with Empty", test.src)
		}
	}
}

func TestModuleLambda(t *testing.T) {
	fn := analyze(t, ``, false)
	if fn.Name != "<toplevel>" || len(fn.Params) != 1 || fn.Params[0].Name != "ctx" {
		t.Errorf("module lambda = %s", ir.String(fn))
	}
	if got := ir.String(fn.Body); got != "(Block (Empty))" {
		t.Errorf("empty module body = %s", got)
	}
}

func TestDebugInfo(t *testing.T) {
	fn := analyze(t, `def x = 1;`, true)
	want := `(Block (Debug 1:5 (SetMember x (GetGlobals ctx) (Debug 1:9 1))) (Empty))`
	if got := ir.String(fn.Body); got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}

	defer func(old bool) { DebugInfo = old }(DebugInfo)
	DebugInfo = false
	fn = analyze(t, `def x = 1;`, true)
	if got := ir.String(fn.Body); strings.Contains(got, "Debug") {
		t.Errorf("DebugInfo=false: got %s", got)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	m, err := syntax.Parse("in.happy", "1 = 2;\nout y;")
	if err != nil {
		t.Fatal(err)
	}
	fn, err := Analyze(m, &Options{Env: testEnv()})
	if fn != nil {
		t.Errorf("Analyze returned IR for an erroneous module")
	}
	errs, ok := err.(resolve.ErrorList)
	if !ok || len(errs) != 2 {
		t.Fatalf("got %v, want two errors", err)
	}
	if errs[0].Code != resolve.InvalidLValue || errs[1].Code != resolve.UndeclaredIdentifier {
		t.Errorf("codes = %s, %s", errs[0].Code, errs[1].Code)
	}
}

func TestInternalError(t *testing.T) {
	// The resolver does not check operators, so this tree reaches
	// the generator.
	one := &syntax.LiteralExpression{Token: syntax.INT, Raw: "1", Value: int64(1)}
	m := &syntax.Module{Stmts: []syntax.Stmt{
		&syntax.ExpressionStatement{X: &syntax.UnaryExpression{Op: syntax.Add, X: one}},
	}}
	fn, err := Analyze(m, nil)
	var ie *InternalError
	if fn != nil || !errors.As(err, &ie) {
		t.Fatalf("Analyze = %v, %v; want InternalError", fn, err)
	}
	if !strings.Contains(ie.Error(), "unexpected unary operator") {
		t.Errorf("error = %v", ie)
	}
}

func TestAnalyzeTwice(t *testing.T) {
	m, err := syntax.Parse("in.happy", `function f(p) { def q = p; out q; } { def r; out r; }`)
	if err != nil {
		t.Fatal(err)
	}
	var dumps []string
	for i := 0; i < 2; i++ {
		fn, err := Analyze(m, &Options{Env: testEnv(), NoDebugInfo: true})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		dumps = append(dumps, ir.String(fn))
	}
	if dumps[0] != dumps[1] {
		t.Errorf("second analysis differs:\n%s\n%s", dumps[0], dumps[1])
	}
}

func TestStack(t *testing.T) {
	m, err := syntax.Parse("in.happy", "out a, b;")
	if err != nil {
		t.Fatal(err)
	}
	exprs := m.Stmts[0].(*syntax.OutputStatement).Exprs
	a, b := &ir.Constant{Value: "a"}, &ir.Constant{Value: "b"}

	s := stack{debug: true}
	s.push(exprs[0], a)
	s.push(exprs[1], b)
	s.push(nil, &ir.Empty{})
	if s.len() != 3 {
		t.Fatalf("len = %d", s.len())
	}
	if _, ok := s.pop().(*ir.Empty); !ok {
		t.Errorf("entry without a node was wrapped")
	}
	got := s.popN(2)
	if len(got) != 2 {
		t.Fatalf("popN(2) returned %d items", len(got))
	}
	for i, want := range []ir.Node{a, b} {
		d, ok := got[i].(*ir.Debug)
		if !ok || d.X != want {
			t.Errorf("popN[%d] = %s", i, ir.String(got[i]))
			continue
		}
		if start := syntax.Start(exprs[i]); d.Start != start {
			t.Errorf("popN[%d] start = %s, want %s", i, d.Start, start)
		}
	}

	// Already tagged items are not wrapped twice.
	s.push(exprs[0], got[0])
	if d := s.pop().(*ir.Debug); d.X != a {
		t.Errorf("re-pushed item wrapped twice")
	}

	// popRaw never tags.
	s.push(exprs[0], a)
	if s.popRaw() != a {
		t.Errorf("popRaw tagged its result")
	}

	s.debug = false
	s.push(exprs[0], a)
	if s.pop() != a {
		t.Errorf("pop tagged with debug disabled")
	}
}

func TestStackUnderflow(t *testing.T) {
	for _, f := range []func(s *stack){
		func(s *stack) { s.pop() },
		func(s *stack) { s.popRaw() },
		func(s *stack) { s.push(nil, &ir.Empty{}); s.popN(2) },
	} {
		func() {
			defer func() {
				if _, ok := recover().(*InternalError); !ok {
					t.Errorf("underflow did not panic with InternalError")
				}
			}()
			f(new(stack))
		}()
	}
}

func TestLoopStack(t *testing.T) {
	var ls loopStack
	outer := ls.push()
	inner := ls.push()
	if ls.top() != inner || inner.brk == outer.brk {
		t.Errorf("top is not the innermost loop")
	}
	ls.pop()
	if ls.top() != outer {
		t.Errorf("pop did not restore the outer loop")
	}
	ls.pop()
	defer func() {
		if _, ok := recover().(*InternalError); !ok {
			t.Errorf("top of empty loop stack did not panic with InternalError")
		}
	}()
	ls.top()
}
