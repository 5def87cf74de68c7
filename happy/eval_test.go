// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/happy"
	"go.happytemplate.net/happytest"
	"go.happytemplate.net/internal/chunkedfile"
	"go.happytemplate.net/ir"
	"go.happytemplate.net/resolve"
	"go.happytemplate.net/syntax"
)

func TestExecFile(t *testing.T) {
	testdata := happytest.DataFile("happy", ".")
	for _, file := range []string{
		"testdata/control.happy",
		"testdata/values.happy",
		"testdata/errors.happy",
	} {
		filename := filepath.Join(testdata, file)
		for _, chunk := range chunkedfile.Read(filename, t) {
			ctx := happy.NewContext(new(bytes.Buffer))
			happytest.SetReporter(ctx, t)
			opts := &happy.Options{
				Predeclared: happytest.Predeclared,
				NoDebugInfo: chunk.Option("nodebuginfo"),
			}

			err := happy.ExecFile(ctx, filename, chunk.Source, opts)
			switch err := err.(type) {
			case *happy.EvalError:
				found := false
				for _, fr := range err.CallStack {
					if fr.Pos.Filename() == filename {
						chunk.GotError(int(fr.Pos.Line), err.Msg)
						found = true
						break
					}
				}
				if !found {
					t.Error(err.Backtrace())
				}
			case nil:
				// success
			default:
				t.Errorf("\n%s", err)
			}
			if d := ctx.Depth(); d != 0 {
				t.Errorf("%s: writer depth %d after run, want 0", filename, d)
			}
			chunk.Done()
		}
	}
}

func run(t *testing.T, src string, opts *happy.Options) (string, *happy.RuntimeContext, error) {
	t.Helper()
	out := new(bytes.Buffer)
	ctx := happy.NewContext(out)
	err := happy.ExecFile(ctx, "test.happy", src, opts)
	return out.String(), ctx, err
}

func TestOutput(t *testing.T) {
	for _, test := range []struct{ src, want string }{
		{`def x = 1 + 2; out x;`, "3"},
		{`for (i in [1,2,3] where i > 1) { out i; } between { out ","; }`, "2,3"},
		{``, ""},
		{`out 1, "a", null, 2.0, true;`, "1a2.0true"},
		{`<|a$1 + 1$b|>`, "a2b"},
		{`out <|inner|>.upper();`, "INNER"},
		{`def i = 0; while (i < 3) { out i; i = i + 1; }`, "012"},
		{`for (x in [1, 2, 3, 4]) { out x; } between { out "+"; }`, "1+2+3+4"},
		{`switch ("b") { case "a": out 1; case "b": out 2; default: out 3; }`, "2"},
		{`function f() <|f$g()$|> function g() <|g|> f();`, "fg"},
	} {
		got, _, err := run(t, test.src, nil)
		if err != nil {
			t.Errorf("%s: %v", test.src, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s: got output %q, want %q", test.src, got, test.want)
		}
	}
}

func TestGlobals(t *testing.T) {
	_, ctx, err := run(t, `def x = 1 + 2, y; function f() {} x = x * 2;`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := ctx.Globals.Get("x"); v != int64(6) {
		t.Errorf("Globals.x = %v, want 6", v)
	}
	if ctx.Globals.Has("y") {
		t.Errorf("uninitialized global y is a member of Globals")
	}
	if v, _ := ctx.Globals.Get("f"); happy.TypeName(v) != "function" {
		t.Errorf("Globals.f = %v, want function", v)
	}
	// Predeclared values are members too, but a client's own
	// members are not overwritten.
	if !ctx.Globals.Has("len") {
		t.Errorf("Globals lacks len")
	}
	ctx = happy.NewContext(nil)
	ctx.Globals.SetField("len", "mine")
	if err := happy.ExecFile(ctx, "test.happy", `out len;`, nil); err != nil {
		t.Fatal(err)
	}
	if v, _ := ctx.Globals.Get("len"); v != "mine" {
		t.Errorf("Globals.len = %v, want mine", v)
	}
}

func TestCompileErrors(t *testing.T) {
	_, err := happy.Compile("test.happy", `1 = 2;`, nil)
	var errs resolve.ErrorList
	if !errors.As(err, &errs) {
		t.Fatalf("Compile returned %v, want resolve.ErrorList", err)
	}
	if !errs.Has(resolve.InvalidLValue) {
		t.Errorf("errors %v lack InvalidLValue", errs)
	}

	_, err = happy.Compile("test.happy", `out (;`, nil)
	if _, ok := err.(syntax.Error); !ok {
		t.Errorf("Compile returned %T, want syntax.Error", err)
	}
}

// A program may be run several times, and the inline caches of its
// call sites persist between runs.
func TestInlineCaches(t *testing.T) {
	src := `function add(a, b) { return a + b; }
function name(o) { return o.name; }`
	prog, err := happy.Compile("test.happy", src, nil)
	if err != nil {
		t.Fatal(err)
	}
	var plus, member *ir.CallSite
	for _, s := range ir.Sites(prog.Lambda()) {
		switch {
		case s.Kind == ir.BinaryOp && s.Op == syntax.Add:
			plus = s
		case s.Kind == ir.GetMember && s.Name == "name":
			member = s
		}
	}
	if plus == nil || member == nil {
		t.Fatal("call sites not found")
	}

	ctx := happy.NewContext(nil)
	if err := prog.Run(ctx); err != nil {
		t.Fatal(err)
	}
	call := func(ctx *happy.RuntimeContext, fn string, args ...happy.Value) happy.Value {
		f, _ := ctx.Globals.Get(fn)
		v, err := happy.Call(ctx, f, args...)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	if got := call(ctx, "add", int64(1), int64(2)); got != int64(3) {
		t.Errorf("add(1, 2) = %v", got)
	}
	if hits, misses := plus.Cache.Stats(); hits != 0 || misses != 1 {
		t.Errorf("after first call: hits=%d misses=%d, want 0, 1", hits, misses)
	}

	// Same shape: hit.
	call(ctx, "add", int64(5), int64(6))
	if hits, misses := plus.Cache.Stats(); hits != 1 || misses != 1 {
		t.Errorf("after second call: hits=%d misses=%d, want 1, 1", hits, misses)
	}
	if e := plus.Cache.Entry(); e.Shape.X != reflect.TypeOf(int64(0)) {
		t.Errorf("cached shape %v, want int64", e.Shape)
	}

	// New shape: miss, and the entry is replaced.
	if got := call(ctx, "add", "a", int64(1)); got != "a1" {
		t.Errorf(`add("a", 1) = %v`, got)
	}
	if hits, misses := plus.Cache.Stats(); hits != 1 || misses != 2 {
		t.Errorf("after shape change: hits=%d misses=%d, want 1, 2", hits, misses)
	}
	if e := plus.Cache.Entry(); e.Shape.X != reflect.TypeOf("") {
		t.Errorf("cached shape %v, want string", e.Shape)
	}

	// A binding resolved for one shape serves every value of it.
	obj := happy.NewObject()
	obj.SetField("name", "first")
	if got := call(ctx, "name", obj); got != "first" {
		t.Errorf("name(obj) = %v", got)
	}
	obj2 := happy.NewObject()
	obj2.SetField("name", "second")
	if got := call(ctx, "name", obj2); got != "second" {
		t.Errorf("name(obj2) = %v", got)
	}

	// A failed resolution is not cached.
	f, _ := ctx.Globals.Get("name")
	if _, err := happy.Call(ctx, f, nil); err == nil {
		t.Error("name(null) succeeded")
	}
	if e := member.Cache.Entry(); e == nil || e.Shape.X != reflect.TypeOf(obj) {
		t.Errorf("failed call replaced cache entry")
	}

	// A second run reuses the caches.
	ctx2 := happy.NewContext(nil)
	if err := prog.Run(ctx2); err != nil {
		t.Fatal(err)
	}
	_, misses := plus.Cache.Stats()
	call(ctx2, "add", "b", int64(2))
	if _, misses2 := plus.Cache.Stats(); misses2 != misses {
		t.Errorf("call after rerun missed")
	}
}

func TestEvalError(t *testing.T) {
	src := `function f(x) {
  return g(x);
}
function g(x) {
  return x / 0;
}
out f(1);
`
	_, ctx, err := run(t, src, nil)
	var evalErr *happy.EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("got %v, want EvalError", err)
	}
	if got, want := evalErr.Error(), "test.happy:5:10: integer division by zero"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	var names []string
	for _, fr := range evalErr.CallStack {
		names = append(names, fr.Name)
	}
	if got, want := strings.Join(names, " "), "<toplevel> f g"; got != want {
		t.Errorf("call stack = %s, want %s", got, want)
	}
	if got := evalErr.CallStack[0].Pos.Line; got != 7 {
		t.Errorf("toplevel frame at line %d, want 7", got)
	}
	bt := evalErr.Backtrace()
	for _, want := range []string{
		"Traceback (most recent call last):",
		"test.happy:7:6: in <toplevel>",
		"test.happy:2:11: in f",
		"Error: integer division by zero",
	} {
		if !strings.Contains(bt, want) {
			t.Errorf("backtrace lacks %q:\n%s", want, bt)
		}
	}
	if ctx.Depth() != 0 {
		t.Errorf("writer depth %d after error", ctx.Depth())
	}

	// Without debug info the error has no position.
	_, _, err = run(t, src, &happy.Options{NoDebugInfo: true})
	if !errors.As(err, &evalErr) {
		t.Fatalf("got %v, want EvalError", err)
	}
	if got, want := evalErr.Error(), "integer division by zero"; got != want {
		t.Errorf("Error() without debug info = %q, want %q", got, want)
	}
}

// The writer stack is balanced whichever way a template body exits.
func TestWriterBalance(t *testing.T) {
	for _, src := range []string{
		`function f() { out <|a$return 1;$b|>; } out f();`,
		`while (true) { def s = <|a$<|b|>$|>; break; }`,
		`for (x in [1, 2]) { out <|$x$|>; if (x == 1) { continue; } break; }`,
		`out <|a$1 / 0$b|>;`,
		`function f() { return <|$f()$|>; } out f();`,
	} {
		_, ctx, _ := run(t, src, nil)
		if d := ctx.Depth(); d != 0 {
			t.Errorf("%s: writer depth %d after run, want 0", src, d)
		}
	}
}

type point struct {
	X, Y int
}

func (p *point) Sum() int { return p.X + p.Y }

func TestGoValues(t *testing.T) {
	reg := catalog.NewRegistry()
	reg.Register("geo.Point", reflect.TypeOf(point{}))
	opts := &happy.Options{
		Catalog: reg,
		Predeclared: happy.StringDict{
			"ages":  map[string]int{"bob": 30, "al": 4},
			"names": []string{"x", "y"},
			"hypot": func(a, b float64) float64 { return a*a + b*b },
		},
	}
	src := `load "geo";
def p = new geo.Point();
p.X = 3;
p.y = 4;
out p.x + p.Y, ",", p.sum(), ",";
out ages.bob, ages["al"], ",";
for (n in names) { out n; } between { out "|"; }
out ",", hypot(3, 4), ",";
for (k in ages) { out k; } between { out " "; }
`
	got, _, err := run(t, src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := "7,7,304,x|y,25.0,al bob"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCancel(t *testing.T) {
	// Cancelled before it starts.
	ctx := happy.NewContext(nil)
	ctx.Cancel("nope")
	err := happy.ExecFile(ctx, "test.happy", `out 1;`, nil)
	if err == nil || !strings.Contains(err.Error(), "execution cancelled: nope") {
		t.Errorf("got %v, want cancellation", err)
	}

	// Cancelled by a built-in during an infinite loop.
	stop := happy.NewBuiltin("stop", func(ctx *happy.RuntimeContext, _ *happy.Builtin, args []happy.Value) (happy.Value, error) {
		ctx.Cancel(happy.String(args[0]))
		return nil, nil
	})
	opts := &happy.Options{Predeclared: happy.StringDict{"stop": stop}}
	_, ctx, err = run(t, `def i = 0; while (true) { i = i + 1; if (i == 10) { stop("enough"); } }`, opts)
	if err == nil || !strings.Contains(err.Error(), "execution cancelled: enough") {
		t.Errorf("got %v, want cancellation", err)
	}
	if v, _ := ctx.Globals.Get("i"); v != int64(10) {
		t.Errorf("loop stopped at i=%v, want 10", v)
	}
}

func TestSpellingHints(t *testing.T) {
	for _, test := range []struct{ src, want string }{
		{`out "abc".uper();`, "string has no method uper (did you mean upper?)"},
		{`out [1].apend(2);`, "list has no method apend (did you mean append?)"},
		{`out lib.sqrtt(4);`, "module lib has no member sqrtt (did you mean sqrt?)"},
	} {
		lib := &happy.Module{Name: "lib", Members: happy.StringDict{"sqrt": int64(0), "pow": int64(0)}}
		_, _, err := run(t, test.src, &happy.Options{Predeclared: happy.StringDict{"lib": lib}})
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got error %v, want %q", test.src, err, test.want)
		}
	}

	obj := happy.NewObject()
	obj.SetField("name", "x")
	if _, err := obj.Attr("nme"); err == nil || !strings.HasSuffix(err.Error(), "(did you mean name?)") {
		t.Errorf("obj.nme: got error %v", err)
	}
	// Two edits in four letters is too far.
	if _, err := obj.Attr("nmae"); err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("obj.nmae: got error %v", err)
	}
}

// tally is an Iterable that counts its unfinished iterators.
type tally struct {
	elems []int64
	open  int
}

func (t *tally) Iterate() happy.Iterator {
	t.open++
	return &tallyIterator{t: t}
}

type tallyIterator struct {
	t *tally
	i int
}

func (it *tallyIterator) Next(p *happy.Value) bool {
	if it.i >= len(it.t.elems) {
		return false
	}
	*p = it.t.elems[it.i]
	it.i++
	return true
}

func (it *tallyIterator) Done() { it.t.open-- }

func TestWhereIteratorsDone(t *testing.T) {
	seq := &tally{elems: []int64{1, 2, 3}}
	opts := &happy.Options{Predeclared: happy.StringDict{"seq": seq}}
	out, _, err := run(t, `for (x in seq where x > 1) { out x; }`, opts)
	if err != nil {
		t.Fatal(err)
	}
	if out != "23" {
		t.Errorf("got %q, want %q", out, "23")
	}
	if seq.open != 0 {
		t.Errorf("%d iterators not done", seq.open)
	}
}
