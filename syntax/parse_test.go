// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax_test

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"go.happytemplate.net/internal/chunkedfile"
	"go.happytemplate.net/syntax"
)

func TestExprParseTrees(t *testing.T) {
	for _, test := range []struct {
		input, want string
	}{
		{`x + 1`,
			`(BinaryExpression X=x Op=+ Y=1)`},
		{`x + y * z`,
			`(BinaryExpression X=x Op=+ Y=(BinaryExpression X=y Op=* Y=z))`},
		{`x % y - z`,
			`(BinaryExpression X=(BinaryExpression X=x Op=% Y=y) Op=- Y=z)`},
		{`a || b && c`,
			`(BinaryExpression X=a Op=|| Y=(BinaryExpression X=b Op=&& Y=c))`},
		{`a = b = 1`,
			`(BinaryExpression X=a Op== Y=(BinaryExpression X=b Op== Y=1))`},
		{`!x == -y`,
			`(BinaryExpression X=(UnaryExpression Op=! X=x) Op=== Y=(UnaryExpression Op=- X=y))`},
		{`a < b == c > d`,
			`(BinaryExpression X=(BinaryExpression X=a Op=< Y=b) Op=== Y=(BinaryExpression X=c Op=> Y=d))`},
		{`a & b | c ^ d`,
			`(BinaryExpression X=(BinaryExpression X=a Op=& Y=b) Op=| Y=(BinaryExpression X=c Op=^ Y=d))`},
		{`a.b.c(1)`,
			`(BinaryExpression X=(BinaryExpression X=a Op=. Y=b) Op=. Y=(FunctionCallExpression Name=c Args=(1)))`},
		{`x[1, "k"]`,
			`(BinaryExpression X=x Op=[] Y=(ArgumentList Args=(1 "k")))`},
		{`f(a, b)`,
			`(FunctionCallExpression Name=f Args=(a b))`},
		{`new a.B(1)`,
			`(NewObjectExpression Type=(BinaryExpression X=a Op=. Y=B) Args=(1))`},
		{`[1, 2.5, null, true]`,
			`(ListExpression List=(1 2.5 null true))`},
		{`(a + b) * c`,
			`(BinaryExpression X=(BinaryExpression X=a Op=+ Y=b) Op=* Y=c)`},
		{`<|hi $x$|>`,
			`(AnonymousTemplate Body=(StatementBlock Stmts=("hi " (OutputStatement Exprs=(x))) Template))`},
	} {
		e, err := syntax.ParseExpr("foo.happy", test.input)
		if err != nil {
			t.Errorf("parse `%s` failed: %v", test.input, stripPos(err))
			continue
		}
		if got := treeString(e); test.want != got {
			t.Errorf("parse `%s` = %s, want %s", test.input, got, test.want)
		}
	}
}

func TestModuleParseTrees(t *testing.T) {
	for _, test := range []struct {
		input, want string
	}{
		{`def x = 1 + 2; out x;`,
			`(Module GlobalDefs=((DefStatement Vars=((VariableDef Name=x Init=(BinaryExpression X=1 Op=+ Y=2))))) Stmts=((OutputStatement Exprs=(x))))`},
		{`def a, b = 2;`,
			`(Module GlobalDefs=((DefStatement Vars=((VariableDef Name=a) (VariableDef Name=b Init=2)))))`},
		{`load "google.protobuf";`,
			`(Module Loads=((LoadDirective Name=google.protobuf)))`},
		{`function f(a, b) { return a; }`,
			`(Module Functions=((Function Name=f Params=((FunctionParameter Name=a) (FunctionParameter Name=b)) Body=(StatementBlock Stmts=((ReturnStatement Result=a))))))`},
		{`function g() <|text|>`,
			`(Module Functions=((Function Name=g Body=(StatementBlock Stmts=("text") Template))))`},
		{`if (x) { out 1; } else { out 2; }`,
			`(Module Stmts=((IfStatement Cond=x True=(StatementBlock Stmts=((OutputStatement Exprs=(1)))) False=(StatementBlock Stmts=((OutputStatement Exprs=(2)))))))`},
		{`if (x) {} else if (y) {}`,
			`(Module Stmts=((IfStatement Cond=x True=(StatementBlock) False=(StatementBlock Stmts=((IfStatement Cond=y True=(StatementBlock)))))))`},
		{`for (i in [1,2,3] where i > 1) { out i; } between { out ","; }`,
			`(Module Stmts=((ForStatement Var=i X=(ListExpression List=(1 2 3)) Where=(ForWhereClause Cond=(BinaryExpression X=i Op=> Y=1)) Body=(StatementBlock Stmts=((OutputStatement Exprs=(i)))) Between=(StatementBlock Stmts=((OutputStatement Exprs=(",")))))))`},
		{`switch (x) { case 1, 2: out "a"; default: out "b"; }`,
			`(Module Stmts=((SwitchStatement X=x Cases=((SwitchCase Values=(1 2) Body=(StatementBlock Stmts=((OutputStatement Exprs=("a")))))) Default=(StatementBlock Stmts=((OutputStatement Exprs=("b")))))))`},
		{`switch (x) {}`,
			`(Module Stmts=((SwitchStatement X=x)))`},
		{`while (true) { break; continue; }`,
			`(Module Stmts=((WhileStatement Cond=true Body=(StatementBlock Stmts=((BreakStatement) (ContinueStatement))))))`},
		{`<|a$x$b|>`,
			`(Module Stmts=((StatementBlock Stmts=("a" (OutputStatement Exprs=(x)) "b") Template)))`},
		{`x.y = f();`,
			`(Module Stmts=((ExpressionStatement X=(BinaryExpression X=(BinaryExpression X=x Op=. Y=y) Op== Y=(FunctionCallExpression Name=f)))))`},
		{`<|$for (i in xs) <|$i$|> between <|, |>$|>`,
			`(Module Stmts=((StatementBlock Stmts=((ForStatement Var=i X=xs Body=(StatementBlock Stmts=((OutputStatement Exprs=(i))) Template) Between=(StatementBlock Stmts=(", ") Template))) Template)))`},
		{`<|$def n = 1$$n$$x = 2;$|>`,
			`(Module Stmts=((StatementBlock Stmts=((DefStatement Vars=((VariableDef Name=n Init=1))) (OutputStatement Exprs=(n)) (ExpressionStatement X=(BinaryExpression X=x Op== Y=2))) Template)))`},
	} {
		m, err := syntax.Parse("foo.happy", test.input)
		if err != nil {
			t.Errorf("parse `%s` failed: %v", test.input, stripPos(err))
			continue
		}
		if got := treeString(m); test.want != got {
			t.Errorf("parse `%s` =\n%s\nwant\n%s", test.input, got, test.want)
		}
	}
}

func TestParseErrorsEOF(t *testing.T) {
	for _, test := range []struct {
		input string
		eof   bool
	}{
		{`def x = 1`, true},
		{`if (x) { out 1;`, true},
		{`<|abc`, true},
		{`<|abc $x`, true},
		{`function f(a,`, true},
		{`out ;`, false},
		{`if (x) out 1;`, false},
	} {
		_, err := syntax.Parse("foo.happy", test.input)
		if err == nil {
			t.Errorf("parse `%s` succeeded, want error", test.input)
			continue
		}
		if got := errors.Is(err, syntax.ErrEOF); got != test.eof {
			t.Errorf("parse `%s`: %v; errors.Is(err, ErrEOF) = %t, want %t", test.input, err, got, test.eof)
		}
	}
}

func TestParseErrors(t *testing.T) {
	filename := "testdata/errors.happy"
	for _, chunk := range chunkedfile.Read(filename, t) {
		_, err := syntax.Parse(filename, chunk.Source)
		switch err := err.(type) {
		case nil:
			// ok
		case syntax.Error:
			chunk.GotError(int(err.Pos.Line), err.Msg)
		default:
			t.Error(err)
		}
		chunk.Done()
	}
}

func TestSpans(t *testing.T) {
	m, err := syntax.Parse("span.happy", "def x = 1;\nout x + 22;\n")
	if err != nil {
		t.Fatal(err)
	}
	span := fmt.Sprint(m.Stmts[0].Span())
	want := "span.happy:2:1 span.happy:2:11"
	if span != want {
		t.Errorf("wrong span: got %q, want %q", span, want)
	}
	start, _ := m.Span()
	if got := start.String(); got != "span.happy:1:1" {
		t.Errorf("module start = %s, want span.happy:1:1", got)
	}
}

func stripPos(err error) string {
	s := err.Error()
	if i := strings.Index(s, ": "); i >= 0 {
		s = s[i+len(": "):] // strip file:line:col
	}
	return s
}

// treeString prints a syntax node as a parenthesized tree.
// Idents and literals are printed as their values; positions
// and resolver decorations left at their zero values are omitted.
func treeString(n syntax.Node) string {
	var buf bytes.Buffer
	writeTree(&buf, reflect.ValueOf(n))
	return buf.String()
}

func writeTree(out *bytes.Buffer, x reflect.Value) {
	switch x.Kind() {
	case reflect.String, reflect.Int, reflect.Bool:
		fmt.Fprintf(out, "%v", x.Interface())
	case reflect.Ptr, reflect.Interface:
		if elem := x.Elem(); elem.Kind() == 0 {
			out.WriteString("nil")
		} else {
			writeTree(out, elem)
		}
	case reflect.Struct:
		switch v := x.Interface().(type) {
		case syntax.LiteralExpression:
			if s, ok := v.Value.(string); ok {
				out.WriteString(strconv.Quote(s))
			} else {
				fmt.Fprintf(out, "%v", v.Value)
			}
			return
		case syntax.IdentifierExpression:
			out.WriteString(v.Name)
			return
		case syntax.NullExpression:
			out.WriteString("null")
			return
		case syntax.VerbatimSection:
			out.WriteString(strconv.Quote(v.Text))
			return
		}
		fmt.Fprintf(out, "(%s", strings.TrimPrefix(x.Type().String(), "syntax."))
		for i, n := 0, x.NumField(); i < n; i++ {
			f := x.Field(i)
			if f.Type() == reflect.TypeOf(syntax.Position{}) {
				continue // skip positions
			}
			name := x.Type().Field(i).Name
			if name == "Path" {
				continue
			}
			switch f.Kind() {
			case reflect.Slice:
				if n := f.Len(); n > 0 {
					fmt.Fprintf(out, " %s=(", name)
					for i := 0; i < n; i++ {
						if i > 0 {
							out.WriteByte(' ')
						}
						writeTree(out, f.Index(i))
					}
					out.WriteByte(')')
				}
				continue
			case reflect.Ptr, reflect.Interface:
				if f.IsNil() {
					continue
				}
			case reflect.Uint8:
				if f.Uint() != 0 {
					fmt.Fprintf(out, " %s=%v", name, f.Interface())
				}
				continue
			case reflect.Bool:
				if f.Bool() {
					fmt.Fprintf(out, " %s", name)
				}
				continue
			}
			fmt.Fprintf(out, " %s=", name)
			writeTree(out, f)
		}
		fmt.Fprintf(out, ")")
	default:
		fmt.Fprintf(out, "%T", x.Interface())
	}
}
