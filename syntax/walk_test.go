package syntax_test

import (
	"bytes"
	"fmt"
	"log"
	"reflect"
	"strings"
	"testing"

	"go.happytemplate.net/syntax"
)

func TestWalk(t *testing.T) {
	const src = `
function f(a) {
  for (x in a where x) { out x; }
}
def y = f([1]);
`
	m, err := syntax.Parse("hello.happy", src)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	var depth int
	syntax.Walk(m, func(n syntax.Node) bool {
		if n == nil {
			depth--
			return true
		}
		fmt.Fprintf(&buf, "%s%s\n",
			strings.Repeat("  ", depth),
			strings.TrimPrefix(reflect.TypeOf(n).String(), "*syntax."))
		depth++
		return true
	})
	got := buf.String()
	want := `
Module
  Function
    FunctionParameter
    StatementBlock
      ForStatement
        IdentifierExpression
        ForWhereClause
          IdentifierExpression
        StatementBlock
          OutputStatement
            IdentifierExpression
  DefStatement
    VariableDef
      FunctionCallExpression
        ListExpression
          LiteralExpression`
	got = strings.TrimSpace(got)
	want = strings.TrimSpace(want)
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

// countingVisitor records Before/After pairs and prunes templates.
type countingVisitor struct {
	before, after int
}

func (v *countingVisitor) Before(n syntax.Node) bool {
	v.before++
	_, isTemplate := n.(*syntax.AnonymousTemplate)
	return !isTemplate
}

func (v *countingVisitor) After(n syntax.Node) { v.after++ }

func TestVisitPrunes(t *testing.T) {
	m, err := syntax.Parse("prune.happy", `out <|a $b$ c|>, d;`)
	if err != nil {
		t.Fatal(err)
	}
	v := new(countingVisitor)
	syntax.Visit(m, v)
	// Module, OutputStatement, AnonymousTemplate (pruned), d.
	if v.before != 4 || v.after != 3 {
		t.Errorf("before=%d after=%d, want 4 and 3", v.before, v.after)
	}
}

// ExampleWalk demonstrates the use of Walk to
// enumerate the identifiers in a Happy source file
// containing a nonsense program with varied grammar.
func ExampleWalk() {
	const src = `
load "library";

function b(c, d) {
  def e = c[d] + f.g(h);
  return new i.J(-k);
}
out <|$l$|>;
`
	m, err := syntax.Parse("hello.happy", src)
	if err != nil {
		log.Fatal(err)
	}

	var idents []string
	syntax.Walk(m, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.IdentifierExpression:
			idents = append(idents, n.Name)
		case *syntax.FunctionCallExpression:
			idents = append(idents, n.Name)
		}
		return true
	})
	fmt.Println(strings.Join(idents, " "))

	// Output:
	// c d f g h i J k l
}
