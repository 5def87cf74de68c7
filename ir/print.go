package ir

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Fprint writes an indented rendering of the IR tree n to w,
// one compound node per line.
func Fprint(w io.Writer, n Node) error {
	p := &printer{indent: true}
	p.node(n)
	p.buf.WriteByte('\n')
	_, err := w.Write(p.buf.Bytes())
	return err
}

// String returns a rendering of the IR tree n on a single line,
// in the form of an s-expression:
//
//	(Block [x] (Assign x (BinaryOp + 1 2)) (SafeWriteToTopWriter ctx x))
func String(n Node) string {
	p := new(printer)
	p.node(n)
	return p.buf.String()
}

type printer struct {
	buf    bytes.Buffer
	indent bool
	depth  int
}

func (p *printer) node(n Node) {
	switch n := n.(type) {
	case nil:
		p.buf.WriteString("<nil>")
	case *Constant:
		p.buf.WriteString(constantString(n.Value))
	case *Var:
		p.buf.WriteString(n.V.Name)
	case *Empty:
		p.buf.WriteString("(Empty)")
	case *Block:
		var atoms []string
		if len(n.Vars) > 0 {
			atoms = append(atoms, varList(n.Vars))
		}
		p.compound("Block", atoms, n.List...)
	case *Assign:
		p.compound("Assign", []string{n.V.Name}, n.X)
	case *Lambda:
		p.compound("Lambda", []string{n.Name, varList(n.Params)}, n.Body)
	case *If:
		p.compound("If", nil, nonNil(n.Cond, n.Then, n.Else)...)
	case *Not:
		p.compound("Not", nil, n.X)
	case *ToBool:
		p.compound("ToBool", nil, n.X)
	case *AndAlso:
		p.compound("AndAlso", nil, n.X, n.Y)
	case *OrElse:
		p.compound("OrElse", nil, n.X, n.Y)
	case *Loop:
		atoms := []string{n.Break.Name}
		if n.Continue != nil {
			atoms = append(atoms, n.Continue.Name)
		}
		p.compound("Loop", atoms, n.Body)
	case *Label:
		p.compound("Label", []string{n.Target.Name}, nonNil(n.Default)...)
	case *Goto:
		p.compound("Goto", []string{n.Target.Name}, nonNil(n.Value)...)
	case *Switch:
		children := []Node{n.X}
		for _, c := range n.Cases {
			children = append(children, c)
		}
		if n.Default != nil {
			children = append(children, &defaultClause{n.Default})
		}
		p.compound("Switch", nil, children...)
	case *Case:
		p.compound("Case", nil, append([]Node{&group{n.Values}}, n.Body)...)
	case *defaultClause:
		p.compound("Default", nil, n.body)
	case *group:
		p.compound("", nil, n.list...)
	case *TryFinally:
		p.compound("TryFinally", nil, n.Body, n.Finally)
	case *ContextCall:
		p.compound(n.Method.String(), nil, append([]Node{n.Ctx}, n.Args...)...)
	case *Dynamic:
		p.compound(n.Site.String(), nil, n.Args...)
	case *Iterate:
		p.compound("Iterate", nil, n.X)
	case *MoveNext:
		p.compound("MoveNext", nil, n.Enum)
	case *Current:
		p.compound("Current", nil, n.Enum)
	case *Where:
		p.compound("Where", nil, n.X, n.Pred)
	case *List:
		p.compound("List", nil, n.Elems...)
	case *Debug:
		p.compound("Debug", []string{fmt.Sprintf("%d:%d", n.Start.Line, n.Start.Col)}, n.X)
	default:
		fmt.Fprintf(&p.buf, "<%T>", n)
	}
}

// compound prints (head atoms... children...).
func (p *printer) compound(head string, atoms []string, children ...Node) {
	p.buf.WriteByte('(')
	p.buf.WriteString(head)
	for i, a := range atoms {
		if i > 0 || head != "" {
			p.buf.WriteByte(' ')
		}
		p.buf.WriteString(a)
	}
	p.depth++
	for i, c := range children {
		if p.indent && !simple(c) {
			p.buf.WriteByte('\n')
			p.buf.WriteString(strings.Repeat("  ", p.depth))
		} else if i > 0 || head != "" || len(atoms) > 0 {
			p.buf.WriteByte(' ')
		}
		p.node(c)
	}
	p.depth--
	p.buf.WriteByte(')')
}

// Printing-only pseudo-nodes.
type (
	defaultClause struct{ body Node }
	group         struct{ list []Node }
)

func (*defaultClause) irNode() {}
func (*group) irNode()         {}

func simple(n Node) bool {
	switch n.(type) {
	case *Constant, *Var, *Empty:
		return true
	}
	return false
}

func nonNil(nodes ...Node) []Node {
	res := nodes[:0:0]
	for _, n := range nodes {
		if n != nil {
			res = append(res, n)
		}
	}
	return res
}

func varList(vars []*Variable) string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return "[" + strings.Join(names, " ") + "]"
}

func constantString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	}
	if s, ok := FormatConstant(v); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("<%T>", v)
}
