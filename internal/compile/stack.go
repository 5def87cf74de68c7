package compile

import (
	"go.happytemplate.net/ir"
	"go.happytemplate.net/syntax"
)

// A stack assembles IR in post order. Each entry remembers the syntax
// node it was generated for, so that pop can attach the node's span.
type stack struct {
	entries []entry
	debug   bool // wrap popped items in ir.Debug
}

type entry struct {
	node syntax.Node
	x    ir.Node
}

func (s *stack) push(n syntax.Node, x ir.Node) {
	s.entries = append(s.entries, entry{n, x})
}

func (s *stack) len() int { return len(s.entries) }

// pop removes the most recent entry and returns its IR tagged with
// the span of its node.
func (s *stack) pop() ir.Node {
	return s.tag(s.take())
}

// popRaw is like pop but never attaches a span.
func (s *stack) popRaw() ir.Node {
	return s.take().x
}

// popN removes the n most recent entries and returns them in the
// order they were pushed.
func (s *stack) popN(n int) []ir.Node {
	if n > len(s.entries) {
		panic(internalErrorf("assembly stack underflow: pop %d of %d", n, len(s.entries)))
	}
	base := len(s.entries) - n
	res := make([]ir.Node, n)
	for i, e := range s.entries[base:] {
		res[i] = s.tag(e)
	}
	s.entries = s.entries[:base]
	return res
}

func (s *stack) take() entry {
	if len(s.entries) == 0 {
		panic(internalErrorf("assembly stack underflow"))
	}
	e := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return e
}

func (s *stack) tag(e entry) ir.Node {
	if !s.debug || e.node == nil {
		return e.x
	}
	if _, ok := e.x.(*ir.Debug); ok {
		return e.x
	}
	start, end := e.node.Span()
	if !start.IsValid() {
		return e.x
	}
	return &ir.Debug{Start: start, End: end, X: e.x}
}
