package compile

import "go.happytemplate.net/ir"

// A loopContext holds the jump targets of one loop.
type loopContext struct {
	brk, cont *ir.Target
}

// loopStack tracks the loops enclosing the statement being generated,
// innermost last.
type loopStack []loopContext

func (ls *loopStack) push() loopContext {
	lc := loopContext{
		brk:  &ir.Target{Name: "break"},
		cont: &ir.Target{Name: "continue"},
	}
	*ls = append(*ls, lc)
	return lc
}

func (ls *loopStack) pop() {
	if len(*ls) == 0 {
		panic(internalErrorf("loop context stack underflow"))
	}
	*ls = (*ls)[:len(*ls)-1]
}

// top returns the innermost loop. It is an internal error if there is
// none, as the checker rejects break and continue outside loops.
func (ls loopStack) top() loopContext {
	if len(ls) == 0 {
		panic(internalErrorf("break or continue outside a loop context"))
	}
	return ls[len(ls)-1]
}
