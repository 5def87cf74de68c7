// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

// This file defines the evaluator of IR trees.

import (
	"bytes"
	"fmt"

	"go.happytemplate.net/ir"
	"go.happytemplate.net/syntax"
)

const debug = false

// A frame holds the variables of a single call of a Lambda.
type frame struct {
	ctx    *RuntimeContext
	lambda *ir.Lambda
	vars   []Value         // parameters, then the other slots of lambda
	outer  *frame          // frame of the lexically enclosing lambda
	caller *frame          // frame of the calling function (or nil)
	pos    syntax.Position // current point of execution
}

func (fr *frame) name() string { return fr.lambda.Name }

// slot returns the address of the variable v, which belongs to the
// lambda of fr or of one of its lexically enclosing frames.
func (fr *frame) slot(v *ir.Variable) *Value {
	for f := fr; f != nil; f = f.outer {
		if f.lambda == v.Lambda {
			return &f.vars[v.Index]
		}
	}
	panic(fmt.Sprintf("happy: variable %s of %s is not in scope in %s", v.Name, v.Lambda.Name, fr.name()))
}

// An EvalError is a Happy evaluation error and its associated call stack.
type EvalError struct {
	Pos       syntax.Position
	Msg       string
	CallStack []CallFrame // outermost first
	cause     error
}

func (e *EvalError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return e.Msg
}

// Unwrap returns the error from which e was made, if any.
func (e *EvalError) Unwrap() error { return e.cause }

// Backtrace returns a user-friendly error message describing the stack
// of calls that led to this error.
func (e *EvalError) Backtrace() string {
	var buf bytes.Buffer
	buf.WriteString("Traceback (most recent call last):\n")
	for _, fr := range e.CallStack {
		fmt.Fprintf(&buf, "  %s\n", fr)
	}
	fmt.Fprintf(&buf, "Error: %s", e.Msg)
	return buf.String()
}

// A jump is the error by which a Goto transfers control to the
// enclosing construct that owns its target.
type jump struct {
	target *ir.Target
	value  Value
}

func (j *jump) Error() string { return fmt.Sprintf("jump to %s outside its block", j.target) }

// errorAt converts err into an *EvalError at pos, unless it is
// already one or is a jump.
func (fr *frame) errorAt(pos syntax.Position, err error) error {
	switch err.(type) {
	case nil, *EvalError, *jump:
		return err
	}
	fr.pos = pos
	return &EvalError{Pos: pos, Msg: err.Error(), CallStack: fr.ctx.CallStack(), cause: err}
}

func (fn *Function) CallInternal(ctx *RuntimeContext, args []Value) (Value, error) {
	if debug {
		fmt.Printf("call of %s %v\n", fn.Name(), args)
	}
	if nparams := len(fn.lambda.Params); len(args) != nparams {
		return nil, fmt.Errorf("function %s takes %d argument(s) (%d given)", fn.Name(), nparams, len(args))
	}
	if err := ctx.cancelled(); err != nil {
		return nil, err
	}
	if ctx.depth >= ctx.maxDepth() {
		return nil, fmt.Errorf("call of %s exceeds the maximum call depth of %d", fn.Name(), ctx.maxDepth())
	}

	fr := &frame{
		ctx:    ctx,
		lambda: fn.lambda,
		vars:   make([]Value, fn.lambda.NumVars),
		outer:  fn.env,
		caller: ctx.frame,
	}
	copy(fr.vars, args)
	ctx.frame = fr
	ctx.depth++
	v, err := fr.eval(fn.lambda.Body)
	ctx.depth--
	ctx.frame = fr.caller

	if j, ok := err.(*jump); ok {
		return nil, fmt.Errorf("internal error: jump to %s escaped function %s", j.target, fn.Name())
	}
	return v, err
}

func (fr *frame) eval(n ir.Node) (Value, error) {
	switch n := n.(type) {
	case *ir.Constant:
		return n.Value, nil

	case *ir.Empty:
		return nil, nil

	case *ir.Block:
		return fr.block(n)

	case *ir.Var:
		return *fr.slot(n.V), nil

	case *ir.Assign:
		x, err := fr.eval(n.X)
		if err != nil {
			return nil, err
		}
		*fr.slot(n.V) = x
		return x, nil

	case *ir.Lambda:
		return &Function{lambda: n, env: fr}, nil

	case *ir.If:
		cond, err := fr.cond(n.Cond)
		if err != nil {
			return nil, err
		}
		if cond {
			return fr.eval(n.Then)
		} else if n.Else != nil {
			return fr.eval(n.Else)
		}
		return nil, nil

	case *ir.Not:
		b, err := fr.cond(n.X)
		return !b, err

	case *ir.ToBool:
		x, err := fr.eval(n.X)
		if err != nil {
			return nil, err
		}
		return Truth(x), nil

	case *ir.AndAlso:
		b, err := fr.cond(n.X)
		if err != nil || !b {
			return false, err
		}
		return fr.cond(n.Y)

	case *ir.OrElse:
		b, err := fr.cond(n.X)
		if err != nil || b {
			return b, err
		}
		return fr.cond(n.Y)

	case *ir.Loop:
		return fr.loop(n)

	case *ir.Label:
		if n.Default != nil {
			return fr.eval(n.Default)
		}
		return nil, nil

	case *ir.Goto:
		var v Value
		if n.Value != nil {
			var err error
			if v, err = fr.eval(n.Value); err != nil {
				return nil, err
			}
		}
		return nil, &jump{n.Target, v}

	case *ir.Switch:
		return fr.switchStmt(n)

	case *ir.TryFinally:
		v, err := fr.eval(n.Body)
		if _, ferr := fr.eval(n.Finally); ferr != nil {
			return nil, ferr
		}
		return v, err

	case *ir.ContextCall:
		return fr.contextCall(n)

	case *ir.Dynamic:
		args, err := fr.evalList(n.Args)
		if err != nil {
			return nil, err
		}
		switch n.Site.Kind {
		case ir.Invoke, ir.Call, ir.Create:
			fr.pos = n.Site.Pos
		}
		return dispatch(fr.ctx, n.Site, args)

	case *ir.Iterate:
		x, err := fr.eval(n.X)
		if err != nil {
			return nil, err
		}
		return newEnumerator(x)

	case *ir.MoveNext:
		e, err := fr.enumerator(n.Enum)
		if err != nil {
			return nil, err
		}
		return e.moveNext()

	case *ir.Current:
		e, err := fr.enumerator(n.Enum)
		if err != nil {
			return nil, err
		}
		return e.current, nil

	case *ir.Where:
		x, err := fr.eval(n.X)
		if err != nil {
			return nil, err
		}
		pred, err := fr.eval(n.Pred)
		if err != nil {
			return nil, err
		}
		return NewWhereIterable(fr.ctx, x, pred)

	case *ir.List:
		elems, err := fr.evalList(n.Elems)
		if err != nil {
			return nil, err
		}
		return NewList(elems), nil

	case *ir.Debug:
		fr.pos = n.Start
		v, err := fr.eval(n.X)
		if err != nil {
			return nil, fr.errorAt(n.Start, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("internal error: unexpected IR node %T", n)
}

func (fr *frame) evalList(list []ir.Node) ([]Value, error) {
	if len(list) == 0 {
		return nil, nil
	}
	values := make([]Value, len(list))
	for i, x := range list {
		v, err := fr.eval(x)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// cond evaluates a node that yields a bool.
func (fr *frame) cond(n ir.Node) (bool, error) {
	x, err := fr.eval(n)
	if err != nil {
		return false, err
	}
	b, ok := x.(bool)
	if !ok {
		return false, fmt.Errorf("internal error: condition yields %s, want bool", TypeName(x))
	}
	return b, nil
}

func (fr *frame) block(b *ir.Block) (Value, error) {
	for _, v := range b.Vars {
		*fr.slot(v) = nil
	}
	var result Value
	for i := 0; i < len(b.List); i++ {
		v, err := fr.eval(b.List[i])
		if err != nil {
			j, ok := err.(*jump)
			if !ok {
				return nil, err
			}
			k := labelIndex(b.List, j.target)
			if k < 0 {
				return nil, err
			}
			// Resume after the label; its value is the jump's.
			i, result = k, j.value
			continue
		}
		result = v
	}
	return result, nil
}

func labelIndex(list []ir.Node, t *ir.Target) int {
	for i, n := range list {
		if l, ok := ir.Unwrap(n).(*ir.Label); ok && l.Target == t {
			return i
		}
	}
	return -1
}

func (fr *frame) loop(l *ir.Loop) (Value, error) {
	for {
		if err := fr.ctx.cancelled(); err != nil {
			return nil, err
		}
		_, err := fr.eval(l.Body)
		if err == nil {
			continue
		}
		if j, ok := err.(*jump); ok {
			if j.target == l.Break {
				return nil, nil
			}
			if l.Continue != nil && j.target == l.Continue {
				continue
			}
		}
		return nil, err
	}
}

func (fr *frame) switchStmt(s *ir.Switch) (Value, error) {
	x, err := fr.eval(s.X)
	if err != nil {
		return nil, err
	}
	for _, c := range s.Cases {
		for _, vn := range c.Values {
			v, err := fr.eval(vn)
			if err != nil {
				return nil, err
			}
			eq, err := dispatch(fr.ctx, s.Equal, []Value{x, v})
			if err != nil {
				return nil, err
			}
			if Truth(eq) {
				return fr.eval(c.Body)
			}
		}
	}
	if s.Default != nil {
		return fr.eval(s.Default)
	}
	return nil, nil
}

func (fr *frame) contextCall(c *ir.ContextCall) (Value, error) {
	x, err := fr.eval(c.Ctx)
	if err != nil {
		return nil, err
	}
	ctx, ok := x.(*RuntimeContext)
	if !ok {
		return nil, fmt.Errorf("internal error: %s of %s", c.Method, TypeName(x))
	}
	args, err := fr.evalList(c.Args)
	if err != nil {
		return nil, err
	}

	switch c.Method {
	case ir.PushWriter:
		ctx.PushWriter()
		return nil, nil

	case ir.PopWriter:
		if ctx.Depth() == 0 {
			return nil, fmt.Errorf("internal error: writer stack underflow")
		}
		return ctx.PopWriter(), nil

	case ir.WriteToTopWriter:
		text, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("internal error: writing %s as text", TypeName(args[0]))
		}
		return nil, ctx.WriteToTopWriter(text)

	case ir.SafeWriteToTopWriter:
		return nil, ctx.SafeWriteToTopWriter(args[0])

	case ir.GetGlobals:
		if ctx.Globals == nil {
			ctx.Globals = NewObject()
		}
		return ctx.Globals, nil
	}
	return nil, fmt.Errorf("internal error: unknown context method %d", c.Method)
}

func (fr *frame) enumerator(n ir.Node) (*enumerator, error) {
	x, err := fr.eval(n)
	if err != nil {
		return nil, err
	}
	e, ok := x.(*enumerator)
	if !ok {
		return nil, fmt.Errorf("internal error: %s is not an enumerator", TypeName(x))
	}
	return e, nil
}

// Call calls the function fn with the specified arguments.
// fn may be a Happy function, a Builtin, or a Go function value.
func Call(ctx *RuntimeContext, fn Value, args ...Value) (Value, error) {
	switch fn := fn.(type) {
	case Callable:
		return fn.CallInternal(ctx, args)
	case nil:
		return nil, fmt.Errorf("invalid call of null")
	}
	if f, ok := goFuncOf(fn); ok {
		return f.call(ctx, args)
	}
	return nil, fmt.Errorf("invalid call of non-function (%s)", TypeName(fn))
}
