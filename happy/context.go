// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.happytemplate.net/syntax"
)

// A RuntimeContext holds the state of one execution of a program:
// the global scope, the output writer stack and the call stack.
//
// A RuntimeContext must not be used by more than one goroutine at a
// time, but a Program may be run concurrently with distinct contexts.
type RuntimeContext struct {
	// Name is an optional name that describes the context, for debugging.
	Name string

	// Globals is the global scope. Running a program assigns its
	// functions and initialized global variables to Globals.
	// If nil, Run allocates it.
	Globals *Object

	// Out receives the text written while no writer is pushed.
	// If nil, that text is discarded.
	Out io.Writer

	// MaxCallDepth bounds the depth of nested function calls.
	// If zero, a default of 2000 applies.
	MaxCallDepth int

	writers []*strings.Builder
	frame   *frame // innermost frame
	depth   int    // number of function frames

	cancelReason atomic.Pointer[string]

	// locals holds arbitrary values belonging to the client.
	locals map[string]interface{}
}

// NewContext returns a context whose output is written to out.
func NewContext(out io.Writer) *RuntimeContext {
	return &RuntimeContext{Globals: NewObject(), Out: out}
}

// SetLocal sets the context-local value associated with the specified key.
func (ctx *RuntimeContext) SetLocal(key string, value interface{}) {
	if ctx.locals == nil {
		ctx.locals = make(map[string]interface{})
	}
	ctx.locals[key] = value
}

// Local returns the context-local value associated with the specified key.
func (ctx *RuntimeContext) Local(key string) interface{} {
	return ctx.locals[key]
}

// Cancel causes execution in ctx to fail at the next function call
// or loop iteration. It may be called from any goroutine. Only the
// first reason is kept.
func (ctx *RuntimeContext) Cancel(reason string) {
	ctx.cancelReason.CompareAndSwap(nil, &reason)
}

func (ctx *RuntimeContext) cancelled() error {
	if r := ctx.cancelReason.Load(); r != nil {
		return fmt.Errorf("execution cancelled: %s", *r)
	}
	return nil
}

// PushWriter begins a new capture of output. Text written until the
// matching PopWriter is returned by PopWriter rather than written to
// the enclosing writer.
func (ctx *RuntimeContext) PushWriter() {
	ctx.writers = append(ctx.writers, new(strings.Builder))
}

// PopWriter ends the innermost capture and returns its text.
// It panics if no writer was pushed.
func (ctx *RuntimeContext) PopWriter() string {
	n := len(ctx.writers)
	if n == 0 {
		panic("happy: PopWriter without PushWriter")
	}
	w := ctx.writers[n-1]
	ctx.writers[n-1] = nil
	ctx.writers = ctx.writers[:n-1]
	return w.String()
}

// Depth returns the number of pushed writers.
func (ctx *RuntimeContext) Depth() int { return len(ctx.writers) }

// WriteToTopWriter writes text to the innermost writer.
func (ctx *RuntimeContext) WriteToTopWriter(text string) error {
	if n := len(ctx.writers); n > 0 {
		ctx.writers[n-1].WriteString(text)
		return nil
	}
	if ctx.Out == nil {
		return nil
	}
	_, err := io.WriteString(ctx.Out, text)
	return err
}

// SafeWriteToTopWriter writes the output form of v to the innermost
// writer. Null writes nothing.
func (ctx *RuntimeContext) SafeWriteToTopWriter(v Value) error {
	return ctx.WriteToTopWriter(String(v))
}

// A CallFrame describes one active function call.
type CallFrame struct {
	Name string
	Pos  syntax.Position
}

func (fr CallFrame) String() string {
	return fmt.Sprintf("%s: in %s", fr.Pos, fr.Name)
}

// CallStack returns the active calls of the context, outermost first.
// The position of each frame is the current point of execution in
// that function.
func (ctx *RuntimeContext) CallStack() []CallFrame {
	var stack []CallFrame
	for fr := ctx.frame; fr != nil; fr = fr.caller {
		stack = append(stack, CallFrame{Name: fr.name(), Pos: fr.pos})
	}
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	return stack
}

func (ctx *RuntimeContext) maxDepth() int {
	if ctx.MaxCallDepth > 0 {
		return ctx.MaxCallDepth
	}
	return 2000
}
