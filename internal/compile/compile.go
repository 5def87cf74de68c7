// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compile defines the Happy code generator.
//
// Analyze runs the analysis passes of package resolve over a syntax
// tree and, if they report no errors, generates the IR of the module.
// Generation is a single post-order traversal: the IR of each node is
// assembled on a stack from the IR its children pushed, and each
// statement or expression leaves exactly one item for its parent.
// A few nodes leave nothing: parameters, load directives, index
// argument lists, member names, assignment targets that are plain
// names, and variable definitions without an initializer.
//
// The result is the Lambda of the module. Its one parameter is the
// runtime context; its body assigns the module's functions to the
// global scope, then runs the initializers of its global variables,
// then its remaining statements in order.
package compile // import "go.happytemplate.net/internal/compile"

import (
	"fmt"
	"os"

	"go.happytemplate.net/ir"
	"go.happytemplate.net/resolve"
	"go.happytemplate.net/syntax"
)

const debug = false // enables internal consistency checks

// Disassemble causes the IR of each module to be printed to stderr.
var Disassemble = false

// DebugInfo controls whether the generated IR records the source span of
// each operation, so that run-time errors can be reported at a position.
var DebugInfo = true

// Options controls Analyze.
type Options struct {
	// Env is the environment in which names are resolved.
	Env *resolve.Env

	// NoDebugInfo disables span recording for this module.
	NoDebugInfo bool
}

// An InternalError reports a violated invariant of the code generator.
// It indicates a bug in this package, not a problem with the module.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal compiler error: " + e.Msg }

func internalErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// Analyze resolves and checks the module m and generates its IR.
//
// If the module has errors, Analyze returns a resolve.ErrorList
// and no IR. If the generator fails, it returns an *InternalError.
func Analyze(m *syntax.Module, opts *Options) (fn *ir.Lambda, err error) {
	if opts == nil {
		opts = new(Options)
	}
	if err := resolve.Module(m, opts.Env); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			fn, err = nil, ie
		}
	}()
	fn = generate(m, DebugInfo && !opts.NoDebugInfo)

	if Disassemble {
		fmt.Fprintf(os.Stderr, "# %s\n", m.Path)
		ir.Fprint(os.Stderr, fn)
	}
	return fn, nil
}
