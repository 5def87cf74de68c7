// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

import (
	"fmt"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/internal/compile"
	"go.happytemplate.net/ir"
	"go.happytemplate.net/resolve"
	"go.happytemplate.net/syntax"
)

// Options controls the compilation of a module.
type Options struct {
	// Predeclared holds values, beyond the Universe, that every run
	// of the program finds in its global scope.
	Predeclared StringDict

	// Catalog provides the namespaces named by load directives.
	Catalog catalog.Source

	// Load lists namespaces visible to the module in addition to
	// those it loads itself.
	Load []string

	// NoDebugInfo omits source positions from the generated code.
	// Run-time errors are then reported without a position.
	NoDebugInfo bool
}

func (opts *Options) isPredeclared(name string) bool {
	return opts.Predeclared.Has(name) || Universe.Has(name)
}

// A Program is a compiled Happy module.
//
// Programs are immutable, and may be run any number of times,
// concurrently if each run has its own RuntimeContext.
type Program struct {
	Filename    string
	predeclared StringDict
	lambda      *ir.Lambda
}

// Compile parses, analyzes and generates code for the module in the
// given file. src may be anything acceptable to syntax.Parse.
//
// Syntax errors are reported as a syntax.Error, and errors of
// analysis as a resolve.ErrorList.
func Compile(filename string, src interface{}, opts *Options) (*Program, error) {
	m, err := syntax.Parse(filename, src)
	if err != nil {
		return nil, err
	}
	return CompileModule(m, opts)
}

// CompileModule analyzes and generates code for an already parsed
// module. Analysis replaces the annotations of m, so compiling the
// same module again yields an equivalent program.
func CompileModule(m *syntax.Module, opts *Options) (*Program, error) {
	if opts == nil {
		opts = new(Options)
	}
	filename := m.Path
	env := &resolve.Env{
		IsPredeclared: opts.isPredeclared,
		Catalog:       opts.Catalog,
		Load:          opts.Load,
	}
	fn, err := compile.Analyze(m, &compile.Options{Env: env, NoDebugInfo: opts.NoDebugInfo})
	if err != nil {
		return nil, err
	}
	return &Program{Filename: filename, predeclared: opts.Predeclared, lambda: fn}, nil
}

// Lambda returns the generated code of the module.
func (p *Program) Lambda() *ir.Lambda { return p.lambda }

func (p *Program) String() string { return fmt.Sprintf("<program %s>", p.Filename) }

// Run executes the program in ctx. Predeclared and universal values
// are added to ctx.Globals unless it already has a member of the
// same name.
//
// A run-time error is reported as an *EvalError.
func (p *Program) Run(ctx *RuntimeContext) error {
	if ctx.Globals == nil {
		ctx.Globals = NewObject()
	}
	for _, d := range []StringDict{p.predeclared, Universe} {
		for _, name := range d.Keys() {
			if !ctx.Globals.Has(name) {
				ctx.Globals.SetField(name, d[name])
			}
		}
	}

	depth := len(ctx.writers)
	_, err := (&Function{lambda: p.lambda}).CallInternal(ctx, []Value{ctx})
	if len(ctx.writers) != depth {
		// Every PushWriter is paired with a PopWriter in a finally block.
		panic(fmt.Sprintf("happy: writer depth %d after run, want %d", len(ctx.writers), depth))
	}
	switch err.(type) {
	case nil, *EvalError:
		return err
	}
	return &EvalError{Msg: err.Error(), CallStack: ctx.CallStack(), cause: err}
}

// EntryPoint returns a function that runs the program.
func (p *Program) EntryPoint() func(*RuntimeContext) error { return p.Run }

// ExecFile compiles the module in the given file and runs it in ctx.
func ExecFile(ctx *RuntimeContext, filename string, src interface{}, opts *Options) error {
	prog, err := Compile(filename, src, opts)
	if err != nil {
		return err
	}
	return prog.Run(ctx)
}
