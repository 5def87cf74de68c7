// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ir defines the executable tree produced by the Happy code
// generator.
//
// An IR tree is a lowered form of the syntax tree: statements become
// blocks, conditionals, loops and labeled jumps; every operation whose
// meaning depends on the run-time type of its operands becomes a Dynamic
// node carrying a CallSite. The tree is rooted at the Lambda of a
// module, whose single parameter is the runtime context.
//
// IR trees are immutable once built, except for the inline caches of
// their call sites, which are safe for concurrent use.
package ir // import "go.happytemplate.net/ir"

import "go.happytemplate.net/syntax"

// A Node is a node of an IR tree.
type Node interface {
	irNode()
}

func (*Constant) irNode()    {}
func (*Empty) irNode()       {}
func (*Block) irNode()       {}
func (*Var) irNode()         {}
func (*Assign) irNode()      {}
func (*Lambda) irNode()      {}
func (*If) irNode()          {}
func (*Not) irNode()         {}
func (*ToBool) irNode()      {}
func (*AndAlso) irNode()     {}
func (*OrElse) irNode()      {}
func (*Loop) irNode()        {}
func (*Label) irNode()       {}
func (*Goto) irNode()        {}
func (*Switch) irNode()      {}
func (*Case) irNode()        {}
func (*TryFinally) irNode()  {}
func (*ContextCall) irNode() {}
func (*Dynamic) irNode()     {}
func (*Iterate) irNode()     {}
func (*MoveNext) irNode()    {}
func (*Current) irNode()     {}
func (*Where) irNode()       {}
func (*List) irNode()        {}
func (*Debug) irNode()       {}

// A Constant is a value known at compile time: nil, a bool, an int64,
// a float64, a string, or a catalog namespace.
type Constant struct {
	Value interface{}
}

// Empty is a no-op whose value is null.
type Empty struct{}

// A Block evaluates List in order. Its value is that of the last
// element, or null if List is empty. On entry the Vars are reset
// to null.
//
// A Goto to a Label that is an element of List resumes execution
// at that element.
type Block struct {
	Vars []*Variable
	List []Node
}

// A Variable is a slot in the frame of the Lambda that owns it.
type Variable struct {
	Name   string
	Index  int
	Lambda *Lambda
}

func (v *Variable) String() string { return v.Name }

// A Var reads a variable.
type Var struct {
	V *Variable
}

// An Assign stores the value of X in a variable. Its value is that of X.
type Assign struct {
	V *Variable
	X Node
}

// A Lambda is a function literal. Evaluating a Lambda yields a function
// value that closes over the frames of the enclosing lambdas.
//
// The first len(Params) slots of a Lambda's frame hold its arguments;
// NumVars is the total number of slots.
type Lambda struct {
	Name    string
	Params  []*Variable
	Body    Node
	NumVars int
}

// NewLambda returns a lambda with no parameters and no body.
func NewLambda(name string) *Lambda {
	return &Lambda{Name: name}
}

// AddParam adds a parameter to fn. Parameters must be added before
// any other variable.
func (fn *Lambda) AddParam(name string) *Variable {
	if fn.NumVars != len(fn.Params) {
		panic("ir: AddParam after NewVar")
	}
	v := fn.NewVar(name)
	fn.Params = append(fn.Params, v)
	return v
}

// NewVar allocates a new frame slot of fn.
func (fn *Lambda) NewVar(name string) *Variable {
	v := &Variable{Name: name, Index: fn.NumVars, Lambda: fn}
	fn.NumVars++
	return v
}

// An If evaluates Then if Cond is true and otherwise Else, which may be nil.
// Cond must yield a bool.
type If struct {
	Cond Node
	Then Node
	Else Node
}

// Not negates a bool.
type Not struct {
	X Node
}

// ToBool converts any value to a bool by its truth value.
type ToBool struct {
	X Node
}

// AndAlso is the short-circuit conjunction of two bools.
type AndAlso struct {
	X, Y Node
}

// OrElse is the short-circuit disjunction of two bools.
type OrElse struct {
	X, Y Node
}

// A Target is the destination of a jump.
// Targets are compared by identity; Name is for printing.
type Target struct {
	Name string
}

func (t *Target) String() string { return t.Name }

// A Loop evaluates Body repeatedly until a jump to Break leaves it.
// A jump to Continue, if non-nil, starts the next repetition.
// The value of a Loop is null.
type Loop struct {
	Body     Node
	Break    *Target
	Continue *Target
}

// A Label marks the position of Target within a Block. Reached in
// sequence its value is that of Default (null if nil); reached by a
// jump its value is the value carried by the Goto.
type Label struct {
	Target  *Target
	Default Node
}

// A Goto transfers control to Target, carrying the value of Value
// (null if nil).
type Goto struct {
	Target *Target
	Value  Node
}

// A Switch evaluates X once and then the values of each Case in turn,
// comparing them with X by calling Equal. The Body of the first case
// with an equal value is evaluated; if none matches, Default (which may
// be nil) is evaluated. There must be at least one case.
type Switch struct {
	X       Node
	Cases   []*Case
	Default Node
	Equal   *CallSite
}

// A Case is one clause of a Switch.
type Case struct {
	Values []Node
	Body   Node
}

// A TryFinally evaluates Body, then Finally on every exit from Body,
// including jumps and errors.
type TryFinally struct {
	Body    Node
	Finally Node
}

// A ContextMethod is an operation of the runtime context.
type ContextMethod uint8

const (
	PushWriter           ContextMethod = iota // begin capturing output
	PopWriter                                 // end capturing output; value is the captured text
	WriteToTopWriter                          // write a string
	SafeWriteToTopWriter                      // write any value in its output form
	GetGlobals                                // value is the global scope record
)

var methodNames = [...]string{
	PushWriter:           "PushWriter",
	PopWriter:            "PopWriter",
	WriteToTopWriter:     "WriteToTopWriter",
	SafeWriteToTopWriter: "SafeWriteToTopWriter",
	GetGlobals:           "GetGlobals",
}

func (m ContextMethod) String() string { return methodNames[m] }

// A ContextCall calls a method of the runtime context, which is the
// value of Ctx.
type ContextCall struct {
	Ctx    Node
	Method ContextMethod
	Args   []Node
}

// A Dynamic is an operation resolved at run time against the types of
// its operands. The layout of Args depends on Site.Kind; see Kind.
type Dynamic struct {
	Site *CallSite
	Args []Node
}

// An Iterate yields an enumerator over the elements of an iterable value.
type Iterate struct {
	X Node
}

// A MoveNext advances an enumerator and yields whether it has an element.
type MoveNext struct {
	Enum Node
}

// A Current yields the element at which an enumerator stands.
type Current struct {
	Enum Node
}

// A Where yields an iterable over the elements of X for which the
// function Pred returns a true value.
type Where struct {
	X    Node
	Pred Node
}

// A List constructs a new list.
type List struct {
	Elems []Node
}

// A Debug associates a source span with X. Errors arising in X that
// are not already positioned are reported at Start.
type Debug struct {
	Start, End syntax.Position
	X          Node
}

// Unwrap returns x without any Debug wrappers.
func Unwrap(x Node) Node {
	for {
		d, ok := x.(*Debug)
		if !ok {
			return x
		}
		x = d.X
	}
}
