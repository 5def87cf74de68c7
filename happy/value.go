// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package happy provides the Happy runtime: the value model, the
// runtime context with its writer stack, an evaluator for the IR
// produced by the code generator, and the dispatcher that resolves
// dynamic operations against the run-time types of their operands.
//
// Happy values are ordinary Go values:
//
//	null        nil
//	bool        bool
//	int         int64
//	float       float64
//	string      string
//	list        *List
//	object      *Object
//	function    *Function (compiled) or *Builtin (Go)
//	module      *Module
//	namespace   *catalog.Namespace
//	type        catalog.Type
//	message     proto.Message
//
// Any other Go value may be passed to a program by its host; its
// fields, methods and elements are reached by reflection.
package happy // import "go.happytemplate.net/happy"

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/ir"
	"google.golang.org/protobuf/proto"
)

// Value is the type of a Happy value. See the package documentation
// for the Go representation of each kind of value.
type Value = interface{}

// A HasAttrs value has fields or methods that may be read by a
// member access expression x.f.
//
// Attr returns a NoSuchAttrError if the value has no attribute
// of that name.
type HasAttrs interface {
	Attr(name string) (Value, error)
	AttrNames() []string
}

// A HasSetField value has fields that may be written by an
// assignment x.f = y.
type HasSetField interface {
	HasAttrs
	SetField(name string, v Value) error
}

// A NoSuchAttrError may be returned by an implementation of
// HasAttrs.Attr or HasSetField.SetField to indicate that the
// field does not exist.
type NoSuchAttrError string

func (e NoSuchAttrError) Error() string { return string(e) }

// A Callable value f may be the operand of a call expression f(x).
type Callable interface {
	Name() string
	CallInternal(ctx *RuntimeContext, args []Value) (Value, error)
}

// An Iterable abstracts a sequence of values. Iterable values may be
// the operand of a for statement.
type Iterable interface {
	Iterate() Iterator
}

// An Iterator provides a sequence of values to the caller.
//
// The caller must call Done when the iterator is no longer needed.
//
// Example usage:
//
//	iter := iterable.Iterate()
//	defer iter.Done()
//	var x Value
//	for iter.Next(&x) {
//		...
//	}
type Iterator interface {
	// If the iterator is exhausted, Next returns false.
	// Otherwise it sets *p to the current element of the sequence,
	// advances the iterator, and returns true.
	Next(p *Value) bool
	Done()
}

// An Indexable is a sequence of known length that supports efficient
// random access.
type Indexable interface {
	Len() int
	Index(i int) Value // requires 0 <= i < Len()
}

// A HasSetIndex is an Indexable value whose elements may be assigned
// by x[i] = y.
type HasSetIndex interface {
	Indexable
	SetIndex(index int, v Value) error
}

var (
	_ HasSetIndex = (*List)(nil)
	_ Iterable    = (*List)(nil)
	_ HasSetField = (*Object)(nil)
	_ Callable    = (*Function)(nil)
	_ Callable    = (*Builtin)(nil)
	_ HasAttrs    = (*Module)(nil)
)

// A List represents a Happy list value.
type List struct {
	elems []Value
}

// NewList returns a list containing the specified elements.
// Callers should not subsequently modify elems.
func NewList(elems []Value) *List { return &List{elems: elems} }

func (l *List) Len() int          { return len(l.elems) }
func (l *List) Index(i int) Value { return l.elems[i] }
func (l *List) Iterate() Iterator { return &listIterator{l: l} }
func (l *List) String() string    { return Repr(l) }
func (l *List) Append(v Value)    { l.elems = append(l.elems, v) }
func (l *List) Elems() []Value    { return l.elems }
func (l *List) Clear()            { l.elems = l.elems[:0] }
func (l *List) SetIndex(i int, v Value) error {
	l.elems[i] = v
	return nil
}

type listIterator struct {
	l *List
	i int
}

func (it *listIterator) Next(p *Value) bool {
	if it.i < it.l.Len() {
		*p = it.l.elems[it.i]
		it.i++
		return true
	}
	return false
}

func (it *listIterator) Done() {}

// An Object is a record of named fields, kept in insertion order.
// Fields are added by assignment. The global scope of a module
// is an Object.
type Object struct {
	names  []string
	fields map[string]Value
}

// NewObject returns a new empty object.
func NewObject() *Object { return &Object{fields: make(map[string]Value)} }

// Has reports whether the object has a field of the given name.
func (o *Object) Has(name string) bool {
	_, ok := o.fields[name]
	return ok
}

// Get returns the named field, and whether it exists.
func (o *Object) Get(name string) (Value, bool) {
	v, ok := o.fields[name]
	return v, ok
}

func (o *Object) Attr(name string) (Value, error) {
	v, ok := o.fields[name]
	if !ok {
		return nil, NoSuchAttrError(fmt.Sprintf("object has no field %s%s", name, didYouMean(name, o.names)))
	}
	return v, nil
}

// AttrNames returns the names of the fields in the order they were added.
func (o *Object) AttrNames() []string { return o.names }

func (o *Object) SetField(name string, v Value) error {
	if _, ok := o.fields[name]; !ok {
		o.names = append(o.names, name)
	}
	o.fields[name] = v
	return nil
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.names) }

func (o *Object) String() string { return Repr(o) }

// A Function is a function compiled from Happy source, closed over
// the frames of its enclosing functions.
type Function struct {
	lambda *ir.Lambda
	env    *frame
}

func (fn *Function) Name() string   { return fn.lambda.Name }
func (fn *Function) String() string { return fmt.Sprintf("<function %s>", fn.Name()) }

// NumParams returns the number of parameters of the function.
func (fn *Function) NumParams() int { return len(fn.lambda.Params) }

// Param returns the name of the i'th parameter.
func (fn *Function) Param(i int) string { return fn.lambda.Params[i].Name }

// A Builtin is a function implemented in Go.
type Builtin struct {
	name string
	fn   func(ctx *RuntimeContext, b *Builtin, args []Value) (Value, error)
	recv Value
}

// NewBuiltin returns a new Builtin value with the specified name
// and implementation. It compares unequal with all other values.
func NewBuiltin(name string, fn func(ctx *RuntimeContext, b *Builtin, args []Value) (Value, error)) *Builtin {
	return &Builtin{name: name, fn: fn}
}

// BindReceiver returns a new Builtin value representing a method
// closure, that is, a built-in function bound to a receiver value.
//
// In the example below, the value of f is the string.upper
// built-in method bound to the receiver value "abc":
//
//	f = "abc".upper;
//	f(); // "ABC"
func (b *Builtin) BindReceiver(recv Value) *Builtin {
	return &Builtin{name: b.name, fn: b.fn, recv: recv}
}

func (b *Builtin) Name() string { return b.name }

// Receiver returns the receiver of a bound method, or nil.
func (b *Builtin) Receiver() Value { return b.recv }

func (b *Builtin) String() string {
	if b.recv != nil {
		return fmt.Sprintf("<built-in method %s of %s value>", b.name, TypeName(b.recv))
	}
	return fmt.Sprintf("<built-in function %s>", b.name)
}

func (b *Builtin) CallInternal(ctx *RuntimeContext, args []Value) (Value, error) {
	return b.fn(ctx, b, args)
}

// A Module is a named collection of values, such as a library
// installed as a predeclared global.
type Module struct {
	Name    string
	Members StringDict
}

func (m *Module) Attr(name string) (Value, error) {
	v, ok := m.Members[name]
	if !ok {
		return nil, NoSuchAttrError(fmt.Sprintf("module %s has no member %s%s", m.Name, name, didYouMean(name, m.Members.Keys())))
	}
	return v, nil
}

func (m *Module) AttrNames() []string { return m.Members.Keys() }
func (m *Module) String() string      { return fmt.Sprintf("<module %q>", m.Name) }

// A StringDict is a mapping from names to values, such as the
// predeclared globals of a program.
type StringDict map[string]Value

// Keys returns a new sorted slice of d's keys.
func (d StringDict) Keys() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the dictionary contains the specified key.
func (d StringDict) Has(key string) bool { _, ok := d[key]; return ok }

func (d StringDict) String() string {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, name := range d.Keys() {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		writeValue(buf, d[name], nil)
	}
	buf.WriteByte('}')
	return buf.String()
}

// TypeName returns a short description of the type of x.
func TypeName(x Value) string {
	switch x := x.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case *List:
		return "list"
	case *Object:
		return "object"
	case *Function:
		return "function"
	case *Builtin:
		if x.recv != nil {
			return "builtin_method"
		}
		return "builtin_function"
	case *Module:
		return "module"
	case *catalog.Namespace:
		return "namespace"
	case catalog.Type:
		return "type"
	case proto.Message:
		return "proto.Message<" + string(x.ProtoReflect().Descriptor().FullName()) + ">"
	case interface{ Type() string }:
		return x.Type()
	}
	return "go." + reflect.TypeOf(x).String()
}

// Truth returns the truth value of x. Null, false, zero numbers,
// empty strings and empty sequences are false; all else is true.
func Truth(x Value) bool {
	switch x := x.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case Indexable:
		return x.Len() > 0
	case *Object:
		return true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return false
		}
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return v.Len() > 0
	}
	return true
}

// String returns the output form of x: the text that an output
// statement writes for it. Null is written as the empty string and
// strings are written without quotation.
func String(x Value) string {
	if s, ok := ir.FormatConstant(x); ok {
		return s
	}
	return Repr(x)
}

// Repr returns the literal form of x, in which strings are quoted.
func Repr(x Value) string {
	buf := new(bytes.Buffer)
	writeValue(buf, x, nil)
	return buf.String()
}

// writeValue writes x to out. path is used to detect cycles.
func writeValue(out *bytes.Buffer, x Value, path []Value) {
	switch x := x.(type) {
	case nil:
		out.WriteString("null")
	case string:
		out.WriteString(strconv.Quote(x))
	case *List:
		if pathContains(path, x) {
			out.WriteString("[...]")
			return
		}
		out.WriteByte('[')
		for i, elem := range x.elems {
			if i > 0 {
				out.WriteString(", ")
			}
			writeValue(out, elem, append(path, x))
		}
		out.WriteByte(']')
	case *Object:
		if pathContains(path, x) {
			out.WriteString("{...}")
			return
		}
		out.WriteByte('{')
		for i, name := range x.names {
			if i > 0 {
				out.WriteString(", ")
			}
			out.WriteString(name)
			out.WriteString(": ")
			writeValue(out, x.fields[name], append(path, x))
		}
		out.WriteByte('}')
	case proto.Message:
		writeMessage(out, x)
	default:
		if s, ok := ir.FormatConstant(x); ok {
			out.WriteString(s)
		} else if s, ok := x.(fmt.Stringer); ok {
			out.WriteString(s.String())
		} else {
			fmt.Fprintf(out, "%v", x)
		}
	}
}

func pathContains(path []Value, x Value) bool {
	for _, y := range path {
		if x == y {
			return true
		}
	}
	return false
}
