// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

// This file defines the built-in functions and methods.

import (
	"fmt"
	"reflect"
	"strings"
)

// Universe defines the set of universal built-ins, which are
// predeclared members of the global scope of every program.
var Universe StringDict

func init() {
	Universe = StringDict{
		"join":  NewBuiltin("join", join),
		"keys":  NewBuiltin("keys", keys),
		"len":   NewBuiltin("len", length),
		"lower": NewBuiltin("lower", stringFunc("lower", strings.ToLower)),
		"range": NewBuiltin("range", rangeFunc),
		"repr":  NewBuiltin("repr", repr),
		"str":   NewBuiltin("str", str),
		"type":  NewBuiltin("type", typeFunc),
		"upper": NewBuiltin("upper", stringFunc("upper", strings.ToUpper)),
	}
}

var (
	stringMethods = map[string]*Builtin{
		"contains":   NewBuiltin("contains", string_contains),
		"endsWith":   NewBuiltin("endsWith", string_endsWith),
		"lower":      NewBuiltin("lower", string_lower),
		"replace":    NewBuiltin("replace", string_replace),
		"split":      NewBuiltin("split", string_split),
		"startsWith": NewBuiltin("startsWith", string_startsWith),
		"trim":       NewBuiltin("trim", string_trim),
		"upper":      NewBuiltin("upper", string_upper),
	}

	listMethods = map[string]*Builtin{
		"append":   NewBuiltin("append", list_append),
		"clear":    NewBuiltin("clear", list_clear),
		"contains": NewBuiltin("contains", list_contains),
		"join":     NewBuiltin("join", list_join),
	}

	repeatedMethods = map[string]*Builtin{
		"append": NewBuiltin("append", repeated_append),
	}
)

// methodsOf returns the built-in methods of values of x's type.
func methodsOf(x Value) map[string]*Builtin {
	switch x.(type) {
	case string:
		return stringMethods
	case *List:
		return listMethods
	case *RepeatedField:
		return repeatedMethods
	}
	return nil
}

// ---- functions ----

// len(x) returns the number of elements of a sequence, the number of
// fields of an object, or the length in bytes of a string.
func length(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	switch x := x.(type) {
	case string:
		return int64(len(x)), nil
	case Indexable:
		return int64(x.Len()), nil
	case *Object:
		return int64(x.Len()), nil
	case nil:
		return nil, fmt.Errorf("len: value of type null has no len")
	}
	switch v := reflect.ValueOf(x); v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return int64(v.Len()), nil
	}
	return nil, fmt.Errorf("len: value of type %s has no len", TypeName(x))
}

func str(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	return String(x), nil
}

func repr(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	return Repr(x), nil
}

func typeFunc(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	return TypeName(x), nil
}

// range(stop) or range(start, stop[, step]) returns a list of ints.
func rangeFunc(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var start, stop, step int64 = 0, 0, 1
	var err error
	if len(args) == 1 {
		err = UnpackArgs(b.Name(), args, 1, &stop)
	} else {
		err = UnpackArgs(b.Name(), args, 2, &start, &stop, &step)
	}
	if err != nil {
		return nil, err
	}
	if step == 0 {
		return nil, fmt.Errorf("range: step argument must not be zero")
	}
	var elems []Value
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(elems) == maxRepeat {
			return nil, fmt.Errorf("range: too many elements")
		}
		elems = append(elems, i)
	}
	return NewList(elems), nil
}

// join(iterable, sep="") returns the output forms of the elements
// of iterable, separated by sep.
func join(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	var sep string
	if err := UnpackArgs(b.Name(), args, 1, &x, &sep); err != nil {
		return nil, err
	}
	return joinValues(b.Name(), x, sep)
}

func joinValues(fnname string, x Value, sep string) (Value, error) {
	iter, err := Iterate(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", fnname, err)
	}
	defer iter.Done()
	buf := new(strings.Builder)
	var elem Value
	for i := 0; iter.Next(&elem); i++ {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(String(elem))
	}
	return buf.String(), nil
}

// keys(x) returns the field names of an object or module, or the
// keys of a Go map in sorted order.
func keys(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	var names []string
	switch x := x.(type) {
	case HasAttrs:
		names = x.AttrNames()
	case nil:
		return nil, fmt.Errorf("keys: got null, want object")
	default:
		if reflect.TypeOf(x).Kind() != reflect.Map {
			return nil, fmt.Errorf("keys: got %s, want object", TypeName(x))
		}
		iter, _ := Iterate(x)
		var elems []Value
		var k Value
		for iter.Next(&k) {
			elems = append(elems, k)
		}
		return NewList(elems), nil
	}
	elems := make([]Value, len(names))
	for i, name := range names {
		elems[i] = name
	}
	return NewList(elems), nil
}

func stringFunc(name string, f func(string) string) func(*RuntimeContext, *Builtin, []Value) (Value, error) {
	return func(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
		var s string
		if err := UnpackArgs(name, args, 1, &s); err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

// ---- methods ----

func string_upper(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	if err := UnpackArgs(b.Name(), args, 0); err != nil {
		return nil, err
	}
	return strings.ToUpper(b.Receiver().(string)), nil
}

func string_lower(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	if err := UnpackArgs(b.Name(), args, 0); err != nil {
		return nil, err
	}
	return strings.ToLower(b.Receiver().(string)), nil
}

func string_trim(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	if err := UnpackArgs(b.Name(), args, 0); err != nil {
		return nil, err
	}
	return strings.TrimSpace(b.Receiver().(string)), nil
}

func string_contains(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var sub string
	if err := UnpackArgs(b.Name(), args, 1, &sub); err != nil {
		return nil, err
	}
	return strings.Contains(b.Receiver().(string), sub), nil
}

func string_startsWith(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var prefix string
	if err := UnpackArgs(b.Name(), args, 1, &prefix); err != nil {
		return nil, err
	}
	return strings.HasPrefix(b.Receiver().(string), prefix), nil
}

func string_endsWith(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var suffix string
	if err := UnpackArgs(b.Name(), args, 1, &suffix); err != nil {
		return nil, err
	}
	return strings.HasSuffix(b.Receiver().(string), suffix), nil
}

func string_replace(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var old, new string
	if err := UnpackArgs(b.Name(), args, 2, &old, &new); err != nil {
		return nil, err
	}
	return strings.ReplaceAll(b.Receiver().(string), old, new), nil
}

// split(sep) splits the string at each occurrence of sep, or around
// runs of white space if sep is omitted.
func string_split(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var sep Value
	if err := UnpackArgs(b.Name(), args, 0, &sep); err != nil {
		return nil, err
	}
	recv := b.Receiver().(string)
	var parts []string
	switch sep := sep.(type) {
	case nil:
		parts = strings.Fields(recv)
	case string:
		if sep == "" {
			return nil, fmt.Errorf("split: empty separator")
		}
		parts = strings.Split(recv, sep)
	default:
		return nil, fmt.Errorf("split: got %s for separator, want string", TypeName(sep))
	}
	elems := make([]Value, len(parts))
	for i, p := range parts {
		elems[i] = p
	}
	return NewList(elems), nil
}

func list_append(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	b.Receiver().(*List).Append(x)
	return nil, nil
}

func list_clear(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	if err := UnpackArgs(b.Name(), args, 0); err != nil {
		return nil, err
	}
	b.Receiver().(*List).Clear()
	return nil, nil
}

func list_contains(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	for _, elem := range b.Receiver().(*List).elems {
		if Equal(elem, x) {
			return true, nil
		}
	}
	return false, nil
}

func list_join(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var sep string
	if err := UnpackArgs(b.Name(), args, 0, &sep); err != nil {
		return nil, err
	}
	return joinValues(b.Name(), b.Receiver(), sep)
}

func repeated_append(_ *RuntimeContext, b *Builtin, args []Value) (Value, error) {
	var x Value
	if err := UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	return nil, b.Receiver().(*RepeatedField).Append(x)
}
