// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

// This file defines the conversions between Happy values and other
// Go values, and the reflective access to their members.

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	eface     = reflect.TypeOf(new(interface{})).Elem()
	errorType = reflect.TypeOf(new(error)).Elem()
	bytesType = reflect.TypeOf([]byte(nil))
)

// toValue converts a Go value to a Happy one. Values of Go boolean,
// numeric and string kinds become bool, int64, float64 and string;
// nil pointers, maps, slices and interfaces become null; all other
// values are returned unchanged.
func toValue(v reflect.Value) Value {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.String:
		return v.String()
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return toValue(v.Elem())
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	if !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// ValueOf converts a Go value to a Happy one, as toValue does.
// It is intended for hosts that populate globals with Go data.
func ValueOf(x interface{}) Value { return toValue(reflect.ValueOf(x)) }

// toGo converts a Happy value to a Go value of the specified type.
//
// Conversions act as if the Happy value were a Go untyped constant:
// an int may be assigned to any numeric type and a string to any
// string type, even if named.
func toGo(x Value, to reflect.Type) (reflect.Value, error) {
	if x == nil {
		switch to.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert null to Go %s", to)
	}

	rv := reflect.ValueOf(x)
	if to == eface || rv.Type().AssignableTo(to) {
		return rv, nil
	}

	switch to.Kind() {
	case reflect.Bool:
		if b, ok := x.(bool); ok {
			return reflect.ValueOf(b).Convert(to), nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i, ok := asInt(x); ok {
			if reflect.Zero(to).OverflowInt(i) {
				return reflect.Value{}, fmt.Errorf("%d overflows Go %s", i, to)
			}
			return reflect.ValueOf(i).Convert(to), nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if i, ok := asInt(x); ok {
			if i < 0 || reflect.Zero(to).OverflowUint(uint64(i)) {
				return reflect.Value{}, fmt.Errorf("%d overflows Go %s", i, to)
			}
			return reflect.ValueOf(uint64(i)).Convert(to), nil
		}

	case reflect.Float32, reflect.Float64:
		switch x := x.(type) {
		case int64:
			return reflect.ValueOf(float64(x)).Convert(to), nil
		case float64:
			return reflect.ValueOf(x).Convert(to), nil
		}

	case reflect.String:
		if s, ok := x.(string); ok {
			return reflect.ValueOf(s).Convert(to), nil
		}

	case reflect.Slice:
		if s, ok := x.(string); ok && to == bytesType {
			return reflect.ValueOf([]byte(s)), nil
		}
		if _, ok := x.(string); !ok {
			if iter, err := Iterate(x); err == nil {
				return sliceConvert(iter, to)
			}
		}

	case reflect.Map:
		if o, ok := x.(*Object); ok && to.Key().Kind() == reflect.String {
			m := reflect.MakeMapWithSize(to, o.Len())
			for _, name := range o.AttrNames() {
				v, err := toGo(o.fields[name], to.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("in field %s: %v", name, err)
				}
				m.SetMapIndex(reflect.ValueOf(name).Convert(to.Key()), v)
			}
			return m, nil
		}

	case reflect.Func:
		if _, ok := x.(Callable); ok {
			return funcConvert(x, to), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to Go %s", TypeName(x), to)
}

// asInt returns x as an int64 if it is an int or a whole float.
func asInt(x Value) (int64, bool) {
	switch x := x.(type) {
	case int64:
		return x, true
	case float64:
		if i := int64(x); float64(i) == x {
			return i, true
		}
	}
	return 0, false
}

func sliceConvert(iter Iterator, to reflect.Type) (reflect.Value, error) {
	defer iter.Done()
	s := reflect.MakeSlice(to, 0, 0)
	var x Value
	for i := 0; iter.Next(&x); i++ {
		v, err := toGo(x, to.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("in element %d: %v", i, err)
		}
		s = reflect.Append(s, v)
	}
	return s, nil
}

// funcConvert returns a Go function of type funcType that calls fn.
func funcConvert(fn Value, funcType reflect.Type) reflect.Value {
	return reflect.MakeFunc(funcType, func(args []reflect.Value) []reflect.Value {
		// A reflective call from Go has no current context,
		// so each call gets a new one.
		ctx := new(RuntimeContext)

		in := make([]Value, len(args))
		for i, arg := range args {
			in[i] = toValue(arg)
		}
		res, err := Call(ctx, fn, in...)
		outs, err := resultsToGo(funcType, res, err)
		if err != nil {
			panic(err)
		}
		return outs
	})
}

// resultsToGo converts the result of a Happy call to the results of
// a Go function of type funcType. If the Go function has an error
// result, a failure of the call is returned through it.
func resultsToGo(funcType reflect.Type, res Value, err error) ([]reflect.Value, error) {
	n := funcType.NumOut()
	outs := make([]reflect.Value, n)
	hasErr := n > 0 && funcType.Out(n-1) == errorType
	if err != nil {
		if !hasErr {
			return nil, err
		}
		for i := 0; i < n-1; i++ {
			outs[i] = reflect.Zero(funcType.Out(i))
		}
		outs[n-1] = reflect.ValueOf(&err).Elem()
		return outs, nil
	}
	if hasErr {
		outs[n-1] = reflect.Zero(errorType)
		n--
	}
	switch n {
	case 0:
	case 1:
		y, err := toGo(res, funcType.Out(0))
		if err != nil {
			return nil, err
		}
		outs[0] = y
	default:
		return nil, fmt.Errorf("cannot convert the result of a Happy function to %d Go results", n)
	}
	return outs, nil
}

// A goFunc is a Go function value, such as a bound method of a Go value.
type goFunc struct {
	v reflect.Value // kind=Func
}

var _ Callable = goFunc{}

func goFuncOf(x Value) (goFunc, bool) {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Func || v.IsNil() {
		return goFunc{}, false
	}
	return goFunc{v}, true
}

func (f goFunc) Name() string {
	name := runtime.FuncForPC(f.v.Pointer()).Name()
	if name == "" || strings.HasPrefix(name, "reflect.") {
		name = f.v.Type().String()
	}
	return name
}

func (f goFunc) String() string { return "<go function " + f.Name() + ">" }
func (f goFunc) Type() string   { return "go.func<" + f.v.Type().String() + ">" }

func (f goFunc) CallInternal(ctx *RuntimeContext, args []Value) (Value, error) {
	return f.call(ctx, args)
}

func (f goFunc) call(ctx *RuntimeContext, args []Value) (Value, error) {
	ft := f.v.Type()
	arity := ft.NumIn()
	variadic := ft.IsVariadic()
	if variadic {
		if len(args) < arity-1 {
			return nil, fmt.Errorf("in call to %s, got %d arguments, want at least %d", f.Name(), len(args), arity-1)
		}
	} else if len(args) != arity {
		return nil, fmt.Errorf("in call to %s, got %d arguments, want %d", f.Name(), len(args), arity)
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var t reflect.Type
		if variadic && i >= arity-1 {
			t = ft.In(arity - 1).Elem()
		} else {
			t = ft.In(i)
		}
		x, err := toGo(arg, t)
		if err != nil {
			return nil, fmt.Errorf("in argument %d of call to %s, %v", i+1, f.Name(), err)
		}
		in[i] = x
	}

	var out []reflect.Value
	if err := protect(f.Name(), func() { out = f.v.Call(in) }); err != nil {
		return nil, err
	}
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if err := out[n-1]; !err.IsNil() {
			return nil, err.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return toValue(out[0]), nil
	}
	elems := make([]Value, len(out))
	for i, v := range out {
		elems[i] = toValue(v)
	}
	return NewList(elems), nil
}

// protect invokes function f, converting a panic into an error.
// The name appears in the error message.
func protect(name string, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic in %s: %w", name, e)
			} else {
				err = fmt.Errorf("panic in %s: %v", name, r)
			}
		}
	}()
	f()
	return nil
}

// A goMember describes how a member of a Go type is reached: through
// a field, by its index path, or a method, by its index.
type goMember struct {
	field  []int
	method int
	ptr    bool // the receiver is a pointer to a struct holding the field
}

// lookupGoMember finds the member name of type t. A name beginning
// with a lower-case letter also matches the exported member with
// the capitalized name.
func lookupGoMember(t reflect.Type, name string) (goMember, bool) {
	for _, name := range goNames(name) {
		if m, ok := t.MethodByName(name); ok {
			return goMember{method: m.Index}, true
		}
		st, ptr := t, false
		if st.Kind() == reflect.Ptr {
			st, ptr = st.Elem(), true
		}
		if st.Kind() == reflect.Struct {
			if f, ok := st.FieldByName(name); ok && f.IsExported() {
				return goMember{field: f.Index, method: -1, ptr: ptr}, true
			}
		}
	}
	return goMember{}, false
}

func goNames(name string) []string {
	r, size := utf8.DecodeRuneInString(name)
	if unicode.IsLower(r) {
		return []string{name, string(unicode.ToUpper(r)) + name[size:]}
	}
	return []string{name}
}

var errNilPointer = errors.New("nil pointer dereference")

func (m goMember) fieldOf(x Value) (reflect.Value, error) {
	v := reflect.ValueOf(x)
	if m.ptr {
		if v.IsNil() {
			return reflect.Value{}, errNilPointer
		}
		v = v.Elem()
	}
	return v.FieldByIndexErr(m.field)
}

func (m goMember) get(x Value) (Value, error) {
	if m.field == nil {
		return goFunc{reflect.ValueOf(x).Method(m.method)}, nil
	}
	f, err := m.fieldOf(x)
	if err != nil {
		return nil, err
	}
	return toValue(f), nil
}

func (m goMember) set(x Value, y Value) error {
	if m.field == nil {
		return fmt.Errorf("cannot assign to method of %s", TypeName(x))
	}
	if !m.ptr {
		return fmt.Errorf("cannot assign to field of non-pointer %s", TypeName(x))
	}
	f, err := m.fieldOf(x)
	if err != nil {
		return err
	}
	if !f.CanSet() {
		return fmt.Errorf("cannot assign to field of %s", TypeName(x))
	}
	v, err := toGo(y, f.Type())
	if err != nil {
		return err
	}
	f.Set(v)
	return nil
}

// goMemberNames returns the exported fields and methods of x.
func goMemberNames(x Value) []string {
	t := reflect.TypeOf(x)
	var names []string
	for i := 0; i < t.NumMethod(); i++ {
		names = append(names, t.Method(i).Name)
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() {
				names = append(names, f.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// A goSeq is a Go slice or array viewed as an Indexable.
type goSeq struct {
	v reflect.Value // kind=Slice or Array
}

func (s goSeq) Len() int          { return s.v.Len() }
func (s goSeq) Index(i int) Value { return toValue(s.v.Index(i)) }

// lessKey orders the keys of a Go map for iteration.
func lessKey(x, y reflect.Value) bool {
	switch x.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return x.Int() < y.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return x.Uint() < y.Uint()
	case reflect.Float32, reflect.Float64:
		return x.Float() < y.Float()
	case reflect.String:
		return x.String() < y.String()
	}
	return fmt.Sprint(x) < fmt.Sprint(y)
}
