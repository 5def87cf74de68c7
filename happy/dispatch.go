// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

// This file defines the resolution of dynamic operations.
//
// Each execution of a Dynamic node computes the shape of its operands
// (the Go type of the receiver, or of both operands of a binary
// operator) and looks it up in the inline cache of the node's call
// site. On a miss the operation is resolved for that shape to a
// binding, which is stored in the cache and invoked. A binding is
// valid for every operand of the shape it was resolved for; it reads
// per-value state (such as the fields of an Object) when invoked.

import (
	"fmt"
	"reflect"
	"sort"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/ir"
	"go.happytemplate.net/syntax"
	"google.golang.org/protobuf/proto"
)

// A binding is the target of a call site resolved for one operand shape.
type binding func(ctx *RuntimeContext, site *ir.CallSite, args []Value) (Value, error)

func shapeOf(site *ir.CallSite, args []Value) ir.Shape {
	s := ir.Shape{X: reflect.TypeOf(args[0])}
	if site.Kind == ir.BinaryOp {
		s.Y = reflect.TypeOf(args[1])
	}
	return s
}

func dispatch(ctx *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	shape := shapeOf(site, args)
	if target, ok := site.Cache.Lookup(shape); ok {
		return target.(binding)(ctx, site, args)
	}
	b, err := resolveSite(site, args)
	if err != nil {
		return nil, err
	}
	if debug {
		fmt.Printf("%s: resolved %s for %v\n", site.Pos, site, shape)
	}
	site.Cache.Store(shape, b)
	return b(ctx, site, args)
}

// resolveSite returns the binding of site for the shape of args, or
// an error if the operation is not defined for it.
func resolveSite(site *ir.CallSite, args []Value) (binding, error) {
	x := args[0]
	switch site.Kind {
	case ir.GetMember:
		return resolveGetMember(site.Name, x)
	case ir.SetMember:
		return resolveSetMember(site.Name, x)
	case ir.GetIndex:
		return resolveIndex(site, x, false)
	case ir.SetIndex:
		return resolveIndex(site, x, true)
	case ir.Invoke:
		return resolveInvoke(x)
	case ir.Call:
		return resolveCall(site.Name, x)
	case ir.Create:
		return resolveCreate(x)
	case ir.BinaryOp:
		return resolveBinary(site.Op, x, args[1]), nil
	case ir.UnaryOp:
		return unaryOp, nil
	}
	return nil, fmt.Errorf("internal error: unknown operation %s", site.Kind)
}

// ---- members ----

func resolveGetMember(name string, x Value) (binding, error) {
	switch x.(type) {
	case nil:
		return nil, fmt.Errorf("null has no member %s", name)
	case HasAttrs:
		return getAttr, nil
	case *catalog.Namespace:
		return getNamespaceMember, nil
	case proto.Message:
		return getProtoField, nil
	}
	if _, ok := methodsOf(x)[name]; ok {
		return getMethod, nil
	}
	t := reflect.TypeOf(x)
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return getMapKey, nil
	}
	if m, ok := lookupGoMember(t, name); ok {
		return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
			return m.get(args[0])
		}, nil
	}
	return nil, fmt.Errorf("%s has no member %s%s", TypeName(x), name, didYouMean(name, goMemberNames(x)))
}

func getAttr(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return args[0].(HasAttrs).Attr(site.Name)
}

func getNamespaceMember(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	ns := args[0].(*catalog.Namespace)
	m, ok := ns.GetMember(site.Name)
	if !ok {
		return nil, fmt.Errorf("namespace %s has no member %s", ns.Name(), site.Name)
	}
	return m, nil
}

func getProtoField(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return protoGetField(args[0].(proto.Message), site.Name)
}

func getMethod(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return methodsOf(args[0])[site.Name].BindReceiver(args[0]), nil
}

func getMapKey(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	m := reflect.ValueOf(args[0])
	if m.IsNil() {
		return nil, nil
	}
	return toValue(m.MapIndex(reflect.ValueOf(site.Name).Convert(m.Type().Key()))), nil
}

func resolveSetMember(name string, x Value) (binding, error) {
	switch x := x.(type) {
	case nil:
		return nil, fmt.Errorf("cannot set member %s of null", name)
	case HasSetField:
		return setField, nil
	case *catalog.Namespace:
		return nil, fmt.Errorf("cannot assign to member %s of namespace %s", name, x.Name())
	case proto.Message:
		return setProtoField, nil
	}
	t := reflect.TypeOf(x)
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return setMapKey, nil
	}
	if m, ok := lookupGoMember(t, name); ok {
		return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
			return assigned(args, m.set(args[0], args[1]))
		}, nil
	}
	return nil, fmt.Errorf("cannot set member %s of %s", name, TypeName(x))
}

// assigned returns the result of a member or element assignment:
// the assigned value, which is the last operand.
func assigned(args []Value, err error) (Value, error) {
	if err != nil {
		return nil, err
	}
	return args[len(args)-1], nil
}

func setField(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return assigned(args, args[0].(HasSetField).SetField(site.Name, args[1]))
}

func setProtoField(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return assigned(args, protoSetField(args[0].(proto.Message), site.Name, args[1]))
}

func setMapKey(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	m := reflect.ValueOf(args[0])
	if m.IsNil() {
		return nil, fmt.Errorf("assignment to entry in nil map")
	}
	v, err := toGo(args[1], m.Type().Elem())
	if err != nil {
		return nil, err
	}
	m.SetMapIndex(reflect.ValueOf(site.Name).Convert(m.Type().Key()), v)
	return args[1], nil
}

// ---- indexing ----

func resolveIndex(site *ir.CallSite, x Value, set bool) (binding, error) {
	if site.Arity != 1 {
		return nil, fmt.Errorf("%s does not support %d indices", TypeName(x), site.Arity)
	}
	switch x.(type) {
	case nil:
		return nil, fmt.Errorf("cannot index null")
	case *Object:
		if set {
			return setObjectIndex, nil
		}
		return getObjectIndex, nil
	case HasSetIndex:
		if set {
			return setSeqIndex, nil
		}
		return getSeqIndex, nil
	case Indexable:
		if !set {
			return getSeqIndex, nil
		}
	case string:
		if !set {
			return getStringIndex, nil
		}
		return nil, fmt.Errorf("cannot assign to element of string")
	}
	switch reflect.TypeOf(x).Kind() {
	case reflect.Map:
		if set {
			return setGoMapIndex, nil
		}
		return getGoMapIndex, nil
	case reflect.Slice:
		if set {
			return setGoSliceIndex, nil
		}
		return getGoSliceIndex, nil
	case reflect.Array:
		if !set {
			return getGoSliceIndex, nil
		}
	}
	if set {
		return nil, fmt.Errorf("%s does not support item assignment", TypeName(x))
	}
	return nil, fmt.Errorf("%s is not indexable", TypeName(x))
}

func getObjectIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	key, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("object index: got %s, want string", TypeName(args[1]))
	}
	return args[0].(*Object).Attr(key)
}

func setObjectIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	key, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("object index: got %s, want string", TypeName(args[1]))
	}
	return assigned(args, args[0].(*Object).SetField(key, args[2]))
}

// index returns i as a valid index of a sequence of length n.
func index(i Value, n int) (int, error) {
	k, ok := i.(int64)
	if !ok {
		return 0, fmt.Errorf("index: got %s, want int", TypeName(i))
	}
	if k < 0 || k >= int64(n) {
		return 0, fmt.Errorf("index %d out of range [0:%d]", k, n)
	}
	return int(k), nil
}

func getSeqIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	seq := args[0].(Indexable)
	i, err := index(args[1], seq.Len())
	if err != nil {
		return nil, err
	}
	return seq.Index(i), nil
}

func setSeqIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	seq := args[0].(HasSetIndex)
	i, err := index(args[1], seq.Len())
	if err != nil {
		return nil, err
	}
	return assigned(args, seq.SetIndex(i, args[2]))
}

func getStringIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	s := args[0].(string)
	i, err := index(args[1], len(s))
	if err != nil {
		return nil, err
	}
	return s[i : i+1], nil
}

func getGoMapIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	m := reflect.ValueOf(args[0])
	k, err := toGo(args[1], m.Type().Key())
	if err != nil {
		return nil, fmt.Errorf("map key: %v", err)
	}
	return toValue(m.MapIndex(k)), nil
}

func setGoMapIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	m := reflect.ValueOf(args[0])
	if m.IsNil() {
		return nil, fmt.Errorf("assignment to entry in nil map")
	}
	k, err := toGo(args[1], m.Type().Key())
	if err != nil {
		return nil, fmt.Errorf("map key: %v", err)
	}
	v, err := toGo(args[2], m.Type().Elem())
	if err != nil {
		return nil, err
	}
	m.SetMapIndex(k, v)
	return args[2], nil
}

func getGoSliceIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	s := reflect.ValueOf(args[0])
	i, err := index(args[1], s.Len())
	if err != nil {
		return nil, err
	}
	return toValue(s.Index(i)), nil
}

func setGoSliceIndex(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	s := reflect.ValueOf(args[0])
	i, err := index(args[1], s.Len())
	if err != nil {
		return nil, err
	}
	v, err := toGo(args[2], s.Type().Elem())
	if err != nil {
		return nil, err
	}
	s.Index(i).Set(v)
	return args[2], nil
}

// ---- calls ----

func resolveInvoke(fn Value) (binding, error) {
	switch fn.(type) {
	case nil:
		return nil, fmt.Errorf("invalid call of null")
	case Callable:
		return invokeCallable, nil
	case catalog.Type:
		return invokeType, nil
	}
	if _, ok := goFuncOf(fn); ok {
		return invokeGoFunc, nil
	}
	return nil, fmt.Errorf("invalid call of non-function (%s)", TypeName(fn))
}

func invokeCallable(ctx *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	return args[0].(Callable).CallInternal(ctx, args[1:])
}

func invokeType(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	return args[0].(catalog.Type).New(args[1:])
}

func invokeGoFunc(ctx *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
	return goFunc{reflect.ValueOf(args[0])}.call(ctx, args[1:])
}

func resolveCall(name string, x Value) (binding, error) {
	switch x := x.(type) {
	case nil:
		return nil, fmt.Errorf("null has no method %s", name)
	case HasAttrs:
		return callAttr, nil
	case *catalog.Namespace:
		return callNamespaceMember, nil
	case proto.Message:
		return nil, fmt.Errorf("%s has no method %s", TypeName(x), name)
	}
	if _, ok := methodsOf(x)[name]; ok {
		return callMethod, nil
	}
	if m, ok := lookupGoMember(reflect.TypeOf(x), name); ok {
		return func(ctx *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
			fn, err := m.get(args[0])
			if err != nil {
				return nil, err
			}
			return Call(ctx, fn, args[1:]...)
		}, nil
	}
	// Values with built-in methods suggest only those.
	var candidates []string
	for m := range methodsOf(x) {
		candidates = append(candidates, m)
	}
	if candidates == nil {
		candidates = goMemberNames(x)
	}
	sort.Strings(candidates)
	return nil, fmt.Errorf("%s has no method %s%s", TypeName(x), name, didYouMean(name, candidates))
}

func callAttr(ctx *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	fn, err := args[0].(HasAttrs).Attr(site.Name)
	if err != nil {
		return nil, err
	}
	return Call(ctx, fn, args[1:]...)
}

func callNamespaceMember(ctx *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	fn, err := getNamespaceMember(ctx, site, args[:1])
	if err != nil {
		return nil, err
	}
	if t, ok := fn.(catalog.Type); ok {
		return t.New(args[1:])
	}
	return nil, fmt.Errorf("invalid call of %s", TypeName(fn))
}

func callMethod(ctx *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	b := methodsOf(args[0])[site.Name]
	return b.BindReceiver(args[0]).CallInternal(ctx, args[1:])
}

func resolveCreate(t Value) (binding, error) {
	switch t := t.(type) {
	case catalog.Type:
		return invokeType, nil
	case *catalog.Namespace:
		return nil, fmt.Errorf("cannot instantiate namespace %s", t.Name())
	}
	return nil, fmt.Errorf("%s is not a type", TypeName(t))
}

// ---- operators ----

// resolveBinary returns the binding of a binary operator. Arithmetic
// and comparison of two ints, two floats or two strings have direct
// bindings; everything else goes through Binary.
func resolveBinary(op syntax.Operator, x, y Value) binding {
	switch x.(type) {
	case int64:
		if _, ok := y.(int64); ok {
			switch op {
			case syntax.Add:
				return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
					return args[0].(int64) + args[1].(int64), nil
				}
			case syntax.Subtract:
				return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
					return args[0].(int64) - args[1].(int64), nil
				}
			case syntax.Less:
				return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
					return args[0].(int64) < args[1].(int64), nil
				}
			case syntax.Equal:
				return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
					return args[0].(int64) == args[1].(int64), nil
				}
			}
		}
	case string:
		if _, ok := y.(string); ok {
			switch op {
			case syntax.Add:
				return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
					return args[0].(string) + args[1].(string), nil
				}
			case syntax.Equal:
				return func(_ *RuntimeContext, _ *ir.CallSite, args []Value) (Value, error) {
					return args[0].(string) == args[1].(string), nil
				}
			}
		}
	}
	return binaryOp
}

func binaryOp(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return Binary(site.Op, args[0], args[1])
}

func unaryOp(_ *RuntimeContext, site *ir.CallSite, args []Value) (Value, error) {
	return Unary(site.Op, args[0])
}
