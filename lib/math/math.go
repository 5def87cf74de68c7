// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package math provides basic constants and mathematical functions
// to Happy programs.
//
// Clients make it available by adding Module to the predeclared
// values of a program:
//
//	opts := &happy.Options{Predeclared: happy.StringDict{"math": math.Module}}
//
// after which a template may write, say, $math.sqrt(2)$.
package math // import "go.happytemplate.net/lib/math"

import (
	"fmt"
	"math"

	"go.happytemplate.net/happy"
	"go.happytemplate.net/syntax"
)

const (
	tau    = math.Pi * 2
	oneRad = tau / 360
)

// Module math is a Happy module of math-related functions and constants.
var Module = &happy.Module{
	Name: "math",
	Members: happy.StringDict{
		"abs":   happy.NewBuiltin("abs", abs),
		"ceil":  happy.NewBuiltin("ceil", roundFunc(math.Ceil)),
		"floor": happy.NewBuiltin("floor", roundFunc(math.Floor)),
		"round": happy.NewBuiltin("round", roundFunc(math.Round)),
		"max":   happy.NewBuiltin("max", minmax(+1)),
		"min":   happy.NewBuiltin("min", minmax(-1)),

		"exp":  happy.NewBuiltin("exp", floatFunc(math.Exp)),
		"log":  happy.NewBuiltin("log", floatFunc(math.Log)),
		"pow":  happy.NewBuiltin("pow", floatFunc2(math.Pow)),
		"sqrt": happy.NewBuiltin("sqrt", floatFunc(math.Sqrt)),

		"acos":  happy.NewBuiltin("acos", floatFunc(math.Acos)),
		"asin":  happy.NewBuiltin("asin", floatFunc(math.Asin)),
		"atan":  happy.NewBuiltin("atan", floatFunc(math.Atan)),
		"atan2": happy.NewBuiltin("atan2", floatFunc2(math.Atan2)),
		"cos":   happy.NewBuiltin("cos", floatFunc(math.Cos)),
		"hypot": happy.NewBuiltin("hypot", floatFunc2(math.Hypot)),
		"sin":   happy.NewBuiltin("sin", floatFunc(math.Sin)),
		"tan":   happy.NewBuiltin("tan", floatFunc(math.Tan)),

		"degrees": happy.NewBuiltin("degrees", floatFunc(func(x float64) float64 { return x / oneRad })),
		"radians": happy.NewBuiltin("radians", floatFunc(func(x float64) float64 { return x * oneRad })),

		"e":   math.E,
		"phi": math.Phi,
		"pi":  math.Pi,
	},
}

type builtinFunc = func(*happy.RuntimeContext, *happy.Builtin, []happy.Value) (happy.Value, error)

// floatFunc returns a built-in that applies fn to one int or float argument.
func floatFunc(fn func(float64) float64) builtinFunc {
	return func(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
		var x float64
		if err := happy.UnpackArgs(b.Name(), args, 1, &x); err != nil {
			return nil, err
		}
		return fn(x), nil
	}
}

// floatFunc2 is like floatFunc for functions of two arguments.
func floatFunc2(fn func(float64, float64) float64) builtinFunc {
	return func(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
		var x, y float64
		if err := happy.UnpackArgs(b.Name(), args, 2, &x, &y); err != nil {
			return nil, err
		}
		return fn(x, y), nil
	}
}

// roundFunc returns a built-in that rounds a float to an int with fn.
// An int argument is returned unchanged.
func roundFunc(fn func(float64) float64) builtinFunc {
	return func(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
		var x happy.Value
		if err := happy.UnpackArgs(b.Name(), args, 1, &x); err != nil {
			return nil, err
		}
		switch x := x.(type) {
		case int64:
			return x, nil
		case float64:
			r := fn(x)
			if math.IsNaN(r) || math.IsInf(r, 0) || r < math.MinInt64 || r >= math.MaxInt64 {
				return nil, fmt.Errorf("%s: cannot convert %v to int", b.Name(), x)
			}
			return int64(r), nil
		}
		return nil, fmt.Errorf("%s: got %s, want int or float", b.Name(), happy.TypeName(x))
	}
}

// abs(x) returns the absolute value of x, keeping its type.
func abs(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var x happy.Value
	if err := happy.UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	switch x := x.(type) {
	case int64:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case float64:
		return math.Abs(x), nil
	}
	return nil, fmt.Errorf("abs: got %s, want int or float", happy.TypeName(x))
}

// minmax returns the min (sign < 0) or max (sign > 0) built-in.
// It accepts either several arguments or one iterable.
func minmax(sign int) builtinFunc {
	return func(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
		elems := args
		if len(args) == 1 {
			iter, err := happy.Iterate(args[0])
			if err != nil {
				return nil, fmt.Errorf("%s: %v", b.Name(), err)
			}
			defer iter.Done()
			elems = nil
			var x happy.Value
			for iter.Next(&x) {
				elems = append(elems, x)
			}
		}
		if len(elems) == 0 {
			return nil, fmt.Errorf("%s: no values", b.Name())
		}
		op := syntax.Greater
		if sign < 0 {
			op = syntax.Less
		}
		best := elems[0]
		for _, x := range elems[1:] {
			better, err := happy.Binary(op, x, best)
			if err != nil {
				return nil, fmt.Errorf("%s: %v", b.Name(), err)
			}
			if better == true {
				best = x
			}
		}
		return best, nil
	}
}
