// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"go.happytemplate.net/syntax"
	"google.golang.org/protobuf/proto"
)

// Unary applies a unary operator to its operand.
// The logical negation ! is not dynamic; see Truth.
func Unary(op syntax.Operator, x Value) (Value, error) {
	if op == syntax.Negate {
		switch x := x.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
	}
	return nil, fmt.Errorf("unknown unary op: %s%s", op, TypeName(x))
}

// Binary applies a strict binary operator (not && or ||) to its operands.
//
// Arithmetic on two ints yields an int; if either operand is a float,
// the result is a float. Division and remainder of ints truncate.
// A string plus any value is the concatenation of the string and the
// output form of the value.
func Binary(op syntax.Operator, x, y Value) (Value, error) {
	switch op {
	case syntax.Add:
		switch x := x.(type) {
		case string:
			if y, ok := y.(string); ok {
				return x + y, nil
			}
			return x + String(y), nil
		case int64:
			switch y := y.(type) {
			case int64:
				return x + y, nil
			case float64:
				return float64(x) + y, nil
			}
		case float64:
			switch y := y.(type) {
			case float64:
				return x + y, nil
			case int64:
				return x + float64(y), nil
			}
		case *List:
			if y, ok := y.(*List); ok {
				z := make([]Value, 0, x.Len()+y.Len())
				z = append(z, x.elems...)
				z = append(z, y.elems...)
				return NewList(z), nil
			}
		}
		if y, ok := y.(string); ok && x != nil {
			return String(x) + y, nil
		}

	case syntax.Subtract, syntax.Multiply, syntax.Divide, syntax.Mod:
		switch x := x.(type) {
		case int64:
			switch y := y.(type) {
			case int64:
				return intArith(op, x, y)
			case float64:
				return floatArith(op, float64(x), y)
			}
		case float64:
			switch y := y.(type) {
			case float64:
				return floatArith(op, x, y)
			case int64:
				return floatArith(op, x, float64(y))
			}
		case string:
			if y, ok := y.(int64); ok && op == syntax.Multiply {
				return repeatString(x, y)
			}
		case *List:
			if y, ok := y.(int64); ok && op == syntax.Multiply {
				return repeatList(x, y)
			}
		}

	case syntax.BitwiseAnd, syntax.BitwiseOr, syntax.Xor:
		switch x := x.(type) {
		case int64:
			if y, ok := y.(int64); ok {
				switch op {
				case syntax.BitwiseAnd:
					return x & y, nil
				case syntax.BitwiseOr:
					return x | y, nil
				}
				return x ^ y, nil
			}
		case bool:
			if y, ok := y.(bool); ok {
				switch op {
				case syntax.BitwiseAnd:
					return x && y, nil
				case syntax.BitwiseOr:
					return x || y, nil
				}
				return x != y, nil
			}
		}

	case syntax.Equal:
		return Equal(x, y), nil

	case syntax.NotEqual:
		return !Equal(x, y), nil

	case syntax.Less, syntax.Greater, syntax.LessOrEqual, syntax.GreaterOrEqual:
		cmp, ok := compare(x, y)
		if !ok {
			break
		}
		switch op {
		case syntax.Less:
			return cmp < 0, nil
		case syntax.Greater:
			return cmp > 0, nil
		case syntax.LessOrEqual:
			return cmp <= 0, nil
		}
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("unknown binary op: %s %s %s", TypeName(x), op, TypeName(y))
}

func intArith(op syntax.Operator, x, y int64) (Value, error) {
	switch op {
	case syntax.Subtract:
		return x - y, nil
	case syntax.Multiply:
		return x * y, nil
	case syntax.Divide:
		if y == 0 {
			return nil, fmt.Errorf("integer division by zero")
		}
		return x / y, nil
	case syntax.Mod:
		if y == 0 {
			return nil, fmt.Errorf("integer modulo by zero")
		}
		return x % y, nil
	}
	return nil, fmt.Errorf("unknown binary op: int %s int", op)
}

func floatArith(op syntax.Operator, x, y float64) (Value, error) {
	switch op {
	case syntax.Subtract:
		return x - y, nil
	case syntax.Multiply:
		return x * y, nil
	case syntax.Divide:
		if y == 0 {
			return nil, fmt.Errorf("floating-point division by zero")
		}
		return x / y, nil
	case syntax.Mod:
		if y == 0 {
			return nil, fmt.Errorf("floating-point modulo by zero")
		}
		return math.Mod(x, y), nil
	}
	return nil, fmt.Errorf("unknown binary op: float %s float", op)
}

const maxRepeat = 1 << 20

func repeatString(s string, n int64) (Value, error) {
	if n <= 0 {
		return "", nil
	}
	if int64(len(s))*n > maxRepeat {
		return nil, fmt.Errorf("string repetition too large")
	}
	return strings.Repeat(s, int(n)), nil
}

func repeatList(l *List, n int64) (Value, error) {
	if n <= 0 || l.Len() == 0 {
		return NewList(nil), nil
	}
	if int64(l.Len())*n > maxRepeat {
		return nil, fmt.Errorf("list repetition too large")
	}
	res := make([]Value, 0, l.Len()*int(n))
	for i := int64(0); i < n; i++ {
		res = append(res, l.elems...)
	}
	return NewList(res), nil
}

// Equal reports whether two values are equal. Ints and floats compare
// by numeric value; lists compare element-wise; protocol messages
// compare by content; other values compare as Go values.
func Equal(x, y Value) bool {
	return equal(x, y, 0)
}

const maxDepth = 10

func equal(x, y Value, depth int) bool {
	switch x := x.(type) {
	case nil:
		return y == nil
	case int64:
		switch y := y.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := y.(type) {
		case float64:
			return x == y
		case int64:
			return x == float64(y)
		}
		return false
	case *List:
		y, ok := y.(*List)
		if !ok {
			return false
		}
		if x == y {
			return true
		}
		if x.Len() != y.Len() || depth > maxDepth {
			return false
		}
		for i := range x.elems {
			if !equal(x.elems[i], y.elems[i], depth+1) {
				return false
			}
		}
		return true
	case proto.Message:
		y, ok := y.(proto.Message)
		return ok && proto.Equal(x, y)
	}
	if y == nil {
		return false
	}
	if reflect.TypeOf(x) != reflect.TypeOf(y) || !reflect.TypeOf(x).Comparable() {
		return false
	}
	return x == y
}

// compare returns the order of two ints, floats or strings.
func compare(x, y Value) (int, bool) {
	switch x := x.(type) {
	case int64:
		switch y := y.(type) {
		case int64:
			return cmpInt(x, y), true
		case float64:
			return cmpFloat(float64(x), y), true
		}
	case float64:
		switch y := y.(type) {
		case float64:
			return cmpFloat(x, y), true
		case int64:
			return cmpFloat(x, float64(y)), true
		}
	case string:
		if y, ok := y.(string); ok {
			return strings.Compare(x, y), true
		}
	}
	return 0, false
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return +1
	}
	return 0
}

func cmpFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return +1
	}
	return 0
}
