package happy

import "fmt"

// UnpackArgs unpacks the arguments of a call to a built-in function
// into the supplied variables. The first min arguments are required;
// the remainder, up to len(vars), are optional.
//
// Each variable must be a pointer to one of:
//
//	*Value      any value
//	*bool       a bool
//	*int64      an int
//	*int        an int
//	*float64    an int or a float
//	*string     a string
//	**List      a list
//	*Iterable   an iterable value
//	*Callable   a function
func UnpackArgs(fnname string, args []Value, min int, vars ...interface{}) error {
	if len(args) < min {
		return fmt.Errorf("%s: got %d arguments, want at least %d", fnname, len(args), min)
	}
	if len(args) > len(vars) {
		return fmt.Errorf("%s: got %d arguments, want at most %d", fnname, len(args), len(vars))
	}
	for i, arg := range args {
		if err := unpackOneArg(arg, vars[i]); err != nil {
			return fmt.Errorf("%s: for parameter %d: %s", fnname, i+1, err)
		}
	}
	return nil
}

func unpackOneArg(v Value, ptr interface{}) error {
	switch ptr := ptr.(type) {
	case *Value:
		*ptr = v
	case *bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("got %s, want bool", TypeName(v))
		}
		*ptr = b
	case *int64:
		i, ok := v.(int64)
		if !ok {
			return fmt.Errorf("got %s, want int", TypeName(v))
		}
		*ptr = i
	case *int:
		i, ok := v.(int64)
		if !ok || int64(int(i)) != i {
			return fmt.Errorf("got %s, want int", TypeName(v))
		}
		*ptr = int(i)
	case *float64:
		switch v := v.(type) {
		case float64:
			*ptr = v
		case int64:
			*ptr = float64(v)
		default:
			return fmt.Errorf("got %s, want float or int", TypeName(v))
		}
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("got %s, want string", TypeName(v))
		}
		*ptr = s
	case **List:
		l, ok := v.(*List)
		if !ok {
			return fmt.Errorf("got %s, want list", TypeName(v))
		}
		*ptr = l
	case *Iterable:
		it, ok := v.(Iterable)
		if !ok {
			return fmt.Errorf("got %s, want iterable", TypeName(v))
		}
		*ptr = it
	case *Callable:
		fn, ok := v.(Callable)
		if !ok {
			return fmt.Errorf("got %s, want function", TypeName(v))
		}
		*ptr = fn
	default:
		panic(fmt.Sprintf("cannot unpack %T", ptr))
	}
	return nil
}
