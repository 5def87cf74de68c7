package ir

import (
	"math"
	"strconv"
)

// FormatConstant returns the output form of a basic value: null,
// a bool, an int64, a float64 or a string. It reports false for any
// other value.
//
// Output statements whose operand is a constant are formatted once at
// compile time; the runtime context formats basic values the same way.
func FormatConstant(v interface{}) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return formatFloat(v), true
	case string:
		return v, true
	}
	return "", false
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, +1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case math.IsNaN(f):
		return "NaN"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Whole floats keep a fraction so they read back as floats.
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E':
			return s
		}
	}
	return s + ".0"
}
