package resolve

import (
	"fmt"
	"sort"

	"go.happytemplate.net/syntax"
)

// A Code classifies a diagnostic.
type Code uint8

const (
	UndeclaredIdentifier Code = iota + 1
	UndeclaredFunction
	DuplicateDeclaration
	InvalidLValue
	BreakOutsideLoop
	ContinueOutsideLoop
	ReturnOutsideFunction
	UnknownNamespace
)

var codeNames = [...]string{
	UndeclaredIdentifier:  "UndeclaredIdentifier",
	UndeclaredFunction:    "UndeclaredFunction",
	DuplicateDeclaration:  "DuplicateDeclaration",
	InvalidLValue:         "InvalidLValue",
	BreakOutsideLoop:      "BreakOutsideLoop",
	ContinueOutsideLoop:   "ContinueOutsideLoop",
	ReturnOutsideFunction: "ReturnOutsideFunction",
	UnknownNamespace:      "UnknownNamespace",
}

func (c Code) String() string { return codeNames[c] }

// An Error describes the nature and position of a resolver error.
type Error struct {
	Pos  syntax.Position
	Code Code
	Msg  string
}

func (e Error) Error() string { return e.Pos.String() + ": " + e.Msg }

// A Collector accepts diagnostics as the analyzer passes find them.
type Collector interface {
	Report(Error)
}

// An ErrorList is a non-empty list of resolver error messages.
// A pointer to an ErrorList is a Collector.
type ErrorList []Error // len > 0

func (e ErrorList) Error() string { return e[0].Error() }

func (e *ErrorList) Report(err Error) { *e = append(*e, err) }

// Sort orders the list by position, keeping the report order of
// errors at the same position.
func (e ErrorList) Sort() {
	sort.SliceStable(e, func(i, j int) bool {
		p, q := e[i].Pos, e[j].Pos
		if p.Line != q.Line {
			return p.Line < q.Line
		}
		return p.Col < q.Col
	})
}

// Has reports whether the list holds an error with the given code.
func (e ErrorList) Has(code Code) bool {
	for _, err := range e {
		if err.Code == code {
			return true
		}
	}
	return false
}

func errorf(c Collector, pos syntax.Position, code Code, format string, args ...interface{}) {
	c.Report(Error{Pos: pos, Code: code, Msg: fmt.Sprintf(format, args...)})
}
