package syntax

import (
	"errors"
	"fmt"
)

// This file defines resolver data types referenced by the syntax tree.
// We cannot guarantee API stability for these types
// as they are closely tied to the implementation.

// A Symbol ties together all identifiers that denote the same variable.
// The resolver computes a symbol for every non-member identifier.
type Symbol struct {
	Name string
	Kind SymbolKind

	// Index is the declaration ordinal of the symbol within its scope.
	Index int

	Decl  Node        // declaring node; nil for predeclared names and namespaces
	Value interface{} // catalog namespace, iff Kind==Namespace
}

func (s *Symbol) String() string { return fmt.Sprintf("%s %s", s.Kind, s.Name) }

// The SymbolKind of a Symbol determines where its value lives at run time.
type SymbolKind uint8

const (
	Global    SymbolKind = iota // member of the global scope record
	Local                       // variable of the enclosing block
	Parameter                   // parameter of the enclosing function or predicate
	Namespace                   // root of a loaded catalog namespace (constant)
)

var kindNames = [...]string{
	Global:    "global",
	Local:     "local",
	Parameter: "parameter",
	Namespace: "namespace",
}

func (k SymbolKind) String() string { return kindNames[k] }

// ErrDuplicateDeclaration is returned by Scope.Declare when the
// name is already declared in that scope.
var ErrDuplicateDeclaration = errors.New("duplicate declaration")

// A Scope is a symbol table for one lexical region: the module,
// a function's parameters, a statement block or a where clause.
type Scope struct {
	Parent *Scope

	// External reports that the symbols of this scope are stored
	// by the statement that owns it rather than by its own block.
	External bool

	symbols []*Symbol
	names   map[string]*Symbol
}

// NewScope returns an empty scope nested within parent, which may be nil.
func NewScope(parent *Scope) *Scope {
	return &Scope{Parent: parent, names: make(map[string]*Symbol)}
}

// Declare adds a new symbol to the scope.
// It fails with ErrDuplicateDeclaration if the name is already declared here;
// shadowing a name of an enclosing scope is permitted.
func (sc *Scope) Declare(name string, kind SymbolKind, decl Node) (*Symbol, error) {
	if prev, ok := sc.names[name]; ok {
		return prev, fmt.Errorf("%w of %s", ErrDuplicateDeclaration, name)
	}
	sym := &Symbol{Name: name, Kind: kind, Index: len(sc.symbols), Decl: decl}
	sc.symbols = append(sc.symbols, sym)
	sc.names[name] = sym
	return sym, nil
}

// LookupLocal returns the symbol declared for name in this scope, or nil.
func (sc *Scope) LookupLocal(name string) *Symbol {
	return sc.names[name]
}

// Lookup searches this scope and then its ancestors, innermost first,
// and returns the nearest symbol for name, or nil if undeclared.
func (sc *Scope) Lookup(name string) *Symbol {
	for s := sc; s != nil; s = s.Parent {
		if sym := s.names[name]; sym != nil {
			return sym
		}
	}
	return nil
}

// Symbols returns the symbols of this scope in declaration order.
func (sc *Scope) Symbols() []*Symbol { return sc.symbols }
