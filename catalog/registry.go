package catalog

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// A Registry is a Source of Go types registered by the host application.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// Register makes the Go type t constructible under the dotted name
// fullName. New instances are pointers to zero values of t.
func (r *Registry) Register(fullName string, t reflect.Type) {
	r.add(&GoType{fullName: fullName, typ: t})
}

// RegisterFunc makes a type constructible under fullName by calling ctor.
func (r *Registry) RegisterFunc(fullName string, ctor func(args []interface{}) (interface{}, error)) {
	r.add(&GoType{fullName: fullName, ctor: ctor})
}

func (r *Registry) add(t *GoType) {
	r.mu.Lock()
	r.types[t.fullName] = t
	r.mu.Unlock()
}

// Types implements Source.
func (r *Registry) Types(name string) ([]Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var types []Type
	for full, t := range r.types {
		if inNamespace(full, name) {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(types, func(i, j int) bool { return types[i].FullName() < types[j].FullName() })
	return types, nil
}

// A GoType is a Type registered with a Registry.
type GoType struct {
	fullName string
	typ      reflect.Type
	ctor     func(args []interface{}) (interface{}, error)
}

func (t *GoType) FullName() string { return t.fullName }

func (t *GoType) Name() string {
	for i := len(t.fullName) - 1; i >= 0; i-- {
		if t.fullName[i] == '.' {
			return t.fullName[i+1:]
		}
	}
	return t.fullName
}

func (t *GoType) String() string { return "<type " + t.fullName + ">" }

// Type returns the registered Go type, or nil for constructor functions.
func (t *GoType) Type() reflect.Type { return t.typ }

func (t *GoType) New(args []interface{}) (interface{}, error) {
	if t.ctor != nil {
		return t.ctor(args)
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: constructor takes no arguments (%d given)", t.fullName, len(args))
	}
	return reflect.New(t.typ).Interface(), nil
}
