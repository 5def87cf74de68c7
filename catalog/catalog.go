// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog provides the namespaces and types that a Happy
// module makes visible with load directives.
//
// A Source enumerates the types within a dotted namespace name.
// Load turns the types of several namespaces into trees of Namespace
// values, one tree per root segment, so that an expression such as
//
//	new google.protobuf.Duration()
//
// resolves 'google' to a root Namespace, walks its members, and
// constructs the Type found at the end of the chain.
package catalog // import "go.happytemplate.net/catalog"

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// A Type is a constructible type known to a catalog.
type Type interface {
	Name() string     // last segment of FullName
	FullName() string // dotted name, e.g. "google.protobuf.Duration"

	// New returns a new instance of the type built from args.
	New(args []interface{}) (interface{}, error)
}

// A Source enumerates the types of a namespace.
type Source interface {
	// Types returns the types whose full name lies within the
	// namespace name, at any depth. It returns ErrNotFound if
	// there are none.
	Types(name string) ([]Type, error)
}

// ErrNotFound is returned by Source.Types for an unknown namespace.
var ErrNotFound = errors.New("no such namespace")

// A Namespace is one node of a namespace tree. Its members are
// nested namespaces and types.
type Namespace struct {
	fullName string
	members  map[string]interface{} // *Namespace or Type
	names    []string
}

// NewNamespace returns an empty namespace with the given dotted name.
func NewNamespace(fullName string) *Namespace {
	return &Namespace{fullName: fullName, members: make(map[string]interface{})}
}

// Name returns the dotted name of the namespace.
func (ns *Namespace) Name() string { return ns.fullName }

func (ns *Namespace) String() string { return "<namespace " + ns.fullName + ">" }

// HasMember reports whether the namespace has a member of the given name.
func (ns *Namespace) HasMember(name string) bool {
	_, ok := ns.members[name]
	return ok
}

// GetMember returns the named member: a *Namespace or a Type.
func (ns *Namespace) GetMember(name string) (interface{}, bool) {
	m, ok := ns.members[name]
	return m, ok
}

// SetMember adds or replaces a member. The value must be a
// *Namespace or a Type.
func (ns *Namespace) SetMember(name string, member interface{}) {
	switch member.(type) {
	case *Namespace, Type:
	default:
		panic(fmt.Sprintf("catalog: namespace member %s has invalid type %T", name, member))
	}
	if _, ok := ns.members[name]; !ok {
		ns.names = append(ns.names, name)
	}
	ns.members[name] = member
}

// MemberNames returns the member names in the order they were added.
func (ns *Namespace) MemberNames() []string { return ns.names }

// child returns the nested namespace called name, creating it if
// necessary. It returns nil if name is already a Type.
func (ns *Namespace) child(name string) *Namespace {
	switch m := ns.members[name].(type) {
	case *Namespace:
		return m
	case nil:
		sub := NewNamespace(ns.fullName + "." + name)
		ns.SetMember(name, sub)
		return sub
	}
	return nil
}

// A LoadError records a namespace that could not be loaded.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("cannot load %s: %v", e.Name, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// LoadErrors is the error returned by Load when one or more
// namespaces failed to load.
type LoadErrors []*LoadError

func (e LoadErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Load builds the namespace trees holding the types of the named
// namespaces, keyed by root segment. Names that fail to load are
// reported in a LoadErrors; the trees of the others are still returned.
func Load(src Source, names []string) (map[string]*Namespace, error) {
	roots := make(map[string]*Namespace)
	var errs LoadErrors
	for _, name := range names {
		if src == nil {
			errs = append(errs, &LoadError{name, ErrNotFound})
			continue
		}
		types, err := src.Types(name)
		if err != nil {
			errs = append(errs, &LoadError{name, err})
			continue
		}
		for _, t := range types {
			insert(roots, t)
		}
	}
	if errs != nil {
		return roots, errs
	}
	return roots, nil
}

// insert adds t to the tree of its root segment.
// A type whose path collides with an existing type is ignored.
func insert(roots map[string]*Namespace, t Type) {
	segs := strings.Split(t.FullName(), ".")
	if len(segs) < 2 {
		return // types must live in a namespace
	}
	ns := roots[segs[0]]
	if ns == nil {
		ns = NewNamespace(segs[0])
		roots[segs[0]] = ns
	}
	for _, seg := range segs[1 : len(segs)-1] {
		if ns = ns.child(seg); ns == nil {
			return
		}
	}
	last := segs[len(segs)-1]
	if _, isNS := ns.members[last].(*Namespace); !isNS {
		ns.SetMember(last, t)
	}
}

// RootNames returns the keys of roots in sorted order.
func RootNames(roots map[string]*Namespace) []string {
	names := make([]string, 0, len(roots))
	for name := range roots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// inNamespace reports whether the dotted name full lies within namespace ns.
func inNamespace(full, ns string) bool {
	return strings.HasPrefix(full, ns+".") && len(full) > len(ns)+1
}

// Sources combines several sources; their types are concatenated.
type Sources []Source

func (s Sources) Types(name string) ([]Type, error) {
	var all []Type
	for _, src := range s {
		types, err := src.Types(name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		all = append(all, types...)
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all, nil
}
