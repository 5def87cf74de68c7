// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"go.happytemplate.net/syntax"
)

// A Kind identifies the operation of a CallSite.
//
// The operands of a Dynamic node are laid out as follows,
// where n is the site's Arity:
//
//	GetMember   x
//	SetMember   x value
//	GetIndex    x index_1 ... index_n
//	SetIndex    x index_1 ... index_n value
//	Invoke      fn arg_1 ... arg_n
//	Call        x arg_1 ... arg_n       (method Name of x)
//	Create      type arg_1 ... arg_n
//	BinaryOp    x y
//	UnaryOp     x
//
// The value of a SetMember or SetIndex operation is the assigned value.
type Kind uint8

const (
	GetMember Kind = iota
	SetMember
	GetIndex
	SetIndex
	Invoke
	Call
	Create
	BinaryOp
	UnaryOp
)

var kindNames = [...]string{
	GetMember: "GetMember",
	SetMember: "SetMember",
	GetIndex:  "GetIndex",
	SetIndex:  "SetIndex",
	Invoke:    "Invoke",
	Call:      "Call",
	Create:    "Create",
	BinaryOp:  "BinaryOp",
	UnaryOp:   "UnaryOp",
}

func (k Kind) String() string { return kindNames[k] }

// NumOperands returns the number of operands of a Dynamic node
// for a site of kind k with the given arity.
func (k Kind) NumOperands(arity int) int {
	switch k {
	case GetMember, UnaryOp:
		return 1
	case SetMember, BinaryOp:
		return 2
	case SetIndex:
		return arity + 2
	}
	return arity + 1
}

// A CallSite is the static description of a dynamic operation.
// Each Dynamic node has its own CallSite, and with it its own cache.
type CallSite struct {
	Kind  Kind
	Name  string          // member name, for GetMember, SetMember and Call
	Op    syntax.Operator // for BinaryOp and UnaryOp
	Arity int             // number of indices or arguments
	Pos   syntax.Position

	Cache InlineCache
}

func (site *CallSite) String() string {
	switch site.Kind {
	case GetMember, SetMember:
		return fmt.Sprintf("%s %s", site.Kind, site.Name)
	case Call:
		return fmt.Sprintf("%s %s/%d", site.Kind, site.Name, site.Arity)
	case GetIndex, SetIndex, Invoke, Create:
		return fmt.Sprintf("%s/%d", site.Kind, site.Arity)
	case BinaryOp, UnaryOp:
		return fmt.Sprintf("%s %s", site.Kind, site.Op)
	}
	return site.Kind.String()
}

// A Shape is the key of an inline cache: the dynamic types of the
// operands an operation was resolved for. Y is nil for operations
// whose target depends on a single operand.
type Shape struct {
	X, Y reflect.Type
}

// A CacheEntry is a resolved operation and the shape it is valid for.
type CacheEntry struct {
	Shape  Shape
	Target interface{}
}

// An InlineCache remembers the most recent resolution of a call site.
// It holds at most one entry; a lookup with a different shape misses,
// and the caller replaces the entry after resolving again.
//
// The zero InlineCache is empty and ready to use. It is safe for
// concurrent use.
type InlineCache struct {
	entry  atomic.Pointer[CacheEntry]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Lookup returns the target stored for shape s, if any.
func (c *InlineCache) Lookup(s Shape) (interface{}, bool) {
	if e := c.entry.Load(); e != nil && e.Shape == s {
		c.hits.Add(1)
		return e.Target, true
	}
	c.misses.Add(1)
	return nil, false
}

// Store replaces the cache entry.
func (c *InlineCache) Store(s Shape, target interface{}) {
	c.entry.Store(&CacheEntry{Shape: s, Target: target})
}

// Entry returns the current entry, or nil.
func (c *InlineCache) Entry() *CacheEntry { return c.entry.Load() }

// Stats returns the number of lookups that hit and missed.
func (c *InlineCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Reset empties the cache and clears its counters.
func (c *InlineCache) Reset() {
	c.entry.Store(nil)
	c.hits.Store(0)
	c.misses.Store(0)
}
