package happy

import (
	"fmt"
	"reflect"
	"sort"
	"unicode/utf8"
)

// An enumerator is the state of a for loop over a sequence.
// MoveNext advances it; current is the element it stands at.
type enumerator struct {
	iter    Iterator
	current Value
	done    bool
	err     func() error // reports a failure of iter, if it can fail
}

func newEnumerator(x Value) (*enumerator, error) {
	iter, err := Iterate(x)
	if err != nil {
		return nil, err
	}
	e := &enumerator{iter: iter}
	if f, ok := iter.(interface{ Err() error }); ok {
		e.err = f.Err
	}
	return e, nil
}

func (e *enumerator) moveNext() (Value, error) {
	if e.done {
		return false, nil
	}
	if e.iter.Next(&e.current) {
		return true, nil
	}
	e.done = true
	e.current = nil
	e.iter.Done()
	if e.err != nil {
		if err := e.err(); err != nil {
			return nil, err
		}
	}
	return false, nil
}

func (e *enumerator) String() string { return "<enumerator>" }

// Iterate returns an iterator over the elements of x.
//
// Lists and other Iterable values yield their elements, strings yield
// their characters, Go slices and arrays yield their elements, and Go
// maps yield their keys in sorted order.
func Iterate(x Value) (Iterator, error) {
	switch x := x.(type) {
	case Iterable:
		return x.Iterate(), nil
	case Indexable:
		return &indexIterator{seq: x}, nil
	case string:
		return &stringIterator{s: x}, nil
	case nil:
		return nil, fmt.Errorf("cannot iterate over null")
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return &indexIterator{seq: goSeq{v}}, nil
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
		elems := make([]Value, len(keys))
		for i, k := range keys {
			elems[i] = toValue(k)
		}
		return NewList(elems).Iterate(), nil
	}
	return nil, fmt.Errorf("cannot iterate over %s", TypeName(x))
}

type indexIterator struct {
	seq Indexable
	i   int
}

func (it *indexIterator) Next(p *Value) bool {
	if it.i < it.seq.Len() {
		*p = it.seq.Index(it.i)
		it.i++
		return true
	}
	return false
}

func (it *indexIterator) Done() {}

type stringIterator struct {
	s string
}

func (it *stringIterator) Next(p *Value) bool {
	if it.s == "" {
		return false
	}
	_, size := utf8.DecodeRuneInString(it.s)
	*p = it.s[:size]
	it.s = it.s[size:]
	return true
}

func (it *stringIterator) Done() {}

// A WhereIterable is an Iterable over the elements of another sequence
// for which a predicate function returns a true value. It is the
// value of the where clause of a for statement.
type WhereIterable struct {
	ctx  *RuntimeContext
	src  Value
	pred Value
}

var _ Iterable = (*WhereIterable)(nil)

// NewWhereIterable returns a WhereIterable over the elements of src
// that satisfy pred, which is called with ctx. src must be iterable.
func NewWhereIterable(ctx *RuntimeContext, src, pred Value) (*WhereIterable, error) {
	iter, err := Iterate(src)
	if err != nil {
		return nil, err
	}
	iter.Done()
	return &WhereIterable{ctx: ctx, src: src, pred: pred}, nil
}

func (w *WhereIterable) String() string { return fmt.Sprintf("<where %s>", TypeName(w.src)) }

func (w *WhereIterable) Iterate() Iterator {
	iter, err := Iterate(w.src)
	return &whereIterator{w: w, iter: iter, err: err}
}

type whereIterator struct {
	w    *WhereIterable
	iter Iterator
	err  error
}

func (it *whereIterator) Next(p *Value) bool {
	if it.err != nil {
		return false
	}
	var x Value
	for it.iter.Next(&x) {
		ok, err := Call(it.w.ctx, it.w.pred, x)
		if err != nil {
			it.err = err
			return false
		}
		if Truth(ok) {
			*p = x
			return true
		}
	}
	return false
}

func (it *whereIterator) Done() {
	if it.iter != nil {
		it.iter.Done()
	}
}

// Err returns the error, if any, that ended the iteration.
func (it *whereIterator) Err() error { return it.err }
