// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package json defines utilities for converting Happy values
// to and from JSON strings.
//
// The module has three functions:
//
//	encode(x)               returns the JSON encoding of x
//	decode(s)               returns the value denoted by the JSON text s
//	indent(s, indent="\t")  returns s reformatted with indentation
//
// Objects encode as JSON objects with their fields in order; lists
// encode as arrays. JSON objects decode as objects, arrays as lists,
// and numbers as ints if they are integral and in range, else floats.
package json // import "go.happytemplate.net/lib/json"

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"go.happytemplate.net/happy"
)

// Module json is a Happy module of JSON-related functions.
var Module = &happy.Module{
	Name: "json",
	Members: happy.StringDict{
		"decode": happy.NewBuiltin("json.decode", decode),
		"encode": happy.NewBuiltin("json.encode", encode),
		"indent": happy.NewBuiltin("json.indent", indent),
	},
}

func encode(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var x happy.Value
	if err := happy.UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := encodeValue(buf, x, 0); err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return buf.String(), nil
}

const maxDepth = 100

func encodeValue(buf *bytes.Buffer, x happy.Value, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("nesting too deep (cycle?)")
	}
	switch x := x.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return fmt.Errorf("cannot encode non-finite float %v", x)
		}
		buf.WriteString(happy.String(x))
	case string:
		data, _ := json.Marshal(x)
		buf.Write(data)
	case happy.Indexable:
		buf.WriteByte('[')
		for i, n := 0, x.Len(); i < n; i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, x.Index(i), depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case happy.HasAttrs:
		buf.WriteByte('{')
		for i, name := range x.AttrNames() {
			v, err := x.Attr(name)
			if err != nil {
				return err
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(name)
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeValue(buf, v, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case happy.Callable:
		return fmt.Errorf("cannot encode %s as JSON", happy.TypeName(x))
	case proto.Message:
		data, err := protojson.Marshal(x)
		if err != nil {
			return err
		}
		// protojson output is not canonical; compact it.
		return json.Compact(buf, data)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("cannot encode %s as JSON: %v", happy.TypeName(x), err)
		}
		buf.Write(data)
	}
	return nil
}

func decode(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var s string
	if err := happy.UnpackArgs(b.Name(), args, 1, &s); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%s: unexpected text after value", b.Name())
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (happy.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tok := tok.(type) {
	case json.Delim:
		switch tok {
		case '[':
			var elems []happy.Value
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
			}
			dec.Token() // ']'
			return happy.NewList(elems), nil
		case '{':
			obj := happy.NewObject()
			for dec.More() {
				key, err := dec.Token()
				if err != nil {
					return nil, err
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.SetField(key.(string), v)
			}
			dec.Token() // '}'
			return obj, nil
		}
		return nil, fmt.Errorf("unexpected %v", tok)
	case json.Number:
		if i, err := tok.Int64(); err == nil {
			return i, nil
		}
		f, err := tok.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", tok)
		}
		return f, nil
	}
	// nil, bool or string
	return tok, nil
}

func indent(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var s string
	ind := "\t"
	if err := happy.UnpackArgs(b.Name(), args, 1, &s, &ind); err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := json.Indent(buf, []byte(s), "", ind); err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return buf.String(), nil
}
