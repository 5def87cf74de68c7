// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proto defines a module of utilities for encoding, decoding
// and inspecting protocol messages within Happy programs.
//
// Messages are constructed with new, using a message type from a
// loaded catalog namespace, and their fields are accessed with dot
// notation:
//
//	load "google.protobuf";
//	def d = new google.protobuf.Duration();
//	d.seconds = 5;
//	out proto.marshalText(d);
//
// The functions of the module are:
//
//	has(msg, field)            reports whether a field is present
//	clear(msg, field)          clears a field
//	marshal(msg)               encodes msg in binary form
//	marshalText(msg)           encodes msg in text form
//	marshalJSON(msg)           encodes msg in JSON form
//	unmarshal(type, data)      decodes a message of the given type
//	unmarshalText(type, text)  decodes a message from text form
//	unmarshalJSON(type, text)  decodes a message from JSON form
//
// A type argument is a message type or a message of that type.
package proto // import "go.happytemplate.net/lib/proto"

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/happy"
)

// Module is the Happy proto module.
var Module = &happy.Module{
	Name: "proto",
	Members: happy.StringDict{
		"clear":         happy.NewBuiltin("proto.clear", clearField),
		"has":           happy.NewBuiltin("proto.has", has),
		"marshal":       happy.NewBuiltin("proto.marshal", marshal),
		"marshalJSON":   happy.NewBuiltin("proto.marshalJSON", marshal),
		"marshalText":   happy.NewBuiltin("proto.marshalText", marshal),
		"unmarshal":     happy.NewBuiltin("proto.unmarshal", unmarshal),
		"unmarshalJSON": happy.NewBuiltin("proto.unmarshalJSON", unmarshal),
		"unmarshalText": happy.NewBuiltin("proto.unmarshalText", unmarshal),
	},
}

// field returns the message and named field of a has or clear call.
func field(b *happy.Builtin, args []happy.Value) (protoreflect.Message, protoreflect.FieldDescriptor, error) {
	var x happy.Value
	var name string
	if err := happy.UnpackArgs(b.Name(), args, 2, &x, &name); err != nil {
		return nil, nil, err
	}
	m, ok := x.(proto.Message)
	if !ok {
		return nil, nil, fmt.Errorf("%s: got %s, want proto.Message", b.Name(), happy.TypeName(x))
	}
	msg := m.ProtoReflect()
	fdesc := msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fdesc == nil {
		return nil, nil, fmt.Errorf("%s: %s has no field %s", b.Name(), msg.Descriptor().FullName(), name)
	}
	return msg, fdesc, nil
}

// has(msg, field) reports whether the named field of the message is present.
func has(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	msg, fdesc, err := field(b, args)
	if err != nil {
		return nil, err
	}
	return msg.Has(fdesc), nil
}

// clear(msg, field) clears the named field of the message.
func clearField(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	msg, fdesc, err := field(b, args)
	if err != nil {
		return nil, err
	}
	if !msg.IsValid() {
		return nil, fmt.Errorf("%s: cannot clear field of read-only message", b.Name())
	}
	msg.Clear(fdesc)
	return nil, nil
}

// marshal{,Text,JSON}(msg) encodes a message as a string.
func marshal(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var x happy.Value
	if err := happy.UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	m, ok := x.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want proto.Message", b.Name(), happy.TypeName(x))
	}
	var data []byte
	var err error
	switch b.Name() {
	case "proto.marshal":
		data, err = proto.MarshalOptions{Deterministic: true}.Marshal(m)
	case "proto.marshalText":
		data, err = prototext.MarshalOptions{Multiline: true}.Marshal(m)
	case "proto.marshalJSON":
		data, err = protojson.Marshal(m)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return string(data), nil
}

// unmarshal{,Text,JSON}(type, data) decodes a message of the given type.
func unmarshal(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var t happy.Value
	var data string
	if err := happy.UnpackArgs(b.Name(), args, 2, &t, &data); err != nil {
		return nil, err
	}
	var mt protoreflect.MessageType
	switch t := t.(type) {
	case catalog.ProtoType:
		mt = t.MessageType
	case proto.Message:
		mt = t.ProtoReflect().Type()
	default:
		return nil, fmt.Errorf("%s: got %s, want message type", b.Name(), happy.TypeName(t))
	}
	msg := mt.New().Interface()
	var err error
	switch b.Name() {
	case "proto.unmarshal":
		err = proto.Unmarshal([]byte(data), msg)
	case "proto.unmarshalText":
		err = prototext.Unmarshal([]byte(data), msg)
	case "proto.unmarshalJSON":
		err = protojson.Unmarshal([]byte(data), msg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return msg, nil
}
