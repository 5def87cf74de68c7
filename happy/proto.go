// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy

// This file defines access to the fields of protocol messages.
//
// A message is a Happy value as is: its fields are members, read and
// written by x.f and x.f = y. Scalar fields convert to and from the
// Happy basic types; enum fields are ints (a string naming an enum
// value may be assigned); message fields are messages that alias
// the field; repeated fields are RepeatedField sequences; map fields
// with string keys read as a copy in an Object.

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

func protoFieldDesc(desc protoreflect.MessageDescriptor, name string) (protoreflect.FieldDescriptor, error) {
	if fdesc := desc.Fields().ByName(protoreflect.Name(name)); fdesc != nil {
		return fdesc, nil
	}
	return nil, NoSuchAttrError(fmt.Sprintf("%s has no field %s", desc.FullName(), name))
}

func protoGetField(m proto.Message, name string) (Value, error) {
	msg := m.ProtoReflect()
	fdesc, err := protoFieldDesc(msg.Descriptor(), name)
	if err != nil {
		return nil, err
	}
	if fdesc.IsList() {
		if !msg.Has(fdesc) && !msg.IsValid() {
			return &RepeatedField{typ: fdesc, list: emptyList{}}, nil
		}
		return &RepeatedField{typ: fdesc, list: msg.Mutable(fdesc).List()}, nil
	}
	if fdesc.IsMap() {
		return protoMapValue(fdesc, msg.Get(fdesc).Map())
	}
	if !msg.Has(fdesc) {
		if desc := fdesc.Message(); desc != nil {
			return newMessage(desc).Interface(), nil
		}
		return fromProto(fdesc, fdesc.Default()), nil
	}
	return fromProto(fdesc, msg.Get(fdesc)), nil
}

func protoSetField(m proto.Message, name string, v Value) error {
	msg := m.ProtoReflect()
	fdesc, err := protoFieldDesc(msg.Descriptor(), name)
	if err != nil {
		return err
	}
	if !msg.IsValid() {
		return fmt.Errorf("cannot set field %s of read-only %s message", name, msg.Descriptor().FullName())
	}

	// Null clears a field.
	if v == nil {
		msg.Clear(fdesc)
		return nil
	}

	// Assigning to a repeated field copies the elements.
	if fdesc.IsList() {
		iter, err := Iterate(v)
		if err != nil {
			return fmt.Errorf("got %s for field %s, want iterable", TypeName(v), name)
		}
		defer iter.Done()
		list := msg.Mutable(fdesc).List()
		list.Truncate(0)
		var x Value
		for i := 0; iter.Next(&x); i++ {
			pv, err := toProto(fdesc, x)
			if err != nil {
				return fmt.Errorf("index %d: %v", i, err)
			}
			list.Append(pv)
		}
		return nil
	}

	if fdesc.IsMap() {
		obj, ok := v.(*Object)
		if !ok || fdesc.MapKey().Kind() != protoreflect.StringKind {
			return fmt.Errorf("got %s for map field %s, want object", TypeName(v), name)
		}
		mm := msg.Mutable(fdesc).Map()
		for _, k := range obj.AttrNames() {
			pv, err := toProto(fdesc.MapValue(), obj.fields[k])
			if err != nil {
				return fmt.Errorf("in map field %s, at key %s: %v", name, k, err)
			}
			mm.Set(protoreflect.ValueOfString(k).MapKey(), pv)
		}
		return nil
	}

	pv, err := toProto(fdesc, v)
	if err != nil {
		return fmt.Errorf("in field %s: %v", name, err)
	}
	msg.Set(fdesc, pv)
	return nil
}

// protoFieldNames returns the names of the fields of m, sorted.
func protoFieldNames(m proto.Message) []string {
	fields := m.ProtoReflect().Descriptor().Fields()
	names := make([]string, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		names = append(names, string(fields.Get(i).Name()))
	}
	sort.Strings(names)
	return names
}

// toProto converts a Happy value for a message field into protoreflect form.
func toProto(fdesc protoreflect.FieldDescriptor, v Value) (protoreflect.Value, error) {
	switch fdesc.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}

	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		if i, ok := v.(int64); ok {
			if i >= 0 && int64(uint32(i)) == i {
				return protoreflect.ValueOfUint32(uint32(i)), nil
			}
			return noValue, fmt.Errorf("invalid %s: %d", typeString(fdesc), i)
		}

	case protoreflect.Int32Kind, protoreflect.Sfixed32Kind, protoreflect.Sint32Kind:
		if i, ok := v.(int64); ok {
			if int64(int32(i)) == i {
				return protoreflect.ValueOfInt32(int32(i)), nil
			}
			return noValue, fmt.Errorf("invalid %s: %d", typeString(fdesc), i)
		}

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if i, ok := v.(int64); ok {
			if i >= 0 {
				return protoreflect.ValueOfUint64(uint64(i)), nil
			}
			return noValue, fmt.Errorf("invalid %s: %d", typeString(fdesc), i)
		}

	case protoreflect.Int64Kind, protoreflect.Sfixed64Kind, protoreflect.Sint64Kind:
		if i, ok := v.(int64); ok {
			return protoreflect.ValueOfInt64(i), nil
		}

	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}

	case protoreflect.BytesKind:
		switch v := v.(type) {
		case string:
			return protoreflect.ValueOfBytes([]byte(v)), nil
		case []byte:
			return protoreflect.ValueOfBytes(v), nil
		}

	case protoreflect.DoubleKind:
		switch v := v.(type) {
		case float64:
			return protoreflect.ValueOfFloat64(v), nil
		case int64:
			return protoreflect.ValueOfFloat64(float64(v)), nil
		}

	case protoreflect.FloatKind:
		switch v := v.(type) {
		case float64:
			return protoreflect.ValueOfFloat32(float32(v)), nil
		case int64:
			return protoreflect.ValueOfFloat32(float32(v)), nil
		}

	case protoreflect.GroupKind, protoreflect.MessageKind:
		desc := fdesc.Message()
		switch v := v.(type) {
		case proto.Message:
			if got := v.ProtoReflect().Descriptor(); got.FullName() != desc.FullName() {
				return noValue, fmt.Errorf("got %s, want %s", got.FullName(), desc.FullName())
			}
			return protoreflect.ValueOfMessage(v.ProtoReflect()), nil

		case *Object:
			dest := newMessage(desc)
			for _, name := range v.AttrNames() {
				if err := protoSetField(dest.Interface(), name, v.fields[name]); err != nil {
					return noValue, err
				}
			}
			return protoreflect.ValueOfMessage(dest), nil
		}

	case protoreflect.EnumKind:
		values := fdesc.Enum().Values()
		switch v := v.(type) {
		case int64:
			if ev := values.ByNumber(protoreflect.EnumNumber(v)); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
			return noValue, fmt.Errorf("invalid number %d for %s", v, fdesc.Enum().FullName())
		case string:
			if ev := values.ByName(protoreflect.Name(v)); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
			return noValue, fmt.Errorf("invalid name %q for %s", v, fdesc.Enum().FullName())
		}
	}

	return noValue, fmt.Errorf("got %s, want %s", TypeName(v), typeString(fdesc))
}

var noValue protoreflect.Value

// fromProto returns a Happy value for the scalar or message value x
// of a field of type fdesc.
func fromProto(fdesc protoreflect.FieldDescriptor, x protoreflect.Value) Value {
	switch fdesc.Kind() {
	case protoreflect.BoolKind:
		return x.Bool()

	case protoreflect.Fixed32Kind,
		protoreflect.Uint32Kind,
		protoreflect.Uint64Kind,
		protoreflect.Fixed64Kind:
		return int64(x.Uint())

	case protoreflect.Int32Kind,
		protoreflect.Sfixed32Kind,
		protoreflect.Sint32Kind,
		protoreflect.Int64Kind,
		protoreflect.Sfixed64Kind,
		protoreflect.Sint64Kind:
		return x.Int()

	case protoreflect.StringKind:
		return x.String()

	case protoreflect.BytesKind:
		return string(x.Bytes())

	case protoreflect.DoubleKind, protoreflect.FloatKind:
		return x.Float()

	case protoreflect.GroupKind, protoreflect.MessageKind:
		return x.Message().Interface()

	case protoreflect.EnumKind:
		return int64(x.Enum())
	}
	panic(fmt.Sprintf("got %T, want %s", x, typeString(fdesc)))
}

func protoMapValue(fdesc protoreflect.FieldDescriptor, m protoreflect.Map) (Value, error) {
	if fdesc.MapKey().Kind() != protoreflect.StringKind {
		return nil, fmt.Errorf("map field %s has non-string keys", fdesc.Name())
	}
	var keys []string
	m.Range(func(k protoreflect.MapKey, _ protoreflect.Value) bool {
		keys = append(keys, k.String())
		return true
	})
	sort.Strings(keys)
	obj := NewObject()
	for _, k := range keys {
		obj.SetField(k, fromProto(fdesc.MapValue(), m.Get(protoreflect.ValueOfString(k).MapKey())))
	}
	return obj, nil
}

// newMessage returns a new empty instance of the message type described by desc.
func newMessage(desc protoreflect.MessageDescriptor) protoreflect.Message {
	// Use the generated type for a linked-in message,
	// and dynamicpb for all others.
	mt, err := protoregistry.GlobalTypes.FindMessageByName(desc.FullName())
	if err == nil && mt.Descriptor() == desc {
		return mt.New()
	}
	return dynamicpb.NewMessage(desc).ProtoReflect()
}

// typeString returns a user-friendly description of the type of a
// protocol message field (or element of a repeated field).
func typeString(fdesc protoreflect.FieldDescriptor) string {
	switch fdesc.Kind() {
	case protoreflect.GroupKind, protoreflect.MessageKind:
		return string(fdesc.Message().FullName())
	case protoreflect.EnumKind:
		return string(fdesc.Enum().FullName())
	}
	return strings.ToLower(strings.TrimPrefix(fdesc.Kind().String(), "TYPE_"))
}

// A RepeatedField is a Happy value that wraps a repeated field of a
// protocol message. It aliases the field: assignments to its elements
// and appends update the message.
type RepeatedField struct {
	typ  protoreflect.FieldDescriptor
	list protoreflect.List
}

var (
	_ HasSetIndex = (*RepeatedField)(nil)
	_ Iterable    = (*RepeatedField)(nil)
)

func (rf *RepeatedField) Type() string {
	return fmt.Sprintf("proto.repeated<%s>", typeString(rf.typ))
}

func (rf *RepeatedField) Len() int          { return rf.list.Len() }
func (rf *RepeatedField) Index(i int) Value { return fromProto(rf.typ, rf.list.Get(i)) }
func (rf *RepeatedField) Iterate() Iterator { return &indexIterator{seq: rf} }

func (rf *RepeatedField) SetIndex(i int, v Value) error {
	x, err := toProto(rf.typ, v)
	if err != nil {
		return fmt.Errorf("setting element of repeated field: %v", err)
	}
	rf.list.Set(i, x)
	return nil
}

// Append adds an element to the end of the field.
func (rf *RepeatedField) Append(v Value) error {
	if !rf.list.IsValid() {
		return fmt.Errorf("cannot append to read-only repeated field")
	}
	x, err := toProto(rf.typ, v)
	if err != nil {
		return fmt.Errorf("appending to repeated field: %v", err)
	}
	rf.list.Append(x)
	return nil
}

func (rf *RepeatedField) String() string {
	buf := new(bytes.Buffer)
	buf.WriteByte('[')
	for i := 0; i < rf.list.Len(); i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeValue(buf, rf.Index(i), nil)
	}
	buf.WriteByte(']')
	return buf.String()
}

// A read-only empty implementation of protoreflect.List.
type emptyList struct{ protoreflect.List }

func (emptyList) Len() int      { return 0 }
func (emptyList) IsValid() bool { return false }

// writeMessage writes the populated fields of m, in field number order:
//
//	acme.geo.Point(x=1, y=2)
func writeMessage(buf *bytes.Buffer, m proto.Message) {
	msg := m.ProtoReflect()
	buf.WriteString(string(msg.Descriptor().FullName()))
	buf.WriteByte('(')

	var fields []protoreflect.FieldDescriptor
	msg.Range(func(fdesc protoreflect.FieldDescriptor, _ protoreflect.Value) bool {
		fields = append(fields, fdesc)
		return true
	})
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Number() < fields[j].Number()
	})

	for i, fdesc := range fields {
		if i > 0 {
			buf.WriteString(", ")
		}
		if fdesc.IsExtension() {
			buf.WriteString(string(fdesc.FullName()))
		} else {
			buf.WriteString(string(fdesc.Name()))
		}
		buf.WriteString("=")
		v := msg.Get(fdesc)
		switch {
		case fdesc.IsList():
			buf.WriteString((&RepeatedField{typ: fdesc, list: v.List()}).String())
		case fdesc.IsMap():
			if x, err := protoMapValue(fdesc, v.Map()); err == nil {
				writeValue(buf, x, nil)
			} else {
				buf.WriteString("{...}")
			}
		default:
			writeValue(buf, fromProto(fdesc, v), nil)
		}
	}
	buf.WriteByte(')')
}
