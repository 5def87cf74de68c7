package catalog

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// A ProtoSource is a Source of protocol message types.
//
// If Files is set, the messages of its files are instantiated with
// dynamicpb; otherwise the generated message types linked into the
// process (or those of Registry, if set) are used.
// Only top-level messages of a package are returned.
type ProtoSource struct {
	Registry *protoregistry.Types
	Files    *protoregistry.Files
}

// Types implements Source.
func (s ProtoSource) Types(name string) ([]Type, error) {
	var types []Type
	if s.Files != nil {
		s.Files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
			if pkg := string(fd.Package()); pkg == name || inNamespace(pkg, name) {
				msgs := fd.Messages()
				for i := 0; i < msgs.Len(); i++ {
					types = append(types, ProtoType{dynamicpb.NewMessageType(msgs.Get(i))})
				}
			}
			return true
		})
	} else {
		reg := s.Registry
		if reg == nil {
			reg = protoregistry.GlobalTypes
		}
		reg.RangeMessages(func(mt protoreflect.MessageType) bool {
			desc := mt.Descriptor()
			if _, topLevel := desc.Parent().(protoreflect.FileDescriptor); topLevel && inNamespace(string(desc.FullName()), name) {
				types = append(types, ProtoType{mt})
			}
			return true
		})
	}
	if len(types) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(types, func(i, j int) bool { return types[i].FullName() < types[j].FullName() })
	return types, nil
}

// A ProtoType is a Type whose instances are protocol messages.
type ProtoType struct {
	MessageType protoreflect.MessageType
}

func (t ProtoType) Name() string     { return string(t.MessageType.Descriptor().Name()) }
func (t ProtoType) FullName() string { return string(t.MessageType.Descriptor().FullName()) }
func (t ProtoType) String() string   { return "<type " + t.FullName() + ">" }

// New returns a new empty message. A single message argument of the
// same type is copied into the result.
func (t ProtoType) New(args []interface{}) (interface{}, error) {
	msg := t.MessageType.New().Interface()
	switch len(args) {
	case 0:
		return msg, nil
	case 1:
		src, ok := args[0].(proto.Message)
		if !ok || src.ProtoReflect().Descriptor().FullName() != t.MessageType.Descriptor().FullName() {
			return nil, fmt.Errorf("%s: cannot construct from %T", t.FullName(), args[0])
		}
		proto.Merge(msg, src)
		return msg, nil
	}
	return nil, fmt.Errorf("%s: constructor takes at most 1 argument (%d given)", t.FullName(), len(args))
}

// LoadDescriptorSet decodes a serialized FileDescriptorSet, as produced
// by protoc --descriptor_set_out, into a file registry suitable for
// ProtoSource.Files.
func LoadDescriptorSet(data []byte) (*protoregistry.Files, error) {
	var fdset descriptorpb.FileDescriptorSet
	if err := (proto.UnmarshalOptions{Merge: true}).Unmarshal(data, &fdset); err != nil {
		return nil, fmt.Errorf("catalog: decoding descriptor set: %w", err)
	}
	files, err := protodesc.NewFiles(&fdset)
	if err != nil {
		return nil, fmt.Errorf("catalog: building descriptor index: %w", err)
	}
	return files, nil
}
