package catalog_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/durationpb"

	"go.happytemplate.net/catalog"
)

type point struct{ X, Y int }

func newRegistry() *catalog.Registry {
	reg := catalog.NewRegistry()
	reg.Register("acme.geo.Point", reflect.TypeOf(point{}))
	reg.RegisterFunc("acme.Pair", func(args []interface{}) (interface{}, error) {
		return append([]interface{}(nil), args...), nil
	})
	return reg
}

func TestRegistryLoad(t *testing.T) {
	roots, err := catalog.Load(newRegistry(), []string{"acme"})
	if err != nil {
		t.Fatal(err)
	}
	if got := catalog.RootNames(roots); !cmp.Equal(got, []string{"acme"}) {
		t.Fatalf("roots = %v", got)
	}
	acme := roots["acme"]
	if got := acme.MemberNames(); !cmp.Equal(got, []string{"Pair", "geo"}) {
		t.Errorf("acme members = %v", got)
	}
	geo, ok := acme.GetMember("geo")
	if !ok {
		t.Fatal("acme.geo missing")
	}
	if name := geo.(*catalog.Namespace).Name(); name != "acme.geo" {
		t.Errorf("geo namespace name = %q", name)
	}
	m, _ := geo.(*catalog.Namespace).GetMember("Point")
	typ, ok := m.(catalog.Type)
	if !ok {
		t.Fatalf("acme.geo.Point is %T, want Type", m)
	}
	v, err := typ.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*point); !ok {
		t.Errorf("new Point = %T, want *point", v)
	}
	if _, err := typ.New([]interface{}{1}); err == nil {
		t.Errorf("Point constructor accepted arguments")
	}

	pair, _ := acme.GetMember("Pair")
	v, err = pair.(catalog.Type).New([]interface{}{int64(1), "two"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]interface{}{int64(1), "two"}, v); diff != "" {
		t.Errorf("Pair(1, \"two\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadUnknown(t *testing.T) {
	roots, err := catalog.Load(newRegistry(), []string{"acme.geo", "nope"})
	var errs catalog.LoadErrors
	if !errors.As(err, &errs) || len(errs) != 1 {
		t.Fatalf("Load error = %v, want one LoadError", err)
	}
	if errs[0].Name != "nope" || !errors.Is(errs[0], catalog.ErrNotFound) {
		t.Errorf("LoadError = %v", errs[0])
	}
	// The namespace that did load is still usable.
	if roots["acme"] == nil {
		t.Errorf("acme root missing after partial failure")
	}

	if _, err := catalog.Load(nil, []string{"acme"}); err == nil {
		t.Errorf("Load with nil source succeeded")
	}
}

func TestNamespaceMembers(t *testing.T) {
	ns := catalog.NewNamespace("a")
	if ns.HasMember("b") {
		t.Fatal("empty namespace has member b")
	}
	sub := catalog.NewNamespace("a.b")
	ns.SetMember("b", sub)
	if !ns.HasMember("b") {
		t.Fatal("SetMember did not add b")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("SetMember accepted a non-namespace, non-type member")
		}
	}()
	ns.SetMember("c", 42)
}

func TestProtoSource(t *testing.T) {
	_ = durationpb.New(0) // link the generated type
	roots, err := catalog.Load(catalog.ProtoSource{}, []string{"google.protobuf"})
	if err != nil {
		t.Fatal(err)
	}
	pb, ok := roots["google"].GetMember("protobuf")
	if !ok {
		t.Fatal("google.protobuf missing")
	}
	ns := pb.(*catalog.Namespace)
	m, ok := ns.GetMember("Duration")
	if !ok {
		t.Fatal("google.protobuf.Duration missing")
	}
	v, err := m.(catalog.Type).New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*durationpb.Duration); !ok {
		t.Errorf("new Duration = %T, want *durationpb.Duration", v)
	}

	// Nested messages do not turn their parent into a namespace.
	if m, _ := ns.GetMember("DescriptorProto"); m == nil {
		t.Errorf("DescriptorProto missing")
	} else if _, isType := m.(catalog.Type); !isType {
		t.Errorf("DescriptorProto is %T, want Type", m)
	}

	// Copy construction.
	d := durationpb.New(5e9)
	v, err = m2type(t, ns, "Duration").New([]interface{}{d})
	if err != nil {
		t.Fatal(err)
	}
	if got := v.(*durationpb.Duration).GetSeconds(); got != 5 {
		t.Errorf("copied seconds = %d, want 5", got)
	}
	if _, err := m2type(t, ns, "Duration").New([]interface{}{"x"}); err == nil {
		t.Errorf("Duration(\"x\") succeeded")
	}
}

func m2type(t *testing.T, ns *catalog.Namespace, name string) catalog.Type {
	t.Helper()
	m, ok := ns.GetMember(name)
	if !ok {
		t.Fatalf("%s.%s missing", ns.Name(), name)
	}
	return m.(catalog.Type)
}

func TestDescriptorSet(t *testing.T) {
	fdset := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			protodesc.ToFileDescriptorProto(durationpb.File_google_protobuf_duration_proto),
		},
	}
	data, err := proto.Marshal(fdset)
	if err != nil {
		t.Fatal(err)
	}
	files, err := catalog.LoadDescriptorSet(data)
	if err != nil {
		t.Fatal(err)
	}
	src := catalog.Sources{newRegistry(), catalog.ProtoSource{Files: files}}
	types, err := src.Types("google.protobuf")
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 1 || types[0].FullName() != "google.protobuf.Duration" {
		t.Fatalf("types = %v", types)
	}
	v, err := types[0].New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*dynamicpb.Message); !ok {
		t.Errorf("new dynamic Duration = %T, want *dynamicpb.Message", v)
	}

	if _, err := catalog.LoadDescriptorSet([]byte("garbage")); err == nil {
		t.Errorf("LoadDescriptorSet(garbage) succeeded")
	}
	if _, err := src.Types("acme"); err != nil {
		t.Errorf("combined source lost registry types: %v", err)
	}
}
