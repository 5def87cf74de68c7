package proto_test

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/happy"
	happyproto "go.happytemplate.net/lib/proto"
)

func exec(t *testing.T, src string) (string, *happy.RuntimeContext) {
	t.Helper()
	out := new(bytes.Buffer)
	ctx := happy.NewContext(out)
	opts := &happy.Options{
		Predeclared: happy.StringDict{"proto": happyproto.Module},
		Catalog:     catalog.ProtoSource{},
	}
	if err := happy.ExecFile(ctx, "proto.happy", src, opts); err != nil {
		t.Fatalf("%s", err)
	}
	return out.String(), ctx
}

func TestProto(t *testing.T) {
	_ = durationpb.New(0) // link the Duration type

	got, ctx := exec(t, `load "google.protobuf";
function roundTrip(d) {
  def bin = proto.marshal(d);
  def d2 = proto.unmarshal(google.protobuf.Duration, bin);
  out d2.seconds, ",";
  def d3 = proto.unmarshalText(d, proto.marshalText(d));
  out d3 == d, ",";
  def d4 = proto.unmarshalJSON(d, proto.marshalJSON(d));
  out d4.nanos;
}
def d = new google.protobuf.Duration();
out proto.has(d, "seconds");
d.seconds = 90;
d.nanos = 5;
out ",", proto.has(d, "seconds"), ",", d, ",";
roundTrip(d);
proto.clear(d, "nanos");
`)
	want := "false,true,google.protobuf.Duration(seconds=90, nanos=5),90,true,5"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	d, _ := ctx.Globals.Get("d")
	if want := (&durationpb.Duration{Seconds: 90}); !proto.Equal(d.(proto.Message), want) {
		t.Errorf("d = %v, want %v", d, want)
	}
}

func TestProtoErrors(t *testing.T) {
	for _, test := range []struct{ src, want string }{
		{`out proto.has(1, "x");`, "proto.has: got int, want proto.Message"},
		{`out proto.has(new google.protobuf.Duration(), "x");`, "google.protobuf.Duration has no field x"},
		{`out proto.unmarshal("t", "");`, "proto.unmarshal: got string, want message type"},
		{`out proto.unmarshalText(google.protobuf.Duration, "nope: 1");`, "proto.unmarshalText"},
	} {
		ctx := happy.NewContext(nil)
		opts := &happy.Options{
			Predeclared: happy.StringDict{"proto": happyproto.Module},
			Catalog:     catalog.ProtoSource{},
			Load:        []string{"google.protobuf"},
		}
		err := happy.ExecFile(ctx, "proto.happy", test.src, opts)
		if err == nil {
			t.Errorf("%s: succeeded", test.src)
		} else if !bytes.Contains([]byte(err.Error()), []byte(test.want)) {
			t.Errorf("%s: got %v, want %q", test.src, err, test.want)
		}
	}
}
