package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.happytemplate.net/happy"
)

func TestReadConfig(t *testing.T) {
	cfg, err := readConfig(strings.NewReader(`
load: [google.protobuf]
maxCallDepth: 50
globals:
  title: Report
  limits: {rows: 10, ratio: 0.5}
  tags: [a, b]
`))
	if err != nil {
		t.Fatal(err)
	}
	want := &config{
		Load:         []string{"google.protobuf"},
		MaxCallDepth: 50,
		Globals: map[string]interface{}{
			"title":  "Report",
			"limits": map[string]interface{}{"rows": 10, "ratio": 0.5},
			"tags":   []interface{}{"a", "b"},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	opts := &happy.Options{Predeclared: happy.StringDict{}}
	if err := cfg.apply(opts); err != nil {
		t.Fatal(err)
	}
	if got := happy.Repr(opts.Predeclared["tags"]); got != `["a", "b"]` {
		t.Errorf("tags = %s", got)
	}
	limits := opts.Predeclared["limits"].(*happy.Object)
	if got := strings.Join(limits.AttrNames(), " "); got != "ratio rows" {
		t.Errorf("limits fields = %s, want sorted", got)
	}
	if v, _ := limits.Get("rows"); v != int64(10) {
		t.Errorf("limits.rows = %#v, want int64 10", v)
	}
}

func TestReadConfigErrors(t *testing.T) {
	for _, test := range []struct{ src, want string }{
		{`colour: red`, "field colour not found"},
		{`maxCallDepth: -1`, "must not be negative"},
		{`load: 3`, "cannot unmarshal"},
	} {
		_, err := readConfig(strings.NewReader(test.src))
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got error %v, want %q", test.src, err, test.want)
		}
	}

	// An empty file is a valid config.
	if _, err := readConfig(strings.NewReader("")); err != nil {
		t.Errorf("empty config: %v", err)
	}
}
