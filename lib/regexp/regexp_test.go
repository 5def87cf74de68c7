package regexp_test

import (
	"bytes"
	"strings"
	"testing"

	"go.happytemplate.net/happy"
	"go.happytemplate.net/lib/regexp"
)

func exec(src string) (string, error) {
	out := new(bytes.Buffer)
	opts := &happy.Options{Predeclared: happy.StringDict{"regexp": regexp.Module}}
	err := happy.ExecFile(happy.NewContext(out), "regexp.happy", src, opts)
	return out.String(), err
}

func TestRegexp(t *testing.T) {
	got, err := exec(`
def re = regexp.compile("(\\w+)@(\\w+)");
out re.matches("x a@b"), ",", re.find("x a@b c@d"), ",";
out re.findAll("a@b c@d").join("|"), ",", re.findAll("a@b c@d", 1).join("|"), ",";
out re.findSubmatches("a@b").join("|"), ",";
out re.replaceAll("a@b", "\\2 at \\1"), ",", re.replaceAll("a@b", "\\\\1$"), ",";
out re.replaceAll("a@b c@d", upper), ",";
out regexp.compile(",\\s*").split("a, b,c").join("|"), ",", type(re);
`)
	if err != nil {
		t.Fatal(err)
	}
	if want := `true,a@b,a@b|c@d,a@b,a@b|a|b,b at a,\1$,A@B C@D,a|b|c,regexp`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRegexpErrors(t *testing.T) {
	for _, test := range []struct{ src, want string }{
		{`regexp.compile("(");`, "missing closing )"},
		{`regexp.compile("\\C");`, `\C is not supported`},
		{`function n(s) { return 1; } regexp.compile("a").replaceAll("aa", n);`, "returned int, want string"},
		{`regexp.compile("a").replaceAll("aa", 1);`, "want string or function"},
		{`regexp.compile("a").size();`, "regexp has no method size"},
	} {
		_, err := exec(test.src)
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got error %v, want %q", test.src, err, test.want)
		}
	}
}
