// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regexp provides a Happy module of regular expression
// functions, using RE2 syntax.
//
//	compile(pattern)  returns a regexp value
//
// A regexp value has these methods:
//
//	matches(s)              reports whether s contains a match
//	find(s)                 returns the leftmost match, or ""
//	findAll(s, max=-1)      returns a list of successive matches
//	findSubmatches(s)       returns the leftmost match and its groups
//	replaceAll(s, repl)     replaces each match by repl, a string in
//	                        which \1 to \9 refer to groups and \0 to the
//	                        whole match, or a function of the match
//	split(s, max=-1)        returns the strings between the matches
package regexp // import "go.happytemplate.net/lib/regexp"

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.happytemplate.net/happy"
)

// Module regexp is a Happy module of regular expression functions.
var Module = &happy.Module{
	Name: "regexp",
	Members: happy.StringDict{
		"compile": happy.NewBuiltin("regexp.compile", compile),
	},
}

// backreferenceRe matches a backslash-escaped digit and the escaped
// backslashes before it.
var backreferenceRe = regexp.MustCompile(`((\\\\)*)\\(\d)`)

// forbiddenPatternRe matches the byte-oriented escape \C.
var forbiddenPatternRe = regexp.MustCompile(`([^\\]|^)(\\\\)*\\C`)

func compile(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var pattern string
	if err := happy.UnpackArgs(b.Name(), args, 1, &pattern); err != nil {
		return nil, err
	}
	if forbiddenPatternRe.MatchString(pattern) {
		return nil, fmt.Errorf(`%s: the byte-oriented pattern \C is not supported`, b.Name())
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return &Regexp{re: re}, nil
}

func toList(strs []string) *happy.List {
	elems := make([]happy.Value, len(strs))
	for i, s := range strs {
		elems[i] = s
	}
	return happy.NewList(elems)
}

// A Regexp is a compiled regular expression.
type Regexp struct {
	re *regexp.Regexp
}

func (r *Regexp) String() string { return r.re.String() }
func (r *Regexp) Type() string   { return "regexp" }

func (r *Regexp) Attr(name string) (happy.Value, error) {
	b := regexMethods[name]
	if b == nil {
		return nil, happy.NoSuchAttrError(fmt.Sprintf("regexp has no method %s", name))
	}
	return b.BindReceiver(r), nil
}

func (r *Regexp) AttrNames() []string {
	names := make([]string, 0, len(regexMethods))
	for name := range regexMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var regexMethods = map[string]*happy.Builtin{
	"find":           happy.NewBuiltin("find", find),
	"findAll":        happy.NewBuiltin("findAll", findAll),
	"findSubmatches": happy.NewBuiltin("findSubmatches", findSubmatches),
	"matches":        happy.NewBuiltin("matches", matches),
	"replaceAll":     happy.NewBuiltin("replaceAll", replaceAll),
	"split":          happy.NewBuiltin("split", split),
}

func matches(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var src string
	if err := happy.UnpackArgs(b.Name(), args, 1, &src); err != nil {
		return nil, err
	}
	return b.Receiver().(*Regexp).re.MatchString(src), nil
}

func find(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var src string
	if err := happy.UnpackArgs(b.Name(), args, 1, &src); err != nil {
		return nil, err
	}
	return b.Receiver().(*Regexp).re.FindString(src), nil
}

func findAll(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var src string
	max := -1
	if err := happy.UnpackArgs(b.Name(), args, 1, &src, &max); err != nil {
		return nil, err
	}
	return toList(b.Receiver().(*Regexp).re.FindAllString(src, max)), nil
}

func findSubmatches(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var src string
	if err := happy.UnpackArgs(b.Name(), args, 1, &src); err != nil {
		return nil, err
	}
	return toList(b.Receiver().(*Regexp).re.FindStringSubmatch(src)), nil
}

func replaceAll(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var (
		src  string
		repl happy.Value
	)
	if err := happy.UnpackArgs(b.Name(), args, 2, &src, &repl); err != nil {
		return nil, err
	}
	re := b.Receiver().(*Regexp).re
	switch x := repl.(type) {
	case string:
		return re.ReplaceAllString(src, convertReplacementPattern(x)), nil
	case happy.Callable:
		var fnErr error
		result := re.ReplaceAllStringFunc(src, func(matched string) string {
			if fnErr != nil {
				return ""
			}
			res, err := happy.Call(ctx, x, matched)
			if err != nil {
				fnErr = err
				return ""
			}
			s, ok := res.(string)
			if !ok {
				fnErr = fmt.Errorf("%s: replacement function returned %s, want string", b.Name(), happy.TypeName(res))
				return ""
			}
			return s
		})
		if fnErr != nil {
			return nil, fnErr
		}
		return result, nil
	}
	return nil, fmt.Errorf("%s: got %s, want string or function", b.Name(), happy.TypeName(repl))
}

func split(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var src string
	max := -1
	if err := happy.UnpackArgs(b.Name(), args, 1, &src, &max); err != nil {
		return nil, err
	}
	return toList(b.Receiver().(*Regexp).re.Split(src, max)), nil
}

// convertReplacementPattern rewrites \N backreferences as ${N} and
// escapes dollar signs, for regexp.Expand.
func convertReplacementPattern(repl string) string {
	repl = strings.ReplaceAll(repl, "$", "$$")
	var sb strings.Builder
	start := 0
	for _, m := range backreferenceRe.FindAllStringSubmatchIndex(repl, -1) {
		if m[0] > 0 && repl[m[0]-1] == '\\' {
			// An odd number of backslashes: the digit is escaped.
			sb.WriteString(strings.ReplaceAll(repl[start:m[1]], `\\`, `\`))
			start = m[1]
			continue
		}
		sb.WriteString(strings.ReplaceAll(repl[start:m[3]], `\\`, `\`))
		sb.WriteString("${")
		sb.WriteString(repl[m[6]:m[7]])
		sb.WriteString("}")
		start = m[1]
	}
	sb.WriteString(repl[start:])
	return sb.String()
}
