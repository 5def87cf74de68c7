// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package happytest defines utilities for testing Happy programs.
//
// Clients add the values of Predeclared to the predeclared names of
// the program under test. They provide several functions useful for
// testing:
//
//	assertEq(x, y)          reports an error unless x == y
//	assertTrue(x)           reports an error unless x is true
//	assertFails(f, pattern) calls f() and reports an error unless it
//	                        fails with a message matching pattern
//	catch(f)                calls f() and returns its error message, or null
//	matches(pattern, s)     reports whether s matches pattern
//	error(msg)              reports an error
//
// Errors are reported to the current Go testing.T, so clients must
// call SetReporter(ctx, t) before running the program.
package happytest // import "go.happytemplate.net/happytest"

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.happytemplate.net/happy"
)

const localKey = "Reporter"

// A Reporter is a value to which errors may be reported.
// It is satisfied by *testing.T.
type Reporter interface {
	Error(args ...interface{})
}

// SetReporter associates an error reporter (such as a testing.T in
// a Go test) with the runtime context so that Happy programs may
// report errors to it.
func SetReporter(ctx *happy.RuntimeContext, r Reporter) {
	ctx.SetLocal(localKey, r)
}

// GetReporter returns the context's error reporter.
// It must be preceded by a call to SetReporter.
func GetReporter(ctx *happy.RuntimeContext) Reporter {
	r, ok := ctx.Local(localKey).(Reporter)
	if !ok {
		panic("internal error: happytest.SetReporter was not called")
	}
	return r
}

// Predeclared holds the testing functions.
var Predeclared = happy.StringDict{
	"assertEq":    happy.NewBuiltin("assertEq", assertEq),
	"assertFails": happy.NewBuiltin("assertFails", assertFails),
	"assertTrue":  happy.NewBuiltin("assertTrue", assertTrue),
	"catch":       happy.NewBuiltin("catch", catch),
	"error":       happy.NewBuiltin("error", error_),
	"matches":     happy.NewBuiltin("matches", matches),
}

// report reports msg, prefixed by the call stack of the Happy code
// that called the current built-in.
func report(ctx *happy.RuntimeContext, msg string) {
	buf := new(strings.Builder)
	for _, fr := range ctx.CallStack() {
		fmt.Fprintf(buf, "%s\n", fr)
	}
	fmt.Fprintf(buf, "Error: %s", msg)
	GetReporter(ctx).Error(buf.String())
}

func assertEq(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var x, y happy.Value
	if err := happy.UnpackArgs(b.Name(), args, 2, &x, &y); err != nil {
		return nil, err
	}
	if !happy.Equal(x, y) {
		report(ctx, fmt.Sprintf("%s != %s", happy.Repr(x), happy.Repr(y)))
	}
	return nil, nil
}

func assertTrue(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var x happy.Value
	var msg string
	if err := happy.UnpackArgs(b.Name(), args, 1, &x, &msg); err != nil {
		return nil, err
	}
	if x != true {
		if msg == "" {
			msg = fmt.Sprintf("got %s, want true", happy.Repr(x))
		}
		report(ctx, msg)
	}
	return nil, nil
}

func assertFails(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var fn happy.Callable
	var pattern string
	if err := happy.UnpackArgs(b.Name(), args, 2, &fn, &pattern); err != nil {
		return nil, err
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", b.Name(), err)
	}
	_, err = happy.Call(ctx, fn)
	switch {
	case err == nil:
		report(ctx, fmt.Sprintf("evaluation succeeded unexpectedly (want error matching %q)", pattern))
	case !rx.MatchString(err.Error()):
		report(ctx, fmt.Sprintf("regular expression (%s) did not match error (%s)", pattern, err))
	}
	return nil, nil
}

// catch(f) evaluates f() and returns its evaluation error message
// if it failed or null if it succeeded.
func catch(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var fn happy.Callable
	if err := happy.UnpackArgs(b.Name(), args, 1, &fn); err != nil {
		return nil, err
	}
	if _, err := happy.Call(ctx, fn); err != nil {
		return err.Error(), nil
	}
	return nil, nil
}

// matches(pattern, str) reports whether string str matches the regular expression pattern.
func matches(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var pattern, str string
	if err := happy.UnpackArgs(b.Name(), args, 2, &pattern, &str); err != nil {
		return nil, err
	}
	ok, err := regexp.MatchString(pattern, str)
	if err != nil {
		return nil, fmt.Errorf("matches: %s", err)
	}
	return ok, nil
}

// error(x) reports an error to the Go test framework.
func error_(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var x happy.Value
	if err := happy.UnpackArgs(b.Name(), args, 1, &x); err != nil {
		return nil, err
	}
	report(ctx, happy.String(x))
	return nil, nil
}

// DataFile returns the effective filename of the specified
// test data resource. Tests run in their package directory, so a
// resource of package pkgdir is found relative to the module root.
var DataFile = func(pkgdir, filename string) string {
	root, err := moduleRoot()
	if err != nil {
		return filepath.Join(pkgdir, filename)
	}
	return filepath.Join(root, pkgdir, filename)
}

// moduleRoot returns the nearest enclosing directory containing go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
