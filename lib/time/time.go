// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package time provides a Happy module of time-related functions.
//
// Times are Go time.Time values, so their methods are available
// under lower-case names: t.year(), t.format(layout), t.add(d).
// Durations are ints counting nanoseconds.
//
//	now()                                    the current time
//	parseTime(s, format=RFC3339, location)   parses a time
//	fromTimestamp(sec)                       the time sec seconds after the Unix epoch, in UTC
//	parseDuration(s)                         parses a duration such as "1h30m"
//	formatDuration(d)                        formats a duration
//	sleep(d)                                 pauses execution
//
// The constants nanosecond, microsecond, millisecond, second, minute
// and hour are durations.
package time // import "go.happytemplate.net/lib/time"

import (
	"fmt"
	"time"

	"go.happytemplate.net/happy"
)

// Module time is a Happy module of time-related functions.
var Module = &happy.Module{
	Name: "time",
	Members: happy.StringDict{
		"formatDuration": happy.NewBuiltin("time.formatDuration", formatDuration),
		"fromTimestamp":  happy.NewBuiltin("time.fromTimestamp", fromTimestamp),
		"now":            happy.NewBuiltin("time.now", now),
		"parseDuration":  happy.NewBuiltin("time.parseDuration", parseDuration),
		"parseTime":      happy.NewBuiltin("time.parseTime", parseTime),
		"sleep":          happy.NewBuiltin("time.sleep", sleep),

		"nanosecond":  int64(time.Nanosecond),
		"microsecond": int64(time.Microsecond),
		"millisecond": int64(time.Millisecond),
		"second":      int64(time.Second),
		"minute":      int64(time.Minute),
		"hour":        int64(time.Hour),
	},
}

// NowFunc returns the current time for contexts without their own
// clock. It may be replaced by applications whose programs must be
// deterministic.
var NowFunc = time.Now

// SleepFunc pauses the current goroutine for at least d.
var SleepFunc = time.Sleep

const contextKey = "time.now"

// SetNow sets the clock of ctx, consulted by now().
func SetNow(ctx *happy.RuntimeContext, nowFunc func() (time.Time, error)) {
	ctx.SetLocal(contextKey, nowFunc)
}

func now(ctx *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	if err := happy.UnpackArgs(b.Name(), args, 0); err != nil {
		return nil, err
	}
	if nowFunc, ok := ctx.Local(contextKey).(func() (time.Time, error)); ok {
		t, err := nowFunc()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return t, nil
	}
	return NowFunc(), nil
}

func parseTime(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var (
		x, location string
		format      = time.RFC3339
	)
	if err := happy.UnpackArgs(b.Name(), args, 1, &x, &format, &location); err != nil {
		return nil, err
	}
	loc := time.UTC
	if location != "" {
		var err error
		if loc, err = time.LoadLocation(location); err != nil {
			return nil, fmt.Errorf("%s: %v", b.Name(), err)
		}
	}
	t, err := time.ParseInLocation(format, x, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return t, nil
}

func fromTimestamp(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var sec int64
	if err := happy.UnpackArgs(b.Name(), args, 1, &sec); err != nil {
		return nil, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

func parseDuration(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var s string
	if err := happy.UnpackArgs(b.Name(), args, 1, &s); err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	return int64(d), nil
}

func formatDuration(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var d int64
	if err := happy.UnpackArgs(b.Name(), args, 1, &d); err != nil {
		return nil, err
	}
	return time.Duration(d).String(), nil
}

func sleep(_ *happy.RuntimeContext, b *happy.Builtin, args []happy.Value) (happy.Value, error) {
	var d int64
	if err := happy.UnpackArgs(b.Name(), args, 1, &d); err != nil {
		return nil, err
	}
	SleepFunc(time.Duration(d))
	return nil, nil
}
