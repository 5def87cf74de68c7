// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The happy command runs a Happy template program, writing its
// output to stdout. With no arguments and a terminal on stdin, it
// starts a read-eval-print loop (REPL); otherwise the program is read
// from stdin.
package main // import "go.happytemplate.net/cmd/happy"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"strings"

	"golang.org/x/term"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/happy"
	"go.happytemplate.net/internal/compile"
	"go.happytemplate.net/lib/json"
	"go.happytemplate.net/lib/math"
	"go.happytemplate.net/lib/proto"
	"go.happytemplate.net/lib/regexp"
	"go.happytemplate.net/lib/time"
	"go.happytemplate.net/repl"
)

// flags
var (
	cpuprofile  = flag.String("cpuprofile", "", "gather Go CPU profile in this file")
	showenv     = flag.Bool("showenv", false, "on success, print final global environment")
	execprog    = flag.String("c", "", "execute program `prog`")
	configFile  = flag.String("config", "", "read settings from YAML `file`")
	descriptors = flag.String("descriptors", "", "comma-separated FileDescriptorSet `files` providing loadable message types")
	noDebugInfo = flag.Bool("nodebuginfo", false, "omit source positions from generated code")
	loads       stringList
)

func init() {
	flag.BoolVar(&compile.Disassemble, "disassemble", compile.Disassemble, "show generated code of each module")
	flag.Var(&loads, "load", "make `namespace` visible to the program (repeatable)")
}

type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(s string) error { *l = append(*l, s); return nil }

func main() {
	os.Exit(doMain())
}

func doMain() int {
	log.SetPrefix("happy: ")
	log.SetFlags(0)
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		check(err)
		err = pprof.StartCPUProfile(f)
		check(err)
		defer func() {
			pprof.StopCPUProfile()
			err := f.Close()
			check(err)
		}()
	}

	opts := &happy.Options{
		Predeclared: happy.StringDict{
			"json":   json.Module,
			"math":   math.Module,
			"proto":  proto.Module,
			"regexp": regexp.Module,
			"time":   time.Module,
		},
		Catalog:     catalog.ProtoSource{},
		Load:        loads,
		NoDebugInfo: *noDebugInfo,
	}
	ctx := happy.NewContext(os.Stdout)
	if *configFile != "" {
		cfg, err := loadConfig(*configFile)
		check(err)
		check(cfg.apply(opts))
		ctx.MaxCallDepth = cfg.MaxCallDepth
	}
	if *descriptors != "" {
		src, err := descriptorSource(strings.Split(*descriptors, ","))
		check(err)
		opts.Catalog = src
	}

	switch {
	case flag.NArg() == 1 || *execprog != "":
		var (
			filename string
			src      interface{}
		)
		if *execprog != "" {
			// Execute provided program.
			filename = "cmdline"
			src = *execprog
		} else {
			// Execute specified file.
			filename = flag.Arg(0)
		}
		ctx.Name = "exec " + filename
		if err := happy.ExecFile(ctx, filename, src, opts); err != nil {
			repl.PrintError(err)
			return 1
		}
	case flag.NArg() == 0 && term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Println("Welcome to Happy (go.happytemplate.net)")
		ctx.Name = "REPL"
		repl.REPL(ctx, opts)
	case flag.NArg() == 0:
		ctx.Name = "exec <stdin>"
		src, err := io.ReadAll(os.Stdin)
		check(err)
		if err := happy.ExecFile(ctx, "<stdin>", src, opts); err != nil {
			repl.PrintError(err)
			return 1
		}
	default:
		log.Print("want at most one Happy file name")
		return 1
	}

	// Print the global environment.
	if *showenv {
		for _, name := range ctx.Globals.AttrNames() {
			if opts.Predeclared.Has(name) || happy.Universe.Has(name) {
				continue
			}
			v, _ := ctx.Globals.Get(name)
			fmt.Fprintf(os.Stderr, "%s = %s\n", name, happy.Repr(v))
		}
	}

	return 0
}

func check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
