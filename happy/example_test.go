// Copyright 2024 The Happy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package happy_test

import (
	"fmt"
	"log"
	"os"

	"go.happytemplate.net/happy"
)

// ExampleExecFile demonstrates a simple embedding
// of the Happy interpreter into a Go program.
func ExampleExecFile() {
	const data = `
function greet(who) <|Hello, $who$!|>

def names = ["world", "gophers"];
for (n in names) {
  out greet(n);
} between {
  out "\n";
}
`
	ctx := happy.NewContext(os.Stdout)
	if err := happy.ExecFile(ctx, "example.happy", data, nil); err != nil {
		log.Fatal(err)
	}
	fmt.Println()
	names, _ := ctx.Globals.Get("names")
	fmt.Println(happy.Repr(names))

	// Output:
	// Hello, world!
	// Hello, gophers!
	// ["world", "gophers"]
}

// ExampleProgram_Run shows a program compiled once and run in two
// contexts, each with its own globals and output.
func ExampleProgram_Run() {
	prog, err := happy.Compile("count.happy", `def n = 0; for (x in items) { n = n + x; } out n;`,
		&happy.Options{Predeclared: happy.StringDict{"items": nil}})
	if err != nil {
		log.Fatal(err)
	}
	for _, items := range [][]int{{1, 2, 3}, {10, 20}} {
		ctx := happy.NewContext(os.Stdout)
		ctx.Globals.SetField("items", happy.ValueOf(items))
		if err := prog.Run(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println()
	}

	// Output:
	// 6
	// 30
}
