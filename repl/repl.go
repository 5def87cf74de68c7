// Package repl provides a read/eval/print loop for Happy.
//
// It supports readline-style command editing,
// and interrupts through Control-C.
//
// The REPL reads lines until they form a complete module, then
// compiles and runs it. An input that is a sole expression has its
// output form printed. Globals defined by one input are visible to
// the next.
package repl // import "go.happytemplate.net/repl"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/happy"
	"go.happytemplate.net/syntax"
)

var interrupted = make(chan os.Signal, 1)

// REPL executes a read, eval, print loop in ctx. Values in
// opts.Predeclared are visible to every input, and load directives
// are resolved against opts.Catalog.
//
// A SIGINT (Control-C) during execution cancels the current input.
func REPL(ctx *happy.RuntimeContext, opts *happy.Options) {
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New(">>> ")
	if err != nil {
		PrintError(err)
		return
	}
	defer rl.Close()
	s := newSession(ctx, opts)
	for {
		if err := s.rep(rl.Readline, rl.SetPrompt); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println(err)
				continue
			}
			break
		}
	}
	fmt.Println()
}

type session struct {
	ctx         *happy.RuntimeContext
	predeclared happy.StringDict
	catalog     catalog.Source
	loads       []string // namespaces loaded by earlier inputs
}

func newSession(ctx *happy.RuntimeContext, opts *happy.Options) *session {
	if opts == nil {
		opts = new(happy.Options)
	}
	if ctx.Globals == nil {
		ctx.Globals = happy.NewObject()
	}
	return &session{
		ctx:         ctx,
		predeclared: opts.Predeclared,
		catalog:     opts.Catalog,
		loads:       append([]string(nil), opts.Load...),
	}
}

// rep reads, evaluates, and prints one item.
//
// It returns an error (possibly readline.ErrInterrupt)
// only if reading failed. Happy errors are printed.
func (s *session) rep(readLine func() (string, error), setPrompt func(string)) error {
	setPrompt(">>> ")
	defer setPrompt(">>> ")

	var src strings.Builder
	var m *syntax.Module
	for {
		line, err := readLine()
		if err != nil {
			if err == io.EOF && src.Len() > 0 {
				PrintError(fmt.Errorf("<stdin>: unexpected end of input"))
			}
			return err
		}
		blank := strings.TrimSpace(line) == ""
		if src.Len() == 0 && blank {
			return nil
		}
		src.WriteString(line)
		src.WriteByte('\n')

		m, err = syntax.Parse("<stdin>", src.String())
		if err == nil {
			break
		}
		// The final semicolon of an input may be omitted.
		if errors.Is(err, syntax.ErrEOF) {
			if m2, err2 := syntax.Parse("<stdin>", src.String()+";"); err2 == nil {
				m = m2
				break
			}
		}
		// An incomplete input continues on the next line,
		// unless the user gave up with a blank line.
		if !errors.Is(err, syntax.ErrEOF) || blank {
			PrintError(err)
			return nil
		}
		setPrompt("... ")
	}

	if x := soleExpr(m); x != nil {
		start, _ := x.Span()
		m.Stmts[0] = &syntax.OutputStatement{Out: start, Exprs: []syntax.Expr{x}}
	}
	if err := s.exec(m); err != nil {
		PrintError(err)
	}
	return nil
}

// exec compiles and runs m, cancelling the run on SIGINT.
func (s *session) exec(m *syntax.Module) error {
	visible := make(happy.StringDict, len(s.predeclared))
	for name, v := range s.predeclared {
		visible[name] = v
	}
	for _, name := range s.ctx.Globals.AttrNames() {
		visible[name], _ = s.ctx.Globals.Get(name)
	}
	prog, err := happy.CompileModule(m, &happy.Options{
		Predeclared: visible,
		Catalog:     s.catalog,
		Load:        s.loads,
	})
	if err != nil {
		return err
	}
	for _, l := range m.Loads {
		s.loads = append(s.loads, l.Name)
	}

	// Each input runs in its own context over the session's globals.
	w := &lastByteWriter{w: s.ctx.Out}
	run := happy.NewContext(w)
	run.Name = s.ctx.Name
	run.Globals = s.ctx.Globals
	run.MaxCallDepth = s.ctx.MaxCallDepth

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupted:
			run.Cancel("interrupted")
		case <-done:
		}
	}()

	err = prog.Run(run)
	if w.last != 0 && w.last != '\n' {
		w.Write([]byte("\n"))
	}
	return err
}

func soleExpr(m *syntax.Module) syntax.Expr {
	if len(m.Loads)+len(m.Functions)+len(m.GlobalDefs) == 0 && len(m.Stmts) == 1 {
		if stmt, ok := m.Stmts[0].(*syntax.ExpressionStatement); ok {
			if b, ok := stmt.X.(*syntax.BinaryExpression); ok && b.Op == syntax.Assign {
				return nil
			}
			return stmt.X
		}
	}
	return nil
}

// lastByteWriter records the last byte written through it.
type lastByteWriter struct {
	w    io.Writer
	last byte
}

func (w *lastByteWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.last = p[len(p)-1]
	}
	if w.w == nil {
		return len(p), nil
	}
	return w.w.Write(p)
}

// PrintError prints the error to stderr,
// or its backtrace if it is a Happy evaluation error.
func PrintError(err error) {
	if evalErr, ok := err.(*happy.EvalError); ok {
		fmt.Fprintln(os.Stderr, evalErr.Backtrace())
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
}
