package maincmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/mna/mainer"

	"github.com/mna/fble/lang/codegen"
	"github.com/mna/fble/lang/compiler"
	"github.com/mna/fble/lang/link"
	"github.com/mna/fble/lang/machine"
	"github.com/mna/fble/lang/profile"
	"github.com/mna/fble/lang/types"
)

// compile loads and compiles the selected program. Load and type
// errors exit with code 1.
func (c *Cmd) compile(ctx context.Context, stdio mainer.Stdio) (*compiler.Program, error) {
	if c.Load == nil {
		return nil, printError(stdio, errors.New("no source loader linked into this binary"))
	}
	prog, err := c.Load(ctx, c.search, c.mainPath)
	if err != nil {
		printError(stdio, err)
		return nil, exitCodeError(1)
	}

	th := types.NewHeap()
	cp, warns, err := compiler.CompileProgram(th, prog)
	for _, w := range warns {
		fmt.Fprintln(stdio.Stderr, w)
	}
	if err != nil {
		printError(stdio, err)
		return nil, exitCodeError(1)
	}
	return cp, nil
}

// eval links and evaluates a compiled program, returning the result
// value. Runtime errors exit with code 2.
func (c *Cmd) eval(stdio mainer.Stdio, cp *compiler.Program, prof *profile.Profile) (machine.Value, error) {
	h := machine.NewHeap()
	h.Stderr = stdio.Stderr

	p, err := link.InterpretProgram(h, cp)
	if err != nil {
		printError(stdio, err)
		return nil, exitCodeError(1)
	}
	fn, err := link.Link(h, prof, p)
	if err != nil {
		printError(stdio, err)
		return nil, exitCodeError(1)
	}
	result := h.Eval(fn, prof)
	if result == nil {
		return nil, exitCodeError(2)
	}
	return result, nil
}

// Run loads, compiles, links and evaluates the main module.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cp, err := c.compile(ctx, stdio)
	if err != nil {
		return err
	}

	var prof *profile.Profile
	if c.Profile {
		prof = profile.NewProfile()
	}
	if _, err := c.eval(stdio, cp, prof); err != nil {
		return err
	}
	if prof != nil {
		prof.Report(stdio.Stdout)
	}
	return nil
}

// Disasm prints the bytecode disassembly of every module.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cp, err := c.compile(ctx, stdio)
	if err != nil {
		return err
	}
	for _, m := range cp.Modules {
		fmt.Fprint(stdio.Stdout, compiler.Disassemble(m))
	}
	return nil
}

// GenC emits the C translation of the main module, and a main stub if
// a wrapper was selected.
func (c *Cmd) GenC(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cp, err := c.compile(ctx, stdio)
	if err != nil {
		return err
	}
	if err := codegen.GenerateC(stdio.Stdout, cp.Main()); err != nil {
		return printError(stdio, err)
	}
	if c.Wrapper != "" {
		return printError(stdio, codegen.GenerateMainC(stdio.Stdout, c.Wrapper, cp.Main().Path))
	}
	return nil
}

// GenAarch64 emits the AArch64 translation of the main module, and a
// main stub if a wrapper was selected.
func (c *Cmd) GenAarch64(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cp, err := c.compile(ctx, stdio)
	if err != nil {
		return err
	}
	if err := codegen.GenerateAArch64(stdio.Stdout, cp.Main()); err != nil {
		return printError(stdio, err)
	}
	if c.Wrapper != "" {
		return printError(stdio, codegen.GenerateMainAArch64(stdio.Stdout, c.Wrapper, cp.Main().Path))
	}
	return nil
}

// Blocks evaluates the program under the profiler and prints the
// block report.
func (c *Cmd) Blocks(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cp, err := c.compile(ctx, stdio)
	if err != nil {
		return err
	}
	prof := profile.NewProfile()
	if _, err := c.eval(stdio, cp, prof); err != nil {
		return err
	}
	prof.Report(stdio.Stdout)
	return nil
}
