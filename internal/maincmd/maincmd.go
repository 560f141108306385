// Package maincmd implements the fble all-in-one command line tool:
// flag parsing, command dispatch and exit codes. The source parser is
// an external collaborator; binaries embed one by setting the Load
// hook of the Cmd.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"

	"github.com/mna/fble/lang/ast"
	"github.com/mna/fble/lang/token"
)

const binName = "fble"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [-- <arg>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command>
       %[1]s -h|--help
       %[1]s -v|--version

Compiler, interpreter and all-in-one tool for the %[1]s language.

The <command> can be one of:
       run                       Load, compile and evaluate the main
                                 module.
       disasm                    Compile the program and print the
                                 bytecode disassembly of each module.
       gen-c                     Compile the program and emit the C
                                 translation of the main module.
       gen-aarch64               Compile the program and emit the
                                 AArch64 translation of the main
                                 module.
       blocks                    Evaluate the main module under the
                                 profiler and print the block report.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -I <dirs>                 Colon-separated source search
                                 directories.
       -p --package <pkgs>       Colon-separated package search roots,
                                 consulted before FBLE_PACKAGE_PATH.
       -m --module <path>        The main module path, e.g. /Foo/Bar%%.
       --profile                 With run: print the profile report on
                                 exit.
       --wrapper <name>          With gen-c and gen-aarch64: also emit
                                 a main stub invoking the named
                                 wrapper.

Exit status is 0 on success, 1 on load or type errors, 2 on runtime
errors and non-zero on usage errors.
`, binName)
)

// Loader resolves a main module path to a loaded program, modules in
// topological order. It is the boundary to the external parser.
type Loader func(ctx context.Context, cfg *token.SearchConfig, main *token.ModulePath) (*ast.Program, error)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	// Load supplies the source parser. Required by every command.
	Load Loader

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Include string `flag:"I"`
	Package string `flag:"p,package"`
	Module  string `flag:"m,module"`
	Profile bool   `flag:"profile"`
	Wrapper string `flag:"wrapper"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error

	mainPath *token.ModulePath
	search   *token.SearchConfig
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[strings.ReplaceAll(cmdName, "-", "")]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	if c.Module == "" {
		return fmt.Errorf("%s: a main module must be selected with -m", cmdName)
	}
	p, err := token.ParseModulePath(c.Module)
	if err != nil {
		return err
	}
	c.mainPath = p

	cfg, err := token.SearchConfigFromEnv()
	if err != nil {
		return err
	}
	for _, dir := range splitList(c.Include) {
		cfg.AddIncludeDir(dir)
	}
	for _, dir := range splitList(c.Package) {
		cfg.AddPackage(dir)
	}
	c.search = cfg

	if c.flags["wrapper"] && cmdName != "gen-c" && cmdName != "gen-aarch64" {
		return fmt.Errorf("%s: invalid flag 'wrapper'", cmdName)
	}
	if c.flags["profile"] && cmdName != "run" {
		return fmt.Errorf("%s: invalid flag 'profile'", cmdName)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ":")
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		token.PrintError(stdio.Stderr, err)
	}
	return err
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		var ec exitCodeError
		if errors.As(err, &ec) {
			return mainer.ExitCode(ec)
		}
		return mainer.Failure
	}
	return mainer.Success
}

// exitCodeError carries a specific exit code out of a command.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("exit code %d", int(e)) }

// valid commands are those that take a mainer.Stdio and a slice of
// strings as input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
