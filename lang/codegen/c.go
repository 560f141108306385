// Package codegen translates compiled bytecode into native backends:
// C source and AArch64 assembly. Both emit exactly the behavior of the
// interpreter, instruction by instruction, against the fble runtime
// ABI; the interpreter remains the executable specification.
package codegen

import (
	"fmt"
	"io"
	"strings"

	"github.com/mna/fble/lang/compiler"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
)

// cvar renders a variable operand against the per-section pointer
// tables of the generated run function.
func cvar(v tc.Var) string {
	switch v.Section {
	case tc.StaticVar:
		return fmt.Sprintf("s[%d]", v.Index)
	case tc.ArgVar:
		return fmt.Sprintf("a[%d]", v.Index)
	default:
		return fmt.Sprintf("l[%d]", v.Index)
	}
}

// LabelForPath sanitizes a module path into a C identifier suffix
// (/Foo/Bar% becomes _Foo_Bar). The exported registration entry point
// of the generated module is this label prefixed with _Fble.
func LabelForPath(path *token.ModulePath) string {
	var sb strings.Builder
	for _, n := range path.Path {
		sb.WriteByte('_')
		for _, r := range n.Name {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
				sb.WriteRune(r)
			} else {
				fmt.Fprintf(&sb, "_%02x_", r)
			}
		}
	}
	return sb.String()
}

// collectCodes returns code and every code reachable from it through
// FuncValue instructions, in discovery order.
func collectCodes(code *compiler.Code) []*compiler.Code {
	codes := []*compiler.Code{code}
	seen := map[*compiler.Code]bool{code: true}
	for i := 0; i < len(codes); i++ {
		for _, in := range codes[i].Instrs {
			if fv, ok := in.(*compiler.FuncValueInstr); ok && !seen[fv.Code] {
				seen[fv.Code] = true
				codes = append(codes, fv.Code)
			}
		}
	}
	return codes
}

// GenerateC emits a C translation unit implementing the module: one
// run function and one abort function per code body, the static
// module data, and the registration entry point.
func GenerateC(w io.Writer, m *compiler.Module) error {
	if m.Code == nil {
		return fmt.Errorf("cannot generate code for type-only module %s", m.Path)
	}
	g := &cgen{w: w, m: m}
	g.codes = collectCodes(m.Code)
	g.ids = make(map[*compiler.Code]int, len(g.codes))
	for i, c := range g.codes {
		g.ids[c] = i
	}

	g.prologue()
	for i, c := range g.codes {
		g.emitAbort(i, c)
		g.emitRun(i, c)
	}
	g.staticData()
	return g.err
}

type cgen struct {
	w     io.Writer
	m     *compiler.Module
	codes []*compiler.Code
	ids   map[*compiler.Code]int
	err   error
}

func (g *cgen) pf(format string, args ...interface{}) {
	if g.err != nil {
		return
	}
	_, g.err = fmt.Fprintf(g.w, format, args...)
}

func (g *cgen) prologue() {
	g.pf("// Generated from module %s. Do not edit.\n", g.m.Path)
	g.pf("#include <fble/fble-function.h>\n")
	g.pf("#include <fble/fble-link.h>\n")
	g.pf("#include <fble/fble-program.h>\n")
	g.pf("#include <fble/fble-value.h>\n")
	g.pf("\n")
	for i := range g.codes {
		g.pf("static FbleValue* _Run_%d(FbleValueHeap* heap, FbleProfileThread* profile, FbleFunction* function, FbleValue** a);\n", i)
		g.pf("static FbleValue* _Abort_%d(FbleValueHeap* heap, FbleValue** l, size_t pc);\n", i)
	}
	g.pf("\n")
}

// returnAbort emits the report-and-unwind sequence of a runtime
// error: print the located message, then release the remaining locals
// the way the interpreter's RunAbort does.
func (g *cgen) returnAbort(id, pc int, msg string, loc token.Loc) {
	g.pf("{ FbleReportError(\"%s\", \"%s\", %d, %d); return _Abort_%d(heap, l, %d); }\n",
		msg, loc.File, loc.Line, loc.Col, id, pc)
}

func (g *cgen) emitRun(id int, code *compiler.Code) {
	// Pre-compute the pcs that need labels.
	target := make(map[int]bool)
	for pc, in := range code.Instrs {
		switch in := in.(type) {
		case *compiler.SelectInstr:
			for _, t := range in.Targets {
				target[t.PC] = true
			}
			target[in.DefaultPC] = true
			target[pc+1] = true
		case *compiler.GotoInstr:
			target[in.PC] = true
		}
	}

	g.pf("static FbleValue* _Run_%d(FbleValueHeap* heap, FbleProfileThread* profile, FbleFunction* function, FbleValue** a)\n", id)
	g.pf("{\n")
	g.pf("  FbleValue** s = function->statics;\n")
	g.pf("  size_t profile_block_offset = function->profile_block_id - %d;\n", code.ProfileBlockID)
	if code.NumLocals > 0 {
		g.pf("  FbleValue* l[%d] = { NULL };\n", code.NumLocals)
	} else {
		g.pf("  FbleValue** l = NULL;\n")
	}
	g.pf("  FbleValue* x0 = NULL;\n")
	g.pf("\n")

	for pc, in := range code.Instrs {
		if target[pc] {
			g.pf("pc_%d:\n", pc)
		}

		g.pf("  FbleProfileSample(profile, 1);\n")
		for _, op := range in.Base().ProfileOps {
			switch op.Tag {
			case compiler.ProfileEnterOp:
				g.pf("  FbleProfileEnterBlock(profile, profile_block_offset + %d);\n", op.Block)
			case compiler.ProfileReplaceOp:
				g.pf("  FbleProfileReplaceBlock(profile, profile_block_offset + %d);\n", op.Block)
			case compiler.ProfileExitOp:
				g.pf("  FbleProfileExitBlock(profile);\n")
			case compiler.ProfileSampleOp:
				g.pf("  FbleProfileSample(profile, %d);\n", op.Weight)
			}
		}

		switch in := in.(type) {
		case *compiler.StructInstr:
			g.pf("  l[%d] = FbleNewStructValue_(heap, %d", in.Dest, len(in.Args))
			for _, a := range in.Args {
				g.pf(", %s", cvar(a))
			}
			g.pf(");\n")

		case *compiler.UnionInstr:
			g.pf("  l[%d] = FbleNewUnionValue(heap, %d, %s);\n", in.Dest, in.Tag, cvar(in.Arg))

		case *compiler.AccessInstr:
			g.pf("  x0 = FbleStrictValue(%s);\n", cvar(in.Obj))
			if in.Kind == tc.StructAccess {
				g.pf("  if (!x0) ")
				g.returnAbort(id, pc, "undefined struct value access", in.Loc)
				g.pf("  l[%d] = FbleStructValueField(x0, %d);\n", in.Dest, in.Tag)
			} else {
				g.pf("  if (!x0) ")
				g.returnAbort(id, pc, "undefined union value access", in.Loc)
				g.pf("  if (FbleUnionValueTag(x0) != %d) ", in.Tag)
				g.returnAbort(id, pc, "union field access undefined: wrong tag", in.Loc)
				g.pf("  l[%d] = FbleUnionValueArg(x0);\n", in.Dest)
			}

		case *compiler.SelectInstr:
			g.pf("  x0 = FbleStrictValue(%s);\n", cvar(in.Condition))
			g.pf("  if (!x0) ")
			g.returnAbort(id, pc, "undefined union value select", in.Loc)
			g.pf("  switch (FbleUnionValueTag(x0)) {\n")
			for _, t := range in.Targets {
				g.pf("    case %d: goto pc_%d;\n", t.Tag, t.PC)
			}
			g.pf("    default: goto pc_%d;\n", in.DefaultPC)
			g.pf("  }\n")

		case *compiler.GotoInstr:
			g.pf("  goto pc_%d;\n", in.PC)

		case *compiler.FuncValueInstr:
			g.pf("  l[%d] = FbleNewFuncValue(heap, &_Executable_%d, profile_block_offset", in.Dest, g.ids[in.Code])
			for _, v := range in.Scope {
				g.pf(", %s", cvar(v))
			}
			g.pf(");\n")

		case *compiler.CallInstr:
			g.pf("  x0 = FbleStrictValue(%s);\n", cvar(in.Func))
			g.pf("  if (!x0) ")
			g.returnAbort(id, pc, "called undefined function", in.Loc)
			g.pf("  {\n")
			g.pf("    FbleValue* call_args[] = {")
			for i, a := range in.Args {
				if i > 0 {
					g.pf(",")
				}
				g.pf(" %s", cvar(a))
			}
			g.pf(" };\n")
			g.pf("    l[%d] = FbleCall(heap, profile, x0, %d, call_args);\n", in.Dest, len(in.Args))
			g.pf("  }\n")
			g.pf("  if (!l[%d]) return _Abort_%d(heap, l, %d);\n", in.Dest, id, pc)

		case *compiler.TailCallInstr:
			g.pf("  x0 = FbleStrictValue(%s);\n", cvar(in.Func))
			g.pf("  if (!x0) ")
			g.returnAbort(id, pc, "called undefined function", in.Loc)
			g.pf("  {\n")
			g.pf("    FbleValue* tail_args[] = {")
			for i, a := range in.Args {
				if i > 0 {
					g.pf(",")
				}
				g.pf(" %s", cvar(a))
			}
			g.pf(" };\n")
			g.pf("    return FbleTailCall(heap, %s, %d, tail_args);\n", cvar(in.Func), len(in.Args))
			g.pf("  }\n")

		case *compiler.CopyInstr:
			g.pf("  l[%d] = %s;\n", in.Dest, cvar(in.Source))

		case *compiler.RefValueInstr:
			g.pf("  l[%d] = FbleNewRefValue(heap);\n", in.Dest)

		case *compiler.RefDefInstr:
			g.pf("  if (!FbleAssignRefValue(heap, l[%d], %s)) ", in.Ref, cvar(in.Value))
			g.returnAbort(id, pc, "vacuous value", in.Loc)

		case *compiler.ReturnInstr:
			g.pf("  return %s;\n", cvar(in.Result))

		case *compiler.TypeInstr:
			g.pf("  l[%d] = FbleGenericTypeValue;\n", in.Dest)

		case *compiler.RetainInstr:
			g.pf("  FbleRetainValue(heap, l[%d]);\n", in.Target)

		case *compiler.ReleaseInstr:
			for _, t := range in.Targets {
				g.pf("  FbleReleaseValue(heap, l[%d]); l[%d] = NULL;\n", t, t)
			}

		case *compiler.ListInstr:
			g.pf("  {\n")
			g.pf("    FbleValue* list_args[] = {")
			for i, a := range in.Args {
				if i > 0 {
					g.pf(",")
				}
				g.pf(" %s", cvar(a))
			}
			g.pf(" };\n")
			g.pf("    l[%d] = FbleNewListValue(heap, %d, list_args);\n", in.Dest, len(in.Args))
			g.pf("  }\n")

		case *compiler.LiteralInstr:
			g.pf("  {\n")
			g.pf("    size_t letters[] = {")
			for i, t := range in.Letters {
				if i > 0 {
					g.pf(",")
				}
				g.pf(" %d", t)
			}
			g.pf(" };\n")
			g.pf("    l[%d] = FbleNewLiteralValue(heap, %d, letters);\n", in.Dest, len(in.Letters))
			g.pf("  }\n")

		case *compiler.NopInstr:
			g.pf("  ;\n")
		}
	}
	g.pf("}\n\n")
}

// emitAbort emits the out-of-line abort body of a code: given the pc
// of the failure, release the locals the remaining instructions would
// have released.
func (g *cgen) emitAbort(id int, code *compiler.Code) {
	g.pf("static FbleValue* _Abort_%d(FbleValueHeap* heap, FbleValue** l, size_t pc)\n", id)
	g.pf("{\n")
	g.pf("  switch (pc) {\n")
	for pc := range code.Instrs {
		g.pf("    case %d: goto abort_%d;\n", pc, pc)
	}
	g.pf("  }\n")
	for pc, in := range code.Instrs {
		g.pf("abort_%d:\n", pc)
		if rel, ok := in.(*compiler.ReleaseInstr); ok {
			for _, t := range rel.Targets {
				g.pf("  FbleReleaseValue(heap, l[%d]); l[%d] = NULL;\n", t, t)
			}
		} else {
			g.pf("  ;\n")
		}
	}
	g.pf("  return NULL;\n")
	g.pf("}\n\n")
}

func (g *cgen) staticData() {
	for i, c := range g.codes {
		g.pf("static FbleExecutable _Executable_%d = {\n", i)
		g.pf("  .num_args = %d,\n", c.NumArgs)
		g.pf("  .num_statics = %d,\n", c.NumStatics)
		g.pf("  .max_call_args = %d,\n", c.MaxCallArgs)
		g.pf("  .profile_block_id = %d,\n", c.ProfileBlockID)
		g.pf("  .run = &_Run_%d,\n", i)
		g.pf("};\n\n")
	}

	g.pf("static const char* _ProfileBlocks[] = {\n")
	for _, n := range g.m.ProfileBlocks {
		g.pf("  \"%s\",\n", n.Name)
	}
	g.pf("};\n\n")

	g.pf("static const char* _Path = \"%s\";\n", g.m.Path)
	g.pf("static const char* _Deps[] = {")
	for _, d := range g.m.Deps {
		g.pf(" \"%s\",", d)
	}
	g.pf(" NULL };\n\n")

	label := LabelForPath(g.m.Path)
	for _, d := range g.m.Deps {
		g.pf("void _Fble%s(FbleExecutableProgram* program);\n", LabelForPath(d))
	}
	g.pf("\n")
	g.pf("void _Fble%s(FbleExecutableProgram* program)\n", label)
	g.pf("{\n")
	for _, d := range g.m.Deps {
		g.pf("  _Fble%s(program);\n", LabelForPath(d))
	}
	g.pf("  FbleLoadFromCompiled(program, _Path, %d, _Deps, &_Executable_0, %d, _ProfileBlocks);\n",
		len(g.m.Deps), len(g.m.ProfileBlocks))
	g.pf("}\n")
}

// GenerateMainC emits a main stub that registers the compiled module
// and hands it to a language-level wrapper such as FbleTestMain or
// FbleAppMain.
func GenerateMainC(w io.Writer, wrapper string, path *token.ModulePath) error {
	label := LabelForPath(path)
	_, err := fmt.Fprintf(w, `// Generated main stub for module %s. Do not edit.
#include <fble/fble-link.h>
#include <fble/fble-main.h>

void _Fble%s(FbleExecutableProgram* program);

int main(int argc, const char** argv)
{
  return %s(argc, argv, &_Fble%s);
}
`, path, label, wrapper, label)
	return err
}
