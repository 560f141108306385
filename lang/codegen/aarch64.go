package codegen

import (
	"fmt"
	"io"

	"github.com/mna/fble/lang/compiler"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
)

// GenerateAArch64 emits GNU assembler source implementing the module
// for AArch64, behaviorally identical to the interpreter. Run
// functions follow the standard AAPCS64 calling convention; locals
// live in the function's stack frame. A DWARF .loc line directive is
// emitted for each instruction that carries a known
// compiler.StatementDebugInfo; the compiler attaches none of those
// itself, so compiled modules carry no line information.
//
// Register conventions within a run function:
//
//	x19 heap, x20 profile, x21 function, x22 args, x23 statics
func GenerateAArch64(w io.Writer, m *compiler.Module) error {
	if m.Code == nil {
		return fmt.Errorf("cannot generate code for type-only module %s", m.Path)
	}
	g := &agen{w: w, m: m, files: map[string]int{}}
	g.codes = collectCodes(m.Code)
	g.ids = make(map[*compiler.Code]int, len(g.codes))
	for i, c := range g.codes {
		g.ids[c] = i
	}

	g.pf("// Generated from module %s. Do not edit.\n", m.Path)
	g.pf("\t.arch armv8-a\n")
	g.pf("\t.text\n")
	for i, c := range g.codes {
		g.emitRun(i, c)
	}
	g.staticData()
	return g.err
}

type agen struct {
	w     io.Writer
	m     *compiler.Module
	codes []*compiler.Code
	ids   map[*compiler.Code]int
	files map[string]int
	label int
	data  int

	// strs interns string literals; deferred holds their .rodata
	// emission until staticData runs.
	strs     map[string]string
	deferred []func()

	err error
}

func (g *agen) pf(format string, args ...interface{}) {
	if g.err != nil {
		return
	}
	_, g.err = fmt.Fprintf(g.w, format, args...)
}

func (g *agen) newLabel(prefix string) string {
	g.label++
	return fmt.Sprintf(".L%s_%d", prefix, g.label)
}

// fileno interns a file name into a DWARF file number, emitting the
// .file directive on first use.
func (g *agen) fileno(name string) int {
	if n, ok := g.files[name]; ok {
		return n
	}
	n := len(g.files) + 1
	g.files[name] = n
	g.pf("\t.file %d \"%s\"\n", n, name)
	return n
}

func (g *agen) loc(l token.Loc) {
	if l.Unknown() {
		return
	}
	g.pf("\t.loc %d %d %d\n", g.fileno(l.File), l.Line, l.Col)
}

// Frame layout, offsets from sp: saved x29/x30 at 0, saved x19..x24
// at 16..63, locals at 64, call scratch area after the locals.

// slot is the stack offset of local i.
func slot(i int) int { return 64 + 8*i }

// loadVar emits a load of a frame variable into reg.
func (g *agen) loadVar(reg string, v tc.Var) {
	switch v.Section {
	case tc.StaticVar:
		g.pf("\tldr %s, [x23, #%d]\n", reg, 8*v.Index)
	case tc.ArgVar:
		g.pf("\tldr %s, [x22, #%d]\n", reg, 8*v.Index)
	default:
		g.pf("\tldr %s, [sp, #%d]\n", reg, slot(v.Index))
	}
}

// storeLocal emits a store of reg into local i.
func (g *agen) storeLocal(reg string, i int) {
	g.pf("\tstr %s, [sp, #%d]\n", reg, slot(i))
}

// frameSize computes the stack frame size for a code: saved fp/lr,
// locals, and a scratch area for call argument arrays, 16-byte
// aligned.
func frameSize(code *compiler.Code) int {
	scratch := code.MaxCallArgs
	for _, in := range code.Instrs {
		switch in := in.(type) {
		case *compiler.StructInstr:
			if len(in.Args) > scratch {
				scratch = len(in.Args)
			}
		case *compiler.ListInstr:
			if len(in.Args) > scratch {
				scratch = len(in.Args)
			}
		case *compiler.LiteralInstr:
			if len(in.Letters) > scratch {
				scratch = len(in.Letters)
			}
		case *compiler.FuncValueInstr:
			if len(in.Scope) > scratch {
				scratch = len(in.Scope)
			}
		}
	}
	size := 64 + 8*code.NumLocals + 8*scratch
	return (size + 15) &^ 15
}

// scratchOff is the offset of the call scratch area.
func scratchOff(code *compiler.Code) int { return 64 + 8*code.NumLocals }

// storeScratch copies vars into the scratch array and leaves its
// address in reg.
func (g *agen) storeScratch(reg string, code *compiler.Code, vs []tc.Var) {
	off := scratchOff(code)
	for i, v := range vs {
		g.loadVar("x9", v)
		g.pf("\tstr x9, [sp, #%d]\n", off+8*i)
	}
	g.pf("\tadd %s, sp, #%d\n", reg, off)
}

func (g *agen) emitRun(id int, code *compiler.Code) {
	size := frameSize(code)
	g.pf("\n\t.align 2\n")
	g.pf("_Run_%d_%d:\n", moduleHash(g.m.Path), id)
	g.pf("\t.cfi_startproc\n")
	g.pf("\tstp x29, x30, [sp, #-%d]!\n", size)
	g.pf("\tmov x29, sp\n")
	g.pf("\tstp x19, x20, [sp, #16]\n")
	g.pf("\tstp x21, x22, [sp, #32]\n")
	g.pf("\tstp x23, x24, [sp, #48]\n")
	g.pf("\tmov x19, x0\n") // heap
	g.pf("\tmov x20, x1\n") // profile
	g.pf("\tmov x21, x2\n") // function
	g.pf("\tmov x22, x3\n") // args
	g.pf("\tldr x23, [x21, #16]\n") // function->statics
	// Zero the locals.
	for i := 0; i < code.NumLocals; i++ {
		g.pf("\tstr xzr, [sp, #%d]\n", slot(i))
	}

	abort := func(pc int, msg string, loc token.Loc) {
		lbl := g.stringLit(msg)
		flbl := g.stringLit(loc.File)
		g.pf("\tadrp x0, %s\n\tadd x0, x0, :lo12:%s\n", lbl, lbl)
		g.pf("\tadrp x1, %s\n\tadd x1, x1, :lo12:%s\n", flbl, flbl)
		g.pf("\tmov x2, #%d\n\tmov x3, #%d\n", loc.Line, loc.Col)
		g.pf("\tbl FbleReportError\n")
		g.pf("\tb .Labort_%d_%d\n", id, pc)
	}

	for pc, in := range code.Instrs {
		g.pf(".Lpc_%d_%d:\n", id, pc)
		for _, d := range in.Base().DebugInfo {
			if sd, ok := d.(compiler.StatementDebugInfo); ok {
				g.loc(sd.Loc)
			}
		}

		g.pf("\tmov x0, x20\n\tmov x1, #1\n\tbl FbleProfileSample\n")
		for _, op := range in.Base().ProfileOps {
			switch op.Tag {
			case compiler.ProfileEnterOp:
				g.pf("\tmov x0, x20\n")
				g.pf("\tldr x1, [x21, #8]\n") // function->profile_block_id
				g.pf("\tsub x1, x1, #%d\n", code.ProfileBlockID)
				g.pf("\tadd x1, x1, #%d\n", op.Block)
				g.pf("\tbl FbleProfileEnterBlock\n")
			case compiler.ProfileReplaceOp:
				g.pf("\tmov x0, x20\n")
				g.pf("\tldr x1, [x21, #8]\n")
				g.pf("\tsub x1, x1, #%d\n", code.ProfileBlockID)
				g.pf("\tadd x1, x1, #%d\n", op.Block)
				g.pf("\tbl FbleProfileReplaceBlock\n")
			case compiler.ProfileExitOp:
				g.pf("\tmov x0, x20\n\tbl FbleProfileExitBlock\n")
			case compiler.ProfileSampleOp:
				g.pf("\tmov x0, x20\n\tmov x1, #%d\n\tbl FbleProfileSample\n", op.Weight)
			}
		}

		switch in := in.(type) {
		case *compiler.StructInstr:
			g.storeScratch("x2", code, in.Args)
			g.pf("\tmov x0, x19\n\tmov x1, #%d\n\tbl FbleNewStructValue\n", len(in.Args))
			g.storeLocal("x0", in.Dest)

		case *compiler.UnionInstr:
			g.pf("\tmov x0, x19\n\tmov x1, #%d\n", in.Tag)
			g.loadVar("x2", in.Arg)
			g.pf("\tbl FbleNewUnionValue\n")
			g.storeLocal("x0", in.Dest)

		case *compiler.AccessInstr:
			g.loadVar("x0", in.Obj)
			g.pf("\tbl FbleStrictValue\n")
			g.pf("\tmov x24, x0\n")
			ok := g.newLabel("defined")
			g.pf("\tcbnz x0, %s\n", ok)
			if in.Kind == tc.StructAccess {
				abort(pc, "undefined struct value access", in.Loc)
			} else {
				abort(pc, "undefined union value access", in.Loc)
			}
			g.pf("%s:\n", ok)
			if in.Kind == tc.StructAccess {
				g.pf("\tmov x0, x24\n\tmov x1, #%d\n\tbl FbleStructValueField\n", in.Tag)
				g.storeLocal("x0", in.Dest)
			} else {
				g.pf("\tmov x0, x24\n\tbl FbleUnionValueTag\n")
				g.pf("\tcmp x0, #%d\n", in.Tag)
				tagOK := g.newLabel("tag")
				g.pf("\tb.eq %s\n", tagOK)
				abort(pc, "union field access undefined: wrong tag", in.Loc)
				g.pf("%s:\n", tagOK)
				g.pf("\tmov x0, x24\n\tbl FbleUnionValueArg\n")
				g.storeLocal("x0", in.Dest)
			}

		case *compiler.SelectInstr:
			g.loadVar("x0", in.Condition)
			g.pf("\tbl FbleStrictValue\n")
			ok := g.newLabel("defined")
			g.pf("\tcbnz x0, %s\n", ok)
			abort(pc, "undefined union value select", in.Loc)
			g.pf("%s:\n", ok)
			g.pf("\tbl FbleUnionValueTag\n")
			g.emitSelectTree(id, in.Targets, in.DefaultPC)

		case *compiler.GotoInstr:
			g.pf("\tb .Lpc_%d_%d\n", id, in.PC)

		case *compiler.FuncValueInstr:
			g.storeScratch("x3", code, in.Scope)
			g.pf("\tmov x0, x19\n")
			exe := fmt.Sprintf("_Executable_%d_%d", moduleHash(g.m.Path), g.ids[in.Code])
			g.pf("\tadrp x1, %s\n\tadd x1, x1, :lo12:%s\n", exe, exe)
			g.pf("\tldr x2, [x21, #8]\n")
			g.pf("\tsub x2, x2, #%d\n", code.ProfileBlockID)
			g.pf("\tbl FbleNewFuncValue\n")
			g.storeLocal("x0", in.Dest)

		case *compiler.CallInstr:
			g.loadVar("x0", in.Func)
			g.pf("\tbl FbleStrictValue\n")
			ok := g.newLabel("defined")
			g.pf("\tcbnz x0, %s\n", ok)
			abort(pc, "called undefined function", in.Loc)
			g.pf("%s:\n", ok)
			g.pf("\tmov x24, x0\n")
			g.storeScratch("x4", code, in.Args)
			g.pf("\tmov x0, x19\n\tmov x1, x20\n\tmov x2, x24\n\tmov x3, #%d\n", len(in.Args))
			g.pf("\tbl FbleCall\n")
			g.storeLocal("x0", in.Dest)
			done := g.newLabel("callok")
			g.pf("\tcbnz x0, %s\n", done)
			g.pf("\tb .Labort_%d_%d\n", id, pc)
			g.pf("%s:\n", done)

		case *compiler.TailCallInstr:
			g.loadVar("x0", in.Func)
			g.pf("\tbl FbleStrictValue\n")
			ok := g.newLabel("defined")
			g.pf("\tcbnz x0, %s\n", ok)
			abort(pc, "called undefined function", in.Loc)
			g.pf("%s:\n", ok)
			g.storeScratch("x3", code, in.Args)
			g.pf("\tmov x0, x19\n")
			g.loadVar("x1", in.Func)
			g.pf("\tmov x2, #%d\n", len(in.Args))
			g.pf("\tbl FbleTailCall\n")
			g.pf("\tb .Lepilogue_%d\n", id)

		case *compiler.CopyInstr:
			g.loadVar("x0", in.Source)
			g.storeLocal("x0", in.Dest)

		case *compiler.RefValueInstr:
			g.pf("\tmov x0, x19\n\tbl FbleNewRefValue\n")
			g.storeLocal("x0", in.Dest)

		case *compiler.RefDefInstr:
			g.pf("\tmov x0, x19\n")
			g.pf("\tldr x1, [sp, #%d]\n", slot(in.Ref))
			g.loadVar("x2", in.Value)
			g.pf("\tbl FbleAssignRefValue\n")
			ok := g.newLabel("refok")
			g.pf("\tcbnz x0, %s\n", ok)
			abort(pc, "vacuous value", in.Loc)
			g.pf("%s:\n", ok)

		case *compiler.ReturnInstr:
			g.loadVar("x0", in.Result)
			g.pf("\tb .Lepilogue_%d\n", id)

		case *compiler.TypeInstr:
			g.pf("\tadrp x0, FbleGenericTypeValue\n")
			g.pf("\tldr x0, [x0, :lo12:FbleGenericTypeValue]\n")
			g.storeLocal("x0", in.Dest)

		case *compiler.RetainInstr:
			g.pf("\tmov x0, x19\n")
			g.pf("\tldr x1, [sp, #%d]\n", slot(in.Target))
			g.pf("\tbl FbleRetainValue\n")

		case *compiler.ReleaseInstr:
			for _, t := range in.Targets {
				g.pf("\tmov x0, x19\n")
				g.pf("\tldr x1, [sp, #%d]\n", slot(t))
				g.pf("\tbl FbleReleaseValue\n")
				g.pf("\tstr xzr, [sp, #%d]\n", slot(t))
			}

		case *compiler.ListInstr:
			g.storeScratch("x2", code, in.Args)
			g.pf("\tmov x0, x19\n\tmov x1, #%d\n\tbl FbleNewListValue\n", len(in.Args))
			g.storeLocal("x0", in.Dest)

		case *compiler.LiteralInstr:
			off := scratchOff(code)
			for i, t := range in.Letters {
				g.pf("\tmov x9, #%d\n\tstr x9, [sp, #%d]\n", t, off+8*i)
			}
			g.pf("\tadd x2, sp, #%d\n", off)
			g.pf("\tmov x0, x19\n\tmov x1, #%d\n\tbl FbleNewLiteralValue\n", len(in.Letters))
			g.storeLocal("x0", in.Dest)

		case *compiler.NopInstr:
			g.pf("\tnop\n")
		}
	}

	// Abort chain: from the failing pc onward, perform only the
	// releases of the remaining instructions, then produce NULL.
	for pc, in := range code.Instrs {
		g.pf(".Labort_%d_%d:\n", id, pc)
		if rel, ok := in.(*compiler.ReleaseInstr); ok {
			for _, t := range rel.Targets {
				g.pf("\tmov x0, x19\n")
				g.pf("\tldr x1, [sp, #%d]\n", slot(t))
				g.pf("\tbl FbleReleaseValue\n")
				g.pf("\tstr xzr, [sp, #%d]\n", slot(t))
			}
		}
	}
	g.pf("\tmov x0, #0\n")

	g.pf(".Lepilogue_%d:\n", id)
	g.pf("\tldp x19, x20, [sp, #16]\n")
	g.pf("\tldp x21, x22, [sp, #32]\n")
	g.pf("\tldp x23, x24, [sp, #48]\n")
	g.pf("\tldp x29, x30, [sp], #%d\n", size)
	g.pf("\tret\n")
	g.pf("\t.cfi_endproc\n")
}

// emitSelectTree emits a binary search over the sorted target table.
// The tag is in x0.
func (g *agen) emitSelectTree(id int, targets []compiler.SelectTarget, defaultPC int) {
	var emit func(lo, hi int)
	emit = func(lo, hi int) {
		if lo > hi {
			g.pf("\tb .Lpc_%d_%d\n", id, defaultPC)
			return
		}
		mid := (lo + hi) / 2
		t := targets[mid]
		g.pf("\tcmp x0, #%d\n", t.Tag)
		g.pf("\tb.eq .Lpc_%d_%d\n", id, t.PC)
		if lo == hi {
			g.pf("\tb .Lpc_%d_%d\n", id, defaultPC)
			return
		}
		hiLbl := g.newLabel("selhi")
		g.pf("\tb.gt %s\n", hiLbl)
		emit(lo, mid-1)
		g.pf("%s:\n", hiLbl)
		emit(mid+1, hi)
	}
	emit(0, len(targets)-1)
}

func (g *agen) stringLit(s string) string {
	if g.strs == nil {
		g.strs = map[string]string{}
	}
	if lbl, ok := g.strs[s]; ok {
		return lbl
	}
	lbl := fmt.Sprintf(".Lstr_%d", len(g.strs))
	g.strs[s] = lbl
	g.deferred = append(g.deferred, func() {
		g.pf("%s:\n\t.string \"%s\"\n", lbl, s)
	})
	return lbl
}

func (g *agen) staticData() {
	g.pf("\n\t.section .rodata\n")
	for _, emit := range g.deferred {
		emit()
	}

	h := moduleHash(g.m.Path)
	pathLbl := g.nextData()
	g.pf("%s:\n\t.string \"%s\"\n", pathLbl, g.m.Path)
	var depLbls []string
	for _, d := range g.m.Deps {
		l := g.nextData()
		g.pf("%s:\n\t.string \"%s\"\n", l, d)
		depLbls = append(depLbls, l)
	}
	var blockLbls []string
	for _, n := range g.m.ProfileBlocks {
		l := g.nextData()
		g.pf("%s:\n\t.string \"%s\"\n", l, n.Name)
		blockLbls = append(blockLbls, l)
	}

	g.pf("\n\t.data\n\t.align 3\n")
	for i, c := range g.codes {
		g.pf("_Executable_%d_%d:\n", h, i)
		g.pf("\t.quad %d\n", c.NumArgs)
		g.pf("\t.quad %d\n", c.NumStatics)
		g.pf("\t.quad %d\n", c.MaxCallArgs)
		g.pf("\t.quad %d\n", c.ProfileBlockID)
		g.pf("\t.quad _Run_%d_%d\n", h, i)
	}

	g.pf("_Deps_%d:\n", h)
	for _, l := range depLbls {
		g.pf("\t.quad %s\n", l)
	}
	g.pf("_ProfileBlocks_%d:\n", h)
	for _, l := range blockLbls {
		g.pf("\t.quad %s\n", l)
	}

	label := LabelForPath(g.m.Path)
	g.pf("\n\t.text\n\t.align 2\n")
	g.pf("\t.global _Fble%s\n", label)
	g.pf("_Fble%s:\n", label)
	g.pf("\tstp x29, x30, [sp, #-32]!\n")
	g.pf("\tstr x19, [sp, #16]\n")
	g.pf("\tmov x19, x0\n")
	for _, d := range g.m.Deps {
		g.pf("\tmov x0, x19\n")
		g.pf("\tbl _Fble%s\n", LabelForPath(d))
	}
	g.pf("\tmov x0, x19\n")
	g.pf("\tadrp x1, %s\n\tadd x1, x1, :lo12:%s\n", pathLbl, pathLbl)
	g.pf("\tmov x2, #%d\n", len(g.m.Deps))
	g.pf("\tadrp x3, _Deps_%d\n\tadd x3, x3, :lo12:_Deps_%d\n", h, h)
	g.pf("\tadrp x4, _Executable_%d_0\n\tadd x4, x4, :lo12:_Executable_%d_0\n", h, h)
	g.pf("\tmov x5, #%d\n", len(g.m.ProfileBlocks))
	g.pf("\tadrp x6, _ProfileBlocks_%d\n\tadd x6, x6, :lo12:_ProfileBlocks_%d\n", h, h)
	g.pf("\tbl FbleLoadFromCompiled\n")
	g.pf("\tldr x19, [sp, #16]\n")
	g.pf("\tldp x29, x30, [sp], #32\n")
	g.pf("\tret\n")
}

func (g *agen) nextData() string {
	g.data++
	return fmt.Sprintf(".Ldata_%d", g.data)
}

// moduleHash gives a stable numeric tag distinguishing symbols of
// different modules linked into the same binary.
func moduleHash(p *token.ModulePath) int {
	h := 0
	for _, r := range p.String() {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	return h % 1000000
}

// GenerateMainAArch64 emits an assembly main stub invoking a
// language-level wrapper with the compiled module's registration
// entry point.
func GenerateMainAArch64(w io.Writer, wrapper string, path *token.ModulePath) error {
	label := LabelForPath(path)
	_, err := fmt.Fprintf(w, `// Generated main stub for module %s. Do not edit.
	.arch armv8-a
	.text
	.align 2
	.global main
main:
	stp x29, x30, [sp, #-16]!
	adrp x2, _Fble%s
	add x2, x2, :lo12:_Fble%s
	bl %s
	ldp x29, x30, [sp], #16
	ret
`, path, label, label, wrapper)
	return err
}
