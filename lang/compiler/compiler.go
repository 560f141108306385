package compiler

import (
	"fmt"

	"github.com/mna/fble/lang/ast"
	"github.com/mna/fble/lang/profile"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
	"github.com/mna/fble/lang/typecheck"
	"github.com/mna/fble/lang/types"
)

// Module is one compiled module of a program.
type Module struct {
	Path *token.ModulePath
	Deps []*token.ModulePath

	// Code is the module body, a function of the module's dependencies.
	// Nil for type-only modules.
	Code *Code

	// ProfileBlocks names the profiling blocks of the module, indexed
	// by the module-relative block ids in the code.
	ProfileBlocks []token.Name
}

// Program is a compiled program: modules in topological order, main
// module last.
type Program struct {
	Modules []*Module
}

// Main returns the main module of the program.
func (p *Program) Main() *Module { return p.Modules[len(p.Modules)-1] }

// CompileProgram type checks and compiles a loaded program. Type
// errors are returned as a token.ErrorList; compilation itself cannot
// fail on a well-typed program.
func CompileProgram(th *types.Heap, prog *ast.Program) (*Program, token.ErrorList, error) {
	mods, warns, err := typecheck.CheckProgram(th, prog)
	if err != nil {
		return nil, warns, err
	}
	cp := &Program{}
	for _, m := range mods {
		cp.Modules = append(cp.Modules, Compile(m))
	}
	return cp, warns, nil
}

// CompileModule type checks and compiles a program, returning the
// compiled main module.
func CompileModule(th *types.Heap, prog *ast.Program) (*Module, token.ErrorList, error) {
	cp, warns, err := CompileProgram(th, prog)
	if err != nil {
		return nil, warns, err
	}
	return cp.Main(), warns, nil
}

// Compile lowers one type checked module to bytecode. Lowering is
// deterministic and total over well-typed input; an invariant
// violation is a bug and panics.
func Compile(tm *typecheck.Module) *Module {
	m := &Module{Path: tm.Path, Deps: tm.Deps}
	if tm.Tc == nil {
		return m
	}

	bc := &blockCtx{}
	rootID := bc.push(tm.Path.String(), tm.Path.Loc)

	code := &Code{NumArgs: len(tm.Deps), ProfileBlockID: rootID}
	s := &scope{code: code, bc: bc}
	for i := range tm.Deps {
		s.args = append(s.args, &local{v: tc.Var{Section: tc.ArgVar, Index: i}, refcount: 1})
	}
	s.pendingOps = append(s.pendingOps, ProfileOp{Tag: ProfileEnterOp, Block: rootID})
	s.compileExpr(true, tm.Tc)

	m.Code = code
	m.ProfileBlocks = bc.names
	return m
}

// blockCtx accumulates the profiling block table of a module and the
// stack of nested block names.
type blockCtx struct {
	names []token.Name
	stack []string
}

func (bc *blockCtx) push(suffix string, loc token.Loc) profile.BlockID {
	full := suffix
	if len(bc.stack) > 0 {
		full = bc.stack[len(bc.stack)-1] + suffix
	}
	bc.stack = append(bc.stack, full)
	bc.names = append(bc.names, token.Name{Name: full, Space: token.NormalNamespace, Loc: loc})
	return profile.BlockID(len(bc.names) - 1)
}

func (bc *blockCtx) pop() {
	bc.stack = bc.stack[:len(bc.stack)-1]
}

// local is a value slot known to the compiler: a static, an argument,
// or a numbered local register.
type local struct {
	v        tc.Var
	refcount int
}

// scope is the per-function compilation state: the register file and
// the pending annotations to attach to the next emitted instruction.
type scope struct {
	code *Code
	bc   *blockCtx

	statics []*local
	args    []*local
	// vars maps the type checker's depth-indexed locals to their
	// compiled slots. Entries may be nil between the push of a
	// non-recursive binder and the compilation of its definition.
	vars []*local
	// regs is the register table; nil entries are free for reuse.
	regs []*local

	pendingOps   []ProfileOp
	pendingDebug []DebugInfo
}

func (s *scope) emit(i Instr) int {
	b := i.Base()
	b.ProfileOps = append(b.ProfileOps, s.pendingOps...)
	b.DebugInfo = append(b.DebugInfo, s.pendingDebug...)
	s.pendingOps = nil
	s.pendingDebug = nil
	pc := len(s.code.Instrs)
	s.code.Instrs = append(s.code.Instrs, i)
	return pc
}

// newLocal allocates the lowest free register.
func (s *scope) newLocal() *local {
	reg := -1
	for i, r := range s.regs {
		if r == nil {
			reg = i
			break
		}
	}
	if reg < 0 {
		reg = len(s.regs)
		s.regs = append(s.regs, nil)
	}
	l := &local{v: tc.Var{Section: tc.LocalVar, Index: reg}, refcount: 1}
	s.regs[reg] = l
	if reg+1 > s.code.NumLocals {
		s.code.NumLocals = reg + 1
	}
	return l
}

// release drops one reference to a local. When the last reference is
// dropped the register is freed and, unless the frame is about to be
// discarded (exit), a Release instruction is emitted.
func (s *scope) release(l *local, exit bool) {
	if l == nil || l.v.Section != tc.LocalVar {
		return
	}
	l.refcount--
	if l.refcount > 0 {
		return
	}
	s.regs[l.v.Index] = nil
	if !exit {
		s.emit(&ReleaseInstr{Targets: []int{l.v.Index}})
	}
}

// releaseLiveExcept releases every live register not in keep, as a
// single Release instruction. Used before tail calls.
func (s *scope) releaseLiveExcept(keep []*local) {
	kept := make(map[int]bool, len(keep))
	for _, l := range keep {
		if l != nil && l.v.Section == tc.LocalVar {
			kept[l.v.Index] = true
		}
	}
	var targets []int
	for i, r := range s.regs {
		if r != nil && !kept[i] {
			targets = append(targets, i)
			s.regs[i] = nil
		}
	}
	if len(targets) > 0 {
		s.emit(&ReleaseInstr{Targets: targets})
	}
}

// get resolves a type checker variable to its compiled slot.
func (s *scope) get(v tc.Var) *local {
	switch v.Section {
	case tc.StaticVar:
		return s.statics[v.Index]
	case tc.ArgVar:
		return s.args[v.Index]
	default:
		l := s.vars[v.Index]
		if l == nil {
			panic(fmt.Sprintf("compiler: use of unassigned local %d", v.Index))
		}
		return l
	}
}

func (s *scope) trackCallArgs(n int) {
	if n > s.code.MaxCallArgs {
		s.code.MaxCallArgs = n
	}
}

// compileExit finishes an expression in tail position by returning its
// result. Returns nil when exit is true; otherwise passes the result
// through.
func (s *scope) compileExit(exit bool, result *local) *local {
	if !exit {
		return result
	}
	s.pendingOps = append(s.pendingOps, ProfileOp{Tag: ProfileExitOp})
	s.emit(&ReturnInstr{Result: result.v})
	s.release(result, true)
	return nil
}

// compileExpr lowers one typed expression. When exit is true the
// expression is in tail position: the generated code returns (or tail
// calls) rather than leaving a result in a register, and the function
// returns nil.
func (s *scope) compileExpr(exit bool, e tc.Tc) *local {
	switch e := e.(type) {
	case *tc.TypeValue:
		dst := s.newLocal()
		s.emit(&TypeInstr{Dest: dst.v.Index})
		return s.compileExit(exit, dst)

	case *tc.VarTc:
		src := s.get(e.Var)
		if exit {
			// Borrowed: the owner (binding or argument) releases it when
			// its scope unwinds.
			src.refcount++
			return s.compileExit(true, src)
		}
		dst := s.newLocal()
		s.emit(&CopyInstr{Source: src.v, Dest: dst.v.Index})
		return dst

	case *tc.LetTc:
		return s.compileLet(exit, e)

	case *tc.StructValueTc:
		args := make([]*local, len(e.Fields))
		vars := make([]tc.Var, len(e.Fields))
		for i, f := range e.Fields {
			args[i] = s.compileExpr(false, f)
			vars[i] = args[i].v
		}
		dst := s.newLocal()
		s.emit(&StructInstr{Dest: dst.v.Index, Args: vars})
		for _, a := range args {
			s.release(a, false)
		}
		return s.compileExit(exit, dst)

	case *tc.StructCopyTc:
		src := s.compileExpr(false, e.Source)
		args := make([]*local, len(e.Fields))
		vars := make([]tc.Var, len(e.Fields))
		for i, f := range e.Fields {
			if f != nil {
				args[i] = s.compileExpr(false, f)
			} else {
				args[i] = s.newLocal()
				s.emit(&AccessInstr{
					Kind: tc.StructAccess,
					Dest: args[i].v.Index,
					Obj:  src.v,
					Tag:  i,
					Loc:  e.Loc(),
				})
			}
			vars[i] = args[i].v
		}
		dst := s.newLocal()
		s.emit(&StructInstr{Dest: dst.v.Index, Args: vars})
		for _, a := range args {
			s.release(a, false)
		}
		s.release(src, false)
		return s.compileExit(exit, dst)

	case *tc.UnionValueTc:
		arg := s.compileExpr(false, e.Arg)
		dst := s.newLocal()
		s.emit(&UnionInstr{Dest: dst.v.Index, Tag: e.Tag, Arg: arg.v})
		s.release(arg, false)
		return s.compileExit(exit, dst)

	case *tc.UnionSelectTc:
		return s.compileSelect(exit, e)

	case *tc.DataAccessTc:
		obj := s.compileExpr(false, e.Obj)
		dst := s.newLocal()
		s.emit(&AccessInstr{
			Kind: e.Kind,
			Dest: dst.v.Index,
			Obj:  obj.v,
			Tag:  e.Tag,
			Loc:  e.AccessLoc,
		})
		s.release(obj, false)
		return s.compileExit(exit, dst)

	case *tc.FuncValueTc:
		return s.compileFunc(exit, e)

	case *tc.FuncApplyTc:
		return s.compileApply(exit, e)

	case *tc.ListTc:
		args := make([]*local, len(e.Fields))
		vars := make([]tc.Var, len(e.Fields))
		for i, f := range e.Fields {
			args[i] = s.compileExpr(false, f)
			vars[i] = args[i].v
		}
		dst := s.newLocal()
		s.emit(&ListInstr{Dest: dst.v.Index, Args: vars})
		for _, a := range args {
			s.release(a, false)
		}
		return s.compileExit(exit, dst)

	case *tc.LiteralTc:
		dst := s.newLocal()
		s.emit(&LiteralInstr{Dest: dst.v.Index, Letters: e.Letters})
		return s.compileExit(exit, dst)
	}
	panic(fmt.Sprintf("compiler: unknown tc %T", e))
}

func (s *scope) compileLet(exit bool, e *tc.LetTc) *local {
	base := len(s.vars)

	if e.Recursive {
		for _, b := range e.Bindings {
			l := s.newLocal()
			s.pendingDebug = append(s.pendingDebug, VarDebugInfo{Name: b.Name, Var: l.v})
			s.emit(&RefValueInstr{Dest: l.v.Index})
			s.vars = append(s.vars, l)
		}
	} else {
		for range e.Bindings {
			s.vars = append(s.vars, nil)
		}
	}

	for i, b := range e.Bindings {
		bid := s.bc.push("."+b.Name.Name, b.Loc)
		s.pendingOps = append(s.pendingOps, ProfileOp{Tag: ProfileEnterOp, Block: bid})
		rhs := s.compileExpr(false, b.Tc)
		if e.Recursive {
			ref := s.vars[base+i]
			s.emit(&RefDefInstr{Ref: ref.v.Index, Value: rhs.v, Loc: b.Loc})
			s.release(rhs, false)
		} else {
			s.pendingDebug = append(s.pendingDebug, VarDebugInfo{Name: b.Name, Var: rhs.v})
			s.vars[base+i] = rhs
		}
		s.pendingOps = append(s.pendingOps, ProfileOp{Tag: ProfileExitOp})
		s.bc.pop()
	}

	result := s.compileExpr(exit, e.Body)

	for i := len(e.Bindings) - 1; i >= 0; i-- {
		s.release(s.vars[base+i], exit)
	}
	s.vars = s.vars[:base]
	return result
}

func (s *scope) compileSelect(exit bool, e *tc.UnionSelectTc) *local {
	cond := s.compileExpr(false, e.Condition)
	si := &SelectInstr{Condition: cond.v, NumTags: e.NumTags, Loc: e.Loc()}
	s.emit(si)

	var dst *local
	if !exit {
		dst = s.newLocal()
	}

	// Branches shared between several tags (and the default) are
	// compiled once; sharing is by Tc pointer.
	done := make(map[tc.Tc]int)
	var gotos []*GotoInstr
	compileBranch := func(b tc.Binding) int {
		if pc, ok := done[b.Tc]; ok {
			return pc
		}
		pc := len(s.code.Instrs)
		done[b.Tc] = pc
		if exit {
			s.compileExpr(true, b.Tc)
			return pc
		}
		r := s.compileExpr(false, b.Tc)
		s.emit(&CopyInstr{Source: r.v, Dest: dst.v.Index})
		s.release(r, false)
		g := &GotoInstr{}
		s.emit(g)
		gotos = append(gotos, g)
		return pc
	}

	for _, ch := range e.Choices {
		pc := compileBranch(ch.Branch)
		si.Targets = append(si.Targets, SelectTarget{Tag: ch.Tag, PC: pc})
	}
	si.DefaultPC = compileBranch(e.Default)

	join := len(s.code.Instrs)
	for _, g := range gotos {
		g.PC = join
	}
	s.release(cond, exit)
	return dst
}

func (s *scope) compileFunc(exit bool, e *tc.FuncValueTc) *local {
	bid := s.bc.push("!", e.BodyLoc)

	inner := &scope{
		code: &Code{
			NumArgs:        len(e.Args),
			NumStatics:     len(e.Statics),
			ProfileBlockID: bid,
		},
		bc: s.bc,
	}
	for i := range e.Statics {
		inner.statics = append(inner.statics, &local{v: tc.Var{Section: tc.StaticVar, Index: i}, refcount: 1})
	}
	for i, name := range e.Args {
		l := &local{v: tc.Var{Section: tc.ArgVar, Index: i}, refcount: 1}
		inner.args = append(inner.args, l)
		inner.pendingDebug = append(inner.pendingDebug, VarDebugInfo{Name: name, Var: l.v})
	}
	inner.pendingOps = append(inner.pendingOps, ProfileOp{Tag: ProfileEnterOp, Block: bid})
	inner.compileExpr(true, e.Body)
	s.bc.pop()

	scopeVars := make([]tc.Var, len(e.Scope))
	for i, v := range e.Scope {
		scopeVars[i] = s.get(v).v
	}
	dst := s.newLocal()
	s.emit(&FuncValueInstr{Dest: dst.v.Index, Code: inner.code, Scope: scopeVars})
	return s.compileExit(exit, dst)
}

func (s *scope) compileApply(exit bool, e *tc.FuncApplyTc) *local {
	// Collapse the curried application spine into one call; the
	// runtime deals with over- and under-application.
	var spine []*tc.FuncApplyTc
	f := e
	for {
		spine = append(spine, f)
		ff, ok := f.Func.(*tc.FuncApplyTc)
		if !ok {
			break
		}
		f = ff
	}

	fn := s.compileExpr(false, spine[len(spine)-1].Func)
	args := make([]*local, len(spine))
	vars := make([]tc.Var, len(spine))
	for i := range spine {
		a := spine[len(spine)-1-i]
		args[i] = s.compileExpr(false, a.Arg)
		vars[i] = args[i].v
	}
	s.trackCallArgs(len(vars))

	if exit {
		s.releaseLiveExcept(append(args[:len(args):len(args)], fn))
		s.pendingOps = append(s.pendingOps, ProfileOp{Tag: ProfileExitOp})
		s.emit(&TailCallInstr{Func: fn.v, Args: vars, Loc: e.Loc()})
		return nil
	}

	dst := s.newLocal()
	s.emit(&CallInstr{Dest: dst.v.Index, Func: fn.v, Args: vars, Loc: e.Loc()})
	for _, a := range args {
		s.release(a, false)
	}
	s.release(fn, false)
	return dst
}
