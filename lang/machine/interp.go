package machine

import (
	"sort"

	"github.com/mna/fble/lang/compiler"
	"github.com/mna/fble/lang/profile"
	"github.com/mna/fble/lang/tc"
)

// NewInterpretedExecutable wraps compiled code in an executable whose
// run function interprets the instructions. The heap memoizes the
// executables so every function value created from the same code
// shares one.
func (h *Heap) NewInterpretedExecutable(code *compiler.Code) *Executable {
	if exe, ok := h.interpCache[code]; ok {
		return exe
	}
	exe := newInterpretedExecutable(code)
	if h.interpCache == nil {
		h.interpCache = make(map[*compiler.Code]*Executable)
	}
	h.interpCache[code] = exe
	return exe
}

func newInterpretedExecutable(code *compiler.Code) *Executable {
	return &Executable{
		NumArgs:        code.NumArgs,
		NumStatics:     code.NumStatics,
		MaxCallArgs:    code.MaxCallArgs,
		ProfileBlockID: code.ProfileBlockID,
		Run: func(h *Heap, pt *profile.Thread, f *Function, args []Value) Value {
			return interpret(h, pt, f, code, args)
		},
	}
}

// interpret executes a code body. Every Var operand decodes through
// the three per-section tables; undefined-behavior cases report a
// located error and unwind through runAbort.
func interpret(h *Heap, pt *profile.Thread, f *Function, code *compiler.Code, args []Value) Value {
	locals := make([]Value, code.NumLocals)
	get := func(v tc.Var) Value {
		switch v.Section {
		case tc.StaticVar:
			return f.Statics[v.Index]
		case tc.ArgVar:
			return args[v.Index]
		default:
			return locals[v.Index]
		}
	}

	pc := 0
	for {
		instr := code.Instrs[pc]
		pt.Sample(1)
		for _, op := range instr.Base().ProfileOps {
			switch op.Tag {
			case compiler.ProfileEnterOp:
				pt.EnterBlock(op.Block + f.ProfileBlockOffset)
			case compiler.ProfileReplaceOp:
				pt.ReplaceBlock(op.Block + f.ProfileBlockOffset)
			case compiler.ProfileExitOp:
				pt.ExitBlock()
			case compiler.ProfileSampleOp:
				pt.Sample(op.Weight)
			}
		}

		switch in := instr.(type) {
		case *compiler.StructInstr:
			fields := make([]Value, len(in.Args))
			for i, a := range in.Args {
				fields[i] = get(a)
			}
			locals[in.Dest] = h.NewStructValue(fields...)

		case *compiler.UnionInstr:
			locals[in.Dest] = h.NewUnionValue(in.Tag, get(in.Arg))

		case *compiler.AccessInstr:
			obj := StrictValue(get(in.Obj))
			if obj == nil {
				if in.Kind == tc.StructAccess {
					h.RuntimeErrorf(in.Loc, "undefined struct value access")
				} else {
					h.RuntimeErrorf(in.Loc, "undefined union value access")
				}
				return runAbort(code, pc, locals)
			}
			if in.Kind == tc.StructAccess {
				locals[in.Dest] = StructField(obj, in.Tag)
			} else {
				if UnionTag(obj) != in.Tag {
					h.RuntimeErrorf(in.Loc, "union field access undefined: wrong tag")
					return runAbort(code, pc, locals)
				}
				locals[in.Dest] = UnionArg(obj)
			}

		case *compiler.SelectInstr:
			v := StrictValue(get(in.Condition))
			if v == nil {
				h.RuntimeErrorf(in.Loc, "undefined union value select")
				return runAbort(code, pc, locals)
			}
			tag := UnionTag(v)
			i := sort.Search(len(in.Targets), func(i int) bool { return in.Targets[i].Tag >= tag })
			if i < len(in.Targets) && in.Targets[i].Tag == tag {
				pc = in.Targets[i].PC
			} else {
				pc = in.DefaultPC
			}
			continue

		case *compiler.GotoInstr:
			pc = in.PC
			continue

		case *compiler.FuncValueInstr:
			statics := make([]Value, len(in.Scope))
			for i, v := range in.Scope {
				statics[i] = get(v)
			}
			exe := h.NewInterpretedExecutable(in.Code)
			locals[in.Dest] = h.NewFuncValue(exe, f.ProfileBlockOffset, statics...)

		case *compiler.CallInstr:
			fn := StrictValue(get(in.Func))
			if fn == nil {
				h.RuntimeErrorf(in.Loc, "called undefined function")
				return runAbort(code, pc, locals)
			}
			callArgs := make([]Value, len(in.Args))
			for i, a := range in.Args {
				callArgs[i] = get(a)
			}
			r := h.Call(pt, fn, callArgs...)
			if r == nil {
				// The callee reported its own error.
				return runAbort(code, pc, locals)
			}
			locals[in.Dest] = r

		case *compiler.TailCallInstr:
			fn := get(in.Func)
			if StrictValue(fn) == nil {
				h.RuntimeErrorf(in.Loc, "called undefined function")
				return runAbort(code, pc, locals)
			}
			callArgs := make([]Value, len(in.Args))
			for i, a := range in.Args {
				callArgs[i] = get(a)
			}
			return h.TailCall(fn, callArgs...)

		case *compiler.CopyInstr:
			locals[in.Dest] = get(in.Source)

		case *compiler.RefValueInstr:
			locals[in.Dest] = h.NewRefValue()

		case *compiler.RefDefInstr:
			if !h.AssignRefValue(locals[in.Ref], get(in.Value)) {
				h.RuntimeErrorf(in.Loc, "vacuous value")
				return runAbort(code, pc, locals)
			}

		case *compiler.ReturnInstr:
			return get(in.Result)

		case *compiler.TypeInstr:
			locals[in.Dest] = GenericTypeValue

		case *compiler.RetainInstr:
			// Values live on frames; nothing to count.

		case *compiler.ReleaseInstr:
			for _, t := range in.Targets {
				locals[t] = nil
			}

		case *compiler.ListInstr:
			v := h.NewUnionValue(1, h.NewStructValue())
			for i := len(in.Args) - 1; i >= 0; i-- {
				v = h.NewUnionValue(0, h.NewStructValue(get(in.Args[i]), v))
			}
			locals[in.Dest] = v

		case *compiler.LiteralInstr:
			v := h.NewUnionValue(1, h.NewStructValue())
			for i := len(in.Letters) - 1; i >= 0; i-- {
				letter := h.NewEnumValue(in.Letters[i])
				v = h.NewUnionValue(0, h.NewStructValue(letter, v))
			}
			locals[in.Dest] = v

		case *compiler.NopInstr:
			// annotation carrier only
		}
		pc++
	}
}

// runAbort unwinds an aborted activation: it walks the remainder of
// the instruction stream performing only the Release bookkeeping
// needed to keep the locals sound, then produces the nil result.
func runAbort(code *compiler.Code, pc int, locals []Value) Value {
	for ; pc < len(code.Instrs); pc++ {
		if rel, ok := code.Instrs[pc].(*compiler.ReleaseInstr); ok {
			for _, t := range rel.Targets {
				locals[t] = nil
			}
		}
	}
	return nil
}
