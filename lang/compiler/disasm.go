package compiler

import (
	"fmt"
	"strings"

	"github.com/mna/fble/lang/tc"
)

// Disassemble renders a module's code and every function reachable
// from it in a readable textual form. The format is stable and used by
// the compiler golden tests and the disasm command.
func Disassemble(m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n", m.Path)
	for i, d := range m.Deps {
		fmt.Fprintf(&sb, "  dep[%d] = %s\n", i, d)
	}
	if m.Code == nil {
		sb.WriteString("  (type only)\n")
		return sb.String()
	}

	// Number the codes in discovery order: the module body first, then
	// every function value reachable from it.
	codes := []*Code{m.Code}
	index := map[*Code]int{m.Code: 0}
	for i := 0; i < len(codes); i++ {
		for _, in := range codes[i].Instrs {
			if fv, ok := in.(*FuncValueInstr); ok {
				if _, ok := index[fv.Code]; !ok {
					index[fv.Code] = len(codes)
					codes = append(codes, fv.Code)
				}
			}
		}
	}

	for i, code := range codes {
		fmt.Fprintf(&sb, "func%d: args=%d statics=%d locals=%d block=%d\n",
			i, code.NumArgs, code.NumStatics, code.NumLocals, code.ProfileBlockID)
		for pc, in := range code.Instrs {
			fmt.Fprintf(&sb, "  %3d: %s\n", pc, disasmInstr(in, index))
		}
	}
	return sb.String()
}

func disasmInstr(in Instr, index map[*Code]int) string {
	var s string
	switch in := in.(type) {
	case *StructInstr:
		s = fmt.Sprintf("l[%d] = struct(%s)", in.Dest, vars(in.Args))
	case *UnionInstr:
		s = fmt.Sprintf("l[%d] = union(%d: %s)", in.Dest, in.Tag, in.Arg)
	case *AccessInstr:
		op := "*"
		if in.Kind == tc.UnionAccess {
			op = "+"
		}
		s = fmt.Sprintf("l[%d] = %s.%s%d", in.Dest, in.Obj, op, in.Tag)
	case *SelectInstr:
		parts := make([]string, len(in.Targets))
		for i, t := range in.Targets {
			parts[i] = fmt.Sprintf("%d: %d", t.Tag, t.PC)
		}
		s = fmt.Sprintf("select %s of %d (%s; : %d)", in.Condition, in.NumTags,
			strings.Join(parts, ", "), in.DefaultPC)
	case *GotoInstr:
		s = fmt.Sprintf("goto %d", in.PC)
	case *FuncValueInstr:
		s = fmt.Sprintf("l[%d] = func func%d [%s]", in.Dest, index[in.Code], vars(in.Scope))
	case *CallInstr:
		s = fmt.Sprintf("l[%d] = call %s(%s)", in.Dest, in.Func, vars(in.Args))
	case *TailCallInstr:
		s = fmt.Sprintf("tailcall %s(%s)", in.Func, vars(in.Args))
	case *CopyInstr:
		s = fmt.Sprintf("l[%d] = %s", in.Dest, in.Source)
	case *RefValueInstr:
		s = fmt.Sprintf("l[%d] = ref", in.Dest)
	case *RefDefInstr:
		s = fmt.Sprintf("ref l[%d] = %s", in.Ref, in.Value)
	case *ReturnInstr:
		s = fmt.Sprintf("return %s", in.Result)
	case *TypeInstr:
		s = fmt.Sprintf("l[%d] = type", in.Dest)
	case *RetainInstr:
		s = fmt.Sprintf("retain l[%d]", in.Target)
	case *ReleaseInstr:
		parts := make([]string, len(in.Targets))
		for i, t := range in.Targets {
			parts[i] = fmt.Sprintf("l[%d]", t)
		}
		s = "release " + strings.Join(parts, ", ")
	case *ListInstr:
		s = fmt.Sprintf("l[%d] = list(%s)", in.Dest, vars(in.Args))
	case *LiteralInstr:
		s = fmt.Sprintf("l[%d] = literal%v", in.Dest, in.Letters)
	case *NopInstr:
		s = "nop"
	default:
		s = fmt.Sprintf("?%T", in)
	}

	var notes []string
	for _, op := range in.Base().ProfileOps {
		switch op.Tag {
		case ProfileEnterOp:
			notes = append(notes, fmt.Sprintf("enter %d", op.Block))
		case ProfileReplaceOp:
			notes = append(notes, fmt.Sprintf("replace %d", op.Block))
		case ProfileExitOp:
			notes = append(notes, "exit")
		case ProfileSampleOp:
			notes = append(notes, fmt.Sprintf("sample %d", op.Weight))
		}
	}
	if len(notes) > 0 {
		s += " ; " + strings.Join(notes, ", ")
	}
	return s
}

func vars(vs []tc.Var) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
