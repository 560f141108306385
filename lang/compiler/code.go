// Package compiler lowers the typed AST into the stack-machine
// bytecode executed by the machine package and translated by the
// codegen backends. It also provides a textual disassembly of the
// bytecode, used by tests and the disasm command.
package compiler

import (
	"github.com/mna/fble/lang/profile"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
)

// Code is a compiled function body: the register file dimensions and
// the instruction sequence. The three backends (interpreter, C,
// AArch64) consume exactly this.
type Code struct {
	NumArgs     int
	NumStatics  int
	NumLocals   int
	MaxCallArgs int

	// ProfileBlockID is the block entered by this function, relative to
	// the owning module's block table.
	ProfileBlockID profile.BlockID

	Instrs []Instr
}

// ProfileOpTag distinguishes profiling operations.
type ProfileOpTag int

const (
	ProfileEnterOp ProfileOpTag = iota
	ProfileReplaceOp
	ProfileExitOp
	ProfileSampleOp
)

// ProfileOp is a profiling operation attached to an instruction and
// performed before it executes. Block is relative to the module's
// block table; Weight is used by sample ops only.
type ProfileOp struct {
	Tag    ProfileOpTag
	Block  profile.BlockID
	Weight uint64
}

// DebugInfo records debug information attached to an instruction.
type DebugInfo interface {
	debugInfo()
}

// StatementDebugInfo marks the instruction as the start of a new
// statement at Loc.
type StatementDebugInfo struct {
	Loc token.Loc
}

// VarDebugInfo records a variable entering scope at the instruction.
type VarDebugInfo struct {
	Name token.Name
	Var  tc.Var
}

func (StatementDebugInfo) debugInfo() {}
func (VarDebugInfo) debugInfo()       {}

// Instr is one bytecode instruction.
type Instr interface {
	// Base gives access to the debug info and profile ops shared by all
	// instructions.
	Base() *InstrBase
}

// InstrBase is embedded in every instruction.
type InstrBase struct {
	DebugInfo  []DebugInfo
	ProfileOps []ProfileOp
}

func (b *InstrBase) Base() *InstrBase { return b }

// StructInstr allocates a struct value: dst = struct(args...).
type StructInstr struct {
	InstrBase
	Dest int
	Args []tc.Var
}

// UnionInstr allocates a union value: dst = union(tag: arg).
type UnionInstr struct {
	InstrBase
	Dest int
	Tag  int
	Arg  tc.Var
}

// AccessInstr reads a field of a struct or union value:
// dst = obj.tag. Access on an undefined value, or union access with
// the wrong tag, aborts with an error at Loc.
type AccessInstr struct {
	InstrBase
	Kind tc.AccessKind
	Dest int
	Obj  tc.Var
	Tag  int
	Loc  token.Loc
}

// SelectTarget maps a union tag to the pc of its branch.
type SelectTarget struct {
	Tag int
	PC  int
}

// SelectInstr branches on the tag of a union value. Targets is sorted
// by tag and searched with binary search; tags without an entry fall
// through to DefaultPC. Select on an undefined value aborts at Loc.
type SelectInstr struct {
	InstrBase
	Condition tc.Var
	NumTags   int
	Targets   []SelectTarget
	DefaultPC int
	Loc       token.Loc
}

// GotoInstr transfers control to PC.
type GotoInstr struct {
	InstrBase
	PC int
}

// FuncValueInstr allocates a function value closing over the listed
// variables of the current frame.
type FuncValueInstr struct {
	InstrBase
	Dest  int
	Code  *Code
	Scope []tc.Var
}

// CallInstr calls a function: dst = func(args...). Calling an
// undefined function aborts at Loc.
type CallInstr struct {
	InstrBase
	Dest int
	Func tc.Var
	Args []tc.Var
	Loc  token.Loc
}

// TailCallInstr calls a function in tail position, replacing the
// current frame.
type TailCallInstr struct {
	InstrBase
	Func tc.Var
	Args []tc.Var
	Loc  token.Loc
}

// CopyInstr copies a value between frame locations.
type CopyInstr struct {
	InstrBase
	Source tc.Var
	Dest   int
}

// RefValueInstr allocates an unassigned reference cell, the
// placeholder for a recursive binding.
type RefValueInstr struct {
	InstrBase
	Dest int
}

// RefDefInstr assigns the value of a reference cell, tying a
// recursive binding's knot. A vacuous definition aborts at Loc.
type RefDefInstr struct {
	InstrBase
	Ref   int
	Value tc.Var
	Loc   token.Loc
}

// ReturnInstr returns a value and exits the current frame.
type ReturnInstr struct {
	InstrBase
	Result tc.Var
}

// TypeInstr stores the generic type value: dst = @<>.
type TypeInstr struct {
	InstrBase
	Dest int
}

// RetainInstr keeps a local alive. At runtime this is a no-op on the
// frame heap; it documents the compiler's ownership transfers.
type RetainInstr struct {
	InstrBase
	Target int
}

// ReleaseInstr drops local slots, allowing their registers to be
// reused and their values to be collected.
type ReleaseInstr struct {
	InstrBase
	Targets []int
}

// ListInstr allocates a list value: dst = [args...].
type ListInstr struct {
	InstrBase
	Dest int
	Args []tc.Var
}

// LiteralInstr allocates the letter list of a literal expression.
type LiteralInstr struct {
	InstrBase
	Dest    int
	Letters []int
}

// NopInstr does nothing. It exists as an attachment point for profile
// ops and debug info.
type NopInstr struct {
	InstrBase
}
