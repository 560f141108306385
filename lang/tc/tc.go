// Package tc defines the typed abstract syntax tree: the output of
// the type checker and the input of the compiler. Compared to the
// untyped AST, field and variable names are replaced with integer
// indices and all type information is erased; only the locations
// needed for runtime error reporting remain.
package tc

import (
	"fmt"

	"github.com/mna/fble/lang/token"
)

// Tc is the interface implemented by all typed AST nodes.
type Tc interface {
	Loc() token.Loc
	tc()
}

type tcBase struct {
	L token.Loc
}

func (t *tcBase) Loc() token.Loc { return t.L }
func (t *tcBase) tc()            {}

// VarSection identifies which register file of a stack frame a
// variable lives in.
type VarSection int

const (
	StaticVar VarSection = iota
	ArgVar
	LocalVar
)

func (s VarSection) String() string {
	switch s {
	case StaticVar:
		return "s"
	case ArgVar:
		return "a"
	case LocalVar:
		return "l"
	}
	return "?"
}

// Var identifies a variable in a stack frame by section and index.
type Var struct {
	Section VarSection
	Index   int
}

func (v Var) String() string { return fmt.Sprintf("%s[%d]", v.Section, v.Index) }

// AccessKind distinguishes struct access from union access.
type AccessKind int

const (
	StructAccess AccessKind = iota
	UnionAccess
)

// Binding is a named sub-expression: one binding of a let, or one
// branch of a union select.
type Binding struct {
	Name token.Name
	Loc  token.Loc
	Tc   Tc
}

// TypeValue computes the runtime stand-in for a type value. All type
// values are the same at runtime.
type TypeValue struct {
	tcBase
}

// VarTc reads a variable.
type VarTc struct {
	tcBase
	Var Var
}

// LetTc evaluates bindings then a body. For recursive lets every
// right-hand side sees all binders through reference cells.
type LetTc struct {
	tcBase
	Recursive bool
	Bindings  []Binding
	Body      Tc
}

// StructValueTc constructs a struct value.
type StructValueTc struct {
	tcBase
	Fields []Tc
}

// StructCopyTc constructs a struct from an existing one with selected
// fields overridden. Fields has one entry per field of the struct
// type; a nil entry keeps the source's field.
type StructCopyTc struct {
	tcBase
	Source Tc
	Fields []Tc
}

// UnionValueTc constructs a union value with a known tag.
type UnionValueTc struct {
	tcBase
	Tag int
	Arg Tc
}

// UnionSelectChoice maps a union tag to its branch. Multiple tags may
// share the same branch Tc pointer (synthesized from a default); code
// generation detects that to avoid duplicating code.
type UnionSelectChoice struct {
	Tag    int
	Branch Binding
}

// UnionSelectTc branches on the tag of a union value. Default is the
// branch for tags without an explicit choice; it is always present,
// synthesized by the type checker if the source had none.
type UnionSelectTc struct {
	tcBase
	Condition Tc
	NumTags   int
	Choices   []UnionSelectChoice
	Default   Binding
}

// DataAccessTc projects a field out of a struct or union value.
type DataAccessTc struct {
	tcBase
	Kind AccessKind
	Obj  Tc
	Tag  int
	// AccessLoc is the location of the access itself, for the runtime
	// wrong-tag / undefined-value errors.
	AccessLoc token.Loc
}

// FuncValueTc constructs a function value. Scope lists the variables
// of the enclosing frame captured as the function's statics, in
// static-index order.
type FuncValueTc struct {
	tcBase
	BodyLoc token.Loc
	Scope   []Var
	Statics []token.Name
	Args    []token.Name
	Body    Tc
}

// FuncApplyTc applies a function to one argument. Curried application
// is a chain of these.
type FuncApplyTc struct {
	tcBase
	Func Tc
	Arg  Tc
}

// ListTc constructs the list value passed to the function of a list
// expression.
type ListTc struct {
	tcBase
	Fields []Tc
}

// LiteralTc constructs the list of letters passed to the function of
// a literal expression. Letters[i] is the union tag of the i'th letter
// of the literal word.
type LiteralTc struct {
	tcBase
	Letters []int
}
