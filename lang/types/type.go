package types

import "github.com/mna/fble/lang/token"

// Type is the interface implemented by all type nodes. Types are
// allocated on a Heap, which assigns each node a unique id used by the
// cycle-detection machinery; identity comparisons use ids, never
// rendered forms.
type Type interface {
	Loc() token.Loc
	typeID() uint64
}

type typeBase struct {
	loc token.Loc
	id  uint64
}

func (t *typeBase) Loc() token.Loc { return t.loc }
func (t *typeBase) typeID() uint64 { return t.id }

// DataTypeKind distinguishes struct and union data types.
type DataTypeKind int

const (
	StructKind DataTypeKind = iota
	UnionKind
)

// Field is one named field of a data type. Field order is significant:
// union tags and struct access positions come from it.
type Field struct {
	Name token.Name
	Type Type
}

// DataType is a struct or union type.
type DataType struct {
	typeBase
	Kind   DataTypeKind
	Fields []Field
}

// FuncType is a single-argument function type. Multi-argument
// functions are curried chains of these.
type FuncType struct {
	typeBase
	Arg   Type
	RType Type
}

// PolyType is a polymorphic type: a binder (always a VarType) and a
// body that may refer to it.
type PolyType struct {
	typeBase
	Arg  *VarType
	Body Type
}

// PolyApplyType is the application of a poly to a type argument. It is
// eliminated by normalization via substitution.
type PolyApplyType struct {
	typeBase
	Poly Type
	Arg  Type
}

// PackageType is the nominal key for access control. Two package types
// are the same type iff their paths are equal.
type PackageType struct {
	typeBase
	Path *token.ModulePath
	// Opaque is true if the package type guards its abstract types
	// against modules outside the package. The flag itself is never
	// changed; while checking an abstract cast inside the declaring
	// package the type checker suspends opacity with
	// Heap.PushTransparent.
	Opaque bool
}

// AbstractType is a type made opaque under a package. Outside the
// declaring package it does not unify with its underlying type.
type AbstractType struct {
	typeBase
	Package *PackageType
	Type    Type
}

// TypeType is the type of a type value: the result of typeof on a
// type, one kind level up.
type TypeType struct {
	typeBase
	Type Type
}

// VarType is a type variable: the binder of a PolyType, a placeholder
// during recursive let type checking, or an inference variable created
// by Depoly. Value is nil until assigned.
type VarType struct {
	typeBase
	Name  token.Name
	K     Kind
	Value Type
}
