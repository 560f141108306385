// Package ast defines the untyped abstract syntax tree of the fble
// language, as produced by the parser. The tree is the input to the
// type checker; field and variable names are still symbolic and no
// type information is attached.
//
// Types are expressions in fble, so type syntax (struct, union and
// function types, package types, typeof) appears here as ordinary
// expression nodes.
package ast

import "github.com/mna/fble/lang/token"

// Expr is the interface implemented by all expression nodes.
type Expr interface {
	// Loc returns the location of the start of the expression.
	Loc() token.Loc
	expr()
}

type ExprBase struct {
	L token.Loc
}

func (e *ExprBase) Loc() token.Loc { return e.L }
func (e *ExprBase) expr()          {}

// Kind is the interface implemented by kind syntax nodes. Kinds
// appear as the declared kind of type-level bindings and poly
// parameters.
type Kind interface {
	Loc() token.Loc
	kind()
}

type KindBase struct {
	L token.Loc
}

func (k *KindBase) Loc() token.Loc { return k.L }
func (k *KindBase) kind()          {}

// BasicKind is the kind written @, level 1, or its typeof-lifts at
// higher levels.
type BasicKind struct {
	KindBase
	Level int
}

// PolyKind is the kind of a type-level function, written <k>k.
type PolyKind struct {
	KindBase
	Arg Kind
	Ret Kind
}

// NewBasicKind creates a basic kind node at the given level.
func NewBasicKind(loc token.Loc, level int) *BasicKind {
	return &BasicKind{KindBase: KindBase{L: loc}, Level: level}
}

// NewPolyKind creates a poly kind node.
func NewPolyKind(loc token.Loc, arg, ret Kind) *PolyKind {
	return &PolyKind{KindBase: KindBase{L: loc}, Arg: arg, Ret: ret}
}
