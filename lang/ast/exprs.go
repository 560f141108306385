package ast

import "github.com/mna/fble/lang/token"

// DataTypeKind distinguishes struct types from union types.
type DataTypeKind int

const (
	StructKind DataTypeKind = iota
	UnionKind
)

// TaggedType is a (type, name) pair: a field of a data type or an
// argument declaration of a function.
type TaggedType struct {
	Type Expr
	Name token.Name
}

// TaggedExpr is a (name, expression) pair: a field of an implicit
// struct value, a struct copy override, or a union select branch.
type TaggedExpr struct {
	Name token.Name
	Expr Expr
}

// Binding is one name/expression pair of a let expression. Exactly one
// of Type and Kind is set: a binding with a declared type binds a
// value, a binding with a declared kind binds a type with an inferred
// VarType placeholder.
type Binding struct {
	Type Expr // declared type, or nil
	Kind Kind // declared kind, or nil
	Name token.Name
	Expr Expr
}

// Var is a reference to a variable in scope.
type Var struct {
	ExprBase
	Name token.Name
}

// Let is a (possibly recursive) sequence of bindings followed by a
// body. Every right-hand side sees all of the let's binders.
type Let struct {
	ExprBase
	Bindings []Binding
	Body     Expr
}

// DataType is struct or union type syntax: *(...) or +(...).
type DataType struct {
	ExprBase
	Kind   DataTypeKind
	Fields []TaggedType
}

// FuncType is function type syntax. Multiple argument types are
// surface sugar for a curried chain of single-argument functions.
type FuncType struct {
	ExprBase
	Args  []Expr
	RType Expr
}

// Typeof is the @<expr> form computing the type of an expression.
type Typeof struct {
	ExprBase
	Expr Expr
}

// PackageType is the package type syntax %(/a/b%). Opaque package
// types are the access-control gate for abstract types.
type PackageType struct {
	ExprBase
	Path   *token.ModulePath
	Opaque bool
}

// StructValueImplicitType is the @(name: expr, ...) form; the struct
// type is inferred from the field expressions.
type StructValueImplicitType struct {
	ExprBase
	Fields []TaggedExpr
}

// StructCopy is the .@(source, name: expr, ...) form: a copy of source
// with the named fields overridden.
type StructCopy struct {
	ExprBase
	Src    Expr
	Fields []TaggedExpr
}

// UnionValue constructs a union value of an explicitly named type.
type UnionValue struct {
	ExprBase
	Type  Expr
	Field token.Name
	Arg   Expr
}

// UnionSelect is the ?(condition; tag: expr, ...) form. Branches must
// appear in the declaration order of the union's fields; branches may
// be omitted only when a default is provided.
type UnionSelect struct {
	ExprBase
	Condition Expr
	Choices   []TaggedExpr
	Default   Expr // nil if no default branch
}

// DataAccess is field access, obj.field, on a struct or union value.
type DataAccess struct {
	ExprBase
	Obj   Expr
	Field token.Name
}

// FuncValue is a function literal. Multiple arguments are surface
// sugar for a curried chain of single-argument functions.
type FuncValue struct {
	ExprBase
	Args []TaggedType
	Body Expr
}

// PolyValue is the explicit polymorphic introduction <kind name> body.
type PolyValue struct {
	ExprBase
	Kind Kind
	Name token.Name
	Body Expr
}

// PolyApply instantiates a polymorphic value with a type argument.
type PolyApply struct {
	ExprBase
	Poly Expr
	Arg  Expr
}

// Apply is function application f(a, b, ...). Depending on the type of
// Func this elaborates to function application, implicit struct
// construction, or abstract type creation.
type Apply struct {
	ExprBase
	Func Expr
	Args []Expr
}

// List is the f[a, b, c] form, passing a literal list to a function
// accepting the canonical list type.
type List struct {
	ExprBase
	Func  Expr
	Elems []Expr
}

// Literal is the f|word| form; the word is tokenized against the
// nullary constructors of the function's letter type.
type Literal struct {
	ExprBase
	Func    Expr
	Word    string
	WordLoc token.Loc
}

// AbstractCast casts between an abstract type of a package and its
// underlying type; only allowed inside the declaring package.
type AbstractCast struct {
	ExprBase
	Package Expr
	Target  Expr
	Value   Expr
}

// AbstractAccess projects the underlying value out of an abstract
// value; only allowed inside the declaring package.
type AbstractAccess struct {
	ExprBase
	Value Expr
}

// ModulePathExpr references the value of another module by path.
type ModulePathExpr struct {
	ExprBase
	Path *token.ModulePath
}

// NewVar is a convenience constructor used by tests and by loaders
// that synthesize small expressions.
func NewVar(loc token.Loc, name token.Name) *Var {
	return &Var{ExprBase: ExprBase{L: loc}, Name: name}
}
