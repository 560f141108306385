package ast

import "github.com/mna/fble/lang/token"

// Module is one loaded module of a program. A module supplies a value
// expression, a type expression, or both; when both are present the
// type checker verifies the value against the type.
type Module struct {
	Path  *token.ModulePath
	Deps  []*token.ModulePath
	Type  Expr // nil if the module has no separate type
	Value Expr // nil for type-only modules
}

// Program is a loaded program: modules in topological order, with the
// main module last. The loader guarantees every Dep of a module
// appears earlier in the list.
type Program struct {
	Modules []*Module
}

// Main returns the main module of the program.
func (p *Program) Main() *Module {
	return p.Modules[len(p.Modules)-1]
}
