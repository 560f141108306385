package typecheck

import (
	"github.com/dolthub/swiss"

	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
	"github.com/mna/fble/lang/types"
)

// binding is one variable visible in a scope: a function argument, a
// let-bound local, or a static captured from an enclosing function.
type binding struct {
	name token.Name
	typ  types.Type
	v    tc.Var

	// typeOnly bindings carry a type but no runtime value; references
	// to them synthesize a TypeValue node.
	typeOnly bool

	// used records a runtime use: it drives capture and the recursive
	// flag of lets. referenced also counts phantom (type position)
	// lookups and drives the unused-variable warning.
	used       bool
	referenced bool
}

// scope is the register file of one function under construction:
// captured statics, arguments, and let-bound locals. Lets do not open
// scopes of their own; they push and pop locals on the enclosing
// function scope.
type scope struct {
	parent *scope

	// names maps a rendered name (with its namespace marker) to the
	// stack of bindings shadowing each other under that name.
	names *swiss.Map[string, []*binding]

	statics []*binding
	// captured[i] is the variable in the parent scope that supplies the
	// value of statics[i] when the function value is allocated.
	captured []tc.Var

	args    []*binding
	nlocals int
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		names:  swiss.NewMap[string, []*binding](16),
	}
}

func (s *scope) pushName(b *binding) {
	key := b.name.String()
	stack, _ := s.names.Get(key)
	s.names.Put(key, append(stack, b))
}

func (s *scope) popName(b *binding) {
	key := b.name.String()
	stack, _ := s.names.Get(key)
	s.names.Put(key, stack[:len(stack)-1])
}

// pushArg binds a function argument.
func (s *scope) pushArg(name token.Name, typ types.Type) *binding {
	b := &binding{name: name, typ: typ, v: tc.Var{Section: tc.ArgVar, Index: len(s.args)}}
	s.args = append(s.args, b)
	s.pushName(b)
	return b
}

// pushLocal binds a let-bound local and assigns it the next local
// index.
func (s *scope) pushLocal(name token.Name, typ types.Type, typeOnly bool) *binding {
	b := &binding{
		name:     name,
		typ:      typ,
		v:        tc.Var{Section: tc.LocalVar, Index: s.nlocals},
		typeOnly: typeOnly,
	}
	if !typeOnly {
		s.nlocals++
	}
	s.pushName(b)
	return b
}

// popLocal removes a local pushed by pushLocal.
func (s *scope) popLocal(b *binding) {
	s.popName(b)
	if !b.typeOnly {
		s.nlocals--
	}
}

// lookup finds the binding for name, capturing across function
// boundaries as needed: a variable found in an enclosing scope is
// added as a static of every crossed scope, so the compiler knows
// which values each function value must close over.
//
// Phantom lookups resolve the name but neither mark it used nor
// capture it; they are used for type positions, where no runtime value
// is needed.
func (s *scope) lookup(name token.Name, phantom bool) *binding {
	key := name.String()
	if stack, ok := s.names.Get(key); ok && len(stack) > 0 {
		b := stack[len(stack)-1]
		b.referenced = true
		if !phantom {
			b.used = true
		}
		return b
	}
	if s.parent == nil {
		return nil
	}
	b := s.parent.lookup(name, phantom)
	if b == nil {
		return nil
	}
	if phantom || b.typeOnly {
		return b
	}

	// Capture: allocate a static in this scope sourced from the
	// variable as seen in the parent.
	cap := &binding{
		name:       b.name,
		typ:        b.typ,
		v:          tc.Var{Section: tc.StaticVar, Index: len(s.statics)},
		used:       true,
		referenced: true,
	}
	s.statics = append(s.statics, cap)
	s.captured = append(s.captured, b.v)
	s.pushName(cap)
	return cap
}
