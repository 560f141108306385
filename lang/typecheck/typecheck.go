// Package typecheck implements the type checker of the fble language:
// it turns the untyped AST of a loaded program into the typed AST
// consumed by the compiler, inferring type arguments at polymorphic
// application sites and enforcing the namespace and package opacity
// rules.
//
// All failures are reported as positioned diagnostics on an error
// list; a failed expression propagates as a (nil, nil) result. The
// checker never panics on bad input programs.
package typecheck

import (
	"github.com/mna/fble/lang/ast"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
	"github.com/mna/fble/lang/types"
)

// Module is the result of type checking one module of a program.
type Module struct {
	Path *token.ModulePath
	Deps []*token.ModulePath

	// Tc is the body of the module, with the module's dependencies
	// bound as arguments 0..len(Deps)-1. Nil for type-only modules.
	Tc tc.Tc

	// Type is the type the module contributes to the scope of modules
	// that depend on it.
	Type types.Type
}

// CheckProgram type checks a loaded program module by module, in the
// program's topological order. Dependencies contribute their type, not
// their value, to the scope of dependent modules. The returned
// warnings never fail the check; a non-nil error is a token.ErrorList
// with at least one entry, and the module results are nil.
func CheckProgram(th *types.Heap, prog *ast.Program) ([]*Module, token.ErrorList, error) {
	c := &checker{th: th}
	byPath := make(map[string]*Module)

	var mods []*Module
	for _, m := range prog.Modules {
		c.module = m.Path
		mod := &Module{Path: m.Path}

		// Value dependencies bind as the module function's arguments;
		// type-only dependencies contribute a type-level name with no
		// runtime value. Deps records the runtime (value) deps only.
		s := newScope(nil)
		for _, dep := range m.Deps {
			d, ok := byPath[dep.String()]
			if !ok || d.Type == nil {
				token.Errorf(&c.errs, m.Path.Loc, "module %s depends on failed module %s", m.Path, dep)
				continue
			}
			name := token.Name{Name: dep.String(), Space: token.NormalNamespace, Loc: dep.Loc}
			if d.Tc == nil {
				s.pushLocal(name, d.Type, true)
				continue
			}
			s.pushArg(name, d.Type)
			mod.Deps = append(mod.Deps, dep)
		}

		var declared types.Type
		if m.Type != nil {
			declared = c.checkType(s, m.Type)
		}
		if m.Value != nil {
			t, body := c.checkExpr(s, m.Value, false)
			if body != nil && declared != nil && !th.TypesEqual(declared, t) {
				token.Errorf(&c.errs, m.Value.Loc(),
					"module %s does not match its declared type: expected %s, but found %s",
					m.Path, th.String(declared), th.String(t))
			}
			mod.Tc = body
			mod.Type = t
			if declared != nil {
				mod.Type = declared
			}
		} else {
			mod.Type = declared
		}

		byPath[m.Path.String()] = mod
		mods = append(mods, mod)
	}

	if len(c.errs) > 0 {
		c.errs.Sort()
		return nil, c.warns, c.errs
	}
	return mods, c.warns, nil
}

// CheckModule type checks a program and returns the result for the
// main module.
func CheckModule(th *types.Heap, prog *ast.Program) (*Module, token.ErrorList, error) {
	mods, warns, err := CheckProgram(th, prog)
	if err != nil {
		return nil, warns, err
	}
	return mods[len(mods)-1], warns, nil
}

type checker struct {
	th     *types.Heap
	errs   token.ErrorList
	warns  token.ErrorList
	module *token.ModulePath
}

func (c *checker) errorf(loc token.Loc, format string, args ...interface{}) {
	token.Errorf(&c.errs, loc, format, args...)
}

func (c *checker) warnf(loc token.Loc, format string, args ...interface{}) {
	token.Errorf(&c.warns, loc, "warning: "+format, args...)
}

// checkType evaluates an expression in type position and returns the
// type it denotes, or nil after reporting an error. Lookups under a
// type position are phantom: they do not mark variables used and do
// not capture.
func (c *checker) checkType(s *scope, e ast.Expr) types.Type {
	t, body := c.checkExpr(s, e, true)
	if body == nil {
		return nil
	}
	v := c.th.ValueOfType(t)
	if v == nil {
		c.errorf(e.Loc(), "expected a type, but found something of type %s", c.th.String(t))
		return nil
	}
	return v
}

// kindOf converts kind syntax to a semantic kind.
func (c *checker) kindOf(k ast.Kind) types.Kind {
	switch k := k.(type) {
	case *ast.BasicKind:
		return &types.BasicKind{Level: k.Level}
	case *ast.PolyKind:
		return &types.PolyKind{Arg: c.kindOf(k.Arg), Ret: c.kindOf(k.Ret)}
	}
	return &types.BasicKind{Level: 1}
}

// inferArgs unifies each expected/actual pair and then verifies that
// every inference variable received an assignment, reporting the
// partial solution when one did not.
func (c *checker) inferArgs(loc token.Loc, vars []*types.VarType, expected, actual []types.Type) bool {
	ok := true
	for i := range expected {
		if expected[i] == nil || actual[i] == nil {
			ok = false
			continue
		}
		if !c.th.TypeInfer(vars, expected[i], actual[i]) {
			// Leave the detailed report to the caller's type comparison;
			// inference itself is best effort.
			ok = false
		}
	}
	for _, v := range vars {
		if v.Value == nil {
			c.errorf(loc, "unable to infer types for poly: %s not assigned%s",
				v.Name, partialAssignment(c.th, vars))
			return false
		}
	}
	return ok
}

func partialAssignment(th *types.Heap, vars []*types.VarType) string {
	s := ""
	for _, v := range vars {
		if v.Value != nil {
			s += ", " + v.Name.String() + " = " + th.String(v.Value)
		}
	}
	if s == "" {
		return ""
	}
	return " (partial assignment:" + s[1:] + ")"
}
