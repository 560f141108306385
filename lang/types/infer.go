package types

// Depoly peels outer poly binders off t, registering a fresh
// unassigned variable for each in vars and returning the body with
// the binders replaced by those variables. The variables are later
// filled in by TypeInfer at the application site.
func (h *Heap) Depoly(t Type, vars *[]*VarType) Type {
	t = h.Normal(t)
	for {
		pt, ok := t.(*PolyType)
		if !ok {
			return t
		}
		v := h.NewVarType(pt.Arg.Loc(), pt.Arg.Name, pt.Arg.K)
		*vars = append(*vars, v)
		t = h.Normal(h.Subst(pt.Body, pt.Arg, v))
	}
}

// TypeInfer unifies actual against expected, assigning a value to each
// unassigned variable of vars encountered in expected. A variable that
// already has a value must be consistent with the new constraint.
// Returns false if unification fails; variables assigned before the
// failure keep their assignments, which the caller reports as the
// partial solution.
func (h *Heap) TypeInfer(vars []*VarType, expected, actual Type) bool {
	inf := &inferrer{h: h, vars: vars, seen: make(map[[2]uint64]bool)}
	return inf.unify(expected, actual)
}

type inferrer struct {
	h    *Heap
	vars []*VarType
	seen map[[2]uint64]bool
}

func (in *inferrer) isVar(t Type) (*VarType, bool) {
	vt, ok := t.(*VarType)
	if !ok {
		return nil, false
	}
	for _, v := range in.vars {
		if v == vt {
			return vt, true
		}
	}
	return nil, false
}

func (in *inferrer) unify(expected, actual Type) bool {
	e := in.h.Normal(expected)
	if v, ok := in.isVar(e); ok {
		if v.Value == nil {
			v.Value = actual
			return true
		}
		return in.h.TypesEqual(v.Value, actual)
	}

	a := in.h.Normal(actual)
	key := [2]uint64{e.typeID(), a.typeID()}
	if in.seen[key] {
		return true
	}
	in.seen[key] = true

	switch e := e.(type) {
	case *DataType:
		a, ok := a.(*DataType)
		if !ok || e.Kind != a.Kind || len(e.Fields) != len(a.Fields) {
			return false
		}
		for i := range e.Fields {
			if !in.unify(e.Fields[i].Type, a.Fields[i].Type) {
				return false
			}
		}
		return true
	case *FuncType:
		a, ok := a.(*FuncType)
		return ok && in.unify(e.Arg, a.Arg) && in.unify(e.RType, a.RType)
	case *TypeType:
		a, ok := a.(*TypeType)
		return ok && in.unify(e.Type, a.Type)
	case *AbstractType:
		a, ok := a.(*AbstractType)
		return ok && in.unify(e.Type, a.Type)
	case *PolyType:
		a, ok := a.(*PolyType)
		if !ok {
			return false
		}
		return in.unify(e.Body, in.h.Subst(a.Body, a.Arg, e.Arg))
	case *PolyApplyType:
		a, ok := a.(*PolyApplyType)
		return ok && in.unify(e.Poly, a.Poly) && in.unify(e.Arg, a.Arg)
	default:
		// No variables of interest below this point; fall back to plain
		// equality.
		return in.h.TypesEqual(e, a)
	}
}
