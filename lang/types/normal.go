package types

// Normal removes PolyApplyType nodes by substitution and resolves
// chains of assigned type variables. It does not unwrap poly binders
// and does not descend into data type fields; it only exposes the
// outermost concrete constructor.
func (h *Heap) Normal(t Type) Type {
	for {
		switch tt := t.(type) {
		case *VarType:
			if tt.Value == nil {
				return t
			}
			t = tt.Value
		case *PolyApplyType:
			poly := h.Normal(tt.Poly)
			pt, ok := poly.(*PolyType)
			if !ok {
				// The poly is an unassigned variable or otherwise abstract;
				// the application cannot reduce further.
				return tt
			}
			t = h.Subst(pt.Body, pt.Arg, tt.Arg)
		default:
			return t
		}
	}
}

// ValueOfType returns the type v such that t is the type of the type
// value v, or nil if t is not a type of types. The value of a poly
// over a type of types is the poly over the underlying type, so poly
// type expressions work in type position.
func (h *Heap) ValueOfType(t Type) Type {
	switch tt := h.Normal(t).(type) {
	case *TypeType:
		return tt.Type
	case *PolyType:
		body := h.ValueOfType(tt.Body)
		if body == nil {
			return nil
		}
		return h.NewPolyType(tt.Loc(), tt.Arg, body)
	}
	return nil
}

// GetKind computes the kind of a type.
func (h *Heap) GetKind(t Type) Kind {
	switch tt := t.(type) {
	case *DataType, *FuncType, *PackageType, *AbstractType:
		return &BasicKind{Level: 1}
	case *TypeType:
		return &BasicKind{Level: KindLevel(h.GetKind(tt.Type)) + 1}
	case *VarType:
		return tt.K
	case *PolyType:
		return &PolyKind{Arg: h.GetKind(tt.Arg), Ret: h.GetKind(tt.Body)}
	case *PolyApplyType:
		pk, ok := h.GetKind(tt.Poly).(*PolyKind)
		if !ok {
			return &BasicKind{Level: 1}
		}
		return pk.Ret
	}
	return &BasicKind{Level: 1}
}

// Subst replaces free occurrences of the variable v in t with val.
// Nodes that substitution leaves unchanged are returned as-is, and
// whole substitutions are memoized on the heap, so repeated
// normalization of a recursive poly application yields the same nodes
// and the equality check's visited-pair set can saturate.
func (h *Heap) Subst(t Type, v *VarType, val Type) Type {
	key := [3]uint64{t.typeID(), v.typeID(), val.typeID()}
	if r, ok := h.substCache[key]; ok {
		return r
	}
	s := &subster{h: h, v: v, val: val, memo: make(map[uint64]Type)}
	r := s.subst(t)
	if h.substCache == nil {
		h.substCache = make(map[[3]uint64]Type)
	}
	h.substCache[key] = r
	return r
}

type subster struct {
	h    *Heap
	v    *VarType
	val  Type
	memo map[uint64]Type
}

func (s *subster) subst(t Type) Type {
	if t == nil {
		return nil
	}
	if vt, ok := t.(*VarType); ok && vt == s.v {
		return s.val
	}
	if r, ok := s.memo[t.typeID()]; ok {
		return r
	}

	switch tt := t.(type) {
	case *DataType:
		nt := s.h.NewDataType(tt.Loc(), tt.Kind, make([]Field, len(tt.Fields)))
		// Register before descending: recursive fields reach this node
		// back through a VarType already in the memo table.
		s.memo[tt.typeID()] = nt
		changed := false
		for i, f := range tt.Fields {
			nt.Fields[i] = Field{Name: f.Name, Type: s.subst(f.Type)}
			if nt.Fields[i].Type != f.Type {
				changed = true
			}
		}
		if !changed {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nt
	case *FuncType:
		nt := s.h.NewFuncType(tt.Loc(), nil, nil)
		s.memo[tt.typeID()] = nt
		nt.Arg = s.subst(tt.Arg)
		nt.RType = s.subst(tt.RType)
		if nt.Arg == tt.Arg && nt.RType == tt.RType {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nt
	case *PolyType:
		if tt.Arg == s.v {
			// The binder shadows the substituted variable.
			return tt
		}
		nt := s.h.NewPolyType(tt.Loc(), tt.Arg, nil)
		s.memo[tt.typeID()] = nt
		nt.Body = s.subst(tt.Body)
		if nt.Body == tt.Body {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nt
	case *PolyApplyType:
		nt := s.h.NewPolyApplyType(tt.Loc(), nil, nil)
		s.memo[tt.typeID()] = nt
		nt.Poly = s.subst(tt.Poly)
		nt.Arg = s.subst(tt.Arg)
		if nt.Poly == tt.Poly && nt.Arg == tt.Arg {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nt
	case *AbstractType:
		nt := s.h.NewAbstractType(tt.Loc(), tt.Package, nil)
		s.memo[tt.typeID()] = nt
		nt.Type = s.subst(tt.Type)
		if nt.Type == tt.Type {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nt
	case *TypeType:
		nt := s.h.NewTypeType(tt.Loc(), nil)
		s.memo[tt.typeID()] = nt
		nt.Type = s.subst(tt.Type)
		if nt.Type == tt.Type {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nt
	case *VarType:
		if tt.Value == nil {
			return tt
		}
		nv := s.h.NewVarType(tt.Loc(), tt.Name, tt.K)
		s.memo[tt.typeID()] = nv
		nv.Value = s.subst(tt.Value)
		if nv.Value == tt.Value {
			s.memo[tt.typeID()] = tt
			return tt
		}
		return nv
	case *PackageType:
		return tt
	}
	return t
}
