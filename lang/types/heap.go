package types

import (
	"github.com/dolthub/swiss"

	"github.com/mna/fble/lang/token"
)

// Heap allocates type nodes and assigns each a unique id. Ids key the
// visited sets that make traversal of cyclic type graphs terminate,
// and key the pair cache of the equality check.
//
// The reference implementation reference-counts types on an auxiliary
// graph heap; here the garbage collector owns the memory and the heap
// is reduced to id minting and traversal state.
type Heap struct {
	nextID uint64

	// pairs is scratch state for TypesEqual: the set of (a,b) id pairs
	// already assumed equal, so cyclic types compare in finite time.
	pairs *swiss.Map[uint64, struct{}]

	// transparent lists package paths whose opacity is suspended. The
	// type checker pushes a path here while checking an abstract cast
	// inside the declaring package.
	transparent []*token.ModulePath

	// substCache memoizes Subst results by (type, var, value) ids, so
	// normalizing the same poly application twice yields the same
	// nodes.
	substCache map[[3]uint64]Type
}

// PushTransparent suspends the opacity of the given package for
// subsequent equality checks. Calls nest; each must be matched by
// PopTransparent.
func (h *Heap) PushTransparent(path *token.ModulePath) {
	h.transparent = append(h.transparent, path)
}

// PopTransparent undoes the most recent PushTransparent.
func (h *Heap) PopTransparent() {
	h.transparent = h.transparent[:len(h.transparent)-1]
}

func (h *Heap) isTransparent(p *PackageType) bool {
	if !p.Opaque {
		return true
	}
	for _, path := range h.transparent {
		if token.PathsEqual(path, p.Path) {
			return true
		}
	}
	return false
}

// NewHeap creates an empty type heap.
func NewHeap() *Heap {
	return &Heap{
		nextID: 1,
		pairs:  swiss.NewMap[uint64, struct{}](16),
	}
}

func (h *Heap) base(loc token.Loc) typeBase {
	id := h.nextID
	h.nextID++
	return typeBase{loc: loc, id: id}
}

// NewDataType allocates a struct or union type.
func (h *Heap) NewDataType(loc token.Loc, kind DataTypeKind, fields []Field) *DataType {
	return &DataType{typeBase: h.base(loc), Kind: kind, Fields: fields}
}

// NewFuncType allocates a function type.
func (h *Heap) NewFuncType(loc token.Loc, arg, rtype Type) *FuncType {
	return &FuncType{typeBase: h.base(loc), Arg: arg, RType: rtype}
}

// NewPolyType allocates a polymorphic type.
func (h *Heap) NewPolyType(loc token.Loc, arg *VarType, body Type) *PolyType {
	return &PolyType{typeBase: h.base(loc), Arg: arg, Body: body}
}

// NewPolyApplyType allocates a poly application.
func (h *Heap) NewPolyApplyType(loc token.Loc, poly, arg Type) *PolyApplyType {
	return &PolyApplyType{typeBase: h.base(loc), Poly: poly, Arg: arg}
}

// NewPackageType allocates a package type.
func (h *Heap) NewPackageType(loc token.Loc, path *token.ModulePath, opaque bool) *PackageType {
	return &PackageType{typeBase: h.base(loc), Path: path, Opaque: opaque}
}

// NewAbstractType allocates an abstract type guarded by pkg.
func (h *Heap) NewAbstractType(loc token.Loc, pkg *PackageType, t Type) *AbstractType {
	return &AbstractType{typeBase: h.base(loc), Package: pkg, Type: t}
}

// NewTypeType allocates the type of a type value.
func (h *Heap) NewTypeType(loc token.Loc, t Type) *TypeType {
	return &TypeType{typeBase: h.base(loc), Type: t}
}

// NewVarType allocates an unassigned type variable with the given
// kind.
func (h *Heap) NewVarType(loc token.Loc, name token.Name, kind Kind) *VarType {
	return &VarType{typeBase: h.base(loc), Name: name, K: kind}
}

// AssignVarType assigns a value to a type variable, as happens at the
// end of a recursive type let. The assignment is rejected as vacuous
// if the value resolves, through any chain of assigned variables, back
// to the variable itself.
func (h *Heap) AssignVarType(v *VarType, value Type) bool {
	t := value
	for {
		vt, ok := t.(*VarType)
		if !ok {
			break
		}
		if vt == v {
			return false
		}
		if vt.Value == nil {
			break
		}
		t = vt.Value
	}
	v.Value = value
	return true
}
