package types

import (
	"github.com/dolthub/swiss"

	"github.com/mna/fble/lang/token"
)

// TypesEqual reports whether two types are the same type. Both sides
// are normalized first; polys compare up to alpha-renaming; locations
// never matter. Cyclic types terminate through a visited-pair set:
// a pair of types assumed equal while comparing their bodies is equal.
//
// An abstract type of a non-opaque package is transparent and equal to
// its underlying type. An opaque abstract type is equal only to itself
// (same package path, same underlying type), unless its package has
// been made transparent with PushTransparent, which the type checker
// does while checking casts inside the declaring package.
func (h *Heap) TypesEqual(a, b Type) bool {
	h.pairs = swiss.NewMap[uint64, struct{}](16)
	return h.equal(a, b)
}

func (h *Heap) equal(a, b Type) bool {
	a = h.Normal(a)
	b = h.Normal(b)
	if a == b {
		return true
	}

	key := [2]uint64{a.typeID(), b.typeID()}
	if _, ok := h.pairs.Get(pairKey(key)); ok {
		return true
	}
	h.pairs.Put(pairKey(key), struct{}{})

	// Transparent abstract types unwrap to their underlying type.
	if at, ok := a.(*AbstractType); ok && h.isTransparent(at.Package) {
		if _, ok := b.(*AbstractType); !ok {
			return h.equal(at.Type, b)
		}
	}
	if bt, ok := b.(*AbstractType); ok && h.isTransparent(bt.Package) {
		if _, ok := a.(*AbstractType); !ok {
			return h.equal(a, bt.Type)
		}
	}

	switch a := a.(type) {
	case *DataType:
		b, ok := b.(*DataType)
		if !ok || a.Kind != b.Kind || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !token.NamesEqual(a.Fields[i].Name, b.Fields[i].Name) {
				return false
			}
			if !h.equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true

	case *FuncType:
		b, ok := b.(*FuncType)
		return ok && h.equal(a.Arg, b.Arg) && h.equal(a.RType, b.RType)

	case *PolyType:
		b, ok := b.(*PolyType)
		if !ok || !KindsEqual(h.GetKind(a.Arg), h.GetKind(b.Arg)) {
			return false
		}
		return h.equal(a.Body, h.Subst(b.Body, b.Arg, a.Arg))

	case *PolyApplyType:
		b, ok := b.(*PolyApplyType)
		return ok && h.equal(a.Poly, b.Poly) && h.equal(a.Arg, b.Arg)

	case *PackageType:
		b, ok := b.(*PackageType)
		return ok && token.PathsEqual(a.Path, b.Path)

	case *AbstractType:
		b, ok := b.(*AbstractType)
		return ok && token.PathsEqual(a.Package.Path, b.Package.Path) &&
			h.equal(a.Type, b.Type)

	case *TypeType:
		b, ok := b.(*TypeType)
		return ok && h.equal(a.Type, b.Type)

	case *VarType:
		// Normalized var types are unassigned; distinct variables are
		// distinct types.
		return false
	}
	return false
}

// pairKey folds a pair of node ids into one map key. Ids are minted
// sequentially from 1; the 32-bit split is not reachable in practice.
func pairKey(k [2]uint64) uint64 {
	return k[0]<<32 | (k[1] & 0xffffffff)
}
