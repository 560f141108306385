package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/fble/lang/token"
)

func name(s string) token.Name {
	return token.Name{Name: s, Space: token.NormalNamespace}
}

func tname(s string) token.Name {
	return token.Name{Name: s, Space: token.TypeNamespace}
}

// unit is *().
func unit(h *Heap) *DataType {
	return h.NewDataType(token.Loc{}, StructKind, nil)
}

// boolT is +(*() True, *() False).
func boolT(h *Heap) *DataType {
	return h.NewDataType(token.Loc{}, UnionKind, []Field{
		{Name: name("True"), Type: unit(h)},
		{Name: name("False"), Type: unit(h)},
	})
}

// listT builds the recursive type L@ = +(*(T, L@) cons, *() nil).
func listT(h *Heap, elem Type) Type {
	l := h.NewVarType(token.Loc{}, tname("L"), &BasicKind{Level: 1})
	cons := h.NewDataType(token.Loc{}, StructKind, []Field{
		{Name: name("head"), Type: elem},
		{Name: name("tail"), Type: l},
	})
	dt := h.NewDataType(token.Loc{}, UnionKind, []Field{
		{Name: name("cons"), Type: cons},
		{Name: name("nil"), Type: unit(h)},
	})
	h.AssignVarType(l, dt)
	return l
}

func TestKindsEqual(t *testing.T) {
	assert.True(t, KindsEqual(&BasicKind{Level: 1}, &BasicKind{Level: 1}))
	assert.False(t, KindsEqual(&BasicKind{Level: 1}, &BasicKind{Level: 2}))
	assert.True(t, KindsEqual(
		&PolyKind{Arg: &BasicKind{Level: 1}, Ret: &BasicKind{Level: 1}},
		&PolyKind{Arg: &BasicKind{Level: 1}, Ret: &BasicKind{Level: 1}}))
	assert.False(t, KindsEqual(
		&PolyKind{Arg: &BasicKind{Level: 1}, Ret: &BasicKind{Level: 1}},
		&BasicKind{Level: 1}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "@", KindString(&BasicKind{Level: 1}))
	assert.Equal(t, "<@>@", KindString(&PolyKind{Arg: &BasicKind{Level: 1}, Ret: &BasicKind{Level: 1}}))
}

func TestTypesEqualBasic(t *testing.T) {
	h := NewHeap()
	a := boolT(h)
	b := boolT(h)
	c := unit(h)

	// reflexivity, symmetry, transitivity over distinct nodes
	assert.True(t, h.TypesEqual(a, a))
	assert.True(t, h.TypesEqual(a, b))
	assert.True(t, h.TypesEqual(b, a))
	assert.False(t, h.TypesEqual(a, c))

	f1 := h.NewFuncType(token.Loc{}, a, c)
	f2 := h.NewFuncType(token.Loc{}, b, unit(h))
	assert.True(t, h.TypesEqual(f1, f2))
	assert.False(t, h.TypesEqual(f1, a))
}

func TestTypesEqualFieldNames(t *testing.T) {
	h := NewHeap()
	a := h.NewDataType(token.Loc{}, StructKind, []Field{{Name: name("x"), Type: unit(h)}})
	b := h.NewDataType(token.Loc{}, StructKind, []Field{{Name: name("y"), Type: unit(h)}})
	assert.False(t, h.TypesEqual(a, b))
}

func TestTypesEqualCyclic(t *testing.T) {
	h := NewHeap()
	l1 := listT(h, boolT(h))
	l2 := listT(h, boolT(h))
	assert.True(t, h.TypesEqual(l1, l2))
	assert.False(t, h.TypesEqual(l1, listT(h, unit(h))))
}

func TestPolyAlphaEquivalence(t *testing.T) {
	h := NewHeap()
	mk := func(n string) Type {
		v := h.NewVarType(token.Loc{}, tname(n), &BasicKind{Level: 1})
		return h.NewPolyType(token.Loc{}, v, h.NewFuncType(token.Loc{}, v, v))
	}
	assert.True(t, h.TypesEqual(mk("T"), mk("U")))
}

func TestNormalPolyApply(t *testing.T) {
	h := NewHeap()
	v := h.NewVarType(token.Loc{}, tname("T"), &BasicKind{Level: 1})
	id := h.NewPolyType(token.Loc{}, v, h.NewFuncType(token.Loc{}, v, v))
	b := boolT(h)
	app := h.NewPolyApplyType(token.Loc{}, id, b)

	ft, ok := h.Normal(app).(*FuncType)
	require.True(t, ok)
	assert.True(t, h.TypesEqual(ft.Arg, b))
	assert.True(t, h.TypesEqual(ft.RType, b))
}

func TestValueOfType(t *testing.T) {
	h := NewHeap()
	b := boolT(h)
	tt := h.NewTypeType(token.Loc{}, b)
	assert.Equal(t, Type(b), h.ValueOfType(tt))
	assert.Nil(t, h.ValueOfType(b))
}

func TestGetKind(t *testing.T) {
	h := NewHeap()
	b := boolT(h)
	assert.Equal(t, 1, KindLevel(h.GetKind(b)))
	assert.Equal(t, 2, KindLevel(h.GetKind(h.NewTypeType(token.Loc{}, b))))

	v := h.NewVarType(token.Loc{}, tname("T"), &BasicKind{Level: 1})
	poly := h.NewPolyType(token.Loc{}, v, h.NewFuncType(token.Loc{}, v, v))
	pk, ok := h.GetKind(poly).(*PolyKind)
	require.True(t, ok)
	assert.Equal(t, 1, KindLevel(pk.Arg))
}

func TestAssignVarTypeVacuous(t *testing.T) {
	h := NewHeap()
	v := h.NewVarType(token.Loc{}, tname("X"), &BasicKind{Level: 1})
	assert.False(t, h.AssignVarType(v, v), "direct self assignment is vacuous")

	a := h.NewVarType(token.Loc{}, tname("A"), &BasicKind{Level: 1})
	b := h.NewVarType(token.Loc{}, tname("B"), &BasicKind{Level: 1})
	require.True(t, h.AssignVarType(a, b))
	assert.False(t, h.AssignVarType(b, a), "assignment through a chain back to itself is vacuous")

	c := h.NewVarType(token.Loc{}, tname("C"), &BasicKind{Level: 1})
	assert.True(t, h.AssignVarType(c, boolT(h)))
}

func TestDepolyAndInfer(t *testing.T) {
	h := NewHeap()
	v := h.NewVarType(token.Loc{}, tname("T"), &BasicKind{Level: 1})
	id := h.NewPolyType(token.Loc{}, v, h.NewFuncType(token.Loc{}, v, v))

	var vars []*VarType
	d := h.Depoly(id, &vars)
	require.Len(t, vars, 1)
	ft, ok := d.(*FuncType)
	require.True(t, ok)

	b := boolT(h)
	require.True(t, h.TypeInfer(vars, ft.Arg, b))
	require.NotNil(t, vars[0].Value)
	assert.True(t, h.TypesEqual(vars[0].Value, b))
	assert.True(t, h.TypesEqual(ft.RType, b), "assigned vars resolve through normalization")

	// A conflicting second constraint fails.
	assert.False(t, h.TypeInfer(vars, ft.Arg, unit(h)))
}

func TestInferThroughStructure(t *testing.T) {
	h := NewHeap()
	v := h.NewVarType(token.Loc{}, tname("T"), &BasicKind{Level: 1})
	var vars []*VarType
	vars = append(vars, v)

	expected := h.NewFuncType(token.Loc{}, v, unit(h))
	actual := h.NewFuncType(token.Loc{}, boolT(h), unit(h))
	require.True(t, h.TypeInfer(vars, expected, actual))
	assert.True(t, h.TypesEqual(v.Value, boolT(h)))
}

func TestAbstractOpacity(t *testing.T) {
	h := NewHeap()
	secret, err := token.ParseModulePath("/Secret%")
	require.NoError(t, err)

	pkg := h.NewPackageType(token.Loc{}, secret, true)
	b := boolT(h)
	abs := h.NewAbstractType(token.Loc{}, pkg, b)

	assert.False(t, h.TypesEqual(abs, b), "opaque abstract type does not unify with its underlying type")
	assert.True(t, h.TypesEqual(abs, h.NewAbstractType(token.Loc{}, pkg, boolT(h))))

	h.PushTransparent(secret)
	assert.True(t, h.TypesEqual(abs, b), "transparent inside the declaring package")
	h.PopTransparent()
	assert.False(t, h.TypesEqual(abs, b))

	clear := h.NewPackageType(token.Loc{}, secret, false)
	assert.True(t, h.TypesEqual(h.NewAbstractType(token.Loc{}, clear, b), b),
		"non-opaque packages are transparent")
}

func TestPackageTypeEquality(t *testing.T) {
	h := NewHeap()
	a, err := token.ParseModulePath("/A%")
	require.NoError(t, err)
	b, err := token.ParseModulePath("/B%")
	require.NoError(t, err)

	assert.True(t, h.TypesEqual(h.NewPackageType(token.Loc{}, a, true), h.NewPackageType(token.Loc{}, a, true)))
	assert.False(t, h.TypesEqual(h.NewPackageType(token.Loc{}, a, true), h.NewPackageType(token.Loc{}, b, true)))
}

func TestTypeString(t *testing.T) {
	h := NewHeap()
	assert.Equal(t, "*()", h.String(unit(h)))
	assert.Equal(t, "+(*() True, *() False)", h.String(boolT(h)))
	ft := h.NewFuncType(token.Loc{}, unit(h), unit(h))
	assert.Equal(t, "(*()) { *(); }", h.String(ft))
}
