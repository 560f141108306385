package typecheck_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/fble/lang/ast"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
	"github.com/mna/fble/lang/typecheck"
	"github.com/mna/fble/lang/types"
)

var line int

func loc() token.Loc {
	line++
	return token.Loc{File: "Test.fble", Line: line, Col: 1}
}

func nm(s string) token.Name {
	return token.Name{Name: s, Space: token.NormalNamespace, Loc: loc()}
}

func tnm(s string) token.Name {
	return token.Name{Name: s, Space: token.TypeNamespace, Loc: loc()}
}

func v(s string) ast.Expr  { return ast.NewVar(loc(), nm(s)) }
func tv(s string) ast.Expr { return ast.NewVar(loc(), tnm(s)) }

func unitT() ast.Expr {
	return &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind}
}

func boolT() ast.Expr {
	return &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: unitT(), Name: nm("True")},
		{Type: unitT(), Name: nm("False")},
	}}
}

func unitV() ast.Expr {
	return &ast.StructValueImplicitType{ExprBase: ast.ExprBase{L: loc()}}
}

func trueV() ast.Expr {
	return &ast.UnionValue{ExprBase: ast.ExprBase{L: loc()}, Type: boolT(), Field: nm("True"), Arg: unitV()}
}

func mainModule(e ast.Expr) *ast.Program {
	p, _ := token.ParseModulePath("/Main%")
	return &ast.Program{Modules: []*ast.Module{{Path: p, Value: e}}}
}

func check(t *testing.T, e ast.Expr) (*typecheck.Module, token.ErrorList, error) {
	t.Helper()
	return typecheck.CheckModule(types.NewHeap(), mainModule(e))
}

func requireErr(t *testing.T, e ast.Expr, want string) {
	t.Helper()
	_, _, err := check(t, e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), want)
}

func TestUnitValue(t *testing.T) {
	m, warns, err := check(t, unitV())
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.NotNil(t, m.Tc)
	_, ok := m.Tc.(*tc.StructValueTc)
	assert.True(t, ok)
}

func TestUnionValue(t *testing.T) {
	m, _, err := check(t, trueV())
	require.NoError(t, err)
	uv, ok := m.Tc.(*tc.UnionValueTc)
	require.True(t, ok)
	assert.Equal(t, 0, uv.Tag)
}

func TestUndefinedVariable(t *testing.T) {
	requireErr(t, v("nope"), "variable 'nope' not defined")
}

func TestDuplicateFieldName(t *testing.T) {
	e := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind, Fields: []ast.TaggedType{
		{Type: unitT(), Name: nm("x")},
		{Type: unitT(), Name: nm("x")},
	}}
	requireErr(t, e, "duplicate field name 'x'")
}

func TestLetAndVar(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: boolT(), Name: nm("b"), Expr: trueV()},
	}, Body: v("b")}
	m, warns, err := check(t, e)
	require.NoError(t, err)
	assert.Empty(t, warns)

	let, ok := m.Tc.(*tc.LetTc)
	require.True(t, ok)
	assert.False(t, let.Recursive)
	require.Len(t, let.Bindings, 1)
	vr, ok := let.Body.(*tc.VarTc)
	require.True(t, ok)
	assert.Equal(t, tc.Var{Section: tc.LocalVar, Index: 0}, vr.Var)
}

func TestLetTypeMismatch(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: unitT(), Name: nm("b"), Expr: trueV()},
	}, Body: v("b")}
	requireErr(t, e, "expected type *()")
}

func TestLetWrongNamespace(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: boolT(), Name: tnm("b"), Expr: trueV()},
	}, Body: tv("b")}
	requireErr(t, e, "a value binding must use the normal namespace")
}

func TestUnusedVariableWarning(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: boolT(), Name: nm("unused"), Expr: trueV()},
	}, Body: unitV()}
	_, warns, err := check(t, e)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Error(), "variable 'unused' defined but not used")
}

func TestVacuousTypeLet(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("X"), Expr: tv("X")},
	}, Body: unitV()}
	requireErr(t, e, "the type of 'X@' is vacuous")
}

func TestRecursiveTypeLet(t *testing.T) {
	// L@ = +(*(Bool@?, L@) cons, *() nil) using unit for the head.
	listT := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind, Fields: []ast.TaggedType{
			{Type: unitT(), Name: nm("head")},
			{Type: tv("L"), Name: nm("tail")},
		}}, Name: nm("cons")},
		{Type: unitT(), Name: nm("nil")},
	}}
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("L"), Expr: listT},
	}, Body: &ast.UnionValue{ExprBase: ast.ExprBase{L: loc()}, Type: tv("L"), Field: nm("nil"), Arg: unitV()}}

	m, _, err := check(t, e)
	require.NoError(t, err)
	uv, ok := m.Tc.(*tc.UnionValueTc)
	require.True(t, ok)
	assert.Equal(t, 1, uv.Tag)
}

// identityPoly is <@ T@>(T@ x) { x; } with its declared poly type.
func identityPoly() ast.Binding {
	declared := &ast.PolyValue{
		ExprBase: ast.ExprBase{L: loc()},
		Kind:     ast.NewBasicKind(loc(), 1),
		Name:     tnm("T"),
		Body:     &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{tv("T")}, RType: tv("T")},
	}
	value := &ast.PolyValue{
		ExprBase: ast.ExprBase{L: loc()},
		Kind:     ast.NewBasicKind(loc(), 1),
		Name:     tnm("T"),
		Body: &ast.FuncValue{
			ExprBase: ast.ExprBase{L: loc()},
			Args:     []ast.TaggedType{{Type: tv("T"), Name: nm("x")}},
			Body:     v("x"),
		},
	}
	return ast.Binding{Type: declared, Name: nm("Id"), Expr: value}
}

func TestPolyIdentityExplicitApply(t *testing.T) {
	// Id<Bool@>(True)
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{identityPoly()}, Body: &ast.Apply{
		ExprBase: ast.ExprBase{L: loc()},
		Func:     &ast.PolyApply{ExprBase: ast.ExprBase{L: loc()}, Poly: v("Id"), Arg: boolT()},
		Args:     []ast.Expr{trueV()},
	}}
	m, _, err := check(t, e)
	require.NoError(t, err)
	let := m.Tc.(*tc.LetTc)
	_, ok := let.Body.(*tc.FuncApplyTc)
	assert.True(t, ok)
}

func TestPolyIdentityInferredApply(t *testing.T) {
	// Id(True) with the type argument inferred.
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{identityPoly()}, Body: &ast.Apply{
		ExprBase: ast.ExprBase{L: loc()},
		Func:     v("Id"),
		Args:     []ast.Expr{trueV()},
	}}
	_, _, err := check(t, e)
	require.NoError(t, err)
}

func TestApplyNonFunction(t *testing.T) {
	e := &ast.Apply{ExprBase: ast.ExprBase{L: loc()}, Func: unitV(), Args: []ast.Expr{unitV()}}
	requireErr(t, e, "expected a function")
}

func TestImplicitStructConstruction(t *testing.T) {
	// (*(Bool@ b) type)(True)
	st := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind, Fields: []ast.TaggedType{
		{Type: boolT(), Name: nm("b")},
	}}
	e := &ast.Apply{ExprBase: ast.ExprBase{L: loc()}, Func: st, Args: []ast.Expr{trueV()}}
	m, _, err := check(t, e)
	require.NoError(t, err)
	sv, ok := m.Tc.(*tc.StructValueTc)
	require.True(t, ok)
	assert.Len(t, sv.Fields, 1)
}

func TestUnionSelect(t *testing.T) {
	e := &ast.UnionSelect{
		ExprBase:  ast.ExprBase{L: loc()},
		Condition: trueV(),
		Choices: []ast.TaggedExpr{
			{Name: nm("True"), Expr: unitV()},
			{Name: nm("False"), Expr: unitV()},
		},
	}
	m, _, err := check(t, e)
	require.NoError(t, err)
	sel, ok := m.Tc.(*tc.UnionSelectTc)
	require.True(t, ok)
	assert.Equal(t, 2, sel.NumTags)
	assert.Len(t, sel.Choices, 2)
	assert.Same(t, sel.Choices[1].Branch.Tc, sel.Default.Tc,
		"default synthesized from the last branch shares its Tc")
}

func TestUnionSelectMissingBranch(t *testing.T) {
	e := &ast.UnionSelect{
		ExprBase:  ast.ExprBase{L: loc()},
		Condition: trueV(),
		Choices:   []ast.TaggedExpr{{Name: nm("True"), Expr: unitV()}},
	}
	requireErr(t, e, "missing branch for 'False'")
}

func TestUnionSelectOutOfOrder(t *testing.T) {
	e := &ast.UnionSelect{
		ExprBase:  ast.ExprBase{L: loc()},
		Condition: trueV(),
		Choices: []ast.TaggedExpr{
			{Name: nm("False"), Expr: unitV()},
			{Name: nm("True"), Expr: unitV()},
		},
	}
	requireErr(t, e, "out of declaration order")
}

func TestUnionSelectDefaultOnly(t *testing.T) {
	e := &ast.UnionSelect{
		ExprBase:  ast.ExprBase{L: loc()},
		Condition: trueV(),
		Default:   unitV(),
	}
	m, _, err := check(t, e)
	require.NoError(t, err)
	sel := m.Tc.(*tc.UnionSelectTc)
	assert.Empty(t, sel.Choices)
	require.NotNil(t, sel.Default.Tc)
}

func TestStructCopy(t *testing.T) {
	// src = @(a: True, b: unit); copy with b overridden.
	src := &ast.StructValueImplicitType{ExprBase: ast.ExprBase{L: loc()}, Fields: []ast.TaggedExpr{
		{Name: nm("a"), Expr: trueV()},
		{Name: nm("b"), Expr: unitV()},
	}}
	e := &ast.StructCopy{ExprBase: ast.ExprBase{L: loc()}, Src: src, Fields: []ast.TaggedExpr{
		{Name: nm("b"), Expr: unitV()},
	}}
	m, _, err := check(t, e)
	require.NoError(t, err)
	cp, ok := m.Tc.(*tc.StructCopyTc)
	require.True(t, ok)
	require.Len(t, cp.Fields, 2)
	assert.Nil(t, cp.Fields[0])
	assert.NotNil(t, cp.Fields[1])
}

func TestDataAccess(t *testing.T) {
	src := &ast.StructValueImplicitType{ExprBase: ast.ExprBase{L: loc()}, Fields: []ast.TaggedExpr{
		{Name: nm("a"), Expr: trueV()},
	}}
	e := &ast.DataAccess{ExprBase: ast.ExprBase{L: loc()}, Obj: src, Field: nm("a")}
	m, _, err := check(t, e)
	require.NoError(t, err)
	ac, ok := m.Tc.(*tc.DataAccessTc)
	require.True(t, ok)
	assert.Equal(t, tc.StructAccess, ac.Kind)
	assert.Equal(t, 0, ac.Tag)
}

// listFuncBinding returns bindings defining L@ (a unit list type) and
// an identity function f over it, usable as the function of a list
// expression.
func listFuncBinding() (ast.Binding, ast.Binding) {
	// L@ = +(*(*() head, L@ tail) cons, *() nil)
	listT := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind, Fields: []ast.TaggedType{
			{Type: unitT(), Name: nm("head")},
			{Type: tv("L"), Name: nm("tail")},
		}}, Name: nm("cons")},
		{Type: unitT(), Name: nm("nil")},
	}}
	typeBind := ast.Binding{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("L"), Expr: listT}

	// f = (L@ l) { l; }
	fn := &ast.FuncValue{
		ExprBase: ast.ExprBase{L: loc()},
		Args:     []ast.TaggedType{{Type: tv("L"), Name: nm("l")}},
		Body:     v("l"),
	}
	fnType := &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{tv("L")}, RType: tv("L")}
	fnBind := ast.Binding{Type: fnType, Name: nm("f"), Expr: fn}
	return typeBind, fnBind
}

func TestListExpression(t *testing.T) {
	typeBind, fnBind := listFuncBinding()
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{typeBind, fnBind},
		Body: &ast.List{ExprBase: ast.ExprBase{L: loc()}, Func: v("f"), Elems: []ast.Expr{unitV(), unitV(), unitV()}}}
	m, _, err := check(t, e)
	require.NoError(t, err)

	let := m.Tc.(*tc.LetTc)
	app, ok := let.Body.(*tc.FuncApplyTc)
	require.True(t, ok)
	list, ok := app.Arg.(*tc.ListTc)
	require.True(t, ok)
	assert.Len(t, list.Fields, 3)
}

func TestListExpressionWrongArg(t *testing.T) {
	fn := &ast.FuncValue{
		ExprBase: ast.ExprBase{L: loc()},
		Args:     []ast.TaggedType{{Type: unitT(), Name: nm("u")}},
		Body:     v("u"),
	}
	fnType := &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{unitT()}, RType: unitT()}
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: fnType, Name: nm("f"), Expr: fn},
	}, Body: &ast.List{ExprBase: ast.ExprBase{L: loc()}, Func: v("f"), Elems: []ast.Expr{unitV()}}}
	requireErr(t, e, "must take a list argument")
}

// literalBindings builds the bindings for a literal test: a letter union
// +(*() h, *() e, *() l, *() o) and a list of it, plus the literal
// function.
func literalBindings() []ast.Binding {
	letterT := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: unitT(), Name: nm("h")},
		{Type: unitT(), Name: nm("e")},
		{Type: unitT(), Name: nm("l")},
		{Type: unitT(), Name: nm("o")},
	}}
	letterBind := ast.Binding{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("Letter"), Expr: letterT}

	listT := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind, Fields: []ast.TaggedType{
			{Type: tv("Letter"), Name: nm("head")},
			{Type: tv("Str"), Name: nm("tail")},
		}}, Name: nm("cons")},
		{Type: unitT(), Name: nm("nil")},
	}}
	strBind := ast.Binding{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("Str"), Expr: listT}

	fn := &ast.FuncValue{
		ExprBase: ast.ExprBase{L: loc()},
		Args:     []ast.TaggedType{{Type: tv("Str"), Name: nm("s")}},
		Body:     v("s"),
	}
	fnType := &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{tv("Str")}, RType: tv("Str")}
	fnBind := ast.Binding{Type: fnType, Name: nm("str"), Expr: fn}

	return []ast.Binding{letterBind, strBind, fnBind}
}

func TestLiteralExpression(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: literalBindings(),
		Body: &ast.Literal{ExprBase: ast.ExprBase{L: loc()}, Func: v("str"), Word: "hello", WordLoc: loc()}}
	m, _, err := check(t, e)
	require.NoError(t, err)

	let := m.Tc.(*tc.LetTc)
	app := let.Body.(*tc.FuncApplyTc)
	lit, ok := app.Arg.(*tc.LiteralTc)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 2, 3}, lit.Letters)
}

func TestLiteralNoMatch(t *testing.T) {
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: literalBindings(),
		Body: &ast.Literal{ExprBase: ast.ExprBase{L: loc()}, Func: v("str"), Word: "hex", WordLoc: loc()}}
	requireErr(t, e, "no letter")
}

func TestLiteralGreedy(t *testing.T) {
	// Letters 'a' and 'ab': the word "ab" must match the longest
	// field, not two short ones.
	letterT := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: unitT(), Name: nm("a")},
		{Type: unitT(), Name: nm("ab")},
	}}
	listT := &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.UnionKind, Fields: []ast.TaggedType{
		{Type: &ast.DataType{ExprBase: ast.ExprBase{L: loc()}, Kind: ast.StructKind, Fields: []ast.TaggedType{
			{Type: tv("Letter"), Name: nm("head")},
			{Type: tv("Str"), Name: nm("tail")},
		}}, Name: nm("cons")},
		{Type: unitT(), Name: nm("nil")},
	}}
	fn := &ast.FuncValue{
		ExprBase: ast.ExprBase{L: loc()},
		Args:     []ast.TaggedType{{Type: tv("Str"), Name: nm("s")}},
		Body:     v("s"),
	}
	fnType := &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{tv("Str")}, RType: tv("Str")}
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("Letter"), Expr: letterT},
		{Kind: ast.NewBasicKind(loc(), 1), Name: tnm("Str"), Expr: listT},
		{Type: fnType, Name: nm("str"), Expr: fn},
	}, Body: &ast.Literal{ExprBase: ast.ExprBase{L: loc()}, Func: v("str"), Word: "ab", WordLoc: loc()}}

	m, _, err := check(t, e)
	require.NoError(t, err)
	let := m.Tc.(*tc.LetTc)
	lit := let.Body.(*tc.FuncApplyTc).Arg.(*tc.LiteralTc)
	assert.Equal(t, []int{1}, lit.Letters, "longest match wins")
}

func abstractProgram(clientExpr func(xv ast.Expr) ast.Expr) *ast.Program {
	secretPath, _ := token.ParseModulePath("/Secret%")
	clientPath, _ := token.ParseModulePath("/Client%")

	// /Secret% = %(/Secret%)<Bool@> cast of True: an abstract bool.
	pkg := &ast.PackageType{ExprBase: ast.ExprBase{L: loc()}, Path: secretPath, Opaque: true}
	abs := &ast.Apply{ExprBase: ast.ExprBase{L: loc()}, Func: pkg, Args: []ast.Expr{boolT()}}
	cast := &ast.AbstractCast{
		ExprBase: ast.ExprBase{L: loc()},
		Package:  &ast.PackageType{ExprBase: ast.ExprBase{L: loc()}, Path: secretPath, Opaque: true},
		Target:   abs,
		Value:    trueV(),
	}

	client := clientExpr(&ast.ModulePathExpr{ExprBase: ast.ExprBase{L: loc()}, Path: secretPath})
	return &ast.Program{Modules: []*ast.Module{
		{Path: secretPath, Value: cast},
		{Path: clientPath, Deps: []*token.ModulePath{secretPath}, Value: client},
	}}
}

func TestAbstractOpacityAccessDenied(t *testing.T) {
	prog := abstractProgram(func(xv ast.Expr) ast.Expr {
		return &ast.AbstractAccess{ExprBase: ast.ExprBase{L: loc()}, Value: xv}
	})
	_, _, err := typecheck.CheckProgram(types.NewHeap(), prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module /Client% is not allowed to access package /Secret%")
}

func TestAbstractValuePassesThrough(t *testing.T) {
	// The client may hold and return the abstract value without
	// accessing it.
	prog := abstractProgram(func(xv ast.Expr) ast.Expr { return xv })
	_, _, err := typecheck.CheckProgram(types.NewHeap(), prog)
	require.NoError(t, err)
}

func TestAbstractCastInsidePackage(t *testing.T) {
	prog := abstractProgram(func(xv ast.Expr) ast.Expr { return xv })
	mods, _, err := typecheck.CheckProgram(types.NewHeap(), prog)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	require.NotNil(t, mods[0].Tc, "the cast inside the declaring package type checks")
}

func TestModuleDeclaredTypeMismatch(t *testing.T) {
	p, _ := token.ParseModulePath("/Main%")
	prog := &ast.Program{Modules: []*ast.Module{{
		Path:  p,
		Type:  unitT(),
		Value: trueV(),
	}}}
	_, _, err := typecheck.CheckProgram(types.NewHeap(), prog)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "does not match its declared type"))
}

func TestRecursiveValueLetMarksRecursive(t *testing.T) {
	// f = (*() u) { f(u); } — self-referencing function binding.
	fn := &ast.FuncValue{
		ExprBase: ast.ExprBase{L: loc()},
		Args:     []ast.TaggedType{{Type: unitT(), Name: nm("u")}},
		Body:     &ast.Apply{ExprBase: ast.ExprBase{L: loc()}, Func: v("f"), Args: []ast.Expr{v("u")}},
	}
	fnType := &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{unitT()}, RType: unitT()}
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: fnType, Name: nm("f"), Expr: fn},
	}, Body: v("f")}

	m, _, err := check(t, e)
	require.NoError(t, err)
	let := m.Tc.(*tc.LetTc)
	assert.True(t, let.Recursive)
}

func TestFuncCaptureBecomesStatic(t *testing.T) {
	// b = True; f = (*() u) { b; } — b is captured as a static.
	fn := &ast.FuncValue{
		ExprBase: ast.ExprBase{L: loc()},
		Args:     []ast.TaggedType{{Type: unitT(), Name: nm("u")}},
		Body:     v("b"),
	}
	fnType := &ast.FuncType{ExprBase: ast.ExprBase{L: loc()}, Args: []ast.Expr{unitT()}, RType: boolT()}
	e := &ast.Let{ExprBase: ast.ExprBase{L: loc()}, Bindings: []ast.Binding{
		{Type: boolT(), Name: nm("b"), Expr: trueV()},
		{Type: fnType, Name: nm("f"), Expr: fn},
	}, Body: v("f")}

	m, warns, err := check(t, e)
	require.NoError(t, err)
	_ = warns // the unused 'u' argument does not warn; only lets do

	let := m.Tc.(*tc.LetTc)
	fv, ok := let.Bindings[1].Tc.(*tc.FuncValueTc)
	require.True(t, ok)
	require.Len(t, fv.Scope, 1)
	assert.Equal(t, tc.Var{Section: tc.LocalVar, Index: 0}, fv.Scope[0])
	require.Len(t, fv.Statics, 1)
	assert.Equal(t, "b", fv.Statics[0].Name)

	st, ok := fv.Body.(*tc.VarTc)
	require.True(t, ok)
	assert.Equal(t, tc.Var{Section: tc.StaticVar, Index: 0}, st.Var)
}
