package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
	"github.com/mna/fble/lang/typecheck"
)

func testPath(t *testing.T) *token.ModulePath {
	t.Helper()
	p, err := token.ParseModulePath("/Test%")
	require.NoError(t, err)
	return p
}

func compileTc(t *testing.T, body tc.Tc) *Module {
	t.Helper()
	return Compile(&typecheck.Module{Path: testPath(t), Tc: body})
}

func bind(name string, body tc.Tc) tc.Binding {
	return tc.Binding{Name: token.Name{Name: name}, Tc: body}
}

func TestCompileStructValue(t *testing.T) {
	m := compileTc(t, &tc.StructValueTc{})
	require.NotNil(t, m.Code)
	require.Len(t, m.Code.Instrs, 2)

	st, ok := m.Code.Instrs[0].(*StructInstr)
	require.True(t, ok)
	assert.Empty(t, st.Args)
	assert.Equal(t, 0, st.Dest)

	ret, ok := m.Code.Instrs[1].(*ReturnInstr)
	require.True(t, ok)
	assert.Equal(t, tc.Var{Section: tc.LocalVar, Index: 0}, ret.Result)

	// The module body enters its profiling block on the first
	// instruction and exits on return.
	require.NotEmpty(t, m.Code.Instrs[0].Base().ProfileOps)
	assert.Equal(t, ProfileEnterOp, m.Code.Instrs[0].Base().ProfileOps[0].Tag)
	assert.Equal(t, ProfileExitOp, m.Code.Instrs[1].Base().ProfileOps[0].Tag)
}

func TestCompileRecursiveLet(t *testing.T) {
	// let x = x; x  -- compiles to RefValue, RefDef(vacuous at run).
	body := &tc.LetTc{
		Recursive: true,
		Bindings:  []tc.Binding{bind("x", &tc.VarTc{Var: tc.Var{Section: tc.LocalVar, Index: 0}})},
		Body:      &tc.VarTc{Var: tc.Var{Section: tc.LocalVar, Index: 0}},
	}
	m := compileTc(t, body)

	var kinds []string
	for _, in := range m.Code.Instrs {
		switch in.(type) {
		case *RefValueInstr:
			kinds = append(kinds, "ref")
		case *RefDefInstr:
			kinds = append(kinds, "refdef")
		case *CopyInstr:
			kinds = append(kinds, "copy")
		case *ReturnInstr:
			kinds = append(kinds, "return")
		case *ReleaseInstr:
			kinds = append(kinds, "release")
		}
	}
	assert.Equal(t, []string{"ref", "copy", "refdef", "release", "return"}, kinds)
}

func TestCompileNonRecursiveLet(t *testing.T) {
	body := &tc.LetTc{
		Bindings: []tc.Binding{bind("x", &tc.StructValueTc{})},
		Body:     &tc.VarTc{Var: tc.Var{Section: tc.LocalVar, Index: 0}},
	}
	m := compileTc(t, body)
	for _, in := range m.Code.Instrs {
		_, isRef := in.(*RefValueInstr)
		assert.False(t, isRef, "non-recursive lets need no reference cells")
	}
}

func TestCompileTailCall(t *testing.T) {
	// A function whose body tail calls its argument.
	fn := &tc.FuncValueTc{
		Args: []token.Name{{Name: "f"}},
		Body: &tc.FuncApplyTc{
			Func: &tc.VarTc{Var: tc.Var{Section: tc.ArgVar, Index: 0}},
			Arg:  &tc.StructValueTc{},
		},
	}
	m := compileTc(t, fn)

	fv, ok := m.Code.Instrs[0].(*FuncValueInstr)
	require.True(t, ok)

	var sawTail bool
	for _, in := range fv.Code.Instrs {
		if tcall, ok := in.(*TailCallInstr); ok {
			sawTail = true
			assert.Len(t, tcall.Args, 1)
		}
		_, isCall := in.(*CallInstr)
		assert.False(t, isCall, "tail position must not compile to a plain call")
	}
	assert.True(t, sawTail)
	assert.Equal(t, 1, fv.Code.MaxCallArgs)
}

func TestCompileCallInNonTailPosition(t *testing.T) {
	// let r = f(unit); r  inside a function: the call is not in tail
	// position because of the let body... but the body var is, so use
	// a struct around the call result to force a non-tail call.
	fn := &tc.FuncValueTc{
		Args: []token.Name{{Name: "f"}},
		Body: &tc.StructValueTc{Fields: []tc.Tc{
			&tc.FuncApplyTc{
				Func: &tc.VarTc{Var: tc.Var{Section: tc.ArgVar, Index: 0}},
				Arg:  &tc.StructValueTc{},
			},
		}},
	}
	m := compileTc(t, fn)
	fv := m.Code.Instrs[0].(*FuncValueInstr)

	var sawCall bool
	for _, in := range fv.Code.Instrs {
		if _, ok := in.(*CallInstr); ok {
			sawCall = true
		}
	}
	assert.True(t, sawCall)
}

func TestCompileCurriedApplySpine(t *testing.T) {
	// f(a)(b) collapses into one call with two args.
	fn := &tc.FuncValueTc{
		Args: []token.Name{{Name: "f"}, {Name: "a"}, {Name: "b"}},
		Body: &tc.FuncApplyTc{
			Func: &tc.FuncApplyTc{
				Func: &tc.VarTc{Var: tc.Var{Section: tc.ArgVar, Index: 0}},
				Arg:  &tc.VarTc{Var: tc.Var{Section: tc.ArgVar, Index: 1}},
			},
			Arg: &tc.VarTc{Var: tc.Var{Section: tc.ArgVar, Index: 2}},
		},
	}
	m := compileTc(t, fn)
	fv := m.Code.Instrs[0].(*FuncValueInstr)

	var tcall *TailCallInstr
	for _, in := range fv.Code.Instrs {
		if tci, ok := in.(*TailCallInstr); ok {
			tcall = tci
		}
	}
	require.NotNil(t, tcall)
	assert.Len(t, tcall.Args, 2)
	assert.Equal(t, 2, fv.Code.MaxCallArgs)
}

func selectTc(shared bool) *tc.UnionSelectTc {
	b0 := tc.Binding{Name: token.Name{Name: "True"}, Tc: &tc.StructValueTc{}}
	b1 := tc.Binding{Name: token.Name{Name: "False"}, Tc: &tc.StructValueTc{}}
	def := b1
	if shared {
		def = b0
	}
	return &tc.UnionSelectTc{
		Condition: &tc.StructValueTc{},
		NumTags:   2,
		Choices: []tc.UnionSelectChoice{
			{Tag: 0, Branch: b0},
			{Tag: 1, Branch: b1},
		},
		Default: def,
	}
}

func TestCompileUnionSelect(t *testing.T) {
	m := compileTc(t, selectTc(false))

	var sel *SelectInstr
	for _, in := range m.Code.Instrs {
		if si, ok := in.(*SelectInstr); ok {
			sel = si
		}
	}
	require.NotNil(t, sel)
	require.Len(t, sel.Targets, 2)
	assert.Equal(t, 2, sel.NumTags)
	assert.Less(t, sel.Targets[0].Tag, sel.Targets[1].Tag, "targets sorted by tag")
	assert.Equal(t, sel.Targets[1].PC, sel.DefaultPC,
		"default shares the code of the branch with the same Tc")
}

func TestCompileUnionSelectSharedBranch(t *testing.T) {
	m := compileTc(t, selectTc(true))
	var sel *SelectInstr
	for _, in := range m.Code.Instrs {
		if si, ok := in.(*SelectInstr); ok {
			sel = si
		}
	}
	require.NotNil(t, sel)
	assert.Equal(t, sel.Targets[0].PC, sel.DefaultPC)
	assert.NotEqual(t, sel.Targets[1].PC, sel.DefaultPC)
}

func TestLocalReuseAfterRelease(t *testing.T) {
	// Two sequential struct constructions: the arg temp of the second
	// reuses the register released by the first.
	body := &tc.StructValueTc{Fields: []tc.Tc{
		&tc.StructValueTc{Fields: []tc.Tc{&tc.StructValueTc{}}},
		&tc.StructValueTc{Fields: []tc.Tc{&tc.StructValueTc{}}},
	}}
	m := compileTc(t, body)
	assert.LessOrEqual(t, m.Code.NumLocals, 4, "released registers are reused")
}

func TestProfileBlockNames(t *testing.T) {
	body := &tc.LetTc{
		Bindings: []tc.Binding{bind("x", &tc.FuncValueTc{
			Args: []token.Name{{Name: "u"}},
			Body: &tc.StructValueTc{},
		})},
		Body: &tc.VarTc{Var: tc.Var{Section: tc.LocalVar, Index: 0}},
	}
	m := compileTc(t, body)

	var names []string
	for _, n := range m.ProfileBlocks {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"/Test%", "/Test%.x", "/Test%.x!"}, names)
}

func TestDisassemble(t *testing.T) {
	m := compileTc(t, &tc.LetTc{
		Recursive: true,
		Bindings:  []tc.Binding{bind("x", &tc.VarTc{Var: tc.Var{Section: tc.LocalVar, Index: 0}})},
		Body:      &tc.VarTc{Var: tc.Var{Section: tc.LocalVar, Index: 0}},
	})
	out := Disassemble(m)
	assert.Contains(t, out, "module /Test%")
	assert.Contains(t, out, "= ref")
	assert.Contains(t, out, "ref l[0] =")
	assert.Contains(t, out, "return")
	assert.True(t, strings.HasPrefix(out, "module /Test%\n"))
}

func TestTypeOnlyModule(t *testing.T) {
	m := Compile(&typecheck.Module{Path: testPath(t)})
	assert.Nil(t, m.Code)
	assert.Contains(t, Disassemble(m), "type only")
}
