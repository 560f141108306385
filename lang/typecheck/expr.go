package typecheck

import (
	"strings"

	"github.com/mna/fble/lang/ast"
	"github.com/mna/fble/lang/tc"
	"github.com/mna/fble/lang/token"
	"github.com/mna/fble/lang/types"
)

// checkExpr type checks an expression, returning its type and typed
// form, or (nil, nil) after reporting at least one error. Phantom mode
// is used under type positions: variable lookups do not mark use and
// do not capture across function boundaries.
func (c *checker) checkExpr(s *scope, e ast.Expr, phantom bool) (types.Type, tc.Tc) {
	th := c.th

	switch e := e.(type) {
	case *ast.Var:
		b := s.lookup(e.Name, phantom)
		if b == nil {
			c.errorf(e.Loc(), "variable '%s' not defined", e.Name)
			return nil, nil
		}
		if b.typ == nil {
			// The binding itself failed to check; the error is already
			// reported.
			return nil, nil
		}
		if b.typeOnly {
			return b.typ, &tc.TypeValue{}
		}
		return b.typ, &tc.VarTc{Var: b.v}

	case *ast.ModulePathExpr:
		b := s.lookup(token.Name{Name: e.Path.String(), Space: token.NormalNamespace}, phantom)
		if b == nil {
			c.errorf(e.Loc(), "module %s not in scope", e.Path)
			return nil, nil
		}
		if b.typeOnly {
			return b.typ, &tc.TypeValue{}
		}
		return b.typ, &tc.VarTc{Var: b.v}

	case *ast.Let:
		return c.checkLet(s, e, phantom)

	case *ast.DataType:
		var fields []types.Field
		ok := true
		for i, f := range e.Fields {
			ft := c.checkType(s, f.Type)
			if ft == nil {
				ok = false
			}
			for _, g := range e.Fields[:i] {
				if token.NamesEqual(f.Name, g.Name) {
					c.errorf(f.Name.Loc, "duplicate field name '%s'", f.Name)
					ok = false
				}
			}
			fields = append(fields, types.Field{Name: f.Name, Type: ft})
		}
		kind := types.StructKind
		if e.Kind == ast.UnionKind {
			kind = types.UnionKind
			if len(fields) == 0 {
				c.errorf(e.Loc(), "a union type must have at least one field")
				ok = false
			}
		}
		if !ok {
			return nil, nil
		}
		dt := th.NewDataType(e.Loc(), kind, fields)
		return th.NewTypeType(e.Loc(), dt), &tc.TypeValue{}

	case *ast.FuncType:
		rt := c.checkType(s, e.RType)
		if rt == nil {
			return nil, nil
		}
		t := rt
		for i := len(e.Args) - 1; i >= 0; i-- {
			at := c.checkType(s, e.Args[i])
			if at == nil {
				return nil, nil
			}
			t = th.NewFuncType(e.Loc(), at, t)
		}
		return th.NewTypeType(e.Loc(), t), &tc.TypeValue{}

	case *ast.Typeof:
		t, body := c.checkExpr(s, e.Expr, true)
		if body == nil {
			return nil, nil
		}
		return th.NewTypeType(e.Loc(), t), &tc.TypeValue{}

	case *ast.PackageType:
		pkg := th.NewPackageType(e.Loc(), e.Path, e.Opaque)
		return th.NewTypeType(e.Loc(), pkg), &tc.TypeValue{}

	case *ast.StructValueImplicitType:
		var fields []types.Field
		var args []tc.Tc
		ok := true
		for i, f := range e.Fields {
			for _, g := range e.Fields[:i] {
				if token.NamesEqual(f.Name, g.Name) {
					c.errorf(f.Name.Loc, "duplicate field name '%s'", f.Name)
					ok = false
				}
			}
			ft, ftc := c.checkExpr(s, f.Expr, phantom)
			if ftc == nil {
				ok = false
				continue
			}
			fields = append(fields, types.Field{Name: f.Name, Type: ft})
			args = append(args, ftc)
		}
		if !ok {
			return nil, nil
		}
		st := th.NewDataType(e.Loc(), types.StructKind, fields)
		return st, &tc.StructValueTc{Fields: args}

	case *ast.StructCopy:
		return c.checkStructCopy(s, e, phantom)

	case *ast.UnionValue:
		declared := c.checkType(s, e.Type)
		if declared == nil {
			return nil, nil
		}
		var vars []*types.VarType
		ut := th.Depoly(declared, &vars)
		dt, ok := th.Normal(ut).(*types.DataType)
		if !ok || dt.Kind != types.UnionKind {
			c.errorf(e.Type.Loc(), "expected a union type, but found %s", th.String(declared))
			return nil, nil
		}
		tag := fieldIndex(dt, e.Field)
		if tag < 0 {
			c.errorf(e.Field.Loc, "'%s' is not a field of type %s", e.Field, th.String(ut))
			return nil, nil
		}
		at, atc := c.checkExpr(s, e.Arg, phantom)
		if atc == nil {
			return nil, nil
		}
		if !c.inferArgs(e.Loc(), vars, []types.Type{dt.Fields[tag].Type}, []types.Type{at}) {
			return nil, nil
		}
		if !th.TypesEqual(dt.Fields[tag].Type, at) {
			c.errorf(e.Arg.Loc(), "expected type %s, but found %s",
				th.String(dt.Fields[tag].Type), th.String(at))
			return nil, nil
		}
		return ut, &tc.UnionValueTc{Tag: tag, Arg: atc}

	case *ast.UnionSelect:
		return c.checkUnionSelect(s, e, phantom)

	case *ast.DataAccess:
		ot, otc := c.checkExpr(s, e.Obj, phantom)
		if otc == nil {
			return nil, nil
		}
		norm := th.Normal(ot)
		if at, ok := norm.(*types.AbstractType); ok && !c.module.ContainedIn(at.Package.Path) {
			c.errorf(e.Loc(), "module %s is not allowed to access package %s",
				c.module, at.Package.Path)
			return nil, nil
		}
		dt, ok := norm.(*types.DataType)
		if !ok {
			c.errorf(e.Obj.Loc(), "expected struct or union value, but found something of type %s", th.String(ot))
			return nil, nil
		}
		tag := fieldIndex(dt, e.Field)
		if tag < 0 {
			c.errorf(e.Field.Loc, "'%s' is not a field of type %s", e.Field, th.String(ot))
			return nil, nil
		}
		kind := tc.StructAccess
		if dt.Kind == types.UnionKind {
			kind = tc.UnionAccess
		}
		return dt.Fields[tag].Type, &tc.DataAccessTc{
			Kind: kind, Obj: otc, Tag: tag, AccessLoc: e.Field.Loc,
		}

	case *ast.FuncValue:
		return c.checkFuncValue(s, e, phantom)

	case *ast.PolyValue:
		kind := c.kindOf(e.Kind)
		if types.KindLevel(kind) < 1 {
			c.errorf(e.Kind.Loc(), "a poly parameter must have kind level 1 or greater")
			return nil, nil
		}
		if e.Name.Space != token.TypeNamespace {
			c.errorf(e.Name.Loc, "a poly parameter must use the type namespace")
			return nil, nil
		}
		vt := th.NewVarType(e.Name.Loc, e.Name, kind)
		b := s.pushLocal(e.Name, th.NewTypeType(e.Name.Loc, vt), true)
		bt, btc := c.checkExpr(s, e.Body, phantom)
		s.popLocal(b)
		if btc == nil {
			return nil, nil
		}
		return th.NewPolyType(e.Loc(), vt, bt), btc

	case *ast.PolyApply:
		pt, ptc := c.checkExpr(s, e.Poly, phantom)
		if ptc == nil {
			return nil, nil
		}
		at := c.checkType(s, e.Arg)
		if at == nil {
			return nil, nil
		}
		apply := func(poly types.Type) types.Type {
			pk, ok := th.GetKind(poly).(*types.PolyKind)
			if !ok {
				c.errorf(e.Poly.Loc(), "cannot apply a non-polymorphic type %s", th.String(poly))
				return nil
			}
			if !types.KindsEqual(pk.Arg, th.GetKind(at)) {
				c.errorf(e.Arg.Loc(), "expected kind %s, but found %s",
					types.KindString(pk.Arg), types.KindString(th.GetKind(at)))
				return nil
			}
			return th.NewPolyApplyType(e.Loc(), poly, at)
		}
		if tv := th.ValueOfType(pt); tv != nil {
			r := apply(tv)
			if r == nil {
				return nil, nil
			}
			return th.NewTypeType(e.Loc(), r), &tc.TypeValue{}
		}
		r := apply(pt)
		if r == nil {
			return nil, nil
		}
		return r, ptc

	case *ast.Apply:
		return c.checkApply(s, e, phantom)

	case *ast.List:
		return c.checkList(s, e, phantom)

	case *ast.Literal:
		return c.checkLiteral(s, e, phantom)

	case *ast.AbstractCast:
		pt := c.checkType(s, e.Package)
		if pt == nil {
			return nil, nil
		}
		pkg, ok := th.Normal(pt).(*types.PackageType)
		if !ok {
			c.errorf(e.Package.Loc(), "expected a package type, but found %s", th.String(pt))
			return nil, nil
		}
		if !c.module.ContainedIn(pkg.Path) {
			c.errorf(e.Loc(), "module %s is not allowed to access package %s", c.module, pkg.Path)
			return nil, nil
		}
		target := c.checkType(s, e.Target)
		vt, vtc := c.checkExpr(s, e.Value, phantom)
		if target == nil || vtc == nil {
			return nil, nil
		}
		th.PushTransparent(pkg.Path)
		eq := th.TypesEqual(target, vt)
		th.PopTransparent()
		if !eq {
			c.errorf(e.Loc(), "cannot cast from %s to %s", th.String(vt), th.String(target))
			return nil, nil
		}
		return target, vtc

	case *ast.AbstractAccess:
		vt, vtc := c.checkExpr(s, e.Value, phantom)
		if vtc == nil {
			return nil, nil
		}
		at, ok := th.Normal(vt).(*types.AbstractType)
		if !ok {
			c.errorf(e.Value.Loc(), "expected an abstract value, but found something of type %s", th.String(vt))
			return nil, nil
		}
		if !c.module.ContainedIn(at.Package.Path) {
			c.errorf(e.Loc(), "module %s is not allowed to access package %s",
				c.module, at.Package.Path)
			return nil, nil
		}
		return at.Type, vtc
	}

	c.errorf(e.Loc(), "unsupported expression")
	return nil, nil
}

func fieldIndex(dt *types.DataType, name token.Name) int {
	for i, f := range dt.Fields {
		if f.Name.Name == name.Name {
			return i
		}
	}
	return -1
}

func (c *checker) checkLet(s *scope, e *ast.Let, phantom bool) (types.Type, tc.Tc) {
	th := c.th

	type letBind struct {
		src      ast.Binding
		b        *binding
		vt       *types.VarType // type bindings only
		declared types.Type     // value bindings only
	}

	binds := make([]letBind, len(e.Bindings))
	failed := false
	for i, bind := range e.Bindings {
		lb := letBind{src: bind}
		if bind.Kind != nil {
			if bind.Name.Space != token.TypeNamespace {
				c.errorf(bind.Name.Loc, "a type binding must use the type namespace")
				failed = true
			}
			kind := c.kindOf(bind.Kind)
			if types.KindLevel(kind) < 1 {
				c.errorf(bind.Kind.Loc(), "a type binding must have kind level 1 or greater")
				failed = true
			}
			lb.vt = th.NewVarType(bind.Name.Loc, bind.Name, kind)
			lb.b = s.pushLocal(bind.Name, th.NewTypeType(bind.Name.Loc, lb.vt), true)
		} else {
			if bind.Name.Space != token.NormalNamespace {
				c.errorf(bind.Name.Loc, "a value binding must use the normal namespace")
				failed = true
			}
			lb.declared = c.checkType(s, bind.Type)
			lb.b = s.pushLocal(bind.Name, lb.declared, false)
		}
		binds[i] = lb
	}

	// Check the right-hand sides. Every binder is in scope, so use of
	// any of them marks the let recursive.
	var bindings []tc.Binding
	for i := range binds {
		lb := &binds[i]
		if lb.vt != nil {
			v := c.checkType(s, lb.src.Expr)
			if v == nil {
				failed = true
				continue
			}
			if !types.KindsEqual(lb.vt.K, th.GetKind(v)) {
				c.errorf(lb.src.Expr.Loc(), "expected kind %s, but found %s",
					types.KindString(lb.vt.K), types.KindString(th.GetKind(v)))
				failed = true
				continue
			}
			if !th.AssignVarType(lb.vt, v) {
				c.errorf(lb.src.Name.Loc, "the type of '%s' is vacuous", lb.src.Name)
				failed = true
			}
			continue
		}

		t, body := c.checkExpr(s, lb.src.Expr, phantom)
		if body == nil {
			failed = true
			continue
		}
		if lb.declared != nil && !th.TypesEqual(lb.declared, t) {
			c.errorf(lb.src.Expr.Loc(), "expected type %s, but found %s",
				th.String(lb.declared), th.String(t))
			failed = true
			continue
		}
		bindings = append(bindings, tc.Binding{
			Name: lb.src.Name,
			Loc:  lb.src.Expr.Loc(),
			Tc:   body,
		})
	}

	recursive := false
	for i := range binds {
		if binds[i].b.used {
			recursive = true
		}
	}

	bt, btc := c.checkExpr(s, e.Body, phantom)

	for i := len(binds) - 1; i >= 0; i-- {
		lb := &binds[i]
		if !lb.b.referenced && !phantom {
			c.warnf(lb.src.Name.Loc, "variable '%s' defined but not used", lb.src.Name)
		}
		s.popLocal(lb.b)
	}

	if btc == nil || failed {
		return nil, nil
	}
	if len(bindings) == 0 {
		return bt, btc
	}
	return bt, &tc.LetTc{Recursive: recursive, Bindings: bindings, Body: btc}
}

func (c *checker) checkStructCopy(s *scope, e *ast.StructCopy, phantom bool) (types.Type, tc.Tc) {
	th := c.th
	st, stc := c.checkExpr(s, e.Src, phantom)
	if stc == nil {
		return nil, nil
	}
	dt, ok := th.Normal(st).(*types.DataType)
	if !ok || dt.Kind != types.StructKind {
		c.errorf(e.Src.Loc(), "expected a struct value, but found something of type %s", th.String(st))
		return nil, nil
	}

	fields := make([]tc.Tc, len(dt.Fields))
	next := 0
	for _, ov := range e.Fields {
		tag := -1
		for i := next; i < len(dt.Fields); i++ {
			if dt.Fields[i].Name.Name == ov.Name.Name {
				tag = i
				break
			}
		}
		if tag < 0 {
			c.errorf(ov.Name.Loc, "'%s' is not a field of type %s, or is out of declaration order",
				ov.Name, th.String(st))
			return nil, nil
		}
		next = tag + 1

		ft, ftc := c.checkExpr(s, ov.Expr, phantom)
		if ftc == nil {
			return nil, nil
		}
		if !th.TypesEqual(dt.Fields[tag].Type, ft) {
			c.errorf(ov.Expr.Loc(), "expected type %s, but found %s",
				th.String(dt.Fields[tag].Type), th.String(ft))
			return nil, nil
		}
		fields[tag] = ftc
	}
	return st, &tc.StructCopyTc{Source: stc, Fields: fields}
}

func (c *checker) checkUnionSelect(s *scope, e *ast.UnionSelect, phantom bool) (types.Type, tc.Tc) {
	th := c.th
	ct, ctc := c.checkExpr(s, e.Condition, phantom)
	if ctc == nil {
		return nil, nil
	}
	dt, ok := th.Normal(ct).(*types.DataType)
	if !ok || dt.Kind != types.UnionKind {
		c.errorf(e.Condition.Loc(), "expected a union value, but found something of type %s", th.String(ct))
		return nil, nil
	}

	var rt types.Type
	var choices []tc.UnionSelectChoice
	checkBranch := func(expr ast.Expr) (tc.Tc, bool) {
		bt, btc := c.checkExpr(s, expr, phantom)
		if btc == nil {
			return nil, false
		}
		if rt == nil {
			rt = bt
		} else if !th.TypesEqual(rt, bt) {
			c.errorf(expr.Loc(), "expected type %s, but found %s", th.String(rt), th.String(bt))
			return nil, false
		}
		return btc, true
	}

	ci := 0
	for tag, f := range dt.Fields {
		if ci < len(e.Choices) && e.Choices[ci].Name.Name == f.Name.Name {
			ch := e.Choices[ci]
			ci++
			btc, ok := checkBranch(ch.Expr)
			if !ok {
				return nil, nil
			}
			choices = append(choices, tc.UnionSelectChoice{
				Tag:    tag,
				Branch: tc.Binding{Name: ch.Name, Loc: ch.Expr.Loc(), Tc: btc},
			})
		} else if e.Default == nil {
			// A branch for this field written later is out of order.
			for _, ch := range e.Choices[ci:] {
				if ch.Name.Name == f.Name.Name {
					c.errorf(ch.Name.Loc, "'%s' is not a field of type %s, or is out of declaration order",
						ch.Name, th.String(ct))
					return nil, nil
				}
			}
			c.errorf(e.Loc(), "missing branch for '%s' of type %s and no default provided",
				f.Name, th.String(ct))
			return nil, nil
		}
	}
	if ci < len(e.Choices) {
		c.errorf(e.Choices[ci].Name.Loc, "'%s' is not a field of type %s, or is out of declaration order",
			e.Choices[ci].Name, th.String(ct))
		return nil, nil
	}

	var def tc.Binding
	if e.Default != nil {
		btc, ok := checkBranch(e.Default)
		if !ok {
			return nil, nil
		}
		def = tc.Binding{
			Name: token.Name{Name: ":", Space: token.NormalNamespace, Loc: e.Default.Loc()},
			Loc:  e.Default.Loc(),
			Tc:   btc,
		}
	} else {
		// Synthesize the default from the last branch. Sharing the Tc
		// pointer lets the compiler emit a single copy of the code.
		def = choices[len(choices)-1].Branch
	}

	return rt, &tc.UnionSelectTc{
		Condition: ctc,
		NumTags:   len(dt.Fields),
		Choices:   choices,
		Default:   def,
	}
}

func (c *checker) checkFuncValue(s *scope, e *ast.FuncValue, phantom bool) (types.Type, tc.Tc) {
	th := c.th

	argTypes := make([]types.Type, len(e.Args))
	ok := true
	for i, a := range e.Args {
		argTypes[i] = c.checkType(s, a.Type)
		if argTypes[i] == nil {
			ok = false
		}
		for _, b := range e.Args[:i] {
			if token.NamesEqual(a.Name, b.Name) {
				c.errorf(a.Name.Loc, "duplicate argument name '%s'", a.Name)
				ok = false
			}
		}
	}
	if !ok {
		return nil, nil
	}

	ns := newScope(s)
	names := make([]token.Name, len(e.Args))
	for i, a := range e.Args {
		ns.pushArg(a.Name, argTypes[i])
		names[i] = a.Name
	}

	bt, btc := c.checkExpr(ns, e.Body, phantom)
	if btc == nil {
		return nil, nil
	}

	t := bt
	for i := len(argTypes) - 1; i >= 0; i-- {
		t = th.NewFuncType(e.Loc(), argTypes[i], t)
	}

	statics := make([]token.Name, len(ns.statics))
	for i, st := range ns.statics {
		statics[i] = st.name
	}
	return t, &tc.FuncValueTc{
		BodyLoc: e.Body.Loc(),
		Scope:   ns.captured,
		Statics: statics,
		Args:    names,
		Body:    btc,
	}
}

func (c *checker) checkApply(s *scope, e *ast.Apply, phantom bool) (types.Type, tc.Tc) {
	th := c.th
	ft, ftc := c.checkExpr(s, e.Func, phantom)
	if ftc == nil {
		return nil, nil
	}

	if tv := th.ValueOfType(ft); tv != nil {
		switch inner := th.Normal(tv).(type) {
		case *types.PackageType:
			// Creating an abstract type of the package.
			if !c.module.ContainedIn(inner.Path) {
				c.errorf(e.Loc(), "module %s is not allowed to access package %s", c.module, inner.Path)
				return nil, nil
			}
			if len(e.Args) != 1 {
				c.errorf(e.Loc(), "expected 1 argument to package type, but found %d", len(e.Args))
				return nil, nil
			}
			at := c.checkType(s, e.Args[0])
			if at == nil {
				return nil, nil
			}
			abs := th.NewAbstractType(e.Loc(), inner, at)
			return th.NewTypeType(e.Loc(), abs), &tc.TypeValue{}

		default:
			// Implicit struct construction from a (possibly polymorphic)
			// struct type.
			var vars []*types.VarType
			st := th.Depoly(tv, &vars)
			dt, ok := th.Normal(st).(*types.DataType)
			if !ok || dt.Kind != types.StructKind {
				c.errorf(e.Func.Loc(), "cannot apply a value of type %s", th.String(ft))
				return nil, nil
			}
			if len(e.Args) != len(dt.Fields) {
				c.errorf(e.Loc(), "expected %d arguments to struct type %s, but found %d",
					len(dt.Fields), th.String(st), len(e.Args))
				return nil, nil
			}
			expected := make([]types.Type, len(dt.Fields))
			actual := make([]types.Type, len(e.Args))
			args := make([]tc.Tc, len(e.Args))
			for i, a := range e.Args {
				expected[i] = dt.Fields[i].Type
				at, atc := c.checkExpr(s, a, phantom)
				if atc == nil {
					return nil, nil
				}
				actual[i] = at
				args[i] = atc
			}
			if !c.inferArgs(e.Loc(), vars, expected, actual) {
				return nil, nil
			}
			for i := range expected {
				if !th.TypesEqual(expected[i], actual[i]) {
					c.errorf(e.Args[i].Loc(), "expected type %s, but found %s",
						th.String(expected[i]), th.String(actual[i]))
					return nil, nil
				}
			}
			return st, &tc.StructValueTc{Fields: args}
		}
	}

	// Ordinary (possibly polymorphic) function application. Inference
	// state starts fresh for each argument.
	cur, curTc := ft, ftc
	for _, a := range e.Args {
		var vars []*types.VarType
		d := th.Depoly(cur, &vars)
		fnT, ok := d.(*types.FuncType)
		if !ok {
			c.errorf(e.Func.Loc(), "expected a function, but found something of type %s", th.String(cur))
			return nil, nil
		}
		at, atc := c.checkExpr(s, a, phantom)
		if atc == nil {
			return nil, nil
		}
		if !c.inferArgs(a.Loc(), vars, []types.Type{fnT.Arg}, []types.Type{at}) {
			return nil, nil
		}
		if !th.TypesEqual(fnT.Arg, at) {
			c.errorf(a.Loc(), "expected type %s, but found %s",
				th.String(fnT.Arg), th.String(at))
			return nil, nil
		}
		cur = fnT.RType
		curTc = &tc.FuncApplyTc{Func: curTc, Arg: atc}
	}
	return cur, curTc
}

// listShape destructures the canonical list type
// +(*(T, L) cons, *() nil) where L is the list type itself, returning
// the element type T.
func (c *checker) listShape(listT types.Type) (types.Type, bool) {
	th := c.th
	ut, ok := th.Normal(listT).(*types.DataType)
	if !ok || ut.Kind != types.UnionKind || len(ut.Fields) != 2 {
		return nil, false
	}
	consT, ok := th.Normal(ut.Fields[0].Type).(*types.DataType)
	if !ok || consT.Kind != types.StructKind || len(consT.Fields) != 2 {
		return nil, false
	}
	nilT, ok := th.Normal(ut.Fields[1].Type).(*types.DataType)
	if !ok || nilT.Kind != types.StructKind || len(nilT.Fields) != 0 {
		return nil, false
	}
	if !th.TypesEqual(consT.Fields[1].Type, listT) {
		return nil, false
	}
	return consT.Fields[0].Type, true
}

func (c *checker) checkList(s *scope, e *ast.List, phantom bool) (types.Type, tc.Tc) {
	th := c.th
	ft, ftc := c.checkExpr(s, e.Func, phantom)
	if ftc == nil {
		return nil, nil
	}
	var vars []*types.VarType
	fnT, ok := th.Depoly(ft, &vars).(*types.FuncType)
	if !ok {
		c.errorf(e.Func.Loc(), "expected a function, but found something of type %s", th.String(ft))
		return nil, nil
	}
	elemT, ok := c.listShape(fnT.Arg)
	if !ok {
		c.errorf(e.Func.Loc(), "the function of a list expression must take a list argument, but found %s",
			th.String(fnT.Arg))
		return nil, nil
	}

	fields := make([]tc.Tc, len(e.Elems))
	actual := make([]types.Type, len(e.Elems))
	for i, el := range e.Elems {
		et, etc := c.checkExpr(s, el, phantom)
		if etc == nil {
			return nil, nil
		}
		if !th.TypeInfer(vars, elemT, et) {
			c.errorf(el.Loc(), "expected type %s, but found %s", th.String(elemT), th.String(et))
			return nil, nil
		}
		actual[i] = et
		fields[i] = etc
	}
	for _, v := range vars {
		if v.Value == nil {
			c.errorf(e.Loc(), "unable to infer types for poly: %s not assigned", v.Name)
			return nil, nil
		}
	}
	for i := range actual {
		if !th.TypesEqual(elemT, actual[i]) {
			c.errorf(e.Elems[i].Loc(), "expected type %s, but found %s",
				th.String(elemT), th.String(actual[i]))
			return nil, nil
		}
	}
	return fnT.RType, &tc.FuncApplyTc{Func: ftc, Arg: &tc.ListTc{Fields: fields}}
}

func (c *checker) checkLiteral(s *scope, e *ast.Literal, phantom bool) (types.Type, tc.Tc) {
	th := c.th
	ft, ftc := c.checkExpr(s, e.Func, phantom)
	if ftc == nil {
		return nil, nil
	}
	var vars []*types.VarType
	fnT, ok := th.Depoly(ft, &vars).(*types.FuncType)
	if !ok {
		c.errorf(e.Func.Loc(), "expected a function, but found something of type %s", th.String(ft))
		return nil, nil
	}
	if len(vars) > 0 {
		c.errorf(e.Func.Loc(), "the function of a literal expression must not be polymorphic")
		return nil, nil
	}
	elemT, ok := c.listShape(fnT.Arg)
	if !ok {
		c.errorf(e.Func.Loc(), "the function of a literal expression must take a list argument, but found %s",
			th.String(fnT.Arg))
		return nil, nil
	}
	lt, ok := th.Normal(elemT).(*types.DataType)
	if !ok || lt.Kind != types.UnionKind {
		c.errorf(e.Func.Loc(), "the letters of a literal must form a union type, but found %s",
			th.String(elemT))
		return nil, nil
	}

	// Greedy longest-match tokenization of the word against the letter
	// field names. On equal-length matches the first declared field
	// wins.
	var letters []int
	word := e.Word
	for len(word) > 0 {
		best, bestLen := -1, 0
		for tag, f := range lt.Fields {
			if len(f.Name.Name) > bestLen && strings.HasPrefix(word, f.Name.Name) {
				best, bestLen = tag, len(f.Name.Name)
			}
		}
		if best < 0 {
			c.errorf(e.WordLoc, "no letter of type %s matches %q", th.String(elemT), word)
			return nil, nil
		}
		ftype, ok := th.Normal(lt.Fields[best].Type).(*types.DataType)
		if !ok || ftype.Kind != types.StructKind || len(ftype.Fields) != 0 {
			c.errorf(e.WordLoc, "letter '%s' is not a nullary constructor", lt.Fields[best].Name)
			return nil, nil
		}
		letters = append(letters, best)
		word = word[bestLen:]
	}

	return fnT.RType, &tc.FuncApplyTc{Func: ftc, Arg: &tc.LiteralTc{Letters: letters}}
}
