package types

import (
	"strings"
)

// String renders a type in source-like syntax for diagnostics.
// Recursive types print the name of the variable tying the knot when
// the cycle is reached again.
func (h *Heap) String(t Type) string {
	var sb strings.Builder
	h.print(&sb, t, make(map[uint64]bool))
	return sb.String()
}

func (h *Heap) print(sb *strings.Builder, t Type, seen map[uint64]bool) {
	if t == nil {
		sb.WriteString("???")
		return
	}
	switch tt := t.(type) {
	case *DataType:
		if seen[tt.typeID()] {
			sb.WriteString("...")
			return
		}
		seen[tt.typeID()] = true
		defer delete(seen, tt.typeID())
		if tt.Kind == StructKind {
			sb.WriteByte('*')
		} else {
			sb.WriteByte('+')
		}
		sb.WriteByte('(')
		for i, f := range tt.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			h.print(sb, f.Type, seen)
			sb.WriteByte(' ')
			sb.WriteString(f.Name.String())
		}
		sb.WriteByte(')')

	case *FuncType:
		sb.WriteByte('(')
		h.print(sb, tt.Arg, seen)
		sb.WriteString(") { ")
		h.print(sb, tt.RType, seen)
		sb.WriteString("; }")

	case *PolyType:
		sb.WriteByte('<')
		sb.WriteString(KindString(h.GetKind(tt.Arg)))
		sb.WriteByte(' ')
		sb.WriteString(tt.Arg.Name.String())
		sb.WriteString("> { ")
		h.print(sb, tt.Body, seen)
		sb.WriteString("; }")

	case *PolyApplyType:
		h.print(sb, tt.Poly, seen)
		sb.WriteByte('<')
		h.print(sb, tt.Arg, seen)
		sb.WriteByte('>')

	case *PackageType:
		sb.WriteByte('%')
		sb.WriteByte('(')
		sb.WriteString(tt.Path.String())
		sb.WriteByte(')')

	case *AbstractType:
		sb.WriteString(tt.Package.Path.String())
		sb.WriteByte('<')
		h.print(sb, tt.Type, seen)
		sb.WriteByte('>')

	case *TypeType:
		sb.WriteString("@<")
		h.print(sb, tt.Type, seen)
		sb.WriteByte('>')

	case *VarType:
		if tt.Value == nil || seen[tt.typeID()] {
			sb.WriteString(tt.Name.String())
			return
		}
		seen[tt.typeID()] = true
		defer delete(seen, tt.typeID())
		h.print(sb, tt.Value, seen)
	}
}
