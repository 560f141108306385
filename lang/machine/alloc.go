package machine

import "github.com/mna/fble/lang/profile"

// NewStructValue creates a struct value with the given fields. Small
// structs whose fields are all packed pack into a single word.
func (h *Heap) NewStructValue(fields ...Value) Value {
	packable := true
	for _, f := range fields {
		if _, ok := f.(PackedValue); !ok {
			packable = false
			break
		}
	}
	if packable {
		w := packer{}
		w.writeBit(0)
		w.writeUnary(len(fields))
		for _, f := range fields {
			w.writeValue(f.(PackedValue))
		}
		if v, ok := w.seal(); ok {
			return v
		}
	}
	v := &structValue{fields: append([]Value(nil), fields...)}
	h.allocStack(v)
	return v
}

// NewUnionValue creates a union value with the given tag and
// argument.
func (h *Heap) NewUnionValue(tag int, arg Value) Value {
	if p, ok := arg.(PackedValue); ok {
		w := packer{}
		w.writeBit(1)
		w.writeUnary(tag)
		w.writeValue(p)
		if v, ok := w.seal(); ok {
			return v
		}
	}
	v := &unionValue{tag: tag, arg: arg}
	h.allocStack(v)
	return v
}

// NewEnumValue creates a union value whose argument is the unit
// struct: the representation of an enum constructor.
func (h *Heap) NewEnumValue(tag int) Value {
	return h.NewUnionValue(tag, h.NewStructValue())
}

// NewFuncValue creates a function value with the given executable,
// profile block offset and statics.
func (h *Heap) NewFuncValue(exe *Executable, blockOffset profile.BlockID, statics ...Value) Value {
	v := &funcValue{fn: Function{
		Executable:         exe,
		ProfileBlockOffset: blockOffset,
		Statics:            append([]Value(nil), statics...),
	}}
	h.allocStack(v)
	return v
}

// NewRefValue allocates an unassigned reference cell.
func (h *Heap) NewRefValue() Value {
	v := &refValue{}
	h.allocStack(v)
	return v
}

// NewNativeValue wraps opaque user data in a value tracked by the
// heap. onFree, if not nil, runs when the value is collected or the
// heap is freed.
func (h *Heap) NewNativeValue(data interface{}, onFree func(interface{})) Value {
	v := &nativeValue{data: data, onFree: onFree}
	h.allocStack(v)
	h.natives = append(h.natives, v)
	return v
}

// NativeValueData returns the data of a native value.
func NativeValueData(v Value) interface{} {
	return v.(*nativeValue).data
}

// StrictValue dereferences chains of assigned reference values,
// returning the underlying value, or nil if v is nil or an
// unassigned reference.
func StrictValue(v Value) Value {
	for {
		r, ok := v.(*refValue)
		if !ok {
			return v
		}
		v = r.value
	}
}

// AssignRefValue assigns the value of a reference cell, tying a
// recursive definition. Returns false if the assignment is vacuous:
// the value resolves, through any chain of references, back to the
// reference itself.
func (h *Heap) AssignRefValue(ref, v Value) bool {
	r := ref.(*refValue)
	x := v
	for {
		rr, ok := x.(*refValue)
		if !ok {
			break
		}
		if rr == r {
			return false
		}
		x = rr.value
	}
	// The cell may outlive the frame activity that computed v; promote
	// the value to the cell's tier.
	if r.gc {
		v = h.GcRealloc(v, r.frame)
	}
	r.value = v
	return true
}

// StructField returns field i of a struct value. Behavior is
// undefined if v is not a struct value or i is out of range.
func StructField(v Value, i int) Value {
	if p, ok := v.(PackedValue); ok {
		u := newUnpacker(p)
		u.readBit() // kind
		u.readUnary()
		var start, end uint
		for j := 0; j <= i; j++ {
			start, end = u.skipValue()
		}
		return u.slice(start, end)
	}
	return v.(*structValue).fields[i]
}

// UnionTag returns the tag of a union value.
func UnionTag(v Value) int {
	if p, ok := v.(PackedValue); ok {
		u := newUnpacker(p)
		u.readBit() // kind
		return u.readUnary()
	}
	return v.(*unionValue).tag
}

// UnionArg returns the argument of a union value.
func UnionArg(v Value) Value {
	if p, ok := v.(PackedValue); ok {
		u := newUnpacker(p)
		u.readBit() // kind
		u.readUnary()
		start, end := u.skipValue()
		return u.slice(start, end)
	}
	return v.(*unionValue).arg
}

// FuncOf returns the function of a function value, or nil if v is not
// a function value.
func FuncOf(v Value) *Function {
	if f, ok := v.(*funcValue); ok {
		return &f.fn
	}
	return nil
}
