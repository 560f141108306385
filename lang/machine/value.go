// Package machine implements the fble runtime: the two-tier value
// representation (pointer-packed and frame-allocated), the value heap
// with stack-like frames and incremental generational collection, the
// bytecode interpreter, and the function call protocol shared with the
// native backends.
package machine

import (
	"github.com/mna/fble/lang/profile"
)

// Value is an fble runtime value. A value is either packed (a small
// struct or union encoded in a machine word) or allocated on a heap
// frame. A nil Value is the distinguished "undefined" sentinel used
// for recursive-reference holes and error propagation.
type Value interface {
	isValue()
}

// PackedValue is a value encoded entirely in one machine word. Bit 0
// is always set; bit 1 selects struct (0) or union (1); next is a
// unary-encoded field count or tag terminated by a zero bit; the
// argument encodings follow, each in the same format minus the flag
// bit.
type PackedValue uint64

func (PackedValue) isValue() {}

// gcState tracks which of its frame's object lists a GC-tier value is
// on. List membership is recorded here and the lists themselves are
// filtered lazily.
type gcState uint8

const (
	stateStack gcState = iota
	stateUnmarked
	stateMarked
	stateAlloced
	stateFreed
)

// header is embedded in every frame-allocated value.
type header struct {
	frame *Frame
	gen   uint64

	// gc is true once the value has been promoted to the GC tier of
	// its frame.
	gc    bool
	state gcState

	// forward memoizes the GC twin produced by GcRealloc.
	forward Value
}

type headed interface {
	Value
	hdr() *header
}

func (h *header) hdr() *header { return h }

type structValue struct {
	header
	fields []Value
}

type unionValue struct {
	header
	tag int
	arg Value
}

// Function describes a callable: its executable code and the statics
// it closes over. The profile block offset translates the module
// relative block ids of the code into the profile's absolute ids.
type Function struct {
	Executable         *Executable
	ProfileBlockOffset profile.BlockID
	Statics            []Value
}

type funcValue struct {
	header
	fn Function
}

// refValue is the mutable one-slot cell used to implement recursive
// definitions. A nil value marks a hole not yet tied.
type refValue struct {
	header
	value Value
}

// nativeValue wraps opaque user data with an optional destructor,
// used for ports, file handles and FFI.
type nativeValue struct {
	header
	data   interface{}
	onFree func(interface{})
}

func (*structValue) isValue() {}
func (*unionValue) isValue()  {}
func (*funcValue) isValue()   {}
func (*refValue) isValue()    {}
func (*nativeValue) isValue() {}

// GenericTypeValue is the runtime stand-in for all type values: the
// packed empty struct.
var GenericTypeValue = packEmptyStruct()

func packEmptyStruct() PackedValue {
	w := packer{}
	w.writeBit(0) // struct
	w.writeUnary(0)
	v, _ := w.seal()
	return v
}

// packer builds a packed value bit stream, least significant bit
// first, starting above the flag bit.
type packer struct {
	bits uint64
	n    uint // bits written, not counting the flag bit
	bad  bool
}

func (p *packer) writeBit(b uint64) {
	if p.n >= 63 {
		p.bad = true
		return
	}
	p.bits |= b << (p.n + 1)
	p.n++
}

func (p *packer) writeUnary(n int) {
	for i := 0; i < n; i++ {
		p.writeBit(1)
	}
	p.writeBit(0)
}

// writeValue appends the encoding of a packed value (its payload,
// without the flag bit).
func (p *packer) writeValue(v PackedValue) {
	bits := uint64(v) >> 1
	n := payloadLen(v)
	for i := uint(0); i < n; i++ {
		p.writeBit((bits >> i) & 1)
	}
}

func (p *packer) seal() (PackedValue, bool) {
	if p.bad {
		return 0, false
	}
	return PackedValue(p.bits | 1), true
}

// unpacker reads a packed value bit stream.
type unpacker struct {
	bits uint64
	pos  uint
}

func newUnpacker(v PackedValue) *unpacker {
	return &unpacker{bits: uint64(v) >> 1}
}

func (u *unpacker) readBit() uint64 {
	b := (u.bits >> u.pos) & 1
	u.pos++
	return b
}

func (u *unpacker) readUnary() int {
	n := 0
	for u.readBit() == 1 {
		n++
	}
	return n
}

// skipValue advances past one encoded value and returns the bit range
// it occupied.
func (u *unpacker) skipValue() (start, end uint) {
	start = u.pos
	kind := u.readBit()
	n := u.readUnary()
	if kind == 0 {
		for i := 0; i < n; i++ {
			u.skipValue()
		}
	} else {
		u.skipValue()
	}
	return start, u.pos
}

// payloadLen computes the number of payload bits of a packed value.
func payloadLen(v PackedValue) uint {
	u := newUnpacker(v)
	_, end := u.skipValue()
	return end
}

// slice extracts the value encoded in the given bit range as a packed
// value of its own.
func (u *unpacker) slice(start, end uint) PackedValue {
	width := end - start
	var mask uint64 = (1 << width) - 1
	payload := (u.bits >> start) & mask
	return PackedValue(payload<<1 | 1)
}
