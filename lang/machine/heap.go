package machine

import (
	"io"
	"math"
	"os"

	"github.com/mna/fble/lang/compiler"
)

// Frame is one activation's slice of the value heap. Values are born
// on the frame's stack tier and promoted to its GC tier when they
// escape (returned, tail-called, or written through a reference).
type Frame struct {
	caller *Frame

	// minGen is the generation lower bound when the frame was entered;
	// gen is the frame's current generation, advanced on compaction.
	minGen, gen uint64

	// merges counts call activations sharing this frame as a leaf-call
	// optimization.
	merges int

	// stack holds the frame's stack-tier values, discarded wholesale on
	// pop and compaction.
	stack []headed

	// GC-tier object lists. Membership is tracked by each value's
	// state; the slices are filtered lazily.
	unmarked, marked, alloced []headed
}

// Heap is the value heap: a chain of frames plus the process-wide
// runtime state of the original design (the tail-call buffer),
// confined here rather than in globals. The generic type value is the
// immutable package-level packed value GenericTypeValue.
type Heap struct {
	// Stderr receives runtime error reports. Defaults to os.Stderr.
	Stderr io.Writer

	top *Frame

	// gc is the frame currently being incrementally collected; nextGC
	// is scheduled after it.
	gc, nextGC *Frame

	gen uint64

	// Tail-call buffer: slot 0 is the function, slots 1..argc the
	// arguments. Only live between a run returning the tail-call
	// sentinel and Call consuming it.
	tailArgs []Value
	tailArgc int

	sentinel *sentinelValue

	natives []*nativeValue

	// interpCache shares one interpreted executable per code body.
	interpCache map[*compiler.Code]*Executable
}

// sentinelValue is the distinguished tail-call sentinel returned by
// run functions.
type sentinelValue struct{ header }

func (*sentinelValue) isValue() {}

// NewHeap creates a heap with a single root frame.
func NewHeap() *Heap {
	h := &Heap{
		Stderr:   os.Stderr,
		gen:      1,
		sentinel: &sentinelValue{},
	}
	h.top = &Frame{minGen: 1, gen: 1}
	return h
}

// Free releases the heap, running the destructors of any native
// values still alive.
func (h *Heap) Free() {
	for _, n := range h.natives {
		if n.state != stateFreed && n.onFree != nil {
			n.onFree(n.data)
		}
	}
	h.natives = nil
	h.top = &Frame{minGen: h.gen, gen: h.gen}
	h.gc, h.nextGC = nil, nil
}

// allocStack registers a newborn value on the current frame's stack
// tier.
func (h *Heap) allocStack(v headed) {
	hd := v.hdr()
	hd.frame = h.top
	hd.gen = h.top.gen
	h.top.stack = append(h.top.stack, v)
	h.incrGC()
}

// PushFrame enters a new frame. With merge set, the current frame is
// shared instead of allocating: the common case for calls that cannot
// create reference cycles into the caller.
func (h *Heap) PushFrame(merge bool) *Frame {
	if merge {
		h.top.merges++
		return h.top
	}
	h.gen++
	f := &Frame{caller: h.top, minGen: h.gen, gen: h.gen}
	h.top = f
	return f
}

// PopFrame exits the current frame, promoting value to the caller.
// The popped frame's surviving GC objects move to the caller's
// unmarked list for eventual collection there; its generation is
// raised so stale pointers into it are recognizable.
func (h *Heap) PopFrame(value Value) Value {
	f := h.top
	if f.merges > 0 {
		f.merges--
		return value
	}

	promoted := h.GcRealloc(value, f.caller)

	caller := f.caller
	for _, v := range f.gcObjects() {
		hd := v.hdr()
		hd.frame = caller
		hd.state = stateUnmarked
		caller.unmarked = append(caller.unmarked, v)
	}
	f.stack, f.unmarked, f.marked, f.alloced = nil, nil, nil, nil
	f.gen = math.MaxUint64

	if h.gc == f {
		h.gc = nil
	}
	if h.nextGC == f {
		h.nextGC = nil
	}
	h.top = caller
	return promoted
}

// CompactFrame resets the current frame's allocation region in place,
// preserving only the save roots. Used by the tail-call loop to run in
// constant space. The (possibly reallocated) roots are returned.
//
// A frame shared through merges cannot be compacted; a fresh frame is
// pushed instead.
func (h *Heap) CompactFrame(save []Value) []Value {
	f := h.top
	if f.merges > 0 {
		h.gen++
		nf := &Frame{caller: f, minGen: h.gen, gen: h.gen}
		h.top = nf
		return save
	}

	for i := range save {
		save[i] = h.GcRealloc(save[i], f)
	}
	f.stack = nil

	for _, v := range f.marked {
		if v.hdr().frame == f && v.hdr().state == stateMarked {
			v.hdr().state = stateUnmarked
			f.unmarked = append(f.unmarked, v)
		}
	}
	for _, v := range f.alloced {
		if v.hdr().frame == f && v.hdr().state == stateAlloced {
			v.hdr().state = stateUnmarked
			f.unmarked = append(f.unmarked, v)
		}
	}
	f.marked, f.alloced = nil, nil

	h.gen++
	f.gen = h.gen

	for _, root := range save {
		if hv, ok := root.(headed); ok && hv.hdr().frame == f && hv.hdr().state == stateUnmarked {
			hv.hdr().state = stateMarked
			hv.hdr().gen = f.gen
			f.marked = append(f.marked, hv)
		}
	}

	// Complete the collection of this frame now: trace from the roots
	// and free what remains unreachable, so a tail-call loop's garbage
	// cannot outpace the allocation-driven incremental collector.
	h.collect(f)
	if h.gc == f {
		h.gc, h.nextGC = h.nextGC, nil
	}
	return save
}

// collect runs the frame's collection to completion: trace everything
// reachable from the marked list, then free the rest.
func (h *Heap) collect(f *Frame) {
	for len(f.marked) > 0 {
		v := f.marked[len(f.marked)-1]
		f.marked = f.marked[:len(f.marked)-1]
		hd := v.hdr()
		if hd.frame != f || hd.state != stateMarked {
			continue
		}
		h.markRefs(f, v)
		hd.state = stateAlloced
		f.alloced = append(f.alloced, v)
	}
	for _, v := range f.unmarked {
		hd := v.hdr()
		if hd.frame != f || hd.state != stateUnmarked {
			continue
		}
		hd.state = stateFreed
		if n, ok := v.(*nativeValue); ok && n.onFree != nil {
			n.onFree(n.data)
			n.onFree = nil
		}
	}
	f.unmarked = nil
}

// GcRealloc promotes a value (and everything it references) to the GC
// tier of the target frame. Promotion is memoized through the stack
// header's forward pointer, which also ties reference cycles.
func (h *Heap) GcRealloc(v Value, target *Frame) Value {
	if v == nil {
		return nil
	}
	hv, ok := v.(headed)
	if !ok {
		return v // packed
	}
	hd := hv.hdr()
	if hd.gc {
		return v
	}
	if hd.forward != nil {
		return hd.forward
	}

	adopt := func(nv headed) {
		nh := nv.hdr()
		nh.frame = target
		nh.gen = target.gen
		nh.gc = true
		nh.state = stateAlloced
		target.alloced = append(target.alloced, nv)
		hd.forward = nv
	}

	switch v := v.(type) {
	case *structValue:
		nv := &structValue{fields: make([]Value, len(v.fields))}
		adopt(nv)
		for i, f := range v.fields {
			nv.fields[i] = h.GcRealloc(f, target)
		}
		h.incrGC()
		return nv
	case *unionValue:
		nv := &unionValue{tag: v.tag}
		adopt(nv)
		nv.arg = h.GcRealloc(v.arg, target)
		h.incrGC()
		return nv
	case *funcValue:
		nv := &funcValue{fn: Function{
			Executable:         v.fn.Executable,
			ProfileBlockOffset: v.fn.ProfileBlockOffset,
			Statics:            make([]Value, len(v.fn.Statics)),
		}}
		adopt(nv)
		for i, s := range v.fn.Statics {
			nv.fn.Statics[i] = h.GcRealloc(s, target)
		}
		h.incrGC()
		return nv
	case *refValue:
		nv := &refValue{}
		adopt(nv)
		nv.value = h.GcRealloc(v.value, target)
		h.incrGC()
		return nv
	case *nativeValue:
		// Natives are unique: ownership of the destructor cannot be
		// duplicated. Move the existing object to the GC tier instead of
		// twinning it.
		hd.gc = true
		hd.frame = target
		hd.state = stateAlloced
		target.alloced = append(target.alloced, v)
		h.incrGC()
		return v
	case *sentinelValue:
		return v
	}
	return v
}

// incrGC performs a bounded amount of garbage collection work: trace
// one marked object of the frame under collection, or finish the
// frame by freeing what remains unmarked.
func (h *Heap) incrGC() {
	f := h.gc
	if f == nil {
		return
	}

	for len(f.marked) > 0 {
		v := f.marked[len(f.marked)-1]
		f.marked = f.marked[:len(f.marked)-1]
		hd := v.hdr()
		if hd.frame != f || hd.state != stateMarked {
			continue // stale entry
		}
		h.markRefs(f, v)
		hd.state = stateAlloced
		f.alloced = append(f.alloced, v)
		return
	}

	// Mark list drained: everything left unmarked is garbage.
	for _, v := range f.unmarked {
		hd := v.hdr()
		if hd.frame != f || hd.state != stateUnmarked {
			continue
		}
		hd.state = stateFreed
		if n, ok := v.(*nativeValue); ok && n.onFree != nil {
			n.onFree(n.data)
			n.onFree = nil
		}
	}
	f.unmarked = nil
	h.gc, h.nextGC = h.nextGC, nil
}

// markRefs moves the unmarked children of v to the marked list. A
// child is relevant only if it is collected by the same frame window.
func (h *Heap) markRefs(f *Frame, v headed) {
	mark := func(c Value) {
		hc, ok := c.(headed)
		if !ok {
			return
		}
		hd := hc.hdr()
		if hd.frame != f || hd.state != stateUnmarked {
			return
		}
		if hd.gen < f.minGen {
			return
		}
		hd.state = stateMarked
		hd.gen = f.gen
		f.marked = append(f.marked, hc)
	}

	switch v := v.(type) {
	case *structValue:
		for _, c := range v.fields {
			mark(c)
		}
	case *unionValue:
		mark(v.arg)
	case *funcValue:
		for _, c := range v.fn.Statics {
			mark(c)
		}
	case *refValue:
		mark(v.value)
	}
}

// FullGc runs the incremental collector to a fixed point. Intended
// for tests and debugging.
func (h *Heap) FullGc() {
	for h.gc != nil {
		h.incrGC()
	}
}

// LiveCount returns the number of live frame-allocated values on the
// heap, across all frames and both tiers. Exposed for tests asserting
// residency bounds.
func (h *Heap) LiveCount() int {
	n := 0
	for f := h.top; f != nil; f = f.caller {
		n += len(f.stack)
		for _, v := range f.unmarked {
			if v.hdr().frame == f && v.hdr().state == stateUnmarked {
				n++
			}
		}
		for _, v := range f.marked {
			if v.hdr().frame == f && v.hdr().state == stateMarked {
				n++
			}
		}
		for _, v := range f.alloced {
			if v.hdr().frame == f && v.hdr().state == stateAlloced {
				n++
			}
		}
	}
	return n
}

func (f *Frame) gcObjects() []headed {
	var out []headed
	for _, v := range f.unmarked {
		if v.hdr().frame == f && v.hdr().state == stateUnmarked {
			out = append(out, v)
		}
	}
	for _, v := range f.marked {
		if v.hdr().frame == f && v.hdr().state == stateMarked {
			out = append(out, v)
		}
	}
	for _, v := range f.alloced {
		if v.hdr().frame == f && v.hdr().state == stateAlloced {
			out = append(out, v)
		}
	}
	return out
}
