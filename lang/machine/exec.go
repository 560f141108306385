package machine

import (
	"fmt"

	"github.com/mna/fble/lang/profile"
	"github.com/mna/fble/lang/token"
)

// RunFunc is the implementation of a function: the interpreter's
// dispatch loop, a native-compiled body, or a builtin. A run function
// returns the result value, nil on abort, or the heap's tail-call
// sentinel after filling the tail-call buffer.
type RunFunc func(h *Heap, pt *profile.Thread, f *Function, args []Value) Value

// Executable is the information needed to execute a function. One
// Executable is shared by every function value created from the same
// code.
type Executable struct {
	NumArgs     int
	NumStatics  int
	MaxCallArgs int

	// ProfileBlockID is relative to the owning module's block table;
	// Function.ProfileBlockOffset translates it.
	ProfileBlockID profile.BlockID

	Run RunFunc
}

// TailCall fills the tail-call buffer with the function and arguments
// of a tail call and returns the sentinel recognized by Call. Only a
// run function may call this, immediately before returning.
func (h *Heap) TailCall(fn Value, args ...Value) Value {
	h.ensureTailBuffer(len(args))
	h.tailArgs[0] = fn
	copy(h.tailArgs[1:], args)
	h.tailArgc = len(args)
	return h.sentinel
}

// IsTailCall reports whether v is the tail-call sentinel of this
// heap.
func (h *Heap) IsTailCall(v Value) bool { return v == Value(h.sentinel) }

func (h *Heap) ensureTailBuffer(argc int) {
	if len(h.tailArgs) < argc+1 {
		buf := make([]Value, argc+1)
		copy(buf, h.tailArgs)
		h.tailArgs = buf
	}
}

// Call calls a function value with the given arguments: the FbleCall
// of the reference runtime. It runs the callee to completion,
// consuming tail calls by compacting the frame, creating partial
// applications on too few arguments and re-applying the result on too
// many. Returns nil on abort.
func (h *Heap) Call(pt *profile.Thread, fn Value, args ...Value) Value {
	fn = StrictValue(fn)
	if fn == nil {
		fmt.Fprintf(h.Stderr, "error: called undefined function\n")
		return nil
	}
	f := FuncOf(fn)
	if f == nil {
		fmt.Fprintf(h.Stderr, "error: called a value that is not a function\n")
		return nil
	}

	n := f.Executable.NumArgs
	if len(args) < n {
		return h.partialApply(fn, args)
	}
	if len(args) > n {
		r := h.Call(pt, fn, args[:n]...)
		if r == nil {
			return nil
		}
		return h.Call(pt, r, args[n:]...)
	}

	base := h.PushFrame(true)
	for {
		h.ensureTailBuffer(f.Executable.MaxCallArgs)
		result := f.Executable.Run(h, pt, f, args)
		if !h.IsTailCall(result) {
			return h.popTo(base, result)
		}

		// Consume the tail-call buffer and compact the frame around its
		// contents.
		save := make([]Value, h.tailArgc+1)
		copy(save, h.tailArgs[:h.tailArgc+1])
		h.tailArgc = 0
		save = h.CompactFrame(save)

		fn = StrictValue(save[0])
		if fn == nil {
			fmt.Fprintf(h.Stderr, "error: called undefined function\n")
			return h.popTo(base, nil)
		}
		args = save[1:]
		f = FuncOf(fn)
		if f == nil {
			fmt.Fprintf(h.Stderr, "error: called a value that is not a function\n")
			return h.popTo(base, nil)
		}

		n = f.Executable.NumArgs
		if len(args) < n {
			return h.popTo(base, h.partialApply(fn, args))
		}
		if len(args) > n {
			r := h.Call(pt, fn, args[:n]...)
			if r == nil {
				return h.popTo(base, nil)
			}
			return h.popTo(base, h.Call(pt, r, args[n:]...))
		}
	}
}

// popTo unwinds any frames pushed by compaction of a merged frame and
// then pops the base activation, promoting result along the way.
func (h *Heap) popTo(base *Frame, result Value) Value {
	for h.top != base {
		result = h.PopFrame(result)
	}
	return h.PopFrame(result)
}

// partialApply creates a closure over a function applied to fewer
// arguments than it needs. Calling the closure re-invokes the original
// function with the captured and fresh arguments concatenated.
func (h *Heap) partialApply(fn Value, args []Value) Value {
	f := FuncOf(fn)
	exe := &Executable{
		NumArgs:        f.Executable.NumArgs - len(args),
		NumStatics:     1 + len(args),
		MaxCallArgs:    f.Executable.NumArgs,
		ProfileBlockID: profile.RootBlockID,
		Run: func(h *Heap, pt *profile.Thread, pf *Function, more []Value) Value {
			all := make([]Value, 0, len(pf.Statics)-1+len(more))
			all = append(all, pf.Statics[1:]...)
			all = append(all, more...)
			return h.Call(pt, pf.Statics[0], all...)
		},
	}
	statics := append([]Value{fn}, args...)
	return h.NewFuncValue(exe, 0, statics...)
}

// Eval evaluates a linked program: a zero-argument function as
// returned by link.Link. Returns nil and reports to the heap's Stderr
// on runtime error.
func (h *Heap) Eval(fn Value, p *profile.Profile) Value {
	return h.Apply(fn, nil, p)
}

// Apply applies a function to the given arguments under a fresh
// profiling thread.
//
// The reference runtime raises the operating system stack limit here,
// since the language forbids imposing an arbitrary call depth; Go
// grows stacks dynamically, so no limit adjustment is needed.
func (h *Heap) Apply(fn Value, args []Value, p *profile.Profile) Value {
	pt := profile.NewThread(p)
	return h.Call(pt, fn, args...)
}

// RuntimeErrorf reports a located runtime error to the heap's error
// writer.
func (h *Heap) RuntimeErrorf(loc token.Loc, format string, args ...interface{}) {
	fmt.Fprintf(h.Stderr, "%s: error: %s\n", loc, fmt.Sprintf(format, args...))
}
