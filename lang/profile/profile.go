// Package profile implements the block-based execution profiling of
// the fble runtime. Compiled code is annotated with profiling
// operations that enter, replace and exit named blocks; a profile
// accumulates call counts and time per block and per (caller, callee)
// edge.
package profile

import (
	"fmt"
	"io"
	"sort"

	"github.com/dolthub/swiss"

	"github.com/mna/fble/lang/token"
)

// BlockID identifies a profiling block within a Profile.
type BlockID int

// RootBlockID is the block every thread starts in.
const RootBlockID BlockID = 0

// Call accumulates stats for calls from the owning block to Callee.
type Call struct {
	Callee BlockID
	Count  uint64
	Time   uint64
}

// Block is one profiling block: a nameable region of code.
type Block struct {
	ID   BlockID
	Name token.Name

	Count uint64 // number of times the block was entered
	Self  uint64 // time charged to the block itself
	Time  uint64 // time charged to the block and its callees

	// Callees is sorted by callee id, for binary search.
	Callees []*Call
}

func (b *Block) callee(id BlockID) *Call {
	i := sort.Search(len(b.Callees), func(i int) bool { return b.Callees[i].Callee >= id })
	if i < len(b.Callees) && b.Callees[i].Callee == id {
		return b.Callees[i]
	}
	c := &Call{Callee: id}
	b.Callees = append(b.Callees, nil)
	copy(b.Callees[i+1:], b.Callees[i:])
	b.Callees[i] = c
	return c
}

// Profile is a collection of profiling blocks.
type Profile struct {
	Blocks []*Block

	names *swiss.Map[string, BlockID]
}

// NewProfile creates a profile with the distinguished root block.
func NewProfile() *Profile {
	p := &Profile{names: swiss.NewMap[string, BlockID](16)}
	p.AddBlock(token.Name{Name: "<root>", Space: token.NormalNamespace})
	return p
}

// AddBlock adds a block with the given name and returns its id.
func (p *Profile) AddBlock(name token.Name) BlockID {
	id := BlockID(len(p.Blocks))
	p.Blocks = append(p.Blocks, &Block{ID: id, Name: name})
	p.names.Put(name.Name, id)
	return id
}

// AddBlocks adds a contiguous run of blocks, returning the id of the
// first. Linked modules use the returned id as the offset of their
// relative block ids.
func (p *Profile) AddBlocks(names []token.Name) BlockID {
	first := BlockID(len(p.Blocks))
	for _, n := range names {
		p.AddBlock(n)
	}
	return first
}

// BlockByName returns the id of the named block, if any.
func (p *Profile) BlockByName(name string) (BlockID, bool) {
	return p.names.Get(name)
}

// Thread is a per-thread profiling call stack. The zero value is not
// usable; create with NewThread. A nil *Thread is a valid disabled
// profiler: all operations are no-ops.
type Thread struct {
	profile *Profile
	stack   []BlockID
}

// NewThread creates a profiling thread positioned at the root block of
// the profile. Returns nil (a disabled thread) if p is nil.
func NewThread(p *Profile) *Thread {
	if p == nil {
		return nil
	}
	return &Thread{profile: p, stack: []BlockID{RootBlockID}}
}

// EnterBlock records a call from the current block into block.
func (t *Thread) EnterBlock(block BlockID) {
	if t == nil {
		return
	}
	caller := t.profile.Blocks[t.stack[len(t.stack)-1]]
	callee := t.profile.Blocks[block]
	callee.Count++
	caller.callee(block).Count++
	t.stack = append(t.stack, block)
}

// ReplaceBlock records a tail call: the current block is exited and
// block entered in its place.
func (t *Thread) ReplaceBlock(block BlockID) {
	if t == nil {
		return
	}
	t.ExitBlock()
	t.EnterBlock(block)
}

// ExitBlock exits the current block. Exiting the root block is a
// programming error and panics.
func (t *Thread) ExitBlock() {
	if t == nil {
		return
	}
	if len(t.stack) == 1 {
		panic("profile: exit of root block")
	}
	t.stack = t.stack[:len(t.stack)-1]
}

// Sample charges time to the current stack: weight to the self time of
// the innermost block, and weight to the total time of every distinct
// block on the stack.
func (t *Thread) Sample(weight uint64) {
	if t == nil {
		return
	}
	top := t.profile.Blocks[t.stack[len(t.stack)-1]]
	top.Self += weight

	seen := make(map[BlockID]bool, len(t.stack))
	for i, id := range t.stack {
		if seen[id] {
			continue
		}
		seen[id] = true
		t.profile.Blocks[id].Time += weight
		if i+1 < len(t.stack) {
			t.profile.Blocks[id].callee(t.stack[i+1]).Time += weight
		}
	}
}

// Depth returns the current stack depth. Exposed for tests.
func (t *Thread) Depth() int {
	if t == nil {
		return 0
	}
	return len(t.stack)
}

// Query calls fn for every block, sorted by decreasing self time.
func (p *Profile) Query(fn func(*Block)) {
	sorted := make([]*Block, len(p.Blocks))
	copy(sorted, p.Blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Self > sorted[j].Self })
	for _, b := range sorted {
		fn(b)
	}
}

// Report writes a simple table of blocks by decreasing self time.
func (p *Profile) Report(w io.Writer) {
	fmt.Fprintf(w, "%8s %8s %8s  %s\n", "count", "self", "time", "block")
	p.Query(func(b *Block) {
		fmt.Fprintf(w, "%8d %8d %8d  %s\n", b.Count, b.Self, b.Time, b.Name.Name)
	})
}
