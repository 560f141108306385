// Package link assembles executable modules into a runnable program:
// a zero-argument function that evaluates every module in dependency
// order and yields the value of the main module.
//
// The same registry serves two producers: the interpreter, which
// wraps each compiled module's bytecode, and natively generated code,
// which registers the executables it was compiled into.
package link

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/mna/fble/lang/compiler"
	"github.com/mna/fble/lang/machine"
	"github.com/mna/fble/lang/profile"
	"github.com/mna/fble/lang/token"
)

// ExecutableModule is the runtime form of one module: the in-memory
// equivalent of the static module data emitted by the native
// backends.
type ExecutableModule struct {
	Path *token.ModulePath
	Deps []*token.ModulePath

	// Executable runs the module body, taking the dependency values as
	// arguments in Deps order.
	Executable *machine.Executable

	// ProfileBlocks names the module's profiling blocks, indexed by the
	// module-relative ids in the executable's code.
	ProfileBlocks []token.Name
}

// Program is an ordered registry of executable modules; the last
// registered module is the main module.
type Program struct {
	modules *swiss.Map[string, *ExecutableModule]
	order   []*ExecutableModule
}

// NewProgram creates an empty program registry.
func NewProgram() *Program {
	return &Program{modules: swiss.NewMap[string, *ExecutableModule](16)}
}

// Register adds a module to the program. Registering the same path
// twice, or a module whose dependencies are not yet registered, is a
// link error.
func (p *Program) Register(m *ExecutableModule) error {
	key := m.Path.String()
	if _, ok := p.modules.Get(key); ok {
		return fmt.Errorf("duplicate registration of module %s", m.Path)
	}
	for _, d := range m.Deps {
		if _, ok := p.modules.Get(d.String()); !ok {
			return fmt.Errorf("module %s depends on unregistered module %s", m.Path, d)
		}
	}
	p.modules.Put(key, m)
	p.order = append(p.order, m)
	return nil
}

// InterpretProgram registers every value module of a compiled program
// as an interpreted executable module.
func InterpretProgram(h *machine.Heap, cp *compiler.Program) (*Program, error) {
	p := NewProgram()
	for _, m := range cp.Modules {
		if m.Code == nil {
			continue // type-only module, no runtime presence
		}
		em := &ExecutableModule{
			Path:          m.Path,
			Deps:          m.Deps,
			Executable:    h.NewInterpretedExecutable(m.Code),
			ProfileBlocks: m.ProfileBlocks,
		}
		if err := p.Register(em); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Link produces the zero-argument function value that evaluates the
// program. The profiling blocks of every module are added to prof (if
// not nil), and each module's function is created with the matching
// block offset.
func Link(h *machine.Heap, prof *profile.Profile, p *Program) (machine.Value, error) {
	if len(p.order) == 0 {
		return nil, fmt.Errorf("no modules to link")
	}

	offsets := make([]profile.BlockID, len(p.order))
	for i, m := range p.order {
		if prof != nil {
			offsets[i] = prof.AddBlocks(m.ProfileBlocks)
		}
	}

	order := p.order
	exe := &machine.Executable{
		NumArgs: 0,
		Run: func(h *machine.Heap, pt *profile.Thread, f *machine.Function, args []machine.Value) machine.Value {
			computed := swiss.NewMap[string, machine.Value](uint32(len(order)))
			var result machine.Value
			for i, m := range order {
				deps := make([]machine.Value, len(m.Deps))
				for j, d := range m.Deps {
					deps[j], _ = computed.Get(d.String())
				}
				fn := h.NewFuncValue(m.Executable, offsets[i])
				result = h.Call(pt, fn, deps...)
				if result == nil {
					return nil
				}
				computed.Put(m.Path.String(), result)
			}
			return result
		},
	}
	return h.NewFuncValue(exe, 0), nil
}
