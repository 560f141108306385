package token

import (
	"fmt"
	"strings"
)

// ModulePath is the hierarchical identifier of a module, written
// /a/b/c% in source. The path is a sequence of path components; the
// Loc records where the path was written (or an unknown location for
// synthesized paths).
type ModulePath struct {
	Loc  Loc
	Path []Name
}

// NewModulePath creates a module path from plain component strings.
func NewModulePath(loc Loc, components ...string) *ModulePath {
	p := &ModulePath{Loc: loc}
	for _, c := range components {
		p.Path = append(p.Path, Name{Name: c, Space: NormalNamespace, Loc: loc})
	}
	return p
}

// String renders the path in its source form, /a/b/c%.
func (p *ModulePath) String() string {
	var sb strings.Builder
	for _, n := range p.Path {
		sb.WriteByte('/')
		sb.WriteString(n.Name)
	}
	sb.WriteByte('%')
	return sb.String()
}

// PathsEqual reports whether two module paths identify the same
// module. Locations are ignored.
func PathsEqual(a, b *ModulePath) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || len(a.Path) != len(b.Path) {
		return false
	}
	for i := range a.Path {
		if a.Path[i].Name != b.Path[i].Name {
			return false
		}
	}
	return true
}

// ContainedIn reports whether p is contained in the package identified
// by pkg: pkg's components are a prefix of p's. A module is always
// contained in its own package.
func (p *ModulePath) ContainedIn(pkg *ModulePath) bool {
	if len(pkg.Path) > len(p.Path) {
		return false
	}
	for i := range pkg.Path {
		if p.Path[i].Name != pkg.Path[i].Name {
			return false
		}
	}
	return true
}

// ParseModulePath parses the /a/b/c% source form. It is used by the
// command line to interpret -m arguments; the parser proper produces
// paths directly.
func ParseModulePath(s string) (*ModulePath, error) {
	orig := s
	if !strings.HasSuffix(s, "%") {
		return nil, fmt.Errorf("module path %q does not end in %%", orig)
	}
	s = strings.TrimSuffix(s, "%")
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("module path %q does not start with /", orig)
	}
	p := &ModulePath{}
	for _, c := range strings.Split(s[1:], "/") {
		if c == "" {
			return nil, fmt.Errorf("module path %q has an empty component", orig)
		}
		p.Path = append(p.Path, Name{Name: c, Space: NormalNamespace})
	}
	return p, nil
}
