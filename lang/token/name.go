package token

// Namespace distinguishes the two name spaces of the language: normal
// names hold values, type names hold types. The namespace of a name is
// determined by the parser ('@' suffix for type names).
type Namespace int

const (
	NormalNamespace Namespace = iota
	TypeNamespace
)

// Name is an identifier together with its namespace and the location
// where it appears.
type Name struct {
	Name  string
	Space Namespace
	Loc   Loc
}

// String renders the name as written in source, with the '@' suffix
// for names in the type namespace.
func (n Name) String() string {
	if n.Space == TypeNamespace {
		return n.Name + "@"
	}
	return n.Name
}

// NamesEqual reports whether two names refer to the same binding:
// same identifier in the same namespace. Locations are ignored.
func NamesEqual(a, b Name) bool {
	return a.Space == b.Space && a.Name == b.Name
}
