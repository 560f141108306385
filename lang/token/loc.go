// Package token defines the small lexical types shared by every phase
// of the fble pipeline: source locations, namespaced names and module
// paths. It also re-exports the standard library's scanner error types,
// which are used for positioned diagnostics throughout.
package token

import (
	"fmt"
	"go/scanner"
	"go/token"
)

type (
	// Error is a positioned diagnostic.
	Error = scanner.Error
	// ErrorList is an ordered collection of positioned diagnostics.
	ErrorList = scanner.ErrorList
)

// PrintError prints err to w in one-per-line form if it is an
// ErrorList, and as a plain error otherwise.
var PrintError = scanner.PrintError

// Loc is a location in a source file. Line and Col are 1-based; a zero
// value for either means the location is unknown.
type Loc struct {
	File string
	Line int
	Col  int
}

// String renders the location in the file:line:col form used by all
// fble diagnostics.
func (l Loc) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Unknown returns true if the line or column is not known.
func (l Loc) Unknown() bool {
	return l.Line == 0 || l.Col == 0
}

// Position converts the location to a go/token Position so it can be
// added to an ErrorList.
func (l Loc) Position() token.Position {
	return token.Position{Filename: l.File, Line: l.Line, Column: l.Col}
}

// Errorf appends a formatted diagnostic at loc to el.
func Errorf(el *ErrorList, loc Loc, format string, args ...interface{}) {
	el.Add(loc.Position(), fmt.Sprintf(format, args...))
}
