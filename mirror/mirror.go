package mirror

import (
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/layout"
)

// Declaration describes the reference layout a mirror type must match.
type Declaration struct {
	// Reference is the authoritative foreign layout. Ignored when Layouts is set.
	Reference wit.Type
	// Name identifies the foreign type (e.g. "Date").
	Name string
	// Layouts lists framework-version dependent reference layouts.
	Layouts []Versioned
	// ByValue marks types passed by raw copy; they must be trivially copyable.
	ByValue bool
}

// Versioned is a reference layout that applies from a framework version on.
type Versioned struct {
	Reference wit.Type
	Since     string
}

// Mirror binds a declaration to the Go type that mirrors it.
type Mirror struct {
	GoType reflect.Type
	Declaration
}

// Of binds decl to the Go type T.
func Of[T any](decl Declaration) Mirror {
	return Mirror{
		GoType:      reflect.TypeFor[T](),
		Declaration: decl,
	}
}

// String returns the Go type name and reference layout.
func (m Mirror) String() string {
	ref := "versioned"
	if m.Reference != nil {
		ref = layout.Describe(m.Reference)
	}
	return m.GoType.String() + " ~ " + ref
}
