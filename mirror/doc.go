// Package mirror verifies that Go mirror types are layout-identical to the
// foreign-defined types they mirror.
//
// Values of a mirror type cross the guest boundary by raw byte copy, with no
// marshaling step. That is only sound when the Go type has the same size,
// alignment and field offsets as the reference layout, when by-value types are
// trivially copyable, and when the host byte order matches the guest's
// (WebAssembly is little-endian). This package checks all of that.
//
// # Declarations
//
// A Declaration names a reference layout; Of binds it to a Go type:
//
//	var dateMirror = mirror.Of[Date](mirror.Declaration{
//		Name:      "Date",
//		Reference: layout.MustParse("record", layout.Field{Name: "jd", Type: "s64"}),
//		ByValue:   true,
//	})
//
// # Build-time gate
//
// Verification at init (MustVerify) is the last line of defence. The first is
// a constant-expression assertion block compiled into the package that owns the
// mirror types; AssertionSource generates it and TypeCheck runs the Go type
// checker over it for any GOARCH, so a layout drift fails the build instead of
// corrupting guest memory.
//
// # Profiles
//
// Opaque foreign types can change layout between framework releases. A
// declaration may list versioned layouts; Select picks the newest one that
// applies to a framework version.
package mirror
