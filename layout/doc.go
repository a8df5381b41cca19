// Package layout computes reference layouts for mirror types.
//
// A reference layout is the authoritative, foreign-side description of a value
// type: an ordered list of primitive fields. Layouts are expressed as WIT types
// and computed with Canonical ABI rules, which match the wasm32 guest's C layout
// for records of primitives.
//
// # Layout Rules
//
//   - Primitives: size equals alignment (u8=1, u32=4, s64=8, etc.)
//   - ptr and usize are guest pointers (wasm32), laid out as u32
//   - Records: fields laid out sequentially with padding for alignment,
//     total size rounded up to the largest field alignment
//   - Tuples: like records with positional field names
//
// # Usage
//
//	ref, err := layout.Parse("record", []layout.Field{{Name: "jd", Type: "s64"}})
//	info := layout.NewCalculator().Calculate(ref)
//	// info.Size == 8, info.Align == 8, info.FieldOffs["jd"] == 0
package layout
