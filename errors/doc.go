// Package errors provides structured error types for the wasm-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the Go mirror type, the reference (WIT) type, a field path
// and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLayout, errors.KindSizeMismatch).
//		GoType("abi.Date").
//		WitType("record{jd: s64}").
//		Detail("size 9, reference size 8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.SizeMismatch("abi.Date", "record{jd: s64}", 9, 8)
//	err := errors.Forwarded("data", cause)
//
// Layout errors are fatal: they are raised at init or by the build gate, never
// recovered at runtime. Dispatch errors are translated into the sentinel value of
// the foreign method that observed them.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
