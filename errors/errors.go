package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseLayout   Phase = "layout"   // mirror type verification
	PhaseBridge   Phase = "bridge"   // wrapper construction and lifetime
	PhaseDispatch Phase = "dispatch" // forwarding calls into bridged objects
	PhaseHost     Phase = "host"     // host module registration and guest calls
	PhaseConfig   Phase = "config"   // declaration files and profiles
	PhaseLoad     Phase = "load"     // guest module loading
)

// Kind categorizes the error
type Kind string

const (
	KindSizeMismatch         Kind = "size_mismatch"
	KindAlignMismatch        Kind = "align_mismatch"
	KindOffsetMismatch       Kind = "offset_mismatch"
	KindNotTriviallyCopyable Kind = "not_trivially_copyable"
	KindByteOrder            Kind = "byte_order"
	KindFactory              Kind = "factory"
	KindClosed               Kind = "closed"
	KindOutstandingBorrow    Kind = "outstanding_borrow"
	KindBorrowEscaped        Kind = "borrow_escaped"
	KindReadOnly             Kind = "read_only"
	KindInvalidHandle        Kind = "invalid_handle"
	KindTypeMismatch         Kind = "type_mismatch"
	KindForwarded            Kind = "forwarded"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindNotFound             Kind = "not_found"
	KindInvalidInput         Kind = "invalid_input"
	KindInvalidData          Kind = "invalid_data"
	KindRegistration         Kind = "registration"
	KindInstantiation        Kind = "instantiation"
	KindMissingExport        Kind = "missing_export"
	KindTrap                 Kind = "trap"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.WitType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the reference (WIT) type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Layout verification constructors

// SizeMismatch creates a layout size mismatch error
func SizeMismatch(goType, witType string, got, want uintptr) *Error {
	return &Error{
		Phase:   PhaseLayout,
		Kind:    KindSizeMismatch,
		GoType:  goType,
		WitType: witType,
		Detail:  fmt.Sprintf("size %d, reference size %d", got, want),
		Value:   got,
	}
}

// AlignMismatch creates a layout alignment mismatch error
func AlignMismatch(goType, witType string, got, want uintptr) *Error {
	return &Error{
		Phase:   PhaseLayout,
		Kind:    KindAlignMismatch,
		GoType:  goType,
		WitType: witType,
		Detail:  fmt.Sprintf("alignment %d, reference alignment %d", got, want),
		Value:   got,
	}
}

// OffsetMismatch creates a field offset mismatch error
func OffsetMismatch(goType string, path []string, got, want uintptr) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindOffsetMismatch,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf("offset %d, reference offset %d", got, want),
		Value:  got,
	}
}

// NotTriviallyCopyable creates an error for a by-value mirror type that
// holds references.
func NotTriviallyCopyable(goType string, path []string, what string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindNotTriviallyCopyable,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf("contains %s", what),
	}
}

// Bridge constructors

// FactoryFailed creates an error for a failed managed-side factory
func FactoryFailed(goType string, cause error) *Error {
	detail := "factory returned nil"
	if cause != nil {
		detail = "factory failed"
	}
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindFactory,
		GoType: goType,
		Detail: detail,
		Cause:  cause,
	}
}

// Closed creates an error for use of a destroyed wrapper
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// OutstandingBorrow creates an error for destruction while a borrow is live
func OutstandingBorrow(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutstandingBorrow,
		Detail: fmt.Sprintf("%s has an outstanding borrow", what),
	}
}

// InvalidHandle creates an error for an unknown or dropped handle
func InvalidHandle(phase Phase, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %d not found", handle),
		Value:  handle,
	}
}

// Forwarded wraps a failure signaled by managed-side logic
func Forwarded(method string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindForwarded,
		Path:   []string{method},
		Detail: "managed logic failed",
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		WitType: witType,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates a guest instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindInstantiation,
		Detail: "instantiate guest",
		Cause:  cause,
	}
}

// Trap creates an error for a guest call that trapped
func Trap(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindTrap,
		Path:   []string{export},
		Detail: "guest trapped",
		Cause:  cause,
	}
}

// Load creates a guest loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a declaration parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// MissingExportsError is returned when a guest lacks exports the host requires
type MissingExportsError struct {
	Module  string
	Exports []string
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[host] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("guest %q is missing %d export(s):", e.Module, len(e.Exports)))
	for _, name := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	if _, ok := target.(*MissingExportsError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseHost && t.Kind == KindMissingExport
	}
	return false
}
