package mirror

import (
	"fmt"
	"reflect"
	"strconv"
	"unsafe"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/layout"
)

// Result is the outcome of verifying one mirror.
type Result struct {
	Mirror   Mirror
	Problems []*errors.Error
	Info     layout.Info
	Size     uintptr
	Align    uintptr
}

// OK reports whether the mirror matched its reference layout.
func (r Result) OK() bool {
	return len(r.Problems) == 0
}

// Err returns the first problem, or nil.
func (r Result) Err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	return r.Problems[0]
}

// Verifier checks mirror types against reference layouts.
type Verifier struct {
	calc         *layout.Calculator
	version      string
	littleEndian bool
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithFrameworkVersion selects which versioned layouts apply.
func WithFrameworkVersion(version string) VerifierOption {
	return func(v *Verifier) {
		v.version = version
	}
}

// WithByteOrder overrides host byte order detection.
func WithByteOrder(littleEndian bool) VerifierOption {
	return func(v *Verifier) {
		v.littleEndian = littleEndian
	}
}

// NewVerifier creates a verifier for the running host.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		calc:         layout.NewCalculator(),
		littleEndian: hostLittleEndian(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check verifies m and reports every problem found.
func (v *Verifier) Check(m Mirror) Result {
	res := Result{Mirror: m}
	if m.GoType == nil {
		res.Problems = append(res.Problems, errors.InvalidInput(errors.PhaseLayout, "mirror has no Go type"))
		return res
	}

	res.Size = m.GoType.Size()
	res.Align = uintptr(m.GoType.Align())
	goName := m.GoType.String()

	ref, err := m.Select(v.version)
	if err != nil {
		res.Problems = append(res.Problems, errors.New(errors.PhaseLayout, errors.KindNotFound).
			GoType(goName).
			Detail("no reference layout").
			Cause(err).
			Build())
		return res
	}
	refName := layout.Describe(ref)
	res.Info = v.calc.Calculate(ref)

	if !v.littleEndian {
		res.Problems = append(res.Problems, errors.New(errors.PhaseLayout, errors.KindByteOrder).
			GoType(goName).
			Detail("host is big-endian, guest memory is little-endian").
			Build())
	}

	if res.Size != uintptr(res.Info.Size) {
		res.Problems = append(res.Problems, errors.SizeMismatch(goName, refName, res.Size, uintptr(res.Info.Size)))
	}
	if res.Align != uintptr(res.Info.Align) {
		res.Problems = append(res.Problems, errors.AlignMismatch(goName, refName, res.Align, uintptr(res.Info.Align)))
	}

	res.Problems = append(res.Problems, v.checkOffsets(m.GoType, ref)...)

	if m.ByValue {
		if p := trivialCopy(goName, m.GoType, nil); p != nil {
			res.Problems = append(res.Problems, p)
		}
	}

	Logger().Debug("mirror verified",
		zap.String("go_type", goName),
		zap.String("reference", refName),
		zap.Uintptr("size", res.Size),
		zap.Uintptr("align", res.Align),
		zap.Int("problems", len(res.Problems)),
	)
	return res
}

// Verify returns the first layout problem of m, or nil.
func (v *Verifier) Verify(m Mirror) error {
	return v.Check(m).Err()
}

// Verify checks m on the running host with the default framework profile.
func Verify(m Mirror) error {
	return NewVerifier().Verify(m)
}

// MustVerify panics on the first mirror that does not match its reference
// layout. Call it from init in the package that owns the mirror types.
func MustVerify(mirrors ...Mirror) {
	v := NewVerifier()
	for _, m := range mirrors {
		if err := v.Verify(m); err != nil {
			panic(err)
		}
	}
}

type leaf struct {
	name   string
	offset uintptr
	size   uintptr
}

// checkOffsets compares leaf field offsets when the Go type and the
// reference flatten to the same number of primitive fields.
func (v *Verifier) checkOffsets(goType reflect.Type, ref wit.Type) []*errors.Error {
	goLeaves := flattenGo(goType, "", 0, nil)
	refLeaves := v.flattenRef(ref, "", 0, nil)
	if len(goLeaves) != len(refLeaves) || len(goLeaves) < 2 {
		return nil
	}

	var problems []*errors.Error
	for i := range goLeaves {
		g, r := goLeaves[i], refLeaves[i]
		if g.offset != r.offset {
			problems = append(problems, errors.OffsetMismatch(goType.String(), []string{goType.Name(), g.name}, g.offset, r.offset))
			continue
		}
		if g.size != r.size {
			problems = append(problems, errors.New(errors.PhaseLayout, errors.KindSizeMismatch).
				Path(goType.Name(), g.name).
				GoType(goType.String()).
				WitType(r.name).
				Detail("field size %d, reference field size %d", g.size, r.size).
				Build())
		}
	}
	return problems
}

func flattenGo(t reflect.Type, prefix string, base uintptr, out []leaf) []leaf {
	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Name == "_" {
				continue
			}
			out = flattenGo(f.Type, join(prefix, f.Name), base+f.Offset, out)
		}
		return out
	case reflect.Array:
		elem := t.Elem()
		for i := 0; i < t.Len(); i++ {
			out = flattenGo(elem, prefix+strconv.Itoa(i), base+uintptr(i)*elem.Size(), out)
		}
		return out
	}
	return append(out, leaf{name: prefix, offset: base, size: t.Size()})
}

func (v *Verifier) flattenRef(t wit.Type, prefix string, base uintptr, out []leaf) []leaf {
	info := v.calc.Calculate(t)
	if td, ok := t.(*wit.TypeDef); ok {
		switch kind := td.Kind.(type) {
		case *wit.Record:
			for _, f := range kind.Fields {
				out = v.flattenRef(f.Type, join(prefix, f.Name), base+uintptr(info.FieldOffs[f.Name]), out)
			}
			return out
		case *wit.Tuple:
			for i, e := range kind.Types {
				name := strconv.Itoa(i)
				out = v.flattenRef(e, join(prefix, name), base+uintptr(info.FieldOffs[name]), out)
			}
			return out
		}
	}
	return append(out, leaf{name: layout.Describe(t), offset: base, size: uintptr(info.Size)})
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// trivialCopy reports the first field that would make a raw byte copy alias
// or share cleanup with the original.
func trivialCopy(root string, t reflect.Type, path []string) *errors.Error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return trivialCopy(root, t.Elem(), append(path, "[]"))
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if p := trivialCopy(root, f.Type, append(path, f.Name)); p != nil {
				return p
			}
		}
		return nil
	}
	return errors.NotTriviallyCopyable(root, path, fmt.Sprintf("%s (%s)", t.Kind(), t))
}

func hostLittleEndian() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}
