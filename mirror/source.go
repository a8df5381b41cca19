package mirror

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"runtime"
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/layout"
)

// AssertionSource generates a Go file for package pkg holding constant
// expression assertions for every mirror. Each assertion indexes a
// one-element array with the difference between the Go and reference
// size or alignment, so any drift is a compile error. All mirrors must be
// named types declared in pkg.
func AssertionSource(pkg, version string, mirrors ...Mirror) ([]byte, error) {
	calc := layout.NewCalculator()

	var b bytes.Buffer
	b.WriteString("// Code generated by mirrorcheck. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("import \"unsafe\"\n\n")
	b.WriteString("func _() {\n")
	b.WriteString("\t// A layout drift puts an index out of range or overflows uintptr.\n")
	b.WriteString("\tvar x [1]struct{}\n")

	for _, m := range mirrors {
		if m.GoType == nil || m.GoType.Name() == "" {
			return nil, errors.InvalidInput(errors.PhaseLayout, fmt.Sprintf("mirror %q is not a named type", m.Name))
		}
		ref, err := m.Select(version)
		if err != nil {
			return nil, errors.New(errors.PhaseLayout, errors.KindNotFound).
				GoType(m.GoType.String()).
				Cause(err).
				Build()
		}
		info := calc.Calculate(ref)
		name := m.GoType.Name()

		fmt.Fprintf(&b, "\t// %s ~ %s\n", name, layout.Describe(ref))
		fmt.Fprintf(&b, "\t_ = x[unsafe.Sizeof(%s{})-%d]\n", name, info.Size)
		fmt.Fprintf(&b, "\t_ = x[%d-unsafe.Sizeof(%s{})]\n", info.Size, name)
		fmt.Fprintf(&b, "\t_ = x[unsafe.Alignof(%s{})-%d]\n", name, info.Align)
		fmt.Fprintf(&b, "\t_ = x[%d-unsafe.Alignof(%s{})]\n", info.Align, name)
	}
	b.WriteString("}\n")

	out, err := format.Source(b.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLayout, errors.KindInvalidData, err, "format assertion source")
	}
	return out, nil
}

// SourceFile is one file of a package handed to TypeCheck.
type SourceFile struct {
	Name string
	Src  []byte
}

// TypeCheck type-checks a single package made of files for goarch (the
// running GOARCH when empty), exactly as the compiler front end would.
// Only the unsafe package may be imported. A failing layout assertion
// surfaces as a layout error.
func TypeCheck(goarch string, files ...SourceFile) error {
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	sizes := types.SizesFor("gc", goarch)
	if sizes == nil {
		return errors.InvalidInput(errors.PhaseLayout, fmt.Sprintf("unknown GOARCH %q", goarch))
	}

	fset := token.NewFileSet()
	parsed := make([]*ast.File, 0, len(files))
	lines := make(map[string][]string, len(files))
	for _, sf := range files {
		f, err := parser.ParseFile(fset, sf.Name, sf.Src, parser.AllErrors)
		if err != nil {
			return errors.ParseFailed(sf.Name, err)
		}
		parsed = append(parsed, f)
		lines[sf.Name] = strings.Split(string(sf.Src), "\n")
	}
	if len(parsed) == 0 {
		return errors.InvalidInput(errors.PhaseLayout, "no files to check")
	}

	var typeErrs []types.Error
	conf := types.Config{
		Importer: unsafeOnly{},
		Sizes:    sizes,
		Error: func(err error) {
			if te, ok := err.(types.Error); ok {
				typeErrs = append(typeErrs, te)
			}
		},
	}
	_, err := conf.Check(parsed[0].Name.Name, fset, parsed, nil)
	if err == nil {
		return nil
	}
	if len(typeErrs) == 0 {
		return errors.Wrap(errors.PhaseLayout, errors.KindInvalidData, err, "type check")
	}

	first := typeErrs[0]
	pos := fset.Position(first.Pos)
	kind := errors.KindInvalidData
	var line string
	if ls := lines[pos.Filename]; pos.Line > 0 && pos.Line <= len(ls) {
		line = strings.TrimSpace(ls[pos.Line-1])
	}
	switch {
	case strings.Contains(line, "unsafe.Sizeof"):
		kind = errors.KindSizeMismatch
	case strings.Contains(line, "unsafe.Alignof"):
		kind = errors.KindAlignMismatch
	}

	return errors.New(errors.PhaseLayout, kind).
		Detail("%s: %s", pos, line).
		Cause(err).
		Build()
}

type unsafeOnly struct{}

func (unsafeOnly) Import(path string) (*types.Package, error) {
	if path == "unsafe" {
		return types.Unsafe, nil
	}
	return nil, fmt.Errorf("import %q not available to layout checks", path)
}
