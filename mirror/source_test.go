package mirror

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/wasm-bridge/errors"
)

const dateSource = `package abi

type goodDate struct {
	jd int64
}
`

func assertions(t *testing.T, version string, mirrors ...Mirror) SourceFile {
	t.Helper()
	src, err := AssertionSource("abi", version, mirrors...)
	if err != nil {
		t.Fatal(err)
	}
	return SourceFile{Name: "zz_layout_assert.go", Src: src}
}

func TestAssertionSource(t *testing.T) {
	sf := assertions(t, "", Of[goodDate](Declaration{Name: "Date", Reference: dateRef}))
	src := string(sf.Src)

	for _, want := range []string{
		"// Code generated by mirrorcheck. DO NOT EDIT.",
		"package abi",
		"// goodDate ~ record{jd: s64}",
		"_ = x[unsafe.Sizeof(goodDate{})-8]",
		"_ = x[8-unsafe.Sizeof(goodDate{})]",
		"_ = x[unsafe.Alignof(goodDate{})-8]",
		"_ = x[8-unsafe.Alignof(goodDate{})]",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source lacks %q:\n%s", want, src)
		}
	}
}

func TestAssertionSource_Unnamed(t *testing.T) {
	m := Of[struct{ jd int64 }](Declaration{Name: "Date", Reference: dateRef})
	if _, err := AssertionSource("abi", "", m); err == nil {
		t.Fatal("anonymous struct mirror should be rejected")
	}
}

func TestTypeCheck(t *testing.T) {
	gen := assertions(t, "", Of[goodDate](Declaration{Name: "Date", Reference: dateRef}))

	tests := []struct {
		name   string
		goarch string
		decl   string
		kind   errors.Kind
	}{
		{
			name:   "matching",
			goarch: "amd64",
			decl:   dateSource,
		},
		{
			name:   "matching arm64",
			goarch: "arm64",
			decl:   dateSource,
		},
		{
			name:   "one byte larger",
			goarch: "amd64",
			decl:   "package abi\n\ntype goodDate struct {\n\tjd  int64\n\tpad byte\n}\n",
			kind:   errors.KindSizeMismatch,
		},
		{
			name:   "smaller",
			goarch: "amd64",
			decl:   "package abi\n\ntype goodDate struct {\n\tjd int32\n}\n",
			kind:   errors.KindSizeMismatch,
		},
		{
			name:   "weaker alignment",
			goarch: "amd64",
			decl:   "package abi\n\ntype goodDate struct {\n\tlo, hi uint32\n}\n",
			kind:   errors.KindAlignMismatch,
		},
		{
			name:   "int64 on 32-bit x86",
			goarch: "386",
			decl:   dateSource,
			kind:   errors.KindAlignMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TypeCheck(tt.goarch, SourceFile{Name: "date.go", Src: []byte(tt.decl)}, gen)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: tt.kind}) {
				t.Fatalf("err = %v, want layout %s", err, tt.kind)
			}
			if !strings.Contains(err.Error(), "zz_layout_assert.go") {
				t.Errorf("error should point at the assertion file: %v", err)
			}
		})
	}
}

func TestTypeCheck_Errors(t *testing.T) {
	if err := TypeCheck("pdp11", SourceFile{Name: "a.go", Src: []byte("package a\n")}); err == nil {
		t.Error("unknown GOARCH should fail")
	}
	if err := TypeCheck("amd64"); err == nil {
		t.Error("no files should fail")
	}
	err := TypeCheck("amd64", SourceFile{Name: "a.go", Src: []byte("package a\n\nimport \"fmt\"\n\nvar _ = fmt.Sprint\n")})
	if err == nil {
		t.Error("imports other than unsafe should fail")
	}
	err = TypeCheck("amd64", SourceFile{Name: "a.go", Src: []byte("package a\nfunc {")})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidData}) {
		t.Errorf("syntax error err = %v", err)
	}
}
