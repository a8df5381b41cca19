package mirror

import (
	"testing"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/layout"
)

type polygon5 struct {
	d uint32
}

type polygon6 struct {
	d [3]uint32
}

var polygonDecl = Declaration{
	Name: "Polygon",
	Layouts: []Versioned{
		{Since: "6.0.0", Reference: layout.MustParse("record", layout.Field{Name: "d", Type: "ptr[3]"})},
		{Since: "5.0.0", Reference: layout.MustParse("record", layout.Field{Name: "d", Type: "ptr"})},
	},
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"6.2":     "v6.2.0",
		"v5.15.6": "v5.15.6",
		" 6 ":     "v6.0.0",
		"":        "",
		"six":     "",
		"6.x":     "",
	}
	for in, want := range tests {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSelect(t *testing.T) {
	calc := layout.NewCalculator()
	tests := []struct {
		version  string
		wantSize uint32
		wantErr  bool
	}{
		{version: "", wantSize: 12},
		{version: "5.15.6", wantSize: 4},
		{version: "5.0", wantSize: 4},
		{version: "6.0.0", wantSize: 12},
		{version: "6.7.2", wantSize: 12},
		{version: "4.8.7", wantErr: true},
		{version: "latest", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			ref, err := polygonDecl.Select(tt.version)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Select(%q) should fail", tt.version)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := calc.Calculate(ref).Size; got != tt.wantSize {
				t.Errorf("size = %d, want %d", got, tt.wantSize)
			}
		})
	}
}

func TestSelect_Unversioned(t *testing.T) {
	d := Declaration{Name: "Date", Reference: dateRef}
	for _, v := range []string{"", "5.0.0", "anything"} {
		ref, err := d.Select(v)
		if err != nil || ref != dateRef {
			t.Errorf("Select(%q) = %v, %v", v, ref, err)
		}
	}
}

func TestSelect_InvalidSince(t *testing.T) {
	d := Declaration{Name: "Broken", Layouts: []Versioned{{Since: "soon", Reference: dateRef}}}
	if _, err := d.Select(""); err == nil {
		t.Fatal("invalid since should fail")
	}
}

func TestVerify_Profiles(t *testing.T) {
	tests := []struct {
		name    string
		mirror  Mirror
		version string
		ok      bool
	}{
		{"qt6 layout on 6.x", Of[polygon6](polygonDecl), "6.5.0", true},
		{"qt6 layout on 5.x", Of[polygon6](polygonDecl), "5.15.6", false},
		{"qt5 layout on 5.x", Of[polygon5](polygonDecl), "5.15.6", true},
		{"qt5 layout on newest", Of[polygon5](polygonDecl), "", false},
		{"below oldest", Of[polygon5](polygonDecl), "4.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewVerifier(WithFrameworkVersion(tt.version)).Check(tt.mirror)
			if res.OK() != tt.ok {
				t.Errorf("OK() = %v, want %v (%v)", res.OK(), tt.ok, res.Problems)
			}
			if !tt.ok && tt.version == "5.15.6" && !hasKind(res.Problems, errors.KindSizeMismatch) {
				t.Errorf("expected size mismatch, got %v", res.Problems)
			}
		})
	}
}
