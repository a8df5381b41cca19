package abi

import (
	"errors"
	"os"
	"testing"
	"time"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	bridgeerrors "github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/mirror"
)

type sliceMemory []byte

func (m sliceMemory) Read(offset, n uint32) ([]byte, bool) {
	if uint64(offset)+uint64(n) > uint64(len(m)) {
		return nil, false
	}
	return m[offset : offset+n], true
}

func (m sliceMemory) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(m)) {
		return false
	}
	copy(m[offset:], data)
	return true
}

func (m sliceMemory) Size() uint32 {
	return uint32(len(m))
}

func TestDateLayout(t *testing.T) {
	if got := unsafe.Sizeof(Date{}); got != 8 {
		t.Errorf("Sizeof(Date) = %d, want 8", got)
	}
	if got := unsafe.Alignof(Date{}); got != 8 {
		t.Errorf("Alignof(Date) = %d, want 8", got)
	}

	orig := NewDate(2024, 2, 29)
	cp := orig
	cp = cp.AddDays(1)
	if orig != NewDate(2024, 2, 29) {
		t.Errorf("mutating copy changed original: %v", orig)
	}
	if cp != NewDate(2024, 3, 1) {
		t.Errorf("copy = %v, want 2024-03-01", cp)
	}
}

func TestMirrorsVerify(t *testing.T) {
	v := mirror.NewVerifier()
	for _, m := range Mirrors() {
		t.Run(m.Name, func(t *testing.T) {
			res := v.Check(m)
			if !res.OK() {
				t.Fatalf("mirror %s: %v", m, res.Problems)
			}
		})
	}
}

func TestMirrorsPolygonProfiles(t *testing.T) {
	var poly mirror.Mirror
	for _, m := range Mirrors() {
		if m.Name == "Polygon" {
			poly = m
		}
	}
	if err := mirror.NewVerifier(mirror.WithFrameworkVersion("6.2.4")).Verify(poly); err != nil {
		t.Fatalf("Polygon against 6.x: %v", err)
	}
	err := mirror.NewVerifier(mirror.WithFrameworkVersion("5.15.6")).Verify(poly)
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseLayout, Kind: bridgeerrors.KindSizeMismatch}) {
		t.Fatalf("Polygon against 5.x: got %v, want size mismatch", err)
	}
}

func TestAssertionSourceMatchesCommittedFile(t *testing.T) {
	want, err := os.ReadFile("zz_layout_assert.go")
	if err != nil {
		t.Fatalf("read committed assertions: %v", err)
	}
	got, err := mirror.AssertionSource("abi", "", Mirrors()...)
	if err != nil {
		t.Fatalf("AssertionSource: %v", err)
	}
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Errorf("zz_layout_assert.go is stale; run go generate (-committed +generated):\n%s", diff)
	}
}

func TestTypes(t *testing.T) {
	types := Types()
	if len(types) != len(mirrors) {
		t.Fatalf("Types() has %d entries, want %d", len(types), len(mirrors))
	}
	if types["ModelIndex"].Size() != 16 {
		t.Errorf("ModelIndex size = %d", types["ModelIndex"].Size())
	}
}

func TestLoadStore(t *testing.T) {
	mem := make(sliceMemory, 64)

	idx := ModelIndex{Row: 3, Column: 1, ID: 0xAABB, Model: 7}
	if err := Store(mem, 16, idx); err != nil {
		t.Fatalf("Store: %v", err)
	}
	// little-endian row at offset 16
	if mem[16] != 3 || mem[20] != 1 || mem[24] != 0xBB || mem[28] != 7 {
		t.Errorf("unexpected bytes: % x", mem[16:32])
	}
	got, err := Load[ModelIndex](mem, 16)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != idx {
		t.Errorf("Load = %+v, want %+v", got, idx)
	}

	v := FloatVariant(2.5)
	if err := Store(mem, 32, v); err != nil {
		t.Fatalf("Store variant: %v", err)
	}
	back, err := Load[Variant](mem, 32)
	if err != nil {
		t.Fatalf("Load variant: %v", err)
	}
	if f, ok := back.Float(); !ok || f != 2.5 {
		t.Errorf("variant round trip = %v", back)
	}

	// The loaded value is a copy: guest writes do not alias it.
	mem[16] = 9
	if got.Row != 3 {
		t.Errorf("loaded value aliases guest memory")
	}
}

func TestLoadStoreErrors(t *testing.T) {
	mem := make(sliceMemory, 32)

	_, err := Load[Date](mem, 4)
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseDispatch, Kind: bridgeerrors.KindInvalidInput}) {
		t.Errorf("misaligned Load: got %v", err)
	}

	err = Store(mem, 24, IntVariant(1))
	if !errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseDispatch, Kind: bridgeerrors.KindOutOfBounds}) {
		t.Errorf("out of bounds Store: got %v", err)
	}

	_, err = Load[Rect](mem, 0xFFFFFFFC)
	if err == nil {
		t.Error("Load past end should fail")
	}
}

func TestSizeAlignOf(t *testing.T) {
	if SizeOf[Variant]() != 16 || AlignOf[Variant]() != 8 {
		t.Errorf("Variant: %d/%d", SizeOf[Variant](), AlignOf[Variant]())
	}
	if SizeOf[Point]() != 8 || AlignOf[Point]() != 4 {
		t.Errorf("Point: %d/%d", SizeOf[Point](), AlignOf[Point]())
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		y, m, d int
		jd      int64
	}{
		{2000, 1, 1, 2451545},
		{1970, 1, 1, 2440588},
		{1582, 10, 15, 2299161},
		{-4714, 11, 24, 0},
	}
	for _, tt := range tests {
		d := NewDate(tt.y, tt.m, tt.d)
		if d.JulianDay() != tt.jd {
			t.Errorf("NewDate(%d,%d,%d).JulianDay() = %d, want %d", tt.y, tt.m, tt.d, d.JulianDay(), tt.jd)
		}
		y, m, day := d.YMD()
		if y != tt.y || m != tt.m || day != tt.d {
			t.Errorf("YMD of %d = %d-%d-%d", tt.jd, y, m, day)
		}
	}

	for _, bad := range [][3]int{{2023, 2, 29}, {2024, 13, 1}, {0, 1, 1}, {2024, 4, 31}} {
		if NewDate(bad[0], bad[1], bad[2]).IsValid() {
			t.Errorf("NewDate(%v) should be null", bad)
		}
	}

	a, b := NewDate(2024, 1, 1), NewDate(2024, 12, 31)
	if a.DaysTo(b) != 365 || b.DaysTo(a) != -365 {
		t.Errorf("DaysTo = %d / %d", a.DaysTo(b), b.DaysTo(a))
	}
	if a.DaysTo(NullDate()) != 0 {
		t.Error("DaysTo null should be 0")
	}
	if NullDate().AddDays(3).IsValid() {
		t.Error("AddDays on null date should stay null")
	}
}

func TestDateFormatParse(t *testing.T) {
	d, err := ParseDate("02.01.2006", "29.02.2024")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := d.String(); got != "2024-02-29" {
		t.Errorf("String() = %q", got)
	}
	if got := d.Format("Jan 2, 2006"); got != "Feb 29, 2024" {
		t.Errorf("Format = %q", got)
	}
	if NullDate().String() != "" {
		t.Error("null date should format empty")
	}
	if _, err := ParseDate(time.DateOnly, "not a date"); err == nil {
		t.Error("ParseDate should fail")
	}
	if DateOf(time.Date(2001, 9, 9, 23, 0, 0, 0, time.UTC)) != NewDate(2001, 9, 9) {
		t.Error("DateOf mismatch")
	}
}

func TestVariant(t *testing.T) {
	if InvalidVariant().IsValid() {
		t.Error("invalid variant reports valid")
	}
	if !BoolVariant(true).Bool() || BoolVariant(false).Bool() {
		t.Error("bool round trip")
	}
	if v, ok := IntVariant(-5).Int(); !ok || v != -5 {
		t.Errorf("int round trip = %d %v", v, ok)
	}
	if _, ok := UintVariant(1 << 63).Int(); ok {
		t.Error("uint overflow should not convert to int")
	}
	if f, ok := IntVariant(3).Float(); !ok || f != 3 {
		t.Errorf("int to float = %v %v", f, ok)
	}
	d := NewDate(1999, 12, 31)
	if got, ok := DateVariant(d).Date(); !ok || got != d {
		t.Errorf("date round trip = %v", got)
	}
	p := Point{X: -3, Y: 7}
	if got, ok := PointVariant(p).Point(); !ok || got != p {
		t.Errorf("point round trip = %v", got)
	}

	for _, tc := range []struct {
		v    Variant
		want string
	}{
		{InvalidVariant(), "<invalid>"},
		{BoolVariant(true), "true"},
		{IntVariant(-2), "-2"},
		{FloatVariant(0.5), "0.5"},
		{DateVariant(d), "1999-12-31"},
		{PointVariant(p), "(-3,7)"},
	} {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestModelIndexAndRect(t *testing.T) {
	if InvalidIndex().IsValid() {
		t.Error("invalid index reports valid")
	}
	i := Index(2, 0, 5)
	if !i.IsValid() {
		t.Error("index should be valid")
	}
	if s := i.Sibling(3, 1); s.Row != 3 || s.Column != 1 || s.Model != 5 {
		t.Errorf("Sibling = %+v", s)
	}
	if InvalidIndex().Sibling(0, 0).IsValid() {
		t.Error("sibling of invalid index should be invalid")
	}

	r := NewRect(10, 20, 5, 4)
	if r.Width() != 5 || r.Height() != 4 || r.X2 != 14 || r.Y2 != 23 {
		t.Errorf("NewRect = %+v", r)
	}
	if !r.Contains(Point{X: 14, Y: 23}) || r.Contains(Point{X: 15, Y: 20}) {
		t.Error("Contains edge cases")
	}
	if !NewRect(0, 0, 0, 0).IsEmpty() {
		t.Error("zero-size rect should be empty")
	}
}
