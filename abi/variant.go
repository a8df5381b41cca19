package abi

import (
	"fmt"
	"math"
)

// VariantKind tags the payload of a Variant.
type VariantKind uint32

const (
	KindInvalid VariantKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindDate
	KindPoint
)

func (k VariantKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindPoint:
		return "point"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Variant is a tagged scalar mirroring the guest's
// {tag: u32, payload: u64} record (16 bytes, 8-aligned).
type Variant struct {
	Kind VariantKind
	_    uint32
	Bits uint64
}

// InvalidVariant returns the variant that holds no value.
func InvalidVariant() Variant {
	return Variant{}
}

func BoolVariant(b bool) Variant {
	var bits uint64
	if b {
		bits = 1
	}
	return Variant{Kind: KindBool, Bits: bits}
}

func IntVariant(v int64) Variant {
	return Variant{Kind: KindInt, Bits: uint64(v)}
}

func UintVariant(v uint64) Variant {
	return Variant{Kind: KindUint, Bits: v}
}

func FloatVariant(v float64) Variant {
	return Variant{Kind: KindFloat, Bits: math.Float64bits(v)}
}

func DateVariant(d Date) Variant {
	return Variant{Kind: KindDate, Bits: uint64(d.jd)}
}

func PointVariant(p Point) Variant {
	return Variant{Kind: KindPoint, Bits: uint64(uint32(p.X)) | uint64(uint32(p.Y))<<32}
}

func (v Variant) IsValid() bool {
	return v.Kind != KindInvalid
}

// Bool reports the boolean value; false unless Kind is KindBool.
func (v Variant) Bool() bool {
	return v.Kind == KindBool && v.Bits != 0
}

// Int converts numeric kinds to int64.
func (v Variant) Int() (int64, bool) {
	switch v.Kind {
	case KindInt:
		return int64(v.Bits), true
	case KindUint:
		if v.Bits > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Bits), true
	case KindBool:
		return int64(v.Bits), true
	}
	return 0, false
}

func (v Variant) Float() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return math.Float64frombits(v.Bits), true
	case KindInt:
		return float64(int64(v.Bits)), true
	case KindUint:
		return float64(v.Bits), true
	}
	return 0, false
}

func (v Variant) Date() (Date, bool) {
	if v.Kind != KindDate {
		return NullDate(), false
	}
	return Date{jd: int64(v.Bits)}, true
}

func (v Variant) Point() (Point, bool) {
	if v.Kind != KindPoint {
		return Point{}, false
	}
	return Point{X: int32(uint32(v.Bits)), Y: int32(uint32(v.Bits >> 32))}, true
}

func (v Variant) String() string {
	switch v.Kind {
	case KindInvalid:
		return "<invalid>"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case KindInt:
		return fmt.Sprintf("%d", int64(v.Bits))
	case KindUint:
		return fmt.Sprintf("%d", v.Bits)
	case KindFloat:
		return fmt.Sprintf("%g", math.Float64frombits(v.Bits))
	case KindDate:
		d, _ := v.Date()
		return d.String()
	case KindPoint:
		p, _ := v.Point()
		return fmt.Sprintf("(%d,%d)", p.X, p.Y)
	}
	return fmt.Sprintf("%s:%#x", v.Kind, v.Bits)
}
