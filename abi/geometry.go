package abi

// Point mirrors the guest's {x: s32, y: s32} point.
type Point struct {
	X int32
	Y int32
}

// Rect mirrors the guest's rectangle, stored as inclusive corner
// coordinates {x1, y1, x2, y2: s32}.
type Rect struct {
	X1 int32
	Y1 int32
	X2 int32
	Y2 int32
}

// NewRect returns the rectangle at x, y with the given size.
func NewRect(x, y, width, height int32) Rect {
	return Rect{X1: x, Y1: y, X2: x + width - 1, Y2: y + height - 1}
}

func (r Rect) Width() int32 {
	return r.X2 - r.X1 + 1
}

func (r Rect) Height() int32 {
	return r.Y2 - r.Y1 + 1
}

func (r Rect) IsEmpty() bool {
	return r.X1 > r.X2 || r.Y1 > r.Y2
}

func (r Rect) Contains(p Point) bool {
	return !r.IsEmpty() && p.X >= r.X1 && p.X <= r.X2 && p.Y >= r.Y1 && p.Y <= r.Y2
}

// Polygon is the guest's opaque point-vector header. Its layout depends on
// the framework major version: one pointer word before 6.0, and a
// {data ptr, begin ptr, size usize} triple since. Polygons are only ever
// passed by reference; the host never copies one.
type Polygon struct {
	d [3]uint32
}
