package abi

import (
	"reflect"

	"github.com/wippyai/wasm-bridge/layout"
	"github.com/wippyai/wasm-bridge/mirror"
)

//go:generate go run ../cmd/mirrorcheck -pkg abi -emit zz_layout_assert.go

var mirrors = []mirror.Mirror{
	mirror.Of[Date](mirror.Declaration{
		Name:      "Date",
		Reference: layout.MustParse("record", layout.Field{Name: "jd", Type: "s64"}),
		ByValue:   true,
	}),
	mirror.Of[ModelIndex](mirror.Declaration{
		Name: "ModelIndex",
		Reference: layout.MustParse("record",
			layout.Field{Name: "row", Type: "s32"},
			layout.Field{Name: "column", Type: "s32"},
			layout.Field{Name: "id", Type: "ptr"},
			layout.Field{Name: "model", Type: "ptr"},
		),
		ByValue: true,
	}),
	mirror.Of[Point](mirror.Declaration{
		Name: "Point",
		Reference: layout.MustParse("record",
			layout.Field{Name: "x", Type: "s32"},
			layout.Field{Name: "y", Type: "s32"},
		),
		ByValue: true,
	}),
	mirror.Of[Rect](mirror.Declaration{
		Name: "Rect",
		Reference: layout.MustParse("record",
			layout.Field{Name: "x1", Type: "s32"},
			layout.Field{Name: "y1", Type: "s32"},
			layout.Field{Name: "x2", Type: "s32"},
			layout.Field{Name: "y2", Type: "s32"},
		),
		ByValue: true,
	}),
	mirror.Of[Variant](mirror.Declaration{
		Name: "Variant",
		Reference: layout.MustParse("record",
			layout.Field{Name: "tag", Type: "u32"},
			layout.Field{Name: "payload", Type: "u64"},
		),
		ByValue: true,
	}),
	mirror.Of[Polygon](mirror.Declaration{
		Name: "Polygon",
		Layouts: []mirror.Versioned{
			{Since: "5.0.0", Reference: layout.MustParse("record", layout.Field{Name: "d", Type: "ptr"})},
			{Since: "6.0.0", Reference: layout.MustParse("record", layout.Field{Name: "d", Type: "ptr[3]"})},
		},
	}),
}

func init() {
	mirror.MustVerify(mirrors...)
}

// Mirrors returns the declarations of every mirror type in this package.
func Mirrors() []mirror.Mirror {
	out := make([]mirror.Mirror, len(mirrors))
	copy(out, mirrors)
	return out
}

// Types returns the mirror Go types keyed by declaration name.
func Types() map[string]reflect.Type {
	out := make(map[string]reflect.Type, len(mirrors))
	for _, m := range mirrors {
		out[m.Name] = m.GoType
	}
	return out
}
