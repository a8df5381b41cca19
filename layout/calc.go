package layout

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.bytecodealliance.org/wit"
)

// Info is the computed layout of a reference type.
type Info struct {
	FieldOffs  map[string]uint32
	FieldOrder []string
	Size       uint32
	Align      uint32
}

// Calculator computes layouts and caches results per type definition.
// A Calculator is safe for concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]Info
	mu    sync.Mutex
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	c.mu.Lock()
	cached, ok := c.cache[t]
	c.mu.Unlock()
	if ok {
		return cached
	}

	var info Info

	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case *wit.Tuple:
		info = c.calculateTuple(kind)
	case *wit.Enum:
		size := DiscriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Flags:
		info = calculateFlags(len(kind.Flags))
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.mu.Lock()
	c.cache[t] = info
	c.mu.Unlock()
	return info
}

func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint32, len(r.Fields))
	order := make([]string, 0, len(r.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)

		offset = AlignTo(offset, fieldLayout.Align)
		fieldOffs[field.Name] = offset
		order = append(order, field.Name)

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}

		offset += fieldLayout.Size
	}

	return Info{
		Size:       AlignTo(offset, maxAlign),
		Align:      maxAlign,
		FieldOffs:  fieldOffs,
		FieldOrder: order,
	}
}

func (c *Calculator) calculateTuple(t *wit.Tuple) Info {
	if len(t.Types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint32, len(t.Types))
	order := make([]string, 0, len(t.Types))
	maxAlign := uint32(1)
	offset := uint32(0)

	for i, typ := range t.Types {
		elemLayout := c.Calculate(typ)
		offset = AlignTo(offset, elemLayout.Align)

		name := strconv.Itoa(i)
		fieldOffs[name] = offset
		order = append(order, name)

		if elemLayout.Align > maxAlign {
			maxAlign = elemLayout.Align
		}

		offset += elemLayout.Size
	}

	return Info{
		Size:       AlignTo(offset, maxAlign),
		Align:      maxAlign,
		FieldOffs:  fieldOffs,
		FieldOrder: order,
	}
}

func calculateFlags(numFlags int) Info {
	switch {
	case numFlags == 0:
		return Info{Size: 0, Align: 1}
	case numFlags <= 8:
		return Info{Size: 1, Align: 1}
	case numFlags <= 16:
		return Info{Size: 2, Align: 2}
	case numFlags <= 32:
		return Info{Size: 4, Align: 4}
	case numFlags <= 64:
		return Info{Size: 8, Align: 8}
	}
	numU32s := (numFlags + 31) / 32
	return Info{Size: uint32(numU32s * 4), Align: 4}
}

func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func DiscriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

// Field is one entry of a reference layout declaration.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Primitive maps a primitive field name to its WIT type.
func Primitive(name string) (wit.Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bool":
		return wit.Bool{}, nil
	case "s8", "i8":
		return wit.S8{}, nil
	case "u8":
		return wit.U8{}, nil
	case "s16", "i16":
		return wit.S16{}, nil
	case "u16":
		return wit.U16{}, nil
	case "s32", "i32":
		return wit.S32{}, nil
	case "u32":
		return wit.U32{}, nil
	case "s64", "i64":
		return wit.S64{}, nil
	case "u64":
		return wit.U64{}, nil
	case "f32":
		return wit.F32{}, nil
	case "f64":
		return wit.F64{}, nil
	case "char":
		return wit.Char{}, nil
	case "ptr", "usize":
		return wit.U32{}, nil
	}
	return nil, fmt.Errorf("unknown primitive %q", name)
}

// Parse builds a reference type from a primitive field list. A field type
// may carry an array suffix ("u32[3]") which expands to consecutive fields.
func Parse(kind string, fields []Field) (*wit.TypeDef, error) {
	switch kind {
	case "", "record":
		rec := &wit.Record{Fields: make([]wit.Field, 0, len(fields))}
		for _, f := range fields {
			expanded, err := expand(f)
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, expanded...)
		}
		return &wit.TypeDef{Kind: rec}, nil
	case "tuple":
		tup := &wit.Tuple{Types: make([]wit.Type, 0, len(fields))}
		for _, f := range fields {
			expanded, err := expand(f)
			if err != nil {
				return nil, err
			}
			for _, e := range expanded {
				tup.Types = append(tup.Types, e.Type)
			}
		}
		return &wit.TypeDef{Kind: tup}, nil
	}
	return nil, fmt.Errorf("unknown layout kind %q", kind)
}

// MustParse is like Parse but panics on error. Intended for package-level
// reference declarations.
func MustParse(kind string, fields ...Field) *wit.TypeDef {
	td, err := Parse(kind, fields)
	if err != nil {
		panic(err)
	}
	return td
}

func expand(f Field) ([]wit.Field, error) {
	base, count := f.Type, 1
	if open := strings.IndexByte(f.Type, '['); open >= 0 && strings.HasSuffix(f.Type, "]") {
		n, err := strconv.Atoi(f.Type[open+1 : len(f.Type)-1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("field %q: invalid array length in %q", f.Name, f.Type)
		}
		base, count = f.Type[:open], n
	}

	typ, err := Primitive(base)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}

	if count == 1 {
		return []wit.Field{{Name: f.Name, Type: typ}}, nil
	}
	out := make([]wit.Field, count)
	for i := range out {
		out[i] = wit.Field{Name: f.Name + strconv.Itoa(i), Type: typ}
	}
	return out, nil
}

// Describe renders a reference type as a compact WIT-like string.
func Describe(t wit.Type) string {
	switch typ := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.S8:
		return "s8"
	case wit.U8:
		return "u8"
	case wit.S16:
		return "s16"
	case wit.U16:
		return "u16"
	case wit.S32:
		return "s32"
	case wit.U32:
		return "u32"
	case wit.S64:
		return "s64"
	case wit.U64:
		return "u64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case *wit.TypeDef:
		switch kind := typ.Kind.(type) {
		case *wit.Record:
			parts := make([]string, len(kind.Fields))
			for i, f := range kind.Fields {
				parts[i] = f.Name + ": " + Describe(f.Type)
			}
			return "record{" + strings.Join(parts, ", ") + "}"
		case *wit.Tuple:
			parts := make([]string, len(kind.Types))
			for i, e := range kind.Types {
				parts[i] = Describe(e)
			}
			return "tuple<" + strings.Join(parts, ", ") + ">"
		case *wit.Enum:
			return fmt.Sprintf("enum(%d)", len(kind.Cases))
		case *wit.Flags:
			return fmt.Sprintf("flags(%d)", len(kind.Flags))
		case wit.Type:
			return Describe(kind)
		}
	}
	return "unknown"
}
