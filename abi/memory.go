package abi

import (
	"unsafe"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// Value is the set of mirror types that may be copied by value.
type Value interface {
	Date | ModelIndex | Point | Rect | Variant
}

// Load copies a T out of guest memory at offset. The bytes are reinterpreted
// in place; the layout assertions make that sound.
func Load[T Value](mem wasmbridge.Memory, offset uint32) (T, error) {
	var v T
	size, align := uint32(unsafe.Sizeof(v)), uint32(unsafe.Alignof(v))
	if offset%align != 0 {
		return v, misaligned(v, offset, align)
	}
	buf, ok := mem.Read(offset, size)
	if !ok {
		return v, outOfBounds(offset, size, mem.Size())
	}
	copy(bytesOf(&v), buf)
	return v, nil
}

// Store copies v into guest memory at offset.
func Store[T Value](mem wasmbridge.Memory, offset uint32, v T) error {
	size, align := uint32(unsafe.Sizeof(v)), uint32(unsafe.Alignof(v))
	if offset%align != 0 {
		return misaligned(v, offset, align)
	}
	if !mem.Write(offset, bytesOf(&v)) {
		return outOfBounds(offset, size, mem.Size())
	}
	return nil
}

// SizeOf returns the guest size of T.
func SizeOf[T Value]() uint32 {
	var v T
	return uint32(unsafe.Sizeof(v))
}

// AlignOf returns the guest alignment of T.
func AlignOf[T Value]() uint32 {
	var v T
	return uint32(unsafe.Alignof(v))
}

func bytesOf[T Value](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

func misaligned(v any, offset, align uint32) error {
	return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
		GoType(typeName(v)).
		Detail("guest offset %#x is not %d-byte aligned", offset, align).
		Value(offset).
		Build()
}

func outOfBounds(offset, size, memSize uint32) error {
	return errors.New(errors.PhaseDispatch, errors.KindOutOfBounds).
		Detail("guest memory access [%#x, %#x) exceeds size %#x", offset, uint64(offset)+uint64(size), memSize).
		Value(offset).
		Build()
}

func typeName(v any) string {
	switch v.(type) {
	case Date:
		return "abi.Date"
	case ModelIndex:
		return "abi.ModelIndex"
	case Point:
		return "abi.Point"
	case Rect:
		return "abi.Rect"
	case Variant:
		return "abi.Variant"
	}
	return "unknown"
}
