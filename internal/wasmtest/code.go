package wasmtest

const (
	opEnd      = 0x0B
	opCall     = 0x10
	opDrop     = 0x1A
	opLocalGet = 0x20
	opLocalSet = 0x21
	opI32Load  = 0x28
	opI64Load  = 0x29
	opI32Store = 0x36
	opI64Store = 0x37
	opI32Const = 0x41
	opI64Const = 0x42
	opI32Add   = 0x6A
	opI64Add   = 0x7C
)

// Code is a function body under construction. Bytes appends the final end.
type Code struct {
	w writer
}

// Body starts a function body.
func Body() *Code {
	return &Code{}
}

func (c *Code) LocalGet(i uint32) *Code {
	c.w.byte(opLocalGet)
	c.w.u32(i)
	return c
}

func (c *Code) LocalSet(i uint32) *Code {
	c.w.byte(opLocalSet)
	c.w.u32(i)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.byte(opI32Const)
	c.w.s64(int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.w.byte(opI64Const)
	c.w.s64(v)
	return c
}

func (c *Code) Call(fn uint32) *Code {
	c.w.byte(opCall)
	c.w.u32(fn)
	return c
}

func (c *Code) Drop() *Code {
	c.w.byte(opDrop)
	return c
}

func (c *Code) I32Add() *Code {
	c.w.byte(opI32Add)
	return c
}

func (c *Code) I64Add() *Code {
	c.w.byte(opI64Add)
	return c
}

// I32Load loads from the address on the stack plus offset.
func (c *Code) I32Load(offset uint32) *Code {
	return c.mem(opI32Load, 2, offset)
}

func (c *Code) I64Load(offset uint32) *Code {
	return c.mem(opI64Load, 3, offset)
}

// I32Store stores the value on top of the stack at the address below it
// plus offset.
func (c *Code) I32Store(offset uint32) *Code {
	return c.mem(opI32Store, 2, offset)
}

func (c *Code) I64Store(offset uint32) *Code {
	return c.mem(opI64Store, 3, offset)
}

func (c *Code) mem(op byte, align, offset uint32) *Code {
	c.w.byte(op)
	c.w.u32(align)
	c.w.u32(offset)
	return c
}

// Bytes returns the encoded body, terminated by end.
func (c *Code) Bytes() []byte {
	out := make([]byte, len(c.w.buf), len(c.w.buf)+1)
	copy(out, c.w.buf)
	return append(out, opEnd)
}
