// Package wasmtest assembles small core WebAssembly modules for tests.
//
// It covers only what guest fixtures need: function imports, one memory,
// function and memory exports, and function bodies written with Code.
package wasmtest

import "bytes"

const (
	magic   = 0x6D736100
	version = 0x01

	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10

	kindFunc   byte = 0
	kindMemory byte = 2

	funcTypeByte byte = 0x60
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Sig is shorthand for a FuncType.
func Sig(params []ValType, results ...ValType) FuncType {
	return FuncType{Params: params, Results: results}
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type funcDef struct {
	locals  []ValType
	body    []byte
	typeIdx uint32
}

type export struct {
	name  string
	kind  byte
	index uint32
}

// Module is a module under construction. Imports must be added before
// functions, since imported functions come first in the index space.
type Module struct {
	types    []FuncType
	imports  []funcImport
	funcs    []funcDef
	exports  []export
	memPages uint32
	hasMem   bool
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

// Import adds a function import and returns its function index.
func (m *Module) Import(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.typeIndex(ft)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function and returns its index.
func (m *Module) Func(ft FuncType, locals []ValType, body *Code) uint32 {
	m.funcs = append(m.funcs, funcDef{typeIdx: m.typeIndex(ft), locals: locals, body: body.Bytes()})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares the module's memory with min pages.
func (m *Module) Memory(pages uint32) *Module {
	m.memPages = pages
	m.hasMem = true
	return m
}

// Export exports function index fn as name.
func (m *Module) Export(name string, fn uint32) *Module {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, index: fn})
	return m
}

// ExportMemory exports memory 0 as name.
func (m *Module) ExportMemory(name string) *Module {
	m.exports = append(m.exports, export{name: name, kind: kindMemory})
	return m
}

func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.types {
		if bytes.Equal(valBytes(t.Params), valBytes(ft.Params)) && bytes.Equal(valBytes(t.Results), valBytes(ft.Results)) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var w writer
	w.u32le(magic)
	w.u32le(version)

	if len(m.types) > 0 {
		var sec writer
		sec.u32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.byte(funcTypeByte)
			sec.vals(ft.Params)
			sec.vals(ft.Results)
		}
		w.section(sectionType, sec.buf)
	}

	if len(m.imports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.byte(kindFunc)
			sec.u32(imp.typeIdx)
		}
		w.section(sectionImport, sec.buf)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		w.section(sectionFunction, sec.buf)
	}

	if m.hasMem {
		var sec writer
		sec.u32(1)
		sec.byte(0x00) // min only
		sec.u32(m.memPages)
		w.section(sectionMemory, sec.buf)
	}

	if len(m.exports) > 0 {
		var sec writer
		sec.u32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.name(e.name)
			sec.byte(e.kind)
			sec.u32(e.index)
		}
		w.section(sectionExport, sec.buf)
	}

	if len(m.funcs) > 0 {
		var sec writer
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var body writer
			body.u32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.u32(1)
				body.byte(byte(l))
			}
			body.bytes(f.body)
			sec.u32(uint32(len(body.buf)))
			sec.bytes(body.buf)
		}
		w.section(sectionCode, sec.buf)
	}

	return w.buf
}

func valBytes(vs []ValType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}
