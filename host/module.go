package host

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/model"
	"github.com/wippyai/wasm-bridge/resource"
)

// hostFunc is one import of the bridge host module.
type hostFunc struct {
	fn     api.GoModuleFunc
	name   string
	params int
}

func (h *Host) functions() []hostFunc {
	return []hostFunc{
		{name: "new", params: 1, fn: h.newModel},
		{name: "drop", params: 1, fn: h.dropModel},
		{name: "data", params: 4, fn: h.data},
		{name: "set-data", params: 4, fn: h.setData},
		{name: "has-children", params: 2, fn: h.hasChildren},
		{name: "row-count", params: 2, fn: h.rowCount},
		{name: "column-count", params: 2, fn: h.columnCount},
		{name: "index", params: 5, fn: h.index},
		{name: "parent", params: 3, fn: h.parent},
		{name: "insert-rows", params: 4, fn: h.insertRows},
		{name: "remove-rows", params: 4, fn: h.removeRows},
		{name: "request-update", params: 1, fn: h.requestUpdate},
	}
}

// register instantiates the bridge host module. Every import takes and
// returns i32 values.
func (h *Host) register(ctx context.Context) error {
	builder := h.runtime.NewHostModuleBuilder(ModuleName)
	for _, f := range h.functions() {
		params := make([]api.ValueType, f.params)
		for i := range params {
			params[i] = api.ValueTypeI32
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, params, []api.ValueType{api.ValueTypeI32}).
			Export(f.name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Registration(ModuleName, "*", err)
	}
	return nil
}

// withModel borrows the model behind handle for the duration of fn. Failures
// leave the result slot at 0.
func (h *Host) withModel(mod api.Module, method string, handle uint32, stack []uint64, fn func(m *model.ListModel, mem api.Memory) (uint32, error)) {
	stack[0] = 0
	m, done, err := resource.BorrowAs[*model.ListModel](h.table, resource.Handle(handle))
	if err != nil {
		h.rejected(mod, method, handle, err)
		return
	}
	defer done()

	res, err := fn(m, mod.Memory())
	if err != nil {
		h.rejected(mod, method, handle, err)
		return
	}
	stack[0] = api.EncodeU32(res)
}

func (h *Host) rejected(mod api.Module, method string, handle uint32, err error) {
	h.log.Debug("host call rejected",
		zap.String("guest", mod.Name()),
		zap.String("import", method),
		zap.Uint32("handle", handle),
		zap.Error(err),
	)
}

// loadIndex reads a ModelIndex from guest memory. Pointer 0 is the root.
func loadIndex(mem api.Memory, ptr uint32) (abi.ModelIndex, error) {
	if ptr == 0 {
		return abi.InvalidIndex(), nil
	}
	return abi.Load[abi.ModelIndex](mem, ptr)
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (h *Host) newModel(ctx context.Context, mod api.Module, stack []uint64) {
	parent := resource.Handle(api.DecodeU32(stack[0]))
	stack[0] = 0

	inst := h.instanceOf(mod)
	if inst == nil {
		h.rejected(mod, "new", uint32(parent), errors.NotFound(errors.PhaseHost, "guest", mod.Name()))
		return
	}
	_, handle, err := inst.NewModel(ctx, parent)
	if err != nil {
		h.rejected(mod, "new", uint32(parent), err)
		return
	}
	stack[0] = api.EncodeU32(uint32(handle))
}

func (h *Host) dropModel(_ context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeU32(stack[0])
	stack[0] = 0
	if err := h.table.RemoveTree(resource.Handle(handle)); err != nil {
		h.rejected(mod, "drop", handle, err)
		return
	}
	stack[0] = 1
}

func (h *Host) data(ctx context.Context, mod api.Module, stack []uint64) {
	handle, indexPtr := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	role, outPtr := model.Role(api.DecodeI32(stack[2])), api.DecodeU32(stack[3])
	h.withModel(mod, "data", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		index, err := loadIndex(mem, indexPtr)
		if err != nil {
			return 0, err
		}
		v := m.Data(ctx, index, role)
		if err := abi.Store(mem, outPtr, v); err != nil {
			return 0, err
		}
		return flag(v.IsValid()), nil
	})
}

func (h *Host) setData(ctx context.Context, mod api.Module, stack []uint64) {
	handle, indexPtr := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	valuePtr, role := api.DecodeU32(stack[2]), model.Role(api.DecodeI32(stack[3]))
	h.withModel(mod, "set-data", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		index, err := loadIndex(mem, indexPtr)
		if err != nil {
			return 0, err
		}
		v, err := abi.Load[abi.Variant](mem, valuePtr)
		if err != nil {
			return 0, err
		}
		return flag(m.SetData(ctx, index, v, role)), nil
	})
}

func (h *Host) hasChildren(ctx context.Context, mod api.Module, stack []uint64) {
	handle, parentPtr := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	h.withModel(mod, "has-children", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		parent, err := loadIndex(mem, parentPtr)
		if err != nil {
			return 0, err
		}
		return flag(m.HasChildren(ctx, parent)), nil
	})
}

func (h *Host) rowCount(ctx context.Context, mod api.Module, stack []uint64) {
	handle, parentPtr := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	h.withModel(mod, "row-count", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		parent, err := loadIndex(mem, parentPtr)
		if err != nil {
			return 0, err
		}
		return uint32(m.RowCount(ctx, parent)), nil
	})
}

func (h *Host) columnCount(ctx context.Context, mod api.Module, stack []uint64) {
	handle, parentPtr := api.DecodeU32(stack[0]), api.DecodeU32(stack[1])
	h.withModel(mod, "column-count", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		parent, err := loadIndex(mem, parentPtr)
		if err != nil {
			return 0, err
		}
		return uint32(m.ColumnCount(ctx, parent)), nil
	})
}

func (h *Host) index(ctx context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeU32(stack[0])
	row, column := api.DecodeI32(stack[1]), api.DecodeI32(stack[2])
	parentPtr, outPtr := api.DecodeU32(stack[3]), api.DecodeU32(stack[4])
	h.withModel(mod, "index", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		parent, err := loadIndex(mem, parentPtr)
		if err != nil {
			return 0, err
		}
		index := m.Index(ctx, row, column, parent)
		if err := abi.Store(mem, outPtr, index); err != nil {
			return 0, err
		}
		return flag(index.IsValid()), nil
	})
}

func (h *Host) parent(ctx context.Context, mod api.Module, stack []uint64) {
	handle, indexPtr, outPtr := api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), api.DecodeU32(stack[2])
	h.withModel(mod, "parent", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		index, err := loadIndex(mem, indexPtr)
		if err != nil {
			return 0, err
		}
		parent := m.Parent(ctx, index)
		if err := abi.Store(mem, outPtr, parent); err != nil {
			return 0, err
		}
		return flag(parent.IsValid()), nil
	})
}

func (h *Host) insertRows(ctx context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeU32(stack[0])
	row, count, parentPtr := api.DecodeI32(stack[1]), api.DecodeI32(stack[2]), api.DecodeU32(stack[3])
	h.withModel(mod, "insert-rows", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		parent, err := loadIndex(mem, parentPtr)
		if err != nil {
			return 0, err
		}
		return flag(m.InsertRows(ctx, row, count, parent)), nil
	})
}

func (h *Host) removeRows(ctx context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeU32(stack[0])
	row, count, parentPtr := api.DecodeI32(stack[1]), api.DecodeI32(stack[2]), api.DecodeU32(stack[3])
	h.withModel(mod, "remove-rows", handle, stack, func(m *model.ListModel, mem api.Memory) (uint32, error) {
		parent, err := loadIndex(mem, parentPtr)
		if err != nil {
			return 0, err
		}
		return flag(m.RemoveRows(ctx, row, count, parent)), nil
	})
}

func (h *Host) requestUpdate(ctx context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeU32(stack[0])
	h.withModel(mod, "request-update", handle, stack, func(m *model.ListModel, _ api.Memory) (uint32, error) {
		return flag(m.RequestUpdate(ctx)), nil
	})
}
