package host

import (
	"context"
	stderrors "errors"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/layout"
	"github.com/wippyai/wasm-bridge/lock"
	"github.com/wippyai/wasm-bridge/model"
	"github.com/wippyai/wasm-bridge/resource"
)

// overrides records which optional exports a guest provides.
type overrides struct {
	alloc         bool
	dataChanged   bool
	updateRequest bool
}

var overrideSignatures = map[string]struct {
	params, results []api.ValueType
}{
	ExportAlloc:           {[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}},
	ExportOnDataChanged:   {[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil},
	ExportOnUpdateRequest: {[]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}},
}

func checkOverrides(compiled wazero.CompiledModule) (overrides, error) {
	var o overrides
	exports := compiled.ExportedFunctions()
	for name, sig := range overrideSignatures {
		def, ok := exports[name]
		if !ok {
			continue
		}
		if !slices.Equal(def.ParamTypes(), sig.params) || !slices.Equal(def.ResultTypes(), sig.results) {
			return o, errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
				Path(name).
				Detail("export %s has signature %v -> %v", name, def.ParamTypes(), def.ResultTypes()).
				Build()
		}
		switch name {
		case ExportAlloc:
			o.alloc = true
		case ExportOnDataChanged:
			o.dataChanged = true
		case ExportOnUpdateRequest:
			o.updateRequest = true
		}
	}
	return o, nil
}

// Instance is an instantiated guest. Calls into one instance are
// serialized; a call chain already inside the guest may call it again.
type Instance struct {
	host      *Host
	mod       api.Module
	compiled  wazero.CompiledModule
	lock      *lock.Lock
	name      string
	overrides overrides
	// scratch bytes in use, guarded by lock
	scratchUsed uint32
}

func newInstance(h *Host, name string, mod api.Module, compiled wazero.CompiledModule, o overrides) *Instance {
	return &Instance{
		host:      h,
		mod:       mod,
		compiled:  compiled,
		lock:      lock.New(),
		name:      name,
		overrides: o,
	}
}

// Name returns the name the guest was instantiated under.
func (i *Instance) Name() string {
	return i.name
}

// Memory returns the guest's linear memory.
func (i *Instance) Memory() wasmbridge.Memory {
	return i.mod.Memory()
}

// Stats reports usage of the instance lock.
func (i *Instance) Stats() lock.Stats {
	return i.lock.Stats()
}

// Call invokes an exported guest function. It waits while another call
// chain is inside the guest.
func (i *Instance) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	ctx, release := i.lock.Acquire(ctx)
	defer release()
	return i.call(ctx, export, params...)
}

// call invokes export. The caller holds the instance lock on ctx.
func (i *Instance) call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	fn := i.mod.ExportedFunction(export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "export", export)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		i.host.log.Warn("guest call failed",
			zap.String("guest", i.name),
			zap.String("export", export),
			zap.Error(err),
		)
		return nil, errors.Trap(export, err)
	}
	return res, nil
}

// NewModel creates a model owned by parent on behalf of the guest and
// returns it with its handle. parent is resource.None or a live handle.
func (i *Instance) NewModel(ctx context.Context, parent resource.Handle) (*model.ListModel, resource.Handle, error) {
	table := i.host.table
	if parent != resource.None {
		if _, ok := table.Get(parent); !ok {
			return nil, 0, errors.InvalidHandle(errors.PhaseHost, uint32(parent))
		}
	}

	m, err := model.New(bridge.Parent(parent),
		model.WithChangeHandler(model.ChangeHandlerFunc(i.onDataChanged)),
		model.WithUpdateRequestHandler(model.UpdateRequestHandlerFunc(i.onUpdateRequest)),
	)
	if err != nil {
		return nil, 0, err
	}

	handle := table.Insert(parent, m)
	if handle == resource.None {
		m.Close()
		return nil, 0, errors.Closed(errors.PhaseHost, "resource table")
	}
	m.Bind(uint32(handle))
	i.host.track(handle, i)

	i.host.log.Debug("model created",
		zap.String("guest", i.name),
		zap.Uint32("handle", uint32(handle)),
		zap.Uint32("parent", uint32(parent)),
	)
	return m, handle, nil
}

// Drop removes a model and everything it owns.
func (i *Instance) Drop(handle resource.Handle) error {
	return i.host.table.RemoveTree(handle)
}

// Close drops the models the guest created and closes the guest.
func (i *Instance) Close(ctx context.Context) error {
	var errs []error
	for _, handle := range i.host.owned(i) {
		// Children may already be gone with their parent.
		if _, ok := i.host.table.Get(handle); !ok {
			continue
		}
		if err := i.Drop(handle); err != nil {
			errs = append(errs, err)
		}
	}
	i.host.forget(i)
	if err := i.mod.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := i.compiled.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// onDataChanged forwards a change to the guest's on-data-changed export.
// Changes raised on a call chain that may enter the guest are delivered
// synchronously; otherwise delivery waits for the guest to become idle.
func (i *Instance) onDataChanged(ctx context.Context, m *model.ListModel, top, bottom abi.ModelIndex) {
	if !i.overrides.dataChanged {
		return
	}
	handle := m.ID()

	if i.lock.HeldBy(ctx) {
		i.deliverChange(ctx, handle, top, bottom)
		return
	}
	if lctx, release, ok := i.lock.TryAcquire(ctx); ok {
		defer release()
		i.deliverChange(lctx, handle, top, bottom)
		return
	}

	bg := context.WithoutCancel(lock.Detach(ctx))
	i.host.deliver(func() error {
		ctx, release := i.lock.Acquire(bg)
		defer release()
		return i.deliverChange(ctx, handle, top, bottom)
	})
}

func (i *Instance) deliverChange(ctx context.Context, handle uint32, top, bottom abi.ModelIndex) error {
	size := 2 * abi.SizeOf[abi.ModelIndex]()
	ptr, free, err := i.scratch(ctx, size, abi.AlignOf[abi.ModelIndex]())
	if err != nil {
		i.host.log.Warn("on-data-changed skipped", zap.String("guest", i.name), zap.Error(err))
		return err
	}
	defer free()

	mem := i.mod.Memory()
	if err := abi.Store(mem, ptr, top); err != nil {
		return err
	}
	bottomPtr := ptr + abi.SizeOf[abi.ModelIndex]()
	if err := abi.Store(mem, bottomPtr, bottom); err != nil {
		return err
	}
	_, err = i.call(ctx, ExportOnDataChanged, uint64(handle), uint64(ptr), uint64(bottomPtr))
	return err
}

// onUpdateRequest asks the guest to handle an update request. A guest busy
// on another call chain refuses the request instead of blocking.
func (i *Instance) onUpdateRequest(ctx context.Context, m *model.ListModel) error {
	if !i.overrides.updateRequest {
		return nil
	}
	if !i.lock.HeldBy(ctx) {
		lctx, release, ok := i.lock.TryAcquire(ctx)
		if !ok {
			return errors.OutstandingBorrow(errors.PhaseHost, "guest "+i.name)
		}
		defer release()
		ctx = lctx
	}

	res, err := i.call(ctx, ExportOnUpdateRequest, uint64(m.ID()))
	if err != nil {
		return err
	}
	if api.DecodeI32(res[0]) == 0 {
		return errors.New(errors.PhaseHost, errors.KindForwarded).
			Path(ExportOnUpdateRequest).
			Detail("guest %s declined update request", i.name).
			Build()
	}
	return nil
}

// scratch reserves size bytes of guest memory for override arguments. The
// caller holds the instance lock on ctx.
func (i *Instance) scratch(ctx context.Context, size, align uint32) (uint32, func(), error) {
	if i.overrides.alloc {
		res, err := i.call(ctx, ExportAlloc, uint64(size), uint64(align))
		if err != nil {
			return 0, nil, err
		}
		ptr := api.DecodeU32(res[0])
		if ptr == 0 || ptr%align != 0 {
			return 0, nil, errors.New(errors.PhaseHost, errors.KindInvalidData).
				Path(ExportAlloc).
				Detail("guest returned pointer %#x for %d-byte alignment", ptr, align).
				Value(ptr).
				Build()
		}
		return ptr, func() {}, nil
	}

	cfg := i.host.cfg
	if cfg.ScratchOffset == 0 {
		return 0, nil, errors.NotFound(errors.PhaseHost, "export", ExportAlloc)
	}
	start := layout.AlignTo(i.scratchUsed, align)
	if start+size > cfg.ScratchSize {
		return 0, nil, errors.OutOfBounds(errors.PhaseHost, []string{"scratch"}, int(start+size), int(cfg.ScratchSize))
	}
	prev := i.scratchUsed
	i.scratchUsed = start + size
	return cfg.ScratchOffset + start, func() { i.scratchUsed = prev }, nil
}
