package host

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/mirror"
	"github.com/wippyai/wasm-bridge/model"
	"github.com/wippyai/wasm-bridge/resource"
)

// Host runs guest modules against a shared table of bridged models.
type Host struct {
	runtime     wazero.Runtime
	table       *resource.Table
	log         *zap.Logger
	instances   map[string]*Instance
	owners      map[resource.Handle]*Instance
	unsubscribe func()
	notify      *errgroup.Group
	cfg         Config
	notifyMu    sync.Mutex
	mu          sync.Mutex
	closed      bool
}

// New verifies the mirror types against cfg.FrameworkVersion, then creates
// a runtime with the bridge host module registered.
func New(ctx context.Context, cfg Config) (*Host, error) {
	cfg = cfg.withDefaults()

	v := mirror.NewVerifier(mirror.WithFrameworkVersion(cfg.FrameworkVersion))
	for _, m := range abi.Mirrors() {
		if err := v.Verify(m); err != nil {
			cfg.Logger.Error("mirror verification failed", zap.Stringer("mirror", m), zap.Error(err))
			return nil, err
		}
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	h := &Host{
		runtime:   wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		table:     resource.NewTable(),
		log:       cfg.Logger,
		instances: make(map[string]*Instance),
		owners:    make(map[resource.Handle]*Instance),
		notify:    new(errgroup.Group),
		cfg:       cfg,
	}
	h.unsubscribe = h.table.Subscribe(resource.ObserverFunc(h.onResourceEvent))

	if err := h.register(ctx); err != nil {
		h.runtime.Close(ctx)
		return nil, err
	}
	return h, nil
}

// Instantiate compiles and instantiates a guest under name. The guest must
// export its memory as "memory".
func (h *Host) Instantiate(ctx context.Context, name string, wasm []byte) (*Instance, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty guest name")
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.Closed(errors.PhaseHost, "host")
	}
	if _, ok := h.instances[name]; ok {
		h.mu.Unlock()
		return nil, errors.InvalidInput(errors.PhaseLoad, "guest "+name+" already instantiated")
	}
	h.mu.Unlock()

	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile guest", err)
	}
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		compiled.Close(ctx)
		return nil, &errors.MissingExportsError{Module: name, Exports: []string{ExportMemory}}
	}
	overrides, err := checkOverrides(compiled)
	if err != nil {
		compiled.Close(ctx)
		return nil, err
	}

	mod, err := h.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Instantiation(err)
	}

	inst := newInstance(h, name, mod, compiled, overrides)
	h.mu.Lock()
	h.instances[name] = inst
	h.mu.Unlock()

	h.log.Debug("guest instantiated",
		zap.String("guest", name),
		zap.Bool("alloc", overrides.alloc),
		zap.Bool("on-data-changed", overrides.dataChanged),
		zap.Bool("on-update-request", overrides.updateRequest),
	)
	return inst, nil
}

// Instance returns the guest instantiated under name.
func (h *Host) Instance(name string) (*Instance, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	inst, ok := h.instances[name]
	return inst, ok
}

// Model returns the model behind handle.
func (h *Host) Model(handle resource.Handle) (*model.ListModel, error) {
	return resource.Lookup[*model.ListModel](h.table, handle)
}

// Table exposes the resource table holding the hosted models.
func (h *Host) Table() *resource.Table {
	return h.table
}

// Wait blocks until every deferred override delivery started before the
// call has finished and returns the first of their errors. Deliveries
// queued afterwards are reported by the next Wait.
func (h *Host) Wait() error {
	h.notifyMu.Lock()
	g := h.notify
	h.notify = new(errgroup.Group)
	h.notifyMu.Unlock()
	return g.Wait()
}

// deliver queues fn as a deferred override delivery.
func (h *Host) deliver(fn func() error) {
	h.notifyMu.Lock()
	h.notify.Go(fn)
	h.notifyMu.Unlock()
}

// Close closes every guest, drops the remaining models and closes the
// runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	instances := make([]*Instance, 0, len(h.instances))
	for _, inst := range h.instances {
		instances = append(instances, inst)
	}
	h.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		if err := inst.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.Wait(); err != nil {
		h.log.Warn("deferred override failed", zap.Error(err))
	}
	if err := h.table.Close(); err != nil {
		errs = append(errs, err)
	}
	h.unsubscribe()
	if err := h.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// instanceOf maps the calling module back to its Instance.
func (h *Host) instanceOf(mod api.Module) *Instance {
	if mod == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.instances[mod.Name()]
}

func (h *Host) track(handle resource.Handle, inst *Instance) {
	h.mu.Lock()
	h.owners[handle] = inst
	h.mu.Unlock()
}

func (h *Host) owned(inst *Instance) []resource.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	var handles []resource.Handle
	for handle, owner := range h.owners {
		if owner == inst {
			handles = append(handles, handle)
		}
	}
	return handles
}

func (h *Host) forget(inst *Instance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.instances[inst.name] == inst {
		delete(h.instances, inst.name)
	}
}

func (h *Host) onResourceEvent(e resource.Event) {
	if e.Type != resource.EventDropped {
		return
	}
	h.mu.Lock()
	delete(h.owners, e.Handle)
	h.mu.Unlock()
	h.log.Debug("model dropped", zap.Uint32("handle", uint32(e.Handle)))
}
