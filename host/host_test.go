package host

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"

	"github.com/tetratelabs/wazero/api"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/internal/wasmtest"
	"github.com/wippyai/wasm-bridge/model"
	"github.com/wippyai/wasm-bridge/resource"
)

// Guest memory used by the fixture.
const (
	indexBuf   = 64  // ModelIndex argument
	valueBuf   = 96  // Variant argument
	outBuf     = 128 // Variant result of get
	changedBuf = 160 // Variant read back inside on-data-changed
	lastValue  = 200 // i64 payload seen by on-data-changed
	changes    = 208 // i32 count of on-data-changed calls
	dropResult = 216 // i32 result of drop inside on-update-request
	allocAt    = 512
	scratchAt  = 1024
)

type fixture struct {
	alloc bool
}

// build assembles a guest that drives a model through the bridge imports
// and implements both overrides.
func (f fixture) build() []byte {
	m := wasmtest.New()
	i32 := wasmtest.I32
	i64 := wasmtest.I64
	ints := func(n int) []wasmtest.ValType {
		out := make([]wasmtest.ValType, n)
		for i := range out {
			out[i] = i32
		}
		return out
	}
	imp := func(name string, params int) uint32 {
		return m.Import(ModuleName, name, wasmtest.Sig(ints(params), i32))
	}

	newModel := imp("new", 1)
	drop := imp("drop", 1)
	data := imp("data", 4)
	setData := imp("set-data", 4)
	rowCount := imp("row-count", 2)
	index := imp("index", 5)
	insertRows := imp("insert-rows", 4)
	requestUpdate := imp("request-update", 1)

	// make() -> h
	mk := m.Func(wasmtest.Sig(nil, i32), nil, wasmtest.Body().
		I32Const(0).Call(newModel))
	// grow(h) -> ok: three rows at the root
	grow := m.Func(wasmtest.Sig(ints(1), i32), nil, wasmtest.Body().
		LocalGet(0).I32Const(0).I32Const(3).I32Const(0).Call(insertRows))
	// rows(h) -> count
	rows := m.Func(wasmtest.Sig(ints(1), i32), nil, wasmtest.Body().
		LocalGet(0).I32Const(0).Call(rowCount))
	// set(h, row, v) -> ok
	set := m.Func(wasmtest.Sig([]wasmtest.ValType{i32, i32, i64}, i32), nil, wasmtest.Body().
		LocalGet(0).LocalGet(1).I32Const(0).I32Const(0).I32Const(indexBuf).Call(index).Drop().
		I32Const(valueBuf).I32Const(int32(abi.KindInt)).I32Store(0).
		I32Const(valueBuf).LocalGet(2).I64Store(8).
		LocalGet(0).I32Const(indexBuf).I32Const(valueBuf).I32Const(0).Call(setData))
	// get(h, row) -> v
	get := m.Func(wasmtest.Sig(ints(2), i64), nil, wasmtest.Body().
		LocalGet(0).LocalGet(1).I32Const(0).I32Const(0).I32Const(indexBuf).Call(index).Drop().
		LocalGet(0).I32Const(indexBuf).I32Const(0).I32Const(outBuf).Call(data).Drop().
		I32Const(outBuf).I64Load(8))
	// update(h) -> ok
	update := m.Func(wasmtest.Sig(ints(1), i32), nil, wasmtest.Body().
		LocalGet(0).Call(requestUpdate))
	// oob() traps
	oob := m.Func(wasmtest.Sig(nil, i32), nil, wasmtest.Body().
		I32Const(1<<24).I32Load(0))
	// on-data-changed(h, top, bottom) reads the changed cell back
	onChanged := m.Func(wasmtest.Sig(ints(3)), nil, wasmtest.Body().
		LocalGet(0).LocalGet(1).I32Const(0).I32Const(changedBuf).Call(data).Drop().
		I32Const(lastValue).I32Const(changedBuf).I64Load(8).I64Store(0).
		I32Const(changes).I32Const(changes).I32Load(0).I32Const(1).I32Add().I32Store(0))
	// on-update-request(h) tries to drop the model it is serving
	onUpdate := m.Func(wasmtest.Sig(ints(1), i32), nil, wasmtest.Body().
		I32Const(dropResult).LocalGet(0).Call(drop).I32Store(0).
		I32Const(1))

	m.Memory(1).ExportMemory(ExportMemory).
		Export("make", mk).
		Export("grow", grow).
		Export("rows", rows).
		Export("set", set).
		Export("get", get).
		Export("update", update).
		Export("oob", oob).
		Export(ExportOnDataChanged, onChanged).
		Export(ExportOnUpdateRequest, onUpdate)

	if f.alloc {
		alloc := m.Func(wasmtest.Sig(ints(2), i32), nil, wasmtest.Body().I32Const(allocAt))
		m.Export(ExportAlloc, alloc)
	}
	return m.Bytes()
}

func newHost(t *testing.T, cfg Config) *Host {
	t.Helper()
	h, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { h.Close(context.Background()) })
	return h
}

func instantiate(t *testing.T, h *Host, f fixture) *Instance {
	t.Helper()
	inst, err := h.Instantiate(context.Background(), "guest", f.build())
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return inst
}

func call(t *testing.T, inst *Instance, export string, params ...uint64) uint64 {
	t.Helper()
	res, err := inst.Call(context.Background(), export, params...)
	if err != nil {
		t.Fatalf("%s: %v", export, err)
	}
	if len(res) == 0 {
		return 0
	}
	return res[0]
}

func u32(t *testing.T, inst *Instance, offset uint32) uint32 {
	t.Helper()
	v, ok := inst.mod.Memory().ReadUint32Le(offset)
	if !ok {
		t.Fatalf("read %d out of range", offset)
	}
	return v
}

func i64(t *testing.T, inst *Instance, offset uint32) int64 {
	t.Helper()
	v, ok := inst.mod.Memory().ReadUint64Le(offset)
	if !ok {
		t.Fatalf("read %d out of range", offset)
	}
	return int64(v)
}

// setup returns a guest with a three-row model.
func setup(t *testing.T, cfg Config, f fixture) (*Host, *Instance, uint64) {
	t.Helper()
	h := newHost(t, cfg)
	inst := instantiate(t, h, f)
	handle := call(t, inst, "make")
	if handle == 0 {
		t.Fatal("make returned no handle")
	}
	if call(t, inst, "grow", handle) != 1 {
		t.Fatal("grow failed")
	}
	return h, inst, handle
}

func TestHost_GuestDrivesModel(t *testing.T) {
	h, inst, handle := setup(t, Config{ScratchOffset: scratchAt}, fixture{})

	if got := call(t, inst, "rows", handle); got != 3 {
		t.Errorf("rows = %d, want 3", got)
	}
	if call(t, inst, "set", handle, 1, api.EncodeI64(42)) != 1 {
		t.Fatal("set failed")
	}
	if got := int64(call(t, inst, "get", handle, 1)); got != 42 {
		t.Errorf("get = %d, want 42", got)
	}
	if got := int64(call(t, inst, "get", handle, 10)); got != 0 {
		t.Errorf("get out of range = %d, want 0", got)
	}

	m, err := h.Model(resource.Handle(handle))
	if err != nil {
		t.Fatal(err)
	}
	v := m.Data(context.Background(), abi.Index(1, 0, uint32(handle)), model.RoleDisplay)
	if n, ok := v.Int(); !ok || n != 42 {
		t.Errorf("host view = %v", v)
	}
}

func TestHost_ReentrantOverride(t *testing.T) {
	h, inst, handle := setup(t, Config{ScratchOffset: scratchAt}, fixture{})

	// set-data raises on-data-changed, which calls data on the same model
	// while set-data still holds it.
	call(t, inst, "set", handle, 2, api.EncodeI64(-5))

	if got := u32(t, inst, changes); got != 1 {
		t.Fatalf("on-data-changed ran %d times", got)
	}
	if got := i64(t, inst, lastValue); got != -5 {
		t.Errorf("override read %d, want -5", got)
	}

	m, _ := h.Model(resource.Handle(handle))
	stats := m.Object().Stats()
	if stats.Reentries == 0 {
		t.Error("expected the model lock to be re-entered")
	}
	if inst.Stats().Reentries != 0 {
		t.Errorf("instance lock re-entered %d times; override should reuse the held chain", inst.Stats().Reentries)
	}

	// Setting the same value again changes nothing.
	call(t, inst, "set", handle, 2, api.EncodeI64(-5))
	if got := u32(t, inst, changes); got != 1 {
		t.Errorf("unchanged set notified, count %d", got)
	}
}

func TestHost_AllocOverride(t *testing.T) {
	_, inst, handle := setup(t, Config{}, fixture{alloc: true})

	call(t, inst, "set", handle, 0, api.EncodeI64(9))
	if got := u32(t, inst, changes); got != 1 {
		t.Fatalf("on-data-changed ran %d times", got)
	}
	top, err := abi.Load[abi.ModelIndex](inst.Memory(), allocAt)
	if err != nil {
		t.Fatal(err)
	}
	if top != abi.Index(0, 0, uint32(handle)) {
		t.Errorf("top index at alloc = %+v", top)
	}
}

func TestHost_NoScratch(t *testing.T) {
	_, inst, handle := setup(t, Config{}, fixture{})

	if call(t, inst, "set", handle, 0, api.EncodeI64(1)) != 1 {
		t.Fatal("set should succeed without override arguments")
	}
	if got := u32(t, inst, changes); got != 0 {
		t.Errorf("on-data-changed ran %d times without scratch space", got)
	}
}

func TestHost_HostInitiatedChange(t *testing.T) {
	h, inst, handle := setup(t, Config{ScratchOffset: scratchAt}, fixture{})
	m, err := h.Model(resource.Handle(handle))
	if err != nil {
		t.Fatal(err)
	}

	if !m.SetData(context.Background(), abi.Index(0, 0, uint32(handle)), abi.IntVariant(7), model.RoleDisplay) {
		t.Fatal("SetData failed")
	}
	if got := i64(t, inst, lastValue); got != 7 {
		t.Errorf("override read %d, want 7", got)
	}
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestHost_DeferredChange(t *testing.T) {
	h, inst, handle := setup(t, Config{ScratchOffset: scratchAt}, fixture{})
	m, _ := h.Model(resource.Handle(handle))

	// Another call chain is inside the guest.
	_, release := inst.lock.Acquire(context.Background())

	done := make(chan bool)
	go func() {
		done <- m.SetData(context.Background(), abi.Index(2, 0, uint32(handle)), abi.IntVariant(99), model.RoleDisplay)
	}()
	if !<-done {
		t.Fatal("SetData failed")
	}
	if got := u32(t, inst, changes); got != 0 {
		t.Fatalf("change delivered while the guest was busy")
	}

	release()
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := u32(t, inst, changes); got != 1 {
		t.Errorf("deferred change delivered %d times", got)
	}
	if got := i64(t, inst, lastValue); got != 99 {
		t.Errorf("override read %d, want 99", got)
	}
}

func TestHost_WaitClearsDeliveryErrors(t *testing.T) {
	h, _, _ := setup(t, Config{ScratchOffset: scratchAt}, fixture{})

	failed := stderrors.New("guest trapped")
	h.deliver(func() error { return failed })
	if err := h.Wait(); !stderrors.Is(err, failed) {
		t.Fatalf("Wait() = %v, want %v", err, failed)
	}

	var ran atomic.Bool
	h.deliver(func() error {
		ran.Store(true)
		return nil
	})
	if err := h.Wait(); err != nil {
		t.Fatalf("second Wait() = %v, want nil", err)
	}
	if !ran.Load() {
		t.Error("delivery queued after a failure did not run")
	}
}

func TestHost_DropRefusedWhileBorrowed(t *testing.T) {
	h, inst, handle := setup(t, Config{}, fixture{})

	if call(t, inst, "update", handle) != 1 {
		t.Fatal("update failed")
	}
	if got := u32(t, inst, dropResult); got != 0 {
		t.Errorf("drop inside the model's own call returned %d", got)
	}
	m, err := h.Model(resource.Handle(handle))
	if err != nil {
		t.Fatalf("model dropped while in use: %v", err)
	}
	if m.Object().Closed() {
		t.Fatal("model closed while in use")
	}

	if err := inst.Drop(resource.Handle(handle)); err != nil {
		t.Fatal(err)
	}
	if !m.Object().Closed() {
		t.Error("dropped model not closed")
	}
	if _, err := h.Model(resource.Handle(handle)); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindInvalidHandle}) {
		t.Errorf("Model after drop = %v", err)
	}
	if got := call(t, inst, "rows", handle); got != 0 {
		t.Errorf("rows on dropped handle = %d", got)
	}
}

func TestHost_ConcurrentCalls(t *testing.T) {
	const workers, perWorker = 8, 200
	_, inst, handle := setup(t, Config{ScratchOffset: scratchAt}, fixture{})

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				v := int64(w*perWorker + i + 1)
				if _, err := inst.Call(context.Background(), "set", handle, uint64(i%3), api.EncodeI64(v)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := u32(t, inst, changes); got != workers*perWorker {
		t.Errorf("changes = %d, want %d", got, workers*perWorker)
	}
	if st := inst.Stats(); st.Acquisitions < workers*perWorker {
		t.Errorf("Acquisitions = %d, want at least %d", st.Acquisitions, workers*perWorker)
	}
}

func TestHost_Trap(t *testing.T) {
	_, inst, _ := setup(t, Config{}, fixture{})

	_, err := inst.Call(context.Background(), "oob")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindTrap}) {
		t.Errorf("oob = %v", err)
	}
	_, err = inst.Call(context.Background(), "missing")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindNotFound}) {
		t.Errorf("missing export = %v", err)
	}
	// The guest is still usable after a trap.
	if call(t, inst, "make") == 0 {
		t.Error("make failed after trap")
	}
}

func TestHost_InvalidHandles(t *testing.T) {
	_, inst, _ := setup(t, Config{}, fixture{})

	if got := call(t, inst, "rows", 999); got != 0 {
		t.Errorf("rows(999) = %d", got)
	}
	if got := call(t, inst, "set", 999, 0, 1); got != 0 {
		t.Errorf("set(999) = %d", got)
	}
}

func TestHost_Instantiate_Errors(t *testing.T) {
	h := newHost(t, Config{})
	ctx := context.Background()

	m := wasmtest.New()
	m.Export("f", m.Func(wasmtest.Sig(nil), nil, wasmtest.Body()))
	_, err := h.Instantiate(ctx, "nomem", m.Bytes())
	var missing *errors.MissingExportsError
	if !stderrors.As(err, &missing) || missing.Exports[0] != ExportMemory {
		t.Errorf("no memory = %v", err)
	}

	bad := wasmtest.New()
	bad.Export(ExportOnUpdateRequest, bad.Func(wasmtest.Sig(nil), nil, wasmtest.Body()))
	bad.Memory(1).ExportMemory(ExportMemory)
	_, err = h.Instantiate(ctx, "bad", bad.Bytes())
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindTypeMismatch}) {
		t.Errorf("bad override = %v", err)
	}

	if _, err := h.Instantiate(ctx, "junk", []byte("not wasm")); err == nil {
		t.Error("expected compile error")
	}
	if _, err := h.Instantiate(ctx, "", fixture{}.build()); err == nil {
		t.Error("expected error for empty name")
	}

	instantiate(t, h, fixture{})
	if _, err := h.Instantiate(ctx, "guest", fixture{}.build()); err == nil {
		t.Error("expected error for duplicate name")
	}
	if _, ok := h.Instance("guest"); !ok {
		t.Error("Instance(guest) not found")
	}
}

func TestHost_FrameworkVersion(t *testing.T) {
	ctx := context.Background()

	h, err := New(ctx, Config{FrameworkVersion: "6.5.0"})
	if err != nil {
		t.Fatal(err)
	}
	h.Close(ctx)

	_, err = New(ctx, Config{FrameworkVersion: "5.15.2"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindSizeMismatch}) {
		t.Errorf("5.15.2 = %v", err)
	}
}

func TestHost_Close(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, Config{})
	if err != nil {
		t.Fatal(err)
	}
	inst := instantiate(t, h, fixture{})
	parent := call(t, inst, "make")
	m, child, err := inst.NewModel(ctx, resource.Handle(parent))
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := h.Table().Parent(child); p != resource.Handle(parent) {
		t.Errorf("child parent = %d", p)
	}
	if uint32(m.Owner()) != uint32(parent) {
		t.Errorf("Owner = %d", m.Owner())
	}
	if _, _, err := inst.NewModel(ctx, 999); err == nil {
		t.Error("expected invalid parent error")
	}

	if err := h.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if h.Table().Len() != 0 {
		t.Errorf("Len() = %d after Close", h.Table().Len())
	}
	if !m.Object().Closed() {
		t.Error("child model not closed")
	}
	if _, err := h.Instantiate(ctx, "late", fixture{}.build()); err == nil {
		t.Error("Instantiate after Close should fail")
	}
	if err := h.Close(ctx); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
