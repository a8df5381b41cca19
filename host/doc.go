// Package host exposes bridged item models to WebAssembly guests.
//
// A Host owns a wazero runtime, the resource table of hosted models and the
// "wasm-bridge:model" host module. Guests import that module to create
// models and call their methods by handle; values such as ModelIndex and
// Variant cross the boundary by raw copy through guest memory.
//
//	h, err := host.New(ctx, host.Config{})
//	if err != nil {
//		return err
//	}
//	defer h.Close(ctx)
//
//	inst, err := h.Instantiate(ctx, "app", wasmBytes)
//	if err != nil {
//		return err
//	}
//	res, err := inst.Call(ctx, "run")
//
// # Imports
//
// All parameters and results are i32. Pointer arguments address guest
// memory; a zero index pointer means the root index.
//
//	new(parent) -> handle
//	drop(h) -> ok
//	data(h, index_ptr, role, out_ptr) -> valid
//	set-data(h, index_ptr, value_ptr, role) -> ok
//	has-children(h, index_ptr) -> bool
//	row-count(h, index_ptr) -> count
//	column-count(h, index_ptr) -> count
//	index(h, row, column, parent_ptr, out_ptr) -> valid
//	parent(h, index_ptr, out_ptr) -> valid
//	insert-rows(h, row, count, parent_ptr) -> ok
//	remove-rows(h, row, count, parent_ptr) -> ok
//	request-update(h) -> ok
//
// # Overrides
//
// A guest may export functions the host calls back into:
//
//	on-data-changed(h, top_ptr, bottom_ptr)
//	on-update-request(h) -> ok
//	alloc(size, align) -> ptr
//
// Overrides run on the call chain that triggered them. A model method
// called by the guest that calls back into the guest, which calls the model
// again, re-enters the model's lock instead of deadlocking. Calls into one
// guest instance are serialized by the instance's own recursive lock.
package host
