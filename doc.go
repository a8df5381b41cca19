// Package wasmbridge hosts Go objects inside WebAssembly guests.
//
// A guest running under wazero sees bridged objects as integer handles and
// calls host entry points on them. Every entry point funnels through one
// locking discipline, hands out scoped borrows of the Go object, and forwards
// to plain Go logic. Values cross the boundary by raw byte copy; their layouts
// are verified against the guest's reference layouts at build time.
//
// # Architecture Overview
//
//	wasmbridge/          Root package with the guest Memory interface
//	├── bridge/          Owned-object core: Object[T], scoped guards, borrows, forwarding
//	├── lock/            Recursive lock keyed on the logical call chain
//	├── model/           Item model wrapper: the foreign base contract and its Go state
//	├── host/            wazero host module exposing models to guests
//	├── resource/        Handle table mapping guest handles to hosted objects
//	├── abi/             Mirror value types copied raw into guest memory
//	├── mirror/          Layout verifier and build-time assertion generator
//	├── layout/          Reference layout calculation over WIT types
//	├── errors/          Structured error types
//	└── cmd/mirrorcheck  Build gate for mirror declarations
//
// # Quick Start
//
//	h, err := host.New(ctx, host.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	guest, err := h.Instantiate(ctx, "app", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, handle, err := guest.NewModel(ctx, resource.None)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m.InsertRows(ctx, 0, 1, abi.InvalidIndex())
//	m.SetData(ctx, abi.Index(0, 0, uint32(handle)), abi.IntVariant(42), model.RoleDisplay)
//
//	// The guest reaches the same model through the imported bridge
//	// functions, passing handle.
//	_, err = guest.Call(ctx, "run", uint64(handle))
//
// # Thread Safety
//
// Bridged objects are safe for concurrent use from any goroutine. All access
// to an object's state is serialized by its lock. A call chain that already
// holds the lock (carried in its context.Context) may re-enter the object,
// including through a guest callback, without deadlocking.
//
// # Platform
//
// Mirror types assume a 64-bit little-endian host. The abi package does not
// compile where a mirror's size or alignment differs from the guest layout.
package wasmbridge
