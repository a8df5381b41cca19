// Package bridge hosts Go objects for a foreign runtime.
//
// An Object owns exactly one bridged value and the recursive lock that
// guards it. The foreign side never sees the value itself; it reaches it
// through forwarding functions that acquire the lock, borrow the value for
// the duration of one call and translate any failure into the sentinel the
// foreign contract expects.
//
// # Construction
//
//	obj, err := bridge.New(parent, func() *State { return &State{} })
//
// The lock exists before the factory runs. A factory that returns nil (or an
// error, with NewFallible) aborts construction; no partially built Object is
// returned.
//
// # Access
//
// Every access to the value happens inside a lock scope:
//
//	b, err := obj.Enter(ctx)
//	if err != nil {
//		return err
//	}
//	defer b.Release()
//	b.Mut().rows = append(b.Mut().rows, row)
//
// The lock is keyed on the call chain carried by ctx, so a forwarding
// function that calls back into the foreign runtime, which calls back into
// the same Object, re-enters instead of deadlocking. Pass b.Context() to
// nested calls.
//
// # Dispatch
//
// Query and Mutate run one forwarding function and return a fallback value
// on error or panic. Forward returns the error instead, for foreign
// contracts that can carry one.
package bridge
