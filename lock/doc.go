// Package lock provides the recursive lock that serializes access to a
// bridged object.
//
// Go has no goroutine identity, so reentrancy is keyed on the logical call
// chain instead: Acquire returns a context that carries ownership, and any
// Acquire made with that context (or one derived from it) re-enters without
// blocking. Guest callbacks made through wazero receive the caller's context,
// so a host entry point that calls into the guest which calls back into the
// same object re-enters cleanly.
//
//	ctx, release := l.Acquire(ctx)
//	defer release()
//
// The context returned by Acquire must stay on its call chain. Handing it to
// another goroutine while the lock is held lets that goroutine re-enter
// concurrently; use Detach for background work.
package lock
