package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/lock"
)

// ErrBorrowEscaped is the panic value raised when a borrow is used outside
// the lock scope that produced it.
var ErrBorrowEscaped = &errors.Error{
	Phase:  errors.PhaseBridge,
	Kind:   errors.KindBorrowEscaped,
	Detail: "borrow used after its lock scope ended",
}

// ErrReadOnly is the panic value raised when Mut is called on a borrow
// obtained for a query.
var ErrReadOnly = &errors.Error{
	Phase:  errors.PhaseBridge,
	Kind:   errors.KindReadOnly,
	Detail: "mutable access through a read-only borrow",
}

// Borrow is scoped access to a bridged value. It is valid from Enter until
// Release, and only on the call chain of its Context.
type Borrow[T any] struct {
	ctx      context.Context
	obj      *Object[T]
	release  lock.Release
	once     sync.Once
	ended    atomic.Bool
	readOnly bool
}

// Context returns the lock-owning context for nested calls.
func (b *Borrow[T]) Context() context.Context {
	return b.ctx
}

// Ref returns the value for reading.
func (b *Borrow[T]) Ref() *T {
	b.check()
	return b.obj.value
}

// Mut returns the value for modification.
func (b *Borrow[T]) Mut() *T {
	b.check()
	if b.readOnly {
		panic(ErrReadOnly)
	}
	return b.obj.value
}

// Release ends the borrow and releases one level of the lock. It is
// idempotent.
func (b *Borrow[T]) Release() {
	b.once.Do(func() {
		b.ended.Store(true)
		b.release()
	})
}

func (b *Borrow[T]) check() {
	if b.ended.Load() || !b.obj.lock.HeldBy(b.ctx) || b.obj.value == nil {
		panic(ErrBorrowEscaped)
	}
}
