package bridge

import (
	"context"
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/lock"
)

// Parent identifies the owner of an Object, typically the foreign handle of
// the object that created it. NoParent marks a top-level object.
type Parent uint32

// NoParent is the Parent of objects without an owner.
const NoParent Parent = 0

// Factory builds a bridged value with its defaults.
type Factory[T any] func() *T

// FallibleFactory builds a bridged value and may fail.
type FallibleFactory[T any] func() (*T, error)

// Closer is implemented by bridged values that hold resources of their own.
// Close is called once, under the lock, when the owning Object is closed.
type Closer interface {
	Close() error
}

// Object owns one bridged value of type T and the lock that guards it.
type Object[T any] struct {
	lock   *lock.Lock
	value  *T
	name   string
	parent Parent
	closed atomic.Bool
}

// New constructs an Object. The lock is created before factory runs; a nil
// result aborts construction.
func New[T any](parent Parent, factory Factory[T]) (*Object[T], error) {
	if factory == nil {
		return nil, errors.InvalidInput(errors.PhaseBridge, "nil factory")
	}
	return NewFallible(parent, func() (*T, error) {
		return factory(), nil
	})
}

// NewFallible is like New for factories that report errors.
func NewFallible[T any](parent Parent, factory FallibleFactory[T]) (*Object[T], error) {
	name := reflect.TypeFor[T]().String()
	if factory == nil {
		return nil, errors.InvalidInput(errors.PhaseBridge, "nil factory")
	}

	o := &Object[T]{
		lock:   lock.New(),
		name:   name,
		parent: parent,
	}

	value, err := factory()
	if err != nil || value == nil {
		ferr := errors.FactoryFailed(name, err)
		Logger().Debug("bridge object construction failed",
			zap.String("type", name),
			zap.Uint32("parent", uint32(parent)),
			zap.Error(ferr),
		)
		return nil, ferr
	}
	o.value = value

	Logger().Debug("bridge object created",
		zap.String("type", name),
		zap.Uint32("parent", uint32(parent)),
	)
	return o, nil
}

// Parent returns the owner recorded at construction.
func (o *Object[T]) Parent() Parent {
	return o.parent
}

// Name returns the Go type name of the bridged value.
func (o *Object[T]) Name() string {
	return o.name
}

// Closed reports whether Close has completed.
func (o *Object[T]) Closed() bool {
	return o.closed.Load()
}

// Stats returns usage counters of the object's lock.
func (o *Object[T]) Stats() lock.Stats {
	return o.lock.Stats()
}

// Held reports whether ctx's call chain holds the object's lock.
func (o *Object[T]) Held(ctx context.Context) bool {
	return o.lock.HeldBy(ctx)
}

// Guard acquires the object's lock for ctx's call chain. The returned
// context must be passed to nested calls; release must be deferred.
func (o *Object[T]) Guard(ctx context.Context) (context.Context, lock.Release) {
	return o.lock.Acquire(ctx)
}

// Enter acquires the lock and borrows the value. The borrow ends when
// Release is called; using it afterwards panics.
func (o *Object[T]) Enter(ctx context.Context) (*Borrow[T], error) {
	return o.enter(ctx, false)
}

func (o *Object[T]) enter(ctx context.Context, readOnly bool) (*Borrow[T], error) {
	ctx, release := o.lock.Acquire(ctx)
	if o.value == nil {
		release()
		return nil, errors.Closed(errors.PhaseBridge, o.name)
	}
	return &Borrow[T]{
		ctx:      ctx,
		obj:      o,
		release:  release,
		readOnly: readOnly,
	}, nil
}

// Publish runs fn with mutable access from a call chain that is not a
// foreign entry point, such as a background goroutine. It blocks while the
// object is in use.
func (o *Object[T]) Publish(ctx context.Context, fn func(context.Context, *T)) error {
	b, err := o.Enter(ctx)
	if err != nil {
		return err
	}
	defer b.Release()
	fn(b.Context(), b.Mut())
	return nil
}

// Close releases the bridged value. It must not be called while any call
// chain holds the lock; doing so reports an outstanding borrow and leaves
// the object intact. Close is idempotent.
func (o *Object[T]) Close() error {
	if o.closed.Load() {
		return nil
	}

	_, release, ok := o.lock.TryAcquire(context.Background())
	if !ok {
		err := errors.OutstandingBorrow(errors.PhaseBridge, o.name)
		Logger().Warn("bridge object closed while borrowed",
			zap.String("type", o.name),
			zap.Uint32("parent", uint32(o.parent)),
		)
		return err
	}
	defer release()

	if o.value == nil {
		return nil
	}

	var err error
	if c, ok := any(o.value).(Closer); ok {
		err = c.Close()
	}
	o.value = nil
	o.closed.Store(true)

	Logger().Debug("bridge object closed",
		zap.String("type", o.name),
		zap.Uint32("parent", uint32(o.parent)),
		zap.Error(err),
	)
	return err
}
