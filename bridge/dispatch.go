package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
)

// Query runs fn with read-only access to the value. Any error or panic is
// logged and replaced by fallback.
func Query[T, R any](ctx context.Context, o *Object[T], method string, fallback R, fn func(context.Context, *T) (R, error)) R {
	r, err := dispatch(ctx, o, method, true, fn)
	if err != nil {
		return translate(o, method, fallback, err)
	}
	return r
}

// Mutate is like Query with mutable access.
func Mutate[T, R any](ctx context.Context, o *Object[T], method string, fallback R, fn func(context.Context, *T) (R, error)) R {
	r, err := dispatch(ctx, o, method, false, fn)
	if err != nil {
		return translate(o, method, fallback, err)
	}
	return r
}

// Forward runs fn with mutable access and returns its error. Failures of fn
// are wrapped as forwarded errors; a panic in fn is recovered and reported
// the same way.
func Forward[T, R any](ctx context.Context, o *Object[T], method string, fn func(context.Context, *T) (R, error)) (R, error) {
	return dispatch(ctx, o, method, false, fn)
}

func dispatch[T, R any](ctx context.Context, o *Object[T], method string, readOnly bool, fn func(context.Context, *T) (R, error)) (r R, err error) {
	if o == nil {
		return r, errors.InvalidInput(errors.PhaseDispatch, "nil object")
	}
	b, err := o.enter(ctx, readOnly)
	if err != nil {
		return r, err
	}
	defer b.Release()

	defer func() {
		if p := recover(); p != nil {
			var zero R
			r = zero
			err = errors.Forwarded(method, panicError(p))
		}
	}()

	var value *T
	if readOnly {
		value = b.Ref()
	} else {
		value = b.Mut()
	}

	r, err = fn(b.Context(), value)
	if err != nil {
		if _, ok := err.(*errors.Error); !ok {
			err = errors.Forwarded(method, err)
		}
	}
	return r, err
}

func translate[T, R any](o *Object[T], method string, fallback R, err error) R {
	Logger().Debug("forwarded call failed",
		zap.String("type", o.name),
		zap.String("method", method),
		zap.Error(err),
	)
	return fallback
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}
