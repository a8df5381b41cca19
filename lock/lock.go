package lock

import (
	"context"
	"sync"
)

// Release releases one level of a held lock. It is idempotent.
type Release func()

// Stats reports lock usage.
type Stats struct {
	Acquisitions uint64 // outermost acquisitions
	Reentries    uint64 // nested acquisitions by an owning call chain
	Contended    uint64 // acquisitions that had to wait
}

// Lock is a blocking, reentrant mutual-exclusion lock. The zero value is
// not usable; create locks with New.
type Lock struct {
	cond  *sync.Cond
	owner *token
	mu    sync.Mutex
	stats Stats
	depth int
}

type token struct {
	lock *Lock
}

type ownerKey struct{}

// holding is the chain of locks owned by a call chain.
type holding struct {
	tok    *token
	parent *holding
}

// New creates an unlocked Lock.
func New() *Lock {
	l := &Lock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire blocks until the lock is free or already owned by ctx's call chain.
// The returned context carries ownership and must be used for nested calls.
func (l *Lock) Acquire(ctx context.Context) (context.Context, Release) {
	if ctx == nil {
		ctx = context.Background()
	}
	tok := l.tokenIn(ctx)

	l.mu.Lock()
	if tok != nil && l.owner == tok {
		l.depth++
		l.stats.Reentries++
		l.mu.Unlock()
		return ctx, l.releaser(tok)
	}

	if l.owner != nil {
		l.stats.Contended++
	}
	for l.owner != nil {
		l.cond.Wait()
	}
	tok = l.take()
	l.mu.Unlock()

	return context.WithValue(ctx, ownerKey{}, &holding{tok: tok, parent: chain(ctx)}), l.releaser(tok)
}

// TryAcquire is like Acquire but reports false instead of waiting.
func (l *Lock) TryAcquire(ctx context.Context) (context.Context, Release, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	tok := l.tokenIn(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if tok != nil && l.owner == tok {
		l.depth++
		l.stats.Reentries++
		return ctx, l.releaser(tok), true
	}
	if l.owner != nil {
		return ctx, func() {}, false
	}
	tok = l.take()
	return context.WithValue(ctx, ownerKey{}, &holding{tok: tok, parent: chain(ctx)}), l.releaser(tok), true
}

// HeldBy reports whether ctx's call chain currently owns the lock.
func (l *Lock) HeldBy(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	tok := l.tokenIn(ctx)
	if tok == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner == tok
}

// Locked reports whether any call chain owns the lock.
func (l *Lock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner != nil
}

// Depth returns the current nesting depth; 0 when unlocked.
func (l *Lock) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

// Stats returns a snapshot of lock usage.
func (l *Lock) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// take makes a fresh token the owner. l.mu must be held and the lock free.
func (l *Lock) take() *token {
	tok := &token{lock: l}
	l.owner = tok
	l.depth = 1
	l.stats.Acquisitions++
	return tok
}

func (l *Lock) releaser(tok *token) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(tok)
		})
	}
}

func (l *Lock) release(tok *token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != tok || l.depth == 0 {
		panic("lock: release of a lock not held by this call chain")
	}
	l.depth--
	if l.depth == 0 {
		l.owner = nil
		l.cond.Signal()
	}
}

func (l *Lock) tokenIn(ctx context.Context) *token {
	for h := chain(ctx); h != nil; h = h.parent {
		if h.tok.lock == l {
			return h.tok
		}
	}
	return nil
}

func chain(ctx context.Context) *holding {
	h, _ := ctx.Value(ownerKey{}).(*holding)
	return h
}

// Detach returns a context that carries ctx's values and deadlines but no
// lock ownership. Use it to start background work from inside a held lock.
func Detach(ctx context.Context) context.Context {
	if chain(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, ownerKey{}, (*holding)(nil))
}
