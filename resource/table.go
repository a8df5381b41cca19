package resource

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/wippyai/wasm-bridge/errors"
)

// Table maps handles to hosted values. It is safe for concurrent use.
type Table struct {
	observers map[uint64]Observer
	slots     slots
	nextObs   uint64
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		slots:     newSlots(),
		observers: make(map[uint64]Observer),
	}
}

// Insert adds value owned by parent and returns its handle. It returns 0
// when the table is closed or value is nil.
func (t *Table) Insert(parent Handle, value any) Handle {
	if value == nil {
		return 0
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	h := t.slots.insert(parent, value)
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Parent: parent, Value: value})
	return h
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.slots.get(h)
	if e == nil || e.dropping {
		return nil, false
	}
	return e.value, true
}

// Lookup retrieves a value by handle and asserts its type.
func Lookup[T any](t *Table, h Handle) (T, error) {
	var zero T
	v, ok := t.Get(h)
	if !ok {
		return zero, errors.InvalidHandle(errors.PhaseHost, uint32(h))
	}
	typed, ok := v.(T)
	if !ok {
		return zero, typeMismatch[T](h, v)
	}
	return typed, nil
}

// Parent returns the owner recorded for h.
func (t *Table) Parent(h Handle) (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.slots.get(h)
	if e == nil {
		return None, false
	}
	return e.parent, true
}

// Children returns the live handles owned by parent.
func (t *Table) Children(parent Handle) []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots.children(parent)
}

// Borrow marks h as in use and returns its value. done must be called
// exactly when the use ends; extra calls are ignored.
func (t *Table) Borrow(h Handle) (value any, done func(), err error) {
	t.mu.Lock()
	e := t.slots.get(h)
	if e == nil || e.dropping {
		t.mu.Unlock()
		return nil, func() {}, errors.InvalidHandle(errors.PhaseHost, uint32(h))
	}
	e.borrows++
	value, parent := e.value, e.parent
	t.mu.Unlock()

	t.notify(Event{Type: EventBorrowed, Handle: h, Parent: parent, Value: value})

	var once sync.Once
	done = func() {
		once.Do(func() {
			t.mu.Lock()
			if e := t.slots.get(h); e != nil && e.borrows > 0 {
				e.borrows--
			}
			t.mu.Unlock()
			t.notify(Event{Type: EventBorrowReturned, Handle: h, Parent: parent, Value: value})
		})
	}
	return value, done, nil
}

// BorrowAs is Borrow with a type assertion. On a type mismatch the borrow
// is returned before the error is reported.
func BorrowAs[T any](t *Table, h Handle) (T, func(), error) {
	var zero T
	v, done, err := t.Borrow(h)
	if err != nil {
		return zero, done, err
	}
	typed, ok := v.(T)
	if !ok {
		done()
		return zero, func() {}, typeMismatch[T](h, v)
	}
	return typed, done, nil
}

// Borrows returns the number of outstanding borrows of h.
func (t *Table) Borrows(h Handle) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.slots.get(h)
	if e == nil {
		return 0
	}
	return int(e.borrows)
}

// Remove drops h. A borrowed handle is refused with an outstanding borrow
// error. Values implementing Closer are closed first; if Close fails the
// entry stays in the table.
func (t *Table) Remove(h Handle) (any, error) {
	t.mu.Lock()
	e := t.slots.get(h)
	if e == nil || e.dropping {
		t.mu.Unlock()
		return nil, errors.InvalidHandle(errors.PhaseHost, uint32(h))
	}
	if e.borrows > 0 {
		t.mu.Unlock()
		return nil, errors.OutstandingBorrow(errors.PhaseHost, fmt.Sprintf("handle %d", h))
	}
	e.dropping = true
	value, parent := e.value, e.parent
	t.mu.Unlock()

	if c, ok := value.(Closer); ok {
		if err := c.Close(); err != nil {
			t.mu.Lock()
			if e := t.slots.get(h); e != nil {
				e.dropping = false
			}
			t.mu.Unlock()
			return nil, err
		}
	}

	t.mu.Lock()
	t.slots.free(h)
	t.mu.Unlock()

	t.notify(Event{Type: EventDropped, Handle: h, Parent: parent, Value: value})
	return value, nil
}

// RemoveTree removes everything owned by h, depth first, then h itself.
// A borrow anywhere in the subtree refuses the whole removal before any
// entry is dropped. A failing Close stops the walk at that entry.
func (t *Table) RemoveTree(h Handle) error {
	t.mu.Lock()
	err := t.checkTree(h)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return t.removeTree(h)
}

// checkTree must be called with t.mu held.
func (t *Table) checkTree(h Handle) error {
	e := t.slots.get(h)
	if e == nil || e.dropping {
		return errors.InvalidHandle(errors.PhaseHost, uint32(h))
	}
	if e.borrows > 0 {
		return errors.OutstandingBorrow(errors.PhaseHost, fmt.Sprintf("handle %d", h))
	}
	for _, child := range t.slots.children(h) {
		if err := t.checkTree(child); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) removeTree(h Handle) error {
	for _, child := range t.Children(h) {
		if err := t.removeTree(child); err != nil {
			return err
		}
	}
	_, err := t.Remove(h)
	return err
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots.len()
}

// Each calls fn for every live entry until fn returns false. fn runs
// without the table lock held.
func (t *Table) Each(fn func(Handle, any) bool) {
	type item struct {
		value any
		h     Handle
	}

	t.mu.Lock()
	items := make([]item, 0, len(t.slots.entries))
	for i := range t.slots.entries {
		if e := &t.slots.entries[i]; e.valid && !e.dropping {
			items = append(items, item{h: Handle(i + 1), value: e.value})
		}
	}
	t.mu.Unlock()

	for _, it := range items {
		if !fn(it.h, it.value) {
			return
		}
	}
}

// Subscribe adds an observer and returns a function that removes it.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = o
	t.obsMu.Unlock()

	return func() {
		t.obsMu.Lock()
		delete(t.observers, id)
		t.obsMu.Unlock()
	}
}

// Clear removes every entry, newest first. Entries that cannot be removed
// are reported together.
func (t *Table) Clear() error {
	var handles []Handle
	t.Each(func(h Handle, _ any) bool {
		handles = append(handles, h)
		return true
	})

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if _, err := t.Remove(handles[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Close stops accepting inserts and removes every entry.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	return t.Clear()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

func typeMismatch[T any](h Handle, v any) *errors.Error {
	return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		GoType(reflect.TypeOf(v).String()).
		Detail("handle %d is not a %s", h, reflect.TypeFor[T]()).
		Value(uint32(h)).
		Build()
}
