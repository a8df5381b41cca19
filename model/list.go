package model

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

var _ ItemModel = (*ListModel)(nil)

// ListModel is the wrapper hosting a ListState.
type ListModel struct {
	obj      *bridge.Object[ListState]
	onChange ChangeHandler
	onUpdate UpdateRequestHandler
	id       atomic.Uint32
}

// Option configures a ListModel.
type Option func(*ListModel)

// WithChangeHandler installs the data-changed override.
func WithChangeHandler(h ChangeHandler) Option {
	return func(m *ListModel) {
		m.onChange = h
	}
}

// WithUpdateRequestHandler installs the update-request override.
func WithUpdateRequestHandler(h UpdateRequestHandler) Option {
	return func(m *ListModel) {
		m.onUpdate = h
	}
}

// New constructs a ListModel owned by parent, creating its state with
// NewListState.
func New(parent bridge.Parent, opts ...Option) (*ListModel, error) {
	return NewWith(parent, func() (*ListState, error) {
		return NewListState(), nil
	}, opts...)
}

// NewWith constructs a ListModel whose state comes from factory.
func NewWith(parent bridge.Parent, factory bridge.FallibleFactory[ListState], opts ...Option) (*ListModel, error) {
	obj, err := bridge.NewFallible(parent, factory)
	if err != nil {
		return nil, err
	}
	m := &ListModel{obj: obj}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Bind assigns the handle the foreign side knows this model by. Indexes
// created by the model carry it. Only the first call has an effect.
func (m *ListModel) Bind(id uint32) {
	m.id.CompareAndSwap(0, id)
}

// ID returns the bound handle, or 0.
func (m *ListModel) ID() uint32 {
	return m.id.Load()
}

// Owner returns the parent the model was constructed with.
func (m *ListModel) Owner() bridge.Parent {
	return m.obj.Parent()
}

// Object exposes the bridged object, for instrumentation.
func (m *ListModel) Object() *bridge.Object[ListState] {
	return m.obj
}

// Close destroys the model state. It fails while a call is in progress.
func (m *ListModel) Close() error {
	return m.obj.Close()
}

func (m *ListModel) Data(ctx context.Context, index abi.ModelIndex, role Role) abi.Variant {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.dataWrapper(ctx, index, role)
}

func (m *ListModel) HasChildren(ctx context.Context, parent abi.ModelIndex) bool {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.hasChildrenWrapper(ctx, parent)
}

func (m *ListModel) RowCount(ctx context.Context, parent abi.ModelIndex) int32 {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.rowCountWrapper(ctx, parent)
}

func (m *ListModel) ColumnCount(ctx context.Context, parent abi.ModelIndex) int32 {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.columnCountWrapper(ctx, parent)
}

func (m *ListModel) SetData(ctx context.Context, index abi.ModelIndex, value abi.Variant, role Role) bool {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.setDataWrapper(ctx, index, value, role)
}

func (m *ListModel) Parent(ctx context.Context, index abi.ModelIndex) abi.ModelIndex {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.parentWrapper(ctx, index)
}

func (m *ListModel) Index(ctx context.Context, row, column int32, parent abi.ModelIndex) abi.ModelIndex {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return m.indexWrapper(ctx, row, column, parent)
}

// InsertRows inserts count empty rows before row under parent.
func (m *ListModel) InsertRows(ctx context.Context, row, count int32, parent abi.ModelIndex) bool {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return bridge.Mutate(ctx, m.obj, "insert-rows", false, func(_ context.Context, s *ListState) (bool, error) {
		if err := m.root(parent); err != nil {
			return false, err
		}
		return true, s.insertRows(row, count)
	})
}

// RemoveRows removes count rows starting at row under parent.
func (m *ListModel) RemoveRows(ctx context.Context, row, count int32, parent abi.ModelIndex) bool {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return bridge.Mutate(ctx, m.obj, "remove-rows", false, func(_ context.Context, s *ListState) (bool, error) {
		if err := m.root(parent); err != nil {
			return false, err
		}
		return true, s.removeRows(row, count)
	})
}

// RequestUpdate runs the update-request handler under the lock.
func (m *ListModel) RequestUpdate(ctx context.Context) bool {
	ctx, release := m.obj.Guard(ctx)
	defer release()
	return bridge.Mutate(ctx, m.obj, "request-update", false, func(ctx context.Context, s *ListState) (bool, error) {
		s.updates++
		if m.onUpdate == nil {
			return true, nil
		}
		return true, m.onUpdate.HandleUpdateRequest(ctx, m)
	})
}

// Replace publishes a new set of display rows, typically from background
// work. It blocks while the model is in use and reports the change to the
// change handler. The reported range covers the larger of the old and new
// row counts, so rows that disappeared are included.
func (m *ListModel) Replace(ctx context.Context, rows [][]abi.Variant) error {
	return m.obj.Publish(ctx, func(ctx context.Context, s *ListState) {
		extent := s.rows
		s.replace(rows)
		extent = max(extent, s.rows)
		if extent == 0 {
			return
		}
		m.changed(ctx, m.at(0, 0), m.at(extent-1, s.columns-1))
	})
}

func (m *ListModel) dataWrapper(ctx context.Context, index abi.ModelIndex, role Role) abi.Variant {
	return bridge.Query(ctx, m.obj, "data", abi.InvalidVariant(), func(_ context.Context, s *ListState) (abi.Variant, error) {
		if err := m.owns(index); err != nil {
			return abi.InvalidVariant(), err
		}
		return s.data(index, role)
	})
}

func (m *ListModel) hasChildrenWrapper(ctx context.Context, parent abi.ModelIndex) bool {
	return bridge.Query(ctx, m.obj, "has-children", false, func(_ context.Context, s *ListState) (bool, error) {
		if parent.IsValid() {
			return false, m.owns(parent)
		}
		return s.rows > 0 && s.columns > 0, nil
	})
}

func (m *ListModel) rowCountWrapper(ctx context.Context, parent abi.ModelIndex) int32 {
	return bridge.Query(ctx, m.obj, "row-count", int32(0), func(_ context.Context, s *ListState) (int32, error) {
		if parent.IsValid() {
			return 0, m.owns(parent)
		}
		return s.rows, nil
	})
}

func (m *ListModel) columnCountWrapper(ctx context.Context, parent abi.ModelIndex) int32 {
	return bridge.Query(ctx, m.obj, "column-count", int32(0), func(_ context.Context, s *ListState) (int32, error) {
		if parent.IsValid() {
			return 0, m.owns(parent)
		}
		return s.columns, nil
	})
}

func (m *ListModel) setDataWrapper(ctx context.Context, index abi.ModelIndex, value abi.Variant, role Role) bool {
	return bridge.Mutate(ctx, m.obj, "set-data", false, func(ctx context.Context, s *ListState) (bool, error) {
		if err := m.owns(index); err != nil {
			return false, err
		}
		changed, err := s.setData(index, value, role)
		if err != nil {
			return false, err
		}
		if changed {
			m.changed(ctx, index, index)
		}
		return true, nil
	})
}

func (m *ListModel) parentWrapper(ctx context.Context, index abi.ModelIndex) abi.ModelIndex {
	return bridge.Query(ctx, m.obj, "parent", abi.InvalidIndex(), func(_ context.Context, s *ListState) (abi.ModelIndex, error) {
		if err := m.owns(index); err != nil {
			return abi.InvalidIndex(), err
		}
		// Items of a flat table hang off the root.
		return abi.InvalidIndex(), s.contains(index.Row, index.Column)
	})
}

func (m *ListModel) indexWrapper(ctx context.Context, row, column int32, parent abi.ModelIndex) abi.ModelIndex {
	return bridge.Query(ctx, m.obj, "index", abi.InvalidIndex(), func(_ context.Context, s *ListState) (abi.ModelIndex, error) {
		if err := m.root(parent); err != nil {
			return abi.InvalidIndex(), err
		}
		if err := s.contains(row, column); err != nil {
			return abi.InvalidIndex(), err
		}
		return m.at(row, column), nil
	})
}

// changed runs the change handler. The caller holds the lock on ctx.
func (m *ListModel) changed(ctx context.Context, top, bottom abi.ModelIndex) {
	if m.onChange == nil {
		return
	}
	bridge.Logger().Debug("model data changed",
		zap.Uint32("model", m.ID()),
		zap.Int32("top", top.Row),
		zap.Int32("bottom", bottom.Row),
	)
	m.onChange.OnDataChanged(ctx, m, top, bottom)
}

func (m *ListModel) at(row, column int32) abi.ModelIndex {
	return abi.Index(row, column, m.ID())
}

// owns checks that index is a valid index created by this model.
func (m *ListModel) owns(index abi.ModelIndex) error {
	if !index.IsValid() {
		return errors.InvalidInput(errors.PhaseDispatch, "invalid model index")
	}
	if index.Model != m.ID() {
		return errors.New(errors.PhaseDispatch, errors.KindInvalidHandle).
			Detail("index of model %d used with model %d", index.Model, m.ID()).
			Value(index.Model).
			Build()
	}
	return nil
}

// root checks that parent addresses the root of a flat table.
func (m *ListModel) root(parent abi.ModelIndex) error {
	if parent.IsValid() {
		return errors.InvalidInput(errors.PhaseDispatch, "flat table items have no children")
	}
	return nil
}
