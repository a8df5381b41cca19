package model

import (
	"context"

	"github.com/wippyai/wasm-bridge/abi"
)

// Role selects which facet of an item Data and SetData address.
type Role int32

const (
	RoleDisplay    Role = 0
	RoleDecoration Role = 1
	RoleEdit       Role = 2
	RoleToolTip    Role = 3
	RoleUser       Role = 0x0100
)

// storage maps roles that share a value to one key.
func (r Role) storage() Role {
	if r == RoleEdit {
		return RoleDisplay
	}
	return r
}

// ItemModel is the contract a view uses to navigate and edit a model.
type ItemModel interface {
	Data(ctx context.Context, index abi.ModelIndex, role Role) abi.Variant
	HasChildren(ctx context.Context, parent abi.ModelIndex) bool
	RowCount(ctx context.Context, parent abi.ModelIndex) int32
	ColumnCount(ctx context.Context, parent abi.ModelIndex) int32
	SetData(ctx context.Context, index abi.ModelIndex, value abi.Variant, role Role) bool
	Parent(ctx context.Context, index abi.ModelIndex) abi.ModelIndex
	Index(ctx context.Context, row, column int32, parent abi.ModelIndex) abi.ModelIndex
}

// ChangeHandler is told when a range of items changed. top and bottom are
// inclusive corners of the changed block.
type ChangeHandler interface {
	OnDataChanged(ctx context.Context, m *ListModel, top, bottom abi.ModelIndex)
}

// ChangeHandlerFunc adapts a function to ChangeHandler.
type ChangeHandlerFunc func(ctx context.Context, m *ListModel, top, bottom abi.ModelIndex)

func (f ChangeHandlerFunc) OnDataChanged(ctx context.Context, m *ListModel, top, bottom abi.ModelIndex) {
	f(ctx, m, top, bottom)
}

// UpdateRequestHandler runs when a view asks the model to refresh.
type UpdateRequestHandler interface {
	HandleUpdateRequest(ctx context.Context, m *ListModel) error
}

// UpdateRequestHandlerFunc adapts a function to UpdateRequestHandler.
type UpdateRequestHandlerFunc func(ctx context.Context, m *ListModel) error

func (f UpdateRequestHandlerFunc) HandleUpdateRequest(ctx context.Context, m *ListModel) error {
	return f(ctx, m)
}
