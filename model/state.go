package model

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-bridge/abi"
	"github.com/wippyai/wasm-bridge/errors"
)

// ListState is the bridged value behind a ListModel: a flat table of
// variants addressed by row, column and role. Only the root has children.
type ListState struct {
	cells   map[cell]abi.Variant
	rows    int32
	columns int32
	updates int
}

type cell struct {
	row    int32
	column int32
	role   Role
}

// NewListState is the default factory: an empty table with one column.
func NewListState() *ListState {
	return &ListState{
		cells:   make(map[cell]abi.Variant),
		columns: 1,
	}
}

// NewTableState returns an empty table with the given number of columns.
func NewTableState(columns int32) (*ListState, error) {
	if columns <= 0 {
		return nil, errors.InvalidInput(errors.PhaseBridge, fmt.Sprintf("column count %d", columns))
	}
	s := NewListState()
	s.columns = columns
	return s, nil
}

// Rows returns the number of rows.
func (s *ListState) Rows() int32 { return s.rows }

// Columns returns the number of columns.
func (s *ListState) Columns() int32 { return s.columns }

// Updates returns how many update requests were handled.
func (s *ListState) Updates() int { return s.updates }

// Cell returns the value stored at row, column for role.
func (s *ListState) Cell(row, column int32, role Role) abi.Variant {
	return s.cells[cell{row: row, column: column, role: role.storage()}]
}

func (s *ListState) contains(row, column int32) error {
	if row < 0 || row >= s.rows {
		return errors.OutOfBounds(errors.PhaseDispatch, []string{"row"}, int(row), int(s.rows))
	}
	if column < 0 || column >= s.columns {
		return errors.OutOfBounds(errors.PhaseDispatch, []string{"column"}, int(column), int(s.columns))
	}
	return nil
}

func checkRole(role Role) error {
	if role < 0 {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("role %d", role))
	}
	return nil
}

func (s *ListState) data(index abi.ModelIndex, role Role) (abi.Variant, error) {
	if err := checkRole(role); err != nil {
		return abi.InvalidVariant(), err
	}
	if err := s.contains(index.Row, index.Column); err != nil {
		return abi.InvalidVariant(), err
	}
	return s.Cell(index.Row, index.Column, role), nil
}

// setData stores value and reports whether the stored value changed.
func (s *ListState) setData(index abi.ModelIndex, value abi.Variant, role Role) (bool, error) {
	if err := checkRole(role); err != nil {
		return false, err
	}
	if err := s.contains(index.Row, index.Column); err != nil {
		return false, err
	}

	key := cell{row: index.Row, column: index.Column, role: role.storage()}
	old, had := s.cells[key]
	if !value.IsValid() {
		delete(s.cells, key)
		return had, nil
	}
	s.cells[key] = value
	return !had || old.Kind != value.Kind || old.Bits != value.Bits, nil
}

func (s *ListState) insertRows(row, count int32) error {
	if count <= 0 {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("row count %d", count))
	}
	if row < 0 || row > s.rows {
		return errors.OutOfBounds(errors.PhaseDispatch, []string{"row"}, int(row), int(s.rows)+1)
	}
	if int64(s.rows)+int64(count) > math.MaxInt32 {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("%d rows exceed the row limit", int64(s.rows)+int64(count)))
	}
	s.shiftRows(row, count)
	s.rows += count
	return nil
}

func (s *ListState) removeRows(row, count int32) error {
	if count <= 0 {
		return errors.InvalidInput(errors.PhaseDispatch, fmt.Sprintf("row count %d", count))
	}
	if row < 0 || int64(row)+int64(count) > int64(s.rows) {
		return errors.OutOfBounds(errors.PhaseDispatch, []string{"row"}, int(int64(row)+int64(count)-1), int(s.rows))
	}
	for k := range s.cells {
		if k.row >= row && k.row < row+count {
			delete(s.cells, k)
		}
	}
	s.shiftRows(row+count, -count)
	s.rows -= count
	return nil
}

// shiftRows moves every cell at or below from by delta rows.
func (s *ListState) shiftRows(from, delta int32) {
	moved := make(map[cell]abi.Variant)
	for k, v := range s.cells {
		if k.row >= from {
			delete(s.cells, k)
			k.row += delta
			moved[k] = v
		}
	}
	for k, v := range moved {
		s.cells[k] = v
	}
}

// replace swaps the contents for rows of display values. Every row is
// padded or cut to the column count.
func (s *ListState) replace(rows [][]abi.Variant) {
	s.cells = make(map[cell]abi.Variant)
	s.rows = int32(len(rows))
	for r, values := range rows {
		for c, v := range values {
			if int32(c) >= s.columns {
				break
			}
			if v.IsValid() {
				s.cells[cell{row: int32(r), column: int32(c), role: RoleDisplay}] = v
			}
		}
	}
}
