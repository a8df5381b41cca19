package abi

// ModelIndex locates an item in a model. It mirrors the guest's
// {row: s32, column: s32, id: ptr, model: ptr} record; Model carries the
// handle of the owning model.
type ModelIndex struct {
	Row    int32
	Column int32
	ID     uint32
	Model  uint32
}

// InvalidIndex returns the index that refers to no item. Its Model is 0.
func InvalidIndex() ModelIndex {
	return ModelIndex{Row: -1, Column: -1}
}

// Index returns the index of row, column in model handle m.
func Index(row, column int32, m uint32) ModelIndex {
	return ModelIndex{Row: row, Column: column, Model: m}
}

func (i ModelIndex) IsValid() bool {
	return i.Row >= 0 && i.Column >= 0 && i.Model != 0
}

// Sibling returns the index at row, column under the same parent.
func (i ModelIndex) Sibling(row, column int32) ModelIndex {
	if !i.IsValid() {
		return InvalidIndex()
	}
	return ModelIndex{Row: row, Column: column, ID: i.ID, Model: i.Model}
}
