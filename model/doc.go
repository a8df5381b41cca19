// Package model hosts item models for a foreign runtime.
//
// ItemModel is the foreign base-class contract: the virtual methods a view
// calls to read and edit a table of values. ListModel is the wrapper that
// implements it on top of a bridged ListState. Each method takes the
// object's lock for the whole call and delegates to a forwarding function
// that borrows the state, runs the model logic and maps failures to the
// sentinel the contract expects:
//
//	data          invalid Variant
//	has-children  false
//	row-count     0
//	column-count  0
//	set-data      false
//	parent, index invalid ModelIndex
//
// Handlers installed at construction act as foreign overrides. They run on
// the calling chain with the lock held, so they may call back into the same
// model.
package model
