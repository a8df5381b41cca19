// Package abi defines the mirror value types exchanged with guests.
//
// Each type here is laid out exactly like its guest-side counterpart so that
// values are copied into and out of guest linear memory byte for byte. The
// layouts are pinned three ways: a generated constant assertion block
// (zz_layout_assert.go) fails compilation on any size or alignment drift,
// init verifies field offsets and copy semantics with the mirror package, and
// Load/Store refuse misaligned guest offsets.
package abi
