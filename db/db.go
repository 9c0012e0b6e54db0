// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package db defines the shared kernel of the shale storage engine: internal
// keys, comparers, options, error kinds, the iterator contract and the
// file-system capability that the rest of the engine is polymorphic over.
package db // import "github.com/cockroachdb/shale/db"

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound means that a get or delete call did not find the requested key.
var ErrNotFound = errors.New("shale: not found")

// ErrCorruption is a marker error for corrupted database state. Errors
// produced when reading malformed on-disk or in-memory representations wrap
// this marker and are detectable with IsCorruption.
var ErrCorruption = errors.New("shale: corruption")

// ErrNotSupported is a marker error for operations the engine does not
// implement.
var ErrNotSupported = errors.New("shale: not supported")

// ErrInvalidArgument is a marker error for caller-supplied arguments that
// violate an interface contract in a recoverable way.
var ErrInvalidArgument = errors.New("shale: invalid argument")

// CorruptionErrorf formats an error marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// IsCorruption returns true if the error indicates database corruption.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// InternalIterator iterates over a store's key/value pairs in internal key
// order. It is the contract shared by memtable iterators, table iterators and
// the merging iterator that unifies them.
//
// An iterator must be closed after use, but it is not necessary to read an
// iterator until exhaustion.
//
// An iterator is not goroutine-safe, but it is safe to use multiple iterators
// concurrently, with each in a dedicated goroutine, even over the same
// underlying store.
type InternalIterator interface {
	// SeekGE moves the iterator to the first key/value pair whose key is
	// greater than or equal to the given key.
	SeekGE(key InternalKey)

	// First moves the iterator to the first key/value pair.
	First()

	// Last moves the iterator to the last key/value pair.
	Last()

	// Next moves the iterator to the next key/value pair. It returns whether
	// the iterator is pointing at a valid entry.
	Next() bool

	// Prev moves the iterator to the previous key/value pair. It returns
	// whether the iterator is pointing at a valid entry.
	Prev() bool

	// Key returns the internal key of the current key/value pair. The caller
	// should not modify the contents of the returned user key, and its
	// contents may change on the next call to Next or Prev.
	Key() InternalKey

	// Value returns the value of the current key/value pair. The caller
	// should not modify the contents of the returned slice, and its contents
	// may change on the next call to Next or Prev.
	Value() []byte

	// Valid returns true if the iterator is positioned at a valid key/value
	// pair and false otherwise.
	Valid() bool

	// Error returns any accumulated error. The merging iterator surfaces the
	// first error observed across its children.
	Error() error

	// Close closes the iterator and returns any accumulated error.
	// Exhausting all the key/value pairs is not an error. It is valid to
	// call Close multiple times.
	Close() error
}
