// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package arenaskl

import (
	"github.com/cockroachdb/shale/db"
)

// Iterator is an iterator over the skiplist. Use Skiplist.NewIter to
// construct one. Each iterator is single-threaded, but distinct iterators
// over the same skiplist may run in parallel with each other and with one
// writer.
type Iterator struct {
	list *Skiplist
	nd   *node
}

// Iterator implements the db.InternalIterator interface.
var _ db.InternalIterator = (*Iterator)(nil)

// NewIter returns a new, unpositioned iterator over the skiplist.
func (s *Skiplist) NewIter() *Iterator {
	return &Iterator{list: s, nd: s.tail}
}

// SeekGE moves the iterator to the first entry whose key is greater than or
// equal to the given key.
func (it *Iterator) SeekGE(key db.InternalKey) {
	it.nd = it.list.seekGE(key)
}

// First moves the iterator to the first entry.
func (it *Iterator) First() {
	it.nd = it.list.getNext(it.list.head, 0)
}

// Last moves the iterator to the last entry.
func (it *Iterator) Last() {
	it.nd = it.list.getPrev(it.list.tail, 0)
}

// Next moves the iterator to the next entry.
func (it *Iterator) Next() bool {
	if it.nd != it.list.tail {
		it.nd = it.list.getNext(it.nd, 0)
	}
	return it.Valid()
}

// Prev moves the iterator to the previous entry.
func (it *Iterator) Prev() bool {
	if it.nd != it.list.head {
		it.nd = it.list.getPrev(it.nd, 0)
	}
	return it.Valid()
}

// Key returns the internal key at the current position. The user key
// aliases arena memory and is valid for the lifetime of the skiplist.
func (it *Iterator) Key() db.InternalKey {
	return it.list.getKey(it.nd)
}

// Value returns the value at the current position.
func (it *Iterator) Value() []byte {
	return it.list.getValue(it.nd)
}

// Valid returns whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.nd != it.list.head && it.nd != it.list.tail
}

// Error returns any accumulated error. Skiplist iteration cannot fail.
func (it *Iterator) Error() error {
	return nil
}

// Close closes the iterator.
func (it *Iterator) Close() error {
	it.nd = it.list.tail
	return nil
}
