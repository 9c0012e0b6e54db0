// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"github.com/cockroachdb/shale/db"
)

type mergingIterDirection int8

const (
	forward mergingIterDirection = iota
	reverse
)

// mergingIter provides a merged view of multiple iterators from different
// levels of the LSM: memtables and tables, each already sorted by internal
// key. Walking the merged iterator returns the union of all children's
// key/value pairs in internal key order. Children may carry identical
// internal-key user keys (at different sequence numbers) and even identical
// internal keys; ties are broken by child index, with the smallest index
// winning, so the traversal order is deterministic.
//
// The iterator tracks its traversal direction. Reversing direction is the
// subtle part: while iterating forward, the non-current children rest at
// keys greater than or equal to the current one, so before a Prev can be honored
// every non-current child must be re-positioned strictly before the current
// key. Symmetrically for Next after reverse iteration. The re-seek step is a
// correctness requirement, not an optimization.
type mergingIter struct {
	cmp     db.Compare
	iters   []db.InternalIterator
	current int
	dir     mergingIterDirection
	err     error
}

// mergingIter implements the db.InternalIterator interface.
var _ db.InternalIterator = (*mergingIter)(nil)

// NewMergingIter returns an iterator that merges its inputs. For zero inputs
// the result is an always-invalid iterator; a single input is returned
// unwrapped.
func NewMergingIter(cmp db.Compare, iters ...db.InternalIterator) db.InternalIterator {
	switch len(iters) {
	case 0:
		return &emptyIter{}
	case 1:
		return iters[0]
	default:
		return &mergingIter{
			cmp:     cmp,
			iters:   iters,
			current: -1,
		}
	}
}

// SeekGE implements InternalIterator.SeekGE, as documented in the shale/db
// package.
func (m *mergingIter) SeekGE(key db.InternalKey) {
	for _, t := range m.iters {
		t.SeekGE(key)
	}
	m.findSmallest()
	m.dir = forward
}

// First implements InternalIterator.First, as documented in the shale/db
// package.
func (m *mergingIter) First() {
	for _, t := range m.iters {
		t.First()
	}
	m.findSmallest()
	m.dir = forward
}

// Last implements InternalIterator.Last, as documented in the shale/db
// package.
func (m *mergingIter) Last() {
	for _, t := range m.iters {
		t.Last()
	}
	m.findLargest()
	m.dir = reverse
}

// Next implements InternalIterator.Next, as documented in the shale/db
// package. It must only be called while the iterator is valid.
func (m *mergingIter) Next() bool {
	if m.err != nil || m.current < 0 {
		return false
	}

	if m.dir != forward {
		// Reverse traversal left every non-current child at a key <= the
		// current key. Position each strictly after it: seek to the key,
		// then step over an exact match.
		key := m.iters[m.current].Key()
		for i, t := range m.iters {
			if i == m.current {
				continue
			}
			t.SeekGE(key)
			if t.Valid() && db.InternalCompare(m.cmp, key, t.Key()) == 0 {
				t.Next()
			}
		}
		m.dir = forward
	}

	m.iters[m.current].Next()
	m.findSmallest()
	return m.Valid()
}

// Prev implements InternalIterator.Prev, as documented in the shale/db
// package. It must only be called while the iterator is valid.
func (m *mergingIter) Prev() bool {
	if m.err != nil || m.current < 0 {
		return false
	}

	if m.dir != reverse {
		// Forward traversal left every non-current child at a key >= the
		// current key. Position each strictly before it: seek to the key
		// and step back once, or to the last entry if the whole child is
		// before the key.
		key := m.iters[m.current].Key()
		for i, t := range m.iters {
			if i == m.current {
				continue
			}
			t.SeekGE(key)
			if t.Valid() {
				t.Prev()
			} else {
				t.Last()
			}
		}
		m.dir = reverse
	}

	m.iters[m.current].Prev()
	m.findLargest()
	return m.Valid()
}

// findSmallest sets current to the valid child with the smallest key,
// breaking ties in favor of the smallest child index.
func (m *mergingIter) findSmallest() {
	m.current = -1
	for i, t := range m.iters {
		if !t.Valid() {
			continue
		}
		if m.current < 0 ||
			db.InternalCompare(m.cmp, t.Key(), m.iters[m.current].Key()) < 0 {
			m.current = i
		}
	}
}

// findLargest sets current to the valid child with the largest key, breaking
// ties in favor of the smallest child index.
func (m *mergingIter) findLargest() {
	m.current = -1
	for i, t := range m.iters {
		if !t.Valid() {
			continue
		}
		if m.current < 0 ||
			db.InternalCompare(m.cmp, t.Key(), m.iters[m.current].Key()) > 0 {
			m.current = i
		}
	}
}

// Key implements InternalIterator.Key, as documented in the shale/db
// package.
func (m *mergingIter) Key() db.InternalKey {
	if m.current < 0 {
		return db.MakeInternalKey(nil, 0, db.InternalKeyKindInvalid)
	}
	return m.iters[m.current].Key()
}

// Value implements InternalIterator.Value, as documented in the shale/db
// package.
func (m *mergingIter) Value() []byte {
	if m.current < 0 {
		return nil
	}
	return m.iters[m.current].Value()
}

// Valid implements InternalIterator.Valid, as documented in the shale/db
// package.
func (m *mergingIter) Valid() bool {
	return m.err == nil && m.current >= 0 && m.iters[m.current].Valid()
}

// Error implements InternalIterator.Error, returning the first error
// observed across the children.
func (m *mergingIter) Error() error {
	if m.err != nil {
		return m.err
	}
	for _, t := range m.iters {
		if err := t.Error(); err != nil {
			return err
		}
	}
	return nil
}

// Close implements InternalIterator.Close, as documented in the shale/db
// package.
func (m *mergingIter) Close() error {
	for _, t := range m.iters {
		if err := t.Close(); err != nil && m.err == nil {
			m.err = err
		}
	}
	m.iters = nil
	m.current = -1
	return m.err
}

// emptyIter is an always-invalid iterator.
type emptyIter struct{}

var _ db.InternalIterator = (*emptyIter)(nil)

func (*emptyIter) SeekGE(key db.InternalKey) {}
func (*emptyIter) First()                    {}
func (*emptyIter) Last()                     {}
func (*emptyIter) Next() bool                { return false }
func (*emptyIter) Prev() bool                { return false }
func (*emptyIter) Key() db.InternalKey {
	return db.MakeInternalKey(nil, 0, db.InternalKeyKindInvalid)
}
func (*emptyIter) Value() []byte { return nil }
func (*emptyIter) Valid() bool   { return false }
func (*emptyIter) Error() error  { return nil }
func (*emptyIter) Close() error  { return nil }
