// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"sync/atomic"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/internal/arenaskl"
)

// A MemTable implements the in-memory, mutable layer of the LSM. It is
// append-only: records are added but never removed. Deletion is supported
// via tombstones, which mask older values for the same user key; it is up to
// higher level code (compaction) to discard the masked entries.
//
// A MemTable is implemented on top of a single-writer, multi-reader
// arena-backed skiplist. The arena is a fixed-size contiguous chunk of
// memory (see db.Options.MemTableSize), so a memtable's memory consumption
// is fixed at creation time. When an Add fails with arenaskl.ErrArenaFull,
// the memtable must be flushed through buildTable and replaced.
//
// It is safe to call Get and NewIter concurrently with one writer calling
// Add; the external database layer serializes writers.
type MemTable struct {
	cmp   db.Compare
	equal db.Equal
	skl   *arenaskl.Skiplist
	refs  atomic.Int32
}

// NewMemTable returns a new MemTable.
func NewMemTable(o *db.Options) *MemTable {
	o = o.EnsureDefaults()
	m := &MemTable{
		cmp:   o.Comparer.Compare,
		equal: o.Comparer.Equal,
		skl:   arenaskl.NewSkiplist(arenaskl.NewArena(uint32(o.MemTableSize)), o.Comparer.Compare),
	}
	m.refs.Store(1)
	return m
}

// Ref adds a reference. The active writer holds one reference; readers
// borrow one per open iterator.
func (m *MemTable) Ref() {
	m.refs.Add(1)
}

// Unref removes a reference, returning true if that was the last one and
// the memtable may be discarded (or flushed, if it is the retired mutable
// memtable).
func (m *MemTable) Unref() bool {
	switch v := m.refs.Add(-1); {
	case v < 0:
		panic("shale: inconsistent memtable reference count")
	case v == 0:
		return true
	default:
		return false
	}
}

// Add inserts an entry for the given sequence number and kind. Tombstones
// are added with a nil value. Writers must be serialized externally.
func (m *MemTable) Add(seqNum uint64, kind db.InternalKeyKind, ukey, value []byte) error {
	return m.skl.Add(db.MakeInternalKey(ukey, seqNum, kind), value)
}

// Get looks up the newest entry for the lookup key's user key that is
// visible at the lookup key's sequence number. It returns ok=false if no
// such entry exists. If the entry is a tombstone, it returns ok=true with
// ErrNotFound: the key is present but masked, and lower LSM levels must not
// be consulted.
func (m *MemTable) Get(lk db.LookupKey) (value []byte, ok bool, err error) {
	it := m.skl.NewIter()
	it.SeekGE(lk.InternalKey())
	if !it.Valid() {
		return nil, false, nil
	}
	key := it.Key()
	if !m.equal(lk.UserKey(), key.UserKey) {
		return nil, false, nil
	}
	if key.Kind() == db.InternalKeyKindDelete {
		return nil, true, db.ErrNotFound
	}
	return it.Value(), true, nil
}

// NewIter returns a bidirectional iterator over the memtable's entries in
// internal key order. The iterator is unpositioned; position it via SeekGE,
// First or Last.
func (m *MemTable) NewIter() db.InternalIterator {
	return m.skl.NewIter()
}

// Empty returns whether the memtable holds no entries.
func (m *MemTable) Empty() bool {
	it := m.skl.NewIter()
	it.First()
	return !it.Valid()
}

// ApproximateMemoryUsage returns the number of bytes allocated from the
// memtable's arena.
func (m *MemTable) ApproximateMemoryUsage() int {
	return int(m.skl.Size())
}
