// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package table

import (
	"encoding/binary"
	"sort"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/internal/varint"
)

// blockWriter accumulates a single block: prefix-compressed entries followed
// by the restart array.
type blockWriter struct {
	restartInterval int
	nEntries        int
	// counter is the number of entries emitted since the last restart
	// point.
	counter  int
	buf      []byte
	restarts []uint32
	// curKey and prevKey hold the encoded forms of the two keys most
	// recently added; the buffers are swapped on each add.
	curKey   []byte
	prevKey  []byte
	finished bool
	tmp      [3 * varint.MaxLen32]byte
}

func newBlockWriter(restartInterval int) *blockWriter {
	if restartInterval < 1 {
		panic("shale/table: invalid block restart interval")
	}
	return &blockWriter{
		restartInterval: restartInterval,
		restarts:        []uint32{0},
	}
}

// add appends a key/value pair. Keys must arrive in strictly increasing
// order; Writer.Add enforces the ordering, so a violation here is a
// programmer error.
func (w *blockWriter) add(key db.InternalKey, value []byte) {
	if w.finished {
		panic("shale/table: add called on a finished block")
	}
	if w.counter > w.restartInterval {
		panic("shale/table: restart counter out of range")
	}

	w.curKey, w.prevKey = w.prevKey, w.curKey

	size := key.Size()
	if cap(w.curKey) < size {
		w.curKey = make([]byte, 0, size*2)
	}
	w.curKey = w.curKey[:size]
	key.Encode(w.curKey)

	shared := 0
	if w.counter == w.restartInterval {
		w.restarts = append(w.restarts, uint32(len(w.buf)))
		w.counter = 0
	} else if w.nEntries > 0 {
		shared = db.SharedPrefixLen(w.curKey, w.prevKey)
	}

	n := varint.Encode32(w.tmp[0:], uint32(shared))
	n += varint.Encode32(w.tmp[n:], uint32(size-shared))
	n += varint.Encode32(w.tmp[n:], uint32(len(value)))
	w.buf = append(w.buf, w.tmp[:n]...)
	w.buf = append(w.buf, w.curKey[shared:]...)
	w.buf = append(w.buf, value...)

	w.nEntries++
	w.counter++
}

// finish appends the restart array and returns the completed block. The
// writer may be reused via reset.
func (w *blockWriter) finish() []byte {
	if w.nEntries == 0 {
		// Every block has at least one restart point.
		w.restarts = w.restarts[:1]
		w.restarts[0] = 0
	}
	tmp4 := w.tmp[:4]
	for _, x := range w.restarts {
		binary.LittleEndian.PutUint32(tmp4, x)
		w.buf = append(w.buf, tmp4...)
	}
	binary.LittleEndian.PutUint32(tmp4, uint32(len(w.restarts)))
	w.buf = append(w.buf, tmp4...)
	w.finished = true
	return w.buf
}

// reset clears the writer for a new block.
func (w *blockWriter) reset() {
	w.buf = w.buf[:0]
	w.restarts = append(w.restarts[:0], 0)
	w.nEntries = 0
	w.counter = 0
	w.curKey = w.curKey[:0]
	w.prevKey = w.prevKey[:0]
	w.finished = false
}

// estimatedSize returns the block size once finished: the entries plus the
// restart array and its length.
func (w *blockWriter) estimatedSize() int {
	return len(w.buf) + 4*(len(w.restarts)+1)
}

// blockEntry is a cached position within a block, used for backward
// iteration.
type blockEntry struct {
	offset int
	key    []byte
	val    []byte
}

// blockIter is an iterator over a single block of data.
type blockIter struct {
	cmp         db.Compare
	offset      int
	nextOffset  int
	restarts    int
	numRestarts int
	data        []byte
	key, val    []byte
	ikey        db.InternalKey
	// cached entries between the preceding restart point and the current
	// position, accumulated lazily to support Prev.
	cached    []blockEntry
	cachedBuf []byte
	err       error
}

func newBlockIter(cmp db.Compare, block []byte) (*blockIter, error) {
	i := &blockIter{}
	return i, i.init(cmp, block)
}

func (i *blockIter) init(cmp db.Compare, block []byte) error {
	if len(block) < 4 {
		return db.CorruptionErrorf("shale/table: invalid block (truncated restart trailer)")
	}
	numRestarts := int(binary.LittleEndian.Uint32(block[len(block)-4:]))
	if numRestarts == 0 {
		return db.CorruptionErrorf("shale/table: invalid block (no restart points)")
	}
	restarts := len(block) - 4*(1+numRestarts)
	if restarts < 0 {
		return db.CorruptionErrorf("shale/table: invalid block (bad restart count)")
	}
	*i = blockIter{
		cmp:         cmp,
		restarts:    restarts,
		numRestarts: numRestarts,
		data:        block,
		key:         make([]byte, 0, 256),
		offset:      -1,
	}
	return nil
}

// readEntry decodes the entry at i.offset, extending i.key by its unshared
// suffix.
func (i *blockIter) readEntry() {
	shared, n := varint.Decode32(i.data[i.offset:])
	i.nextOffset = i.offset + n
	unshared, n := varint.Decode32(i.data[i.nextOffset:])
	i.nextOffset += n
	value, n := varint.Decode32(i.data[i.nextOffset:])
	i.nextOffset += n
	i.key = append(i.key[:shared], i.data[i.nextOffset:i.nextOffset+int(unshared)]...)
	i.key = i.key[:len(i.key):len(i.key)]
	i.nextOffset += int(unshared)
	i.val = i.data[i.nextOffset : i.nextOffset+int(value) : i.nextOffset+int(value)]
	i.nextOffset += int(value)
}

func (i *blockIter) loadEntry() {
	i.readEntry()
	i.ikey = db.DecodeInternalKey(i.key)
}

func (i *blockIter) clearCache() {
	i.cached = i.cached[:0]
	i.cachedBuf = i.cachedBuf[:0]
}

func (i *blockIter) cacheEntry() {
	i.cachedBuf = append(i.cachedBuf, i.key...)
	i.cached = append(i.cached, blockEntry{
		offset: i.offset,
		key:    i.cachedBuf[len(i.cachedBuf)-len(i.key) : len(i.cachedBuf) : len(i.cachedBuf)],
		val:    i.val,
	})
}

// restartOffset returns the entry offset recorded in the j'th restart point.
func (i *blockIter) restartOffset(j int) int {
	return int(binary.LittleEndian.Uint32(i.data[i.restarts+4*j:]))
}

// restartKey returns the full key stored at the j'th restart point. Restart
// entries share no bytes with their predecessor, so the key is stored
// whole.
func (i *blockIter) restartKey(j int) db.InternalKey {
	offset := i.restartOffset(j)
	// shared is always the one-byte varint 0 at a restart point.
	offset++
	v1, n1 := varint.Decode32(i.data[offset:])
	_, n2 := varint.Decode32(i.data[offset+n1:])
	m := offset + n1 + n2
	return db.DecodeInternalKey(i.data[m : m+int(v1)])
}

// SeekGE moves the iterator to the first entry whose key is >= the given
// key.
func (i *blockIter) SeekGE(key db.InternalKey) {
	if i.restarts == 0 {
		// The block holds no entries.
		i.offset = -1
		return
	}
	// Find the index of the smallest restart point whose key is > the key
	// sought; index will be numRestarts if there is no such restart point.
	index := sort.Search(i.numRestarts, func(j int) bool {
		return db.InternalCompare(i.cmp, key, i.restartKey(j)) < 0
	})

	// Since keys are strictly increasing, if index > 0 then the restart
	// point at index-1 is the largest whose key is <= the key sought. If
	// index == 0, then all keys in this block are larger than the sought
	// key, and position zero is the answer.
	i.offset = 0
	if index > 0 {
		i.offset = i.restartOffset(index - 1)
	}
	i.clearCache()
	i.loadEntry()

	// Walk forward from that restart point to somewhere >= the key sought.
	for ; i.Valid(); i.Next() {
		if db.InternalCompare(i.cmp, key, i.ikey) <= 0 {
			break
		}
	}
}

// First moves the iterator to the first entry.
func (i *blockIter) First() {
	if i.restarts == 0 {
		i.offset = -1
		return
	}
	i.offset = 0
	i.clearCache()
	i.loadEntry()
}

// Last moves the iterator to the last entry.
func (i *blockIter) Last() {
	if i.restarts == 0 {
		i.offset = -1
		return
	}
	// Walk forward from the last restart point, caching entries so that
	// Prev can step back.
	i.offset = i.restartOffset(i.numRestarts - 1)
	i.readEntry()
	i.clearCache()
	i.cacheEntry()

	for i.nextOffset < i.restarts {
		i.offset = i.nextOffset
		i.readEntry()
		i.cacheEntry()
	}

	i.ikey = db.DecodeInternalKey(i.key)
}

// Next moves the iterator to the next entry.
func (i *blockIter) Next() bool {
	if i.offset < 0 {
		return false
	}
	i.offset = i.nextOffset
	if !i.Valid() {
		return false
	}
	i.loadEntry()
	return true
}

// Prev moves the iterator to the previous entry.
func (i *blockIter) Prev() bool {
	// The common case is a cached entry from a previous Last or Prev.
	if n := len(i.cached) - 1; n > 0 && i.cached[n].offset == i.offset {
		i.nextOffset = i.offset
		e := &i.cached[n-1]
		i.offset = e.offset
		i.val = e.val
		i.key = append(i.key[:0], e.key...)
		i.ikey = db.DecodeInternalKey(i.key)
		i.cached = i.cached[:n]
		return true
	}

	if i.offset <= 0 {
		i.offset = -1
		i.nextOffset = 0
		return false
	}

	// Re-walk from the preceding restart point, caching entries on the way.
	targetOffset := i.offset
	index := sort.Search(i.numRestarts, func(j int) bool {
		return i.restartOffset(j) >= targetOffset
	})
	i.offset = 0
	if index > 0 {
		i.offset = i.restartOffset(index - 1)
	}

	i.readEntry()
	i.clearCache()
	i.cacheEntry()

	for i.nextOffset < targetOffset {
		i.offset = i.nextOffset
		i.readEntry()
		i.cacheEntry()
	}

	i.ikey = db.DecodeInternalKey(i.key)
	return true
}

// Key returns the internal key at the current position.
func (i *blockIter) Key() db.InternalKey {
	return i.ikey
}

// Value returns the value at the current position.
func (i *blockIter) Value() []byte {
	return i.val
}

// Valid returns whether the iterator is positioned at an entry.
func (i *blockIter) Valid() bool {
	return i.offset >= 0 && i.offset < i.restarts
}

// Error returns any accumulated error.
func (i *blockIter) Error() error {
	return i.err
}

// Close closes the iterator.
func (i *blockIter) Close() error {
	i.val = nil
	return i.err
}
