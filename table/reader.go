// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package table

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/internal/crc"
)

// Reader reads an immutable sorted table. It is safe to use a Reader from
// multiple goroutines, with each iterator in a dedicated one.
type Reader struct {
	file  db.File
	err   error
	cmp   *db.Comparer
	index []byte
}

// NewReader returns a new table reader over the file. The footer and index
// block are read eagerly; per-iterator reads fetch data blocks on demand.
func NewReader(f db.File, o *db.Options) (*Reader, error) {
	o = o.EnsureDefaults()
	r := &Reader{
		file: f,
		cmp:  o.Comparer,
	}
	if f == nil {
		r.err = errors.New("shale/table: nil file")
		return r, r.err
	}
	stat, err := f.Stat()
	if err != nil {
		r.err = errors.Wrap(err, "shale/table: invalid table")
		return r, r.err
	}
	if stat.Size() < footerLen {
		r.err = db.CorruptionErrorf("shale/table: invalid table (file size is too small)")
		return r, r.err
	}
	var footer [footerLen]byte
	if _, err := f.ReadAt(footer[:], stat.Size()-footerLen); err != nil {
		r.err = errors.Wrap(err, "shale/table: invalid table")
		return r, r.err
	}
	if string(footer[footerLen-len(magic):]) != magic {
		r.err = db.CorruptionErrorf("shale/table: invalid table (bad magic number)")
		return r, r.err
	}

	// The metaindex block handle comes first; this reader has no use for
	// meta blocks, but the handle must still parse.
	_, n := decodeBlockHandle(footer[:])
	if n == 0 {
		r.err = db.CorruptionErrorf("shale/table: invalid table (bad metaindex block handle)")
		return r, r.err
	}
	indexBH, m := decodeBlockHandle(footer[n:])
	if m == 0 {
		r.err = db.CorruptionErrorf("shale/table: invalid table (bad index block handle)")
		return r, r.err
	}

	r.index, r.err = r.readBlock(indexBH, true)
	if r.err != nil {
		return r, r.err
	}
	return r, nil
}

// Close releases the table's resources and closes the underlying file.
func (r *Reader) Close() error {
	if r.err != nil {
		if r.file != nil {
			r.file.Close()
			r.file = nil
		}
		return r.err
	}
	if r.file != nil {
		r.err = r.file.Close()
		r.file = nil
		if r.err != nil {
			return r.err
		}
	}
	// Make future calls fail.
	r.err = errors.New("shale/table: reader is closed")
	return nil
}

// readBlock reads the block described by bh, verifying its checksum if
// requested and decompressing as indicated by the trailer's type byte.
func (r *Reader) readBlock(bh blockHandle, verify bool) ([]byte, error) {
	b := make([]byte, bh.length+blockTrailerLen)
	if _, err := r.file.ReadAt(b, int64(bh.offset)); err != nil {
		return nil, err
	}
	if verify {
		checksum0 := binary.LittleEndian.Uint32(b[bh.length+1:])
		checksum1 := crc.New(b[:bh.length+1]).Value()
		if checksum0 != checksum1 {
			return nil, db.CorruptionErrorf("shale/table: invalid table (checksum mismatch)")
		}
	}
	switch b[bh.length] {
	case noCompressionBlockType:
		return b[:bh.length], nil
	case snappyCompressionBlockType:
		b, err := snappy.Decode(nil, b[:bh.length])
		if err != nil {
			return nil, db.CorruptionErrorf("shale/table: invalid table (%s)", err)
		}
		return b, nil
	}
	return nil, db.CorruptionErrorf("shale/table: unknown block compression: %d", b[bh.length])
}

// NewIter returns a bidirectional iterator over the table's entries. The
// iterator is unpositioned; position it via SeekGE, First or Last. Its
// Error method reports any corruption or I/O error encountered, including
// one from opening the reader itself.
func (r *Reader) NewIter(ro *db.ReadOptions) db.InternalIterator {
	t := &tableIter{reader: r}
	if ro != nil {
		t.verify = ro.VerifyChecksums
	}
	if r.err != nil {
		t.err = r.err
		return t
	}
	if err := t.index.init(r.cmp.Compare, r.index); err != nil {
		t.err = err
	}
	return t
}

// tableIter is a two-level iterator: an iterator over the index block
// positions an iterator over one data block at a time.
type tableIter struct {
	reader *Reader
	index  blockIter
	data   *blockIter
	verify bool
	err    error
}

// tableIter implements the db.InternalIterator interface.
var _ db.InternalIterator = (*tableIter)(nil)

// loadBlock loads the data block the index iterator is positioned at. It
// returns false, with the data iterator cleared, if the index is exhausted
// or the load fails.
func (t *tableIter) loadBlock() bool {
	t.data = nil
	if !t.index.Valid() {
		return false
	}
	bh, n := decodeBlockHandle(t.index.Value())
	if n == 0 {
		t.err = db.CorruptionErrorf("shale/table: invalid table (bad data block handle)")
		return false
	}
	block, err := t.reader.readBlock(bh, t.verify)
	if err != nil {
		t.err = err
		return false
	}
	t.data = &blockIter{}
	if err := t.data.init(t.reader.cmp.Compare, block); err != nil {
		t.err = err
		t.data = nil
		return false
	}
	return true
}

// skipForward advances through index entries until a non-empty data block
// is found, positioning at its first entry.
func (t *tableIter) skipForward() bool {
	for t.data == nil || !t.data.Valid() {
		if t.err != nil || !t.index.Next() {
			t.data = nil
			return false
		}
		if t.loadBlock() {
			t.data.First()
		}
	}
	return true
}

// skipBackward retreats through index entries until a non-empty data block
// is found, positioning at its last entry.
func (t *tableIter) skipBackward() bool {
	for t.data == nil || !t.data.Valid() {
		if t.err != nil || !t.index.Prev() {
			t.data = nil
			return false
		}
		if t.loadBlock() {
			t.data.Last()
		}
	}
	return true
}

// SeekGE implements InternalIterator.SeekGE, as documented in the shale/db
// package.
func (t *tableIter) SeekGE(key db.InternalKey) {
	if t.err != nil {
		return
	}
	// The index maps separator keys to blocks: a block's separator is >=
	// every key in it and < every key in its successor, so the first index
	// entry >= the sought key names the only block that can contain it.
	t.index.SeekGE(key)
	if t.loadBlock() {
		t.data.SeekGE(key)
	}
	t.skipForward()
}

// First implements InternalIterator.First, as documented in the shale/db
// package.
func (t *tableIter) First() {
	if t.err != nil {
		return
	}
	t.index.First()
	if t.loadBlock() {
		t.data.First()
	}
	t.skipForward()
}

// Last implements InternalIterator.Last, as documented in the shale/db
// package.
func (t *tableIter) Last() {
	if t.err != nil {
		return
	}
	t.index.Last()
	if t.loadBlock() {
		t.data.Last()
	}
	t.skipBackward()
}

// Next implements InternalIterator.Next, as documented in the shale/db
// package.
func (t *tableIter) Next() bool {
	if t.err != nil || t.data == nil {
		return false
	}
	if t.data.Next() {
		return true
	}
	return t.skipForward()
}

// Prev implements InternalIterator.Prev, as documented in the shale/db
// package.
func (t *tableIter) Prev() bool {
	if t.err != nil || t.data == nil {
		return false
	}
	if t.data.Prev() {
		return true
	}
	return t.skipBackward()
}

// Key implements InternalIterator.Key, as documented in the shale/db
// package.
func (t *tableIter) Key() db.InternalKey {
	if t.data == nil {
		return db.MakeInternalKey(nil, 0, db.InternalKeyKindInvalid)
	}
	return t.data.Key()
}

// Value implements InternalIterator.Value, as documented in the shale/db
// package.
func (t *tableIter) Value() []byte {
	if t.data == nil {
		return nil
	}
	return t.data.Value()
}

// Valid implements InternalIterator.Valid, as documented in the shale/db
// package.
func (t *tableIter) Valid() bool {
	return t.err == nil && t.data != nil && t.data.Valid()
}

// Error implements InternalIterator.Error, as documented in the shale/db
// package.
func (t *tableIter) Error() error {
	return t.err
}

// Close implements InternalIterator.Close, as documented in the shale/db
// package.
func (t *tableIter) Close() error {
	t.data = nil
	return t.err
}
