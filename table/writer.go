// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package table

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/internal/crc"
)

// indexEntry is a block handle and the length of that block's separator
// key, a key >= every key in the block and < every key in its successor.
type indexEntry struct {
	bh     blockHandle
	keyLen int
}

// Writer writes one immutable sorted table. Keys must be added in strictly
// increasing internal key order. The Writer does not own the underlying
// file: after Finish succeeds the caller decides when to sync and close.
type Writer struct {
	writer    io.Writer
	bufWriter *bufio.Writer
	err       error
	cmp       *db.Comparer
	// blockSize is the target uncompressed size of each data block.
	blockSize   int
	compression db.Compression
	// block accumulates the current data block.
	block *blockWriter
	// A block's index entry contains a separator key between that block and
	// the next, so a finished block cannot be indexed until the first key
	// of its successor is seen. pendingBH holds the handle of a finished
	// block awaiting its separator; it is zero if there is no such block.
	pendingBH blockHandle
	// offset is the file offset of the next block to be written.
	offset uint64
	// prevKey is the last key passed to Add, used for the ordering check
	// and for separator computation.
	prevKey db.InternalKey
	// indexKeys and indexEntries accumulate the index block: the separator
	// keys' encoded bytes concatenated together, with per-entry lengths.
	indexKeys    []byte
	indexEntries []indexEntry
	// nEntries is the total number of entries added.
	nEntries int
	// compressedBuf is reused for snappy output across blocks.
	compressedBuf []byte
	tmp           [footerLen]byte
}

// NewWriter returns a new table writer over the file.
func NewWriter(f db.File, o *db.Options) *Writer {
	o = o.EnsureDefaults()
	w := &Writer{
		cmp:         o.Comparer,
		blockSize:   o.BlockSize,
		compression: o.Compression,
		block:       newBlockWriter(o.BlockRestartInterval),
	}
	if f == nil {
		w.err = errors.New("shale/table: nil file")
		return w
	}
	// If f does not have a Flush method, do our own buffering.
	if _, ok := f.(interface{ Flush() error }); ok {
		w.writer = f
	} else {
		w.bufWriter = bufio.NewWriter(f)
		w.writer = w.bufWriter
	}
	return w
}

// Add appends a key/value pair to the table.
func (w *Writer) Add(key db.InternalKey, value []byte) error {
	if w.err != nil {
		return w.err
	}
	if w.nEntries > 0 && db.InternalCompare(w.cmp.Compare, w.prevKey, key) >= 0 {
		w.err = errors.Newf("shale/table: Add called in non-increasing key order: %s, %s",
			w.prevKey, key)
		return w.err
	}

	w.flushPendingBH(key)
	w.block.add(key, value)
	w.prevKey = key.Clone()
	w.nEntries++

	// Finish the current block if it has reached the target size.
	if w.block.estimatedSize() >= w.blockSize {
		bh, err := w.finishBlock(w.block)
		if err != nil {
			w.err = err
			return w.err
		}
		w.pendingBH = bh
	}
	return nil
}

// EstimatedSize returns an estimate of the table file size: the blocks
// written so far plus the uncompressed contents of the current block. It
// does not count the metaindex block, the index block or the footer.
func (w *Writer) EstimatedSize() uint64 {
	return w.offset + uint64(w.block.estimatedSize())
}

// flushPendingBH adds any pending block handle to the index entries, keyed
// by a separator between the finished block's last key and the given key.
// A zero key means there is no successor: the separator is a successor of
// the last key instead.
func (w *Writer) flushPendingBH(key db.InternalKey) {
	if w.pendingBH.length == 0 {
		// A valid blockHandle must have a non-zero length.
		return
	}
	sep := w.separator(key)
	n0 := len(w.indexKeys)
	w.indexKeys = append(w.indexKeys, make([]byte, sep.Size())...)
	sep.Encode(w.indexKeys[n0:])
	w.indexEntries = append(w.indexEntries, indexEntry{w.pendingBH, sep.Size()})
	w.pendingBH = blockHandle{}
}

// separator returns an internal key sep with prevKey <= sep < key (or just
// prevKey <= sep if key is zero). Shortening only the user key and pairing
// it with the maximum trailer keeps the internal ordering: the result sorts
// before every real entry carrying the shortened user key.
func (w *Writer) separator(key db.InternalKey) db.InternalKey {
	if key.UserKey == nil {
		short := w.cmp.Successor(nil, w.prevKey.UserKey)
		if len(short) < len(w.prevKey.UserKey) && w.cmp.Compare(w.prevKey.UserKey, short) < 0 {
			return db.MakeSearchKey(short, db.InternalKeySeqNumMax)
		}
		return w.prevKey
	}
	short := w.cmp.Separator(nil, w.prevKey.UserKey, key.UserKey)
	if len(short) < len(w.prevKey.UserKey) && w.cmp.Compare(w.prevKey.UserKey, short) < 0 {
		return db.MakeSearchKey(short, db.InternalKeySeqNumMax)
	}
	return w.prevKey
}

// finishBlock writes the block to the file, compressed if that pays for
// itself, and returns its handle.
func (w *Writer) finishBlock(block *blockWriter) (blockHandle, error) {
	b := block.finish()

	// Compress the buffer, discarding the result if the improvement isn't
	// at least 12.5%.
	blockType := byte(noCompressionBlockType)
	if w.compression == db.SnappyCompression {
		compressed := snappy.Encode(w.compressedBuf, b)
		w.compressedBuf = compressed[:cap(compressed)]
		if len(compressed) < len(b)-len(b)/8 {
			blockType = snappyCompressionBlockType
			b = compressed
		}
	}
	bh, err := w.writeRawBlock(b, blockType)

	block.reset()
	return bh, err
}

// writeRawBlock writes b and its 5-byte trailer, returning b's handle.
func (w *Writer) writeRawBlock(b []byte, blockType byte) (blockHandle, error) {
	w.tmp[0] = blockType

	// The checksum covers the (compressed) contents and the type byte.
	checksum := crc.New(b).Update(w.tmp[:1]).Value()
	binary.LittleEndian.PutUint32(w.tmp[1:5], checksum)

	if _, err := w.writer.Write(b); err != nil {
		return blockHandle{}, err
	}
	if _, err := w.writer.Write(w.tmp[:blockTrailerLen]); err != nil {
		return blockHandle{}, err
	}
	bh := blockHandle{w.offset, uint64(len(b))}
	w.offset += uint64(len(b)) + blockTrailerLen
	return bh, nil
}

// Finish writes the metaindex block, the index block and the footer, and
// flushes any internal buffering. It does not sync or close the underlying
// file; that policy belongs to the caller.
func (w *Writer) Finish() error {
	if w.err != nil {
		return w.err
	}

	// Finish the last data block, or force an empty data block if there
	// aren't any data blocks at all.
	w.flushPendingBH(db.InternalKey{})
	if w.block.nEntries > 0 || len(w.indexEntries) == 0 {
		bh, err := w.finishBlock(w.block)
		if err != nil {
			w.err = err
			return w.err
		}
		w.pendingBH = bh
		w.flushPendingBH(db.InternalKey{})
	}

	// Write the metaindex block. It is empty: this table format reserves
	// it for meta blocks such as filters, which this writer does not emit.
	metaindex := newBlockWriter(1)
	metaindexBlockHandle, err := w.finishBlock(metaindex)
	if err != nil {
		w.err = err
		return w.err
	}

	// Write the index block.
	index := newBlockWriter(1)
	var tmp [2 * binary.MaxVarintLen64]byte
	i0 := 0
	for _, ie := range w.indexEntries {
		n := encodeBlockHandle(tmp[:], ie.bh)
		i1 := i0 + ie.keyLen
		index.add(db.DecodeInternalKey(w.indexKeys[i0:i1]), tmp[:n])
		i0 = i1
	}
	indexBlockHandle, err := w.finishBlock(index)
	if err != nil {
		w.err = err
		return w.err
	}

	// Write the table footer.
	footer := w.tmp[:footerLen]
	for i := range footer {
		footer[i] = 0
	}
	n := encodeBlockHandle(footer, metaindexBlockHandle)
	encodeBlockHandle(footer[n:], indexBlockHandle)
	copy(footer[footerLen-len(magic):], magic)
	if _, err := w.writer.Write(footer); err != nil {
		w.err = err
		return w.err
	}
	w.offset += footerLen

	if w.bufWriter != nil {
		if err := w.bufWriter.Flush(); err != nil {
			w.err = err
			return err
		}
	}

	// Make any future calls to Add or Finish return an error.
	w.err = errors.New("shale/table: writer is finished")
	return nil
}

// Size returns the number of bytes the finished table occupies. It is only
// meaningful after a successful Finish.
func (w *Writer) Size() uint64 {
	return w.offset
}
