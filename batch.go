// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/internal/varint"
)

// ErrInvalidBatch indicates that a batch is invalid or otherwise corrupted.
var ErrInvalidBatch = errors.Mark(errors.New("shale: invalid batch"), db.ErrCorruption)

const batchHeaderLen = 12

// Batch is a sequence of Sets and/or Deletes that are applied atomically: it
// is the unit of logging and of memtable insertion.
//
// The zero value of Batch is ready for use.
type Batch struct {
	// repr is the wire format of a batch's log entry:
	//   - 8 bytes for a little-endian uint64 sequence number of the first
	//     batch element,
	//   - 4 bytes for a little-endian uint32 count: the number of elements
	//     in the batch,
	//   - count elements, being:
	//     - one byte for the kind: delete (0) or set (1),
	//     - the varint-string user key,
	//     - the varint-string value (if kind == set).
	repr []byte
}

// A BatchHandler receives the elements of a batch during iteration, in the
// order they were added.
type BatchHandler interface {
	Set(key, value []byte)
	Delete(key []byte)
}

func (b *Batch) init() {
	if len(b.repr) == 0 {
		b.repr = make([]byte, batchHeaderLen, 256)
	}
}

// Set adds an action to the batch that sets the key to map to the value.
func (b *Batch) Set(key, value []byte) {
	b.init()
	b.repr = append(b.repr, byte(db.InternalKeyKindSet))
	b.repr = varint.AppendPrefixed(b.repr, key)
	b.repr = varint.AppendPrefixed(b.repr, value)
	b.setCount(b.Count() + 1)
}

// Delete adds an action to the batch that deletes the entry for key.
func (b *Batch) Delete(key []byte) {
	b.init()
	b.repr = append(b.repr, byte(db.InternalKeyKindDelete))
	b.repr = varint.AppendPrefixed(b.repr, key)
	b.setCount(b.Count() + 1)
}

// Clear resets the batch to an empty header, retaining the underlying
// storage for reuse.
func (b *Batch) Clear() {
	b.init()
	b.repr = b.repr[:batchHeaderLen]
	clear(b.repr[:batchHeaderLen])
}

// ApproximateSize returns the current size of the batch representation in
// bytes, including the header.
func (b *Batch) ApproximateSize() int {
	if len(b.repr) == 0 {
		return batchHeaderLen
	}
	return len(b.repr)
}

// Empty returns true iff the batch contains zero elements.
func (b *Batch) Empty() bool {
	return len(b.repr) <= batchHeaderLen
}

// Append adds the elements of src to the receiver, preserving their order.
// The receiver's sequence number is unchanged.
func (b *Batch) Append(src *Batch) {
	if src.Empty() {
		return
	}
	b.init()
	b.repr = append(b.repr, src.repr[batchHeaderLen:]...)
	b.setCount(b.Count() + src.Count())
}

// Repr returns the wire format of the batch. The returned slice aliases the
// batch's storage.
func (b *Batch) Repr() []byte {
	b.init()
	return b.repr
}

// SetRepr replaces the batch's contents with an encoded representation, as
// recovered from a log. The representation must include a header.
func (b *Batch) SetRepr(data []byte) {
	if len(data) < batchHeaderLen {
		panic("shale: invalid batch")
	}
	b.repr = data
}

// SeqNum returns the sequence number recorded in the batch header. A batch
// that has not yet been committed holds zero.
func (b *Batch) SeqNum() uint64 {
	if len(b.repr) == 0 {
		return 0
	}
	return binary.LittleEndian.Uint64(b.repr[:8])
}

func (b *Batch) setSeqNum(seqNum uint64) {
	b.init()
	binary.LittleEndian.PutUint64(b.repr[:8], seqNum)
}

// Count returns the count of elements recorded in the batch header.
func (b *Batch) Count() uint32 {
	if len(b.repr) == 0 {
		return 0
	}
	return binary.LittleEndian.Uint32(b.repr[8:12])
}

func (b *Batch) setCount(count uint32) {
	binary.LittleEndian.PutUint32(b.repr[8:12], count)
}

// Iterate decodes the batch and invokes the handler for each element in
// insertion order. It returns a corruption error if the representation is
// malformed: an unknown kind, a length prefix that overruns the buffer, or
// an element count that does not match the header.
func (b *Batch) Iterate(h BatchHandler) error {
	if len(b.repr) != 0 && len(b.repr) < batchHeaderLen {
		return errors.Wrap(ErrInvalidBatch, "truncated header")
	}
	r := batchReader(b.Repr()[batchHeaderLen:])
	count := b.Count()
	for i := uint32(0); i < count; i++ {
		kind, key, value, err := r.next()
		if err != nil {
			return err
		}
		switch kind {
		case db.InternalKeyKindSet:
			h.Set(key, value)
		case db.InternalKeyKindDelete:
			h.Delete(key)
		}
	}
	if len(r) != 0 {
		return errors.Wrap(ErrInvalidBatch, "trailing data after final element")
	}
	return nil
}

// batchReader iterates over the encoded elements of a batch.
type batchReader []byte

// next decodes the next element. All errors are corruption errors.
func (r *batchReader) next() (kind db.InternalKeyKind, key, value []byte, err error) {
	p := *r
	if len(p) == 0 {
		return 0, nil, nil, errors.Wrap(ErrInvalidBatch, "element count exceeds contents")
	}
	kind = db.InternalKeyKind(p[0])
	if kind > db.InternalKeyKindMax {
		return 0, nil, nil, errors.Wrapf(ErrInvalidBatch, "unknown kind 0x%x", p[0])
	}
	var ok bool
	key, p, ok = varint.DecodePrefixed(p[1:])
	if !ok {
		return 0, nil, nil, errors.Wrap(ErrInvalidBatch, "decoding user key")
	}
	if kind == db.InternalKeyKindSet {
		value, p, ok = varint.DecodePrefixed(p)
		if !ok {
			return 0, nil, nil, errors.Wrap(ErrInvalidBatch, "decoding value")
		}
	}
	*r = p
	return kind, key, value, nil
}

// memTableInserter replays a batch into a memtable, assigning each element
// the next sequence number after its predecessor's.
type memTableInserter struct {
	seqNum uint64
	mem    *MemTable
	err    error
}

func (i *memTableInserter) Set(key, value []byte) {
	if err := i.mem.Add(i.seqNum, db.InternalKeyKindSet, key, value); err != nil && i.err == nil {
		i.err = err
	}
	i.seqNum++
}

func (i *memTableInserter) Delete(key []byte) {
	if err := i.mem.Add(i.seqNum, db.InternalKeyKindDelete, key, nil); err != nil && i.err == nil {
		i.err = err
	}
	i.seqNum++
}

// InsertInto replays the batch into the memtable. The i'th element is
// inserted at the batch's sequence number plus i.
func InsertInto(b *Batch, mem *MemTable) error {
	inserter := memTableInserter{
		seqNum: b.SeqNum(),
		mem:    mem,
	}
	if err := b.Iterate(&inserter); err != nil {
		return err
	}
	return inserter.err
}
