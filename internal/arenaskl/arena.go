// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package arenaskl

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Arena is a bump allocator backed by a fixed-size buffer. Offsets into the
// buffer are handed out instead of pointers, and the memory is freed en bloc
// when the arena is garbage collected. Allocation is performed only by the
// skiplist's single writer; readers dereference previously published
// offsets, so the size counter is the only field accessed concurrently.
type Arena struct {
	n   atomic.Uint32
	buf []byte
}

const align4 = 3

// ErrArenaFull indicates that an allocation failed because the arena is
// full. The memtable owning the arena must be flushed and replaced.
var ErrArenaFull = errors.New("shale/arenaskl: arena full")

// NewArena allocates a new arena of the specified size.
func NewArena(size uint32) *Arena {
	a := &Arena{
		buf: make([]byte, size),
	}
	// Offset 0 is reserved as the nil offset, so don't store data there.
	a.n.Store(1)
	return a
}

// Size returns the number of allocated bytes.
func (a *Arena) Size() uint32 {
	return a.n.Load()
}

// Capacity returns the length of the underlying buffer.
func (a *Arena) Capacity() uint32 {
	return uint32(len(a.buf))
}

// alloc reserves size bytes, aligned to a multiple of align+1 (align must be
// a power-of-two minus one), and returns the offset of the reservation.
func (a *Arena) alloc(size, align uint32) (uint32, error) {
	// Pad the allocation with enough bytes to ensure the requested
	// alignment.
	padded := size + align

	newSize := a.n.Load() + padded
	if int(newSize) > len(a.buf) {
		return 0, ErrArenaFull
	}
	a.n.Store(newSize)

	return (newSize - padded + align) &^ align, nil
}

func (a *Arena) getBytes(offset, size uint32) []byte {
	if offset == 0 {
		return nil
	}
	return a.buf[offset : offset+size : offset+size]
}

func (a *Arena) getPointer(offset uint32) unsafe.Pointer {
	if offset == 0 {
		return nil
	}
	return unsafe.Pointer(&a.buf[offset])
}

func (a *Arena) getPointerOffset(ptr unsafe.Pointer) uint32 {
	if ptr == nil {
		return 0
	}
	return uint32(uintptr(ptr) - uintptr(unsafe.Pointer(&a.buf[0])))
}
