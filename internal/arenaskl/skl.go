// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package arenaskl provides an arena-backed skiplist keyed by internal keys.
//
// The skiplist is single-writer, multi-reader: one goroutine may Add while
// any number of goroutines read or iterate. Lookups are lock-free. A node is
// published by atomically storing its offset into the predecessor's forward
// link, from the bottom level up, so a concurrent reader observes either the
// fully linked node or no node at all. Nodes carry both forward and reverse
// links, which makes forward and reverse iteration the same speed.
package arenaskl // import "github.com/cockroachdb/shale/internal/arenaskl"

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"

	"github.com/cockroachdb/shale/db"
)

const (
	maxHeight = 12
	// branching is the inverse probability that a node reaches one level
	// higher than its predecessor.
	branching = 4

	align8 = 7
)

// ErrRecordExists indicates that an entry with the same internal key already
// exists in the skiplist. The memtable never inserts duplicate (user key,
// sequence, kind) triples, so hitting this is a caller bug.
var ErrRecordExists = errors.New("shale/arenaskl: record with this key already exists")

type links struct {
	next atomic.Uint32
	prev atomic.Uint32
}

// node is the arena-resident representation of an entry. The key's user-key
// bytes and the value follow the (possibly truncated) tower in the arena.
type node struct {
	keyTrailer  uint64
	keyOffset   uint32
	keySize     uint32
	valueOffset uint32
	valueSize   uint32

	// tower is the array of links making up the node's levels. Only the
	// first `height` elements exist: the allocation is truncated, with the
	// key bytes beginning where the unused levels would be.
	tower [maxHeight]links
}

const (
	nodeMaxSize = uint32(unsafe.Sizeof(node{}))
	linksSize   = uint32(unsafe.Sizeof(links{}))
)

type splice struct {
	prev *node
	next *node
}

// Skiplist is an ordered map of internal keys to values. Entries are
// ordered by ascending user key, then by descending trailer, so that the
// newest visible version of a user key is encountered first.
type Skiplist struct {
	arena  *Arena
	cmp    db.Compare
	head   *node
	tail   *node
	height atomic.Uint32
	rnd    *rand.Rand
}

// NewSkiplist constructs a skiplist over the given arena, ordering user keys
// with cmp.
func NewSkiplist(arena *Arena, cmp db.Compare) *Skiplist {
	head, err := newSentinelNode(arena)
	if err != nil {
		panic("shale/arenaskl: arena too small to hold sentinels")
	}
	tail, err := newSentinelNode(arena)
	if err != nil {
		panic("shale/arenaskl: arena too small to hold sentinels")
	}
	headOffset := arena.getPointerOffset(unsafe.Pointer(head))
	tailOffset := arena.getPointerOffset(unsafe.Pointer(tail))
	for i := 0; i < maxHeight; i++ {
		head.tower[i].next.Store(tailOffset)
		tail.tower[i].prev.Store(headOffset)
	}

	s := &Skiplist{
		arena: arena,
		cmp:   cmp,
		head:  head,
		tail:  tail,
		rnd:   rand.New(rand.NewSource(0xdeadbeef)),
	}
	s.height.Store(1)
	return s
}

// Arena returns the arena backing this skiplist.
func (s *Skiplist) Arena() *Arena { return s.arena }

// Size returns the number of bytes allocated from the arena.
func (s *Skiplist) Size() uint32 { return s.arena.Size() }

// Add inserts a new key/value pair. The caller must be the single writer.
func (s *Skiplist) Add(key db.InternalKey, value []byte) error {
	var spl [maxHeight]splice
	if s.findSplice(key, &spl) {
		return ErrRecordExists
	}

	nd, ndOffset, err := s.newNode(key, value)
	if err != nil {
		return err
	}
	height := s.nodeHeight(nd)

	// Grow the list height, splicing new levels between the sentinels.
	if listHeight := s.height.Load(); height > listHeight {
		for i := listHeight; i < height; i++ {
			spl[i] = splice{prev: s.head, next: s.tail}
		}
		s.height.Store(height)
	}

	// Link in from the bottom level up. The store into the predecessor's
	// next pointer is the linearization point for that level: until it
	// happens, no reader can reach the node; after it, the node's own links
	// are already in place.
	for i := uint32(0); i < height; i++ {
		nd.tower[i].next.Store(s.arena.getPointerOffset(unsafe.Pointer(spl[i].next)))
		nd.tower[i].prev.Store(s.arena.getPointerOffset(unsafe.Pointer(spl[i].prev)))
		spl[i].prev.tower[i].next.Store(ndOffset)
		spl[i].next.tower[i].prev.Store(ndOffset)
	}
	return nil
}

// newSentinelNode allocates a keyless, full-height node.
func newSentinelNode(arena *Arena) (*node, error) {
	offset, err := arena.alloc(nodeMaxSize, align8)
	if err != nil {
		return nil, err
	}
	return (*node)(arena.getPointer(offset)), nil
}

// newNode allocates a node of random height together with its key and value
// bytes. The tower is truncated to the node's height.
func (s *Skiplist) newNode(key db.InternalKey, value []byte) (*node, uint32, error) {
	height := s.randomHeight()
	unusedSize := (maxHeight - height) * linksSize
	nodeSize := nodeMaxSize - unusedSize

	keySize := uint32(len(key.UserKey))
	valueSize := uint32(len(value))
	offset, err := s.arena.alloc(nodeSize+keySize+valueSize, align8)
	if err != nil {
		return nil, 0, err
	}

	nd := (*node)(s.arena.getPointer(offset))
	nd.keyTrailer = key.Trailer
	nd.keyOffset = offset + nodeSize
	nd.keySize = keySize
	nd.valueOffset = nd.keyOffset + keySize
	nd.valueSize = valueSize
	copy(s.arena.buf[nd.keyOffset:], key.UserKey)
	copy(s.arena.buf[nd.valueOffset:], value)
	return nd, offset, nil
}

// nodeHeight returns the height the node was allocated with, recovered from
// where its key bytes begin.
func (s *Skiplist) nodeHeight(nd *node) uint32 {
	ndOffset := s.arena.getPointerOffset(unsafe.Pointer(nd))
	nodeSize := nd.keyOffset - ndOffset
	return maxHeight - (nodeMaxSize-nodeSize)/linksSize
}

func (s *Skiplist) randomHeight() uint32 {
	h := uint32(1)
	for h < maxHeight && s.rnd.Intn(branching) == 0 {
		h++
	}
	return h
}

func (s *Skiplist) getKey(nd *node) db.InternalKey {
	return db.InternalKey{
		UserKey: s.arena.getBytes(nd.keyOffset, nd.keySize),
		Trailer: nd.keyTrailer,
	}
}

func (s *Skiplist) getValue(nd *node) []byte {
	if nd.valueSize == 0 {
		return nil
	}
	return s.arena.getBytes(nd.valueOffset, nd.valueSize)
}

func (s *Skiplist) getNext(nd *node, level int) *node {
	return (*node)(s.arena.getPointer(nd.tower[level].next.Load()))
}

func (s *Skiplist) getPrev(nd *node, level int) *node {
	return (*node)(s.arena.getPointer(nd.tower[level].prev.Load()))
}

// compare orders key relative to nd's key: ascending user key, then
// descending trailer.
func (s *Skiplist) compare(key db.InternalKey, nd *node) int {
	if c := s.cmp(key.UserKey, s.arena.getBytes(nd.keyOffset, nd.keySize)); c != 0 {
		return c
	}
	if key.Trailer > nd.keyTrailer {
		return -1
	}
	if key.Trailer < nd.keyTrailer {
		return 1
	}
	return 0
}

// findSplice finds the predecessor and successor of key at every level,
// returning whether an exact match exists.
func (s *Skiplist) findSplice(key db.InternalKey, spl *[maxHeight]splice) bool {
	prev := s.head
	var next *node
	for level := int(s.height.Load()) - 1; level >= 0; level-- {
		prev, next = s.findSpliceForLevel(key, level, prev)
		spl[level] = splice{prev: prev, next: next}
	}
	return next != s.tail && s.compare(key, next) == 0
}

// findSpliceForLevel walks level from start, returning the adjacent pair of
// nodes with prev's key < key <= next's key.
func (s *Skiplist) findSpliceForLevel(key db.InternalKey, level int, start *node) (prev, next *node) {
	prev = start
	for {
		next = s.getNext(prev, level)
		if next == s.tail {
			break
		}
		if s.compare(key, next) <= 0 {
			break
		}
		prev = next
	}
	return prev, next
}

// seekGE returns the first node whose key is >= key, which may be the tail
// sentinel.
func (s *Skiplist) seekGE(key db.InternalKey) *node {
	prev := s.head
	var next *node
	for level := int(s.height.Load()) - 1; level >= 0; level-- {
		prev, next = s.findSpliceForLevel(key, level, prev)
	}
	return next
}

// seekLT returns the last node whose key is < key, which may be the head
// sentinel.
func (s *Skiplist) seekLT(key db.InternalKey) *node {
	prev := s.head
	for level := int(s.height.Load()) - 1; level >= 0; level-- {
		prev, _ = s.findSpliceForLevel(key, level, prev)
	}
	return prev
}
