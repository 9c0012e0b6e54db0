// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package table implements readers and writers of immutable sorted tables.
//
// A table is a single file holding key/value pairs in increasing internal
// key order. The file is a series of blocks, each of which is followed by a
// 5-byte trailer: a 1-byte compression type and the little-endian masked
// CRC-32C of the (compressed) block contents and that type byte.
//
// Within a block, entries are prefix compressed:
//
//	varint(shared) || varint(unshared) || varint(valueLen) ||
//	keyDelta[unshared] || value[valueLen]
//
// where shared is the number of leading bytes the key has in common with the
// previous entry's key. Every blockRestartInterval'th entry is written with
// shared == 0 and its offset recorded in the block's restart array, which
// trails the entries as little-endian uint32s followed by their count. The
// restart points allow binary search within a block.
//
// The file ends with a metaindex block, an index block mapping separator
// keys to data block handles, and a fixed-size footer holding the handles of
// those two blocks plus an 8-byte magic number.
package table // import "github.com/cockroachdb/shale/table"

import (
	"encoding/binary"
)

const (
	blockTrailerLen = 5
	footerLen       = 48

	magic = "\x57\xfb\x80\x8b\x24\x75\x47\xdb"

	// These constants are part of the file format, and should not be
	// changed.
	noCompressionBlockType     = 0
	snappyCompressionBlockType = 1
)

// blockHandle is the file offset and length of a block, exclusive of its
// trailer.
type blockHandle struct {
	offset, length uint64
}

// decodeBlockHandle returns the block handle encoded at the start of src, as
// well as the number of bytes it occupies. It returns zero if given invalid
// input.
func decodeBlockHandle(src []byte) (blockHandle, int) {
	offset, n := binary.Uvarint(src)
	if n <= 0 {
		return blockHandle{}, 0
	}
	length, m := binary.Uvarint(src[n:])
	if m <= 0 {
		return blockHandle{}, 0
	}
	return blockHandle{offset, length}, n + m
}

func encodeBlockHandle(dst []byte, b blockHandle) int {
	n := binary.PutUvarint(dst, b.offset)
	m := binary.PutUvarint(dst[n:], b.length)
	return n + m
}
