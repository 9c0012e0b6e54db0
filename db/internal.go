// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package db

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/shale/internal/varint"
)

// InternalKeyKind enumerates the kind of key: a deletion tombstone or a set
// value.
type InternalKeyKind uint8

// These constants are part of the file format, and should not be changed.
const (
	InternalKeyKindDelete InternalKeyKind = 0
	InternalKeyKindSet    InternalKeyKind = 1

	// InternalKeyKindMax is the largest valid kind. When constructing an
	// internal key for a seek, internal keys sort decreasing by kind (after
	// sorting increasing by user key and decreasing by sequence number), so
	// InternalKeyKindMax sorts 'less than or equal to' any other valid kind
	// formed by the same user key and sequence number.
	InternalKeyKindMax InternalKeyKind = 1

	// InternalKeyKindInvalid marks a key that failed decoding.
	InternalKeyKindInvalid InternalKeyKind = 255
)

func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindDelete:
		return "DEL"
	case InternalKeyKindSet:
		return "SET"
	default:
		return fmt.Sprintf("UNKNOWN:%d", uint8(k))
	}
}

// InternalKeySeqNumMax is the largest valid sequence number: sequence numbers
// are stored in the upper 7 bytes of the trailer.
const InternalKeySeqNumMax = uint64(1<<56 - 1)

// InternalKey is a key used for the in-memory and on-disk partial stores
// that make up a shale DB.
//
// It consists of the user key (as given by the code that uses package shale)
// followed by an 8-byte trailer:
//   - 1 byte for the kind of internal key: delete or set,
//   - 7 bytes for a uint56 sequence number, in little-endian format.
type InternalKey struct {
	UserKey []byte
	Trailer uint64
}

// MakeInternalKey constructs an internal key from a specified user key,
// sequence number and kind.
func MakeInternalKey(userKey []byte, seqNum uint64, kind InternalKeyKind) InternalKey {
	return InternalKey{
		UserKey: userKey,
		Trailer: (seqNum << 8) | uint64(kind),
	}
}

// MakeSearchKey constructs an internal key that is appropriate for searching
// for any internal key formed from the given user key that is visible at the
// given sequence number.
func MakeSearchKey(userKey []byte, seqNum uint64) InternalKey {
	return MakeInternalKey(userKey, seqNum, InternalKeyKindMax)
}

// DecodeInternalKey decodes an encoded internal key. Keys shorter than the
// 8-byte trailer decode with the invalid kind.
func DecodeInternalKey(encodedKey []byte) InternalKey {
	n := len(encodedKey) - 8
	if n < 0 {
		return MakeInternalKey(encodedKey, 0, InternalKeyKindInvalid)
	}
	return InternalKey{
		UserKey: encodedKey[:n:n],
		Trailer: binary.LittleEndian.Uint64(encodedKey[n:]),
	}
}

// InternalCompare compares two internal keys using the specified comparison
// function. The ordering is by user key, then by descending trailer: a
// higher sequence number sorts before a lower one for the same user key, so
// a seek lands on the newest visible entry. Keys with the invalid kind get
// no special treatment; their trailer is compared like any other.
func InternalCompare(userCmp Compare, a, b InternalKey) int {
	if x := userCmp(a.UserKey, b.UserKey); x != 0 {
		return x
	}
	if a.Trailer > b.Trailer {
		return -1
	}
	if a.Trailer < b.Trailer {
		return 1
	}
	return 0
}

// Encode encodes the receiver into the buffer. The buffer must be large
// enough to hold the encoding. See Size.
func (k InternalKey) Encode(buf []byte) {
	i := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[i:], k.Trailer)
}

// Size returns the encoded size of the key.
func (k InternalKey) Size() int {
	return len(k.UserKey) + 8
}

// SeqNum returns the sequence number component of the key.
func (k InternalKey) SeqNum() uint64 {
	return k.Trailer >> 8
}

// Kind returns the kind component of the key.
func (k InternalKey) Kind() InternalKeyKind {
	return InternalKeyKind(k.Trailer & 0xff)
}

// Valid returns true if the key has a valid kind.
func (k InternalKey) Valid() bool {
	return k.Kind() <= InternalKeyKindMax
}

// Clone clones the key, copying the user key.
func (k InternalKey) Clone() InternalKey {
	return InternalKey{
		UserKey: append([]byte(nil), k.UserKey...),
		Trailer: k.Trailer,
	}
}

func (k InternalKey) String() string {
	return fmt.Sprintf("%s#%d,%s", k.UserKey, k.SeqNum(), k.Kind())
}

// A LookupKey is a search key for a point read at a snapshot: it holds the
// internal key formed from a user key and the snapshot's sequence number in
// both the form memtable seeks want (length-prefixed) and the form table
// seeks want (bare).
type LookupKey struct {
	// buf is varint32(len(userKey)+8) || userKey || trailer.
	buf []byte
	// start is the offset of userKey within buf, i.e. the length of the
	// varint prefix.
	start int
}

// MakeLookupKey constructs a lookup key for the given user key, visible at
// the given snapshot sequence number.
func MakeLookupKey(userKey []byte, seqNum uint64) LookupKey {
	n := len(userKey) + 8
	buf := make([]byte, varint.Len32(uint32(n))+n)
	i := varint.Encode32(buf, uint32(n))
	MakeSearchKey(userKey, seqNum).Encode(buf[i:])
	return LookupKey{buf: buf, start: i}
}

// MemtableKey returns the length-prefixed encoding used for memtable seeks.
func (lk LookupKey) MemtableKey() []byte {
	return lk.buf
}

// InternalKey returns the search key without the length prefix, suitable for
// table seeks.
func (lk LookupKey) InternalKey() InternalKey {
	return DecodeInternalKey(lk.buf[lk.start:])
}

// UserKey returns the user key the lookup was formed from.
func (lk LookupKey) UserKey() []byte {
	return lk.buf[lk.start : len(lk.buf)-8]
}
