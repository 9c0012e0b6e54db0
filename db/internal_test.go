// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package db

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternalKeyEncodeDecode(t *testing.T) {
	k := MakeInternalKey([]byte("foo"), 0x08070605040302, InternalKeyKindSet)
	buf := make([]byte, k.Size())
	k.Encode(buf)
	require.Equal(t, []byte("foo\x01\x02\x03\x04\x05\x06\x07\x08"), buf)

	d := DecodeInternalKey(buf)
	require.Equal(t, "foo", string(d.UserKey))
	require.Equal(t, uint64(0x08070605040302), d.SeqNum())
	require.Equal(t, InternalKeyKindSet, d.Kind())
	require.True(t, d.Valid())
}

func TestDecodeInternalKeyTooShort(t *testing.T) {
	d := DecodeInternalKey([]byte("short"))
	require.False(t, d.Valid())
	require.Equal(t, InternalKeyKindInvalid, d.Kind())
}

func TestInternalKeyOrdering(t *testing.T) {
	// Ascending user key, then descending sequence number, then descending
	// kind.
	keys := []InternalKey{
		MakeInternalKey([]byte("a"), 9, InternalKeyKindSet),
		MakeInternalKey([]byte("a"), 2, InternalKeyKindSet),
		MakeInternalKey([]byte("a"), 2, InternalKeyKindDelete),
		MakeInternalKey([]byte("a"), 1, InternalKeyKindSet),
		MakeInternalKey([]byte("b"), 1, InternalKeyKindDelete),
		MakeInternalKey([]byte("c"), 7, InternalKeyKindSet),
	}
	sorted := append([]InternalKey(nil), keys...)
	for i := 0; i < 10; i++ {
		// Shuffle deterministically by rotating, then re-sort.
		sorted = append(sorted[1:], sorted[0])
		sort.Slice(sorted, func(i, j int) bool {
			return InternalCompare(DefaultComparer.Compare, sorted[i], sorted[j]) < 0
		})
		require.Equal(t, keys, sorted)
	}
}

func TestMakeSearchKeySortsFirst(t *testing.T) {
	// A search key at a given sequence number sorts before every entry of
	// the same user key visible at that sequence number.
	search := MakeSearchKey([]byte("k"), 5)
	for seqNum := uint64(0); seqNum <= 5; seqNum++ {
		for _, kind := range []InternalKeyKind{InternalKeyKindDelete, InternalKeyKindSet} {
			entry := MakeInternalKey([]byte("k"), seqNum, kind)
			require.LessOrEqual(t,
				InternalCompare(DefaultComparer.Compare, search, entry), 0,
				"search key sorted after %s", entry)
		}
	}
	// And after entries invisible at that sequence number.
	entry := MakeInternalKey([]byte("k"), 6, InternalKeyKindSet)
	require.Positive(t, InternalCompare(DefaultComparer.Compare, search, entry))
}

func TestLookupKey(t *testing.T) {
	lk := MakeLookupKey([]byte("user"), 42)

	// The memtable form carries a varint length prefix over the internal
	// key: 4 user-key bytes plus the 8-byte trailer.
	mk := lk.MemtableKey()
	require.Equal(t, byte(12), mk[0])
	require.Equal(t, "user", string(mk[1:5]))

	ik := lk.InternalKey()
	require.Equal(t, "user", string(ik.UserKey))
	require.Equal(t, uint64(42), ik.SeqNum())
	require.Equal(t, InternalKeyKindMax, ik.Kind())

	require.Equal(t, "user", string(lk.UserKey()))
}

func TestCorruptionError(t *testing.T) {
	err := CorruptionErrorf("bad block at offset %d", 7)
	require.True(t, IsCorruption(err))
	require.Contains(t, err.Error(), "bad block at offset 7")
	require.False(t, IsCorruption(ErrNotFound))
}
