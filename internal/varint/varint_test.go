// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package varint

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []uint32{
		0, 1, 2, 0x7f, 0x80, 0xff, 0x100,
		0x3fff, 0x4000, 0x1fffff, 0x200000,
		0xfffffff, 0x10000000, 0xffffffff,
	}
	for _, v := range cases {
		var buf [MaxLen32]byte
		n := Encode32(buf[:], v)
		require.Equal(t, Len32(v), n)

		got, m := Decode32(buf[:n])
		require.Equal(t, n, m)
		require.Equal(t, v, got)

		// Appending must produce the identical encoding.
		require.Equal(t, buf[:n], Append32(nil, v))
	}
}

func TestDecodeTruncated(t *testing.T) {
	var buf [MaxLen32]byte
	n := Encode32(buf[:], 1<<28)
	for i := 0; i < n; i++ {
		_, m := Decode32(buf[:i])
		require.LessOrEqual(t, m, 0, "prefix of length %d decoded", i)
	}
}

func TestDecodeOverlong(t *testing.T) {
	// Six continuation bytes can never be a valid varint32.
	_, n := Decode32([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	require.Less(t, n, 0)

	// A 5-byte encoding whose final byte overflows 32 bits.
	_, n = Decode32([]byte{0x80, 0x80, 0x80, 0x80, 0x7f})
	require.Less(t, n, 0)
}

func TestPrefixed(t *testing.T) {
	strs := [][]byte{
		nil,
		[]byte(""),
		[]byte("x"),
		[]byte("hello"),
		bytes.Repeat([]byte("shale"), 100),
	}
	var buf []byte
	for _, s := range strs {
		buf = AppendPrefixed(buf, s)
	}
	for _, want := range strs {
		var got []byte
		var ok bool
		got, buf, ok = DecodePrefixed(buf)
		require.True(t, ok)
		require.Equal(t, len(want), len(got))
		require.Equal(t, string(want), string(got))
	}
	require.Len(t, buf, 0)
}

func TestPrefixedCorrupt(t *testing.T) {
	// Length prefix overruns the buffer.
	_, _, ok := DecodePrefixed([]byte{5, 'a', 'b'})
	require.False(t, ok)

	// Truncated varint.
	_, _, ok = DecodePrefixed([]byte{0x80})
	require.False(t, ok)

	_, _, ok = DecodePrefixed(nil)
	require.False(t, ok)
}
