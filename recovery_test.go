// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/record"
)

// TestLogReplay exercises the write path end to end: batches are framed
// into a log by the record writer, recovered by the record reader, and
// replayed into a fresh memtable with their original sequence numbers.
func TestLogReplay(t *testing.T) {
	var log bytes.Buffer
	w := record.NewWriter(&log, 0)

	var b1 Batch
	b1.Set([]byte("a"), []byte("1"))
	b1.Delete([]byte("b"))
	b1.setSeqNum(10)
	require.NoError(t, w.AddRecord(b1.Repr()))

	var b2 Batch
	b2.Set([]byte("b"), []byte("2"))
	b2.setSeqNum(12)
	require.NoError(t, w.AddRecord(b2.Repr()))

	mem := NewMemTable(nil)
	r := record.NewReader(&log)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		var b Batch
		b.SetRepr(append([]byte(nil), rec...))
		require.NoError(t, InsertInto(&b, mem))
	}

	// b1's delete of "b" at sequence 11 is masked by b2's set at 12.
	v, ok, err := mem.Get(db.MakeLookupKey([]byte("b"), 12))
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, "2", string(v))

	_, ok, err = mem.Get(db.MakeLookupKey([]byte("b"), 11))
	require.True(t, ok)
	require.Equal(t, db.ErrNotFound, err)

	v, ok, err = mem.Get(db.MakeLookupKey([]byte("a"), 10))
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, "1", string(v))
}
