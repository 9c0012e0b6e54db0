// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package table

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/memfs"
)

func buildTestTable(t *testing.T, fs db.FileSystem, name string, o *db.Options, n int) {
	t.Helper()
	f, err := fs.Create(name)
	require.NoError(t, err)
	w := NewWriter(f, o)
	for i := 0; i < n; i++ {
		k := db.MakeInternalKey([]byte(fmt.Sprintf("key%06d", i)), uint64(i+1), db.InternalKeyKindSet)
		require.NoError(t, w.Add(k, []byte(fmt.Sprintf("value%06d", i))))
	}
	require.NoError(t, w.Finish())
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

func testTableRoundTrip(t *testing.T, o *db.Options, n int) {
	fs := memfs.New()
	buildTestTable(t, fs, "test.sst", o, n)

	f, err := fs.Open("test.sst")
	require.NoError(t, err)
	r, err := NewReader(f, o)
	require.NoError(t, err)
	defer r.Close()

	it := r.NewIter(&db.ReadOptions{VerifyChecksums: true})

	// Forward scan.
	i := 0
	for it.First(); it.Valid(); it.Next() {
		require.Equal(t, fmt.Sprintf("key%06d", i), string(it.Key().UserKey))
		require.Equal(t, uint64(i+1), it.Key().SeqNum())
		require.Equal(t, fmt.Sprintf("value%06d", i), string(it.Value()))
		i++
	}
	require.NoError(t, it.Error())
	require.Equal(t, n, i)

	// Reverse scan.
	for it.Last(); it.Valid(); it.Prev() {
		i--
		require.Equal(t, fmt.Sprintf("key%06d", i), string(it.Key().UserKey))
	}
	require.NoError(t, it.Error())
	require.Equal(t, 0, i)

	// Point seeks, including between keys.
	for _, j := range []int{0, 1, n / 3, n / 2, n - 1} {
		if j >= n {
			continue
		}
		it.SeekGE(db.MakeSearchKey([]byte(fmt.Sprintf("key%06d", j)), db.InternalKeySeqNumMax))
		require.True(t, it.Valid())
		require.Equal(t, fmt.Sprintf("key%06d", j), string(it.Key().UserKey))

		it.SeekGE(db.MakeSearchKey([]byte(fmt.Sprintf("key%06d!", j)), db.InternalKeySeqNumMax))
		if j == n-1 {
			require.False(t, it.Valid())
		} else {
			require.True(t, it.Valid())
			require.Equal(t, fmt.Sprintf("key%06d", j+1), string(it.Key().UserKey))
		}
	}

	require.NoError(t, it.Close())
}

func TestTableRoundTrip(t *testing.T) {
	// A small block size forces many blocks; both compression settings
	// exercise the block trailer paths.
	for _, compression := range []db.Compression{db.NoCompression, db.SnappyCompression} {
		for _, blockSize := range []int{64, 4096} {
			t.Run(fmt.Sprintf("%s/%d", compression, blockSize), func(t *testing.T) {
				testTableRoundTrip(t, &db.Options{
					BlockSize:   blockSize,
					Compression: compression,
				}, 500)
			})
		}
	}
}

func TestTableSingleEntry(t *testing.T) {
	testTableRoundTrip(t, nil, 1)
}

func TestTableCorruptFooter(t *testing.T) {
	fs := memfs.New()
	buildTestTable(t, fs, "test.sst", nil, 10)

	f, err := fs.Open("test.sst")
	require.NoError(t, err)
	stat, err := f.Stat()
	require.NoError(t, err)

	// Clobber the magic number.
	data := make([]byte, stat.Size())
	_, err = f.ReadAt(data, 0)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff

	g, err := fs.Create("corrupt.sst")
	require.NoError(t, err)
	_, err = g.Write(data)
	require.NoError(t, err)
	require.NoError(t, g.Close())

	h, err := fs.Open("corrupt.sst")
	require.NoError(t, err)
	_, err = NewReader(h, nil)
	require.Error(t, err)
	require.True(t, db.IsCorruption(err))
}

func TestTableCorruptBlock(t *testing.T) {
	fs := memfs.New()
	buildTestTable(t, fs, "test.sst", &db.Options{Compression: db.NoCompression}, 10)

	f, err := fs.Open("test.sst")
	require.NoError(t, err)
	stat, err := f.Stat()
	require.NoError(t, err)
	data := make([]byte, stat.Size())
	_, err = f.ReadAt(data, 0)
	require.NoError(t, err)

	// Flip a bit in the first data block.
	data[0] ^= 0x40

	g, err := fs.Create("corrupt.sst")
	require.NoError(t, err)
	_, err = g.Write(data)
	require.NoError(t, err)
	require.NoError(t, g.Close())

	h, err := fs.Open("corrupt.sst")
	require.NoError(t, err)
	r, err := NewReader(h, nil)
	require.NoError(t, err)
	defer r.Close()

	it := r.NewIter(&db.ReadOptions{VerifyChecksums: true})
	it.First()
	require.False(t, it.Valid())
	require.Error(t, it.Error())
	require.True(t, db.IsCorruption(it.Error()))
}

func TestWriterRejectsOutOfOrderKeys(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create("test.sst")
	require.NoError(t, err)
	w := NewWriter(f, nil)

	require.NoError(t, w.Add(db.MakeInternalKey([]byte("b"), 2, db.InternalKeyKindSet), nil))
	require.Error(t, w.Add(db.MakeInternalKey([]byte("a"), 1, db.InternalKeyKindSet), nil))

	// Equal internal keys are rejected too. A fresh writer is used, since a
	// failed Add leaves the first writer's error in place.
	g, err := fs.Create("test2.sst")
	require.NoError(t, err)
	w = NewWriter(g, nil)
	require.NoError(t, w.Add(db.MakeInternalKey([]byte("b"), 2, db.InternalKeyKindSet), nil))
	require.Error(t, w.Add(db.MakeInternalKey([]byte("b"), 2, db.InternalKeyKindSet), nil))
}

func TestWriterSize(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Create("test.sst")
	require.NoError(t, err)
	w := NewWriter(f, nil)
	require.NoError(t, w.Add(db.MakeInternalKey([]byte("a"), 1, db.InternalKeyKindSet), []byte("v")))
	require.NoError(t, w.Finish())
	require.NoError(t, f.Close())

	stat, err := fs.Stat("test.sst")
	require.NoError(t, err)
	require.Equal(t, stat.Size(), int64(w.Size()))
	require.Positive(t, w.Size())
}
