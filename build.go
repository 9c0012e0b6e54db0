// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/table"
)

// fileMetadata holds the metadata for an on-disk table: the file number and
// size, and the table's key range. It is produced by buildTable and
// consumed by the version layer.
type fileMetadata struct {
	fileNum  uint64
	size     uint64
	smallest db.InternalKey
	largest  db.InternalKey
}

// buildTable drains iter into a new table file named after meta.fileNum,
// filling in the rest of meta. The resulting file is synced, closed and
// validated through the table cache before the function returns. On any
// error, or if the iterator yielded nothing, the partially written file is
// removed and meta.size is left zero.
func buildTable(
	dirname string,
	opts *db.Options,
	tc *tableCache,
	iter db.InternalIterator,
	meta *fileMetadata,
) error {
	opts = opts.EnsureDefaults()
	fs := opts.FileSystem
	meta.size = 0

	iter.First()
	if !iter.Valid() {
		return iter.Error()
	}

	filename := dbFilename(dirname, fileTypeTable, meta.fileNum)
	f, err := fs.Create(filename)
	if err != nil {
		return err
	}
	tw := table.NewWriter(f, opts)

	meta.smallest = iter.Key().Clone()
	for ; iter.Valid(); iter.Next() {
		key := iter.Key()
		meta.largest = key.Clone()
		if err == nil {
			err = tw.Add(key, iter.Value())
		}
	}

	if err == nil {
		err = tw.Finish()
	}
	if err == nil {
		meta.size = tw.Size()
	}
	if err == nil {
		err = f.Sync()
	}
	if err == nil {
		err = f.Close()
	}

	if err == nil {
		// Verify that the table is usable: open an iterator through the
		// table cache and check that it did not observe an error.
		it := tc.newIter(&db.ReadOptions{VerifyChecksums: true}, meta.fileNum, meta.size)
		err = it.Error()
		if err1 := it.Close(); err == nil {
			err = err1
		}
	}

	// An error while draining the input invalidates the output even if
	// every write succeeded.
	if err == nil {
		err = iter.Error()
	}

	if err != nil || meta.size == 0 {
		// Drop any cached reader for the doomed file before removing it.
		_ = tc.evict(meta.fileNum)
		if removeErr := fs.Remove(filename); removeErr != nil {
			opts.Logger.Infof("shale: failed to remove partial table %s: %v", filename, removeErr)
		}
		meta.size = 0
	}
	return err
}
