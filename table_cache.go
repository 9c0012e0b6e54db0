// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"sync"

	"github.com/cockroachdb/shale/db"
	"github.com/cockroachdb/shale/table"
)

// tableCache memoizes open table readers by file number. The version layer
// owns table lifetimes; the cache only avoids re-reading footers and index
// blocks for tables that are iterated repeatedly, and is how the build path
// validates a freshly written table.
type tableCache struct {
	dirname string
	fs      db.FileSystem
	opts    *db.Options

	mu     sync.Mutex
	tables map[uint64]*table.Reader
}

func newTableCache(dirname string, opts *db.Options) *tableCache {
	opts = opts.EnsureDefaults()
	return &tableCache{
		dirname: dirname,
		fs:      opts.FileSystem,
		opts:    opts,
		tables:  map[uint64]*table.Reader{},
	}
}

// find returns the open reader for the given table, opening it if
// necessary.
func (c *tableCache) find(fileNum uint64) (*table.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.tables[fileNum]; ok {
		return r, nil
	}
	f, err := c.fs.Open(dbFilename(c.dirname, fileTypeTable, fileNum))
	if err != nil {
		return nil, err
	}
	r, err := table.NewReader(f, c.opts)
	if err != nil {
		return nil, err
	}
	c.tables[fileNum] = r
	return r, nil
}

// newIter returns an iterator over the given table. Any error opening the
// table is reported through the iterator's Error method, so callers that
// only care about validity can treat open and iterate failures uniformly.
func (c *tableCache) newIter(ro *db.ReadOptions, fileNum, fileSize uint64) db.InternalIterator {
	r, err := c.find(fileNum)
	if err != nil {
		return &errorIter{err: err}
	}
	return r.NewIter(ro)
}

// evict drops the cached reader for a table, closing it. buildTable calls it
// before removing a table file it failed to build.
func (c *tableCache) evict(fileNum uint64) error {
	c.mu.Lock()
	r := c.tables[fileNum]
	delete(c.tables, fileNum)
	c.mu.Unlock()
	if r != nil {
		return r.Close()
	}
	return nil
}

// Close closes every cached reader.
func (c *tableCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for fileNum, r := range c.tables {
		delete(c.tables, fileNum)
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// errorIter is an always-invalid iterator carrying an error.
type errorIter struct {
	err error
}

var _ db.InternalIterator = (*errorIter)(nil)

func (i *errorIter) SeekGE(key db.InternalKey) {}
func (i *errorIter) First()                    {}
func (i *errorIter) Last()                     {}
func (i *errorIter) Next() bool                { return false }
func (i *errorIter) Prev() bool                { return false }
func (i *errorIter) Key() db.InternalKey {
	return db.MakeInternalKey(nil, 0, db.InternalKeyKindInvalid)
}
func (i *errorIter) Value() []byte { return nil }
func (i *errorIter) Valid() bool   { return false }
func (i *errorIter) Error() error  { return i.err }
func (i *errorIter) Close() error  { return i.err }
