// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package shale implements the core of an embedded, ordered key/value
// storage engine organized as a log-structured merge tree.
//
// The core comprises the components that define on-disk and in-memory
// correctness: the write batch (the atomic unit of logging and insertion),
// the write-ahead record log framing (package record), the memtable (a
// multi-version ordered buffer over an arena-backed skiplist), the sorted
// table builder and reader (package table), and the N-way bidirectional
// merging iterator that unifies memtables and tables into a single ordered
// stream.
//
// Mutations carry 56-bit sequence numbers. A read at a snapshot sequence
// number observes, for each user key, the newest version at or below the
// snapshot; a deletion writes a tombstone that masks older versions rather
// than removing them. Higher layers - the database facade, compaction, and
// the version set - orchestrate these components and are intentionally
// absent here.
package shale // import "github.com/cockroachdb/shale"
