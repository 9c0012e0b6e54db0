// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package db

// Compression is the per-block compression algorithm to use.
type Compression int

// The available compression types.
const (
	DefaultCompression Compression = iota
	NoCompression
	SnappyCompression
	nCompression
)

func (c Compression) String() string {
	switch c {
	case DefaultCompression:
		return "Default"
	case NoCompression:
		return "NoCompression"
	case SnappyCompression:
		return "Snappy"
	default:
		return "Unknown"
	}
}

// Options holds the optional parameters for the engine. These options apply
// to the DB at large; per-query options are defined by the ReadOptions and
// WriteOptions types.
//
// A nil *Options is valid and means to use the default values. Any zero
// field of a non-nil *Options also means to use the default value for that
// parameter.
type Options struct {
	// BlockRestartInterval is the number of keys between restart points for
	// delta encoding of keys within a table block.
	//
	// The default value is 16.
	BlockRestartInterval int

	// BlockSize is the target uncompressed size in bytes of each table
	// block. It is advisory: a block is finished once it reaches the target.
	//
	// The default value is 4096.
	BlockSize int

	// Comparer defines a total ordering over the space of []byte keys: a
	// 'less than' relationship. The same comparison algorithm must be used
	// for reads and writes over the lifetime of the DB.
	//
	// The default value uses the same ordering as bytes.Compare.
	Comparer *Comparer

	// Compression defines the per-block compression to use in tables.
	//
	// The default value (DefaultCompression) uses snappy compression.
	Compression Compression

	// CreateIfMissing is whether creating the database is acceptable if it
	// does not already exist. It is consumed by the layer that opens the
	// database and carried here so that one options struct configures the
	// whole engine.
	CreateIfMissing bool

	// FileSystem maps file names to byte storage.
	//
	// The default value uses the underlying operating system's file system.
	FileSystem FileSystem

	// Logger is used for engine diagnostics.
	//
	// The default value logs to the Go stdlib logger.
	Logger Logger

	// MemTableSize is the size of a MemTable's arena in bytes. A memtable's
	// memory consumption is fixed at creation.
	//
	// The default value is 4MiB.
	MemTableSize int
}

// EnsureDefaults ensures that the default values for all options are set if
// a valid value was not already specified. Returns the updated options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.BlockRestartInterval <= 0 {
		o.BlockRestartInterval = 16
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 4096
	}
	if o.Comparer == nil {
		o.Comparer = DefaultComparer
	}
	if o.Compression <= DefaultCompression || o.Compression >= nCompression {
		o.Compression = SnappyCompression
	}
	if o.FileSystem == nil {
		o.FileSystem = DefaultFileSystem
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger{}
	}
	if o.MemTableSize <= 0 {
		o.MemTableSize = 4 << 20
	}
	return o
}

// GetComparer returns the comparer, or the default if o is nil.
func (o *Options) GetComparer() *Comparer {
	if o == nil || o.Comparer == nil {
		return DefaultComparer
	}
	return o.Comparer
}

// GetFileSystem returns the file system, or the default if o is nil.
func (o *Options) GetFileSystem() FileSystem {
	if o == nil || o.FileSystem == nil {
		return DefaultFileSystem
	}
	return o.FileSystem
}

// GetLogger returns the logger, or the default if o is nil.
func (o *Options) GetLogger() Logger {
	if o == nil || o.Logger == nil {
		return DefaultLogger{}
	}
	return o.Logger
}

// ReadOptions hold the optional per-query parameters for read operations.
//
// Like Options, a nil *ReadOptions is valid and means to use the default
// values.
type ReadOptions struct {
	// VerifyChecksums is whether to verify the per-block checksums in a
	// table when reading.
	//
	// The default value is false.
	VerifyChecksums bool
}

// WriteOptions hold the optional per-query parameters for write operations.
//
// Like Options, a nil *WriteOptions is valid and means to use the default
// values.
type WriteOptions struct {
	// Sync is whether to sync underlying writes from the OS buffer cache
	// through to actual disk, if applicable. Setting Sync can result in
	// slower writes.
	//
	// If false, and the machine crashes, then some recent writes may be
	// lost. Note that if it is just the process that crashes (and the
	// machine does not) then no writes will be lost.
	//
	// The default value is true.
	Sync bool
}

// Sync specifies the default write options for writes which synchronize to
// disk.
var Sync = &WriteOptions{Sync: true}

// NoSync specifies the default write options for writes which do not
// synchronize to disk.
var NoSync = &WriteOptions{Sync: false}

// GetSync returns whether the write should be synced.
func (o *WriteOptions) GetSync() bool {
	return o == nil || o.Sync
}
