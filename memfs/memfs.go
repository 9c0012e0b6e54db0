// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package memfs provides a memory-backed db.FileSystem implementation.
//
// It is useful for tests, and also for engines that should never touch
// persistent storage.
package memfs // import "github.com/cockroachdb/shale/memfs"

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cockroachdb/shale/db"
)

const sep = string(os.PathSeparator)

// New returns a new memory-backed db.FileSystem implementation.
func New() *FileSystem {
	return &FileSystem{
		root: &file{
			name:     sep,
			children: make(map[string]*file),
			isDir:    true,
		},
	}
}

// FileSystem implements db.FileSystem.
type FileSystem struct {
	mu   sync.Mutex
	root *file

	// syncErr, if set, is returned by every subsequent Sync call. Tests use
	// it to exercise the engine's partial-write cleanup paths.
	syncErr error
}

var _ db.FileSystem = (*FileSystem)(nil)

// SetSyncError arranges for all future Sync calls on files of this file
// system to fail with err. Passing nil restores normal operation.
func (y *FileSystem) SetSyncError(err error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.syncErr = err
}

// walk walks the directory tree for the fullname, calling f at each step.
// If f returns an error, the walk is aborted and returns that same error.
//
// Each walk is atomic: y's mutex is held for the entire operation,
// including all calls to f.
//
// dir is the directory at that step, frag is the name fragment, and final
// is whether it is the final step. For example, walking "/foo/bar/x"
// results in 3 calls to f:
//   - "/", "foo", false
//   - "/foo/", "bar", false
//   - "/foo/bar/", "x", true
func (y *FileSystem) walk(fullname string, f func(dir *file, frag string, final bool) error) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	// The current working directory is the same as the root directory, so
	// strip off any leading separators to make fullname a relative path.
	for len(fullname) > 0 && fullname[0] == os.PathSeparator {
		fullname = fullname[1:]
	}
	dir := y.root

	for {
		frag, remaining := fullname, ""
		i := strings.IndexRune(fullname, os.PathSeparator)
		final := i < 0
		if !final {
			frag, remaining = fullname[:i], fullname[i+1:]
			for len(remaining) > 0 && remaining[0] == os.PathSeparator {
				remaining = remaining[1:]
			}
		}
		if err := f(dir, frag, final); err != nil {
			return err
		}
		if final {
			break
		}
		child := dir.children[frag]
		if child == nil {
			return errors.New("shale/memfs: no such directory")
		}
		if !child.isDir {
			return errors.New("shale/memfs: not a directory")
		}
		dir, fullname = child, remaining
	}
	return nil
}

// Create implements db.FileSystem.
func (y *FileSystem) Create(fullname string) (db.File, error) {
	var ret *file
	err := y.walk(fullname, func(dir *file, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("shale/memfs: empty file name")
			}
			ret = &file{name: frag, fs: y}
			dir.children[frag] = ret
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Open implements db.FileSystem.
func (y *FileSystem) Open(fullname string) (db.File, error) {
	f, err := y.lookup(fullname)
	if err != nil {
		return nil, err
	}
	// A fresh read position per open handle.
	return &handle{file: f}, nil
}

// Remove implements db.FileSystem.
func (y *FileSystem) Remove(fullname string) error {
	return y.walk(fullname, func(dir *file, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("shale/memfs: empty file name")
			}
			if _, ok := dir.children[frag]; !ok {
				return errors.Mark(
					errors.New("shale/memfs: no such file or directory"), os.ErrNotExist)
			}
			delete(dir.children, frag)
		}
		return nil
	})
}

// Stat implements db.FileSystem.
func (y *FileSystem) Stat(fullname string) (os.FileInfo, error) {
	f, err := y.lookup(fullname)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (y *FileSystem) lookup(fullname string) (*file, error) {
	var ret *file
	err := y.walk(fullname, func(dir *file, frag string, final bool) error {
		if final {
			if frag == "" {
				return errors.New("shale/memfs: empty file name")
			}
			ret = dir.children[frag]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, errors.Mark(errors.New("shale/memfs: no such file"), os.ErrNotExist)
	}
	return ret, nil
}

// MkdirAll implements db.FileSystem.
func (y *FileSystem) MkdirAll(dirname string, perm os.FileMode) error {
	return y.walk(dirname, func(dir *file, frag string, final bool) error {
		if frag == "" {
			if final {
				return nil
			}
			return errors.New("shale/memfs: empty file name")
		}
		child := dir.children[frag]
		if child == nil {
			dir.children[frag] = &file{
				name:     frag,
				children: make(map[string]*file),
				isDir:    true,
			}
			return nil
		}
		if !child.isDir {
			return errors.New("shale/memfs: not a directory")
		}
		return nil
	})
}

// List implements db.FileSystem.
func (y *FileSystem) List(dirname string) ([]string, error) {
	if !strings.HasSuffix(dirname, sep) {
		dirname += sep
	}
	var ret []string
	err := y.walk(dirname, func(dir *file, frag string, final bool) error {
		if final {
			ret = make([]string, 0, len(dir.children))
			for s := range dir.children {
				ret = append(ret, s)
			}
		}
		return nil
	})
	return ret, err
}

// file implements db.File and os.FileInfo.
type file struct {
	fs       *FileSystem
	name     string
	data     []byte
	modTime  time.Time
	children map[string]*file
	isDir    bool
}

func (f *file) Close() error {
	return nil
}

func (f *file) IsDir() bool {
	return f.isDir
}

func (f *file) ModTime() time.Time {
	return f.modTime
}

func (f *file) Mode() os.FileMode {
	return os.FileMode(0755)
}

func (f *file) Name() string {
	return f.name
}

func (f *file) Read(p []byte) (int, error) {
	// A handle returned by Create does not support Read; use Open for a
	// read-positioned handle.
	return 0, errors.New("shale/memfs: file is not open for reading")
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.isDir {
		return 0, errors.New("shale/memfs: cannot read a directory")
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) Size() int64 {
	return int64(len(f.data))
}

func (f *file) Stat() (os.FileInfo, error) {
	return f, nil
}

func (f *file) Sys() interface{} {
	return nil
}

func (f *file) Sync() error {
	if f.fs != nil {
		f.fs.mu.Lock()
		err := f.fs.syncErr
		f.fs.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.isDir {
		return 0, errors.New("shale/memfs: cannot write a directory")
	}
	f.modTime = time.Now()
	f.data = append(f.data, p...)
	return len(p), nil
}

// handle is a read-positioned view of a file, returned by Open.
type handle struct {
	*file
	pos int64
}

func (h *handle) Read(p []byte) (int, error) {
	n, err := h.ReadAt(p, h.pos)
	h.pos += int64(n)
	return n, err
}
