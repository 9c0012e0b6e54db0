// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shale

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type fileType int

const (
	fileTypeLog fileType = iota
	fileTypeTable
	fileTypeOldFashionedTable
)

// dbFilename is the single point mapping (dirname, file type, file number)
// to a file name.
func dbFilename(dirname string, fileType fileType, fileNum uint64) string {
	for len(dirname) > 0 && dirname[len(dirname)-1] == os.PathSeparator {
		dirname = dirname[:len(dirname)-1]
	}
	switch fileType {
	case fileTypeLog:
		return fmt.Sprintf("%s%c%06d.log", dirname, os.PathSeparator, fileNum)
	case fileTypeTable:
		return fmt.Sprintf("%s%c%06d.sst", dirname, os.PathSeparator, fileNum)
	case fileTypeOldFashionedTable:
		return fmt.Sprintf("%s%c%06d.ldb", dirname, os.PathSeparator, fileNum)
	}
	panic("unreachable")
}

func parseDBFilename(filename string) (fileType fileType, fileNum uint64, ok bool) {
	filename = filepath.Base(filename)
	i := strings.IndexByte(filename, '.')
	if i < 0 {
		return 0, 0, false
	}
	u, err := strconv.ParseUint(filename[:i], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	switch filename[i+1:] {
	case "log":
		return fileTypeLog, u, true
	case "sst":
		return fileTypeTable, u, true
	case "ldb":
		return fileTypeOldFashionedTable, u, true
	}
	return 0, 0, false
}
