// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package crc implements the checksum algorithm used throughout the engine's
// on-disk formats.
//
// The algorithm is CRC-32 with Castagnoli's polynomial, followed by a bit
// rotation and an additional delta. The additional processing is to lessen
// the probability of arbitrary key/value data coincidentally containing
// bytes that look like a checksum: data that contains its own checksum would
// otherwise defeat corruption detection.
package crc

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// CRC is a small wrapper around hash/crc32 that applies the rotation mask
// when a value is extracted.
type CRC uint32

// New returns the CRC of b.
func New(b []byte) CRC {
	return CRC(0).Update(b)
}

// Update returns the CRC of the receiver's data followed by b.
func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), table, b))
}

// Value returns the masked CRC, the form stored on disk.
func (c CRC) Value() uint32 {
	return Mask(uint32(c))
}

const maskDelta = 0xa282ead8

// Mask rotates the CRC and adds a delta. The masked form is what gets
// stored adjacent to the data it covers.
func Mask(c uint32) uint32 {
	return (c>>15 | c<<17) + maskDelta
}

// Unmask is the inverse of Mask.
func Unmask(c uint32) uint32 {
	c -= maskDelta
	return c>>17 | c<<15
}
