// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package record reads and writes sequences of records, framing an arbitrary
// byte stream into CRC-guarded chunks so that a prefix of a partially
// written log can be recovered after a crash.
//
// The wire format divides the stream into 32 KiB blocks, each containing a
// number of tightly packed chunks. Chunks cannot cross block boundaries. The
// last block may be shorter than 32 KiB. Any unused trailing bytes of a
// block too small to hold a chunk header must be zero.
//
// The chunk format:
//
//	+----------+-----------+-----------+--- ... ---+
//	| CRC (4B) | Size (2B) | Type (1B) | Payload   |
//	+----------+-----------+-----------+--- ... ---+
//
// CRC is computed over the type and payload, and stored masked.
// Size is the length of the payload in bytes.
// Type is the chunk type.
//
// There are four chunk types: whether the chunk is the full record, or the
// first, middle or last chunk of a multi-chunk record. A multi-chunk record
// has one first chunk, zero or more middle chunks, and one last chunk.
//
// Neither Readers nor Writers are safe to use concurrently.
package record // import "github.com/cockroachdb/shale/record"

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/cockroachdb/shale/internal/crc"
)

// These constants are part of the wire format and should not be changed.
const (
	fullChunkType   = 1
	firstChunkType  = 2
	middleChunkType = 3
	lastChunkType   = 4
)

const (
	blockSize = 32 * 1024
	// headerSize is the chunk header length: 4-byte CRC, 2-byte payload
	// length, 1-byte type.
	headerSize = 7
	// maxChunkPayload is the largest payload a single chunk can carry: a
	// chunk and its header must fit in one block, which also keeps the
	// payload length within the two-byte length field.
	maxChunkPayload = blockSize - headerSize
)

var (
	// ErrZeroedChunk is returned if a chunk is encountered that is zeroed.
	// This usually marks the logical end of a preallocated log file.
	ErrZeroedChunk = errors.New("shale/record: zeroed chunk")

	// ErrInvalidChunk is returned if a chunk is encountered with an invalid
	// header, length, or checksum.
	ErrInvalidChunk = errors.New("shale/record: invalid chunk")
)

// IsInvalidRecord returns true if the error matches one of the error types
// returned for invalid records. Recovery code treats these similarly to
// io.EOF: the log ends at the last intact record.
func IsInvalidRecord(err error) bool {
	return errors.Is(err, ErrZeroedChunk) ||
		errors.Is(err, ErrInvalidChunk) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// Writer writes records to an underlying io.Writer. The writer only
// appends; any flush or sync policy belongs to the caller.
type Writer struct {
	// w is the underlying writer.
	w io.Writer
	// blockOffset is the number of bytes written to the current block.
	blockOffset int
	// buf holds the header of the chunk being emitted.
	buf [headerSize]byte
	// err is any accumulated error.
	err error
}

// NewWriter returns a new Writer. destLength is the current length of the
// destination: a writer reopening an existing log resumes mid-block at
// destLength mod the block size.
func NewWriter(w io.Writer, destLength int64) *Writer {
	return &Writer{
		w:           w,
		blockOffset: int(destLength % blockSize),
	}
}

// AddRecord appends a record containing p, fragmenting it across blocks as
// necessary. An empty p still emits a single zero-length chunk.
func (w *Writer) AddRecord(p []byte) error {
	if w.err != nil {
		return w.err
	}
	for first := true; first || len(p) > 0; first = false {
		// Switch to a new block if there is no room for even a header in
		// the current one, zero-filling the tail.
		if leftover := blockSize - w.blockOffset; leftover < headerSize {
			if leftover > 0 {
				if err := w.write(zeros[:leftover]); err != nil {
					return err
				}
			}
			w.blockOffset = 0
		}

		avail := blockSize - w.blockOffset - headerSize
		n := len(p)
		if n > avail {
			n = avail
		}

		var chunkType byte
		switch last := n == len(p); {
		case first && last:
			chunkType = fullChunkType
		case first:
			chunkType = firstChunkType
		case last:
			chunkType = lastChunkType
		default:
			chunkType = middleChunkType
		}

		if err := w.emitChunk(chunkType, p[:n]); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

var zeros [headerSize]byte

// emitChunk writes one chunk header and payload.
func (w *Writer) emitChunk(chunkType byte, p []byte) error {
	if len(p) > maxChunkPayload || w.blockOffset+headerSize+len(p) > blockSize {
		panic("shale/record: bad writer state")
	}
	w.buf[6] = chunkType
	c := crc.New(w.buf[6:7]).Update(p)
	binary.LittleEndian.PutUint32(w.buf[0:4], c.Value())
	binary.LittleEndian.PutUint16(w.buf[4:6], uint16(len(p)))
	if err := w.write(w.buf[:]); err != nil {
		return err
	}
	return w.write(p)
}

// write appends p to the destination, advancing blockOffset by however many
// bytes the destination actually accepted.
func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.blockOffset += n
	if err != nil {
		w.err = err
	}
	return err
}

// Flush flushes the underlying writer, if that writer implements
// interface{ Flush() error }.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if f, ok := w.w.(interface{ Flush() error }); ok {
		w.err = f.Flush()
	}
	return w.err
}

// Reader reads records from an underlying io.Reader.
type Reader struct {
	// r is the underlying reader.
	r io.Reader
	// buf[begin:end] is the unread portion of the current chunk's payload.
	begin, end int
	// n is the number of bytes of buf that are valid. Once reading has
	// started, only the final block can have n < blockSize.
	n int
	// started is whether reading has consumed the first block.
	started bool
	// err is any accumulated error.
	err error
	// buf is the current block.
	buf [blockSize]byte
}

// NewReader returns a new reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the payload of the next record. It returns io.EOF if there
// are no more records. The returned slice is only valid until the next call
// to Next.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	chunkType, p, err := r.nextChunk(true)
	if err != nil {
		r.err = err
		return nil, err
	}
	if chunkType == fullChunkType {
		return p, nil
	}
	// A multi-chunk record: accumulate fragments into a fresh buffer, since
	// r.buf will be reloaded as the record crosses block boundaries.
	rec := append([]byte(nil), p...)
	for chunkType != lastChunkType {
		chunkType, p, err = r.nextChunk(false)
		if err != nil {
			if err == io.EOF {
				// The log ended mid-record.
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			return nil, err
		}
		rec = append(rec, p...)
	}
	return rec, nil
}

// nextChunk returns the type and payload of the next chunk, reading the next
// block into the buffer as necessary. If wantFirst is true, chunk types that
// cannot start a record are invalid.
func (r *Reader) nextChunk(wantFirst bool) (byte, []byte, error) {
	for {
		if r.end+headerSize <= r.n {
			checksum := binary.LittleEndian.Uint32(r.buf[r.end+0 : r.end+4])
			length := binary.LittleEndian.Uint16(r.buf[r.end+4 : r.end+6])
			chunkType := r.buf[r.end+6]

			if checksum == 0 && length == 0 && chunkType == 0 {
				// A zeroed header marks the logical end of a preallocated
				// or padded log.
				if wantFirst {
					return 0, nil, io.EOF
				}
				return 0, nil, ErrZeroedChunk
			}
			if chunkType < fullChunkType || chunkType > lastChunkType {
				return 0, nil, ErrInvalidChunk
			}
			r.begin = r.end + headerSize
			r.end = r.begin + int(length)
			if r.end > r.n {
				// The chunk straddles a block boundary (or the end of
				// file), which the writer never produces.
				return 0, nil, ErrInvalidChunk
			}
			if checksum != crc.New(r.buf[r.begin-1:r.end]).Value() {
				return 0, nil, ErrInvalidChunk
			}
			if wantFirst && chunkType != fullChunkType && chunkType != firstChunkType {
				return 0, nil, ErrInvalidChunk
			}
			return chunkType, r.buf[r.begin:r.end], nil
		}
		if r.n < blockSize && r.started {
			if r.end != r.n {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, io.EOF
		}
		n, err := io.ReadFull(r.r, r.buf[:])
		if err != nil && err != io.ErrUnexpectedEOF {
			return 0, nil, err
		}
		r.begin, r.end, r.n = 0, 0, n
		r.started = true
	}
}
