// Package mmapio is a memory-mapped append-only record stream: fixed
// `[u64 payload_size][payload…]` records, doubling file growth, and a
// cursor that reports EOF on a zero-size or truncated trailing record.
//
// The mapping primitives are per-platform: stream_unix.go uses
// golang.org/x/sys/unix.Mmap, stream_other.go is a buffered-file
// fallback for platforms without a direct mmap syscall binding.
package mmapio

import (
	"encoding/binary"
	"os"

	"github.com/swbuild/sw/internal/perr"
)

// sizeFieldBytes is the width of the payload_size prefix preceding
// every record; all numeric widths in the format are u64.
const sizeFieldBytes = 8

// Stream is a growable, memory-mapped append-only record file.
type Stream struct {
	path string
	file *os.File
	data []byte // current mapping/buffer view; re-fetch after any Write growth
	size uint64 // logical bytes written (end of the last complete record)
	cap  uint64 // capacity currently backing data
}

// Open opens or creates the stream at path.
func Open(path string) (s *Stream, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, perr.Errorf("mmapio: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, perr.Errorf("mmapio: stat %s: %w", path, err)
	}
	s = &Stream{path: path, file: f}
	if fi.Size() > 0 {
		if err = s.mapAtLeast(uint64(fi.Size())); err != nil {
			f.Close()
			return nil, err
		}
		s.size = s.validTrailingSize(uint64(fi.Size()))
	}
	return s, nil
}

// Close unmaps and closes the underlying file.
func (s *Stream) Close() error {
	if err := s.unmap(); err != nil {
		return err
	}
	return s.file.Close()
}

// Size returns the logical size in bytes of all complete records written
// so far (ignores any truncated trailing partial record).
func (s *Stream) Size() uint64 { return s.size }

// validTrailingSize walks every record from offset 0 and returns the
// offset just past the last complete record, silently ignoring a
// truncated trailing record left by an interrupted write.
func (s *Stream) validTrailingSize(fileSize uint64) uint64 {
	var off uint64
	for off+sizeFieldBytes <= fileSize {
		payloadSize := binary.LittleEndian.Uint64(s.data[off : off+sizeFieldBytes])
		if payloadSize == 0 {
			break
		}
		end := off + sizeFieldBytes + payloadSize
		if end > fileSize {
			break // truncated trailing record
		}
		off = end
	}
	return off
}

// grow ensures the backing file/mapping can hold at least need more
// bytes beyond s.size, doubling capacity plus the requested delta.
func (s *Stream) grow(need uint64) error {
	if s.size+need <= s.cap {
		return nil
	}
	newCap := s.cap*2 + need
	if newCap < s.size+need {
		newCap = s.size + need
	}
	if err := s.file.Truncate(int64(newCap)); err != nil {
		return perr.Errorf("mmapio: truncate %s: %w", s.path, err)
	}
	return s.mapAtLeast(newCap)
}

// WriteRecord appends one record and returns the byte offset at which it
// starts. Callers must treat any previously obtained Bytes()/cursor
// views as invalid after a call that grows the file (a remap may have
// occurred); re-fetch via Bytes().
func (s *Stream) WriteRecord(payload []byte) (offset uint64, err error) {
	total := sizeFieldBytes + uint64(len(payload))
	if err = s.grow(total); err != nil {
		return 0, err
	}
	offset = s.size
	binary.LittleEndian.PutUint64(s.data[offset:offset+sizeFieldBytes], uint64(len(payload)))
	copy(s.data[offset+sizeFieldBytes:offset+total], payload)
	s.size += total
	if err = s.sync(); err != nil {
		return 0, err
	}
	return offset, nil
}

// Bytes returns the current mapping/buffer view; valid until the next
// WriteRecord call that grows the stream.
func (s *Stream) Bytes() []byte { return s.data[:s.size] }

// Cursor sequentially reads records starting at offset 0.
type Cursor struct {
	stream *Stream
	offset uint64
}

// NewCursor returns a cursor positioned at the start of the stream.
func (s *Stream) NewCursor() *Cursor { return &Cursor{stream: s} }

// Next returns the next record's payload, or ok==false at end of stream.
func (c *Cursor) Next() (payload []byte, ok bool) {
	s := c.stream
	if c.offset+sizeFieldBytes > s.size {
		return nil, false
	}
	payloadSize := binary.LittleEndian.Uint64(s.data[c.offset : c.offset+sizeFieldBytes])
	if payloadSize == 0 {
		return nil, false
	}
	start := c.offset + sizeFieldBytes
	end := start + payloadSize
	if end > s.size {
		return nil, false
	}
	payload = s.data[start:end]
	c.offset = end
	return payload, true
}
