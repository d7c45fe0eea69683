//go:build !unix

package mmapio

import (
	"io"

	"github.com/swbuild/sw/internal/perr"
)

// mapAtLeast on platforms without a wired mmap syscall (Windows) falls
// back to loading the whole file into a plain byte slice and writing
// changes back with WriteAt.
func (s *Stream) mapAtLeast(newCap uint64) error {
	buf := make([]byte, newCap)
	if s.data != nil {
		copy(buf, s.data)
	} else if _, err := s.file.ReadAt(buf, 0); err != nil && err != io.EOF {
		return perr.Errorf("mmapio: read %s: %w", s.path, err)
	}
	s.data = buf
	s.cap = newCap
	return nil
}

func (s *Stream) unmap() error { return nil }

// sync writes the in-memory buffer back to disk.
func (s *Stream) sync() error {
	if _, err := s.file.WriteAt(s.data[:s.size], 0); err != nil {
		return perr.Errorf("mmapio: write %s: %w", s.path, err)
	}
	return nil
}
