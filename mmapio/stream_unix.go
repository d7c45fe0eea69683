//go:build unix

package mmapio

import (
	"golang.org/x/sys/unix"

	"github.com/swbuild/sw/internal/perr"
)

// mapAtLeast (re)maps the file so s.data covers at least newCap bytes,
// using a real OS memory mapping.
func (s *Stream) mapAtLeast(newCap uint64) error {
	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			return perr.Errorf("mmapio: munmap %s: %w", s.path, err)
		}
		s.data = nil
	}
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(newCap), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return perr.Errorf("mmapio: mmap %s: %w", s.path, err)
	}
	s.data = data
	s.cap = newCap
	return nil
}

func (s *Stream) unmap() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if err != nil {
		return perr.Errorf("mmapio: munmap %s: %w", s.path, err)
	}
	return nil
}

// sync flushes the mapping's dirty pages so a crash does not lose
// completed records; invoked after every WriteRecord.
func (s *Stream) sync() error {
	if s.data == nil {
		return nil
	}
	if err := unix.Msync(s.data, unix.MS_ASYNC); err != nil {
		return perr.Errorf("mmapio: msync %s: %w", s.path, err)
	}
	return nil
}
