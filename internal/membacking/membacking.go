// Package membacking provides an in-memory BackingStore test double for
// mounting and formatting volumes without a real disk image.
package membacking

import (
	"io"
	"sync"

	"github.com/fatvfs/fatvfs"
	"github.com/xaionaro-go/bytesextra"
)

// Store is a fixed-size, positioned-I/O backing object over a plain byte
// slice, adapting it to the ReaderAt/WriterAt shape every BackingStore
// operation needs via bytesextra rather than hand-rolled bounds checks.
type Store struct {
	mu  sync.Mutex
	rws *bytesextra.ReadWriteSeeker
}

// New allocates a zero-filled in-memory store of the given size.
func New(size int64) *Store {
	return &Store{rws: bytesextra.NewReadWriteSeeker(make([]byte, size))}
}

// FromBytes wraps an existing buffer (e.g. a pre-formatted fixture) without
// copying it.
func FromBytes(buf []byte) *Store {
	return &Store{rws: bytesextra.NewReadWriteSeeker(buf)}
}

func (s *Store) ReadAt(off int64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.rws.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return err
	}
	if n < len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (s *Store) WriteAt(off int64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.rws.WriteAt(buf, off)
	return err
}

func (s *Store) ScatterReadAt(segs []fatvfs.Segment) error {
	for _, seg := range segs {
		if err := s.ReadAt(seg.Offset, seg.Buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ScatterWriteAt(segs []fatvfs.Segment) error {
	for _, seg := range segs {
		if err := s.WriteAt(seg.Offset, seg.Buf); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Flush() error { return nil }

func (s *Store) QuerySize() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rws.Storage)), nil
}

// Bytes returns the underlying buffer, for test assertions.
func (s *Store) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rws.Storage
}
