// Package reader provides read-only random access to RAW file bytes,
// memory-mapped for files on disk and zero-copy for in-memory buffers.
package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/exp/mmap"
)

// ErrOutOfRange is returned when a requested byte range lies outside the input.
var ErrOutOfRange = errors.New("byte range outside input")

// Reader exposes a fixed-size sequence of bytes for random access.
// Close releases the underlying mapping and is safe to call more than once.
type Reader interface {
	io.ReaderAt

	// Bytes returns n bytes starting at off. For mapped files the slice is
	// a private copy; for buffer-backed readers it aliases the caller's data.
	Bytes(off, n int64) ([]byte, error)

	Size() int64
	Close() error
}

// FileReader is a memory-mapped read-only view of a file.
type FileReader struct {
	ra   *mmap.ReaderAt
	size int64

	mu     sync.Mutex
	closed bool
}

// Open maps the file at path read-only.
func Open(path string) (*FileReader, error) {
	// Stat first so missing vs unreadable can be told apart.
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileReader{ra: ra, size: int64(ra.Len())}, nil
}

func (f *FileReader) ReadAt(p []byte, off int64) (int, error) {
	return f.ra.ReadAt(p, off)
}

func (f *FileReader) Bytes(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > f.size {
		return nil, fmt.Errorf("%w: offset %d length %d of %d", ErrOutOfRange, off, n, f.size)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := f.ra.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (f *FileReader) Size() int64 {
	return f.size
}

// Close unmaps the file. Further reads fail; repeated Close is a no-op.
func (f *FileReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.ra.Close()
}

// BufferReader wraps an in-memory buffer with the same interface.
type BufferReader struct {
	data []byte
}

// FromBytes wraps data without copying it.
func FromBytes(data []byte) *BufferReader {
	return &BufferReader{data: data}
}

func (b *BufferReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, fmt.Errorf("%w: offset %d of %d", ErrOutOfRange, off, len(b.data))
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *BufferReader) Bytes(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > int64(len(b.data)) {
		return nil, fmt.Errorf("%w: offset %d length %d of %d", ErrOutOfRange, off, n, len(b.data))
	}
	return b.data[off : off+n : off+n], nil
}

func (b *BufferReader) Size() int64 {
	return int64(len(b.data))
}

func (b *BufferReader) Close() error {
	return nil
}
