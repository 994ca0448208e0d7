package storage

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by reads on a closed file or reader.
var ErrClosed = errors.New("file is closed")

// MmapFile represents a read-only memory-mapped file for zero-copy reads
type MmapFile struct {
	// File handle
	file *os.File

	// Memory-mapped data
	data []byte

	// File size
	size int64

	// Releases the mapping; nil for empty files
	unmap func() error

	// Set once Close has run
	closed bool

	// Mutex to protect concurrent access
	mu sync.RWMutex
}

// NewMmapFile maps the file at path read-only
func NewMmapFile(path string) (*MmapFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to get file info")
	}
	size := info.Size()

	// Empty files cannot be mapped
	if size == 0 {
		return &MmapFile{file: file, data: []byte{}}, nil
	}

	data, unmap, err := mapFile(file, size)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to map file")
	}

	return &MmapFile{
		file:  file,
		data:  data,
		size:  size,
		unmap: unmap,
	}, nil
}

// ReadAt copies mapped data at offset into p
func (m *MmapFile) ReadAt(p []byte, offset int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	if offset < 0 {
		return 0, errors.Errorf("negative offset %d", offset)
	}
	if offset >= m.size {
		return 0, io.EOF
	}

	n := copy(p, m.data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file and releases resources
func (m *MmapFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.unmap != nil {
		err = m.unmap()
	}
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}

	m.data = nil
	return err
}

// Size returns the size of the memory-mapped file
func (m *MmapFile) Size() int64 {
	return m.size
}

// Data returns the entire mapped file. The slice is only valid until Close.
func (m *MmapFile) Data() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return m.data, nil
}
