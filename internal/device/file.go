package device

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ProdMoon/go-vmm/internal/interfaces"
)

// memFileData is the content shared by every handle onto one MemFile.
type memFileData struct {
	buf []byte
	mu  sync.RWMutex
}

// MemFile is an in-memory FileHandle. Handles produced by Reopen
// alias the same content, matching the semantics of independently
// duplicated descriptors onto one file.
type MemFile struct {
	data   *memFileData
	closed bool
}

// NewMemFile creates an in-memory file with the given initial content
func NewMemFile(content []byte) *MemFile {
	data := &memFileData{buf: append([]byte{}, content...)}
	return &MemFile{data: data}
}

// ReadAt reads from the file at the given offset
func (f *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}

	f.data.mu.RLock()
	defer f.data.mu.RUnlock()

	if off >= int64(len(f.data.buf)) {
		return 0, io.EOF
	}
	n := copy(p, f.data.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes to the file at the given offset, extending it if the
// write reaches past the current end.
func (f *MemFile) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset: %d", off)
	}

	f.data.mu.Lock()
	defer f.data.mu.Unlock()

	end := off + int64(len(p))
	if end > int64(len(f.data.buf)) {
		grown := make([]byte, end)
		copy(grown, f.data.buf)
		f.data.buf = grown
	}
	copy(f.data.buf[off:end], p)
	return len(p), nil
}

// Length returns the current size of the file in bytes
func (f *MemFile) Length() int64 {
	f.data.mu.RLock()
	defer f.data.mu.RUnlock()
	return int64(len(f.data.buf))
}

// Reopen returns an independent handle onto the same content
func (f *MemFile) Reopen() (interfaces.FileHandle, error) {
	if f.closed {
		return nil, os.ErrClosed
	}
	return &MemFile{data: f.data}, nil
}

// Bytes returns a copy of the current file content
func (f *MemFile) Bytes() []byte {
	f.data.mu.RLock()
	defer f.data.mu.RUnlock()
	return append([]byte{}, f.data.buf...)
}

// Close marks this handle closed. Other handles stay usable.
func (f *MemFile) Close() error {
	f.closed = true
	return nil
}

// OSFile is a FileHandle over a file on the host file system.
type OSFile struct {
	file *os.File
	path string
}

// OpenOSFile opens a host file for use as page backing store
func OpenOSFile(path string) (*OSFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open backing file: %w", err)
	}
	return &OSFile{file: file, path: path}, nil
}

// ReadAt reads from the file at the given offset
func (f *OSFile) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

// WriteAt writes to the file at the given offset
func (f *OSFile) WriteAt(p []byte, off int64) (int, error) {
	return f.file.WriteAt(p, off)
}

// Length returns the current size of the file in bytes
func (f *OSFile) Length() int64 {
	info, err := f.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// Reopen opens an independent descriptor onto the same path
func (f *OSFile) Reopen() (interfaces.FileHandle, error) {
	return OpenOSFile(f.path)
}

// Close closes the underlying descriptor
func (f *OSFile) Close() error {
	return f.file.Close()
}
