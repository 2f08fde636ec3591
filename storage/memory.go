package storage

import (
	"bytes"
	"io"
	"io/fs"
	"sync"
)

// Memory keeps files in memory. Useful for tests.
type Memory struct {
	m  map[string][]byte
	mu sync.Mutex
}

var _ Backend = &Memory{}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{
		m: map[string][]byte{},
	}
}

// Open returns a reader over a copy of the file data
func (m *Memory) Open(p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.m[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

// Stat returns size of the file
func (m *Memory) Stat(p string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.m[p]
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return int64(len(d)), nil
}

// Create returns a writer. The file becomes visible on Close.
func (m *Memory) Create(p string) (io.WriteCloser, error) {
	return &memoryFile{m: m, path: p}, nil
}

// WriteFile stores d as p
func (m *Memory) WriteFile(p string, d []byte) {
	m.mu.Lock()
	m.m[p] = append([]byte(nil), d...)
	m.mu.Unlock()
}

type memoryFile struct {
	m      *Memory
	path   string
	buf    bytes.Buffer
	closed bool
}

func (f *memoryFile) Write(d []byte) (int, error) {
	if f.closed {
		return 0, fs.ErrClosed
	}
	return f.buf.Write(d)
}

func (f *memoryFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.m.WriteFile(f.path, f.buf.Bytes())
	return nil
}

// Cancel discards written data
func (f *memoryFile) Cancel() {
	f.closed = true
	f.buf = bytes.Buffer{}
}
