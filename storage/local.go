package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores files on local disk
type Local struct {
	// Dir is a directory paths are relative to.
	// If empty, paths are used as-is.
	Dir string
}

var _ Backend = &Local{}

// NewLocal creates a backend for files in dir
func NewLocal(dir string) *Local {
	return &Local{
		Dir: dir,
	}
}

func (l *Local) path(p string) string {
	if l.Dir == "" {
		return p
	}
	return filepath.Join(l.Dir, filepath.FromSlash(p))
}

// Open opens a file for reading
func (l *Local) Open(p string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(p))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat returns the size of a file
func (l *Local) Stat(p string) (int64, error) {
	st, err := os.Stat(l.path(p))
	if err != nil {
		return 0, err
	}
	if !st.Mode().IsRegular() {
		return 0, fmt.Errorf("'%s' is not a regular file", l.path(p))
	}
	return st.Size(), nil
}

// Create creates a file atomically: the data is written to a temporary
// file which is renamed to the destination on Close.
// If Write or Close fail, the destination is not touched.
func (l *Local) Create(p string) (io.WriteCloser, error) {
	dst := l.path(p)
	err := os.MkdirAll(filepath.Dir(dst), 0755)
	if err != nil {
		return nil, err
	}
	f, err := newAtomicFile(dst)
	if err != nil {
		return nil, err
	}
	return f, nil
}

var (
	// ErrCancelled is returned by calls subsequent to Cancel()
	ErrCancelled = errors.New("cancelled")
)

// atomicFile writes to a temporary file in the same directory
// and renames it to the destination on Close.
// Some references:
// - https://www.slideshare.net/nan1nan1/eat-my-data
// - https://lwn.net/Articles/457667/
type atomicFile struct {
	dstPath string
	dir     string
	tmpFile *os.File
	tmpPath string
	err     error
}

func newAtomicFile(path string) (*atomicFile, error) {
	dir, fName := filepath.Split(path)
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	tmpFile, err := os.CreateTemp(dir, fName)
	if err != nil {
		return nil, err
	}
	return &atomicFile{
		dstPath: path,
		dir:     dir,
		tmpFile: tmpFile,
		tmpPath: tmpFile.Name(),
	}, nil
}

func (f *atomicFile) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.Write(d)
	if err != nil {
		// remember the first error and cleanup
		f.err = err
		_ = f.Close()
	}
	return n, err
}

// Cancel removes the temporary file if it wasn't closed yet.
// Destination file will not be created.
func (f *atomicFile) Cancel() {
	if f.tmpFile == nil {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close can be called multiple times, returns the first error
func (f *atomicFile) Close() error {
	if f.tmpFile == nil {
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = err == nil
		// sync directory after rename, a nice to have
		fdir, _ := os.Open(f.dir)
		if fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}
	f.err = err
	return err
}
