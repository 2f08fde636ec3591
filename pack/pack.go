// Package pack stores many small files in a single container, one record
// per file: the key is slash-separated path relative to the packed
// directory, the value is file content.
package pack

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kjk/seqfile/seqfile"
)

var (
	// ErrBadPath is returned when extracting a path that would be
	// written outside of destination directory
	ErrBadPath = errors.New("path escapes destination directory")
)

// Entry represents a single file in the container
type Entry struct {
	// Path of the file, uses '/' as separator
	Path string

	// offset of the record within the container
	Offset int64

	// size of the file, in bytes
	Size int64

	// sha1 of content, in hex format
	Sha1 string

	Data []byte
}

func sha1Hex(d []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(d))
}

// WriteDir writes all regular files in dir to w, in lexical order.
// Returns number of files written. On success w is closed if it's an
// io.Closer. On error it's left open so that the caller can discard it.
func WriteDir(w io.Writer, dir string) (int, error) {
	sw, err := seqfile.NewWriter(w, seqfile.Text, seqfile.Bytes)
	if err != nil {
		return 0, err
	}

	// filepath.WalkDir visits files in lexical order
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return sw.Append(filepath.ToSlash(rel), data)
	})
	if err != nil {
		return sw.Records(), err
	}
	return sw.Records(), sw.Close()
}

// ReadEntries reads all entries from a container written by WriteDir
func ReadEntries(r io.Reader) ([]*Entry, error) {
	sr, err := seqfile.NewReader(r, seqfile.Text, seqfile.Bytes)
	if err != nil {
		return nil, err
	}
	var entries []*Entry
	for sr.ReadNext() {
		e := &Entry{
			Path:   sr.Key,
			Offset: sr.CurrRecordPos,
			Size:   int64(len(sr.Value)),
			Sha1:   sha1Hex(sr.Value),
			Data:   sr.Value,
		}
		entries = append(entries, e)
	}
	if sr.Err() != nil {
		return nil, sr.Err()
	}
	return entries, nil
}

// safeJoin returns dstDir/p or ErrBadPath if p is absolute
// or would end up outside of dstDir
func safeJoin(dstDir string, p string) (string, error) {
	if p == "" || path.IsAbs(p) || strings.Contains(p, "\\") {
		return "", fmt.Errorf("'%s': %w", p, ErrBadPath)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("'%s': %w", p, ErrBadPath)
	}
	return filepath.Join(dstDir, filepath.FromSlash(clean)), nil
}

// Extract recreates files from container in dstDir.
// Returns number of files written.
func Extract(r io.Reader, dstDir string) (int, error) {
	sr, err := seqfile.NewReader(r, seqfile.Text, seqfile.Bytes)
	if err != nil {
		return 0, err
	}
	n := 0
	for sr.ReadNext() {
		dst, err := safeJoin(dstDir, sr.Key)
		if err != nil {
			return n, err
		}
		err = os.MkdirAll(filepath.Dir(dst), 0755)
		if err != nil {
			return n, err
		}
		err = os.WriteFile(dst, sr.Value, 0644)
		if err != nil {
			return n, err
		}
		n++
	}
	return n, sr.Err()
}
