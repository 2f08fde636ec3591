package storage

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Backend abstracts the place where containers are read from and written to
// (local disk, memory, S3, HDFS, SFTP, HTTP).
// The only assumption is ordered, reliable byte delivery.
type Backend interface {
	// Open opens path for reading
	Open(path string) (io.ReadCloser, error)
	// Stat returns size of the file at path
	Stat(path string) (int64, error)
	// Create creates path for writing, replacing existing file.
	// The data is guaranteed to be persisted only after Close
	// returns without error.
	Create(path string) (io.WriteCloser, error)
}

// Options has settings for backends created by FromURL
type Options struct {
	Minio *MinioConfig
	SFTP  *SFTPConfig
	HDFS  *HDFSConfig
	HTTP  *HTTPConfig
}

func ctx() context.Context {
	return context.Background()
}

// DefaultMemory is used for mem:// urls
var DefaultMemory = NewMemory()

// FromURL returns a backend for rawURL and a path within that backend.
// Supported:
//   - /path/to/file, file:///path/to/file
//   - mem://path/to/file
//   - s3://bucket/path/to/object
//   - hdfs://namenode:8020/path/to/file
//   - sftp://user@host:port/path/to/file
//   - http://host/path/to/file, https://host/path/to/file
func FromURL(rawURL string, opts *Options) (Backend, string, error) {
	if opts == nil {
		opts = &Options{}
	}
	u, err := url.Parse(rawURL)
	// 1-letter scheme is a windows drive letter, not a url
	if err != nil || len(u.Scheme) <= 1 {
		return NewLocal(""), rawURL, nil
	}
	p := u.Path
	switch u.Scheme {
	case "file":
		return NewLocal(""), p, nil
	case "mem":
		return DefaultMemory, path.Join(u.Host, p), nil
	case "s3":
		var c MinioConfig
		if opts.Minio != nil {
			c = *opts.Minio
		}
		if u.Host != "" {
			c.Bucket = u.Host
		}
		b, err := NewMinio(&c)
		if err != nil {
			return nil, "", err
		}
		return b, strings.TrimPrefix(p, "/"), nil
	case "hdfs":
		var c HDFSConfig
		if opts.HDFS != nil {
			c = *opts.HDFS
		}
		if u.Host != "" {
			c.Namenode = u.Host
		}
		if u.User != nil {
			c.User = u.User.Username()
		}
		b, err := NewHDFS(&c)
		if err != nil {
			return nil, "", err
		}
		return b, p, nil
	case "sftp":
		var c SFTPConfig
		if opts.SFTP != nil {
			c = *opts.SFTP
		}
		if u.Hostname() != "" {
			c.Addr = u.Hostname()
		}
		if port := u.Port(); port != "" {
			var n uint
			if _, err := fmt.Sscanf(port, "%d", &n); err != nil {
				return nil, "", fmt.Errorf("invalid port in '%s'", rawURL)
			}
			c.Port = n
		}
		if u.User != nil {
			c.User = u.User.Username()
		}
		b, err := NewSFTP(&c)
		if err != nil {
			return nil, "", err
		}
		return b, p, nil
	case "http", "https":
		var c HTTPConfig
		if opts.HTTP != nil {
			c = *opts.HTTP
		}
		c.BaseURL = u.Scheme + "://" + u.Host
		return NewHTTP(&c), p, nil
	}
	return nil, "", fmt.Errorf("unsupported url scheme '%s' in '%s'", u.Scheme, rawURL)
}

// Close closes b if it holds resources (e.g. network connections)
func Close(b Backend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// implement io.ReadCloser over a backend reader wrapped with io.Reader.
// io.Closer goes to both, io.Reader goes to wrapping reader
type readerWrapped struct {
	rc    io.ReadCloser
	r     io.Reader
	close func()
}

func (w *readerWrapped) Close() error {
	if w.close != nil {
		w.close()
	}
	return w.rc.Close()
}

func (w *readerWrapped) Read(p []byte) (int, error) {
	return w.r.Read(p)
}

// IsCompressed returns true if OpenMaybeCompressed will decompress path
func IsCompressed(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".gz", ".bz2", ".zst", ".zstd", ".br":
		return true
	}
	return false
}

// OpenMaybeCompressed opens a file that might be compressed with gzip,
// bzip2, zstd or brotli, based on file extension
func OpenMaybeCompressed(b Backend, p string) (io.ReadCloser, error) {
	rc, err := b.Open(p)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".gz":
		r, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &readerWrapped{rc: rc, r: r}, nil
	case ".bz2":
		return &readerWrapped{rc: rc, r: bzip2.NewReader(rc)}, nil
	case ".zst", ".zstd":
		r, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &readerWrapped{rc: rc, r: r, close: r.Close}, nil
	case ".br":
		return &readerWrapped{rc: rc, r: brotli.NewReader(rc)}, nil
	}
	return rc, nil
}

// ReadFile reads the whole file. For uncompressed files the size is
// known up front from Stat and the data is read in full. Compressed
// files are decompressed.
func ReadFile(b Backend, p string) ([]byte, error) {
	if IsCompressed(p) {
		rc, err := OpenMaybeCompressed(b, p)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	size, err := b.Stat(p)
	if err != nil {
		return nil, err
	}
	rc, err := b.Open(p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	d := make([]byte, int(size))
	_, err = io.ReadFull(rc, d)
	if err != nil {
		return nil, fmt.Errorf("reading '%s' (%d bytes) failed: %w", p, size, err)
	}
	return d, nil
}

// Cancel aborts writing to w if the backend supports it, e.g. the temporary
// file of a Local backend is removed and the destination is not created.
// Otherwise w is closed.
func Cancel(w io.WriteCloser) {
	if c, ok := w.(interface{ Cancel() }); ok {
		c.Cancel()
		return
	}
	_ = w.Close()
}
