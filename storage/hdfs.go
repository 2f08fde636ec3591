package storage

import (
	"errors"
	"io"
	"io/fs"
	"path"

	"github.com/colinmarc/hdfs/v2"
)

// HDFSConfig describes an HDFS cluster
type HDFSConfig struct {
	// Namenode is host:port of the namenode e.g. "quickstart.cloudera:8020"
	Namenode string
	// User to act as. If empty, the current OS user is used.
	User string
}

// HDFS stores files in a Hadoop distributed file system
type HDFS struct {
	Client *hdfs.Client
}

var _ Backend = &HDFS{}

// NewHDFS connects to the namenode
func NewHDFS(config *HDFSConfig) (*HDFS, error) {
	if config == nil || config.Namenode == "" {
		return nil, errors.New("must provide hdfs namenode address")
	}
	var client *hdfs.Client
	var err error
	if config.User == "" {
		client, err = hdfs.New(config.Namenode)
	} else {
		client, err = hdfs.NewClient(hdfs.ClientOptions{
			Addresses: []string{config.Namenode},
			User:      config.User,
		})
	}
	if err != nil {
		return nil, err
	}
	return &HDFS{
		Client: client,
	}, nil
}

// Open opens a file for reading
func (h *HDFS) Open(p string) (io.ReadCloser, error) {
	f, err := h.Client.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat returns size of the file
func (h *HDFS) Stat(p string) (int64, error) {
	fi, err := h.Client.Stat(p)
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return 0, &fs.PathError{Op: "stat", Path: p, Err: errors.New("is a directory")}
	}
	return fi.Size(), nil
}

// Create writes to a temporary file next to p and renames it to p on Close,
// over-writing existing file. Cancel removes the temporary file.
func (h *HDFS) Create(p string) (io.WriteCloser, error) {
	err := h.Client.MkdirAll(path.Dir(p), 0755)
	if err != nil {
		return nil, err
	}
	w, err := newHDFSWriter(hdfsClient{h.Client}, p)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Close closes connection to the namenode
func (h *HDFS) Close() error {
	return h.Client.Close()
}

// hdfsFS is the part of hdfs.Client used by hdfsWriter
type hdfsFS interface {
	Create(p string) (io.WriteCloser, error)
	Rename(oldPath, newPath string) error
	Remove(p string) error
}

type hdfsClient struct {
	*hdfs.Client
}

func (c hdfsClient) Create(p string) (io.WriteCloser, error) {
	f, err := c.Client.Create(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// same suffix as 'hadoop fs -put'
const hdfsTmpSuffix = "._COPYING_"

type hdfsWriter struct {
	fs      hdfsFS
	dstPath string
	tmpPath string
	f       io.WriteCloser
	err     error
}

func newHDFSWriter(fsys hdfsFS, p string) (*hdfsWriter, error) {
	tmpPath := p + hdfsTmpSuffix
	// left over from a crashed write
	err := fsys.Remove(tmpPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	f, err := fsys.Create(tmpPath)
	if err != nil {
		return nil, err
	}
	return &hdfsWriter{
		fs:      fsys,
		dstPath: p,
		tmpPath: tmpPath,
		f:       f,
	}, nil
}

func (w *hdfsWriter) Write(d []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.f.Write(d)
	if err != nil {
		w.err = err
		_ = w.Close()
	}
	return n, err
}

// Cancel removes the temporary file. Destination file is not touched.
func (w *hdfsWriter) Cancel() {
	if w.f == nil {
		return
	}
	w.err = ErrCancelled
	_ = w.Close()
}

// Close can be called multiple times, returns the first error
func (w *hdfsWriter) Close() error {
	if w.f == nil {
		return w.err
	}
	f := w.f
	w.f = nil
	errClose := f.Close()
	if w.err == nil {
		w.err = errClose
	}
	if w.err == nil {
		// Rename over-writes existing destination
		w.err = w.fs.Rename(w.tmpPath, w.dstPath)
	}
	if w.err != nil {
		_ = w.fs.Remove(w.tmpPath)
	}
	return w.err
}
