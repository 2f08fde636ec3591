package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
)

// HTTPConfig describes an http server that serves files with GET
// and accepts uploads with PUT
type HTTPConfig struct {
	BaseURL string
	// sent as X-Api-Key header, if set
	APIKey string
	// if nil, http.DefaultClient is used
	Client *http.Client
}

// HTTP reads and writes files on a web server
type HTTP struct {
	config HTTPConfig
}

var _ Backend = &HTTP{}

const httpTimeout = time.Minute

// NewHTTP creates a backend for urls under config.BaseURL
func NewHTTP(config *HTTPConfig) *HTTP {
	return &HTTP{
		config: *config,
	}
}

func (h *HTTP) url(p string) string {
	return strings.TrimSuffix(h.config.BaseURL, "/") + "/" + strings.TrimPrefix(p, "/")
}

func (h *HTTP) request(p string) *requests.Builder {
	r := requests.URL(h.url(p))
	if h.config.Client != nil {
		r = r.Client(h.config.Client)
	}
	if h.config.APIKey != "" {
		r = r.Header("X-Api-Key", h.config.APIKey)
	}
	return r
}

func notFoundErr(op, p string, err error) error {
	if requests.HasStatusErr(err, http.StatusNotFound) {
		return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
	}
	return err
}

// Open downloads the file
func (h *HTTP) Open(p string) (io.ReadCloser, error) {
	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(ctx(), httpTimeout)
	defer cancel()
	err := h.request(p).
		ToBytesBuffer(&buf).
		Fetch(ctx)
	if err != nil {
		return nil, notFoundErr("open", p, err)
	}
	return io.NopCloser(&buf), nil
}

// Stat returns Content-Length from a HEAD request
func (h *HTTP) Stat(p string) (int64, error) {
	size := int64(-1)
	ctx, cancel := context.WithTimeout(ctx(), httpTimeout)
	defer cancel()
	err := h.request(p).
		Method(http.MethodHead).
		Handle(func(res *http.Response) error {
			size = res.ContentLength
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		return 0, notFoundErr("stat", p, err)
	}
	if size < 0 {
		return 0, errors.New("server didn't send Content-Length for " + h.url(p))
	}
	return size, nil
}

// Create buffers the data and uploads it with PUT on Close
func (h *HTTP) Create(p string) (io.WriteCloser, error) {
	return &httpWriter{h: h, path: p}, nil
}

type httpWriter struct {
	h      *HTTP
	path   string
	buf    bytes.Buffer
	closed bool
	err    error
}

func (w *httpWriter) Write(d []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(d)
}

// Cancel discards the data, nothing is uploaded
func (w *httpWriter) Cancel() {
	if w.closed {
		return
	}
	w.closed = true
	w.err = ErrCancelled
	w.buf = bytes.Buffer{}
}

func (w *httpWriter) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	ctx, cancel := context.WithTimeout(ctx(), httpTimeout)
	defer cancel()
	w.err = w.h.request(w.path).
		Method(http.MethodPut).
		BodyBytes(w.buf.Bytes()).
		ContentType("application/octet-stream").
		Fetch(ctx)
	w.buf = bytes.Buffer{}
	return w.err
}
