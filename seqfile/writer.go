package seqfile

import (
	"bufio"
	"io"
)

const (
	// Version is the format version written by Writer
	Version byte = 1

	headerSize = 7
)

// Magic is the marker at the start of every container
var Magic = [4]byte{'K', 'V', 'S', 'Q'}

// Header describes the types stored in a container
type Header struct {
	Version  byte
	KeyTag   TypeTag
	ValueTag TypeTag
}

func (h Header) marshal() []byte {
	d := make([]byte, 0, headerSize)
	d = append(d, Magic[:]...)
	return append(d, h.Version, byte(h.KeyTag), byte(h.ValueTag))
}

// Writer appends key / value records to a sink.
// Not safe for concurrent use.
type Writer[K, V any] struct {
	sink io.Writer
	bw   *bufio.Writer
	kc   Codec[K]
	vc   Codec[V]

	// re-used across Append calls
	buf []byte

	nRecords int
	size     int64

	closed   bool
	closeErr error
	// first I/O error, the writer is unusable after it
	err error
}

// NewWriter writes the header to sink and returns a Writer for
// records encoded with kc and vc.
func NewWriter[K, V any](sink io.Writer, kc Codec[K], vc Codec[V]) (*Writer[K, V], error) {
	panicIf(sink == nil || kc == nil || vc == nil, "sink and codecs must be provided")
	hdr := Header{
		Version:  Version,
		KeyTag:   kc.Tag(),
		ValueTag: vc.Tag(),
	}
	// header goes straight to the sink so that a sink that doesn't
	// accept bytes is reported at open time
	if _, err := sink.Write(hdr.marshal()); err != nil {
		return nil, formatErrorf(0, err, "failed to write header")
	}
	return &Writer[K, V]{
		sink: sink,
		bw:   bufio.NewWriter(sink),
		kc:   kc,
		vc:   vc,
		size: headerSize,
	}, nil
}

// Append writes a record. Key is encoded first, then value.
// Records are durable only after Flush or Close succeeds.
func (w *Writer[K, V]) Append(key K, value V) error {
	if w.closed {
		return ErrInvalidState
	}
	if w.err != nil {
		return w.err
	}

	// most records are small. don't keep a large buffer around
	if cap(w.buf) > 1024*1024 {
		w.buf = nil
	}
	d, err := w.kc.Append(w.buf[:0], key)
	if err != nil {
		return formatErrorf(w.size, err, "can't encode key as %s", w.kc.Tag())
	}
	d, err = w.vc.Append(d, value)
	if err != nil {
		return formatErrorf(w.size, err, "can't encode value as %s", w.vc.Tag())
	}
	w.buf = d

	n, err := w.bw.Write(d)
	w.size += int64(n)
	if err != nil {
		w.err = err
		return err
	}
	w.nRecords++
	return nil
}

// Flush writes buffered records to the sink
func (w *Writer[K, V]) Flush() error {
	if w.closed {
		return ErrInvalidState
	}
	if w.err != nil {
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Close flushes buffered data and closes the sink if it's an io.Closer.
// If a write to the sink failed and the sink has a Cancel() method,
// it's called instead of Close().
// Can be called multiple times to make it easier to use via defer.
// Subsequent calls return the result of the first call.
func (w *Writer[K, V]) Close() error {
	if w.closed {
		return w.closeErr
	}
	w.closed = true

	err := w.err
	if err == nil {
		err = w.bw.Flush()
	}
	// a sink that can discard partial data (e.g. a temporary file) is
	// cancelled instead of closed after a failed write
	if c, ok := w.sink.(interface{ Cancel() }); ok && err != nil {
		c.Cancel()
	} else if c, ok := w.sink.(io.Closer); ok {
		errClose := c.Close()
		if err == nil {
			err = errClose
		}
	}
	w.closeErr = err
	w.buf = nil
	return err
}

// Records returns number of records appended so far
func (w *Writer[K, V]) Records() int {
	return w.nRecords
}

// Size returns number of bytes written, including the header
// and records that are still buffered
func (w *Writer[K, V]) Size() int64 {
	return w.size
}
