package seqfile

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// Record is a single key / value pair
type Record[K, V any] struct {
	Key   K
	Value V
}

// Reader reads records from a container in the order they were written.
// Not safe for concurrent use.
type Reader[K, V any] struct {
	src *sourceReader
	r   *bufio.Reader
	kc  Codec[K]
	vc  Codec[V]
	hdr Header

	// Key and Value are available after ReadNext().
	// They are over-written in next ReadNext().
	Key   K
	Value V

	// position of the current record within the stream.
	// We keep track of it so that callers can index records
	// by offset
	CurrRecordPos int64

	// position of the next record within the stream
	NextRecordPos int64

	err    error
	done   bool
	closed bool
}

// sourceReader remembers errors coming from the underlying source
// so that they can be told apart from decoding errors
type sourceReader struct {
	r     io.Reader
	n     int64
	ioErr error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.n += int64(n)
	if err != nil && err != io.EOF {
		s.ioErr = err
	}
	return n, err
}

// NewReader reads and validates the header of a container whose
// records were encoded with kc and vc
func NewReader[K, V any](source io.Reader, kc Codec[K], vc Codec[V]) (*Reader[K, V], error) {
	panicIf(source == nil || kc == nil || vc == nil, "source and codecs must be provided")
	src := &sourceReader{r: source}
	br := bufio.NewReader(src)
	hdr, err := readHeader(br, src)
	if err != nil {
		return nil, err
	}
	if hdr.KeyTag != kc.Tag() || hdr.ValueTag != vc.Tag() {
		return nil, formatErrorf(5, nil, "container has (%s, %s) records, expected (%s, %s)", hdr.KeyTag, hdr.ValueTag, kc.Tag(), vc.Tag())
	}
	return newReader(src, br, hdr, kc, vc), nil
}

// OpenAny reads the header and returns a Reader that decodes
// records using codecs picked from type tags in the header
func OpenAny(source io.Reader) (*Reader[any, any], error) {
	panicIf(source == nil, "source must be provided")
	src := &sourceReader{r: source}
	br := bufio.NewReader(src)
	hdr, err := readHeader(br, src)
	if err != nil {
		return nil, err
	}
	kc, err := CodecForTag(hdr.KeyTag)
	if err != nil {
		return nil, err
	}
	vc, err := CodecForTag(hdr.ValueTag)
	if err != nil {
		return nil, err
	}
	return newReader(src, br, hdr, kc, vc), nil
}

func newReader[K, V any](src *sourceReader, br *bufio.Reader, hdr Header, kc Codec[K], vc Codec[V]) *Reader[K, V] {
	return &Reader[K, V]{
		src:           src,
		r:             br,
		kc:            kc,
		vc:            vc,
		hdr:           hdr,
		CurrRecordPos: headerSize,
		NextRecordPos: headerSize,
	}
}

func readHeader(br *bufio.Reader, src *sourceReader) (Header, error) {
	var hdr Header
	var d [headerSize]byte
	n, err := io.ReadFull(br, d[:])
	if err != nil {
		if src.ioErr != nil && errors.Is(err, src.ioErr) {
			return hdr, err
		}
		return hdr, formatErrorf(int64(n), nil, "header truncated, got %d of %d bytes", n, headerSize)
	}
	if !bytes.Equal(d[:4], Magic[:]) {
		return hdr, formatErrorf(0, nil, "bad magic %q", d[:4])
	}
	hdr.Version = d[4]
	if hdr.Version != Version {
		return hdr, formatErrorf(4, nil, "unsupported version %d", hdr.Version)
	}
	hdr.KeyTag = TypeTag(d[5])
	hdr.ValueTag = TypeTag(d[6])
	if !hdr.KeyTag.Valid() {
		return hdr, formatErrorf(5, nil, "unknown key type tag %d", d[5])
	}
	if !hdr.ValueTag.Valid() {
		return hdr, formatErrorf(6, nil, "unknown value type tag %d", d[6])
	}
	return hdr, nil
}

// Header returns the container header
func (r *Reader[K, V]) Header() Header {
	return r.hdr
}

// pos returns how many bytes of the stream were consumed by decoding
func (r *Reader[K, V]) pos() int64 {
	return r.src.n - int64(r.r.Buffered())
}

// classify turns an error from a codec into the error we report.
// Errors from the source are returned unchanged.
func (r *Reader[K, V]) classify(err error, what string) error {
	if r.src.ioErr != nil && errors.Is(err, r.src.ioErr) {
		return err
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return formatErrorf(r.CurrRecordPos, io.ErrUnexpectedEOF, "truncated record, %s incomplete", what)
	}
	return formatErrorf(r.CurrRecordPos, err, "can't decode %s", what)
}

// Next returns the next record. Returns io.EOF when there are no more
// records. Any other error is sticky.
func (r *Reader[K, V]) Next() (Record[K, V], error) {
	var rec Record[K, V]
	if r.closed {
		return rec, ErrInvalidState
	}
	if r.err != nil {
		return rec, r.err
	}
	if r.done {
		return rec, io.EOF
	}
	r.CurrRecordPos = r.NextRecordPos

	key, err := r.kc.Read(r.r)
	if err != nil {
		if err == io.EOF && r.pos() == r.CurrRecordPos {
			// clean end at a record boundary
			r.done = true
			return rec, io.EOF
		}
		r.err = r.classify(err, "key")
		return rec, r.err
	}
	value, err := r.vc.Read(r.r)
	if err != nil {
		r.err = r.classify(err, "value")
		return rec, r.err
	}
	r.NextRecordPos = r.pos()
	rec.Key = key
	rec.Value = value
	return rec, nil
}

// ReadNext reads the next record into Key and Value.
// Returns false when there are no more records or on error.
// Check Err() for errors.
func (r *Reader[K, V]) ReadNext() bool {
	rec, err := r.Next()
	if err != nil {
		return false
	}
	r.Key = rec.Key
	r.Value = rec.Value
	return true
}

// Err returns error from last read. io.EOF is swallowed to make it
// easier to use
func (r *Reader[K, V]) Err() error {
	return r.err
}

// Close closes the source if it's an io.Closer. Safe to call multiple times.
func (r *Reader[K, V]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.src.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadAll reads all records from source
func ReadAll[K, V any](source io.Reader, kc Codec[K], vc Codec[V]) ([]Record[K, V], error) {
	r, err := NewReader(source, kc, vc)
	if err != nil {
		return nil, err
	}
	var res []Record[K, V]
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, rec)
	}
}
