package seqfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var largeValue = strings.Repeat("0123456789", 32)

func writeRecords[K, V any](t *testing.T, kc Codec[K], vc Codec[V], recs []Record[K, V]) []byte {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, kc, vc)
	require.NoError(t, err)
	for _, rec := range recs {
		err = w.Append(rec.Key, rec.Value)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, len(recs), w.Records())
	assert.Equal(t, int64(buf.Len()), w.Size())
	return buf.Bytes()
}

func testRoundTrip[K, V any](t *testing.T, kc Codec[K], vc Codec[V], recs []Record[K, V]) {
	d := writeRecords(t, kc, vc, recs)
	got, err := ReadAll(bytes.NewReader(d), kc, vc)
	require.NoError(t, err)
	if len(recs) == 0 {
		assert.Empty(t, got)
		return
	}
	assert.Equal(t, recs, got)
}

func TestExampleScenario(t *testing.T) {
	d := writeRecords(t, Int32, Text, []Record[int32, string]{
		{0, "abc"},
		{1, "de"},
	})
	exp := []byte{
		'K', 'V', 'S', 'Q', 1, byte(TagInt32), byte(TagText),
		0, 0, 0, 0, 3, 'a', 'b', 'c',
		0, 0, 0, 1, 2, 'd', 'e',
	}
	assert.Equal(t, exp, d)

	r, err := NewReader(bytes.NewReader(d), Int32, Text)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Record[int32, string]{0, "abc"}, rec)
	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, Record[int32, string]{1, "de"}, rec)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	// end of stream is sticky and not an error
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, r.Err())
	assert.False(t, r.ReadNext())
}

func TestRoundTrip(t *testing.T) {
	testRoundTrip(t, Int32, Text, nil)
	testRoundTrip(t, Int32, Text, []Record[int32, string]{
		{math.MinInt32, ""},
		{-1, "hello\nworld"},
		{math.MaxInt32, largeValue},
		{7, "ñandú ☃"},
	})
	testRoundTrip(t, Int64, Bytes, []Record[int64, []byte]{
		{math.MinInt64, []byte{}},
		{0, []byte{0x0, 0x1, 0xa, 0xff}},
		{math.MaxInt64, []byte(largeValue)},
	})
	testRoundTrip(t, Text, Int32, []Record[string, int32]{
		{"", 0},
		{"a", 1},
		{"a", 1},
	})
	testRoundTrip(t, Bytes, Int64, []Record[[]byte, int64]{
		{[]byte("k"), 5},
	})
}

func TestMany(t *testing.T) {
	var recs []Record[int32, string]
	for i := range 1000 {
		v := fmt.Sprintf("value %d", i)
		if i%100 == 0 {
			v = largeValue
		}
		recs = append(recs, Record[int32, string]{int32(i), v})
	}
	testRoundTrip(t, Int32, Text, recs)
}

func TestRecordPositions(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Int32, Text)
	require.NoError(t, err)
	vals := []string{"foo", "", largeValue, "bar"}
	var positions []int64
	for i, v := range vals {
		positions = append(positions, w.Size())
		require.NoError(t, w.Append(int32(i), v))
	}
	require.NoError(t, w.Flush())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), Int32, Text)
	require.NoError(t, err)
	i := 0
	for r.ReadNext() {
		assert.Equal(t, int32(i), r.Key)
		assert.Equal(t, vals[i], r.Value)
		assert.Equal(t, positions[i], r.CurrRecordPos)
		if i < len(positions)-1 {
			assert.Equal(t, positions[i+1], r.NextRecordPos)
		}
		i++
	}
	assert.NoError(t, r.Err())
	assert.Equal(t, len(vals), i)
	assert.Equal(t, int64(buf.Len()), r.NextRecordPos)
}

func TestBadMagic(t *testing.T) {
	d := writeRecords(t, Int32, Text, []Record[int32, string]{{0, "abc"}})
	d[1] = 'X'
	r, err := NewReader(bytes.NewReader(d), Int32, Text)
	assert.Nil(t, r)
	assert.True(t, IsFormatError(err))

	_, err = OpenAny(bytes.NewReader(d))
	assert.True(t, IsFormatError(err))
}

func TestHeaderErrors(t *testing.T) {
	valid := writeRecords(t, Int32, Text, nil)
	tests := []struct {
		name string
		d    []byte
	}{
		{"empty", nil},
		{"short", valid[:5]},
		{"bad version", []byte{'K', 'V', 'S', 'Q', 2, 1, 3}},
		{"bad key tag", []byte{'K', 'V', 'S', 'Q', 1, 0, 3}},
		{"bad value tag", []byte{'K', 'V', 'S', 'Q', 1, 1, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.d), Int32, Text)
			assert.True(t, IsFormatError(err), "err: %v", err)
			_, err = OpenAny(bytes.NewReader(tt.d))
			assert.True(t, IsFormatError(err), "err: %v", err)
		})
	}
}

func TestTypeMismatch(t *testing.T) {
	d := writeRecords(t, Int32, Text, []Record[int32, string]{{0, "abc"}})

	_, err := NewReader(bytes.NewReader(d), Int64, Text)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Error(), "expected (int64, text)")

	_, err = NewReader(bytes.NewReader(d), Int32, Bytes)
	assert.True(t, IsFormatError(err))
}

func TestTruncated(t *testing.T) {
	d := writeRecords(t, Int32, Text, []Record[int32, string]{
		{0, "abc"},
		{1, "defgh"},
	})
	// every cut inside the second record must be detected
	secondPos := len(d) - (4 + 1 + 5)
	for n := secondPos + 1; n < len(d); n++ {
		r, err := NewReader(bytes.NewReader(d[:n]), Int32, Text)
		require.NoError(t, err)
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "abc", rec.Value)

		_, err = r.Next()
		require.True(t, IsFormatError(err), "n: %d, err: %v", n, err)
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
		// errors are sticky
		_, err2 := r.Next()
		assert.Equal(t, err, err2)
		assert.False(t, r.ReadNext())
		assert.Equal(t, err, r.Err())
	}
}

func TestCorruptLength(t *testing.T) {
	d := writeRecords(t, Int32, Bytes, nil)
	// length prefix far larger than MaxFieldSize
	d = append(d, 0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff, 0x7f)
	_, err := ReadAll(bytes.NewReader(d), Int32, Bytes)
	assert.True(t, IsFormatError(err))
	assert.True(t, errors.Is(err, errFieldTooBig))

	// plausible length with the data missing
	d = writeRecords(t, Int32, Bytes, nil)
	d = append(d, 0, 0, 0, 1, 0xa0, 0x8d, 0x06, 'a', 'b')
	_, err = ReadAll(bytes.NewReader(d), Int32, Bytes)
	assert.True(t, IsFormatError(err))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	big := bytes.Repeat([]byte{'x'}, 100000)
	testRoundTrip(t, Int32, Bytes, []Record[int32, []byte]{{0, big}, {1, []byte{}}})
}

func TestInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Int32, Text)
	require.NoError(t, err)
	sizeBefore := buf.Len()
	err = w.Append(1, "bad \xff")
	assert.Error(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, sizeBefore, buf.Len())
	assert.Equal(t, 0, w.Records())

	// hand-craft a record with invalid text
	d := append(buf.Bytes(), 0, 0, 0, 1, 2, 0xc3, 0x28)
	_, err = ReadAll(bytes.NewReader(d), Int32, Text)
	assert.True(t, IsFormatError(err))
}

// countingSink records writes, flushes and closes
type countingSink struct {
	bytes.Buffer
	nWrites int
	nCloses int
}

func (s *countingSink) Write(d []byte) (int, error) {
	s.nWrites++
	return s.Buffer.Write(d)
}

func (s *countingSink) Close() error {
	s.nCloses++
	return nil
}

func TestAppendAfterClose(t *testing.T) {
	sink := &countingSink{}
	w, err := NewWriter(sink, Int32, Text)
	require.NoError(t, err)
	require.NoError(t, w.Append(0, "abc"))
	require.NoError(t, w.Close())
	d := append([]byte{}, sink.Bytes()...)

	err = w.Append(1, "de")
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, d, sink.Bytes())
	assert.True(t, errors.Is(w.Flush(), ErrInvalidState))
}

func TestCloseTwice(t *testing.T) {
	sink := &countingSink{}
	w, err := NewWriter(sink, Int32, Text)
	require.NoError(t, err)
	require.NoError(t, w.Append(0, "abc"))
	// header is written directly, the record is buffered
	assert.Equal(t, 1, sink.nWrites)

	require.NoError(t, w.Close())
	assert.Equal(t, 2, sink.nWrites)
	assert.Equal(t, 1, sink.nCloses)

	require.NoError(t, w.Close())
	assert.Equal(t, 2, sink.nWrites)
	assert.Equal(t, 1, sink.nCloses)
}

type failingWriter struct {
	err error
}

func (w *failingWriter) Write(d []byte) (int, error) {
	return 0, w.err
}

func TestOpenWriterFails(t *testing.T) {
	errDisk := errors.New("disk full")
	w, err := NewWriter(&failingWriter{errDisk}, Int32, Text)
	assert.Nil(t, w)
	assert.True(t, IsFormatError(err))
	assert.True(t, errors.Is(err, errDisk))
}

// limitedWriter accepts n bytes, then fails
type limitedWriter struct {
	n   int
	err error
}

func (w *limitedWriter) Write(d []byte) (int, error) {
	if len(d) > w.n {
		n := w.n
		w.n = 0
		return n, w.err
	}
	w.n -= len(d)
	return len(d), nil
}

func TestWriterIOErrorPropagated(t *testing.T) {
	errDisk := errors.New("disk full")
	w, err := NewWriter(&limitedWriter{n: headerSize, err: errDisk}, Int32, Text)
	require.NoError(t, err)
	require.NoError(t, w.Append(0, "buffered"))
	err = w.Flush()
	assert.Equal(t, errDisk, err)
	// the writer is unusable after an I/O error
	assert.Equal(t, errDisk, w.Append(1, "x"))
	assert.Equal(t, errDisk, w.Close())
	assert.Equal(t, errDisk, w.Close())
}

// cancelSink fails writes after n bytes and tracks Cancel / Close
type cancelSink struct {
	limitedWriter
	cancelled bool
	closed    bool
}

func (s *cancelSink) Cancel() {
	s.cancelled = true
}

func (s *cancelSink) Close() error {
	s.closed = true
	return nil
}

func TestCloseCancelsAfterError(t *testing.T) {
	errDisk := errors.New("disk full")
	sink := &cancelSink{limitedWriter: limitedWriter{n: headerSize, err: errDisk}}
	w, err := NewWriter(sink, Int32, Text)
	require.NoError(t, err)
	require.NoError(t, w.Append(0, "abc"))
	assert.Equal(t, errDisk, w.Close())
	assert.True(t, sink.cancelled)
	assert.False(t, sink.closed)

	sink = &cancelSink{limitedWriter: limitedWriter{n: 1024}}
	w, err = NewWriter(sink, Int32, Text)
	require.NoError(t, err)
	require.NoError(t, w.Append(0, "abc"))
	assert.NoError(t, w.Close())
	assert.False(t, sink.cancelled)
	assert.True(t, sink.closed)
}

// failingReader returns data, then an error
type failingReader struct {
	r   io.Reader
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func TestReaderIOErrorPropagated(t *testing.T) {
	errNet := errors.New("connection reset")
	d := writeRecords(t, Int32, Text, []Record[int32, string]{{0, "abc"}, {1, "de"}})

	src := &failingReader{r: bytes.NewReader(d[:len(d)-1]), err: errNet}
	r, err := NewReader(src, Int32, Text)
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.Equal(t, errNet, err)
	assert.False(t, IsFormatError(err))

	src = &failingReader{r: bytes.NewReader(d[:3]), err: errNet}
	_, err = NewReader(src, Int32, Text)
	assert.Equal(t, errNet, err)
}

type closeTracker struct {
	io.Reader
	nCloses int
}

func (c *closeTracker) Close() error {
	c.nCloses++
	return nil
}

func TestReaderClose(t *testing.T) {
	d := writeRecords(t, Int32, Text, []Record[int32, string]{{0, "abc"}})
	src := &closeTracker{Reader: bytes.NewReader(d)}
	r, err := NewReader(src, Int32, Text)
	require.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
	assert.Equal(t, 1, src.nCloses)
	_, err = r.Next()
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, r.ReadNext())
	assert.NoError(t, r.Err())
}

func TestOpenAny(t *testing.T) {
	d := writeRecords(t, Int64, Bytes, []Record[int64, []byte]{{42, []byte("abc")}})
	r, err := OpenAny(bytes.NewReader(d))
	require.NoError(t, err)
	hdr := r.Header()
	assert.Equal(t, Version, hdr.Version)
	assert.Equal(t, TagInt64, hdr.KeyTag)
	assert.Equal(t, TagBytes, hdr.ValueTag)

	require.True(t, r.ReadNext())
	assert.Equal(t, int64(42), r.Key)
	assert.Equal(t, []byte("abc"), r.Value)
	assert.False(t, r.ReadNext())
	assert.NoError(t, r.Err())
}

func TestCodecForTag(t *testing.T) {
	c, err := CodecForTag(TagText)
	require.NoError(t, err)
	_, err = c.Append(nil, 5)
	assert.Error(t, err)
	d, err := c.Append(nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 'h', 'i'}, d)

	_, err = CodecForTag(TypeTag(77))
	assert.True(t, IsFormatError(err))
	assert.Equal(t, "unknown(77)", TypeTag(77).String())
}
