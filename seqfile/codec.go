package seqfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// TypeTag identifies how a key or value is encoded
type TypeTag byte

const (
	// TagInt32 is a 32-bit signed integer, 4 bytes big-endian
	TagInt32 TypeTag = 1
	// TagInt64 is a 64-bit signed integer, 8 bytes big-endian
	TagInt64 TypeTag = 2
	// TagText is UTF-8 text, uvarint length followed by the bytes
	TagText TypeTag = 3
	// TagBytes is opaque data, uvarint length followed by the bytes
	TagBytes TypeTag = 4
)

// MaxFieldSize is the largest length a variable-size field can declare.
// Anything bigger is assumed to be corruption.
const MaxFieldSize = 1 << 30

func (t TypeTag) String() string {
	switch t {
	case TagInt32:
		return "int32"
	case TagInt64:
		return "int64"
	case TagText:
		return "text"
	case TagBytes:
		return "bytes"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Valid returns true if t is a known tag
func (t TypeTag) Valid() bool {
	return t >= TagInt32 && t <= TagBytes
}

// Codec encodes and decodes values of type T.
// Encoding and decoding of a given tag must use the same width / length rules
// so that a reader always knows where one field ends and the next begins.
type Codec[T any] interface {
	Tag() TypeTag
	// Append appends encoded v to dst
	Append(dst []byte, v T) ([]byte, error)
	// Read decodes one value. Returns io.EOF only if no byte was consumed.
	Read(r *bufio.Reader) (T, error)
}

var (
	// Int32 encodes int32 keys or values
	Int32 Codec[int32] = int32Codec{}
	// Int64 encodes int64 keys or values
	Int64 Codec[int64] = int64Codec{}
	// Text encodes strings, which must be valid UTF-8
	Text Codec[string] = textCodec{}
	// Bytes encodes []byte
	Bytes Codec[[]byte] = bytesCodec{}
)

var errInvalidUTF8 = errors.New("text is not valid utf-8")

type int32Codec struct{}

func (int32Codec) Tag() TypeTag { return TagInt32 }

func (int32Codec) Append(dst []byte, v int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(dst, uint32(v)), nil
}

func (int32Codec) Read(r *bufio.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

type int64Codec struct{}

func (int64Codec) Tag() TypeTag { return TagInt64 }

func (int64Codec) Append(dst []byte, v int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(dst, uint64(v)), nil
}

func (int64Codec) Read(r *bufio.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

type textCodec struct{}

func (textCodec) Tag() TypeTag { return TagText }

func (textCodec) Append(dst []byte, v string) ([]byte, error) {
	if !utf8.ValidString(v) {
		return dst, errInvalidUTF8
	}
	dst = binary.AppendUvarint(dst, uint64(len(v)))
	return append(dst, v...), nil
}

func (textCodec) Read(r *bufio.Reader) (string, error) {
	d, err := readLengthPrefixed(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(d) {
		return "", errInvalidUTF8
	}
	return string(d), nil
}

type bytesCodec struct{}

func (bytesCodec) Tag() TypeTag { return TagBytes }

func (bytesCodec) Append(dst []byte, v []byte) ([]byte, error) {
	dst = binary.AppendUvarint(dst, uint64(len(v)))
	return append(dst, v...), nil
}

func (bytesCodec) Read(r *bufio.Reader) ([]byte, error) {
	return readLengthPrefixed(r)
}

// errFieldTooBig is returned when a length prefix exceeds MaxFieldSize
var errFieldTooBig = fmt.Errorf("field length exceeds %d bytes", MaxFieldSize)

func readLengthPrefixed(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		// ReadUvarint returns io.EOF only if no bytes were read
		return nil, err
	}
	if n > MaxFieldSize {
		return nil, errFieldTooBig
	}
	if n > 64*1024 {
		// a corrupted length must not allocate before the data is there
		d, err := io.ReadAll(io.LimitReader(r, int64(n)))
		if err != nil {
			return nil, err
		}
		if uint64(len(d)) != n {
			return nil, io.ErrUnexpectedEOF
		}
		return d, nil
	}
	d := make([]byte, int(n))
	if _, err = io.ReadFull(r, d); err != nil {
		if err == io.EOF {
			// we already consumed the length prefix
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return d, nil
}

// anyCodec adapts a typed codec to Codec[any]
type anyCodec[T any] struct {
	c Codec[T]
}

func (a anyCodec[T]) Tag() TypeTag { return a.c.Tag() }

func (a anyCodec[T]) Append(dst []byte, v any) ([]byte, error) {
	tv, ok := v.(T)
	if !ok {
		return dst, fmt.Errorf("value of type %T can't be encoded as %s", v, a.c.Tag())
	}
	return a.c.Append(dst, tv)
}

func (a anyCodec[T]) Read(r *bufio.Reader) (any, error) {
	v, err := a.c.Read(r)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// CodecForTag returns a dynamically typed codec for a tag read from a header.
// Decoded values are int32, int64, string or []byte.
func CodecForTag(tag TypeTag) (Codec[any], error) {
	switch tag {
	case TagInt32:
		return anyCodec[int32]{Int32}, nil
	case TagInt64:
		return anyCodec[int64]{Int64}, nil
	case TagText:
		return anyCodec[string]{Text}, nil
	case TagBytes:
		return anyCodec[[]byte]{Bytes}, nil
	}
	return nil, &FormatError{Offset: -1, Msg: fmt.Sprintf("unknown type tag %d", byte(tag))}
}
