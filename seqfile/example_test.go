package seqfile_test

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kjk/seqfile/seqfile"
)

func Example() {
	var buf bytes.Buffer
	w, err := seqfile.NewWriter(&buf, seqfile.Int32, seqfile.Text)
	if err != nil {
		panic(err)
	}
	// calling Close() twice is a no-op
	defer w.Close()
	_ = w.Append(0, "abc")
	_ = w.Append(1, "de")
	if err = w.Close(); err != nil {
		panic(err)
	}

	r, err := seqfile.NewReader(&buf, seqfile.Int32, seqfile.Text)
	if err != nil {
		panic(err)
	}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}
		fmt.Printf("%d: %s\n", rec.Key, rec.Value)
	}
	// Output:
	// 0: abc
	// 1: de
}

func ExampleReader_ReadNext() {
	var buf bytes.Buffer
	w, _ := seqfile.NewWriter(&buf, seqfile.Text, seqfile.Int64)
	_ = w.Append("apples", 3)
	_ = w.Append("pears", 5)
	_ = w.Close()

	r, _ := seqfile.OpenAny(&buf)
	hdr := r.Header()
	fmt.Printf("key: %s, value: %s\n", hdr.KeyTag, hdr.ValueTag)
	for r.ReadNext() {
		fmt.Printf("%v at %d: %v\n", r.Key, r.CurrRecordPos, r.Value)
	}
	if r.Err() != nil {
		panic(r.Err())
	}
	// Output:
	// key: text, value: int64
	// apples at 7: 3
	// pears at 22: 5
}
