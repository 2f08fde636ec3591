/*
Package seqfile reads and writes sequence files: a header followed by
an ordered list of key / value records.

The format:

	header: "KVSQ" | version (1 byte) | key type tag (1 byte) | value type tag (1 byte)
	record: key | value

Fixed size types (TagInt32, TagInt64) are written big-endian. Variable
size types (TagText, TagBytes) are written as uvarint length followed
by the data. The header has the types so that a reader can reject a
container written with different types before decoding any records.

Writing:

	w, err := seqfile.NewWriter(f, seqfile.Int32, seqfile.Text)
	if err != nil {
		return err
	}
	// calling Close() twice is a no-op
	defer w.Close()
	err = w.Append(0, content)
	if err != nil {
		return err
	}
	return w.Close()

Reading:

	r, err := seqfile.NewReader(f, seqfile.Int32, seqfile.Text)
	if err != nil {
		return err
	}
	for r.ReadNext() {
		fmt.Printf("%d: %s\n", r.Key, r.Value)
	}
	return r.Err()
*/
package seqfile
