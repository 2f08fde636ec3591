package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kjk/seqfile/seqfile"
	"github.com/kjk/seqfile/storage"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

type dumpOptions struct {
	json   bool
	pretty bool
	limit  int
}

type jsonRecord struct {
	Offset int64 `json:"offset"`
	Key    any   `json:"key"`
	Value  any   `json:"value"`
}

func newDumpCmd(a *app) *cobra.Command {
	opts := &dumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump <src>",
		Short: "Print records of a container",
		Long: `Print records of a container, one per line, as key<tab>value.
Bytes are printed in hex.

Example:
  seqfile dump out/quijote0.seq
  seqfile dump --json --pretty --limit 3 s3://books/quijote0.seq`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(a.storageOptions(), args[0], cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print records as JSON objects, one per line")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "pretty-print JSON (implies --json)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "print at most this many records (0 means all)")
	return cmd
}

func fieldToString(v any) string {
	if d, ok := v.([]byte); ok {
		return fmt.Sprintf("%x", d)
	}
	return fmt.Sprintf("%v", v)
}

// openContainer opens a container at rawURL for reading. Closing the
// returned reader also closes the backend.
func openContainer(sopts *storage.Options, rawURL string) (*seqfile.Reader[any, any], error) {
	b, p, err := storage.FromURL(rawURL, sopts)
	if err != nil {
		return nil, err
	}
	rc, err := storage.OpenMaybeCompressed(b, p)
	if err != nil {
		storage.Close(b)
		return nil, err
	}
	src := &backendReader{ReadCloser: rc, b: b}
	r, err := seqfile.OpenAny(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("'%s': %w", rawURL, err)
	}
	return r, nil
}

type backendReader struct {
	io.ReadCloser
	b storage.Backend
}

func (r *backendReader) Close() error {
	err := r.ReadCloser.Close()
	errB := storage.Close(r.b)
	if err == nil {
		err = errB
	}
	return err
}

func runDump(sopts *storage.Options, src string, w io.Writer, opts *dumpOptions) error {
	r, err := openContainer(sopts, src)
	if err != nil {
		return err
	}
	defer r.Close()

	n := 0
	for r.ReadNext() {
		if opts.limit > 0 && n >= opts.limit {
			break
		}
		n++
		if !opts.json && !opts.pretty {
			_, err = fmt.Fprintf(w, "%s\t%s\n", fieldToString(r.Key), fieldToString(r.Value))
			if err != nil {
				return err
			}
			continue
		}
		rec := jsonRecord{
			Offset: r.CurrRecordPos,
			Key:    r.Key,
			Value:  r.Value,
		}
		d, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if opts.pretty {
			d = pretty.Pretty(d)
		} else {
			d = append(d, '\n')
		}
		if _, err = w.Write(d); err != nil {
			return err
		}
	}
	if err = r.Err(); err != nil {
		return fmt.Errorf("'%s': %w", src, err)
	}
	return nil
}
