package main

import (
	"fmt"
	"io"

	"github.com/kjk/seqfile/storage"

	"github.com/spf13/cobra"
)

type containerStat struct {
	version  byte
	keyTag   string
	valueTag string
	records  int
	size     int64
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <src>",
		Short: "Show header, number of records and size of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := statContainer(a.storageOptions(), args[0])
			if err != nil {
				return err
			}
			printStat(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

// statContainer reads all records to validate the container
func statContainer(sopts *storage.Options, src string) (*containerStat, error) {
	r, err := openContainer(sopts, src)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	hdr := r.Header()
	st := &containerStat{
		version:  hdr.Version,
		keyTag:   hdr.KeyTag.String(),
		valueTag: hdr.ValueTag.String(),
	}
	for r.ReadNext() {
		st.records++
	}
	if err = r.Err(); err != nil {
		return nil, fmt.Errorf("'%s': %w", src, err)
	}
	st.size = r.NextRecordPos
	return st, nil
}

func printStat(w io.Writer, st *containerStat) {
	fmt.Fprintf(w, "version: %d\n", st.version)
	fmt.Fprintf(w, "key:     %s\n", st.keyTag)
	fmt.Fprintf(w, "value:   %s\n", st.valueTag)
	fmt.Fprintf(w, "records: %d\n", st.records)
	fmt.Fprintf(w, "size:    %d\n", st.size)
}
