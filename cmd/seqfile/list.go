package main

import (
	"fmt"
	"io"

	"github.com/kjk/seqfile/pack"
	"github.com/kjk/seqfile/storage"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <src>",
		Short: "List files in a container created with pack",
		Long: `Print one line per file in a container created with pack:
path, offset of the record, size and sha1 of content, separated by tabs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(a.storageOptions(), args[0], cmd.OutOrStdout())
		},
	}
}

func runList(sopts *storage.Options, src string, w io.Writer) error {
	b, p, err := storage.FromURL(src, sopts)
	if err != nil {
		return err
	}
	defer closeBackend(b)
	rc, err := storage.OpenMaybeCompressed(b, p)
	if err != nil {
		return err
	}
	defer rc.Close()
	entries, err := pack.ReadEntries(rc)
	if err != nil {
		return fmt.Errorf("failed to list '%s': %w", src, err)
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", e.Path, e.Offset, e.Size, e.Sha1)
	}
	return nil
}
