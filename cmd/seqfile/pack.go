package main

import (
	"fmt"
	"time"

	"github.com/kjk/seqfile/log"
	"github.com/kjk/seqfile/pack"
	"github.com/kjk/seqfile/storage"

	"github.com/spf13/cobra"
)

func newPackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pack <dir> <dst>",
		Short: "Pack all files in a directory into a single container",
		Long: `Pack all files in dir into a container of (text, bytes) records.
The key is the path of the file relative to dir, the value is file content.

Example:
  seqfile pack ./site hdfs://namenode:8020/archive/site.seq`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := runPack(a.storageOptions(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d files into %s\n", n, args[1])
			return nil
		},
	}
}

func newUnpackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <src> <dir>",
		Short: "Extract files from a container created with pack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := runUnpack(a.storageOptions(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted %d files into %s\n", n, args[1])
			return nil
		},
	}
}

func runPack(sopts *storage.Options, dir string, dst string) (int, error) {
	timeStart := time.Now()
	b, p, err := storage.FromURL(dst, sopts)
	if err != nil {
		return 0, err
	}
	defer closeBackend(b)
	w, err := b.Create(p)
	if err != nil {
		return 0, err
	}
	n, err := pack.WriteDir(w, dir)
	if err != nil {
		storage.Cancel(w)
		return 0, fmt.Errorf("failed to pack '%s': %w", dir, err)
	}
	dur := time.Since(timeStart)
	log.Verbosef("packed %d files from '%s' into '%s' in %s\n", n, dir, dst, dur)
	log.EventWithDuration("dir-packed", dur, "dir", dir, "dst", dst, "files", n)
	return n, nil
}

func runUnpack(sopts *storage.Options, src string, dir string) (int, error) {
	b, p, err := storage.FromURL(src, sopts)
	if err != nil {
		return 0, err
	}
	defer closeBackend(b)
	rc, err := storage.OpenMaybeCompressed(b, p)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := pack.Extract(rc, dir)
	if err != nil {
		return n, fmt.Errorf("failed to unpack '%s': %w", src, err)
	}
	log.Verbosef("extracted %d files from '%s' into '%s'\n", n, src, dir)
	return n, nil
}
