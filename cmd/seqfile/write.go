package main

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kjk/seqfile/log"
	"github.com/kjk/seqfile/seqfile"
	"github.com/kjk/seqfile/storage"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	splitWhole = "whole"
	splitLines = "lines"
)

type writeOptions struct {
	copies   int
	parallel int
	split    string
	strict   bool
}

type writeResult struct {
	path    string
	records int
	size    int64
}

func newWriteCmd(a *app) *cobra.Command {
	opts := &writeOptions{}
	cmd := &cobra.Command{
		Use:   "write <src> <dst>",
		Short: "Write text from src into containers",
		Long: `Read the whole src and write it into --copies containers of
(int32, text) records.

With --split whole (the default) each container has a single record: the key
is the copy number and the value is the whole text. With --split lines there
is one record per line, the key is the line number (starting at 1).
Bytes in src that are not valid UTF-8 are replaced with U+FFFD, unless
--strict is given.

dst can contain {n}, which is replaced by the copy number. Otherwise, when
writing more than one copy, the copy number is inserted before the extension.

Example:
  seqfile write quijote.txt out/quijote.seq --copies 20
  seqfile write quijote.txt.gz hdfs://namenode:8020/books/quijote{n}.seq`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("copies") {
				opts.copies = a.cfg.Write.Copies
			}
			if !cmd.Flags().Changed("parallel") {
				opts.parallel = a.cfg.Write.Parallel
			}
			res, err := runWrite(a.storageOptions(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			for _, r := range res {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records, %d bytes\n", r.path, r.records, r.size)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.copies, "copies", 1, "number of containers to write")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 4, "max number of containers written at the same time")
	cmd.Flags().StringVar(&opts.split, "split", splitWhole, "how to split text into records: whole or lines")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail if src is not valid UTF-8 instead of replacing invalid bytes")
	return cmd
}

// copyPath returns destination path for copy n out of total
func copyPath(p string, n int, total int) string {
	ns := strconv.Itoa(n)
	if strings.Contains(p, "{n}") {
		return strings.ReplaceAll(p, "{n}", ns)
	}
	if total == 1 {
		return p
	}
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + ns + ext
}

// toText converts src to valid UTF-8. Invalid bytes (e.g. from a Latin-1
// file) are replaced with U+FFFD unless strict is set.
func toText(d []byte, strict bool) (string, error) {
	if utf8.Valid(d) {
		return string(d), nil
	}
	if strict {
		return "", errors.New("not valid UTF-8")
	}
	log.Logf("warning: invalid UTF-8 replaced with U+FFFD\n")
	return strings.ToValidUTF8(string(d), "\uFFFD"), nil
}

// splitText returns records for a container. For whole text the key is
// the copy number, for lines it's the line number.
func splitText(text string, copyNo int, split string) ([]seqfile.Record[int32, string], error) {
	switch split {
	case splitWhole:
		return []seqfile.Record[int32, string]{{Key: int32(copyNo), Value: text}}, nil
	case splitLines:
		lines := strings.Split(text, "\n")
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
		res := make([]seqfile.Record[int32, string], len(lines))
		for i, line := range lines {
			res[i] = seqfile.Record[int32, string]{
				Key:   int32(i + 1),
				Value: strings.TrimSuffix(line, "\r"),
			}
		}
		return res, nil
	}
	return nil, fmt.Errorf("invalid --split '%s', must be '%s' or '%s'", split, splitWhole, splitLines)
}

func writeContainer(b storage.Backend, p string, recs []seqfile.Record[int32, string]) (*writeResult, error) {
	timeStart := time.Now()
	w, err := b.Create(p)
	if err != nil {
		return nil, err
	}
	sw, err := seqfile.NewWriter(w, seqfile.Int32, seqfile.Text)
	if err != nil {
		storage.Cancel(w)
		return nil, err
	}
	for _, rec := range recs {
		if err = sw.Append(rec.Key, rec.Value); err != nil {
			storage.Cancel(w)
			return nil, err
		}
	}
	// closes w which makes the container visible
	if err = sw.Close(); err != nil {
		return nil, err
	}
	res := &writeResult{
		path:    p,
		records: sw.Records(),
		size:    sw.Size(),
	}
	dur := time.Since(timeStart)
	log.Verbosef("wrote '%s', %d records, %d bytes in %s\n", p, res.records, res.size, dur)
	log.EventWithDuration("container-written", dur, "path", p, "records", res.records, "size", res.size)
	return res, nil
}

func runWrite(sopts *storage.Options, src string, dst string, opts *writeOptions) ([]*writeResult, error) {
	if opts.copies < 1 {
		return nil, fmt.Errorf("--copies must be at least 1, is %d", opts.copies)
	}
	if opts.parallel < 1 {
		return nil, fmt.Errorf("--parallel must be at least 1, is %d", opts.parallel)
	}
	// validate before reading src, which might be big
	if _, err := splitText("", 0, opts.split); err != nil {
		return nil, err
	}

	timeStart := time.Now()
	srcB, srcPath, err := storage.FromURL(src, sopts)
	if err != nil {
		return nil, err
	}
	defer closeBackend(srcB)
	d, err := storage.ReadFile(srcB, srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", src, err)
	}
	log.Verbosef("read '%s', %d bytes\n", src, len(d))
	text, err := toText(d, opts.strict)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", src, err)
	}

	dstB, dstPath, err := storage.FromURL(dst, sopts)
	if err != nil {
		return nil, err
	}
	defer closeBackend(dstB)

	res := make([]*writeResult, opts.copies)
	var g errgroup.Group
	g.SetLimit(opts.parallel)
	for i := 0; i < opts.copies; i++ {
		p := copyPath(dstPath, i, opts.copies)
		g.Go(func() error {
			recs, err := splitText(text, i, opts.split)
			if err != nil {
				return err
			}
			r, err := writeContainer(dstB, p, recs)
			if err != nil {
				return fmt.Errorf("failed to write '%s': %w", p, err)
			}
			res[i] = r
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	var totalSize int64
	for _, r := range res {
		totalSize += r.size
	}
	log.Logf("wrote %d containers, %d bytes in %s\n", len(res), totalSize, time.Since(timeStart))
	return res, nil
}
