package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"nui/internal/config"
	"nui/internal/normalizer"
	"nui/internal/sink"
	"nui/internal/store"
	"nui/pkg/nui"
)

// ErrRowsFailed is returned when at least one input row was rejected.
var ErrRowsFailed = errors.New("some rows failed")

type importFlags struct {
	in        string
	format    string
	out       string
	outFormat string
	storeDir  string
	strict    bool
	pretty    bool
}

func newImportCmd(a *app) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build entries from JSON, JSONL or CSV rows",
		Long: "import reads rows carrying the entry fields, builds an entry for each row " +
			"(recomputing the integrity hash) and writes the entries in the chosen output format. " +
			"Any integrity_hash column in the input is ignored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runImport(cmd, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.in, "in", "i", "-", "Input file, - for stdin")
	flags.StringVar(&f.format, "format", "", "Input format: json, jsonl, csv (default: from extension, else jsonl)")
	flags.StringVarP(&f.out, "out", "o", "-", "Output file, - for stdout")
	flags.StringVar(&f.outFormat, "out-format", "", "Output format: json, jsonl, csv, ntriples, markdown (default: from extension, else jsonl)")
	flags.StringVar(&f.storeDir, "store", "", "Also save entries in the store in this directory")
	flags.BoolVar(&f.strict, "strict", false, "Validate field formats before hashing")
	flags.BoolVar(&f.pretty, "pretty", false, "Indent json output")

	return cmd
}

func (a *app) runImport(cmd *cobra.Command, f *importFlags) error {
	inFormat := formatFor(f.format, f.in, config.FormatJSONL)
	outFormat := formatFor(f.outFormat, f.out, config.FormatJSONL)

	if !config.IsValidFormat(outFormat) {
		return fmt.Errorf("%w: %s", sink.ErrUnsupportedFormat, outFormat)
	}

	in, err := openInput(cmd, f.in)
	if err != nil {
		return err
	}
	defer in.Close()

	rows, err := normalizer.ReadRows(in, inFormat)
	if err != nil {
		return err
	}

	entries, rowErrs := normalizer.NewProcessor(a.entryOptions(f.strict)...).ProcessAll(rows)
	for _, re := range rowErrs {
		a.log.Warn("row rejected", "row", re.Index, "error", re.Err)
	}

	a.log.Info("import processed", "rows", len(rows), "entries", len(entries), "rejected", len(rowErrs))

	w, err := openOutput(cmd, outFormat, f.out, sink.Options{
		PrettyPrint: f.pretty,
		Validated:   f.strict,
	})
	if err != nil {
		return err
	}

	if err := sink.WriteAll(w, entries); err != nil {
		_ = w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}

	if f.storeDir != "" {
		if err := saveEntries(cmd.Context(), f.storeDir, "import:"+f.in, entries); err != nil {
			return err
		}

		a.log.Info("entries stored", "dir", f.storeDir, "count", len(entries))
	}

	if len(rowErrs) > 0 {
		return fmt.Errorf("%w: %d of %d rejected", ErrRowsFailed, len(rowErrs), len(rows))
	}

	return nil
}

// saveEntries stores entries under a new batch labelled source.
func saveEntries(ctx context.Context, dir, source string, entries []*nui.Entry) error {
	s, err := store.Open(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	batchID, err := s.NewBatch(ctx, source)
	if err != nil {
		return err
	}

	return s.SaveAll(ctx, batchID, entries)
}
