package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nui/internal/config"
	"nui/internal/normalizer"
	"nui/internal/validator"
	"nui/pkg/metadata"
	"nui/pkg/nui"
)

// ErrVerifyFailed is returned when any record or report fails verification.
var ErrVerifyFailed = errors.New("verification failed")

type verifyFlags struct {
	in     string
	format string
	report string
	schema bool
}

func newVerifyCmd(a *app) *cobra.Command {
	var f verifyFlags

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-derive integrity hashes of serialized entries",
		Long: "verify reads serialized records (JSON, JSONL or CSV), recomputes each " +
			"integrity hash from the record's fields and reports every record whose stored " +
			"hash does not match. With --schema the records are also checked against the " +
			"entry JSON Schema. With --report a signed markdown report is checked instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.report != "" {
				return a.verifyReport(cmd, f.report)
			}

			return a.verifyRecords(cmd, &f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.in, "in", "i", "-", "Input file, - for stdin")
	flags.StringVar(&f.format, "format", "", "Input format: json, jsonl, csv (default: from extension, else jsonl)")
	flags.StringVar(&f.report, "report", "", "Verify the metadata hash of a signed markdown report")
	flags.BoolVar(&f.schema, "schema", false, "Also validate records against the entry JSON Schema")

	return cmd
}

func (a *app) verifyRecords(cmd *cobra.Command, f *verifyFlags) error {
	out := cmd.OutOrStdout()

	in, err := openInput(cmd, f.in)
	if err != nil {
		return err
	}
	defer in.Close()

	rows, err := normalizer.ReadRows(in, formatFor(f.format, f.in, config.FormatJSONL))
	if err != nil {
		return err
	}

	failed := 0

	for i, row := range rows {
		if _, err := nui.FromRecord(row); err != nil {
			failed++

			fmt.Fprintf(out, "❌ record %d: %v\n", i, err)
		}
	}

	if f.schema {
		n, err := schemaFailures(out, rows)
		if err != nil {
			return err
		}

		failed += n
	}

	a.log.Info("verify finished", "records", len(rows), "failures", failed)

	if failed > 0 {
		return fmt.Errorf("%w: %d problems in %d records", ErrVerifyFailed, failed, len(rows))
	}

	fmt.Fprintf(out, "✅ %d records verified\n", len(rows))

	return nil
}

func schemaFailures(out io.Writer, rows []normalizer.Row) (int, error) {
	v, err := validator.NewSchemaValidator()
	if err != nil {
		return 0, err
	}

	docs := make([][]byte, 0, len(rows))

	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return 0, err
		}

		docs = append(docs, data)
	}

	result, err := v.ValidateDocuments(docs)
	if err != nil {
		return 0, err
	}

	for _, line := range result.Summary() {
		fmt.Fprintf(out, "❌ schema %s\n", line)
	}

	return len(result.Errors), nil
}

func (a *app) verifyReport(cmd *cobra.Command, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	meta, err := metadata.Verify(string(content))
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "❌ %s: %v\n", path, err)
		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}

	a.log.Debug("report verified", "path", path, "hash", meta.Hash)

	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %d entries, generated %s, hash %s\n",
		path, meta.Entries, meta.Generated.Format(time.RFC3339), meta.Hash)

	return nil
}
