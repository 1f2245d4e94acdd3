package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"nui/internal/config"
	"nui/internal/logger"
	"nui/internal/sink"
	"nui/pkg/nui"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nui",
		Short: "Normalized URL Index entry tool",
		Long: "nui builds tamper-evident Normalized URL Index entries, imports them from " +
			"JSON/JSONL/CSV rows, crawls configured sources, verifies integrity hashes and " +
			"keeps entries in a local SQLite store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json (overrides config)")

	root.AddCommand(
		newExampleCmd(a),
		newBuildCmd(a),
		newImportCmd(a),
		newCrawlCmd(a),
		newVerifyCmd(a),
		newStoreCmd(a),
		newConfigCmd(a),
		newSchemaCmd(),
	)

	return root
}

// init loads the configuration (defaults plus environment when no file is
// given) and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	if a.configPath != "" {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}

		a.cfg = cfg
	} else {
		a.cfg = config.Default()
		a.cfg.ApplyEnv()
	}

	if err := a.cfg.ValidateOutput(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging := a.cfg.Crawler.Logging
	if a.logLevel != "" {
		logging.Level = a.logLevel
	}

	if a.logFormat != "" {
		logging.Format = a.logFormat
	}

	if err := logging.Validate(); err != nil {
		return err
	}

	a.log = logger.NewLoggerWithOptions(logger.Options{
		Writer: cmd.ErrOrStderr(),
		Level:  logging.Level,
		Format: logging.Format,
	})

	return nil
}

func (a *app) entryOptions(strict bool) []nui.Option {
	if strict || a.cfg.Record.StrictValidation {
		return []nui.Option{nui.WithStrictValidation()}
	}

	return nil
}

var extensionFormats = map[string]string{
	".json":   config.FormatJSON,
	".jsonl":  config.FormatJSONL,
	".ndjson": config.FormatJSONL,
	".csv":    config.FormatCSV,
	".nt":     config.FormatNTriples,
	".md":     config.FormatMarkdown,
}

// formatFor returns explicit when set, else the format implied by path's
// extension, else fallback.
func formatFor(explicit, path, fallback string) string {
	if explicit != "" {
		return explicit
	}

	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}

	return fallback
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	return f, nil
}

// openOutput opens a sink on path, or on the command's stdout when path
// is empty or "-".
func openOutput(cmd *cobra.Command, format, path string, opts sink.Options) (sink.Writer, error) {
	if path == "" || path == "-" {
		return sink.NewWriter(format, cmd.OutOrStdout(), opts)
	}

	return sink.Open(format, path, opts)
}

// printJSON writes e's canonical JSON, indented when pretty.
func printJSON(w io.Writer, e *nui.Entry, pretty bool) error {
	data, err := e.MarshalJSON()
	if err != nil {
		return err
	}

	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}

		data = buf.Bytes()
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}
