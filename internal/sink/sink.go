// Package sink writes entries to files in the configured output format and
// publishes them to NATS.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"nui/internal/config"
	"nui/pkg/nui"
)

// Sink errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrClosed            = errors.New("writer is closed")
)

// Writer receives entries one at a time. Close flushes any buffered
// output and must be called exactly once.
type Writer interface {
	Write(e *nui.Entry) error
	Close() error
}

// Options tune format-specific output.
type Options struct {
	// PrettyPrint indents records in the json format.
	PrettyPrint bool
	// ReportTitle is the heading of a markdown report.
	ReportTitle string
	// Validated is recorded in the markdown report metadata.
	Validated bool
}

// Open creates path (and its parent directories) and returns a writer for
// format that closes the file on Close.
func Open(format, path string, opts Options) (Writer, error) {
	if !config.IsValidFormat(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w, err := NewWriter(format, f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &fileWriter{Writer: w, file: f}, nil
}

// NewWriter returns a writer for format on top of w. Closing it does not
// close w.
func NewWriter(format string, w io.Writer, opts Options) (Writer, error) {
	switch format {
	case config.FormatJSON:
		return newJSONWriter(w, opts.PrettyPrint), nil
	case config.FormatJSONL:
		return newJSONLWriter(w), nil
	case config.FormatCSV:
		return newCSVWriter(w), nil
	case config.FormatNTriples:
		return newNTriplesWriter(w), nil
	case config.FormatMarkdown:
		return newMarkdownWriter(w, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

type fileWriter struct {
	Writer
	file *os.File
}

func (f *fileWriter) Close() error {
	err := f.Writer.Close()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}

	return err
}

// Multi fans every entry out to all writers. Write stops at the first
// failing writer; Close closes all of them and joins their errors.
func Multi(writers ...Writer) Writer {
	return multiWriter(writers)
}

type multiWriter []Writer

func (m multiWriter) Write(e *nui.Entry) error {
	for _, w := range m {
		if err := w.Write(e); err != nil {
			return err
		}
	}

	return nil
}

func (m multiWriter) Close() error {
	errs := make([]error, 0, len(m))
	for _, w := range m {
		errs = append(errs, w.Close())
	}

	return errors.Join(errs...)
}

// WriteAll writes entries to w in order.
func WriteAll(w Writer, entries []*nui.Entry) error {
	for i, e := range entries {
		if err := w.Write(e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	return nil
}
