package sink

import (
	"io"

	"nui/internal/formatter"
	"nui/pkg/nui"
)

// markdownWriter buffers entries and renders one signed report on Close.
type markdownWriter struct {
	w       io.Writer
	opts    Options
	entries []*nui.Entry
	closed  bool
}

func newMarkdownWriter(w io.Writer, opts Options) *markdownWriter {
	return &markdownWriter{w: w, opts: opts}
}

func (m *markdownWriter) Write(e *nui.Entry) error {
	if m.closed {
		return ErrClosed
	}

	m.entries = append(m.entries, e)

	return nil
}

func (m *markdownWriter) Close() error {
	if m.closed {
		return ErrClosed
	}

	m.closed = true

	report := formatter.Report(m.entries, formatter.ReportOptions{
		Title:     m.opts.ReportTitle,
		Validated: m.opts.Validated,
	})

	_, err := io.WriteString(m.w, report)

	return err
}
