package sink

import (
	"encoding/csv"
	"io"
	"strings"

	"nui/pkg/nui"
)

// KeywordSeparator joins keywords inside one CSV cell.
const KeywordSeparator = ";"

type csvWriter struct {
	w         *csv.Writer
	wroteHead bool
	closed    bool
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: csv.NewWriter(w)}
}

func (c *csvWriter) header() error {
	if c.wroteHead {
		return nil
	}

	c.wroteHead = true

	return c.w.Write(nui.RecordKeys())
}

// Write emits one row. Absent optionals become empty cells, so a CSV
// round trip cannot tell null from "".
func (c *csvWriter) Write(e *nui.Entry) error {
	if c.closed {
		return ErrClosed
	}

	if err := c.header(); err != nil {
		return err
	}

	record := e.Record()
	row := make([]string, 0, len(record))

	for _, f := range record {
		switch v := f.Value.(type) {
		case nil:
			row = append(row, "")
		case string:
			row = append(row, v)
		case []string:
			row = append(row, strings.Join(v, KeywordSeparator))
		}
	}

	return c.w.Write(row)
}

func (c *csvWriter) Close() error {
	if c.closed {
		return ErrClosed
	}

	c.closed = true

	if err := c.header(); err != nil {
		return err
	}

	c.w.Flush()

	return c.w.Error()
}
