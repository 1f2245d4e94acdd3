package sink

import (
	"bytes"
	"encoding/json"
	"io"

	"nui/pkg/nui"
)

type jsonWriter struct {
	w      io.Writer
	pretty bool
	count  int
	closed bool
}

func newJSONWriter(w io.Writer, pretty bool) *jsonWriter {
	return &jsonWriter{w: w, pretty: pretty}
}

// Write emits one element of a JSON array; the brackets are written
// lazily so an empty run still produces "[]".
func (j *jsonWriter) Write(e *nui.Entry) error {
	if j.closed {
		return ErrClosed
	}

	data, err := e.MarshalJSON()
	if err != nil {
		return err
	}

	var buf bytes.Buffer

	if j.count == 0 {
		buf.WriteString("[\n")
	} else {
		buf.WriteString(",\n")
	}

	if j.pretty {
		buf.WriteString("  ")
		if err := json.Indent(&buf, data, "  ", "  "); err != nil {
			return err
		}
	} else {
		buf.Write(data)
	}

	if _, err := j.w.Write(buf.Bytes()); err != nil {
		return err
	}

	j.count++

	return nil
}

func (j *jsonWriter) Close() error {
	if j.closed {
		return ErrClosed
	}

	j.closed = true

	trailer := "\n]\n"
	if j.count == 0 {
		trailer = "[]\n"
	}

	_, err := io.WriteString(j.w, trailer)

	return err
}

type jsonlWriter struct {
	w      io.Writer
	closed bool
}

func newJSONLWriter(w io.Writer) *jsonlWriter {
	return &jsonlWriter{w: w}
}

func (j *jsonlWriter) Write(e *nui.Entry) error {
	if j.closed {
		return ErrClosed
	}

	data, err := e.MarshalJSON()
	if err != nil {
		return err
	}

	_, err = j.w.Write(append(data, '\n'))

	return err
}

func (j *jsonlWriter) Close() error {
	if j.closed {
		return ErrClosed
	}

	j.closed = true

	return nil
}
