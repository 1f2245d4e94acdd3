package sink

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"nui/pkg/nui"
)

// Vocabulary used by the N-Triples writer.
const (
	Namespace   = "https://pwic.org/nui#"
	EntryClass  = Namespace + "Entry"
	rdfType     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	xsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

type ntriplesWriter struct {
	w      *bufio.Writer
	closed bool
}

func newNTriplesWriter(w io.Writer) *ntriplesWriter {
	return &ntriplesWriter{w: bufio.NewWriter(w)}
}

// Write emits one triple per present field with the entry URL as subject.
// Absent optionals produce no triple; each keyword gets its own triple.
func (n *ntriplesWriter) Write(e *nui.Entry) error {
	if n.closed {
		return ErrClosed
	}

	subject := iri(e.URL())

	n.triple(subject, iri(rdfType), iri(EntryClass))

	for _, f := range e.Record() {
		predicate := iri(Namespace + f.Key)

		switch v := f.Value.(type) {
		case nil:
		case []string:
			for _, kw := range v {
				n.triple(subject, predicate, literal(kw))
			}
		case string:
			switch f.Key {
			case nui.KeyURL:
			case nui.KeyCrawlDate:
				n.triple(subject, predicate, literal(v)+"^^"+iri(xsdDateTime))
			default:
				n.triple(subject, predicate, literal(v))
			}
		}
	}

	return n.w.Flush()
}

func (n *ntriplesWriter) triple(s, p, o string) {
	fmt.Fprintf(n.w, "%s %s %s .\n", s, p, o)
}

func (n *ntriplesWriter) Close() error {
	if n.closed {
		return ErrClosed
	}

	n.closed = true

	return n.w.Flush()
}

// iri renders an IRIREF, escaping characters N-Triples forbids inside
// angle brackets as UCHARs.
func iri(s string) string {
	var sb strings.Builder

	sb.WriteByte('<')

	for _, r := range s {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			fmt.Fprintf(&sb, `\u%04X`, r)
			continue
		}

		sb.WriteRune(r)
	}

	sb.WriteByte('>')

	return sb.String()
}

// literal renders a quoted STRING_LITERAL_QUOTE.
func literal(s string) string {
	var sb strings.Builder

	sb.WriteByte('"')

	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7F {
				fmt.Fprintf(&sb, `\u%04X`, r)
				continue
			}

			sb.WriteRune(r)
		}
	}

	sb.WriteByte('"')

	return sb.String()
}
