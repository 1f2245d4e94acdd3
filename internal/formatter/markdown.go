// Package formatter renders entries as aligned markdown tables.
package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"nui/pkg/metadata"
	"nui/pkg/nui"
)

// minColumnWidth keeps separators at least "---".
const minColumnWidth = 3

// Table renders header and rows as a markdown table padded to display
// width, so CJK and other wide runes line up. Rows shorter than the header
// are padded with empty cells.
func Table(header []string, rows [][]string) []string {
	colCount := len(header)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	colWidths := make([]int, colCount)
	for _, row := range append([][]string{header}, rows...) {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}

	for i := range colWidths {
		if colWidths[i] < minColumnWidth {
			colWidths[i] = minColumnWidth
		}
	}

	result := make([]string, 0, len(rows)+2)
	result = append(result, renderRow(header, colWidths, false))
	result = append(result, renderRow(nil, colWidths, true))

	for _, row := range rows {
		result = append(result, renderRow(row, colWidths, false))
	}

	return result
}

func renderRow(row []string, colWidths []int, separator bool) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range colWidths {
		sb.WriteString(" ")

		if separator {
			sb.WriteString(strings.Repeat("-", width))
		} else {
			content := ""
			if j < len(row) {
				content = row[j]
			}

			sb.WriteString(content)

			// Pad with spaces based on display width
			if padding := width - runewidth.StringWidth(content); padding > 0 {
				sb.WriteString(strings.Repeat(" ", padding))
			}
		}

		sb.WriteString(" |")
	}

	return sb.String()
}

// Cell makes s safe inside a table cell: pipes escaped, line breaks
// flattened, surrounding space trimmed.
func Cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)

	return strings.TrimSpace(s)
}

// EntryRow flattens an entry's record into table cells in canonical key
// order. Absent optionals render as empty cells and keywords are joined
// with ", ".
func EntryRow(e *nui.Entry) []string {
	record := e.Record()
	cells := make([]string, 0, len(record))

	for _, f := range record {
		switch v := f.Value.(type) {
		case nil:
			cells = append(cells, "")
		case []string:
			cells = append(cells, Cell(strings.Join(v, ", ")))
		default:
			cells = append(cells, Cell(fmt.Sprint(v)))
		}
	}

	return cells
}

// EntriesTable renders entries as an aligned markdown table with the
// canonical record keys as header.
func EntriesTable(entries []*nui.Entry) []string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, EntryRow(e))
	}

	return Table(nui.RecordKeys(), rows)
}

// ReportOptions controls Report output.
type ReportOptions struct {
	Title     string
	Generated time.Time
	Validated bool
}

// Report renders a signed markdown document listing entries. The trailing
// metadata block can be checked with metadata.Verify.
func Report(entries []*nui.Entry, opts ReportOptions) string {
	title := opts.Title
	if title == "" {
		title = "Normalized URL Index"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "Entries: %d\n\n", len(entries))

	if len(entries) > 0 {
		sb.WriteString(strings.Join(EntriesTable(entries), "\n"))
		sb.WriteString("\n")
	}

	return metadata.Sign(sb.String(), metadata.Metadata{
		Generated:  opts.Generated,
		Entries:    len(entries),
		Validation: opts.Validated,
	})
}
