package normalizer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"nui/internal/config"
	"nui/pkg/nui"
)

// Reader errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported input format")
	ErrUnknownColumn     = errors.New("unknown csv column")
	ErrShortRow          = errors.New("csv row has wrong number of cells")
)

// KeywordSeparator joins keywords inside a single CSV cell.
const KeywordSeparator = ";"

// Row is one raw input record keyed by canonical field name.
type Row map[string]any

var optionalKeys = []string{
	nui.KeyStateProvinceCode,
	nui.KeySimhashSig,
	nui.KeyCanonicalURLHash,
}

// ReadRows decodes all rows from r in the given format (json, jsonl or csv).
func ReadRows(r io.Reader, format string) ([]Row, error) {
	switch format {
	case config.FormatJSON:
		return readJSONArray(r)
	case config.FormatJSONL:
		return readJSONLines(r)
	case config.FormatCSV:
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func readJSONArray(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode json array: %w", err)
	}

	return rows, nil
}

func readJSONLines(r io.Reader) ([]Row, error) {
	var rows []Row

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++

		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var row Row
		if err := json.Unmarshal(text, &row); err != nil {
			return nil, fmt.Errorf("failed to decode line %d: %w", line, err)
		}

		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jsonl: %w", err)
	}

	return rows, nil
}

// readCSV expects a header of canonical key names. Empty optional cells
// become absent and keywords are split on KeywordSeparator.
func readCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	known := nui.RecordKeys()
	for i, col := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if !slices.Contains(known, header[i]) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, header[i])
		}
	}

	var rows []Row

	for line := 2; ; line++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		if len(cells) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d cells, header has %d", ErrShortRow, line, len(cells), len(header))
		}

		row := make(Row, len(header))

		for i, key := range header {
			cell := cells[i]

			switch {
			case key == nui.KeyKeywords:
				row[key] = SplitKeywords(cell)
			case cell == "" && slices.Contains(optionalKeys, key):
				row[key] = nil
			default:
				row[key] = cell
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// SplitKeywords splits a CSV keywords cell, dropping blank items.
func SplitKeywords(cell string) []string {
	keywords := []string{}

	for _, kw := range strings.Split(cell, KeywordSeparator) {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return keywords
}
