// Package normalizer imports raw field rows (JSON, JSONL or CSV) and
// builds NUI entries from them.
package normalizer

import (
	"fmt"

	"nui/pkg/nui"
)

// RowError ties an import failure to the zero-based row that caused it.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Processor handles data processing and transformation.
type Processor struct {
	validator   *Validator
	transformer *Transformer
	entryOpts   []nui.Option
}

// NewProcessor creates a new processor instance. opts are passed to nui.New
// for every row.
func NewProcessor(opts ...nui.Option) *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
		entryOpts:   opts,
	}
}

// Process turns one raw row into an entry. Any integrity_hash in the row
// is ignored; the hash is always derived from the row's fields.
func (p *Processor) Process(row Row) (*nui.Entry, error) {
	// 1. Validate the input data
	if err := p.validator.Validate(row); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// 2. Transform the data
	fields, err := p.transformer.Transform(row)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	// 3. Build the entry
	entry, err := nui.New(fields, p.entryOpts...)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}

	return entry, nil
}

// ProcessAll processes every row, keeping the successful entries in input
// order and one RowError per failed row.
func (p *Processor) ProcessAll(rows []Row) ([]*nui.Entry, []*RowError) {
	var (
		entries []*nui.Entry
		errs    []*RowError
	)

	for i, row := range rows {
		entry, err := p.Process(row)
		if err != nil {
			errs = append(errs, &RowError{Index: i, Err: err})
			continue
		}

		entries = append(entries, entry)
	}

	return entries, errs
}
