package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVParser reads comma-separated uploads with a header row.
type CSVParser struct{}

// NewCSVParser creates a new CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse implements Parser.
func (p *CSVParser) Parse(data []byte) (*Sheet, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	return buildSheet(records)
}
