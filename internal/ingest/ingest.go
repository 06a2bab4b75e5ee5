// Package ingest turns uploaded pick sheets (xlsx or csv) into submission
// rows for validation and lock-in.
package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("ingest: unsupported file type")

// Sheet is a parsed upload. Headers are normalised.
type Sheet struct {
	Headers     []string               `json:"headers"`
	NameColumn  string                 `json:"name_column"`
	TimeColumn  string                 `json:"time_column"`
	PickColumns []string               `json:"pick_columns"`
	Rows        []domain.SubmissionRow `json:"rows"`
}

// Parser decodes raw upload bytes into a Sheet.
type Parser interface {
	Parse(data []byte) (*Sheet, error)
}

// ParserFor picks a parser from the file extension.
func ParserFor(filename string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return NewCSVParser(), nil
	case ".xlsx", ".xlsm":
		return NewXLSXParser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Parse decodes data using the parser matching filename.
func Parse(filename string, data []byte) (*Sheet, error) {
	p, err := ParserFor(filename)
	if err != nil {
		return nil, err
	}
	return p.Parse(data)
}

// NormalizeHeader trims, lower-cases, replaces spaces with "_" and strips
// trailing ":" and "_".
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.TrimRight(h, ":_")
}

// buildSheet maps a header row plus data rows to submission rows. Row numbers
// are 1-based over the data rows; fully blank rows keep their number but are
// dropped.
func buildSheet(records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("ingest: file is empty")
	}

	s := &Sheet{Headers: make([]string, len(records[0]))}
	for i, h := range records[0] {
		s.Headers[i] = NormalizeHeader(h)
	}

	nameIdx, timeIdx := -1, -1
	for i, h := range s.Headers {
		if nameIdx < 0 && strings.Contains(h, "name") {
			nameIdx = i
		}
	}
	for i, h := range s.Headers {
		if timeIdx < 0 && i != nameIdx && strings.Contains(h, "time") {
			timeIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("ingest: no name column in %v", s.Headers)
	}
	s.NameColumn = s.Headers[nameIdx]
	if timeIdx >= 0 {
		s.TimeColumn = s.Headers[timeIdx]
	}

	var pickIdx []int
	for i, h := range s.Headers {
		if i != nameIdx && i != timeIdx && strings.Contains(h, "pick") {
			pickIdx = append(pickIdx, i)
		}
	}
	if len(pickIdx) == 0 {
		return nil, fmt.Errorf("ingest: no pick columns in %v", s.Headers)
	}
	sort.SliceStable(pickIdx, func(a, b int) bool { return s.Headers[pickIdx[a]] < s.Headers[pickIdx[b]] })
	for _, i := range pickIdx {
		s.PickColumns = append(s.PickColumns, s.Headers[i])
	}

	for n, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := domain.SubmissionRow{
			Row:         n + 1,
			Participant: strings.TrimSpace(cell(rec, nameIdx)),
			SubmittedAt: strings.TrimSpace(cell(rec, timeIdx)),
		}
		for _, i := range pickIdx {
			row.Picks = append(row.Picks, domain.PickCell{
				Column: s.Headers[i],
				Value:  strings.TrimSpace(cell(rec, i)),
			})
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
