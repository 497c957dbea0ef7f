// Package sheet decodes mapping and query rows from CSV or YAML and encodes
// migration results back to CSV. Input sheets are human-edited exports, so
// the reader tolerates ragged rows, blank lines and header casing.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hemanthest/dataquerymigration/internal/mapping"
	"github.com/hemanthest/dataquerymigration/internal/migrate"
)

// Column headers of the mapping sheet.
var MappingHeader = []string{"Deprecated Object", "New Object"}

// Column headers of the query sheet. Updated Query onward are filled in by
// the migration; uploads usually carry only the first three.
var QueryHeader = []string{
	"Query Name", "Query Description", "Original Query",
	"Updated Query", "Impacted", "Old URL", "New URL", "Status",
}

// ReadMappings decodes mapping rows from CSV. The header row is optional and
// detected by its first cell; rows with an empty deprecated object are
// dropped, matching index construction.
func ReadMappings(r io.Reader) ([]mapping.Entry, error) {
	rows, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mapping sheet: %w", err)
	}
	var entries []mapping.Entry
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if i == 0 && isHeader(row[0], MappingHeader[0]) {
			continue
		}
		entry, ok := mapping.ParseEntry(cell(row, 0), cell(row, 1))
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// mappingFile is the YAML alternative to the mapping CSV.
type mappingFile struct {
	Mappings []struct {
		Deprecated string `yaml:"deprecated"`
		New        string `yaml:"new"`
	} `yaml:"mappings"`
}

// ReadMappingsYAML decodes mapping rows from a YAML document of the form
// `mappings: [{deprecated: ..., new: ...}, ...]`.
func ReadMappingsYAML(r io.Reader) ([]mapping.Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	var file mappingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode mapping yaml: %w", err)
	}
	var entries []mapping.Entry
	for _, row := range file.Mappings {
		entry, ok := mapping.ParseEntry(row.Deprecated, row.New)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadQueries decodes query rows from CSV. Rows with an empty original query
// are dropped; pass-through columns are preserved when present.
func ReadQueries(r io.Reader) ([]migrate.QueryRecord, error) {
	rows, err := readAll(r)
	if err != nil {
		return nil, fmt.Errorf("read query sheet: %w", err)
	}
	var records []migrate.QueryRecord
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if i == 0 && isHeader(row[0], QueryHeader[0]) {
			continue
		}
		rec := migrate.QueryRecord{
			Name:          cell(row, 0),
			Description:   cell(row, 1),
			OriginalQuery: cell(row, 2),
			UpdatedQuery:  cell(row, 3),
			OldURL:        cell(row, 5),
			NewURL:        cell(row, 6),
			Status:        cell(row, 7),
		}
		rec.Impacted, _ = strconv.ParseBool(cell(row, 4))
		if strings.TrimSpace(rec.OriginalQuery) == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteQueries encodes records, results included, as CSV with the full
// query-sheet header.
func WriteQueries(w io.Writer, records []migrate.QueryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(QueryHeader); err != nil {
		return fmt.Errorf("write query sheet: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Name, rec.Description, rec.OriginalQuery, rec.UpdatedQuery,
			strconv.FormatBool(rec.Impacted), rec.OldURL, rec.NewURL, rec.Status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write query sheet: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write query sheet: %w", err)
	}
	return nil
}

// MappingTemplate returns a header-only mapping sheet.
func MappingTemplate() string {
	return strings.Join(MappingHeader, ",") + "\n"
}

// QueryTemplate returns a header-only query sheet covering the columns the
// uploader fills in.
func QueryTemplate() string {
	return strings.Join(QueryHeader[:3], ",") + "\n"
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isHeader(first, want string) bool {
	return strings.EqualFold(strings.TrimSpace(first), want)
}
