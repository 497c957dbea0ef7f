// Package mapping models deprecated-object to new-object rename rules and the
// lookup index built from them.
package mapping

import "strings"

// Entry is a single rename rule taken from an uploaded mapping row. The raw
// object strings are split on the first dot: a field part after the dot makes
// the entry field-level, otherwise it renames a whole table.
type Entry struct {
	DeprecatedObject string
	NewObject        string

	DeprecatedTable string
	DeprecatedField string
	NewTable        string
	NewField        string
}

// ParseEntry builds an Entry from the raw deprecated/new object strings.
// It returns ok=false for rows with an empty deprecated object; those rows
// carry no rename rule and are dropped silently.
func ParseEntry(deprecated, replacement string) (Entry, bool) {
	deprecated = strings.TrimSpace(deprecated)
	replacement = strings.TrimSpace(replacement)
	if deprecated == "" {
		return Entry{}, false
	}

	e := Entry{
		DeprecatedObject: deprecated,
		NewObject:        replacement,
	}
	e.DeprecatedTable, e.DeprecatedField = splitObject(deprecated)
	e.NewTable, e.NewField = splitObject(replacement)
	return e, true
}

func splitObject(object string) (table, field string) {
	if idx := strings.Index(object, "."); idx >= 0 {
		return object[:idx], object[idx+1:]
	}
	return object, ""
}

// FieldLevel reports whether the entry renames a specific table.column pair.
func (e Entry) FieldLevel() bool {
	return e.DeprecatedField != ""
}

// TableLevel reports whether the entry renames a whole table.
func (e Entry) TableLevel() bool {
	return e.DeprecatedField == ""
}

// Index holds the per-batch lookup structures. It is immutable after
// construction and safe for concurrent readers.
type Index struct {
	fields map[string]Entry
	tables map[string][]Entry
}

// NewIndex builds the lookup structures from entries in input order.
//
// Field lookups are keyed "table.column" (lower-cased); on duplicate keys the
// later entry wins. Table lookups keep every table-level entry for a table in
// input order; the first one is the default rename target. The first/last
// asymmetry mirrors the behavior the migration depends on and is pinned by
// tests; do not normalize it.
func NewIndex(entries []Entry) *Index {
	ix := &Index{
		fields: make(map[string]Entry),
		tables: make(map[string][]Entry),
	}
	for _, e := range entries {
		if e.DeprecatedTable == "" {
			continue
		}
		if e.FieldLevel() {
			key := strings.ToLower(e.DeprecatedTable) + "." + strings.ToLower(e.DeprecatedField)
			ix.fields[key] = e
			continue
		}
		table := strings.ToLower(e.DeprecatedTable)
		ix.tables[table] = append(ix.tables[table], e)
	}
	return ix
}

// Field returns the field-level entry for table.column, matched
// case-insensitively.
func (ix *Index) Field(table, column string) (Entry, bool) {
	e, ok := ix.fields[strings.ToLower(table)+"."+strings.ToLower(column)]
	return e, ok
}

// TableTargets returns every table-level entry for the deprecated table in
// input order, or nil when the table is not mapped.
func (ix *Index) TableTargets(table string) []Entry {
	return ix.tables[strings.ToLower(table)]
}

// DefaultTarget returns the first table-level entry for the deprecated table.
func (ix *Index) DefaultTarget(table string) (Entry, bool) {
	targets := ix.tables[strings.ToLower(table)]
	if len(targets) == 0 {
		return Entry{}, false
	}
	return targets[0], true
}
