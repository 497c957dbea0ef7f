package migrate

import (
	"regexp"
	"strings"

	"github.com/hemanthest/dataquerymigration/internal/mapping"
	"github.com/hemanthest/dataquerymigration/internal/rewrite"
)

// Fallback derives a replacement log straight from the mapping rows for a
// query that could not be parsed. Only sources that actually appear in the
// text contribute, and each deprecated table keeps a single target (the first
// seen in row order) so the rewriter never has to synthesize joins for a
// query it cannot reason about. The caller applies the log and treats an
// unchanged result as not impacted.
func Fallback(entries []mapping.Entry, original string) *rewrite.Log {
	log := rewrite.NewLog()
	target := make(map[string]string) // deprecated table -> first new table

	for _, e := range entries {
		if e.DeprecatedTable == "" || e.NewTable == "" {
			continue
		}
		key := strings.ToLower(e.DeprecatedTable)
		if first, ok := target[key]; ok {
			if !strings.EqualFold(first, e.NewTable) {
				continue
			}
		} else {
			if !mentionsTable(original, e.DeprecatedTable) {
				continue
			}
			target[key] = e.NewTable
		}
		if e.FieldLevel() {
			log.Set(e.DeprecatedTable+"."+e.DeprecatedField, e.NewTable+"."+e.NewField)
		} else {
			log.Set(e.DeprecatedTable, e.NewTable)
		}
	}
	return log
}

// mentionsTable reports whether the table name occurs as a whole word
// anywhere in the text, case-insensitively.
func mentionsTable(text, table string) bool {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(table) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
