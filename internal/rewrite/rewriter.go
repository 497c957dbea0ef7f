// Package rewrite applies a replacement log to the original, unsanitized SQL
// text. The rewrite is a strictly ordered regex pipeline so that whitespace,
// comments and unaffected tokens survive untouched, including when the
// structural migrator produced the log from a sanitized copy of the query.
package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// qualEntry is a qualified-column replacement: old and new sides both carry a
// table part. Old parts are lower-cased; new parts keep their recorded case.
type qualEntry struct {
	oldTable string
	oldCol   string
	newTable string
	newCol   string
	source   *sourceTable
}

// sourceTable aggregates everything known about one deprecated table: the
// distinct target tables it maps to, their generated aliases, and the alias
// the original query actually used.
type sourceTable struct {
	name    string            // lower-cased deprecated table
	targets []string          // distinct targets; sorted by length when >1
	aliases map[string]string // lower(target) -> generated alias
	primary string
	actual  string // alias found in the text; table name when unaliased
	aliased bool
}

type rewriter struct {
	sources    []*sourceTable
	bySource   map[string]*sourceTable
	qualified  []*qualEntry
	identPairs []Entry // generated TableColumn identifier pairs
	multi      bool    // any source mapping to two or more targets
}

var whereKeyword = regexp.MustCompile(`(?i)\bWHERE\b`)

// Apply rewrites original according to log and returns the result. The input
// is returned unchanged when the log is empty or nothing matches.
func Apply(original string, log *Log) string {
	if log.Len() == 0 || strings.TrimSpace(original) == "" {
		return original
	}
	r := newRewriter(log)
	if len(r.sources) == 0 && len(r.qualified) == 0 {
		return original
	}
	r.assignAliases()

	text := r.rewriteTables(original)
	text = r.rewriteColumns(text)
	text = r.rewriteSelectAliases(text)
	return text
}

func newRewriter(log *Log) *rewriter {
	r := &rewriter{bySource: make(map[string]*sourceTable)}
	for _, e := range log.Entries() {
		oldDot := strings.Contains(e.Old, ".")
		newDot := strings.Contains(e.New, ".")
		switch {
		case oldDot && newDot:
			oldTable, oldCol, _ := strings.Cut(e.Old, ".")
			newTable, newCol, _ := strings.Cut(e.New, ".")
			if oldTable == "" || oldCol == "" || newTable == "" || newCol == "" {
				continue
			}
			src := r.source(oldTable)
			src.addTarget(newTable)
			r.qualified = append(r.qualified, &qualEntry{
				oldTable: strings.ToLower(oldTable),
				oldCol:   strings.ToLower(oldCol),
				newTable: newTable,
				newCol:   newCol,
				source:   src,
			})
			r.identPairs = append(r.identPairs, Entry{
				Old: Capitalize(oldTable) + Capitalize(oldCol),
				New: Capitalize(newTable) + Capitalize(newCol),
			})
		case !oldDot:
			src := r.source(e.Old)
			src.addTarget(e.New)
		}
	}
	return r
}

func (r *rewriter) source(name string) *sourceTable {
	key := strings.ToLower(strings.TrimSpace(name))
	if s, ok := r.bySource[key]; ok {
		return s
	}
	s := &sourceTable{name: key, aliases: make(map[string]string)}
	r.bySource[key] = s
	r.sources = append(r.sources, s)
	return s
}

func (s *sourceTable) addTarget(target string) {
	target = strings.TrimSpace(target)
	if target == "" {
		return
	}
	for _, t := range s.targets {
		if strings.EqualFold(t, target) {
			return
		}
	}
	s.targets = append(s.targets, target)
}

// assignAliases fixes the generated alias for every target table. Sources
// with a single target use the 3-letter prefix of the target name. Sources
// that split across several targets sort them by name length ascending and
// disambiguate colliding prefixes with letter suffixes, so shorter target
// names keep the bare prefix.
func (r *rewriter) assignAliases() {
	for _, s := range r.sources {
		if len(s.targets) == 0 {
			continue
		}
		if len(s.targets) > 1 {
			r.multi = true
			sort.SliceStable(s.targets, func(i, j int) bool {
				return len(s.targets[i]) < len(s.targets[j])
			})
		}
		taken := make(map[string]bool, len(s.targets))
		for _, tgt := range s.targets {
			alias := tableAlias(tgt)
			base := alias
			for letter := 'a'; taken[alias]; letter++ {
				alias = base + string(letter)
			}
			taken[alias] = true
			s.aliases[strings.ToLower(tgt)] = alias
		}
		s.primary = s.targets[0]
	}
}

// effectiveAlias is the qualifier that rewritten references to target should
// use. Synthesized secondary joins always carry their generated alias; the
// primary target inherits the query's aliasing style, so an unaliased FROM
// clause keeps qualifying columns by table name.
func (r *rewriter) effectiveAlias(s *sourceTable, target string) string {
	if !strings.EqualFold(target, s.primary) {
		if a := s.aliases[strings.ToLower(target)]; a != "" {
			return a
		}
	}
	if s.aliased {
		return s.aliases[strings.ToLower(s.primary)]
	}
	return s.primary
}

// rewriteTables locates each deprecated table's FROM/JOIN clause, swaps in
// the primary target (and its alias, when the query used one), and appends
// one synthesized join per secondary target.
func (r *rewriter) rewriteTables(text string) string {
	for _, s := range r.sources {
		if len(s.targets) == 0 {
			continue
		}
		locate := regexp.MustCompile(`(?i)\b(FROM|JOIN)\s+` + regexp.QuoteMeta(s.name) +
			`(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*))?`)
		s.actual = s.name
		if m := locate.FindStringSubmatch(text); m != nil && m[2] != "" && !isReserved(m[2]) {
			s.actual = m[2]
			s.aliased = true
		}
	}

	for _, s := range r.sources {
		if len(s.targets) == 0 {
			continue
		}
		if s.aliased {
			clause := regexp.MustCompile(`(?i)\b(FROM|JOIN)\s+` + regexp.QuoteMeta(s.name) +
				`\s+(?:AS\s+)?` + regexp.QuoteMeta(s.actual) + `\b`)
			text = clause.ReplaceAllString(text, "$1 "+s.primary+" "+s.aliases[strings.ToLower(s.primary)])
		}
		bare := regexp.MustCompile(`(?i)\b(FROM|JOIN)\s+` + regexp.QuoteMeta(s.name) + `\b`)
		text = bare.ReplaceAllString(text, "$1 "+s.primary)
	}

	joins := r.synthesizeJoins()
	if len(joins) > 0 {
		block := strings.Join(joins, "\n")
		if loc := whereKeyword.FindStringIndex(text); loc != nil {
			text = text[:loc[0]] + block + "\n" + text[loc[0]:]
		} else {
			text = strings.TrimRight(text, " \t\n") + "\n" + block
		}
	}
	return text
}

// synthesizeJoins builds one JOIN clause per secondary target of a split
// table, keyed on the primary target's id column.
func (r *rewriter) synthesizeJoins() []string {
	var joins []string
	for _, s := range r.sources {
		if len(s.targets) < 2 {
			continue
		}
		idCol := "Id"
		for _, q := range r.qualified {
			if q.source == s && q.oldCol == "id" && strings.EqualFold(q.newTable, s.primary) {
				idCol = q.newCol
				break
			}
		}
		foreignKey := Singularize(s.primary) + Capitalize(idCol)
		primaryAlias := r.effectiveAlias(s, s.primary)
		for _, tgt := range s.targets[1:] {
			alias := s.aliases[strings.ToLower(tgt)]
			joins = append(joins, fmt.Sprintf("JOIN %s %s ON %s.%s = %s.%s",
				tgt, alias, primaryAlias, idCol, alias, foreignKey))
		}
	}
	return joins
}

// rewriteColumns routes qualified column references to their new alias and
// column name.
func (r *rewriter) rewriteColumns(text string) string {
	// Global alias-prefix pass, valid only when every source has a single
	// target; with a split table it would route every column to the primary.
	// The pass is skipped for the whole batch as soon as one source splits.
	if !r.multi {
		for _, s := range r.sources {
			if !s.aliased || len(s.targets) == 0 {
				continue
			}
			newAlias := r.effectiveAlias(s, s.primary)
			if strings.EqualFold(s.actual, newAlias) {
				continue
			}
			prefix := regexp.MustCompile(`(?i)(^|[^.\w])` + regexp.QuoteMeta(s.actual) + `\s*\.`)
			text = prefix.ReplaceAllString(text, "${1}"+newAlias+".")
		}
	}

	// Longest key first so a shorter key's pattern cannot match inside a
	// longer one.
	ordered := make([]*qualEntry, len(r.qualified))
	copy(ordered, r.qualified)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].oldTable)+len(ordered[i].oldCol) > len(ordered[j].oldTable)+len(ordered[j].oldCol)
	})

	for _, q := range ordered {
		s := q.source
		newAlias := r.effectiveAlias(s, q.newTable)
		changed := !strings.EqualFold(q.oldCol, q.newCol)

		qualifiers := []string{q.oldTable}
		if s.aliased && !strings.EqualFold(s.actual, q.oldTable) {
			qualifiers = []string{s.actual, q.oldTable}
		}
		for _, qualifier := range qualifiers {
			ref := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(qualifier) +
				`\s*\.\s*(` + regexp.QuoteMeta(q.oldCol) + `)\b`)
			if changed {
				text = ref.ReplaceAllString(text, newAlias+"."+q.newCol)
			} else {
				// Only the qualifier changes; keep the column's original
				// casing from the query text.
				text = ref.ReplaceAllString(text, newAlias+".${1}")
			}
		}

		// Collapse direct references to the new table down to its alias.
		if !strings.EqualFold(q.newTable, newAlias) {
			direct := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(q.newTable) +
				`\s*\.\s*(` + regexp.QuoteMeta(q.newCol) + `)\b`)
			text = direct.ReplaceAllString(text, newAlias+".${1}")
		}
	}

	// Generated TableColumn identifiers (e.g. AmendmentId) used outside
	// qualified references.
	pairs := make([]Entry, len(r.identPairs))
	copy(pairs, r.identPairs)
	sort.SliceStable(pairs, func(i, j int) bool { return len(pairs[i].Old) > len(pairs[j].Old) })
	for _, p := range pairs {
		if strings.EqualFold(p.Old, p.New) {
			continue
		}
		// Reject a preceding dot so qualified columns of unrelated tables
		// (c.AmendmentId on an unmapped Customers) are left alone.
		ident := regexp.MustCompile(`(?i)(^|[^.\w])` + regexp.QuoteMeta(p.Old) + `\b`)
		text = ident.ReplaceAllString(text, "${1}"+p.New)
	}

	// Corrective pass: the global prefix pass can leave newAlias.oldColumn
	// behind for field-level renames.
	for _, q := range ordered {
		if strings.EqualFold(q.oldCol, q.newCol) {
			continue
		}
		alias := r.effectiveAlias(q.source, q.newTable)
		leftover := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) +
			`\s*\.\s*` + regexp.QuoteMeta(q.oldCol) + `\b`)
		text = leftover.ReplaceAllString(text, alias+"."+q.newCol)
	}
	return text
}

var asClause = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s*\.\s*([A-Za-z_][A-Za-z0-9_]*)\s+AS\s+([A-Za-z_][A-Za-z0-9_]*)`)

// rewriteSelectAliases regenerates AS identifiers for columns that now come
// from a renamed table. A column whose name itself changed loses its AS
// clause; the new name is taken to be self-descriptive.
func (r *rewriter) rewriteSelectAliases(text string) string {
	aliasToTarget := make(map[string]string)
	for _, s := range r.sources {
		for _, tgt := range s.targets {
			aliasToTarget[strings.ToLower(r.effectiveAlias(s, tgt))] = tgt
		}
	}
	if len(aliasToTarget) == 0 {
		return text
	}

	return asClause.ReplaceAllStringFunc(text, func(m string) string {
		parts := asClause.FindStringSubmatch(m)
		alias, col := parts[1], parts[2]
		target, ok := aliasToTarget[strings.ToLower(alias)]
		if !ok {
			return m
		}
		for _, q := range r.qualified {
			if strings.EqualFold(q.newTable, target) &&
				strings.EqualFold(q.newCol, col) &&
				!strings.EqualFold(q.oldCol, q.newCol) {
				return alias + "." + col
			}
		}
		return alias + "." + col + " AS " + Capitalize(Singularize(target)) + Capitalize(col)
	})
}
