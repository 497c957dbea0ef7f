// Package verify smoke-checks a rewritten query by preparing it against a
// shadow schema in an in-memory SQLite database. The schema is synthesized
// from the query's own table and column references, so the check catches
// structural damage introduced by the rewrite (dangling qualifiers, broken
// clauses) without any knowledge of the real schema. Findings are warnings;
// nothing here ever fails a migration.
package verify

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hemanthest/dataquerymigration/internal/sqlselect"
)

// Result is the outcome of checking one query.
type Result struct {
	// Skipped is true when the query shape cannot be modeled against a
	// shadow schema (subquery in FROM, or outside the supported grammar).
	Skipped bool
	// Warning is non-nil when the query failed to prepare.
	Warning error
}

// Query checks one rewritten query. It is self-contained: each call opens
// its own in-memory database, builds the shadow schema, and prepares the
// statement.
func Query(ctx context.Context, text string) Result {
	stmt, err := sqlselect.Parse(text)
	if err != nil {
		return Result{Skipped: true}
	}
	schema := collect(stmt)
	if schema == nil {
		return Result{Skipped: true}
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return Result{Warning: fmt.Errorf("open shadow database: %w", err)}
	}
	defer db.Close()

	for _, ddl := range schema.ddl() {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return Result{Warning: fmt.Errorf("build shadow schema: %w", err)}
		}
	}

	prepared, err := db.PrepareContext(ctx, text)
	if err != nil {
		return Result{Warning: fmt.Errorf("prepare rewritten query: %w", err)}
	}
	prepared.Close()
	return Result{}
}

// shadowSchema accumulates table -> column-set over every select in the
// statement, nested subqueries included.
type shadowSchema struct {
	order   []string
	columns map[string]map[string]string // lower table -> lower column -> as written
	written map[string]string            // lower table -> as written
}

// collect builds the shadow schema, or returns nil when the statement uses a
// derived table in FROM, which a flat shadow schema cannot represent.
func collect(stmt *sqlselect.Statement) *shadowSchema {
	s := &shadowSchema{
		columns: make(map[string]map[string]string),
		written: make(map[string]string),
	}
	if !s.addStatement(stmt) {
		return nil
	}
	return s
}

func (s *shadowSchema) addStatement(stmt *sqlselect.Statement) bool {
	for _, sel := range stmt.Selects() {
		if !s.addSelect(sel) {
			return false
		}
	}
	return true
}

func (s *shadowSchema) addSelect(sel *sqlselect.PlainSelect) bool {
	aliases := make(map[string]string) // lower alias -> lower table
	first := ""

	addRef := func(ref *sqlselect.TableRef) bool {
		if ref == nil {
			return true
		}
		if ref.Sub != nil {
			return false
		}
		name := sqlselect.Unquote(ref.Name)
		lower := strings.ToLower(name)
		s.table(lower, name)
		aliases[lower] = lower
		if ref.Alias != "" {
			aliases[strings.ToLower(sqlselect.Unquote(ref.Alias))] = lower
		}
		if first == "" {
			first = lower
		}
		return true
	}
	for _, ref := range sel.From {
		if !addRef(ref) {
			return false
		}
	}
	for _, join := range sel.Joins {
		if !addRef(join.Right) {
			return false
		}
	}

	ok := true
	addColumn := func(col *sqlselect.ColumnRef) {
		name := sqlselect.Unquote(col.Name)
		table := first
		if col.Qualifier != "" {
			table = aliases[strings.ToLower(sqlselect.Unquote(col.Qualifier))]
		}
		if table == "" {
			return
		}
		s.column(table, strings.ToLower(name), name)
	}
	for _, expr := range s.selectExpressions(sel) {
		sqlselect.WalkColumns(expr, addColumn)
		for _, sub := range sqlselect.Subqueries(expr) {
			if !s.addStatement(sub) {
				ok = false
			}
		}
	}
	for _, item := range sel.Items {
		if item.StarOf != "" {
			// qualified star needs at least one column to select
			if table := aliases[strings.ToLower(sqlselect.Unquote(item.StarOf))]; table != "" {
				s.column(table, "_shadow", "_shadow")
			}
		}
	}
	return ok
}

// selectExpressions is the full clause set of a select, wider than the
// migration's analysis walk: HAVING and JOIN ON participate here because the
// shadow schema must cover every referenced column.
func (s *shadowSchema) selectExpressions(sel *sqlselect.PlainSelect) []*sqlselect.Expression {
	exprs := sel.Expressions()
	if sel.Having != nil {
		exprs = append(exprs, sel.Having)
	}
	for _, join := range sel.Joins {
		if join.On != nil {
			exprs = append(exprs, join.On)
		}
	}
	return exprs
}

func (s *shadowSchema) table(lower, written string) {
	if _, ok := s.columns[lower]; ok {
		return
	}
	s.columns[lower] = make(map[string]string)
	s.written[lower] = written
	s.order = append(s.order, lower)
}

func (s *shadowSchema) column(table, lower, written string) {
	cols, ok := s.columns[table]
	if !ok {
		return
	}
	if _, ok := cols[lower]; !ok {
		cols[lower] = written
	}
}

// ddl renders one typeless CREATE TABLE per referenced table. Tables with no
// referenced columns get a placeholder column, since SQLite requires one.
func (s *shadowSchema) ddl() []string {
	out := make([]string, 0, len(s.order))
	for _, table := range s.order {
		cols := s.columns[table]
		names := make([]string, 0, len(cols))
		for _, written := range cols {
			names = append(names, quoteIdent(written))
		}
		sort.Strings(names)
		if len(names) == 0 {
			names = []string{quoteIdent("_shadow")}
		}
		out = append(out, fmt.Sprintf("CREATE TABLE %s (%s)",
			quoteIdent(s.written[table]), strings.Join(names, ", ")))
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
