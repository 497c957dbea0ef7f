package migrate

import (
	"strings"

	"github.com/hemanthest/dataquerymigration/internal/mapping"
	"github.com/hemanthest/dataquerymigration/internal/rewrite"
	"github.com/hemanthest/dataquerymigration/internal/sqlselect"
)

// Result is the outcome of a structural migration pass.
type Result struct {
	HasChanges bool
	Log        *rewrite.Log
}

// Structural parses sanitized SQL into a statement tree, determines which
// tables and columns the mapping renames, mutates the tree, and records every
// substitution in a replacement log keyed by the original table names. The
// text rewriter consumes the log; the mutated tree is only used to decide
// HasChanges. A *ParseError is returned when the text is not a SELECT the
// grammar understands.
func Structural(sanitized string, ix *mapping.Index) (*Result, error) {
	stmt, err := sqlselect.Parse(sanitized)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	log := rewrite.NewLog()
	changed := false
	for _, sel := range stmt.Selects() {
		if migrateSelect(sel, ix, log) {
			changed = true
		}
	}
	return &Result{HasChanges: changed, Log: log}, nil
}

// selectScope holds the alias bindings of one SELECT core. All keys are
// lower-cased; written holds the table name as it appeared in the text, for
// replacement-log keys.
type selectScope struct {
	aliasToTable map[string]string // alias -> original table, lower-cased
	written      map[string]string // original table -> name as written
	renames      map[string]string // original table -> new table name
}

func migrateSelect(sel *sqlselect.PlainSelect, ix *mapping.Index, log *rewrite.Log) bool {
	scope := collectTables(sel)
	analyzeFieldUsage(sel, ix, scope)
	if len(scope.renames) == 0 {
		return false
	}
	changed := updateTables(sel, scope, log)
	if updateColumns(sel, ix, scope, log) {
		changed = true
	}
	return changed
}

// collectTables walks the FROM items and every JOIN right-hand item and
// records alias and self bindings for each plain table. Subqueries in FROM
// have their own scope and contribute nothing here.
func collectTables(sel *sqlselect.PlainSelect) *selectScope {
	scope := &selectScope{
		aliasToTable: make(map[string]string),
		written:      make(map[string]string),
		renames:      make(map[string]string),
	}
	bind := func(ref *sqlselect.TableRef) {
		if ref == nil || ref.Name == "" {
			return
		}
		name := sqlselect.Unquote(ref.Name)
		lower := strings.ToLower(name)
		scope.aliasToTable[lower] = lower
		if _, ok := scope.written[lower]; !ok {
			scope.written[lower] = name
		}
		if ref.Alias != "" {
			scope.aliasToTable[strings.ToLower(sqlselect.Unquote(ref.Alias))] = lower
		}
	}
	for _, ref := range sel.From {
		bind(ref)
	}
	for _, join := range sel.Joins {
		bind(join.Right)
	}
	return scope
}

// analyzeFieldUsage resolves every qualified column in the select list,
// WHERE, GROUP BY and ORDER BY to its original table and records the rename
// target for that table. A field-level mapping pins the target to its entry's
// new table; otherwise the first table-level mapping wins as the default.
func analyzeFieldUsage(sel *sqlselect.PlainSelect, ix *mapping.Index, scope *selectScope) {
	for _, expr := range sel.Expressions() {
		sqlselect.WalkColumns(expr, func(col *sqlselect.ColumnRef) {
			analyzeColumn(col, ix, scope)
		})
	}
}

func analyzeColumn(col *sqlselect.ColumnRef, ix *mapping.Index, scope *selectScope) {
	if col.Qualifier == "" {
		return
	}
	table, ok := scope.aliasToTable[strings.ToLower(sqlselect.Unquote(col.Qualifier))]
	if !ok {
		return
	}
	column := strings.ToLower(sqlselect.Unquote(col.Name))
	if entry, ok := ix.Field(table, column); ok {
		scope.renames[table] = entry.NewTable
		return
	}
	if _, done := scope.renames[table]; done {
		return
	}
	if entry, ok := ix.DefaultTarget(table); ok {
		scope.renames[table] = entry.NewTable
	}
}

// updateTables renames every FROM/JOIN table node with a recorded target and
// logs the bare table substitution. JOIN ON predicates are analyzed here as
// well, since the clause walk in analyzeFieldUsage does not cover them.
func updateTables(sel *sqlselect.PlainSelect, scope *selectScope, log *rewrite.Log) bool {
	changed := false
	rename := func(ref *sqlselect.TableRef) {
		if ref == nil || ref.Name == "" {
			return
		}
		lower := strings.ToLower(sqlselect.Unquote(ref.Name))
		target, ok := scope.renames[lower]
		if !ok {
			return
		}
		log.Set(scope.written[lower], target)
		ref.Name = target
		changed = true
	}
	for _, ref := range sel.From {
		rename(ref)
	}
	for _, join := range sel.Joins {
		rename(join.Right)
	}
	return changed
}

// updateColumns rewrites every qualified column reference whose table is
// renamed. A table-only rename logs originalTable.column -> newTable.column;
// a field-level mapping then overwrites that same key with the new column
// name, so field renames always win.
func updateColumns(sel *sqlselect.PlainSelect, ix *mapping.Index, scope *selectScope, log *rewrite.Log) bool {
	changed := false
	visit := func(col *sqlselect.ColumnRef) {
		if rewriteColumn(col, ix, scope, log) {
			changed = true
		}
	}
	for _, expr := range sel.Expressions() {
		sqlselect.WalkColumns(expr, visit)
	}
	for _, join := range sel.Joins {
		sqlselect.WalkColumns(join.On, visit)
	}
	return changed
}

func rewriteColumn(col *sqlselect.ColumnRef, ix *mapping.Index, scope *selectScope, log *rewrite.Log) bool {
	if col.Qualifier == "" {
		return false
	}
	table, ok := scope.aliasToTable[strings.ToLower(sqlselect.Unquote(col.Qualifier))]
	if !ok {
		return false
	}
	written := scope.written[table]
	column := sqlselect.Unquote(col.Name)
	key := written + "." + column
	changed := false

	if target, ok := scope.renames[table]; ok {
		log.Set(key, target+"."+column)
		col.Qualifier = target
		changed = true
	}
	if entry, ok := ix.Field(table, strings.ToLower(column)); ok {
		log.Set(key, entry.NewTable+"."+entry.NewField)
		col.Qualifier = entry.NewTable
		col.Name = entry.NewField
		changed = true
	}
	return changed
}
