package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hemanthest/dataquerymigration/internal/logging"
	"github.com/hemanthest/dataquerymigration/internal/mapping"
	"github.com/hemanthest/dataquerymigration/internal/rewrite"
	"github.com/hemanthest/dataquerymigration/internal/sanitize"
)

// Migrator runs the migration pipeline over query records using one shared,
// read-only mapping index.
type Migrator struct {
	index   *mapping.Index
	entries []mapping.Entry
	logger  logging.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// New builds a Migrator from raw mapping entries. The index is constructed
// once and shared read-only across all queries of the batch.
func New(entries []mapping.Entry, opts ...Option) *Migrator {
	m := &Migrator{
		index:   mapping.NewIndex(entries),
		entries: entries,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateQuery migrates one record in place. It never returns an error and
// never panics past the record: a structural parse failure falls back to
// direct substitution, and anything pathological marks the record's Status
// and leaves the query untouched.
func (m *Migrator) MigrateQuery(rec *QueryRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("migration panicked", "query", rec.Name, "panic", r)
			rec.Status = fmt.Sprintf("migration failed: %v", r)
		}
	}()

	original := rec.OriginalQuery
	if strings.TrimSpace(original) == "" {
		return
	}

	sanitized := sanitize.Sanitize(original)
	result, err := m.Structural(sanitized)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			m.logger.Warn("query did not parse, using direct substitution",
				"query", rec.Name, "err", parseErr.Err)
			m.fallback(rec)
			return
		}
		m.logger.Error("migration failed", "query", rec.Name, "err", err)
		rec.Status = "migration failed: " + err.Error()
		return
	}

	if !result.HasChanges {
		m.logger.Debug("query not impacted", "query", rec.Name)
		return
	}
	rec.UpdatedQuery = rewrite.Apply(original, result.Log)
	rec.Impacted = true
	m.logger.Debug("query migrated", "query", rec.Name, "replacements", result.Log.Len())
}

// Structural runs the tree-based pass against this migrator's index.
func (m *Migrator) Structural(sanitized string) (*Result, error) {
	return Structural(sanitized, m.index)
}

func (m *Migrator) fallback(rec *QueryRecord) {
	log := Fallback(m.entries, rec.OriginalQuery)
	if log.Len() == 0 {
		return
	}
	updated := rewrite.Apply(rec.OriginalQuery, log)
	if updated == rec.OriginalQuery {
		return
	}
	rec.UpdatedQuery = updated
	rec.Impacted = true
}

// MigrateAll migrates every record and returns the results in input order.
// Records are independent, so they fan out over a bounded worker pool when
// workers is greater than one.
func (m *Migrator) MigrateAll(ctx context.Context, records []QueryRecord, workers int) ([]QueryRecord, error) {
	out := make([]QueryRecord, len(records))
	copy(out, records)
	if workers <= 1 {
		for i := range out {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			m.MigrateQuery(&out[i])
		}
		return out, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range out {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.MigrateQuery(&out[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}
