package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hemanthest/dataquerymigration/internal/mapping"
)

func entriesOf(t *testing.T, pairs ...string) []mapping.Entry {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("entriesOf needs deprecated/new pairs")
	}
	var out []mapping.Entry
	for i := 0; i < len(pairs); i += 2 {
		e, ok := mapping.ParseEntry(pairs[i], pairs[i+1])
		if !ok {
			t.Fatalf("ParseEntry(%q, %q) rejected", pairs[i], pairs[i+1])
		}
		out = append(out, e)
	}
	return out
}

func migrateOne(t *testing.T, entries []mapping.Entry, query string) QueryRecord {
	t.Helper()
	rec := QueryRecord{Name: "q", OriginalQuery: query}
	New(entries).MigrateQuery(&rec)
	return rec
}

func TestMigrateTableRename(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "Amendment", "Orders"),
		`SELECT a.Name FROM Amendment a WHERE a.Status = 'X'`)

	want := `SELECT ord.Name FROM Orders ord WHERE ord.Status = 'X'`
	if !rec.Impacted {
		t.Fatal("record not marked impacted")
	}
	if rec.UpdatedQuery != want {
		t.Fatalf("UpdatedQuery = %q, want %q", rec.UpdatedQuery, want)
	}
}

func TestMigrateFieldRename(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "Amendment.Name", "Orders.OrderNumber"),
		`SELECT a.Name FROM Amendment a WHERE a.Status = 'X'`)

	want := `SELECT ord.OrderNumber FROM Orders ord WHERE ord.Status = 'X'`
	if !rec.Impacted || rec.UpdatedQuery != want {
		t.Fatalf("got impacted=%v query=%q, want %q", rec.Impacted, rec.UpdatedQuery, want)
	}
}

func TestMigrateUnrelatedQueryVerbatim(t *testing.T) {
	query := "SELECT c.Id, c.Email\nFROM Customers c\nWHERE c.Active = 1"
	rec := migrateOne(t, entriesOf(t, "Amendment", "Orders", "Billing.Total", "Invoices.Total"), query)

	if rec.Impacted {
		t.Fatal("unrelated query marked impacted")
	}
	if rec.UpdatedQuery != "" || rec.OriginalQuery != query {
		t.Fatalf("unrelated query was touched: %+v", rec)
	}
}

func TestMigrateIgnoresMappedColumnInsideInList(t *testing.T) {
	// a.Name only appears as an IN-list member, which column analysis does
	// not descend into.
	query := "SELECT c.Id FROM Customers c, Amendment a WHERE c.Kind IN (a.Name, 'x')"
	rec := migrateOne(t, entriesOf(t, "Amendment.Name", "Orders.OrderNumber"), query)

	if rec.Impacted {
		t.Fatal("in-list reference marked impacted")
	}
	if rec.UpdatedQuery != "" {
		t.Fatalf("in-list reference was rewritten: %q", rec.UpdatedQuery)
	}
}

func TestMigrateOutputDropsDeprecatedTables(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "Amendment", "Orders", "Amendment.Id", "Orders.Id"),
		"SELECT a.Id FROM Amendment a JOIN Amendment b ON a.Id = b.Id")

	if !rec.Impacted {
		t.Fatal("record not marked impacted")
	}
	if strings.Contains(strings.ToLower(rec.UpdatedQuery), "amendment") {
		t.Fatalf("deprecated table survived in %q", rec.UpdatedQuery)
	}
}

func TestMigrateKeepsUnmappedForeignKeyColumn(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "Amendment", "Orders"),
		`SELECT a.Id FROM Amendment a JOIN Customers c ON a.Id = c.AmendmentId WHERE a.Status = 'X'`)

	want := `SELECT ord.Id FROM Orders ord JOIN Customers c ON ord.Id = c.AmendmentId WHERE ord.Status = 'X'`
	if rec.UpdatedQuery != want {
		t.Fatalf("UpdatedQuery = %q, want %q", rec.UpdatedQuery, want)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	entries := entriesOf(t, "Amendment", "Orders")
	first := migrateOne(t, entries, `SELECT a.Name FROM Amendment a WHERE a.Status = 'X'`)
	if !first.Impacted {
		t.Fatal("first pass not impacted")
	}

	second := migrateOne(t, entries, first.UpdatedQuery)
	if second.Impacted {
		t.Fatalf("second pass still impacted: %q", second.UpdatedQuery)
	}
}

func TestMigrateTableSplit(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "T.x", "A.x", "T.y", "AB.y"),
		"SELECT t.x, t.y FROM T t WHERE t.x = 1")

	if !rec.Impacted {
		t.Fatal("record not marked impacted")
	}
	got := rec.UpdatedQuery
	wantJoin := "JOIN AB ab ON a.Id = ab.AId"
	if strings.Count(got, wantJoin) != 1 {
		t.Fatalf("want exactly one %q in %q", wantJoin, got)
	}
	for _, frag := range []string{"FROM A a", "a.x", "ab.y"} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in %q", frag, got)
		}
	}
}

func TestMigrateSanitizesBeforeParsing(t *testing.T) {
	// Trailing comma before FROM breaks the grammar; the sanitizer removes
	// it so the structural path still succeeds.
	rec := migrateOne(t,
		entriesOf(t, "Amendment", "Orders"),
		"SELECT a.Id, FROM Amendment a")

	if !rec.Impacted {
		t.Fatalf("sanitized query did not migrate: %+v", rec)
	}
	if !strings.Contains(rec.UpdatedQuery, "FROM Orders ord") {
		t.Fatalf("table not renamed in %q", rec.UpdatedQuery)
	}
}

func TestMigrateFallbackOnParseFailure(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "x.y", "z.w"),
		"SELEC x.y FROM x") // typo keeps the grammar out

	if !rec.Impacted {
		t.Fatal("fallback did not mark record impacted")
	}
	if !strings.Contains(rec.UpdatedQuery, "z.w") {
		t.Fatalf("direct substitution missing from %q", rec.UpdatedQuery)
	}
}

func TestMigrateFallbackNoMatchLeavesUnchanged(t *testing.T) {
	rec := migrateOne(t,
		entriesOf(t, "x.y", "z.w"),
		"SELEC a.b FROM a")

	if rec.Impacted || rec.UpdatedQuery != "" {
		t.Fatalf("fallback touched an unrelated query: %+v", rec)
	}
}

func TestMigrateEmptyQueryUntouched(t *testing.T) {
	rec := migrateOne(t, entriesOf(t, "Amendment", "Orders"), "   ")
	if rec.Impacted || rec.UpdatedQuery != "" {
		t.Fatalf("empty query was touched: %+v", rec)
	}
}

func TestMigrateUnqualifiedColumnsOnly(t *testing.T) {
	// Rename targets are recorded from qualified column usage; a query that
	// never qualifies a column is left alone.
	rec := migrateOne(t, entriesOf(t, "Amendment", "Orders"), "SELECT Name FROM Amendment")
	if rec.Impacted {
		t.Fatalf("query without qualified columns was migrated: %q", rec.UpdatedQuery)
	}
}

func TestStructuralParseErrorClassification(t *testing.T) {
	ix := mapping.NewIndex(entriesOf(t, "Amendment", "Orders"))
	_, err := Structural("DELETE FROM Amendment", ix)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error %v is not a *ParseError", err)
	}
}

func TestMigrateAllKeepsInputOrder(t *testing.T) {
	entries := entriesOf(t, "Amendment", "Orders")
	records := []QueryRecord{
		{Name: "first", OriginalQuery: "SELECT a.Id FROM Amendment a"},
		{Name: "second", OriginalQuery: "SELECT c.Id FROM Customers c"},
		{Name: "third", OriginalQuery: "SELECT a.Status FROM Amendment a"},
	}

	for _, workers := range []int{1, 4} {
		out, err := New(entries).MigrateAll(context.Background(), records, workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if len(out) != len(records) {
			t.Fatalf("workers=%d: got %d records, want %d", workers, len(out), len(records))
		}
		for i, rec := range out {
			if rec.Name != records[i].Name {
				t.Fatalf("workers=%d: record %d is %q, want %q", workers, i, rec.Name, records[i].Name)
			}
		}
		if !out[0].Impacted || out[1].Impacted || !out[2].Impacted {
			t.Fatalf("workers=%d: impacted flags wrong: %v %v %v",
				workers, out[0].Impacted, out[1].Impacted, out[2].Impacted)
		}
	}
}

func TestMigrateAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(entriesOf(t, "Amendment", "Orders")).MigrateAll(ctx,
		[]QueryRecord{{Name: "q", OriginalQuery: "SELECT a.Id FROM Amendment a"}}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
