package rewrite

import (
	"strings"
	"testing"
)

func logOf(t *testing.T, pairs ...string) *Log {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("logOf needs old/new pairs")
	}
	l := NewLog()
	for i := 0; i < len(pairs); i += 2 {
		l.Set(pairs[i], pairs[i+1])
	}
	return l
}

func TestApplyTableRenameKeepsColumnCasing(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Name", "Orders.Name",
		"Amendment.Status", "Orders.Status",
	)
	in := `SELECT a.Name FROM Amendment a WHERE a.Status = 'X'`
	want := `SELECT ord.Name FROM Orders ord WHERE ord.Status = 'X'`
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyFieldRename(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Name", "Orders.OrderNumber",
		"Amendment.Status", "Orders.Status",
	)
	in := `SELECT a.Name FROM Amendment a WHERE a.Status = 'X'`
	want := `SELECT ord.OrderNumber FROM Orders ord WHERE ord.Status = 'X'`
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyRegeneratesSelectAlias(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Id", "Orders.Id",
	)
	in := `SELECT a.Id AS AmendmentId FROM Amendment a`
	want := `SELECT ord.Id AS OrderId FROM Orders ord`
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyDropsAliasOnRenamedColumn(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Name", "Orders.OrderNumber",
	)
	in := `SELECT a.Name AS AmendmentName FROM Amendment a`
	got := Apply(in, log)
	if !strings.Contains(got, "ord.OrderNumber") {
		t.Fatalf("renamed column missing from %q", got)
	}
	if strings.Contains(strings.ToUpper(got), " AS ") {
		t.Fatalf("AS clause not dropped for renamed column: %q", got)
	}
}

func TestApplyKeepsForeignKeyColumnOfUnrelatedTable(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Id", "Orders.Id",
		"Amendment.Status", "Orders.Status",
	)
	// Customers is not part of the log; its AmendmentId column must survive
	// even though the bare identifier matches a generated TableColumn pair.
	in := `SELECT a.Id FROM Amendment a JOIN Customers c ON a.Id = c.AmendmentId WHERE a.Status = 'X'`
	want := `SELECT ord.Id FROM Orders ord JOIN Customers c ON ord.Id = c.AmendmentId WHERE ord.Status = 'X'`
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyTableSplitSynthesizesJoin(t *testing.T) {
	log := logOf(t,
		"T", "A",
		"T.x", "A.x",
		"T.y", "AB.y",
	)
	in := "SELECT t.x, t.y FROM T t WHERE t.x = 1"
	got := Apply(in, log)

	wantJoin := "JOIN AB ab ON a.Id = ab.AId"
	if strings.Count(got, wantJoin) != 1 {
		t.Fatalf("want exactly one %q in %q", wantJoin, got)
	}
	for _, frag := range []string{"FROM A a", "a.x", "ab.y", "WHERE a.x = 1"} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in %q", frag, got)
		}
	}
	if strings.Contains(got, "t.") {
		t.Errorf("deprecated alias survived in %q", got)
	}
}

func TestApplySplitIdColumnFromMapping(t *testing.T) {
	log := logOf(t,
		"Shipment", "Parcels",
		"Shipment.Id", "Parcels.TrackingId",
		"Shipment.Weight", "ParcelDetails.Weight",
	)
	in := "SELECT s.Weight FROM Shipment s WHERE s.Id = ?"
	got := Apply(in, log)

	// Parcels and ParcelDetails share a 3-letter prefix, so the secondary
	// target gets the suffixed alias. The generated foreign key lower-cases
	// the tail of the id column.
	wantJoin := "JOIN ParcelDetails para ON par.TrackingId = para.ParcelTrackingid"
	if !strings.Contains(got, wantJoin) {
		t.Fatalf("missing synthesized join %q in %q", wantJoin, got)
	}
	if !strings.Contains(got, "par.TrackingId = ?") {
		t.Fatalf("WHERE predicate not routed to mapped id column: %q", got)
	}
}

func TestApplySplitAliasCollision(t *testing.T) {
	// Targets of a split sort by name length; the shorter one keeps the
	// unsuffixed 3-letter alias and the longer one gets a letter appended.
	log := logOf(t,
		"Inventory.Sku", "Parts.Sku",
		"Inventory.Bin", "PartStocks.Bin",
	)
	in := "SELECT i.Sku, i.Bin FROM Inventory i"
	got := Apply(in, log)

	for _, frag := range []string{"FROM Parts par", "JOIN PartStocks para", "par.Sku", "para.Bin"} {
		if !strings.Contains(got, frag) {
			t.Errorf("missing %q in %q", frag, got)
		}
	}
}

func TestApplyUnaliasedTable(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Name", "Orders.Name",
	)
	in := "SELECT Amendment.Name FROM Amendment"
	want := "SELECT Orders.Name FROM Orders"
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyNoAliasBeforeWhere(t *testing.T) {
	// WHERE must not be mistaken for the table alias.
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Name", "Orders.Name",
	)
	in := "SELECT Amendment.Name FROM Amendment WHERE Amendment.Name = 'X'"
	want := "SELECT Orders.Name FROM Orders WHERE Orders.Name = 'X'"
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyPreservesFormattingAndComments(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Status", "Orders.Status",
	)
	in := "SELECT a.Status   -- pending only\nFROM Amendment a\nWHERE a.Status = 'P'"
	want := "SELECT ord.Status   -- pending only\nFROM Orders ord\nWHERE ord.Status = 'P'"
	if got := Apply(in, log); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestApplyQualifierSplitAcrossLines(t *testing.T) {
	log := logOf(t,
		"Amendment", "Orders",
		"Amendment.Name", "Orders.OrderNumber",
	)
	in := "SELECT a\n    .Name\nFROM Amendment a"
	got := Apply(in, log)
	if !strings.Contains(got, "ord.OrderNumber") {
		t.Fatalf("newline-split qualifier not rewritten: %q", got)
	}
}

func TestApplyJoinWithoutWhereAppendsAtEnd(t *testing.T) {
	log := logOf(t,
		"T.x", "A.x",
		"T.y", "AB.y",
	)
	in := "SELECT t.x, t.y FROM T t"
	got := Apply(in, log)
	if !strings.HasSuffix(got, "JOIN AB ab ON a.Id = ab.AId") {
		t.Fatalf("synthesized join not appended: %q", got)
	}
}

func TestApplyEmptyLogIsIdentity(t *testing.T) {
	in := "SELECT * FROM Orders"
	if got := Apply(in, NewLog()); got != in {
		t.Fatalf("Apply changed text without replacements: %q", got)
	}
}

func TestApplyUnrelatedQueryUntouched(t *testing.T) {
	log := logOf(t, "Amendment", "Orders", "Amendment.Name", "Orders.Name")
	in := "SELECT c.Id FROM Customers c WHERE c.Active = 1"
	if got := Apply(in, log); got != in {
		t.Fatalf("Apply = %q, want input unchanged", got)
	}
}
