package repository

import (
	"reflect"
	"testing"

	"projectflow/internal/model"
)

func TestWhere_NumbersPlaceholders(t *testing.T) {
	var w where
	w.add("project_id = ?::uuid", "p1")
	w.filter(model.Filter{Status: "todo", Search: "50%_off"}, "title")
	w.add("priority = ?", "high")

	want := `WHERE project_id = $1::uuid AND status = $2 AND title ILIKE $3 ESCAPE '\' AND priority = $4`
	if got := w.String(); got != want {
		t.Fatalf("unexpected where:\n got %s\nwant %s", got, want)
	}
	wantArgs := []any{"p1", "todo", `%50\%\_off%`, "high"}
	if !reflect.DeepEqual(w.args, wantArgs) {
		t.Fatalf("unexpected args: %v", w.args)
	}
}

func TestWhere_EmptyFilterAddsNothing(t *testing.T) {
	var w where
	w.filter(model.Filter{Search: "   "}, "name")
	if w.String() != "" || len(w.args) != 0 {
		t.Fatalf("expected empty clause, got %q %v", w.String(), w.args)
	}
}

func TestOrderBy(t *testing.T) {
	cases := map[model.SortKey]string{
		"":                 "ORDER BY created_at DESC, id ASC",
		"bogus":            "ORDER BY created_at DESC, id ASC",
		model.SortOldest:   "ORDER BY created_at ASC, id ASC",
		model.SortDeadline: "ORDER BY deadline ASC NULLS LAST, created_at DESC, id ASC",
		model.SortName:     `ORDER BY name COLLATE "C" ASC, created_at DESC, id ASC`,
	}
	for key, want := range cases {
		if got := orderBy(key, "name"); got != want {
			t.Fatalf("%q: got %s", key, got)
		}
	}
	if limitClause(0) != "" || limitClause(5) != "LIMIT 5" {
		t.Fatalf("unexpected limit clause")
	}
}
