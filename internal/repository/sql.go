package repository

import (
	"fmt"
	"strings"

	"projectflow/internal/model"
)

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

// add appends cond, replacing each "?" with the next $n placeholder.
func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// filter adds the shared status/search conditions. nameCol is the column
// searched by the free-text filter.
func (w *where) filter(f model.Filter, nameCol string) {
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add(nameCol+` ILIKE ? ESCAPE '\'`, likePattern(s))
	}
}

// likePattern wraps s in % after escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// orderBy renders the ORDER BY clause for a sort key. Ties fall back to
// creation order so repeated queries return rows in the same order.
func orderBy(key model.SortKey, nameCol string) string {
	switch key.OrDefault() {
	case model.SortOldest:
		return "ORDER BY created_at ASC, id ASC"
	case model.SortDeadline:
		return "ORDER BY deadline ASC NULLS LAST, created_at DESC, id ASC"
	case model.SortName:
		return fmt.Sprintf(`ORDER BY %s COLLATE "C" ASC, created_at DESC, id ASC`, nameCol)
	default:
		return "ORDER BY created_at DESC, id ASC"
	}
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", n)
}
