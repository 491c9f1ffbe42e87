package sources

import (
	"fmt"
	"strings"

	"github.com/rubiojr/vendorscout/pkg/locations"
)

// Table describes how a repository's columns map onto Query filters.
type Table struct {
	Name           string
	Columns        []string
	CategoryColumn string
	// TextColumns are matched against the keyword when no category is set.
	TextColumns       []string
	SubcategoryColumn string
	CityColumn        string
	StateColumn       string
	OrderBy           string
}

// BuildSelect renders the repository query for q. Category and subcategory
// match exactly; keyword, city and state are case-insensitive substring
// matches. A query with neither category nor keyword matches every row.
func BuildSelect(t Table, q Query, limit int) (string, []any) {
	var (
		where []string
		args  []any
	)
	like := func(v string) string {
		return "%" + locations.EscapeLike(strings.TrimSpace(v)) + "%"
	}

	switch {
	case q.Category != "":
		where = append(where, t.CategoryColumn+" = ?")
		args = append(args, q.Category)
	case strings.TrimSpace(q.Keyword) != "" && len(t.TextColumns) > 0:
		ors := make([]string, len(t.TextColumns))
		for i, col := range t.TextColumns {
			ors[i] = col + ` LIKE ? ESCAPE '\'`
			args = append(args, like(q.Keyword))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	if q.Subcategory != "" && t.SubcategoryColumn != "" {
		where = append(where, t.SubcategoryColumn+" = ?")
		args = append(args, q.Subcategory)
	}
	if strings.TrimSpace(q.City) != "" && t.CityColumn != "" {
		where = append(where, t.CityColumn+` LIKE ? ESCAPE '\'`)
		args = append(args, like(q.City))
	}
	if strings.TrimSpace(q.State) != "" && t.StateColumn != "" {
		where = append(where, t.StateColumn+` LIKE ? ESCAPE '\'`)
		args = append(args, like(q.State))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(t.Columns, ", "), t.Name)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if t.OrderBy != "" {
		b.WriteString(" ORDER BY " + t.OrderBy)
	}
	b.WriteString(" LIMIT ?")
	args = append(args, limit)
	return b.String(), args
}
