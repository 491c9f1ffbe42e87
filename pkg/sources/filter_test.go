package sources

import (
	"reflect"
	"testing"
)

var testTable = Table{
	Name:              "vendors",
	Columns:           []string{"id", "business_name"},
	CategoryColumn:    "category",
	TextColumns:       []string{"business_name", "description"},
	SubcategoryColumn: "subcategory",
	CityColumn:        "city",
	StateColumn:       "state",
	OrderBy:           "id",
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		sql  string
		args []any
	}{
		{
			name: "category wins over keyword",
			q:    Query{Category: "photographers", Keyword: "wedding photographer"},
			sql:  "SELECT id, business_name FROM vendors WHERE category = ? ORDER BY id LIMIT ?",
			args: []any{"photographers", 20},
		},
		{
			name: "keyword fallback",
			q:    Query{Keyword: "officiant"},
			sql:  `SELECT id, business_name FROM vendors WHERE (business_name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\') ORDER BY id LIMIT ?`,
			args: []any{"%officiant%", "%officiant%", 20},
		},
		{
			name: "all filters",
			q:    Query{Category: "florists", Subcategory: "boutique", City: " Austin ", State: "Texas"},
			sql:  `SELECT id, business_name FROM vendors WHERE category = ? AND subcategory = ? AND city LIKE ? ESCAPE '\' AND state LIKE ? ESCAPE '\' ORDER BY id LIMIT ?`,
			args: []any{"florists", "boutique", "%Austin%", "%Texas%", 20},
		},
		{
			name: "wildcards escaped",
			q:    Query{Keyword: "100%_pure"},
			sql:  `SELECT id, business_name FROM vendors WHERE (business_name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\') ORDER BY id LIMIT ?`,
			args: []any{`%100\%\_pure%`, `%100\%\_pure%`, 20},
		},
		{
			name: "no filters",
			q:    Query{},
			sql:  "SELECT id, business_name FROM vendors ORDER BY id LIMIT ?",
			args: []any{20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := BuildSelect(testTable, tt.q, 20)
			if sql != tt.sql {
				t.Errorf("sql =\n%s\nwant\n%s", sql, tt.sql)
			}
			if !reflect.DeepEqual(args, tt.args) {
				t.Errorf("args = %#v, want %#v", args, tt.args)
			}
		})
	}
}

func TestDecodeImages(t *testing.T) {
	tests := map[string][]string{
		"":                       {},
		"not json":               {},
		`["a.jpg", "", "b.jpg"]`: {"a.jpg", "b.jpg"},
	}
	for in, want := range tests {
		got := DecodeImages(in)
		if got == nil || !reflect.DeepEqual(got, want) {
			t.Errorf("DecodeImages(%q) = %#v, want %#v", in, got, want)
		}
	}
}

func TestStringPtrAndJoinPlace(t *testing.T) {
	if StringPtr("  ") != nil {
		t.Error("blank string should be nil")
	}
	if p := StringPtr(" x "); p == nil || *p != "x" {
		t.Error("expected trimmed value")
	}
	if got := JoinPlace("Austin", ""); got != "Austin" {
		t.Errorf("JoinPlace = %q", got)
	}
	if got := JoinPlace("Austin", "Texas"); got != "Austin, Texas" {
		t.Errorf("JoinPlace = %q", got)
	}
}
