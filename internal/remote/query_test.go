package remote

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func docs() []Document {
	return []Document{
		{ID: "a", Data: map[string]any{"title": "Go developer", "salaryFrom": 100.0, "employerId": "7", "createdAt": 3.0}},
		{ID: "b", Data: map[string]any{"title": "Go lead", "employerId": "8", "createdAt": 1.0}},
		{ID: "c", Data: map[string]any{"title": "Java developer", "salaryFrom": 300.0, "employerId": "7", "createdAt": 2.0}},
		{ID: "d", Data: map[string]any{"title": "go intern", "salaryFrom": 50.0, "employerId": "7", "createdAt": 2.0}},
	}
}

func ids(ds []Document) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func TestQueryApply(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"no filters sorts by id", Query{}, []string{"a", "b", "c", "d"}},
		{"equality", Where("employerId", Eq, "7"), []string{"a", "c", "d"}},
		{"equality on number with int", Where("createdAt", Eq, 2), []string{"c", "d"}},
		{"prefix is case sensitive", Where("title", Prefix, "Go"), []string{"a", "b"}},
		{"range skips missing field", Where("salaryFrom", Gte, 100), []string{"a", "c"}},
		{"strict range", Where("salaryFrom", Gt, 100), []string{"c"}},
		{"string range", Where("title", Lt, "H"), []string{"a", "b"}},
		{"order desc ties by id", Query{}.OrderBy("createdAt", true), []string{"a", "c", "d", "b"}},
		{"combined with limit", Where("employerId", Eq, "7").OrderBy("createdAt", false).Take(2), []string{"c", "d"}},
		{"type mismatch never matches", Where("employerId", Eq, 7), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(tt.q.Apply(docs()))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueryOrderMissingFieldFirst(t *testing.T) {
	got := ids(Query{}.OrderBy("salaryFrom", false).Apply(docs()))
	want := []string{"b", "d", "a", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestQueryValidate(t *testing.T) {
	bad := []Query{
		Where("title; DROP", Eq, "x"),
		Where("title", Op("~"), "x"),
		Where("title", Prefix, 3),
		Query{}.OrderBy("a-b", false),
		Query{Limit: -1},
	}
	for i, q := range bad {
		if err := q.Validate(); err == nil {
			t.Errorf("query %d: Validate() = nil, want error", i)
		}
	}
	if err := Where("receiverId", Eq, "2").Where("timestamp", Gt, 10).OrderBy("timestamp", false).Validate(); err != nil {
		t.Errorf("valid query: %v", err)
	}
}

func TestQueryBuilderDoesNotAlias(t *testing.T) {
	base := Where("a", Eq, 1)
	x := base.Where("b", Eq, 2)
	y := base.Where("c", Eq, 3)
	if x.Filters[1].Field != "b" || y.Filters[1].Field != "c" {
		t.Errorf("builders share backing storage: %v %v", x.Filters, y.Filters)
	}
}

func TestCompareJSONNumber(t *testing.T) {
	c, ok := compareValues(json.Number("10"), 9)
	if !ok || c != 1 {
		t.Errorf("compareValues(json 10, 9) = %d, %v", c, ok)
	}
}
