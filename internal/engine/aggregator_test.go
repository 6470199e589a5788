package engine

import (
	"context"
	"errors"
	"testing"

	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

func predicate(t *testing.T, store *ColumnStore, filters []query.Filter, search string, extra ...query.Condition) query.Predicate {
	t.Helper()
	p, err := query.NewBuilder(testRegistry(t)).Predicate(filters, search, extra...)
	if err != nil {
		t.Fatalf("Predicate failed: %v", err)
	}
	return p
}

func TestCount(t *testing.T) {
	for _, workers := range []int{1, 2, 4} {
		store := loadSample(t, workers)
		role := store.Columns["role"].Dimension

		rows, err := store.Count(context.Background(), query.Request{Dimension: role})
		if err != nil {
			t.Fatal(err)
		}

		want := []models.ResultRow{{Label: "Data Engineer", Count: 3}, {Label: "Analyst", Count: 2}, {Label: "Manager", Count: 1}}
		if len(rows) != len(want) {
			t.Fatalf("workers=%d: Expected %d rows, got %d", workers, len(want), len(rows))
		}
		for i := range want {
			if rows[i] != want[i] {
				t.Errorf("workers=%d: Row %d expected %+v, got %+v", workers, i, want[i], rows[i])
			}
		}
	}
}

func TestCountMultiValued(t *testing.T) {
	store := loadSample(t, 2)
	pp := store.Columns["pain_points"].Dimension

	rows, err := store.Count(context.Background(), query.Request{
		Dimension: pp,
		Predicate: predicate(t, store, nil, "", query.NotNull("pain_points")),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Ties broken by label
	want := []models.ResultRow{{Label: "Data quality", Count: 3}, {Label: "Hiring", Count: 2}, {Label: "Tooling", Count: 2}}
	if len(rows) != len(want) {
		t.Fatalf("Expected %d rows, got %d: %+v", len(want), len(rows), rows)
	}
	sum := 0
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("Row %d expected %+v, got %+v", i, want[i], rows[i])
		}
		sum += rows[i].Count
	}
	// 5 records have pain points but tokens count once each
	if sum <= 5 {
		t.Errorf("Expected token totals to exceed record count 5, got %d", sum)
	}
}

func TestCountLimit(t *testing.T) {
	store := loadSample(t, 1)
	rows, err := store.Count(context.Background(), query.Request{Dimension: store.Columns["role"].Dimension, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Label != "Data Engineer" {
		t.Errorf("Expected only the top role, got %+v", rows)
	}
}

func TestCrossCount(t *testing.T) {
	store := loadSample(t, 3)
	req := query.CrossRequest{
		Row:       store.Columns["role"].Dimension,
		Col:       store.Columns["region"].Dimension,
		Predicate: predicate(t, store, nil, "", query.NotNull("role"), query.NotNull("region")),
	}
	cells, err := store.CrossCount(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[[2]string]int)
	for _, c := range cells {
		got[[2]string{c.RowValue, c.ColValue}] = c.Count
	}
	want := map[[2]string]int{
		{"Data Engineer", "EU"}: 2,
		{"Data Engineer", "NA"}: 1,
		{"Analyst", "EU"}:       1,
		{"Manager", "NA"}:       1,
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d cells, got %d: %+v", len(want), len(got), cells)
	}
	for k, n := range want {
		if got[k] != n {
			t.Errorf("Cell %v expected %d, got %d", k, n, got[k])
		}
	}
}

func TestTotalWithFilters(t *testing.T) {
	store := loadSample(t, 2)
	ctx := context.Background()

	cases := []struct {
		name    string
		filters []query.Filter
		search  string
		want    int
	}{
		{"empty", nil, "", 6},
		{"single-valued eq", []query.Filter{{Dimension: "role", Value: "Data Engineer"}}, "", 3},
		{"multi-valued eq", []query.Filter{{Dimension: "pain_points", Value: "Tooling"}}, "", 2},
		{"and across dimensions", []query.Filter{{Dimension: "role", Value: "Data Engineer"}, {Dimension: "industry", Value: "Retail"}}, "", 2},
		{"unknown value", []query.Filter{{Dimension: "role", Value: "Astronaut"}}, "", 0},
		{"search is case-insensitive", nil, "ANALYST", 2},
		{"search over multi-valued text", nil, "quality", 3},
		{"search and filter", []query.Filter{{Dimension: "region", Value: "EU"}}, "tooling", 2},
	}
	for _, tc := range cases {
		n, err := store.Total(ctx, predicate(t, store, tc.filters, tc.search))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if n != tc.want {
			t.Errorf("%s: Expected %d, got %d", tc.name, tc.want, n)
		}
	}
}

func TestUnknownColumnIsQueryError(t *testing.T) {
	store := loadSample(t, 1)
	_, err := store.Count(context.Background(), query.Request{Dimension: models.Dimension{ID: "salary"}})
	var qe *models.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("Expected QueryError, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	store := loadSample(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Total(ctx, query.Predicate{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
