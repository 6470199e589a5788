package duck

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"surveyexplorer/internal/dimensions"
	"surveyexplorer/internal/engine"
	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

const surveyCSV = `role,region,pain_points
Data Engineer,EU,"Data quality, Tooling"
Data Engineer,NA,Data quality
Analyst,EU,"Tooling,Hiring"
Analyst,,Hiring
Analyst,APAC,
Manager,NA,"Data quality, Data quality"
O'Brien,EU,Tooling
"  Analyst ",NA,Hiring
" ",NA,Tooling
`

func setup(t *testing.T) (*Executor, *engine.ColumnStore, *query.Builder) {
	t.Helper()
	reg, err := dimensions.New(
		models.Dimension{ID: "role", Label: "Role", Searchable: true},
		models.Dimension{ID: "region", Label: "Region"},
		models.Dimension{ID: "pain_points", Label: "Pain Points", MultiValued: true, Searchable: true},
	)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "survey.csv")
	if err := os.WriteFile(path, []byte(surveyCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	exec, err := Open(context.Background(), path, "responses")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { exec.Close() })
	store, err := engine.ReadColumnar(strings.NewReader(surveyCSV), reg, 1)
	if err != nil {
		t.Fatal(err)
	}
	return exec, store, query.NewBuilder(reg)
}

// The SQL and in-process executors must agree on every request.
func TestParityWithColumnStore(t *testing.T) {
	exec, store, b := setup(t)
	ctx := context.Background()
	reg := b.Registry()

	cases := []struct {
		name    string
		filters []query.Filter
		search  string
	}{
		{"unfiltered", nil, ""},
		{"single valued", []query.Filter{{Dimension: "role", Value: "Analyst"}}, ""},
		{"multi valued", []query.Filter{{Dimension: "pain_points", Value: "Tooling"}}, ""},
		{"quote in value", []query.Filter{{Dimension: "role", Value: "O'Brien"}}, ""},
		{"padded value", []query.Filter{{Dimension: "region", Value: "NA"}}, ""},
		{"search", nil, "QUALITY"},
		{"like wildcard is literal", nil, "%"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := b.Predicate(tc.filters, tc.search)
			if err != nil {
				t.Fatal(err)
			}

			wantTotal, _ := store.Total(ctx, pred)
			gotTotal, err := exec.Total(ctx, pred)
			if err != nil {
				t.Fatalf("Total failed: %v", err)
			}
			if gotTotal != wantTotal {
				t.Errorf("Expected total %d, got %d", wantTotal, gotTotal)
			}

			for _, d := range reg.All() {
				req := query.Request{Predicate: pred, Dimension: d}
				want, _ := store.Count(ctx, req)
				got, err := exec.Count(ctx, req)
				if err != nil {
					t.Fatalf("Count %s failed: %v", d.ID, err)
				}
				if len(got) != len(want) {
					t.Fatalf("%s: expected %v, got %v", d.ID, want, got)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("%s row %d: expected %v, got %v", d.ID, i, want[i], got[i])
					}
				}
			}

			cross := query.CrossRequest{Predicate: pred, Row: dim(t, reg, "role"), Col: dim(t, reg, "pain_points")}
			want, _ := store.CrossCount(ctx, cross)
			got, err := exec.CrossCount(ctx, cross)
			if err != nil {
				t.Fatalf("CrossCount failed: %v", err)
			}
			sortCells(want)
			sortCells(got)
			if len(got) != len(want) {
				t.Fatalf("Expected cells %v, got %v", want, got)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Cell %d: expected %v, got %v", i, want[i], got[i])
				}
			}
		})
	}
}

func TestDistinctTokensPerRecord(t *testing.T) {
	exec, _, b := setup(t)
	d, _ := b.Registry().Lookup("pain_points")
	rows, err := exec.Count(context.Background(), query.Request{Dimension: d})
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Label] = r.Count
	}
	if counts["Data quality"] != 3 || counts["Tooling"] != 4 || counts["Hiring"] != 3 {
		t.Errorf("Unexpected token counts %v", counts)
	}
}

func TestBadSQLIsQueryError(t *testing.T) {
	exec, _, _ := setup(t)
	_, err := exec.Count(context.Background(), query.Request{Dimension: models.Dimension{ID: "salary"}})
	qe, ok := err.(*models.QueryError)
	if !ok {
		t.Fatalf("Expected *models.QueryError, got %T", err)
	}
	if qe.SQL == "" || qe.Message == "" {
		t.Errorf("Expected SQL and message on the error, got %+v", qe)
	}
}

func sortCells(cells []models.CrosstabCell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].RowValue != cells[j].RowValue {
			return cells[i].RowValue < cells[j].RowValue
		}
		return cells[i].ColValue < cells[j].ColValue
	})
}

func dim(t *testing.T, reg *dimensions.Registry, id string) models.Dimension {
	t.Helper()
	d, err := reg.Must(id)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestPaddedValuesAreTrimmed(t *testing.T) {
	exec, _, b := setup(t)
	ctx := context.Background()
	pred, err := b.Predicate([]query.Filter{{Dimension: "role", Value: "Analyst"}}, "")
	if err != nil {
		t.Fatal(err)
	}
	n, err := exec.Total(ctx, pred)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("Expected 4 Analyst records including the padded one, got %d", n)
	}
	role, _ := b.Registry().Lookup("role")
	rows, err := exec.Count(ctx, query.Request{Dimension: role})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Label != strings.TrimSpace(r.Label) || r.Label == "" {
			t.Errorf("Expected trimmed, non-blank labels, got %q", r.Label)
		}
	}
}
