package engine

import (
	"os"
	"strings"
	"testing"

	"surveyexplorer/internal/dimensions"
	"surveyexplorer/internal/models"
)

const sampleCSV = `id,role,region,industry,pain_points,notes
1,Data Engineer,EU,Finance,"Data quality, Tooling",first
2,Data Engineer,NA,Retail,Data quality,
3,Analyst,EU,Finance,"Tooling,Hiring",
4,Analyst,,Retail,Hiring,
5,Data Engineer,EU,Retail,,
6,Manager,NA,Finance,"Data quality, Data quality",
`

func testRegistry(t *testing.T) *dimensions.Registry {
	t.Helper()
	reg, err := dimensions.New(
		models.Dimension{ID: "role", Label: "Role", Searchable: true},
		models.Dimension{ID: "region", Label: "Region"},
		models.Dimension{ID: "industry", Label: "Industry"},
		models.Dimension{ID: "pain_points", Label: "Pain Points", MultiValued: true, Searchable: true},
	)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func loadSample(t *testing.T, workers int) *ColumnStore {
	t.Helper()
	store, err := ReadColumnar(strings.NewReader(sampleCSV), testRegistry(t), workers)
	if err != nil {
		t.Fatalf("ReadColumnar failed: %v", err)
	}
	return store
}

func TestLoadColumnar(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "survey_*.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(sampleCSV); err != nil {
		t.Fatal(err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatal(err)
	}

	store, err := LoadColumnar(tmpFile.Name(), testRegistry(t), 2)
	if err != nil {
		t.Fatalf("LoadColumnar failed: %v", err)
	}

	if store.Rows != 6 {
		t.Fatalf("Expected 6 rows, got %d", store.Rows)
	}

	role := store.Columns["role"]
	if len(role.Dict) != 3 {
		t.Errorf("Expected 3 unique roles, got %d", len(role.Dict))
	}
	if role.Dict[role.IDs[0]] != "Data Engineer" {
		t.Errorf("Row 0 role: Expected Data Engineer, got %s", role.Dict[role.IDs[0]])
	}

	// Empty cells are nulls
	if id := store.Columns["region"].IDs[3]; id != -1 {
		t.Errorf("Row 3 region: Expected null (-1), got %d", id)
	}
	if id := store.Columns["pain_points"].IDs[4]; id != -1 {
		t.Errorf("Row 4 pain_points: Expected null (-1), got %d", id)
	}
}

func TestMultiValuedTokens(t *testing.T) {
	store := loadSample(t, 1)
	pp := store.Columns["pain_points"]

	if len(pp.TokenDict) != 3 {
		t.Fatalf("Expected 3 distinct tokens, got %d: %v", len(pp.TokenDict), pp.TokenDict)
	}
	// "Data quality, Data quality" collapses to one token
	if got := len(pp.Tokens[pp.IDs[5]]); got != 1 {
		t.Errorf("Expected duplicate tokens to collapse, got %d tokens", got)
	}
	if got := len(pp.Tokens[pp.IDs[0]]); got != 2 {
		t.Errorf("Expected 2 tokens for row 0, got %d", got)
	}

	if !store.HasValue("pain_points", "Tooling") {
		t.Error("Expected Tooling to be a known value")
	}
	if store.HasValue("pain_points", "Data quality, Tooling") {
		t.Error("Raw multi-valued cell must not be a known value")
	}
	if store.HasValue("unknown", "x") {
		t.Error("Unknown dimension must not have values")
	}
}

func TestReadColumnarMissingColumn(t *testing.T) {
	csv := "role,region\nAnalyst,EU\n"
	_, err := ReadColumnar(strings.NewReader(csv), testRegistry(t), 1)
	if err == nil {
		t.Fatal("Expected error for missing registry columns")
	}
}
