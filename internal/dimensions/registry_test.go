package dimensions

import (
	"errors"
	"testing"

	"surveyexplorer/internal/models"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	if len(reg.IDs()) != 12 {
		t.Errorf("Expected 12 dimensions, got %d", len(reg.IDs()))
	}
	if !reg.IsMultiValued("tools") || reg.IsMultiValued("role") {
		t.Error("Multi-valued flags are wrong")
	}
	want := []string{"role", "industry", "pain_points", "tools"}
	got := reg.SearchColumns()
	if len(got) != len(want) {
		t.Fatalf("Expected search columns %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}

func TestMustUnknown(t *testing.T) {
	_, err := Default().Must("salary")
	if !errors.Is(err, ErrUnknownDimension) {
		t.Errorf("Expected ErrUnknownDimension, got %v", err)
	}
	if Default().Label("salary") != "salary" {
		t.Error("Expected unknown label to fall back to the id")
	}
}

func TestNewRejectsUnsafeIDs(t *testing.T) {
	bad := []string{"Role", "role; DROP TABLE x", "1st", "", "a-b"}
	for _, id := range bad {
		if _, err := New(models.Dimension{ID: id}); err == nil {
			t.Errorf("Expected %q to be rejected", id)
		}
	}
	if _, err := New(models.Dimension{ID: "a"}, models.Dimension{ID: "a"}); err == nil {
		t.Error("Expected duplicate id to be rejected")
	}
	reg, err := New(models.Dimension{ID: "org_size"})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Label("org_size") != "org_size" {
		t.Errorf("Expected label to default to id, got %s", reg.Label("org_size"))
	}
}
