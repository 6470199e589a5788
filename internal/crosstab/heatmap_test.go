package crosstab

import (
	"math"
	"testing"
)

func TestIntensity(t *testing.T) {
	cases := []struct {
		value, max, want float64
	}{
		{0, 10, 0},
		{5, 10, 0.5},
		{10, 10, 1},
		{12, 10, 1},
		{-1, 10, 0},
		{3, 0, 0},
		{math.NaN(), 10, 0},
	}
	for _, tc := range cases {
		if got := Intensity(tc.value, tc.max); got != tc.want {
			t.Errorf("Intensity(%v, %v): expected %v, got %v", tc.value, tc.max, tc.want, got)
		}
	}
}

func TestShadeContrastFlip(t *testing.T) {
	if s := ShadeFor(0.5); s.Dark || s.Foreground != darkText {
		t.Errorf("Expected dark text at 0.5, got %+v", s)
	}
	if s := ShadeFor(0.51); !s.Dark || s.Foreground != lightText {
		t.Errorf("Expected light text past 0.5, got %+v", s)
	}
	if s := ShadeFor(0); s.Alpha != 0 || s.Background != "rgba(37, 99, 235, 0.000)" {
		t.Errorf("Unexpected zero shade %+v", s)
	}
	if s := ShadeFor(2); s.Alpha != 0.9 {
		t.Errorf("Expected clamped alpha 0.9, got %v", s.Alpha)
	}
}
