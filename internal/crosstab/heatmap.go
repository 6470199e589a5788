package crosstab

import (
	"fmt"
	"math"
)

// Shade is the visual weight of a heatmap cell.
type Shade struct {
	Alpha      float64
	Background string
	Foreground string
	Dark       bool
}

const (
	baseColor     = "37, 99, 235"
	lightText     = "#ffffff"
	darkText      = "#1f2937"
	contrastPoint = 0.5
)

// Intensity normalizes value against the matrix maximum into [0, 1].
func Intensity(value, max float64) float64 {
	if max <= 0 || value <= 0 || math.IsNaN(value) {
		return 0
	}
	if value >= max {
		return 1
	}
	return value / max
}

// ShadeFor maps an intensity to an alpha-blended background. Past the 0.5 mark the
// background is dark enough that text flips to light.
func ShadeFor(intensity float64) Shade {
	intensity = math.Min(math.Max(intensity, 0), 1)
	alpha := math.Round(intensity*0.9*1000) / 1000
	dark := intensity > contrastPoint
	fg := darkText
	if dark {
		fg = lightText
	}
	return Shade{
		Alpha:      alpha,
		Background: fmt.Sprintf("rgba(%s, %.3f)", baseColor, alpha),
		Foreground: fg,
		Dark:       dark,
	}
}
