// Package dimensions holds the static column metadata of the survey dataset.
// It is the only source of identifiers that may ever be interpolated into a query.
package dimensions

import (
	"errors"
	"fmt"
	"regexp"

	"surveyexplorer/internal/models"
)

// ListSeparator joins the tokens of a multi-valued dimension in a stored record.
const ListSeparator = ","

var (
	ErrUnknownDimension = errors.New("unknown dimension")

	idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Registry is the immutable allowlist of known dimensions.
type Registry struct {
	order []string
	byID  map[string]models.Dimension
}

func New(dims ...models.Dimension) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(dims)),
		byID:  make(map[string]models.Dimension, len(dims)),
	}
	for _, d := range dims {
		if !idPattern.MatchString(d.ID) {
			return nil, fmt.Errorf("dimension id %q: must match %s", d.ID, idPattern)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("dimension id %q: duplicate", d.ID)
		}
		if d.Label == "" {
			d.Label = d.ID
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
	}
	return r, nil
}

// Default returns the registry of the survey dataset.
func Default() *Registry {
	r, err := New(
		models.Dimension{ID: "role", Label: "Role", Searchable: true},
		models.Dimension{ID: "region", Label: "Region"},
		models.Dimension{ID: "industry", Label: "Industry", Searchable: true},
		models.Dimension{ID: "org_size", Label: "Organization Size"},
		models.Dimension{ID: "experience", Label: "Years of Experience"},
		models.Dimension{ID: "education", Label: "Education"},
		models.Dimension{ID: "employment", Label: "Employment Type"},
		models.Dimension{ID: "cloud_provider", Label: "Cloud Provider"},
		models.Dimension{ID: "ai_usage", Label: "AI Usage"},
		models.Dimension{ID: "pain_points", Label: "Pain Points", MultiValued: true, Searchable: true},
		models.Dimension{ID: "tools", Label: "Tools", MultiValued: true, Searchable: true},
		models.Dimension{ID: "languages", Label: "Languages", MultiValued: true},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(id string) (models.Dimension, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Must returns the dimension or ErrUnknownDimension wrapped with the id.
func (r *Registry) Must(id string) (models.Dimension, error) {
	d, ok := r.byID[id]
	if !ok {
		return models.Dimension{}, fmt.Errorf("%w: %q", ErrUnknownDimension, id)
	}
	return d, nil
}

func (r *Registry) IsMultiValued(id string) bool {
	return r.byID[id].MultiValued
}

func (r *Registry) Label(id string) string {
	if d, ok := r.byID[id]; ok {
		return d.Label
	}
	return id
}

// All returns the dimensions in registration order.
func (r *Registry) All() []models.Dimension {
	out := make([]models.Dimension, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SearchColumns is the fixed subset of text columns free-text search matches against.
func (r *Registry) SearchColumns() []string {
	var out []string
	for _, id := range r.order {
		if r.byID[id].Searchable {
			out = append(out, id)
		}
	}
	return out
}
