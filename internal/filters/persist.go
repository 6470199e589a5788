package filters

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Persisted is the shareable shape of a filter state: dropdown filters, chart
// filters and the search text.
type Persisted struct {
	Filters      map[string]string `json:"filters,omitempty"`
	ChartFilters map[string]string `json:"chart_filters,omitempty"`
	Search       string            `json:"search,omitempty"`
}

var ErrMalformedToken = errors.New("malformed filter token")

// KnownValues reports whether a value still exists in the dataset.
type KnownValues interface {
	HasValue(dim, value string) bool
}

func (s Snapshot) Persisted() Persisted {
	p := Persisted{Search: s.Search}
	for _, e := range s.Entries {
		target := &p.Filters
		if e.Origin == OriginChart {
			target = &p.ChartFilters
		}
		if *target == nil {
			*target = make(map[string]string)
		}
		(*target)[e.Dimension] = e.Value
	}
	return p
}

// Encode renders p as URL query and local-storage safe text.
func Encode(p Persisted) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode filter state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func Decode(token string) (Persisted, error) {
	var p Persisted
	if token == "" {
		return p, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return p, nil
}

// Restore replaces the state with p. Entries naming unknown dimensions or values
// no longer present in the dataset are skipped and returned as "dim=value".
// Chart filters are applied after dropdown filters, so they win on conflict.
func (s *State) Restore(p Persisted, known KnownValues) []string {
	var skipped []string
	var entries []Entry

	apply := func(m map[string]string, origin Origin) {
		dims := make([]string, 0, len(m))
		for d := range m {
			dims = append(dims, d)
		}
		sort.Strings(dims)
		for _, d := range dims {
			v := m[d]
			_, ok := s.reg.Lookup(d)
			if !ok || v == "" || (known != nil && !known.HasValue(d, v)) {
				skipped = append(skipped, d+"="+v)
				continue
			}
			replaced := false
			for i := range entries {
				if entries[i].Dimension == d {
					entries[i] = Entry{Dimension: d, Value: v, Origin: origin}
					replaced = true
				}
			}
			if !replaced {
				entries = append(entries, Entry{Dimension: d, Value: v, Origin: origin})
			}
		}
	}
	apply(p.Filters, OriginDropdown)
	apply(p.ChartFilters, OriginChart)

	s.mu.Lock()
	s.entries = entries
	s.search = p.Search
	snap := s.commit()
	s.mu.Unlock()
	s.notify(snap)
	return skipped
}
