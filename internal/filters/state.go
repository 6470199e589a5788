// Package filters holds the composable filter state of a session.
package filters

import (
	"strings"
	"sync"

	"surveyexplorer/internal/dimensions"
	"surveyexplorer/internal/query"
)

// Origin records which widget set a filter. Dropdown and chart filters share one
// namespace; origin only affects the persisted shape.
type Origin string

const (
	OriginDropdown Origin = "dropdown"
	OriginChart    Origin = "chart"
)

type Entry struct {
	Dimension string `json:"dimension"`
	Value     string `json:"value"`
	Origin    Origin `json:"origin"`
}

// Snapshot is an immutable copy of the state at one version.
type Snapshot struct {
	Entries []Entry
	Search  string
	Version uint64
}

// Values returns dimension id -> value.
func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(s.Entries))
	for _, e := range s.Entries {
		out[e.Dimension] = e.Value
	}
	return out
}

func (s Snapshot) Value(dim string) (string, bool) {
	for _, e := range s.Entries {
		if e.Dimension == dim {
			return e.Value, true
		}
	}
	return "", false
}

func (s Snapshot) IsEmpty() bool { return len(s.Entries) == 0 && s.Search == "" }

// Filters converts the snapshot for the query builder.
func (s Snapshot) Filters() []query.Filter {
	out := make([]query.Filter, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, query.Filter{Dimension: e.Dimension, Value: e.Value})
	}
	return out
}

// Predicate builds the combined predicate of the snapshot plus extra conditions.
func (s Snapshot) Predicate(b *query.Builder, extra ...query.Condition) (query.Predicate, error) {
	return b.Predicate(s.Filters(), s.Search, extra...)
}

// State is the session's mutable filter state. Mutation only happens through the
// named operations below; each effective mutation bumps the version and notifies
// subscribers once, after the lock is released.
type State struct {
	reg *dimensions.Registry

	mu      sync.Mutex
	entries []Entry
	search  string
	version uint64
	nextSub int
	subs    map[int]func(Snapshot)
}

func New(reg *dimensions.Registry) *State {
	return &State{reg: reg, subs: make(map[int]func(Snapshot))}
}

// Subscribe registers fn to be called after every effective mutation.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SetValue sets or, for an empty value, clears the constraint on dim.
func (s *State) SetValue(dim, value string) error {
	return s.set(dim, strings.TrimSpace(value), OriginDropdown)
}

// ToggleChartFilter clears dim if it already holds value, otherwise sets it.
func (s *State) ToggleChartFilter(dim, value string) error {
	if _, err := s.reg.Must(dim); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	s.mu.Lock()
	if i := s.indexOf(dim); i >= 0 && s.entries[i].Value == value {
		s.removeAt(i)
		snap := s.commit()
		s.mu.Unlock()
		s.notify(snap)
		return nil
	}
	s.mu.Unlock()
	return s.set(dim, value, OriginChart)
}

func (s *State) Remove(dim string) error {
	return s.set(dim, "", OriginDropdown)
}

func (s *State) SetSearch(text string) {
	text = strings.TrimSpace(text)
	s.mu.Lock()
	if s.search == text {
		s.mu.Unlock()
		return
	}
	s.search = text
	snap := s.commit()
	s.mu.Unlock()
	s.notify(snap)
}

// Clear removes every constraint including the search text.
func (s *State) Clear() {
	s.mu.Lock()
	if len(s.entries) == 0 && s.search == "" {
		s.mu.Unlock()
		return
	}
	s.entries = nil
	s.search = ""
	snap := s.commit()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ToPredicate builds the predicate of the current state plus extra conditions.
func (s *State) ToPredicate(b *query.Builder, extra ...query.Condition) (query.Predicate, error) {
	return s.Snapshot().Predicate(b, extra...)
}

func (s *State) set(dim, value string, origin Origin) error {
	if _, err := s.reg.Must(dim); err != nil {
		return err
	}
	s.mu.Lock()
	i := s.indexOf(dim)
	switch {
	case value == "" && i < 0:
		s.mu.Unlock()
		return nil
	case value == "":
		s.removeAt(i)
	case i >= 0 && s.entries[i].Value == value:
		s.entries[i].Origin = origin
		s.mu.Unlock()
		return nil
	case i >= 0:
		s.entries[i] = Entry{Dimension: dim, Value: value, Origin: origin}
	default:
		s.entries = append(s.entries, Entry{Dimension: dim, Value: value, Origin: origin})
	}
	snap := s.commit()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

func (s *State) indexOf(dim string) int {
	for i, e := range s.entries {
		if e.Dimension == dim {
			return i
		}
	}
	return -1
}

func (s *State) removeAt(i int) {
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
}

func (s *State) commit() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	return Snapshot{Entries: entries, Search: s.search, Version: s.version}
}

func (s *State) notify(snap Snapshot) {
	s.mu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Without returns a copy of the snapshot with the constraint on dim removed.
func (s Snapshot) Without(dim string) Snapshot {
	out := Snapshot{Search: s.Search, Version: s.Version, Entries: make([]Entry, 0, len(s.Entries))}
	for _, e := range s.Entries {
		if e.Dimension != dim {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}
