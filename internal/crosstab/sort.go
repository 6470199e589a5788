package crosstab

import "sort"

type Direction int

const (
	Descending Direction = iota
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// SortKey is either a column value or the row-total sentinel.
type SortKey struct {
	Column   string
	RowTotal bool
}

var RowTotalKey = SortKey{RowTotal: true}

func ColumnKey(value string) SortKey { return SortKey{Column: value} }

func (k SortKey) String() string {
	if k.RowTotal {
		return "row_total"
	}
	return k.Column
}

// Sorter orders matrix rows without re-querying.
type Sorter struct {
	Key SortKey
	Dir Direction
}

// NewSorter returns the default ordering of every fresh matrix: row total, descending.
func NewSorter() Sorter {
	return Sorter{Key: RowTotalKey, Dir: Descending}
}

// Click toggles direction on the active key and resets to descending on a new one.
func (s *Sorter) Click(key SortKey) {
	if key == s.Key {
		if s.Dir == Descending {
			s.Dir = Ascending
		} else {
			s.Dir = Descending
		}
		return
	}
	s.Key = key
	s.Dir = Descending
}

// Apply rewrites m.RowValues. Rows are stably sorted descending from the marginal
// order, ties keeping that order; ascending is the exact reverse.
func (s Sorter) Apply(m *Matrix) {
	rows := append([]string(nil), m.baseRows...)
	key := func(r string) float64 {
		if s.Key.RowTotal {
			return float64(m.RowTotal(r))
		}
		return m.Value(r, s.Key.Column)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return key(rows[i]) > key(rows[j])
	})
	if s.Dir == Ascending {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	m.RowValues = rows
}
