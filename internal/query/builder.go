package query

import (
	"fmt"
	"strings"

	"surveyexplorer/internal/dimensions"
)

var separator = dimensions.ListSeparator

// Filter is one active single-value constraint.
type Filter struct {
	Dimension string
	Value     string
}

// Builder resolves conditions against the dimension registry.
type Builder struct {
	reg *dimensions.Registry
}

func NewBuilder(reg *dimensions.Registry) *Builder {
	return &Builder{reg: reg}
}

func (b *Builder) Registry() *dimensions.Registry { return b.reg }

// Predicate combines the filters, the optional search text and any extra
// conditions with AND. Blank values and blank search text are ignored, so an
// empty state with no extra conditions yields an empty predicate.
func (b *Builder) Predicate(filters []Filter, search string, extra ...Condition) (Predicate, error) {
	conds := make([]Condition, 0, len(filters)+len(extra)+1)
	for _, f := range filters {
		if f.Value == "" {
			continue
		}
		conds = append(conds, Eq(f.Dimension, f.Value))
	}
	if s := strings.TrimSpace(search); s != "" {
		conds = append(conds, Search(s))
	}
	conds = append(conds, extra...)
	return b.And(Predicate{}, conds...)
}

// And validates extra and returns p AND extra.
func (b *Builder) And(p Predicate, extra ...Condition) (Predicate, error) {
	resolved := make([]Condition, 0, len(extra))
	for _, c := range extra {
		rc, err := b.resolve(c)
		if err != nil {
			return Predicate{}, err
		}
		resolved = append(resolved, rc)
	}
	return p.with(resolved...), nil
}

func (b *Builder) resolve(c Condition) (Condition, error) {
	switch c.Kind {
	case KindEq, KindNotNull:
		d, err := b.reg.Must(c.Dim)
		if err != nil {
			return Condition{}, err
		}
		c.Multi = d.MultiValued
	case KindSearch:
		cols := b.reg.SearchColumns()
		c.Columns = cols
		c.MultiColumns = make(map[string]bool, len(cols))
		for _, col := range cols {
			c.MultiColumns[col] = b.reg.IsMultiValued(col)
		}
	default:
		return Condition{}, fmt.Errorf("unsupported condition kind %d", c.Kind)
	}
	return c, nil
}
