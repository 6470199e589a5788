// Package query turns filter state into predicates and aggregation requests
// for the analytical execution service.
//
// Identifiers are only ever taken from the dimension registry; literal values
// are always escaped before they are interpolated into SQL text.
package query

import (
	"strings"
)

type Kind int

const (
	KindEq Kind = iota
	KindNotNull
	KindSearch
)

// Condition is one atomic term of a Predicate. Conditions are built through
// Eq, NotNull and Search and resolved against the registry by a Builder.
type Condition struct {
	Kind    Kind
	Dim     string
	Value   string
	Columns []string
	// Multi is set by the Builder when Dim is a delimited multi-valued column.
	Multi bool
	// MultiColumns flags which search Columns are multi-valued.
	MultiColumns map[string]bool
}

func Eq(dim, value string) Condition { return Condition{Kind: KindEq, Dim: dim, Value: value} }

func NotNull(dim string) Condition { return Condition{Kind: KindNotNull, Dim: dim} }

// Search matches records where any of the builder's search columns contains text,
// ignoring case.
func Search(text string) Condition { return Condition{Kind: KindSearch, Value: text} }

// Predicate is an immutable AND-combination of conditions.
type Predicate struct {
	conds []Condition
}

func (p Predicate) IsEmpty() bool { return len(p.conds) == 0 }

func (p Predicate) Len() int { return len(p.conds) }

// Conditions returns a copy of the terms in insertion order.
func (p Predicate) Conditions() []Condition {
	out := make([]Condition, len(p.conds))
	copy(out, p.conds)
	return out
}

// with returns a new predicate; the receiver is never modified.
func (p Predicate) with(extra ...Condition) Predicate {
	conds := make([]Condition, 0, len(p.conds)+len(extra))
	conds = append(conds, p.conds...)
	conds = append(conds, extra...)
	return Predicate{conds: conds}
}

// HasEq reports whether the predicate constrains dim to value.
func (p Predicate) HasEq(dim, value string) bool {
	for _, c := range p.conds {
		if c.Kind == KindEq && c.Dim == dim && c.Value == value {
			return true
		}
	}
	return false
}

// SQL renders "cond AND cond ..." or "" for an empty predicate.
func (p Predicate) SQL() string {
	if len(p.conds) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.conds))
	for _, c := range p.conds {
		parts = append(parts, c.sql())
	}
	return strings.Join(parts, " AND ")
}

// Where renders " WHERE ..." or "".
func (p Predicate) Where() string {
	if s := p.SQL(); s != "" {
		return " WHERE " + s
	}
	return ""
}

// AndClause renders " AND ..." or "", for appending to an existing WHERE.
func (p Predicate) AndClause() string {
	if s := p.SQL(); s != "" {
		return " AND " + s
	}
	return ""
}

func (c Condition) sql() string {
	switch c.Kind {
	case KindEq:
		if c.Multi {
			return tokenMatch(c.Dim, "= "+QuoteLiteral(c.Value))
		}
		return "trim(" + QuoteIdent(c.Dim) + ") = " + QuoteLiteral(c.Value)
	case KindNotNull:
		// A value counts only if it yields a token; blank cells and lists of
		// separators do not.
		if c.Multi {
			return tokenMatch(c.Dim, "<> ''")
		}
		return "trim(" + QuoteIdent(c.Dim) + ") <> ''"
	case KindSearch:
		pattern := QuoteLiteral("%" + EscapeLike(strings.ToLower(c.Value)) + "%")
		ors := make([]string, 0, len(c.Columns))
		for _, col := range c.Columns {
			ors = append(ors, "lower(coalesce("+QuoteIdent(col)+", '')) LIKE "+pattern+` ESCAPE '\'`)
		}
		if len(ors) == 0 {
			return "FALSE"
		}
		return "(" + strings.Join(ors, " OR ") + ")"
	}
	return "TRUE"
}

// tokenMatch tests the trimmed tokens of a delimited column.
func tokenMatch(dim, test string) string {
	return "EXISTS (SELECT 1 FROM (SELECT unnest(string_split(" + QuoteIdent(dim) + ", " +
		QuoteLiteral(separator) + ")) AS tok) WHERE trim(tok) " + test + ")"
}
