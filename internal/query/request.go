package query

import (
	"fmt"
	"strings"

	"surveyexplorer/internal/models"
)

const ridColumn = "__rid"

// Request describes a single-dimension aggregation. It is never mutated after
// creation.
type Request struct {
	Predicate Predicate
	Dimension models.Dimension
	Limit     int
}

// CrossRequest describes the detail aggregation of a crosstab.
type CrossRequest struct {
	Predicate Predicate
	Row       models.Dimension
	Col       models.Dimension
}

// SQL renders the request against table. Result columns are (label, count),
// ordered by descending count then label. Multi-valued dimensions are split on
// the list separator, trimmed, and counted once per distinct token per record.
func (r Request) SQL(table string) string {
	var sb strings.Builder
	sb.WriteString("WITH base AS (")
	sb.WriteString(baseSelect(table, r.Predicate))
	sb.WriteString("), d AS (")
	sb.WriteString(tokenSelect(r.Dimension))
	sb.WriteString(") SELECT v AS label, count(*) AS count FROM d WHERE v <> '' GROUP BY v ORDER BY count DESC, label ASC")
	if r.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", r.Limit)
	}
	return sb.String()
}

// SQL renders the detail query; result columns are (row_value, col_value, count).
// When both dimensions are multi-valued every co-occurring token pair of a record
// counts once.
func (r CrossRequest) SQL(table string) string {
	var sb strings.Builder
	sb.WriteString("WITH base AS (")
	sb.WriteString(baseSelect(table, r.Predicate))
	sb.WriteString("), r AS (")
	sb.WriteString(tokenSelect(r.Row))
	sb.WriteString("), c AS (")
	sb.WriteString(tokenSelect(r.Col))
	sb.WriteString(") SELECT r.v AS row_value, c.v AS col_value, count(*) AS count FROM r JOIN c USING (")
	sb.WriteString(ridColumn)
	sb.WriteString(") WHERE r.v <> '' AND c.v <> '' GROUP BY r.v, c.v")
	return sb.String()
}

// TotalSQL counts the records matching p.
func TotalSQL(table string, p Predicate) string {
	return "SELECT count(*) AS count FROM " + QuoteIdent(table) + p.Where()
}

// ValuesSQL lists the distinct tokens of a dimension over the whole table.
func ValuesSQL(table string, d models.Dimension) string {
	return Request{Dimension: d, Predicate: Predicate{conds: []Condition{{Kind: KindNotNull, Dim: d.ID, Multi: d.MultiValued}}}}.SQL(table)
}

func baseSelect(table string, p Predicate) string {
	return "SELECT row_number() OVER () AS " + ridColumn + ", * FROM " + QuoteIdent(table) + p.Where()
}

func tokenSelect(d models.Dimension) string {
	col := QuoteIdent(d.ID)
	if !d.MultiValued {
		return "SELECT " + ridColumn + ", trim(CAST(" + col + " AS VARCHAR)) AS v FROM base WHERE " + col + " IS NOT NULL"
	}
	return "SELECT DISTINCT " + ridColumn + ", trim(tok) AS v FROM (SELECT " + ridColumn +
		", unnest(string_split(" + col + ", " + QuoteLiteral(separator) + ")) AS tok FROM base WHERE " +
		col + " IS NOT NULL)"
}
