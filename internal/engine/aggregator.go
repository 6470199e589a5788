package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

// mask is a compiled condition: one flag per dictionary entry of a column.
type mask struct {
	col *Column
	hit []bool
}

func (m mask) match(row int) bool {
	id := m.col.IDs[row]
	return id >= 0 && m.hit[id]
}

// clause is an OR of masks; a record passes a predicate if it passes every clause.
type clause []mask

func (c clause) match(row int) bool {
	for _, m := range c {
		if m.match(row) {
			return true
		}
	}
	return false
}

// Count executes a single-dimension aggregation. Rows are ordered by count
// descending, then label.
func (cs *ColumnStore) Count(ctx context.Context, req query.Request) ([]models.ResultRow, error) {
	col, err := cs.column(req.Dimension.ID)
	if err != nil {
		return nil, err
	}
	clauses, err := cs.compile(req.Predicate)
	if err != nil {
		return nil, err
	}

	counts, err := cs.scan(ctx, len(col.TokenDict), clauses, func(acc []int, row int) {
		id := col.IDs[row]
		if id < 0 {
			return
		}
		for _, t := range col.Tokens[id] {
			acc[t]++
		}
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.ResultRow, 0)
	for t, n := range counts {
		if n > 0 {
			rows = append(rows, models.ResultRow{Label: col.TokenDict[t], Count: n})
		}
	}
	models.SortResultRows(rows)
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return rows, nil
}

// CrossCount executes the detail aggregation of a crosstab. The order of the
// returned cells is unspecified.
func (cs *ColumnStore) CrossCount(ctx context.Context, req query.CrossRequest) ([]models.CrosstabCell, error) {
	rowCol, err := cs.column(req.Row.ID)
	if err != nil {
		return nil, err
	}
	colCol, err := cs.column(req.Col.ID)
	if err != nil {
		return nil, err
	}
	clauses, err := cs.compile(req.Predicate)
	if err != nil {
		return nil, err
	}

	// THE MATRIX: flattened [rowToken][colToken] -> rowToken*numCols + colToken
	numCols := len(colCol.TokenDict)
	counts, err := cs.scan(ctx, len(rowCol.TokenDict)*numCols, clauses, func(acc []int, row int) {
		rid, cid := rowCol.IDs[row], colCol.IDs[row]
		if rid < 0 || cid < 0 {
			return
		}
		for _, rt := range rowCol.Tokens[rid] {
			base := int(rt) * numCols
			for _, ct := range colCol.Tokens[cid] {
				acc[base+int(ct)]++
			}
		}
	})
	if err != nil {
		return nil, err
	}

	cells := make([]models.CrosstabCell, 0)
	for i, n := range counts {
		if n == 0 {
			continue
		}
		cells = append(cells, models.CrosstabCell{
			RowValue: rowCol.TokenDict[i/numCols],
			ColValue: colCol.TokenDict[i%numCols],
			Count:    n,
		})
	}
	return cells, nil
}

// Total counts the records matching p.
func (cs *ColumnStore) Total(ctx context.Context, p query.Predicate) (int, error) {
	clauses, err := cs.compile(p)
	if err != nil {
		return 0, err
	}
	counts, err := cs.scan(ctx, 1, clauses, func(acc []int, _ int) { acc[0]++ })
	if err != nil {
		return 0, err
	}
	return counts[0], nil
}

func (cs *ColumnStore) column(id string) (*Column, error) {
	c, ok := cs.Columns[id]
	if !ok {
		return nil, &models.QueryError{Message: fmt.Sprintf("unknown column %q", id)}
	}
	return c, nil
}

func (cs *ColumnStore) compile(p query.Predicate) ([]clause, error) {
	conds := p.Conditions()
	out := make([]clause, 0, len(conds))
	for _, c := range conds {
		switch c.Kind {
		case query.KindEq:
			col, err := cs.column(c.Dim)
			if err != nil {
				return nil, err
			}
			t := col.TokenID(c.Value)
			out = append(out, clause{dictMask(col, func(id int) bool {
				for _, tok := range col.Tokens[id] {
					if tok == t {
						return true
					}
				}
				return false
			})})
		case query.KindNotNull:
			col, err := cs.column(c.Dim)
			if err != nil {
				return nil, err
			}
			out = append(out, clause{dictMask(col, func(id int) bool { return len(col.Tokens[id]) > 0 })})
		case query.KindSearch:
			fold := cases.Fold()
			needle := fold.String(c.Value)
			or := make(clause, 0, len(c.Columns))
			for _, name := range c.Columns {
				col, err := cs.column(name)
				if err != nil {
					return nil, err
				}
				or = append(or, dictMask(col, func(id int) bool {
					return strings.Contains(fold.String(col.Dict[id]), needle)
				}))
			}
			out = append(out, or)
		default:
			return nil, &models.QueryError{Message: fmt.Sprintf("unsupported condition kind %d", c.Kind)}
		}
	}
	return out, nil
}

func dictMask(col *Column, pass func(id int) bool) mask {
	hit := make([]bool, len(col.Dict))
	for id := range hit {
		hit[id] = pass(id)
	}
	return mask{col: col, hit: hit}
}

// scan runs add over every record passing all clauses, split across workers,
// and merges the per-worker accumulators.
func (cs *ColumnStore) scan(ctx context.Context, size int, clauses []clause, add func(acc []int, row int)) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	numWorkers := cs.workers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if cs.Rows < numWorkers {
		numWorkers = 1
	}
	chunkSize := cs.Rows / numWorkers

	results := make(chan []int, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == numWorkers-1 {
			end = cs.Rows
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			acc := make([]int, size)
		rows:
			for j := s; j < e; j++ {
				for _, c := range clauses {
					if !c.match(j) {
						continue rows
					}
				}
				add(acc, j)
			}
			results <- acc
		}(start, end)
	}
	go func() { wg.Wait(); close(results) }()

	// Merge Phase (Reducer)
	final := make([]int, size)
	for acc := range results {
		for i, n := range acc {
			final[i] += n
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return final, nil
}
