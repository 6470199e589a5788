// Package duck runs aggregation requests as SQL on an in-memory DuckDB database.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	"github.com/labstack/gommon/log"
	_ "github.com/marcboeker/go-duckdb"

	"surveyexplorer/internal/models"
	"surveyexplorer/internal/query"
)

// Executor implements the analytical execution service on DuckDB.
type Executor struct {
	db    *sql.DB
	table string
}

// Open creates an in-memory DuckDB database and loads the CSV at dataPath into table.
// Every column is loaded as VARCHAR; empty cells become NULL.
func Open(ctx context.Context, dataPath, table string) (*Executor, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// Use GOMAXPROCS(0) instead of NumCPU() to respect container CPU limits.
	if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", runtime.GOMAXPROCS(0))); err != nil {
		db.Close()
		return nil, fmt.Errorf("set threads: %w", err)
	}

	start := time.Now()
	load := "CREATE TABLE " + query.QuoteIdent(table) + " AS SELECT * FROM read_csv_auto(" +
		query.QuoteLiteral(dataPath) + ", header = true, all_varchar = true)"
	if _, err := db.ExecContext(ctx, load); err != nil {
		db.Close()
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	log.Infof("duck: loaded %s into %s in %v", dataPath, table, time.Since(start))

	return &Executor{db: db, table: table}, nil
}

func (e *Executor) Close() error {
	return e.db.Close()
}

func (e *Executor) Count(ctx context.Context, req query.Request) ([]models.ResultRow, error) {
	stmt := req.SQL(e.table)
	rows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, queryError(stmt, err)
	}
	defer rows.Close()

	out := make([]models.ResultRow, 0)
	for rows.Next() {
		var r models.ResultRow
		var n int64
		if err := rows.Scan(&r.Label, &n); err != nil {
			return nil, queryError(stmt, err)
		}
		r.Count = int(n)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(stmt, err)
	}
	return out, nil
}

func (e *Executor) CrossCount(ctx context.Context, req query.CrossRequest) ([]models.CrosstabCell, error) {
	stmt := req.SQL(e.table)
	rows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, queryError(stmt, err)
	}
	defer rows.Close()

	out := make([]models.CrosstabCell, 0)
	for rows.Next() {
		var c models.CrosstabCell
		var n int64
		if err := rows.Scan(&c.RowValue, &c.ColValue, &n); err != nil {
			return nil, queryError(stmt, err)
		}
		c.Count = int(n)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(stmt, err)
	}
	return out, nil
}

func (e *Executor) Total(ctx context.Context, p query.Predicate) (int, error) {
	stmt := query.TotalSQL(e.table, p)
	var n int64
	if err := e.db.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, queryError(stmt, err)
	}
	return int(n), nil
}

func queryError(stmt string, err error) error {
	return &models.QueryError{SQL: stmt, Message: err.Error(), Err: err}
}
