package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/labstack/gommon/log"

	"surveyexplorer/internal/dimensions"
)

const chunkRows = 4096

// LoadColumnar reads a CSV file into a dictionary-encoded ColumnStore.
func LoadColumnar(path string, reg *dimensions.Registry, workers int) (*ColumnStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadColumnar(f, reg, workers)
}

// ReadColumnar parses CSV with a header row. Only registry columns are kept;
// empty cells are nulls.
func ReadColumnar(r io.Reader, reg *dimensions.Registry, workers int) (*ColumnStore, error) {
	start := time.Now()
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// A. Read CSV into arrow record batches
	ids := reg.IDs()
	types := make(map[string]arrow.DataType, len(ids))
	for _, id := range ids {
		types[id] = arrow.BinaryTypes.String
	}
	rdr := csv.NewInferringReader(r,
		csv.WithHeader(true),
		csv.WithChunk(chunkRows),
		csv.WithLazyQuotes(true),
		csv.WithNullReader(true, ""),
		csv.WithColumnTypes(types),
		csv.WithIncludeColumns(ids),
	)
	defer rdr.Release()

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	totalRows := 0
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		records = append(records, rec)
		totalRows += int(rec.NumRows())
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	// B. Locate each registry column in the batches
	store := &ColumnStore{
		Rows:    totalRows,
		Columns: make(map[string]*Column, len(ids)),
		Order:   ids,
		workers: workers,
	}
	if len(records) > 0 {
		schema := records[0].Schema()
		for _, id := range ids {
			if len(schema.FieldIndices(id)) == 0 {
				return nil, fmt.Errorf("read dataset: missing column %q", id)
			}
		}
	}

	// C. Dictionary-encode every column in parallel
	var wg sync.WaitGroup
	for _, d := range reg.All() {
		col := &Column{Dimension: d, IDs: make([]int32, totalRows)}
		store.Columns[d.ID] = col
		wg.Add(1)
		go func(col *Column) {
			defer wg.Done()
			encodeColumn(col, records)
			log.Debugf("engine: column %s encoded, %d values, %d tokens", col.Dimension.ID, len(col.Dict), len(col.TokenDict))
		}(col)
	}
	wg.Wait()

	log.Infof("engine: load complete. Rows: %d. Time: %v", totalRows, time.Since(start))
	return store, nil
}

func encodeColumn(col *Column, records []arrow.Record) {
	valueIndex := make(map[string]int32)
	col.tokenIndex = make(map[string]int32)
	row := 0
	for _, rec := range records {
		idx := rec.Schema().FieldIndices(col.Dimension.ID)[0]
		arr := rec.Column(idx).(*array.String)
		for j := 0; j < arr.Len(); j++ {
			if arr.IsNull(j) {
				col.IDs[row] = -1
				row++
				continue
			}
			s := arr.Value(j)
			if !col.Dimension.MultiValued {
				s = strings.TrimSpace(s)
			}
			if s == "" {
				col.IDs[row] = -1
				row++
				continue
			}
			id, ok := valueIndex[s]
			if !ok {
				id = int32(len(col.Dict))
				str := strings.Clone(s)
				col.Dict = append(col.Dict, str)
				valueIndex[str] = id
				col.Tokens = append(col.Tokens, col.tokenize(str))
			}
			col.IDs[row] = id
			row++
		}
	}
}

// tokenize splits a raw cell into distinct trimmed token ids, registering new tokens.
func (c *Column) tokenize(raw string) []int32 {
	parts := []string{raw}
	if c.Dimension.MultiValued {
		parts = strings.Split(raw, dimensions.ListSeparator)
	}
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		tok := strings.TrimSpace(p)
		if tok == "" {
			continue
		}
		id, ok := c.tokenIndex[tok]
		if !ok {
			id = int32(len(c.TokenDict))
			c.TokenDict = append(c.TokenDict, tok)
			c.tokenIndex[tok] = id
		}
		dup := false
		for _, existing := range out {
			if existing == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}
