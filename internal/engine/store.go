package engine

import (
	"surveyexplorer/internal/models"
)

// Column is one dictionary-encoded dimension.
//
// Every record points at a dictionary entry (or -1 for null); every dictionary
// entry expands to its distinct, trimmed tokens. For single-valued dimensions the
// token dictionary is the value dictionary and each entry has exactly one token.
type Column struct {
	Dimension models.Dimension

	IDs  []int32  // record -> dict id, -1 = null
	Dict []string // dict id -> raw cell value

	Tokens    [][]int32 // dict id -> distinct token ids
	TokenDict []string  // token id -> token

	tokenIndex map[string]int32
}

// TokenID returns the token id of value, or -1 if it never occurs.
func (c *Column) TokenID(value string) int32 {
	if id, ok := c.tokenIndex[value]; ok {
		return id
	}
	return -1
}

// ColumnStore holds the survey data in Struct-of-Arrays format.
type ColumnStore struct {
	Rows    int
	Columns map[string]*Column
	Order   []string

	workers int
}

func (cs *ColumnStore) Column(id string) (*Column, bool) {
	c, ok := cs.Columns[id]
	return c, ok
}

// HasValue reports whether value occurs as a token of dim anywhere in the data.
func (cs *ColumnStore) HasValue(dim, value string) bool {
	c, ok := cs.Columns[dim]
	if !ok {
		return false
	}
	return c.TokenID(value) >= 0
}
