package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/schemafleet/schemafleet/internal/model"
)

// columnRow holds the result of querying information_schema.columns.
type columnRow struct {
	ColumnName string  `db:"COLUMN_NAME"`
	ColumnType string  `db:"COLUMN_TYPE"`
	DataType   string  `db:"DATA_TYPE"`
	IsNullable string  `db:"IS_NULLABLE"`
	Default    *string `db:"COLUMN_DEFAULT"`
	Position   int     `db:"ORDINAL_POSITION"`
	Extra      string  `db:"EXTRA"`
	Comment    string  `db:"COLUMN_COMMENT"`
}

// indexRow holds one (index, column) pair from information_schema.statistics
// in sequence order.
type indexRow struct {
	IndexName  string `db:"INDEX_NAME"`
	ColumnName string `db:"COLUMN_NAME"`
	NonUnique  int    `db:"NON_UNIQUE"`
	SeqInIndex int    `db:"SEQ_IN_INDEX"`
}

// Observe probes the live schema of one physical table on the connection's
// current database. A table with no columns does not exist.
func Observe(ctx context.Context, db *sqlx.DB, physical string) (*model.ObservedSchema, error) {
	obs := &model.ObservedSchema{Table: physical}

	const colQuery = `SELECT
			COLUMN_NAME, COLUMN_TYPE, DATA_TYPE, IS_NULLABLE,
			COLUMN_DEFAULT, ORDINAL_POSITION, EXTRA, COLUMN_COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	var cols []columnRow
	if err := db.SelectContext(ctx, &cols, colQuery, physical); err != nil {
		return nil, fmt.Errorf("probe columns of %q: %w", physical, err)
	}
	if len(cols) == 0 {
		return obs, nil
	}
	obs.Exists = true
	for _, c := range cols {
		obs.Columns = append(obs.Columns, model.ObservedColumn{
			Name:       c.ColumnName,
			ColumnType: c.ColumnType,
			DataType:   c.DataType,
			Position:   c.Position,
			Nullable:   c.IsNullable == "YES",
			Default:    c.Default,
			Extra:      c.Extra,
			Comment:    c.Comment,
		})
	}

	const idxQuery = `SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE, SEQ_IN_INDEX
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	var idxRows []indexRow
	if err := db.SelectContext(ctx, &idxRows, idxQuery, physical); err != nil {
		return nil, fmt.Errorf("probe indexes of %q: %w", physical, err)
	}

	// Group (index, column) pairs preserving sequence order. The PRIMARY
	// index becomes the primary key column list, not a secondary index.
	order := make([]string, 0, len(idxRows))
	grouped := make(map[string]*model.ObservedIndex)
	for _, r := range idxRows {
		if r.IndexName == "PRIMARY" {
			obs.PrimaryKey = append(obs.PrimaryKey, r.ColumnName)
			continue
		}
		g, ok := grouped[r.IndexName]
		if !ok {
			g = &model.ObservedIndex{Name: r.IndexName, Unique: r.NonUnique == 0}
			grouped[r.IndexName] = g
			order = append(order, r.IndexName)
		}
		g.Columns = append(g.Columns, r.ColumnName)
	}
	for _, name := range order {
		obs.Indexes = append(obs.Indexes, *grouped[name])
	}

	return obs, nil
}

// ListTables returns the base tables in the connection's current database
// whose names match the LIKE pattern, sorted by name.
func ListTables(ctx context.Context, db *sqlx.DB, like string) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
			AND TABLE_NAME LIKE ?
		ORDER BY TABLE_NAME`

	var names []string
	if err := db.SelectContext(ctx, &names, query, like); err != nil {
		return nil, fmt.Errorf("list tables like %q: %w", like, err)
	}
	return names, nil
}

// EscapeLike escapes LIKE wildcards in a literal prefix so that a table
// named "a_b" does not match "axb".
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "_", `\_`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return s
}
