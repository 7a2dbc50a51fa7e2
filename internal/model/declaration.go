package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDeclaration is returned when a schema declaration fails
// structural validation. Declarations are validated once at ingestion;
// downstream code never re-parses them.
var ErrInvalidDeclaration = errors.New("invalid schema declaration")

// Action is what a declaration asks the executor to do with a table.
type Action string

const (
	// ActionCreateOrUpgrade creates the table if missing, otherwise diffs
	// the live schema and applies additive/upgrade DDL.
	ActionCreateOrUpgrade Action = "CREATE_OR_UPGRADE"
	// ActionDrop removes the table (and all its partitions).
	ActionDrop Action = "DROP"
)

// Canonical column types accepted in declarations.
const (
	TypeTinyInt  = "TINYINT"
	TypeSmallInt = "SMALLINT"
	TypeInt      = "INT"
	TypeBigInt   = "BIGINT"
	TypeDecimal  = "DECIMAL"
	TypeVarchar  = "VARCHAR"
	TypeChar     = "CHAR"
	TypeText     = "TEXT"
	TypeLongText = "LONGTEXT"
	TypeDate     = "DATE"
	TypeDateTime = "DATETIME"
	TypeTimestamp = "TIMESTAMP"
	TypeJSON     = "JSON"
	TypeBlob     = "BLOB"
)

var canonicalTypes = map[string]bool{
	TypeTinyInt: true, TypeSmallInt: true, TypeInt: true, TypeBigInt: true,
	TypeDecimal: true, TypeVarchar: true, TypeChar: true, TypeText: true,
	TypeLongText: true, TypeDate: true, TypeDateTime: true,
	TypeTimestamp: true, TypeJSON: true, TypeBlob: true,
}

// Symbolic default-value tokens rendered unquoted in DDL. Anything else is
// treated as a literal and quoted.
const (
	DefaultCurrentTimestamp = "CURRENT_TIMESTAMP"
	DefaultCurrentTimestampOnUpdate = "CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"
	DefaultNull = "NULL"
)

// IsSymbolicDefault reports whether a default value is one of the tokens
// that must be rendered without quotes.
func IsSymbolicDefault(v string) bool {
	switch strings.ToUpper(v) {
	case DefaultCurrentTimestamp, DefaultCurrentTimestampOnUpdate, DefaultNull:
		return true
	}
	return false
}

// ColumnSpec is the declared shape of a single column. It is a value object
// embedded in a Declaration.
type ColumnSpec struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Length        int     `json:"length,omitempty"`
	Precision     int     `json:"precision,omitempty"`
	Scale         int     `json:"scale,omitempty"`
	AllowNull     bool    `json:"allowNull,omitempty"`
	DefaultValue  *string `json:"defaultValue,omitempty"`
	Comment       string  `json:"comment,omitempty"`
	PrimaryKey    bool    `json:"primaryKey,omitempty"`
	AutoIncrement bool    `json:"autoIncrement,omitempty"`
	Unsigned      bool    `json:"unsigned,omitempty"`
}

// IndexSpec is a declared secondary index. Field order is significant and
// preserved.
type IndexSpec struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique,omitempty"`
}

// Declaration is the structured, validated representation of one table's
// schema definition. Column order is the canonical physical order; the
// planner positions added columns with AFTER/FIRST based on it.
type Declaration struct {
	TableName string `json:"tableName"`
	// Action defaults to CREATE_OR_UPGRADE when absent in JSON.
	Action  Action       `json:"action,omitempty"`
	Columns []ColumnSpec `json:"columns,omitempty"`
	Indexes []IndexSpec  `json:"indexes,omitempty"`
	// Granularity selects the period width for time-partitioned tables:
	// "monthly" (default) or "daily". Ignored for other partition types.
	Granularity string `json:"granularity,omitempty"`
}

// ParseDeclaration decodes and validates the schema_definition JSON string.
func ParseDeclaration(raw string) (*Declaration, error) {
	var d Declaration
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeclaration, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks structural invariants: known column types, no duplicate
// column names, non-empty index field lists referencing declared columns.
// When Action is DROP, columns and indexes are ignored entirely.
func (d *Declaration) Validate() error {
	if d.TableName == "" {
		return fmt.Errorf("%w: tableName is required", ErrInvalidDeclaration)
	}
	switch d.Action {
	case "":
		d.Action = ActionCreateOrUpgrade
	case ActionCreateOrUpgrade, ActionDrop:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidDeclaration, d.Action)
	}
	switch d.Granularity {
	case "", "monthly", "daily":
	default:
		return fmt.Errorf("%w: unknown granularity %q", ErrInvalidDeclaration, d.Granularity)
	}
	if d.Action == ActionDrop {
		return nil
	}

	if len(d.Columns) == 0 {
		return fmt.Errorf("%w: at least one column is required", ErrInvalidDeclaration)
	}
	seen := make(map[string]bool, len(d.Columns))
	for i := range d.Columns {
		col := &d.Columns[i]
		if col.Name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrInvalidDeclaration, i)
		}
		if seen[col.Name] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidDeclaration, col.Name)
		}
		seen[col.Name] = true

		col.Type = strings.ToUpper(col.Type)
		if !canonicalTypes[col.Type] {
			return fmt.Errorf("%w: column %q has unknown type %q", ErrInvalidDeclaration, col.Name, col.Type)
		}
		switch col.Type {
		case TypeVarchar, TypeChar:
			if col.Length <= 0 {
				return fmt.Errorf("%w: column %q: %s requires a length", ErrInvalidDeclaration, col.Name, col.Type)
			}
		case TypeDecimal:
			if col.Precision <= 0 {
				return fmt.Errorf("%w: column %q: DECIMAL requires a precision", ErrInvalidDeclaration, col.Name)
			}
		}
	}

	idxNames := make(map[string]bool, len(d.Indexes))
	for _, idx := range d.Indexes {
		if idx.Name == "" {
			return fmt.Errorf("%w: index with empty name", ErrInvalidDeclaration)
		}
		if idxNames[idx.Name] {
			return fmt.Errorf("%w: duplicate index %q", ErrInvalidDeclaration, idx.Name)
		}
		idxNames[idx.Name] = true
		if len(idx.Fields) == 0 {
			return fmt.Errorf("%w: index %q has no fields", ErrInvalidDeclaration, idx.Name)
		}
		for _, f := range idx.Fields {
			if !seen[f] {
				return fmt.Errorf("%w: index %q references unknown column %q", ErrInvalidDeclaration, idx.Name, f)
			}
		}
	}
	return nil
}

// Column returns the declared column with the given name, or nil.
func (d *Declaration) Column(name string) *ColumnSpec {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumns returns the names of columns flagged primary, in
// declaration order.
func (d *Declaration) PrimaryKeyColumns() []string {
	var pk []string
	for _, c := range d.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// JSON re-encodes the declaration in canonical form for storage.
func (d *Declaration) JSON() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode declaration: %w", err)
	}
	return string(b), nil
}
