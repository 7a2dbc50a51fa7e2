package model

// ObservedColumn is one column as reported by information_schema.
type ObservedColumn struct {
	Name string
	// ColumnType is the full engine type, e.g. "bigint unsigned",
	// "varchar(100)", "decimal(10,2)".
	ColumnType string
	// DataType is the bare type keyword, e.g. "bigint".
	DataType string
	Position int
	Nullable bool
	// Default is nil when the column has no default. Symbolic defaults
	// (CURRENT_TIMESTAMP) are reported unquoted by the engine.
	Default *string
	// Extra carries engine flags such as "auto_increment" and
	// "on update CURRENT_TIMESTAMP".
	Extra   string
	Comment string
}

// ObservedIndex is one secondary index as reported by
// information_schema.statistics, with columns in sequence order.
type ObservedIndex struct {
	Name    string
	Columns []string
	Unique  bool
}

// ObservedSchema is the live snapshot of one physical table, built by the
// planner's pre-flight probe and by the detector.
type ObservedSchema struct {
	Table   string
	Exists  bool
	Columns []ObservedColumn
	// PrimaryKey lists the primary key column names in key order.
	PrimaryKey []string
	// Indexes excludes the PRIMARY index.
	Indexes []ObservedIndex
}

// Column returns the observed column with the given name, or nil.
func (o *ObservedSchema) Column(name string) *ObservedColumn {
	for i := range o.Columns {
		if o.Columns[i].Name == name {
			return &o.Columns[i]
		}
	}
	return nil
}

// Index returns the observed index with the given name, or nil.
func (o *ObservedSchema) Index(name string) *ObservedIndex {
	for i := range o.Indexes {
		if o.Indexes[i].Name == name {
			return &o.Indexes[i]
		}
	}
	return nil
}
