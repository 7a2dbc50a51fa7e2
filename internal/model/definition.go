package model

import "time"

// PartitionType selects how a logical table maps onto physical tables.
type PartitionType string

const (
	// PartitionNone maps the logical table to exactly one physical table.
	PartitionNone PartitionType = "none"
	// PartitionTime maps to one child table per calendar period
	// (<name>_YYYY_MM, or <name>_YYYY_MM_DD for daily granularity).
	PartitionTime PartitionType = "time"
	// PartitionStore maps to one child table per business store
	// (<name>_store_<id>).
	PartitionStore PartitionType = "store"
)

// ValidPartitionType reports whether t is a known partition type.
func ValidPartitionType(t PartitionType) bool {
	switch t {
	case PartitionNone, PartitionTime, PartitionStore:
		return true
	}
	return false
}

// DatabaseRole identifies which of a tenant's databases a table lives in.
type DatabaseRole string

const (
	RoleMain   DatabaseRole = "main"
	RoleLog    DatabaseRole = "log"
	RoleOrder  DatabaseRole = "order"
	RoleStatic DatabaseRole = "static"
)

// AllRoles lists every database role in a stable order.
var AllRoles = []DatabaseRole{RoleMain, RoleLog, RoleOrder, RoleStatic}

// ValidRole reports whether r is a known database role.
func ValidRole(r DatabaseRole) bool {
	switch r {
	case RoleMain, RoleLog, RoleOrder, RoleStatic:
		return true
	}
	return false
}

// SchemaDefinition is one versioned entry in the schema catalog. Identity is
// (TableName, DatabaseRole, Version); at most one row per identity pair is
// active at a time. Rows are superseded, never deleted.
type SchemaDefinition struct {
	ID            int64
	TableName     string
	DatabaseRole  DatabaseRole
	PartitionType PartitionType
	Version       Version
	Declaration   Declaration
	UpgradeNotes  string
	Active        bool
	CreatedAt     time.Time
}
