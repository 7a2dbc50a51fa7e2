package model

import "time"

// Outcome classifies a single DDL attempt in the migration history.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// HistoryEntry is one append-only record of a DDL attempt against one
// physical table. History granularity is per statement: a target that runs
// three statements produces three success entries.
type HistoryEntry struct {
	ID            int64
	TenantID      string
	DatabaseRole  DatabaseRole
	PhysicalTable string
	SchemaVersion string
	SQLText       string
	Outcome       Outcome
	ErrorMessage  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// LockRecord is one row in the migration_locks table. A record existing
// means exactly one owner holds the (tenant, physical table) lock; expired
// records are reclaimable by any other owner.
type LockRecord struct {
	TenantID      string
	PhysicalTable string
	// OwnerID is "<instance>/<request>": the process identity joined with
	// the request correlation ID.
	OwnerID    string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}
