package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/schemafleet/schemafleet/internal/model"
)

// historyRow maps 1:1 to the migration_history table columns.
type historyRow struct {
	ID            int64     `db:"id"`
	TenantID      string    `db:"tenant_id"`
	DatabaseRole  string    `db:"database_role"`
	PhysicalTable string    `db:"physical_table"`
	SchemaVersion string    `db:"schema_version"`
	SQLText       string    `db:"sql_text"`
	Outcome       string    `db:"outcome"`
	ErrorMessage  string    `db:"error_message"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
}

func (r historyRow) toModel() model.HistoryEntry {
	return model.HistoryEntry{
		ID:            r.ID,
		TenantID:      r.TenantID,
		DatabaseRole:  model.DatabaseRole(r.DatabaseRole),
		PhysicalTable: r.PhysicalTable,
		SchemaVersion: r.SchemaVersion,
		SQLText:       r.SQLText,
		Outcome:       model.Outcome(r.Outcome),
		ErrorMessage:  r.ErrorMessage,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// AppendHistory inserts one history entry and assigns its ID. History is
// append-only; nothing in the system updates or deletes individual entries.
func (s *Store) AppendHistory(ctx context.Context, e *model.HistoryEntry) error {
	id, err := s.insertReturningID(ctx, nil,
		`INSERT INTO migration_history
			(tenant_id, database_role, physical_table, schema_version, sql_text, outcome, error_message, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TenantID, string(e.DatabaseRole), e.PhysicalTable, e.SchemaVersion,
		e.SQLText, string(e.Outcome), e.ErrorMessage,
		e.StartedAt.UTC().Truncate(time.Second), e.FinishedAt.UTC().Truncate(time.Second))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	e.ID = id
	return nil
}

// HistoryFilter narrows a history query. Zero-valued fields are ignored.
type HistoryFilter struct {
	TenantID      string
	PhysicalTable string
	Outcome       model.Outcome
	Limit         int
}

// QueryHistory returns history entries newest first.
func (s *Store) QueryHistory(ctx context.Context, f HistoryFilter) ([]model.HistoryEntry, error) {
	query := `SELECT * FROM migration_history WHERE 1=1`
	var args []interface{}
	if f.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, f.TenantID)
	}
	if f.PhysicalTable != "" {
		query += ` AND physical_table = ?`
		args = append(args, f.PhysicalTable)
	}
	if f.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(f.Outcome))
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	entries := make([]model.HistoryEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.toModel()
	}
	return entries, nil
}

// RotateHistory deletes entries that finished before the cutoff and returns
// how many were removed. The scheduled rotation job calls this with
// now - retention.
func (s *Store) RotateHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM migration_history WHERE finished_at < ?`),
		cutoff.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("rotate history: %w", err)
	}
	return res.RowsAffected()
}
