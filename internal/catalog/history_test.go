package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/schemafleet/schemafleet/internal/model"
)

func appendEntry(t *testing.T, s *Store, tenant, table string, outcome model.Outcome, finished time.Time) model.HistoryEntry {
	t.Helper()
	e := model.HistoryEntry{
		TenantID:      tenant,
		DatabaseRole:  model.RoleMain,
		PhysicalTable: table,
		SchemaVersion: "1.0.0",
		SQLText:       "ALTER TABLE `" + table + "` ADD COLUMN `email` varchar(255) NULL",
		Outcome:       outcome,
		StartedAt:     finished.Add(-time.Second),
		FinishedAt:    finished,
	}
	if err := s.AppendHistory(context.Background(), &e); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	return e
}

func TestHistoryAppendAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	appendEntry(t, s, "t1", "user_info", model.OutcomeSuccess, base)
	appendEntry(t, s, "t1", "user_info", model.OutcomeFailed, base)
	appendEntry(t, s, "t2", "orders_store_1001", model.OutcomeSkipped, base)

	all, err := s.QueryHistory(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("QueryHistory: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	// Newest first.
	if all[0].PhysicalTable != "orders_store_1001" {
		t.Errorf("first entry is %q, want the most recent append", all[0].PhysicalTable)
	}

	byTenant, err := s.QueryHistory(ctx, HistoryFilter{TenantID: "t1"})
	if err != nil {
		t.Fatalf("QueryHistory: %v", err)
	}
	if len(byTenant) != 2 {
		t.Errorf("got %d entries for t1, want 2", len(byTenant))
	}

	failed, err := s.QueryHistory(ctx, HistoryFilter{Outcome: model.OutcomeFailed, Limit: 10})
	if err != nil {
		t.Fatalf("QueryHistory: %v", err)
	}
	if len(failed) != 1 || failed[0].Outcome != model.OutcomeFailed {
		t.Errorf("failed filter returned %+v", failed)
	}
}

func TestRotateHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-100 * 24 * time.Hour)
	recent := time.Now().UTC()

	appendEntry(t, s, "t1", "user_info", model.OutcomeSuccess, old)
	appendEntry(t, s, "t1", "user_info", model.OutcomeSuccess, recent)

	n, err := s.RotateHistory(ctx, time.Now().UTC().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("RotateHistory: %v", err)
	}
	if n != 1 {
		t.Errorf("rotated %d entries, want 1", n)
	}

	left, err := s.QueryHistory(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("QueryHistory: %v", err)
	}
	if len(left) != 1 {
		t.Errorf("%d entries remain, want 1", len(left))
	}
}
