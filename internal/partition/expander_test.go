package partition

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/schemafleet/schemafleet/internal/model"
)

type fakeStores struct {
	stores map[string][]string
	err    error
}

func (f *fakeStores) ListStores(_ context.Context, tenantID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stores[tenantID], nil
}

type fakeTables struct {
	names []string
}

func (f *fakeTables) ListTables(_ context.Context, _ string) ([]string, error) {
	return f.names, nil
}

func testExpander(forward int) *Expander {
	e := New(&fakeStores{stores: map[string][]string{
		"t1": {"1001", "1002", "1003"},
	}}, forward)
	e.now = func() time.Time {
		return time.Date(2024, time.November, 15, 10, 0, 0, 0, time.UTC)
	}
	return e
}

func def(name string, pt model.PartitionType, action model.Action, granularity string) *model.SchemaDefinition {
	return &model.SchemaDefinition{
		TableName:     name,
		DatabaseRole:  model.RoleMain,
		PartitionType: pt,
		Declaration: model.Declaration{
			TableName:   name,
			Action:      action,
			Granularity: granularity,
		},
	}
}

func TestExpandNone(t *testing.T) {
	got, err := testExpander(0).Expand(context.Background(),
		def("user_info", model.PartitionNone, model.ActionCreateOrUpgrade, ""), "t1", nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"user_info"}) {
		t.Errorf("got %v", got)
	}
}

func TestExpandTimeMonthly(t *testing.T) {
	got, err := testExpander(2).Expand(context.Background(),
		def("audit_log", model.PartitionTime, model.ActionCreateOrUpgrade, "monthly"), "t1", nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"audit_log_2024_11", "audit_log_2024_12", "audit_log_2025_01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandTimeMonthlyFromMonthEnd(t *testing.T) {
	e := testExpander(2)
	e.now = func() time.Time {
		return time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC)
	}
	got, err := e.Expand(context.Background(),
		def("audit_log", model.PartitionTime, model.ActionCreateOrUpgrade, "monthly"), "t1", nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// Jan 31 + one month must be February, not a normalized March 3.
	want := []string{"audit_log_2026_01", "audit_log_2026_02", "audit_log_2026_03"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandTimeDaily(t *testing.T) {
	got, err := testExpander(2).Expand(context.Background(),
		def("audit_log", model.PartitionTime, model.ActionCreateOrUpgrade, "daily"), "t1", nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"audit_log_2024_11_15", "audit_log_2024_11_16", "audit_log_2024_11_17"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandStore(t *testing.T) {
	got, err := testExpander(0).Expand(context.Background(),
		def("orders", model.PartitionStore, model.ActionCreateOrUpgrade, ""), "t1", nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"orders_store_1001", "orders_store_1002", "orders_store_1003"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandStoreListerError(t *testing.T) {
	e := New(&fakeStores{err: errors.New("tenant unreachable")}, 0)
	_, err := e.Expand(context.Background(),
		def("orders", model.PartitionStore, model.ActionCreateOrUpgrade, ""), "t1", nil)
	if err == nil {
		t.Fatal("expected error from store lister")
	}
}

func TestExpandDropMatchesOnlyRealPartitions(t *testing.T) {
	tables := &fakeTables{names: []string{
		"orders_store_1001",
		"orders_store_1002",
		"orders_store_restore",  // lookalike, not a partition
		"orders_store_1003_bak", // trailing junk
	}}
	got, err := testExpander(0).Expand(context.Background(),
		def("orders", model.PartitionStore, model.ActionDrop, ""), "t1", tables)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"orders_store_1001", "orders_store_1002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandDropTimePattern(t *testing.T) {
	tables := &fakeTables{names: []string{
		"audit_log_2024_10",
		"audit_log_2024_11",
		"audit_log_2024_11_15", // daily child of another declaration
		"audit_log_summary",
	}}
	got, err := testExpander(0).Expand(context.Background(),
		def("audit_log", model.PartitionTime, model.ActionDrop, "monthly"), "t1", tables)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"audit_log_2024_10", "audit_log_2024_11"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandDropNoneExisting(t *testing.T) {
	got, err := testExpander(0).Expand(context.Background(),
		def("orders", model.PartitionStore, model.ActionDrop, ""), "t1", &fakeTables{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("no existing partitions must expand to nothing, got %v", got)
	}
}
