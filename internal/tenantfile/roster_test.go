package tenantfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schemafleet/schemafleet/internal/model"
)

const sampleRoster = `tenants:
  - id: t1
    databases:
      main:
        host: db1.internal
        port: 3306
        user: app
        password: secret
        database: t1_main
      order:
        host: db1.internal
        port: 3306
        user: app
        password: secret
        database: t1_order
  - id: t2
    databases:
      main:
        host: db2.internal
        port: 3306
        user: app
        password: secret
        database: t2_main
`

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func TestLoadRoster(t *testing.T) {
	r, err := Load(writeRoster(t, sampleRoster))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tenants, err := r.Tenants(context.Background())
	if err != nil {
		t.Fatalf("Tenants: %v", err)
	}
	if len(tenants) != 2 {
		t.Fatalf("got %d tenants, want 2", len(tenants))
	}
	if tenants[0].ID != "t1" || tenants[1].ID != "t2" {
		t.Errorf("roster order not preserved: %v, %v", tenants[0].ID, tenants[1].ID)
	}

	t1, err := r.Tenant(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Tenant: %v", err)
	}
	p, ok := t1.Params(model.RoleOrder)
	if !ok {
		t.Fatal("t1 should have an order database")
	}
	if p.Database != "t1_order" {
		t.Errorf("got database %q", p.Database)
	}
	if _, ok := t1.Params(model.RoleStatic); ok {
		t.Error("t1 should not have a static database")
	}

	if _, err := r.Tenant(context.Background(), "nope"); err == nil {
		t.Error("unknown tenant must error")
	}
}

func TestLoadRosterRejectsDuplicates(t *testing.T) {
	_, err := Load(writeRoster(t, "tenants:\n  - id: t1\n  - id: t1\n"))
	if err == nil {
		t.Fatal("duplicate tenant ids must be rejected")
	}
}

func TestAddTenantPersists(t *testing.T) {
	path := writeRoster(t, sampleRoster)
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	add := model.Tenant{
		ID: "t3",
		Databases: map[model.DatabaseRole]model.DatabaseParams{
			model.RoleMain: {Host: "db3.internal", Port: 3306, User: "app", Password: "pw", Database: "t3_main"},
		},
	}
	if err := r.Add(add); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(add); err == nil {
		t.Error("adding a duplicate tenant must fail")
	}

	// A fresh load sees the new tenant.
	r2, err := Load(path)
	if err != nil {
		t.Fatalf("re-Load: %v", err)
	}
	got, err := r2.Tenant(context.Background(), "t3")
	if err != nil {
		t.Fatalf("Tenant after reload: %v", err)
	}
	if p, _ := got.Params(model.RoleMain); p.Database != "t3_main" {
		t.Errorf("got database %q", p.Database)
	}
}

func TestDatabaseParamsDSN(t *testing.T) {
	p := model.DatabaseParams{Host: "db1", Port: 3307, User: "app", Password: "s3cr3t", Database: "t1_main"}
	dsn := p.DSN()
	for _, want := range []string{"app:s3cr3t@tcp(db1:3307)/t1_main", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}
