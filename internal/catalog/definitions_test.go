package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/schemafleet/schemafleet/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite"}) // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func userInfoDeclaration() model.Declaration {
	return model.Declaration{
		TableName: "user_info",
		Action:    model.ActionCreateOrUpgrade,
		Columns: []model.ColumnSpec{
			{Name: "id", Type: model.TypeBigInt, PrimaryKey: true, AutoIncrement: true, Unsigned: true},
			{Name: "name", Type: model.TypeVarchar, Length: 100},
		},
	}
}

func seedDefinition(t *testing.T, s *Store) *model.SchemaDefinition {
	t.Helper()
	def := &model.SchemaDefinition{
		TableName:     "user_info",
		DatabaseRole:  model.RoleMain,
		PartitionType: model.PartitionNone,
		Version:       model.MustParseVersion("1.0.0"),
		Declaration:   userInfoDeclaration(),
	}
	if err := s.CreateInitialVersion(context.Background(), def); err != nil {
		t.Fatalf("CreateInitialVersion: %v", err)
	}
	return def
}

func TestCreateInitialVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	def := seedDefinition(t, s)

	if def.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}
	if !def.Active {
		t.Error("expected new definition to be active")
	}

	got, err := s.GetActive(ctx, "user_info", model.RoleMain)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if got.ID != def.ID {
		t.Errorf("got ID %d, want %d", got.ID, def.ID)
	}
	if got.Version.String() != "1.0.0" {
		t.Errorf("got version %s, want 1.0.0", got.Version)
	}
	if len(got.Declaration.Columns) != 2 {
		t.Errorf("got %d columns, want 2", len(got.Declaration.Columns))
	}

	// Second initial version for the same pair is rejected.
	dup := &model.SchemaDefinition{
		TableName:     "user_info",
		DatabaseRole:  model.RoleMain,
		PartitionType: model.PartitionNone,
		Version:       model.MustParseVersion("2.0.0"),
		Declaration:   userInfoDeclaration(),
	}
	if err := s.CreateInitialVersion(ctx, dup); !errors.Is(err, ErrDefinitionExists) {
		t.Errorf("got %v, want ErrDefinitionExists", err)
	}

	// Same table under a different role is a distinct identity.
	other := &model.SchemaDefinition{
		TableName:     "user_info",
		DatabaseRole:  model.RoleLog,
		PartitionType: model.PartitionNone,
		Version:       model.MustParseVersion("1.0.0"),
		Declaration:   userInfoDeclaration(),
	}
	if err := s.CreateInitialVersion(ctx, other); err != nil {
		t.Errorf("CreateInitialVersion for other role: %v", err)
	}
}

func TestUpgradeFlipsActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	def := seedDefinition(t, s)

	decl := userInfoDeclaration()
	decl.Columns = append(decl.Columns, model.ColumnSpec{
		Name: "email", Type: model.TypeVarchar, Length: 255, AllowNull: true,
	})

	next, err := s.Upgrade(ctx, def.ID, decl, model.MustParseVersion("1.1.0"), "add email")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if next.ID == def.ID {
		t.Error("upgrade must insert a new row")
	}
	if next.UpgradeNotes != "add email" {
		t.Errorf("got notes %q", next.UpgradeNotes)
	}

	active, err := s.GetActive(ctx, "user_info", model.RoleMain)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID != next.ID {
		t.Errorf("active is %d, want %d", active.ID, next.ID)
	}

	hist, err := s.History(ctx, "user_info", model.RoleMain)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("got %d history rows, want 2", len(hist))
	}
	if !hist[0].Active || hist[0].ID != next.ID {
		t.Error("history must list the active version first")
	}
	if hist[1].Active {
		t.Error("previous version must be inactive")
	}
}

func TestUpgradeRejectsNonMonotonicVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	def := seedDefinition(t, s)

	if _, err := s.Upgrade(ctx, def.ID, userInfoDeclaration(), model.MustParseVersion("1.2.0"), ""); err != nil {
		t.Fatalf("Upgrade to 1.2.0: %v", err)
	}

	for _, v := range []string{"1.2.0", "1.1.0", "0.9.9"} {
		_, err := s.Upgrade(ctx, def.ID, userInfoDeclaration(), model.MustParseVersion(v), "")
		if !errors.Is(err, ErrVersionNotMonotonic) {
			t.Errorf("Upgrade to %s: got %v, want ErrVersionNotMonotonic", v, err)
		}
	}

	// Catalog unchanged by the rejections.
	active, err := s.GetActive(ctx, "user_info", model.RoleMain)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.Version.String() != "1.2.0" {
		t.Errorf("active version is %s, want 1.2.0", active.Version)
	}
}

func TestUpgradeRejectsMissingBaseline(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Upgrade(context.Background(), 9999, userInfoDeclaration(), model.MustParseVersion("1.0.1"), "")
	if !errors.Is(err, ErrNoSuchBaseline) {
		t.Errorf("got %v, want ErrNoSuchBaseline", err)
	}
}

func TestGetActiveMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetActive(context.Background(), "nope", model.RoleMain)
	if !errors.Is(err, ErrNoSuchSchema) {
		t.Errorf("got %v, want ErrNoSuchSchema", err)
	}
}

func TestListAllActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	def := seedDefinition(t, s)

	drop := model.Declaration{TableName: "obsolete_t", Action: model.ActionDrop}
	other := &model.SchemaDefinition{
		TableName:     "obsolete_t",
		DatabaseRole:  model.RoleOrder,
		PartitionType: model.PartitionStore,
		Version:       model.MustParseVersion("1.0.0"),
		Declaration:   drop,
	}
	if err := s.CreateInitialVersion(ctx, other); err != nil {
		t.Fatalf("CreateInitialVersion: %v", err)
	}
	if _, err := s.Upgrade(ctx, def.ID, userInfoDeclaration(), model.MustParseVersion("1.0.1"), ""); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	active, err := s.ListAllActive(ctx)
	if err != nil {
		t.Fatalf("ListAllActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active definitions, want 2", len(active))
	}
	for _, d := range active {
		if !d.Active {
			t.Errorf("%s/%s listed but not active", d.TableName, d.DatabaseRole)
		}
	}

	byRole, err := s.ListActiveByRole(ctx, model.RoleOrder)
	if err != nil {
		t.Fatalf("ListActiveByRole: %v", err)
	}
	if len(byRole) != 1 || byRole[0].TableName != "obsolete_t" {
		t.Errorf("ListActiveByRole(order) = %+v", byRole)
	}
	if byRole[0].Declaration.Action != model.ActionDrop {
		t.Errorf("got action %q, want DROP", byRole[0].Declaration.Action)
	}
}

func TestGetByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	def := seedDefinition(t, s)

	got, err := s.GetByKey(ctx, "user_info", model.RoleMain, model.MustParseVersion("1.0.0"))
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if got.ID != def.ID {
		t.Errorf("got ID %d, want %d", got.ID, def.ID)
	}

	_, err = s.GetByKey(ctx, "user_info", model.RoleMain, model.MustParseVersion("9.9.9"))
	if !errors.Is(err, ErrNoSuchSchema) {
		t.Errorf("got %v, want ErrNoSuchSchema", err)
	}
}
