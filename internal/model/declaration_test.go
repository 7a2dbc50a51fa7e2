package model

import (
	"errors"
	"testing"
)

func TestParseDeclaration(t *testing.T) {
	raw := `{
		"tableName": "user_info",
		"columns": [
			{"name": "id", "type": "BIGINT", "primaryKey": true, "autoIncrement": true, "unsigned": true},
			{"name": "name", "type": "varchar", "length": 100},
			{"name": "balance", "type": "DECIMAL", "precision": 10, "scale": 2, "allowNull": true},
			{"name": "created_at", "type": "DATETIME", "defaultValue": "CURRENT_TIMESTAMP"}
		],
		"indexes": [
			{"name": "idx_name", "fields": ["name"]},
			{"name": "uk_name_id", "fields": ["name", "id"], "unique": true}
		]
	}`

	d, err := ParseDeclaration(raw)
	if err != nil {
		t.Fatalf("ParseDeclaration: %v", err)
	}
	if d.Action != ActionCreateOrUpgrade {
		t.Errorf("got action %q, want default CREATE_OR_UPGRADE", d.Action)
	}
	if len(d.Columns) != 4 {
		t.Fatalf("got %d columns, want 4", len(d.Columns))
	}
	// Types are upper-cased during validation.
	if d.Columns[1].Type != TypeVarchar {
		t.Errorf("got type %q, want VARCHAR", d.Columns[1].Type)
	}
	if got := d.PrimaryKeyColumns(); len(got) != 1 || got[0] != "id" {
		t.Errorf("PrimaryKeyColumns = %v, want [id]", got)
	}
	if d.Column("balance") == nil || d.Column("nope") != nil {
		t.Error("Column lookup misbehaved")
	}
}

func TestParseDeclarationDrop(t *testing.T) {
	d, err := ParseDeclaration(`{"tableName": "obsolete_t", "action": "DROP"}`)
	if err != nil {
		t.Fatalf("ParseDeclaration: %v", err)
	}
	if d.Action != ActionDrop {
		t.Errorf("got action %q, want DROP", d.Action)
	}
}

func TestDeclarationValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty table name", `{"columns":[{"name":"id","type":"INT"}]}`},
		{"unknown action", `{"tableName":"t","action":"TRUNCATE"}`},
		{"no columns", `{"tableName":"t"}`},
		{"unknown type", `{"tableName":"t","columns":[{"name":"id","type":"UUID"}]}`},
		{"duplicate column", `{"tableName":"t","columns":[{"name":"id","type":"INT"},{"name":"id","type":"INT"}]}`},
		{"varchar without length", `{"tableName":"t","columns":[{"name":"n","type":"VARCHAR"}]}`},
		{"decimal without precision", `{"tableName":"t","columns":[{"name":"d","type":"DECIMAL"}]}`},
		{"empty index fields", `{"tableName":"t","columns":[{"name":"id","type":"INT"}],"indexes":[{"name":"i","fields":[]}]}`},
		{"index unknown column", `{"tableName":"t","columns":[{"name":"id","type":"INT"}],"indexes":[{"name":"i","fields":["missing"]}]}`},
		{"duplicate index", `{"tableName":"t","columns":[{"name":"id","type":"INT"}],"indexes":[{"name":"i","fields":["id"]},{"name":"i","fields":["id"]}]}`},
		{"bad granularity", `{"tableName":"t","granularity":"hourly","columns":[{"name":"id","type":"INT"}]}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeclaration(tt.raw)
			if !errors.Is(err, ErrInvalidDeclaration) {
				t.Errorf("got %v, want ErrInvalidDeclaration", err)
			}
		})
	}
}

func TestIsSymbolicDefault(t *testing.T) {
	for _, v := range []string{"CURRENT_TIMESTAMP", "current_timestamp", "NULL", "CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"} {
		if !IsSymbolicDefault(v) {
			t.Errorf("IsSymbolicDefault(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"0", "now()", "", "active"} {
		if IsSymbolicDefault(v) {
			t.Errorf("IsSymbolicDefault(%q) = true, want false", v)
		}
	}
}
