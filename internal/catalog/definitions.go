package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schemafleet/schemafleet/internal/model"
)

// defRow maps 1:1 to the schema_definitions table columns.
type defRow struct {
	ID            int64     `db:"id"`
	TableName     string    `db:"table_name"`
	DatabaseRole  string    `db:"database_role"`
	PartitionType string    `db:"partition_type"`
	SchemaVersion string    `db:"schema_version"`
	Declaration   string    `db:"declaration"`
	UpgradeNotes  string    `db:"upgrade_notes"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r defRow) toModel() (*model.SchemaDefinition, error) {
	v, err := model.ParseVersion(r.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("definition %d: %w", r.ID, err)
	}
	decl, err := model.ParseDeclaration(r.Declaration)
	if err != nil {
		return nil, fmt.Errorf("definition %d: %w", r.ID, err)
	}
	return &model.SchemaDefinition{
		ID:            r.ID,
		TableName:     r.TableName,
		DatabaseRole:  model.DatabaseRole(r.DatabaseRole),
		PartitionType: model.PartitionType(r.PartitionType),
		Version:       v,
		Declaration:   *decl,
		UpgradeNotes:  r.UpgradeNotes,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
	}, nil
}

const insertDefinitionSQL = `INSERT INTO schema_definitions
	(table_name, database_role, partition_type, schema_version, declaration, upgrade_notes, active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// CreateInitialVersion inserts the first catalog entry for a
// (table, role) pair and marks it active. It fails with ErrDefinitionExists
// when any version is already cataloged for the pair.
func (s *Store) CreateInitialVersion(ctx context.Context, def *model.SchemaDefinition) error {
	declJSON, err := def.Declaration.JSON()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.GetContext(ctx, &count,
		s.rebind(`SELECT COUNT(*) FROM schema_definitions WHERE table_name = ? AND database_role = ?`),
		def.TableName, string(def.DatabaseRole))
	if err != nil {
		return fmt.Errorf("check existing definitions: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s/%s", ErrDefinitionExists, def.TableName, def.DatabaseRole)
	}

	def.Active = true
	def.CreatedAt = now()
	id, err := s.insertReturningID(ctx, tx, insertDefinitionSQL,
		def.TableName, string(def.DatabaseRole), string(def.PartitionType),
		def.Version.String(), declJSON, def.UpgradeNotes, true, def.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	def.ID = id
	return tx.Commit()
}

// Upgrade appends a new active version on top of prevID. The previous active
// version is flipped inactive in the same transaction that inserts the new
// row. Fails with ErrNoSuchBaseline when prevID does not exist and with
// ErrVersionNotMonotonic when the new version does not order strictly after
// the current active one.
func (s *Store) Upgrade(ctx context.Context, prevID int64, decl model.Declaration, version model.Version, notes string) (*model.SchemaDefinition, error) {
	if err := decl.Validate(); err != nil {
		return nil, err
	}
	declJSON, err := decl.JSON()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var prevRow defRow
	err = tx.GetContext(ctx, &prevRow,
		s.rebind(`SELECT * FROM schema_definitions WHERE id = ?`), prevID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNoSuchBaseline, prevID)
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline %d: %w", prevID, err)
	}
	prev, err := prevRow.toModel()
	if err != nil {
		return nil, err
	}

	// Monotonicity is checked against the active version, which may be
	// newer than the passed baseline.
	var activeRow defRow
	err = tx.GetContext(ctx, &activeRow,
		s.rebind(`SELECT * FROM schema_definitions
			WHERE table_name = ? AND database_role = ? AND active = ?`),
		prev.TableName, string(prev.DatabaseRole), true)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load active definition: %w", err)
	}
	if err == nil {
		activeVersion, perr := model.ParseVersion(activeRow.SchemaVersion)
		if perr != nil {
			return nil, perr
		}
		if version.Compare(activeVersion) <= 0 {
			return nil, fmt.Errorf("%w: %s <= active %s", ErrVersionNotMonotonic, version, activeVersion)
		}
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE schema_definitions SET active = ? WHERE table_name = ? AND database_role = ? AND active = ?`),
		false, prev.TableName, string(prev.DatabaseRole), true); err != nil {
		return nil, fmt.Errorf("deactivate previous version: %w", err)
	}

	next := &model.SchemaDefinition{
		TableName:     prev.TableName,
		DatabaseRole:  prev.DatabaseRole,
		PartitionType: prev.PartitionType,
		Version:       version,
		Declaration:   decl,
		UpgradeNotes:  notes,
		Active:        true,
		CreatedAt:     now(),
	}
	id, err := s.insertReturningID(ctx, tx, insertDefinitionSQL,
		next.TableName, string(next.DatabaseRole), string(next.PartitionType),
		version.String(), declJSON, notes, true, next.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert new version: %w", err)
	}
	next.ID = id

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// GetByID loads one definition by row ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*model.SchemaDefinition, error) {
	var row defRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT * FROM schema_definitions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNoSuchSchema, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load definition %d: %w", id, err)
	}
	return row.toModel()
}

// GetByKey loads the definition identified by (table, role, version).
func (s *Store) GetByKey(ctx context.Context, table string, role model.DatabaseRole, version model.Version) (*model.SchemaDefinition, error) {
	var row defRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT * FROM schema_definitions
			WHERE table_name = ? AND database_role = ? AND schema_version = ?`),
		table, string(role), version.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s@%s", ErrNoSuchSchema, table, role, version)
	}
	if err != nil {
		return nil, fmt.Errorf("load definition %s/%s@%s: %w", table, role, version, err)
	}
	return row.toModel()
}

// GetActive returns the single active definition for (table, role), or
// ErrNoSuchSchema when none is active.
func (s *Store) GetActive(ctx context.Context, table string, role model.DatabaseRole) (*model.SchemaDefinition, error) {
	var row defRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT * FROM schema_definitions
			WHERE table_name = ? AND database_role = ? AND active = ?`),
		table, string(role), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no active version for %s/%s", ErrNoSuchSchema, table, role)
	}
	if err != nil {
		return nil, fmt.Errorf("load active definition %s/%s: %w", table, role, err)
	}
	return row.toModel()
}

// History returns every cataloged version for (table, role), the active row
// first, then by descending creation.
func (s *Store) History(ctx context.Context, table string, role model.DatabaseRole) ([]*model.SchemaDefinition, error) {
	var rows []defRow
	err := s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT * FROM schema_definitions
			WHERE table_name = ? AND database_role = ?
			ORDER BY active DESC, id DESC`),
		table, string(role))
	if err != nil {
		return nil, fmt.Errorf("load definition history %s/%s: %w", table, role, err)
	}
	return rowsToModels(rows)
}

// ListAllActive returns the active definition of every cataloged
// (table, role) pair.
func (s *Store) ListAllActive(ctx context.Context) ([]*model.SchemaDefinition, error) {
	var rows []defRow
	err := s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT * FROM schema_definitions WHERE active = ?
			ORDER BY database_role, table_name`),
		true)
	if err != nil {
		return nil, fmt.Errorf("list active definitions: %w", err)
	}
	return rowsToModels(rows)
}

// ListActiveByRole returns active definitions for one database role.
func (s *Store) ListActiveByRole(ctx context.Context, role model.DatabaseRole) ([]*model.SchemaDefinition, error) {
	var rows []defRow
	err := s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT * FROM schema_definitions WHERE active = ? AND database_role = ?
			ORDER BY table_name`),
		true, string(role))
	if err != nil {
		return nil, fmt.Errorf("list active definitions for %s: %w", role, err)
	}
	return rowsToModels(rows)
}

func rowsToModels(rows []defRow) ([]*model.SchemaDefinition, error) {
	defs := make([]*model.SchemaDefinition, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}
