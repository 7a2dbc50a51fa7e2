// Package detector introspects the baseline database, diffs every table
// against the active catalog definitions, and proposes new schema versions:
// 1.0.0 for unknown tables, a patch bump for drifted ones, and a DROP for
// tables that vanished from the baseline.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/schemafleet/schemafleet/internal/model"
	"github.com/schemafleet/schemafleet/internal/planner"
)

// ProposalKind classifies what a detection finding asks the catalog to do.
type ProposalKind string

const (
	// ProposalNew registers a baseline table the catalog has never seen.
	ProposalNew ProposalKind = "new"
	// ProposalUpgrade replaces a drifted definition with the observed one.
	ProposalUpgrade ProposalKind = "upgrade"
	// ProposalDrop marks a definition whose table vanished from the baseline.
	ProposalDrop ProposalKind = "drop"
)

// Proposal is one detection finding, ready to persist through the catalog.
type Proposal struct {
	TableName    string             `json:"table_name"`
	DatabaseRole model.DatabaseRole `json:"database_role"`
	Kind         ProposalKind       `json:"kind"`
	Version      string             `json:"version"`
	Declaration  model.Declaration  `json:"declaration"`

	version    model.Version
	baselineID int64 // active definition superseded by this proposal, 0 for new
}

// Catalog is the slice of the schema catalog the detector needs.
type Catalog interface {
	ListActiveByRole(ctx context.Context, role model.DatabaseRole) ([]*model.SchemaDefinition, error)
	CreateInitialVersion(ctx context.Context, def *model.SchemaDefinition) error
	Upgrade(ctx context.Context, prevID int64, decl model.Declaration, version model.Version, notes string) (*model.SchemaDefinition, error)
}

// Baselines hands out the per-role baseline connections. The connection
// registry satisfies it.
type Baselines interface {
	Baseline(role model.DatabaseRole) (*sqlx.DB, error)
	BaselineRoles() []model.DatabaseRole
}

// Detector compares baseline reality against the catalog.
type Detector struct {
	catalog   Catalog
	baselines Baselines
	logger    *slog.Logger
}

func New(catalog Catalog, baselines Baselines, logger *slog.Logger) *Detector {
	return &Detector{catalog: catalog, baselines: baselines, logger: logger}
}

// DetectAll runs a dry detection pass over every configured baseline role
// and returns the proposals without persisting anything. A table whose
// introspection fails is logged and skipped; detection continues.
func (d *Detector) DetectAll(ctx context.Context) ([]Proposal, error) {
	var proposals []Proposal
	for _, role := range d.baselines.BaselineRoles() {
		found, err := d.detectRole(ctx, role)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, found...)
	}
	return proposals, nil
}

// DetectAndSave persists every proposal through the catalog. Monotonic
// versioning holds because each bump derives from the active version read in
// the same pass.
func (d *Detector) DetectAndSave(ctx context.Context) ([]Proposal, error) {
	proposals, err := d.DetectAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range proposals {
		if err := d.save(ctx, p); err != nil {
			return nil, fmt.Errorf("save proposal for %s/%s: %w", p.TableName, p.DatabaseRole, err)
		}
		d.logger.Info("schema proposal saved",
			"table", p.TableName, "role", p.DatabaseRole,
			"kind", p.Kind, "version", p.Version)
	}
	return proposals, nil
}

func (d *Detector) save(ctx context.Context, p Proposal) error {
	if p.Kind == ProposalNew {
		return d.catalog.CreateInitialVersion(ctx, &model.SchemaDefinition{
			TableName:     p.TableName,
			DatabaseRole:  p.DatabaseRole,
			PartitionType: model.PartitionNone,
			Version:       p.version,
			Declaration:   p.Declaration,
			UpgradeNotes:  "auto-detected from baseline",
			Active:        true,
		})
	}
	notes := "auto-detected drift from baseline"
	if p.Kind == ProposalDrop {
		notes = "table no longer present in baseline"
	}
	_, err := d.catalog.Upgrade(ctx, p.baselineID, p.Declaration, p.version, notes)
	return err
}

func (d *Detector) detectRole(ctx context.Context, role model.DatabaseRole) ([]Proposal, error) {
	db, err := d.baselines.Baseline(role)
	if err != nil {
		return nil, err
	}
	active, err := d.catalog.ListActiveByRole(ctx, role)
	if err != nil {
		return nil, err
	}
	byTable := make(map[string]*model.SchemaDefinition, len(active))
	for _, def := range active {
		byTable[def.TableName] = def
	}

	tables, err := planner.ListTables(ctx, db, "%")
	if err != nil {
		return nil, fmt.Errorf("list baseline tables for role %s: %w", role, err)
	}

	var proposals []Proposal
	seen := make(map[string]bool, len(tables))
	for _, table := range tables {
		if isPartitionChild(table, byTable) {
			continue
		}
		seen[table] = true

		obs, err := planner.Observe(ctx, db, table)
		if err != nil {
			d.logger.Warn("baseline introspection failed, skipping table",
				"role", role, "table", table, "error", err)
			continue
		}
		decl, err := declarationFromObserved(obs)
		if err != nil {
			d.logger.Warn("baseline table not expressible as a declaration, skipping",
				"role", role, "table", table, "error", err)
			continue
		}

		def, known := byTable[table]
		if !known {
			proposals = append(proposals, Proposal{
				TableName:    table,
				DatabaseRole: role,
				Kind:         ProposalNew,
				Version:      model.Version{Major: 1}.String(),
				Declaration:  *decl,
				version:      model.Version{Major: 1},
			})
			continue
		}

		// A non-empty plan from the active declaration against the live
		// table means they disagree, under the same normalization rules
		// the executor applies.
		plan, err := planner.Plan(&def.Declaration, obs, table)
		if err != nil {
			d.logger.Warn("drift comparison failed, skipping table",
				"role", role, "table", table, "error", err)
			continue
		}
		if len(plan) == 0 {
			continue
		}
		next := def.Version.Bump()
		proposals = append(proposals, Proposal{
			TableName:    table,
			DatabaseRole: role,
			Kind:         ProposalUpgrade,
			Version:      next.String(),
			Declaration:  *decl,
			version:      next,
			baselineID:   def.ID,
		})
	}

	// Active definitions whose table vanished from the baseline.
	for _, def := range active {
		if seen[def.TableName] || def.Declaration.Action == model.ActionDrop {
			continue
		}
		proposals = append(proposals, dropProposal(def))
	}
	return proposals, nil
}

// dropProposal supersedes a vanished table's active definition with a DROP.
func dropProposal(def *model.SchemaDefinition) Proposal {
	next := def.Version.Bump()
	return Proposal{
		TableName:    def.TableName,
		DatabaseRole: def.DatabaseRole,
		Kind:         ProposalDrop,
		Version:      next.String(),
		Declaration: model.Declaration{
			TableName: def.TableName,
			Action:    model.ActionDrop,
			// DROP expansion matches existing children by pattern;
			// a daily table needs the daily pattern.
			Granularity: def.Declaration.Granularity,
		},
		version:    next,
		baselineID: def.ID,
	}
}

// isPartitionChild reports whether a baseline table name is a time or store
// partition of a known logical table. Children are skipped: the logical
// definition already covers them.
func isPartitionChild(table string, active map[string]*model.SchemaDefinition) bool {
	for base, def := range active {
		if def.PartitionType == model.PartitionNone {
			continue
		}
		if !strings.HasPrefix(table, base+"_") {
			continue
		}
		rest := table[len(base)+1:]
		switch def.PartitionType {
		case model.PartitionTime:
			if timeChildPattern.MatchString(rest) {
				return true
			}
		case model.PartitionStore:
			if strings.HasPrefix(rest, "store_") {
				return true
			}
		}
	}
	return false
}

var timeChildPattern = regexp.MustCompile(`^\d{4}_\d{2}(_\d{2})?$`)

// ---------------------------------------------------------------------------
// Reverse mapping: ObservedSchema -> Declaration
// ---------------------------------------------------------------------------

var (
	lengthPattern  = regexp.MustCompile(`^[a-z]+\((\d+)\)`)
	decimalPattern = regexp.MustCompile(`^decimal\((\d+),(\d+)\)`)
)

// canonicalType maps the engine's DATA_TYPE keyword to a declaration type.
var canonicalType = map[string]string{
	"tinyint":   model.TypeTinyInt,
	"smallint":  model.TypeSmallInt,
	"int":       model.TypeInt,
	"bigint":    model.TypeBigInt,
	"decimal":   model.TypeDecimal,
	"varchar":   model.TypeVarchar,
	"char":      model.TypeChar,
	"text":      model.TypeText,
	"longtext":  model.TypeLongText,
	"date":      model.TypeDate,
	"datetime":  model.TypeDateTime,
	"timestamp": model.TypeTimestamp,
	"json":      model.TypeJSON,
	"blob":      model.TypeBlob,
}

// declarationFromObserved rebuilds the declaration a live table would have
// been created from. It fails on column types outside the canonical set.
func declarationFromObserved(obs *model.ObservedSchema) (*model.Declaration, error) {
	decl := &model.Declaration{
		TableName: obs.Table,
		Action:    model.ActionCreateOrUpgrade,
	}

	for _, col := range obs.Columns {
		typ, ok := canonicalType[strings.ToLower(col.DataType)]
		if !ok {
			return nil, fmt.Errorf("column %s: unsupported type %q", col.Name, col.DataType)
		}
		spec := model.ColumnSpec{
			Name:      col.Name,
			Type:      typ,
			AllowNull: col.Nullable,
			Comment:   col.Comment,
			Unsigned:  strings.Contains(col.ColumnType, "unsigned"),
		}
		ct := strings.ToLower(col.ColumnType)
		switch typ {
		case model.TypeVarchar, model.TypeChar:
			m := lengthPattern.FindStringSubmatch(ct)
			if m == nil {
				return nil, fmt.Errorf("column %s: no length in %q", col.Name, col.ColumnType)
			}
			spec.Length, _ = strconv.Atoi(m[1])
		case model.TypeDecimal:
			m := decimalPattern.FindStringSubmatch(ct)
			if m == nil {
				return nil, fmt.Errorf("column %s: no precision in %q", col.Name, col.ColumnType)
			}
			spec.Precision, _ = strconv.Atoi(m[1])
			spec.Scale, _ = strconv.Atoi(m[2])
		}

		extra := strings.ToLower(col.Extra)
		if strings.Contains(extra, "auto_increment") {
			spec.AutoIncrement = true
		}
		// Same canonicalization the planner diffs with, so a table the
		// detector proposes never immediately re-drifts. Handles the
		// current_timestamp() spelling some engines report.
		spec.DefaultValue = planner.ObservedDefault(&col)
		for _, pk := range obs.PrimaryKey {
			if pk == col.Name {
				spec.PrimaryKey = true
			}
		}
		decl.Columns = append(decl.Columns, spec)
	}

	for _, idx := range obs.Indexes {
		decl.Indexes = append(decl.Indexes, model.IndexSpec{
			Name:   idx.Name,
			Fields: append([]string(nil), idx.Columns...),
			Unique: idx.Unique,
		})
	}

	if err := decl.Validate(); err != nil {
		return nil, err
	}
	return decl, nil
}
