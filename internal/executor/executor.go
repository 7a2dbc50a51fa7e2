// Package executor fans one schema definition out across every tenant: it
// expands partitions, guards each physical table with the migration lock,
// plans DDL against the live schema, executes it, and appends history.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schemafleet/schemafleet/internal/catalog"
	"github.com/schemafleet/schemafleet/internal/model"
	"github.com/schemafleet/schemafleet/internal/partition"
	"github.com/schemafleet/schemafleet/internal/planner"
	"github.com/schemafleet/schemafleet/internal/server/middleware"
)

// ErrInactiveSchema is returned when executeOne targets a superseded
// definition without the include-inactive override.
var ErrInactiveSchema = errors.New("schema definition is not active")

// Store is the slice of the catalog the executor needs: definition lookup,
// locking, and history. *catalog.Store satisfies it.
type Store interface {
	GetByID(ctx context.Context, id int64) (*model.SchemaDefinition, error)
	GetByKey(ctx context.Context, table string, role model.DatabaseRole, version model.Version) (*model.SchemaDefinition, error)
	ListAllActive(ctx context.Context) ([]*model.SchemaDefinition, error)
	AcquireLock(ctx context.Context, tenantID, physicalTable, ownerID string, ttl time.Duration) error
	RenewLock(ctx context.Context, tenantID, physicalTable, ownerID string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, tenantID, physicalTable, ownerID string) (bool, error)
	AppendHistory(ctx context.Context, e *model.HistoryEntry) error
}

// Database is one tenant database connection as the executor sees it.
type Database interface {
	Observe(ctx context.Context, physical string) (*model.ObservedSchema, error)
	ListTables(ctx context.Context, like string) ([]string, error)
	Exec(ctx context.Context, stmt string) error
}

// Resolver opens tenant databases by (tenant, role).
type Resolver interface {
	Database(ctx context.Context, tenantID string, role model.DatabaseRole) (Database, error)
}

// TenantSource enumerates the target tenant set.
type TenantSource interface {
	Tenants(ctx context.Context) ([]model.Tenant, error)
}

// Config bounds one executor.
type Config struct {
	// Workers caps how many targets run in parallel. Defaults to 8.
	Workers int
	// StatementTimeout bounds each DDL statement. Defaults to 60s.
	StatementTimeout time.Duration
	// LockTTL is the per-target lock lifetime; the lock is renewed once a
	// plan has consumed more than half of it. Defaults to 10 minutes.
	LockTTL time.Duration
	// InstanceID is this process's identity ("host#pid"); lock owners are
	// InstanceID + "/" + request ID.
	InstanceID string
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = 60 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
}

// Executor owns its collaborators and is safe for concurrent use.
type Executor struct {
	store    Store
	resolver Resolver
	tenants  TenantSource
	expander *partition.Expander
	cfg      Config
	logger   *slog.Logger
}

// New builds an Executor.
func New(store Store, resolver Resolver, tenants TenantSource, expander *partition.Expander, cfg Config, logger *slog.Logger) *Executor {
	cfg.applyDefaults()
	return &Executor{
		store:    store,
		resolver: resolver,
		tenants:  tenants,
		expander: expander,
		cfg:      cfg,
		logger:   logger,
	}
}

// ExecuteOne fans out a single definition by catalog ID. Inactive
// definitions are rejected unless includeInactive is set.
func (e *Executor) ExecuteOne(ctx context.Context, schemaID int64, includeInactive bool) (*model.ExecutionSummary, error) {
	def, err := e.store.GetByID(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	if !def.Active && !includeInactive {
		return nil, fmt.Errorf("%w: id %d (version %s)", ErrInactiveSchema, def.ID, def.Version)
	}
	return e.run(ctx, def), nil
}

// ExecuteByKey resolves (table, role, version) and fans it out.
func (e *Executor) ExecuteByKey(ctx context.Context, table string, role model.DatabaseRole, version model.Version, includeInactive bool) (*model.ExecutionSummary, error) {
	def, err := e.store.GetByKey(ctx, table, role, version)
	if err != nil {
		return nil, err
	}
	if !def.Active && !includeInactive {
		return nil, fmt.Errorf("%w: %s/%s@%s", ErrInactiveSchema, table, role, version)
	}
	return e.run(ctx, def), nil
}

// ExecuteAll fans out every active definition, sequentially per definition
// so the worker budget applies to targets, not tables.
func (e *Executor) ExecuteAll(ctx context.Context) ([]*model.ExecutionSummary, error) {
	defs, err := e.store.ListAllActive(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]*model.ExecutionSummary, 0, len(defs))
	for _, def := range defs {
		if ctx.Err() != nil {
			break
		}
		summaries = append(summaries, e.run(ctx, def))
	}
	return summaries, nil
}

// run fans one definition across all tenants. A target's failure never
// blocks other targets; the summary carries per-target outcomes.
func (e *Executor) run(ctx context.Context, def *model.SchemaDefinition) *model.ExecutionSummary {
	summary := &model.ExecutionSummary{
		SchemaID:      def.ID,
		TableName:     def.TableName,
		SchemaVersion: def.Version.String(),
	}

	owner := e.cfg.InstanceID + "/" + e.requestID(ctx)

	tenants, err := e.tenants.Tenants(ctx)
	if err != nil {
		e.logger.Error("enumerate tenants", "error", err)
		return summary
	}

	var mu sync.Mutex
	record := func(r model.TargetResult) {
		mu.Lock()
		defer mu.Unlock()
		summary.Add(r)
	}

	// Workers never return errors: partial failure is data, not control
	// flow. The group is only a bounded wait.
	g := &errgroup.Group{}
	g.SetLimit(e.cfg.Workers)
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			break
		}
		t := tenant
		g.Go(func() error {
			e.runTenant(ctx, def, t, owner, record)
			return nil
		})
	}
	g.Wait()

	e.logger.Info("fan-out finished",
		"table", def.TableName, "role", def.DatabaseRole, "version", def.Version.String(),
		"total", summary.Total, "successes", summary.Successes,
		"failures", summary.Failures, "skips", summary.Skips)
	return summary
}

func (e *Executor) runTenant(ctx context.Context, def *model.SchemaDefinition, tenant model.Tenant, owner string, record func(model.TargetResult)) {
	db, err := e.resolver.Database(ctx, tenant.ID, def.DatabaseRole)
	if err != nil {
		// Tenant unreachable: fail the logical table, move on.
		e.recordOutcome(ctx, def, tenant.ID, def.TableName, model.OutcomeFailed,
			"", fmt.Sprintf("connect: %v", err), time.Now(), record)
		return
	}

	physicals, err := e.expander.Expand(ctx, def, tenant.ID, db)
	if err != nil {
		e.recordOutcome(ctx, def, tenant.ID, def.TableName, model.OutcomeFailed,
			"", fmt.Sprintf("expand partitions: %v", err), time.Now(), record)
		return
	}

	for _, physical := range physicals {
		if ctx.Err() != nil {
			return
		}
		e.runTarget(ctx, def, tenant.ID, db, physical, owner, record)
	}
}

// runTarget migrates one physical table under its lock. Statements run
// strictly sequentially; the first failure abandons the rest of the plan
// for this target only.
func (e *Executor) runTarget(ctx context.Context, def *model.SchemaDefinition, tenantID string, db Database, physical, owner string, record func(model.TargetResult)) {
	started := time.Now()

	if err := e.store.AcquireLock(ctx, tenantID, physical, owner, e.cfg.LockTTL); err != nil {
		if errors.Is(err, catalog.ErrLockHeld) {
			e.logger.Info("target locked elsewhere, skipping",
				"tenant", tenantID, "table", physical)
			e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeSkipped,
				"", "lock held by another migration", started, record)
		} else {
			e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeFailed,
				"", fmt.Sprintf("acquire lock: %v", err), started, record)
		}
		return
	}
	// The lock must be released on every exit path.
	defer func() {
		released, err := e.store.ReleaseLock(context.WithoutCancel(ctx), tenantID, physical, owner)
		if err != nil {
			e.logger.Error("release lock", "tenant", tenantID, "table", physical, "error", err)
		} else if !released {
			e.logger.Warn("lock no longer ours at release",
				"tenant", tenantID, "table", physical, "owner", owner)
		}
	}()

	obs, err := db.Observe(ctx, physical)
	if err != nil {
		e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeFailed,
			"", fmt.Sprintf("probe: %v", err), started, record)
		return
	}

	stmts, err := planner.Plan(&def.Declaration, obs, physical)
	if err != nil {
		e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeFailed,
			"", fmt.Sprintf("plan: %v", err), started, record)
		return
	}
	if len(stmts) == 0 {
		e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeSkipped,
			"", "nothing to do", started, record)
		return
	}

	lockHeldSince := time.Now()
	for _, stmt := range stmts {
		if ctx.Err() != nil {
			e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeSkipped,
				stmt, "cancelled before statement", started, record)
			return
		}

		// Long plans renew the lock once more than half the TTL is spent.
		if time.Since(lockHeldSince) > e.cfg.LockTTL/2 {
			if err := e.store.RenewLock(ctx, tenantID, physical, owner, e.cfg.LockTTL); err != nil {
				e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeFailed,
					stmt, fmt.Sprintf("renew lock: %v", err), started, record)
				return
			}
			lockHeldSince = time.Now()
		}

		stmtStart := time.Now()
		stmtCtx, cancel := context.WithTimeout(ctx, e.cfg.StatementTimeout)
		err := db.Exec(stmtCtx, stmt)
		cancel()
		if err != nil {
			e.logger.Warn("statement failed",
				"tenant", tenantID, "table", physical, "error", err)
			e.recordOutcome(ctx, def, tenantID, physical, model.OutcomeFailed,
				stmt, err.Error(), stmtStart, record)
			return
		}
		e.appendHistory(ctx, def, tenantID, physical, model.OutcomeSuccess, stmt, "", stmtStart)
	}

	record(model.TargetResult{
		TenantID:      tenantID,
		PhysicalTable: physical,
		Outcome:       model.OutcomeSuccess,
		Statements:    len(stmts),
	})
}

// recordOutcome appends one history entry and folds the target into the
// summary.
func (e *Executor) recordOutcome(ctx context.Context, def *model.SchemaDefinition, tenantID, physical string, outcome model.Outcome, sqlText, message string, started time.Time, record func(model.TargetResult)) {
	e.appendHistory(ctx, def, tenantID, physical, outcome, sqlText, message, started)
	r := model.TargetResult{
		TenantID:      tenantID,
		PhysicalTable: physical,
		Outcome:       outcome,
	}
	// Failures carry the error, skips carry the skip reason.
	if outcome != model.OutcomeSuccess {
		r.Error = message
	}
	record(r)
}

func (e *Executor) appendHistory(ctx context.Context, def *model.SchemaDefinition, tenantID, physical string, outcome model.Outcome, sqlText, message string, started time.Time) {
	entry := &model.HistoryEntry{
		TenantID:      tenantID,
		DatabaseRole:  def.DatabaseRole,
		PhysicalTable: physical,
		SchemaVersion: def.Version.String(),
		SQLText:       sqlText,
		Outcome:       outcome,
		ErrorMessage:  message,
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}
	// History survives cancellation; losing it would hide what ran.
	if err := e.store.AppendHistory(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Error("append history",
			"tenant", tenantID, "table", physical, "error", err)
	}
}

// requestID correlates every lock taken during one invocation. HTTP calls
// carry one in the context; CLI and scheduler invocations get a fresh UUID.
func (e *Executor) requestID(ctx context.Context) string {
	if id := middleware.GetRequestID(ctx); id != "" {
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}
