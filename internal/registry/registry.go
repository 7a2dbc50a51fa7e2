// Package registry resolves (tenant, database role) pairs to pooled MySQL
// connections, and owns the baseline connections separately.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/schemafleet/schemafleet/internal/model"
	"github.com/schemafleet/schemafleet/internal/planner"
)

// TenantSource is where tenant membership comes from. The roster is
// external truth; the registry never caches it beyond a single call.
type TenantSource interface {
	Tenants(ctx context.Context) ([]model.Tenant, error)
	Tenant(ctx context.Context, id string) (*model.Tenant, error)
}

// PoolConfig bounds every tenant connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// IdleTimeout is how long an unused tenant pool stays open before the
	// sweeper closes it.
	IdleTimeout time.Duration
}

// DefaultPoolConfig returns the pool bounds used when the config file does
// not override them.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		IdleTimeout:     10 * time.Minute,
	}
}

type pooledDB struct {
	db       *sqlx.DB
	lastUsed time.Time
}

// Registry opens tenant connections on demand, pools them per
// (tenant, role), health-checks before handing one out, and closes pools
// that sit idle past the timeout. Baseline connections are held separately
// and never swept.
type Registry struct {
	source TenantSource
	cfg    PoolConfig
	logger *slog.Logger

	// storesQuery lists a tenant's store IDs on its main database.
	storesQuery string

	mu       sync.Mutex
	pools    map[string]*pooledDB            // key: tenantID + "/" + role
	baseline map[model.DatabaseRole]*sqlx.DB
}

// New builds a Registry over a tenant source.
func New(source TenantSource, cfg PoolConfig, storesQuery string, logger *slog.Logger) *Registry {
	if storesQuery == "" {
		storesQuery = "SELECT store_id FROM store_info ORDER BY store_id"
	}
	return &Registry{
		source:      source,
		cfg:         cfg,
		logger:      logger,
		storesQuery: storesQuery,
		pools:       make(map[string]*pooledDB),
		baseline:    make(map[model.DatabaseRole]*sqlx.DB),
	}
}

// ConnectBaseline opens the authoritative template database for one role.
// Called once at startup per configured role.
func (r *Registry) ConnectBaseline(role model.DatabaseRole, params model.DatabaseParams) error {
	db, err := open(params, r.cfg)
	if err != nil {
		return fmt.Errorf("connect baseline %s: %w", role, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.baseline[role]; ok {
		existing.Close()
	}
	r.baseline[role] = db
	return nil
}

// Baseline returns the baseline handle for a role.
func (r *Registry) Baseline(role model.DatabaseRole) (*sqlx.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.baseline[role]
	if !ok {
		return nil, fmt.Errorf("no baseline database configured for role %s", role)
	}
	return db, nil
}

// BaselineRoles returns the roles with a configured baseline, in the
// canonical role order.
func (r *Registry) BaselineRoles() []model.DatabaseRole {
	r.mu.Lock()
	defer r.mu.Unlock()
	var roles []model.DatabaseRole
	for _, role := range model.AllRoles {
		if _, ok := r.baseline[role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// Get returns a healthy pooled connection for (tenant, role), opening one
// on first use. The health check is a ping; a pool that fails it is
// discarded and reopened once before giving up.
func (r *Registry) Get(ctx context.Context, tenantID string, role model.DatabaseRole) (*sqlx.DB, error) {
	key := tenantID + "/" + string(role)

	r.mu.Lock()
	p, ok := r.pools[key]
	if ok {
		p.lastUsed = time.Now()
		db := p.db
		r.mu.Unlock()
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
		r.logger.Warn("tenant pool failed health check, reopening",
			"tenant", tenantID, "role", role)
		r.mu.Lock()
		if cur, still := r.pools[key]; still && cur.db == db {
			delete(r.pools, key)
			db.Close()
		}
	}
	r.mu.Unlock()

	tenant, err := r.source.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	params, ok := tenant.Params(role)
	if !ok {
		return nil, fmt.Errorf("tenant %s has no %s database", tenantID, role)
	}
	db, err := open(params, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect tenant %s/%s: %w", tenantID, role, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping tenant %s/%s: %w", tenantID, role, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[key]; ok {
		// Another caller opened it first; keep theirs.
		db.Close()
		existing.lastUsed = time.Now()
		return existing.db, nil
	}
	r.pools[key] = &pooledDB{db: db, lastUsed: time.Now()}
	return db, nil
}

// ListStores resolves a tenant's current store set by querying its main
// database. The partition expander uses this for store-partitioned tables.
func (r *Registry) ListStores(ctx context.Context, tenantID string) ([]string, error) {
	db, err := r.Get(ctx, tenantID, model.RoleMain)
	if err != nil {
		return nil, err
	}
	var stores []string
	if err := db.SelectContext(ctx, &stores, r.storesQuery); err != nil {
		return nil, fmt.Errorf("list stores of tenant %s: %w", tenantID, err)
	}
	return stores, nil
}

// Database bundles the operations the migration path performs against one
// tenant connection: schema probing, table listing, and DDL execution.
type Database struct {
	db *sqlx.DB
}

// Database returns the (tenant, role) connection wrapped for migration use.
func (r *Registry) Database(ctx context.Context, tenantID string, role model.DatabaseRole) (Database, error) {
	db, err := r.Get(ctx, tenantID, role)
	if err != nil {
		return Database{}, err
	}
	return Database{db: db}, nil
}

func (d Database) Observe(ctx context.Context, physical string) (*model.ObservedSchema, error) {
	return planner.Observe(ctx, d.db, physical)
}

func (d Database) ListTables(ctx context.Context, like string) ([]string, error) {
	return planner.ListTables(ctx, d.db, like)
}

func (d Database) Exec(ctx context.Context, stmt string) error {
	_, err := d.db.ExecContext(ctx, stmt)
	return err
}

// SweepIdle closes tenant pools unused for longer than the idle timeout and
// returns how many were closed. The serve loop runs it on a ticker.
func (r *Registry) SweepIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)
	closed := 0
	for key, p := range r.pools {
		if p.lastUsed.Before(cutoff) {
			p.db.Close()
			delete(r.pools, key)
			closed++
		}
	}
	return closed
}

// Close shuts every pool and baseline handle.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.pools {
		p.db.Close()
		delete(r.pools, key)
	}
	for role, db := range r.baseline {
		db.Close()
		delete(r.baseline, role)
	}
}

func open(params model.DatabaseParams, cfg PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", params.DSN())
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return db, nil
}
