package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/schemafleet/schemafleet/internal/catalog"
	"github.com/schemafleet/schemafleet/internal/detector"
	"github.com/schemafleet/schemafleet/internal/executor"
	"github.com/schemafleet/schemafleet/internal/model"
	"github.com/schemafleet/schemafleet/internal/partition"
	"github.com/schemafleet/schemafleet/internal/registry"
	"github.com/schemafleet/schemafleet/internal/tenantfile"
)

// appEnv is the wired core shared by serve, execute, and detect: catalog
// store, tenant roster, connection registry, fan-out executor, and detector.
type appEnv struct {
	logger   *slog.Logger
	store    *catalog.Store
	roster   *tenantfile.Roster
	registry *registry.Registry
	executor *executor.Executor
	detector *detector.Detector
	instance string
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// baselineConfig mirrors one entry under the "baselines" config key.
type baselineConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func buildEnv(logger *slog.Logger) (*appEnv, error) {
	store, err := catalog.Open(catalog.Config{
		Driver:  viper.GetString("catalog.driver"),
		DSN:     viper.GetString("catalog.dsn"),
		DataDir: resolveDataDir(),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	rosterPath := viper.GetString("tenants.file")
	if rosterPath == "" {
		rosterPath = "tenants.yaml"
	}
	roster, err := tenantfile.Load(rosterPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	pool := registry.DefaultPoolConfig()
	if n := viper.GetInt("registry.max_open_conns"); n > 0 {
		pool.MaxOpenConns = n
	}
	if n := viper.GetInt("registry.max_idle_conns"); n > 0 {
		pool.MaxIdleConns = n
	}
	reg := registry.New(roster, pool, viper.GetString("registry.stores_query"), logger)

	baselines := map[string]baselineConfig{}
	if err := viper.UnmarshalKey("baselines", &baselines); err != nil {
		reg.Close()
		store.Close()
		return nil, fmt.Errorf("parse baselines config: %w", err)
	}
	for name, b := range baselines {
		role := model.DatabaseRole(name)
		if !model.ValidRole(role) {
			reg.Close()
			store.Close()
			return nil, fmt.Errorf("baselines config: unknown database role %q", name)
		}
		params := model.DatabaseParams{
			Host: b.Host, Port: b.Port,
			User: b.User, Password: b.Password,
			Database: b.Database,
		}
		if err := reg.ConnectBaseline(role, params); err != nil {
			reg.Close()
			store.Close()
			return nil, fmt.Errorf("connect %s baseline: %w", name, err)
		}
		logger.Info("baseline connected", "role", name, "host", b.Host, "database", b.Database)
	}

	expander := partition.New(reg, viper.GetInt("partition.forward"))
	instance := instanceID()
	exec := executor.New(store, dbResolver{reg}, roster, expander, executor.Config{
		Workers:          viper.GetInt("executor.workers"),
		StatementTimeout: viper.GetDuration("executor.statement_timeout"),
		LockTTL:          viper.GetDuration("executor.lock_ttl"),
		InstanceID:       instance,
	}, logger)
	det := detector.New(store, reg, logger)

	return &appEnv{
		logger:   logger,
		store:    store,
		roster:   roster,
		registry: reg,
		executor: exec,
		detector: det,
		instance: instance,
	}, nil
}

func (e *appEnv) Close() {
	e.registry.Close()
	e.store.Close()
}

// releaseOwnLocks clears lock rows a previous run of this instance left
// behind after a crash.
func (e *appEnv) releaseOwnLocks(ctx context.Context) {
	n, err := e.store.CleanupInstanceLocks(ctx, e.instance)
	if err != nil {
		e.logger.Warn("stale lock cleanup failed", "error", err)
		return
	}
	if n > 0 {
		e.logger.Info("released stale locks from previous run", "count", n)
	}
}

// dbResolver bridges the registry's concrete connections to the executor.
type dbResolver struct {
	reg *registry.Registry
}

func (r dbResolver) Database(ctx context.Context, tenantID string, role model.DatabaseRole) (executor.Database, error) {
	db, err := r.reg.Database(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// detectJob adapts the detector to the scheduler's job interface.
type detectJob struct {
	det *detector.Detector
}

func (j detectJob) DetectAndSave(ctx context.Context) error {
	_, err := j.det.DetectAndSave(ctx)
	return err
}

func resolveDataDir() string {
	if dir := viper.GetString("catalog.data_dir"); dir != "" {
		return dir
	}
	// A configured DSN means the catalog is not file-backed sqlite.
	if viper.GetString("catalog.dsn") != "" {
		return ""
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".schemafleet")
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "schemafleet"
	}
	return fmt.Sprintf("%s#%d", host, os.Getpid())
}

func printSummary(w io.Writer, sum *model.ExecutionSummary) {
	fmt.Fprintf(w, "%s @ %s: %d targets, %d ok, %d failed, %d skipped\n",
		sum.TableName, sum.SchemaVersion, sum.Total, sum.Successes, sum.Failures, sum.Skips)
	for _, t := range sum.Targets {
		switch t.Outcome {
		case model.OutcomeFailed:
			fmt.Fprintf(w, "  FAIL %s/%s: %s\n", t.TenantID, t.PhysicalTable, t.Error)
		case model.OutcomeSkipped:
			fmt.Fprintf(w, "  skip %s/%s: %s\n", t.TenantID, t.PhysicalTable, t.Error)
		default:
			fmt.Fprintf(w, "  ok   %s/%s (%d statements)\n", t.TenantID, t.PhysicalTable, t.Statements)
		}
	}
}
