package catalog

import "fmt"

// migrate creates the three catalog tables if they do not exist. The DDL is
// per-driver because auto-increment and timestamp types differ.
func (s *Store) migrate() error {
	stmts, ok := migrations[s.driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %s", s.driver)
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, stmt)
		}
	}
	return nil
}

var migrations = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS schema_definitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			database_role TEXT NOT NULL,
			partition_type TEXT NOT NULL,
			schema_version TEXT NOT NULL,
			declaration TEXT NOT NULL,
			upgrade_notes TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (table_name, database_role, schema_version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_defs_active
			ON schema_definitions (table_name, database_role, active)`,
		`CREATE TABLE IF NOT EXISTS migration_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			database_role TEXT NOT NULL,
			physical_table TEXT NOT NULL,
			schema_version TEXT NOT NULL,
			sql_text TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_target
			ON migration_history (tenant_id, physical_table)`,
		`CREATE INDEX IF NOT EXISTS idx_history_finished
			ON migration_history (finished_at)`,
		`CREATE TABLE IF NOT EXISTS migration_locks (
			tenant_id TEXT NOT NULL,
			physical_table TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			acquired_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			PRIMARY KEY (tenant_id, physical_table)
		)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS schema_definitions (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			table_name VARCHAR(128) NOT NULL,
			database_role VARCHAR(16) NOT NULL,
			partition_type VARCHAR(16) NOT NULL,
			schema_version VARCHAR(32) NOT NULL,
			declaration MEDIUMTEXT NOT NULL,
			upgrade_notes TEXT,
			active TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uk_defs_version (table_name, database_role, schema_version),
			KEY idx_defs_active (table_name, database_role, active)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS migration_history (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			tenant_id VARCHAR(64) NOT NULL,
			database_role VARCHAR(16) NOT NULL,
			physical_table VARCHAR(160) NOT NULL,
			schema_version VARCHAR(32) NOT NULL,
			sql_text MEDIUMTEXT NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			error_message TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			KEY idx_history_target (tenant_id, physical_table),
			KEY idx_history_finished (finished_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS migration_locks (
			tenant_id VARCHAR(64) NOT NULL,
			physical_table VARCHAR(160) NOT NULL,
			owner_id VARCHAR(128) NOT NULL,
			acquired_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, physical_table)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS schema_definitions (
			id BIGSERIAL PRIMARY KEY,
			table_name TEXT NOT NULL,
			database_role TEXT NOT NULL,
			partition_type TEXT NOT NULL,
			schema_version TEXT NOT NULL,
			declaration TEXT NOT NULL,
			upgrade_notes TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (table_name, database_role, schema_version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_defs_active
			ON schema_definitions (table_name, database_role, active)`,
		`CREATE TABLE IF NOT EXISTS migration_history (
			id BIGSERIAL PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			database_role TEXT NOT NULL,
			physical_table TEXT NOT NULL,
			schema_version TEXT NOT NULL,
			sql_text TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_target
			ON migration_history (tenant_id, physical_table)`,
		`CREATE INDEX IF NOT EXISTS idx_history_finished
			ON migration_history (finished_at)`,
		`CREATE TABLE IF NOT EXISTS migration_locks (
			tenant_id TEXT NOT NULL,
			physical_table TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			acquired_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, physical_table)
		)`,
	},
}
