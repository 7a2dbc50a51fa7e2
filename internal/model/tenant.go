package model

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// DatabaseParams are the connection parameters for one of a tenant's
// databases.
type DatabaseParams struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN renders the parameters as a go-sql-driver/mysql DSN with parseTime
// enabled so DATETIME/TIMESTAMP columns scan into time.Time.
func (p DatabaseParams) DSN() string {
	cfg := mysqldriver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, p.Port)
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.DBName = p.Database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

// Tenant is one logical customer whose databases are kept in sync with the
// catalog. Membership is read from an external roster, not the catalog.
type Tenant struct {
	ID        string                          `yaml:"id"`
	Databases map[DatabaseRole]DatabaseParams `yaml:"databases"`
}

// Params returns the connection parameters for a role, or false when the
// tenant has no database in that role.
func (t Tenant) Params(role DatabaseRole) (DatabaseParams, bool) {
	p, ok := t.Databases[role]
	return p, ok
}
