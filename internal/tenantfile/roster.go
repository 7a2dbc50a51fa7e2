// Package tenantfile reads tenant membership from a YAML roster file. The
// roster is the external source of truth for which tenants exist and how to
// reach their databases.
package tenantfile

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/schemafleet/schemafleet/internal/model"
)

// rosterDoc is the on-disk shape of the tenants file.
type rosterDoc struct {
	Tenants []model.Tenant `yaml:"tenants"`
}

// Roster is a tenant source backed by a YAML file. Reads are served from
// the last loaded snapshot; Reload picks up external edits.
type Roster struct {
	path string

	mu      sync.RWMutex
	tenants []model.Tenant
	byID    map[string]*model.Tenant
}

// Load reads and parses the roster file.
func Load(path string) (*Roster, error) {
	r := &Roster{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the roster file, replacing the in-memory snapshot.
func (r *Roster) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read tenant roster: %w", err)
	}
	var doc rosterDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse tenant roster %s: %w", r.path, err)
	}
	byID := make(map[string]*model.Tenant, len(doc.Tenants))
	for i := range doc.Tenants {
		t := &doc.Tenants[i]
		if t.ID == "" {
			return fmt.Errorf("tenant roster %s: tenant %d has no id", r.path, i)
		}
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("tenant roster %s: duplicate tenant id %q", r.path, t.ID)
		}
		byID[t.ID] = t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = doc.Tenants
	r.byID = byID
	return nil
}

// Tenants returns every tenant in roster order.
func (r *Roster) Tenants(_ context.Context) ([]model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Tenant, len(r.tenants))
	copy(out, r.tenants)
	return out, nil
}

// Tenant returns one tenant by ID.
func (r *Roster) Tenant(_ context.Context, id string) (*model.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("tenant %q not in roster", id)
	}
	cp := *t
	return &cp, nil
}

// Add appends a tenant and rewrites the roster file. Used by the tenant CLI.
func (r *Roster) Add(t model.Tenant) error {
	if t.ID == "" {
		return fmt.Errorf("tenant id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[t.ID]; dup {
		return fmt.Errorf("tenant %q already in roster", t.ID)
	}
	tenants := append(append([]model.Tenant(nil), r.tenants...), t)

	data, err := yaml.Marshal(rosterDoc{Tenants: tenants})
	if err != nil {
		return fmt.Errorf("encode tenant roster: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("write tenant roster: %w", err)
	}

	r.tenants = tenants
	r.byID[t.ID] = &r.tenants[len(r.tenants)-1]
	return nil
}
