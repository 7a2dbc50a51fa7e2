// Package partition expands one logical table into the concrete physical
// table names a migration must touch: the table itself, its calendar-period
// children, or its per-store children.
package partition

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/schemafleet/schemafleet/internal/model"
)

// StoreLister resolves a tenant's current store set. The connection
// registry implements it by querying the tenant's main database.
type StoreLister interface {
	ListStores(ctx context.Context, tenantID string) ([]string, error)
}

// TableLister enumerates existing physical tables matching a LIKE pattern
// on a concrete tenant database. Used only for DROP expansion, which must
// never invent tables that do not exist.
type TableLister interface {
	ListTables(ctx context.Context, like string) ([]string, error)
}

// Expander turns (declaration, tenant) into an ordered list of physical
// table names.
type Expander struct {
	stores StoreLister
	// forward is how many future periods beyond the current one a
	// CREATE_OR_UPGRADE on a time-partitioned table prepares.
	forward int
	now     func() time.Time
}

// New builds an Expander. forward <= 0 selects the default of 2 future
// periods.
func New(stores StoreLister, forward int) *Expander {
	if forward <= 0 {
		forward = 2
	}
	return &Expander{stores: stores, forward: forward, now: time.Now}
}

// Expand returns the physical table names for one schema definition on one
// tenant. tables supplies existing-table lookup on the tenant database in
// the definition's role; it is consulted only for DROP expansion.
func (e *Expander) Expand(ctx context.Context, def *model.SchemaDefinition, tenantID string, tables TableLister) ([]string, error) {
	name := def.TableName

	switch def.PartitionType {
	case model.PartitionNone, "":
		return []string{name}, nil

	case model.PartitionTime:
		if def.Declaration.Action == model.ActionDrop {
			return e.existing(ctx, tables, name, timePattern(name, def.Declaration.Granularity))
		}
		return e.periods(name, def.Declaration.Granularity), nil

	case model.PartitionStore:
		if def.Declaration.Action == model.ActionDrop {
			return e.existing(ctx, tables, name, storePattern(name))
		}
		stores, err := e.stores.ListStores(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("list stores for tenant %s: %w", tenantID, err)
		}
		names := make([]string, len(stores))
		for i, id := range stores {
			names[i] = fmt.Sprintf("%s_store_%s", name, id)
		}
		return names, nil

	default:
		return nil, fmt.Errorf("unknown partition type %q", def.PartitionType)
	}
}

// periods returns the current period plus the configured number of forward
// periods, oldest first.
func (e *Expander) periods(name, granularity string) []string {
	now := e.now().UTC()
	names := make([]string, 0, e.forward+1)
	for i := 0; i <= e.forward; i++ {
		if granularity == "daily" {
			t := now.AddDate(0, 0, i)
			names = append(names, fmt.Sprintf("%s_%04d_%02d_%02d", name, t.Year(), t.Month(), t.Day()))
		} else {
			// Anchor on the first of the month: AddDate from a
			// month-end date normalizes day-of-month overflow and
			// skips short months.
			t := time.Date(now.Year(), now.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
			names = append(names, fmt.Sprintf("%s_%04d_%02d", name, t.Year(), t.Month()))
		}
	}
	return names
}

// existing lists live tables matching the partition pattern. The LIKE
// prefix narrows the scan; the regexp rejects lookalikes such as
// orders_store_restore or orders_2024_13_backup.
func (e *Expander) existing(ctx context.Context, tables TableLister, name string, pattern *regexp.Regexp) ([]string, error) {
	if tables == nil {
		return nil, fmt.Errorf("expand DROP of %s: no table lister", name)
	}
	candidates, err := tables.ListTables(ctx, escapeLike(name)+`\_%`)
	if err != nil {
		return nil, fmt.Errorf("list partitions of %s: %w", name, err)
	}
	var matched []string
	for _, c := range candidates {
		if pattern.MatchString(c) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func timePattern(name, granularity string) *regexp.Regexp {
	suffix := `_\d{4}_\d{2}`
	if granularity == "daily" {
		suffix = `_\d{4}_\d{2}_\d{2}`
	}
	return regexp.MustCompile(`^` + regexp.QuoteMeta(name) + suffix + `$`)
}

func storePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `_store_\d+$`)
}

func escapeLike(s string) string {
	re := regexp.MustCompile(`([\\_%])`)
	return re.ReplaceAllString(s, `\$1`)
}
