// Package planner computes ordered DDL plans from a declared table
// definition against the observed live schema of one physical table. Plans
// are idempotent: applying a plan and re-planning against the re-probed
// table yields an empty plan.
package planner

import (
	"fmt"

	"github.com/schemafleet/schemafleet/internal/model"
)

// Plan returns the ordered DDL statements that reconcile the physical table
// with the declaration. An empty plan means the target is already in the
// declared state (or, for DROP, already gone).
func Plan(d *model.Declaration, obs *model.ObservedSchema, physical string) ([]string, error) {
	if d == nil || obs == nil {
		return nil, fmt.Errorf("planner: nil declaration or observation")
	}

	if d.Action == model.ActionDrop {
		if !obs.Exists {
			return nil, nil
		}
		return []string{renderDropTable(physical)}, nil
	}

	if !obs.Exists {
		return []string{renderCreateTable(d, physical)}, nil
	}
	return upgradePlan(d, obs, physical), nil
}

// upgradePlan emits, in order: column adds (declaration order, positioned
// AFTER their declared predecessor), column modifications, index adds, and
// changed-index drop/add pairs. Columns and indexes that exist live but are
// not declared are preserved; destructive removal is only ever expressed
// through the DROP action.
func upgradePlan(d *model.Declaration, obs *model.ObservedSchema, physical string) []string {
	var adds, mods []string
	prev := ""
	for _, spec := range d.Columns {
		live := obs.Column(spec.Name)
		if live == nil {
			adds = append(adds, renderAddColumn(physical, spec, prev))
		} else if columnDiffers(spec, live) {
			mods = append(mods, renderModifyColumn(physical, spec))
		}
		prev = spec.Name
	}

	var idxAdds, idxChanges []string
	for _, spec := range d.Indexes {
		live := obs.Index(spec.Name)
		if live == nil {
			idxAdds = append(idxAdds, renderAddIndex(physical, spec))
		} else if indexDiffers(spec, live) {
			idxChanges = append(idxChanges,
				renderDropIndex(physical, spec.Name),
				renderAddIndex(physical, spec))
		}
	}

	stmts := make([]string, 0, len(adds)+len(mods)+len(idxAdds)+len(idxChanges))
	stmts = append(stmts, adds...)
	stmts = append(stmts, mods...)
	stmts = append(stmts, idxAdds...)
	stmts = append(stmts, idxChanges...)
	return stmts
}
