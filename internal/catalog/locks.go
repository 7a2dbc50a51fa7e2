package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schemafleet/schemafleet/internal/model"
)

// lockRow maps 1:1 to the migration_locks table columns.
type lockRow struct {
	TenantID      string    `db:"tenant_id"`
	PhysicalTable string    `db:"physical_table"`
	OwnerID       string    `db:"owner_id"`
	AcquiredAt    time.Time `db:"acquired_at"`
	ExpiresAt     time.Time `db:"expires_at"`
}

// AcquireLock takes the per-(tenant, physical table) migration lock for
// ownerID with the given TTL. The acquire-or-fail decision is made by
// conditional writes only, never read-then-write: first an INSERT (wins when
// no record exists), then on duplicate key a conditional UPDATE that
// succeeds only when the existing record is expired or already ours.
func (s *Store) AcquireLock(ctx context.Context, tenantID, physicalTable, ownerID string, ttl time.Duration) error {
	ts := now()
	expires := ts.Add(ttl)

	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO migration_locks (tenant_id, physical_table, owner_id, acquired_at, expires_at)
			VALUES (?, ?, ?, ?, ?)`),
		tenantID, physicalTable, ownerID, ts, expires)
	if err == nil {
		return nil
	}
	if !isDuplicateKey(err) {
		return fmt.Errorf("acquire lock %s/%s: %w", tenantID, physicalTable, err)
	}

	// A record exists: atomically replace it when expired or re-entrant.
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE migration_locks
			SET owner_id = ?, acquired_at = ?, expires_at = ?
			WHERE tenant_id = ? AND physical_table = ? AND (expires_at <= ? OR owner_id = ?)`),
		ownerID, ts, expires, tenantID, physicalTable, ts, ownerID)
	if err != nil {
		return fmt.Errorf("acquire lock %s/%s: %w", tenantID, physicalTable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire lock %s/%s: %w", tenantID, physicalTable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrLockHeld, tenantID, physicalTable)
	}
	return nil
}

// RenewLock extends the TTL of a lock held by ownerID. The executor renews
// when a long plan has consumed more than half the TTL.
func (s *Store) RenewLock(ctx context.Context, tenantID, physicalTable, ownerID string, ttl time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE migration_locks SET expires_at = ?
			WHERE tenant_id = ? AND physical_table = ? AND owner_id = ?`),
		now().Add(ttl), tenantID, physicalTable, ownerID)
	if err != nil {
		return fmt.Errorf("renew lock %s/%s: %w", tenantID, physicalTable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s/%s no longer ours", ErrLockHeld, tenantID, physicalTable)
	}
	return nil
}

// ReleaseLock deletes the lock record when ownerID still holds it. A
// mismatched owner is reported as released=false, not an error; callers log
// it and move on.
func (s *Store) ReleaseLock(ctx context.Context, tenantID, physicalTable, ownerID string) (released bool, err error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM migration_locks
			WHERE tenant_id = ? AND physical_table = ? AND owner_id = ?`),
		tenantID, physicalTable, ownerID)
	if err != nil {
		return false, fmt.Errorf("release lock %s/%s: %w", tenantID, physicalTable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lock %s/%s: %w", tenantID, physicalTable, err)
	}
	return n > 0, nil
}

// GetLock returns the current lock record for a target, or nil when the
// target is unlocked.
func (s *Store) GetLock(ctx context.Context, tenantID, physicalTable string) (*model.LockRecord, error) {
	var row lockRow
	err := s.db.GetContext(ctx, &row,
		s.rebind(`SELECT * FROM migration_locks WHERE tenant_id = ? AND physical_table = ?`),
		tenantID, physicalTable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lock %s/%s: %w", tenantID, physicalTable, err)
	}
	return &model.LockRecord{
		TenantID:      row.TenantID,
		PhysicalTable: row.PhysicalTable,
		OwnerID:       row.OwnerID,
		AcquiredAt:    row.AcquiredAt,
		ExpiresAt:     row.ExpiresAt,
	}, nil
}

// CleanupOrphanLocks removes every expired lock record.
func (s *Store) CleanupOrphanLocks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM migration_locks WHERE expires_at <= ?`), now())
	if err != nil {
		return 0, fmt.Errorf("cleanup orphan locks: %w", err)
	}
	return res.RowsAffected()
}

// CleanupInstanceLocks unconditionally removes every lock owned by this
// process identity family. Called once at startup: no other instance with
// the same identity can be running, so any such lock is a leftover from a
// crash.
func (s *Store) CleanupInstanceLocks(ctx context.Context, instanceID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM migration_locks WHERE owner_id LIKE ? ESCAPE '!'`),
		escapeLikePrefix(instanceID)+"/%")
	if err != nil {
		return 0, fmt.Errorf("cleanup instance locks: %w", err)
	}
	return res.RowsAffected()
}

// escapeLikePrefix neutralizes LIKE metacharacters in the instance identity
// so a hostname containing _ or % cannot match other instances' locks. The
// '!' escape character renders identically in all three catalog engines;
// backslash does not.
func escapeLikePrefix(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
