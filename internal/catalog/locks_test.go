package catalog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireLockConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "orders_store_1001", "hostA/req1", time.Minute); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	err := s.AcquireLock(ctx, "t1", "orders_store_1001", "hostB/req2", time.Minute)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second acquire: got %v, want ErrLockHeld", err)
	}

	// Different physical table on the same tenant is a separate lock.
	if err := s.AcquireLock(ctx, "t1", "orders_store_1002", "hostB/req2", time.Minute); err != nil {
		t.Errorf("sibling acquire: %v", err)
	}
	// Same physical table on another tenant too.
	if err := s.AcquireLock(ctx, "t2", "orders_store_1001", "hostB/req2", time.Minute); err != nil {
		t.Errorf("other-tenant acquire: %v", err)
	}
}

func TestAcquireLockReentrant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "user_info", "hostA/req1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.AcquireLock(ctx, "t1", "user_info", "hostA/req1", time.Minute); err != nil {
		t.Fatalf("re-acquire by same owner: %v", err)
	}
}

func TestAcquireLockReclaimsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "user_info", "hostA/req1", -time.Second); err != nil {
		t.Fatalf("acquire expired: %v", err)
	}

	if err := s.AcquireLock(ctx, "t1", "user_info", "hostB/req2", time.Minute); err != nil {
		t.Fatalf("reclaim expired lock: %v", err)
	}

	rec, err := s.GetLock(ctx, "t1", "user_info")
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if rec == nil || rec.OwnerID != "hostB/req2" {
		t.Errorf("lock record = %+v, want owner hostB/req2", rec)
	}
}

func TestReleaseLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "user_info", "hostA/req1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Wrong owner: no-op, no error.
	released, err := s.ReleaseLock(ctx, "t1", "user_info", "hostB/req2")
	if err != nil {
		t.Fatalf("mismatched release: %v", err)
	}
	if released {
		t.Error("mismatched owner must not release the lock")
	}

	released, err = s.ReleaseLock(ctx, "t1", "user_info", "hostA/req1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Error("owner release reported not released")
	}

	rec, err := s.GetLock(ctx, "t1", "user_info")
	if err != nil {
		t.Fatalf("GetLock: %v", err)
	}
	if rec != nil {
		t.Errorf("lock still present after release: %+v", rec)
	}
}

func TestRenewLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "user_info", "hostA/req1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	before, _ := s.GetLock(ctx, "t1", "user_info")

	if err := s.RenewLock(ctx, "t1", "user_info", "hostA/req1", time.Hour); err != nil {
		t.Fatalf("renew: %v", err)
	}
	after, _ := s.GetLock(ctx, "t1", "user_info")
	if !after.ExpiresAt.After(before.ExpiresAt) {
		t.Errorf("renewal did not extend expiry: %v -> %v", before.ExpiresAt, after.ExpiresAt)
	}

	if err := s.RenewLock(ctx, "t1", "user_info", "hostB/req2", time.Hour); !errors.Is(err, ErrLockHeld) {
		t.Errorf("foreign renew: got %v, want ErrLockHeld", err)
	}
}

func TestCleanupOrphanLocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "a", "hostA/req1", -time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.AcquireLock(ctx, "t1", "b", "hostA/req1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	n, err := s.CleanupOrphanLocks(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphanLocks: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d locks, want 1", n)
	}
	if rec, _ := s.GetLock(ctx, "t1", "b"); rec == nil {
		t.Error("unexpired lock must survive orphan cleanup")
	}
}

func TestCleanupInstanceLocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AcquireLock(ctx, "t1", "a", "hostA/req1", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.AcquireLock(ctx, "t2", "b", "hostA/req9", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.AcquireLock(ctx, "t3", "c", "hostB/req1", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	n, err := s.CleanupInstanceLocks(ctx, "hostA")
	if err != nil {
		t.Fatalf("CleanupInstanceLocks: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d locks, want 2", n)
	}
	if rec, _ := s.GetLock(ctx, "t3", "c"); rec == nil {
		t.Error("other instance's lock must survive startup cleanup")
	}
}

func TestCleanupInstanceLocksLiteralMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// An underscore in the instance identity must match only itself, not
	// any single character.
	if err := s.AcquireLock(ctx, "t1", "a", "db_01#7/req1", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.AcquireLock(ctx, "t2", "b", "db-01#7/req2", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	n, err := s.CleanupInstanceLocks(ctx, "db_01#7")
	if err != nil {
		t.Fatalf("CleanupInstanceLocks: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d locks, want 1", n)
	}
	if rec, _ := s.GetLock(ctx, "t2", "b"); rec == nil {
		t.Error("lock of the lookalike instance must survive")
	}
}
