package catalog

import "errors"

// ErrNoSuchSchema is returned when a requested schema definition does not
// exist in the catalog.
var ErrNoSuchSchema = errors.New("schema definition not found")

// ErrNoSuchBaseline is returned by Upgrade when the previous definition ID
// does not exist.
var ErrNoSuchBaseline = errors.New("baseline definition not found")

// ErrVersionNotMonotonic is returned when a new version does not order
// strictly after the current active version for the same (table, role).
var ErrVersionNotMonotonic = errors.New("schema version is not monotonic")

// ErrDefinitionExists is returned by CreateInitialVersion when the
// (table, role) pair already has catalog entries.
var ErrDefinitionExists = errors.New("schema definition already exists")

// ErrLockHeld is returned by AcquireLock when an unexpired lock record with
// a different owner exists for the target.
var ErrLockHeld = errors.New("migration lock held by another owner")
