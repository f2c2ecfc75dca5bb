package database

import (
	"fmt"
	"hash/fnv"

	"gorm.io/gorm"
)

// LockKey hashes a namespaced identifier into a postgres advisory lock key
func LockKey(namespace, id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace + ":" + id))
	return int64(h.Sum64())
}

// TryAdvisoryXactLock takes a transaction-scoped advisory lock on postgres.
// Other dialects have no advisory locks and always succeed; callers still hold the
// process-level lock from internal/lock.
func TryAdvisoryXactLock(tx *gorm.DB, namespace, id string) (bool, error) {
	if tx.Dialector.Name() != "postgres" {
		return true, nil
	}
	var acquired bool
	if err := tx.Raw("SELECT pg_try_advisory_xact_lock(?)", LockKey(namespace, id)).Scan(&acquired).Error; err != nil {
		return false, fmt.Errorf("advisory lock %s:%s: %w", namespace, id, err)
	}
	return acquired, nil
}
