package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/mindcare-api/internal/lock"
	"github.com/noah-isme/mindcare-api/internal/models"
)

func accountLockKey(accountID uint) string {
	return fmt.Sprintf("account:%d", accountID)
}

func approvalEntityLockKey(entityType models.EntityType, entityID uint) string {
	return "approval:" + models.ApprovalKey(entityType, entityID)
}

// withLocks acquires keys in order, runs fn, then releases in reverse order.
// Callers take locks before opening a transaction.
func withLocks(ctx context.Context, locker lock.Locker, keys []string, fn func() error) error {
	releases := make([]func(), 0, len(keys))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for _, key := range keys {
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}
	return fn()
}
