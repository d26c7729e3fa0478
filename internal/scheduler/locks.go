package scheduler

import (
	"context"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"
)

// leases keeps a job from running twice at once: a flag per job in process,
// plus a transaction-scoped advisory lock across replicas on postgres.
type leases struct {
	db *gorm.DB

	mu      sync.Mutex
	running map[string]bool
}

func newLeases(db *gorm.DB) *leases {
	return &leases{db: db, running: make(map[string]bool)}
}

func (l *leases) acquire(ctx context.Context, job string) (func(), bool, error) {
	l.mu.Lock()
	if l.running[job] {
		l.mu.Unlock()
		return nil, false, nil
	}
	l.running[job] = true
	l.mu.Unlock()

	local := func() {
		l.mu.Lock()
		delete(l.running, job)
		l.mu.Unlock()
	}
	if l.db == nil || l.db.Dialector.Name() != "postgres" {
		return local, true, nil
	}

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		local()
		return nil, false, tx.Error
	}
	var ok bool
	if err := tx.Raw(`SELECT pg_try_advisory_xact_lock(?)`, lockKey(job)).Scan(&ok).Error; err != nil {
		tx.Rollback()
		local()
		return nil, false, err
	}
	if !ok {
		tx.Rollback()
		local()
		return nil, false, nil
	}
	return func() {
		// rollback ends the transaction and with it the advisory lock
		tx.Rollback()
		local()
	}, true, nil
}

func lockKey(job string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("sellerflow:scheduler:" + job))
	return int64(h.Sum64())
}
