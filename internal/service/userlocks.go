package service

import (
	"sync"

	"github.com/google/uuid"
)

// UserLocks serializes portfolio mutations per user: concurrent trades or cash
// adjustments for the same user never interleave, while different users
// proceed in parallel. Shared by the ledger and portfolio services.
type UserLocks struct {
	locks sync.Map
}

func NewUserLocks() *UserLocks {
	return &UserLocks{}
}

func (l *UserLocks) Lock(userID uuid.UUID) func() {
	m, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
