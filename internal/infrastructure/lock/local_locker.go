package lock

import (
	"context"
	"sync"

	"github.com/spiritmate/myob-stock-sync/internal/application/port"
)

// LocalLocker serializes sync jobs inside a single process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Acquire returns port.ErrLockNotObtained while the key is held
func (l *LocalLocker) Acquire(ctx context.Context, key string) (port.Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, port.ErrLockNotObtained
	}
	l.held[key] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

var _ port.SyncLocker = (*LocalLocker)(nil)
