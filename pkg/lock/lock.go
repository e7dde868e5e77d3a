// Package lock provides the exclusive locks that keep two sync sessions from
// running against the same directory pair at once.
package lock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

// Locker is a non-blocking exclusive lock.
type Locker interface {
	// TryLock acquires the lock. It returns false without waiting when
	// another holder has it.
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases a lock acquired by TryLock.
	Unlock(ctx context.Context) error

	// Name identifies the lock in logs and errors.
	Name() string
}

var (
	registryMu sync.Mutex
	registry   = map[string]*sync.Mutex{}
)

// Local is a process-wide named lock. Two Local values with the same name
// share one mutex. A Local is safe for concurrent use; only the caller
// whose TryLock succeeded may Unlock it.
type Local struct {
	name string
	mu   *sync.Mutex

	// held is set only while this value owns mu.
	held atomic.Bool
}

var _ Locker = (*Local)(nil)

// NewLocal returns the process-wide lock called name.
func NewLocal(name string) *Local {
	registryMu.Lock()
	defer registryMu.Unlock()
	mu, ok := registry[name]
	if !ok {
		mu = &sync.Mutex{}
		registry[name] = mu
	}
	return &Local{name: name, mu: mu}
}

// TryLock implements Locker.
func (l *Local) TryLock(context.Context) (bool, error) {
	if !l.mu.TryLock() {
		return false, nil
	}
	l.held.Store(true)
	return true, nil
}

// Unlock implements Locker. Unlocking a Local that is not held is a no-op.
func (l *Local) Unlock(context.Context) error {
	if l.held.CompareAndSwap(true, false) {
		l.mu.Unlock()
	}
	return nil
}

// Name implements Locker.
func (l *Local) Name() string { return l.name }

// Do runs fn while holding l. Contention yields a SessionInUseError without
// calling fn.
func Do(ctx context.Context, l Locker, fn func(context.Context) error) error {
	acquired, err := l.TryLock(ctx)
	if err != nil {
		return errors.WrapResource("acquire", "lock", l.Name(), err)
	}
	if !acquired {
		return errors.NewSessionInUseError(l.Name(), nil)
	}
	defer func() { _ = l.Unlock(context.WithoutCancel(ctx)) }()
	return fn(ctx)
}
