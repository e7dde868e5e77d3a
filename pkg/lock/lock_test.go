package lock_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
)

// exclusive checks that a second holder is refused until the first releases.
func exclusive(t *testing.T, first, second lock.Locker) {
	t.Helper()
	ctx := context.Background()

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, first.Unlock(ctx))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}

func TestLocal(t *testing.T) {
	exclusive(t, lock.NewLocal("school-a"), lock.NewLocal("school-a"))

	t.Run("names are independent", func(t *testing.T) {
		ctx := context.Background()
		a, b := lock.NewLocal("x"), lock.NewLocal("y")
		ok, _ := a.TryLock(ctx)
		require.True(t, ok)
		ok, _ = b.TryLock(ctx)
		assert.True(t, ok)
		require.NoError(t, a.Unlock(ctx))
		require.NoError(t, b.Unlock(ctx))
	})
}

// TestLocalConcurrentTryLock shares one Local between goroutines the way a
// client shares it between manual and scheduled passes. Run with -race.
func TestLocalConcurrentTryLock(t *testing.T) {
	ctx := context.Background()
	l := lock.NewLocal("school-concurrent")

	for round := 0; round < 200; round++ {
		var (
			wg      sync.WaitGroup
			winners atomic.Int32
			start   = make(chan struct{})
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				ok, err := l.TryLock(ctx)
				assert.NoError(t, err)
				if ok {
					winners.Add(1)
					time.Sleep(time.Microsecond)
					assert.NoError(t, l.Unlock(ctx))
				}
			}()
		}
		close(start)
		wg.Wait()
		require.GreaterOrEqual(t, winners.Load(), int32(1))
	}

	// No round may leave the lock stuck.
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Unlock(ctx))
}

func TestLocalUnlockWithoutLockIsNoop(t *testing.T) {
	ctx := context.Background()
	owner, other := lock.NewLocal("school-b"), lock.NewLocal("school-b")

	ok, err := owner.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, other.Unlock(ctx))
	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a non-owner unlock must not release the lock")
	require.NoError(t, owner.Unlock(ctx))
}

func TestDo(t *testing.T) {
	ctx := context.Background()
	holder, other := lock.NewLocal("school-do"), lock.NewLocal("school-do")

	ran := false
	require.NoError(t, lock.Do(ctx, other, func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ran = false
	err = lock.Do(ctx, other, func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, errors.IsSessionInUse(err))
	assert.False(t, ran)

	require.NoError(t, holder.Unlock(ctx))
	require.NoError(t, lock.Do(ctx, other, func(context.Context) error { return nil }))
}

func TestAdvisoryIDIsStable(t *testing.T) {
	assert.Equal(t, lock.AdvisoryID("jamfsync"), lock.AdvisoryID("jamfsync"))
	assert.NotEqual(t, lock.AdvisoryID("jamfsync"), lock.AdvisoryID("jamfsync-2"))
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("JAMFSYNC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("JAMFSYNC_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 5 * time.Second})
	t.Cleanup(func() { _ = client.Close() })

	key := "jamfsync:test:" + t.Name()
	require.NoError(t, client.Del(context.Background(), key).Err())
	exclusive(t, lock.NewRedis(client, key, time.Minute), lock.NewRedis(client, key, time.Minute))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("JAMFSYNC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JAMFSYNC_TEST_POSTGRES_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	exclusive(t, lock.NewPostgres(pool, "jamfsync-test"), lock.NewPostgres(pool, "jamfsync-test"))
}
