package lock

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

// Postgres is a session-level advisory lock. Advisory locks belong to a
// connection, so the lock pins one pooled connection until Unlock.
type Postgres struct {
	pool *pgxpool.Pool
	name string
	id   int64
	conn *pgxpool.Conn
}

var _ Locker = (*Postgres)(nil)

// NewPostgres creates an advisory lock whose id is derived from name.
func NewPostgres(pool *pgxpool.Pool, name string) *Postgres {
	return &Postgres{pool: pool, name: name, id: AdvisoryID(name)}
}

// AdvisoryID hashes name into the int64 key space of pg_advisory_lock.
func AdvisoryID(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryLock implements Locker.
func (p *Postgres) TryLock(ctx context.Context) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, errors.WrapResource("acquire", "lock", p.name, err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, p.id).Scan(&ok); err != nil {
		conn.Release()
		return false, errors.WrapResource("acquire", "lock", p.name, err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	p.conn = conn
	return true, nil
}

// Unlock implements Locker.
func (p *Postgres) Unlock(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	defer func() {
		p.conn.Release()
		p.conn = nil
	}()
	_, err := p.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, p.id)
	return errors.WrapResource("release", "lock", p.name, err)
}

// Name implements Locker.
func (p *Postgres) Name() string { return "postgres:" + p.name }
