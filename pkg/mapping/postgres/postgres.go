// Package postgres implements a mapping.Store on PostgreSQL.
//
// Live entries are kept in jamfsync_mapping. Archive renames that table to
// jamfsync_mapping_old inside one transaction and recreates an empty live
// table, so a failed rebuild can always be rolled back to the previous mapping.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
)

const (
	liveTable    = "jamfsync_mapping"
	archiveTable = "jamfsync_mapping_old"

	// undefinedTable is the SQLSTATE for a missing relation.
	undefinedTable = "42P01"
)

// Store is a PostgreSQL-backed mapping store.
type Store struct {
	pool *pgxpool.Pool
}

var _ mapping.Store = (*Store)(nil)

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, pkgerrors.NewConfigError("mapping", "unable to parse database configuration", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, pkgerrors.WrapResource("connect", "mapping database", "", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.WrapResource("ping", "mapping database", "", err)
	}
	return pool, nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get implements mapping.Reader.
func (s *Store) Get(ctx context.Context, key string, entity directory.EntityType) (mapping.Entry, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT identity_key, mirror_id, entity_type, fingerprint, last_sync_at
		FROM `+liveTable+`
		WHERE identity_key = $1 AND entity_type = $2`, key, string(entity))

	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return mapping.Entry{}, false, nil
	}
	if err != nil {
		return mapping.Entry{}, false, pkgerrors.WrapResource("fetch", "mapping", key, err)
	}
	return e, true, nil
}

// All implements mapping.Reader.
func (s *Store) All(ctx context.Context, entity directory.EntityType) ([]mapping.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identity_key, mirror_id, entity_type, fingerprint, last_sync_at
		FROM `+liveTable+`
		WHERE entity_type = $1
		ORDER BY identity_key`, string(entity))
	if err != nil {
		return nil, pkgerrors.WrapResource("list", "mapping", string(entity), err)
	}
	defer rows.Close()

	var entries []mapping.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, pkgerrors.WrapResource("scan", "mapping", string(entity), err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapResource("list", "mapping", string(entity), err)
	}
	return entries, nil
}

// Put implements mapping.Store.
func (s *Store) Put(ctx context.Context, entry mapping.Entry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM `+liveTable+`
			WHERE entity_type = $1 AND mirror_id = $2 AND identity_key <> $3`,
			string(entry.EntityType), entry.MirrorID, entry.IdentityKey); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO `+liveTable+` (identity_key, entity_type, mirror_id, fingerprint, last_sync_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (identity_key, entity_type) DO UPDATE SET
				mirror_id = EXCLUDED.mirror_id,
				fingerprint = EXCLUDED.fingerprint,
				last_sync_at = EXCLUDED.last_sync_at`,
			entry.IdentityKey, string(entry.EntityType), entry.MirrorID, entry.Fingerprint, entry.LastSyncAt)
		return err
	}, "put", entry.IdentityKey)
}

// Delete implements mapping.Store.
func (s *Store) Delete(ctx context.Context, key string, entity directory.EntityType) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+liveTable+` WHERE identity_key = $1 AND entity_type = $2`,
		key, string(entity))
	return pkgerrors.WrapResource("delete", "mapping", key, err)
}

// Archive implements mapping.Store.
func (s *Store) Archive(ctx context.Context) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DROP TABLE IF EXISTS ` + archiveTable,
			`ALTER TABLE ` + liveTable + ` RENAME TO ` + archiveTable,
			`CREATE TABLE ` + liveTable + ` (LIKE ` + archiveTable + ` INCLUDING ALL)`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}, "archive", liveTable)
}

// Restore implements mapping.Store.
func (s *Store) Restore(ctx context.Context) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM ` + liveTable,
			`INSERT INTO ` + liveTable + ` SELECT * FROM ` + archiveTable,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}, "restore", archiveTable)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return mapping.ErrNoArchive
	}
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error, op, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pkgerrors.WrapResource(op, "mapping", id, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return pkgerrors.WrapResource(op, "mapping", id, err)
	}
	return pkgerrors.WrapResource(op, "mapping", id, tx.Commit(ctx))
}

func scanEntry(row pgx.Row) (mapping.Entry, error) {
	var (
		e      mapping.Entry
		entity string
	)
	if err := row.Scan(&e.IdentityKey, &e.MirrorID, &entity, &e.Fingerprint, &e.LastSyncAt); err != nil {
		return mapping.Entry{}, err
	}
	e.EntityType = directory.EntityType(entity)
	return e, nil
}
