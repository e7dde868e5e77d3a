// Package iserv reads people and groups from the IServ school server
// database.
package iserv

import (
	"context"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/logging"
	"github.com/ervinkurbegovic/jamfsync/pkg/reconciler"
)

// Config configures the source.
type Config struct {
	DSN string `env:"ISERV_DSN"`

	// MailDomain turns an account name into an identity key: act@MailDomain.
	MailDomain string `env:"ISERV_MAIL_DOMAIN"`

	// TeacherGroup is the group whose members are teaching staff.
	TeacherGroup string `env:"ISERV_TEACHER_GROUP" envDefault:"lehrkraefte"`

	// LocationID is assigned to every person and group.
	LocationID string `env:"JAMF_LOCATION_ID"`
}

// ConfigFromEnv parses Config from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.NewConfigError("iserv", "failed to parse environment", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to build identity keys.
func (c Config) Validate() error {
	domain := strings.TrimPrefix(strings.TrimSpace(c.MailDomain), "@")
	if domain == "" || strings.ContainsAny(domain, " @") {
		return &errors.ValidationError{Field: "iserv.mail_domain", Value: c.MailDomain, Message: "must be a bare domain"}
	}
	return nil
}

// Querier is the part of pgx the source uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source is the IServ directory.
type Source struct {
	db  Querier
	cfg Config
}

// New creates a Source reading through db.
func New(db Querier, cfg Config) (*Source, error) {
	if db == nil {
		return nil, &errors.ValidationError{Field: "db", Message: "cannot be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TeacherGroup == "" {
		cfg.TeacherGroup = reconciler.DefaultTeacherGroup
	}
	return &Source{db: db, cfg: cfg}, nil
}

// Connect opens a pool for cfg.DSN and returns a Source on it. The caller
// closes the pool.
func Connect(ctx context.Context, cfg Config) (*Source, *pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, nil, &errors.ValidationError{Field: "ISERV_DSN", Message: "is required"}
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, errors.WrapResource("connect", "database", "iserv", err)
	}
	src, err := New(pool, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return src, pool, nil
}

const (
	usersQuery = `SELECT u.act, COALESCE(u.firstname, ''), COALESCE(u.lastname, '')
		FROM users u
		WHERE COALESCE(u.firstname, '') <> ''
			AND EXISTS (SELECT 1 FROM members m WHERE m.actuser = u.act)
		ORDER BY u.act`

	groupsQuery = `SELECT act, COALESCE(type, '')
		FROM groups
		WHERE deleted IS NULL
		ORDER BY act`

	membersQuery = `SELECT actuser, actgrp
		FROM members
		ORDER BY actgrp, actuser`
)

type userRow struct {
	Act       string
	FirstName string
	LastName  string
}

type groupRow struct {
	Act  string
	Type string
}

type memberRow struct {
	User  string
	Group string
}

// Snapshot reads the current people and groups.
func (s *Source) Snapshot(ctx context.Context) (*directory.Snapshot, error) {
	users, err := query(ctx, s.db, usersQuery, func(row pgx.CollectableRow) (userRow, error) {
		var u userRow
		err := row.Scan(&u.Act, &u.FirstName, &u.LastName)
		return u, err
	})
	if err != nil {
		return nil, err
	}
	groups, err := query(ctx, s.db, groupsQuery, func(row pgx.CollectableRow) (groupRow, error) {
		var g groupRow
		err := row.Scan(&g.Act, &g.Type)
		return g, err
	})
	if err != nil {
		return nil, err
	}
	members, err := query(ctx, s.db, membersQuery, func(row pgx.CollectableRow) (memberRow, error) {
		var m memberRow
		err := row.Scan(&m.User, &m.Group)
		return m, err
	})
	if err != nil {
		return nil, err
	}

	snap := buildSnapshot(s.cfg, users, groups, members)
	logging.FromContext(ctx).Debug().
		Int("people", len(snap.People)).
		Int("groups", len(snap.Groups)).
		Msg("Fetched IServ snapshot")
	return snap, nil
}

func query[T any](ctx context.Context, db Querier, sql string, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := db.Query(ctx, sql)
	if err != nil {
		return nil, errors.WrapResource("query", "iserv", firstLine(sql), err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, errors.WrapResource("scan", "iserv", firstLine(sql), err)
	}
	return out, nil
}

func firstLine(sql string) string {
	line, _, _ := strings.Cut(sql, "\n")
	return strings.TrimSpace(line)
}
