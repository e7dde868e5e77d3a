package app

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/constants"
	"github.com/ervinkurbegovic/jamfsync/internal/iserv"
	"github.com/ervinkurbegovic/jamfsync/internal/jamf"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/lock"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping/files"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping/postgres"
)

// initDirectories builds the mirror first so a configured location name
// can be resolved before either directory is scoped to it.
func (a *App) initDirectories(ctx context.Context) error {
	if err := a.initMirror(ctx); err != nil {
		return err
	}
	if a.source != nil {
		return nil
	}

	source, pool, err := iserv.Connect(ctx, a.config.IServ)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pool.Close)
	a.source = source
	return nil
}

func (a *App) initMirror(ctx context.Context) error {
	if a.mirror != nil {
		return nil
	}

	cfg := a.config
	if cfg.Sync.LocationID == "" && cfg.Sync.Location != "" {
		resolver, err := jamf.New(cfg.Jamf)
		if err != nil {
			return err
		}
		id, err := resolver.ResolveLocation(ctx, cfg.Sync.Location)
		if err != nil {
			return err
		}
		a.logger.Info().Str("location", cfg.Sync.Location).Str("location_id", id).Msg("Resolved Jamf location")
		cfg.Sync.LocationID = id
		cfg.Jamf.LocationID = id
		cfg.IServ.LocationID = id
	}

	mirror, err := jamf.New(cfg.Jamf)
	if err != nil {
		return errors.WrapResource("create", "jamf client", cfg.Jamf.URL, err)
	}
	a.mirror = mirror
	return nil
}

func (a *App) initMapping(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	cfg := a.config.Mapping
	switch cfg.Backend {
	case constants.BackendMemory:
		a.logger.Warn().Msg("Using an in-memory mapping, it is lost when the process exits")
		a.store = mapping.NewMemory()
	case constants.BackendFile:
		store, err := files.Open(cfg.Path)
		if err != nil {
			return err
		}
		a.store = store
	case constants.BackendPostgres:
		if cfg.DSN == "" {
			return &errors.ValidationError{Field: "MAPPING_DSN", Message: "is required for the postgres backend"}
		}
		if err := postgres.Migrate(cfg.DSN); err != nil {
			return err
		}
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.store = postgres.New(pool)
	default:
		return &errors.ValidationError{Field: "mapping.backend", Value: cfg.Backend, Message: "unknown backend"}
	}
	return nil
}

func (a *App) initLocker(ctx context.Context) error {
	if a.locker != nil {
		return nil
	}

	cfg := a.config.Lock
	switch cfg.Backend {
	case constants.LockLocal:
		a.locker = lock.NewLocal(cfg.Key)
	case constants.LockRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.locker = lock.NewRedis(client, cfg.Key, cfg.TTL)
	case constants.LockPostgres:
		dsn := a.config.Mapping.DSN
		if dsn == "" {
			dsn = a.config.IServ.DSN
		}
		pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.locker = lock.NewPostgres(pool, cfg.Key)
	default:
		return &errors.ValidationError{Field: "lock.backend", Value: cfg.Backend, Message: "unknown backend"}
	}
	return nil
}
