// Package storage opens the configured persistence and cache backends and
// exposes them as ports.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskmaster/taskboard/internal/adapters/cache"
	"github.com/taskmaster/taskboard/internal/adapters/repository/memory"
	"github.com/taskmaster/taskboard/internal/adapters/repository/mongodb"
	"github.com/taskmaster/taskboard/internal/adapters/repository/postgres"
	"github.com/taskmaster/taskboard/internal/infrastructure/config"
	"github.com/taskmaster/taskboard/internal/infrastructure/database"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Check is one named dependency probe
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
	// Info returns optional details for the detailed health report
	Info func() map[string]interface{}
}

// Storage holds the opened backends
type Storage struct {
	Repos       *ports.Repositories
	Cache       ports.CacheRepository
	Driver      string
	CacheDriver string

	checks  []Check
	closers []func() error
}

// Open connects the backends selected by cfg.Storage.Driver and
// cfg.Cache.Driver. A failure closes whatever was already opened.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	s := &Storage{Driver: cfg.Storage.Driver, CacheDriver: cfg.Cache.Driver}
	opened := false
	defer func() {
		if !opened {
			_ = s.Close()
		}
	}()

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.Repos = postgres.NewRepositories(db)
		s.addCheck(Check{Name: "database", Probe: db.HealthCheck, Info: db.GetConnectionInfo}, db.Close)
		log.Infow("Connected to PostgreSQL", "host", cfg.Database.Host, "database", cfg.Database.Name)

	case config.StorageMongoDB:
		m, err := database.NewMongo(ctx, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		s.addCheck(Check{Name: "database", Probe: m.HealthCheck}, m.Close)
		if err := mongodb.EnsureIndexes(ctx, m.Database); err != nil {
			return nil, err
		}
		s.Repos = mongodb.NewRepositories(m, cfg.MongoDB.Transactions)
		log.Infow("Connected to MongoDB", "database", cfg.MongoDB.Database, "transactions", cfg.MongoDB.Transactions)

	case config.StorageMemory:
		s.Repos = memory.NewRepositories()
		log.Warnw("Using in-memory storage; data is lost on restart")

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Cache.Driver {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		redisCache := cache.NewRedisCache(client)
		s.Cache = cache.NewBreakerCache(redisCache, "redis", cfg.Redis.BreakerTimeout, log)
		s.addCheck(Check{Name: "cache", Probe: redisCache.Ping}, redisCache.Close)
		log.Infow("Connected to Redis", "addr", cfg.Redis.GetAddr())

	case config.CacheMemory:
		s.Cache = cache.NewMemoryCache(cfg.Cache.SweepInterval)

	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}

	opened = true
	return s, nil
}

// NewInMemory returns process-local storage and cache
func NewInMemory() *Storage {
	return &Storage{
		Repos:       memory.NewRepositories(),
		Cache:       cache.NewMemoryCache(0),
		Driver:      config.StorageMemory,
		CacheDriver: config.CacheMemory,
	}
}

func (s *Storage) addCheck(c Check, closer func() error) {
	s.checks = append(s.checks, c)
	s.closers = append(s.closers, closer)
}

// Checks returns the probes of every remote dependency
func (s *Storage) Checks() []Check {
	return s.checks
}

// Ping probes every dependency and returns the first failure
func (s *Storage) Ping(ctx context.Context) error {
	for _, c := range s.checks {
		if err := c.Probe(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}
	return nil
}

// Close releases the connections in reverse opening order
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
