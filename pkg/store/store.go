// Package store opens the session and credential stores selected by configuration.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arvindjonn09/dharma-mini/database"
	"github.com/arvindjonn09/dharma-mini/internal/authstore"
	"github.com/arvindjonn09/dharma-mini/internal/config"
	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/internal/sessionstore"
	"github.com/redis/go-redis/v9"

	// Register sqlite driver with database/sql
	_ "github.com/mattn/go-sqlite3"
)

// redisKeyGrace is added to the session TTL for the redis key expiry, so redis
// never drops a key before the manager has observed the session as expired.
const redisKeyGrace = time.Hour

type Store struct {
	db       *sql.DB
	log      *slog.Logger
	Sessions sessionstore.Store
	Users    authstore.Store
	backend  string
}

// New initializes the session store named by cfg.Backend and the matching
// credential store. The sqlite backend keeps both in one database and runs
// its migrations; every other backend keeps users in cfg.UsersFile.
//
// Example:
//
//	st, err := store.New(ctx, cfg.Store, cfg.Redis, cfg.Session.TTL(), logger)
func New(ctx context.Context, cfg config.StoreConfig, redisCfg config.RedisConfig, sessionTTL time.Duration, log *slog.Logger) (*Store, error) {
	log = logutil.OrDiscard(log)
	s := &Store{
		log:     log,
		backend: cfg.Backend,
	}

	switch cfg.Backend {
	case config.BackendSqlite:
		conn, err := openSqlite(cfg.SqlitePath)
		if err != nil {
			return nil, logutil.LogAndWrapErr(log, "unable to open database", err, "path", cfg.SqlitePath)
		}
		s.db = conn
		if err := s.runMigrations(); err != nil {
			_ = conn.Close()
			return nil, logutil.LogAndWrapErr(log, "unable to run migrations", err)
		}
		s.Sessions = sessionstore.NewSqlite(log, conn)
		s.Users = authstore.NewWithSqliteStore(conn, log)
		return s, nil

	case config.BackendFile:
		s.Sessions = sessionstore.NewFile(log, cfg.SessionsFile)

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, logutil.LogAndWrapErr(log, "unable to reach redis", err, "addr", redisCfg.Addr)
		}
		s.Sessions = sessionstore.NewRedis(log, client, sessionstore.RedisOptions{
			Prefix: redisCfg.Prefix,
			KeyTTL: sessionTTL + redisKeyGrace,
		})

	case config.BackendMemory:
		s.Sessions = sessionstore.NewInMemory(log)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	s.Users = authstore.NewWithFileStore(cfg.UsersFile, log)
	return s, nil
}

func openSqlite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// one writer at a time, sqlite serialises them anyway
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *Store) runMigrations() error {
	defer logutil.NewTimingLogger(s.log, time.Now(), "ran database migrations", "backend", s.backend)()
	return database.RunSqliteMigrations(s.db)
}

// Backend names the configured session backend.
func (s *Store) Backend() string {
	return s.backend
}

// Ping checks that the underlying storage is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db != nil {
		return s.db.PingContext(ctx)
	}
	_, err := s.Sessions.List(ctx)
	return err
}

// Close releases every store and the database connection.
func (s *Store) Close() error {
	var errs []error
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
	}
	if s.Users != nil {
		errs = append(errs, s.Users.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
