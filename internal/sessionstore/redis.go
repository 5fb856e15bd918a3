package sessionstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/logutil"
	"github.com/arvindjonn09/dharma-mini/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "dharma:session:"

// RedisOptions configures the redis store.
type RedisOptions struct {
	// Prefix is prepended to every token to form the key.
	Prefix string
	// KeyTTL lets redis drop records that were never read back. It must be
	// longer than the session TTL so expiry is always observed by the manager
	// first. Zero keeps keys until they are deleted.
	KeyTTL time.Duration
}

// redisSessionStore stores one key per token holding the same JSON record
// as the file store.
type redisSessionStore struct {
	client redis.UniversalClient
	prefix string
	keyTTL time.Duration
	log    *slog.Logger
}

// NewRedis returns a store using client. The client is closed by Close.
func NewRedis(logger *slog.Logger, client redis.UniversalClient, opts RedisOptions) *redisSessionStore {
	if opts.Prefix == "" {
		opts.Prefix = DefaultRedisPrefix
	}
	return &redisSessionStore{
		client: client,
		prefix: opts.Prefix,
		keyTTL: opts.KeyTTL,
		log:    logutil.OrDiscard(logger),
	}
}

func (s *redisSessionStore) key(token string) string {
	return s.prefix + token
}

func (s *redisSessionStore) Insert(ctx context.Context, sess models.Session) error {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed redis command", "method", "insert session")()

	if err := checkContext(ctx, s.log, "insert"); err != nil {
		return err
	}

	raw, err := encodeRecord(sess)
	if err != nil {
		return models.NewTransformationError(err.Error())
	}

	ok, err := s.client.SetNX(ctx, s.key(sess.Token), []byte(raw), s.keyTTL).Result()
	if err != nil {
		return logutil.LogAndWrapErr(s.log, "failed to insert session", models.NewDatabaseError(err))
	}
	if !ok {
		return ErrTokenExists
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed redis command", "method", "get session", "token", logutil.Redact(token))()

	if err := checkContext(ctx, s.log, "get"); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, newSessionNotFoundError(token)
	}
	if err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to get session",
			models.NewDatabaseError(err), "token", logutil.Redact(token))
	}

	sess := decodeRecord(token, raw)
	return &sess, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, token string) error {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed redis command", "method", "delete session", "token", logutil.Redact(token))()

	if err := checkContext(ctx, s.log, "delete"); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return logutil.LogAndWrapErr(s.log, "failed to delete session",
			models.NewDatabaseError(err), "token", logutil.Redact(token))
	}
	return nil
}

func (s *redisSessionStore) List(ctx context.Context) ([]models.Session, error) {
	defer logutil.NewTimingLogger(s.log, time.Now(), "executed redis command", "method", "list sessions")()

	if err := checkContext(ctx, s.log, "list"); err != nil {
		return nil, err
	}

	var out []models.Session
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// deleted between SCAN and GET
			continue
		}
		if err != nil {
			return nil, logutil.LogAndWrapErr(s.log, "failed to list sessions", models.NewDatabaseError(err))
		}
		out = append(out, decodeRecord(key[len(s.prefix):], raw))
	}
	if err := iter.Err(); err != nil {
		return nil, logutil.LogAndWrapErr(s.log, "failed to list sessions", models.NewDatabaseError(err))
	}

	sortByCreation(out)
	return out, nil
}

func (s *redisSessionStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sess := range sessions {
		if !isStale(sess, cutoff) {
			continue
		}
		n, err := s.client.Del(ctx, s.key(sess.Token)).Result()
		if err != nil {
			return removed, logutil.LogAndWrapErr(s.log, "failed to delete old sessions", models.NewDatabaseError(err))
		}
		removed += int(n)
	}
	return removed, nil
}

func (s *redisSessionStore) Close() error {
	return s.client.Close()
}
