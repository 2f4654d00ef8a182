package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "portal:slot:"
	callTimeout = 5 * time.Second
)

// Store keeps slots as plain redis strings under a common prefix.
type Store struct {
	client *redis.Client
}

func New(ctx context.Context, dsn string) (*Store, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("[redisstore New] parse url: %w", err)
	}
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[redisstore New] ping: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Load(ctx context.Context, slot string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, keyPrefix+slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[redisstore Load] %s: %w", slot, err)
	}
	return value, nil
}

func (s *Store) Save(ctx context.Context, slot string, value []byte) error {
	return s.SaveWithTTL(ctx, slot, value, 0)
}

// SaveWithTTL writes a slot that redis deletes after ttl. Zero keeps it forever.
func (s *Store) SaveWithTTL(ctx context.Context, slot string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := s.client.Set(ctx, keyPrefix+slot, value, ttl).Err(); err != nil {
		return fmt.Errorf("[redisstore Save] %s: %w", slot, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, slot string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := s.client.Del(ctx, keyPrefix+slot).Err(); err != nil {
		return fmt.Errorf("[redisstore Remove] %s: %w", slot, err)
	}
	return nil
}

// globEscaper quotes the characters SCAN MATCH treats as patterns.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// List walks the keyspace with SCAN so large databases are never blocked.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	match := keyPrefix + globEscaper.Replace(prefix) + "*"
	var slots []string
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("[redisstore List] %s: %w", prefix, err)
		}
		for _, key := range keys {
			slots = append(slots, strings.TrimPrefix(key, keyPrefix))
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	return slots, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
