// Package storage defines the durable storage slot the session store persists to.
package storage

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-login-portal/internal/config"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/jrsteele09/go-login-portal/storage/filestore"
	"github.com/jrsteele09/go-login-portal/storage/memory"
	"github.com/jrsteele09/go-login-portal/storage/redisstore"
	"github.com/jrsteele09/go-login-portal/storage/sqlitestore"
)

// Storage is a key/value store of named slots.
// Load returns errors.ErrNotFound when the slot has never been written.
// List returns the names of the slots starting with prefix.
type Storage interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, value []byte) error
	Remove(ctx context.Context, slot string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

var (
	_ Storage = (*memory.Store)(nil)
	_ Storage = (*filestore.Store)(nil)
	_ Storage = (*sqlitestore.Store)(nil)
	_ Storage = (*redisstore.Store)(nil)
)

// Open selects the storage backend named by the configuration.
func Open(ctx context.Context, c config.StorageConfig) (Storage, error) {
	switch c.GetStorageDriver() {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageFile:
		return filestore.New(c.GetDataFolder())
	case config.StorageSQLite:
		return sqlitestore.New(ctx, c.GetSQLitePath())
	case config.StorageRedis:
		return redisstore.New(ctx, c.GetRedisURL())
	}
	return nil, fmt.Errorf("[storage Open] %q: %w", c.GetStorageDriver(), apperrors.ErrUnknownStorage)
}
