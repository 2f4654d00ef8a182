package config

import (
	"path/filepath"
	"time"
)

type StorageDriver string

const (
	StorageMemory StorageDriver = "memory"
	StorageFile   StorageDriver = "file"
	StorageSQLite StorageDriver = "sqlite"
	StorageRedis  StorageDriver = "redis"
)

type StorageConfig interface {
	GetStorageDriver() StorageDriver
	GetDataFolder() string
	GetSQLitePath() string
	GetRedisURL() string
	GetStorageSlot() string
	GetSessionIdleTimeout() time.Duration
	GetSweepInterval() time.Duration
}

type Storage struct {
	vars envVars
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() StorageDriver {
	return StorageDriver(s.vars.StorageDriver)
}

func (s Storage) GetDataFolder() string {
	return s.vars.DataFolder
}

func (s Storage) GetSQLitePath() string {
	if s.vars.SQLitePath != "" {
		return s.vars.SQLitePath
	}
	return filepath.Join(s.GetDataFolder(), "portal.db")
}

func (s Storage) GetRedisURL() string {
	return s.vars.RedisURL
}

// GetStorageSlot is the name of the durable storage slot holding the session.
func (s Storage) GetStorageSlot() string {
	return s.vars.StorageSlot
}

// GetSessionIdleTimeout is how long a browser's session may go unused before
// the portal drops it from memory. Its slot stays in storage.
func (s Storage) GetSessionIdleTimeout() time.Duration {
	return s.vars.SessionIdleTimeout
}

func (s Storage) GetSweepInterval() time.Duration {
	return s.vars.SweepInterval
}
