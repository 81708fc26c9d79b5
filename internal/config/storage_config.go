package config

import "strconv"

type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StorageFile     StorageBackend = "file"
	StorageRedis    StorageBackend = "redis"
	StoragePostgres StorageBackend = "postgres"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetDatabaseURL() string
	GetEventsViaRedis() bool
	GetStableFingerprint() bool
}

type Storage struct {
	values values
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageBackend() StorageBackend {
	return StorageBackend(s.values.get("ELEMO_STORAGE", string(StorageFile)))
}

func (s Storage) GetRedisAddr() string {
	return s.values.get("REDIS_ADDR", "127.0.0.1:6379")
}

func (s Storage) GetRedisPassword() string {
	return s.values.get("REDIS_PASSWORD", "")
}

func (s Storage) GetRedisDB() int {
	n, err := strconv.Atoi(s.values.get("REDIS_DB", "0"))
	if err != nil {
		return 0
	}
	return n
}

func (s Storage) GetDatabaseURL() string {
	return s.values.get("DATABASE_URL", "")
}

// GetEventsViaRedis fans refresh events out over Redis so other processes sharing the
// same store see them.
func (s Storage) GetEventsViaRedis() bool {
	b, err := strconv.ParseBool(s.values.get("ELEMO_EVENTS_REDIS", "false"))
	return err == nil && b
}

// GetStableFingerprint leaves the store's key count out of the device fingerprint so
// that separate processes derive the same encryption key.
func (s Storage) GetStableFingerprint() bool {
	b, err := strconv.ParseBool(s.values.get("ELEMO_STABLE_FINGERPRINT", "false"))
	return err == nil && b
}
