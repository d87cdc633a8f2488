package models

// SchemaVersion is the current version of the persisted pool layout
const SchemaVersion = 1

// StoreBackend identifies a state store implementation
type StoreBackend string

const (
	// StoreMemory keeps the pool in process memory (lost on restart)
	StoreMemory StoreBackend = "memory"
	// StoreFile keeps the pool in a JSON document on disk
	StoreFile StoreBackend = "file"
	// StoreSQLite keeps the pool in a SQLite database file
	StoreSQLite StoreBackend = "sqlite"
	// StorePostgres keeps the pool in PostgreSQL
	StorePostgres StoreBackend = "postgres"
	// StoreRedis keeps the pool as a document under one Redis key
	StoreRedis StoreBackend = "redis"
)

// Valid returns true for a known backend
func (b StoreBackend) Valid() bool {
	switch b {
	case StoreMemory, StoreFile, StoreSQLite, StorePostgres, StoreRedis:
		return true
	}
	return false
}

// Table names used by the SQL-backed stores
const (
	TableKeyRecords  = "key_records"
	TableKeyPoolMeta = "key_pool_meta"
)
