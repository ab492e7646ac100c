package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/cache"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
)

// Storage engines.
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Config holds runtime settings for the BallotKeeper CLI.
//
// Fields:
//   - Engine: sqlite, postgres or memory.
//   - DSN: SQLite file path or PostgreSQL URL; ignored by memory.
//   - CacheCapacity and the *TTL fields: query cache sizing per data class.
//   - BulkConcurrency: parallel writes during bulk imports.
//   - ReconcileChunkSize: students per reconciliation chunk during sync.
//   - S3*: object storage used by s3:// backup locations.
type Config struct {
	Engine string
	DSN    string

	CacheCapacity int
	SearchTTL     time.Duration
	VotesTTL      time.Duration
	StatsTTL      time.Duration
	RecordsTTL    time.Duration
	ReferenceTTL  time.Duration

	BulkConcurrency    int
	ReconcileChunkSize int

	LogLevel  string
	LogFormat string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with defaults suitable for a single polling
// station.
func (c *Config) LoadDefaults() {
	c.Engine = EngineSQLite
	c.DSN = "data/ballotkeeper.db"

	ttls := cache.DefaultTTLs()
	c.CacheCapacity = cache.DefaultCapacity
	c.SearchTTL = ttls[cache.ClassSearch]
	c.VotesTTL = ttls[cache.ClassVotes]
	c.StatsTTL = ttls[cache.ClassStats]
	c.RecordsTTL = ttls[cache.ClassRecords]
	c.ReferenceTTL = ttls[cache.ClassReference]

	c.BulkConcurrency = 4
	c.ReconcileChunkSize = 500

	c.LogLevel = "warn"
	c.LogFormat = "text"

	c.S3Region = "us-east-1"
}

// CacheTTLs returns the per-class TTLs for cache.WithTTLs.
func (c *Config) CacheTTLs() cache.TTLs {
	return cache.TTLs{
		cache.ClassSearch:    c.SearchTTL,
		cache.ClassVotes:     c.VotesTTL,
		cache.ClassStats:     c.StatsTTL,
		cache.ClassRecords:   c.RecordsTTL,
		cache.ClassReference: c.ReferenceTTL,
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineSQLite, EnginePostgres:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("dsn is required for the %s engine", c.Engine)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("invalid engine %q: must be sqlite, postgres or memory", c.Engine)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity)
	}
	for class, ttl := range c.CacheTTLs() {
		if ttl <= 0 {
			return fmt.Errorf("%s ttl must be positive, got %s", class, ttl)
		}
	}
	if c.BulkConcurrency <= 0 {
		return fmt.Errorf("bulk concurrency must be positive, got %d", c.BulkConcurrency)
	}
	if c.ReconcileChunkSize <= 0 {
		return fmt.Errorf("reconcile chunk size must be positive, got %d", c.ReconcileChunkSize)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	return nil
}
