package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. BALLOTKEEPER_ENGINE.
const EnvPrefix = "ballotkeeper"

// Setting keys. Flags, config file keys and environment variables share
// them; dashes become underscores in the environment.
const (
	KeyConfig             = "config"
	KeyEngine             = "engine"
	KeyDSN                = "dsn"
	KeyCacheCapacity      = "cache-capacity"
	KeySearchTTL          = "ttl-search"
	KeyVotesTTL           = "ttl-votes"
	KeyStatsTTL           = "ttl-stats"
	KeyRecordsTTL         = "ttl-records"
	KeyReferenceTTL       = "ttl-reference"
	KeyBulkConcurrency    = "bulk-concurrency"
	KeyReconcileChunkSize = "reconcile-chunk-size"
	KeyLogLevel           = "log-level"
	KeyLogFormat          = "log-format"
	KeyS3Bucket           = "s3-bucket"
	KeyS3Region           = "s3-region"
	KeyS3Endpoint         = "s3-endpoint"
	KeyS3AccessKey        = "s3-access-key"
	KeyS3SecretKey        = "s3-secret-key"
)

// dotenvFiles are loaded in order; godotenv never overrides a variable
// that is already set, so earlier files win.
var dotenvFiles = []string{".env.local", ".env"}

// RegisterFlags adds every setting to fs with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := &Config{}
	d.LoadDefaults()

	fs.String(KeyConfig, "", "path to a JSON or YAML config file")
	fs.String(KeyEngine, d.Engine, "storage engine (sqlite, postgres, memory)")
	fs.String(KeyDSN, d.DSN, "SQLite file or PostgreSQL URL")
	fs.Int(KeyCacheCapacity, d.CacheCapacity, "maximum cached query results")
	fs.Duration(KeySearchTTL, d.SearchTTL, "ttl of cached searches")
	fs.Duration(KeyVotesTTL, d.VotesTTL, "ttl of cached vote lists")
	fs.Duration(KeyStatsTTL, d.StatsTTL, "ttl of cached statistics")
	fs.Duration(KeyRecordsTTL, d.RecordsTTL, "ttl of cached full record lists")
	fs.Duration(KeyReferenceTTL, d.ReferenceTTL, "ttl of cached candidates, sessions and settings")
	fs.Int(KeyBulkConcurrency, d.BulkConcurrency, "parallel writes during imports")
	fs.Int(KeyReconcileChunkSize, d.ReconcileChunkSize, "students per reconciliation chunk")
	fs.String(KeyLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, d.LogFormat, "log format (text, json)")
	fs.String(KeyS3Bucket, d.S3Bucket, "default bucket for s3:// backups")
	fs.String(KeyS3Region, d.S3Region, "S3 region")
	fs.String(KeyS3Endpoint, d.S3BaseEndpoint, "S3-compatible endpoint, e.g. http://127.0.0.1:9000")
	fs.String(KeyS3AccessKey, d.S3AccessKey, "S3 access key; the AWS default chain is used when empty")
	fs.String(KeyS3SecretKey, d.S3SecretKey, "S3 secret key")
}

// Load builds a Config from all sources. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	for _, f := range dotenvFiles {
		// missing files are fine
		_ = godotenv.Load(f)
	}
	return load(viper.New(), fs)
}

func load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	d := &Config{}
	d.LoadDefaults()
	setDefaults(v, d)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if path := v.GetString(KeyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Engine:             strings.ToLower(strings.TrimSpace(v.GetString(KeyEngine))),
		DSN:                v.GetString(KeyDSN),
		CacheCapacity:      v.GetInt(KeyCacheCapacity),
		SearchTTL:          v.GetDuration(KeySearchTTL),
		VotesTTL:           v.GetDuration(KeyVotesTTL),
		StatsTTL:           v.GetDuration(KeyStatsTTL),
		RecordsTTL:         v.GetDuration(KeyRecordsTTL),
		ReferenceTTL:       v.GetDuration(KeyReferenceTTL),
		BulkConcurrency:    v.GetInt(KeyBulkConcurrency),
		ReconcileChunkSize: v.GetInt(KeyReconcileChunkSize),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          v.GetString(KeyLogFormat),
		S3Bucket:           v.GetString(KeyS3Bucket),
		S3Region:           v.GetString(KeyS3Region),
		S3BaseEndpoint:     v.GetString(KeyS3Endpoint),
		S3AccessKey:        v.GetString(KeyS3AccessKey),
		S3SecretKey:        v.GetString(KeyS3SecretKey),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault(KeyEngine, d.Engine)
	v.SetDefault(KeyDSN, d.DSN)
	v.SetDefault(KeyCacheCapacity, d.CacheCapacity)
	v.SetDefault(KeySearchTTL, d.SearchTTL)
	v.SetDefault(KeyVotesTTL, d.VotesTTL)
	v.SetDefault(KeyStatsTTL, d.StatsTTL)
	v.SetDefault(KeyRecordsTTL, d.RecordsTTL)
	v.SetDefault(KeyReferenceTTL, d.ReferenceTTL)
	v.SetDefault(KeyBulkConcurrency, d.BulkConcurrency)
	v.SetDefault(KeyReconcileChunkSize, d.ReconcileChunkSize)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyS3Region, d.S3Region)
}
