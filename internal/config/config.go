// Package config provides configuration structures and validation for both binaries.
// It handles environment-based configuration for the HTTP server, databases, cache,
// message queues, retro batch bounds and feature flags.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the complete application configuration. Each field is a subsystem's
// configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Retro       RetroConfig
	Features    FeaturesConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers              string
	SupplierEventsTopic  string // supplier lifecycle events from the supplier service
	RefreshRequestsTopic string // snapshot refresh requests from operators and backfill
	NumPartitions        int
	ReplicationFactor    int
	ConsumerGroup        string
	MinBytes             int
	MaxBytes             int
	MaxWait              time.Duration
	StartOffset          int64
	DLQTopic             string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains snapshot cache and lock configuration. An empty Address disables Redis.
type RedisConfig struct {
	Address          string
	Password         string
	DB               int
	PoolSize         int
	SnapshotCacheTTL time.Duration
	RefreshLockTTL   time.Duration
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Maximum number of retry attempts for outbox messages
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// RetroConfig bounds each retro batch run
type RetroConfig struct {
	MaxApprovalsPerRun int
	MaxScanned         int
	PreviewSampleSize  int
	StaleBatchAfter    time.Duration
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	AutoVerify                  bool
	AutoVerifyDisabledLocations []uuid.UUID
}

// AutoVerifyEnabled reports whether automatic verification may run for the location
func (f FeaturesConfig) AutoVerifyEnabled(_ uuid.UUID, locationID *uuid.UUID) bool {
	if !f.AutoVerify {
		return false
	}
	if locationID == nil {
		return true
	}
	for _, id := range f.AutoVerifyDisabledLocations {
		if id == *locationID {
			return false
		}
	}
	return true
}

func parseLocations(raw string) ([]uuid.UUID, []string) {
	var ids []uuid.UUID
	var invalid []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			invalid = append(invalid, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.SupplierEventsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_SUPPLIER_EVENTS_TOPIC is required")
	}
	if c.Kafka.RefreshRequestsTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_REFRESH_REQUESTS_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Redis is optional; when configured its timings must be usable
	if c.Redis.Enabled() {
		if c.Redis.PoolSize <= 0 {
			validationErrors = append(validationErrors, "REDIS_POOL_SIZE must be greater than 0")
		}
		if c.Redis.SnapshotCacheTTL <= 0 {
			validationErrors = append(validationErrors, "REDIS_SNAPSHOT_CACHE_TTL must be greater than 0")
		}
		if c.Redis.RefreshLockTTL <= 0 {
			validationErrors = append(validationErrors, "REDIS_REFRESH_LOCK_TTL must be greater than 0")
		}
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Retro config
	if c.Retro.MaxApprovalsPerRun <= 0 {
		validationErrors = append(validationErrors, "RETRO_MAX_APPROVALS_PER_RUN must be greater than 0")
	}
	if c.Retro.MaxScanned < c.Retro.MaxApprovalsPerRun {
		validationErrors = append(validationErrors, "RETRO_MAX_SCANNED must be at least RETRO_MAX_APPROVALS_PER_RUN")
	}
	if c.Retro.PreviewSampleSize <= 0 {
		validationErrors = append(validationErrors, "RETRO_PREVIEW_SAMPLE_SIZE must be greater than 0")
	}
	if c.Retro.StaleBatchAfter <= 0 {
		validationErrors = append(validationErrors, "RETRO_STALE_BATCH_AFTER must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
