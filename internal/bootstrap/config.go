// Package bootstrap wires every adapter (postgres outbox, rabbitmq
// streaming, mongo indexers, tenant cache, relay worker) into a runnable
// service, the way the teacher's internal/bootstrap packages build a
// Config from the environment and hand back a ready-to-serve app.
package bootstrap

import (
	"fmt"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v3/commons"
)

// ApplicationName identifies this service in logs, telemetry resource
// attributes, and the advisory lock component key.
const ApplicationName = "eventpipeline"

// Config is the top-level configuration for the event pipeline service.
type Config struct {
	EnvName  string `env:"ENV_NAME"`
	LogLevel string `env:"LOG_LEVEL"`

	ServerAddress string `env:"SERVER_ADDRESS"`

	PostgresPrimaryHost string `env:"DB_HOST"`
	PostgresPort        string `env:"DB_PORT"`
	PostgresUser        string `env:"DB_USER"`
	PostgresPassword    string `env:"DB_PASSWORD"`
	PostgresName        string `env:"DB_NAME"`
	PostgresReplicaHost string `env:"DB_REPLICA_HOST"`

	MongoHost     string `env:"MONGO_HOST"`
	MongoPort     string `env:"MONGO_PORT"`
	MongoUser     string `env:"MONGO_USER"`
	MongoPassword string `env:"MONGO_PASSWORD"`
	MongoDatabase string `env:"MONGO_NAME"`

	RedisHost string `env:"REDIS_HOST"`
	RedisPort string `env:"REDIS_PORT"`

	RabbitMQHost     string `env:"RABBITMQ_HOST"`
	RabbitMQPort     string `env:"RABBITMQ_PORT_AMQP"`
	RabbitMQUser     string `env:"RABBITMQ_DEFAULT_USER"`
	RabbitMQPassword string `env:"RABBITMQ_DEFAULT_PASS"`
	StreamName       string `env:"STREAM_NAME"`
	PartitionCount   int    `env:"STREAM_PARTITION_COUNT"`

	RelayMaxWorkers  int `env:"RELAY_MAX_WORKERS"`
	RelayBatchSize   int `env:"RELAY_BATCH_SIZE"`
	RelayPollSeconds int `env:"RELAY_POLL_SECONDS"`

	TenantCachePositiveTTLSeconds int `env:"TENANT_CACHE_POSITIVE_TTL_SECONDS"`
	TenantCacheNegativeTTLSeconds int `env:"TENANT_CACHE_NEGATIVE_TTL_SECONDS"`

	// TenantManagerURL points tenantcache at a standalone tenant-manager
	// service instead of resolving tenants against the local Postgres
	// replica. Left blank, the cache falls back to the in-process SQL
	// resolver.
	TenantManagerURL       string `env:"TENANT_MANAGER_URL"`
	TenantManagerCBFailure int    `env:"TENANT_MANAGER_CB_FAILURES"`
	TenantManagerCBTimeout int    `env:"TENANT_MANAGER_CB_TIMEOUT_SECONDS"`

	MigrationsPath   string `env:"MIGRATIONS_PATH"`
	AutoRecoverDirty bool   `env:"MIGRATIONS_AUTO_RECOVER_DIRTY"`

	OtelServiceName         string `env:"OTEL_RESOURCE_SERVICE_NAME"`
	OtelColExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// NewConfig loads Config from the environment, applying defaults for
// anything the teacher's env files leave unset in local development.
func NewConfig() (*Config, error) {
	cfg := &Config{
		LogLevel:                      "info",
		ServerAddress:                 ":8081",
		PostgresPort:                  "5432",
		MongoPort:                     "27017",
		RedisPort:                     "6379",
		RabbitMQPort:                  "5672",
		StreamName:                    "content",
		PartitionCount:                8,
		RelayMaxWorkers:               5,
		RelayBatchSize:                100,
		RelayPollSeconds:              2,
		TenantCachePositiveTTLSeconds: 300,
		TenantCacheNegativeTTLSeconds: 30,
		TenantManagerCBFailure:        5,
		TenantManagerCBTimeout:        30,
	}

	// SetConfigFromEnvVars is the same lib-commons helper the teacher uses
	// to hydrate its own Config structs from env tags.
	if err := libCommons.SetConfigFromEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}

	return cfg, nil
}

func (c *Config) relayPollInterval() time.Duration {
	return time.Duration(c.RelayPollSeconds) * time.Second
}

func (c *Config) tenantCacheTTLs() (positive, negative time.Duration) {
	return time.Duration(c.TenantCachePositiveTTLSeconds) * time.Second,
		time.Duration(c.TenantCacheNegativeTTLSeconds) * time.Second
}

func (c *Config) postgresDSN(host string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, host, c.PostgresPort, c.PostgresName)
}

func (c *Config) mongoURI() string {
	return fmt.Sprintf("mongodb://%s:%s@%s:%s", c.MongoUser, c.MongoPassword, c.MongoHost, c.MongoPort)
}

func (c *Config) redisURL() string {
	return fmt.Sprintf("redis://%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) rabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort)
}
