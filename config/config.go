package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/consistency"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern-api"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	Port                          int    `env:"PORT" env-default:"3004"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	ShutdownTimeoutSeconds        int    `env:"HTTP_SERVER_SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Document store: "memory" or "postgres"
	StoreDriver string `env:"STORE_DRIVER" env-default:"memory"`

	// PostgreSQL
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:""`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseMigrateOnStart        bool          `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Propagation
	CascadeCollections       []string      `env:"CASCADE_COLLECTIONS" env-default:"rewards,receipts,vouchers,notifications,analytics-cache"`
	CascadeForeignKeys       string        `env:"CASCADE_FOREIGN_KEYS" env-default:""`
	CascadeCollectionTimeout time.Duration `env:"CASCADE_COLLECTION_TIMEOUT" env-default:"30s"`
	CascadeMaxConcurrency    int           `env:"CASCADE_MAX_CONCURRENCY" env-default:"4"`
	// zero falls back to the default pause; a negative value disables it
	BulkRepairDelay          time.Duration `env:"BULK_REPAIR_DELAY" env-default:"100ms"`
	RepairPageSize           int           `env:"REPAIR_PAGE_SIZE" env-default:"100"`

	// Guests
	CountryCode            string `env:"PHONE_COUNTRY_CODE" env-default:"27"`
	StrictIdentityCreate   bool   `env:"STRICT_IDENTITY_CREATE" env-default:"false"`
	TransactionsCollection string `env:"TRANSACTIONS_COLLECTION" env-default:"receipts"`
	SearchMaxResults       int    `env:"SEARCH_MAX_RESULTS" env-default:"0"`

	// Rename lock
	RenameLockEnabled bool          `env:"RENAME_LOCK_ENABLED" env-default:"false"`
	RenameLockTTL     time.Duration `env:"RENAME_LOCK_TTL" env-default:"2m"`
	RenameLockWait    time.Duration `env:"RENAME_LOCK_WAIT" env-default:"0s"`
	RedisHost         string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort         int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB           int           `env:"REDIS_DB" env-default:"0"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`
	AuthAdminRole string `env:"AUTH_ADMIN_ROLE" env-default:"admin"`

	// Kafka producer (guest lifecycle events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"guest-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	OTLPProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"none"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseHost == "" {
			return errors.New("DB_HOST is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (use 'memory' or 'postgres')", c.StoreDriver)
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED=true")
	}
	if _, err := c.CascadeTargets(); err != nil {
		return err
	}
	return nil
}

// CascadeTargets builds the propagation targets from CASCADE_COLLECTIONS and
// CASCADE_FOREIGN_KEYS.
func (c *Config) CascadeTargets() ([]consistency.Target, error) {
	foreignKeys, err := consistency.ParseForeignKeys(c.CascadeForeignKeys)
	if err != nil {
		return nil, fmt.Errorf("invalid CASCADE_FOREIGN_KEYS: %w", err)
	}
	targets := consistency.TargetsFor(c.CascadeCollections, foreignKeys)
	if len(targets) == 0 {
		return nil, errors.New("CASCADE_COLLECTIONS must name at least one collection")
	}
	return targets, nil
}
