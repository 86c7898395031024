package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName                       string
	Port                          int
	LogLevel                      string
	PrettyLogs                    bool
	HttpServerWriteTimeoutSeconds int
	HttpServerReadTimeoutSeconds  int
	HttpServerIdleTimeoutSeconds  int

	// Postgres (project configuration + run history)
	DatabaseDriver              string
	DatabaseHost                string
	DatabasePort                string
	DatabaseUserName            string
	DatabasePassword            string
	DatabaseName                string
	DatabaseSSLMode             string
	DatabaseMaxOpenConns        int
	DatabaseMaxIdleConns        int
	DatabaseConnMaxLifetime     time.Duration
	DatabaseMigrationFolderPath string

	// Redis (run locks + stats cache)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Kafka (run/sync completed events)
	KafkaBrokers  string
	KafkaRunTopic string

	// Survey service client
	SurveyRequestTimeout time.Duration
	SurveyPageSize       int
	SurveyMaxAttempts    int

	// Reconciliation runs
	MaxRunTime         time.Duration
	RunLockTTL         time.Duration
	StatsCacheTTL      time.Duration
	PublishConcurrency int
	RunHistoryLimit    int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "cadastro-retorno-api")
	v.SetDefault("PORT", 3004)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PRETTY_LOGS", false)
	// Reconciliation runs are synchronous from the caller's perspective, so the
	// write timeout has to cover a full fetch+reconcile cycle.
	v.SetDefault("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 300)
	v.SetDefault("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10)
	v.SetDefault("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 10)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER_NAME", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "cadastro_retorno")
	v.SetDefault("DB_SQL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "10s")
	v.SetDefault("DB_MIGRATION_FOLDER_PATH", "db/pg")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_RUN_TOPIC", "pendency-runs")

	v.SetDefault("SURVEY_REQUEST_TIMEOUT", "60s")
	v.SetDefault("SURVEY_PAGE_SIZE", 10000)
	v.SetDefault("SURVEY_MAX_ATTEMPTS", 3)

	v.SetDefault("MAX_RUN_TIME", "5m")
	v.SetDefault("RUN_LOCK_TTL", "5m")
	v.SetDefault("STATS_CACHE_TTL", "10m")
	v.SetDefault("PUBLISH_CONCURRENCY", 8)
	v.SetDefault("RUN_HISTORY_LIMIT", 100)

	cfg := &Config{
		AppName:                       v.GetString("APP_NAME"),
		Port:                          v.GetInt("PORT"),
		LogLevel:                      v.GetString("LOG_LEVEL"),
		PrettyLogs:                    v.GetBool("PRETTY_LOGS"),
		HttpServerWriteTimeoutSeconds: v.GetInt("HTTP_SERVER_WRITE_TIMEOUT_SECONDS"),
		HttpServerReadTimeoutSeconds:  v.GetInt("HTTP_SERVER_READ_TIMEOUT_SECONDS"),
		HttpServerIdleTimeoutSeconds:  v.GetInt("HTTP_SERVER_IDLE_TIMEOUT_SECONDS"),

		DatabaseDriver:              v.GetString("DB_DRIVER"),
		DatabaseHost:                v.GetString("DB_HOST"),
		DatabasePort:                v.GetString("DB_PORT"),
		DatabaseUserName:            v.GetString("DB_USER_NAME"),
		DatabasePassword:            v.GetString("DB_PASSWORD"),
		DatabaseName:                v.GetString("DB_NAME"),
		DatabaseSSLMode:             v.GetString("DB_SQL_MODE"),
		DatabaseMaxOpenConns:        v.GetInt("DB_MAX_OPEN_CONNS"),
		DatabaseMaxIdleConns:        v.GetInt("DB_MAX_IDLE_CONNS"),
		DatabaseConnMaxLifetime:     v.GetDuration("DB_CONN_MAX_LIFETIME"),
		DatabaseMigrationFolderPath: v.GetString("DB_MIGRATION_FOLDER_PATH"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetInt("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		KafkaBrokers:  v.GetString("KAFKA_BROKERS"),
		KafkaRunTopic: v.GetString("KAFKA_RUN_TOPIC"),

		SurveyRequestTimeout: v.GetDuration("SURVEY_REQUEST_TIMEOUT"),
		SurveyPageSize:       v.GetInt("SURVEY_PAGE_SIZE"),
		SurveyMaxAttempts:    v.GetInt("SURVEY_MAX_ATTEMPTS"),

		MaxRunTime:         v.GetDuration("MAX_RUN_TIME"),
		RunLockTTL:         v.GetDuration("RUN_LOCK_TTL"),
		StatsCacheTTL:      v.GetDuration("STATS_CACHE_TTL"),
		PublishConcurrency: v.GetInt("PUBLISH_CONCURRENCY"),
		RunHistoryLimit:    v.GetInt("RUN_HISTORY_LIMIT"),
	}

	return cfg, nil
}
