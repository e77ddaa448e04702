package config

import "time"

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"juniper"`
	Port               int    `env:"PORT" env-default:"3010"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	TracingEnabled     bool   `env:"TRACING_ENABLED" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Central repository database. Driver is "postgres" for a shared
	// multi-user repository or "sqlite" for an embedded single-user one.
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"juniper"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseFilePath              string        `env:"DB_FILE_PATH" env-default:"juniper.db"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Graph projection (Neo4j / Memgraph). Optional; when disabled persona
	// links live only in the relational store.
	GraphEnabled    bool   `env:"GRAPH_ENABLED" env-default:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Kafka ingestion of correlation events emitted by ingest pipelines.
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"correlation-events"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"juniper-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Processing
	ReferenceImportBatchSize int `env:"REFERENCE_IMPORT_BATCH_SIZE" env-default:"500"`
	InstanceInsertBatchSize  int `env:"INSTANCE_INSERT_BATCH_SIZE" env-default:"250"`
}
