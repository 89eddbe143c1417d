package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Anthropic Messages API für die Themen-Klassifikation
	AnthropicAPIKey    string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL   string `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
	AnthropicModel     string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	AnthropicMaxTokens int    `envconfig:"ANTHROPIC_MAX_TOKENS" default:"1024"`

	// Archiv-Dienste
	WaybackBaseURL      string `envconfig:"WAYBACK_BASE_URL" default:"https://web.archive.org"`
	WaybackAvailableURL string `envconfig:"WAYBACK_AVAILABLE_URL" default:"https://archive.org/wayback/available"`
	ArchiveTodayBaseURL string `envconfig:"ARCHIVE_TODAY_BASE_URL" default:"https://archive.today"`

	// Rate-Limiting und Retries für die Batch-Verarbeitung
	ArchiveDelayMs    int `envconfig:"ARCHIVE_DELAY_MS" default:"2000"`
	ArchiveMaxRetries int `envconfig:"ARCHIVE_MAX_RETRIES" default:"3"`
	ClassifyDelayMs   int `envconfig:"CLASSIFY_DELAY_MS" default:"2000"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	DebugMaxRecords int `envconfig:"DEBUG_MAX_RECORDS" default:"30"`

	// S3 für lokale Snapshots (Fallback, wenn beide Archiv-Dienste scheitern)
	SnapshotS3Key    string `envconfig:"SNAPSHOT_S3_KEY"`
	SnapshotS3Secret string `envconfig:"SNAPSHOT_S3_SECRET"`
	SnapshotS3URL    string `envconfig:"SNAPSHOT_S3_URL"`
	SnapshotS3Region string `envconfig:"SNAPSHOT_S3_REGION"`
	SnapshotS3Bucket string `envconfig:"SNAPSHOT_S3_BUCKET"`

	// Archiver-Konfiguration
	EnabledArchivers string `envconfig:"ENABLED_ARCHIVERS" default:"wayback,archivetoday"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// SnapshotStorageEnabled meldet, ob die S3-Zugangsdaten vollständig sind.
func (c *Config) SnapshotStorageEnabled() bool {
	return c.SnapshotS3Key != "" && c.SnapshotS3Secret != "" && c.SnapshotS3URL != "" &&
		c.SnapshotS3Region != "" && c.SnapshotS3Bucket != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
