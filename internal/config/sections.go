package config

import (
	"fmt"
	"net/url"
	"time"
)

type AppConfig struct {
	Port            int           `yaml:"port" env:"APP_PORT" validate:"gt=0,lte=65535"`
	DefaultTimeout  time.Duration `yaml:"default_timeout" env:"APP_DEFAULT_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"APP_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"APP_MAX_UPLOAD_BYTES" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	// AuditFile receives the zerolog audit stream. Empty means stdout.
	AuditFile string `yaml:"audit_file" env:"LOG_AUDIT_FILE"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" validate:"gte=0"`
}

func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.MaxConns > 0 {
		q.Set("pool_max_conns", fmt.Sprintf("%d", c.MaxConns))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

const (
	MetadataBackendPostgres = "postgres"
	MetadataBackendMemory   = "memory"
)

type MetadataConfig struct {
	Backend string `yaml:"backend" env:"METADATA_BACKEND" validate:"oneof=postgres memory"`
}

const (
	BlobBackendMemory   = "memory"
	BlobBackendFS       = "fs"
	BlobBackendS3       = "s3"
	BlobBackendBadger   = "badger"
	BlobBackendPostgres = "postgres"
)

type BlobConfig struct {
	Backend string       `yaml:"backend" env:"BLOB_BACKEND" validate:"oneof=memory fs s3 badger postgres"`
	FS      FSBlobConfig `yaml:"fs"`
	S3      S3BlobConfig `yaml:"s3"`
	Badger  BadgerConfig `yaml:"badger"`
}

type FSBlobConfig struct {
	Root string `yaml:"root" env:"BLOB_FS_ROOT"`
}

type S3BlobConfig struct {
	Bucket          string `yaml:"bucket" env:"BLOB_S3_BUCKET"`
	Region          string `yaml:"region" env:"BLOB_S3_REGION"`
	Endpoint        string `yaml:"endpoint" env:"BLOB_S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"BLOB_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"BLOB_S3_SECRET_ACCESS_KEY"`
	KeyPrefix       string `yaml:"key_prefix" env:"BLOB_S3_KEY_PREFIX"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"BLOB_S3_USE_PATH_STYLE"`
}

type BadgerConfig struct {
	Path     string `yaml:"path" env:"BLOB_BADGER_PATH"`
	InMemory bool   `yaml:"in_memory" env:"BLOB_BADGER_IN_MEMORY"`
}

type QuotaConfig struct {
	DefaultLimit int64 `yaml:"default_limit" env:"QUOTA_DEFAULT_LIMIT" validate:"gt=0"`
	// ReconcileInterval of zero disables the background reconciler.
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"QUOTA_RECONCILE_INTERVAL" validate:"gte=0"`
}

type TrashConfig struct {
	// Cascade makes folder trash/restore/delete apply to the whole subtree.
	Cascade bool `yaml:"cascade" env:"TRASH_CASCADE"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" validate:"required,min=16"`
	Issuer    string `yaml:"issuer" env:"AUTH_ISSUER"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH" validate:"required,startswith=/"`
}

// Default returns the configuration used for anything the file and
// environment leave unset.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Port:            8080,
			DefaultTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  1 << 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "drive",
			Name:    "drive",
			SSLMode: "disable",
		},
		Metadata: MetadataConfig{Backend: MetadataBackendPostgres},
		Blob: BlobConfig{
			Backend: BlobBackendFS,
			FS:      FSBlobConfig{Root: "data/blobs"},
			S3:      S3BlobConfig{Region: "us-east-1"},
			Badger:  BadgerConfig{Path: "data/badger"},
		},
		Quota: QuotaConfig{
			DefaultLimit:      15 << 30,
			ReconcileInterval: time.Hour,
		},
		Trash: TrashConfig{Cascade: true},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
