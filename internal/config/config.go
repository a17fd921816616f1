package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Metadata MetadataConfig `yaml:"metadata"`
	Blob     BlobConfig     `yaml:"blob"`
	Quota    QuotaConfig    `yaml:"quota"`
	Trash    TrashConfig    `yaml:"trash"`
	Auth     AuthConfig     `yaml:"auth"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

var validate = validator.New()

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load reads YAML (with ${VAR} expansion), applies env overrides on top
// and validates the result. Fields absent from both keep Default values.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from config file %s: %w", configPath, err)
	}

	// Enrich with env variables
	data = expandEnvVars(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("cannot read config env: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Blob.Backend == BlobBackendS3 && cfg.Blob.S3.Bucket == "" {
		return fmt.Errorf("blob.s3.bucket: required for s3 backend")
	}
	if cfg.Blob.Backend == BlobBackendFS && cfg.Blob.FS.Root == "" {
		return fmt.Errorf("blob.fs.root: required for fs backend")
	}
	if cfg.Blob.Backend == BlobBackendPostgres && cfg.Metadata.Backend != MetadataBackendPostgres {
		return fmt.Errorf("blob.backend: postgres blobs require postgres metadata")
	}

	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
