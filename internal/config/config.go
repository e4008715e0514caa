package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration, loaded from a YAML file with
// environment-variable overrides (BUDGETBOOK_SERVER_PORT and so on).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Import   ImportConfig   `mapstructure:"import"`
	Notion   NotionConfig   `mapstructure:"notion"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	DatasetID string `mapstructure:"dataset_id"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type ImportConfig struct {
	// MaxUploadBytes is the ceiling on an uploaded CSV file, enforced before
	// parsing. Zero means the default of 10 MB.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	UserID         string `mapstructure:"user_id"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultMaxUploadBytes caps uploaded CSV files at 10 MB.
const DefaultMaxUploadBytes int64 = 10 << 20

// Load reads configuration from the given YAML file. A missing file is not an
// error; defaults and environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("bigquery.dataset_id", "finance")
	v.SetDefault("import.max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("import.user_id", "default")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("BUDGETBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// viper reports a missing file as ConfigFileNotFoundError when
		// searching paths and as a wrapped *fs.PathError when given an
		// explicit file; both fall back to defaults and env.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Import.MaxUploadBytes <= 0 {
		cfg.Import.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// NotionEnabled reports whether the Notion export is configured.
func (c *Config) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}
