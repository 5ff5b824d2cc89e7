package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// Required fields
	PlatformURL   string `mapstructure:"platform_url"`   // base URL of the database platform API
	PlatformToken string `mapstructure:"platform_token"` // API token for the platform
	S3Bucket      string `mapstructure:"s3_bucket"`
	JWTSecretKey  string `mapstructure:"jwt_secret_key"`

	// Object storage settings
	S3Endpoint  string `mapstructure:"s3_endpoint"` // empty means the default AWS endpoint
	S3Region    string `mapstructure:"s3_region"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`

	// Optional API settings
	APIHost string `mapstructure:"api_host"`
	APIPort int    `mapstructure:"api_port"`

	// Optional SSL settings
	SSLCert string `mapstructure:"ssl_cert"`
	SSLKey  string `mapstructure:"ssl_key"`

	// Optional CORS settings
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Optional logging settings
	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	// Job ledger database
	DBPath string `mapstructure:"db_path"`

	// Protocol tunables
	ExportPollIntervalMs  int  `mapstructure:"export_poll_interval_ms"`
	ExportPollMaxAttempts int  `mapstructure:"export_poll_max_attempts"`
	IngestPollIntervalMs  int  `mapstructure:"ingest_poll_interval_ms"`
	IngestPollMaxAttempts int  `mapstructure:"ingest_poll_max_attempts"`
	SearchCallIntervalMs  int  `mapstructure:"search_call_interval_ms"`
	StrictDigest          bool `mapstructure:"strict_digest"`

	// Static paths
	ConfigPath string
}

const (
	DefaultConfigPath = "/etc/backupd/config.yml"
	DefaultDBPath     = "/var/lib/backupd/db.sqlite3"
	DefaultAPIHost    = "0.0.0.0"
	DefaultAPIPort    = 8347
	DefaultLogLevel   = "info"
	DefaultS3Region   = "us-east-1"

	DefaultExportPollIntervalMs  = 2000
	DefaultExportPollMaxAttempts = 180
	DefaultIngestPollIntervalMs  = 1000
	DefaultIngestPollMaxAttempts = 60
	DefaultSearchCallIntervalMs  = 300
)

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("api_host", DefaultAPIHost)
	viper.SetDefault("api_port", DefaultAPIPort)
	viper.SetDefault("log_level", DefaultLogLevel)
	viper.SetDefault("s3_region", DefaultS3Region)
	viper.SetDefault("db_path", DefaultDBPath)
	viper.SetDefault("export_poll_interval_ms", DefaultExportPollIntervalMs)
	viper.SetDefault("export_poll_max_attempts", DefaultExportPollMaxAttempts)
	viper.SetDefault("ingest_poll_interval_ms", DefaultIngestPollIntervalMs)
	viper.SetDefault("ingest_poll_max_attempts", DefaultIngestPollMaxAttempts)
	viper.SetDefault("search_call_interval_ms", DefaultSearchCallIntervalMs)

	// Allow environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvPrefix("BACKUPD")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ConfigPath = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.PlatformURL == "" {
		return fmt.Errorf("platform_url is required")
	}

	if !strings.HasPrefix(c.PlatformURL, "http://") && !strings.HasPrefix(c.PlatformURL, "https://") {
		return fmt.Errorf("platform_url must be an http(s) URL: %s", c.PlatformURL)
	}

	if c.S3Bucket == "" {
		return fmt.Errorf("s3_bucket is required")
	}

	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwt_secret_key is required")
	}

	// Validate SSL config if provided
	if c.SSLCert != "" || c.SSLKey != "" {
		if c.SSLCert == "" || c.SSLKey == "" {
			return fmt.Errorf("both ssl_cert and ssl_key must be provided")
		}
	}

	if c.ExportPollMaxAttempts <= 0 || c.IngestPollMaxAttempts <= 0 {
		return fmt.Errorf("poll attempt ceilings must be positive")
	}

	return nil
}
