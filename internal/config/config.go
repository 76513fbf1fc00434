package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Client    ClientConfig    `yaml:"client"`
	S3        S3Config        `yaml:"s3"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Storage selects the document backend: postgres or memory.
	Storage    string `yaml:"storage"`
	Migrations string `yaml:"migrations"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// ClientConfig configures the liftlog CLI.
type ClientConfig struct {
	DataDir string `yaml:"data_dir"`
	// Remote selects the remote store: none, server or s3.
	Remote         string        `yaml:"remote"`
	RemoteURL      string        `yaml:"remote_url"`
	AsyncMirror    bool          `yaml:"async_mirror"`
	SyncAnonymous  bool          `yaml:"sync_anonymous"`
	SyncBatchLimit int           `yaml:"sync_batch_limit"`
	ProbeTTL       time.Duration `yaml:"probe_ttl"`
}

type S3Config struct {
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	Prefix          string        `yaml:"prefix"`
	UsePathStyle    bool          `yaml:"use_path_style"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

// Remote store kinds.
const (
	RemoteNone   = "none"
	RemoteServer = "server"
	RemoteS3     = "s3"
)

// Server storage kinds.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			Storage:    StoragePostgres,
			Migrations: "migrations",
		},
		Database:  DatabaseConfig{Port: 5432},
		Tailscale: TailscaleConfig{Hostname: "liftlog"},
		Client: ClientConfig{
			DataDir:        filepath.Join(home, ".liftlog"),
			Remote:         RemoteNone,
			SyncBatchLimit: 200,
			ProbeTTL:       30 * time.Second,
		},
		S3: S3Config{PollInterval: 5 * time.Second},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. An empty path skips the file.
// Env vars use the prefix LIFTLOG_ and underscore-separated paths:
//
//	LIFTLOG_SERVER_HOST, LIFTLOG_SERVER_PORT, LIFTLOG_SERVER_STORAGE,
//	LIFTLOG_DB_HOST, LIFTLOG_DB_PORT, LIFTLOG_DB_NAME,
//	LIFTLOG_DB_USER, LIFTLOG_DB_PASSWORD, LIFTLOG_DB_SSLMODE,
//	LIFTLOG_TAILSCALE_ENABLED, LIFTLOG_TAILSCALE_HOSTNAME,
//	LIFTLOG_DATA_DIR, LIFTLOG_REMOTE, LIFTLOG_REMOTE_URL,
//	LIFTLOG_S3_BUCKET, LIFTLOG_S3_REGION, LIFTLOG_S3_ENDPOINT,
//	LIFTLOG_S3_ACCESS_KEY_ID, LIFTLOG_S3_SECRET_ACCESS_KEY
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadServer loads and validates a liftlog-server config.
func LoadServer(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadClient loads and validates a liftlog CLI config.
func LoadClient(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("LIFTLOG_SERVER_HOST", &cfg.Server.Host)
	num("LIFTLOG_SERVER_PORT", &cfg.Server.Port)
	str("LIFTLOG_SERVER_STORAGE", &cfg.Server.Storage)
	str("LIFTLOG_DB_HOST", &cfg.Database.Host)
	num("LIFTLOG_DB_PORT", &cfg.Database.Port)
	str("LIFTLOG_DB_NAME", &cfg.Database.Name)
	str("LIFTLOG_DB_USER", &cfg.Database.User)
	str("LIFTLOG_DB_PASSWORD", &cfg.Database.Password)
	str("LIFTLOG_DB_SSLMODE", &cfg.Database.SSLMode)
	flag("LIFTLOG_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	str("LIFTLOG_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	str("LIFTLOG_DATA_DIR", &cfg.Client.DataDir)
	str("LIFTLOG_REMOTE", &cfg.Client.Remote)
	str("LIFTLOG_REMOTE_URL", &cfg.Client.RemoteURL)
	str("LIFTLOG_S3_BUCKET", &cfg.S3.Bucket)
	str("LIFTLOG_S3_REGION", &cfg.S3.Region)
	str("LIFTLOG_S3_ENDPOINT", &cfg.S3.Endpoint)
	str("LIFTLOG_S3_ACCESS_KEY_ID", &cfg.S3.AccessKeyID)
	str("LIFTLOG_S3_SECRET_ACCESS_KEY", &cfg.S3.SecretAccessKey)
}

// ValidateServer checks the fields liftlog-server needs.
func (c *Config) ValidateServer() error {
	switch c.Server.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("server.storage must be %s or %s, got %q", StoragePostgres, StorageMemory, c.Server.Storage)
	}
	if !c.Tailscale.Enabled && c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}

// ValidateClient checks the fields the liftlog CLI needs.
func (c *Config) ValidateClient() error {
	if c.Client.DataDir == "" {
		return fmt.Errorf("client.data_dir is required")
	}
	if c.Client.SyncBatchLimit < 0 {
		return fmt.Errorf("client.sync_batch_limit must not be negative")
	}
	switch c.Client.Remote {
	case "", RemoteNone:
	case RemoteServer:
		if c.Client.RemoteURL == "" {
			return fmt.Errorf("client.remote_url is required for the server remote")
		}
	case RemoteS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 remote")
		}
		if c.S3.Region == "" && c.S3.Endpoint == "" {
			return fmt.Errorf("s3.region or s3.endpoint is required for the s3 remote")
		}
	default:
		return fmt.Errorf("client.remote must be none, server or s3, got %q", c.Client.Remote)
	}
	return nil
}
