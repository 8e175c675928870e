// Package config provides YAML-based configuration with environment
// overrides for secrets, so credentials never need to live in the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	FTP     FTPSection    `yaml:"ftp"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Auth    AuthConfig    `yaml:"auth"`
	Upload  UploadConfig  `yaml:"upload"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	BodyLimit    string `yaml:"bodyLimit"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
}

// FTPSection contains remote store connection settings
type FTPSection struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"` // usually overridden via FTP_PASSWORD
	TLSMode        string `yaml:"tlsMode"`  // none | explicit | implicit
	BaseDir        string `yaml:"baseDir"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// MongoConfig contains metadata store settings. An empty URI selects the
// in-memory store, which is only suitable for development.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// AuthConfig contains token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"` // usually overridden via JWT_SECRET
}

// UploadConfig contains chunk assembly settings
type UploadConfig struct {
	ScratchDir          string `yaml:"scratchDir"`
	RemoteAssembly      bool   `yaml:"remoteAssembly"`
	MaxChunkSizeMB      int    `yaml:"maxChunkSizeMB"`
	OrphanMaxAgeMinutes int    `yaml:"orphanMaxAgeMinutes"`
}

// SweepConfig contains reconciliation sweep settings
type SweepConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"intervalSeconds"`
	BatchSize       int  `yaml:"batchSize"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8080,
			BindAddress:  "0.0.0.0",
			BodyLimit:    "12M",
			ReadTimeout:  60,
			WriteTimeout: 300,
		},
		FTP: FTPSection{
			Port:           21,
			TLSMode:        "explicit",
			TimeoutSeconds: 30,
		},
		Mongo: MongoConfig{
			Database: "digiscribe",
		},
		Upload: UploadConfig{
			ScratchDir:          "./data/uploads",
			MaxChunkSizeMB:      10,
			OrphanMaxAgeMinutes: 120,
		},
		Sweep: SweepConfig{
			Enabled:         true,
			IntervalSeconds: 60,
			BatchSize:       20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the YAML file at path, falling back to defaults when the
// file does not exist, then applies .env and environment overrides.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus environment is a complete configuration.
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables win over it.
	godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("FTP_HOST"); v != "" {
		c.FTP.Host = v
	}
	if v := os.Getenv("FTP_USER"); v != "" {
		c.FTP.User = v
	}
	if v := os.Getenv("FTP_PASSWORD"); v != "" {
		c.FTP.Password = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// Validate rejects configurations the server cannot start with
func (c *AppConfig) Validate() error {
	if c.FTP.Host == "" {
		return fmt.Errorf("ftp host is required (ftp.host or FTP_HOST)")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (auth.jwtSecret or JWT_SECRET)")
	}
	switch c.FTP.TLSMode {
	case "none", "explicit", "implicit":
	default:
		return fmt.Errorf("ftp.tlsMode must be none, explicit or implicit, got %q", c.FTP.TLSMode)
	}
	return nil
}

// EnsureDirectories creates the local directories the server writes to
func (c *AppConfig) EnsureDirectories() error {
	if c.Upload.RemoteAssembly {
		return nil
	}
	dir := filepath.Join(c.Upload.ScratchDir, "chunks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating scratch directory %s: %w", dir, err)
	}
	return nil
}

// ServerAddr returns the listen address
func (c *AppConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// FTPTimeout returns the per-operation FTP timeout
func (c *AppConfig) FTPTimeout() time.Duration {
	return time.Duration(c.FTP.TimeoutSeconds) * time.Second
}

// SweepInterval returns the reconciliation cadence
func (c *AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalSeconds) * time.Second
}

// OrphanMaxAge returns how long abandoned upload artifacts are kept
func (c *AppConfig) OrphanMaxAge() time.Duration {
	return time.Duration(c.Upload.OrphanMaxAgeMinutes) * time.Minute
}
