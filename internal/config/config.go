package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Access      AccessConfig              `json:"access"`
	Catalog     CatalogConfig             `json:"catalog"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// TokenTTL is the auth token lifetime in minutes.
	TokenTTL int `json:"token_ttl"`
	// TokenPurgeInterval is how often expired tokens are swept, in minutes.
	TokenPurgeInterval int `json:"token_purge_interval"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AccessConfig controls the guarded sections and how an empty required role is treated.
type AccessConfig struct {
	AllowEmptyRole bool              `json:"allow_empty_role"`
	Sections       map[string]string `json:"sections"`
}

type CatalogConfig struct {
	// RefreshInterval is the snapshot reload period in seconds.
	RefreshInterval int    `json:"refresh_interval"`
	FallbackPath    string `json:"fallback_path"`
}

// DefaultSections mirrors the front-end route table.
var DefaultSections = map[string]string{
	"dashboard": "student",
	"admin":     "instructor",
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if sqliteCfg, ok := cfg.Databases["sqlite3"]; ok {
		if sqliteCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite3 dsn must be configured")
		}
		if sqliteCfg.DSN != ":memory:" && !filepath.IsAbs(sqliteCfg.DSN) {
			sqliteCfg.DSN = filepath.Join(filepath.Dir(absPath), sqliteCfg.DSN)
			cfg.Databases["sqlite3"] = sqliteCfg
		}
	}
	if cfg.Catalog.FallbackPath != "" && !filepath.IsAbs(cfg.Catalog.FallbackPath) {
		cfg.Catalog.FallbackPath = filepath.Join(filepath.Dir(absPath), cfg.Catalog.FallbackPath)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.TokenTTL <= 0 {
		c.BasicConfig.TokenTTL = 24 * 60
	}
	if c.BasicConfig.TokenPurgeInterval <= 0 {
		c.BasicConfig.TokenPurgeInterval = 60
	}
	if c.Catalog.RefreshInterval <= 0 {
		c.Catalog.RefreshInterval = 300
	}
	if len(c.Access.Sections) == 0 {
		c.Access.Sections = make(map[string]string, len(DefaultSections))
		for name, role := range DefaultSections {
			c.Access.Sections[name] = role
		}
	}
}
