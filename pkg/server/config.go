package server

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds server-level configuration parameters.
type Config struct {
	// --- Identity ---
	ServerName string `yaml:"server_name"`
	HTTPAddr   string `yaml:"http_addr"`

	// --- Scripts ---
	ScriptsDir   string `yaml:"scripts_dir"`
	WatchScripts bool   `yaml:"watch_scripts"`

	// --- Storage ---
	AccountsPath string `yaml:"accounts_path"` // bbolt account store
	AuditPath    string `yaml:"audit_path"`    // SQLite dispatch audit log
	AuditLimit   int    `yaml:"audit_limit"`   // Max rows returned by the audit API
	AuditTimeout int    `yaml:"audit_timeout"` // Query timeout in seconds

	// --- Auth ---
	JWTSecret        string `yaml:"jwt_secret"` // Auto-generated if empty
	JWTExpiry        int    `yaml:"jwt_expiry"` // Seconds
	DefaultAuthority int    `yaml:"default_authority"`
	AdminAuthority   int    `yaml:"admin_authority"`

	// --- Web ---
	CORSOrigins    []string `yaml:"cors_origins"`     // Empty list allows any origin
	LoginRateLimit int      `yaml:"login_rate_limit"` // Attempts per minute per IP

	// --- Runtime ---
	MaxClients int  `yaml:"max_clients"`
	TickMillis int  `yaml:"tick_millis"`
	Metrics    bool `yaml:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults for a local server.
func DefaultConfig() *Config {
	return &Config{
		ServerName:       "luamod",
		HTTPAddr:         ":8420",
		ScriptsDir:       "scripts",
		WatchScripts:     true,
		AccountsPath:     "data/accounts.db",
		AuditPath:        "data/audit.db",
		AuditLimit:       100,
		AuditTimeout:     5,
		JWTExpiry:        86400,
		LoginRateLimit:   10,
		DefaultAuthority: 0,
		AdminAuthority:   1000,
		MaxClients:       128,
		TickMillis:       100,
		Metrics:          true,
	}
}

// LoadConfig reads a YAML config file over the defaults. Relative storage
// and script paths are resolved against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, p := range []*string{&cfg.ScriptsDir, &cfg.AccountsPath, &cfg.AuditPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	return cfg, nil
}
