package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Database roles. The owner role may delete scans; readwrite may not.
const (
	RoleReadWrite = "readwrite"
	RoleOwner     = "owner"
)

// StoreConfig describes how to reach the waveform store.
// Unset fields fall back to the defaults returned by the Get* methods.
type StoreConfig struct {
	Driver      *string `json:"driver,omitempty" yaml:"driver,omitempty"`             // "sqlite" or "pgx"
	Path        *string `json:"path,omitempty" yaml:"path,omitempty"`                 // sqlite database file
	Conn        *string `json:"dsn,omitempty" yaml:"dsn,omitempty"`                   // raw DSN, overrides the fields below
	Host        *string `json:"host,omitempty" yaml:"host,omitempty"`                 // postgres host
	Port        *int    `json:"port,omitempty" yaml:"port,omitempty"`                 // postgres port
	User        *string `json:"user,omitempty" yaml:"user,omitempty"`                 // postgres user
	Password    *string `json:"password,omitempty" yaml:"password,omitempty"`         // postgres password
	Database    *string `json:"database,omitempty" yaml:"database,omitempty"`         // postgres database name
	SSLMode     *string `json:"sslmode,omitempty" yaml:"sslmode,omitempty"`           // postgres sslmode
	Role        *string `json:"role,omitempty" yaml:"role,omitempty"`                 // "readwrite" or "owner"
	BusyTimeout *string `json:"busy_timeout,omitempty" yaml:"busy_timeout,omitempty"` // sqlite busy timeout, duration string like "5s"
	ApplySchema *bool   `json:"apply_schema,omitempty" yaml:"apply_schema,omitempty"` // apply the embedded schema on open
}

// Helper functions to create pointers
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

// EmptyStoreConfig returns a StoreConfig with all fields set to nil.
func EmptyStoreConfig() *StoreConfig {
	return &StoreConfig{}
}

// SQLiteConfig returns a config for a sqlite file at path with the given role.
func SQLiteConfig(path, role string) *StoreConfig {
	return &StoreConfig{
		Driver: ptrString(DriverSQLite),
		Path:   ptrString(path),
		Role:   ptrString(role),
	}
}

// LoadStoreConfig loads a StoreConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under 1MB.
func LoadStoreConfig(path string) (*StoreConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json or .yaml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyStoreConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *StoreConfig) Validate() error {
	switch d := c.GetDriver(); d {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported driver %q", d)
	}

	switch r := c.GetRole(); r {
	case RoleReadWrite, RoleOwner:
	default:
		return fmt.Errorf("unsupported role %q", r)
	}

	if c.Port != nil && (*c.Port <= 0 || *c.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got %d", *c.Port)
	}

	if c.BusyTimeout != nil && *c.BusyTimeout != "" {
		d, err := time.ParseDuration(*c.BusyTimeout)
		if err != nil {
			return fmt.Errorf("invalid busy_timeout '%s': %w", *c.BusyTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("busy_timeout must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetDriver returns the normalized driver name or the default ("sqlite").
func (c *StoreConfig) GetDriver() string {
	if c.Driver == nil || strings.TrimSpace(*c.Driver) == "" {
		return DriverSQLite
	}
	return strings.ToLower(strings.TrimSpace(*c.Driver))
}

// GetRole returns the role or the default ("readwrite").
func (c *StoreConfig) GetRole() string {
	if c.Role == nil || *c.Role == "" {
		return RoleReadWrite
	}
	return strings.ToLower(*c.Role)
}

// GetPath returns the sqlite file path or the default ("scope_waveforms.db").
func (c *StoreConfig) GetPath() string {
	if c.Path == nil || *c.Path == "" {
		return "scope_waveforms.db"
	}
	return *c.Path
}

// GetHost returns the postgres host or the default ("localhost").
func (c *StoreConfig) GetHost() string {
	if c.Host == nil || *c.Host == "" {
		return "localhost"
	}
	return *c.Host
}

// GetPort returns the postgres port or the default (5432).
func (c *StoreConfig) GetPort() int {
	if c.Port == nil {
		return 5432
	}
	return *c.Port
}

// GetDatabase returns the database name or the default ("scope_waveforms").
func (c *StoreConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "scope_waveforms"
	}
	return *c.Database
}

// GetSSLMode returns the postgres sslmode or the default ("disable").
func (c *StoreConfig) GetSSLMode() string {
	if c.SSLMode == nil || *c.SSLMode == "" {
		return "disable"
	}
	return *c.SSLMode
}

// GetBusyTimeout returns the sqlite busy timeout or the default (5s).
func (c *StoreConfig) GetBusyTimeout() time.Duration {
	if c.BusyTimeout == nil || *c.BusyTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.BusyTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetApplySchema reports whether the embedded schema is applied on open (default true).
func (c *StoreConfig) GetApplySchema() bool {
	if c.ApplySchema == nil {
		return true
	}
	return *c.ApplySchema
}

// DSN assembles the driver connection string. An explicit DSN wins.
// For sqlite, foreign keys are always enabled so scan deletes cascade.
func (c *StoreConfig) DSN() string {
	if c.Conn != nil && strings.TrimSpace(*c.Conn) != "" {
		return strings.TrimSpace(*c.Conn)
	}

	if c.GetDriver() == DriverSQLite {
		q := url.Values{}
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.GetBusyTimeout().Milliseconds()))
		return c.GetPath() + "?" + q.Encode()
	}

	dsn := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.GetHost(), strconv.Itoa(c.GetPort())),
		Path:   "/" + c.GetDatabase(),
	}
	if c.User != nil && *c.User != "" {
		if c.Password != nil && *c.Password != "" {
			dsn.User = url.UserPassword(*c.User, *c.Password)
		} else {
			dsn.User = url.User(*c.User)
		}
	}
	dsn.RawQuery = url.Values{"sslmode": {c.GetSSLMode()}}.Encode()
	return dsn.String()
}
