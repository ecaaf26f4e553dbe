package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyStoreConfigDefaults(t *testing.T) {
	cfg := EmptyStoreConfig()

	if got := cfg.GetDriver(); got != DriverSQLite {
		t.Errorf("GetDriver() = %q, want %q", got, DriverSQLite)
	}
	if got := cfg.GetRole(); got != RoleReadWrite {
		t.Errorf("GetRole() = %q, want %q", got, RoleReadWrite)
	}
	if got := cfg.GetPath(); got != "scope_waveforms.db" {
		t.Errorf("GetPath() = %q", got)
	}
	if got := cfg.GetPort(); got != 5432 {
		t.Errorf("GetPort() = %d, want 5432", got)
	}
	if got := cfg.GetBusyTimeout(); got != 5*time.Second {
		t.Errorf("GetBusyTimeout() = %v, want 5s", got)
	}
	if !cfg.GetApplySchema() {
		t.Error("GetApplySchema() = false, want true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadStoreConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "store.json")

	testJSON := `{
  "driver": "PGX",
  "host": "db.example.org",
  "port": 5433,
  "user": "scope_owner",
  "password": "p@ss",
  "database": "scopes",
  "role": "owner",
  "apply_schema": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadStoreConfig(configPath)
	if err != nil {
		t.Fatalf("LoadStoreConfig failed: %v", err)
	}

	if cfg.GetDriver() != DriverPostgres {
		t.Errorf("GetDriver() = %q, want %q", cfg.GetDriver(), DriverPostgres)
	}
	if cfg.GetRole() != RoleOwner {
		t.Errorf("GetRole() = %q, want %q", cfg.GetRole(), RoleOwner)
	}
	if cfg.GetApplySchema() {
		t.Error("GetApplySchema() = true, want false")
	}

	u, err := url.Parse(cfg.DSN())
	if err != nil {
		t.Fatalf("DSN() not a URL: %v", err)
	}
	if u.Host != "db.example.org:5433" || u.Path != "/scopes" {
		t.Errorf("DSN() = %q", cfg.DSN())
	}
	if pw, _ := u.User.Password(); pw != "p@ss" || u.User.Username() != "scope_owner" {
		t.Errorf("DSN() user info = %v", u.User)
	}
	if u.Query().Get("sslmode") != "disable" {
		t.Errorf("DSN() sslmode = %q", u.Query().Get("sslmode"))
	}
}

func TestLoadStoreConfigMissing(t *testing.T) {
	_, err := LoadStoreConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadStoreConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	if err := os.WriteFile(configPath, []byte(`{"port": "invalid"`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadStoreConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadStoreConfigRejectsUnknownExtension(t *testing.T) {
	_, err := LoadStoreConfig("/some/path/config.toml")
	if err == nil {
		t.Error("Expected error for .toml extension, got nil")
	}
}

func TestLoadStoreConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "store.yaml")
	data := "driver: pgx\nhost: db.lab\nport: 5433\nuser: scope\ndatabase: scans\nrole: owner\napply_schema: false\n"
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadStoreConfig(configPath)
	if err != nil {
		t.Fatalf("LoadStoreConfig failed: %v", err)
	}
	if cfg.GetDriver() != DriverPostgres {
		t.Errorf("Expected driver pgx, got %s", cfg.GetDriver())
	}
	if cfg.GetPort() != 5433 {
		t.Errorf("Expected port 5433, got %d", cfg.GetPort())
	}
	if cfg.GetRole() != RoleOwner {
		t.Errorf("Expected role owner, got %s", cfg.GetRole())
	}
	if cfg.GetApplySchema() {
		t.Error("Expected apply_schema false")
	}
	if got, want := cfg.DSN(), "postgres://scope@db.lab:5433/scans?sslmode=disable"; got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestLoadStoreConfigInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "store.yml")
	if err := os.WriteFile(configPath, []byte("driver: [sqlite\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadStoreConfig(configPath); err == nil {
		t.Error("Expected error when loading invalid YAML, got nil")
	}
}

func TestLoadStoreConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadStoreConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{name: "empty", cfg: StoreConfig{}},
		{name: "sqlite owner", cfg: StoreConfig{Driver: ptrString("sqlite"), Role: ptrString("owner")}},
		{name: "unknown driver", cfg: StoreConfig{Driver: ptrString("mysql")}, wantErr: true},
		{name: "unknown role", cfg: StoreConfig{Role: ptrString("admin")}, wantErr: true},
		{name: "port zero", cfg: StoreConfig{Port: ptrInt(0)}, wantErr: true},
		{name: "port too large", cfg: StoreConfig{Port: ptrInt(70000)}, wantErr: true},
		{name: "bad busy timeout", cfg: StoreConfig{BusyTimeout: ptrString("soon")}, wantErr: true},
		{name: "negative busy timeout", cfg: StoreConfig{BusyTimeout: ptrString("-1s")}, wantErr: true},
		{name: "busy timeout", cfg: StoreConfig{BusyTimeout: ptrString("250ms")}},
		{name: "apply schema off", cfg: StoreConfig{ApplySchema: ptrBool(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	cfg := SQLiteConfig("/tmp/scans.db", RoleReadWrite)
	cfg.BusyTimeout = ptrString("250ms")

	dsn := cfg.DSN()
	path, rawQuery, ok := strings.Cut(dsn, "?")
	if !ok || path != "/tmp/scans.db" {
		t.Fatalf("DSN() = %q", dsn)
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("DSN() query: %v", err)
	}
	pragmas := q["_pragma"]
	if len(pragmas) != 2 || pragmas[0] != "foreign_keys(1)" || pragmas[1] != "busy_timeout(250)" {
		t.Errorf("DSN() pragmas = %v", pragmas)
	}
}

func TestExplicitDSNWins(t *testing.T) {
	cfg := &StoreConfig{Driver: ptrString("pgx"), Conn: ptrString("  postgres://u@h/db  ")}
	if got := cfg.DSN(); got != "postgres://u@h/db" {
		t.Errorf("DSN() = %q", got)
	}
}

func TestGetBusyTimeoutFallsBackOnParseError(t *testing.T) {
	cfg := &StoreConfig{BusyTimeout: ptrString("nope")}
	if got := cfg.GetBusyTimeout(); got != 5*time.Second {
		t.Errorf("GetBusyTimeout() = %v, want 5s", got)
	}
}
