package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/agentstation/statuspage/internal/realtime/backplane"
)

// TestLoadConfigDefaults verifies defaults when nothing is configured.
func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if config.LogFormat != "auto" {
		t.Errorf("LogFormat = %q, want auto", config.LogFormat)
	}
	if config.Database.Driver != DriverMemory {
		t.Errorf("Database.Driver = %q, want memory", config.Database.Driver)
	}
	if !config.Database.Migrate {
		t.Error("Database.Migrate should default to true")
	}
	if config.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty", config.Redis.Addr)
	}
	if config.Redis.Channel != backplane.DefaultChannel {
		t.Errorf("Redis.Channel = %q, want %q", config.Redis.Channel, backplane.DefaultChannel)
	}
	if config.ServerURL != "http://localhost:3000" {
		t.Errorf("ServerURL = %q", config.ServerURL)
	}
}

// TestLoadConfigEnvironment verifies STATUSPAGE_ environment variables.
func TestLoadConfigEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STATUSPAGE_DATABASE_DRIVER", "SQLite")
	t.Setenv("STATUSPAGE_DATABASE_DSN", "file::memory:")
	t.Setenv("STATUSPAGE_DATABASE_CONN_MAX_LIFETIME", "5m")
	t.Setenv("STATUSPAGE_REDIS_ADDR", "localhost:6379")
	t.Setenv("STATUSPAGE_REDIS_DB", "2")
	t.Setenv("STATUSPAGE_LOG_LEVEL", "debug")

	config, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if config.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", config.Database.Driver)
	}
	if config.Database.DSN != "file::memory:" {
		t.Errorf("Database.DSN = %q", config.Database.DSN)
	}
	if config.Database.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 5m", config.Database.ConnMaxLifetime)
	}
	if config.Redis.Addr != "localhost:6379" || config.Redis.DB != 2 {
		t.Errorf("Redis = %+v", config.Redis)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.LogLevel)
	}
}

// TestLoadConfigFile verifies an explicit YAML config file.
func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	content := "database:\n  driver: mysql\n  dsn: user:pass@tcp(db:3306)/status\n  max_open_conns: 20\nredis:\n  addr: redis:6379\n  channel: status-events\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile() failed: %v", err)
	}
	if config.Database.Driver != "mysql" || config.Database.MaxOpenConns != 20 {
		t.Errorf("Database = %+v", config.Database)
	}
	if config.Redis.Channel != "status-events" {
		t.Errorf("Redis.Channel = %q", config.Redis.Channel)
	}
	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
}

// TestLoadConfigErrors verifies unreadable files and unknown drivers fail.
func TestLoadConfigErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}

	t.Setenv("STATUSPAGE_DATABASE_DRIVER", "postgres")
	if _, err := loadConfig(viper.New(), ""); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

// TestUpdateFromFlags verifies flag precedence.
func TestUpdateFromFlags(t *testing.T) {
	config := &Config{Format: "json", LogLevel: "warn"}
	config.UpdateFromFlags(true, false, true, "", "")
	if !config.Verbose || !config.NoColor {
		t.Error("boolean flags not applied")
	}
	if config.Format != "json" || config.LogLevel != "warn" {
		t.Error("empty flags must not clear config values")
	}

	config.UpdateFromFlags(false, false, false, "yaml", "error")
	if config.Format != "yaml" || config.LogLevel != "error" {
		t.Errorf("Format = %q, LogLevel = %q", config.Format, config.LogLevel)
	}
}
