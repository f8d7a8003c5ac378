package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// isolatedEnv points XDG_CONFIG_HOME at a temp dir so the host's real config
// never leaks into tests.
func isolatedEnv(t *testing.T) map[string]string {
	t.Helper()

	return map[string]string{"XDG_CONFIG_HOME": t.TempDir()}
}

func Test_LoadConfig_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()

	cfg, err := LoadConfig(workDir, "", isolatedEnv(t))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ServerURL != "http://localhost:8585" {
		t.Fatalf("server url = %q, want the default", cfg.ServerURL)
	}

	if cfg.Storage != StorageFiles {
		t.Fatalf("storage = %q, want files", cfg.Storage)
	}

	if cfg.DataDir != filepath.Join(workDir, ".tasksync") {
		t.Fatalf("data dir = %q, want workdir-relative default", cfg.DataDir)
	}

	if cfg.SyncInterval() != 30*time.Second {
		t.Fatalf("sync interval = %v, want 30s", cfg.SyncInterval())
	}
}

func Test_LoadConfig_Project_File_Overrides_Global(t *testing.T) {
	t.Parallel()

	env := isolatedEnv(t)
	workDir := t.TempDir()

	writeFile(t, filepath.Join(env["XDG_CONFIG_HOME"], "tasksync", "config.json"),
		`{"server_url": "http://global:1", "sync_interval_seconds": 60}`)

	writeFile(t, filepath.Join(workDir, ConfigFileName),
		`{"server_url": "http://project:2"}`)

	cfg, err := LoadConfig(workDir, "", env)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ServerURL != "http://project:2" {
		t.Fatalf("server url = %q, want the project value", cfg.ServerURL)
	}

	// Fields the project file does not set fall through to the global one.
	if cfg.SyncIntervalSeconds != 60 {
		t.Fatalf("sync interval = %d, want the global value 60", cfg.SyncIntervalSeconds)
	}
}

func Test_LoadConfig_Explicit_File_Wins_Over_Everything(t *testing.T) {
	t.Parallel()

	env := isolatedEnv(t)
	workDir := t.TempDir()

	writeFile(t, filepath.Join(workDir, ConfigFileName),
		`{"server_url": "http://project:2"}`)

	explicit := filepath.Join(t.TempDir(), "custom.json")
	writeFile(t, explicit, `{"server_url": "http://explicit:3", "storage": "sqlite"}`)

	cfg, err := LoadConfig(workDir, explicit, env)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ServerURL != "http://explicit:3" {
		t.Fatalf("server url = %q, want the explicit value", cfg.ServerURL)
	}

	if cfg.Storage != StorageSQLite {
		t.Fatalf("storage = %q, want sqlite", cfg.Storage)
	}
}

func Test_LoadConfig_Explicit_File_Must_Exist(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(t.TempDir(), filepath.Join(t.TempDir(), "missing.json"), isolatedEnv(t))
	if err == nil {
		t.Fatal("missing explicit config accepted")
	}
}

func Test_LoadConfig_Allows_Comments_And_Trailing_Commas(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()

	writeFile(t, filepath.Join(workDir, ConfigFileName), `{
		// local sync server
		"server_url": "http://commented:4",
		"request_timeout_seconds": 5,
	}`)

	cfg, err := LoadConfig(workDir, "", isolatedEnv(t))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ServerURL != "http://commented:4" {
		t.Fatalf("server url = %q, want the commented-file value", cfg.ServerURL)
	}

	if cfg.RequestTimeout() != 5*time.Second {
		t.Fatalf("request timeout = %v, want 5s", cfg.RequestTimeout())
	}
}

func Test_LoadConfig_Rejects_Malformed_Files(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, ConfigFileName), `{"server_url": `)

	_, err := LoadConfig(workDir, "", isolatedEnv(t))
	if !errors.Is(err, errConfigInvalid) {
		t.Fatalf("err = %v, want errConfigInvalid", err)
	}
}

func Test_LoadConfig_Rejects_Unknown_Storage(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	writeFile(t, filepath.Join(workDir, ConfigFileName), `{"storage": "punchcards"}`)

	_, err := LoadConfig(workDir, "", isolatedEnv(t))
	if !errors.Is(err, errConfigInvalid) {
		t.Fatalf("err = %v, want errConfigInvalid", err)
	}
}
