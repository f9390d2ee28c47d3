package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear env to test defaults
	os.Unsetenv("PETERBOT_PORT")
	os.Unsetenv("PETERBOT_API_KEY")
	os.Unsetenv("PETERBOT_BUILD_ENGINE")
	os.Unsetenv("PETERBOT_DATA_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Engine != "podman" {
		t.Errorf("expected engine podman, got %s", cfg.Engine)
	}
	if cfg.DataDir != "/data/peterbot-builds" {
		t.Errorf("expected default data dir, got %s", cfg.DataDir)
	}
	if cfg.ECRRepository != "peterbot-templates" {
		t.Errorf("expected default ECR repository, got %s", cfg.ECRRepository)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("PETERBOT_PORT", "9999")
	os.Setenv("PETERBOT_API_KEY", "test-key")
	os.Setenv("PETERBOT_BUILD_ENGINE", "docker")
	defer func() {
		os.Unsetenv("PETERBOT_PORT")
		os.Unsetenv("PETERBOT_API_KEY")
		os.Unsetenv("PETERBOT_BUILD_ENGINE")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("expected API key test-key, got %s", cfg.APIKey)
	}
	if cfg.Engine != "docker" {
		t.Errorf("expected engine docker, got %s", cfg.Engine)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	os.Setenv("PETERBOT_PORT", "not-a-number")
	defer os.Unsetenv("PETERBOT_PORT")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "PETERBOT_TEST_VALUE=from-dotenv\nPETERBOT_TEST_KEPT=overridden\n"
	if err := os.WriteFile(envFile, []byte(content), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	os.Setenv("PETERBOT_TEST_KEPT", "from-env")
	defer func() {
		os.Unsetenv("PETERBOT_TEST_VALUE")
		os.Unsetenv("PETERBOT_TEST_KEPT")
	}()

	if err := LoadDotenv(envFile); err != nil {
		t.Fatalf("LoadDotenv() error: %v", err)
	}

	if got := os.Getenv("PETERBOT_TEST_VALUE"); got != "from-dotenv" {
		t.Errorf("expected from-dotenv, got %q", got)
	}
	if got := os.Getenv("PETERBOT_TEST_KEPT"); got != "from-env" {
		t.Errorf("expected existing env var to win, got %q", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got: %v", err)
	}
}
