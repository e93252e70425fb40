package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aisgo/gorm-behaviors/errors"
)

type testConfig struct {
	Name    string        `mapstructure:"name" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout"`
	Slug    struct {
		Delimiter   string `mapstructure:"delimiter" validate:"oneof=- _"`
		MaxAttempts int    `mapstructure:"max_attempts" validate:"gte=1"`
	} `mapstructure:"slug"`
	Brokers []string `mapstructure:"brokers"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestExpandEnvPlaceholders(t *testing.T) {
	t.Setenv("BEHAVIORS_SET", "value")
	t.Setenv("BEHAVIORS_EMPTY", "")

	got := expandEnvPlaceholders("a=${BEHAVIORS_SET} b=${BEHAVIORS_EMPTY:-fallback} c=${BEHAVIORS_MISSING}")
	if got != "a=value b=fallback c=" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestLoadFileEnvAndDefaults(t *testing.T) {
	dir := writeConfig(t, `
name: ${BEHAVIORS_NAME:-articles}
timeout: 3s
slug:
  delimiter: "_"
brokers: "a:9092,b:9092"
`)
	t.Setenv("APP_SLUG_MAX_ATTEMPTS", "7")

	var cfg testConfig
	cfg.Slug.MaxAttempts = 100
	if err := NewLoader(dir, "app", "yaml").Load(&cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "articles" || cfg.Timeout != 3*time.Second || cfg.Slug.Delimiter != "_" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Slug.MaxAttempts != 7 {
		t.Fatalf("expected env override, got %d", cfg.Slug.MaxAttempts)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Brokers)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := testConfig{Name: "default"}
	cfg.Slug.Delimiter = "-"
	cfg.Slug.MaxAttempts = 1
	if err := NewLoader(t.TempDir(), "absent", "yaml", WithEnvPrefix("BEHAVIORS_TEST")).Load(&cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "default" {
		t.Fatalf("defaults must survive, got %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	dir := writeConfig(t, "slug:\n  delimiter: \"+\"\n  max_attempts: 1\n")

	var cfg testConfig
	err := NewLoader(dir, "app", "yaml").Load(&cfg)
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := NewLoader(dir, "app", "yaml", WithoutValidation()).Load(&cfg); err != nil {
		t.Fatalf("load without validation: %v", err)
	}
}
