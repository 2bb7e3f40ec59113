package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	Name  string        `yaml:"name"`
	Port  int           `yaml:"port"`
	Delay time.Duration `yaml:"delay"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\ndelay: 20ms\n")

	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("name = %q, want from-env", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Port)
	}
	if cfg.Delay != 20*time.Millisecond {
		t.Errorf("delay = %v, want 20ms", cfg.Delay)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "port: -1\n")
	var cfg sample
	if err := Load(p, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_Missing(t *testing.T) {
	var cfg sample
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{Port: 1}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}

	bad := sample{}
	if _, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}

	p := writeConfig(t, "port: 9\n")
	found, err = LoadOptional(p, &cfg)
	if err != nil || !found || cfg.Port != 9 {
		t.Errorf("found = %v, err = %v, port = %d", found, err, cfg.Port)
	}
}

func TestDecode_InvalidYAML(t *testing.T) {
	cfg := sample{Port: 1}
	if err := Decode([]byte("port: [unterminated"), &cfg); err == nil {
		t.Error("expected parse error")
	}
}
