package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("server addr = %q, want :8080", cfg.ServerAddr)
	}
	if cfg.Delay != 500*time.Millisecond {
		t.Errorf("delay = %v, want 500ms", cfg.Delay)
	}
	if !cfg.CreateNewList {
		t.Error("expected create_new_list to default on")
	}
	if cfg.EnableRollback {
		t.Error("expected enable_rollback to default off")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blueprint.yaml")
	body := "token: tok\nteam_id: team9\ndelay: 50ms\nemail_domains:\n  - acme.com\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token != "tok" || cfg.TeamID != "team9" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Delay != 50*time.Millisecond {
		t.Errorf("delay = %v, want 50ms", cfg.Delay)
	}
	if len(cfg.EmailDomains) != 1 || cfg.EmailDomains[0] != "acme.com" {
		t.Errorf("email domains = %v", cfg.EmailDomains)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BLUEPRINT_TOKEN", "env-token")
	t.Setenv("BLUEPRINT_EMAIL_DOMAINS", "acme.com, example.org")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Token)
	}
	if len(cfg.EmailDomains) != 2 || cfg.EmailDomains[1] != "example.org" {
		t.Errorf("email domains = %v", cfg.EmailDomains)
	}
}

func TestValidateMissingToken(t *testing.T) {
	cfg := &Config{TeamID: "t"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for the missing token")
	}
}
