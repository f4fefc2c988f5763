package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Generation.Retention != 30*time.Minute {
		t.Errorf("retention = %s, want 30m default", cfg.Generation.Retention)
	}
	if cfg.Generation.ConverterPath != "soffice" {
		t.Errorf("converter_path = %q, want soffice default", cfg.Generation.ConverterPath)
	}
	if len(cfg.Generation.AllowedExtensions) != 3 {
		t.Errorf("allowed_extensions = %v, want 3 defaults", cfg.Generation.AllowedExtensions)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCGEN_TEST_DATA", "/srv/docgen")
	path := writeConfig(t, "storage:\n  documents_dir: ${DOCGEN_TEST_DATA}/documents\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.DocumentsDir != "/srv/docgen/documents" {
		t.Errorf("documents_dir = %q, env not expanded", cfg.Storage.DocumentsDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsSweepLongerThanRetention(t *testing.T) {
	path := writeConfig(t, "generation:\n  retention: 1m\n  sweep_interval: 5m\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for sweep_interval > retention")
	}
}

func TestExtensionAllowed(t *testing.T) {
	cfg := Default()
	cases := []struct {
		ext  string
		want bool
	}{
		{".docx", true},
		{".DOCX", true},
		{".xlsx", true},
		{".pptx", true},
		{".pdf", false},
		{"docx", false},
	}
	for _, tc := range cases {
		if got := cfg.ExtensionAllowed(tc.ext); got != tc.want {
			t.Errorf("ExtensionAllowed(%q) = %v, want %v", tc.ext, got, tc.want)
		}
	}
}
