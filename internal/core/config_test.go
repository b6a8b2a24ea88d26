package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".conductorrc"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return dir
}

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format json, got %q", cfg.Format)
	}
	if cfg.MaxTasks != DefaultMaxTasks {
		t.Errorf("expected default max_tasks %d, got %d", DefaultMaxTasks, cfg.MaxTasks)
	}
	if cfg.Namespace != "conductor" || cfg.Scope != "tasks" || cfg.ManagerName != "manager" {
		t.Errorf("unexpected identity defaults: %+v", cfg)
	}
	if !cfg.TypeHint || cfg.EnableSkip {
		t.Errorf("unexpected flag defaults: type_hint=%v skip=%v", cfg.TypeHint, cfg.EnableSkip)
	}
}

func TestLoadConfig_ReadsNestedKeys(t *testing.T) {
	dir := writeConfigFile(t, `
format: markdown
max_tasks: 30
namespace: acme
scope: sprint-12
manager:
  name: planner
invocation_id: inv-7
store:
  path: .conductor_state
worker:
  command: sh
  args: ["-c", "cat"]
  type_hint: false
features:
  skip: true
`)
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != "markdown" || cfg.MaxTasks != 30 {
		t.Errorf("unexpected format/max_tasks: %+v", cfg)
	}
	if cfg.Namespace != "acme" || cfg.Scope != "sprint-12" || cfg.ManagerName != "planner" {
		t.Errorf("unexpected identity: %+v", cfg)
	}
	if cfg.InvocationID != "inv-7" || cfg.StorePath != ".conductor_state" {
		t.Errorf("unexpected invocation/store: %+v", cfg)
	}
	if cfg.WorkerCommand != "sh" || len(cfg.WorkerArgs) != 2 || cfg.WorkerArgs[1] != "cat" {
		t.Errorf("unexpected worker: %+v", cfg)
	}
	if cfg.TypeHint || !cfg.EnableSkip {
		t.Errorf("unexpected flags: type_hint=%v skip=%v", cfg.TypeHint, cfg.EnableSkip)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := writeConfigFile(t, "format: yaml\n")
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != "yaml" {
		t.Errorf("expected format yaml, got %q", cfg.Format)
	}
	if cfg.MaxTasks != DefaultMaxTasks || cfg.Namespace != "conductor" {
		t.Errorf("defaults lost on partial file: %+v", cfg)
	}
}

func TestLoadConfig_MalformedFileIsError(t *testing.T) {
	dir := writeConfigFile(t, "format: [unclosed\n")
	cm := NewConfigurationManager(dir)

	if _, err := cm.LoadConfig(); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestValidateConfig(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	if err := cm.ValidateConfig(defaultConfig()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if err := cm.ValidateConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	bad := defaultConfig()
	bad.Format = "toml"
	bad.MaxTasks = 0
	bad.Scope = "a::b"
	bad.ManagerName = ""

	err := cm.ValidateConfig(bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"format", "max_tasks", "scope", "manager.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q: %v", want, err)
		}
	}
}
