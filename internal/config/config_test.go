// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.CurrentProfileName(); got != "env" {
		t.Fatalf("default profile = %q, want env", got)
	}
	if got := cfg.ConfigDir(); got != dir {
		t.Fatalf("_configDir = %q, want %q", got, dir)
	}
}

func TestLoadUserOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json"), `{"profile": "east"}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.CurrentProfileName(); got != "east" {
		t.Fatalf("profile = %q, want east", got)
	}
	// Provenance layers are exposed but reserved.
	if cfg.Get("_user") == nil || cfg.Get("_defaults") == nil {
		t.Fatal("provenance keys missing from merged view")
	}
}

func TestLoadRejectsNonObjectUserConfig(t *testing.T) {
	for _, bad := range []string{`[1,2,3]`, `"hello"`, `42`} {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "config.json"), bad)
		_, err := Load(dir)
		if !clierr.HasCode(err, clierr.CodeConfig) {
			t.Errorf("Load with %s: got %v, want Config error", bad, err)
		}
	}
}

func TestOverrideKeySubkeyMerge(t *testing.T) {
	defaults := map[string]any{
		"colors": map[string]any{"ok": "green", "bad": "red"},
		"plain":  map[string]any{"a": 1},
	}
	user := map[string]any{
		"colors": map[string]any{"bad": nil, "warn": "yellow"},
		"plain":  map[string]any{"b": 2},
	}

	old := OverrideKeys
	OverrideKeys = []string{"colors"}
	defer func() { OverrideKeys = old }()

	merged := mergeConfig(defaults, user)

	colors := merged["colors"].(map[string]any)
	if _, ok := colors["bad"]; ok {
		t.Fatal("null sub-key should remove the default")
	}
	if colors["ok"] != "green" || colors["warn"] != "yellow" {
		t.Fatalf("unexpected merge result: %v", colors)
	}

	// Non-override keys replace wholesale.
	plain := merged["plain"].(map[string]any)
	if _, ok := plain["a"]; ok {
		t.Fatal("non-override map should have been replaced, not merged")
	}
}

func TestSetConfigVarsRejectsReservedKeys(t *testing.T) {
	dir := t.TempDir()
	err := SetConfigVars(dir, map[string]any{"_configDir": "/x"})
	if !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("got %v, want Usage error", err)
	}
}

func TestSetConfigVarsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := SetConfigVars(dir, map[string]any{"profile": "west"}); err != nil {
		t.Fatalf("SetConfigVars: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.CurrentProfileName(); got != "west" {
		t.Fatalf("profile = %q, want west", got)
	}

	// nil removes the key; the default shows through again.
	if err := SetConfigVars(dir, map[string]any{"profile": nil}); err != nil {
		t.Fatalf("SetConfigVars: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.CurrentProfileName(); got != "env" {
		t.Fatalf("profile = %q, want default env", got)
	}
}

func TestSetConfigVarsLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := SetConfigVars(dir, map[string]any{"profile": "east"}); err != nil {
		t.Fatalf("SetConfigVars: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "config.json" {
			t.Fatalf("stray file after atomic write: %s", e.Name())
		}
	}
}
