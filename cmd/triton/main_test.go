// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

// runTriton executes one command against a fresh root, with the global
// flag state reset so tests do not leak into each other.
func runTriton(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	flagConfigDir, flagProfile, flagInsecure, flagVerbose = "", "", false, false

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeProfileFile(t *testing.T, dir, name string) string {
	t.Helper()
	doc := map[string]any{
		"name":    name,
		"url":     "https://cloudapi.test.example.com",
		"account": "alice",
		"keyId":   "md5:aa:bb:cc:dd:ee:ff:00:11:22:33:44:55:66:77:88:99",
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name+"-profile.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProfileLifecycle(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	src := writeProfileFile(t, t.TempDir(), "east")

	out, err := runTriton(t, "", "profile", "create", "-f", src, "--config-dir", dir)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, `Saved profile "east"`) {
		t.Fatalf("unexpected create output: %q", out)
	}

	out, err = runTriton(t, "", "profile", "list", "--config-dir", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "east") || !strings.Contains(out, "alice") {
		t.Fatalf("list missing profile: %q", out)
	}

	out, err = runTriton(t, "", "profile", "get", "east", "--config-dir", dir)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, `"account": "alice"`) {
		t.Fatalf("get output not JSON profile: %q", out)
	}

	if _, err := runTriton(t, "", "profile", "set-current", "east", "--config-dir", dir); err != nil {
		t.Fatalf("set-current: %v", err)
	}

	out, err = runTriton(t, "", "profile", "list", "--config-dir", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "*") {
		t.Fatalf("current profile not marked: %q", out)
	}
}

func TestProfileSetCurrentDash(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	for _, name := range []string{"east", "west"} {
		src := writeProfileFile(t, t.TempDir(), name)
		if _, err := runTriton(t, "", "profile", "create", "-f", src, "--config-dir", dir); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := runTriton(t, "", "profile", "set-current", "east", "--config-dir", dir); err != nil {
		t.Fatal(err)
	}
	if _, err := runTriton(t, "", "profile", "set-current", "west", "--config-dir", dir); err != nil {
		t.Fatal(err)
	}
	out, err := runTriton(t, "", "profile", "set-current", "-", "--config-dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `Set "east" as current profile`) {
		t.Fatalf("dash did not switch back: %q", out)
	}
}

func TestProfileDeleteConfirms(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	src := writeProfileFile(t, t.TempDir(), "scratch")
	if _, err := runTriton(t, "", "profile", "create", "-f", src, "--config-dir", dir); err != nil {
		t.Fatal(err)
	}

	// Declining the prompt aborts without an error exit.
	_, err := runTriton(t, "n\n", "profile", "delete", "scratch", "--config-dir", dir)
	if !errors.Is(err, clierr.ErrUserAborted) {
		t.Fatalf("want ErrUserAborted, got %v", err)
	}
	if _, err := runTriton(t, "", "profile", "get", "scratch", "--config-dir", dir); err != nil {
		t.Fatalf("profile should survive a declined prompt: %v", err)
	}

	out, err := runTriton(t, "", "profile", "delete", "scratch", "--yes", "--config-dir", dir)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, `Deleted profile "scratch"`) {
		t.Fatalf("unexpected delete output: %q", out)
	}
	if _, err := runTriton(t, "", "profile", "get", "scratch", "--config-dir", dir); err == nil {
		t.Fatal("profile still loadable after delete")
	}
}

func TestProfileDeleteCurrentRefused(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	src := writeProfileFile(t, t.TempDir(), "east")
	if _, err := runTriton(t, "", "profile", "create", "-f", src, "--config-dir", dir); err != nil {
		t.Fatal(err)
	}
	if _, err := runTriton(t, "", "profile", "set-current", "east", "--config-dir", dir); err != nil {
		t.Fatal(err)
	}
	_, err := runTriton(t, "", "profile", "delete", "east", "--yes", "--config-dir", dir)
	if err == nil || !strings.Contains(err.Error(), "current profile") {
		t.Fatalf("want current-profile refusal, got %v", err)
	}
}

func TestProfileEditEnvRefused(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	t.Setenv("TRITON_URL", "")
	t.Setenv("TRITON_ACCOUNT", "")
	t.Setenv("TRITON_KEY_ID", "")

	// The guard must fire on the name alone, even when the synthetic
	// profile cannot be built from the environment.
	_, err := runTriton(t, "", "profile", "edit", "env", "--config-dir", t.TempDir())
	if !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("want usage error, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "synthetic") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestEnvEmitsTritonVariables(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	src := writeProfileFile(t, t.TempDir(), "east")
	if _, err := runTriton(t, "", "profile", "create", "-f", src, "--config-dir", dir); err != nil {
		t.Fatal(err)
	}

	out, err := runTriton(t, "", "env", "east", "-t", "--config-dir", dir)
	if err != nil {
		t.Fatalf("env: %v", err)
	}
	for _, want := range []string{
		"export TRITON_PROFILE=east\n",
		"export TRITON_URL=https://cloudapi.test.example.com\n",
		"export TRITON_ACCOUNT=alice\n",
		"unset TRITON_USER\n",
		"unset TRITON_TLS_INSECURE\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("env output missing %q:\n%s", want, out)
		}
	}
}

func TestEnvDockerWithoutSetup(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	src := writeProfileFile(t, t.TempDir(), "east")
	if _, err := runTriton(t, "", "profile", "create", "-f", src, "--config-dir", dir); err != nil {
		t.Fatal(err)
	}
	_, err := runTriton(t, "", "env", "east", "-d", "--config-dir", dir)
	if !clierr.HasCode(err, clierr.CodeSetup) {
		t.Fatalf("want setup error, got %v", err)
	}
}

func TestRenderEnvExports(t *testing.T) {
	out := renderEnvExports(map[string]any{
		"B_PLAIN":  "value",
		"A_QUOTED": "has spaces",
		"C_UNSET":  nil,
	})
	want := "export A_QUOTED='has spaces'\nexport B_PLAIN=value\nunset C_UNSET\n"
	if out != want {
		t.Fatalf("got:\n%q\nwant:\n%q", out, want)
	}
}

func TestShellQuote(t *testing.T) {
	cases := map[string]string{
		"plain":     "plain",
		"has space": "'has space'",
		"it's":      `'it'\''s'`,
		"":          "''",
		"a$b":       "'a$b'",
	}
	for in, want := range cases {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("b6979942-7d5d-4fe6-a2ec-b812e950625a"); got != "b6979942" {
		t.Fatalf("got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestUnknownProfileFails(t *testing.T) {
	t.Setenv("TRITON_PROFILE", "")
	dir := t.TempDir()
	_, err := runTriton(t, "", "ping", "--profile", "nope", "--config-dir", dir)
	if !clierr.HasCode(err, clierr.CodeConfig) {
		t.Fatalf("want config error, got %v", err)
	}
}
