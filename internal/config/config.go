// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config owns the on-disk state of the CLI: the process-wide
// config.json, the per-profile files under profiles.d/, and the synthetic
// "env" profile built from TRITON_*/SDC_* environment variables.
//
// The merged process config is built-in defaults overlaid with the user's
// config.json. Keys beginning with "_" are provenance, synthesized on load
// and never persisted.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

// defaultsJSON is the built-in base layer of the process config.
const defaultsJSON = `{
    "profile": "env",
    "cacheTtlSeconds": 300
}`

// OverrideKeys lists top-level config keys whose values merge one level
// deep: a user sub-key overlays the default sub-key, and an explicit null
// removes it. Every other key replaces the default value wholesale. The set
// is currently empty; the mechanism is kept for future keys.
var OverrideKeys = []string{}

// Provenance keys synthesized onto the merged config.
const (
	keyDefaults  = "_defaults"
	keyUser      = "_user"
	keyConfigDir = "_configDir"
)

// Config is the merged process-wide configuration view.
type Config struct {
	vals map[string]any
}

// userConfigPath returns the path of the user's config.json.
func userConfigPath(configDir string) string {
	return filepath.Join(configDir, "config.json")
}

// Load reads the built-in defaults and overlays the user config.json, if
// present. A user config whose top-level JSON value is not an object is a
// Config error.
func Load(configDir string) (*Config, error) {
	var defaults map[string]any
	if err := json.Unmarshal([]byte(defaultsJSON), &defaults); err != nil {
		return nil, clierr.Internalf("built-in defaults are not valid JSON").WithCause(err)
	}

	user := map[string]any{}
	path := userConfigPath(configDir)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No user config is fine; the defaults stand alone.
	case err != nil:
		return nil, clierr.Configf("could not read %s", path).WithCause(err)
	default:
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, clierr.Configf("%s is not valid JSON", path).WithCause(err)
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, clierr.Configf("%s must hold a JSON object, not %T", path, raw)
		}
		user = obj
	}

	merged := mergeConfig(defaults, user)
	merged[keyDefaults] = defaults
	merged[keyUser] = user
	merged[keyConfigDir] = configDir
	return &Config{vals: merged}, nil
}

// mergeConfig overlays user onto defaults. Members of OverrideKeys merge one
// sub-key level deep, with null deleting the sub-key; all other keys replace.
func mergeConfig(defaults, user map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(user))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range user {
		if !isOverrideKey(k) {
			merged[k] = v
			continue
		}
		base, baseOK := merged[k].(map[string]any)
		over, overOK := v.(map[string]any)
		if !baseOK || !overOK {
			merged[k] = v
			continue
		}
		sub := make(map[string]any, len(base)+len(over))
		for sk, sv := range base {
			sub[sk] = sv
		}
		for sk, sv := range over {
			if sv == nil {
				delete(sub, sk)
			} else {
				sub[sk] = sv
			}
		}
		merged[k] = sub
	}
	return merged
}

func isOverrideKey(k string) bool {
	for _, ok := range OverrideKeys {
		if k == ok {
			return true
		}
	}
	return false
}

// Get returns the merged value for a key, or nil.
func (c *Config) Get(key string) any { return c.vals[key] }

// GetString returns the merged value for a key when it is a string.
func (c *Config) GetString(key string) string {
	s, _ := c.vals[key].(string)
	return s
}

// GetInt returns the merged value for a key when it is a number.
// JSON numbers decode as float64; anything else yields zero.
func (c *Config) GetInt(key string) int {
	f, _ := c.vals[key].(float64)
	return int(f)
}

// ConfigDir returns the directory this config was loaded from.
func (c *Config) ConfigDir() string { return c.GetString(keyConfigDir) }

// CurrentProfileName returns the configured current profile name.
func (c *Config) CurrentProfileName() string { return c.GetString("profile") }

// OldProfileName returns the profile that was current before the last
// set-current switch, if any. It backs the "-" shorthand.
func (c *Config) OldProfileName() string { return c.GetString("oldProfile") }

// SetConfigVars applies updates to the user config.json and writes it
// atomically. Keys starting with "_" are reserved for provenance and are
// rejected. A nil value removes the key.
func SetConfigVars(configDir string, updates map[string]any) error {
	for k := range updates {
		if len(k) > 0 && k[0] == '_' {
			return clierr.Usagef("config key %q is reserved", k)
		}
	}

	user := map[string]any{}
	path := userConfigPath(configDir)
	if data, err := os.ReadFile(path); err == nil {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return clierr.Configf("%s is not valid JSON", path).WithCause(err)
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return clierr.Configf("%s must hold a JSON object, not %T", path, raw)
		}
		user = obj
	} else if !errors.Is(err, os.ErrNotExist) {
		return clierr.Configf("could not read %s", path).WithCause(err)
	}

	for k, v := range updates {
		if v == nil {
			delete(user, k)
		} else {
			user[k] = v
		}
	}

	if err := atomicWriteJSON(path, user, 0600); err != nil {
		return clierr.Configf("could not write %s", path).WithCause(err)
	}
	return nil
}

// DefaultDir returns the default config directory, honoring
// TRITON_CONFIG_DIR when set.
func DefaultDir() string {
	if d := os.Getenv("TRITON_CONFIG_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// The first write will surface a useful error for this path.
		return ".triton"
	}
	return filepath.Join(home, ".triton")
}
