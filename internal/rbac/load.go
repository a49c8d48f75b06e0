// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package rbac

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/cloudapi"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

// LoadConfig reads a desired-state document, JSON or YAML by extension,
// resolves key directories relative to the document, and validates it.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, clierr.Configf("could not read RBAC config %s", path).WithCause(err)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		// YAML documents go through a JSON round trip so both formats obey
		// the same field names.
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, clierr.Configf("RBAC config %s is not valid YAML", path).WithCause(err)
		}
		if raw, err = json.Marshal(normalizeYAML(doc)); err != nil {
			return nil, clierr.Configf("RBAC config %s could not be converted", path).WithCause(err)
		}
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, clierr.Configf("RBAC config %s is not a valid document", path).WithCause(err)
	}
	if err := resolveKeys(&cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeYAML rewrites yaml.v3's map[string]any trees so they survive
// json.Marshal; YAML allows non-string map keys, JSON does not.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	}
	return v
}

// resolveKeys materializes key directories into inline keys and fills in
// fingerprints the document left out.
func resolveKeys(cfg *Config, baseDir string) error {
	for i := range cfg.Users {
		u := &cfg.Users[i]
		if u.Keys.Dir != "" {
			dir := u.Keys.Dir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(baseDir, dir)
			}
			path := filepath.Join(dir, u.Login+".pub")
			line, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue // key-less user, the planner may generate one
				}
				return clierr.Configf("could not read key file %s for user %s", path, u.Login).WithCause(err)
			}
			pub, comment, _, _, err := ssh.ParseAuthorizedKey(line)
			if err != nil {
				return clierr.Configf("key file %s for user %s does not parse", path, u.Login).WithCause(err)
			}
			name := comment
			if name == "" {
				name = u.Login
			}
			u.Keys = KeySet{Inline: []cloudapi.UserKey{{
				Name:        name,
				Fingerprint: keyring.Fingerprint(pub),
				Key:         strings.TrimSpace(string(line)),
			}}}
			continue
		}
		for j := range u.Keys.Inline {
			k := &u.Keys.Inline[j]
			if k.Fingerprint != "" {
				continue
			}
			pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k.Key))
			if err != nil {
				return clierr.Configf("inline key %q of user %s does not parse", k.Name, u.Login).WithCause(err)
			}
			k.Fingerprint = keyring.Fingerprint(pub)
		}
	}
	return nil
}

// Validate checks the document's internal references.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, clierr.Configf(format, args...))
	}

	logins := make(map[string]bool, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Login == "" {
			fail("user with empty login")
			continue
		}
		if logins[u.Login] {
			fail("duplicate user %q", u.Login)
		}
		logins[u.Login] = true
	}

	policyNames := make(map[string]bool, len(cfg.Policies))
	for _, p := range cfg.Policies {
		if p.Name == "" {
			fail("policy with empty name")
			continue
		}
		if policyNames[p.Name] {
			fail("duplicate policy %q", p.Name)
		}
		policyNames[p.Name] = true
	}

	roleNames := make(map[string]bool, len(cfg.Roles))
	for _, r := range cfg.Roles {
		if r.Name == "" {
			fail("role with empty name")
			continue
		}
		if roleNames[r.Name] {
			fail("duplicate role %q", r.Name)
		}
		roleNames[r.Name] = true

		members := make(map[string]bool, len(r.Members))
		for _, m := range r.Members {
			members[m] = true
			if !logins[m] {
				fail("role %q member %q is not a user in this document", r.Name, m)
			}
		}
		for _, m := range r.DefaultMembers {
			if !members[m] {
				fail("role %q default member %q is not a member", r.Name, m)
			}
		}
		for _, p := range r.Policies {
			if !policyNames[p] {
				fail("role %q references unknown policy %q", r.Name, p)
			}
		}
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return clierr.Multi(errs...)
}
