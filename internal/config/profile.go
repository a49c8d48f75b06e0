// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/logging"
)

// EnvProfileName is the reserved name of the profile synthesized from
// environment variables. It is never read from or written to disk.
const EnvProfileName = "env"

// Profile identifies one CloudAPI endpoint and the acting principal.
type Profile struct {
	Name         string `json:"name,omitempty"`
	URL          string `json:"url"`
	Account      string `json:"account"`
	User         string `json:"user,omitempty"`
	ActAsAccount string `json:"actAsAccount,omitempty"`
	KeyID        string `json:"keyId"`
	Insecure     bool   `json:"insecure,omitempty"`
}

var (
	profileNameRe = regexp.MustCompile(`^[a-z][a-z0-9_.-]*$`)
	slugBadRe     = regexp.MustCompile(`[^a-z0-9_.-]+`)
)

// ValidateProfile checks required fields and their formats.
func ValidateProfile(p *Profile) error {
	if p.Name == "" {
		return clierr.Configf("profile name is required")
	}
	if !profileNameRe.MatchString(p.Name) {
		return clierr.Configf("invalid profile name %q: must match %s", p.Name, profileNameRe)
	}
	if p.URL == "" {
		return clierr.Configf("profile %q: url is required", p.Name)
	}
	if !strings.HasPrefix(p.URL, "https://") && !strings.HasPrefix(p.URL, "http://") {
		return clierr.Configf("profile %q: url %q must start with http(s)://", p.Name, p.URL)
	}
	if err := validateAccount(p.Account); err != nil {
		return clierr.Configf("profile %q: %s", p.Name, err)
	}
	if p.User != "" {
		if err := validateAccount(p.User); err != nil {
			return clierr.Configf("profile %q: user: %s", p.Name, err)
		}
	}
	if p.KeyID == "" {
		return clierr.Configf("profile %q: keyId is required", p.Name)
	}
	if strings.ContainsAny(p.KeyID, " \t\n") {
		return clierr.Configf("profile %q: keyId %q contains whitespace", p.Name, p.KeyID)
	}
	return nil
}

func validateAccount(account string) error {
	if len(account) < 3 {
		return fmt.Errorf("account %q is too short (minimum 3 characters)", account)
	}
	if strings.Contains(account, `\`) {
		return fmt.Errorf("account %q must not contain a backslash", account)
	}
	return nil
}

// ProfilesDir returns the directory holding per-profile files.
func ProfilesDir(configDir string) string {
	return filepath.Join(configDir, "profiles.d")
}

func profilePath(configDir, name string) string {
	return filepath.Join(ProfilesDir(configDir), name+".json")
}

// LoadProfile reads one profile by name. The name field in the file, if any,
// is ignored: the filename is authoritative and is injected on load. The
// reserved "env" name is served from the environment, never from disk.
func LoadProfile(configDir, name string) (*Profile, error) {
	if name == EnvProfileName {
		return EnvProfile(os.Getenv)
	}

	path := profilePath(configDir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, clierr.Configf("no such profile %q", name)
	}
	if err != nil {
		return nil, clierr.Configf("could not read profile %q", name).WithCause(err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, clierr.Configf("profile file %s is not valid JSON", path).WithCause(err)
	}
	p.Name = name
	if err := ValidateProfile(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadAllProfiles enumerates profiles.d/*.json. Individually broken files
// produce a warning, not a failure, so one bad file cannot lock the user out
// of the profile list. An on-disk file named env.json is ignored.
func LoadAllProfiles(configDir string) ([]*Profile, error) {
	entries, err := os.ReadDir(ProfilesDir(configDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, clierr.Configf("could not list profiles in %s", ProfilesDir(configDir)).WithCause(err)
	}

	var profiles []*Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == EnvProfileName {
			logging.Warnf("ignoring reserved profile file %s", e.Name())
			continue
		}
		p, err := LoadProfile(configDir, name)
		if err != nil {
			logging.Warnf("skipping invalid profile %q: %v", name, err)
			continue
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// SaveProfile validates and writes a profile atomically. The name is the
// filename; the stored JSON carries no name field. The "env" profile cannot
// be persisted.
func SaveProfile(configDir string, p *Profile) error {
	if p.Name == EnvProfileName {
		return clierr.Usagef("the %q profile is synthetic and cannot be saved", EnvProfileName)
	}
	if err := ValidateProfile(p); err != nil {
		return err
	}

	stored := *p
	stored.Name = ""
	if err := atomicWriteJSON(profilePath(configDir, p.Name), &stored, 0600); err != nil {
		return clierr.Configf("could not write profile %q", p.Name).WithCause(err)
	}
	return nil
}

// DeleteProfile removes a profile file. Deleting the current profile or the
// reserved "env" profile is refused.
func DeleteProfile(configDir, name string) error {
	if name == EnvProfileName {
		return clierr.Usagef("the %q profile is synthetic and cannot be deleted", EnvProfileName)
	}

	cfg, err := Load(configDir)
	if err != nil {
		return err
	}
	if cfg.CurrentProfileName() == name {
		return clierr.Usagef("profile %q is the current profile; switch away before deleting it", name)
	}

	err = os.Remove(profilePath(configDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return clierr.Configf("no such profile %q", name)
	}
	if err != nil {
		return clierr.Configf("could not delete profile %q", name).WithCause(err)
	}
	return nil
}

// SetCurrentProfile switches the current profile, remembering the previous
// one so that the "-" shorthand can switch back. The name "-" selects that
// remembered profile.
func SetCurrentProfile(configDir, name string) (string, error) {
	cfg, err := Load(configDir)
	if err != nil {
		return "", err
	}

	if name == "-" {
		name = cfg.OldProfileName()
		if name == "" {
			return "", clierr.Usagef(`"-" requires a previous profile; none has been set`)
		}
	}

	if name != EnvProfileName {
		if _, err := LoadProfile(configDir, name); err != nil {
			return "", err
		}
	}

	updates := map[string]any{"profile": name}
	if cur := cfg.CurrentProfileName(); cur != "" && cur != name {
		updates["oldProfile"] = cur
	}
	if err := SetConfigVars(configDir, updates); err != nil {
		return "", err
	}
	return name, nil
}

// ProfileSlug derives a filesystem-safe name used to namespace per-profile
// artifacts such as Docker certificate directories.
func ProfileSlug(p *Profile) string {
	slug := strings.ToLower(p.Name)
	slug = slugBadRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
