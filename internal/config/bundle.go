// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

// ProfileBundle is the portable form of a profile plus its per-profile
// Docker artifacts, as written by `triton profile export`.
type ProfileBundle struct {
	Version     int               `json:"version"`
	ExportedAt  time.Time         `json:"exportedAt"`
	Profile     *Profile          `json:"profile"`
	DockerFiles map[string][]byte `json:"dockerFiles,omitempty"` // basename -> content
}

const bundleVersion = 1

// ExportProfile writes a zstd-compressed JSON bundle of the named profile
// and, when present, its docker/<slug>/ certificate directory.
func ExportProfile(configDir, name string, w io.Writer) error {
	p, err := LoadProfile(configDir, name)
	if err != nil {
		return err
	}
	if p.Name == EnvProfileName {
		return clierr.Usagef("the %q profile is synthetic and cannot be exported", EnvProfileName)
	}

	bundle := &ProfileBundle{
		Version:    bundleVersion,
		ExportedAt: time.Now().UTC(),
		Profile:    p,
	}

	dockerDir := filepath.Join(configDir, "docker", ProfileSlug(p))
	entries, err := os.ReadDir(dockerDir)
	if err == nil {
		bundle.DockerFiles = map[string][]byte{}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dockerDir, e.Name()))
			if err != nil {
				return clierr.Configf("could not read docker artifact %s", e.Name()).WithCause(err)
			}
			bundle.DockerFiles[e.Name()] = data
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return clierr.Configf("could not read %s", dockerDir).WithCause(err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer func() { _ = zw.Close() }()
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("encode profile bundle: %w", err)
	}
	return zw.Close()
}

// ImportProfile reads a bundle and installs the profile and its Docker
// artifacts. An existing profile of the same name is refused unless force
// is set.
func ImportProfile(configDir string, r io.Reader, force bool) (*Profile, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	var bundle ProfileBundle
	if err := json.NewDecoder(zr).Decode(&bundle); err != nil {
		return nil, clierr.Configf("could not decode profile bundle").WithCause(err)
	}
	if bundle.Version != bundleVersion {
		return nil, clierr.Configf("unsupported profile bundle version %d", bundle.Version)
	}
	if bundle.Profile == nil {
		return nil, clierr.Configf("profile bundle has no profile")
	}

	p := bundle.Profile
	if !force {
		if _, err := os.Stat(profilePath(configDir, p.Name)); err == nil {
			return nil, clierr.Usagef("profile %q already exists (use force to overwrite)", p.Name)
		}
	}
	if err := SaveProfile(configDir, p); err != nil {
		return nil, err
	}

	if len(bundle.DockerFiles) > 0 {
		dockerDir := filepath.Join(configDir, "docker", ProfileSlug(p))
		for base, data := range bundle.DockerFiles {
			if base != filepath.Base(base) {
				return nil, clierr.Configf("bundle contains a non-flat docker path %q", base)
			}
			if err := atomicWriteFile(filepath.Join(dockerDir, base), data, 0600); err != nil {
				return nil, clierr.Configf("could not write docker artifact %s", base).WithCause(err)
			}
		}
	}
	return p, nil
}
