// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keyring enumerates the places a signing key may live (a running
// SSH agent, the home .ssh directory, explicit file paths), matches keys by
// fingerprint, and hands out signing handles. Locked on-disk keys must be
// unlocked with their passphrase before they can sign.
package keyring

import (
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/logging"
)

// Key sources, in resolution preference order.
const (
	SourceAgent   = "agent"
	SourceHomedir = "homedir"
	SourceOther   = "other"
)

// KeyPair is one candidate signing key, wherever it lives.
type KeyPair interface {
	// Fingerprint returns the canonical md5:... fingerprint.
	Fingerprint() string
	// PublicKey returns the public half.
	PublicKey() ssh.PublicKey
	// Source is one of SourceAgent, SourceHomedir, SourceOther.
	Source() string
	// Comment is the key's comment, when known.
	Comment() string
	// Locked reports whether private material is passphrase-protected and
	// not yet unlocked. Agent-backed keys are never locked from the CLI's
	// point of view.
	Locked() bool
	// Unlock decrypts the private material in place. It is idempotent on
	// unlocked pairs; the passphrase is ignored in that case.
	Unlock(passphrase []byte) error
	// Signer returns a signing handle. Signing a locked pair fails with a
	// Signing error.
	Signer() (ssh.Signer, error)
}

// Ring is the set of key sources searched for candidates.
type Ring struct {
	agent         agent.ExtendedAgent
	homeDir       string
	explicitPaths []string
}

// Options configures a Ring. Zero values select the defaults: the agent
// from SSH_AUTH_SOCK and the user's ~/.ssh.
type Options struct {
	// HomeSSHDir overrides ~/.ssh.
	HomeSSHDir string
	// ExplicitPaths names private key files supplied by the caller.
	ExplicitPaths []string
	// Agent overrides agent discovery (used by tests).
	Agent agent.ExtendedAgent
	// NoAgent disables the agent source entirely.
	NoAgent bool
}

// New builds a Ring. Failure to reach an agent is not an error; the agent
// source is simply absent.
func New(opts Options) *Ring {
	r := &Ring{
		homeDir:       opts.HomeSSHDir,
		explicitPaths: opts.ExplicitPaths,
	}
	if r.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			r.homeDir = filepath.Join(home, ".ssh")
		}
	}
	switch {
	case opts.NoAgent:
	case opts.Agent != nil:
		r.agent = opts.Agent
	default:
		r.agent = discoverAgent()
	}
	return r
}

// List returns every candidate key pair across all sources, agent first.
func (r *Ring) List() ([]KeyPair, error) {
	var pairs []KeyPair

	if r.agent != nil {
		agentKeys, err := r.agent.List()
		if err != nil {
			logging.Debugf("ssh agent list failed: %v", err)
		} else {
			for _, k := range agentKeys {
				pairs = append(pairs, newAgentKeyPair(r.agent, k))
			}
		}
	}

	homePairs, err := loadDirKeyPairs(r.homeDir)
	if err != nil {
		return nil, err
	}
	pairs = append(pairs, homePairs...)

	for _, path := range r.explicitPaths {
		kp, err := loadFileKeyPair(path, SourceOther)
		if err != nil {
			logging.Warnf("skipping key file %s: %v", path, err)
			continue
		}
		pairs = append(pairs, kp)
	}
	return pairs, nil
}

// Find returns every pair matching the fingerprint, across all sources.
// Useful for diagnostics when a fingerprint is ambiguous.
func (r *Ring) Find(fingerprint string) ([]KeyPair, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var matches []KeyPair
	for _, kp := range all {
		if MatchesFingerprint(kp.PublicKey(), fingerprint) {
			matches = append(matches, kp)
		}
	}
	return matches, nil
}

// FindSigningKeyPair picks the best candidate for a fingerprint: an
// agent-backed pair first (never needs an unlock), then an unlocked local
// pair, then a locked one the caller must unlock. A miss is a
// ResourceNotFound error.
func (r *Ring) FindSigningKeyPair(fingerprint string) (KeyPair, error) {
	matches, err := r.Find(fingerprint)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, clierr.NotFoundf("no key with fingerprint %q found in the agent, %s, or explicit paths",
			fingerprint, r.homeDir)
	}

	var unlocked, locked KeyPair
	for _, kp := range matches {
		switch {
		case kp.Source() == SourceAgent:
			return kp, nil
		case !kp.Locked() && unlocked == nil:
			unlocked = kp
		case kp.Locked() && locked == nil:
			locked = kp
		}
	}
	if unlocked != nil {
		return unlocked, nil
	}
	return locked, nil
}
