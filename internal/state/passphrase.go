// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package state provides a secure, in-memory cache for transient secrets
// that need to be shared between parts of a single CLI invocation, such as
// a key passphrase collected by a prompt and later consumed by the signer.
package state

import "sync"

// Passphrases is the process-wide passphrase cache, keyed by key
// fingerprint. Values are byte slices rather than strings so the sensitive
// data can be explicitly zeroed after use.
var Passphrases = &passphraseCache{entries: map[string][]byte{}}

type passphraseCache struct {
	entries map[string][]byte
	mu      sync.RWMutex
}

// Set stores a copy of the passphrase for a fingerprint, overwriting any
// existing value.
func (c *passphraseCache) Set(fingerprint string, pass []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pass == nil {
		delete(c.entries, fingerprint)
		return
	}
	// Store a copy so the caller's slice isn't retained by the cache.
	cp := make([]byte, len(pass))
	copy(cp, pass)
	c.entries[fingerprint] = cp
}

// Get retrieves a copy of the passphrase for a fingerprint, or nil when none
// is cached. The caller owns the returned slice and should zero it after use.
func (c *passphraseCache) Get(fingerprint string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[fingerprint]
	if !ok {
		return nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp
}

// Clear wipes and removes the passphrase for a fingerprint.
func (c *passphraseCache) Clear(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.entries[fingerprint]; ok {
		for i := range v {
			v[i] = 0
		}
		delete(c.entries, fingerprint)
	}
}

// ClearAll wipes every cached passphrase. Called on process shutdown.
func (c *passphraseCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		for i := range v {
			v[i] = 0
		}
		delete(c.entries, k)
	}
}
