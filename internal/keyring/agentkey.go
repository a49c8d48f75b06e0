// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package keyring

import (
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

// agentKeyPair is a key held by a running SSH agent. The agent never
// releases private material; all signing round-trips through it.
type agentKeyPair struct {
	ag  agent.ExtendedAgent
	key *agent.Key
}

func newAgentKeyPair(ag agent.ExtendedAgent, key *agent.Key) *agentKeyPair {
	return &agentKeyPair{ag: ag, key: key}
}

func (a *agentKeyPair) Fingerprint() string      { return Fingerprint(a.key) }
func (a *agentKeyPair) PublicKey() ssh.PublicKey { return a.key }
func (a *agentKeyPair) Source() string           { return SourceAgent }
func (a *agentKeyPair) Comment() string          { return a.key.Comment }

// Locked is always false: the agent owns the unlock lifecycle.
func (a *agentKeyPair) Locked() bool { return false }

// Unlock is a no-op for agent keys.
func (a *agentKeyPair) Unlock([]byte) error { return nil }

// Signer returns the agent-backed signer for this key. The returned signer
// also implements ssh.AlgorithmSigner, which the request signer relies on
// for algorithm negotiation.
func (a *agentKeyPair) Signer() (ssh.Signer, error) {
	signers, err := a.ag.Signers()
	if err != nil {
		return nil, clierr.Signingf("ssh agent refused to list signers").WithCause(err)
	}
	want := a.key.Marshal()
	for _, s := range signers {
		if string(s.PublicKey().Marshal()) == string(want) {
			return s, nil
		}
	}
	return nil, clierr.Signingf("key %s vanished from the ssh agent", a.Fingerprint())
}
