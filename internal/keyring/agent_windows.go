//go:build windows
// +build windows

// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Windows-specific discovery of a running SSH agent: Pageant-compatible
// agents first, then the OpenSSH named-pipe agent.
package keyring

import (
	"errors"
	"net"
	"os"

	"github.com/Microsoft/go-winio"
	"github.com/davidmz/go-pageant"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// discoverAgent attempts to connect to a running SSH agent on Windows. It
// first tries Pageant-compatible agents (PuTTY, gpg-agent), then falls back
// to OpenSSH named pipes via SSH_AUTH_SOCK or the default pipe name.
func discoverAgent() agent.ExtendedAgent {
	if pageant.Available() {
		return &extendedShim{Agent: pageant.New()}
	}

	var conn net.Conn
	var err error
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err = winio.DialPipe(sock, nil)
	} else {
		conn, err = winio.DialPipe(`\\.\pipe\openssh-ssh-agent`, nil)
	}
	if err == nil && conn != nil {
		return agent.NewClient(conn)
	}
	return nil
}

// extendedShim adapts a plain agent.Agent (Pageant exposes no extension
// protocol) to agent.ExtendedAgent. Flagged sign requests degrade to the
// agent's default algorithm, which for RSA keys means SHA-1; the signer's
// algorithm negotiation reads the actual algorithm off the signature.
type extendedShim struct {
	agent.Agent
}

func (s *extendedShim) SignWithFlags(key ssh.PublicKey, data []byte, flags agent.SignatureFlags) (*ssh.Signature, error) {
	if flags != 0 {
		return nil, errors.New("agent: sign flags unsupported by this agent")
	}
	return s.Sign(key, data)
}

func (s *extendedShim) Extension(extensionType string, contents []byte) ([]byte, error) {
	return nil, agent.ErrExtensionUnsupported
}
