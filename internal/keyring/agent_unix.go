//go:build !windows
// +build !windows

// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Unix-specific discovery of a running SSH agent via SSH_AUTH_SOCK.
package keyring

import (
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
)

// discoverAgent connects to the SSH agent named by SSH_AUTH_SOCK. An unset
// variable or a dead socket yields nil; callers treat the agent source as
// absent rather than failing.
func discoverAgent() agent.ExtendedAgent {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil
	}
	return agent.NewClient(conn)
}
