// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package keyring

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ParsePublicKeyLine extracts the algorithm, base64 key data, and comment
// from a raw OpenSSH public key line. authorized_keys decorations (leading
// options such as from="..." or command="...") are skipped, so a line
// pasted out of a server's authorized_keys yields the same triple as a
// plain .pub file.
func ParsePublicKeyLine(line string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", "", errors.New("empty public key line")
	}
	start := slices.IndexFunc(fields, isKeyAlgorithm)
	if start < 0 {
		return "", "", "", errors.New("no key algorithm on the line")
	}
	if start+1 >= len(fields) {
		return "", "", "", fmt.Errorf("key data missing after %s", fields[start])
	}
	return fields[start], fields[start+1], strings.Join(fields[start+2:], " "), nil
}

func isKeyAlgorithm(field string) bool {
	return strings.HasPrefix(field, "ssh-") ||
		strings.HasPrefix(field, "ecdsa-") ||
		strings.HasPrefix(field, "sk-")
}
