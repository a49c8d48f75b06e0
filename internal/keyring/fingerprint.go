// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package keyring

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Fingerprint returns the canonical fingerprint of a public key: the MD5
// digest of the wire-format key, colon-separated, with an "md5:" prefix.
// CloudAPI identifies keys by this form.
func Fingerprint(pub ssh.PublicKey) string {
	sum := md5.Sum(pub.Marshal())
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return "md5:" + strings.Join(parts, ":")
}

// FingerprintSHA256 returns the OpenSSH-style SHA256 fingerprint
// ("SHA256:<base64, no padding>").
func FingerprintSHA256(pub ssh.PublicKey) string {
	sum := sha256.Sum256(pub.Marshal())
	return "SHA256:" + strings.TrimRight(base64.StdEncoding.EncodeToString(sum[:]), "=")
}

// NormalizeFingerprint brings user-supplied fingerprints into a comparable
// form. Accepted inputs: "md5:aa:bb:...", bare legacy "aa:bb:...", and
// "SHA256:...". The result keeps the digest family prefix.
func NormalizeFingerprint(fp string) (string, error) {
	fp = strings.TrimSpace(fp)
	switch {
	case fp == "":
		return "", fmt.Errorf("empty fingerprint")
	case strings.HasPrefix(fp, "SHA256:"):
		return "SHA256:" + strings.TrimRight(strings.TrimPrefix(fp, "SHA256:"), "="), nil
	case strings.HasPrefix(fp, "md5:"):
		return "md5:" + strings.ToLower(strings.TrimPrefix(fp, "md5:")), nil
	case strings.Contains(fp, ":") && !strings.Contains(fp, "/"):
		// Legacy bare hex-colon form is MD5.
		return "md5:" + strings.ToLower(fp), nil
	}
	return "", fmt.Errorf("unrecognized fingerprint format %q", fp)
}

// MatchesFingerprint reports whether a public key matches a user-supplied
// fingerprint in any accepted format.
func MatchesFingerprint(pub ssh.PublicKey, fp string) bool {
	norm, err := NormalizeFingerprint(fp)
	if err != nil {
		return false
	}
	if strings.HasPrefix(norm, "SHA256:") {
		return FingerprintSHA256(pub) == norm
	}
	return Fingerprint(pub) == norm
}
