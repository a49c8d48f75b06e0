// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/logging"
)

// fileKeyPair is a key pair backed by files on disk. The public half always
// parses at construction time; the private half may be passphrase-protected
// and stay locked until Unlock.
type fileKeyPair struct {
	pub         ssh.PublicKey
	comment     string
	source      string
	privatePath string
	signer      ssh.Signer // nil while locked or when no private file exists
	locked      bool
}

func (f *fileKeyPair) Fingerprint() string       { return Fingerprint(f.pub) }
func (f *fileKeyPair) PublicKey() ssh.PublicKey  { return f.pub }
func (f *fileKeyPair) Source() string            { return f.source }
func (f *fileKeyPair) Comment() string           { return f.comment }
func (f *fileKeyPair) Locked() bool              { return f.locked }

func (f *fileKeyPair) Unlock(passphrase []byte) error {
	if !f.locked {
		return nil
	}
	data, err := os.ReadFile(f.privatePath)
	if err != nil {
		return clierr.Signingf("could not read private key %s", f.privatePath).WithCause(err)
	}
	signer, err := ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return clierr.Signingf("could not unlock key %s", f.privatePath).WithCause(err)
	}
	f.signer = signer
	f.locked = false
	return nil
}

func (f *fileKeyPair) Signer() (ssh.Signer, error) {
	if f.locked {
		return nil, clierr.Signingf("key %s is locked; unlock it first", f.privatePath)
	}
	if f.signer == nil {
		return nil, clierr.Signingf("no private key material available for %s", f.Fingerprint())
	}
	return f.signer, nil
}

// loadDirKeyPairs scans an .ssh-style directory. Each *.pub file yields a
// pair; a private counterpart (same name without .pub) is attached when it
// parses. Unreadable or foreign files are skipped quietly: home directories
// accumulate all sorts of clutter.
func loadDirKeyPairs(dir string) ([]KeyPair, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read key directory %s: %w", dir, err)
	}

	var pairs []KeyPair
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pub") {
			continue
		}
		pubPath := filepath.Join(dir, e.Name())
		kp, err := loadPubKeyPair(pubPath, SourceHomedir)
		if err != nil {
			logging.Debugf("skipping %s: %v", pubPath, err)
			continue
		}
		pairs = append(pairs, kp)
	}
	return pairs, nil
}

// loadPubKeyPair builds a pair from a .pub file, wiring up the private
// counterpart when one sits beside it.
func loadPubKeyPair(pubPath, source string) (*fileKeyPair, error) {
	data, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		// Decorated authorized_keys-style lines that confuse the strict
		// parser may still carry a clean algorithm/data/comment triple.
		alg, keyData, cmt, lineErr := ParsePublicKeyLine(string(data))
		if lineErr != nil {
			return nil, fmt.Errorf("not an OpenSSH public key: %w", err)
		}
		pub, comment, _, _, err = ssh.ParseAuthorizedKey([]byte(alg + " " + keyData + " " + cmt + "\n"))
		if err != nil {
			return nil, fmt.Errorf("not an OpenSSH public key: %w", err)
		}
	}

	kp := &fileKeyPair{
		pub:         pub,
		comment:     comment,
		source:      source,
		privatePath: strings.TrimSuffix(pubPath, ".pub"),
	}
	attachPrivate(kp)
	return kp, nil
}

// loadFileKeyPair builds a pair from an explicit private key path. The
// public half comes from the private key itself, or from a sibling .pub
// file when the private key is passphrase-protected.
func loadFileKeyPair(path, source string) (*fileKeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return &fileKeyPair{
			pub:         signer.PublicKey(),
			source:      source,
			privatePath: path,
			signer:      signer,
		}, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	// Locked. Some formats embed the public key in the encrypted envelope;
	// otherwise require the sibling .pub so the fingerprint is known without
	// a passphrase prompt.
	kp := &fileKeyPair{source: source, privatePath: path, locked: true}
	if missing.PublicKey != nil {
		kp.pub = missing.PublicKey
		return kp, nil
	}
	sibling, err := loadPubKeyPair(path+".pub", source)
	if err != nil {
		return nil, fmt.Errorf("key is passphrase-protected and %s.pub is unavailable: %w", path, err)
	}
	kp.pub = sibling.pub
	kp.comment = sibling.comment
	return kp, nil
}

// attachPrivate tries to wire the private counterpart onto a pair built
// from a .pub file. Missing or malformed private files leave the pair
// public-only; an encrypted private file marks the pair locked.
func attachPrivate(kp *fileKeyPair) {
	data, err := os.ReadFile(kp.privatePath)
	if err != nil {
		return
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		kp.signer = signer
		return
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		kp.locked = true
	}
}
