// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/keyring"
	"github.com/vigilcloud/triton-cli/internal/state"
)

// ReadPassphrase prompts on stderr and reads without echo. Fails when
// stdin is not a terminal; a passphrase cannot be piped in.
func ReadPassphrase(promptText string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, clierr.Signingf("cannot prompt for a passphrase without a terminal")
	}
	fmt.Fprint(os.Stderr, promptText)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, clierr.Signingf("could not read passphrase").WithCause(err)
	}
	return pass, nil
}

// UnlockKeyPair unlocks kp, trying a cached passphrase first and prompting
// otherwise. No-op on unlocked pairs. A passphrase that works is cached
// for the rest of the invocation.
func UnlockKeyPair(kp keyring.KeyPair) error {
	if !kp.Locked() {
		return nil
	}
	fp := kp.Fingerprint()
	if pass := state.Passphrases.Get(fp); pass != nil {
		err := kp.Unlock(pass)
		for i := range pass {
			pass[i] = 0
		}
		if err == nil {
			return nil
		}
		state.Passphrases.Clear(fp)
	}

	pass, err := ReadPassphrase(fmt.Sprintf("Passphrase for key %s: ", fp))
	if err != nil {
		return err
	}
	err = kp.Unlock(pass)
	if err == nil {
		state.Passphrases.Set(fp, pass)
	}
	for i := range pass {
		pass[i] = 0
	}
	return err
}

// Confirm asks a yes/no question and reads one line. Only "y" and "yes"
// (any case) count as yes; everything else, including EOF, is no.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
