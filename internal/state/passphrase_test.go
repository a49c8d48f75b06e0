// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"bytes"
	"testing"
)

func TestPassphraseRoundTrip(t *testing.T) {
	defer Passphrases.ClearAll()

	fp := "md5:aa:bb:cc"
	Passphrases.Set(fp, []byte("hunter2"))

	got := Passphrases.Get(fp)
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Fatalf("got %q", got)
	}

	// Mutating the returned copy must not affect the cached value.
	got[0] = 'X'
	if !bytes.Equal(Passphrases.Get(fp), []byte("hunter2")) {
		t.Fatal("cache shares memory with caller")
	}
}

func TestPassphraseClearZeroes(t *testing.T) {
	defer Passphrases.ClearAll()

	fp := "md5:dd:ee"
	secret := []byte("s3cret")
	Passphrases.Set(fp, secret)
	Passphrases.Clear(fp)

	if Passphrases.Get(fp) != nil {
		t.Fatal("entry survived Clear")
	}
	// The caller's original slice is untouched; only the cached copy is wiped.
	if !bytes.Equal(secret, []byte("s3cret")) {
		t.Fatal("caller's slice was modified")
	}
}

func TestPassphraseMissingIsNil(t *testing.T) {
	if Passphrases.Get("md5:no:such") != nil {
		t.Fatal("expected nil for unknown fingerprint")
	}
}
