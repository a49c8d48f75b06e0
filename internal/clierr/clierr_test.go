// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package clierr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorRendersCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Signingf("could not sign request").WithCause(cause)
	if got := err.Error(); got != "could not sign request: socket closed" {
		t.Fatalf("unexpected rendering: %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable via errors.Is")
	}
}

func TestErrorDoesNotRepeatCause(t *testing.T) {
	cause := errors.New("no such profile \"west\"")
	err := Configf("no such profile %q", "west").WithCause(cause)
	if got := err.Error(); strings.Count(got, "west") != 1 {
		t.Fatalf("cause text duplicated: %q", got)
	}
}

func TestExitStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ErrUserAborted, 0},
		{fmt.Errorf("wrapped: %w", ErrUserAborted), 0},
		{errors.New("plain"), 1},
		{Usagef("bad flag"), 1},
		{NotFoundf("no instance %q", "db0"), 3},
		{InstanceDeletedf("instance gone"), 3},
		{fmt.Errorf("outer: %w", NotFoundf("inner")), 3},
	}
	for _, tc := range cases {
		if got := ExitStatus(tc.err); got != tc.want {
			t.Errorf("ExitStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMulti(t *testing.T) {
	if err := Multi(nil, nil); err != nil {
		t.Fatalf("Multi of nils should be nil, got %v", err)
	}

	single := NotFoundf("no such key")
	if err := Multi(nil, single); err != single {
		t.Fatalf("single error should pass through unchanged, got %v", err)
	}

	first := Signingf("agent refused")
	second := errors.New("disk full")
	err := Multi(first, second)
	if CodeOf(err) != CodeMulti {
		t.Fatalf("expected MultiError code, got %s", CodeOf(err))
	}
	if !errors.Is(err, first) {
		t.Fatal("first child should be the cause")
	}
	msg := err.Error()
	if !strings.Contains(msg, "agent refused") || !strings.Contains(msg, "disk full") {
		t.Fatalf("aggregate message missing children: %q", msg)
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("calling cloudapi: %w", NotFoundf("no role %q", "eng"))
	if !HasCode(err, CodeResourceNotFound) {
		t.Fatal("HasCode should see through wrapping")
	}
	if HasCode(err, CodeTimeout) {
		t.Fatal("HasCode matched the wrong code")
	}
}
