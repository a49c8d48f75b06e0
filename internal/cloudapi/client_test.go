// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package cloudapi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ssh/agent"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

// newTestClient builds a client over a fake agent key against the given
// endpoint.
func newTestClient(t *testing.T, endpoint string, insecure bool) *Client {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	kr := agent.NewKeyring().(agent.ExtendedAgent)
	if err := kr.Add(agent.AddedKey{PrivateKey: priv}); err != nil {
		t.Fatal(err)
	}
	ring := keyring.New(keyring.Options{HomeSSHDir: t.TempDir(), Agent: kr})
	pairs, err := ring.List()
	if err != nil || len(pairs) != 1 {
		t.Fatalf("ring setup: %v (%d pairs)", err, len(pairs))
	}

	p := &config.Profile{
		Name:     "test",
		URL:      endpoint,
		Account:  "alice",
		KeyID:    pairs[0].Fingerprint(),
		Insecure: insecure,
	}
	c, err := NewClient(p, ring)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSignedRequestAndDecode(t *testing.T) {
	var gotAuth, gotDate, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("Date")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"login": "bob", "email": "bob@example.com"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	users, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Login != "bob" {
		t.Fatalf("unexpected users: %+v", users)
	}
	if gotPath != "/alice/users" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotDate == "" {
		t.Fatal("Date header missing")
	}
	if !strings.HasPrefix(gotAuth, `Signature keyId="/alice/keys/md5:`) {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestStructuredErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code": "InvalidArgument", "message": "bad role",
			"errors": [{"field": "name", "code": "Duplicate", "message": "already exists"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	_, err := c.CreateRole(context.Background(), &Role{Name: "eng"})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "bad role") || !strings.Contains(msg, "name: Duplicate: already exists") {
		t.Fatalf("field errors not preserved: %q", msg)
	}
	if clierr.CodeOf(err) != "InvalidArgument" {
		t.Fatalf("code = %q", clierr.CodeOf(err))
	}
}

func TestNotFoundMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code": "ResourceNotFound", "message": "no such machine"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	_, err := c.GetMachine(context.Background(), "deadbeef")
	if !clierr.HasCode(err, clierr.CodeResourceNotFound) {
		t.Fatalf("got %v, want ResourceNotFound", err)
	}
	if clierr.ExitStatus(err) != 3 {
		t.Fatalf("exit status = %d, want 3", clierr.ExitStatus(err))
	}
}

func TestUnauthorizedMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	err := c.Ping(context.Background())
	if !clierr.HasCode(err, clierr.CodeInvalidCredentials) {
		t.Fatalf("got %v, want InvalidCredentials", err)
	}
	// Non-Joyent endpoint gets the generic hint, not the portal URL.
	if strings.Contains(err.Error(), "my.joyent.com") {
		t.Fatalf("portal hint on non-joyent URL: %q", err.Error())
	}
}

func TestMaintenanceMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	err := c.Ping(context.Background())
	if !clierr.HasCode(err, clierr.CodeServiceUnavailable) {
		t.Fatalf("got %v, want ServiceUnavailable", err)
	}
	if !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestSelfSignedDetection(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// Verification on: the test server's self-signed cert must map to the
	// typed remediation error.
	c := newTestClient(t, srv.URL, false)
	err := c.Ping(context.Background())
	if !clierr.HasCode(err, clierr.CodeSelfSignedCert) {
		t.Fatalf("got %v, want SelfSignedCert", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, srv.URL) || !strings.Contains(msg, "insecure") {
		t.Fatalf("remediation message incomplete: %q", msg)
	}

	// Insecure flag set: same endpoint must work.
	c = newTestClient(t, srv.URL, true)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("insecure ping failed: %v", err)
	}
}

func TestWaitForMachineStates(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := "provisioning"
		if calls.Add(1) >= 2 {
			state = "running"
		}
		w.Write([]byte(`{"id": "m-1", "name": "web0", "state": "` + state + `"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	m, err := c.WaitForMachineStates(context.Background(), "m-1", []string{"running"}, 30*time.Second)
	if err != nil {
		t.Fatalf("WaitForMachineStates: %v", err)
	}
	if m.State != "running" {
		t.Fatalf("state = %q", m.State)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected at least 2 polls, got %d", calls.Load())
	}
}

func TestWaitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "m-1", "state": "provisioning"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	_, err := c.WaitForMachineStates(context.Background(), "m-1", []string{"running"}, time.Nanosecond)
	if !clierr.HasCode(err, clierr.CodeTimeout) {
		t.Fatalf("got %v, want Timeout", err)
	}
	var cerr *clierr.Error
	if !errors.As(err, &cerr) || !cerr.Retryable {
		t.Fatal("timeout should be flagged retryable")
	}
}

func TestWaitInstanceDeleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code": "ResourceNotFound", "message": "gone"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, false)
	_, err := c.WaitForMachineStates(context.Background(), "m-1", []string{"running"}, time.Second)
	if !clierr.HasCode(err, clierr.CodeInstanceDeleted) {
		t.Fatalf("got %v, want InstanceDeleted", err)
	}

	// Waiting for deletion is the success case.
	m, err := c.WaitForMachineStates(context.Background(), "m-1", []string{"deleted"}, time.Second)
	if err != nil {
		t.Fatalf("wait for deleted: %v", err)
	}
	if m.State != "deleted" {
		t.Fatalf("state = %q", m.State)
	}
}
