// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package cloudapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vigilcloud/triton-cli/internal/cache"
	"github.com/vigilcloud/triton-cli/internal/clierr"
)

const machineList = `[
	{"id": "11111111-2222-3333-4444-555555555555", "name": "web0", "state": "running"},
	{"id": "99999999-2222-3333-4444-555555555555", "name": "web1", "state": "running"}
]`

func machinesServer(t *testing.T, listCalls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		if r.URL.Query().Get("name") == "nope" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(machineList))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveMachine(t *testing.T) {
	var calls atomic.Int64
	srv := machinesServer(t, &calls)
	c := newTestClient(t, srv.URL, false)
	ctx := context.Background()

	// Full UUID short-circuits without any request.
	id, err := c.ResolveMachine(ctx, nil, "11111111-2222-3333-4444-555555555555")
	if err != nil || id != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("uuid resolve = %q, %v", id, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("uuid resolve made %d requests", calls.Load())
	}

	// Name match.
	id, err = c.ResolveMachine(ctx, nil, "web0")
	if err != nil || id != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("name resolve = %q, %v", id, err)
	}

	// Short id prefix.
	id, err = c.ResolveMachine(ctx, nil, "9999")
	if err != nil || id != "99999999-2222-3333-4444-555555555555" {
		t.Fatalf("shortid resolve = %q, %v", id, err)
	}

	// No match.
	if _, err := c.ResolveMachine(ctx, nil, "nope"); !clierr.HasCode(err, clierr.CodeResourceNotFound) {
		t.Fatalf("got %v, want ResourceNotFound", err)
	}
}

func TestResolveMachineUsesCache(t *testing.T) {
	var calls atomic.Int64
	srv := machinesServer(t, &calls)
	c := newTestClient(t, srv.URL, false)
	ctx := context.Background()

	store, err := cache.Open(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := c.ResolveMachine(ctx, store, "web0"); err != nil {
		t.Fatal(err)
	}
	before := calls.Load()
	id, err := c.ResolveMachine(ctx, store, "web0")
	if err != nil || id != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("cached resolve = %q, %v", id, err)
	}
	if calls.Load() != before {
		t.Fatal("cached resolve still hit the server")
	}
}
