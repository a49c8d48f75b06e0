// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package rbac

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vigilcloud/triton-cli/internal/cloudapi"
	"github.com/vigilcloud/triton-cli/internal/config"
)

// fakeClient records mutation calls and can be told to fail a given verb.
type fakeClient struct {
	calls    []string
	failVerb string
	failErr  error
}

func (f *fakeClient) record(verb string) error {
	f.calls = append(f.calls, verb)
	if f.failVerb != "" && verb == f.failVerb {
		return f.failErr
	}
	return nil
}

func (f *fakeClient) ListUsers(ctx context.Context) ([]cloudapi.User, error) { return nil, nil }
func (f *fakeClient) ListPolicies(ctx context.Context) ([]cloudapi.Policy, error) {
	return nil, nil
}
func (f *fakeClient) ListRoles(ctx context.Context) ([]cloudapi.Role, error) { return nil, nil }
func (f *fakeClient) ListUserKeys(ctx context.Context, login string) ([]cloudapi.UserKey, error) {
	return nil, nil
}

func (f *fakeClient) CreateUser(ctx context.Context, u *cloudapi.User) (*cloudapi.User, error) {
	return u, f.record("CreateUser " + u.Login)
}
func (f *fakeClient) UpdateUser(ctx context.Context, u *cloudapi.User) (*cloudapi.User, error) {
	return u, f.record("UpdateUser " + u.Login)
}
func (f *fakeClient) DeleteUser(ctx context.Context, login string) error {
	return f.record("DeleteUser " + login)
}
func (f *fakeClient) CreateUserKey(ctx context.Context, login string, k *cloudapi.UserKey) (*cloudapi.UserKey, error) {
	return k, f.record("CreateUserKey " + login)
}
func (f *fakeClient) DeleteUserKey(ctx context.Context, login, fp string) error {
	return f.record("DeleteUserKey " + login + " " + fp)
}
func (f *fakeClient) CreatePolicy(ctx context.Context, p *cloudapi.Policy) (*cloudapi.Policy, error) {
	return p, f.record("CreatePolicy " + p.Name)
}
func (f *fakeClient) UpdatePolicy(ctx context.Context, p *cloudapi.Policy) (*cloudapi.Policy, error) {
	return p, f.record("UpdatePolicy " + p.Name)
}
func (f *fakeClient) DeletePolicy(ctx context.Context, name string) error {
	return f.record("DeletePolicy " + name)
}
func (f *fakeClient) CreateRole(ctx context.Context, r *cloudapi.Role) (*cloudapi.Role, error) {
	return r, f.record("CreateRole " + r.Name)
}
func (f *fakeClient) UpdateRole(ctx context.Context, r *cloudapi.Role) (*cloudapi.Role, error) {
	return r, f.record("UpdateRole " + r.Name)
}
func (f *fakeClient) DeleteRole(ctx context.Context, name string) error {
	return f.record("DeleteRole " + name)
}

func TestExecuteAppliesInOrder(t *testing.T) {
	desired := &Config{
		Users:    []User{{User: cloudapi.User{Login: "carol"}}},
		Policies: []cloudapi.Policy{{Name: "ro", Rules: []string{"CAN getmachine"}}},
		Roles:    []cloudapi.Role{{Name: "ops", Members: []string{"carol"}, Policies: []string{"ro"}}},
	}
	observed := &State{Keys: map[string][]cloudapi.UserKey{}}
	plan := BuildPlan(desired, observed, PlanOptions{})

	fc := &fakeClient{}
	var out bytes.Buffer
	ex := &Executor{Client: fc, Out: &out}
	if err := ex.Execute(context.Background(), desired, plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{"CreateUser carol", "CreatePolicy ro", "CreateRole ops"}
	if len(fc.calls) != len(want) {
		t.Fatalf("calls = %v", fc.calls)
	}
	for i := range want {
		if fc.calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, fc.calls[i], want[i])
		}
	}
	for _, line := range []string{"Created user carol", "Created policy ro", "Created role ops"} {
		if !strings.Contains(out.String(), line) {
			t.Fatalf("progress output missing %q:\n%s", line, out.String())
		}
	}
}

func TestExecuteDryRunNeverMutates(t *testing.T) {
	desired := &Config{
		Users:    []User{{User: cloudapi.User{Login: "carol"}}},
		Policies: []cloudapi.Policy{{Name: "ro", Rules: []string{"CAN getmachine"}}},
	}
	observed := &State{Keys: map[string][]cloudapi.UserKey{}}
	plan := BuildPlan(desired, observed, PlanOptions{})

	fc := &fakeClient{}
	var out bytes.Buffer
	ex := &Executor{Client: fc, Out: &out, DryRun: true}
	if err := ex.Execute(context.Background(), desired, plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("dry run made calls: %v", fc.calls)
	}
	if !strings.Contains(out.String(), "Would create user carol") {
		t.Fatalf("dry run output:\n%s", out.String())
	}
}

func TestExecuteHaltsOnError(t *testing.T) {
	desired := &Config{
		Policies: []cloudapi.Policy{{Name: "ro", Rules: []string{"CAN getmachine"}}},
		Roles:    []cloudapi.Role{{Name: "ops", Policies: []string{"ro"}}},
	}
	observed := &State{Keys: map[string][]cloudapi.UserKey{}}
	plan := BuildPlan(desired, observed, PlanOptions{})

	fc := &fakeClient{failVerb: "CreatePolicy ro", failErr: os.ErrPermission}
	var out bytes.Buffer
	ex := &Executor{Client: fc, Out: &out}
	err := ex.Execute(context.Background(), desired, plan)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "create policy ro") {
		t.Fatalf("error lacks change context: %v", err)
	}
	for _, call := range fc.calls {
		if strings.HasPrefix(call, "CreateRole") {
			t.Fatalf("executor continued past the failure: %v", fc.calls)
		}
	}
}

func TestExecuteGenerateAndProfile(t *testing.T) {
	configDir := t.TempDir()
	sshDir := filepath.Join(t.TempDir(), "ssh")

	desired := &Config{Users: []User{{User: cloudapi.User{Login: "bob"}}}}
	observed := &State{
		Users: []cloudapi.User{{Login: "bob"}},
		Keys:  map[string][]cloudapi.UserKey{},
	}
	plan := BuildPlan(desired, observed, PlanOptions{GenerateKeys: true, ProfileName: "prod"})

	fc := &fakeClient{}
	var out bytes.Buffer
	ex := &Executor{
		Client: fc, Out: &out,
		Profile: &config.Profile{
			Name: "prod", URL: "https://cloudapi.example.com",
			Account: "alice", KeyID: "md5:aa",
		},
		ConfigDir:  configDir,
		HomeSSHDir: sshDir,
		KeyBits:    1024, // keep the test fast
	}
	if err := ex.Execute(context.Background(), desired, plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(fc.calls) != 1 || fc.calls[0] != "CreateUserKey bob" {
		t.Fatalf("calls = %v", fc.calls)
	}
	for _, path := range []string{
		filepath.Join(sshDir, "prod-user-bob.id_rsa"),
		filepath.Join(sshDir, "prod-user-bob.id_rsa.pub"),
		filepath.Join(configDir, "rbac-user-keys", "bob.pub"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing %s: %v", path, err)
		}
	}

	if len(desired.Users[0].Keys.Inline) != 1 || desired.Users[0].Keys.Inline[0].Fingerprint == "" {
		t.Fatalf("fingerprint not registered: %+v", desired.Users[0].Keys)
	}

	p, err := config.LoadProfile(configDir, "prod-user-bob")
	if err != nil {
		t.Fatalf("generated profile missing: %v", err)
	}
	if p.User != "bob" || p.KeyID != desired.Users[0].Keys.Inline[0].Fingerprint {
		t.Fatalf("generated profile = %+v", p)
	}
}
