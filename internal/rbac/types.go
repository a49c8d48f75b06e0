// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package rbac reconciles a declarative access-control document against the
// live CloudAPI state: load and validate the desired document, fetch the
// observed state, diff the two into an ordered change plan, and apply it.
package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vigilcloud/triton-cli/internal/cloudapi"
)

// KeySet is a user's desired SSH keys: either inline key material or a
// directory holding one <login>.pub file per user.
type KeySet struct {
	Inline []cloudapi.UserKey
	Dir    string
}

func (k *KeySet) UnmarshalJSON(b []byte) error {
	var dir string
	if err := json.Unmarshal(b, &dir); err == nil {
		k.Dir = dir
		return nil
	}
	if err := json.Unmarshal(b, &k.Inline); err != nil {
		return fmt.Errorf("keys must be a key array or a directory path: %w", err)
	}
	return nil
}

func (k KeySet) MarshalJSON() ([]byte, error) {
	if k.Dir != "" {
		return json.Marshal(k.Dir)
	}
	return json.Marshal(k.Inline)
}

// User is a desired sub-user plus the keys that should be registered for it.
type User struct {
	cloudapi.User
	Keys KeySet `json:"keys,omitempty"`
}

// Config is the desired-state document.
type Config struct {
	Users    []User            `json:"users,omitempty"`
	Policies []cloudapi.Policy `json:"policies,omitempty"`
	Roles    []cloudapi.Role   `json:"roles,omitempty"`
}

// State is the observed server-side RBAC state, keys indexed by login.
type State struct {
	Users    []cloudapi.User
	Keys     map[string][]cloudapi.UserKey
	Policies []cloudapi.Policy
	Roles    []cloudapi.Role
}

// Action is what a change does.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionGenerate Action = "generate"
)

// Kind is what a change acts on.
type Kind string

const (
	KindUser    Kind = "user"
	KindKey     Kind = "key"
	KindPolicy  Kind = "policy"
	KindRole    Kind = "role"
	KindProfile Kind = "profile"
)

// Change is one step of a plan. Have and Want hold the observed and desired
// objects where present; Diff names the fields an update touches.
type Change struct {
	Action Action
	Kind   Kind
	ID     string
	User   string // owning login for key changes
	Have   any
	Want   any
	Diff   []string
}

// String renders the one-line form used in plan listings.
func (c Change) String() string {
	switch {
	case c.Kind == KindKey && c.Action == ActionGenerate:
		return fmt.Sprintf("generate key for user %s", c.User)
	case c.Kind == KindKey:
		return fmt.Sprintf("%s key %s of user %s", c.Action, c.ID, c.User)
	case c.Action == ActionUpdate && len(c.Diff) > 0:
		return fmt.Sprintf("update %s %s (%s)", c.Kind, c.ID, strings.Join(c.Diff, ", "))
	}
	return fmt.Sprintf("%s %s %s", c.Action, c.Kind, c.ID)
}

// Plan is an ordered change sequence. Order is an execution contract:
// earlier changes satisfy the dependencies of later ones.
type Plan struct {
	Changes []Change
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool { return len(p.Changes) == 0 }

// Client is the slice of the CloudAPI surface reconciliation needs.
// *cloudapi.Client satisfies it; tests use a scripted fake.
type Client interface {
	ListUsers(ctx context.Context) ([]cloudapi.User, error)
	CreateUser(ctx context.Context, user *cloudapi.User) (*cloudapi.User, error)
	UpdateUser(ctx context.Context, user *cloudapi.User) (*cloudapi.User, error)
	DeleteUser(ctx context.Context, login string) error

	ListUserKeys(ctx context.Context, login string) ([]cloudapi.UserKey, error)
	CreateUserKey(ctx context.Context, login string, key *cloudapi.UserKey) (*cloudapi.UserKey, error)
	DeleteUserKey(ctx context.Context, login, fingerprint string) error

	ListPolicies(ctx context.Context) ([]cloudapi.Policy, error)
	CreatePolicy(ctx context.Context, policy *cloudapi.Policy) (*cloudapi.Policy, error)
	UpdatePolicy(ctx context.Context, policy *cloudapi.Policy) (*cloudapi.Policy, error)
	DeletePolicy(ctx context.Context, name string) error

	ListRoles(ctx context.Context) ([]cloudapi.Role, error)
	CreateRole(ctx context.Context, role *cloudapi.Role) (*cloudapi.Role, error)
	UpdateRole(ctx context.Context, role *cloudapi.Role) (*cloudapi.Role, error)
	DeleteRole(ctx context.Context, name string) error
}

// FetchState reads the complete observed RBAC state.
func FetchState(ctx context.Context, c Client) (*State, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[string][]cloudapi.UserKey, len(users))
	for _, u := range users {
		uk, err := c.ListUserKeys(ctx, u.Login)
		if err != nil {
			return nil, err
		}
		keys[u.Login] = uk
	}
	policies, err := c.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := c.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	return &State{Users: users, Keys: keys, Policies: policies, Roles: roles}, nil
}
