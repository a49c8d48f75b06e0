// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package cloudapi

import (
	"context"
	"fmt"
	"net/url"
)

// User is a CloudAPI account sub-user.
type User struct {
	ID        string `json:"id,omitempty"`
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Password  string `json:"password,omitempty"`
}

// UserKey is an SSH public key registered for a sub-user.
type UserKey struct {
	Name        string `json:"name,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Key         string `json:"key"`
}

// Policy is a named, ordered set of Aperture rule strings.
type Policy struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Rules       []string `json:"rules"`
}

// Role ties policies to member sub-users.
type Role struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Policies       []string `json:"policies,omitempty"`
	Members        []string `json:"members,omitempty"`
	DefaultMembers []string `json:"default_members,omitempty"`
}

// Machine is a compute instance, reduced to the fields the CLI uses.
type Machine struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Image   string `json:"image,omitempty"`
	Package string `json:"package,omitempty"`
	Brand   string `json:"brand,omitempty"`
}

// Ping checks CloudAPI liveness without authentication side effects.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "GET", "/--ping", nil, nil)
}

// ListServices returns the datacenter's service name to endpoint map
// (docker, cmon, manta, ...).
func (c *Client) ListServices(ctx context.Context) (map[string]string, error) {
	var services map[string]string
	err := c.do(ctx, "GET", "/"+c.account+"/services", nil, &services)
	return services, err
}

// ListUsers returns the account's sub-users.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := c.do(ctx, "GET", "/"+c.account+"/users", nil, &users)
	return users, err
}

// GetUser fetches one sub-user by login or id.
func (c *Client) GetUser(ctx context.Context, login string) (*User, error) {
	var user User
	err := c.do(ctx, "GET", "/"+c.account+"/users/"+url.PathEscape(login), nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a sub-user.
func (c *Client) CreateUser(ctx context.Context, user *User) (*User, error) {
	var created User
	err := c.do(ctx, "POST", "/"+c.account+"/users", user, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateUser updates modifiable fields of a sub-user.
func (c *Client) UpdateUser(ctx context.Context, user *User) (*User, error) {
	if user.Login == "" {
		return nil, fmt.Errorf("update user: login is required")
	}
	var updated User
	err := c.do(ctx, "POST", "/"+c.account+"/users/"+url.PathEscape(user.Login), user, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteUser removes a sub-user.
func (c *Client) DeleteUser(ctx context.Context, login string) error {
	return c.do(ctx, "DELETE", "/"+c.account+"/users/"+url.PathEscape(login), nil, nil)
}

// ListUserKeys returns the SSH keys registered for a sub-user.
func (c *Client) ListUserKeys(ctx context.Context, login string) ([]UserKey, error) {
	var keys []UserKey
	err := c.do(ctx, "GET", "/"+c.account+"/users/"+url.PathEscape(login)+"/keys", nil, &keys)
	return keys, err
}

// GetUserKey fetches one sub-user key by fingerprint or name.
func (c *Client) GetUserKey(ctx context.Context, login, fingerprint string) (*UserKey, error) {
	var key UserKey
	err := c.do(ctx, "GET",
		"/"+c.account+"/users/"+url.PathEscape(login)+"/keys/"+url.PathEscape(fingerprint), nil, &key)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// CreateUserKey uploads a public key for a sub-user.
func (c *Client) CreateUserKey(ctx context.Context, login string, key *UserKey) (*UserKey, error) {
	var created UserKey
	err := c.do(ctx, "POST", "/"+c.account+"/users/"+url.PathEscape(login)+"/keys", key, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteUserKey removes a sub-user key by fingerprint.
func (c *Client) DeleteUserKey(ctx context.Context, login, fingerprint string) error {
	return c.do(ctx, "DELETE",
		"/"+c.account+"/users/"+url.PathEscape(login)+"/keys/"+url.PathEscape(fingerprint), nil, nil)
}

// ListPolicies returns the account's policies.
func (c *Client) ListPolicies(ctx context.Context) ([]Policy, error) {
	var policies []Policy
	err := c.do(ctx, "GET", "/"+c.account+"/policies", nil, &policies)
	return policies, err
}

// CreatePolicy creates a policy.
func (c *Client) CreatePolicy(ctx context.Context, policy *Policy) (*Policy, error) {
	var created Policy
	err := c.do(ctx, "POST", "/"+c.account+"/policies", policy, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePolicy updates a policy by name or id.
func (c *Client) UpdatePolicy(ctx context.Context, policy *Policy) (*Policy, error) {
	if policy.Name == "" {
		return nil, fmt.Errorf("update policy: name is required")
	}
	var updated Policy
	err := c.do(ctx, "POST", "/"+c.account+"/policies/"+url.PathEscape(policy.Name), policy, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePolicy removes a policy.
func (c *Client) DeletePolicy(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", "/"+c.account+"/policies/"+url.PathEscape(name), nil, nil)
}

// ListRoles returns the account's roles.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := c.do(ctx, "GET", "/"+c.account+"/roles", nil, &roles)
	return roles, err
}

// CreateRole creates a role.
func (c *Client) CreateRole(ctx context.Context, role *Role) (*Role, error) {
	var created Role
	err := c.do(ctx, "POST", "/"+c.account+"/roles", role, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRole updates a role by name or id.
func (c *Client) UpdateRole(ctx context.Context, role *Role) (*Role, error) {
	if role.Name == "" {
		return nil, fmt.Errorf("update role: name is required")
	}
	var updated Role
	err := c.do(ctx, "POST", "/"+c.account+"/roles/"+url.PathEscape(role.Name), role, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteRole removes a role.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", "/"+c.account+"/roles/"+url.PathEscape(name), nil, nil)
}

// SetRoleTags replaces the role tags on a resource path (for example
// "/machines/<uuid>").
func (c *Client) SetRoleTags(ctx context.Context, resourcePath string, roleTags []string) error {
	body := map[string][]string{"role-tag": roleTags}
	return c.do(ctx, "PUT", "/"+c.account+resourcePath, body, nil)
}

// ListMachines returns the account's instances, optionally filtered by
// exact name.
func (c *Client) ListMachines(ctx context.Context, name string) ([]Machine, error) {
	path := "/" + c.account + "/machines"
	if name != "" {
		path += "?name=" + url.QueryEscape(name)
	}
	var machines []Machine
	err := c.do(ctx, "GET", path, nil, &machines)
	return machines, err
}

// GetMachine fetches one instance by uuid.
func (c *Client) GetMachine(ctx context.Context, id string) (*Machine, error) {
	var m Machine
	err := c.do(ctx, "GET", "/"+c.account+"/machines/"+url.PathEscape(id), nil, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
