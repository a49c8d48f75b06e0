// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package rbac

import (
	"fmt"
	"slices"

	"github.com/vigilcloud/triton-cli/internal/cloudapi"
)

// PlanOptions tune plan construction.
type PlanOptions struct {
	// GenerateKeys emits a generate change plus a profile change for every
	// desired user that ends up without any key, so the executor can
	// auto-provision access for them.
	GenerateKeys bool
	// ProfileName namespaces generated key files and profiles; required
	// when GenerateKeys is set.
	ProfileName string
}

// BuildPlan diffs desired against observed and returns an ordered plan.
// The order is a dependency contract: roles are deleted before the
// policies they reference, a user's keys are deleted before the user,
// users are created before their keys, and policies before the roles
// that reference them. Runs on identical inputs produce identical plans.
func BuildPlan(desired *Config, observed *State, opts PlanOptions) *Plan {
	p := &Plan{}

	delRoles, newRoles, updRoles := diffRoles(desired.Roles, observed.Roles)
	delPolicies, newPolicies, updPolicies := diffPolicies(desired.Policies, observed.Policies)

	// Deletions first, reverse dependency order.
	p.Changes = append(p.Changes, delRoles...)
	p.Changes = append(p.Changes, delPolicies...)
	p.Changes = append(p.Changes, userDeletions(desired.Users, observed)...)

	// Creations and updates, forward dependency order.
	p.Changes = append(p.Changes, userChanges(desired.Users, observed, opts)...)
	p.Changes = append(p.Changes, newPolicies...)
	p.Changes = append(p.Changes, updPolicies...)
	p.Changes = append(p.Changes, newRoles...)
	p.Changes = append(p.Changes, updRoles...)
	return p
}

// ResetPlan deletes everything observed, in dependency order.
func ResetPlan(observed *State) *Plan {
	return BuildPlan(&Config{}, observed, PlanOptions{})
}

func userDeletions(desired []User, observed *State) []Change {
	wanted := make(map[string]bool, len(desired))
	for _, u := range desired {
		wanted[u.Login] = true
	}

	var out []Change
	for _, have := range sortedByID(observed.Users, func(u cloudapi.User) string { return u.Login }) {
		if wanted[have.Login] {
			continue
		}
		for _, k := range sortedByID(observed.Keys[have.Login], func(k cloudapi.UserKey) string { return k.Fingerprint }) {
			out = append(out, Change{Action: ActionDelete, Kind: KindKey, ID: k.Fingerprint, User: have.Login, Have: k})
		}
		out = append(out, Change{Action: ActionDelete, Kind: KindUser, ID: have.Login, Have: have})
	}
	return out
}

func userChanges(desired []User, observed *State, opts PlanOptions) []Change {
	haveByLogin := make(map[string]cloudapi.User, len(observed.Users))
	for _, u := range observed.Users {
		haveByLogin[u.Login] = u
	}

	var out []Change
	for _, want := range sortedByID(desired, func(u User) string { return u.Login }) {
		have, exists := haveByLogin[want.Login]
		if !exists {
			out = append(out, Change{Action: ActionCreate, Kind: KindUser, ID: want.Login, Want: want.User})
			for _, k := range sortedByID(want.Keys.Inline, func(k cloudapi.UserKey) string { return k.Fingerprint }) {
				out = append(out, Change{Action: ActionCreate, Kind: KindKey, ID: k.Fingerprint, User: want.Login, Want: k})
			}
		} else {
			if diff := diffUser(have, want.User); len(diff) > 0 {
				upd := want.User
				upd.Password = ""
				out = append(out, Change{Action: ActionUpdate, Kind: KindUser, ID: want.Login, Have: have, Want: upd, Diff: diff})
			}
			out = append(out, keyChanges(want.Login, want.Keys.Inline, observed.Keys[want.Login])...)
		}

		if opts.GenerateKeys && len(want.Keys.Inline) == 0 && len(observed.Keys[want.Login]) == 0 {
			out = append(out, Change{Action: ActionGenerate, Kind: KindKey, User: want.Login})
			out = append(out, Change{
				Action: ActionCreate, Kind: KindProfile,
				ID:   fmt.Sprintf("%s-user-%s", opts.ProfileName, want.Login),
				User: want.Login,
			})
		}
	}
	return out
}

// keyChanges diffs one user's keys by fingerprint. A key whose material or
// name changed under the same fingerprint is replaced, delete then create.
func keyChanges(login string, want, have []cloudapi.UserKey) []Change {
	wantByFP := make(map[string]cloudapi.UserKey, len(want))
	for _, k := range want {
		wantByFP[k.Fingerprint] = k
	}
	haveByFP := make(map[string]cloudapi.UserKey, len(have))
	for _, k := range have {
		haveByFP[k.Fingerprint] = k
	}

	var out []Change
	for _, k := range sortedByID(have, func(k cloudapi.UserKey) string { return k.Fingerprint }) {
		w, keep := wantByFP[k.Fingerprint]
		if keep && w.Key == k.Key && (w.Name == "" || w.Name == k.Name) {
			continue
		}
		out = append(out, Change{Action: ActionDelete, Kind: KindKey, ID: k.Fingerprint, User: login, Have: k})
	}
	for _, k := range sortedByID(want, func(k cloudapi.UserKey) string { return k.Fingerprint }) {
		h, exists := haveByFP[k.Fingerprint]
		if exists && h.Key == k.Key && (k.Name == "" || k.Name == h.Name) {
			continue
		}
		out = append(out, Change{Action: ActionCreate, Kind: KindKey, ID: k.Fingerprint, User: login, Want: k})
	}
	return out
}

// diffUser compares the fields the desired side specifies; an empty
// desired field is "leave as is", not "clear". Passwords are create-only:
// the server never echoes them back, so comparing would re-fire the update
// on every run.
func diffUser(have, want cloudapi.User) []string {
	var diff []string
	if want.Email != "" && want.Email != have.Email {
		diff = append(diff, "email")
	}
	if want.FirstName != "" && want.FirstName != have.FirstName {
		diff = append(diff, "firstName")
	}
	if want.LastName != "" && want.LastName != have.LastName {
		diff = append(diff, "lastName")
	}
	return diff
}

func diffPolicies(want, have []cloudapi.Policy) (del, create, update []Change) {
	wantByName := make(map[string]cloudapi.Policy, len(want))
	for _, p := range want {
		wantByName[p.Name] = p
	}
	haveByName := make(map[string]cloudapi.Policy, len(have))
	for _, p := range have {
		haveByName[p.Name] = p
	}

	for _, p := range sortedByID(have, func(p cloudapi.Policy) string { return p.Name }) {
		if _, keep := wantByName[p.Name]; !keep {
			del = append(del, Change{Action: ActionDelete, Kind: KindPolicy, ID: p.Name, Have: p})
		}
	}
	for _, p := range sortedByID(want, func(p cloudapi.Policy) string { return p.Name }) {
		h, exists := haveByName[p.Name]
		if !exists {
			create = append(create, Change{Action: ActionCreate, Kind: KindPolicy, ID: p.Name, Want: p})
			continue
		}
		var diff []string
		if p.Description != "" && p.Description != h.Description {
			diff = append(diff, "description")
		}
		if !sortedEqual(p.Rules, h.Rules) {
			diff = append(diff, "rules")
		}
		if len(diff) > 0 {
			update = append(update, Change{Action: ActionUpdate, Kind: KindPolicy, ID: p.Name, Have: h, Want: p, Diff: diff})
		}
	}
	return del, create, update
}

func diffRoles(want, have []cloudapi.Role) (del, create, update []Change) {
	wantByName := make(map[string]cloudapi.Role, len(want))
	for _, r := range want {
		wantByName[r.Name] = r
	}
	haveByName := make(map[string]cloudapi.Role, len(have))
	for _, r := range have {
		haveByName[r.Name] = r
	}

	for _, r := range sortedByID(have, func(r cloudapi.Role) string { return r.Name }) {
		if _, keep := wantByName[r.Name]; !keep {
			del = append(del, Change{Action: ActionDelete, Kind: KindRole, ID: r.Name, Have: r})
		}
	}
	for _, r := range sortedByID(want, func(r cloudapi.Role) string { return r.Name }) {
		h, exists := haveByName[r.Name]
		if !exists {
			create = append(create, Change{Action: ActionCreate, Kind: KindRole, ID: r.Name, Want: r})
			continue
		}
		var diff []string
		if !sortedEqual(r.Members, h.Members) {
			diff = append(diff, "members")
		}
		if !sortedEqual(r.DefaultMembers, h.DefaultMembers) {
			diff = append(diff, "default_members")
		}
		if !sortedEqual(r.Policies, h.Policies) {
			diff = append(diff, "policies")
		}
		if len(diff) > 0 {
			update = append(update, Change{Action: ActionUpdate, Kind: KindRole, ID: r.Name, Have: h, Want: r, Diff: diff})
		}
	}
	return del, create, update
}

// sortedByID returns a copy of items sorted by the identity field, so the
// plan does not depend on input or server ordering.
func sortedByID[T any](items []T, id func(T) string) []T {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b T) int {
		switch ai, bi := id(a), id(b); {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	})
	return out
}

// sortedEqual compares two string sets ignoring order.
func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
