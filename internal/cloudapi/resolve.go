// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package cloudapi

import (
	"context"
	"regexp"
	"strings"

	"github.com/vigilcloud/triton-cli/internal/cache"
	"github.com/vigilcloud/triton-cli/internal/clierr"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ResolveMachine turns a machine name, short id prefix, or full UUID into
// the machine's UUID. store may be nil to skip caching; cache hits avoid a
// list round trip, misses fall through to the server.
func (c *Client) ResolveMachine(ctx context.Context, store *cache.Cache, nameOrID string) (string, error) {
	arg := strings.ToLower(strings.TrimSpace(nameOrID))
	if uuidRe.MatchString(arg) {
		return arg, nil
	}

	if store != nil {
		if id, ok := store.Lookup(ctx, "machine", nameOrID); ok {
			return id, nil
		}
	}

	// Exact name first; the server filters for us.
	machines, err := c.ListMachines(ctx, nameOrID)
	if err != nil {
		return "", err
	}
	var matches []Machine
	for _, m := range machines {
		if m.Name == nameOrID {
			matches = append(matches, m)
		}
	}

	// No name match: treat the argument as a short id prefix.
	if len(matches) == 0 {
		machines, err = c.ListMachines(ctx, "")
		if err != nil {
			return "", err
		}
		for _, m := range machines {
			if strings.HasPrefix(m.ID, arg) {
				matches = append(matches, m)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", clierr.NotFoundf("no instance named %q", nameOrID)
	case 1:
		if store != nil {
			_ = store.Put(ctx, "machine", nameOrID, matches[0].ID)
		}
		return matches[0].ID, nil
	}
	return "", clierr.Usagef("%q matches %d instances; use the full id", nameOrID, len(matches))
}
