// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package cloudapi

import (
	"context"
	"strings"
	"time"

	"github.com/vigilcloud/triton-cli/internal/clierr"
)

// DefaultWaitTimeout bounds wait-for-state polling when the caller passes
// no explicit timeout.
const DefaultWaitTimeout = 120 * time.Second

// Poll intervals back off from the floor to the ceiling and stay there.
const (
	waitPollFloor   = 1 * time.Second
	waitPollCeiling = 5 * time.Second
)

// WaitForMachineStates polls an instance until its state is one of states,
// or fails with a retryable Timeout error when the timeout elapses. A
// machine that disappears while being waited on (deleted out from under the
// poll) is an InstanceDeleted error unless "deleted" is a wanted state.
func (c *Client) WaitForMachineStates(ctx context.Context, id string, states []string, timeout time.Duration) (*Machine, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	wantDeleted := false
	for _, s := range states {
		if s == "deleted" {
			wantDeleted = true
		}
	}

	deadline := time.Now().Add(timeout)
	interval := waitPollFloor
	for {
		m, err := c.GetMachine(ctx, id)
		switch {
		case clierr.HasCode(err, clierr.CodeResourceNotFound):
			if wantDeleted {
				return &Machine{ID: id, State: "deleted"}, nil
			}
			return nil, clierr.InstanceDeletedf("instance %s was deleted while waiting", id).WithCause(err)
		case err != nil:
			return nil, err
		}

		for _, s := range states {
			if m.State == s {
				return m, nil
			}
		}

		if time.Now().After(deadline) {
			e := clierr.Timeoutf("instance %s did not reach state %s within %s (still %q)",
				id, strings.Join(states, "|"), timeout, m.State)
			e.Retryable = true
			return nil, e
		}

		select {
		case <-ctx.Done():
			return nil, clierr.Timeoutf("wait for instance %s canceled", id).WithCause(ctx.Err())
		case <-time.After(interval):
		}
		if interval < waitPollCeiling {
			interval += interval / 2
			if interval > waitPollCeiling {
				interval = waitPollCeiling
			}
		}
	}
}
