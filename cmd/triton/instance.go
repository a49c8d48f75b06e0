// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newInstanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instance",
		Aliases: []string{"instances", "inst"},
		Short:   "Inspect compute instances",
	}
	cmd.AddCommand(newInstanceListCmd())
	cmd.AddCommand(newInstanceGetCmd())
	cmd.AddCommand(newInstanceWaitCmd())
	return cmd
}

func newInstanceListCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			machines, err := client.ListMachines(cmd.Context(), name)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "SHORTID\tNAME\tSTATE\tBRAND\tPACKAGE")
			for _, m := range machines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					shortID(m.ID), m.Name, m.State, m.Brand, m.Package)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "filter by exact instance name")
	return cmd
}

func newInstanceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get INSTANCE",
		Short: "Get an instance by name, short id, or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			_, cfg, err := resolveProfile()
			if err != nil {
				return err
			}
			store := openCache(cfg)
			if store != nil {
				defer store.Close()
			}
			id, err := client.ResolveMachine(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			m, err := client.GetMachine(cmd.Context(), id)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(m, "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newInstanceWaitCmd() *cobra.Command {
	var states []string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait INSTANCE",
		Short: "Block until an instance reaches one of the given states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			_, cfg, err := resolveProfile()
			if err != nil {
				return err
			}
			store := openCache(cfg)
			if store != nil {
				defer store.Close()
			}
			id, err := client.ResolveMachine(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			m, err := client.WaitForMachineStates(cmd.Context(), id, states, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Instance %s (%s) is %s\n", m.Name, shortID(m.ID), m.State)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&states, "states", []string{"running"}, "states to wait for")
	cmd.Flags().DurationVar(&timeout, "timeout", 120*time.Second, "give up after this long")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
