// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/prompt"
	"github.com/vigilcloud/triton-cli/internal/rbac"
)

func newRbacCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rbac",
		Short: "Manage account users, policies, and roles",
	}
	cmd.AddCommand(newRbacInfoCmd())
	cmd.AddCommand(newRbacApplyCmd())
	cmd.AddCommand(newRbacResetCmd())
	return cmd
}

func newRbacInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summarize the account's users, policies, and roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			state, err := rbac.FetchState(cmd.Context(), client)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tEMAIL\tKEYS")
			for _, u := range state.Users {
				fmt.Fprintf(w, "%s\t%s\t%d\n", u.Login, u.Email, len(state.Keys[u.Login]))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "POLICY\tRULES\tDESCRIPTION")
			for _, p := range state.Policies {
				fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, len(p.Rules), p.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tMEMBERS\tPOLICIES")
			for _, r := range state.Roles {
				fmt.Fprintf(w, "%s\t%d\t%d\n", r.Name, len(r.Members), len(r.Policies))
			}
			return w.Flush()
		},
	}
}

func newRbacApplyCmd() *cobra.Command {
	var file string
	var dryRun, yes, generate bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the account's RBAC state with a declarative document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return clierr.Usagef("--file is required")
			}
			cfg, err := rbac.LoadConfig(file)
			if err != nil {
				return err
			}
			if err := rbac.Validate(cfg); err != nil {
				return err
			}

			client, p, err := newClient()
			if err != nil {
				return err
			}
			state, err := rbac.FetchState(cmd.Context(), client)
			if err != nil {
				return err
			}
			plan := rbac.BuildPlan(cfg, state, rbac.PlanOptions{
				GenerateKeys: generate,
				ProfileName:  p.Name,
			})
			return runPlan(cmd, client, p, cfg, plan, dryRun, yes)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "RBAC document (JSON or YAML)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&generate, "generate-keys", false, "generate SSH keys and profiles for key-less users")
	return cmd
}

func newRbacResetCmd() *cobra.Command {
	var dryRun, yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every user, policy, and role on the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := newClient()
			if err != nil {
				return err
			}
			state, err := rbac.FetchState(cmd.Context(), client)
			if err != nil {
				return err
			}
			plan := rbac.ResetPlan(state)
			return runPlan(cmd, client, p, &rbac.Config{}, plan, dryRun, yes)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runPlan(cmd *cobra.Command, client rbac.Client, p *config.Profile, cfg *rbac.Config, plan *rbac.Plan, dryRun, yes bool) error {
	out := cmd.OutOrStdout()
	if plan.Empty() {
		fmt.Fprintln(out, "Nothing to do: account already matches")
		return nil
	}

	if dryRun {
		ex := planExecutor(client, out, p, true)
		return ex.Execute(cmd.Context(), cfg, plan)
	}

	for _, ch := range plan.Changes {
		fmt.Fprintf(out, "  %s\n", ch.String())
	}
	if !yes && !prompt.Confirm(cmd.InOrStdin(), out,
		fmt.Sprintf("Apply %d changes?", len(plan.Changes))) {
		return clierr.ErrUserAborted
	}

	ex := planExecutor(client, out, p, false)
	return ex.Execute(cmd.Context(), cfg, plan)
}

func planExecutor(client rbac.Client, out io.Writer, p *config.Profile, dryRun bool) *rbac.Executor {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &rbac.Executor{
		Client:     client,
		Out:        out,
		DryRun:     dryRun,
		Profile:    p,
		ConfigDir:  configDir(),
		HomeSSHDir: filepath.Join(home, ".ssh"),
	}
}
