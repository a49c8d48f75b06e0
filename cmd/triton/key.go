// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"keys"},
		Short:   "Inspect locally available SSH keys",
	}
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyFingerprintCmd())
	return cmd
}

func newKeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List SSH keys from the agent and ~/.ssh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := newRing().List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tFINGERPRINT\tLOCKED\tCOMMENT")
			for _, kp := range pairs {
				locked := ""
				if kp.Locked() {
					locked = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					kp.Source(), kp.Fingerprint(), locked, kp.Comment())
			}
			return w.Flush()
		},
	}
}

func newKeyFingerprintCmd() *cobra.Command {
	var copyToClipboard bool
	cmd := &cobra.Command{
		Use:   "fingerprint [FINGERPRINT-OR-PREFIX]",
		Short: "Print the fingerprint of the profile's signing key, or resolve one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fp string
			if len(args) == 1 {
				pairs, err := newRing().Find(args[0])
				if err != nil {
					return err
				}
				if len(pairs) == 0 {
					return clierr.NotFoundf("no key matches %q", args[0])
				}
				fp = pairs[0].Fingerprint()
			} else {
				p, _, err := resolveProfile()
				if err != nil {
					return err
				}
				norm, err := keyring.NormalizeFingerprint(p.KeyID)
				if err != nil {
					return err
				}
				fp = norm
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			if copyToClipboard {
				if err := clipboard.WriteAll(fp); err != nil {
					return clierr.Genericf("could not copy to clipboard").WithCause(err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&copyToClipboard, "copy", "c", false, "also copy the fingerprint to the clipboard")
	return cmd
}
