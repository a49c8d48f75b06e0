// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/prompt"
	"github.com/vigilcloud/triton-cli/internal/setup"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage connection profiles",
	}
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileGetCmd())
	cmd.AddCommand(newProfileSetCurrentCmd())
	cmd.AddCommand(newProfileCreateCmd())
	cmd.AddCommand(newProfileEditCmd())
	cmd.AddCommand(newProfileDeleteCmd())
	cmd.AddCommand(newProfileExportCmd())
	cmd.AddCommand(newProfileImportCmd())
	cmd.AddCommand(newDockerSetupCmd())
	cmd.AddCommand(newCmonSetupCmd())
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := configDir()
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			profiles, err := config.LoadAllProfiles(dir)
			if err != nil {
				return err
			}
			if env, err := config.EnvProfile(os.Getenv); err == nil {
				profiles = append([]*config.Profile{env}, profiles...)
			}

			current := cfg.CurrentProfileName()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCURR\tACCOUNT\tUSER\tURL")
			for _, p := range profiles {
				marker := ""
				if p.Name == current {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, marker, p.Account, p.User, p.URL)
			}
			return w.Flush()
		},
	}
}

func newProfileGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [NAME]",
		Short: "Print a profile as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *config.Profile
			if len(args) == 1 {
				var err error
				if p, err = config.LoadProfile(configDir(), args[0]); err != nil {
					return err
				}
			} else {
				var err error
				if p, _, err = resolveProfile(); err != nil {
					return err
				}
			}
			out, err := json.MarshalIndent(p, "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newProfileSetCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-current NAME",
		Short: `Set the current profile ("-" switches back to the previous one)`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := config.SetCurrentProfile(configDir(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %q as current profile\n", name)
			return nil
		},
	}
}

func newProfileCreateCmd() *cobra.Command {
	var fromFile string
	var setCurrent bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile, interactively or from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p config.Profile
			if fromFile != "" {
				raw, err := os.ReadFile(fromFile)
				if err != nil {
					return clierr.Configf("could not read %s", fromFile).WithCause(err)
				}
				if err := json.Unmarshal(raw, &p); err != nil {
					return clierr.Configf("%s is not a valid profile", fromFile).WithCause(err)
				}
			} else {
				vals, err := prompt.RunForm("New profile", profileFormFields())
				if err != nil {
					return err
				}
				p = config.Profile{
					Name:     vals["name"],
					URL:      vals["url"],
					Account:  vals["account"],
					User:     vals["user"],
					KeyID:    vals["keyId"],
					Insecure: strings.EqualFold(vals["insecure"], "true"),
				}
			}
			if err := config.ValidateProfile(&p); err != nil {
				return err
			}
			if err := config.SaveProfile(configDir(), &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %q\n", p.Name)
			if setCurrent {
				if _, err := config.SetCurrentProfile(configDir(), p.Name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %q as current profile\n", p.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "create from a JSON profile file instead of prompting")
	cmd.Flags().BoolVar(&setCurrent, "set-current", false, "make the new profile current")
	return cmd
}

func profileFormFields() []prompt.Field {
	required := func(what string) func(string) error {
		return func(v string) error {
			if v == "" {
				return fmt.Errorf("%s is required", what)
			}
			return nil
		}
	}
	return []prompt.Field{
		{Key: "name", Prompt: "Name:", Placeholder: "us-east-1", Validate: required("name")},
		{Key: "url", Prompt: "CloudAPI URL:", Placeholder: "https://us-east-1.api.example.com", Validate: required("url")},
		{Key: "account", Prompt: "Account:", Placeholder: "alice", Validate: required("account")},
		{Key: "user", Prompt: "RBAC user (optional):"},
		{Key: "keyId", Prompt: "SSH key fingerprint:", Placeholder: "md5:aa:bb:...", Validate: required("keyId")},
		{Key: "insecure", Prompt: "Skip TLS verification:", Default: "false"},
	}
}

func newProfileEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit NAME",
		Short: "Edit a profile in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == config.EnvProfileName {
				return clierr.Usagef("the %q profile is synthetic and cannot be edited", config.EnvProfileName)
			}
			dir := configDir()
			p, err := config.LoadProfile(dir, args[0])
			if err != nil {
				return err
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			raw, err := json.MarshalIndent(p, "", "    ")
			if err != nil {
				return err
			}
			tmp, err := os.CreateTemp("", "triton-profile-*.json")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())
			if _, err := tmp.Write(append(raw, '\n')); err != nil {
				tmp.Close()
				return err
			}
			tmp.Close()

			edit := exec.Command(editor, tmp.Name())
			edit.Stdin, edit.Stdout, edit.Stderr = os.Stdin, os.Stdout, os.Stderr
			if err := edit.Run(); err != nil {
				return clierr.Genericf("editor %s failed", editor).WithCause(err)
			}

			edited, err := os.ReadFile(tmp.Name())
			if err != nil {
				return err
			}
			var next config.Profile
			if err := json.Unmarshal(edited, &next); err != nil {
				return clierr.Configf("edited profile is not valid JSON").WithCause(err)
			}
			next.Name = p.Name // the file name stays authoritative
			if err := config.ValidateProfile(&next); err != nil {
				return err
			}
			if err := config.SaveProfile(dir, &next); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %q\n", next.Name)
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !prompt.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Delete profile %q?", args[0])) {
				return clierr.ErrUserAborted
			}
			if err := config.DeleteProfile(configDir(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newProfileExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export NAME",
		Short: "Export a profile and its Docker certs as a compressed bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := config.ExportProfile(configDir(), args[0], out); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported profile %q to %s\n", args[0], outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the bundle to a file instead of stdout")
	return cmd
}

func newProfileImportCmd() *cobra.Command {
	var inPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a profile bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if inPath != "" {
				f, err := os.Open(inPath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			p, err := config.ImportProfile(configDir(), in, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported profile %q\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inPath, "file", "f", "", "read the bundle from a file instead of stdin")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing profile of the same name")
	return cmd
}

func newDockerSetupCmd() *cobra.Command {
	var lifetime int
	cmd := &cobra.Command{
		Use:   "docker-setup",
		Short: "Provision Docker TLS credentials for the current profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := newClient()
			if err != nil {
				return err
			}
			kp, err := acquireSigningKey(client)
			if err != nil {
				return err
			}
			res, err := setup.Docker(cmd.Context(), client, kp, p, configDir(), setup.DockerOptions{
				LifetimeDays: lifetime,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote Docker credentials to %s\n\n", res.Dir)
			fmt.Fprintln(out, "Run the following to configure your shell:")
			fmt.Fprintln(out)
			fmt.Fprint(out, renderEnvExports(res.Env))
			return nil
		},
	}
	cmd.Flags().IntVar(&lifetime, "lifetime", 0, "certificate lifetime in days (default 3650)")
	return cmd
}

func newCmonSetupCmd() *cobra.Command {
	var lifetime int
	cmd := &cobra.Command{
		Use:   "cmon-setup",
		Short: "Provision CMON TLS credentials in the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := newClient()
			if err != nil {
				return err
			}
			kp, err := acquireSigningKey(client)
			if err != nil {
				return err
			}
			res, err := setup.CMON(cmd.Context(), client, kp, p, setup.CMONOptions{
				LifetimeDays: lifetime,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s and %s\n", res.KeyPath, res.CertPath)
			fmt.Fprintf(out, "CMON endpoint: %s\n", res.Endpoint)
			return nil
		},
	}
	cmd.Flags().IntVar(&lifetime, "lifetime", 0, "certificate lifetime in days (default 3650)")
	return cmd
}
