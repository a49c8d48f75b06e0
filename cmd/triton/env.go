// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
)

func newEnvCmd() *cobra.Command {
	var docker, triton bool
	cmd := &cobra.Command{
		Use:   "env [PROFILE]",
		Short: "Print shell commands that configure the environment for a profile",
		Long: `Print shell commands that configure the environment for a profile.

With no flags both the TRITON_* variables and, when docker-setup has been
run for the profile, the DOCKER_* variables are emitted. Pipe the output
through eval to apply it:

    eval "$(triton env)"`,
		Args: cobra.MaximumNArgs(1),
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

			all := !docker && !triton
			out := cmd.OutOrStdout()

			if triton || all {
				env := map[string]any{
					"TRITON_PROFILE": p.Name,
					"TRITON_URL":     p.URL,
					"TRITON_ACCOUNT": p.Account,
					"TRITON_KEY_ID":  p.KeyID,
				}
				if p.User != "" {
					env["TRITON_USER"] = p.User
				} else {
					env["TRITON_USER"] = nil
				}
				if p.Insecure {
					env["TRITON_TLS_INSECURE"] = "1"
				} else {
					env["TRITON_TLS_INSECURE"] = nil
				}
				fmt.Fprint(out, renderEnvExports(env))
			}

			if docker || all {
				env, err := dockerEnv(configDir(), p)
				if err != nil {
					if docker {
						return err
					}
				} else {
					fmt.Fprint(out, renderEnvExports(env))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&docker, "docker", "d", false, "emit only the DOCKER_* variables")
	cmd.Flags().BoolVarP(&triton, "triton", "t", false, "emit only the TRITON_* variables")
	return cmd
}

// dockerEnv loads the environment recorded by docker-setup for the profile.
func dockerEnv(configDir string, p *config.Profile) (map[string]any, error) {
	path := filepath.Join(configDir, "docker", config.ProfileSlug(p), "setup.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, clierr.Setupf(`no Docker setup for profile %q: run "triton profile docker-setup" first`, p.Name)
		}
		return nil, err
	}
	var doc struct {
		Env map[string]any `json:"env"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, clierr.Setupf("%s is corrupt", path).WithCause(err)
	}
	return doc.Env, nil
}

// renderEnvExports turns an environment map into eval-able shell lines.
// A nil value unsets the variable instead of exporting it.
func renderEnvExports(env map[string]any) string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		switch v := env[name].(type) {
		case nil:
			fmt.Fprintf(&b, "unset %s\n", name)
		default:
			fmt.Fprintf(&b, "export %s=%s\n", name, shellQuote(fmt.Sprint(v)))
		}
	}
	return b.String()
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$`!*?[](){};&|<>~#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
