// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go wires the triton command tree together using Cobra: global
// flags, profile resolution shared by every subcommand, and the single
// place where typed errors become exit statuses.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigilcloud/triton-cli/internal/cache"
	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/cloudapi"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/keyring"
	"github.com/vigilcloud/triton-cli/internal/logging"
	"github.com/vigilcloud/triton-cli/internal/prompt"
)

var version = "dev" // set by the linker

var (
	flagConfigDir string
	flagProfile   string
	flagInsecure  bool
	flagVerbose   bool
)

// main is the entry point of the application.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, clierr.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, "triton: aborted")
			os.Exit(clierr.ExitStatus(err))
		}
		fmt.Fprintf(os.Stderr, "triton: error (%s): %s\n", clierr.CodeOf(err), err)
		os.Exit(clierr.ExitStatus(err))
	}
}

// newRootCmd creates and configures a new root cobra command. Fresh
// instances keep tests isolated from each other.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triton",
		Short: "triton manages Triton CloudAPI resources from the shell.",
		Long: `triton is a client for datacenters running Triton CloudAPI.
It keeps named connection profiles, signs every request with an SSH key
(from the agent or from disk), reconciles declarative RBAC documents
against the live account, and provisions Docker and CMON TLS credentials
backed by the account key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetDebug(flagVerbose)
		},
	}

	cmd.AddCommand(newProfileCmd())
	cmd.AddCommand(newRbacCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newEnvCmd())
	cmd.AddCommand(newInstanceCmd())
	cmd.AddCommand(newPingCmd())

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "",
		"config directory (default is $TRITON_CONFIG_DIR or ~/.triton)")
	cmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", "",
		"profile name (overrides the current profile and TRITON_PROFILE)")
	cmd.PersistentFlags().BoolVarP(&flagInsecure, "insecure", "i", false,
		"skip TLS certificate verification")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")

	viper.BindPFlag("profile", cmd.PersistentFlags().Lookup("profile"))
	viper.BindEnv("profile", "TRITON_PROFILE")

	return cmd
}

// configDir resolves the config directory for this invocation.
func configDir() string {
	if flagConfigDir != "" {
		return flagConfigDir
	}
	return config.DefaultDir()
}

// resolveProfile loads the profile this invocation acts on: the --profile
// flag, then TRITON_PROFILE, then the configured current profile.
func resolveProfile() (*config.Profile, *config.Config, error) {
	dir := configDir()
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	name := flagProfile
	if name == "" {
		name = viper.GetString("profile")
	}
	if name == "" {
		name = cfg.CurrentProfileName()
	}
	p, err := config.LoadProfile(dir, name)
	if err != nil {
		return nil, nil, err
	}
	if flagInsecure {
		p.Insecure = true
	}
	return p, cfg, nil
}

// newRing builds the key ring over the user's home SSH directory and the
// local agent.
func newRing() *keyring.Ring {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return keyring.New(keyring.Options{HomeSSHDir: filepath.Join(home, ".ssh")})
}

// newClient builds an authenticated CloudAPI client for the resolved
// profile.
func newClient() (*cloudapi.Client, *config.Profile, error) {
	p, _, err := resolveProfile()
	if err != nil {
		return nil, nil, err
	}
	c, err := cloudapi.NewClient(p, newRing())
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

// acquireSigningKey resolves the profile's signing key and unlocks it if
// it is passphrase-protected.
func acquireSigningKey(c *cloudapi.Client) (keyring.KeyPair, error) {
	kp, err := c.SigningKeyPair()
	if err != nil {
		return nil, err
	}
	if err := prompt.UnlockKeyPair(kp); err != nil {
		return nil, err
	}
	return kp, nil
}

// openCache opens the name-to-id cache; failures degrade to no cache.
func openCache(cfg *config.Config) *cache.Cache {
	ttl := time.Duration(cfg.GetInt("cacheTtlSeconds")) * time.Second
	store, err := cache.Open(cfg.ConfigDir(), ttl)
	if err != nil {
		logging.Debugf("name cache unavailable: %v", err)
		return nil
	}
	return store
}
