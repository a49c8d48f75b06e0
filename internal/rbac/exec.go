// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package rbac

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/cloudapi"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

// generatedKeyBits sizes auto-provisioned sub-user keys.
const generatedKeyBits = 4096

// Executor applies a plan sequentially against CloudAPI. On the first
// failing change it stops and returns the error with the change attached;
// changes already applied stay applied.
type Executor struct {
	Client Client
	Out    io.Writer
	// DryRun reports what would happen without calling any mutation verb.
	DryRun bool

	// Profile and ConfigDir feed generate and profile changes; unused
	// plans that contain neither can leave them empty.
	Profile    *config.Profile
	ConfigDir  string
	HomeSSHDir string

	// KeyBits overrides the generated key size; for tests. Zero means
	// generatedKeyBits.
	KeyBits int
}

// Execute runs the plan in order. cfg is the in-memory desired document;
// generate changes register their fresh fingerprints into it so later
// profile changes can reference them.
func (e *Executor) Execute(ctx context.Context, cfg *Config, plan *Plan) error {
	for i := range plan.Changes {
		ch := &plan.Changes[i]
		if e.DryRun {
			fmt.Fprintf(e.Out, "Would %s\n", ch)
			continue
		}
		if err := e.apply(ctx, cfg, ch); err != nil {
			return fmt.Errorf("change %d of %d (%s): %w", i+1, len(plan.Changes), ch, err)
		}
	}
	return nil
}

func (e *Executor) apply(ctx context.Context, cfg *Config, ch *Change) error {
	switch {
	case ch.Kind == KindUser && ch.Action == ActionCreate:
		u := ch.Want.(cloudapi.User)
		if _, err := e.Client.CreateUser(ctx, &u); err != nil {
			return err
		}
		e.progress("Created user %s", ch.ID)
	case ch.Kind == KindUser && ch.Action == ActionUpdate:
		u := ch.Want.(cloudapi.User)
		if _, err := e.Client.UpdateUser(ctx, &u); err != nil {
			return err
		}
		e.progress("Updated user %s (%s)", ch.ID, strings.Join(ch.Diff, ", "))
	case ch.Kind == KindUser && ch.Action == ActionDelete:
		if err := e.Client.DeleteUser(ctx, ch.ID); err != nil {
			return err
		}
		e.progress("Deleted user %s", ch.ID)

	case ch.Kind == KindKey && ch.Action == ActionCreate:
		k := ch.Want.(cloudapi.UserKey)
		if _, err := e.Client.CreateUserKey(ctx, ch.User, &k); err != nil {
			return err
		}
		e.progress("Created key %s of user %s", ch.ID, ch.User)
	case ch.Kind == KindKey && ch.Action == ActionDelete:
		if err := e.Client.DeleteUserKey(ctx, ch.User, ch.ID); err != nil {
			return err
		}
		e.progress("Deleted key %s of user %s", ch.ID, ch.User)
	case ch.Kind == KindKey && ch.Action == ActionGenerate:
		fp, err := e.generateKey(ctx, cfg, ch.User)
		if err != nil {
			return err
		}
		e.progress("Generated key %s for user %s", fp, ch.User)

	case ch.Kind == KindPolicy && ch.Action == ActionCreate:
		p := ch.Want.(cloudapi.Policy)
		if _, err := e.Client.CreatePolicy(ctx, &p); err != nil {
			return err
		}
		e.progress("Created policy %s", ch.ID)
	case ch.Kind == KindPolicy && ch.Action == ActionUpdate:
		p := ch.Want.(cloudapi.Policy)
		if _, err := e.Client.UpdatePolicy(ctx, &p); err != nil {
			return err
		}
		e.progress("Updated policy %s (%s)", ch.ID, strings.Join(ch.Diff, ", "))
	case ch.Kind == KindPolicy && ch.Action == ActionDelete:
		if err := e.Client.DeletePolicy(ctx, ch.ID); err != nil {
			return err
		}
		e.progress("Deleted policy %s", ch.ID)

	case ch.Kind == KindRole && ch.Action == ActionCreate:
		r := ch.Want.(cloudapi.Role)
		if _, err := e.Client.CreateRole(ctx, &r); err != nil {
			return err
		}
		e.progress("Created role %s", ch.ID)
	case ch.Kind == KindRole && ch.Action == ActionUpdate:
		r := ch.Want.(cloudapi.Role)
		if _, err := e.Client.UpdateRole(ctx, &r); err != nil {
			return err
		}
		e.progress("Updated role %s (%s)", ch.ID, strings.Join(ch.Diff, ", "))
	case ch.Kind == KindRole && ch.Action == ActionDelete:
		if err := e.Client.DeleteRole(ctx, ch.ID); err != nil {
			return err
		}
		e.progress("Deleted role %s", ch.ID)

	case ch.Kind == KindProfile && ch.Action == ActionCreate:
		if err := e.createProfile(cfg, ch); err != nil {
			return err
		}
		e.progress("Created profile %s", ch.ID)

	default:
		return clierr.Internalf("unhandled change %s %s", ch.Action, ch.Kind)
	}
	return nil
}

func (e *Executor) progress(format string, args ...any) {
	fmt.Fprintf(e.Out, format+"\n", args...)
}

// generateKey provisions a fresh RSA key for a sub-user: private and
// public halves under the home SSH directory, the public key uploaded to
// CloudAPI and mirrored under rbac-user-keys/, and the fingerprint
// registered in the in-memory document.
func (e *Executor) generateKey(ctx context.Context, cfg *Config, login string) (string, error) {
	if e.Profile == nil || e.HomeSSHDir == "" || e.ConfigDir == "" {
		return "", clierr.Internalf("key generation needs a profile and directories")
	}
	bits := e.KeyBits
	if bits == 0 {
		bits = generatedKeyBits
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", clierr.Internalf("could not generate key for user %s", login).WithCause(err)
	}
	pub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		return "", clierr.Internalf("could not derive public key for user %s", login).WithCause(err)
	}
	fp := keyring.Fingerprint(pub)
	keyName := fmt.Sprintf("%s-user-%s", e.Profile.Name, login)
	pubLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))) + " " + keyName + "\n"

	privPath := filepath.Join(e.HomeSSHDir, keyName+".id_rsa")
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	if err := os.MkdirAll(e.HomeSSHDir, 0o700); err != nil {
		return "", clierr.Setupf("could not create %s", e.HomeSSHDir).WithCause(err)
	}
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return "", clierr.Setupf("could not write %s", privPath).WithCause(err)
	}
	if err := os.WriteFile(privPath+".pub", []byte(pubLine), 0o644); err != nil {
		return "", clierr.Setupf("could not write %s", privPath+".pub").WithCause(err)
	}

	key := cloudapi.UserKey{Name: keyName, Key: strings.TrimSpace(pubLine)}
	if _, err := e.Client.CreateUserKey(ctx, login, &key); err != nil {
		return "", err
	}

	mirror := filepath.Join(e.ConfigDir, "rbac-user-keys")
	if err := os.MkdirAll(mirror, 0o700); err != nil {
		return "", clierr.Setupf("could not create %s", mirror).WithCause(err)
	}
	if err := os.WriteFile(filepath.Join(mirror, login+".pub"), []byte(pubLine), 0o644); err != nil {
		return "", clierr.Setupf("could not mirror public key for user %s", login).WithCause(err)
	}

	for i := range cfg.Users {
		if cfg.Users[i].Login == login {
			cfg.Users[i].Keys.Inline = append(cfg.Users[i].Keys.Inline, cloudapi.UserKey{
				Name:        keyName,
				Fingerprint: fp,
				Key:         strings.TrimSpace(pubLine),
			})
			break
		}
	}
	return fp, nil
}

// createProfile persists a per-sub-user profile pointing at the key the
// matching generate change registered.
func (e *Executor) createProfile(cfg *Config, ch *Change) error {
	if e.Profile == nil || e.ConfigDir == "" {
		return clierr.Internalf("profile creation needs a profile and config dir")
	}
	var fp string
	for _, u := range cfg.Users {
		if u.Login == ch.User && len(u.Keys.Inline) > 0 {
			fp = u.Keys.Inline[len(u.Keys.Inline)-1].Fingerprint
		}
	}
	if fp == "" {
		return clierr.Internalf("no key registered for user %s; cannot create profile", ch.User)
	}

	p := &config.Profile{
		Name:     ch.ID,
		URL:      e.Profile.URL,
		Account:  e.Profile.Account,
		User:     ch.User,
		KeyID:    fp,
		Insecure: e.Profile.Insecure,
	}
	if err := config.ValidateProfile(p); err != nil {
		return err
	}
	return config.SaveProfile(e.ConfigDir, p)
}
