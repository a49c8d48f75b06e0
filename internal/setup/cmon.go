// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

package setup

import (
	"context"
	"os"
	"path/filepath"

	"github.com/vigilcloud/triton-cli/internal/certsign"
	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

// CMONOptions tune a CMON setup run.
type CMONOptions struct {
	LifetimeDays int
	// OutDir receives the PEM files; empty means the working directory.
	OutDir string
}

// CMONResult names the files a successful run wrote.
type CMONResult struct {
	KeyPath  string
	CertPath string
	Endpoint string
}

// CMON issues a client certificate for the CMON metrics endpoint and
// writes <account>-key.pem / <account>-cert.pem into the output directory.
func CMON(ctx context.Context, svc ServiceLister, kp keyring.KeyPair, prof *config.Profile, opts CMONOptions) (*CMONResult, error) {
	services, err := svc.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := services["cmon"]
	if endpoint == "" {
		return nil, clierr.Setupf("datacenter %s does not offer a CMON service", prof.URL)
	}

	account := prof.Account
	if prof.ActAsAccount != "" {
		account = prof.ActAsAccount
	}
	issued, err := certsign.Issue(kp, certsign.Options{
		Subject:      account,
		LifetimeDays: opts.LifetimeDays,
		Flavor:       certsign.FlavorCMON,
	})
	if err != nil {
		return nil, err
	}

	outDir := opts.OutDir
	if outDir == "" {
		if outDir, err = os.Getwd(); err != nil {
			return nil, clierr.Setupf("could not determine working directory").WithCause(err)
		}
	}
	keyPath := filepath.Join(outDir, account+"-key.pem")
	certPath := filepath.Join(outDir, account+"-cert.pem")
	if err := os.WriteFile(keyPath, issued.KeyPEM, 0o600); err != nil {
		return nil, clierr.Setupf("could not write %s", keyPath).WithCause(err)
	}
	if err := os.WriteFile(certPath, issued.CertPEM, 0o644); err != nil {
		return nil, clierr.Setupf("could not write %s", certPath).WithCause(err)
	}
	return &CMONResult{KeyPath: keyPath, CertPath: certPath, Endpoint: endpoint}, nil
}
