// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package setup provisions the TLS side-channels CloudAPI fronts: the
// Docker endpoint and the CMON metrics endpoint. Both flows mint a client
// certificate signed by the account SSH key and persist it where the
// respective client expects it.
package setup

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vigilcloud/triton-cli/internal/certsign"
	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/keyring"
	"github.com/vigilcloud/triton-cli/internal/logging"
)

// ServiceLister is the one CloudAPI call service discovery needs.
type ServiceLister interface {
	ListServices(ctx context.Context) (map[string]string, error)
}

// DockerOptions tune a Docker setup run.
type DockerOptions struct {
	LifetimeDays int
	// Implicit marks runs triggered as a side effect of another command;
	// a datacenter without Docker is then a notice, not an error.
	Implicit bool
	// HTTPClient overrides the client used to download the server CA;
	// for tests.
	HTTPClient *http.Client
	// DockerVersion overrides client version detection; for tests.
	DockerVersion string
}

// DockerResult reports what a successful setup produced.
type DockerResult struct {
	// Skipped is set when the datacenter has no Docker service and the
	// run was implicit.
	Skipped bool
	Dir     string
	Host    string
	Env     map[string]any
}

// envFile is the on-disk shape of setup.json.
type envFile struct {
	Profile string         `json:"profile"`
	Time    string         `json:"time"`
	Env     map[string]any `json:"env"`
}

// Docker provisions Docker TLS material for a profile: discovers the
// endpoint, issues a client certificate signed by the account key, fetches
// the server CA, and persists everything under
// <configDir>/docker/<profile-slug>/.
func Docker(ctx context.Context, svc ServiceLister, kp keyring.KeyPair, prof *config.Profile, configDir string, opts DockerOptions) (*DockerResult, error) {
	services, err := svc.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	endpoint, ok := services["docker"]
	if !ok || endpoint == "" {
		if opts.Implicit {
			logging.Infof("datacenter %s does not offer Docker; skipping Docker setup", prof.URL)
			return &DockerResult{Skipped: true}, nil
		}
		return nil, clierr.Setupf("datacenter %s does not offer a Docker service", prof.URL)
	}

	subject := prof.Account
	if prof.ActAsAccount != "" {
		subject = prof.ActAsAccount
	}
	issued, err := certsign.Issue(kp, certsign.Options{
		Subject:      subject,
		LifetimeDays: opts.LifetimeDays,
		Flavor:       certsign.FlavorDocker,
	})
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(configDir, "docker", config.ProfileSlug(prof))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, clierr.Setupf("could not create %s", dir).WithCause(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "key.pem"), issued.KeyPEM, 0o600); err != nil {
		return nil, clierr.Setupf("could not write Docker key").WithCause(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cert.pem"), issued.CertPEM, 0o644); err != nil {
		return nil, clierr.Setupf("could not write Docker certificate").WithCause(err)
	}

	caPEM, err := fetchCA(ctx, endpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "ca.pem"), caPEM, 0o644); err != nil {
		return nil, clierr.Setupf("could not write Docker CA").WithCause(err)
	}

	env := map[string]any{
		"DOCKER_CERT_PATH": dir,
		"DOCKER_HOST":      endpoint,
	}
	if prof.Insecure {
		// null means "unset in the shell".
		env["DOCKER_TLS_VERIFY"] = nil
	} else {
		env["DOCKER_TLS_VERIFY"] = "1"
	}
	env[timeoutVariable(opts.DockerVersion)] = "300"

	desc, err := json.MarshalIndent(envFile{
		Profile: prof.Name,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Env:     env,
	}, "", "    ")
	if err != nil {
		return nil, clierr.Internalf("could not encode setup.json").WithCause(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "setup.json"), append(desc, '\n'), 0o600); err != nil {
		return nil, clierr.Setupf("could not write setup.json").WithCause(err)
	}

	return &DockerResult{Dir: dir, Host: endpoint, Env: env}, nil
}

// fetchCA downloads /ca.pem from the Docker host. The server's cert is
// signed by the very CA being fetched, so verification is off for this one
// request.
func fetchCA(ctx context.Context, endpoint string, client *http.Client) ([]byte, error) {
	caURL, err := dockerCAURL(endpoint)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	req, err := http.NewRequestWithContext(ctx, "GET", caURL, nil)
	if err != nil {
		return nil, clierr.Setupf("bad Docker CA URL %s", caURL).WithCause(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, clierr.Setupf("could not fetch Docker CA from %s", caURL).WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, clierr.Setupf("Docker CA fetch from %s returned %s", caURL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, clierr.Setupf("could not read Docker CA from %s", caURL).WithCause(err)
	}
	return body, nil
}

// dockerCAURL rewrites a tcp://host:port Docker endpoint into the https
// URL its CA is served from.
func dockerCAURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", clierr.Setupf("unparseable Docker endpoint %q", endpoint).WithCause(err)
	}
	host := u.Host
	if host == "" {
		host = u.Path // bare host:port
	}
	if host == "" {
		return "", clierr.Setupf("Docker endpoint %q has no host", endpoint)
	}
	return fmt.Sprintf("https://%s/ca.pem", host), nil
}

// timeoutVariable picks the timeout variable the installed Docker client
// honors. Old clients only read the Compose-era name.
func timeoutVariable(version string) string {
	if version == "" {
		version = detectDockerVersion()
	}
	if major, err := strconv.Atoi(strings.SplitN(version, ".", 2)[0]); err == nil && major < 17 {
		return "COMPOSE_HTTP_TIMEOUT"
	}
	return "DOCKER_CLIENT_TIMEOUT"
}

func detectDockerVersion() string {
	out, err := exec.Command("docker", "--version").Output()
	if err != nil {
		return ""
	}
	// "Docker version 27.3.1, build ..."
	fields := strings.Fields(string(out))
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], ",")
		}
	}
	return ""
}
