// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package cloudapi is the typed HTTPS transport for the CloudAPI REST
// surface. Every request is signed with the profile's SSH key; structured
// server errors are surfaced as clierr values with their field-level
// details preserved.
package cloudapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/config"
	"github.com/vigilcloud/triton-cli/internal/httpsig"
	"github.com/vigilcloud/triton-cli/internal/keyring"
	"github.com/vigilcloud/triton-cli/internal/logging"
)

// defaultTimeout bounds each HTTP round-trip (connect plus read). Expired
// deadlines surface as retryable Timeout errors; retrying is the caller's
// decision.
const defaultTimeout = 2 * time.Minute

// joyentPublicCloudRe recognizes the Joyent public cloud endpoints, whose
// authentication failures get a portal hint.
var joyentPublicCloudRe = regexp.MustCompile(`^https://[a-z0-9-]+\.api\.joyent(cloud)?\.com/?$`)

// Client is a signed HTTPS client bound to one profile.
type Client struct {
	baseURL  string
	account  string
	user     string
	keyID    string
	insecure bool

	ring *keyring.Ring
	http *http.Client

	mu sync.Mutex
	kp keyring.KeyPair // resolved on first use, cached for the invocation
}

// NewClient builds a client for a profile. The key pair is resolved lazily
// on the first signed request.
func NewClient(p *config.Profile, ring *keyring.Ring) (*Client, error) {
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, clierr.Configf("profile %q has an unusable url %q", p.Name, p.URL)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 30 * time.Second,
	}
	if p.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:  strings.TrimRight(p.URL, "/"),
		account:  p.Account,
		user:     p.User,
		keyID:    p.KeyID,
		insecure: p.Insecure,
		ring:     ring,
		http:     &http.Client{Transport: transport, Timeout: defaultTimeout},
	}, nil
}

// Account returns the login the client acts for.
func (c *Client) Account() string { return c.account }

// URL returns the CloudAPI base URL.
func (c *Client) URL() string { return c.baseURL }

// Insecure reports whether TLS verification is disabled.
func (c *Client) Insecure() bool { return c.insecure }

// SigningKeyPair resolves, caches, and returns the profile's key pair. A
// locked pair is returned as-is so the caller can run the unlock flow.
func (c *Client) SigningKeyPair() (keyring.KeyPair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kp != nil {
		return c.kp, nil
	}
	kp, err := c.ring.FindSigningKeyPair(c.keyID)
	if err != nil {
		return nil, err
	}
	c.kp = kp
	return kp, nil
}

// errorEnvelope is the CloudAPI error body shape.
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Field   string `json:"field"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// do runs one signed request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	kp, err := c.SigningKeyPair()
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return clierr.Internalf("could not encode request body").WithCause(err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return clierr.Internalf("could not build request for %s", path).WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := httpsig.SignRequest(req, kp, c.account, c.user); err != nil {
		return err
	}

	logging.Debugf("cloudapi %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return c.mapTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return clierr.Genericf("could not read response from %s", path).WithCause(err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return clierr.Genericf("could not decode response from %s", path).WithCause(err)
		}
		return nil
	}
	return c.mapStatusError(resp.StatusCode, path, respBody)
}

// mapTransportError types network-level failures: self-signed TLS peers and
// expired deadlines get dedicated treatment.
func (c *Client) mapTransportError(err error) error {
	var unknownAuthority x509.UnknownAuthorityError
	var certInvalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	if errors.As(err, &unknownAuthority) || errors.As(err, &certInvalid) || errors.As(err, &hostname) {
		return clierr.SelfSignedCert(c.baseURL, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		e := clierr.Timeoutf("request to %s timed out", c.baseURL).WithCause(err)
		e.Retryable = true
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e := clierr.Timeoutf("request to %s timed out", c.baseURL).WithCause(err)
		e.Retryable = true
		return e
	}
	return clierr.Genericf("could not reach CloudAPI at %s", c.baseURL).WithCause(err)
}

// mapStatusError types non-2xx responses, folding the body's field-level
// errors into the message as "field: code: message" triples.
func (c *Client) mapStatusError(status int, path string, body []byte) error {
	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)

	msg := envelope.Message
	if msg == "" {
		msg = fmt.Sprintf("CloudAPI responded %d to %s", status, path)
	}
	if len(envelope.Errors) > 0 {
		details := make([]string, len(envelope.Errors))
		for i, fieldErr := range envelope.Errors {
			details[i] = fmt.Sprintf("%s: %s: %s", fieldErr.Field, fieldErr.Code, fieldErr.Message)
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(details, "; "))
	}

	var e *clierr.Error
	switch status {
	case http.StatusUnauthorized:
		hint := "check the profile's account, user and keyId settings"
		if joyentPublicCloudRe.MatchString(c.baseURL) || joyentPublicCloudRe.MatchString(c.baseURL+"/") {
			hint = "visit https://my.joyent.com to verify the account and its SSH keys"
		}
		e = clierr.New(clierr.CodeInvalidCredentials, clierr.ExitFailure,
			"invalid credentials for %s: %s (%s)", c.baseURL, msg, hint)
	case http.StatusNotFound, http.StatusGone:
		e = clierr.NotFoundf("%s", msg)
	case http.StatusServiceUnavailable:
		e = clierr.New(clierr.CodeServiceUnavailable, clierr.ExitFailure,
			"CloudAPI at %s is down for maintenance: %s", c.baseURL, msg)
	default:
		e = clierr.Genericf("%s", msg)
	}
	e.StatusCode = status
	if envelope.Code != "" && e.Code == clierr.CodeGeneric {
		e.Code = envelope.Code
	}
	return e
}
