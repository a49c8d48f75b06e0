// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package httpsig builds the HTTP-Signature Authorization headers CloudAPI
// authenticates with. The signing string is the literal value of the Date
// header; the signing key is an SSH key, local or agent-backed.
package httpsig

import (
	"crypto/rand"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

// probePayload is the constant signed once per request to learn which
// algorithm an agent actually uses. Agents report the algorithm only in a
// signature result; there is no query for it, so the probe is a required
// handshake, not an optimization.
const probePayload = "triton-cli-algorithm-probe"

// KeyID renders the Authorization keyId path for an account, or for a
// sub-user when user is non-empty.
func KeyID(account, user, fingerprint string) string {
	if user != "" {
		return fmt.Sprintf("/%s/users/%s/keys/%s", account, user, fingerprint)
	}
	return fmt.Sprintf("/%s/keys/%s", account, fingerprint)
}

// SignRequest signs req in place: it sets Date if absent and attaches the
// Authorization header. Signing is serial per key pair; callers must not
// share a request across goroutines.
func SignRequest(req *http.Request, kp keyring.KeyPair, account, user string) error {
	if kp.Locked() {
		return clierr.Signingf("key %s is locked; unlock it first", kp.Fingerprint())
	}
	signer, err := kp.Signer()
	if err != nil {
		return err
	}

	date := req.Header.Get("Date")
	if date == "" {
		date = time.Now().UTC().Format(http.TimeFormat)
		req.Header.Set("Date", date)
	}

	sig, err := Sign(signer, []byte(date))
	if err != nil {
		return clierr.Signingf("could not sign request with key %s", kp.Fingerprint()).WithCause(err)
	}
	algo, err := AlgorithmName(sig.Format)
	if err != nil {
		return clierr.Signingf("key %s produced an unusable signature", kp.Fingerprint()).WithCause(err)
	}
	raw, err := RawSignature(sig)
	if err != nil {
		return clierr.Signingf("key %s produced an unusable signature", kp.Fingerprint()).WithCause(err)
	}

	req.Header.Set("Authorization", fmt.Sprintf(
		`Signature keyId=%q,algorithm=%q,headers="date",signature=%q`,
		KeyID(account, user, kp.Fingerprint()), algo,
		base64.StdEncoding.EncodeToString(raw)))
	return nil
}

// Sign signs data, negotiating the strongest algorithm the signer supports.
// RSA signers are asked for rsa-sha2-256 first; signers that only speak
// SHA-1 (old agents) fall back transparently, and the caller learns the
// outcome from the signature's Format field.
func Sign(signer ssh.Signer, data []byte) (*ssh.Signature, error) {
	if signer.PublicKey().Type() == ssh.KeyAlgoRSA {
		if as, ok := signer.(ssh.AlgorithmSigner); ok {
			// The probe doubles as negotiation: a failure here means the
			// backend cannot do SHA-2 and the plain path is authoritative.
			if _, err := as.SignWithAlgorithm(rand.Reader, []byte(probePayload), ssh.KeyAlgoRSASHA256); err == nil {
				return as.SignWithAlgorithm(rand.Reader, data, ssh.KeyAlgoRSASHA256)
			}
		}
	}
	return signer.Sign(rand.Reader, data)
}

// AlgorithmName maps an SSH signature format to the HTTP-Signature
// algorithm string CloudAPI expects.
func AlgorithmName(sshFormat string) (string, error) {
	switch sshFormat {
	case ssh.KeyAlgoRSA:
		return "rsa-sha1", nil
	case ssh.KeyAlgoRSASHA256:
		return "rsa-sha256", nil
	case ssh.KeyAlgoRSASHA512:
		return "rsa-sha512", nil
	case ssh.KeyAlgoECDSA256:
		return "ecdsa-sha256", nil
	case ssh.KeyAlgoECDSA384:
		return "ecdsa-sha384", nil
	case ssh.KeyAlgoECDSA521:
		return "ecdsa-sha512", nil
	case ssh.KeyAlgoED25519:
		return "ed25519-sha512", nil
	}
	return "", fmt.Errorf("unsupported signature format %q", sshFormat)
}

// sshECDSASig is the wire form of an SSH ECDSA signature blob.
type sshECDSASig struct {
	R, S *big.Int
}

// RawSignature converts an SSH signature into the raw algorithm-native
// bytes HTTP-Signature and X.509 want: PKCS#1 v1.5 for RSA, ASN.1 DER for
// ECDSA, and the plain 64 bytes for Ed25519.
func RawSignature(sig *ssh.Signature) ([]byte, error) {
	switch sig.Format {
	case ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521:
		var parsed sshECDSASig
		if err := ssh.Unmarshal(sig.Blob, &parsed); err != nil {
			return nil, fmt.Errorf("could not parse ECDSA signature blob: %w", err)
		}
		return marshalECDSASignature(parsed.R, parsed.S)
	case ssh.KeyAlgoRSA, ssh.KeyAlgoRSASHA256, ssh.KeyAlgoRSASHA512, ssh.KeyAlgoED25519:
		return sig.Blob, nil
	}
	return nil, fmt.Errorf("unsupported signature format %q", sig.Format)
}

// marshalECDSASignature re-encodes an ECDSA (r, s) pair as the ASN.1 DER
// SEQUENCE used outside the SSH wire protocol.
func marshalECDSASignature(r, s *big.Int) ([]byte, error) {
	return asn1.Marshal(struct{ R, S *big.Int }{r, s})
}
