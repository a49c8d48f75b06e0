// Copyright (c) 2026 Vigil Cloud
// Triton CLI - command-line client for the Triton CloudAPI
// This source code is licensed under the MIT license found in the LICENSE file.

// Package certsign issues client X.509 certificates whose issuer key is an
// account SSH key. The standard library's x509.CreateCertificate wants a
// crypto.Signer that signs a digest; SSH agents only sign whole messages.
// So the TBS structure is assembled by hand and pushed through the same
// signing path HTTP-Signature auth uses, which keeps agent keys usable as
// certificate issuers.
package certsign

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/md5"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/vigilcloud/triton-cli/internal/clierr"
	"github.com/vigilcloud/triton-cli/internal/httpsig"
	"github.com/vigilcloud/triton-cli/internal/keyring"
)

// Flavor selects the certificate purposes.
type Flavor int

const (
	// FlavorDocker marks a cert for the Docker TLS side-channel.
	FlavorDocker Flavor = iota
	// FlavorCMON marks a cert for the CMON metrics endpoint.
	FlavorCMON
)

// DefaultLifetimeDays is used when the caller does not pick a lifetime.
const DefaultLifetimeDays = 3650

// clockSkewBuffer backdates NotBefore so a cert minted on a fast clock is
// immediately valid on the server.
const clockSkewBuffer = 5 * time.Minute

// Joyent's private enterprise arc; the leaf OIDs tag which sidecar service
// a client cert is meant for.
var (
	oidJoyentDocker = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 38678, 1, 4, 1}
	oidJoyentCMON   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 38678, 1, 4, 2}

	oidExtKeyUsage     = asn1.ObjectIdentifier{2, 5, 29, 37}
	oidKeyUsage        = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidClientAuth      = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
	oidSHA1WithRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	oidSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
	oidEd25519         = asn1.ObjectIdentifier{1, 3, 101, 112}
)

// Options control a single issuance.
type Options struct {
	// Subject is the certificate subject CN, normally the account login
	// (or the act-as account).
	Subject string
	// LifetimeDays defaults to DefaultLifetimeDays when zero.
	LifetimeDays int
	Flavor       Flavor
}

// Issued is a freshly minted certificate plus its subject private key.
type Issued struct {
	CertPEM []byte
	KeyPEM  []byte
	Cert    *x509.Certificate
}

// tbsCertificate mirrors the to-be-signed half of RFC 5280 just closely
// enough to marshal one.
type tbsCertificate struct {
	Version      int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber *big.Int
	Signature    pkix.AlgorithmIdentifier
	Issuer       asn1.RawValue
	Validity     validity
	Subject      asn1.RawValue
	PublicKey    asn1.RawValue
	Extensions   []pkix.Extension `asn1:"omitempty,optional,explicit,tag:3"`
}

type validity struct {
	NotBefore, NotAfter time.Time
}

type certificate struct {
	TBSCertificate     asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// IssuerCommonName derives the issuer CN for a public key: the base64 of
// the raw md5 fingerprint bytes, matching what CloudAPI's sidecars expect
// to find when they map a client cert back to an account key.
func IssuerCommonName(pub ssh.PublicKey) string {
	sum := md5.Sum(pub.Marshal())
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Issue generates a fresh ECDSA subject key, builds a certificate over it,
// and signs it with kp, the account SSH key (possibly agent-backed). The
// signature is verified against kp's public key before anything is
// returned; a broken agent never produces persisted garbage.
func Issue(kp keyring.KeyPair, opts Options) (*Issued, error) {
	if opts.Subject == "" {
		return nil, clierr.Internalf("certificate subject must not be empty")
	}
	if kp.Locked() {
		return nil, clierr.Signingf("key %s is locked; unlock it first", kp.Fingerprint())
	}
	signer, err := kp.Signer()
	if err != nil {
		return nil, err
	}
	lifetime := opts.LifetimeDays
	if lifetime <= 0 {
		lifetime = DefaultLifetimeDays
	}

	subjKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, clierr.Internalf("could not generate certificate key").WithCause(err)
	}

	// The signature algorithm goes inside the TBS, but with agent keys the
	// effective algorithm is only known from a signature result. Probe
	// first, then require the real signature to use the same algorithm.
	probe, err := httpsig.Sign(signer, []byte("algorithm probe"))
	if err != nil {
		return nil, clierr.Signingf("could not sign with key %s", kp.Fingerprint()).WithCause(err)
	}
	algID, err := signatureAlgorithm(probe.Format)
	if err != nil {
		return nil, clierr.Signingf("key %s produced an unusable signature", kp.Fingerprint()).WithCause(err)
	}

	tbsDER, err := buildTBS(opts, lifetime, algID, signer.PublicKey(), &subjKey.PublicKey)
	if err != nil {
		return nil, err
	}

	sig, err := httpsig.Sign(signer, tbsDER)
	if err != nil {
		return nil, clierr.Signingf("could not sign certificate with key %s", kp.Fingerprint()).WithCause(err)
	}
	if sig.Format != probe.Format {
		return nil, clierr.Signingf("key %s changed signature algorithm mid-issuance (%s then %s)",
			kp.Fingerprint(), probe.Format, sig.Format)
	}
	if err := signer.PublicKey().Verify(tbsDER, sig); err != nil {
		return nil, clierr.Signingf("issued certificate failed verification against key %s",
			kp.Fingerprint()).WithCause(err)
	}
	raw, err := httpsig.RawSignature(sig)
	if err != nil {
		return nil, clierr.Signingf("key %s produced an unusable signature", kp.Fingerprint()).WithCause(err)
	}

	certDER, err := asn1.Marshal(certificate{
		TBSCertificate:     asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: algID,
		SignatureValue:     asn1.BitString{Bytes: raw, BitLength: len(raw) * 8},
	})
	if err != nil {
		return nil, clierr.Internalf("could not assemble certificate").WithCause(err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, clierr.Internalf("assembled certificate does not parse").WithCause(err)
	}

	keyDER, err := x509.MarshalECPrivateKey(subjKey)
	if err != nil {
		return nil, clierr.Internalf("could not encode certificate key").WithCause(err)
	}
	return &Issued{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
		Cert:    cert,
	}, nil
}

func buildTBS(opts Options, lifetimeDays int, algID pkix.AlgorithmIdentifier, issuerPub ssh.PublicKey, subjPub *ecdsa.PublicKey) ([]byte, error) {
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	issuerDN, err := marshalCN(IssuerCommonName(issuerPub))
	if err != nil {
		return nil, err
	}
	subjectDN, err := marshalCN(opts.Subject)
	if err != nil {
		return nil, err
	}
	spki, err := x509.MarshalPKIXPublicKey(subjPub)
	if err != nil {
		return nil, clierr.Internalf("could not encode certificate public key").WithCause(err)
	}
	exts, err := purposeExtensions(opts.Flavor)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now().Add(-clockSkewBuffer).UTC().Truncate(time.Second)
	notAfter := notBefore.Add(time.Duration(lifetimeDays) * 24 * time.Hour)

	tbsDER, err := asn1.Marshal(tbsCertificate{
		Version:      2, // v3, extensions are present
		SerialNumber: serial,
		Signature:    algID,
		Issuer:       asn1.RawValue{FullBytes: issuerDN},
		Validity:     validity{NotBefore: notBefore, NotAfter: notAfter},
		Subject:      asn1.RawValue{FullBytes: subjectDN},
		PublicKey:    asn1.RawValue{FullBytes: spki},
		Extensions:   exts,
	})
	if err != nil {
		return nil, clierr.Internalf("could not assemble certificate body").WithCause(err)
	}
	return tbsDER, nil
}

// randomSerial draws the 8 random bytes CloudAPI sidecars expect as a
// serial, rejecting the (vanishingly unlikely) zero draw.
func randomSerial() (*big.Int, error) {
	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return nil, clierr.Internalf("could not draw certificate serial").WithCause(err)
		}
		s := new(big.Int).SetBytes(buf[:])
		if s.Sign() > 0 {
			return s, nil
		}
	}
}

func marshalCN(cn string) ([]byte, error) {
	name := pkix.Name{CommonName: cn}
	der, err := asn1.Marshal(name.ToRDNSequence())
	if err != nil {
		return nil, clierr.Internalf("could not encode certificate name %q", cn).WithCause(err)
	}
	return der, nil
}

// purposeExtensions renders the flavor's purposes as X.509 extensions.
// Docker certs carry extended key usage only; CMON certs additionally
// assert the digitalSignature key usage bit.
func purposeExtensions(flavor Flavor) ([]pkix.Extension, error) {
	var exts []pkix.Extension

	serviceOID := oidJoyentDocker
	if flavor == FlavorCMON {
		serviceOID = oidJoyentCMON
		// keyUsage digitalSignature is the first bit of the bit string.
		ku, err := asn1.Marshal(asn1.BitString{Bytes: []byte{0x80}, BitLength: 1})
		if err != nil {
			return nil, clierr.Internalf("could not encode key usage").WithCause(err)
		}
		exts = append(exts, pkix.Extension{Id: oidKeyUsage, Critical: true, Value: ku})
	}

	eku, err := asn1.Marshal([]asn1.ObjectIdentifier{oidClientAuth, serviceOID})
	if err != nil {
		return nil, clierr.Internalf("could not encode extended key usage").WithCause(err)
	}
	exts = append(exts, pkix.Extension{Id: oidExtKeyUsage, Value: eku})
	return exts, nil
}

// signatureAlgorithm maps an SSH signature format onto the X.509
// AlgorithmIdentifier that describes the same primitive. RSA identifiers
// carry an explicit NULL parameter; the others omit parameters entirely.
func signatureAlgorithm(sshFormat string) (pkix.AlgorithmIdentifier, error) {
	switch sshFormat {
	case ssh.KeyAlgoRSA:
		return pkix.AlgorithmIdentifier{Algorithm: oidSHA1WithRSA, Parameters: asn1.NullRawValue}, nil
	case ssh.KeyAlgoRSASHA256:
		return pkix.AlgorithmIdentifier{Algorithm: oidSHA256WithRSA, Parameters: asn1.NullRawValue}, nil
	case ssh.KeyAlgoRSASHA512:
		return pkix.AlgorithmIdentifier{Algorithm: oidSHA512WithRSA, Parameters: asn1.NullRawValue}, nil
	case ssh.KeyAlgoECDSA256:
		return pkix.AlgorithmIdentifier{Algorithm: oidECDSAWithSHA256}, nil
	case ssh.KeyAlgoECDSA384:
		return pkix.AlgorithmIdentifier{Algorithm: oidECDSAWithSHA384}, nil
	case ssh.KeyAlgoECDSA521:
		return pkix.AlgorithmIdentifier{Algorithm: oidECDSAWithSHA512}, nil
	case ssh.KeyAlgoED25519:
		return pkix.AlgorithmIdentifier{Algorithm: oidEd25519}, nil
	}
	return pkix.AlgorithmIdentifier{}, fmt.Errorf("unsupported signature format %q", sshFormat)
}
