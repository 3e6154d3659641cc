package certstore

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/ThalesGroup/crypto11"

	"github.com/leifj/certxmlenc"
)

// PKCS11Config locates a PKCS#11 token.
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 shared library
	ModulePath string
	// TokenLabel selects the token within the module
	TokenLabel string
	// PIN authenticates the session
	PIN string
}

// PKCS11Resolver resolves certificates stored on a PKCS#11 token. Only
// certificates with a paired private key on the token are considered,
// since the point of resolving one here is that its key can later
// decrypt. The crypto11 context is safe for concurrent use.
type PKCS11Resolver struct {
	ctx *crypto11.Context
}

// NewPKCS11Resolver opens a session against the configured token.
func NewPKCS11Resolver(cfg PKCS11Config) (*PKCS11Resolver, error) {
	ctx, err := crypto11.Configure(&crypto11.Config{
		Path:       cfg.ModulePath,
		TokenLabel: cfg.TokenLabel,
		Pin:        cfg.PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("certstore: failed to configure PKCS#11 module: %w", err)
	}
	return &PKCS11Resolver{ctx: ctx}, nil
}

// ResolveCertificate enumerates paired certificates on the token and
// returns the one whose thumbprint matches, or (nil, nil) if none does.
func (r *PKCS11Resolver) ResolveCertificate(thumbprint string) (*x509.Certificate, error) {
	pairs, err := r.ctx.FindAllPairedCertificates()
	if err != nil {
		return nil, fmt.Errorf("certstore: failed to enumerate token certificates: %w", err)
	}

	for _, pair := range pairs {
		cert := pair.Leaf
		if cert == nil {
			if len(pair.Certificate) == 0 {
				continue
			}
			cert, err = x509.ParseCertificate(pair.Certificate[0])
			if err != nil {
				continue
			}
		}
		if strings.EqualFold(certxmlenc.Thumbprint(cert), thumbprint) {
			return cert, nil
		}
	}
	return nil, nil
}

// Close releases the PKCS#11 session.
func (r *PKCS11Resolver) Close() error {
	return r.ctx.Close()
}
