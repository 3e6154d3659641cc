package certxmlenc

import (
	"crypto/x509"
	"fmt"
	"log/slog"
)

// certificateBinding resolves which certificate an Encryptor encrypts
// with. It has two variants: a lazy binding holding a thumbprint and a
// resolver, and a direct binding holding a fixed certificate.
//
// The lazy variant re-resolves on every call and performs no caching, so
// a rotated certificate in the resolver's backing store takes effect
// without reconstructing the Encryptor.
type certificateBinding struct {
	thumbprint string
	resolver   CertificateResolver
	cert       *x509.Certificate
}

func newLazyBinding(thumbprint string, resolver CertificateResolver) (*certificateBinding, error) {
	if thumbprint == "" {
		return nil, fmt.Errorf("%w: thumbprint must not be empty", ErrInvalidArgument)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: resolver must not be nil", ErrInvalidArgument)
	}
	return &certificateBinding{thumbprint: thumbprint, resolver: resolver}, nil
}

func newDirectBinding(cert *x509.Certificate) (*certificateBinding, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: certificate must not be nil", ErrInvalidArgument)
	}
	return &certificateBinding{cert: cert}, nil
}

// certificate produces the bound certificate. It never returns a nil
// certificate together with a nil error: a resolver reporting "not found"
// becomes a CertificateNotFoundError before the caller proceeds.
func (b *certificateBinding) certificate(logger *slog.Logger) (*x509.Certificate, error) {
	if b.cert != nil {
		return b.cert, nil
	}

	cert, err := b.resolver.ResolveCertificate(b.thumbprint)
	if err != nil {
		logger.Error("certificate resolution failed",
			"thumbprint", b.thumbprint, "error", err)
		return nil, err
	}
	if cert == nil {
		err := &CertificateNotFoundError{Thumbprint: b.thumbprint}
		logger.Warn("certificate not found", "thumbprint", b.thumbprint)
		return nil, err
	}
	return cert, nil
}
