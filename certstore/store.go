// Package certstore provides CertificateResolver implementations backed
// by a directory of PEM certificates or by a PKCS#11 token.
package certstore

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leifj/certxmlenc"
)

// DirResolver resolves certificates from a directory of PEM files
// (.pem, .crt, .cer). The directory is re-read on every call, so a
// certificate dropped in or rotated takes effect immediately.
type DirResolver struct {
	Dir string
}

// NewDirResolver creates a resolver over the given directory.
func NewDirResolver(dir string) *DirResolver {
	return &DirResolver{Dir: dir}
}

// ResolveCertificate scans the directory for a certificate whose
// thumbprint matches (case-insensitively). It returns (nil, nil) when no
// certificate matches.
func (r *DirResolver) ResolveCertificate(thumbprint string) (*x509.Certificate, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("certstore: failed to read %s: %w", r.Dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isCertFile(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("certstore: failed to read %s: %w", entry.Name(), err)
		}
		for _, cert := range parseCertificates(data) {
			if strings.EqualFold(certxmlenc.Thumbprint(cert), thumbprint) {
				return cert, nil
			}
		}
	}
	return nil, nil
}

func isCertFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pem", ".crt", ".cer":
		return true
	default:
		return false
	}
}

// parseCertificates extracts every CERTIFICATE block from PEM data,
// skipping blocks that fail to parse.
func parseCertificates(data []byte) []*x509.Certificate {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		certs = append(certs, cert)
	}
	return certs
}
