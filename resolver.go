// Package certxmlenc encrypts XML elements with the public key of an
// X.509 certificate, producing a standard xenc:EncryptedData structure
// that the paired decryptor can reverse with the certificate's private
// key. It is designed as one transform in a key-material protection
// pipeline: keys stored as XML can be run through an Encryptor before
// being persisted.
//
// The certificate to encrypt with is supplied either directly or as a
// thumbprint resolved through a CertificateResolver at encryption time.
package certxmlenc

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"strings"
)

// CertificateResolver maps a certificate thumbprint to a certificate.
// Returning (nil, nil) means no certificate was found for the thumbprint;
// an error means the lookup itself failed. Implementations must be safe
// for concurrent use if the Encryptor built on them is shared between
// goroutines.
type CertificateResolver interface {
	ResolveCertificate(thumbprint string) (*x509.Certificate, error)
}

// Thumbprint returns the conventional X.509 thumbprint of a certificate:
// the uppercase hex SHA-1 digest of its DER encoding.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
