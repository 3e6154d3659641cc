package xmlenc

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCert(t *testing.T, pub any, priv any) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(4919),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "Key Transport Test",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func newRSACert(t *testing.T) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return newTestCert(t, &key.PublicKey, key), key
}

func newECCert(t *testing.T, curve elliptic.Curve) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return newTestCert(t, &key.PublicKey, key), key
}

func TestRSAKeyTransportRoundTrip(t *testing.T) {
	cert, key := newRSACert(t)

	transport, err := NewCertificateKeyTransport(cert)
	require.NoError(t, err)

	cek := []byte("0123456789abcdef0123456789abcdef")
	ek, err := transport.WrapKey(cek, AlgorithmAES256KW)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmRSAOAEP11, ek.EncryptionMethod.Algorithm)
	assert.Equal(t, AlgorithmSHA256, ek.EncryptionMethod.DigestMethod)
	assert.Equal(t, AlgorithmMGF1SHA256, ek.EncryptionMethod.MGF)
	assert.NotEqual(t, cek, ek.CipherData.CipherValue)

	require.NotNil(t, ek.KeyInfo)
	require.NotNil(t, ek.KeyInfo.X509Data)
	require.NotNil(t, ek.KeyInfo.X509Data.IssuerSerial)
	assert.Equal(t, cert.SerialNumber.String(), ek.KeyInfo.X509Data.IssuerSerial.SerialNumber)
	assert.Equal(t, cert.Issuer.String(), ek.KeyInfo.X509Data.IssuerSerial.IssuerName)

	receiver, err := NewPrivateKeyReceiver(key)
	require.NoError(t, err)
	recovered, err := receiver.UnwrapKey(ek)
	require.NoError(t, err)
	assert.Equal(t, cek, recovered)
}

func TestECDHKeyTransportRoundTrip(t *testing.T) {
	curves := map[string]elliptic.Curve{
		"P256": elliptic.P256(),
		"P384": elliptic.P384(),
		"P521": elliptic.P521(),
	}
	for name, curve := range curves {
		t.Run(name, func(t *testing.T) {
			cert, key := newECCert(t, curve)

			transport, err := NewCertificateKeyTransport(cert)
			require.NoError(t, err)

			cek := make([]byte, 32)
			cek[0] = 0x99
			ek, err := transport.WrapKey(cek, AlgorithmAES256KW)
			require.NoError(t, err)

			assert.Equal(t, AlgorithmAES256KW, ek.EncryptionMethod.Algorithm)
			require.NotNil(t, ek.KeyInfo.AgreementMethod)
			assert.Equal(t, AlgorithmECDHES, ek.KeyInfo.AgreementMethod.Algorithm)
			require.NotNil(t, ek.KeyInfo.AgreementMethod.OriginatorKey)
			assert.NotEmpty(t, ek.KeyInfo.AgreementMethod.OriginatorKey.PublicKey)

			receiver, err := NewPrivateKeyReceiver(key)
			require.NoError(t, err)
			recovered, err := receiver.UnwrapKey(ek)
			require.NoError(t, err)
			assert.Equal(t, cek, recovered)
		})
	}
}

func TestECDHWrapsDifferEachCall(t *testing.T) {
	cert, _ := newECCert(t, elliptic.P256())
	transport, err := NewCertificateKeyTransport(cert)
	require.NoError(t, err)

	cek := make([]byte, 16)
	ek1, err := transport.WrapKey(cek, AlgorithmAES128KW)
	require.NoError(t, err)
	ek2, err := transport.WrapKey(cek, AlgorithmAES128KW)
	require.NoError(t, err)

	// A fresh ephemeral key pair per call means distinct wrapped values.
	assert.NotEqual(t, ek1.CipherData.CipherValue, ek2.CipherData.CipherValue)
	assert.NotEqual(t,
		ek1.KeyInfo.AgreementMethod.OriginatorKey.PublicKey,
		ek2.KeyInfo.AgreementMethod.OriginatorKey.PublicKey)
}

func TestUnsupportedCertificateKeyType(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	cert := newTestCert(t, pub, priv)

	_, err = NewCertificateKeyTransport(cert)
	assert.Error(t, err)
}

func TestUnwrapWrongKeyFails(t *testing.T) {
	cert, _ := newRSACert(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	transport, err := NewCertificateKeyTransport(cert)
	require.NoError(t, err)
	ek, err := transport.WrapKey(make([]byte, 32), AlgorithmAES256KW)
	require.NoError(t, err)

	receiver, err := NewPrivateKeyReceiver(otherKey)
	require.NoError(t, err)
	_, err = receiver.UnwrapKey(ek)
	assert.Error(t, err)
}
