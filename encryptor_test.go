package certxmlenc

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leifj/certxmlenc/xmlenc"
)

func newSelfSignedCert(t *testing.T, pub, priv any) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7001),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "XML Encryption Test",
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

func newRSACertAndKey(t *testing.T) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return newSelfSignedCert(t, &key.PublicKey, key), key
}

func newPlaintext() *etree.Element {
	doc := etree.NewDocument()
	ring := doc.CreateElement("KeyRing")
	entry := ring.CreateElement("Key")
	entry.CreateAttr("id", "key-1")
	entry.CreateElement("Material").SetText("dG9wLXNlY3JldA==")
	return entry
}

func decryptInfo(t *testing.T, info *EncryptedXMLInfo, key any) *etree.Element {
	t.Helper()
	ed, err := xmlenc.ParseEncryptedData(info.EncryptedData)
	require.NoError(t, err)
	receiver, err := xmlenc.NewPrivateKeyReceiver(key)
	require.NoError(t, err)
	elem, err := xmlenc.NewDecryptor(receiver).DecryptElement(ed)
	require.NoError(t, err)
	return elem
}

func canonical(t *testing.T, elem *etree.Element) []byte {
	t.Helper()
	out, err := dsig.MakeC14N10RecCanonicalizer().Canonicalize(elem)
	require.NoError(t, err)
	return out
}

func TestEncryptRoundTripRSA(t *testing.T) {
	cert, key := newRSACertAndKey(t)
	encryptor, err := NewEncryptor(cert)
	require.NoError(t, err)

	plaintext := newPlaintext()
	before := canonical(t, plaintext)

	info, err := encryptor.Encrypt(plaintext)
	require.NoError(t, err)

	assert.Equal(t, "EncryptedData", info.EncryptedData.Tag)
	assert.Equal(t, xmlenc.NamespaceXMLEnc, info.EncryptedData.SelectAttrValue("xmlns:xenc", ""))
	assert.Equal(t, DecryptorType, info.DecryptorType)
	assert.Nil(t, info.EncryptedData.Parent(), "result must be a standalone tree")

	assert.Equal(t, before, canonical(t, plaintext), "input tree must not be mutated")

	decrypted := decryptInfo(t, info, key)
	assert.Equal(t, canonical(t, plaintext), canonical(t, decrypted))
}

func TestEncryptRoundTripECDSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	cert := newSelfSignedCert(t, &key.PublicKey, key)

	encryptor, err := NewEncryptor(cert, WithAlgorithm(xmlenc.AlgorithmAES128GCM))
	require.NoError(t, err)

	plaintext := newPlaintext()
	info, err := encryptor.Encrypt(plaintext)
	require.NoError(t, err)

	decrypted := decryptInfo(t, info, key)
	assert.Equal(t, canonical(t, plaintext), canonical(t, decrypted))
}

func TestEncryptDocumentRootElement(t *testing.T) {
	cert, key := newRSACertAndKey(t)
	encryptor, err := NewEncryptor(cert)
	require.NoError(t, err)

	// Same element content once as a document root and once nested.
	rootDoc := etree.NewDocument()
	rootElem := rootDoc.CreateElement("Key")
	rootElem.CreateElement("Material").SetText("dG9wLXNlY3JldA==")

	nestedDoc := etree.NewDocument()
	nested := nestedDoc.CreateElement("Parent").CreateElement("Key")
	nested.CreateElement("Material").SetText("dG9wLXNlY3JldA==")

	rootInfo, err := encryptor.Encrypt(rootElem)
	require.NoError(t, err)
	nestedInfo, err := encryptor.Encrypt(nested)
	require.NoError(t, err)

	// The synthetic root workaround must be invisible: both decrypt to
	// the same canonical plaintext.
	assert.Equal(t,
		canonical(t, decryptInfo(t, rootInfo, key)),
		canonical(t, decryptInfo(t, nestedInfo, key)))
}

func TestEncryptNilPlaintext(t *testing.T) {
	cert, _ := newRSACertAndKey(t)

	var logBuf bytes.Buffer
	encryptor, err := NewEncryptor(cert,
		WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))))
	require.NoError(t, err)

	info, err := encryptor.Encrypt(nil)
	assert.Nil(t, info)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, logBuf.Len(), "precondition failure must not log an encryption attempt")
}

type stubResolver struct {
	calls int
	certs []*x509.Certificate
	err   error
}

func (r *stubResolver) ResolveCertificate(thumbprint string) (*x509.Certificate, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if len(r.certs) == 0 {
		return nil, nil
	}
	cert := r.certs[0]
	if len(r.certs) > 1 {
		r.certs = r.certs[1:]
	}
	return cert, nil
}

func TestEncryptCertificateNotFound(t *testing.T) {
	resolver := &stubResolver{}
	encryptor, err := NewResolvedEncryptor("ABC123", resolver)
	require.NoError(t, err)

	info, err := encryptor.Encrypt(newPlaintext())
	assert.Nil(t, info)

	var notFound *CertificateNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ABC123", notFound.Thumbprint)
	assert.Equal(t, 1, resolver.calls)
}

func TestEncryptResolverFailurePassthrough(t *testing.T) {
	lookupErr := errors.New("store unavailable")
	resolver := &stubResolver{err: lookupErr}

	var logBuf bytes.Buffer
	encryptor, err := NewResolvedEncryptor("DEAD", resolver,
		WithLogger(slog.New(slog.NewTextHandler(&logBuf, nil))))
	require.NoError(t, err)

	_, err = encryptor.Encrypt(newPlaintext())
	assert.ErrorIs(t, err, lookupErr, "resolver failure must pass through unmodified")
	assert.Contains(t, logBuf.String(), "DEAD", "failure must be logged with thumbprint context")
}

func TestLazyBindingReResolvesEveryCall(t *testing.T) {
	cert1, key1 := newRSACertAndKey(t)
	cert2, key2 := newRSACertAndKey(t)
	resolver := &stubResolver{certs: []*x509.Certificate{cert1, cert2}}

	encryptor, err := NewResolvedEncryptor(Thumbprint(cert1), resolver)
	require.NoError(t, err)

	plaintext := newPlaintext()
	info1, err := encryptor.Encrypt(plaintext)
	require.NoError(t, err)
	info2, err := encryptor.Encrypt(plaintext)
	require.NoError(t, err)

	assert.Equal(t, 2, resolver.calls, "no caching across calls")

	// Each result is keyed to the certificate in effect at its call.
	assert.Equal(t, canonical(t, plaintext), canonical(t, decryptInfo(t, info1, key1)))
	assert.Equal(t, canonical(t, plaintext), canonical(t, decryptInfo(t, info2, key2)))
}

type stubStep struct {
	sawDoc  *etree.Document
	sawElem *etree.Element
	result  *etree.Element
	err     error
}

func (s *stubStep) PerformEncryption(doc *etree.Document, elem *etree.Element) (*etree.Element, error) {
	s.sawDoc = doc
	s.sawElem = elem
	return s.result, s.err
}

func TestEncryptionStepOverride(t *testing.T) {
	cert, _ := newRSACertAndKey(t)
	step := &stubStep{result: etree.NewElement("Sealed")}

	encryptor, err := NewEncryptor(cert, WithEncryptionStep(step))
	require.NoError(t, err)

	info, err := encryptor.Encrypt(newPlaintext())
	require.NoError(t, err)

	assert.Equal(t, "Sealed", info.EncryptedData.Tag)
	require.NotNil(t, step.sawElem)
	assert.Equal(t, "Key", step.sawElem.Tag)
	require.NotNil(t, step.sawElem.Parent(), "target is presented inside the working document")
	assert.Same(t, step.sawDoc.Root(), step.sawElem.Parent())
}

func TestEncryptionStepFailurePassthrough(t *testing.T) {
	cert, _ := newRSACertAndKey(t)
	stepErr := errors.New("hardware token removed")
	encryptor, err := NewEncryptor(cert, WithEncryptionStep(&stubStep{err: stepErr}))
	require.NoError(t, err)

	_, err = encryptor.Encrypt(newPlaintext())
	assert.ErrorIs(t, err, stepErr)
}

func TestNewEncryptorNilCertificate(t *testing.T) {
	_, err := NewEncryptor(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestThumbprint(t *testing.T) {
	cert, _ := newRSACertAndKey(t)
	tp := Thumbprint(cert)
	assert.Len(t, tp, 40)
	assert.Equal(t, tp, Thumbprint(cert), "thumbprint is deterministic")
}
