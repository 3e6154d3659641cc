package xmlenc

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Named curve identifiers used in dsig11:NamedCurve.
const (
	CurveP256 = "urn:oid:1.2.840.10045.3.1.7"
	CurveP384 = "urn:oid:1.3.132.0.34"
	CurveP521 = "urn:oid:1.3.132.0.35"
)

// CertificateKeyTransport wraps content encryption keys for the holder of
// an X.509 certificate. RSA certificates use RSA-OAEP key transport; ECDSA
// certificates use ECDH-ES key agreement on the certificate curve with
// HKDF-SHA256 derivation and AES key wrap. The EncryptedKey it produces
// identifies the certificate by issuer and serial so the decrypting side
// can locate the private key.
type CertificateKeyTransport struct {
	cert *x509.Certificate
	// KeyName, if set, is emitted as ds:KeyName alongside the issuer/serial
	KeyName string
}

// NewCertificateKeyTransport returns a key transport for the certificate,
// or an error if the certificate's public key type is unsupported.
func NewCertificateKeyTransport(cert *x509.Certificate) (*CertificateKeyTransport, error) {
	if cert == nil {
		return nil, fmt.Errorf("nil certificate")
	}
	switch cert.PublicKey.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return &CertificateKeyTransport{cert: cert}, nil
	default:
		return nil, fmt.Errorf("unsupported certificate public key type %T", cert.PublicKey)
	}
}

// WrapKey wraps a content encryption key for the certificate holder.
// wrapAlgorithm selects the AES key wrap variant on the ECDH-ES path and
// is ignored for RSA-OAEP.
func (kt *CertificateKeyTransport) WrapKey(cek []byte, wrapAlgorithm string) (*EncryptedKey, error) {
	switch pub := kt.cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return kt.wrapRSA(pub, cek)
	case *ecdsa.PublicKey:
		return kt.wrapECDH(pub, cek, wrapAlgorithm)
	default:
		return nil, fmt.Errorf("unsupported certificate public key type %T", kt.cert.PublicKey)
	}
}

func (kt *CertificateKeyTransport) wrapRSA(pub *rsa.PublicKey, cek []byte) (*EncryptedKey, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, cek, nil)
	if err != nil {
		return nil, fmt.Errorf("RSA-OAEP key transport failed: %w", err)
	}
	return &EncryptedKey{
		EncryptionMethod: &EncryptionMethod{
			Algorithm:    AlgorithmRSAOAEP11,
			DigestMethod: AlgorithmSHA256,
			MGF:          AlgorithmMGF1SHA256,
		},
		KeyInfo:    kt.recipientKeyInfo(),
		CipherData: &CipherData{CipherValue: wrapped},
	}, nil
}

func (kt *CertificateKeyTransport) wrapECDH(pub *ecdsa.PublicKey, cek []byte, wrapAlgorithm string) (*EncryptedKey, error) {
	kekSize := KeySize(wrapAlgorithm)
	if kekSize == 0 {
		return nil, fmt.Errorf("unsupported key wrap algorithm: %s", wrapAlgorithm)
	}

	recipient, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("certificate key is not usable for ECDH: %w", err)
	}

	// Fresh ephemeral key pair per wrap
	ephemeral, err := recipient.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("ECDH agreement failed: %w", err)
	}

	params := &HKDFParams{
		PRF:       AlgorithmHMACSHA256,
		Info:      []byte(wrapAlgorithm),
		KeyLength: kekSize * 8,
	}
	kek, err := deriveHKDF(shared, params, kekSize)
	if err != nil {
		return nil, err
	}
	wrapped, err := AESKeyWrap(kek, cek)
	if err != nil {
		return nil, fmt.Errorf("key wrap failed: %w", err)
	}

	curve, err := namedCurveURI(pub.Curve)
	if err != nil {
		return nil, err
	}
	ki := kt.recipientKeyInfo()
	ki.AgreementMethod = &AgreementMethod{
		Algorithm: AlgorithmECDHES,
		KeyDerivation: &KeyDerivation{
			Algorithm: AlgorithmHKDF,
			HKDF:      params,
		},
		OriginatorKey: &ECKeyValue{
			NamedCurve: curve,
			PublicKey:  ephemeral.PublicKey().Bytes(),
		},
	}
	return &EncryptedKey{
		EncryptionMethod: &EncryptionMethod{Algorithm: wrapAlgorithm},
		KeyInfo:          ki,
		CipherData:       &CipherData{CipherValue: wrapped},
	}, nil
}

func (kt *CertificateKeyTransport) recipientKeyInfo() *KeyInfo {
	return &KeyInfo{
		KeyName: kt.KeyName,
		X509Data: &X509Data{
			IssuerSerial: &X509IssuerSerial{
				IssuerName:   kt.cert.Issuer.String(),
				SerialNumber: kt.cert.SerialNumber.String(),
			},
		},
	}
}

// PrivateKeyReceiver unwraps content encryption keys with the private key
// paired to the recipient certificate. It is the decrypting counterpart of
// CertificateKeyTransport.
type PrivateKeyReceiver struct {
	key crypto.PrivateKey
}

// NewPrivateKeyReceiver returns a receiver for an *rsa.PrivateKey or
// *ecdsa.PrivateKey.
func NewPrivateKeyReceiver(key crypto.PrivateKey) (*PrivateKeyReceiver, error) {
	switch key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return &PrivateKeyReceiver{key: key}, nil
	default:
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
}

// UnwrapKey recovers the content encryption key from an EncryptedKey.
func (r *PrivateKeyReceiver) UnwrapKey(ek *EncryptedKey) ([]byte, error) {
	if ek == nil || ek.CipherData == nil || len(ek.CipherData.CipherValue) == 0 {
		return nil, fmt.Errorf("no cipher value in EncryptedKey")
	}
	if ek.EncryptionMethod == nil {
		return nil, fmt.Errorf("EncryptedKey has no EncryptionMethod")
	}

	switch key := r.key.(type) {
	case *rsa.PrivateKey:
		return unwrapRSA(key, ek)
	case *ecdsa.PrivateKey:
		return unwrapECDH(key, ek)
	default:
		return nil, fmt.Errorf("unsupported private key type %T", r.key)
	}
}

func unwrapRSA(key *rsa.PrivateKey, ek *EncryptedKey) ([]byte, error) {
	switch ek.EncryptionMethod.Algorithm {
	case AlgorithmRSAOAEP, AlgorithmRSAOAEP11:
	default:
		return nil, fmt.Errorf("unsupported key transport algorithm: %s", ek.EncryptionMethod.Algorithm)
	}

	digest, err := oaepDigest(ek.EncryptionMethod)
	if err != nil {
		return nil, err
	}
	cek, err := rsa.DecryptOAEP(digest, rand.Reader, key, ek.CipherData.CipherValue, nil)
	if err != nil {
		return nil, fmt.Errorf("RSA-OAEP decryption failed: %w", err)
	}
	return cek, nil
}

func unwrapECDH(key *ecdsa.PrivateKey, ek *EncryptedKey) ([]byte, error) {
	kekSize := KeySize(ek.EncryptionMethod.Algorithm)
	if kekSize == 0 {
		return nil, fmt.Errorf("unsupported key wrap algorithm: %s", ek.EncryptionMethod.Algorithm)
	}
	if ek.KeyInfo == nil || ek.KeyInfo.AgreementMethod == nil || ek.KeyInfo.AgreementMethod.OriginatorKey == nil {
		return nil, fmt.Errorf("EncryptedKey has no originator key for ECDH-ES")
	}
	am := ek.KeyInfo.AgreementMethod

	priv, err := key.ECDH()
	if err != nil {
		return nil, fmt.Errorf("private key is not usable for ECDH: %w", err)
	}
	ephemeral, err := priv.Curve().NewPublicKey(am.OriginatorKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid originator public key: %w", err)
	}
	shared, err := priv.ECDH(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("ECDH agreement failed: %w", err)
	}

	var params *HKDFParams
	if am.KeyDerivation != nil {
		params = am.KeyDerivation.HKDF
	}
	kek, err := deriveHKDF(shared, params, kekSize)
	if err != nil {
		return nil, err
	}
	cek, err := AESKeyUnwrap(kek, ek.CipherData.CipherValue)
	if err != nil {
		return nil, fmt.Errorf("key unwrap failed: %w", err)
	}
	return cek, nil
}

func deriveHKDF(secret []byte, params *HKDFParams, keyLength int) ([]byte, error) {
	var salt, info []byte
	if params != nil {
		salt = params.Salt
		info = params.Info
		if params.KeyLength > 0 {
			keyLength = params.KeyLength / 8
		}
	}
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), key); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}
	return key, nil
}

func oaepDigest(em *EncryptionMethod) (hash.Hash, error) {
	// xmlenc 1.0 rsa-oaep-mgf1p defaults to SHA-1
	switch em.DigestMethod {
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA1, "":
		if em.Algorithm == AlgorithmRSAOAEP11 && em.DigestMethod == "" {
			return sha256.New(), nil
		}
		return sha1.New(), nil
	default:
		return nil, fmt.Errorf("unsupported OAEP digest: %s", em.DigestMethod)
	}
}

func namedCurveURI(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return CurveP256, nil
	case elliptic.P384():
		return CurveP384, nil
	case elliptic.P521():
		return CurveP521, nil
	default:
		return "", fmt.Errorf("unsupported curve: %s", curve.Params().Name)
	}
}
