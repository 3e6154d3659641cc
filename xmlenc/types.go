package xmlenc

// EncryptedData represents the xenc:EncryptedData element, the root of an
// encrypted XML fragment.
type EncryptedData struct {
	ID               string
	Type             string // TypeElement or TypeContent
	EncryptionMethod *EncryptionMethod
	KeyInfo          *KeyInfo
	CipherData       *CipherData
}

// EncryptedKey represents the xenc:EncryptedKey element carrying a content
// encryption key wrapped for a specific recipient.
type EncryptedKey struct {
	ID               string
	Recipient        string
	EncryptionMethod *EncryptionMethod
	KeyInfo          *KeyInfo
	CipherData       *CipherData
}

// EncryptionMethod identifies the algorithm used for an encryption step.
// DigestMethod and MGF are only meaningful for RSA-OAEP.
type EncryptionMethod struct {
	Algorithm    string
	DigestMethod string
	MGF          string
}

// CipherData holds the raw ciphertext. Only inline CipherValue is
// supported; CipherReference is not produced or consumed by this package.
type CipherData struct {
	CipherValue []byte
}

// KeyInfo identifies the key material needed to reverse an encryption.
// It is compatible with ds:KeyInfo from XML Signature.
type KeyInfo struct {
	KeyName         string
	EncryptedKey    *EncryptedKey
	X509Data        *X509Data
	AgreementMethod *AgreementMethod
}

// X509Data names the recipient certificate, either by embedding the
// DER-encoded certificate or by issuer name and serial number.
type X509Data struct {
	IssuerSerial *X509IssuerSerial
	Certificate  []byte
}

// X509IssuerSerial identifies a certificate by its issuer distinguished
// name (RFC 2253 form) and decimal serial number.
type X509IssuerSerial struct {
	IssuerName   string
	SerialNumber string
}

// AgreementMethod represents xenc:AgreementMethod for ECDH-ES key
// agreement. The originator key is the sender's ephemeral public key.
type AgreementMethod struct {
	Algorithm     string
	KeyDerivation *KeyDerivation
	OriginatorKey *ECKeyValue
}

// KeyDerivation specifies how the key encryption key is derived from the
// agreed shared secret.
type KeyDerivation struct {
	Algorithm string
	HKDF      *HKDFParams
}

// HKDFParams contains HKDF (RFC 5869) parameters. KeyLength is in bits.
type HKDFParams struct {
	PRF       string
	Salt      []byte
	Info      []byte
	KeyLength int
}

// ECKeyValue carries an elliptic-curve public key as dsig11:ECKeyValue.
// NamedCurve is a urn:oid curve identifier; PublicKey is the uncompressed
// point encoding.
type ECKeyValue struct {
	NamedCurve string
	PublicKey  []byte
}
