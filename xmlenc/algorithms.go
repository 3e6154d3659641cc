// Package xmlenc implements the subset of XML Encryption Syntax and
// Processing (https://www.w3.org/TR/xmlenc-core1/) needed to protect an
// XML element with the public key of an X.509 certificate: symmetric
// content encryption with a fresh content encryption key, plus key
// transport (RSA-OAEP) or key agreement (ECDH-ES) to wrap that key for
// the certificate holder.
package xmlenc

// Algorithm URIs as defined by XML Encryption 1.0 and 1.1.
const (
	// Namespace URIs
	NamespaceXMLEnc    = "http://www.w3.org/2001/04/xmlenc#"
	NamespaceXMLEnc11  = "http://www.w3.org/2009/xmlenc11#"
	NamespaceXMLDSig   = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXMLDSig11 = "http://www.w3.org/2009/xmldsig11#"

	// Block encryption algorithms
	AlgorithmAES128CBC = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgorithmAES192CBC = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	AlgorithmAES256CBC = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgorithmAES128GCM = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgorithmAES192GCM = "http://www.w3.org/2009/xmlenc11#aes192-gcm"
	AlgorithmAES256GCM = "http://www.w3.org/2009/xmlenc11#aes256-gcm"

	// Key transport algorithms
	AlgorithmRSAOAEP   = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
	AlgorithmRSAOAEP11 = "http://www.w3.org/2009/xmlenc11#rsa-oaep"

	// Key wrap algorithms
	AlgorithmAES128KW = "http://www.w3.org/2001/04/xmlenc#kw-aes128"
	AlgorithmAES192KW = "http://www.w3.org/2001/04/xmlenc#kw-aes192"
	AlgorithmAES256KW = "http://www.w3.org/2001/04/xmlenc#kw-aes256"

	// Key agreement and derivation algorithms
	AlgorithmECDHES = "http://www.w3.org/2009/xmlenc11#ECDH-ES"
	AlgorithmHKDF   = "http://www.w3.org/2021/04/xmldsig-more#hkdf"

	// Digest algorithms (used by RSA-OAEP and HKDF)
	AlgorithmSHA1       = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgorithmSHA256     = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmSHA512     = "http://www.w3.org/2001/04/xmlenc#sha512"
	AlgorithmHMACSHA256 = "http://www.w3.org/2001/04/xmldsig-more#hmac-sha256"

	// MGF algorithms (for RSA-OAEP 1.1)
	AlgorithmMGF1SHA1   = "http://www.w3.org/2009/xmlenc11#mgf1sha1"
	AlgorithmMGF1SHA256 = "http://www.w3.org/2009/xmlenc11#mgf1sha256"

	// Type URIs
	TypeEncryptedKey = "http://www.w3.org/2001/04/xmlenc#EncryptedKey"
	TypeElement      = "http://www.w3.org/2001/04/xmlenc#Element"
	TypeContent      = "http://www.w3.org/2001/04/xmlenc#Content"
)

// KeySize returns the key size in bytes required by the given block
// encryption or key wrap algorithm, or 0 if the algorithm is not recognized.
func KeySize(algorithm string) int {
	switch algorithm {
	case AlgorithmAES128CBC, AlgorithmAES128GCM, AlgorithmAES128KW:
		return 16
	case AlgorithmAES192CBC, AlgorithmAES192GCM, AlgorithmAES192KW:
		return 24
	case AlgorithmAES256CBC, AlgorithmAES256GCM, AlgorithmAES256KW:
		return 32
	default:
		return 0
	}
}

// IsGCM reports whether the algorithm is an AES-GCM variant.
func IsGCM(algorithm string) bool {
	switch algorithm {
	case AlgorithmAES128GCM, AlgorithmAES192GCM, AlgorithmAES256GCM:
		return true
	default:
		return false
	}
}

// KeyWrapForContent returns the AES key wrap algorithm whose key size
// matches the given content encryption algorithm.
func KeyWrapForContent(contentAlgorithm string) string {
	switch KeySize(contentAlgorithm) {
	case 24:
		return AlgorithmAES192KW
	case 32:
		return AlgorithmAES256KW
	default:
		return AlgorithmAES128KW
	}
}
